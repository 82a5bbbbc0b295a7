package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dustin10/outbox-relay/internal/model"
	"github.com/dustin10/outbox-relay/internal/relay"
	"github.com/dustin10/outbox-relay/internal/util"
)

// enqueueQuery inserts one entry. The empty partition key is stored as NULL
// so the broker picks the partition. The creation timestamp comes from the
// database clock; it is the claim ordering key.
const enqueueQuery = `
	INSERT INTO outbox (id, topic, partition_key, headers, payload, created)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, now())
	RETURNING created
`

// claimQuery selects and deletes the oldest pending entries in one round
// trip. SKIP LOCKED excludes rows held by a concurrent claimer instead of
// blocking, so any number of relay workers can poll the same table and each
// entry is handed to exactly one of them.
const claimQuery = `
	DELETE FROM outbox
	WHERE id IN (
		SELECT id FROM outbox
		ORDER BY created ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	)
	RETURNING id, topic, COALESCE(partition_key, '') AS partition_key, headers, payload, created
`

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Enqueue writes a single outbox entry. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx so the insert
	// commits or aborts together with the caller's business mutation.
	Enqueue(ctx context.Context, tx *sqlx.Tx, entry model.CreateEntry) (model.OutboxEntry, error)
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)
var _ relay.Source = (*OutboxRepositoryImpl)(nil)

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *OutboxRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

// Enqueue adds an entry row to the outbox. The entry ID is assigned here;
// the row becomes visible to claimers once the transaction commits. Errors
// must be propagated by the caller so its own transaction aborts.
func (r *OutboxRepositoryImpl) Enqueue(ctx context.Context, tx *sqlx.Tx, entry model.CreateEntry) (model.OutboxEntry, error) {
	if entry.Topic == "" {
		return model.OutboxEntry{}, fmt.Errorf("outbox: topic is required")
	}

	stored := model.OutboxEntry{
		ID:           util.NewID(),
		Topic:        entry.Topic,
		PartitionKey: entry.PartitionKey,
		Headers:      entry.Headers,
		Payload:      entry.Payload,
	}

	err := r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		row := tx.QueryRowxContext(ctx, enqueueQuery,
			stored.ID, stored.Topic, stored.PartitionKey, stored.Headers, stored.Payload)

		return row.Scan(&stored.Created)
	})
	if err != nil {
		return model.OutboxEntry{}, fmt.Errorf("outbox: insert failed: %w", err)
	}

	return stored, nil
}

// Claim begins a transaction, removes up to limit of the oldest pending
// entries with skip-locked semantics, and returns them as a Batch holding
// that transaction. Committing the batch makes the removal durable; rolling
// it back restores every entry to pending.
func (r *OutboxRepositoryImpl) Claim(ctx context.Context, limit int) (relay.Batch, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("outbox: claim limit must be positive, got %d", limit)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("outbox: begin claim tx: %w", err)
	}

	var entries []model.OutboxEntry
	if err := tx.SelectContext(ctx, &entries, claimQuery, limit); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("outbox: claim batch: %w", err)
	}

	return &claimedBatch{tx: tx, entries: entries}, nil
}

// claimedBatch couples the claimed entries with the transaction that holds
// their deletion.
type claimedBatch struct {
	tx      *sqlx.Tx
	entries []model.OutboxEntry
}

func (b *claimedBatch) Entries() []model.OutboxEntry { return b.entries }

func (b *claimedBatch) Commit() error { return b.tx.Commit() }

func (b *claimedBatch) Rollback() error { return b.tx.Rollback() }
