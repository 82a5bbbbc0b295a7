package relay

import (
	"context"

	"github.com/dustin10/outbox-relay/internal/model"
)

// Source provides claimed batches of pending outbox entries.
type Source interface {
	// Claim atomically selects and removes up to limit of the oldest pending
	// entries. Each entry is returned to exactly one caller; entries locked
	// by a concurrent claim are skipped rather than waited on.
	Claim(ctx context.Context, limit int) (Batch, error)
}

// Batch is a claimed set of entries together with the transaction that
// holds their deletion. Exactly one of Commit or Rollback resolves the
// batch: Commit makes the removal durable, Rollback restores the entries
// to pending. Calling either on an already resolved batch returns an
// already-done error that callers may discard.
type Batch interface {
	// Entries returns the claimed entries in creation order.
	Entries() []model.OutboxEntry
	// Commit finalizes the claiming transaction.
	Commit() error
	// Rollback releases the claim, restoring the entries to pending.
	Rollback() error
}

// Publisher sends a single outbox entry to the broker.
type Publisher interface {
	// Publish sends the entry to its topic. It may be invoked again for the
	// same entry on a later cycle; downstream consumers must be idempotent.
	Publish(ctx context.Context, entry model.OutboxEntry) error
}
