package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dustin10/outbox-relay/internal/model"
	"github.com/dustin10/outbox-relay/internal/repository"
	"github.com/dustin10/outbox-relay/internal/relay"
)

// TypeHeader is the header key carrying the event-type discriminator.
const TypeHeader = "type"

// ErrSerialization indicates the event payload could not be encoded. It is
// surfaced before anything is written, so an unencodable event never
// reaches the outbox table.
var ErrSerialization = errors.New("events: payload serialization failed")

// Event describes a domain event to record in the outbox.
type Event struct {
	// Topic is the destination channel. Required.
	Topic string
	// Key is the partition key; empty lets the broker pick the partition.
	Key string
	// Type is the event-type discriminator, stamped into the headers.
	Type string
	// Headers is optional extra metadata.
	Headers model.Headers
	// Payload is marshaled to JSON. nil produces a payload-less entry.
	Payload any
}

// Service is the write path for business transactions: it records events in
// the outbox atomically with the caller's domain mutation and wakes the
// relay worker once the caller has committed.
type Service struct {
	outbox   repository.OutboxRepository
	notifier *relay.Notifier
}

// New constructs the events service. notifier may be nil when no relay
// worker runs in this process; the periodic sweep then picks entries up.
func New(outbox repository.OutboxRepository, notifier *relay.Notifier) *Service {
	return &Service{
		outbox:   outbox,
		notifier: notifier,
	}
}

// Enqueue records the event using the caller's active transaction so the
// entry commits or aborts together with the business mutation. Errors must
// not be swallowed: the caller has to abort its transaction on failure.
func (s *Service) Enqueue(ctx context.Context, tx *sqlx.Tx, evt Event) (model.OutboxEntry, error) {
	if evt.Topic == "" {
		return model.OutboxEntry{}, fmt.Errorf("events: topic is required")
	}

	var payload []byte
	if evt.Payload != nil {
		b, err := json.Marshal(evt.Payload)
		if err != nil {
			return model.OutboxEntry{}, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		payload = b
	}

	var headers model.Headers
	if len(evt.Headers) > 0 || evt.Type != "" {
		headers = make(model.Headers, len(evt.Headers)+1)
		for k, v := range evt.Headers {
			headers[k] = v
		}
		if evt.Type != "" {
			headers[TypeHeader] = evt.Type
		}
	}

	entry, err := s.outbox.Enqueue(ctx, tx, model.CreateEntry{
		Topic:        evt.Topic,
		PartitionKey: evt.Key,
		Headers:      headers,
		Payload:      payload,
	})
	if err != nil {
		return model.OutboxEntry{}, fmt.Errorf("events: enqueue: %w", err)
	}

	return entry, nil
}

// NotifyCommitted signals the relay worker that new work is available. Call
// it only after the transaction that carried the enqueue has committed; a
// signal for an uncommitted entry is a wasted wake-up.
func (s *Service) NotifyCommitted() {
	if s.notifier != nil {
		s.notifier.Notify()
	}
}
