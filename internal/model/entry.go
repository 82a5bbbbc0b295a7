package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Headers carries out-of-band event metadata (e.g. an event-type
// discriminator). It is persisted as a JSONB column.
type Headers map[string]string

// Value implements driver.Valuer. A nil map is stored as NULL.
func (h Headers) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner. NULL scans to a nil map.
func (h *Headers) Scan(src any) error {
	if src == nil {
		*h = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("headers: cannot scan %T", src)
	}

	return json.Unmarshal(raw, h)
}

// OutboxEntry is a single pending event row in the outbox table. Entries are
// immutable after creation; presence in the table is the pending state.
type OutboxEntry struct {
	ID           string    `db:"id"`
	Topic        string    `db:"topic"`
	PartitionKey string    `db:"partition_key"` // empty = broker assigns the partition
	Headers      Headers   `db:"headers"`
	Payload      []byte    `db:"payload"` // nil = payload-less notification
	Created      time.Time `db:"created"`
}

// CreateEntry contains the data required to enqueue a new outbox entry. The
// ID and creation timestamp are assigned at insert time.
type CreateEntry struct {
	Topic        string
	PartitionKey string
	Headers      Headers
	Payload      []byte
}
