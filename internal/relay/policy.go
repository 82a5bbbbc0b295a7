package relay

import (
	"fmt"
)

// Policy decides when a claimed batch's removal becomes durable relative to
// publishing. It is injected into the Relay so the delivery guarantee is a
// configuration concern rather than a structural fork.
type Policy interface {
	// Name reports the config-facing policy name.
	Name() string
	// Claimed runs after a non-empty batch is claimed and before any publish.
	Claimed(batch Batch) error
	// Resolve runs once publishing finished. publishErr is nil when every
	// entry in the batch was acknowledged, otherwise the first failure.
	Resolve(batch Batch, publishErr error) error
}

const (
	PolicyAtLeastOnce = "at_least_once"
	PolicyAtMostOnce  = "at_most_once"
)

// PolicyFromName resolves a configured policy name.
func PolicyFromName(name string) (Policy, error) {
	switch name {
	case PolicyAtLeastOnce, "":
		return AtLeastOnce{}, nil
	case PolicyAtMostOnce:
		return AtMostOnce{}, nil
	default:
		return nil, fmt.Errorf("relay: unknown delivery policy %q", name)
	}
}

// AtLeastOnce keeps the claiming transaction open while the batch is
// published and commits it only when every publish succeeded. Any failure
// rolls the whole batch back to pending for a later cycle, so no entry is
// ever silently dropped. A crash between broker ack and commit causes a
// safe re-send; downstream consumers must tolerate duplicates.
type AtLeastOnce struct{}

func (AtLeastOnce) Name() string { return PolicyAtLeastOnce }

func (AtLeastOnce) Claimed(Batch) error { return nil }

func (AtLeastOnce) Resolve(batch Batch, publishErr error) error {
	if publishErr != nil {
		if err := batch.Rollback(); err != nil {
			return fmt.Errorf("relay: rollback claimed batch: %w", err)
		}
		return nil
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("relay: commit claimed batch: %w", err)
	}
	return nil
}

// AtMostOnce commits the claim before anything is published. Entries behind
// a failed publish in the same batch are already deleted and therefore
// permanently lost. Cheaper than AtLeastOnce but unsafe for events that
// must never be dropped.
type AtMostOnce struct{}

func (AtMostOnce) Name() string { return PolicyAtMostOnce }

func (AtMostOnce) Claimed(batch Batch) error {
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("relay: commit claimed batch: %w", err)
	}
	return nil
}

func (AtMostOnce) Resolve(Batch, error) error { return nil }
