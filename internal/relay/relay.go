package relay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dustin10/outbox-relay/internal/logger"
	"github.com/dustin10/outbox-relay/internal/metrics"
)

// Relay drives claim→publish cycles over the outbox table:
// - claims up to BatchSize of the oldest pending entries,
// - publishes each to its topic,
// - resolves the claim per the configured delivery policy.
//
// Cycles within one Relay are strictly sequential; a wake-up (tick or
// notification) arriving mid-cycle coalesces into at most one pending
// wake-up. Multiple Relay workers may run against the same table: the
// store's skip-locked claim is the only coordination between them.
type Relay struct {
	// Dependencies
	Source    Source
	Publisher Publisher
	Policy    Policy
	Notifier  *Notifier // optional; nil disables signal-driven wake-ups

	// Behavior
	Interval  time.Duration // time between periodic sweeps
	BatchSize int           // max entries claimed per cycle

	log *zap.Logger
}

// New builds a relay worker with sane defaults.
func New(source Source, publisher Publisher, policy Policy, notifier *Notifier) *Relay {
	return &Relay{
		Source:    source,
		Publisher: publisher,
		Policy:    policy,
		Notifier:  notifier,
		Interval:  500 * time.Millisecond,
		BatchSize: 50,
		log:       logger.Named("relay"),
	}
}

// Run executes the worker loop until ctx is cancelled. It returns nil on
// graceful shutdown, letting an in-flight cycle resolve its transaction
// first. A store error while claiming is fatal: Run returns it and the
// supervisor is expected to restart the process. Broker publish failures
// are not fatal; the policy decides whether the batch is retried or lost.
func (r *Relay) Run(ctx context.Context) error {
	if r.Source == nil || r.Publisher == nil || r.Policy == nil {
		return fmt.Errorf("relay: source, publisher and policy are required")
	}
	if r.Interval <= 0 {
		r.Interval = 500 * time.Millisecond
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 50
	}

	// nil channel when no notifier is wired; that select arm never fires
	// and the ticker alone drives the loop.
	var wake <-chan struct{}
	if r.Notifier != nil {
		wake = r.Notifier.Wake()
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.log.Info("relay started",
		zap.String("policy", r.Policy.Name()),
		zap.Duration("interval", r.Interval),
		zap.Int("batch_size", r.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopped")
			return nil
		case <-ticker.C:
		case <-wake:
		}

		if err := r.drain(ctx); err != nil {
			if ctx.Err() != nil {
				// cancellation landed mid-cycle; this is a shutdown, not a
				// store failure, and must not look fatal to the supervisor
				r.log.Info("relay stopped")
				return nil
			}
			r.log.Error("relay terminating", zap.Error(err))
			return err
		}
	}
}

// drain runs cycles back to back while full batches keep coming, so a
// backlog clears faster than the sweep interval. It stops as soon as a
// cycle comes up short, fails a publish, or ctx is cancelled.
func (r *Relay) drain(ctx context.Context) error {
	for ctx.Err() == nil {
		full, err := r.cycle(ctx)
		if err != nil {
			return err
		}
		if !full {
			return nil
		}
	}

	return nil
}

// cycle claims one batch and publishes it. It reports whether the batch was
// full and fully published, i.e. whether more pending work is likely.
func (r *Relay) cycle(ctx context.Context) (bool, error) {
	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	batch, err := r.Source.Claim(ctx, r.BatchSize)
	if err != nil {
		return false, fmt.Errorf("relay: claim batch: %w", err)
	}

	entries := batch.Entries()
	if len(entries) == 0 {
		_ = batch.Rollback()
		metrics.CyclesTotal.WithLabelValues(r.Policy.Name(), "empty").Inc()
		return false, nil
	}

	if err := r.Policy.Claimed(batch); err != nil {
		return false, err
	}

	// Publishing runs detached from the shutdown signal: the claim may
	// already be committed, so aborting the rest of the batch here would
	// lose entries under at-most-once. The producer's own timeout still
	// bounds each send; the run context is consulted again between cycles.
	pubCtx := context.WithoutCancel(ctx)

	var pubErr error
	published := 0
	for _, entry := range entries {
		if err := r.Publisher.Publish(pubCtx, entry); err != nil {
			pubErr = err
			break
		}
		published++
		metrics.EntriesTotal.WithLabelValues("published").Inc()
	}

	if err := r.Policy.Resolve(batch, pubErr); err != nil {
		return false, err
	}

	if pubErr != nil {
		failed := 1
		if r.Policy.Name() == PolicyAtMostOnce {
			// the claim is already committed, so the unattempted remainder
			// of the batch is lost along with the failing entry
			failed += len(entries) - published - 1
		}
		metrics.EntriesTotal.WithLabelValues("failed").Add(float64(failed))
		metrics.CyclesTotal.WithLabelValues(r.Policy.Name(), "publish_failed").Inc()
		r.log.Warn("publish failed, batch resolved per policy",
			zap.String("policy", r.Policy.Name()),
			zap.Int("claimed", len(entries)),
			zap.Int("published", published),
			zap.Error(pubErr),
		)
		// Leave retrying to the next sweep rather than spinning on a
		// broker that keeps refusing the same entry.
		return false, nil
	}

	r.log.Info("processed outbox entries", zap.Int("count", len(entries)))
	metrics.CyclesTotal.WithLabelValues(r.Policy.Name(), "ok").Inc()

	return len(entries) == r.BatchSize, nil
}
