package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/dustin10/outbox-relay/internal/logger"
	"github.com/dustin10/outbox-relay/internal/model"
	"github.com/dustin10/outbox-relay/internal/relay"
)

var (
	// ErrPublishTimeout indicates the broker did not acknowledge the message
	// within the configured publish timeout.
	ErrPublishTimeout = errors.New("kafka: publish timed out")
	// ErrBrokerRejected indicates the broker returned a protocol-level error
	// for the message.
	ErrBrokerRejected = errors.New("kafka: broker rejected message")
)

// Producer publishes outbox entries to Kafka. A single Producer is shared by
// the relay worker; per-message topics are taken from the entry.
type Producer struct {
	w       *kafka.Writer
	timeout time.Duration
}

var _ relay.Publisher = (*Producer)(nil)

// NewProducer builds a Producer over the given bootstrap brokers. The
// timeout bounds every publish; it defaults to 5s.
func NewProducer(brokers []string, timeout time.Duration) *Producer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           timeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Completion:             logDelivery,
	}

	return &Producer{w: w, timeout: timeout}
}

// logDelivery traces broker-assigned coordinates once the write resolves.
// The writer only reports partition/offset asynchronously, so the success
// trace lives here rather than in Publish.
func logDelivery(msgs []kafka.Message, err error) {
	if err != nil {
		return
	}
	for _, m := range msgs {
		logger.Log.Debug("published event",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
		)
	}
}

// buildMessage maps an outbox entry onto the wire format: topic from the
// entry, partition key as the message key when present, headers 1:1, and
// the payload as the body (absent payload sends an empty body).
func buildMessage(entry model.OutboxEntry) kafka.Message {
	msg := kafka.Message{
		Topic: entry.Topic,
		Value: entry.Payload,
	}
	if entry.PartitionKey != "" {
		msg.Key = []byte(entry.PartitionKey)
	}
	for k, v := range entry.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	return msg
}

// Publish sends one entry to its topic, blocking until the broker acks or
// the timeout elapses. Failures are classified but not retried here; retry
// policy belongs to the relay cycle.
func (p *Producer) Publish(ctx context.Context, entry model.OutboxEntry) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.w.WriteMessages(ctx, buildMessage(entry))
	if err == nil {
		return nil
	}

	classified := classify(err)
	logger.Log.Error("publish failed",
		zap.String("topic", entry.Topic),
		zap.String("partition_key", entry.PartitionKey),
		zap.Error(err),
	)

	return fmt.Errorf("%w: topic %q: %v", classified, entry.Topic, err)
}

// classify buckets a writer error into the publish error taxonomy.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrPublishTimeout
	}
	var batch kafka.WriteErrors
	if errors.As(err, &batch) {
		for _, e := range batch {
			if errors.Is(e, context.DeadlineExceeded) {
				return ErrPublishTimeout
			}
		}
	}

	return ErrBrokerRejected
}

// Close flushes and releases the underlying writer.
func (p *Producer) Close() error { return p.w.Close() }
