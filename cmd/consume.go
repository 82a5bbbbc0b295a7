package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dustin10/outbox-relay/internal/config"
	"github.com/dustin10/outbox-relay/internal/kafka"
	"github.com/dustin10/outbox-relay/internal/logger"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Tail the event topics and log each delivered event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		defer logger.Sync()

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "outbox-relay"
		}

		consumer := kafka.NewConsumerFromConfig(kafka.ConsumerConfig{
			Brokers:        cfg.Kafka.Brokers,
			Topics:         cfg.Kafka.Topics,
			GroupID:        groupID + "-tail",
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Log.Info("tailing topics", zap.Strings("topics", cfg.Kafka.Topics))

		for {
			m, err := consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("kafka fetch: %w", err)
			}

			fields := []zap.Field{
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.ByteString("key", m.Key),
				zap.ByteString("value", m.Value),
			}
			for _, h := range m.Headers {
				fields = append(fields, zap.ByteString("header."+h.Key, h.Value))
			}
			logger.Log.Info("event received", fields...)

			if err := consumer.Commit(ctx, m); err != nil {
				logger.Log.Warn("commit failed", zap.Error(err))
			}
		}
	},
}
