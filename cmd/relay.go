package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dustin10/outbox-relay/internal/config"
	"github.com/dustin10/outbox-relay/internal/db"
	httpSrv "github.com/dustin10/outbox-relay/internal/http"
	"github.com/dustin10/outbox-relay/internal/kafka"
	"github.com/dustin10/outbox-relay/internal/logger"
	"github.com/dustin10/outbox-relay/internal/metrics"
	"github.com/dustin10/outbox-relay/internal/relay"
	"github.com/dustin10/outbox-relay/internal/repository"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the outbox relay worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger.Init(cfg.Log.Level)
		defer logger.Sync()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		dbx, err := db.NewPostgresConnection(cfg.Postgres.DSN, db.PostgresOpts{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
			PingTimeout:     cfg.Postgres.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer dbx.Close()

		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PublishTimeout)
		defer func() { _ = producer.Close() }()

		policy, err := relay.PolicyFromName(cfg.Relay.Policy)
		if err != nil {
			return err
		}

		notifier := relay.NewNotifier()
		w := relay.New(repository.NewOutboxRepository(dbx), producer, policy, notifier)
		if cfg.Relay.Interval > 0 {
			w.Interval = cfg.Relay.Interval
		}
		if cfg.Relay.BatchSize > 0 {
			w.BatchSize = cfg.Relay.BatchSize
		}

		admin := httpSrv.NewServer(dbx)
		go func() {
			logger.Log.Info("admin server starting", zap.String("addr", cfg.Admin.Addr))
			if err := admin.Start(cfg.Admin.Addr); err != nil {
				logger.Log.Warn("admin server exited", zap.Error(err))
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runErr := w.Run(ctx)

		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = admin.Shutdown(shCtx)

		return runErr
	},
}
