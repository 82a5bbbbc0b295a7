package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/dustin10/outbox-relay/internal/config"
	"github.com/dustin10/outbox-relay/internal/db"
	"github.com/dustin10/outbox-relay/internal/repository"
	"github.com/dustin10/outbox-relay/internal/service/events"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the outbox with demo events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewPostgresConnection(cfg.Postgres.DSN, db.PostgresOpts{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
			PingTimeout:     cfg.Postgres.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo outbox events...")

		if err := seedEvents(cmd.Context(), sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

// seedEvents writes a few demo events the way a business transaction would:
// all inside one transaction, through the events service.
func seedEvents(ctx context.Context, dbx *sqlx.DB) error {
	svc := events.New(repository.NewOutboxRepository(dbx), nil)

	demo := []events.Event{
		{
			Topic:   "user",
			Key:     "u-1",
			Type:    "USER_CREATED",
			Payload: map[string]string{"id": "u-1", "username": "jake", "email": "jake@jake.jake"},
		},
		{
			Topic:   "article",
			Key:     "a-1",
			Type:    "ARTICLE_CREATED",
			Payload: map[string]string{"id": "a-1", "slug": "how-to-train-your-dragon", "author": "u-1"},
		},
		{
			Topic: "user",
			Key:   "u-1",
			Type:  "USER_VERIFIED",
			// payload-less notification
		},
	}

	tx, err := dbx.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, evt := range demo {
		entry, err := svc.Enqueue(ctx, tx, evt)
		if err != nil {
			return fmt.Errorf("enqueue %s/%s: %w", evt.Topic, evt.Type, err)
		}
		log.Printf("enqueued %s on %s", entry.ID, entry.Topic)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	svc.NotifyCommitted()
	return nil
}
