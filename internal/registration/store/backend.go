package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"regform/internal/platform/config"
	"regform/internal/platform/postgres"
	redisclient "regform/internal/platform/redis"
	"regform/internal/platform/sqlite"
	"regform/internal/registration/models"
)

// RecordStore is satisfied by both Records and AtomicRecords.
type RecordStore interface {
	Load(ctx context.Context, key string) ([]models.RegistrationRecord, error)
	Save(ctx context.Context, key string, records []models.RegistrationRecord) error
}

// Backend is an opened record store plus the health checks and cleanup it needs.
type Backend struct {
	Records RecordStore
	// Checks are named liveness checks for the health endpoint.
	Checks map[string]func(ctx context.Context) error
	closer func() error
}

func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// Open selects the backend named by cfg. Backends with an atomic update get
// AtomicRecords so concurrent submissions never lose an append; SQLite
// relies on the caller serializing load-push-save.
func Open(ctx context.Context, cfg config.Store, log *slog.Logger) (*Backend, error) {
	b := &Backend{Checks: map[string]func(context.Context) error{}}

	switch cfg.Backend {
	case config.StoreMemory:
		b.Records = NewAtomicRecords(NewMemory())

	case config.StoreSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		kv, err := NewSQLite(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		b.Records = NewRecords(kv)
		b.Checks["sqlite"] = db.PingContext
		b.closer = db.Close

	case config.StoreRedis:
		client, err := redisclient.New(ctx, redisclient.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("redis store requires a URL")
		}
		b.Records = NewAtomicRecords(NewRedis(client.Client))
		b.Checks["redis"] = client.Health
		b.closer = client.Close

	case config.StorePostgres:
		db, err := postgres.Open(ctx, postgres.Config{DSN: cfg.PostgresDSN})
		if err != nil {
			return nil, err
		}
		if err := b.usePostgres(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	log.Info("record store ready", "backend", cfg.Backend, "key", cfg.Key)
	return b, nil
}

func (b *Backend) usePostgres(ctx context.Context, db *sql.DB) error {
	kv, err := NewPostgres(ctx, db)
	if err != nil {
		return err
	}
	b.Records = NewAtomicRecords(kv)
	b.Checks["postgres"] = db.PingContext
	b.closer = db.Close
	return nil
}
