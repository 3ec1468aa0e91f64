package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"regform/pkg/platform/sentinel"
	"regform/pkg/platform/tx"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS registration_kv (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres keeps values in a JSONB column and appends under a row lock.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates the table if needed.
func NewPostgres(ctx context.Context, db *sql.DB) (*Postgres, error) {
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create registration_kv table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT value FROM registration_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`INSERT INTO registration_kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE. A missing row is first
// inserted empty so concurrent first writers also serialize on the lock.
func (s *Postgres) Update(ctx context.Context, key string, fn UpdateFunc) error {
	err := tx.Run(ctx, s.db, func(ctx context.Context) error {
		q := tx.Conn(ctx, s.db)
		if _, err := q.ExecContext(ctx,
			`INSERT INTO registration_kv (key, value) VALUES ($1, '[]'::jsonb) ON CONFLICT (key) DO NOTHING`, key); err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
		var current []byte
		if err := q.QueryRowContext(ctx, `SELECT value FROM registration_kv WHERE key = $1 FOR UPDATE`, key).Scan(&current); err != nil {
			return fmt.Errorf("lock %s: %w", key, err)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return s.Set(ctx, key, next)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}
