package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStorage persists vault records in Postgres for server deployments
// where the vault must be shared across instances.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage wraps an existing pool and ensures the vault table
// exists.
func NewPGStorage(ctx context.Context, pool *pgxpool.Pool) (*PGStorage, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vault_kv (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("create vault table: %w", err)
	}
	return &PGStorage{pool: pool}, nil
}

func (s *PGStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT v FROM vault_kv WHERE k = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("vault get: %w", err)
	}
	return value, true, nil
}

func (s *PGStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vault_kv (k, v) VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v
	`, key, value)
	if err != nil {
		return fmt.Errorf("vault set: %w", err)
	}
	return nil
}

func (s *PGStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM vault_kv WHERE k = $1`, key); err != nil {
		return fmt.Errorf("vault delete: %w", err)
	}
	return nil
}
