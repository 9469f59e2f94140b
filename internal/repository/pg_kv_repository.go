package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier は PgKVStore が必要とする pgxpool.Pool のサブセット
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgKVStore is the PostgreSQL implementation of KVStore, backed by the single
// kv_store table (key TEXT PRIMARY KEY, value JSONB).
type PgKVStore struct {
	db Querier
}

// NewPgKVStore creates a PgKVStore backed by the given pool.
func NewPgKVStore(db Querier) *PgKVStore {
	return &PgKVStore{db: db}
}

// Ensure PgKVStore implements KVStore at compile time.
var _ KVStore = (*PgKVStore)(nil)

// Set upserts the value under key.
func (s *PgKVStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO kv_store (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return err
}

// Get returns the value stored under key, or ErrNotFound.
func (s *PgKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM kv_store WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// GetByPrefix returns all values whose key starts with prefix, ascending by key.
func (s *PgKVStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	rows, err := s.db.Query(ctx,
		`SELECT value FROM kv_store WHERE key LIKE $1 || '%' ORDER BY key`, prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values [][]byte
	for rows.Next() {
		var v []byte
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
