package repository

import "context"

// KVStore defines the flat key-value persistence interface the contact
// repository is built on. Keys are ordinary strings; values are opaque
// JSON-encoded payloads.
type KVStore interface {
	// Set stores value under key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetByPrefix returns the values of all keys starting with prefix,
	// in ascending key order.
	GetByPrefix(ctx context.Context, prefix string) ([][]byte, error)
}
