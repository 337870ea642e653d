package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when no value exists under the key.
var ErrKeyNotFound = errors.New("key not found")

// Store is the durable key-value storage backing every actor. Keys are scoped
// by actor ID: no two actors ever read or write the same row, which is what
// makes cross-actor locking unnecessary.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, actorID, key string) ([]byte, error)

	// Put durably writes value under key, replacing any previous value.
	Put(ctx context.Context, actorID, key string, value []byte) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, actorID, key string) error

	// List returns all key/value pairs whose key starts with prefix.
	List(ctx context.Context, actorID, prefix string) (map[string][]byte, error)
}
