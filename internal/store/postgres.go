package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies the
// same interface in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore persists actor state in the actor_state table. One row per
// logical key, scoped by actor_id.
type PostgresStore struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresStore(db DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		logger: logger,
		db:     db,
	}
}

func (s *PostgresStore) Get(ctx context.Context, actorID, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx,
		"SELECT value FROM actor_state WHERE actor_id = $1 AND key = $2",
		actorID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("actor state get: query failed: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Put(ctx context.Context, actorID, key string, value []byte) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO actor_state (actor_id, key, value, updated_at)
         VALUES ($1, $2, $3, now())
         ON CONFLICT (actor_id, key) DO UPDATE SET value = $3, updated_at = now()`,
		actorID, key, value)
	if err != nil {
		return fmt.Errorf("actor state put: db upsert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, actorID, key string) error {
	// Deleting an absent key is fine, the row count is not checked.
	_, err := s.db.Exec(ctx,
		"DELETE FROM actor_state WHERE actor_id = $1 AND key = $2",
		actorID, key)
	if err != nil {
		return fmt.Errorf("actor state delete: db delete failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, actorID, prefix string) (map[string][]byte, error) {
	rows, err := s.db.Query(ctx,
		"SELECT key, value FROM actor_state WHERE actor_id = $1 AND key LIKE $2 || '%'",
		actorID, prefix)
	if err != nil {
		return nil, fmt.Errorf("actor state list: query failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("actor state list: scan failed: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("actor state list: rows failed: %w", err)
	}
	return out, nil
}
