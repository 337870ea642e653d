package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPostgresStore(mock, logger), mock
}

func TestPostgresStoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT value FROM actor_state").
			WithArgs("a1", "user").
			WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"id":"u1"}`)))

		got, err := s.Get(ctx, "a1", "user")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"id":"u1"}`), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT value FROM actor_state").
			WithArgs("a1", "user").
			WillReturnError(pgx.ErrNoRows)

		_, err := s.Get(ctx, "a1", "user")
		assert.ErrorIs(t, err, ErrKeyNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("QueryError", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT value FROM actor_state").
			WithArgs("a1", "user").
			WillReturnError(errors.New("connection reset"))

		_, err := s.Get(ctx, "a1", "user")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrKeyNotFound)
	})
}

func TestPostgresStorePut(t *testing.T) {
	ctx := context.Background()

	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO actor_state").
		WithArgs("a1", "wine:1", []byte(`{}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(ctx, "a1", "wine:1", []byte(`{}`)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("Existing", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM actor_state").
			WithArgs("a1", "wine:1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, s.Delete(ctx, "a1", "wine:1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("AbsentKeySucceeds", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("DELETE FROM actor_state").
			WithArgs("a1", "wine:1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		require.NoError(t, s.Delete(ctx, "a1", "wine:1"))
	})
}

func TestPostgresStoreList(t *testing.T) {
	ctx := context.Background()

	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT key, value FROM actor_state").
		WithArgs("a1", "wine:").
		WillReturnRows(pgxmock.NewRows([]string{"key", "value"}).
			AddRow("wine:1", []byte(`{"id":"1"}`)).
			AddRow("wine:2", []byte(`{"id":"2"}`)))

	got, err := s.List(ctx, "a1", "wine:")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, []byte(`{"id":"1"}`), got["wine:1"])
	assert.Equal(t, []byte(`{"id":"2"}`), got["wine:2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
