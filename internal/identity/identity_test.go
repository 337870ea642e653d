package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tcorreia/wine-rater/internal/store"
	"github.com/tcorreia/wine-rater/internal/types"
)

func testConfig() Config {
	// MinCost keeps the hashing fast in tests.
	return Config{TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}
}

func newTestActor(t *testing.T, name string, st store.Store, cfg Config) *Actor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(name, st, cfg, logger)
	t.Cleanup(a.Stop)
	return a
}

func registerTestUser(t *testing.T, a *Actor) *types.User {
	t.Helper()
	user, err := a.Register(context.Background(), "maria", "maria@example.com", "tinto123")
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		user, err := a.Register(ctx, "maria", "maria@example.com", "tinto123")
		require.NoError(t, err)

		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "maria", user.Username)
		assert.Equal(t, "maria@example.com", user.Email)
		assert.NotEqual(t, "tinto123", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("tinto123")))
	})

	t.Run("MissingFields", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		_, err := a.Register(ctx, "maria", "", "tinto123")
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("SecondRegistrationConflicts", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		registerTestUser(t, a)

		_, err := a.Register(ctx, "other", "other@example.com", "branco456")
		assert.ErrorIs(t, err, types.ErrConflict)

		// The original profile is untouched.
		user, err := a.GetUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "maria", user.Username)
	})
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		user := registerTestUser(t, a)

		resp, err := a.Authenticate(ctx, "maria@example.com", "tinto123")
		require.NoError(t, err)
		assert.Equal(t, user.ID, resp.UserID)
		assert.NotEmpty(t, resp.Token)
		assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, 5*time.Second)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		registerTestUser(t, a)

		_, err := a.Authenticate(ctx, "maria@example.com", "wrong")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("WrongEmail", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		registerTestUser(t, a)

		_, err := a.Authenticate(ctx, "other@example.com", "tinto123")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("UnregisteredIdentity", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		_, err := a.Authenticate(ctx, "maria@example.com", "tinto123")
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
	})

	t.Run("TokensAreIndependent", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		registerTestUser(t, a)

		first, err := a.Authenticate(ctx, "maria@example.com", "tinto123")
		require.NoError(t, err)
		second, err := a.Authenticate(ctx, "maria@example.com", "tinto123")
		require.NoError(t, err)
		assert.NotEqual(t, first.Token, second.Token)

		// Both stay valid side by side.
		ok, err := a.VerifyToken(ctx, first.Token)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = a.VerifyToken(ctx, second.Token)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestVerifyToken(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidToken", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		registerTestUser(t, a)
		resp, err := a.Authenticate(ctx, "maria@example.com", "tinto123")
		require.NoError(t, err)

		ok, err := a.VerifyToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("UnknownToken", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		ok, err := a.VerifyToken(ctx, "not-a-token")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("EmptyToken", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		ok, err := a.VerifyToken(ctx, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		cfg := Config{TokenTTL: -time.Minute, BcryptCost: bcrypt.MinCost}
		a := newTestActor(t, "a1", store.NewMemoryStore(), cfg)
		registerTestUser(t, a)
		resp, err := a.Authenticate(ctx, "maria@example.com", "tinto123")
		require.NoError(t, err)

		ok, err := a.VerifyToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RevokedToken", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		registerTestUser(t, a)
		resp, err := a.Authenticate(ctx, "maria@example.com", "tinto123")
		require.NoError(t, err)

		require.NoError(t, a.RevokeToken(ctx, resp.Token))
		ok, err := a.VerifyToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("RevokeUnknownTokenSucceeds", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		assert.NoError(t, a.RevokeToken(ctx, "not-a-token"))
	})

	t.Run("SurvivesPassivation", func(t *testing.T) {
		st := store.NewMemoryStore()
		a := newTestActor(t, "a1", st, testConfig())
		registerTestUser(t, a)
		resp, err := a.Authenticate(ctx, "maria@example.com", "tinto123")
		require.NoError(t, err)
		a.Stop()

		// A fresh instance rehydrates the token from the store.
		b := newTestActor(t, "a1", st, testConfig())
		ok, err := b.VerifyToken(ctx, resp.Token)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()

	t.Run("NotRegistered", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		_, err := a.GetUser(ctx)
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("SurvivesPassivation", func(t *testing.T) {
		st := store.NewMemoryStore()
		a := newTestActor(t, "a1", st, testConfig())
		user := registerTestUser(t, a)
		a.Stop()

		b := newTestActor(t, "a1", st, testConfig())
		got, err := b.GetUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, user.Username, got.Username)
	})
}

func TestWineCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("AddAndGet", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		wine, err := a.AddWine(ctx, types.WineEntry{
			Name:    "Barca Velha",
			Type:    "red",
			Vintage: 2011,
			Origin:  "Douro",
			Ratings: types.Ratings{Aroma: 5, Taste: 4},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, wine.ID)
		assert.Equal(t, 4.5, wine.AverageRating)
		assert.False(t, wine.CreatedAt.IsZero())
		assert.Equal(t, wine.CreatedAt, wine.UpdatedAt)

		got, err := a.GetWine(ctx, wine.ID)
		require.NoError(t, err)
		assert.Equal(t, wine.Name, got.Name)
	})

	t.Run("AddWithoutName", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		_, err := a.AddWine(ctx, types.WineEntry{Type: "red"})
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		_, err := a.GetWine(ctx, "missing")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("ListSortedMostRecentFirst", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		first, err := a.AddWine(ctx, types.WineEntry{Name: "first"})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		second, err := a.AddWine(ctx, types.WineEntry{Name: "second"})
		require.NoError(t, err)

		wines, err := a.ListWines(ctx)
		require.NoError(t, err)
		require.Len(t, wines, 2)
		assert.Equal(t, second.ID, wines[0].ID)
		assert.Equal(t, first.ID, wines[1].ID)
	})

	t.Run("UpdateMergesFields", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		wine, err := a.AddWine(ctx, types.WineEntry{
			Name:    "Barca Velha",
			Origin:  "Douro",
			Ratings: types.Ratings{Aroma: 3},
		})
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)
		notes := "opens up after an hour"
		updated, err := a.UpdateWine(ctx, wine.ID, types.WineUpdate{
			Notes:   &notes,
			Ratings: &types.Ratings{Aroma: 5, Taste: 5},
		})
		require.NoError(t, err)

		assert.Equal(t, "Barca Velha", updated.Name)
		assert.Equal(t, "Douro", updated.Origin)
		assert.Equal(t, notes, updated.Notes)
		assert.Equal(t, 5.0, updated.AverageRating)
		assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		_, err := a.UpdateWine(ctx, "missing", types.WineUpdate{})
		assert.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		a := newTestActor(t, "a1", store.NewMemoryStore(), testConfig())
		wine, err := a.AddWine(ctx, types.WineEntry{Name: "Barca Velha"})
		require.NoError(t, err)

		require.NoError(t, a.DeleteWine(ctx, wine.ID))
		_, err = a.GetWine(ctx, wine.ID)
		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.ErrorIs(t, a.DeleteWine(ctx, wine.ID), types.ErrNotFound)
	})

	t.Run("SurvivesPassivation", func(t *testing.T) {
		st := store.NewMemoryStore()
		a := newTestActor(t, "a1", st, testConfig())
		wine, err := a.AddWine(ctx, types.WineEntry{Name: "Barca Velha"})
		require.NoError(t, err)
		a.Stop()

		b := newTestActor(t, "a1", st, testConfig())
		wines, err := b.ListWines(ctx)
		require.NoError(t, err)
		require.Len(t, wines, 1)
		assert.Equal(t, wine.ID, wines[0].ID)
	})

	t.Run("CollectionsAreIsolatedPerActor", func(t *testing.T) {
		st := store.NewMemoryStore()
		a := newTestActor(t, "a1", st, testConfig())
		b := newTestActor(t, "a2", st, testConfig())

		_, err := a.AddWine(ctx, types.WineEntry{Name: "Barca Velha"})
		require.NoError(t, err)

		wines, err := b.ListWines(ctx)
		require.NoError(t, err)
		assert.Empty(t, wines)
	})
}
