package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/tcorreia/wine-rater/internal/actor"
	"github.com/tcorreia/wine-rater/internal/store"
	"github.com/tcorreia/wine-rater/internal/types"
)

// Storage keys owned by one identity actor.
const (
	userKey     = "user"
	tokenPrefix = "token:"
	winePrefix  = "wine:"
)

// Config tunes the identity actor's auth behaviour.
type Config struct {
	TokenTTL   time.Duration
	BcryptCost int
}

// DefaultConfig issues tokens valid for 24 hours.
func DefaultConfig() Config {
	return Config{
		TokenTTL:   24 * time.Hour,
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Actor owns one user's profile, issued tokens and wine collection. Every
// operation goes through the embedded Runner, so the in-memory caches below
// are only ever touched by the actor's single operation stream.
type Actor struct {
	*actor.Runner

	logger *slog.Logger
	store  store.Store
	cfg    Config

	user       *types.User
	userLoaded bool
	tokens     *cache.Cache
	wines      map[string]*types.WineEntry
	hydrated   bool
}

// New creates the identity actor registered under name. State is hydrated
// lazily from the store on first access.
func New(name string, st store.Store, cfg Config, logger *slog.Logger) *Actor {
	return &Actor{
		Runner: actor.NewRunner(name),
		logger: logger.With(slog.String("actor", name)),
		store:  st,
		cfg:    cfg,
		tokens: cache.New(cfg.TokenTTL, time.Hour),
		wines:  make(map[string]*types.WineEntry),
	}
}

// Register creates the actor's User. A second registration fails with
// types.ErrConflict and leaves the original untouched.
func (a *Actor) Register(ctx context.Context, username, email, password string) (*types.User, error) {
	var user *types.User
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		user, err = a.register(ctx, username, email, password)
	}); doErr != nil {
		return nil, doErr
	}
	return user, err
}

func (a *Actor) register(ctx context.Context, username, email, password string) (*types.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("username, email and password are required: %w", types.ErrBadRequest)
	}
	existing, err := a.loadUser(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user already registered: %w", types.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &types.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := a.put(ctx, userKey, user); err != nil {
		return nil, err
	}
	a.user = user
	a.logger.InfoContext(ctx, "User registered", slog.String("user_id", user.ID))
	return user, nil
}

// Authenticate checks the credentials and mints a fresh bearer token valid
// for the configured TTL. Unknown identity and wrong password are
// indistinguishable to the caller.
func (a *Actor) Authenticate(ctx context.Context, email, password string) (*types.AuthResponse, error) {
	var resp *types.AuthResponse
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		resp, err = a.authenticate(ctx, email, password)
	}); doErr != nil {
		return nil, doErr
	}
	return resp, err
}

func (a *Actor) authenticate(ctx context.Context, email, password string) (*types.AuthResponse, error) {
	user, err := a.loadUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Email != email {
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrUnauthenticated)
	}

	token := uuid.NewString()
	authToken := types.AuthToken{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(a.cfg.TokenTTL),
	}
	if err := a.put(ctx, tokenPrefix+token, authToken); err != nil {
		return nil, err
	}
	a.tokens.Set(token, authToken, time.Until(authToken.ExpiresAt))

	return &types.AuthResponse{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: authToken.ExpiresAt,
	}, nil
}

// VerifyToken reports whether token was issued by this actor and has neither
// expired nor been revoked. Checked cache-first, falling back to the store.
func (a *Actor) VerifyToken(ctx context.Context, token string) (bool, error) {
	var ok bool
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		ok, err = a.verifyToken(ctx, token)
	}); doErr != nil {
		return false, doErr
	}
	return ok, err
}

func (a *Actor) verifyToken(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if v, found := a.tokens.Get(token); found {
		return !v.(types.AuthToken).Expired(time.Now()), nil
	}

	raw, err := a.store.Get(ctx, a.Name(), tokenPrefix+token)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("token lookup failed: %w", err)
	}
	var authToken types.AuthToken
	if err := json.Unmarshal(raw, &authToken); err != nil {
		return false, fmt.Errorf("corrupt token record: %w", err)
	}
	if authToken.Expired(time.Now()) {
		return false, nil
	}
	a.tokens.Set(token, authToken, time.Until(authToken.ExpiresAt))
	return true, nil
}

// RevokeToken invalidates the token. Revoking an unknown token succeeds.
func (a *Actor) RevokeToken(ctx context.Context, token string) error {
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		err = a.revokeToken(ctx, token)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (a *Actor) revokeToken(ctx context.Context, token string) error {
	if err := a.store.Delete(ctx, a.Name(), tokenPrefix+token); err != nil {
		return fmt.Errorf("token revoke failed: %w", err)
	}
	a.tokens.Delete(token)
	return nil
}

// GetUser returns the actor's profile, or types.ErrNotFound when the identity
// was never registered.
func (a *Actor) GetUser(ctx context.Context) (*types.User, error) {
	var user *types.User
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		user, err = a.loadUser(ctx)
		if err == nil && user == nil {
			err = fmt.Errorf("user not registered: %w", types.ErrNotFound)
		}
	}); doErr != nil {
		return nil, doErr
	}
	return user, err
}

// AddWine appends a wine to the collection, generating its id and timestamps.
func (a *Actor) AddWine(ctx context.Context, entry types.WineEntry) (*types.WineEntry, error) {
	var wine *types.WineEntry
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		wine, err = a.addWine(ctx, entry)
	}); doErr != nil {
		return nil, doErr
	}
	return wine, err
}

func (a *Actor) addWine(ctx context.Context, entry types.WineEntry) (*types.WineEntry, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("wine name is required: %w", types.ErrBadRequest)
	}
	now := time.Now()
	entry.ID = uuid.NewString()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	entry.AverageRating = entry.Ratings.Average()

	if err := a.put(ctx, winePrefix+entry.ID, &entry); err != nil {
		return nil, err
	}
	a.wines[entry.ID] = &entry
	return &entry, nil
}

// GetWine returns the wine with the given id.
func (a *Actor) GetWine(ctx context.Context, id string) (*types.WineEntry, error) {
	var wine *types.WineEntry
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		wine, err = a.getWine(ctx, id)
	}); doErr != nil {
		return nil, doErr
	}
	return wine, err
}

func (a *Actor) getWine(ctx context.Context, id string) (*types.WineEntry, error) {
	if wine, ok := a.wines[id]; ok {
		return wine, nil
	}
	raw, err := a.store.Get(ctx, a.Name(), winePrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			return nil, fmt.Errorf("wine %s: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("wine lookup failed: %w", err)
	}
	var wine types.WineEntry
	if err := json.Unmarshal(raw, &wine); err != nil {
		return nil, fmt.Errorf("corrupt wine record %s: %w", id, err)
	}
	a.wines[id] = &wine
	return &wine, nil
}

// ListWines returns the collection sorted most recent first. The cache is
// hydrated from the store by prefix scan on the first call of the actor's
// lifetime and served from memory afterwards.
func (a *Actor) ListWines(ctx context.Context) ([]*types.WineEntry, error) {
	var wines []*types.WineEntry
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		wines, err = a.listWines(ctx)
	}); doErr != nil {
		return nil, doErr
	}
	return wines, err
}

func (a *Actor) listWines(ctx context.Context) ([]*types.WineEntry, error) {
	if err := a.hydrateWines(ctx); err != nil {
		return nil, err
	}
	out := make([]*types.WineEntry, 0, len(a.wines))
	for _, w := range a.wines {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (a *Actor) hydrateWines(ctx context.Context) error {
	if a.hydrated {
		return nil
	}
	entries, err := a.store.List(ctx, a.Name(), winePrefix)
	if err != nil {
		return fmt.Errorf("wine collection scan failed: %w", err)
	}
	for key, raw := range entries {
		var wine types.WineEntry
		if err := json.Unmarshal(raw, &wine); err != nil {
			a.logger.WarnContext(ctx, "Skipping corrupt wine record", slog.String("key", key), slog.Any("error", err))
			continue
		}
		if _, ok := a.wines[wine.ID]; !ok {
			a.wines[wine.ID] = &wine
		}
	}
	a.hydrated = true
	return nil
}

// UpdateWine merges the provided fields over the stored entry and refreshes
// UpdatedAt. Omitted fields are retained.
func (a *Actor) UpdateWine(ctx context.Context, id string, update types.WineUpdate) (*types.WineEntry, error) {
	var wine *types.WineEntry
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		wine, err = a.updateWine(ctx, id, update)
	}); doErr != nil {
		return nil, doErr
	}
	return wine, err
}

func (a *Actor) updateWine(ctx context.Context, id string, update types.WineUpdate) (*types.WineEntry, error) {
	existing, err := a.getWine(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *existing
	update.Apply(&updated)
	updated.UpdatedAt = time.Now()

	if err := a.put(ctx, winePrefix+id, &updated); err != nil {
		return nil, err
	}
	a.wines[id] = &updated
	return &updated, nil
}

// DeleteWine removes the entry from cache and store.
func (a *Actor) DeleteWine(ctx context.Context, id string) error {
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		err = a.deleteWine(ctx, id)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (a *Actor) deleteWine(ctx context.Context, id string) error {
	if _, err := a.getWine(ctx, id); err != nil {
		return err
	}
	if err := a.store.Delete(ctx, a.Name(), winePrefix+id); err != nil {
		return fmt.Errorf("wine delete failed: %w", err)
	}
	delete(a.wines, id)
	return nil
}

// loadUser hydrates the profile from the store on first use.
func (a *Actor) loadUser(ctx context.Context) (*types.User, error) {
	if a.userLoaded {
		return a.user, nil
	}
	raw, err := a.store.Get(ctx, a.Name(), userKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			a.userLoaded = true
			return nil, nil
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	var user types.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("corrupt user record: %w", err)
	}
	a.user = &user
	a.userLoaded = true
	return a.user, nil
}

func (a *Actor) put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := a.store.Put(ctx, a.Name(), key, raw); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}
