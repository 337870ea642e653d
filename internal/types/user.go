package types

import "time"

// User is the single profile owned by an identity actor. At most one User
// exists per actor; absence means the identity was never registered.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuthToken is an opaque bearer token minted on successful authentication.
// Multiple valid tokens may coexist for the same user.
type AuthToken struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token no longer authorizes requests.
func (t AuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// AuthResponse is returned by a successful authenticate call.
type AuthResponse struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
