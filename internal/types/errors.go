package types

import "errors"

// Sentinel errors shared by actors and handlers. Operations wrap them with
// context via fmt.Errorf("...: %w", ...); handlers map them to HTTP status
// codes with errors.Is.
var (
	// ErrBadRequest marks malformed or incomplete input. Never retried.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound marks an unknown user, wine, session or participant.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a duplicate registration or session re-initialization.
	ErrConflict = errors.New("already exists")

	// ErrUnauthenticated marks missing or invalid credentials. Callers cannot
	// distinguish an unknown identity from a wrong password.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrSessionEnded marks a mutation attempted on an ended session.
	ErrSessionEnded = errors.New("session ended")
)
