package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tcorreia/wine-rater/app/metrics"
	"github.com/tcorreia/wine-rater/internal/actor"
	"github.com/tcorreia/wine-rater/internal/store"
	"github.com/tcorreia/wine-rater/internal/types"
)

// sessionKey is the single storage key owned by a session actor. The whole
// session, roster included, is persisted as one record.
const sessionKey = "session"

// EventSink is the outbound half of a live connection. The session actor is
// the only writer; sends happen inside its serial operation stream.
type EventSink interface {
	Send(event types.SessionEvent) error
	Close() error
}

// Actor owns one tasting session's roster and live connections. All
// operations, including those triggered by inbound websocket messages, are
// serialized through the embedded Runner, so broadcasts go out in the exact
// order the state changes were applied.
type Actor struct {
	*actor.Runner

	logger *slog.Logger
	store  store.Store

	session *types.TastingSession
	loaded  bool
	conns   map[string]EventSink
}

// New creates the session actor registered under name.
func New(name string, st store.Store, logger *slog.Logger) *Actor {
	return &Actor{
		Runner: actor.NewRunner(name),
		logger: logger.With(slog.String("actor", name)),
		store:  st,
		conns:  make(map[string]EventSink),
	}
}

// Create initializes the session. A second create on the same actor fails
// with types.ErrConflict.
func (a *Actor) Create(ctx context.Context, req CreateSessionRequest) (*types.TastingSession, error) {
	var sess *types.TastingSession
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		sess, err = a.create(ctx, req)
	}); doErr != nil {
		return nil, doErr
	}
	return sess, err
}

func (a *Actor) create(ctx context.Context, req CreateSessionRequest) (*types.TastingSession, error) {
	if req.WineName == "" || req.CreatedBy == "" {
		return nil, fmt.Errorf("wineName and createdBy are required: %w", types.ErrBadRequest)
	}
	existing, err := a.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("session already created: %w", types.ErrConflict)
	}

	sess := &types.TastingSession{
		ID:          a.Name(),
		WineName:    req.WineName,
		WineDetails: req.WineDetails,
		CreatedBy:   req.CreatedBy,
		Participants: map[string]*types.Participant{
			req.CreatedBy: {
				ID:        req.CreatedBy,
				Username:  req.CreatorUsername,
				Connected: true,
			},
		},
		CreatedAt: time.Now(),
		Active:    true,
	}
	if err := a.persist(ctx, sess); err != nil {
		return nil, err
	}
	a.session = sess
	a.logger.InfoContext(ctx, "Tasting session created",
		slog.String("wine", sess.WineName),
		slog.String("created_by", sess.CreatedBy),
	)
	return sess, nil
}

// Get returns the session state, or types.ErrNotFound before initialization.
func (a *Actor) Get(ctx context.Context) (*types.TastingSession, error) {
	var sess *types.TastingSession
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		sess, err = a.loadSession(ctx)
		if err == nil && sess == nil {
			err = fmt.Errorf("session not initialized: %w", types.ErrNotFound)
		}
	}); doErr != nil {
		return nil, doErr
	}
	return sess, err
}

// End flips the session inactive, broadcasts the terminal event and closes
// every live connection. Ending an already-ended session is a no-op so the
// terminal event is never duplicated.
func (a *Actor) End(ctx context.Context) error {
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		err = a.end(ctx)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (a *Actor) end(ctx context.Context) error {
	sess, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session not initialized: %w", types.ErrNotFound)
	}
	if !sess.Active {
		return nil
	}

	sess.Active = false
	if err := a.persist(ctx, sess); err != nil {
		return err
	}
	a.broadcast(ctx, types.SessionEvent{Type: types.EventSessionEnded})

	for id, sink := range a.conns {
		if err := sink.Close(); err != nil {
			a.logger.WarnContext(ctx, "Failed to close connection", slog.String("participant", id), slog.Any("error", err))
		}
	}
	a.conns = make(map[string]EventSink)
	a.logger.InfoContext(ctx, "Tasting session ended")
	return nil
}

// Attach registers a live connection for the participant, updates the roster
// and sends the snapshot that lets a late joiner catch up. A second
// connection for the same participant replaces the first.
func (a *Actor) Attach(ctx context.Context, userID, username string, sink EventSink) error {
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		err = a.attach(ctx, userID, username, sink)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (a *Actor) attach(ctx context.Context, userID, username string, sink EventSink) error {
	sess, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session not initialized: %w", types.ErrNotFound)
	}
	if !sess.Active {
		return fmt.Errorf("cannot join: %w", types.ErrSessionEnded)
	}

	// Last connection wins: the replaced socket is closed without touching
	// the participant's connected flag.
	if prev, ok := a.conns[userID]; ok {
		if err := prev.Close(); err != nil {
			a.logger.WarnContext(ctx, "Failed to close replaced connection", slog.String("participant", userID), slog.Any("error", err))
		}
	}
	a.conns[userID] = sink

	participant, known := sess.Participants[userID]
	if !known {
		participant = &types.Participant{
			ID:        userID,
			Username:  username,
			Connected: true,
		}
		sess.Participants[userID] = participant
		if err := a.persist(ctx, sess); err != nil {
			return err
		}
		a.broadcast(ctx, types.SessionEvent{
			Type:        types.EventParticipantJoined,
			Participant: participant,
		})
	} else {
		participant.Connected = true
		if err := a.persist(ctx, sess); err != nil {
			return err
		}
		a.broadcast(ctx, types.SessionEvent{
			Type:   types.EventParticipantReconnected,
			UserID: userID,
		})
	}

	// Snapshot goes to the new connection only.
	if err := sink.Send(types.SessionEvent{
		Type:    types.EventSessionState,
		Session: sess,
	}); err != nil {
		a.logger.WarnContext(ctx, "Failed to send session snapshot", slog.String("participant", userID), slog.Any("error", err))
	}
	return nil
}

// Detach marks the participant disconnected and notifies the remaining
// connections. The roster entry itself is retained.
func (a *Actor) Detach(ctx context.Context, userID string, sink EventSink) error {
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		err = a.detach(ctx, userID, sink)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (a *Actor) detach(ctx context.Context, userID string, sink EventSink) error {
	// If the connection was already replaced or the session ended, there is
	// nothing to do.
	if current, ok := a.conns[userID]; !ok || current != sink {
		return nil
	}
	delete(a.conns, userID)

	sess, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}
	if participant, ok := sess.Participants[userID]; ok {
		participant.Connected = false
		if err := a.persist(ctx, sess); err != nil {
			return err
		}
		a.broadcast(ctx, types.SessionEvent{
			Type:   types.EventParticipantDisconnected,
			UserID: userID,
		})
	}
	return nil
}

// UpdateRatings merges the provided categories into the participant's score
// sheet and broadcasts the result to every live connection, sender included.
func (a *Actor) UpdateRatings(ctx context.Context, userID string, ratings types.TastingRatings) error {
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		err = a.updateRatings(ctx, userID, ratings)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (a *Actor) updateRatings(ctx context.Context, userID string, ratings types.TastingRatings) error {
	sess, participant, err := a.activeParticipant(ctx, userID)
	if err != nil {
		return err
	}
	if participant.Ratings == nil {
		participant.Ratings = &types.TastingRatings{}
	}
	participant.Ratings.Merge(ratings)
	if err := a.persist(ctx, sess); err != nil {
		return err
	}
	a.broadcast(ctx, types.SessionEvent{
		Type:    types.EventRatingsUpdated,
		UserID:  userID,
		Ratings: participant.Ratings,
	})
	return nil
}

// UpdateNotes replaces the participant's notes and broadcasts the change.
func (a *Actor) UpdateNotes(ctx context.Context, userID, notes string) error {
	var err error
	if doErr := a.Do(ctx, func(ctx context.Context) {
		err = a.updateNotes(ctx, userID, notes)
	}); doErr != nil {
		return doErr
	}
	return err
}

func (a *Actor) updateNotes(ctx context.Context, userID, notes string) error {
	sess, participant, err := a.activeParticipant(ctx, userID)
	if err != nil {
		return err
	}
	participant.Notes = notes
	if err := a.persist(ctx, sess); err != nil {
		return err
	}
	a.broadcast(ctx, types.SessionEvent{
		Type:   types.EventNotesUpdated,
		UserID: userID,
		Notes:  notes,
	})
	return nil
}

func (a *Actor) activeParticipant(ctx context.Context, userID string) (*types.TastingSession, *types.Participant, error) {
	sess, err := a.loadSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, fmt.Errorf("session not initialized: %w", types.ErrNotFound)
	}
	if !sess.Active {
		return nil, nil, fmt.Errorf("session no longer accepts updates: %w", types.ErrSessionEnded)
	}
	participant, ok := sess.Participants[userID]
	if !ok {
		return nil, nil, fmt.Errorf("participant %s: %w", userID, types.ErrNotFound)
	}
	return sess, participant, nil
}

// broadcast sends the event to every live connection. Individual send
// failures are logged and swallowed; they never fail the triggering
// operation.
func (a *Actor) broadcast(ctx context.Context, event types.SessionEvent) {
	for id, sink := range a.conns {
		if err := sink.Send(event); err != nil {
			a.logger.WarnContext(ctx, "Broadcast send failed",
				slog.String("participant", id),
				slog.String("event", event.Type),
				slog.Any("error", err),
			)
		}
	}
	metrics.Get().BroadcastsTotal.Add(ctx, 1)
}

func (a *Actor) loadSession(ctx context.Context) (*types.TastingSession, error) {
	if a.loaded {
		return a.session, nil
	}
	raw, err := a.store.Get(ctx, a.Name(), sessionKey)
	if err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			a.loaded = true
			return nil, nil
		}
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	var sess types.TastingSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	a.session = &sess
	a.loaded = true
	return a.session, nil
}

func (a *Actor) persist(ctx context.Context, sess *types.TastingSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := a.store.Put(ctx, a.Name(), sessionKey, raw); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}
