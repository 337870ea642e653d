package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tcorreia/wine-rater/app/metrics"
	"github.com/tcorreia/wine-rater/internal/actor"
	"github.com/tcorreia/wine-rater/internal/api"
	"github.com/tcorreia/wine-rater/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	CreateSession(w http.ResponseWriter, r *http.Request)
	GetSession(w http.ResponseWriter, r *http.Request)
	EndSession(w http.ResponseWriter, r *http.Request)
	Connect(w http.ResponseWriter, r *http.Request)
}

// HandlerConfig tunes the live connection limits.
type HandlerConfig struct {
	WriteTimeout time.Duration
	ReadLimit    int64
}

const (
	defaultWriteTimeout = 10 * time.Second
	defaultReadLimit    = 64 << 10
)

// HandlerImpl exposes the session actor surface: plain HTTP for lifecycle,
// websocket upgrade for the live protocol.
type HandlerImpl struct {
	actors   *actor.Registry[*Actor]
	logger   *slog.Logger
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

func NewHandlerImpl(actors *actor.Registry[*Actor], cfg HandlerConfig, logger *slog.Logger) *HandlerImpl {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	return &HandlerImpl{
		actors: actors,
		logger: logger,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the router's CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *HandlerImpl) actorFor(r *http.Request) *Actor {
	return h.actors.Get(chi.URLParam(r, "sessionID"))
}

// discardIfEmpty drops the actor that a lookup instantiated for an unknown
// session id, so negative lookups do not pile up live actors until the
// passivation sweep.
func (h *HandlerImpl) discardIfEmpty(a *Actor, err error) {
	if errors.Is(err, types.ErrNotFound) {
		h.actors.Discard(a.Name(), a)
	}
}

// CreateSession mints a fresh session identity and initializes its actor.
func (h *HandlerImpl) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "CreateSession"))

	var req CreateSessionRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	a := h.actors.Get(uuid.NewString())
	sess, err := a.Create(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrBadRequest):
			// The freshly minted actor never got state; drop it.
			h.actors.Discard(a.Name(), a)
			api.ErrorResponse(w, r, http.StatusBadRequest, "wineName and createdBy are required")
		case errors.Is(err, types.ErrConflict):
			api.ErrorResponse(w, r, http.StatusConflict, "Session already exists")
		default:
			l.ErrorContext(ctx, "Failed to create session", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create session")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, sess)
}

func (h *HandlerImpl) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetSession"))

	a := h.actorFor(r)
	sess, err := a.Get(ctx)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			h.discardIfEmpty(a, err)
			api.ErrorResponse(w, r, http.StatusNotFound, "Session not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve session")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, sess)
}

func (h *HandlerImpl) EndSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "EndSession"))

	a := h.actorFor(r)
	if err := a.End(ctx); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			h.discardIfEmpty(a, err)
			api.ErrorResponse(w, r, http.StatusNotFound, "Session not found")
			return
		}
		l.ErrorContext(ctx, "Failed to end session", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to end session")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// Connect upgrades to a websocket, attaches the participant to the session
// and pumps inbound events into the actor until the connection drops.
func (h *HandlerImpl) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Connect"))

	userID := r.URL.Query().Get("userId")
	username := r.URL.Query().Get("username")
	if userID == "" || username == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "userId and username are required")
		return
	}

	a := h.actorFor(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		l.WarnContext(ctx, "Websocket upgrade failed", slog.Any("error", err))
		return
	}
	conn.SetReadLimit(h.cfg.ReadLimit)
	sink := newWSSink(conn, h.cfg.WriteTimeout)

	if err := a.Attach(ctx, userID, username, sink); err != nil {
		l.WarnContext(ctx, "Failed to attach participant",
			slog.String("participant", userID),
			slog.Any("error", err),
		)
		_ = sink.Close()
		h.discardIfEmpty(a, err)
		return
	}
	metrics.Get().LiveConnections.Add(ctx, 1)

	go h.readLoop(a, userID, sink)
}

// readLoop runs one goroutine per live connection. It only parses inbound
// frames and forwards them to the actor; every state change happens inside
// the actor's serial stream.
func (h *HandlerImpl) readLoop(a *Actor, userID string, sink *wsSink) {
	ctx := context.Background()
	l := h.logger.With(
		slog.String("session", a.Name()),
		slog.String("participant", userID),
	)
	defer func() {
		if err := a.Detach(ctx, userID, sink); err != nil {
			l.Warn("Failed to detach participant", slog.Any("error", err))
		}
		_ = sink.conn.Close()
		metrics.Get().LiveConnections.Add(ctx, -1)
	}()

	for {
		_, data, err := sink.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.Debug("Connection closed unexpectedly", slog.Any("error", err))
			}
			return
		}

		var event types.SessionEvent
		if err := json.Unmarshal(data, &event); err != nil {
			l.Warn("Dropping malformed message", slog.Any("error", err))
			continue
		}

		switch event.Type {
		case types.EventUpdateRatings:
			if event.Ratings == nil {
				l.Warn("update-ratings without ratings payload")
				continue
			}
			if err := a.UpdateRatings(ctx, userID, *event.Ratings); err != nil {
				l.Warn("Failed to update ratings", slog.Any("error", err))
			}
		case types.EventUpdateNotes:
			if err := a.UpdateNotes(ctx, userID, event.Notes); err != nil {
				l.Warn("Failed to update notes", slog.Any("error", err))
			}
		default:
			// Unknown kinds are ignored; they must not break the connection.
			l.Warn("Unknown message type", slog.String("type", event.Type))
		}
	}
}
