package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tcorreia/wine-rater/app/metrics"
	"github.com/tcorreia/wine-rater/internal/actor"
	"github.com/tcorreia/wine-rater/internal/api"
	"github.com/tcorreia/wine-rater/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Authenticate(w http.ResponseWriter, r *http.Request)
	RevokeToken(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	ListWines(w http.ResponseWriter, r *http.Request)
	AddWine(w http.ResponseWriter, r *http.Request)
	GetWine(w http.ResponseWriter, r *http.Request)
	UpdateWine(w http.ResponseWriter, r *http.Request)
	DeleteWine(w http.ResponseWriter, r *http.Request)
}

// HandlerImpl translates the per-user HTTP surface into identity actor
// operations. The {userKey} path segment is the opaque actor name supplied by
// the client; every request is handled by that one actor.
type HandlerImpl struct {
	actors *actor.Registry[*Actor]
	logger *slog.Logger
}

func NewHandlerImpl(actors *actor.Registry[*Actor], logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		actors: actors,
		logger: logger,
	}
}

func (h *HandlerImpl) actorFor(r *http.Request) *Actor {
	return h.actors.Get(chi.URLParam(r, "userKey"))
}

// authorize verifies the bearer token against the request's identity actor.
// Writes a 401 and returns false when the request is not authorized.
func (h *HandlerImpl) authorize(w http.ResponseWriter, r *http.Request, a *Actor) bool {
	token := api.BearerToken(r)
	if token == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authorization header required")
		return false
	}
	ok, err := a.VerifyToken(r.Context(), token)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Token verification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to verify token")
		return false
	}
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid or expired token")
		return false
	}
	return true
}

func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Register"))

	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.actorFor(r).Register(ctx, req.Username, req.Email, req.Password)
	metrics.Get().RegisterRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err != nil {
		switch {
		case errors.Is(err, types.ErrConflict):
			api.ErrorResponse(w, r, http.StatusConflict, "User already exists")
		case errors.Is(err, types.ErrBadRequest):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Username, email and password are required")
		default:
			l.ErrorContext(ctx, "Failed to register user", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to register user")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

func (h *HandlerImpl) Authenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "Authenticate"))

	var req AuthRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.actorFor(r).Authenticate(ctx, req.Email, req.Password)
	metrics.Get().AuthRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err != nil {
		if errors.Is(err, types.ErrUnauthenticated) {
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		l.ErrorContext(ctx, "Failed to authenticate", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to authenticate")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *HandlerImpl) RevokeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "RevokeToken"))

	var req RevokeRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.actorFor(r).RevokeToken(ctx, req.Token); err != nil {
		l.ErrorContext(ctx, "Failed to revoke token", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to revoke token")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

func (h *HandlerImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetUser"))

	a := h.actorFor(r)
	if !h.authorize(w, r, a) {
		return
	}

	user, err := a.GetUser(ctx)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, user)
}

func (h *HandlerImpl) ListWines(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "ListWines"))

	a := h.actorFor(r)
	if !h.authorize(w, r, a) {
		return
	}

	wines, err := a.ListWines(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list wines", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list wines")
		return
	}
	metrics.Get().WineOpsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "list")))

	api.WriteJSONResponse(w, r, http.StatusOK, wines)
}

func (h *HandlerImpl) AddWine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "AddWine"))

	a := h.actorFor(r)
	if !h.authorize(w, r, a) {
		return
	}

	var entry types.WineEntry
	if err := api.DecodeJSONBody(w, r, &entry); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	wine, err := a.AddWine(ctx, entry)
	if err != nil {
		if errors.Is(err, types.ErrBadRequest) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Wine name is required")
			return
		}
		l.ErrorContext(ctx, "Failed to add wine", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to add wine")
		return
	}
	metrics.Get().WineOpsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "add")))

	api.WriteJSONResponse(w, r, http.StatusCreated, wine)
}

func (h *HandlerImpl) GetWine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "GetWine"))

	a := h.actorFor(r)
	if !h.authorize(w, r, a) {
		return
	}

	wine, err := a.GetWine(ctx, chi.URLParam(r, "wineID"))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Wine not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get wine", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve wine")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, wine)
}

func (h *HandlerImpl) UpdateWine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "UpdateWine"))

	a := h.actorFor(r)
	if !h.authorize(w, r, a) {
		return
	}

	var update types.WineUpdate
	if err := api.DecodeJSONBody(w, r, &update); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	wine, err := a.UpdateWine(ctx, chi.URLParam(r, "wineID"), update)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Wine not found")
			return
		}
		l.ErrorContext(ctx, "Failed to update wine", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update wine")
		return
	}
	metrics.Get().WineOpsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "update")))

	api.WriteJSONResponse(w, r, http.StatusOK, wine)
}

func (h *HandlerImpl) DeleteWine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("handler", "DeleteWine"))

	a := h.actorFor(r)
	if !h.authorize(w, r, a) {
		return
	}

	if err := a.DeleteWine(ctx, chi.URLParam(r, "wineID")); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Wine not found")
			return
		}
		l.ErrorContext(ctx, "Failed to delete wine", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete wine")
		return
	}
	metrics.Get().WineOpsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "delete")))

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
