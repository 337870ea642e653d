package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/tcorreia/wine-rater/internal/api"
	"github.com/tcorreia/wine-rater/internal/identity"
	"github.com/tcorreia/wine-rater/internal/session"
)

// Config contains the handlers the router dispatches to.
type Config struct {
	UserHandler    identity.Handler
	SessionHandler session.Handler
}

// SetupRouter wires the dispatcher: it resolves a path to an actor identity
// and forwards the request to that actor's handler. Server-wide middleware
// (request ID, logging, recoverer) is applied in main.go before mounting.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/api", apiDocs)

	// Identity actors: {userKey} is the client-derived stable key that names
	// exactly one actor.
	r.Route("/api/users/{userKey}", func(r chi.Router) {
		r.Post("/register", cfg.UserHandler.Register)
		r.Post("/auth", cfg.UserHandler.Authenticate)
		r.Delete("/auth", cfg.UserHandler.RevokeToken)
		r.Get("/user", cfg.UserHandler.GetUser)

		r.Route("/wines", func(r chi.Router) {
			r.Get("/", cfg.UserHandler.ListWines)
			r.Post("/", cfg.UserHandler.AddWine)
			r.Route("/{wineID}", func(r chi.Router) {
				r.Get("/", cfg.UserHandler.GetWine)
				r.Put("/", cfg.UserHandler.UpdateWine)
				r.Patch("/", cfg.UserHandler.UpdateWine)
				r.Delete("/", cfg.UserHandler.DeleteWine)
			})
		})
	})

	// Session actors: POST mints a fresh identity, everything else resolves
	// an existing one.
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", cfg.SessionHandler.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", cfg.SessionHandler.GetSession)
			r.Delete("/", cfg.SessionHandler.EndSession)
			r.Get("/connect", cfg.SessionHandler.Connect)
		})
	})

	return r
}

// apiDocs returns a machine-readable endpoint summary.
func apiDocs(w http.ResponseWriter, r *http.Request) {
	docs := map[string]interface{}{
		"name":        "Wine Rater API",
		"description": "Private wine cataloguing with collaborative tasting sessions",
		"endpoints": map[string]string{
			"POST /api/users/{userKey}/register":         "Register a new user",
			"POST /api/users/{userKey}/auth":             "Authenticate and receive a bearer token",
			"DELETE /api/users/{userKey}/auth":           "Revoke a bearer token",
			"GET /api/users/{userKey}/user":              "Get the user profile",
			"GET /api/users/{userKey}/wines":             "List the wine collection",
			"POST /api/users/{userKey}/wines":            "Add a wine",
			"GET /api/users/{userKey}/wines/{wineID}":    "Get a wine",
			"PUT /api/users/{userKey}/wines/{wineID}":    "Update a wine",
			"DELETE /api/users/{userKey}/wines/{wineID}": "Delete a wine",
			"POST /api/sessions":                         "Create a tasting session",
			"GET /api/sessions/{sessionID}":              "Get session state",
			"DELETE /api/sessions/{sessionID}":           "End a session",
			"GET /api/sessions/{sessionID}/connect":      "Join live via websocket (userId, username params)",
		},
	}
	api.WriteJSONResponse(w, r, http.StatusOK, docs)
}
