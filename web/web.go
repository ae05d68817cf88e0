// Package web provides the JSON API over the metering engine.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/metergate/domain/auth"
	"github.com/artpar/metergate/ports"
)

// Handler provides the stats API endpoints.
type Handler struct {
	meter   ports.Meter
	logger  zerolog.Logger
	authKey func() string
	models  func() (standard, express []string)
}

// Deps contains dependencies for the API handler. AuthKey and Models
// are getters so a config reload takes effect without a restart.
type Deps struct {
	Meter   ports.Meter
	Logger  zerolog.Logger
	AuthKey func() string
	Models  func() (standard, express []string)
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		meter:   deps.Meter,
		logger:  deps.Logger,
		authKey: deps.AuthKey,
		models:  deps.Models,
	}
	if h.authKey == nil {
		h.authKey = func() string { return "" }
	}
	if h.models == nil {
		h.models = func() ([]string, []string) { return nil, nil }
	}
	return h
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public endpoints (no auth required)
	r.Get("/healthz", h.Health)

	// Protected endpoints
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Post("/v1/usage", h.RecordUsage)

		r.Get("/v1/stats/keys", h.KeyStats)
		r.Get("/v1/stats/series", h.Series)
		r.Get("/v1/stats/daily", h.Daily)
		r.Get("/v1/stats/recent", h.Recent)
		r.Post("/v1/stats/reset", h.Reset)
		r.Post("/v1/stats/cleanup", h.Cleanup)

		r.Get("/v1/models", h.Models)
	})

	return r
}

// AuthMiddleware gates requests on the configured API key. An empty
// configured key disables the gate (local development).
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		configured := h.authKey()
		if configured == "" {
			next.ServeHTTP(w, r)
			return
		}

		provided := auth.ClientKey(auth.Credentials{
			Authorization: r.Header.Get("Authorization"),
			GoogAPIKey:    r.Header.Get("x-goog-api-key"),
			QueryKey:      r.URL.Query().Get("key"),
		})
		if !auth.Valid(provided, configured) {
			writeError(w, http.StatusUnauthorized, "invalid_key", "Invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
