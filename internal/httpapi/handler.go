// Package httpapi is the HTTP surface of the auth core: identity lifecycle
// handlers, the per-request auth gate, role guards, the refresh flow, and
// the boundary error translator.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coursehub/internal/avatar"
	"coursehub/internal/identity"
	"coursehub/internal/logging"
	"coursehub/internal/mailer"
	"coursehub/internal/metrics"
	"coursehub/internal/session"
	"coursehub/internal/token"
)

// Config controls handler behavior at the HTTP boundary.
type Config struct {
	// SecureCookies marks auth cookies Secure; off only in local development.
	SecureCookies bool
	// AllowedOrigin enables CORS for a single origin when non-empty.
	AllowedOrigin string
	// CallTimeout bounds each cache/store call made for a request.
	CallTimeout time.Duration
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
	// DBPing reports credential-store reachability for the health endpoint.
	DBPing func(ctx context.Context) error
}

// Handler wires the HTTP endpoints to the token issuer, session cache, and
// credential store.
type Handler struct {
	log     logging.Logger
	store   identity.Store
	cache   *session.Cache
	tokens  *token.Manager
	mail    mailer.Mailer
	avatars avatar.Store
	metrics *metrics.Metrics
	cfg     Config
}

// NewHandler assembles a Handler. avatars may be nil, in which case binary
// avatar uploads are rejected while URL references still work.
func NewHandler(
	log logging.Logger,
	store identity.Store,
	cache *session.Cache,
	tokens *token.Manager,
	mail mailer.Mailer,
	avatars avatar.Store,
	m *metrics.Metrics,
	cfg Config,
) *Handler {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Handler{
		log:     log,
		store:   store,
		cache:   cache,
		tokens:  tokens,
		mail:    mail,
		avatars: avatars,
		metrics: m,
		cfg:     cfg,
	}
}

// Routes builds the router. All identity endpoints live under
// /api/v1/users, matching the public API contract.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.cors)

	r.Get("/healthz", h.handleHealth)

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/registration", h.handleRegister)
		r.Post("/active-user", h.handleActivate)
		r.Post("/login-user", h.handleLogin)
		r.Get("/refreshtoken", h.handleRefresh)
		r.Post("/social-auth", h.handleSocialAuth)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/me", h.handleMe)
			r.With(h.RequireRoles(identity.RoleUser, identity.RoleAdmin)).
				Get("/logout-user", h.handleLogout)
			r.Put("/update-user-info", h.handleUpdateInfo)
			r.Put("/update-user-password", h.handleUpdatePassword)
			r.Put("/update-user-avatar", h.handleUpdateAvatar)
			r.With(h.RequireRoles(identity.RoleAdmin)).
				Get("/get-users", h.handleListUsers)
		})
	})

	return r
}

// callCtx derives the bounded context used for every dependency call.
func (h *Handler) callCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.cfg.CallTimeout)
}

func (h *Handler) cors(next http.Handler) http.Handler {
	if h.cfg.AllowedOrigin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.cfg.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.callCtx(r)
	defer cancel()

	cacheState := "up"
	if err := h.cache.Ping(ctx); err != nil {
		cacheState = "down"
	}
	dbState := "unconfigured"
	if h.cfg.DBPing != nil {
		dbState = "up"
		if err := h.cfg.DBPing(ctx); err != nil {
			dbState = "down"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "api is working",
		"cache":    cacheState,
		"database": dbState,
	})
}
