package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"coursehub/internal/apperr"
	"coursehub/internal/identity"
	"coursehub/internal/session"
	"coursehub/internal/token"
)

type snapshotContextKey struct{}

// SnapshotFromContext returns the identity attached by RequireAuth.
func SnapshotFromContext(ctx context.Context) (*identity.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(*identity.Snapshot)
	return snap, ok
}

func withSnapshot(ctx context.Context, snap *identity.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotContextKey{}, snap)
}

// RequireAuth is the per-request auth gate. It verifies the access-token
// cookie, loads the session cache entry, and attaches the snapshot to the
// request context. It never attempts a refresh: token renewal is an
// explicit client-invoked operation. Tokens alone are not sufficient proof
// of an active session — a missing cache entry means logged out.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(accessCookieName)
		if err != nil || cookie.Value == "" {
			h.metrics.GateDenied.WithLabelValues("no_token").Inc()
			h.fail(w, r, apperr.Unauthenticated("please login to access this resource"))
			return
		}

		claims, err := h.tokens.ParseAccess(cookie.Value)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, token.ErrTokenExpired) {
				reason = "expired_token"
			}
			h.metrics.GateDenied.WithLabelValues(reason).Inc()
			h.fail(w, r, err)
			return
		}

		ctx, cancel := h.callCtx(r)
		snap, err := h.cache.Get(ctx, claims.UserID)
		cancel()
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				h.metrics.GateDenied.WithLabelValues("session_missing").Inc()
			}
			h.fail(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withSnapshot(r.Context(), snap)))
	})
}

// RequireRoles guards a handler behind a role set. It must run after
// RequireAuth; a missing identity is treated as forbidden, not a crash.
func (h *Handler) RequireRoles(roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := make(map[identity.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap, ok := SnapshotFromContext(r.Context())
			if !ok {
				h.metrics.GateDenied.WithLabelValues("no_identity").Inc()
				h.fail(w, r, apperr.Forbidden("not allowed to access this resource"))
				return
			}
			if _, ok := allowed[snap.Role]; !ok {
				h.metrics.GateDenied.WithLabelValues("role").Inc()
				h.fail(w, r, apperr.Forbidden(
					fmt.Sprintf("role %q is not allowed to access this resource", snap.Role)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
