package httpapi

import (
	"net/http"
	"time"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
)

// setAuthCookies writes both bearer cookies. HTTP-only and SameSite=Lax
// always; Secure only outside local development. MaxAge tracks the
// configured token TTLs.
func (h *Handler) setAuthCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, h.authCookie(accessCookieName, access, h.tokens.AccessTTL()))
	http.SetCookie(w, h.authCookie(refreshCookieName, refresh, h.tokens.RefreshTTL()))
}

// clearAuthCookies expires both cookies immediately.
func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{accessCookieName, refreshCookieName} {
		c := h.authCookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (h *Handler) authCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.cfg.SecureCookies,
	}
}
