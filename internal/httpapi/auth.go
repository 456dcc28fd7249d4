package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"coursehub/internal/apperr"
	"coursehub/internal/identity"
	"coursehub/internal/mailer"
	"coursehub/internal/session"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLen = 6

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// handleRegister creates an unverified identity and hands the activation
// ticket back to the caller. The raw code is also returned directly: code
// delivery belongs to the mail collaborator, and its failure must not fail
// registration.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, apperr.Validation("invalid request body"))
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	switch {
	case req.Name == "":
		h.fail(w, r, apperr.Validation("please enter your name"))
		return
	case !emailRe.MatchString(req.Email):
		h.fail(w, r, apperr.Validation("please enter a valid email"))
		return
	case len(req.Password) < minPasswordLen:
		h.fail(w, r, apperr.Validation("password should be at least 6 characters"))
		return
	}

	ctx, cancel := h.callCtx(r)
	defer cancel()

	if _, err := h.store.GetByEmail(ctx, req.Email); err == nil {
		h.fail(w, r, apperr.Conflict("user already exists"))
		return
	} else if !errors.Is(err, identity.ErrNotFound) {
		h.fail(w, r, err)
		return
	}

	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.store.Create(ctx, identity.CreateInput{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Avatar:       identity.Avatar{URL: req.Avatar},
		Role:         identity.RoleUser,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	activation, err := h.tokens.IssueActivation(user.ID.String())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.mail.Send(ctx, mailer.Mail{
		To:      user.Email,
		Subject: "Activate your account",
		Data:    map[string]string{"name": user.Name, "code": activation.Code},
	}); err != nil {
		h.log.Warn(r.Context(), "activation mail delivery failed", "err", err)
	}

	h.metrics.Registrations.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "user registered successfully",
		"activationToken": activation.Ticket,
		"otpToken":        activation.Code,
	})
}

type activateRequest struct {
	ActivationToken string `json:"activationToken"`
	OTP             string `json:"otp"`
}

// handleActivate redeems an activation ticket. The ticket is stateless, so
// it stays technically redeemable until expiry; re-activating a verified
// account is a no-op.
func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, apperr.Validation("invalid request body"))
		return
	}

	claims, err := h.tokens.ParseActivation(req.ActivationToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if subtle.ConstantTimeCompare([]byte(claims.Code), []byte(req.OTP)) != 1 {
		h.fail(w, r, apperr.Validation("invalid activation code"))
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		h.fail(w, r, apperr.Validation("invalid activation token"))
		return
	}

	ctx, cancel := h.callCtx(r)
	defer cancel()

	if _, err := h.store.MarkVerified(ctx, userID); err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.Activations.Inc()
	writeJSON(w, http.StatusOK, response{Success: true, Message: "account activated"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin verifies credentials against the stored hash, issues the
// token pair, and writes the session cache entry that marks the identity
// as logged in.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, apperr.Validation("invalid request body"))
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		h.fail(w, r, apperr.Validation("please enter email and password"))
		return
	}

	ctx, cancel := h.callCtx(r)
	defer cancel()

	user, err := h.store.GetByEmailWithHash(ctx, req.Email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			h.metrics.Logins.WithLabelValues("failure").Inc()
			h.fail(w, r, apperr.Validation("invalid email or password"))
			return
		}
		h.fail(w, r, err)
		return
	}

	// Social accounts carry no hash; they cannot log in with a password.
	if user.PasswordHash == "" {
		h.metrics.Logins.WithLabelValues("failure").Inc()
		h.fail(w, r, apperr.Validation("invalid email or password"))
		return
	}

	match, err := identity.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !match {
		h.metrics.Logins.WithLabelValues("failure").Inc()
		h.fail(w, r, apperr.Validation("invalid email or password"))
		return
	}

	snap, access, err := h.openSession(w, r, user)
	if err != nil {
		h.metrics.Logins.WithLabelValues("dependency").Inc()
		h.fail(w, r, err)
		return
	}

	h.metrics.Logins.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"user":        snap,
		"accessToken": access,
	})
}

type socialAuthRequest struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// handleSocialAuth creates the identity on first sight and opens a session.
// Social identities are pre-verified by the external provider and carry no
// password hash.
func (h *Handler) handleSocialAuth(w http.ResponseWriter, r *http.Request) {
	var req socialAuthRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, apperr.Validation("invalid request body"))
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if !emailRe.MatchString(req.Email) || strings.TrimSpace(req.Name) == "" {
		h.fail(w, r, apperr.Validation("please enter name and a valid email"))
		return
	}

	ctx, cancel := h.callCtx(r)
	defer cancel()

	user, err := h.store.GetByEmail(ctx, req.Email)
	if errors.Is(err, identity.ErrNotFound) {
		user, err = h.store.Create(ctx, identity.CreateInput{
			Name:     strings.TrimSpace(req.Name),
			Email:    req.Email,
			Avatar:   identity.Avatar{URL: req.Avatar},
			Role:     identity.RoleUser,
			Verified: true,
		})
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	snap, access, err := h.openSession(w, r, user)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.metrics.Logins.WithLabelValues("social").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"user":        snap,
		"accessToken": access,
	})
}

// handleRefresh exchanges a valid refresh token plus a live cache entry for
// a freshly minted token pair. Requiring the cache entry keeps logout an
// effective revocation mechanism despite refresh tokens being stateless.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		h.metrics.Refreshes.WithLabelValues("failure").Inc()
		h.fail(w, r, apperr.InvalidToken("could not refresh token"))
		return
	}

	claims, err := h.tokens.ParseRefresh(cookie.Value)
	if err != nil {
		h.metrics.Refreshes.WithLabelValues("failure").Inc()
		h.fail(w, r, err)
		return
	}

	ctx, cancel := h.callCtx(r)
	defer cancel()

	snap, err := h.cache.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			// Refresh must not resurrect a revoked session from the token alone.
			h.metrics.Refreshes.WithLabelValues("session_missing").Inc()
			h.fail(w, r, apperr.InvalidToken("session expired, please login again"))
			return
		}
		h.fail(w, r, err)
		return
	}

	access, err := h.tokens.IssueAccess(claims.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	refresh, err := h.tokens.IssueRefresh(claims.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	// Renew the entry's TTL so the session lives as long as the newest
	// refresh token.
	if err := h.cache.Put(ctx, *snap); err != nil {
		h.fail(w, r, err)
		return
	}

	h.setAuthCookies(w, access, refresh)
	h.metrics.Refreshes.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"accessToken": access,
	})
}

// handleLogout clears both cookies and deletes the session cache entry.
// Deleting an absent entry is a no-op, so repeating the call converges on
// the same state.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	snap, _ := SnapshotFromContext(r.Context())

	ctx, cancel := h.callCtx(r)
	defer cancel()

	if snap != nil {
		if err := h.cache.Delete(ctx, snap.ID); err != nil {
			h.fail(w, r, err)
			return
		}
	}

	h.clearAuthCookies(w)
	h.metrics.Logouts.Inc()
	writeJSON(w, http.StatusOK, response{Success: true, Message: "logged out successfully"})
}

// handleMe returns the cached snapshot attached by the auth gate.
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	snap, ok := SnapshotFromContext(r.Context())
	if !ok {
		h.fail(w, r, apperr.NotFound("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    snap,
	})
}

// openSession issues the token pair, writes the cache entry, and sets both
// cookies. A cache write failure here is fatal to the request: without the
// entry the tokens would be unusable anyway.
func (h *Handler) openSession(w http.ResponseWriter, r *http.Request, user *identity.User) (*identity.Snapshot, string, error) {
	id := user.ID.String()

	access, err := h.tokens.IssueAccess(id)
	if err != nil {
		return nil, "", err
	}
	refresh, err := h.tokens.IssueRefresh(id)
	if err != nil {
		return nil, "", err
	}

	snap := user.Snapshot()
	ctx, cancel := h.callCtx(r)
	defer cancel()
	if err := h.cache.Put(ctx, snap); err != nil {
		return nil, "", err
	}

	h.setAuthCookies(w, access, refresh)
	return &snap, access, nil
}
