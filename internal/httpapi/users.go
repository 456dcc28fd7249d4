package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"coursehub/internal/apperr"
	"coursehub/internal/identity"
)

type updateInfoRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// handleUpdateInfo mutates name/email in the credential store and refreshes
// the session cache entry so it never serves a stale profile.
func (h *Handler) handleUpdateInfo(w http.ResponseWriter, r *http.Request) {
	snap, ok := SnapshotFromContext(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthenticated("please login to access this resource"))
		return
	}

	var req updateInfoRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, apperr.Validation("invalid request body"))
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if name == "" {
		name = snap.Name
	}
	if email == "" {
		email = snap.Email
	} else if !emailRe.MatchString(email) {
		h.fail(w, r, apperr.Validation("please enter a valid email"))
		return
	}

	userID, err := uuid.Parse(snap.ID)
	if err != nil {
		h.fail(w, r, apperr.Validation("invalid user id"))
		return
	}

	ctx, cancel := h.callCtx(r)
	defer cancel()

	user, err := h.store.UpdateProfile(ctx, userID, name, email)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	updated := h.refreshSession(r, user)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    updated,
	})
}

type updatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// handleUpdatePassword verifies the current password before storing a new
// hash. This is one of the two paths allowed to read the stored hash; the
// cache is refreshed from the hash-free snapshot afterwards.
func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	snap, ok := SnapshotFromContext(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthenticated("please login to access this resource"))
		return
	}

	var req updatePasswordRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, apperr.Validation("invalid request body"))
		return
	}
	if req.OldPassword == "" || len(req.NewPassword) < minPasswordLen {
		h.fail(w, r, apperr.Validation("please enter old password and a new password of at least 6 characters"))
		return
	}

	userID, err := uuid.Parse(snap.ID)
	if err != nil {
		h.fail(w, r, apperr.Validation("invalid user id"))
		return
	}

	ctx, cancel := h.callCtx(r)
	defer cancel()

	user, err := h.store.GetByIDWithHash(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user.PasswordHash == "" {
		h.fail(w, r, identity.ErrNoPassword)
		return
	}

	match, err := identity.VerifyPassword(req.OldPassword, user.PasswordHash)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !match {
		h.fail(w, r, apperr.Validation("old password is incorrect"))
		return
	}

	newHash, err := identity.HashPassword(req.NewPassword)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.store.UpdatePassword(ctx, userID, newHash)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	refreshed := h.refreshSession(r, updated)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "password updated successfully",
		"user":    refreshed,
	})
}

type updateAvatarRequest struct {
	Avatar string `json:"avatar"`
}

// handleUpdateAvatar accepts either a data URL, which is uploaded to the
// object store, or a plain https URL kept as an external reference. The
// replaced object is removed best-effort.
func (h *Handler) handleUpdateAvatar(w http.ResponseWriter, r *http.Request) {
	snap, ok := SnapshotFromContext(r.Context())
	if !ok {
		h.fail(w, r, apperr.Unauthenticated("please login to access this resource"))
		return
	}

	var req updateAvatarRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, apperr.Validation("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Avatar) == "" {
		h.fail(w, r, apperr.Validation("please provide an avatar"))
		return
	}

	userID, err := uuid.Parse(snap.ID)
	if err != nil {
		h.fail(w, r, apperr.Validation("invalid user id"))
		return
	}

	ctx, cancel := h.callCtx(r)
	defer cancel()

	var ref identity.Avatar
	switch {
	case strings.HasPrefix(req.Avatar, "data:"):
		if h.avatars == nil {
			h.fail(w, r, apperr.Validation("avatar uploads are not configured"))
			return
		}
		contentType, data, err := parseDataURL(req.Avatar)
		if err != nil {
			h.fail(w, r, apperr.Validation("invalid avatar image"))
			return
		}
		obj, err := h.avatars.Upload(ctx, snap.ID, contentType, data)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		ref = identity.Avatar{PublicID: obj.PublicID, URL: obj.URL}
	case strings.HasPrefix(req.Avatar, "http://"), strings.HasPrefix(req.Avatar, "https://"):
		ref = identity.Avatar{URL: req.Avatar}
	default:
		h.fail(w, r, apperr.Validation("avatar must be a data URL or an http(s) URL"))
		return
	}

	user, err := h.store.UpdateAvatar(ctx, userID, ref)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if prev := snap.Avatar.PublicID; prev != "" && prev != ref.PublicID && h.avatars != nil {
		if err := h.avatars.Remove(ctx, prev); err != nil {
			h.log.Warn(r.Context(), "stale avatar removal failed", "public_id", prev, "err", err)
		}
	}

	refreshed := h.refreshSession(r, user)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    refreshed,
	})
}

// handleListUsers returns every identity, newest first. Admin only.
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.callCtx(r)
	defer cancel()

	users, err := h.store.List(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	snaps := make([]identity.Snapshot, 0, len(users))
	for _, u := range users {
		snaps = append(snaps, u.Snapshot())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"users":   snaps,
	})
}

// refreshSession re-puts the snapshot after a durable-store write. A cache
// failure here is a consistency problem, not a request failure: it is
// logged and the response proceeds with the fresh snapshot.
func (h *Handler) refreshSession(r *http.Request, user *identity.User) identity.Snapshot {
	snap := user.Snapshot()

	ctx, cancel := h.callCtx(r)
	defer cancel()
	if err := h.cache.Put(ctx, snap); err != nil {
		h.log.Warn(r.Context(), "session cache refresh failed", "user_id", snap.ID, "err", err)
	}
	return snap
}

// parseDataURL splits "data:<mediatype>;base64,<payload>".
func parseDataURL(s string) (contentType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data URL")
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data URL must be base64 encoded")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return contentType, data, nil
}
