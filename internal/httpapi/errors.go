package httpapi

import (
	"errors"
	"net/http"

	"coursehub/internal/apperr"
	"coursehub/internal/identity"
	"coursehub/internal/session"
	"coursehub/internal/token"
)

// response is the uniform client-visible envelope.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// translate funnels every failure onto the error taxonomy. Known
// signature/verification and store failures get specific messages;
// anything unrecognized becomes a generic dependency error so no internal
// detail leaks.
func translate(err error) *apperr.Error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return apperr.InvalidToken("token has expired, please login again")
	case errors.Is(err, token.ErrTokenInvalid):
		return apperr.InvalidToken("token is not valid, please login again")
	case errors.Is(err, identity.ErrEmailTaken):
		return apperr.Conflict("email already exists")
	case errors.Is(err, identity.ErrNotFound):
		return apperr.NotFound("user not found")
	case errors.Is(err, identity.ErrNoPassword):
		return apperr.Validation("this account has no password set")
	case errors.Is(err, session.ErrNotFound):
		return apperr.NotFound("session not found, please login again")
	default:
		return apperr.Dependency(err)
	}
}

// fail writes the translated error. Dependency failures are logged with the
// underlying cause; client responses never carry it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ae := translate(err)
	if ae.Status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, ae.Status, response{Success: false, Message: ae.Message})
}
