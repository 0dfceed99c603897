package handler

import (
	"errors"
	"net/http"

	"confluence/internal/domain"
	"confluence/internal/httputil"
)

// handleError converts domain errors to HTTP responses. Structured chat
// errors carry their own status and code; the cause is echoed only for
// surfaces safe to expose.
func handleError(w http.ResponseWriter, err error) {
	var chatErr *domain.ChatError
	if errors.As(err, &chatErr) {
		extras := map[string]interface{}{"code": string(chatErr.Code)}
		if chatErr.Visible() && chatErr.Cause != "" {
			extras["cause"] = chatErr.Cause
		}
		httputil.RespondErrorWithExtras(w, chatErr.StatusCode(), chatErr.Message, extras)
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.RespondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// requireUserID extracts the authenticated user id set by the auth
// middleware. A missing id means the middleware chain is broken.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := httputil.GetUserID(r)
	if userID == "" {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}
