package handler

import (
	"net/http"
	"strconv"

	"confluence/internal/httputil"
)

// History handles GET /api/history?limit=&ending_before=
// Lists the caller's chats newest first.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.RespondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	page, err := h.service.History(r.Context(), userID, limit, r.URL.Query().Get("ending_before"))
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, page)
}

// Messages handles GET /api/chat/{id}/messages.
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	msgs, err := h.service.Messages(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, msgs)
}

// UpdateVisibility handles PATCH /api/chat/{id}/visibility.
func (h *ChatHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var body struct {
		Visibility string `json:"visibility"`
	}
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.UpdateVisibility(r.Context(), r.PathValue("id"), userID, body.Visibility); err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"visibility": body.Visibility})
}

// Delete handles DELETE /api/chat?id=
// Removes a chat along with its messages and stream ledger entries.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	chatID := r.URL.Query().Get("id")
	if chatID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "id query parameter is required")
		return
	}

	deleted, err := h.service.Delete(r.Context(), chatID, userID)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, deleted)
}
