package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	chatModels "confluence/internal/domain/models/chat"
	"confluence/internal/handler/sse"
	"confluence/internal/httputil"
	chatService "confluence/internal/service/chat"
)

// ChatHandler exposes the turn and stream endpoints.
type ChatHandler struct {
	service *chatService.Service
	sseCfg  *sse.Config
	logger  *slog.Logger
}

func NewChatHandler(service *chatService.Service, sseCfg *sse.Config, logger *slog.Logger) *ChatHandler {
	if sseCfg == nil {
		sseCfg = sse.DefaultConfig()
	}
	return &ChatHandler{
		service: service,
		sseCfg:  sseCfg,
		logger:  logger,
	}
}

// turnRequestBody is the POST /api/chat payload.
type turnRequestBody struct {
	ID      string `json:"id"`
	Message struct {
		ID    string            `json:"id"`
		Role  string            `json:"role"`
		Parts []chatModels.Part `json:"parts"`
	} `json:"message"`
	SelectedModel string `json:"selectedModel"`
	Visibility    string `json:"selectedVisibilityType"`
}

// CreateTurn handles POST /api/chat.
// Accepts a user message and streams the assistant's response as SSE.
func (h *ChatHandler) CreateTurn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var body turnRequestBody
	if err := httputil.ParseJSON(w, r, &body); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}

	frames, err := h.service.StartTurn(r.Context(), &chatService.TurnRequest{
		ChatID: body.ID,
		UserID: userID,
		Message: &chatModels.Message{
			ID:    body.Message.ID,
			Role:  body.Message.Role,
			Parts: body.Message.Parts,
		},
		SelectedModel: body.SelectedModel,
		Visibility:    body.Visibility,
	})
	if err != nil {
		handleError(w, err)
		return
	}

	h.streamFrames(w, r, frames)
}

// Resume handles GET /api/chat/{id}/stream.
// Reconnects the client to the chat's most recent generation stream.
// Responds 204 when resumption is not configured.
func (h *ChatHandler) Resume(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	chatID := r.PathValue("id")

	frames, err := h.service.Resume(r.Context(), chatID, userID)
	if err != nil {
		if errors.Is(err, chatService.ErrResumeUnavailable) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handleError(w, err)
		return
	}

	h.streamFrames(w, r, frames)
}

// streamFrames pipes serialized frames to the response until the channel
// closes, interleaving keep-alive comments during quiet stretches.
func (h *ChatHandler) streamFrames(w http.ResponseWriter, r *http.Request, frames <-chan string) {
	writer, err := sse.NewWriter(w)
	if err != nil {
		h.logger.Error("sse setup failed", "path", r.URL.Path, "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ticker := time.NewTicker(h.sseCfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := writer.WriteFrame(frame); err != nil {
				h.logger.Debug("client disconnected mid-stream", "path", r.URL.Path, "error", err)
				return
			}
		case <-ticker.C:
			if err := writer.WriteKeepAlive(); err != nil {
				h.logger.Debug("keep-alive failed, client gone", "path", r.URL.Path, "error", err)
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
