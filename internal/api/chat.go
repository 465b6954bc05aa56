// ABOUTME: Conversation endpoints: send a message, detect intent, read or reset history
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/harper/notion-copilot/internal/models"
)

type messageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) readMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req messageRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return "", false
	}
	return text, true
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readMessage(w, r)
	if !ok {
		return
	}

	reply, err := h.assistant.SendMessage(r.Context(), text)
	if err != nil {
		h.fail(w, r, "chat", err)
		return
	}
	JSON(w, http.StatusOK, reply)
}

func (h *Handler) detectIntent(w http.ResponseWriter, r *http.Request) {
	text, ok := h.readMessage(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.assistant.DetectIntent(r.Context(), text))
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	turns := h.assistant.History()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit > 0 && limit < len(turns) {
			turns = turns[len(turns)-limit:]
		}
	}
	if turns == nil {
		turns = []models.ConversationTurn{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"turns": turns,
		"count": len(turns),
	})
}

func (h *Handler) resetHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.assistant.Reset(); err != nil {
		h.fail(w, r, "reset_history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
