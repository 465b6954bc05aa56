// ABOUTME: Connection lifecycle endpoints: status, connect, disconnect, authenticate, offline mode
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

type statusResponse struct {
	Connection    string `json:"connection"`
	Auth          string `json:"auth"`
	Ready         bool   `json:"ready"`
	OfflineReason string `json:"offline_reason,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	Since         string `json:"since"`
	Degraded      bool   `json:"generation_degraded"`
}

func (h *Handler) statusBody() statusResponse {
	s := h.ws.Status()
	resp := statusResponse{
		Connection:    string(s.Connection),
		Auth:          string(s.Auth),
		Ready:         s.Ready(),
		OfflineReason: s.OfflineReason,
		LastError:     s.LastError,
		Since:         s.Since.UTC().Format(time.RFC3339),
	}
	if h.assistant != nil {
		resp.Degraded = h.assistant.Degraded()
	}
	return resp
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.statusBody())
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Connect(r.Context()); err != nil {
		h.fail(w, r, "connect", err)
		return
	}
	JSON(w, http.StatusOK, h.statusBody())
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Disconnect(); err != nil {
		h.fail(w, r, "disconnect", err)
		return
	}
	JSON(w, http.StatusOK, h.statusBody())
}

// authenticate starts the handshake in the background. The popup lands on
// /auth/callback of this same server, so the request cannot wait for it.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.authTimeout)
	go func() {
		defer cancel()
		if err := h.ws.Authenticate(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("authentication failed")
		}
	}()
	JSON(w, http.StatusAccepted, h.statusBody())
}

type offlineRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) enableOffline(w http.ResponseWriter, r *http.Request) {
	var req offlineRequest
	// the body is optional
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.ws.EnableOfflineMode(req.Reason)
	JSON(w, http.StatusOK, h.statusBody())
}

func (h *Handler) disableOffline(w http.ResponseWriter, r *http.Request) {
	h.ws.DisableOfflineMode()
	JSON(w, http.StatusOK, h.statusBody())
}
