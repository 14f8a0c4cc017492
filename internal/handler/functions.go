package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/notify"
	"github.com/dhowcruise/booking-platform/internal/og"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// FunctionHandler serves the notify-admins and link-preview functions.
type FunctionHandler struct {
	agents   *service.AgentService
	notifier notify.Notifier
	preview  *og.Previewer
	logger   *logger.Logger
}

// NewFunctionHandler creates a new function handler.
func NewFunctionHandler(agents *service.AgentService, notifier notify.Notifier, preview *og.Previewer, log *logger.Logger) *FunctionHandler {
	return &FunctionHandler{agents: agents, notifier: notifier, preview: preview, logger: log.Module("http.functions")}
}

type notifyRequest struct {
	ConversationID string `json:"conversation_id" validate:"required"`
}

// NotifyAgentRequest handles POST /api/v1/admin/functions/notify-agent-request
func (h *FunctionHandler) NotifyAgentRequest(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !decode(w, r, &req) {
		return
	}
	conv, err := h.agents.Get(r.Context(), req.ConversationID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if h.notifier == nil {
		writeError(w, r, http.StatusServiceUnavailable, "no notification channel configured")
		return
	}
	if err := h.notifier.NotifyHumanRequested(r.Context(), conv); err != nil {
		h.logger.Warn("notify agent request failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "notification failed")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"success": true, "conversation_id": conv.ID})
}

// Preview handles GET /og?path=
func (h *FunctionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}
	body, err := h.preview.Render(h.preview.Lookup(r.Context(), path))
	if err != nil {
		h.logger.Error("render preview", zap.String("path", path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
