package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// AgentHandler handles the admin live-chat endpoints.
type AgentHandler struct {
	agents   *service.AgentService
	presence *service.PresenceService
	logger   *logger.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(agents *service.AgentService, presence *service.PresenceService, log *logger.Logger) *AgentHandler {
	return &AgentHandler{agents: agents, presence: presence, logger: log.Module("http.agent")}
}

// List handles GET /api/v1/admin/conversations?status=active,waiting_agent
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	var statuses []model.ConversationStatus
	for _, s := range listParam(r, "status") {
		statuses = append(statuses, model.ConversationStatus(s))
	}
	resp, err := h.agents.List(r.Context(), statuses)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Get handles GET /api/v1/admin/conversations/{id}
func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.agents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, conv)
}

// Messages handles GET /api/v1/admin/conversations/{id}/messages?after=
func (h *AgentHandler) Messages(w http.ResponseWriter, r *http.Request) {
	after, ok := afterParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "after must be an RFC3339 timestamp")
		return
	}
	resp, err := h.agents.Messages(r.Context(), chi.URLParam(r, "id"), after)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Join handles POST /api/v1/admin/conversations/{id}/join
func (h *AgentHandler) Join(w http.ResponseWriter, r *http.Request) {
	conv, err := h.agents.Join(r.Context(), chi.URLParam(r, "id"), agentFrom(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, conv)
}

// Leave handles POST /api/v1/admin/conversations/{id}/leave
func (h *AgentHandler) Leave(w http.ResponseWriter, r *http.Request) {
	conv, err := h.agents.Leave(r.Context(), chi.URLParam(r, "id"), agentFrom(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, conv)
}

// Send handles POST /api/v1/admin/conversations/{id}/messages
func (h *AgentHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req model.SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.agents.Send(r.Context(), chi.URLParam(r, "id"), agentFrom(r), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, r, status, resp)
}

// Close handles POST /api/v1/admin/conversations/{id}/close
func (h *AgentHandler) Close(w http.ResponseWriter, r *http.Request) {
	conv, err := h.agents.Close(r.Context(), chi.URLParam(r, "id"), agentFrom(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, conv)
}

type presenceRequest struct {
	Online *bool `json:"online" validate:"required"`
}

// SetPresence handles PUT /api/v1/admin/presence
func (h *AgentHandler) SetPresence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if !decode(w, r, &req) {
		return
	}
	agent := agentFrom(r)
	if err := h.presence.SetOnline(r.Context(), agent.ID, *req.Online); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"agent_id": agent.ID, "online": *req.Online})
}

// Heartbeat handles POST /api/v1/admin/presence/heartbeat
func (h *AgentHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	agent := agentFrom(r)
	online, err := h.presence.Heartbeat(r.Context(), agent.ID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"agent_id": agent.ID, "online": online})
}

// Presence handles GET /api/v1/admin/presence
func (h *AgentHandler) Presence(w http.ResponseWriter, r *http.Request) {
	agents, err := h.presence.Online(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"agents": agents, "online": len(agents) > 0})
}
