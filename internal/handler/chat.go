package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dhowcruise/booking-platform/internal/middleware"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/internal/service"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// ChatHandler handles the visitor chat widget endpoints.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: log.Module("http.chat")}
}

// visitor returns the caller's visitor id, writing a 400 when absent.
func visitor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.GetVisitorID(r.Context())
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "missing X-Visitor-ID header")
		return "", false
	}
	return id, true
}

// Start handles POST /api/v1/chat/conversations
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartConversationRequest
	if id := middleware.GetVisitorID(r.Context()); id != "" {
		req.VisitorID = id
	}
	if !decode(w, r, &req) {
		return
	}
	// The header wins over the body so a visitor cannot claim another id.
	if id := middleware.GetVisitorID(r.Context()); id != "" {
		req.VisitorID = id
	}

	resp, err := h.chat.Start(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, r, status, resp)
}

// Get handles GET /api/v1/chat/conversations/{id}
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := visitor(w, r)
	if !ok {
		return
	}
	conv, err := h.chat.Conversation(r.Context(), chi.URLParam(r, "id"), visitorID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, conv)
}

// Messages handles GET /api/v1/chat/conversations/{id}/messages?after=
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := visitor(w, r)
	if !ok {
		return
	}
	after, ok := afterParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "after must be an RFC3339 timestamp")
		return
	}
	resp, err := h.chat.ListMessages(r.Context(), chi.URLParam(r, "id"), visitorID, after)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Send handles POST /api/v1/chat/conversations/{id}/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := visitor(w, r)
	if !ok {
		return
	}
	var req model.SendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.chat.SendVisitorMessage(r.Context(), chi.URLParam(r, "id"), visitorID, &req)
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

// RequestHuman handles POST /api/v1/chat/conversations/{id}/human
func (h *ChatHandler) RequestHuman(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := visitor(w, r)
	if !ok {
		return
	}
	conv, err := h.chat.RequestHuman(r.Context(), chi.URLParam(r, "id"), visitorID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, conv)
}

// Lead handles POST /api/v1/chat/conversations/{id}/lead
func (h *ChatHandler) Lead(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := visitor(w, r)
	if !ok {
		return
	}
	var req model.LeadRequest
	if !decode(w, r, &req) {
		return
	}
	inquiry, err := h.chat.SubmitLead(r.Context(), chi.URLParam(r, "id"), visitorID, &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, inquiry)
}

// AgentsOnline handles GET /api/v1/chat/agents/online
func (h *ChatHandler) AgentsOnline(w http.ResponseWriter, r *http.Request) {
	online, err := h.chat.AgentsAvailable(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"online": online})
}
