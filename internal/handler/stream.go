package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/internal/model"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
)

const heartbeatInterval = 30 * time.Second

// ReplayCompleteEvent marks the end of the backlog sent on connect.
type ReplayCompleteEvent struct {
	MessageCount int       `json:"message_count"`
	LastCreated  time.Time `json:"last_created_at,omitempty"`
}

// Stream handles GET /api/v1/chat/conversations/{id}/stream?after=
// It replays messages created after the cursor, then pushes new messages
// and conversation updates until the client goes away.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	visitorID, ok := visitor(w, r)
	if !ok {
		return
	}
	conversationID := chi.URLParam(r, "id")
	after, ok := afterParam(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "after must be an RFC3339 timestamp")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before replaying so nothing committed in between is lost.
	events, err := h.chat.Subscribe(ctx, conversationID, visitorID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	backlog, err := h.chat.ListMessages(ctx, conversationID, visitorID, after)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.ConnectionOpened("sse")
	defer metrics.ConnectionClosed("sse")

	sendSSEEvent(w, flusher, "connected", map[string]string{"conversation_id": conversationID})

	sent := make(map[string]bool, len(backlog.Messages))
	replay := ReplayCompleteEvent{}
	for _, msg := range backlog.Messages {
		if err := sendSSEEvent(w, flusher, "message", msg); err != nil {
			return
		}
		sent[msg.ID] = true
		replay.MessageCount++
		replay.LastCreated = msg.CreatedAt
	}
	sendSSEEvent(w, flusher, "replay_complete", &replay)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("stream client disconnected", zap.String("conversation_id", conversationID))
			return

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{Timestamp: time.Now().UTC()}); err != nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				sendSSEEvent(w, flusher, "error", &model.ErrorEvent{Code: "stream_closed", Message: "change feed closed"})
				return
			}
			if err := h.forward(w, flusher, ev, sent); err != nil {
				h.logger.Debug("stream write failed", zap.String("conversation_id", conversationID), zap.Error(err))
				return
			}
		}
	}
}

// forward writes one change event, skipping messages already replayed.
func (h *ChatHandler) forward(w http.ResponseWriter, flusher http.Flusher, ev feed.ChangeEvent, sent map[string]bool) error {
	switch ev.Table {
	case feed.TableMessages:
		var msg model.Message
		if err := ev.Decode(&msg); err != nil {
			h.logger.Warn("undecodable message event", zap.String("id", ev.ID), zap.Error(err))
			return nil
		}
		if sent[msg.ID] {
			delete(sent, msg.ID)
			return nil
		}
		return sendSSEEvent(w, flusher, "message", &msg)

	case feed.TableConversations:
		var conv model.Conversation
		if err := ev.Decode(&conv); err != nil {
			h.logger.Warn("undecodable conversation event", zap.String("id", ev.ID), zap.Error(err))
			return nil
		}
		return sendSSEEvent(w, flusher, "conversation", &conv)
	}
	return nil
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
