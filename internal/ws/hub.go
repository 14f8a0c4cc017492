// Package ws pushes row changes to the admin dashboard over websockets.
package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/internal/feed"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// Event is the frame sent to admin clients.
type Event struct {
	Type           string            `json:"type"` // "change" or "selected"
	Data           *feed.ChangeEvent `json:"data,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
}

// selection is a client's request to follow one conversation's messages.
type selection struct {
	client         *Client
	conversationID string
}

// Hub tracks connected admins and routes change events to them.
// Conversation and booking changes go to every admin; message inserts only
// to admins who selected that conversation.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	selections chan selection
	done       chan struct{}
	logger     *logger.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		selections: make(chan selection),
		done:       make(chan struct{}),
		logger:     log.Module("ws"),
	}
}

// Run subscribes to every row change and serves clients until ctx is done.
func (h *Hub) Run(ctx context.Context, changes feed.Feed) error {
	events, err := changes.Subscribe(ctx, feed.AllFilter)
	if err != nil {
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	defer close(h.done)
	defer h.disconnectAll()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.register:
			h.clients[c] = true
			h.logger.Debug("admin connected", zap.String("agent_id", c.agentID), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case sel := <-h.selections:
			if _, ok := h.clients[sel.client]; !ok {
				continue
			}
			sel.client.selected = sel.conversationID
			h.sendEvent(sel.client, &Event{Type: "selected", ConversationID: sel.conversationID})

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.dispatch(ev)
		}
	}
}

func (h *Hub) disconnectAll() {
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// join registers c unless the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// follow routes c's selection through the hub, which acknowledges it once
// later message inserts are filtered by it.
func (h *Hub) follow(c *Client, conversationID string) {
	select {
	case h.selections <- selection{client: c, conversationID: conversationID}:
	case <-h.done:
	}
}

func (h *Hub) dispatch(ev feed.ChangeEvent) {
	data, err := json.Marshal(&Event{Type: "change", Data: &ev})
	if err != nil {
		h.logger.Warn("failed to encode change", zap.String("subject", ev.Subject()), zap.Error(err))
		return
	}
	for c := range h.clients {
		if ev.Table == feed.TableMessages && c.selected != ev.ConversationID {
			continue
		}
		h.deliver(c, data)
	}
}

func (h *Hub) sendEvent(c *Client, ev *Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to encode frame", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	h.deliver(c, data)
}

func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		// Too slow to keep up; the dashboard reconnects and reloads.
		h.logger.Warn("dropping slow admin client", zap.String("agent_id", c.agentID))
		close(c.send)
		delete(h.clients, c)
	}
}
