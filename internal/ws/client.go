package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/pkg/logger"
	"github.com/dhowcruise/booking-platform/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The admin token is checked before upgrading.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one admin dashboard connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	agentID string
	logger  *logger.Logger

	// selected is owned by the hub goroutine.
	selected string
}

// command is a frame sent by the dashboard.
type command struct {
	Type           string `json:"type"` // "select"
	ConversationID string `json:"conversation_id"`
}

func (c *Client) handle(raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.logger.Debug("ignoring malformed frame", zap.Error(err))
		return
	}
	switch cmd.Type {
	case "select":
		c.hub.follow(c, cmd.ConversationID)
	default:
		c.logger.Debug("ignoring unknown command", zap.String("type", cmd.Type))
	}
}

// readPump reads dashboard commands and detects disconnects.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("admin socket closed", zap.Error(err))
			}
			return
		}
		c.handle(raw)
	}
}

// writePump writes hub events and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		metrics.ConnectionClosed("ws")
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Authenticator validates a token and returns the agent id.
type Authenticator interface {
	ValidateToken(token string) (string, error)
}

// Serve upgrades admin requests carrying a valid ?token= to a websocket.
func Serve(hub *Hub, auth Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
			return
		}
		agentID, err := auth.ValidateToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			hub:     hub,
			conn:    conn,
			send:    make(chan []byte, sendBuffer),
			agentID: agentID,
			logger:  hub.logger.With(zap.String("agent_id", agentID)),
		}
		if !hub.join(client) {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			conn.Close()
			return
		}
		metrics.ConnectionOpened("ws")

		go client.writePump()
		go client.readPump()
	}
}
