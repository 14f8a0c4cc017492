package model

import (
	"time"
)

// SenderType identifies who wrote a chat message.
type SenderType string

const (
	SenderVisitor SenderType = "visitor"
	SenderBot     SenderType = "bot"
	SenderAgent   SenderType = "agent"
)

// Message is a single chat message.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderType     SenderType     `json:"sender_type"`
	SenderID       string         `json:"sender_id,omitempty"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Metadata keys understood by the chat widget.
const (
	MetaQuickReplies = "quick_replies"
	MetaShowLeadForm = "show_lead_form"
	MetaOfferHuman   = "offer_human"
	MetaEvent        = "event"
	MetaBotSource    = "bot_source"
)

// SendMessageRequest is the request to send a chat message. ID is the
// client-generated id used for optimistic rendering; resending the same id
// is a no-op.
type SendMessageRequest struct {
	ID      string `json:"id" validate:"omitempty,uuid"`
	Content string `json:"content" validate:"required,max=4000"`
}

// SendMessageResponse returns the stored message and the bot reply, if any.
type SendMessageResponse struct {
	Message   *Message `json:"message"`
	Reply     *Message `json:"reply,omitempty"`
	Duplicate bool     `json:"duplicate,omitempty"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages []Message `json:"messages"`
}

// HeartbeatEvent keeps idle realtime connections open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent is pushed to realtime clients when the stream fails.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
