// Package model defines data structures for the booking site and live chat.
package model

import (
	"time"
)

// ConversationStatus is the lifecycle state of a chat conversation.
type ConversationStatus string

const (
	StatusActive       ConversationStatus = "active"
	StatusWaitingAgent ConversationStatus = "waiting_agent"
	StatusClosed       ConversationStatus = "closed"
)

// Valid reports whether s is a known status.
func (s ConversationStatus) Valid() bool {
	switch s {
	case StatusActive, StatusWaitingAgent, StatusClosed:
		return true
	}
	return false
}

// Conversation is a visitor's chat session with the business.
type Conversation struct {
	ID               string             `json:"id"`
	VisitorID        string             `json:"visitor_id"`
	VisitorName      string             `json:"visitor_name,omitempty"`
	VisitorEmail     string             `json:"visitor_email,omitempty"`
	VisitorPhone     string             `json:"visitor_phone,omitempty"`
	Status           ConversationStatus `json:"status"`
	IsAgentConnected bool               `json:"is_agent_connected"`
	AgentID          string             `json:"agent_id,omitempty"`
	AgentName        string             `json:"agent_name,omitempty"`
	CurrentPage      string             `json:"current_page,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// VisitorDetails are the fields a visitor can fill in on their own
// conversation. Empty fields keep the stored value.
type VisitorDetails struct {
	Name        string
	Email       string
	Phone       string
	CurrentPage string
}

// ApplyVisitorDetails copies the non-empty fields of d onto c and reports
// whether any value changed.
func (c *Conversation) ApplyVisitorDetails(d VisitorDetails) bool {
	changed := false
	set := func(field *string, v string) {
		if v != "" && v != *field {
			*field = v
			changed = true
		}
	}
	set(&c.VisitorName, d.Name)
	set(&c.VisitorEmail, d.Email)
	set(&c.VisitorPhone, d.Phone)
	set(&c.CurrentPage, d.CurrentPage)
	return changed
}

// AgentAssignment records which agent, if any, holds a conversation.
type AgentAssignment struct {
	Connected bool
	AgentID   string
	AgentName string
}

// ApplyAgent assigns a to c. An open conversation goes back to active; a
// closed one stays closed with no agent connected.
func (c *Conversation) ApplyAgent(a AgentAssignment) {
	c.AgentID = a.AgentID
	c.AgentName = a.AgentName
	c.IsAgentConnected = a.Connected && c.Status != StatusClosed
	if c.Status != StatusClosed {
		c.Status = StatusActive
	}
}

// ApplyStatus moves c to status. Closed is final and disconnects the agent.
// A conversation an agent holds never goes back to the waiting queue.
func (c *Conversation) ApplyStatus(status ConversationStatus) {
	switch {
	case c.Status == StatusClosed:
	case status == StatusWaitingAgent && c.IsAgentConnected:
	default:
		c.Status = status
	}
	if status == StatusClosed {
		c.IsAgentConnected = false
	}
}

// ConversationSummary is a conversation with its last-message preview for
// the admin list.
type ConversationSummary struct {
	Conversation
	LastMessage  *Message `json:"last_message,omitempty"`
	MessageCount int      `json:"message_count"`
}

// StartConversationRequest creates or resumes a visitor conversation.
type StartConversationRequest struct {
	VisitorID   string `json:"visitor_id" validate:"required,max=128"`
	CurrentPage string `json:"current_page" validate:"max=512"`
	Name        string `json:"name" validate:"max=128"`
	Email       string `json:"email" validate:"omitempty,email,max=256"`
	Phone       string `json:"phone" validate:"max=32"`
}

// StartConversationResponse is returned by the start endpoint.
type StartConversationResponse struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []Message     `json:"messages"`
	Resumed      bool          `json:"resumed"`
}

// LeadRequest carries contact details captured mid-conversation.
type LeadRequest struct {
	Name    string `json:"name" validate:"required,max=128"`
	Email   string `json:"email" validate:"required,email,max=256"`
	Phone   string `json:"phone" validate:"max=32"`
	Message string `json:"message" validate:"max=2000"`
}

// ListConversationsResponse is the response for the admin conversation list.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
}
