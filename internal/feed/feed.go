// Package feed carries row-change notifications from writers to realtime
// subscribers.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// SubjectPrefix is the root token of every change subject.
const SubjectPrefix = "rows"

// Tables that publish changes.
const (
	TableConversations = "conversations"
	TableMessages      = "messages"
	TableBookings      = "bookings"
)

// subscriberBuffer bounds how far a subscriber may lag before events are
// dropped for it.
const subscriberBuffer = 64

// ChangeEvent describes one inserted, updated or deleted row.
type ChangeEvent struct {
	Table          string          `json:"table"`
	Op             Op              `json:"op"`
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Record         json.RawMessage `json:"record,omitempty"`
	Sequence       uint64          `json:"sequence,omitempty"`
	At             time.Time       `json:"at"`
}

// NewChangeEvent builds an event carrying record as its JSON payload.
func NewChangeEvent(table string, op Op, id, conversationID string, record any) (ChangeEvent, error) {
	ev := ChangeEvent{
		Table:          table,
		Op:             op,
		ID:             id,
		ConversationID: conversationID,
		At:             time.Now().UTC(),
	}
	if record != nil {
		data, err := json.Marshal(record)
		if err != nil {
			return ev, fmt.Errorf("failed to marshal %s record: %w", table, err)
		}
		ev.Record = data
	}
	return ev, nil
}

// Decode unmarshals the event record into v.
func (e ChangeEvent) Decode(v any) error {
	if len(e.Record) == 0 {
		return fmt.Errorf("event %s.%s has no record", e.Table, e.Op)
	}
	return json.Unmarshal(e.Record, v)
}

// Subject returns rows.<table>.<op>.<key>, keyed by conversation when the
// row belongs to one.
func (e ChangeEvent) Subject() string {
	key := e.ConversationID
	if key == "" {
		key = e.ID
	}
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, e.Table, e.Op, key)
}

// AllFilter matches every change.
const AllFilter = SubjectPrefix + ".>"

// TableFilter matches every change to table.
func TableFilter(table string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, table)
}

// MessagesFilter matches message changes of one conversation.
func MessagesFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.*.%s", SubjectPrefix, TableMessages, conversationID)
}

// ConversationFilter matches changes to one conversation row.
func ConversationFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.*.%s", SubjectPrefix, TableConversations, conversationID)
}

// VisitorFilter matches every change keyed by one conversation: its row
// and its messages.
func VisitorFilter(conversationID string) string {
	return fmt.Sprintf("%s.*.*.%s", SubjectPrefix, conversationID)
}

// Feed publishes and subscribes to row changes.
type Feed interface {
	// Publish delivers ev to every matching subscriber.
	Publish(ctx context.Context, ev ChangeEvent) error

	// Subscribe returns a channel of events matching filter. The channel is
	// closed once ctx is done.
	Subscribe(ctx context.Context, filter string) (<-chan ChangeEvent, error)
}

// Match reports whether subject matches filter using NATS token rules:
// "*" matches one token, a trailing ">" matches one or more.
func Match(filter, subject string) bool {
	ft := strings.Split(filter, ".")
	st := strings.Split(subject, ".")
	for i, tok := range ft {
		if tok == ">" {
			return i == len(ft)-1 && len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if tok != "*" && tok != st[i] {
			return false
		}
	}
	return len(ft) == len(st)
}
