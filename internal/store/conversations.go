package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
)

const conversationColumns = `id, visitor_id, visitor_name, visitor_email, visitor_phone, status,
	is_agent_connected, agent_id, agent_name, current_page, created_at, updated_at`

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	var c model.Conversation
	var status string
	err := row.Scan(&c.ID, &c.VisitorID, &c.VisitorName, &c.VisitorEmail, &c.VisitorPhone, &status,
		&c.IsAgentConnected, &c.AgentID, &c.AgentName, &c.CurrentPage, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = model.ConversationStatus(status)
	return &c, nil
}

// CreateConversation inserts c and fills its timestamps.
func (db *DB) CreateConversation(ctx context.Context, c *model.Conversation) error {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, visitor_id, visitor_name, visitor_email, visitor_phone, status,
			is_agent_connected, agent_id, agent_name, current_page)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		c.ID, c.VisitorID, c.VisitorName, c.VisitorEmail, c.VisitorPhone, string(c.Status),
		c.IsAgentConnected, c.AgentID, c.AgentName, c.CurrentPage,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	return mapErr(err, "insert conversation")
}

// GetConversation loads a conversation by id.
func (db *DB) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	c, err := scanConversation(db.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get conversation")
	}
	return c, nil
}

// FindOpenConversation returns the visitor's most recent conversation that
// is not closed.
func (db *DB) FindOpenConversation(ctx context.Context, visitorID string) (*model.Conversation, error) {
	c, err := scanConversation(db.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE visitor_id = $1 AND status <> 'closed'
		ORDER BY created_at DESC
		LIMIT 1`, visitorID))
	if err != nil {
		return nil, mapErr(err, "find open conversation")
	}
	return c, nil
}

// UpdateVisitorDetails sets the non-empty fields of d and returns the
// current row. Other columns keep whatever concurrent writers stored.
func (db *DB) UpdateVisitorDetails(ctx context.Context, id string, d model.VisitorDetails) (*model.Conversation, error) {
	c, err := scanConversation(db.pool.QueryRow(ctx, `
		UPDATE conversations SET
			visitor_name  = COALESCE(NULLIF($2::text, ''), visitor_name),
			visitor_email = COALESCE(NULLIF($3::text, ''), visitor_email),
			visitor_phone = COALESCE(NULLIF($4::text, ''), visitor_phone),
			current_page  = COALESCE(NULLIF($5::text, ''), current_page),
			updated_at = now()
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, d.Name, d.Email, d.Phone, d.CurrentPage))
	if err != nil {
		return nil, mapErr(err, "update visitor details")
	}
	return c, nil
}

// SetConversationStatus moves a conversation to status following
// model.Conversation.ApplyStatus and returns the current row.
func (db *DB) SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus) (*model.Conversation, error) {
	c, err := scanConversation(db.pool.QueryRow(ctx, `
		UPDATE conversations SET
			status = CASE
				WHEN status = 'closed' THEN status
				WHEN $2::text = 'waiting_agent' AND is_agent_connected THEN status
				ELSE $2::text
			END,
			is_agent_connected = is_agent_connected AND $2::text <> 'closed',
			updated_at = now()
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, string(status)))
	if err != nil {
		return nil, mapErr(err, "set conversation status")
	}
	return c, nil
}

// SetAgent assigns a conversation following model.Conversation.ApplyAgent
// and returns the current row.
func (db *DB) SetAgent(ctx context.Context, id string, a model.AgentAssignment) (*model.Conversation, error) {
	c, err := scanConversation(db.pool.QueryRow(ctx, `
		UPDATE conversations SET
			is_agent_connected = $2::boolean AND status <> 'closed',
			agent_id = $3,
			agent_name = $4,
			status = CASE WHEN status = 'closed' THEN status ELSE 'active' END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+conversationColumns,
		id, a.Connected, a.AgentID, a.AgentName))
	if err != nil {
		return nil, mapErr(err, "set agent")
	}
	return c, nil
}

// ListConversationSummaries returns conversations in statuses with their
// last message, waiting conversations first, then most recently active.
func (db *DB) ListConversationSummaries(ctx context.Context, statuses []model.ConversationStatus) ([]model.ConversationSummary, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := db.pool.Query(ctx, `
		SELECT c.id, c.visitor_id, c.visitor_name, c.visitor_email, c.visitor_phone, c.status,
			c.is_agent_connected, c.agent_id, c.agent_name, c.current_page, c.created_at, c.updated_at,
			lm.id, lm.sender_type, lm.sender_id, lm.content, lm.created_at,
			(SELECT count(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, sender_type, sender_id, content, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON true
		WHERE c.status = ANY($1)
		ORDER BY (c.status = 'waiting_agent') DESC, c.updated_at DESC`, names)
	if err != nil {
		return nil, mapErr(err, "list conversations")
	}
	defer rows.Close()

	var out []model.ConversationSummary
	for rows.Next() {
		var s model.ConversationSummary
		var status string
		var lmID, lmSender, lmSenderID, lmContent *string
		var lmAt *time.Time
		err := rows.Scan(&s.ID, &s.VisitorID, &s.VisitorName, &s.VisitorEmail, &s.VisitorPhone, &status,
			&s.IsAgentConnected, &s.AgentID, &s.AgentName, &s.CurrentPage, &s.CreatedAt, &s.UpdatedAt,
			&lmID, &lmSender, &lmSenderID, &lmContent, &lmAt, &s.MessageCount)
		if err != nil {
			return nil, mapErr(err, "scan conversation summary")
		}
		s.Status = model.ConversationStatus(status)
		if lmID != nil {
			s.LastMessage = &model.Message{
				ID:             *lmID,
				ConversationID: s.ID,
				SenderType:     model.SenderType(*lmSender),
				SenderID:       *lmSenderID,
				Content:        *lmContent,
				CreatedAt:      *lmAt,
			}
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err(), "list conversations")
}

// CountConversationsByStatus counts conversations created in [from, to).
func (db *DB) CountConversationsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT status, count(*) FROM conversations
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status`, from, to)
	if err != nil {
		return nil, mapErr(err, "count conversations")
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, mapErr(err, "scan conversation count")
		}
		out[status] = n
	}
	return out, mapErr(rows.Err(), "count conversations")
}
