package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
)

const messageColumns = `id, conversation_id, sender_type, sender_id, content, metadata, created_at`

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	var sender string
	if err := row.Scan(&m.ID, &m.ConversationID, &sender, &m.SenderID, &m.Content, &m.Metadata, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.SenderType = model.SenderType(sender)
	return &m, nil
}

// InsertMessage stores m unless a message with the same id exists. When it
// does, m is overwritten with the stored row and inserted is false.
func (db *DB) InsertMessage(ctx context.Context, m *model.Message) (bool, error) {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_type, sender_id, content, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at`,
		m.ID, m.ConversationID, string(m.SenderType), m.SenderID, m.Content, m.Metadata,
	).Scan(&m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := scanMessage(db.pool.QueryRow(ctx,
			`SELECT `+messageColumns+` FROM messages WHERE id = $1`, m.ID))
		if err != nil {
			return false, mapErr(err, "load duplicate message")
		}
		*m = *existing
		return false, nil
	}
	if err != nil {
		return false, mapErr(err, "insert message")
	}

	if _, err := db.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, m.ConversationID); err != nil {
		return true, mapErr(err, "touch conversation")
	}
	return true, nil
}

// ListMessages returns a conversation's messages in chronological order,
// optionally only those created after after. limit <= 0 means no limit.
func (db *DB) ListMessages(ctx context.Context, conversationID string, after time.Time, limit int) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1 AND created_at > $2
		ORDER BY created_at, id`
	args := []any{conversationID, after}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	return db.queryMessages(ctx, query, args...)
}

// RecentMessages returns the last limit messages in chronological order.
func (db *DB) RecentMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	return db.queryMessages(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id`, conversationID, limit)
}

func (db *DB) queryMessages(ctx context.Context, query string, args ...any) ([]model.Message, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list messages")
	}
	defer rows.Close()

	out := make([]model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, mapErr(err, "scan message")
		}
		out = append(out, *m)
	}
	return out, mapErr(rows.Err(), "list messages")
}
