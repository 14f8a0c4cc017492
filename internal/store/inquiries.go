package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
)

const inquiryColumns = `id, name, email, phone, subject, message, source, conversation_id, status, created_at`

func scanInquiry(row pgx.Row) (*model.Inquiry, error) {
	var q model.Inquiry
	var status string
	err := row.Scan(&q.ID, &q.Name, &q.Email, &q.Phone, &q.Subject, &q.Message, &q.Source,
		&q.ConversationID, &status, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	q.Status = model.InquiryStatus(status)
	return &q, nil
}

// ListInquiries returns inquiries newest first, optionally of one status.
func (db *DB) ListInquiries(ctx context.Context, status model.InquiryStatus) ([]model.Inquiry, error) {
	query := `SELECT ` + inquiryColumns + ` FROM inquiries`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list inquiries")
	}
	defer rows.Close()

	out := make([]model.Inquiry, 0)
	for rows.Next() {
		q, err := scanInquiry(rows)
		if err != nil {
			return nil, mapErr(err, "scan inquiry")
		}
		out = append(out, *q)
	}
	return out, mapErr(rows.Err(), "list inquiries")
}

// CreateInquiry inserts q.
func (db *DB) CreateInquiry(ctx context.Context, q *model.Inquiry) error {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO inquiries (id, name, email, phone, subject, message, source, conversation_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		q.ID, q.Name, q.Email, q.Phone, q.Subject, q.Message, q.Source, q.ConversationID, string(q.Status),
	).Scan(&q.CreatedAt)
	return mapErr(err, "insert inquiry")
}

// UpdateInquiryStatus sets an inquiry's follow-up status.
func (db *DB) UpdateInquiryStatus(ctx context.Context, id string, status model.InquiryStatus) (*model.Inquiry, error) {
	q, err := scanInquiry(db.pool.QueryRow(ctx, `
		UPDATE inquiries SET status = $2 WHERE id = $1
		RETURNING `+inquiryColumns, id, string(status)))
	if err != nil {
		return nil, mapErr(err, "update inquiry status")
	}
	return q, nil
}

// DeleteInquiry removes an inquiry.
func (db *DB) DeleteInquiry(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM inquiries WHERE id = $1`, id)
	return requireRow(tag, err, "delete inquiry")
}
