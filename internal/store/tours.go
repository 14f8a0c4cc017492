package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
)

const tourColumns = `id, slug, name, summary, description, duration, departure_time,
	price_adult, price_child, capacity, images, features, active, sort_order, created_at, updated_at`

func scanTour(row pgx.Row) (*model.Tour, error) {
	var t model.Tour
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Summary, &t.Description, &t.Duration, &t.DepartureTime,
		&t.PriceAdult, &t.PriceChild, &t.Capacity, &t.Images, &t.Features, &t.Active, &t.SortOrder,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTours returns tours in display order. activeOnly hides inactive tours.
func (db *DB) ListTours(ctx context.Context, activeOnly bool) ([]model.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY sort_order, name`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, mapErr(err, "list tours")
	}
	defer rows.Close()

	out := make([]model.Tour, 0)
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, mapErr(err, "scan tour")
		}
		out = append(out, *t)
	}
	return out, mapErr(rows.Err(), "list tours")
}

// GetTour loads a tour by id.
func (db *DB) GetTour(ctx context.Context, id string) (*model.Tour, error) {
	t, err := scanTour(db.pool.QueryRow(ctx, `SELECT `+tourColumns+` FROM tours WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get tour")
	}
	return t, nil
}

// GetTourBySlug loads a tour by slug.
func (db *DB) GetTourBySlug(ctx context.Context, slug string) (*model.Tour, error) {
	t, err := scanTour(db.pool.QueryRow(ctx, `SELECT `+tourColumns+` FROM tours WHERE slug = $1`, slug))
	if err != nil {
		return nil, mapErr(err, "get tour by slug")
	}
	return t, nil
}

// CreateTour inserts t.
func (db *DB) CreateTour(ctx context.Context, t *model.Tour) error {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO tours (id, slug, name, summary, description, duration, departure_time,
			price_adult, price_child, capacity, images, features, active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		t.ID, t.Slug, t.Name, t.Summary, t.Description, t.Duration, t.DepartureTime,
		t.PriceAdult, t.PriceChild, t.Capacity, nonNil(t.Images), nonNil(t.Features), t.Active, t.SortOrder,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapErr(err, "insert tour")
}

// UpdateTour replaces every editable column of t.
func (db *DB) UpdateTour(ctx context.Context, t *model.Tour) error {
	err := db.pool.QueryRow(ctx, `
		UPDATE tours SET slug = $2, name = $3, summary = $4, description = $5, duration = $6,
			departure_time = $7, price_adult = $8, price_child = $9, capacity = $10, images = $11,
			features = $12, active = $13, sort_order = $14, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		t.ID, t.Slug, t.Name, t.Summary, t.Description, t.Duration, t.DepartureTime,
		t.PriceAdult, t.PriceChild, t.Capacity, nonNil(t.Images), nonNil(t.Features), t.Active, t.SortOrder,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return mapErr(err, "update tour")
}

// DeleteTour removes a tour. Tours with bookings cannot be deleted.
func (db *DB) DeleteTour(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM tours WHERE id = $1`, id)
	return requireRow(tag, err, "delete tour")
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
