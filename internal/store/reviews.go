package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
)

const reviewColumns = `id, tour_id, author_name, country, rating, comment, is_published, created_at`

func scanReview(row pgx.Row) (*model.Review, error) {
	var r model.Review
	err := row.Scan(&r.ID, &r.TourID, &r.AuthorName, &r.Country, &r.Rating, &r.Comment, &r.IsPublished, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReviews returns reviews newest first. publishedOnly hides drafts.
func (db *DB) ListReviews(ctx context.Context, publishedOnly bool) ([]model.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews`
	if publishedOnly {
		query += ` WHERE is_published`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, mapErr(err, "list reviews")
	}
	defer rows.Close()

	out := make([]model.Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, mapErr(err, "scan review")
		}
		out = append(out, *r)
	}
	return out, mapErr(rows.Err(), "list reviews")
}

// CreateReview inserts r.
func (db *DB) CreateReview(ctx context.Context, r *model.Review) error {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO reviews (id, tour_id, author_name, country, rating, comment, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		r.ID, r.TourID, r.AuthorName, r.Country, r.Rating, r.Comment, r.IsPublished,
	).Scan(&r.CreatedAt)
	return mapErr(err, "insert review")
}

// SetReviewPublished publishes or hides a review.
func (db *DB) SetReviewPublished(ctx context.Context, id string, published bool) (*model.Review, error) {
	r, err := scanReview(db.pool.QueryRow(ctx, `
		UPDATE reviews SET is_published = $2 WHERE id = $1
		RETURNING `+reviewColumns, id, published))
	if err != nil {
		return nil, mapErr(err, "publish review")
	}
	return r, nil
}

// DeleteReview removes a review.
func (db *DB) DeleteReview(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	return requireRow(tag, err, "delete review")
}

// ReviewSummary aggregates published ratings.
func (db *DB) ReviewSummary(ctx context.Context) (model.ReviewSummary, error) {
	var s model.ReviewSummary
	err := db.pool.QueryRow(ctx, `
		SELECT count(*), coalesce(round(avg(rating), 1), 0)::float8
		FROM reviews WHERE is_published`).Scan(&s.Count, &s.Average)
	return s, mapErr(err, "review summary")
}
