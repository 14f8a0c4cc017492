package store

import (
	"context"
	"time"

	"github.com/dhowcruise/booking-platform/internal/model"
)

// InsertPageView records a page view.
func (db *DB) InsertPageView(ctx context.Context, v *model.PageView) error {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO page_views (id, path, referrer, visitor_id, user_agent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		v.ID, v.Path, v.Referrer, v.VisitorID, v.UserAgent,
	).Scan(&v.CreatedAt)
	return mapErr(err, "insert page view")
}

// PageViewTotals returns total views and distinct visitors in [from, to).
func (db *DB) PageViewTotals(ctx context.Context, from, to time.Time) (views, visitors int64, err error) {
	err = db.pool.QueryRow(ctx, `
		SELECT count(*), count(DISTINCT nullif(visitor_id, ''))
		FROM page_views
		WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&views, &visitors)
	return views, visitors, mapErr(err, "page view totals")
}

// PageViewsPerDay counts views per calendar day in loc. Days without views
// are absent.
func (db *DB) PageViewsPerDay(ctx context.Context, from, to time.Time, loc *time.Location) ([]model.DayCount, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE $3, 'YYYY-MM-DD') AS day, count(*)
		FROM page_views
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day`, from, to, loc.String())
	if err != nil {
		return nil, mapErr(err, "page views per day")
	}
	defer rows.Close()

	var out []model.DayCount
	for rows.Next() {
		var d model.DayCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, mapErr(err, "scan day count")
		}
		out = append(out, d)
	}
	return out, mapErr(rows.Err(), "page views per day")
}

// TopPages returns the most viewed paths in [from, to).
func (db *DB) TopPages(ctx context.Context, from, to time.Time, limit int) ([]model.PathCount, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT path, count(*) AS views
		FROM page_views
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY path
		ORDER BY views DESC, path
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, mapErr(err, "top pages")
	}
	defer rows.Close()

	out := make([]model.PathCount, 0)
	for rows.Next() {
		var p model.PathCount
		if err := rows.Scan(&p.Path, &p.Count); err != nil {
			return nil, mapErr(err, "scan path count")
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err(), "top pages")
}
