package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
)

const bookingColumns = `id, tour_id, tour_name, date, start_time, adults, children, infants,
	total_price, currency, customer_name, customer_email, customer_phone, notes,
	discount_code, discount_amount, status, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	var date time.Time
	var status string
	err := row.Scan(&b.ID, &b.TourID, &b.TourName, &date, &b.StartTime, &b.Adults, &b.Children, &b.Infants,
		&b.TotalPrice, &b.Currency, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.Notes,
		&b.DiscountCode, &b.DiscountAmount, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Date = date.Format(model.DateLayout)
	b.Status = model.BookingStatus(status)
	return &b, nil
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// CreateBooking inserts b. When discountID is set the discount's usage is
// counted in the same transaction.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking, discountID string) error {
	date, err := parseDate(b.Date)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO bookings (id, tour_id, tour_name, date, start_time, adults, children, infants,
				total_price, currency, customer_name, customer_email, customer_phone, notes,
				discount_code, discount_amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING created_at, updated_at`,
			b.ID, b.TourID, b.TourName, date, b.StartTime, b.Adults, b.Children, b.Infants,
			b.TotalPrice, b.Currency, b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.Notes,
			b.DiscountCode, b.DiscountAmount, string(b.Status),
		).Scan(&b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return mapErr(err, "insert booking")
		}
		if discountID == "" {
			return nil
		}
		tag, err := tx.Exec(ctx, `
			UPDATE discounts SET used_count = used_count + 1, updated_at = now()
			WHERE id = $1 AND (max_uses = 0 OR used_count < max_uses)`, discountID)
		if err != nil {
			return mapErr(err, "count discount usage")
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("count discount usage: %w", ErrConflict)
		}
		return nil
	})
}

// GetBooking loads a booking by id.
func (db *DB) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(db.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get booking")
	}
	return b, nil
}

// ListBookings returns bookings matching f ordered by date and start time.
// Zero bounds are open; To is exclusive.
func (db *DB) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("date < $%d", f.To)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.TourID != "" {
		add("tour_id = $%d", f.TourID)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date, start_time, created_at`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "list bookings")
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, mapErr(err, "scan booking")
		}
		out = append(out, *b)
	}
	return out, mapErr(rows.Err(), "list bookings")
}

// UpdateBookingDate moves a booking to date and returns the updated row.
func (db *DB) UpdateBookingDate(ctx context.Context, id, date string) (*model.Booking, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	b, err := scanBooking(db.pool.QueryRow(ctx, `
		UPDATE bookings SET date = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns, id, d))
	if err != nil {
		return nil, mapErr(err, "update booking date")
	}
	return b, nil
}

// UpdateBookingStatus sets a booking's status and returns the updated row.
func (db *DB) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) (*model.Booking, error) {
	b, err := scanBooking(db.pool.QueryRow(ctx, `
		UPDATE bookings SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns, id, string(status)))
	if err != nil {
		return nil, mapErr(err, "update booking status")
	}
	return b, nil
}

// DeleteBooking removes a booking.
func (db *DB) DeleteBooking(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	return requireRow(tag, err, "delete booking")
}

// ListCustomers aggregates bookings by lower-cased customer email, most
// recent customer first.
func (db *DB) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT lower(customer_email),
			(array_agg(customer_name ORDER BY created_at DESC))[1],
			(array_agg(customer_phone ORDER BY created_at DESC))[1],
			count(*),
			coalesce(sum(total_price) FILTER (WHERE status <> 'cancelled'), 0)::float8,
			min(date), max(date),
			(array_agg(tour_name ORDER BY date DESC))[1],
			bool_and(status = 'cancelled')
		FROM bookings
		GROUP BY lower(customer_email)
		ORDER BY max(created_at) DESC`)
	if err != nil {
		return nil, mapErr(err, "list customers")
	}
	defer rows.Close()

	out := make([]model.Customer, 0)
	for rows.Next() {
		var c model.Customer
		err := rows.Scan(&c.Email, &c.Name, &c.Phone, &c.Bookings, &c.TotalSpent,
			&c.FirstBooking, &c.LastBooking, &c.LastTourName, &c.CancelledOnly)
		if err != nil {
			return nil, mapErr(err, "scan customer")
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err(), "list customers")
}

// CountBookingsByStatus counts bookings created in [from, to) and sums
// confirmed revenue.
func (db *DB) CountBookingsByStatus(ctx context.Context, from, to time.Time) (map[string]int64, float64, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT status, count(*), coalesce(sum(total_price), 0)::float8
		FROM bookings
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status`, from, to)
	if err != nil {
		return nil, 0, mapErr(err, "count bookings")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	var revenue float64
	for rows.Next() {
		var status string
		var n int64
		var sum float64
		if err := rows.Scan(&status, &n, &sum); err != nil {
			return nil, 0, mapErr(err, "scan booking count")
		}
		counts[status] = n
		if status == string(model.BookingConfirmed) {
			revenue = sum
		}
	}
	return counts, revenue, mapErr(rows.Err(), "count bookings")
}
