package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dhowcruise/booking-platform/internal/model"
)

const discountColumns = `id, code, description, type, value, min_amount, max_uses, used_count,
	valid_from, valid_until, active, created_at, updated_at`

func scanDiscount(row pgx.Row) (*model.Discount, error) {
	var d model.Discount
	var typ string
	err := row.Scan(&d.ID, &d.Code, &d.Description, &typ, &d.Value, &d.MinAmount, &d.MaxUses, &d.UsedCount,
		&d.ValidFrom, &d.ValidUntil, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Type = model.DiscountType(typ)
	return &d, nil
}

// ListDiscounts returns every discount, newest first.
func (db *DB) ListDiscounts(ctx context.Context) ([]model.Discount, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+discountColumns+` FROM discounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapErr(err, "list discounts")
	}
	defer rows.Close()

	out := make([]model.Discount, 0)
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, mapErr(err, "scan discount")
		}
		out = append(out, *d)
	}
	return out, mapErr(rows.Err(), "list discounts")
}

// GetDiscount loads a discount by id.
func (db *DB) GetDiscount(ctx context.Context, id string) (*model.Discount, error) {
	d, err := scanDiscount(db.pool.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "get discount")
	}
	return d, nil
}

// GetDiscountByCode loads a discount by code, ignoring case.
func (db *DB) GetDiscountByCode(ctx context.Context, code string) (*model.Discount, error) {
	d, err := scanDiscount(db.pool.QueryRow(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE upper(code) = upper($1)`, code))
	if err != nil {
		return nil, mapErr(err, "get discount by code")
	}
	return d, nil
}

// CreateDiscount inserts d.
func (db *DB) CreateDiscount(ctx context.Context, d *model.Discount) error {
	err := db.pool.QueryRow(ctx, `
		INSERT INTO discounts (id, code, description, type, value, min_amount, max_uses,
			valid_from, valid_until, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING used_count, created_at, updated_at`,
		d.ID, d.Code, d.Description, string(d.Type), d.Value, d.MinAmount, d.MaxUses,
		d.ValidFrom, d.ValidUntil, d.Active,
	).Scan(&d.UsedCount, &d.CreatedAt, &d.UpdatedAt)
	return mapErr(err, "insert discount")
}

// UpdateDiscount replaces the editable columns of d. Usage is preserved.
func (db *DB) UpdateDiscount(ctx context.Context, d *model.Discount) error {
	err := db.pool.QueryRow(ctx, `
		UPDATE discounts SET code = $2, description = $3, type = $4, value = $5, min_amount = $6,
			max_uses = $7, valid_from = $8, valid_until = $9, active = $10, updated_at = now()
		WHERE id = $1
		RETURNING used_count, created_at, updated_at`,
		d.ID, d.Code, d.Description, string(d.Type), d.Value, d.MinAmount, d.MaxUses,
		d.ValidFrom, d.ValidUntil, d.Active,
	).Scan(&d.UsedCount, &d.CreatedAt, &d.UpdatedAt)
	return mapErr(err, "update discount")
}

// SetDiscountActive sets the active flag and returns the updated row.
func (db *DB) SetDiscountActive(ctx context.Context, id string, active bool) (*model.Discount, error) {
	d, err := scanDiscount(db.pool.QueryRow(ctx, `
		UPDATE discounts SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+discountColumns, id, active))
	if err != nil {
		return nil, mapErr(err, "set discount active")
	}
	return d, nil
}

// DeleteDiscount removes a discount.
func (db *DB) DeleteDiscount(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	return requireRow(tag, err, "delete discount")
}
