package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dhowcruise/booking-platform/internal/model"
)

// ListSettings returns every setting ordered by key.
func (db *DB) ListSettings(ctx context.Context) ([]model.Setting, error) {
	rows, err := db.pool.Query(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, mapErr(err, "list settings")
	}
	defer rows.Close()

	out := make([]model.Setting, 0)
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, mapErr(err, "scan setting")
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err(), "list settings")
}

// UpsertSetting stores value under key.
func (db *DB) UpsertSetting(ctx context.Context, key string, value any) (*model.Setting, error) {
	// Marshalled up front: pgx sends string arguments to jsonb verbatim.
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode setting %q: %w", key, err)
	}

	s := model.Setting{Key: key}
	err = db.pool.QueryRow(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
		RETURNING value, updated_at`, key, raw,
	).Scan(&s.Value, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, "upsert setting")
	}
	return &s, nil
}

// DeleteSetting removes a setting.
func (db *DB) DeleteSetting(ctx context.Context, key string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	return requireRow(tag, err, "delete setting")
}
