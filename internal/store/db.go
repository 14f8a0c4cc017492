// Package store persists site and chat rows in Postgres.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dhowcruise/booking-platform/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("already exists")
	// ErrReference is returned when a referenced row does not exist.
	ErrReference = errors.New("referenced row does not exist")
)

// Config holds database connection settings.
type Config struct {
	URL      string
	MaxConns int32
}

// DB is the Postgres-backed store.
type DB struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// Connect opens a connection pool and verifies it.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{pool: pool, logger: log.Module("store")}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	statements := splitStatements(schemaSQL)
	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	db.logger.Info("schema applied", zap.Int("statements", len(statements)))
	return nil
}

func splitStatements(sql string) []string {
	var out []string
	for _, part := range strings.Split(sql, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Ping checks database connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close closes the pool.
func (db *DB) Close() {
	db.pool.Close()
}

// mapErr translates driver errors into store errors and adds context.
func mapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case "23503":
			return fmt.Errorf("%s: %w", op, ErrReference)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// requireRow turns a zero-row command into ErrNotFound.
func requireRow(tag pgconn.CommandTag, err error, op string) error {
	if err != nil {
		return mapErr(err, op)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
