package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrNoPreference is returned when a preference key has never been written.
var ErrNoPreference = errors.New("preference not set")

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// EnsurePreferencesTable creates the key/value table backing user
// preferences.
func EnsurePreferencesTable(ctx context.Context, db *sql.DB) error {
	q := `
CREATE TABLE IF NOT EXISTS tracker_preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create tracker_preferences: %w", err)
	}
	return nil
}

func GetPreference(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM tracker_preferences WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoPreference
	}
	if err != nil {
		return "", fmt.Errorf("query preference %q: %w", key, err)
	}
	return value, nil
}

func SetPreference(ctx context.Context, db *sql.DB, key, value string) error {
	q := `
INSERT INTO tracker_preferences (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("upsert preference %q: %w", key, err)
	}
	return nil
}
