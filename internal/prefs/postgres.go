package prefs

import (
	"context"
	"database/sql"
	"errors"

	"bus-tracker/internal/db"
)

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn and makes sure the preferences table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := db.EnsurePreferencesTable(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &PostgresStore{db: conn}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	v, err := db.GetPreference(ctx, s.db, key)
	if errors.Is(err, db.ErrNoPreference) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	return db.SetPreference(ctx, s.db, key, value)
}

func (s *PostgresStore) Close() error { return s.db.Close() }
