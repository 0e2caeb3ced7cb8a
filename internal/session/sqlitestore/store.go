// Package sqlitestore persists session flags in a local sqlite database so
// a restarted client remembers whether it was signed in.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/session"
)

const (
	keyAuthenticated = "is_authenticated"
	keyExpiresAt     = "access_token_expires_at"
)

// Store implements session.Store on the session_flags table.
type Store struct {
	db *sql.DB
}

var _ session.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the persisted flags. Missing rows mean "signed out".
func (s *Store) Load(ctx context.Context) (session.Persisted, error) {
	var p session.Persisted

	authed, err := get(ctx, s.db, keyAuthenticated)
	if err != nil {
		return p, err
	}
	expires, err := get(ctx, s.db, keyExpiresAt)
	if err != nil {
		return p, err
	}

	p.IsAuthenticated = authed == "1"
	if expires != "" {
		t, err := time.Parse(time.RFC3339Nano, expires)
		if err != nil {
			return session.Persisted{}, fmt.Errorf("failed to parse %s: %w", keyExpiresAt, err)
		}
		p.AccessTokenExpiresAt = t
	}
	return p, nil
}

// Save writes both flags in one transaction. A zero expiry removes the row.
func (s *Store) Save(ctx context.Context, p session.Persisted) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		authed := "0"
		if p.IsAuthenticated {
			authed = "1"
		}
		if err := set(ctx, tx, keyAuthenticated, authed); err != nil {
			return err
		}
		if p.AccessTokenExpiresAt.IsZero() {
			return del(ctx, tx, keyExpiresAt)
		}
		return set(ctx, tx, keyExpiresAt, p.AccessTokenExpiresAt.UTC().Format(time.RFC3339Nano))
	})
}

func get(ctx context.Context, db dbx.DBTX, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM session_flags WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session flag[%s]: %w", key, err)
	}
	return value, nil
}

func set(ctx context.Context, db dbx.DBTX, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO session_flags (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set session flag[%s]: %w", key, err)
	}
	return nil
}

func del(ctx context.Context, db dbx.DBTX, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM session_flags WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete session flag[%s]: %w", key, err)
	}
	return nil
}
