package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"zeinbus/internal/session"
)

// GetSession returns the session stored under key, or session.ErrNoSession.
func (db *DB) GetSession(ctx context.Context, key string) (*session.Session, error) {
	row := db.QueryRowContext(ctx, `
		SELECT key, token, user_id, COALESCE(username, ''), expires_at, created_at
		FROM sessions
		WHERE key = ?`, key)

	var (
		s       session.Session
		expires sql.NullTime
	)
	err := row.Scan(&s.Key, &s.Token, &s.UserID, &s.Username, &expires, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNoSession
		}
		return nil, err
	}
	if expires.Valid {
		s.ExpiresAt = expires.Time.UTC()
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// SaveSession creates or replaces the session under s.Key.
func (db *DB) SaveSession(ctx context.Context, s *session.Session) error {
	var expires any
	if !s.ExpiresAt.IsZero() {
		expires = s.ExpiresAt.UTC()
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (key, token, user_id, username, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			username = excluded.username,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		s.Key, s.Token, s.UserID, s.Username, expires, created.UTC())
	return err
}

// DeleteSession removes the session under key. Missing keys are not an error.
func (db *DB) DeleteSession(ctx context.Context, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
	return err
}

// PurgeExpiredSessions removes sessions whose token expired before now.
func (db *DB) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListSessions returns the unexpired sessions whose key starts with prefix.
func (db *DB) ListSessions(ctx context.Context, prefix string, now time.Time) ([]session.Session, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT key, token, user_id, COALESCE(username, ''), expires_at, created_at
		FROM sessions
		WHERE key LIKE ? || '%' AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at`, prefix, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		var (
			s       session.Session
			expires sql.NullTime
		)
		if err := rows.Scan(&s.Key, &s.Token, &s.UserID, &s.Username, &expires, &s.CreatedAt); err != nil {
			return nil, err
		}
		if expires.Valid {
			s.ExpiresAt = expires.Time.UTC()
		}
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
