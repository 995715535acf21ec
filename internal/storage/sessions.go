package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finance-tracker/internal/models"
)

// CreateSession creates a new session for a user.
func (q *Queries) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	now := time.Now().UTC()
	_, err := q.exec(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt.UTC(), now,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
// Unknown and expired tokens yield models.ErrNotFound.
func (q *Queries) ValidateSessionWithInfo(ctx context.Context, token string) (*SessionInfo, error) {
	row := q.queryRow(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, time.Now().UTC())

	var (
		u                       models.User
		email                   sql.NullString
		lastActivity, expiresAt time.Time
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.CreatedAt, &lastActivity, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}
	u.Email = email.String
	return &SessionInfo{
		User:         &u,
		LastActivity: lastActivity.UTC(),
		ExpiresAt:    expiresAt.UTC(),
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (q *Queries) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	now := time.Now().UTC()
	_, err := q.exec(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		now, newExpiresAt.UTC(), token,
	)
	return err
}

// DeleteSession removes a session by token. Deleting an unknown token is not an error.
func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.exec(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions and returns how many were dropped.
func (q *Queries) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := q.exec(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
