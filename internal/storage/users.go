package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"finance-tracker/internal/models"
)

const userColumns = "id, username, email, password_hash, created_at"

// CreateUser creates a new user with the given username, optional email and
// password hash. Unique violations are reported as the matching duplicate error.
func (q *Queries) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	var id int64
	err := q.queryRow(ctx,
		"INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id",
		username, nullString(email), passwordHash, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		if detail, ok := uniqueViolation(err); ok {
			if strings.Contains(detail, "email") {
				return nil, models.ErrDuplicateEmail
			}
			return nil, models.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return q.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return q.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return q.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

// GetUserByEmail retrieves a user by email.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return q.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

func (q *Queries) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		u     models.User
		email sql.NullString
	)
	err := q.queryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Email = email.String
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// UserCount returns the number of users in the database.
func (q *Queries) UserCount(ctx context.Context) (int, error) {
	var count int
	err := q.queryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// uniqueViolation reports whether err is a unique-constraint failure and
// returns the driver detail naming the offending column or constraint.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName, pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		msg, code := liteErr.Error(), liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return msg, true
		}
		// Without extended result codes only the primary code is set.
		return msg, code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(msg, "UNIQUE")
	}
	return "", false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
