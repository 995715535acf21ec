// Package auth registers and authenticates users and resolves session tokens
// into request identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"finance-tracker/internal/logging"
	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

// DefaultSessionDuration is how long sessions last (30 days).
const DefaultSessionDuration = 30 * 24 * time.Hour

const maxUsernameLength = 150

// Service implements signup, login, logout and session checks.
type Service struct {
	db              *storage.DB
	log             logrus.FieldLogger
	sessionDuration time.Duration
}

// NewService creates a Service. A non-positive sessionDuration falls back to
// DefaultSessionDuration.
func NewService(db *storage.DB, log logrus.FieldLogger, sessionDuration time.Duration) *Service {
	if sessionDuration <= 0 {
		sessionDuration = DefaultSessionDuration
	}
	return &Service{
		db:              db,
		log:             log.WithField(logging.FieldComponent, logging.ComponentAuth),
		sessionDuration: sessionDuration,
	}
}

// SessionDuration returns the configured session lifetime.
func (s *Service) SessionDuration() time.Duration {
	return s.sessionDuration
}

// RegisterInput is the signup form. PasswordConfirmation is checked only when set.
type RegisterInput struct {
	Username             string
	Email                string
	Password             string
	PasswordConfirmation *string
}

// Register validates in, rejects taken usernames and emails, and stores a new
// user with a hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	switch {
	case username == "":
		return nil, models.Invalid("username", "username is required")
	case len(username) > maxUsernameLength:
		return nil, models.Invalid("username", "username must be at most %d characters", maxUsernameLength)
	case strings.TrimSpace(in.Password) == "":
		return nil, models.Invalid("password", "password is required")
	case len(in.Password) > MaxPasswordBytes:
		return nil, models.Invalid("password", "password must be at most %d bytes", MaxPasswordBytes)
	case in.PasswordConfirmation != nil && *in.PasswordConfirmation != in.Password:
		return nil, models.Invalid("confirm_password", "passwords do not match")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, models.Invalid("email", "email address is not valid")
		}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user *models.User
	err = s.db.InTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetUserByUsername(ctx, username); err == nil {
			return models.ErrDuplicateUsername
		} else if !errors.Is(err, models.ErrNotFound) {
			return err
		}
		if email != "" {
			if _, err := q.GetUserByEmail(ctx, email); err == nil {
				return models.ErrDuplicateEmail
			} else if !errors.Is(err, models.ErrNotFound) {
				return err
			}
		}

		var err error
		user, err = q.CreateUser(ctx, username, email, hash)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		logging.FieldUserID:    user.ID,
		logging.FieldOperation: logging.OpCreate,
	}).Info("user registered")
	return user, nil
}

// Authenticate returns the user when username and password match. Unknown
// users and wrong passwords both yield models.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.db.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, models.ErrNotFound) {
		CheckPassword(password, dummyHash())
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, models.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the user and opens a new session.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return nil, nil, fmt.Errorf("generate session token: %w", err)
	}
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.sessionDuration),
	}
	if err := s.db.CreateSession(ctx, session.Token, session.UserID, session.ExpiresAt); err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Logout invalidates the session behind token. Calling it again, or with an
// unknown token, is a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.db.DeleteSession(ctx, token)
}

// Identity is the authenticated user bound to a request.
type Identity struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
	// Renewed is set when the session expiry was pushed forward and the
	// cookie should be reissued.
	Renewed bool
}

// RequireIdentity resolves token into an Identity or fails with
// models.ErrUnauthenticated. Sessions in the second half of their lifetime
// are renewed so active users stay logged in.
func (s *Service) RequireIdentity(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, models.ErrUnauthenticated
	}
	info, err := s.db.ValidateSessionWithInfo(ctx, token)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	id := &Identity{User: info.User, Token: token, ExpiresAt: info.ExpiresAt}
	now := time.Now()
	if info.ExpiresAt.Sub(now) < s.sessionDuration/2 {
		newExpiresAt := now.Add(s.sessionDuration)
		if err := s.db.RenewSession(ctx, token, newExpiresAt); err != nil {
			// If renewal fails, just continue with the current session
			s.log.WithError(err).Warn("session renewal failed")
		} else {
			id.ExpiresAt = newExpiresAt
			id.Renewed = true
		}
	}
	return id, nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.db.CleanExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("clean expired sessions: %w", err)
	}
	if n > 0 {
		s.log.WithField("purged", n).Info("expired sessions removed")
	}
	return n, nil
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, error) {
	if id, ok := ctx.Value(identityKey{}).(*Identity); ok && id != nil {
		return id, nil
	}
	return nil, models.ErrUnauthenticated
}
