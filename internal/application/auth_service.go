package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

// CredentialStore exposes the staff account lookups required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// isNotFound accepts both application and persistence sentinels because the
// store adapters pass repository errors through unchanged.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

// AuthService coordinates authentication flows such as login and session refresh.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionRepository
	verifyPassword PasswordVerifier
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, sessions SessionRepository, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, verify, tokenGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions SessionRepository, verify PasswordVerifier, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		verifyPassword: verify,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     sessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// configured reports the first missing collaborator among those an operation
// needs.
func (s *AuthService) configured(needCredentials, needSessions bool) error {
	switch {
	case s == nil:
		return fmt.Errorf("AuthService is nil")
	case needCredentials && s.credentials == nil:
		return fmt.Errorf("credential store not configured")
	case needSessions && s.sessions == nil:
		return fmt.Errorf("session repository not configured")
	}
	return nil
}

// activeSession loads the session behind token and rejects it once revoked or
// past its expiry. A token the store does not know yields missing.
func (s *AuthService) activeSession(ctx context.Context, token string, now time.Time, missing error) (Session, error) {
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return Session{}, missing
		}
		return Session{}, err
	}
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		return Session{}, ErrSessionRevoked
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(now) {
		return Session{}, ErrSessionExpired
	}
	return session, nil
}

// Authenticate checks staff credentials and opens a session. Expired
// sessions are pruned on every login.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if err = s.configured(true, false); err != nil {
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID, "session_id", result.Session.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	if creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email); err != nil {
		if isNotFound(err) {
			err = ErrInvalidCredentials
		}
		return
	}
	if creds.Disabled {
		err = ErrAccountDisabled
		return
	}
	// Malformed or foreign hashes are indistinguishable from a wrong password.
	if s.verifyPassword(creds.PasswordHash, params.Password) != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	session := s.openSession(creds.User.ID, params.Fingerprint, now)
	if s.sessions != nil {
		if err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
			return
		}
		if session, err = s.sessions.CreateSession(ctx, session); err != nil {
			return
		}
	}

	result = AuthenticateResult{User: creds.User, Session: session}
	return
}

func (s *AuthService) openSession(userID, fingerprint string, now time.Time) Session {
	id := s.tokenGenerator()
	token := s.tokenGenerator()
	if token == "" {
		token = id
	}
	return Session{
		ID:          id,
		UserID:      userID,
		Token:       token,
		Fingerprint: strings.TrimSpace(fingerprint),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTTL),
	}
}

// RefreshSession swaps the token of a live session for a fresh one and
// restarts its TTL.
func (s *AuthService) RefreshSession(ctx context.Context, params RefreshSessionParams) (result RefreshSessionResult, err error) {
	if err = s.configured(false, true); err != nil {
		return
	}

	token := strings.TrimSpace(params.Token)
	logger := s.loggerWith(ctx, "RefreshSession", "token_provided", token != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session refresh failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", result.Session.ID, "user_id", result.Session.UserID).InfoContext(ctx, "session refreshed")
	}()

	if token == "" {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	var session Session
	if session, err = s.activeSession(ctx, token, now, ErrInvalidCredentials); err != nil {
		return
	}

	if rotated := s.tokenGenerator(); rotated != "" {
		session.Token = rotated
	}
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(s.sessionTTL)
	if fp := strings.TrimSpace(params.Fingerprint); fp != "" {
		session.Fingerprint = fp
	}

	if session, err = s.sessions.UpdateSession(ctx, session); err != nil {
		return
	}
	result = RefreshSessionResult{Session: session}
	return
}

// RevokeSession ends the session behind token, then prunes expired ones.
func (s *AuthService) RevokeSession(ctx context.Context, token string) (err error) {
	if err = s.configured(false, true); err != nil {
		return err
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "RevokeSession")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "session revoked")
	}()

	now := s.now()
	if _, err = s.sessions.RevokeSession(ctx, token, now); err != nil {
		if isNotFound(err) {
			err = ErrInvalidCredentials
		}
		return err
	}
	if err = s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return fmt.Errorf("prune expired sessions: %w", err)
	}
	return nil
}

// ValidateSession resolves token to the principal of a live session whose
// account still exists.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if err = s.configured(true, true); err != nil {
		return
	}

	token = strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", token != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	if token == "" {
		err = ErrInvalidCredentials
		return
	}

	var session Session
	if session, err = s.activeSession(ctx, token, s.now(), ErrUnauthorized); err != nil {
		return
	}

	var user User
	if user, err = s.lookupUser(ctx, session.UserID); err != nil {
		return
	}
	principal = Principal{UserID: user.ID, IsAdmin: user.IsAdmin}
	return
}

// CurrentUser returns the account behind an authenticated principal.
func (s *AuthService) CurrentUser(ctx context.Context, principal Principal) (User, error) {
	if err := s.configured(true, false); err != nil {
		return User{}, err
	}
	if principal.UserID == "" {
		return User{}, ErrUnauthorized
	}
	return s.lookupUser(ctx, principal.UserID)
}

// lookupUser treats a vanished account as an authorization failure.
func (s *AuthService) lookupUser(ctx context.Context, userID string) (User, error) {
	user, err := s.credentials.GetUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}
	return user, nil
}
