package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

const sessionColumns = `id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at`

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateSession stores a new session token for a user
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.UserID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}
	normalized, err := normalizeSession(session)
	if err != nil {
		return persistence.Session{}, err
	}

	now := time.Now().UTC()
	if normalized.CreatedAt.IsZero() {
		normalized.CreatedAt = now
	}
	if normalized.UpdatedAt.IsZero() {
		normalized.UpdatedAt = normalized.CreatedAt
	}

	_, err = r.helper.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		normalized.ID,
		normalized.UserID,
		normalized.Token,
		normalized.Fingerprint,
		formatTime(normalized.ExpiresAt),
		nullTime(normalized.RevokedAt),
		formatTime(normalized.CreatedAt),
		formatTime(normalized.UpdatedAt),
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	return normalized, nil
}

// GetSession retrieves a session by its token value
func (r *SessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	normalizedToken := strings.TrimSpace(token)
	if normalizedToken == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, normalizedToken)
	return r.scanSession(row)
}

// UpdateSession updates the mutable fields of an existing session. The user
// and creation time are preserved.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	normalized, err := normalizeSession(session)
	if err != nil {
		return persistence.Session{}, err
	}

	var updated persistence.Session
	err = r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := r.scanSession(r.helper.QueryRowTx(ctx, tx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, normalized.ID))
		if err != nil {
			return err
		}

		normalized.UserID = current.UserID
		normalized.CreatedAt = current.CreatedAt
		if normalized.UpdatedAt.IsZero() {
			normalized.UpdatedAt = time.Now().UTC()
		}

		result, err := r.helper.ExecTx(ctx, tx, `
			UPDATE sessions
			SET token = ?, fingerprint = ?, expires_at = ?, revoked_at = ?, updated_at = ?
			WHERE id = ?
		`,
			normalized.Token,
			normalized.Fingerprint,
			formatTime(normalized.ExpiresAt),
			nullTime(normalized.RevokedAt),
			formatTime(normalized.UpdatedAt),
			normalized.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		if err := r.mapper.RequireRowsAffected(result); err != nil {
			return err
		}

		updated = normalized
		return nil
	})
	if err != nil {
		return persistence.Session{}, err
	}
	return updated, nil
}

// RevokeSession marks a session as revoked based on its token value
func (r *SessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	normalizedToken := strings.TrimSpace(token)
	if normalizedToken == "" {
		return persistence.Session{}, persistence.ErrNotFound
	}

	revokedAtUTC := revokedAt.UTC()
	result, err := r.helper.Exec(ctx, `
		UPDATE sessions
		SET revoked_at = ?, updated_at = ?
		WHERE token = ?
	`,
		formatTime(revokedAtUTC),
		formatTime(revokedAtUTC),
		normalizedToken,
	)
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	if err := r.mapper.RequireRowsAffected(result); err != nil {
		return persistence.Session{}, err
	}

	return r.GetSession(ctx, normalizedToken)
}

// DeleteExpiredSessions removes sessions that expired on or before reference
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(reference))
	return r.mapper.MapError(err)
}

func (r *SessionRepository) scanSession(row rowScanner) (persistence.Session, error) {
	var session persistence.Session
	var expiresAt, createdAt, updatedAt string
	var revokedAt sql.NullString

	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.Fingerprint,
		&expiresAt,
		&revokedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}

	var err error
	if session.ExpiresAt, err = parseTime(expiresAt, "expires_at"); err != nil {
		return persistence.Session{}, err
	}
	if session.RevokedAt, err = parseTimePtr(revokedAt, "revoked_at"); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return persistence.Session{}, err
	}
	return session, nil
}

func normalizeSession(session persistence.Session) (persistence.Session, error) {
	if session.ID == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	session.Token = strings.TrimSpace(session.Token)
	if session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	session.Fingerprint = strings.TrimSpace(session.Fingerprint)
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	if session.RevokedAt != nil {
		revoked := session.RevokedAt.UTC()
		session.RevokedAt = &revoked
	}
	return session, nil
}
