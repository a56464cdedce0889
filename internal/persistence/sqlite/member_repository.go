package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

const memberColumns = `id, name, email, phone, member_type, status, notes, created_at, updated_at`

// MemberRepository implements persistence.MemberRepository using SQLite
type MemberRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMemberRepository creates a new SQLite member repository
func NewMemberRepository(pool *ConnectionPool) *MemberRepository {
	return &MemberRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateMember inserts a new member
func (r *MemberRepository) CreateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	if member.UpdatedAt.IsZero() {
		member.UpdatedAt = member.CreatedAt
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		member.ID,
		member.Name,
		nullString(normalizeMemberEmail(member.Email)),
		nullString(member.Phone),
		member.MemberType,
		member.Status,
		nullString(member.Notes),
		formatTime(member.CreatedAt),
		formatTime(member.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateMember updates an existing member
func (r *MemberRepository) UpdateMember(ctx context.Context, member persistence.Member) error {
	if member.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if member.UpdatedAt.IsZero() {
		member.UpdatedAt = time.Now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE members
		SET name = ?, email = ?, phone = ?, member_type = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		member.Name,
		nullString(normalizeMemberEmail(member.Email)),
		nullString(member.Phone),
		member.MemberType,
		member.Status,
		nullString(member.Notes),
		formatTime(member.UpdatedAt),
		member.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return r.mapper.RequireRowsAffected(result)
}

// GetMember retrieves a member by ID
func (r *MemberRepository) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	if id == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	return r.scanMember(r.helper.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id))
}

// FindMemberByName returns the oldest member whose name matches ignoring
// case and surrounding whitespace.
func (r *MemberRepository) FindMemberByName(ctx context.Context, name string) (persistence.Member, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return persistence.Member{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE lower(trim(name)) = lower(?)
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, trimmed)
	return r.scanMember(row)
}

// ListMembers returns all members ordered by name
func (r *MemberRepository) ListMembers(ctx context.Context) ([]persistence.Member, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY name COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var members []persistence.Member
	for rows.Next() {
		member, err := r.scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return members, nil
}

// DeleteMember removes a member together with their attendance records
func (r *MemberRepository) DeleteMember(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM attendance WHERE member_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM members WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.mapper.RequireRowsAffected(result)
	})
}

func (r *MemberRepository) scanMember(row rowScanner) (persistence.Member, error) {
	var member persistence.Member
	var email, phone, notes sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(
		&member.ID,
		&member.Name,
		&email,
		&phone,
		&member.MemberType,
		&member.Status,
		&notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Member{}, r.mapper.MapError(err)
	}

	member.Email = stringPtr(email)
	member.Phone = stringPtr(phone)
	member.Notes = stringPtr(notes)

	var err error
	if member.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return persistence.Member{}, err
	}
	if member.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return persistence.Member{}, err
	}
	return member, nil
}

func normalizeMemberEmail(email *string) *string {
	if email == nil {
		return nil
	}
	normalized := normalizeEmail(*email)
	if normalized == "" {
		return nil
	}
	return &normalized
}
