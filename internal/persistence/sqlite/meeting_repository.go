package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

const meetingColumns = `id, title, notes, location, meeting_type, meeting_date, repeat_rule, custom_days,
	exceptions, meeting_time, duration, color, check_in_tokens, created_at, updated_at`

// MeetingRepository implements persistence.MeetingRepository using SQLite
type MeetingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewMeetingRepository creates a new SQLite meeting repository
func NewMeetingRepository(pool *ConnectionPool) *MeetingRepository {
	return &MeetingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateMeeting inserts a new meeting definition
func (r *MeetingRepository) CreateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	if meeting.UpdatedAt.IsZero() {
		meeting.UpdatedAt = meeting.CreatedAt
	}

	args, err := meetingArgs(meeting)
	if err != nil {
		return err
	}

	_, err = r.helper.Exec(ctx, `
		INSERT INTO meetings (`+meetingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]any{meeting.ID}, append(args, formatTime(meeting.CreatedAt), formatTime(meeting.UpdatedAt))...)...)
	return r.mapper.MapError(err)
}

// UpdateMeeting replaces every mutable column of a meeting, including its
// token cache.
func (r *MeetingRepository) UpdateMeeting(ctx context.Context, meeting persistence.Meeting) error {
	if meeting.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if meeting.UpdatedAt.IsZero() {
		meeting.UpdatedAt = time.Now().UTC()
	}

	args, err := meetingArgs(meeting)
	if err != nil {
		return err
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE meetings
		SET title = ?, notes = ?, location = ?, meeting_type = ?, meeting_date = ?, repeat_rule = ?,
			custom_days = ?, exceptions = ?, meeting_time = ?, duration = ?, color = ?,
			check_in_tokens = ?, updated_at = ?
		WHERE id = ?
	`, append(args, formatTime(meeting.UpdatedAt), meeting.ID)...)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return r.mapper.RequireRowsAffected(result)
}

// UpdateMeetingTokens replaces only the token cache column
func (r *MeetingRepository) UpdateMeetingTokens(ctx context.Context, id string, tokens []byte, updatedAt time.Time) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	if len(tokens) == 0 {
		tokens = []byte("[]")
	}
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE meetings SET check_in_tokens = ?, updated_at = ? WHERE id = ?
	`, string(tokens), formatTime(updatedAt), id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return r.mapper.RequireRowsAffected(result)
}

// GetMeeting retrieves a meeting by ID
func (r *MeetingRepository) GetMeeting(ctx context.Context, id string) (persistence.Meeting, error) {
	if id == "" {
		return persistence.Meeting{}, persistence.ErrNotFound
	}
	return r.scanMeeting(r.helper.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
}

// ListMeetings returns all meetings, newest first
func (r *MeetingRepository) ListMeetings(ctx context.Context) ([]persistence.Meeting, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+meetingColumns+` FROM meetings ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var meetings []persistence.Meeting
	for rows.Next() {
		meeting, err := r.scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return meetings, nil
}

// DeleteMeeting removes a meeting together with its attendance records
func (r *MeetingRepository) DeleteMeeting(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx, `DELETE FROM attendance WHERE meeting_id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM meetings WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return r.mapper.RequireRowsAffected(result)
	})
}

// meetingArgs returns the column values from title through check_in_tokens.
func meetingArgs(meeting persistence.Meeting) ([]any, error) {
	customDays, err := encodeStringList(meeting.CustomDays)
	if err != nil {
		return nil, err
	}
	exceptions, err := encodeStringList(meeting.Exceptions)
	if err != nil {
		return nil, err
	}
	tokens := string(meeting.CheckInTokens)
	if tokens == "" {
		tokens = "[]"
	}
	repeat := meeting.Repeat
	if repeat == "" {
		repeat = "none"
	}

	return []any{
		meeting.Title,
		nullString(meeting.Notes),
		nullString(meeting.Location),
		meeting.Type,
		nullTime(meeting.Date),
		repeat,
		customDays,
		exceptions,
		nullString(meeting.Time),
		nullString(meeting.Duration),
		nullString(meeting.Color),
		tokens,
	}, nil
}

func (r *MeetingRepository) scanMeeting(row rowScanner) (persistence.Meeting, error) {
	var meeting persistence.Meeting
	var notes, location, date, meetingTime, duration, color sql.NullString
	var customDays, exceptions, tokens, createdAt, updatedAt string

	if err := row.Scan(
		&meeting.ID,
		&meeting.Title,
		&notes,
		&location,
		&meeting.Type,
		&date,
		&meeting.Repeat,
		&customDays,
		&exceptions,
		&meetingTime,
		&duration,
		&color,
		&tokens,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Meeting{}, r.mapper.MapError(err)
	}

	meeting.Notes = stringPtr(notes)
	meeting.Location = stringPtr(location)
	meeting.Time = stringPtr(meetingTime)
	meeting.Duration = stringPtr(duration)
	meeting.Color = stringPtr(color)
	meeting.CheckInTokens = []byte(tokens)

	var err error
	if meeting.Date, err = parseTimePtr(date, "meeting_date"); err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.CustomDays, err = decodeStringList(customDays, "custom_days"); err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.Exceptions, err = decodeStringList(exceptions, "exceptions"); err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return persistence.Meeting{}, err
	}
	if meeting.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return persistence.Meeting{}, err
	}
	return meeting, nil
}
