package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

const attendanceColumns = `id, member_id, meeting_id, attended_at, attended_day, status, notes, created_at`

// AttendanceRepository implements persistence.AttendanceRepository using SQLite
type AttendanceRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewAttendanceRepository creates a new SQLite attendance repository
func NewAttendanceRepository(pool *ConnectionPool) *AttendanceRepository {
	return &AttendanceRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateAttendance inserts a record. A second record for the same member,
// meeting and day fails with persistence.ErrDuplicate; a missing member or
// meeting fails with persistence.ErrForeignKeyViolation.
func (r *AttendanceRepository) CreateAttendance(ctx context.Context, attendance persistence.Attendance) error {
	if attendance.ID == "" || attendance.Day == "" {
		return persistence.ErrConstraintViolation
	}
	if attendance.CreatedAt.IsZero() {
		attendance.CreatedAt = time.Now().UTC()
	}
	if attendance.Status == "" {
		attendance.Status = "PRESENT"
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		attendance.ID,
		attendance.MemberID,
		attendance.MeetingID,
		formatTime(attendance.Date),
		attendance.Day,
		attendance.Status,
		nullString(attendance.Notes),
		formatTime(attendance.CreatedAt),
	)
	return r.mapper.MapError(err)
}

// ListAttendance returns records matching filter, most recent first
func (r *AttendanceRepository) ListAttendance(ctx context.Context, filter persistence.AttendanceFilter) ([]persistence.Attendance, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.From != nil {
		conditions = append(conditions, "attended_at >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "attended_at <= ?")
		args = append(args, formatTime(*filter.To))
	}
	if filter.MemberID != "" {
		conditions = append(conditions, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if filter.MeetingID != "" {
		conditions = append(conditions, "meeting_id = ?")
		args = append(args, filter.MeetingID)
	}

	query := `SELECT ` + attendanceColumns + ` FROM attendance`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY attended_at DESC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var records []persistence.Attendance
	for rows.Next() {
		record, err := r.scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}

// CountAttendance returns the total number of records
func (r *AttendanceRepository) CountAttendance(ctx context.Context) (int, error) {
	var count int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func (r *AttendanceRepository) scanAttendance(row rowScanner) (persistence.Attendance, error) {
	var record persistence.Attendance
	var attendedAt, createdAt string
	var notes sql.NullString

	if err := row.Scan(
		&record.ID,
		&record.MemberID,
		&record.MeetingID,
		&attendedAt,
		&record.Day,
		&record.Status,
		&notes,
		&createdAt,
	); err != nil {
		return persistence.Attendance{}, r.mapper.MapError(err)
	}

	record.Notes = stringPtr(notes)

	var err error
	if record.Date, err = parseTime(attendedAt, "attended_at"); err != nil {
		return persistence.Attendance{}, err
	}
	if record.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return persistence.Attendance{}, err
	}
	return record, nil
}
