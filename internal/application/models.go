package application

import (
	"strings"
	"time"

	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/recurrence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// Member status values.
const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

// DefaultMemberType is assigned to members created without a type, including
// walk-ins created by QR check-in.
const DefaultMemberType = "GUEST"

// MemberInput captures caller provided member fields.
type MemberInput struct {
	Name       string
	Email      *string
	Phone      *string
	MemberType string
	Status     string
	Notes      *string
}

// Member represents a club roster entry.
type Member struct {
	ID         string
	Name       string
	Email      *string
	Phone      *string
	MemberType string
	Status     string
	Notes      *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateMemberParams wraps the data required to create a member.
type CreateMemberParams struct {
	Principal Principal
	Input     MemberInput
}

// UpdateMemberParams wraps the data required to update a member.
type UpdateMemberParams struct {
	Principal Principal
	MemberID  string
	Input     MemberInput
}

// MemberStats summarises the roster.
type MemberStats struct {
	Total    int
	Active   int
	Inactive int
	ByType   map[string]int
}

// MeetingInput captures caller provided meeting fields. Date is required for
// one-off meetings and ignored for recurring ones.
type MeetingInput struct {
	Title      string
	Notes      string
	Location   string
	Type       string
	Date       *time.Time
	Repeat     string
	CustomDays []string
	Exceptions []string
	Time       string
	Duration   string
	Color      string
}

// Meeting represents a stored meeting definition together with its check-in
// token cache.
type Meeting struct {
	ID         string
	Title      string
	Notes      string
	Location   string
	Type       string
	Date       *time.Time
	Repeat     recurrence.RepeatRule
	CustomDays []string
	Exceptions []string
	Time       string
	Duration   string
	Color      string
	Tokens     []checkin.Token
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// calendarMeeting converts the meeting into the expander's input. Rows
// stored without a type render as DefaultMeetingType.
func (m Meeting) calendarMeeting() calendar.Meeting {
	meetingType := m.Type
	if strings.TrimSpace(meetingType) == "" {
		meetingType = DefaultMeetingType
	}
	return calendar.Meeting{
		ID:         m.ID,
		Title:      m.Title,
		Notes:      m.Notes,
		Location:   m.Location,
		Type:       meetingType,
		Date:       m.Date,
		Repeat:     m.Repeat,
		CustomDays: m.CustomDays,
		Exceptions: m.Exceptions,
		Time:       m.Time,
		Duration:   m.Duration,
		Color:      m.Color,
		Tokens:     m.Tokens,
		CreatedAt:  m.CreatedAt,
	}
}

// CreateMeetingParams wraps the data required to create a meeting.
type CreateMeetingParams struct {
	Principal Principal
	Input     MeetingInput
}

// UpdateMeetingParams wraps the data required to update a meeting.
type UpdateMeetingParams struct {
	Principal Principal
	MeetingID string
	Input     MeetingInput
}

// CalendarView is the merged occurrence list of every meeting.
type CalendarView struct {
	Events     []calendar.Occurrence
	DateCounts map[string]int
}

// AttendanceStatusPresent is the only status recorded by check-ins.
const AttendanceStatusPresent = "PRESENT"

// AttendanceRecord represents one recorded presence. MemberName and
// MeetingTitle are populated by listings only.
type AttendanceRecord struct {
	ID           string
	MemberID     string
	MeetingID    string
	Date         time.Time
	Day          string
	Status       string
	Notes        *string
	CreatedAt    time.Time
	MemberName   string
	MeetingTitle string
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	From      *time.Time
	To        *time.Time
	MemberID  string
	MeetingID string
}

// RecordAttendanceParams captures a manual attendance entry. Without a
// MeetingID the meeting scheduled today is used, created when missing.
type RecordAttendanceParams struct {
	MemberID  string
	MeetingID string
	Date      *time.Time
	Notes     string
}

// CheckInParams captures a QR check-in submitted by a scanning client.
type CheckInParams struct {
	Code       string
	MemberName string
}

// CheckInResult is the outcome of a QR check-in.
type CheckInResult struct {
	Member        Member
	Attendance    AttendanceRecord
	MemberCreated bool
}

// CheckInCode describes the occurrence a scanned code points at.
type CheckInCode struct {
	MeetingID    string
	Date         string
	MeetingTitle string
	Location     string
	Cancelled    bool
	Expired      bool
}

// AttendanceStats summarises all recorded attendance.
type AttendanceStats struct {
	TotalMembers    int
	TotalMeetings   int
	TotalAttendance int
	PresentCount    int
	AttendanceRate  float64
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Password    string
	IsAdmin     bool
}

// User represents a staff account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UpdateUserParams wraps the data required to update a user.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
	Disabled     bool
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// RefreshSessionParams captures the data required to refresh an existing session.
type RefreshSessionParams struct {
	Token       string
	Fingerprint string
}

// RefreshSessionResult captures the outcome of rotating a session token.
type RefreshSessionResult struct {
	Session Session
}
