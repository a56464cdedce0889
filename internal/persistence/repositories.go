package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	UpdateSession(ctx context.Context, session Session) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// MemberRepository exposes CRUD operations for club members.
type MemberRepository interface {
	CreateMember(ctx context.Context, member Member) error
	UpdateMember(ctx context.Context, member Member) error
	GetMember(ctx context.Context, id string) (Member, error)
	// FindMemberByName matches names case-insensitively.
	FindMemberByName(ctx context.Context, name string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	DeleteMember(ctx context.Context, id string) error
}

// MeetingRepository stores meeting definitions and their token cache.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) error
	UpdateMeeting(ctx context.Context, meeting Meeting) error
	// UpdateMeetingTokens replaces only the token cache of a meeting.
	UpdateMeetingTokens(ctx context.Context, id string, tokens []byte, updatedAt time.Time) error
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	ListMeetings(ctx context.Context) ([]Meeting, error)
	DeleteMeeting(ctx context.Context, id string) error
}

// AttendanceFilter narrows attendance queries. Zero values match everything.
type AttendanceFilter struct {
	From      *time.Time
	To        *time.Time
	MemberID  string
	MeetingID string
}

// AttendanceRepository stores attendance records.
type AttendanceRepository interface {
	CreateAttendance(ctx context.Context, attendance Attendance) error
	// ListAttendance returns matching records, most recent first.
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error)
	CountAttendance(ctx context.Context) (int, error)
}
