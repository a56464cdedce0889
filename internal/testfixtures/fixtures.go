package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/club-crm/internal/application"
	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/persistence"
	"github.com/example/club-crm/internal/recurrence"
)

var (
	userCounter       uint64
	sessionCounter    uint64
	memberCounter     uint64
	meetingCounter    uint64
	attendanceCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic staff account.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("Staff %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) { f.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) { f.Email = email }
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) { f.PasswordHash = hash }
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) { f.IsAdmin = isAdmin }
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		IsAdmin:     f.IsAdmin,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{User: f.Application(), PasswordHash: f.PasswordHash}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		IsAdmin:      f.IsAdmin,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic session record.
type SessionFixture struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session valid for eight hours after ReferenceTime.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		UserID:      fmt.Sprintf("user-%03d", idx),
		Token:       fmt.Sprintf("token-%03d", idx),
		Fingerprint: fmt.Sprintf("fingerprint-%03d", idx),
		ExpiresAt:   referenceTime.Add(8 * time.Hour),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUserID sets the user ID.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) { f.UserID = id }
}

// WithSessionToken overrides the token value.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) { f.Token = token }
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) { f.ExpiresAt = t }
}

// WithSessionRevokedAt sets the optional revoked timestamp.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

// ----------------------------- Member fixtures --------------------------

// MemberFixture represents a deterministic roster entry.
type MemberFixture struct {
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

// MemberOption configures the generated member fixture.
type MemberOption func(*MemberFixture)

// NewMemberFixture returns an active MEMBER joined one day apart per fixture.
func NewMemberFixture(opts ...MemberOption) MemberFixture {
	idx := atomic.AddUint64(&memberCounter, 1)
	id := fmt.Sprintf("member-%03d", idx)
	joined := referenceTime.AddDate(0, 0, -int(idx))
	email := fmt.Sprintf("%s@club.example.com", id)
	fixture := MemberFixture{
		ID:         id,
		Name:       fmt.Sprintf("Member %03d", idx),
		Email:      &email,
		MemberType: "MEMBER",
		Status:     application.MemberStatusActive,
		CreatedAt:  joined,
		UpdatedAt:  joined,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMemberID overrides the member ID.
func WithMemberID(id string) MemberOption {
	return func(f *MemberFixture) { f.ID = id }
}

// WithMemberName overrides the member name.
func WithMemberName(name string) MemberOption {
	return func(f *MemberFixture) { f.Name = name }
}

// WithMemberEmail sets the email; nil clears it.
func WithMemberEmail(email *string) MemberOption {
	return func(f *MemberFixture) { f.Email = copyStringPtr(email) }
}

// WithMemberType overrides the member type.
func WithMemberType(memberType string) MemberOption {
	return func(f *MemberFixture) { f.MemberType = memberType }
}

// WithMemberStatus overrides the member status.
func WithMemberStatus(status string) MemberOption {
	return func(f *MemberFixture) { f.Status = status }
}

// WithMemberJoinedAt sets both timestamps to t.
func WithMemberJoinedAt(t time.Time) MemberOption {
	return func(f *MemberFixture) {
		f.CreatedAt = t
		f.UpdatedAt = t
	}
}

// Application returns the fixture as an application.Member value.
func (f MemberFixture) Application() application.Member {
	return application.Member{
		ID:         f.ID,
		Name:       f.Name,
		Email:      copyStringPtr(f.Email),
		Phone:      copyStringPtr(f.Phone),
		MemberType: f.MemberType,
		Status:     f.Status,
		Notes:      copyStringPtr(f.Notes),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Member value.
func (f MemberFixture) Persistence() persistence.Member {
	return persistence.Member{
		ID:         f.ID,
		Name:       f.Name,
		Email:      copyStringPtr(f.Email),
		Phone:      copyStringPtr(f.Phone),
		MemberType: f.MemberType,
		Status:     f.Status,
		Notes:      copyStringPtr(f.Notes),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// ----------------------------- Meeting fixtures -------------------------

// MeetingFixture represents a deterministic meeting definition.
type MeetingFixture struct {
	ID         string
	Title      string
	Notes      string
	Location   string
	Type       string
	Date       *time.Time
	Repeat     recurrence.RepeatRule
	CustomDays []string
	Exceptions []string
	Tokens     []checkin.Token
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MeetingOption configures the generated meeting fixture.
type MeetingOption func(*MeetingFixture)

// NewMeetingFixture returns a one-off club meeting at 18:00 on the day after
// ReferenceTime.
func NewMeetingFixture(opts ...MeetingOption) MeetingFixture {
	idx := atomic.AddUint64(&meetingCounter, 1)
	y, m, d := referenceTime.Date()
	date := time.Date(y, m, d+1, 18, 0, 0, 0, time.UTC)
	fixture := MeetingFixture{
		ID:        fmt.Sprintf("meeting-%03d", idx),
		Title:     fmt.Sprintf("Meeting %03d", idx),
		Location:  "Club house",
		Type:      application.DefaultMeetingType,
		Date:      &date,
		Repeat:    recurrence.RepeatNone,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMeetingID overrides the meeting ID.
func WithMeetingID(id string) MeetingOption {
	return func(f *MeetingFixture) { f.ID = id }
}

// WithMeetingTitle overrides the meeting title.
func WithMeetingTitle(title string) MeetingOption {
	return func(f *MeetingFixture) { f.Title = title }
}

// WithMeetingDate makes the meeting a one-off on t.
func WithMeetingDate(t time.Time) MeetingOption {
	return func(f *MeetingFixture) {
		date := t
		f.Date = &date
		f.Repeat = recurrence.RepeatNone
		f.CustomDays = nil
	}
}

// WithMeetingRepeat makes the meeting recurring. Recurring meetings carry no
// date and take their time of day from CreatedAt.
func WithMeetingRepeat(rule recurrence.RepeatRule, customDays ...string) MeetingOption {
	return func(f *MeetingFixture) {
		f.Repeat = rule
		f.Date = nil
		f.CustomDays = append([]string(nil), customDays...)
	}
}

// WithMeetingExceptions sets the cancelled dates.
func WithMeetingExceptions(dates ...string) MeetingOption {
	return func(f *MeetingFixture) { f.Exceptions = append([]string(nil), dates...) }
}

// WithMeetingTokens sets the stored token cache.
func WithMeetingTokens(tokens ...checkin.Token) MeetingOption {
	return func(f *MeetingFixture) { f.Tokens = append([]checkin.Token(nil), tokens...) }
}

// WithMeetingCreatedAt sets both timestamps to t.
func WithMeetingCreatedAt(t time.Time) MeetingOption {
	return func(f *MeetingFixture) {
		f.CreatedAt = t
		f.UpdatedAt = t
	}
}

// Application returns the fixture as an application.Meeting value.
func (f MeetingFixture) Application() application.Meeting {
	return application.Meeting{
		ID:         f.ID,
		Title:      f.Title,
		Notes:      f.Notes,
		Location:   f.Location,
		Type:       f.Type,
		Date:       copyTimePtr(f.Date),
		Repeat:     f.Repeat,
		CustomDays: append([]string(nil), f.CustomDays...),
		Exceptions: append([]string(nil), f.Exceptions...),
		Tokens:     append([]checkin.Token(nil), f.Tokens...),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
}

// Calendar returns the fixture as the expander's input.
func (f MeetingFixture) Calendar() calendar.Meeting {
	return calendar.Meeting{
		ID:         f.ID,
		Title:      f.Title,
		Notes:      f.Notes,
		Location:   f.Location,
		Type:       f.Type,
		Date:       copyTimePtr(f.Date),
		Repeat:     f.Repeat,
		CustomDays: append([]string(nil), f.CustomDays...),
		Exceptions: append([]string(nil), f.Exceptions...),
		Tokens:     append([]checkin.Token(nil), f.Tokens...),
		CreatedAt:  f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Meeting value with the
// token cache JSON encoded.
func (f MeetingFixture) Persistence() persistence.Meeting {
	tokens, err := checkin.EncodeTokens(f.Tokens)
	if err != nil {
		panic(fmt.Sprintf("encode fixture tokens: %v", err))
	}
	return persistence.Meeting{
		ID:            f.ID,
		Title:         f.Title,
		Notes:         optional(f.Notes),
		Location:      optional(f.Location),
		Type:          f.Type,
		Date:          copyTimePtr(f.Date),
		Repeat:        string(f.Repeat),
		CustomDays:    append([]string(nil), f.CustomDays...),
		Exceptions:    append([]string(nil), f.Exceptions...),
		CheckInTokens: tokens,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// ----------------------------- Attendance fixtures ----------------------

// AttendanceFixture represents a deterministic presence record.
type AttendanceFixture struct {
	ID        string
	MemberID  string
	MeetingID string
	Date      time.Time
	Notes     *string
	CreatedAt time.Time
}

// AttendanceOption configures the generated attendance fixture.
type AttendanceOption func(*AttendanceFixture)

// NewAttendanceFixture returns a presence of memberID at meetingID on
// ReferenceTime.
func NewAttendanceFixture(memberID, meetingID string, opts ...AttendanceOption) AttendanceFixture {
	idx := atomic.AddUint64(&attendanceCounter, 1)
	fixture := AttendanceFixture{
		ID:        fmt.Sprintf("attendance-%03d", idx),
		MemberID:  memberID,
		MeetingID: meetingID,
		Date:      referenceTime,
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAttendanceDate overrides the attendance instant.
func WithAttendanceDate(t time.Time) AttendanceOption {
	return func(f *AttendanceFixture) { f.Date = t }
}

// Persistence returns the fixture as a persistence.Attendance value with the
// UTC calendar day.
func (f AttendanceFixture) Persistence() persistence.Attendance {
	return persistence.Attendance{
		ID:        f.ID,
		MemberID:  f.MemberID,
		MeetingID: f.MeetingID,
		Date:      f.Date,
		Day:       f.Date.UTC().Format(recurrence.DateLayout),
		Status:    application.AttendanceStatusPresent,
		Notes:     copyStringPtr(f.Notes),
		CreatedAt: f.CreatedAt,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
