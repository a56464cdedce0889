package persistence

import "time"

// User represents a staff account allowed to manage the CRM.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents an authentication session persisted for a user.
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

// Meeting represents a stored meeting definition. CheckInTokens holds the
// JSON encoded token cache and is owned by the meeting row.
type Meeting struct {
	ID            string
	Title         string
	Notes         *string
	Location      *string
	Type          string
	Date          *time.Time
	Repeat        string
	CustomDays    []string
	Exceptions    []string
	Time          *string
	Duration      *string
	Color         *string
	CheckInTokens []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Attendance represents one recorded presence. Day is the calendar date of
// Date in the club's time zone and is unique per member and meeting.
type Attendance struct {
	ID        string
	MemberID  string
	MeetingID string
	Date      time.Time
	Day       string
	Status    string
	Notes     *string
	CreatedAt time.Time
}
