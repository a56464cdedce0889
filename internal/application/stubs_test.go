package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/persistence"
	"github.com/example/club-crm/internal/recurrence"
)

const testBaseURL = "http://localhost:3000"

type encoderStub struct{}

func (encoderStub) Encode(_ context.Context, content string) (string, error) {
	return "data:image/png;base64," + content, nil
}

func newTestExpander() *calendar.Expander {
	issuer := checkin.NewIssuer(checkin.DefaultPolicy(time.UTC), encoderStub{}, testBaseURL, nil)
	return calendar.NewExpander(recurrence.NewEngine(time.UTC), issuer)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func strPtr(value string) *string {
	return &value
}

// memberRepositoryStub keeps members in memory and reports persistence sentinels.
type memberRepositoryStub struct {
	members   map[string]Member
	createErr error
	listErr   error
}

func newMemberRepositoryStub(members ...Member) *memberRepositoryStub {
	stub := &memberRepositoryStub{members: make(map[string]Member)}
	for _, member := range members {
		stub.members[member.ID] = member
	}
	return stub
}

func (s *memberRepositoryStub) CreateMember(_ context.Context, member Member) (Member, error) {
	if s.createErr != nil {
		return Member{}, s.createErr
	}
	if _, exists := s.members[member.ID]; exists {
		return Member{}, persistence.ErrDuplicate
	}
	s.members[member.ID] = member
	return member, nil
}

func (s *memberRepositoryStub) GetMember(_ context.Context, id string) (Member, error) {
	member, ok := s.members[id]
	if !ok {
		return Member{}, persistence.ErrNotFound
	}
	return member, nil
}

func (s *memberRepositoryStub) FindMemberByName(_ context.Context, name string) (Member, error) {
	var found *Member
	for _, member := range s.members {
		if !strings.EqualFold(strings.TrimSpace(member.Name), strings.TrimSpace(name)) {
			continue
		}
		if found == nil || member.CreatedAt.Before(found.CreatedAt) {
			m := member
			found = &m
		}
	}
	if found == nil {
		return Member{}, persistence.ErrNotFound
	}
	return *found, nil
}

func (s *memberRepositoryStub) UpdateMember(_ context.Context, member Member) (Member, error) {
	if _, ok := s.members[member.ID]; !ok {
		return Member{}, persistence.ErrNotFound
	}
	s.members[member.ID] = member
	return member, nil
}

func (s *memberRepositoryStub) DeleteMember(_ context.Context, id string) error {
	if _, ok := s.members[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.members, id)
	return nil
}

func (s *memberRepositoryStub) ListMembers(context.Context) ([]Member, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Member, 0, len(s.members))
	for _, member := range s.members {
		out = append(out, member)
	}
	return out, nil
}

// meetingRepositoryStub keeps meetings in memory and records token updates.
type meetingRepositoryStub struct {
	meetings       map[string]Meeting
	tokenUpdates   []string
	updateTokenErr error
}

func newMeetingRepositoryStub(meetings ...Meeting) *meetingRepositoryStub {
	stub := &meetingRepositoryStub{meetings: make(map[string]Meeting)}
	for _, meeting := range meetings {
		stub.meetings[meeting.ID] = meeting
	}
	return stub
}

func (s *meetingRepositoryStub) CreateMeeting(_ context.Context, meeting Meeting) (Meeting, error) {
	if _, exists := s.meetings[meeting.ID]; exists {
		return Meeting{}, persistence.ErrDuplicate
	}
	s.meetings[meeting.ID] = meeting
	return meeting, nil
}

func (s *meetingRepositoryStub) GetMeeting(_ context.Context, id string) (Meeting, error) {
	meeting, ok := s.meetings[id]
	if !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	return meeting, nil
}

func (s *meetingRepositoryStub) UpdateMeeting(_ context.Context, meeting Meeting) (Meeting, error) {
	if _, ok := s.meetings[meeting.ID]; !ok {
		return Meeting{}, persistence.ErrNotFound
	}
	s.meetings[meeting.ID] = meeting
	return meeting, nil
}

func (s *meetingRepositoryStub) UpdateMeetingTokens(_ context.Context, id string, tokens []checkin.Token, updatedAt time.Time) error {
	if s.updateTokenErr != nil {
		return s.updateTokenErr
	}
	meeting, ok := s.meetings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	meeting.Tokens = tokens
	meeting.UpdatedAt = updatedAt
	s.meetings[id] = meeting
	s.tokenUpdates = append(s.tokenUpdates, id)
	return nil
}

func (s *meetingRepositoryStub) DeleteMeeting(_ context.Context, id string) error {
	if _, ok := s.meetings[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.meetings, id)
	return nil
}

func (s *meetingRepositoryStub) ListMeetings(context.Context) ([]Meeting, error) {
	out := make([]Meeting, 0, len(s.meetings))
	for _, meeting := range s.meetings {
		out = append(out, meeting)
	}
	return out, nil
}

// attendanceRepositoryStub enforces the one-record-per-day constraint in memory.
type attendanceRepositoryStub struct {
	records []AttendanceRecord
	members *memberRepositoryStub
}

func (s *attendanceRepositoryStub) CreateAttendance(_ context.Context, record AttendanceRecord) (AttendanceRecord, error) {
	if s.members != nil {
		if _, ok := s.members.members[record.MemberID]; !ok {
			return AttendanceRecord{}, persistence.ErrForeignKeyViolation
		}
	}
	for _, existing := range s.records {
		if existing.MemberID == record.MemberID && existing.MeetingID == record.MeetingID && existing.Day == record.Day {
			return AttendanceRecord{}, fmt.Errorf("insert attendance: %w", persistence.ErrDuplicate)
		}
	}
	s.records = append(s.records, record)
	return record, nil
}

func (s *attendanceRepositoryStub) ListAttendance(_ context.Context, filter AttendanceFilter) ([]AttendanceRecord, error) {
	out := make([]AttendanceRecord, 0, len(s.records))
	for _, record := range s.records {
		if filter.From != nil && record.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && record.Date.After(*filter.To) {
			continue
		}
		if filter.MemberID != "" && record.MemberID != filter.MemberID {
			continue
		}
		if filter.MeetingID != "" && record.MeetingID != filter.MeetingID {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *attendanceRepositoryStub) CountAttendance(context.Context) (int, error) {
	return len(s.records), nil
}

// userRepositoryStub stores users with their password hashes.
type userRepositoryStub struct {
	users  map[string]User
	hashes map[string]string
}

func newUserRepositoryStub(users ...User) *userRepositoryStub {
	stub := &userRepositoryStub{users: make(map[string]User), hashes: make(map[string]string)}
	for _, user := range users {
		stub.users[user.ID] = user
		stub.hashes[user.ID] = "seed-hash"
	}
	return stub
}

func (s *userRepositoryStub) CreateUser(_ context.Context, user User, passwordHash string) (User, error) {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return User{}, persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	s.hashes[user.ID] = passwordHash
	return user, nil
}

func (s *userRepositoryStub) GetUser(_ context.Context, id string) (User, error) {
	user, ok := s.users[id]
	if !ok {
		return User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *userRepositoryStub) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, persistence.ErrNotFound
}

func (s *userRepositoryStub) UpdateUser(_ context.Context, user User, passwordHash string) (User, error) {
	if _, ok := s.users[user.ID]; !ok {
		return User{}, persistence.ErrNotFound
	}
	s.users[user.ID] = user
	if passwordHash != "" {
		s.hashes[user.ID] = passwordHash
	}
	return user, nil
}

func (s *userRepositoryStub) DeleteUser(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	delete(s.hashes, id)
	return nil
}

func (s *userRepositoryStub) ListUsers(context.Context) ([]User, error) {
	out := make([]User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

var errStub = errors.New("stub failure")
