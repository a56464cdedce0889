package http

import (
	"context"
	"io"
	"log/slog"

	"github.com/example/club-crm/internal/application"
	"github.com/example/club-crm/internal/attendance"
	"github.com/example/club-crm/internal/calendar"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type authServiceStub struct {
	authenticate func(application.AuthenticateParams) (application.AuthenticateResult, error)
	refresh      func(application.RefreshSessionParams) (application.RefreshSessionResult, error)
	revoked      []string
	revokeErr    error
	current      application.User
}

func (s *authServiceStub) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	return s.authenticate(params)
}

func (s *authServiceStub) RefreshSession(_ context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error) {
	return s.refresh(params)
}

func (s *authServiceStub) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return s.revokeErr
}

func (s *authServiceStub) CurrentUser(_ context.Context, principal application.Principal) (application.User, error) {
	if s.current.ID != principal.UserID {
		return application.User{}, application.ErrNotFound
	}
	return s.current, nil
}

type userServiceStub struct {
	err     error
	created application.CreateUserParams
}

func (s *userServiceStub) CreateUser(_ context.Context, params application.CreateUserParams) (application.User, error) {
	s.created = params
	if s.err != nil {
		return application.User{}, s.err
	}
	return application.User{ID: "user-1", Email: params.Input.Email, DisplayName: params.Input.DisplayName}, nil
}

func (s *userServiceStub) UpdateUser(_ context.Context, params application.UpdateUserParams) (application.User, error) {
	return application.User{ID: params.UserID}, s.err
}

func (s *userServiceStub) DeleteUser(context.Context, application.Principal, string) error {
	return s.err
}

func (s *userServiceStub) GetUser(_ context.Context, principal application.Principal, userID string) (application.User, error) {
	if s.err != nil {
		return application.User{}, s.err
	}
	if !principal.IsAdmin && principal.UserID != userID {
		return application.User{}, application.ErrUnauthorized
	}
	return application.User{ID: userID, Email: userID + "@club.example.com"}, nil
}

func (s *userServiceStub) ListUsers(context.Context, application.Principal) ([]application.User, error) {
	return nil, s.err
}

type memberServiceStub struct {
	members map[string]application.Member
	stats   application.MemberStats
	created application.CreateMemberParams
}

func (s *memberServiceStub) CreateMember(_ context.Context, params application.CreateMemberParams) (application.Member, error) {
	s.created = params
	if params.Principal.UserID == "" {
		return application.Member{}, application.ErrUnauthorized
	}
	return application.Member{ID: "member-1", Name: params.Input.Name, Email: params.Input.Email, MemberType: "GUEST", Status: "active"}, nil
}

func (s *memberServiceStub) UpdateMember(_ context.Context, params application.UpdateMemberParams) (application.Member, error) {
	member, ok := s.members[params.MemberID]
	if !ok {
		return application.Member{}, application.ErrNotFound
	}
	member.Name = params.Input.Name
	return member, nil
}

func (s *memberServiceStub) DeleteMember(_ context.Context, principal application.Principal, memberID string) error {
	if !principal.IsAdmin {
		return application.ErrUnauthorized
	}
	if _, ok := s.members[memberID]; !ok {
		return application.ErrNotFound
	}
	return nil
}

func (s *memberServiceStub) GetMember(_ context.Context, _ application.Principal, memberID string) (application.Member, error) {
	member, ok := s.members[memberID]
	if !ok {
		return application.Member{}, application.ErrNotFound
	}
	return member, nil
}

func (s *memberServiceStub) ListMembers(context.Context, application.Principal) ([]application.Member, error) {
	out := make([]application.Member, 0, len(s.members))
	for _, member := range s.members {
		out = append(out, member)
	}
	return out, nil
}

func (s *memberServiceStub) Stats(context.Context, application.Principal) (application.MemberStats, error) {
	return s.stats, nil
}

type meetingServiceStub struct {
	created  application.CreateMeetingParams
	view     application.CalendarView
	feed     string
	feedOpts calendar.FeedOptions
}

func (s *meetingServiceStub) CreateMeeting(_ context.Context, params application.CreateMeetingParams) (application.Meeting, error) {
	s.created = params
	if params.Input.Title == "" {
		return application.Meeting{}, &application.ValidationError{FieldErrors: map[string]string{"title": "title is required"}}
	}
	return application.Meeting{ID: "meeting-1", Title: params.Input.Title, Date: params.Input.Date, Repeat: "none", Type: "club_meeting"}, nil
}

func (s *meetingServiceStub) UpdateMeeting(_ context.Context, params application.UpdateMeetingParams) (application.Meeting, error) {
	return application.Meeting{ID: params.MeetingID, Title: params.Input.Title}, nil
}

func (s *meetingServiceStub) DeleteMeeting(context.Context, application.Principal, string) error {
	return nil
}

func (s *meetingServiceStub) GetMeeting(_ context.Context, _ application.Principal, meetingID string) (application.Meeting, error) {
	return application.Meeting{}, application.ErrNotFound
}

func (s *meetingServiceStub) ListMeetings(context.Context, application.Principal) ([]application.Meeting, error) {
	return nil, nil
}

func (s *meetingServiceStub) Calendar(context.Context, application.Principal) (application.CalendarView, error) {
	return s.view, nil
}

func (s *meetingServiceStub) Feed(_ context.Context, _ application.Principal, opts calendar.FeedOptions) (string, error) {
	s.feedOpts = opts
	return s.feed, nil
}

type attendanceServiceStub struct {
	recordErr error
	recorded  application.RecordAttendanceParams
	checkIn   func(application.CheckInParams) (application.CheckInResult, error)
	inspect   func(string) (application.CheckInCode, error)
	filter    application.AttendanceFilter
	matrix    attendance.Matrix
	stats     application.AttendanceStats
}

func (s *attendanceServiceStub) RecordAttendance(_ context.Context, params application.RecordAttendanceParams) (application.AttendanceRecord, error) {
	s.recorded = params
	if s.recordErr != nil {
		return application.AttendanceRecord{}, s.recordErr
	}
	return application.AttendanceRecord{ID: "attendance-1", MemberID: params.MemberID, MeetingID: "meeting-1", Status: application.AttendanceStatusPresent}, nil
}

func (s *attendanceServiceStub) InspectCode(_ context.Context, code string) (application.CheckInCode, error) {
	return s.inspect(code)
}

func (s *attendanceServiceStub) CheckIn(_ context.Context, params application.CheckInParams) (application.CheckInResult, error) {
	return s.checkIn(params)
}

func (s *attendanceServiceStub) ListRecords(_ context.Context, _ application.Principal, filter application.AttendanceFilter) ([]application.AttendanceRecord, error) {
	s.filter = filter
	return nil, nil
}

func (s *attendanceServiceStub) Matrix(context.Context, application.Principal) (attendance.Matrix, error) {
	return s.matrix, nil
}

func (s *attendanceServiceStub) Stats(context.Context, application.Principal) (application.AttendanceStats, error) {
	return s.stats, nil
}
