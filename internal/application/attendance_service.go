package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/example/club-crm/internal/attendance"
	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/persistence"
	"github.com/example/club-crm/internal/recurrence"
)

const (
	autoMeetingTitle = "Attendance"
	autoMeetingNotes = "Attendance meeting created automatically"
	qrCheckInNotes   = "Recorded via QR code"
)

// AttendanceRepository captures the persistence operations needed by the attendance service.
type AttendanceRepository interface {
	CreateAttendance(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error)
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]AttendanceRecord, error)
	CountAttendance(ctx context.Context) (int, error)
}

// AttendanceService records check-ins and aggregates attendance.
type AttendanceService struct {
	records     AttendanceRepository
	members     MemberRepository
	meetings    MeetingRepository
	expander    *calendar.Expander
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// AttendanceServiceDeps groups the collaborators of the attendance service.
type AttendanceServiceDeps struct {
	Records     AttendanceRepository
	Members     MemberRepository
	Meetings    MeetingRepository
	Expander    *calendar.Expander
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewAttendanceService constructs an attendance service.
func NewAttendanceService(deps AttendanceServiceDeps) *AttendanceService {
	if deps.Expander == nil {
		deps.Expander = calendar.NewExpander(nil, nil)
	}
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &AttendanceService{
		records:     deps.Records,
		members:     deps.Members,
		meetings:    deps.Meetings,
		expander:    deps.Expander,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *AttendanceService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AttendanceService", operation, attrs...)
}

func (s *AttendanceService) location() *time.Location {
	return s.expander.Engine().Location()
}

func (s *AttendanceService) ready() error {
	if s == nil {
		return fmt.Errorf("AttendanceService is nil")
	}
	if s.records == nil || s.members == nil || s.meetings == nil {
		return fmt.Errorf("attendance repositories not configured")
	}
	return nil
}

// RecordAttendance stores a presence for an existing member. An explicit
// meeting must exist; otherwise today's meeting is used and created when
// missing. A second record for the same member, meeting and day fails with
// ErrAlreadyRecorded.
func (s *AttendanceService) RecordAttendance(ctx context.Context, params RecordAttendanceParams) (record AttendanceRecord, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "RecordAttendance",
		"member_id", params.MemberID,
		"meeting_id", params.MeetingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to record attendance", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("attendance_id", record.ID, "day", record.Day).InfoContext(ctx, "attendance recorded")
	}()

	memberID := strings.TrimSpace(params.MemberID)
	if memberID == "" {
		vErr := &ValidationError{}
		vErr.add("member_id", "member id is required")
		err = vErr
		return
	}
	if _, err = s.members.GetMember(ctx, memberID); err != nil {
		err = mapMemberRepoError(err)
		return
	}

	now := s.now()
	var meeting Meeting
	if meetingID := strings.TrimSpace(params.MeetingID); meetingID != "" {
		meeting, err = s.meetings.GetMeeting(ctx, meetingID)
		if err != nil {
			err = mapMeetingRepoError(err)
			return
		}
	} else {
		meeting, err = s.todaysMeeting(ctx, now)
		if err != nil {
			return
		}
	}

	date := now
	if params.Date != nil && !params.Date.IsZero() {
		date = *params.Date
	}

	record, err = s.store(ctx, AttendanceRecord{
		ID:        s.idGenerator(),
		MemberID:  memberID,
		MeetingID: meeting.ID,
		Date:      date,
		Notes:     optionalString(params.Notes),
		CreatedAt: now,
	})
	record.MeetingTitle = meeting.Title
	return
}

// InspectCode resolves a scanned check-in code to its occurrence. The
// occurrence is cancelled when its date is an exception of the meeting and
// expired once the token retention window has passed.
func (s *AttendanceService) InspectCode(ctx context.Context, code string) (info CheckInCode, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "InspectCode")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "check-in code rejected", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("meeting_id", info.MeetingID, "date", info.Date).InfoContext(ctx, "check-in code inspected")
	}()

	var ref checkin.Reference
	ref, err = checkin.ParseURL(code)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidCheckInCode, err)
		return
	}

	var meeting Meeting
	meeting, err = s.meetings.GetMeeting(ctx, ref.MeetingID)
	if err != nil {
		err = mapMeetingRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: unknown meeting", ErrInvalidCheckInCode)
		}
		return
	}

	_, cancelled := recurrence.ExceptionSet(meeting.Exceptions, s.location())[ref.Date]
	info = CheckInCode{
		MeetingID:    meeting.ID,
		Date:         ref.Date,
		MeetingTitle: meeting.Title,
		Location:     meeting.Location,
		Cancelled:    cancelled,
		Expired:      s.expander.Issuer().Policy().ExpiredKey(ref.Date, s.now()),
	}
	return
}

// CheckIn records attendance from a scanned code. The member is matched by
// name ignoring case and created as a guest when unknown. Codes for cancelled
// or expired occurrences are rejected.
func (s *AttendanceService) CheckIn(ctx context.Context, params CheckInParams) (result CheckInResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	name := strings.TrimSpace(params.MemberName)
	logger := s.loggerWith(ctx, "CheckIn", "member_name", name)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "check-in failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"member_id", result.Member.ID,
			"meeting_id", result.Attendance.MeetingID,
			"member_created", result.MemberCreated,
		).InfoContext(ctx, "check-in recorded")
	}()

	if name == "" {
		vErr := &ValidationError{}
		vErr.add("member_name", "member name is required")
		err = vErr
		return
	}

	var info CheckInCode
	info, err = s.InspectCode(ctx, params.Code)
	if err != nil {
		return
	}
	if info.Cancelled {
		err = fmt.Errorf("%w: meeting cancelled on %s", ErrInvalidCheckInCode, info.Date)
		return
	}
	if info.Expired {
		err = fmt.Errorf("%w: code for %s has expired", ErrInvalidCheckInCode, info.Date)
		return
	}

	now := s.now()
	result.Member, result.MemberCreated, err = s.findOrCreateMember(ctx, name, now)
	if err != nil {
		return
	}

	var date time.Time
	date, err = s.checkInTime(info.Date, now)
	if err != nil {
		return
	}

	notes := qrCheckInNotes
	result.Attendance, err = s.store(ctx, AttendanceRecord{
		ID:        s.idGenerator(),
		MemberID:  result.Member.ID,
		MeetingID: info.MeetingID,
		Date:      date,
		Notes:     &notes,
		CreatedAt: now,
	})
	result.Attendance.MemberName = result.Member.Name
	result.Attendance.MeetingTitle = info.MeetingTitle
	return
}

// ListRecords returns attendance most recent first, annotated with member
// names and meeting titles.
func (s *AttendanceService) ListRecords(ctx context.Context, principal Principal, filter AttendanceFilter) (records []AttendanceRecord, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ListRecords", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list attendance", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(records)).InfoContext(ctx, "attendance listed")
	}()

	records, err = s.records.ListAttendance(ctx, filter)
	if err != nil {
		return
	}

	var members []Member
	if members, err = s.members.ListMembers(ctx); err != nil {
		return
	}
	var meetings []Meeting
	if meetings, err = s.meetings.ListMeetings(ctx); err != nil {
		return
	}

	names := make(map[string]string, len(members))
	for _, member := range members {
		names[member.ID] = member.Name
	}
	titles := make(map[string]string, len(meetings))
	for _, meeting := range meetings {
		titles[meeting.ID] = meeting.Title
	}
	for i := range records {
		records[i].MemberName = names[records[i].MemberID]
		records[i].MeetingTitle = titles[records[i].MeetingID]
	}
	return
}

// Matrix expands every meeting over the trailing attendance window and folds
// the occurrences with recorded check-ins into a presence matrix.
func (s *AttendanceService) Matrix(ctx context.Context, principal Principal) (matrix attendance.Matrix, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Matrix", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build attendance matrix", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"member_count", matrix.Stats.TotalMembers,
			"session_count", matrix.Stats.TotalSessions,
		).InfoContext(ctx, "attendance matrix built")
	}()

	now := s.now()
	loc := s.location()
	window := attendance.Window(now, loc)

	var members []Member
	if members, err = s.members.ListMembers(ctx); err != nil {
		return
	}
	var meetings []Meeting
	if meetings, err = s.meetings.ListMeetings(ctx); err != nil {
		return
	}
	var records []AttendanceRecord
	if records, err = s.records.ListAttendance(ctx, AttendanceFilter{From: &window.Start, To: &window.End}); err != nil {
		return
	}

	input := attendance.Input{Now: now, Location: loc}
	for _, member := range members {
		input.Members = append(input.Members, attendance.Member{ID: member.ID, Name: member.Name, JoinedAt: member.CreatedAt})
	}

	engine := s.expander.Engine()
	options := recurrence.Options{RangeStart: &window.Start, RangeEnd: &window.End}
	for _, meeting := range meetings {
		var dates []time.Time
		dates, err = engine.Dates(meeting.calendarMeeting().Definition(), now, options)
		if err != nil {
			err = fmt.Errorf("expand meeting %s: %w", meeting.ID, err)
			return
		}
		title := sessionTitle(meeting)
		for _, date := range dates {
			input.Sessions = append(input.Sessions, attendance.Session{MeetingID: meeting.ID, Title: title, Date: date})
		}
	}

	for _, record := range records {
		input.CheckIns = append(input.CheckIns, attendance.CheckIn{MemberID: record.MemberID, MeetingID: record.MeetingID, Date: record.Date})
	}

	matrix = attendance.Build(input)
	return
}

// Stats reports totals over all recorded attendance. The rate is the share of
// possible attendances (members times meetings) as a percentage with two
// decimals.
func (s *AttendanceService) Stats(ctx context.Context, principal Principal) (stats AttendanceStats, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Stats", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to compute attendance stats", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var members []Member
	if members, err = s.members.ListMembers(ctx); err != nil {
		return
	}
	var meetings []Meeting
	if meetings, err = s.meetings.ListMeetings(ctx); err != nil {
		return
	}
	var total int
	if total, err = s.records.CountAttendance(ctx); err != nil {
		return
	}

	stats = AttendanceStats{
		TotalMembers:    len(members),
		TotalMeetings:   len(meetings),
		TotalAttendance: total,
		PresentCount:    total,
	}
	if possible := stats.TotalMembers * stats.TotalMeetings; possible > 0 {
		stats.AttendanceRate = math.Round(float64(total)/float64(possible)*10000) / 100
	}
	return
}

func (s *AttendanceService) store(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error) {
	record.Day = s.expander.Engine().DateKey(record.Date)
	record.Status = AttendanceStatusPresent

	stored, err := s.records.CreateAttendance(ctx, record)
	if err != nil {
		return AttendanceRecord{}, mapAttendanceRepoError(err)
	}
	return stored, nil
}

// todaysMeeting returns the earliest created one-off meeting scheduled today,
// creating one when none exists.
func (s *AttendanceService) todaysMeeting(ctx context.Context, now time.Time) (Meeting, error) {
	meetings, err := s.meetings.ListMeetings(ctx)
	if err != nil {
		return Meeting{}, mapMeetingRepoError(err)
	}

	engine := s.expander.Engine()
	today := engine.DateKey(now)
	var found *Meeting
	for i := range meetings {
		meeting := meetings[i]
		if meeting.Repeat.Recurring() || meeting.Date == nil || engine.DateKey(*meeting.Date) != today {
			continue
		}
		if found == nil || meeting.CreatedAt.Before(found.CreatedAt) {
			found = &meetings[i]
		}
	}
	if found != nil {
		return *found, nil
	}

	date := now
	created, err := s.meetings.CreateMeeting(ctx, Meeting{
		ID:        s.idGenerator(),
		Title:     autoMeetingTitle,
		Notes:     autoMeetingNotes,
		Type:      DefaultMeetingType,
		Date:      &date,
		Repeat:    recurrence.RepeatNone,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Meeting{}, mapMeetingRepoError(err)
	}
	s.loggerWith(ctx, "RecordAttendance").InfoContext(ctx, "meeting created for attendance", "meeting_id", created.ID)
	return created, nil
}

func (s *AttendanceService) findOrCreateMember(ctx context.Context, name string, now time.Time) (Member, bool, error) {
	member, err := s.members.FindMemberByName(ctx, name)
	if err == nil {
		return member, false, nil
	}
	if err = mapMemberRepoError(err); !errors.Is(err, ErrNotFound) {
		return Member{}, false, err
	}

	member, err = s.members.CreateMember(ctx, Member{
		ID:         s.idGenerator(),
		Name:       name,
		MemberType: DefaultMemberType,
		Status:     MemberStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Member{}, false, mapMemberRepoError(err)
	}
	return member, true, nil
}

// checkInTime is now for a code dated today and the start of the code's day
// otherwise.
func (s *AttendanceService) checkInTime(day string, now time.Time) (time.Time, error) {
	loc := s.location()
	if now.In(loc).Format(recurrence.DateLayout) == day {
		return now, nil
	}
	date, err := recurrence.ParseDate(day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidCheckInCode, err)
	}
	return date, nil
}

// sessionTitle labels matrix columns: title, then notes, then "Meeting".
func sessionTitle(meeting Meeting) string {
	if title := strings.TrimSpace(meeting.Title); title != "" {
		return title
	}
	if notes := strings.TrimSpace(meeting.Notes); notes != "" {
		return notes
	}
	return "Meeting"
}

func mapAttendanceRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyRecorded
	case errors.Is(err, persistence.ErrForeignKeyViolation), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("attendance", "attendance violates a storage constraint")
		return vErr
	}
	return err
}
