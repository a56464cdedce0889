package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/persistence"
	"github.com/example/club-crm/internal/recurrence"
)

// DefaultMeetingType is stored for meetings created without a type.
const DefaultMeetingType = "club_meeting"

// MeetingRepository captures the persistence operations needed by the meeting service.
type MeetingRepository interface {
	CreateMeeting(ctx context.Context, meeting Meeting) (Meeting, error)
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	UpdateMeeting(ctx context.Context, meeting Meeting) (Meeting, error)
	UpdateMeetingTokens(ctx context.Context, id string, tokens []checkin.Token, updatedAt time.Time) error
	DeleteMeeting(ctx context.Context, id string) error
	ListMeetings(ctx context.Context) ([]Meeting, error)
}

// MeetingService manages meeting definitions and expands them into calendar
// occurrences.
type MeetingService struct {
	meetings    MeetingRepository
	expander    *calendar.Expander
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMeetingService constructs a meeting service with the provided dependencies.
func NewMeetingService(meetings MeetingRepository, expander *calendar.Expander, idGenerator func() string, now func() time.Time) *MeetingService {
	return NewMeetingServiceWithLogger(meetings, expander, idGenerator, now, nil)
}

// NewMeetingServiceWithLogger constructs a meeting service with a specified logger.
func NewMeetingServiceWithLogger(meetings MeetingRepository, expander *calendar.Expander, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MeetingService {
	if expander == nil {
		expander = calendar.NewExpander(nil, nil)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MeetingService{
		meetings:    meetings,
		expander:    expander,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MeetingService", operation, attrs...)
}

// CreateMeeting validates input and persists a new meeting. A one-off meeting
// inside the generation window receives its check-in token immediately.
func (s *MeetingService) CreateMeeting(ctx context.Context, params CreateMeetingParams) (meeting Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateMeeting",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create meeting", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("meeting_id", meeting.ID, "repeat", meeting.Repeat).InfoContext(ctx, "meeting created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	now := s.now()
	meeting, vErr := s.buildMeeting(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	meeting.ID = s.idGenerator()
	meeting.CreatedAt = now
	meeting.UpdatedAt = now
	meeting.Tokens = s.tokensForSave(ctx, meeting, nil, now)

	if s.meetings == nil {
		return
	}

	meeting, err = s.meetings.CreateMeeting(ctx, meeting)
	if err != nil {
		err = mapMeetingRepoError(err)
	}
	return
}

// UpdateMeeting validates input and replaces the definition of an existing
// meeting. Recurring meetings keep their unexpired tokens; one-off meetings
// keep only the token for their date, issuing it when missing.
func (s *MeetingService) UpdateMeeting(ctx context.Context, params UpdateMeetingParams) (meeting Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}
	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.meetings == nil {
		err = fmt.Errorf("meeting repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateMeeting",
		"principal_id", params.Principal.UserID,
		"meeting_id", params.MeetingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update meeting", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("repeat", meeting.Repeat).InfoContext(ctx, "meeting updated")
	}()

	var existing Meeting
	existing, err = s.meetings.GetMeeting(ctx, params.MeetingID)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}

	updated, vErr := s.buildMeeting(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = now
	updated.Tokens = s.tokensForSave(ctx, updated, existing.Tokens, now)

	meeting, err = s.meetings.UpdateMeeting(ctx, updated)
	if err != nil {
		err = mapMeetingRepoError(err)
	}
	return
}

// DeleteMeeting removes a meeting and its attendance. Only administrators may
// delete meetings.
func (s *MeetingService) DeleteMeeting(ctx context.Context, principal Principal, meetingID string) error {
	if s == nil {
		return fmt.Errorf("MeetingService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.meetings == nil {
		return fmt.Errorf("meeting repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteMeeting",
		"principal_id", principal.UserID,
		"meeting_id", meetingID,
	)

	if err := s.meetings.DeleteMeeting(ctx, meetingID); err != nil {
		err = mapMeetingRepoError(err)
		logger.ErrorContext(ctx, "failed to delete meeting", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "meeting deleted")
	return nil
}

// GetMeeting returns a single meeting definition.
func (s *MeetingService) GetMeeting(ctx context.Context, principal Principal, meetingID string) (Meeting, error) {
	if s == nil {
		return Meeting{}, fmt.Errorf("MeetingService is nil")
	}
	if s.meetings == nil {
		return Meeting{}, ErrNotFound
	}
	meeting, err := s.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, mapMeetingRepoError(err)
	}
	return meeting, nil
}

// ListMeetings returns every meeting definition ordered by title.
func (s *MeetingService) ListMeetings(ctx context.Context, principal Principal) (meetings []Meeting, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}
	if s.meetings == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListMeetings",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list meetings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(meetings)).InfoContext(ctx, "meetings listed")
	}()

	var raw []Meeting
	raw, err = s.meetings.ListMeetings(ctx)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}

	meetings = make([]Meeting, len(raw))
	copy(meetings, raw)
	sort.Slice(meetings, func(i, j int) bool {
		if strings.EqualFold(meetings[i].Title, meetings[j].Title) {
			return meetings[i].ID < meetings[j].ID
		}
		return strings.ToLower(meetings[i].Title) < strings.ToLower(meetings[j].Title)
	})
	return
}

// Calendar expands every meeting one after another, persists token lists that
// changed and returns the merged occurrences ordered by date. A failure to
// persist tokens aborts the call.
func (s *MeetingService) Calendar(ctx context.Context, principal Principal) (view CalendarView, err error) {
	if s == nil {
		err = fmt.Errorf("MeetingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Calendar",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build calendar", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_count", len(view.Events)).InfoContext(ctx, "calendar built")
	}()

	view.Events = make([]calendar.Occurrence, 0)
	if s.meetings == nil {
		view.DateCounts = map[string]int{}
		return
	}

	var meetings []Meeting
	meetings, err = s.meetings.ListMeetings(ctx)
	if err != nil {
		err = mapMeetingRepoError(err)
		return
	}

	now := s.now()
	updatedTokens := 0
	for _, meeting := range meetings {
		var result calendar.Result
		result, err = s.expander.Expand(ctx, meeting.calendarMeeting(), now)
		if err != nil {
			return
		}
		if result.Changed {
			if err = s.meetings.UpdateMeetingTokens(ctx, meeting.ID, result.Tokens, now); err != nil {
				err = mapMeetingRepoError(err)
				return
			}
			updatedTokens++
		}
		view.Events = append(view.Events, result.Occurrences...)
	}

	calendar.SortByDate(view.Events)
	view.DateCounts = calendar.DateCounts(view.Events)
	if updatedTokens > 0 {
		logger.DebugContext(ctx, "token caches updated", "meeting_count", updatedTokens)
	}
	return
}

// Feed renders the calendar as an iCalendar document.
func (s *MeetingService) Feed(ctx context.Context, principal Principal, opts calendar.FeedOptions) (string, error) {
	view, err := s.Calendar(ctx, principal)
	if err != nil {
		return "", err
	}
	if opts.Stamp.IsZero() {
		opts.Stamp = s.now()
	}
	return calendar.Feed(view.Events, opts), nil
}

// buildMeeting normalizes and validates input into a meeting without identity
// or timestamps.
func (s *MeetingService) buildMeeting(input MeetingInput) (Meeting, *ValidationError) {
	vErr := &ValidationError{}
	loc := s.expander.Engine().Location()

	meeting := Meeting{
		Title:    strings.TrimSpace(input.Title),
		Notes:    strings.TrimSpace(input.Notes),
		Location: strings.TrimSpace(input.Location),
		Type:     strings.ToLower(strings.TrimSpace(input.Type)),
		Time:     strings.TrimSpace(input.Time),
		Duration: strings.TrimSpace(input.Duration),
		Color:    strings.TrimSpace(input.Color),
	}
	if meeting.Title == "" {
		vErr.add("title", "title is required")
	}
	if meeting.Type == "" {
		meeting.Type = DefaultMeetingType
	}

	rule, err := recurrence.ParseRepeatRule(input.Repeat)
	if err != nil {
		vErr.add("repeat", "repeat must be one of none, everyday, weekdays, weekends, custom")
	}
	meeting.Repeat = rule

	switch {
	case rule == recurrence.RepeatNone:
		if input.Date == nil || input.Date.IsZero() {
			vErr.add("date", "date is required for a meeting that does not repeat")
		} else {
			date := input.Date.In(loc)
			meeting.Date = &date
		}
	case rule == recurrence.RepeatCustom:
		days, err := recurrence.NormalizeCustomDays(input.CustomDays)
		switch {
		case err != nil:
			vErr.add("custom_days", "custom days must be weekday names")
		case len(days) == 0:
			vErr.add("custom_days", "at least one custom day is required")
		}
		meeting.CustomDays = days
	}

	exceptions := make([]string, 0, len(input.Exceptions))
	seen := make(map[string]struct{}, len(input.Exceptions))
	for _, value := range input.Exceptions {
		day, err := recurrence.ParseDate(value, loc)
		if err != nil {
			vErr.add("exceptions", "exceptions must be calendar dates (YYYY-MM-DD)")
			continue
		}
		key := day.Format(recurrence.DateLayout)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		exceptions = append(exceptions, key)
	}
	sort.Strings(exceptions)
	if len(exceptions) > 0 {
		meeting.Exceptions = exceptions
	}

	return meeting, vErr
}

// tokensForSave derives the token cache stored with a saved meeting.
func (s *MeetingService) tokensForSave(ctx context.Context, meeting Meeting, existing []checkin.Token, now time.Time) []checkin.Token {
	issuer := s.expander.Issuer()
	tokens := checkin.Purge(existing, now, issuer.Policy())
	if meeting.Repeat != recurrence.RepeatNone {
		return tokens
	}
	if meeting.Date == nil {
		return nil
	}

	day := issuer.Policy().DateKey(*meeting.Date)
	if token, ok := checkin.Find(tokens, day); ok {
		return []checkin.Token{token}
	}
	if token, ok := issuer.Issue(ctx, meeting.ID, *meeting.Date, now); ok {
		return []checkin.Token{token}
	}
	return nil
}

func mapMeetingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("meeting", "meeting violates a storage constraint")
		return vErr
	}
	return err
}
