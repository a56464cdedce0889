package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/club-crm/internal/application"
	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/recurrence"
)

type meetingService interface {
	CreateMeeting(ctx context.Context, params application.CreateMeetingParams) (application.Meeting, error)
	UpdateMeeting(ctx context.Context, params application.UpdateMeetingParams) (application.Meeting, error)
	DeleteMeeting(ctx context.Context, principal application.Principal, meetingID string) error
	GetMeeting(ctx context.Context, principal application.Principal, meetingID string) (application.Meeting, error)
	ListMeetings(ctx context.Context, principal application.Principal) ([]application.Meeting, error)
	Calendar(ctx context.Context, principal application.Principal) (application.CalendarView, error)
	Feed(ctx context.Context, principal application.Principal, opts calendar.FeedOptions) (string, error)
}

// MeetingHandlerConfig carries the zone used to read date-only input and the
// iCalendar feed identity.
type MeetingHandlerConfig struct {
	Location *time.Location
	Feed     calendar.FeedOptions
}

type MeetingHandler struct {
	service   meetingService
	location  *time.Location
	feed      calendar.FeedOptions
	responder responder
	logger    *slog.Logger
}

func NewMeetingHandler(service meetingService, cfg MeetingHandlerConfig, logger *slog.Logger) *MeetingHandler {
	base := defaultLogger(logger)
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &MeetingHandler{service: service, location: loc, feed: cfg.Feed, responder: newResponder(base), logger: base}
}

func (h *MeetingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MeetingHandler", operation, attrs...)
}

func (h *MeetingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req meetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode meeting request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	input, err := req.toInput(h.location)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid meeting date", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	meeting, err := h.service.CreateMeeting(r.Context(), application.CreateMeetingParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "meeting creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("meeting_id", meeting.ID).InfoContext(r.Context(), "meeting created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := MeetingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(meetingID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing meeting id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req meetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "meeting_id", meetingID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode meeting update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "meeting_id", meetingID)

	input, err := req.toInput(h.location)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid meeting date", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	meeting, err := h.service.UpdateMeeting(r.Context(), application.UpdateMeetingParams{
		Principal: principal,
		MeetingID: meetingID,
		Input:     input,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "meeting update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "meeting updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := MeetingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(meetingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "meeting_id", meetingID)
	if err := h.service.DeleteMeeting(r.Context(), principal, meetingID); err != nil {
		logger.ErrorContext(r.Context(), "meeting delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "meeting deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *MeetingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	meetingID, ok := MeetingIDFromContext(r.Context())
	if !ok || strings.TrimSpace(meetingID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMeetingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	meeting, err := h.service.GetMeeting(r.Context(), principal, meetingID)
	if err != nil {
		h.log(r.Context(), "Get", "meeting_id", meetingID).ErrorContext(r.Context(), "meeting lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, meetingResponse{Meeting: toMeetingDTO(meeting)})
}

func (h *MeetingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	meetings, err := h.service.ListMeetings(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "meeting list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(meetings)).InfoContext(r.Context(), "meetings listed")
	out := make([]meetingDTO, 0, len(meetings))
	for _, meeting := range meetings {
		out = append(out, toMeetingDTO(meeting))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMeetingsResponse{Meetings: out})
}

// Calendar returns every expanded occurrence with per-date counts.
func (h *MeetingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Calendar", "principal_id", principal.UserID)
	view, err := h.service.Calendar(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "calendar build failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	events := make([]occurrenceDTO, 0, len(view.Events))
	for _, occurrence := range view.Events {
		events = append(events, toOccurrenceDTO(occurrence))
	}
	counts := view.DateCounts
	if counts == nil {
		counts = map[string]int{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarResponse{Events: events, DateCounts: counts})
}

// Feed serves the calendar as text/calendar.
func (h *MeetingHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Feed", "principal_id", principal.UserID)
	body, err := h.service.Feed(r.Context(), principal, h.feed)
	if err != nil {
		logger.ErrorContext(r.Context(), "calendar feed failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="meetings.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

type meetingRequest struct {
	Title      string   `json:"title"`
	Notes      string   `json:"notes"`
	Location   string   `json:"location"`
	Type       string   `json:"type"`
	Date       string   `json:"date"`
	Repeat     string   `json:"repeat"`
	CustomDays []string `json:"custom_days"`
	Exceptions []string `json:"exceptions"`
	Time       string   `json:"time"`
	Duration   string   `json:"duration"`
	Color      string   `json:"color"`
}

// clockLayouts are the accepted forms of the time field when the date carries
// no time of day.
var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM"}

// toInput resolves the date field. RFC 3339 values are taken as is; a bare
// calendar date takes its time of day from the time field when it parses.
func (r meetingRequest) toInput(loc *time.Location) (application.MeetingInput, error) {
	input := application.MeetingInput{
		Title:      r.Title,
		Notes:      r.Notes,
		Location:   r.Location,
		Type:       r.Type,
		Repeat:     r.Repeat,
		CustomDays: r.CustomDays,
		Exceptions: r.Exceptions,
		Time:       r.Time,
		Duration:   r.Duration,
		Color:      r.Color,
	}

	raw := strings.TrimSpace(r.Date)
	if raw == "" {
		return input, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		input.Date = &t
		return input, nil
	}
	day, err := time.ParseInLocation(recurrence.DateLayout, raw, loc)
	if err != nil {
		return input, &application.ValidationError{FieldErrors: map[string]string{
			"date": "date must be a calendar date or RFC 3339 timestamp",
		}}
	}
	clock := strings.TrimSpace(r.Time)
	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, strings.ToUpper(clock)); err == nil {
			day = time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, loc)
			break
		}
	}
	input.Date = &day
	return input, nil
}

type meetingResponse struct {
	Meeting meetingDTO `json:"meeting"`
}

type listMeetingsResponse struct {
	Meetings []meetingDTO `json:"meetings"`
}

type meetingDTO struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Notes      string     `json:"notes,omitempty"`
	Location   string     `json:"location,omitempty"`
	Type       string     `json:"type"`
	Date       *string    `json:"date,omitempty"`
	Repeat     string     `json:"repeat"`
	CustomDays []string   `json:"custom_days,omitempty"`
	Exceptions []string   `json:"exceptions,omitempty"`
	Time       string     `json:"time,omitempty"`
	Duration   string     `json:"duration,omitempty"`
	Color      string     `json:"color,omitempty"`
	Tokens     []tokenDTO `json:"check_in_tokens"`
	CreatedAt  string     `json:"created_at"`
	UpdatedAt  string     `json:"updated_at"`
}

type tokenDTO struct {
	Date  string `json:"date"`
	Image string `json:"qr_code"`
	URL   string `json:"url"`
}

func toMeetingDTO(meeting application.Meeting) meetingDTO {
	dto := meetingDTO{
		ID:         meeting.ID,
		Title:      meeting.Title,
		Notes:      meeting.Notes,
		Location:   meeting.Location,
		Type:       meeting.Type,
		Repeat:     string(meeting.Repeat),
		CustomDays: meeting.CustomDays,
		Exceptions: meeting.Exceptions,
		Time:       meeting.Time,
		Duration:   meeting.Duration,
		Color:      meeting.Color,
		Tokens:     make([]tokenDTO, 0, len(meeting.Tokens)),
		CreatedAt:  formatTime(meeting.CreatedAt),
		UpdatedAt:  formatTime(meeting.UpdatedAt),
	}
	if meeting.Date != nil {
		dto.Date = ptr(formatTime(*meeting.Date))
	}
	for _, token := range meeting.Tokens {
		dto.Tokens = append(dto.Tokens, tokenDTO{Date: token.Date, Image: token.Image, URL: token.URL})
	}
	return dto
}

type calendarResponse struct {
	Events     []occurrenceDTO `json:"events"`
	DateCounts map[string]int  `json:"date_counts"`
}

type occurrenceDTO struct {
	Key         string    `json:"key"`
	MeetingID   string    `json:"meeting_id"`
	Date        string    `json:"date"`
	Day         string    `json:"day"`
	Title       string    `json:"title"`
	Time        string    `json:"time"`
	Duration    string    `json:"duration"`
	Type        string    `json:"type"`
	Location    string    `json:"location,omitempty"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	Repeat      string    `json:"repeat"`
	CustomDays  []string  `json:"custom_days,omitempty"`
	Token       *tokenDTO `json:"check_in,omitempty"`
}

func toOccurrenceDTO(o calendar.Occurrence) occurrenceDTO {
	dto := occurrenceDTO{
		Key:         o.Key().String(),
		MeetingID:   o.MeetingID,
		Date:        o.Date.Format(time.RFC3339),
		Day:         o.Day,
		Title:       o.Title,
		Time:        o.TimeLabel,
		Duration:    o.Duration,
		Type:        o.Type,
		Location:    o.Location,
		Color:       o.Color,
		Description: o.Description,
		Repeat:      string(o.Repeat),
		CustomDays:  o.CustomDays,
	}
	if o.Token != nil {
		dto.Token = &tokenDTO{Date: o.Token.Date, Image: o.Token.Image, URL: o.Token.URL}
	}
	return dto
}
