package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/club-crm/internal/application"
	"github.com/example/club-crm/internal/attendance"
)

type attendanceService interface {
	RecordAttendance(ctx context.Context, params application.RecordAttendanceParams) (application.AttendanceRecord, error)
	InspectCode(ctx context.Context, code string) (application.CheckInCode, error)
	CheckIn(ctx context.Context, params application.CheckInParams) (application.CheckInResult, error)
	ListRecords(ctx context.Context, principal application.Principal, filter application.AttendanceFilter) ([]application.AttendanceRecord, error)
	Matrix(ctx context.Context, principal application.Principal) (attendance.Matrix, error)
	Stats(ctx context.Context, principal application.Principal) (application.AttendanceStats, error)
}

type AttendanceHandler struct {
	service   attendanceService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewAttendanceHandler builds the handler. loc resolves date-only query and
// body values; nil means UTC.
func NewAttendanceHandler(service attendanceService, loc *time.Location, logger *slog.Logger) *AttendanceHandler {
	base := defaultLogger(logger)
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceHandler{service: service, location: loc, responder: newResponder(base), logger: base}
}

func (h *AttendanceHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AttendanceHandler", operation, attrs...)
}

func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	query := r.URL.Query()
	from, err := parseDateParam(query, "from", h.location)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid from parameter", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}
	to, err := endOfDayParam(query, "to", h.location)
	if err != nil {
		logger.ErrorContext(r.Context(), "invalid to parameter", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
		return
	}

	records, err := h.service.ListRecords(r.Context(), principal, application.AttendanceFilter{
		From:      from,
		To:        to,
		MemberID:  strings.TrimSpace(query.Get("member_id")),
		MeetingID: strings.TrimSpace(query.Get("meeting_id")),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "attendance list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]attendanceDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toAttendanceDTO(record))
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "attendance listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAttendanceResponse{Records: out})
}

// Matrix returns the trailing-window presence grid with its summary.
func (h *AttendanceHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	matrix, err := h.service.Matrix(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Matrix", "principal_id", principal.UserID).ErrorContext(r.Context(), "attendance matrix failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMatrixResponse(matrix))
}

func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Stats", "principal_id", principal.UserID).ErrorContext(r.Context(), "attendance stats failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, attendanceStatsResponse{
		TotalMembers:    stats.TotalMembers,
		TotalMeetings:   stats.TotalMeetings,
		TotalAttendance: stats.TotalAttendance,
		PresentCount:    stats.PresentCount,
		AttendanceRate:  stats.AttendanceRate,
	})
}

// Record stores a manual attendance entry. The endpoint is public.
func (h *AttendanceHandler) Record(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req recordAttendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Record", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode attendance request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Record", "member_id", req.MemberID, "meeting_id", req.MeetingID)

	params := application.RecordAttendanceParams{
		MemberID:  strings.TrimSpace(req.MemberID),
		MeetingID: strings.TrimSpace(req.MeetingID),
		Notes:     strings.TrimSpace(req.Notes),
	}
	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err := parseDateParam(url.Values{"date": {raw}}, "date", h.location)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{FieldErrors: map[string]string{
				"date": "date must be a calendar date or RFC 3339 timestamp",
			}})
			return
		}
		params.Date = date
	}

	record, err := h.service.RecordAttendance(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "attendance record failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("attendance_id", record.ID).InfoContext(r.Context(), "attendance recorded")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, attendanceResponse{Record: toAttendanceDTO(record)})
}

// InspectCode describes the occurrence a scanned code points at so the
// scanning page can confirm it before checking in.
func (h *AttendanceHandler) InspectCode(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	code := r.URL.Query().Get("code")
	info, err := h.service.InspectCode(r.Context(), code)
	if err != nil {
		h.log(r.Context(), "InspectCode").ErrorContext(r.Context(), "check-in code rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, checkInCodeResponse{
		MeetingID:    info.MeetingID,
		Date:         info.Date,
		MeetingTitle: info.MeetingTitle,
		Location:     info.Location,
		Cancelled:    info.Cancelled,
		Expired:      info.Expired,
	})
}

// CheckIn records a QR check-in. The endpoint is public.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CheckIn", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode check-in request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "CheckIn")
	result, err := h.service.CheckIn(r.Context(), application.CheckInParams{
		Code:       req.Code,
		MemberName: req.MemberName,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "check-in failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With(
		"member_id", result.Member.ID,
		"meeting_id", result.Attendance.MeetingID,
		"member_created", result.MemberCreated,
	).InfoContext(r.Context(), "checked in")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, checkInResponse{
		Member:        toMemberDTO(result.Member),
		Record:        toAttendanceDTO(result.Attendance),
		MemberCreated: result.MemberCreated,
	})
}

type recordAttendanceRequest struct {
	MemberID  string `json:"member_id"`
	MeetingID string `json:"meeting_id"`
	Date      string `json:"date"`
	Notes     string `json:"notes"`
}

type checkInRequest struct {
	Code       string `json:"code"`
	MemberName string `json:"member_name"`
}

type attendanceDTO struct {
	ID           string  `json:"id"`
	MemberID     string  `json:"member_id"`
	MeetingID    string  `json:"meeting_id"`
	Date         string  `json:"date"`
	Day          string  `json:"day"`
	Status       string  `json:"status"`
	Notes        *string `json:"notes,omitempty"`
	MemberName   string  `json:"member_name,omitempty"`
	MeetingTitle string  `json:"meeting_title,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func toAttendanceDTO(record application.AttendanceRecord) attendanceDTO {
	return attendanceDTO{
		ID:           record.ID,
		MemberID:     record.MemberID,
		MeetingID:    record.MeetingID,
		Date:         formatTime(record.Date),
		Day:          record.Day,
		Status:       record.Status,
		Notes:        record.Notes,
		MemberName:   record.MemberName,
		MeetingTitle: record.MeetingTitle,
		CreatedAt:    formatTime(record.CreatedAt),
	}
}

type attendanceResponse struct {
	Record attendanceDTO `json:"record"`
}

type listAttendanceResponse struct {
	Records []attendanceDTO `json:"records"`
}

type checkInResponse struct {
	Member        memberDTO     `json:"member"`
	Record        attendanceDTO `json:"record"`
	MemberCreated bool          `json:"member_created"`
}

type checkInCodeResponse struct {
	MeetingID    string `json:"meeting_id"`
	Date         string `json:"date"`
	MeetingTitle string `json:"meeting_title"`
	Location     string `json:"location,omitempty"`
	Cancelled    bool   `json:"cancelled"`
	Expired      bool   `json:"expired"`
}

type attendanceStatsResponse struct {
	TotalMembers    int     `json:"total_members"`
	TotalMeetings   int     `json:"total_meetings"`
	TotalAttendance int     `json:"total_attendance"`
	PresentCount    int     `json:"present_count"`
	AttendanceRate  float64 `json:"attendance_rate"`
}

type matrixResponse struct {
	WindowStart string             `json:"window_start"`
	WindowEnd   string             `json:"window_end"`
	Sessions    []matrixSessionDTO `json:"sessions"`
	Rows        []matrixRowDTO     `json:"rows"`
	Stats       matrixStatsDTO     `json:"stats"`
}

type matrixSessionDTO struct {
	Key       string `json:"key"`
	MeetingID string `json:"meeting_id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Day       string `json:"day"`
}

type matrixRowDTO struct {
	MemberID string          `json:"member_id"`
	Name     string          `json:"name"`
	Records  map[string]bool `json:"records"`
	Present  int             `json:"present"`
	Total    int             `json:"total"`
	Rate     int             `json:"rate"`
}

type matrixStatsDTO struct {
	TotalMembers        int               `json:"total_members"`
	TotalSessions       int               `json:"total_sessions"`
	TotalPossible       int               `json:"total_possible"`
	PresentCount        int               `json:"present_count"`
	AttendanceRate      float64           `json:"attendance_rate"`
	ConsistentMembers   int               `json:"consistent_members"`
	TopSession          *topSessionDTO    `json:"top_session,omitempty"`
	RetentionRisk       int               `json:"retention_risk"`
	RetentionSessions   int               `json:"retention_sessions"`
	Cohort              *attendanceCohort `json:"cohort,omitempty"`
	RetentionWindowDays int               `json:"retention_window_days"`
}

type topSessionDTO struct {
	Session matrixSessionDTO `json:"session"`
	Present int              `json:"present"`
	Rate    int              `json:"rate"`
}

type attendanceCohort struct {
	Year            int     `json:"year"`
	AverageSessions float64 `json:"average_sessions"`
}

func toMatrixSessionDTO(session attendance.MatrixSession) matrixSessionDTO {
	return matrixSessionDTO{
		Key:       session.Key,
		MeetingID: session.MeetingID,
		Title:     session.Title,
		Date:      session.Date.Format(time.RFC3339),
		Day:       session.Day,
	}
}

func toMatrixResponse(m attendance.Matrix) matrixResponse {
	resp := matrixResponse{
		WindowStart: m.Window.Start.Format(time.RFC3339),
		WindowEnd:   m.Window.End.Format(time.RFC3339Nano),
		Sessions:    make([]matrixSessionDTO, 0, len(m.Sessions)),
		Rows:        make([]matrixRowDTO, 0, len(m.Rows)),
		Stats: matrixStatsDTO{
			TotalMembers:        m.Stats.TotalMembers,
			TotalSessions:       m.Stats.TotalSessions,
			TotalPossible:       m.Stats.TotalPossible,
			PresentCount:        m.Stats.PresentCount,
			AttendanceRate:      m.Stats.AttendanceRate,
			ConsistentMembers:   m.Stats.ConsistentMembers,
			RetentionRisk:       m.Stats.RetentionRisk,
			RetentionSessions:   m.Stats.RetentionSessions,
			RetentionWindowDays: m.Stats.RetentionWindowDays,
		},
	}
	for _, session := range m.Sessions {
		resp.Sessions = append(resp.Sessions, toMatrixSessionDTO(session))
	}
	for _, row := range m.Rows {
		resp.Rows = append(resp.Rows, matrixRowDTO{
			MemberID: row.MemberID,
			Name:     row.Name,
			Records:  row.Records,
			Present:  row.Present,
			Total:    row.Total,
			Rate:     row.Rate,
		})
	}
	if top := m.Stats.TopSession; top != nil {
		resp.Stats.TopSession = &topSessionDTO{Session: toMatrixSessionDTO(top.Session), Present: top.Present, Rate: top.Rate}
	}
	if cohort := m.Stats.Cohort; cohort != nil {
		resp.Stats.Cohort = &attendanceCohort{Year: cohort.Year, AverageSessions: cohort.AverageSessions}
	}
	return resp
}
