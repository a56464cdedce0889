package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/club-crm/internal/application"
	"github.com/example/club-crm/internal/attendance"
	"github.com/example/club-crm/internal/calendar"
	"github.com/example/club-crm/internal/checkin"
)

func withPrincipal(r *http.Request, principal application.Principal) *http.Request {
	return r.WithContext(ContextWithPrincipal(r.Context(), principal))
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(recorder.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func TestAuthHandlers(t *testing.T) {
	t.Parallel()

	expires := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

	t.Run("login issues session token via cookie and header", func(t *testing.T) {
		t.Parallel()

		stub := &authServiceStub{authenticate: func(params application.AuthenticateParams) (application.AuthenticateResult, error) {
			if params.Email != "admin@example.com" {
				t.Fatalf("expected normalized email, got %q", params.Email)
			}
			return application.AuthenticateResult{
				User:    application.User{ID: "user-1", Email: params.Email, IsAdmin: true},
				Session: application.Session{Token: "tok-1", ExpiresAt: expires},
			}, nil
		}}
		handler := NewAuthHandler(stub, quietLogger())

		req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":" Admin@Example.com ","password":"secret-pass"}`))
		rec := httptest.NewRecorder()
		handler.CreateSession(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if got := rec.Header().Get("X-Session-Token"); got != "tok-1" {
			t.Fatalf("expected header token, got %q", got)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != "session_token" || cookies[0].Value != "tok-1" {
			t.Fatalf("unexpected cookies %+v", cookies)
		}
		body := decodeBody[loginResponse](t, rec)
		if body.User == nil || !body.User.IsAdmin {
			t.Fatalf("expected user in response, got %+v", body)
		}
	})

	t.Run("invalid credentials map to 401", func(t *testing.T) {
		t.Parallel()

		stub := &authServiceStub{authenticate: func(application.AuthenticateParams) (application.AuthenticateResult, error) {
			return application.AuthenticateResult{}, application.ErrInvalidCredentials
		}}
		handler := NewAuthHandler(stub, quietLogger())

		rec := httptest.NewRecorder()
		handler.CreateSession(rec, httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"email":"a@example.com","password":"wrong"}`)))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.ErrorCode != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("unexpected error code %q", body.ErrorCode)
		}
	})

	t.Run("logout revokes the session", func(t *testing.T) {
		t.Parallel()

		stub := &authServiceStub{}
		handler := NewAuthHandler(stub, quietLogger())

		req := httptest.NewRequest(http.MethodDelete, "/sessions/current", nil)
		req.Header.Set("Authorization", "Bearer tok-9")
		rec := httptest.NewRecorder()
		handler.DeleteCurrentSession(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if len(stub.revoked) != 1 || stub.revoked[0] != "tok-9" {
			t.Fatalf("expected tok-9 revoked, got %v", stub.revoked)
		}
	})

	t.Run("refresh rotates the token", func(t *testing.T) {
		t.Parallel()

		stub := &authServiceStub{refresh: func(params application.RefreshSessionParams) (application.RefreshSessionResult, error) {
			if params.Token != "old" {
				return application.RefreshSessionResult{}, application.ErrInvalidCredentials
			}
			return application.RefreshSessionResult{Session: application.Session{Token: "new", ExpiresAt: expires}}, nil
		}}
		handler := NewAuthHandler(stub, quietLogger())

		req := httptest.NewRequest(http.MethodPut, "/sessions/current", nil)
		req.AddCookie(&http.Cookie{Name: "session_token", Value: "old"})
		rec := httptest.NewRecorder()
		handler.RefreshCurrentSession(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Header().Get("X-Session-Token"); got != "new" {
			t.Fatalf("expected rotated token, got %q", got)
		}
	})

	t.Run("non-admin cannot revoke other sessions", func(t *testing.T) {
		t.Parallel()

		stub := &authServiceStub{}
		handler := NewAuthHandler(stub, quietLogger())

		req := withPrincipal(httptest.NewRequest(http.MethodDelete, "/sessions/other", nil), application.Principal{UserID: "staff"})
		rec := httptest.NewRecorder()
		handler.DeleteSession(rec, req, "other")

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if len(stub.revoked) != 0 {
			t.Fatalf("expected no revocation, got %v", stub.revoked)
		}
	})
}

func TestUserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("require administrator authorization", func(t *testing.T) {
		t.Parallel()

		handler := NewUserHandler(&userServiceStub{err: application.ErrUnauthorized}, quietLogger())
		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/users", nil), application.Principal{UserID: "staff"})
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("return localized validation errors", func(t *testing.T) {
		t.Parallel()

		stub := &userServiceStub{err: &application.ValidationError{FieldErrors: map[string]string{
			"email":    "email is required",
			"password": "password must be at least 8 characters",
		}}}
		handler := NewUserHandler(stub, quietLogger())
		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"display_name":"Staff","password":"short"}`)), application.Principal{UserID: "admin", IsAdmin: true})
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		body := decodeBody[errorResponse](t, rec)
		if body.Errors["email"] != "メールアドレスは必須です。" {
			t.Fatalf("expected localized email error, got %q", body.Errors["email"])
		}
		if !strings.Contains(body.Errors["password"], "8") {
			t.Fatalf("expected password length in message, got %q", body.Errors["password"])
		}
		if stub.created.Input.Password != "short" {
			t.Fatalf("expected password forwarded verbatim, got %q", stub.created.Input.Password)
		}
	})

	t.Run("staff may read only their own account", func(t *testing.T) {
		t.Parallel()

		handler := NewUserHandler(&userServiceStub{}, quietLogger())
		principal := application.Principal{UserID: "staff"}

		req := httptest.NewRequest(http.MethodGet, "/users/staff", nil)
		req = withPrincipal(req.WithContext(ContextWithUserID(req.Context(), "staff")), principal)
		rec := httptest.NewRecorder()
		handler.Get(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if body := decodeBody[userResponse](t, rec); body.User.ID != "staff" {
			t.Fatalf("unexpected user %+v", body.User)
		}

		req = httptest.NewRequest(http.MethodGet, "/users/other", nil)
		req = withPrincipal(req.WithContext(ContextWithUserID(req.Context(), "other")), principal)
		rec = httptest.NewRecorder()
		handler.Get(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("missing user id is a bad request", func(t *testing.T) {
		t.Parallel()

		handler := NewUserHandler(&userServiceStub{}, quietLogger())
		rec := httptest.NewRecorder()
		handler.Delete(rec, withPrincipal(httptest.NewRequest(http.MethodDelete, "/users/", nil), application.Principal{UserID: "admin", IsAdmin: true}))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestMemberHandlers(t *testing.T) {
	t.Parallel()

	newStub := func() *memberServiceStub {
		return &memberServiceStub{
			members: map[string]application.Member{"member-1": {ID: "member-1", Name: "Aiko", MemberType: "MEMBER", Status: "active"}},
			stats:   application.MemberStats{Total: 1, Active: 1, ByType: map[string]int{"MEMBER": 1}},
		}
	}

	t.Run("create trims input and returns 201", func(t *testing.T) {
		t.Parallel()

		stub := newStub()
		router := NewRouter(RouterConfig{Members: NewMemberHandler(stub, quietLogger())})
		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/members", strings.NewReader(`{"name":"  Kenji ","email":" kenji@example.com "}`)), application.Principal{UserID: "staff"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if stub.created.Input.Name != "Kenji" || *stub.created.Input.Email != "kenji@example.com" {
			t.Fatalf("expected trimmed input, got %+v", stub.created.Input)
		}
	})

	t.Run("unknown member maps to 404", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Members: NewMemberHandler(newStub(), quietLogger())})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/missing", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("delete requires an administrator", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Members: NewMemberHandler(newStub(), quietLogger())})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withPrincipal(httptest.NewRequest(http.MethodDelete, "/members/member-1", nil), application.Principal{UserID: "staff"}))

		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("stats route is not treated as an id", func(t *testing.T) {
		t.Parallel()

		router := NewRouter(RouterConfig{Members: NewMemberHandler(newStub(), quietLogger())})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/stats", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody[memberStatsResponse](t, rec)
		if body.Total != 1 || body.ByType["MEMBER"] != 1 {
			t.Fatalf("unexpected stats %+v", body)
		}
	})
}

func TestMeetingHandlers(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)

	t.Run("date-only input takes the time field in the configured zone", func(t *testing.T) {
		t.Parallel()

		stub := &meetingServiceStub{}
		handler := NewMeetingHandler(stub, MeetingHandlerConfig{Location: tokyo}, quietLogger())
		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/meetings", strings.NewReader(`{"title":"Board","date":"2024-03-01","time":"18:30"}`)), application.Principal{UserID: "staff"})
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		want := time.Date(2024, time.March, 1, 18, 30, 0, 0, tokyo)
		if got := stub.created.Input.Date; got == nil || !got.Equal(want) {
			t.Fatalf("expected date %v, got %v", want, got)
		}
	})

	t.Run("unparseable date is a validation error", func(t *testing.T) {
		t.Parallel()

		handler := NewMeetingHandler(&meetingServiceStub{}, MeetingHandlerConfig{}, quietLogger())
		req := withPrincipal(httptest.NewRequest(http.MethodPost, "/meetings", strings.NewReader(`{"title":"Board","date":"next friday"}`)), application.Principal{UserID: "staff"})
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.Errors["date"] == "" {
			t.Fatalf("expected date error, got %+v", body)
		}
	})

	t.Run("calendar serializes occurrences with tokens and counts", func(t *testing.T) {
		t.Parallel()

		date := time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC)
		token := checkin.Token{Date: "2024-03-01", Image: "data:image/png;base64,AA", URL: "http://localhost:3000/attendance?meeting=m-1&date=2024-03-01"}
		stub := &meetingServiceStub{view: application.CalendarView{
			Events:     []calendar.Occurrence{{MeetingID: "m-1", Date: date, Day: "2024-03-01", Title: "Board", Token: &token}},
			DateCounts: map[string]int{"2024-03-01": 1},
		}}
		router := NewRouter(RouterConfig{Meetings: NewMeetingHandler(stub, MeetingHandlerConfig{}, quietLogger())})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meetings/calendar", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := decodeBody[calendarResponse](t, rec)
		if len(body.Events) != 1 || body.Events[0].Key != "m-1|2024-03-01" {
			t.Fatalf("unexpected events %+v", body.Events)
		}
		if body.Events[0].Token == nil || body.Events[0].Token.URL != token.URL {
			t.Fatalf("expected token in event, got %+v", body.Events[0].Token)
		}
		if body.DateCounts["2024-03-01"] != 1 {
			t.Fatalf("unexpected counts %v", body.DateCounts)
		}
	})

	t.Run("feed is served as text/calendar", func(t *testing.T) {
		t.Parallel()

		stub := &meetingServiceStub{feed: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"}
		opts := calendar.FeedOptions{Name: "Club", Domain: "club.example.com"}
		router := NewRouter(RouterConfig{Meetings: NewMeetingHandler(stub, MeetingHandlerConfig{Feed: opts}, quietLogger())})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meetings/calendar.ics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
			t.Fatalf("unexpected content type %q", ct)
		}
		if stub.feedOpts.Domain != "club.example.com" {
			t.Fatalf("expected configured feed options, got %+v", stub.feedOpts)
		}
	})
}

func TestAttendanceHandlers(t *testing.T) {
	t.Parallel()

	t.Run("duplicate check-in maps to 409", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{recordErr: application.ErrAlreadyRecorded}
		handler := NewAttendanceHandler(stub, nil, quietLogger())
		rec := httptest.NewRecorder()
		handler.Record(rec, httptest.NewRequest(http.MethodPost, "/attendance/record", strings.NewReader(`{"member_id":"member-1"}`)))

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		if body := decodeBody[errorResponse](t, rec); body.ErrorCode != "ATTENDANCE_ALREADY_RECORDED" {
			t.Fatalf("unexpected error code %q", body.ErrorCode)
		}
	})

	t.Run("record parses an optional date", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{}
		handler := NewAttendanceHandler(stub, time.UTC, quietLogger())
		rec := httptest.NewRecorder()
		handler.Record(rec, httptest.NewRequest(http.MethodPost, "/attendance/record", strings.NewReader(`{"member_id":"member-1","meeting_id":"m-1","date":"2024-03-01"}`)))

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		want := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
		if stub.recorded.Date == nil || !stub.recorded.Date.Equal(want) {
			t.Fatalf("expected date %v, got %v", want, stub.recorded.Date)
		}
	})

	t.Run("invalid code maps to 422", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{inspect: func(string) (application.CheckInCode, error) {
			return application.CheckInCode{}, application.ErrInvalidCheckInCode
		}}
		router := NewRouter(RouterConfig{Attendance: NewAttendanceHandler(stub, nil, quietLogger())})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attendance/qr?code=garbage", nil))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("qr check-in reports created walk-ins", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{checkIn: func(params application.CheckInParams) (application.CheckInResult, error) {
			return application.CheckInResult{
				Member:        application.Member{ID: "member-9", Name: params.MemberName, MemberType: "GUEST", Status: "active"},
				Attendance:    application.AttendanceRecord{ID: "attendance-1", MemberID: "member-9", MeetingID: "m-1", Status: "PRESENT"},
				MemberCreated: true,
			}, nil
		}}
		router := NewRouter(RouterConfig{
			Attendance: NewAttendanceHandler(stub, nil, quietLogger()),
			Public:     PublicCORS(),
		})
		req := httptest.NewRequest(http.MethodPost, "/attendance/qr", strings.NewReader(`{"code":"http://localhost:3000/attendance?meeting=m-1&date=2024-03-01","member_name":"Walk In"}`))
		req.Header.Set("Origin", "http://scanner.example.com")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("expected permissive CORS header, got %q", got)
		}
		body := decodeBody[checkInResponse](t, rec)
		if !body.MemberCreated || body.Member.Name != "Walk In" {
			t.Fatalf("unexpected response %+v", body)
		}
	})

	t.Run("list forwards inclusive date filters", func(t *testing.T) {
		t.Parallel()

		stub := &attendanceServiceStub{}
		handler := NewAttendanceHandler(stub, time.UTC, quietLogger())
		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/attendance?from=2024-03-01&to=2024-03-02&member_id=member-1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.filter.From == nil || !stub.filter.From.Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("unexpected from %v", stub.filter.From)
		}
		wantTo := time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
		if stub.filter.To == nil || !stub.filter.To.Equal(wantTo) {
			t.Fatalf("expected to %v, got %v", wantTo, stub.filter.To)
		}
		if stub.filter.MemberID != "member-1" {
			t.Fatalf("expected member filter, got %q", stub.filter.MemberID)
		}
	})

	t.Run("bad date filter is a 400", func(t *testing.T) {
		t.Parallel()

		handler := NewAttendanceHandler(&attendanceServiceStub{}, nil, quietLogger())
		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/attendance?from=yesterday", nil))

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("matrix serializes sessions rows and stats", func(t *testing.T) {
		t.Parallel()

		day := time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC)
		session := attendance.MatrixSession{Key: "m-1|2024-03-01", MeetingID: "m-1", Title: "Board", Date: day, Day: "2024-03-01"}
		stub := &attendanceServiceStub{matrix: attendance.Matrix{
			Sessions: []attendance.MatrixSession{session},
			Rows:     []attendance.Row{{MemberID: "member-1", Name: "Aiko", Records: map[string]bool{session.Key: true}, Present: 1, Total: 1, Rate: 100}},
			Stats: attendance.Stats{
				TotalMembers: 1, TotalSessions: 1, TotalPossible: 1, PresentCount: 1, AttendanceRate: 100,
				TopSession:          &attendance.SessionRate{Session: session, Present: 1, Rate: 100},
				RetentionWindowDays: 30,
				RetentionSessions:   1,
			},
		}}
		handler := NewAttendanceHandler(stub, nil, quietLogger())
		rec := httptest.NewRecorder()
		handler.Matrix(rec, httptest.NewRequest(http.MethodGet, "/attendance/matrix", nil))

		body := decodeBody[matrixResponse](t, rec)
		if len(body.Rows) != 1 || !body.Rows[0].Records["m-1|2024-03-01"] {
			t.Fatalf("unexpected rows %+v", body.Rows)
		}
		if body.Stats.TopSession == nil || body.Stats.TopSession.Session.Key != session.Key {
			t.Fatalf("expected top session, got %+v", body.Stats.TopSession)
		}
		if body.Stats.Cohort != nil {
			t.Fatalf("expected no cohort, got %+v", body.Stats.Cohort)
		}
		if body.Stats.RetentionSessions != 1 || body.Stats.RetentionWindowDays != 30 {
			t.Fatalf("unexpected retention stats %+v", body.Stats)
		}
	})
}
