package http

import (
	"net/http"
	"strings"
)

// RouterConfig wires handlers into the mux. Session guards staff routes and
// Public wraps the check-in routes; either may be nil in tests. Middleware
// wraps the whole mux, outermost first.
type RouterConfig struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Members    *MemberHandler
	Meetings   *MeetingHandler
	Attendance *AttendanceHandler
	Session    func(http.Handler) http.Handler
	Public     func(http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protected := func(fn http.HandlerFunc) http.Handler {
		if cfg.Session == nil {
			return fn
		}
		return cfg.Session(fn)
	}
	public := func(fn http.HandlerFunc) http.Handler {
		if cfg.Public == nil {
			return fn
		}
		return cfg.Public(fn)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		currentSession := protected(cfg.Auth.GetCurrentSession)
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				currentSession.ServeHTTP(w, r)
			case http.MethodPut:
				cfg.Auth.RefreshCurrentSession(w, r)
			case http.MethodDelete:
				cfg.Auth.DeleteCurrentSession(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
		mux.Handle("/sessions/", protected(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.URL.Path, "/sessions/")
			if token == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteSession(w, r, token)
		}))
	}

	if cfg.Users != nil {
		mux.Handle("/users", protected(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/users/", protected(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/users/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithUserID(r.Context(), id))
			switch r.Method {
			case http.MethodGet:
				cfg.Users.Get(w, r)
			case http.MethodPut:
				cfg.Users.Update(w, r)
			case http.MethodDelete:
				cfg.Users.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Members != nil {
		mux.Handle("/members", protected(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Members.List(w, r)
			case http.MethodPost:
				cfg.Members.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/members/", protected(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/members/")
			switch id {
			case "":
				http.NotFound(w, r)
				return
			case "stats":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Members.Stats(w, r)
				return
			}
			r = r.WithContext(ContextWithMemberID(r.Context(), id))
			switch r.Method {
			case http.MethodGet:
				cfg.Members.Get(w, r)
			case http.MethodPut:
				cfg.Members.Update(w, r)
			case http.MethodDelete:
				cfg.Members.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Meetings != nil {
		mux.Handle("/meetings", protected(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Meetings.List(w, r)
			case http.MethodPost:
				cfg.Meetings.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.Handle("/meetings/", protected(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/meetings/")
			switch id {
			case "":
				http.NotFound(w, r)
				return
			case "calendar", "calendar.ics":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				if id == "calendar" {
					cfg.Meetings.Calendar(w, r)
				} else {
					cfg.Meetings.Feed(w, r)
				}
				return
			}
			r = r.WithContext(ContextWithMeetingID(r.Context(), id))
			switch r.Method {
			case http.MethodGet:
				cfg.Meetings.Get(w, r)
			case http.MethodPut:
				cfg.Meetings.Update(w, r)
			case http.MethodDelete:
				cfg.Meetings.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Attendance != nil {
		mux.Handle("/attendance", protected(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Attendance.List(w, r)
		}))
		mux.Handle("/attendance/matrix", protected(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Attendance.Matrix(w, r)
		}))
		mux.Handle("/attendance/stats", protected(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Attendance.Stats(w, r)
		}))
		mux.Handle("/attendance/record", public(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Attendance.Record(w, r)
		}))
		mux.Handle("/attendance/qr", public(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Attendance.InspectCode(w, r)
			case http.MethodPost:
				cfg.Attendance.CheckIn(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
