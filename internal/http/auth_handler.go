package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/club-crm/internal/application"
)

const (
	sessionCookieName  = "session_token"
	sessionTokenHeader = "X-Session-Token"
)

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	RefreshSession(ctx context.Context, params application.RefreshSessionParams) (application.RefreshSessionResult, error)
	RevokeSession(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, principal application.Principal) (application.User, error)
}

// AuthHandler serves /sessions. A session token travels both as an HttpOnly
// cookie for the dashboard and in the X-Session-Token header for API clients.
type AuthHandler struct {
	service   authService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

func (h *AuthHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// CreateSession logs a staff member in.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateSession", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode session request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	logger := h.log(r.Context(), "CreateSession", "email", email)
	result, err := h.service.Authenticate(r.Context(), application.AuthenticateParams{
		Email:       email,
		Password:    req.Password,
		Fingerprint: r.UserAgent(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "authentication rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", result.User.ID).InfoContext(r.Context(), "user authenticated")
	resp := h.hand(w, result.Session)
	resp.User = ptr(toUserDTO(result.User))
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, resp)
}

// GetCurrentSession returns the account behind the current session.
func (h *AuthHandler) GetCurrentSession(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	user, err := h.service.CurrentUser(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "GetCurrentSession", "principal_id", principal.UserID).
			ErrorContext(r.Context(), "current user lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

// RefreshCurrentSession trades the presented token for a new one.
func (h *AuthHandler) RefreshCurrentSession(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	token := extractTokenFromRequest(r)
	logger := h.log(r.Context(), "RefreshCurrentSession", "token_present", token != "")
	result, err := h.service.RefreshSession(r.Context(), application.RefreshSessionParams{
		Token:       token,
		Fingerprint: r.UserAgent(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "session refresh failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session refreshed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.hand(w, result.Session))
}

// DeleteCurrentSession logs the caller out.
func (h *AuthHandler) DeleteCurrentSession(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	token := extractTokenFromRequest(r)
	if token == "" {
		h.log(r.Context(), "DeleteCurrentSession", "error_kind", "unauthorized").ErrorContext(r.Context(), "logout without a session token")
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   errMissingSessionToken.Error(),
		})
		return
	}

	if h.revoke(w, r, "DeleteCurrentSession", token) {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
		})
		h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
	}
}

// DeleteSession lets an administrator end any session, e.g. for a lost device.
func (h *AuthHandler) DeleteSession(w http.ResponseWriter, r *http.Request, token string) {
	if !h.ready(w) {
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok || !principal.IsAdmin {
		h.log(r.Context(), "DeleteSession", "principal_id", principal.UserID, "error_kind", "forbidden").
			ErrorContext(r.Context(), "session revocation requires an administrator")
		h.responder.handleServiceError(r.Context(), w, application.ErrUnauthorized)
		return
	}

	token = strings.TrimSpace(token)
	if token == "" {
		h.log(r.Context(), "DeleteSession", "error_kind", "bad_request").ErrorContext(r.Context(), "empty token provided for admin revocation")
		h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{Message: "失効対象のトークンを指定してください。"})
		return
	}

	if h.revoke(w, r, "DeleteSession", token, "actor_id", principal.UserID) {
		h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
	}
}

// revoke ends the session and reports whether the caller should proceed to
// write its success response.
func (h *AuthHandler) revoke(w http.ResponseWriter, r *http.Request, operation, token string, attrs ...any) bool {
	logger := h.log(r.Context(), operation, attrs...)
	if err := h.service.RevokeSession(r.Context(), token); err != nil {
		logger.ErrorContext(r.Context(), "failed to revoke session", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return false
	}
	logger.InfoContext(r.Context(), "session revoked")
	return true
}

// hand delivers a session token to the client through the cookie and the
// header and returns the matching response body.
func (h *AuthHandler) hand(w http.ResponseWriter, session application.Session) loginResponse {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.Token,
		HttpOnly: true,
		Secure:   true,
		Path:     "/",
	}
	if !session.ExpiresAt.IsZero() {
		cookie.Expires = session.ExpiresAt.UTC()
	}
	http.SetCookie(w, cookie)
	w.Header().Set(sessionTokenHeader, session.Token)

	return loginResponse{Token: session.Token, ExpiresAt: formatTime(session.ExpiresAt)}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      *userDTO `json:"user,omitempty"`
}

// extractTokenFromRequest prefers a bearer token over the session cookie.
func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
