package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/club-crm/internal/application"
)

var (
	errBadRequestBody      = errors.New("無効なリクエスト形式です。")
	errInvalidUserID       = errors.New("無効なユーザー ID です。")
	errInvalidMemberID     = errors.New("無効な会員 ID です。")
	errInvalidMeetingID    = errors.New("無効なミーティング ID です。")
	errInvalidQuery        = errors.New("検索条件が正しくありません。")
	errMissingSessionToken = errors.New("認証トークンを指定してください")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// serviceErrors maps application sentinels to responses, first match wins.
var serviceErrors = []struct {
	target error
	status int
	body   errorResponse
}{
	{application.ErrInvalidCredentials, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_CREDENTIALS", Message: "メールアドレスまたはパスワードが正しくありません"}},
	{application.ErrAccountDisabled, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_ACCOUNT_DISABLED", Message: "このアカウントは無効化されています。"}},
	{application.ErrSessionExpired, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_SESSION_EXPIRED", Message: "セッションが無効です。再度ログインしてください。"}},
	{application.ErrSessionRevoked, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_SESSION_EXPIRED", Message: "セッションが無効です。再度ログインしてください。"}},
	{application.ErrUnauthorized, http.StatusForbidden, errorResponse{ErrorCode: "AUTH_FORBIDDEN", Message: "この操作を実行する権限がありません。"}},
	{application.ErrNotFound, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"}},
	{application.ErrAlreadyRecorded, http.StatusConflict, errorResponse{ErrorCode: "ATTENDANCE_ALREADY_RECORDED", Message: "本日の出席はすでに記録されています。"}},
	{application.ErrAlreadyExists, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "同じ内容のデータがすでに登録されています。"}},
	{application.ErrInvalidCheckInCode, http.StatusUnprocessableEntity, errorResponse{ErrorCode: "CHECKIN_INVALID_CODE", Message: "QR コードが無効です。"}},
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.target) {
			r.writeJSON(ctx, w, mapping.status, mapping.body)
			return
		}
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Message: localizedStatusMessage(http.StatusUnprocessableEntity),
			Errors:  localizeValidationErrors(vErr),
		})
		return
	}

	r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: localizedStatusMessage(http.StatusInternalServerError)})
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

var validationMessages = map[string]string{
	"email is required":                                                "メールアドレスは必須です。",
	"email is invalid":                                                 "メールアドレスの形式が不正です。",
	"display name is required":                                         "表示名は必須です。",
	"password is required":                                             "パスワードは必須です。",
	"cannot delete the signed-in account":                              "ログイン中のアカウントは削除できません。",
	"name is required":                                                 "氏名は必須です。",
	"status must be active or inactive":                                "ステータスは active または inactive を指定してください。",
	"member type must be an upper case identifier":                     "会員種別は大文字の英字で指定してください。",
	"member id is required":                                            "会員を指定してください。",
	"member name is required":                                          "会員を指定してください。",
	"title is required":                                                "タイトルは必須です。",
	"date is required for a meeting that does not repeat":              "繰り返さないミーティングには日付が必要です。",
	"date must be a calendar date or RFC 3339 timestamp":               "日付は YYYY-MM-DD または RFC 3339 形式で指定してください。",
	"repeat must be one of none, everyday, weekdays, weekends, custom": "繰り返し設定が正しくありません。",
	"custom days must be weekday names":                                "繰り返す曜日を指定してください。",
	"at least one custom day is required":                              "繰り返す曜日を指定してください。",
	"exceptions must be calendar dates (YYYY-MM-DD)":                   "除外日は YYYY-MM-DD 形式で指定してください。",
}

// translateValidationMessage returns the Japanese text for a service message,
// or the message itself when none is known.
func translateValidationMessage(message string) string {
	if translated, ok := validationMessages[message]; ok {
		return translated
	}
	if rest, ok := strings.CutPrefix(message, "password must be"); ok && strings.HasPrefix(strings.TrimSpace(rest), "at least") {
		return "パスワードが短すぎます: " + strings.TrimSpace(rest)
	}
	return message
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
