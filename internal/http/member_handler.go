package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/club-crm/internal/application"
)

type memberService interface {
	CreateMember(ctx context.Context, params application.CreateMemberParams) (application.Member, error)
	UpdateMember(ctx context.Context, params application.UpdateMemberParams) (application.Member, error)
	DeleteMember(ctx context.Context, principal application.Principal, memberID string) error
	GetMember(ctx context.Context, principal application.Principal, memberID string) (application.Member, error)
	ListMembers(ctx context.Context, principal application.Principal) ([]application.Member, error)
	Stats(ctx context.Context, principal application.Principal) (application.MemberStats, error)
}

type MemberHandler struct {
	service   memberService
	responder responder
	logger    *slog.Logger
}

func NewMemberHandler(service memberService, logger *slog.Logger) *MemberHandler {
	base := defaultLogger(logger)
	return &MemberHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *MemberHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MemberHandler", operation, attrs...)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode member request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	member, err := h.service.CreateMember(r.Context(), application.CreateMemberParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "member creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("member_id", member.ID).InfoContext(r.Context(), "member created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, memberResponse{Member: toMemberDTO(member)})
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, ok := MemberIDFromContext(r.Context())
	if !ok || strings.TrimSpace(memberID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing member id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "member_id", memberID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode member update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "member_id", memberID)

	member, err := h.service.UpdateMember(r.Context(), application.UpdateMemberParams{
		Principal: principal,
		MemberID:  memberID,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "member update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "member updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberResponse{Member: toMemberDTO(member)})
}

func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, ok := MemberIDFromContext(r.Context())
	if !ok || strings.TrimSpace(memberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "member_id", memberID)
	if err := h.service.DeleteMember(r.Context(), principal, memberID); err != nil {
		logger.ErrorContext(r.Context(), "member delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "member deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	memberID, ok := MemberIDFromContext(r.Context())
	if !ok || strings.TrimSpace(memberID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMemberID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	member, err := h.service.GetMember(r.Context(), principal, memberID)
	if err != nil {
		h.log(r.Context(), "Get", "member_id", memberID).ErrorContext(r.Context(), "member lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberResponse{Member: toMemberDTO(member)})
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)
	members, err := h.service.ListMembers(r.Context(), principal)
	if err != nil {
		logger.ErrorContext(r.Context(), "member list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(members)).InfoContext(r.Context(), "members listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listMembersResponse{Members: toMemberDTOs(members)})
}

func (h *MemberHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.service.Stats(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Stats", "principal_id", principal.UserID).ErrorContext(r.Context(), "member stats failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	byType := stats.ByType
	if byType == nil {
		byType = map[string]int{}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, memberStatsResponse{
		Total:    stats.Total,
		Active:   stats.Active,
		Inactive: stats.Inactive,
		ByType:   byType,
	})
}

type memberRequest struct {
	Name       string  `json:"name"`
	Email      *string `json:"email"`
	Phone      *string `json:"phone"`
	MemberType string  `json:"member_type"`
	Status     string  `json:"status"`
	Notes      *string `json:"notes"`
}

func (r memberRequest) toInput() application.MemberInput {
	return application.MemberInput{
		Name:       strings.TrimSpace(r.Name),
		Email:      trimmedPtr(r.Email),
		Phone:      trimmedPtr(r.Phone),
		MemberType: strings.TrimSpace(r.MemberType),
		Status:     strings.TrimSpace(r.Status),
		Notes:      r.Notes,
	}
}

type memberResponse struct {
	Member memberDTO `json:"member"`
}

type listMembersResponse struct {
	Members []memberDTO `json:"members"`
}

type memberStatsResponse struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Inactive int            `json:"inactive"`
	ByType   map[string]int `json:"by_type"`
}

type memberDTO struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	MemberType string  `json:"member_type"`
	Status     string  `json:"status"`
	Notes      *string `json:"notes,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

func toMemberDTO(member application.Member) memberDTO {
	return memberDTO{
		ID:         member.ID,
		Name:       member.Name,
		Email:      member.Email,
		Phone:      member.Phone,
		MemberType: member.MemberType,
		Status:     member.Status,
		Notes:      member.Notes,
		CreatedAt:  formatTime(member.CreatedAt),
		UpdatedAt:  formatTime(member.UpdatedAt),
	}
}

func toMemberDTOs(members []application.Member) []memberDTO {
	out := make([]memberDTO, 0, len(members))
	for _, member := range members {
		out = append(out, toMemberDTO(member))
	}
	return out
}
