package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

// MemberRepository captures the persistence operations needed by the member service.
type MemberRepository interface {
	CreateMember(ctx context.Context, member Member) (Member, error)
	GetMember(ctx context.Context, id string) (Member, error)
	FindMemberByName(ctx context.Context, name string) (Member, error)
	UpdateMember(ctx context.Context, member Member) (Member, error)
	DeleteMember(ctx context.Context, id string) error
	ListMembers(ctx context.Context) ([]Member, error)
}

var memberTypePattern = regexp.MustCompile(`^[A-Z][A-Z_]*$`)

// MemberService orchestrates validation, authorization, and persistence for
// the club roster.
type MemberService struct {
	members     MemberRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewMemberService constructs a member service with the provided dependencies.
func NewMemberService(members MemberRepository, idGenerator func() string, now func() time.Time) *MemberService {
	return NewMemberServiceWithLogger(members, idGenerator, now, nil)
}

// NewMemberServiceWithLogger constructs a member service with a specified logger.
func NewMemberServiceWithLogger(members MemberRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *MemberService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &MemberService{members: members, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *MemberService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MemberService", operation, attrs...)
}

// CreateMember validates input and persists a new member.
func (s *MemberService) CreateMember(ctx context.Context, params CreateMemberParams) (member Member, err error) {
	if s == nil {
		err = fmt.Errorf("MemberService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateMember",
		"principal_id", params.Principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("member_id", member.ID).InfoContext(ctx, "member created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	input := normalizeMemberInput(params.Input)
	if vErr := validateMemberInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	member = Member{
		ID:         s.idGenerator(),
		Name:       input.Name,
		Email:      input.Email,
		Phone:      input.Phone,
		MemberType: input.MemberType,
		Status:     input.Status,
		Notes:      input.Notes,
		CreatedAt:  s.now(),
	}
	member.UpdatedAt = member.CreatedAt

	if s.members == nil {
		return
	}

	member, err = s.members.CreateMember(ctx, member)
	if err != nil {
		err = mapMemberRepoError(err)
	}
	return
}

// UpdateMember validates input and replaces the attributes of an existing member.
func (s *MemberService) UpdateMember(ctx context.Context, params UpdateMemberParams) (member Member, err error) {
	if s == nil {
		err = fmt.Errorf("MemberService is nil")
		return
	}
	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}
	if s.members == nil {
		err = fmt.Errorf("member repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateMember",
		"principal_id", params.Principal.UserID,
		"member_id", params.MemberID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update member", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member updated")
	}()

	var existing Member
	existing, err = s.members.GetMember(ctx, params.MemberID)
	if err != nil {
		err = mapMemberRepoError(err)
		return
	}

	input := normalizeMemberInput(params.Input)
	if vErr := validateMemberInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = input.Name
	updated.Email = input.Email
	updated.Phone = input.Phone
	updated.MemberType = input.MemberType
	updated.Status = input.Status
	updated.Notes = input.Notes
	updated.UpdatedAt = s.now()

	member, err = s.members.UpdateMember(ctx, updated)
	if err != nil {
		err = mapMemberRepoError(err)
	}
	return
}

// DeleteMember removes a member and their attendance history. Only
// administrators may delete members.
func (s *MemberService) DeleteMember(ctx context.Context, principal Principal, memberID string) error {
	if s == nil {
		return fmt.Errorf("MemberService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if s.members == nil {
		return fmt.Errorf("member repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteMember",
		"principal_id", principal.UserID,
		"member_id", memberID,
	)

	if err := s.members.DeleteMember(ctx, memberID); err != nil {
		err = mapMemberRepoError(err)
		logger.ErrorContext(ctx, "failed to delete member", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "member deleted")
	return nil
}

// GetMember returns a single member.
func (s *MemberService) GetMember(ctx context.Context, principal Principal, memberID string) (Member, error) {
	if s == nil {
		return Member{}, fmt.Errorf("MemberService is nil")
	}
	if s.members == nil {
		return Member{}, ErrNotFound
	}
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return Member{}, mapMemberRepoError(err)
	}
	return member, nil
}

// ListMembers returns the roster ordered by name.
func (s *MemberService) ListMembers(ctx context.Context, principal Principal) (members []Member, err error) {
	if s == nil {
		err = fmt.Errorf("MemberService is nil")
		return
	}
	if s.members == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListMembers",
		"principal_id", principal.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list members", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(members)).InfoContext(ctx, "members listed")
	}()

	var raw []Member
	raw, err = s.members.ListMembers(ctx)
	if err != nil {
		return
	}

	members = make([]Member, len(raw))
	copy(members, raw)
	sortMembers(members)
	return
}

// Stats counts members by status and type.
func (s *MemberService) Stats(ctx context.Context, principal Principal) (MemberStats, error) {
	members, err := s.ListMembers(ctx, principal)
	if err != nil {
		return MemberStats{}, err
	}

	stats := MemberStats{Total: len(members), ByType: make(map[string]int)}
	for _, member := range members {
		if member.Status == MemberStatusInactive {
			stats.Inactive++
		} else {
			stats.Active++
		}
		stats.ByType[member.MemberType]++
	}
	return stats, nil
}

func sortMembers(members []Member) {
	sort.Slice(members, func(i, j int) bool {
		if strings.EqualFold(members[i].Name, members[j].Name) {
			return members[i].ID < members[j].ID
		}
		return strings.ToLower(members[i].Name) < strings.ToLower(members[j].Name)
	})
}

func normalizeMemberInput(input MemberInput) MemberInput {
	normalized := MemberInput{
		Name:       strings.TrimSpace(input.Name),
		Email:      normalizeOptionalString(input.Email),
		Phone:      normalizeOptionalString(input.Phone),
		MemberType: strings.ToUpper(strings.TrimSpace(input.MemberType)),
		Status:     strings.ToLower(strings.TrimSpace(input.Status)),
		Notes:      normalizeOptionalString(input.Notes),
	}
	if normalized.Email != nil {
		lowered := strings.ToLower(*normalized.Email)
		normalized.Email = &lowered
	}
	if normalized.MemberType == "" {
		normalized.MemberType = DefaultMemberType
	}
	if normalized.Status == "" {
		normalized.Status = MemberStatusActive
	}
	return normalized
}

func validateMemberInput(input MemberInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	if input.Email != nil {
		if _, err := mail.ParseAddress(*input.Email); err != nil {
			vErr.add("email", "email is invalid")
		}
	}
	if input.Status != MemberStatusActive && input.Status != MemberStatusInactive {
		vErr.add("status", "status must be active or inactive")
	}
	if !memberTypePattern.MatchString(input.MemberType) {
		vErr.add("member_type", "member type must be an upper case identifier")
	}

	return vErr
}

func mapMemberRepoError(err error) error {
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
		vErr.add("member", "member violates a storage constraint")
		return vErr
	}
	return err
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
