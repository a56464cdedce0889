package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/example/club-crm/internal/application"
	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/persistence"
	"github.com/example/club-crm/internal/recurrence"
)

type memberRepositoryAdapter struct {
	repo persistence.MemberRepository
}

func newMemberRepositoryAdapter(repo persistence.MemberRepository) *memberRepositoryAdapter {
	return &memberRepositoryAdapter{repo: repo}
}

func (a *memberRepositoryAdapter) CreateMember(ctx context.Context, member application.Member) (application.Member, error) {
	if err := a.repo.CreateMember(ctx, toPersistenceMember(member)); err != nil {
		return application.Member{}, err
	}
	stored, err := a.repo.GetMember(ctx, member.ID)
	if err != nil {
		return application.Member{}, err
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) GetMember(ctx context.Context, id string) (application.Member, error) {
	stored, err := a.repo.GetMember(ctx, id)
	if err != nil {
		return application.Member{}, err
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) FindMemberByName(ctx context.Context, name string) (application.Member, error) {
	stored, err := a.repo.FindMemberByName(ctx, name)
	if err != nil {
		return application.Member{}, err
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) UpdateMember(ctx context.Context, member application.Member) (application.Member, error) {
	if err := a.repo.UpdateMember(ctx, toPersistenceMember(member)); err != nil {
		return application.Member{}, err
	}
	stored, err := a.repo.GetMember(ctx, member.ID)
	if err != nil {
		return application.Member{}, err
	}
	return toApplicationMember(stored), nil
}

func (a *memberRepositoryAdapter) DeleteMember(ctx context.Context, id string) error {
	return a.repo.DeleteMember(ctx, id)
}

func (a *memberRepositoryAdapter) ListMembers(ctx context.Context) ([]application.Member, error) {
	models, err := a.repo.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	members := make([]application.Member, 0, len(models))
	for _, model := range models {
		members = append(members, toApplicationMember(model))
	}
	return members, nil
}

type meetingRepositoryAdapter struct {
	repo persistence.MeetingRepository
}

func newMeetingRepositoryAdapter(repo persistence.MeetingRepository) *meetingRepositoryAdapter {
	return &meetingRepositoryAdapter{repo: repo}
}

func (a *meetingRepositoryAdapter) CreateMeeting(ctx context.Context, meeting application.Meeting) (application.Meeting, error) {
	model, err := toPersistenceMeeting(meeting)
	if err != nil {
		return application.Meeting{}, err
	}
	if err := a.repo.CreateMeeting(ctx, model); err != nil {
		return application.Meeting{}, err
	}
	return a.GetMeeting(ctx, meeting.ID)
}

func (a *meetingRepositoryAdapter) GetMeeting(ctx context.Context, id string) (application.Meeting, error) {
	stored, err := a.repo.GetMeeting(ctx, id)
	if err != nil {
		return application.Meeting{}, err
	}
	return toApplicationMeeting(stored), nil
}

func (a *meetingRepositoryAdapter) UpdateMeeting(ctx context.Context, meeting application.Meeting) (application.Meeting, error) {
	model, err := toPersistenceMeeting(meeting)
	if err != nil {
		return application.Meeting{}, err
	}
	if err := a.repo.UpdateMeeting(ctx, model); err != nil {
		return application.Meeting{}, err
	}
	return a.GetMeeting(ctx, meeting.ID)
}

func (a *meetingRepositoryAdapter) UpdateMeetingTokens(ctx context.Context, id string, tokens []checkin.Token, updatedAt time.Time) error {
	encoded, err := checkin.EncodeTokens(tokens)
	if err != nil {
		return err
	}
	return a.repo.UpdateMeetingTokens(ctx, id, encoded, updatedAt)
}

func (a *meetingRepositoryAdapter) DeleteMeeting(ctx context.Context, id string) error {
	return a.repo.DeleteMeeting(ctx, id)
}

func (a *meetingRepositoryAdapter) ListMeetings(ctx context.Context) ([]application.Meeting, error) {
	models, err := a.repo.ListMeetings(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	meetings := make([]application.Meeting, 0, len(models))
	for _, model := range models {
		meetings = append(meetings, toApplicationMeeting(model))
	}
	return meetings, nil
}

type attendanceRepositoryAdapter struct {
	repo persistence.AttendanceRepository
}

func newAttendanceRepositoryAdapter(repo persistence.AttendanceRepository) *attendanceRepositoryAdapter {
	return &attendanceRepositoryAdapter{repo: repo}
}

// CreateAttendance returns the record as written; attendance rows are never
// rewritten by the store.
func (a *attendanceRepositoryAdapter) CreateAttendance(ctx context.Context, record application.AttendanceRecord) (application.AttendanceRecord, error) {
	if err := a.repo.CreateAttendance(ctx, toPersistenceAttendance(record)); err != nil {
		return application.AttendanceRecord{}, err
	}
	return record, nil
}

func (a *attendanceRepositoryAdapter) ListAttendance(ctx context.Context, filter application.AttendanceFilter) ([]application.AttendanceRecord, error) {
	models, err := a.repo.ListAttendance(ctx, persistence.AttendanceFilter{
		From:      cloneTime(filter.From),
		To:        cloneTime(filter.To),
		MemberID:  filter.MemberID,
		MeetingID: filter.MeetingID,
	})
	if err != nil {
		return nil, err
	}
	records := make([]application.AttendanceRecord, 0, len(models))
	for _, model := range models {
		records = append(records, toApplicationAttendance(model))
	}
	return records, nil
}

func (a *attendanceRepositoryAdapter) CountAttendance(ctx context.Context) (int, error) {
	return a.repo.CountAttendance(ctx)
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

// UpdateUser keeps the stored password hash when passwordHash is empty.
func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	if passwordHash == "" {
		current, err := a.repo.GetUser(ctx, user.ID)
		if err != nil {
			return application.User{}, err
		}
		passwordHash = current.PasswordHash
	}
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user, passwordHash)); err != nil {
		return application.User{}, err
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) DeleteUser(ctx context.Context, id string) error {
	return a.repo.DeleteUser(ctx, id)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

// sessionRepositoryAdapter stores an HMAC-SHA256 digest of each session token
// keyed by the session secret; callers only ever see the raw token.
type sessionRepositoryAdapter struct {
	repo   persistence.SessionRepository
	secret []byte
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository, secret string) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo, secret: []byte(secret)}
}

func (a *sessionRepositoryAdapter) digest(token string) string {
	if len(a.secret) == 0 || token == "" {
		return token
	}
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *sessionRepositoryAdapter) store(session application.Session) persistence.Session {
	model := toPersistenceSession(session)
	model.Token = a.digest(session.Token)
	return model
}

func (a *sessionRepositoryAdapter) load(model persistence.Session, token string) application.Session {
	session := toApplicationSession(model)
	session.Token = token
	return session
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, a.store(session))
	if err != nil {
		return application.Session{}, err
	}
	return a.load(stored, session.Token), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, a.digest(token))
	if err != nil {
		return application.Session{}, err
	}
	return a.load(stored, token), nil
}

func (a *sessionRepositoryAdapter) UpdateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.UpdateSession(ctx, a.store(session))
	if err != nil {
		return application.Session{}, err
	}
	return a.load(stored, session.Token), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, a.digest(token), revokedAt)
	if err != nil {
		return application.Session{}, err
	}
	return a.load(stored, token), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return a.repo.DeleteExpiredSessions(ctx, reference)
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, err
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, err
	}
	return toApplicationUser(stored), nil
}

func toApplicationMember(model persistence.Member) application.Member {
	return application.Member{
		ID:         model.ID,
		Name:       model.Name,
		Email:      cloneString(model.Email),
		Phone:      cloneString(model.Phone),
		MemberType: model.MemberType,
		Status:     model.Status,
		Notes:      cloneString(model.Notes),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistenceMember(member application.Member) persistence.Member {
	return persistence.Member{
		ID:         member.ID,
		Name:       member.Name,
		Email:      cloneString(member.Email),
		Phone:      cloneString(member.Phone),
		MemberType: member.MemberType,
		Status:     member.Status,
		Notes:      cloneString(member.Notes),
		CreatedAt:  member.CreatedAt,
		UpdatedAt:  member.UpdatedAt,
	}
}

// toApplicationMeeting decodes the token cache; a corrupt cache reads as empty
// and is rebuilt by the next expansion.
func toApplicationMeeting(model persistence.Meeting) application.Meeting {
	return application.Meeting{
		ID:         model.ID,
		Title:      model.Title,
		Notes:      derefString(model.Notes),
		Location:   derefString(model.Location),
		Type:       model.Type,
		Date:       cloneTime(model.Date),
		Repeat:     recurrence.RepeatRule(model.Repeat),
		CustomDays: append([]string(nil), model.CustomDays...),
		Exceptions: append([]string(nil), model.Exceptions...),
		Time:       derefString(model.Time),
		Duration:   derefString(model.Duration),
		Color:      derefString(model.Color),
		Tokens:     checkin.DecodeTokens(model.CheckInTokens),
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

func toPersistenceMeeting(meeting application.Meeting) (persistence.Meeting, error) {
	tokens, err := checkin.EncodeTokens(meeting.Tokens)
	if err != nil {
		return persistence.Meeting{}, err
	}
	return persistence.Meeting{
		ID:            meeting.ID,
		Title:         meeting.Title,
		Notes:         optionalString(meeting.Notes),
		Location:      optionalString(meeting.Location),
		Type:          meeting.Type,
		Date:          cloneTime(meeting.Date),
		Repeat:        string(meeting.Repeat),
		CustomDays:    append([]string(nil), meeting.CustomDays...),
		Exceptions:    append([]string(nil), meeting.Exceptions...),
		Time:          optionalString(meeting.Time),
		Duration:      optionalString(meeting.Duration),
		Color:         optionalString(meeting.Color),
		CheckInTokens: tokens,
		CreatedAt:     meeting.CreatedAt,
		UpdatedAt:     meeting.UpdatedAt,
	}, nil
}

func toApplicationAttendance(model persistence.Attendance) application.AttendanceRecord {
	return application.AttendanceRecord{
		ID:        model.ID,
		MemberID:  model.MemberID,
		MeetingID: model.MeetingID,
		Date:      model.Date,
		Day:       model.Day,
		Status:    model.Status,
		Notes:     cloneString(model.Notes),
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceAttendance(record application.AttendanceRecord) persistence.Attendance {
	return persistence.Attendance{
		ID:        record.ID,
		MemberID:  record.MemberID,
		MeetingID: record.MeetingID,
		Date:      record.Date,
		Day:       record.Day,
		Status:    record.Status,
		Notes:     cloneString(record.Notes),
		CreatedAt: record.CreatedAt,
	}
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		IsAdmin:     model.IsAdmin,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:           user.ID,
		Email:        user.Email,
		DisplayName:  user.DisplayName,
		PasswordHash: passwordHash,
		IsAdmin:      user.IsAdmin,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
