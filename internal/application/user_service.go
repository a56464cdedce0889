package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/club-crm/internal/persistence"
)

// MinPasswordLength is the shortest password accepted for staff accounts.
const MinPasswordLength = 8

// UserRepository captures the persistence operations needed by the user service.
// An empty passwordHash on update keeps the stored hash.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, user User, passwordHash string) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

// PasswordHasher derives the stored form of a password.
type PasswordHasher func(password string) (string, error)

// UserService orchestrates validation, authorization, and persistence for staff accounts.
type UserService struct {
	users       UserRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, nil, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a
// specified hasher and logger. A nil hasher uses argon2id with the default
// parameters.
func NewUserServiceWithLogger(users UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = NewArgon2idHasher(DefaultArgon2idParams)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, hash: hash, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new user for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	user, err = s.create(ctx, params.Input)
	return
}

// EnsureAdmin creates an administrator with the given credentials unless an
// account with that email already exists. It reports whether a user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, input UserInput) (created bool, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	input.IsAdmin = true
	normalized := normalizeUserInput(input)
	logger := s.loggerWith(ctx, "EnsureAdmin", "email", normalized.Email)

	_, err = s.users.GetUserByEmail(ctx, normalized.Email)
	switch {
	case err == nil:
		logger.DebugContext(ctx, "administrator already present")
		return false, nil
	case !errors.Is(mapUserRepoError(err), ErrNotFound):
		logger.ErrorContext(ctx, "failed to look up administrator", "error", err)
		return false, err
	}

	var user User
	if user, err = s.create(ctx, input); err != nil {
		logger.ErrorContext(ctx, "failed to bootstrap administrator", "error", err, "error_kind", ErrorKind(err))
		return false, err
	}
	logger.With("user_id", user.ID).InfoContext(ctx, "administrator bootstrapped")
	return true, nil
}

func (s *UserService) create(ctx context.Context, input UserInput) (User, error) {
	normalized := normalizeUserInput(input)
	vErr := validateUserInput(normalized, true)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hash(normalized.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:          s.idGenerator(),
		Email:       normalized.Email,
		DisplayName: normalized.DisplayName,
		IsAdmin:     normalized.IsAdmin,
		CreatedAt:   s.now(),
	}
	user.UpdatedAt = user.CreatedAt

	if s.users == nil {
		return user, nil
	}

	persisted, err := s.users.CreateUser(ctx, user, hash)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return persisted, nil
}

// UpdateUser validates input and updates an existing user for administrators.
// A blank password keeps the current one.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	normalized := normalizeUserInput(params.Input)
	vErr := validateUserInput(normalized, false)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	if normalized.Password != "" {
		if hash, err = s.hash(normalized.Password); err != nil {
			err = fmt.Errorf("hash password: %w", err)
			return
		}
	}

	updated := existing
	updated.Email = normalized.Email
	updated.DisplayName = normalized.DisplayName
	updated.IsAdmin = normalized.IsAdmin
	updated.UpdatedAt = s.now()

	user, err = s.users.UpdateUser(ctx, updated, hash)
	if err != nil {
		err = mapUserRepoError(err)
		user = User{}
	}
	return
}

// DeleteUser removes a user when requested by an administrator. Administrators
// cannot delete their own account.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}

	logger := s.loggerWith(ctx, "DeleteUser", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user deleted")
	}()

	if !principal.IsAdmin {
		return ErrUnauthorized
	}
	if principal.UserID != "" && principal.UserID == userID {
		vErr := &ValidationError{}
		vErr.add("user_id", "cannot delete the signed-in account")
		return vErr
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	return mapUserRepoError(s.users.DeleteUser(ctx, userID))
}

// GetUser returns one account. Administrators may read any account; other
// staff only their own.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetUser", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to get user", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if !principal.IsAdmin && (principal.UserID == "" || principal.UserID != userID) {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	user, err = s.users.GetUser(ctx, userID)
	if err != nil {
		err = mapUserRepoError(err)
		user = User{}
	}
	return
}

// ListUsers returns all users for administrators ordered by email.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.loggerWith(ctx, "ListUsers").ErrorContext(ctx, "failed to list users", "error", err)
		return nil, err
	}

	out := make([]User, len(users))
	copy(out, users)

	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Email, out[j].Email) {
			return out[i].ID < out[j].ID
		}
		return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
	})

	return out, nil
}

func normalizeUserInput(input UserInput) UserInput {
	email := strings.TrimSpace(input.Email)
	email = strings.ToLower(email)

	displayName := strings.TrimSpace(input.DisplayName)

	return UserInput{
		Email:       email,
		DisplayName: displayName,
		Password:    input.Password,
		IsAdmin:     input.IsAdmin,
	}
}

func validateUserInput(input UserInput, requirePassword bool) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if input.DisplayName == "" {
		vErr.add("display_name", "display name is required")
	}

	switch {
	case input.Password == "" && requirePassword:
		vErr.add("password", "password is required")
	case input.Password != "" && utf8.RuneCountInString(input.Password) < MinPasswordLength:
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	return vErr
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	return err
}
