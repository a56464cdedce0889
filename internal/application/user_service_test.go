package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func plainHasher(password string) (string, error) {
	return "hashed:" + password, nil
}

func TestUserService_CreateUser(t *testing.T) {
	t.Parallel()

	admin := Principal{UserID: "admin", IsAdmin: true}
	now := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

	t.Run("requires administrator privileges", func(t *testing.T) {
		t.Parallel()

		svc := NewUserServiceWithLogger(newUserRepositoryStub(), plainHasher, nil, nil, nil)
		_, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: Principal{UserID: "staff"}, Input: UserInput{Email: "a@example.com", DisplayName: "A", Password: "longenough"}})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates input fields including email format", func(t *testing.T) {
		t.Parallel()

		svc := NewUserServiceWithLogger(newUserRepositoryStub(), plainHasher, nil, nil, nil)
		_, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: UserInput{Email: "nope", Password: "short"}})

		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"email", "display_name", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected %s error, got %#v", field, vErr.FieldErrors)
			}
		}

		_, err = svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: UserInput{Email: "a@example.com", DisplayName: "A"}})
		if !errors.As(err, &vErr) || !strings.Contains(vErr.FieldErrors["password"], "required") {
			t.Fatalf("expected password required error, got %v", err)
		}
	})

	t.Run("persists users with hashed passwords", func(t *testing.T) {
		t.Parallel()

		repo := newUserRepositoryStub()
		svc := NewUserServiceWithLogger(repo, plainHasher, sequenceIDs("user"), fixedNow(now), nil)

		user, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: UserInput{Email: " Staff@Example.com ", DisplayName: " Staff ", Password: "longenough"}})
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.ID != "user-1" || user.Email != "staff@example.com" || user.DisplayName != "Staff" {
			t.Fatalf("unexpected user %#v", user)
		}
		if repo.hashes["user-1"] != "hashed:longenough" {
			t.Fatalf("expected hashed password, got %q", repo.hashes["user-1"])
		}
	})

	t.Run("maps duplicate email violations to sentinel errors", func(t *testing.T) {
		t.Parallel()

		repo := newUserRepositoryStub(User{ID: "existing", Email: "staff@example.com"})
		svc := NewUserServiceWithLogger(repo, plainHasher, sequenceIDs("user"), nil, nil)

		_, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: UserInput{Email: "staff@example.com", DisplayName: "Staff", Password: "longenough"}})
		if !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("uses argon2id by default", func(t *testing.T) {
		t.Parallel()

		repo := newUserRepositoryStub()
		svc := NewUserService(repo, sequenceIDs("user"), fixedNow(now))

		if _, err := svc.CreateUser(context.Background(), CreateUserParams{Principal: admin, Input: UserInput{Email: "a@example.com", DisplayName: "A", Password: "longenough"}}); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		hash := repo.hashes["user-1"]
		if !strings.HasPrefix(hash, "$argon2id$") {
			t.Fatalf("expected argon2id hash, got %q", hash)
		}
		if err := VerifyPassword(hash, "longenough"); err != nil {
			t.Fatalf("expected stored hash to verify: %v", err)
		}
	})
}

func TestUserService_UpdateUser(t *testing.T) {
	t.Parallel()

	admin := Principal{UserID: "admin", IsAdmin: true}

	t.Run("requires administrator privileges", func(t *testing.T) {
		t.Parallel()

		svc := NewUserServiceWithLogger(newUserRepositoryStub(User{ID: "u-1"}), plainHasher, nil, nil, nil)
		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{Principal: Principal{UserID: "u-1"}, UserID: "u-1"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("keeps the password when none is given", func(t *testing.T) {
		t.Parallel()

		repo := newUserRepositoryStub(User{ID: "u-1", Email: "old@example.com", DisplayName: "Old"})
		svc := NewUserServiceWithLogger(repo, plainHasher, nil, nil, nil)

		user, err := svc.UpdateUser(context.Background(), UpdateUserParams{Principal: admin, UserID: "u-1", Input: UserInput{Email: "new@example.com", DisplayName: "New", IsAdmin: true}})
		if err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if user.Email != "new@example.com" || !user.IsAdmin {
			t.Fatalf("unexpected user %#v", user)
		}
		if repo.hashes["u-1"] != "seed-hash" {
			t.Fatalf("expected password to be kept, got %q", repo.hashes["u-1"])
		}

		if _, err := svc.UpdateUser(context.Background(), UpdateUserParams{Principal: admin, UserID: "u-1", Input: UserInput{Email: "new@example.com", DisplayName: "New", Password: "changed-pass"}}); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		if repo.hashes["u-1"] != "hashed:changed-pass" {
			t.Fatalf("expected password to change, got %q", repo.hashes["u-1"])
		}
	})

	t.Run("returns not found for unknown users", func(t *testing.T) {
		t.Parallel()

		svc := NewUserServiceWithLogger(newUserRepositoryStub(), plainHasher, nil, nil, nil)
		_, err := svc.UpdateUser(context.Background(), UpdateUserParams{Principal: admin, UserID: "missing", Input: UserInput{Email: "a@example.com", DisplayName: "A"}})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestUserService_DeleteUser(t *testing.T) {
	t.Parallel()

	repo := newUserRepositoryStub(User{ID: "admin"}, User{ID: "u-1"})
	svc := NewUserServiceWithLogger(repo, plainHasher, nil, nil, nil)
	admin := Principal{UserID: "admin", IsAdmin: true}

	if err := svc.DeleteUser(context.Background(), Principal{UserID: "u-1"}, "u-1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var vErr *ValidationError
	if err := svc.DeleteUser(context.Background(), admin, "admin"); !errors.As(err, &vErr) {
		t.Fatalf("expected self-deletion to be rejected, got %v", err)
	}
	if err := svc.DeleteUser(context.Background(), admin, "u-1"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if err := svc.DeleteUser(context.Background(), admin, "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_GetUser(t *testing.T) {
	t.Parallel()

	repo := newUserRepositoryStub(User{ID: "admin", IsAdmin: true}, User{ID: "u-1", Email: "staff@example.com"})
	svc := NewUserServiceWithLogger(repo, plainHasher, nil, nil, nil)
	ctx := context.Background()

	if _, err := svc.GetUser(ctx, Principal{UserID: "u-1"}, "admin"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected staff to be denied other accounts, got %v", err)
	}
	self, err := svc.GetUser(ctx, Principal{UserID: "u-1"}, "u-1")
	if err != nil || self.Email != "staff@example.com" {
		t.Fatalf("expected own account, got %#v, %v", self, err)
	}
	if _, err := svc.GetUser(ctx, Principal{UserID: "admin", IsAdmin: true}, "u-1"); err != nil {
		t.Fatalf("expected administrator read, got %v", err)
	}
	if _, err := svc.GetUser(ctx, Principal{UserID: "admin", IsAdmin: true}, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService_ListUsers(t *testing.T) {
	t.Parallel()

	repo := newUserRepositoryStub(
		User{ID: "u-2", Email: "b@example.com"},
		User{ID: "u-1", Email: "A@example.com"},
	)
	svc := NewUserServiceWithLogger(repo, plainHasher, nil, nil, nil)

	if _, err := svc.ListUsers(context.Background(), Principal{UserID: "u-1"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	users, err := svc.ListUsers(context.Background(), Principal{UserID: "admin", IsAdmin: true})
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].ID != "u-1" {
		t.Fatalf("expected case-insensitive email order, got %#v", users)
	}
}

func TestUserService_EnsureAdmin(t *testing.T) {
	t.Parallel()

	repo := newUserRepositoryStub()
	svc := NewUserServiceWithLogger(repo, plainHasher, sequenceIDs("user"), nil, nil)
	input := UserInput{Email: "Admin@Example.com", DisplayName: "Admin", Password: "bootstrap-pass"}

	created, err := svc.EnsureAdmin(context.Background(), input)
	if err != nil || !created {
		t.Fatalf("expected admin to be created, got %v (%v)", created, err)
	}
	if user := repo.users["user-1"]; !user.IsAdmin || user.Email != "admin@example.com" {
		t.Fatalf("unexpected admin %#v", user)
	}

	created, err = svc.EnsureAdmin(context.Background(), input)
	if err != nil || created {
		t.Fatalf("expected existing admin to be kept, got %v (%v)", created, err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected a single user, got %d", len(repo.users))
	}
}
