package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

func TestUserRepository(t *testing.T) {
	t.Parallel()

	t.Run("create and fetch", func(t *testing.T) {
		t.Parallel()

		repo := openTestStorage(t).Users
		ctx := context.Background()
		user := persistence.User{
			ID:           "user1",
			Email:        " Test@Example.com ",
			DisplayName:  "Test User",
			PasswordHash: "hashed_password",
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}

		retrieved, err := repo.GetUser(ctx, "user1")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if retrieved.Email != "test@example.com" {
			t.Fatalf("expected normalized email, got %q", retrieved.Email)
		}
		if retrieved.DisplayName != "Test User" {
			t.Fatalf("expected display name 'Test User', got %q", retrieved.DisplayName)
		}
		if retrieved.CreatedAt.IsZero() {
			t.Fatal("expected created_at to be populated")
		}

		byEmail, err := repo.GetUserByEmail(ctx, "TEST@EXAMPLE.COM")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if byEmail.ID != "user1" {
			t.Fatalf("expected user1, got %s", byEmail.ID)
		}
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		t.Parallel()

		repo := openTestStorage(t).Users
		ctx := context.Background()
		if err := repo.CreateUser(ctx, persistence.User{ID: "u1", Email: "a@example.com", DisplayName: "A", PasswordHash: "h"}); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		err := repo.CreateUser(ctx, persistence.User{ID: "u2", Email: "a@example.com", DisplayName: "B", PasswordHash: "h"})
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("update list and delete", func(t *testing.T) {
		t.Parallel()

		storage := openTestStorage(t)
		repo := storage.Users
		ctx := context.Background()
		base := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

		for i, id := range []string{"user1", "user2"} {
			created := base.Add(time.Duration(i) * time.Minute)
			if err := repo.CreateUser(ctx, persistence.User{
				ID:           id,
				Email:        id + "@example.com",
				DisplayName:  id,
				PasswordHash: "hash",
				IsAdmin:      i == 1,
				CreatedAt:    created,
				UpdatedAt:    created,
			}); err != nil {
				t.Fatalf("CreateUser(%s) failed: %v", id, err)
			}
		}

		if err := repo.UpdateUser(ctx, persistence.User{ID: "user1", Email: "updated@example.com", DisplayName: "Updated", PasswordHash: "hash"}); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		updated, err := repo.GetUser(ctx, "user1")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if updated.DisplayName != "Updated" || updated.Email != "updated@example.com" {
			t.Fatalf("update not applied: %+v", updated)
		}

		users, err := repo.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) != 2 || users[0].ID != "user1" || !users[1].IsAdmin {
			t.Fatalf("unexpected users %+v", users)
		}

		if _, err := storage.Sessions.CreateSession(ctx, persistence.Session{
			ID:        "s1",
			UserID:    "user1",
			Token:     "tok",
			ExpiresAt: base.Add(time.Hour),
		}); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}

		if err := repo.DeleteUser(ctx, "user1"); err != nil {
			t.Fatalf("DeleteUser failed: %v", err)
		}
		if _, err := repo.GetUser(ctx, "user1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := storage.Sessions.GetSession(ctx, "tok"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected session to be removed, got %v", err)
		}
		if err := repo.DeleteUser(ctx, "user1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}
