package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	storage := openTestStorage(t)
	ctx := context.Background()
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	if err := storage.Users.CreateUser(ctx, persistence.User{ID: "user1", Email: "u@example.com", DisplayName: "U", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	created, err := storage.Sessions.CreateSession(ctx, persistence.Session{
		ID:          "session1",
		UserID:      "user1",
		Token:       " token-1 ",
		Fingerprint: "fp",
		ExpiresAt:   now.Add(time.Hour),
		CreatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Token != "token-1" {
		t.Fatalf("expected trimmed token, got %q", created.Token)
	}

	if _, err := storage.Sessions.CreateSession(ctx, persistence.Session{ID: "orphan", UserID: "missing", Token: "t2", ExpiresAt: now}); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}

	created.ExpiresAt = now.Add(2 * time.Hour)
	created.UserID = "someone-else"
	updated, err := storage.Sessions.UpdateSession(ctx, created)
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if updated.UserID != "user1" || !updated.CreatedAt.Equal(now) {
		t.Fatalf("expected user and creation time to be preserved, got %+v", updated)
	}

	revoked, err := storage.Sessions.RevokeSession(ctx, "token-1", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("RevokeSession failed: %v", err)
	}
	if revoked.RevokedAt == nil || !revoked.RevokedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected revoked_at to be set, got %v", revoked.RevokedAt)
	}

	if err := storage.Sessions.DeleteExpiredSessions(ctx, now.Add(3*time.Hour)); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if _, err := storage.Sessions.GetSession(ctx, "token-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected expired session to be deleted, got %v", err)
	}
}
