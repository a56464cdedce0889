package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/club-crm/internal/persistence"
)

func TestMeetingRepository(t *testing.T) {
	t.Parallel()

	t.Run("round trips every column", func(t *testing.T) {
		t.Parallel()

		repo := openTestStorage(t).Meetings
		ctx := context.Background()
		date := time.Date(2024, time.May, 1, 18, 30, 0, 0, time.UTC)
		meeting := persistence.Meeting{
			ID:            "meeting-1",
			Title:         "Weekly Club",
			Notes:         strPtr("bring snacks"),
			Location:      strPtr("Hall"),
			Type:          "club_meeting",
			Date:          &date,
			Repeat:        "custom",
			CustomDays:    []string{"Mon", "Wed"},
			Exceptions:    []string{"2024-05-06"},
			Time:          strPtr("6:30 PM"),
			Duration:      strPtr("90 minutes"),
			Color:         strPtr("bg-red-500"),
			CheckInTokens: []byte(`[{"date":"2024-05-01"}]`),
		}
		if err := repo.CreateMeeting(ctx, meeting); err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}

		got, err := repo.GetMeeting(ctx, "meeting-1")
		if err != nil {
			t.Fatalf("GetMeeting failed: %v", err)
		}
		if got.Date == nil || !got.Date.Equal(date) {
			t.Fatalf("expected date %v, got %v", date, got.Date)
		}
		if len(got.CustomDays) != 2 || got.CustomDays[1] != "Wed" {
			t.Fatalf("unexpected custom days %v", got.CustomDays)
		}
		if len(got.Exceptions) != 1 || got.Exceptions[0] != "2024-05-06" {
			t.Fatalf("unexpected exceptions %v", got.Exceptions)
		}
		if string(got.CheckInTokens) != `[{"date":"2024-05-01"}]` {
			t.Fatalf("unexpected tokens %s", got.CheckInTokens)
		}
		if got.Time == nil || *got.Time != "6:30 PM" || got.Color == nil || *got.Color != "bg-red-500" {
			t.Fatalf("unexpected display fields %+v", got)
		}
	})

	t.Run("defaults and validation", func(t *testing.T) {
		t.Parallel()

		repo := openTestStorage(t).Meetings
		ctx := context.Background()
		if err := repo.CreateMeeting(ctx, persistence.Meeting{ID: "m1", Title: "Recurring", Type: "meeting"}); err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}
		got, err := repo.GetMeeting(ctx, "m1")
		if err != nil {
			t.Fatalf("GetMeeting failed: %v", err)
		}
		if got.Repeat != "none" || got.Date != nil || got.CustomDays != nil || string(got.CheckInTokens) != "[]" {
			t.Fatalf("unexpected defaults %+v", got)
		}

		if err := repo.CreateMeeting(ctx, persistence.Meeting{ID: "m2", Title: "Bad", Type: "meeting", Repeat: "monthly"}); !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
		if _, err := repo.GetMeeting(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("token updates touch only the cache", func(t *testing.T) {
		t.Parallel()

		repo := openTestStorage(t).Meetings
		ctx := context.Background()
		if err := repo.CreateMeeting(ctx, persistence.Meeting{ID: "m1", Title: "Club", Type: "meeting", Repeat: "everyday"}); err != nil {
			t.Fatalf("CreateMeeting failed: %v", err)
		}

		stamp := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
		if err := repo.UpdateMeetingTokens(ctx, "m1", []byte(`[{"date":"2024-06-01"}]`), stamp); err != nil {
			t.Fatalf("UpdateMeetingTokens failed: %v", err)
		}
		got, err := repo.GetMeeting(ctx, "m1")
		if err != nil {
			t.Fatalf("GetMeeting failed: %v", err)
		}
		if string(got.CheckInTokens) != `[{"date":"2024-06-01"}]` || !got.UpdatedAt.Equal(stamp) || got.Title != "Club" {
			t.Fatalf("unexpected meeting after token update %+v", got)
		}

		if err := repo.UpdateMeetingTokens(ctx, "missing", nil, stamp); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		t.Parallel()

		storage := openTestStorage(t)
		ctx := context.Background()
		seedAttendance(t, storage)

		meetings, err := storage.Meetings.ListMeetings(ctx)
		if err != nil {
			t.Fatalf("ListMeetings failed: %v", err)
		}
		if len(meetings) != 1 {
			t.Fatalf("expected 1 meeting, got %d", len(meetings))
		}

		if err := storage.Meetings.DeleteMeeting(ctx, "meeting-1"); err != nil {
			t.Fatalf("DeleteMeeting failed: %v", err)
		}
		count, err := storage.Attendance.CountAttendance(ctx)
		if err != nil {
			t.Fatalf("CountAttendance failed: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected attendance to be removed, got %d", count)
		}
	})
}
