package testfixtures

import (
	"testing"
	"time"
)

func TestClock(t *testing.T) {
	t.Parallel()

	t.Run("zero start uses the reference time", func(t *testing.T) {
		t.Parallel()

		if got := NewClock(time.Time{}).Now(); !got.Equal(ReferenceTime()) {
			t.Fatalf("expected ReferenceTime, got %v", got)
		}
	})

	t.Run("advance move and now func", func(t *testing.T) {
		t.Parallel()

		start := time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC)
		clock := NewClock(start)
		nowFn := clock.NowFunc()

		if got := clock.Advance(30 * time.Minute); !got.Equal(start.Add(30 * time.Minute)) {
			t.Fatalf("Advance returned %v", got)
		}
		if got := nowFn(); !got.Equal(clock.Now()) {
			t.Fatalf("expected NowFunc to track the clock, got %v", got)
		}

		clock.MoveTo(start)
		if got := clock.Now(); !got.Equal(start) {
			t.Fatalf("expected %v after MoveTo, got %v", start, got)
		}
	})

	t.Run("advance days keeps wall clock time", func(t *testing.T) {
		t.Parallel()

		start := time.Date(2024, time.February, 28, 18, 0, 0, 0, time.UTC)
		clock := NewClock(start)
		got := clock.AdvanceDays(2)
		if want := time.Date(2024, time.March, 1, 18, 0, 0, 0, time.UTC); !got.Equal(want) {
			t.Fatalf("expected %v across the leap day, got %v", want, got)
		}
		if got := clock.AdvanceDays(-1); !got.Equal(time.Date(2024, time.February, 29, 18, 0, 0, 0, time.UTC)) {
			t.Fatalf("expected to step back one day, got %v", got)
		}
	})
}
