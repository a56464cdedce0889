package testfixtures

import (
	"slices"
	"testing"
)

func TestIDGenerator(t *testing.T) {
	t.Parallel()

	t.Run("sequential and recorded", func(t *testing.T) {
		t.Parallel()

		gen := NewIDGenerator("member")
		next := gen.NextFunc()
		first, second := next(), gen.Next()
		if first != "member-1" || second != "member-2" {
			t.Fatalf("unexpected identifiers: %q, %q", first, second)
		}
		if got := gen.Issued(); !slices.Equal(got, []string{"member-1", "member-2"}) {
			t.Fatalf("unexpected issued list %v", got)
		}

		gen.Reset()
		if got := gen.Next(); got != "member-1" {
			t.Fatalf("expected member-1 after reset, got %q", got)
		}
	})

	t.Run("uuid form is reproducible", func(t *testing.T) {
		t.Parallel()

		a, b := NewUUIDGenerator("meeting"), NewUUIDGenerator("meeting")
		first := a.Next()
		if first != b.Next() {
			t.Fatal("expected identical UUIDs from identical generators")
		}
		if len(first) != 36 {
			t.Fatalf("expected canonical UUID form, got %q", first)
		}
		if a.Next() == first {
			t.Fatal("expected a new UUID after advancing")
		}
	})

	t.Run("nil generator", func(t *testing.T) {
		t.Parallel()

		var gen *IDGenerator
		if got := gen.NextFunc()(); got != "" {
			t.Fatalf("expected empty id, got %q", got)
		}
	})
}
