package application

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelsArePrefixed(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrUnauthorized,
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidCredentials,
		ErrAccountDisabled,
		ErrSessionExpired,
		ErrSessionRevoked,
		ErrAlreadyRecorded,
		ErrInvalidCheckInCode,
	}
	for _, err := range sentinels {
		if !strings.HasPrefix(err.Error(), "application: ") {
			t.Fatalf("expected application prefix, got %q", err.Error())
		}
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	t.Run("nil and empty errors", func(t *testing.T) {
		t.Parallel()

		var nilErr *ValidationError
		if nilErr.Error() != "" || nilErr.HasErrors() {
			t.Fatalf("expected nil validation error to be inert")
		}
		if got := (&ValidationError{}).Error(); got != "validation failed" {
			t.Fatalf("expected generic message, got %q", got)
		}
		if (&ValidationError{}).HasErrors() {
			t.Fatal("expected empty validation error to report no fields")
		}
	})

	t.Run("add and merge collect fields", func(t *testing.T) {
		t.Parallel()

		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		vErr.merge(&ValidationError{FieldErrors: map[string]string{"email": "email is invalid"}})
		vErr.merge(nil)

		if len(vErr.FieldErrors) != 2 || vErr.FieldErrors["email"] != "email is invalid" {
			t.Fatalf("unexpected fields %v", vErr.FieldErrors)
		}
		if !vErr.HasErrors() {
			t.Fatal("expected HasErrors after add")
		}
	})

	t.Run("survives wrapping", func(t *testing.T) {
		t.Parallel()

		wrapped := fmt.Errorf("create meeting: %w", &ValidationError{FieldErrors: map[string]string{"date": "date is required"}})
		var vErr *ValidationError
		if !errors.As(wrapped, &vErr) || vErr.FieldErrors["date"] == "" {
			t.Fatalf("expected wrapped validation error, got %v", wrapped)
		}
		if ErrorKind(wrapped) != "validation" {
			t.Fatalf("expected validation kind, got %q", ErrorKind(wrapped))
		}
	})
}
