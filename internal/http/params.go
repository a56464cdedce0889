package http

import (
	"net/url"
	"strings"
	"time"

	"github.com/example/club-crm/internal/recurrence"
)

func ptr[T any](v T) *T {
	return &v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseDateParam accepts YYYY-MM-DD (start of day in loc) or RFC 3339.
// An absent parameter yields nil.
func parseDateParam(query url.Values, name string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(query.Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	t, err := recurrence.ParseDate(raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// endOfDayParam is parseDateParam with date-only values moved to the last
// instant of that day so ranges stay inclusive.
func endOfDayParam(query url.Values, name string, loc *time.Location) (*time.Time, error) {
	t, err := parseDateParam(query, name, loc)
	if err != nil || t == nil {
		return t, err
	}
	raw := strings.TrimSpace(query.Get(name))
	if _, rfcErr := time.Parse(time.RFC3339Nano, raw); rfcErr == nil {
		return t, nil
	}
	end := t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return &end, nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
