package recurrence

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for exception dates and token keys.
const DateLayout = "2006-01-02"

// ErrInvalidRepeatRule indicates the repeat rule is not supported.
var ErrInvalidRepeatRule = errors.New("recurrence: invalid repeat rule")

// ErrInvalidWeekday indicates a custom day entry could not be resolved.
var ErrInvalidWeekday = errors.New("recurrence: invalid weekday")

// ErrInvalidDate indicates a calendar date string could not be parsed.
var ErrInvalidDate = errors.New("recurrence: invalid calendar date")

// Definition describes the recurrence inputs of one meeting.
type Definition struct {
	MeetingID string
	// Anchor supplies the time of day for every occurrence. It is required for
	// RepeatNone and optional for recurring rules, which fall back to CreatedAt.
	Anchor     *time.Time
	Rule       RepeatRule
	CustomDays []string
	Exceptions []string
	CreatedAt  time.Time
}

// Options optionally clips generated dates to an inclusive range.
type Options struct {
	RangeStart *time.Time
	RangeEnd   *time.Time
}

// Engine expands meeting definitions into concrete occurrence dates.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that evaluates calendar dates in loc.
// If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// Location returns the zone used for calendar-date arithmetic.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// WindowEnd returns the last instant occurrences are generated for: twelve
// months after creation or three months after now, whichever is later.
func (e *Engine) WindowEnd(def Definition, now time.Time) time.Time {
	loc := e.Location()
	horizon := def.CreatedAt.In(loc).AddDate(0, 12, 0)
	lookahead := now.In(loc).AddDate(0, 3, 0)
	if lookahead.After(horizon) {
		return lookahead
	}
	return horizon
}

// Dates produces the ascending occurrence times of def.
//
// Recurring rules walk every calendar day from the anchor day (or the creation
// day) through the WindowEnd day inclusive. Days in Exceptions are skipped and
// every result carries the anchor's time of day. A RepeatNone definition yields
// its anchor, or nothing when the anchor is missing.
func (e *Engine) Dates(def Definition, now time.Time, opts Options) ([]time.Time, error) {
	loc := e.Location()

	rule := def.Rule
	if rule == "" {
		rule = RepeatNone
	}

	if rule == RepeatNone {
		if def.Anchor == nil || def.Anchor.IsZero() {
			return nil, nil
		}
		anchor := def.Anchor.In(loc)
		if !withinRange(anchor, opts, loc) {
			return nil, nil
		}
		return []time.Time{anchor}, nil
	}

	template := def.CreatedAt
	if def.Anchor != nil && !def.Anchor.IsZero() {
		template = *def.Anchor
	}
	template = template.In(loc)

	weekdaySet := make(map[time.Weekday]struct{}, len(def.CustomDays))
	for _, value := range def.CustomDays {
		if day, ok := ParseWeekday(value); ok {
			weekdaySet[day] = struct{}{}
		}
	}
	exceptions := ExceptionSet(def.Exceptions, loc)

	first := startOfDay(template, loc)
	last := startOfDay(e.WindowEnd(def, now), loc)
	if opts.RangeStart != nil {
		if lower := startOfDay(*opts.RangeStart, loc); lower.After(first) {
			first = lower
		}
	}
	if opts.RangeEnd != nil {
		if upper := startOfDay(*opts.RangeEnd, loc); upper.Before(last) {
			last = upper
		}
	}

	dates := make([]time.Time, 0)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		include, err := shouldInclude(rule, weekdaySet, day.Weekday())
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}
		if _, skip := exceptions[day.Format(DateLayout)]; skip {
			continue
		}

		occurrence := combineDateTime(day, template, loc)
		if !withinRange(occurrence, opts, loc) {
			continue
		}
		dates = append(dates, occurrence)
	}

	return dates, nil
}

// DateKey formats t as a calendar date in the engine location.
func (e *Engine) DateKey(t time.Time) string {
	return t.In(e.Location()).Format(DateLayout)
}

// ParseDate parses a calendar date or an RFC 3339 timestamp and returns the
// start of that day in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	trimmed := strings.TrimSpace(value)
	if t, err := time.ParseInLocation(DateLayout, trimmed, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return startOfDay(t, loc), nil
	}
	return time.Time{}, ErrInvalidDate
}

// ExceptionSet normalizes exception entries to calendar-date keys. Entries that
// cannot be parsed are ignored.
func ExceptionSet(values []string, loc *time.Location) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		day, err := ParseDate(value, loc)
		if err != nil {
			continue
		}
		set[day.Format(DateLayout)] = struct{}{}
	}
	return set
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func withinRange(t time.Time, opts Options, loc *time.Location) bool {
	if opts.RangeStart != nil && t.Before(opts.RangeStart.In(loc)) {
		return false
	}
	if opts.RangeEnd != nil && t.After(opts.RangeEnd.In(loc)) {
		return false
	}
	return true
}

func combineDateTime(dateSource, template time.Time, loc *time.Location) time.Time {
	y, m, d := dateSource.In(loc).Date()
	tpl := template.In(loc)
	return time.Date(y, m, d, tpl.Hour(), tpl.Minute(), tpl.Second(), tpl.Nanosecond(), loc)
}

func shouldInclude(rule RepeatRule, weekdaySet map[time.Weekday]struct{}, day time.Weekday) (bool, error) {
	switch rule {
	case RepeatEveryday:
		return true, nil
	case RepeatWeekdays:
		return day != time.Saturday && day != time.Sunday, nil
	case RepeatWeekends:
		return day == time.Saturday || day == time.Sunday, nil
	case RepeatCustom:
		_, ok := weekdaySet[day]
		return ok, nil
	default:
		return false, ErrInvalidRepeatRule
	}
}
