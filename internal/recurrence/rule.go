package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// RepeatRule identifies which calendar days produce occurrences for a meeting.
type RepeatRule string

const (
	// RepeatNone marks a one-off meeting anchored to a single date.
	RepeatNone RepeatRule = "none"
	// RepeatEveryday produces an occurrence on every calendar day.
	RepeatEveryday RepeatRule = "everyday"
	// RepeatWeekdays produces occurrences Monday through Friday.
	RepeatWeekdays RepeatRule = "weekdays"
	// RepeatWeekends produces occurrences on Saturday and Sunday.
	RepeatWeekends RepeatRule = "weekends"
	// RepeatCustom produces occurrences on the selected weekdays only.
	RepeatCustom RepeatRule = "custom"
)

// ParseRepeatRule normalizes a stored or user supplied rule. An empty value is
// treated as RepeatNone.
func ParseRepeatRule(value string) (RepeatRule, error) {
	switch rule := RepeatRule(strings.ToLower(strings.TrimSpace(value))); rule {
	case "":
		return RepeatNone, nil
	case RepeatNone, RepeatEveryday, RepeatWeekdays, RepeatWeekends, RepeatCustom:
		return rule, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRepeatRule, value)
	}
}

// Recurring reports whether the rule expands to more than a single anchor date.
func (r RepeatRule) Recurring() bool {
	switch r {
	case RepeatEveryday, RepeatWeekdays, RepeatWeekends, RepeatCustom:
		return true
	}
	return false
}

var weekdayAbbreviations = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// WeekdayAbbreviation returns the three letter English abbreviation used in
// custom day lists.
func WeekdayAbbreviation(day time.Weekday) string {
	if day < time.Sunday || day > time.Saturday {
		return ""
	}
	return weekdayAbbreviations[day]
}

// ParseWeekday resolves a short or long weekday name. Matching is case
// insensitive and accepts any prefix of the long name of at least three letters.
func ParseWeekday(value string) (time.Weekday, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if len(v) < 3 {
		return time.Sunday, false
	}
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.HasPrefix(strings.ToLower(day.String()), v) {
			return day, true
		}
	}
	return time.Sunday, false
}

// NormalizeCustomDays converts a user supplied weekday list into canonical
// abbreviations ordered Sunday first, dropping duplicates.
func NormalizeCustomDays(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	var seen [7]bool
	for _, value := range values {
		day, ok := ParseWeekday(value)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWeekday, value)
		}
		seen[day] = true
	}
	out := make([]string, 0, len(values))
	for day, ok := range seen {
		if ok {
			out = append(out, weekdayAbbreviations[day])
		}
	}
	return out, nil
}
