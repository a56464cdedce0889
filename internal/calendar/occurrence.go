package calendar

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/recurrence"
)

// DefaultDuration is the display duration used when a meeting has none.
const DefaultDuration = "1 hour"

// Meeting is the stored meeting definition consumed by the expander.
type Meeting struct {
	ID         string
	Title      string
	Notes      string
	Location   string
	Type       string
	Date       *time.Time
	Repeat     recurrence.RepeatRule
	CustomDays []string
	Exceptions []string
	Time       string
	Duration   string
	Color      string
	Tokens     []checkin.Token
	CreatedAt  time.Time
}

// Definition returns the recurrence inputs of the meeting.
func (m Meeting) Definition() recurrence.Definition {
	return recurrence.Definition{
		MeetingID:  m.ID,
		Anchor:     m.Date,
		Rule:       m.Repeat,
		CustomDays: m.CustomDays,
		Exceptions: m.Exceptions,
		CreatedAt:  m.CreatedAt,
	}
}

// Key addresses a single occurrence. Occurrences of a recurring meeting share
// the meeting id, so the calendar date is part of the key.
type Key struct {
	MeetingID string
	Date      string
}

// String renders the key as "<meetingID>|<YYYY-MM-DD>".
func (k Key) String() string {
	return k.MeetingID + "|" + k.Date
}

// Occurrence is one concrete calendar instance of a meeting.
type Occurrence struct {
	MeetingID   string
	Date        time.Time
	Day         string
	Title       string
	TimeLabel   string
	Duration    string
	Type        string
	Location    string
	Color       string
	Description string
	Repeat      recurrence.RepeatRule
	CustomDays  []string
	Token       *checkin.Token
}

// Key returns the composite identifier of the occurrence.
func (o Occurrence) Key() Key {
	return Key{MeetingID: o.MeetingID, Date: o.Day}
}

// Length parses the display duration into a time.Duration.
func (o Occurrence) Length() time.Duration {
	return ParseDurationLabel(o.Duration)
}

func newOccurrence(m Meeting, date time.Time, day string) Occurrence {
	timeLabel := strings.TrimSpace(m.Time)
	if timeLabel == "" {
		timeLabel = date.Format("3:04 PM")
	}
	duration := strings.TrimSpace(m.Duration)
	if duration == "" {
		duration = DefaultDuration
	}
	description := strings.TrimSpace(m.Notes)
	if description == "" {
		description = m.Title
	}
	color := strings.TrimSpace(m.Color)
	if color == "" {
		color = ColorForType(m.Type)
	}

	return Occurrence{
		MeetingID:   m.ID,
		Date:        date,
		Day:         day,
		Title:       m.Title,
		TimeLabel:   timeLabel,
		Duration:    duration,
		Type:        m.Type,
		Location:    m.Location,
		Color:       color,
		Description: description,
		Repeat:      m.Repeat,
		CustomDays:  append([]string(nil), m.CustomDays...),
	}
}

// ColorForType maps a meeting type to its calendar color class.
func ColorForType(meetingType string) string {
	switch strings.ToLower(strings.TrimSpace(meetingType)) {
	case "meeting", "club_meeting":
		return "bg-blue-500"
	case "event":
		return "bg-green-500"
	case "personal":
		return "bg-purple-500"
	case "task":
		return "bg-orange-500"
	case "reminder":
		return "bg-pink-500"
	default:
		return "bg-gray-500"
	}
}

// ParseDurationLabel understands labels such as "1 hour", "1.5 hours",
// "45 minutes", "90 min" and Go duration strings. Anything else is one hour.
func ParseDurationLabel(label string) time.Duration {
	trimmed := strings.ToLower(strings.TrimSpace(label))
	if trimmed == "" {
		return time.Hour
	}
	if d, err := time.ParseDuration(strings.ReplaceAll(trimmed, " ", "")); err == nil && d > 0 {
		return d
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 2 {
		return time.Hour
	}
	amount, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || amount <= 0 {
		return time.Hour
	}
	switch {
	case strings.HasPrefix(fields[1], "h"):
		return time.Duration(amount * float64(time.Hour))
	case strings.HasPrefix(fields[1], "m"):
		return time.Duration(amount * float64(time.Minute))
	}
	return time.Hour
}

// SortByDate orders occurrences by start time, then meeting id.
func SortByDate(occurrences []Occurrence) {
	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Date.Equal(occurrences[j].Date) {
			return occurrences[i].MeetingID < occurrences[j].MeetingID
		}
		return occurrences[i].Date.Before(occurrences[j].Date)
	})
}

// DateCounts returns the number of occurrences per calendar date.
func DateCounts(occurrences []Occurrence) map[string]int {
	counts := make(map[string]int)
	for _, occurrence := range occurrences {
		counts[occurrence.Day]++
	}
	return counts
}
