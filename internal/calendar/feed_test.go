package calendar

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/example/club-crm/internal/checkin"
)

func TestFeed(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, time.January, 15, 18, 0, 0, 0, time.UTC)
	occurrences := []Occurrence{
		{
			MeetingID:   "m-1",
			Date:        start,
			Day:         "2024-01-15",
			Title:       "Weekly meetup",
			Duration:    "90 minutes",
			Location:    "Hall A",
			Description: "Agenda",
			Token:       &checkin.Token{Date: "2024-01-15", URL: "http://localhost:3000/attendance?meeting=m-1&date=2024-01-15"},
		},
		{MeetingID: "m-1", Date: start.AddDate(0, 0, 1), Day: "2024-01-16", Title: "Weekly meetup"},
	}

	out := Feed(occurrences, FeedOptions{Name: "Club meetings", Stamp: start})
	if !strings.Contains(out, "BEGIN:VCALENDAR") {
		t.Fatalf("expected calendar document, got %q", out)
	}

	cal, err := ics.ParseCalendar(strings.NewReader(out))
	if err != nil {
		t.Fatalf("failed to parse feed: %v", err)
	}
	events := cal.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	first := events[0]
	if got := first.Id(); got != "m-1|2024-01-15@club-crm" {
		t.Fatalf("unexpected uid %s", got)
	}
	if prop := first.GetProperty(ics.ComponentPropertySummary); prop == nil || prop.Value != "Weekly meetup" {
		t.Fatalf("unexpected summary %+v", prop)
	}
	end, err := first.GetEndAt()
	if err != nil {
		t.Fatalf("failed to read end: %v", err)
	}
	if !end.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("expected end %v, got %v", start.Add(90*time.Minute), end)
	}
	if prop := first.GetProperty(ics.ComponentPropertyUrl); prop == nil {
		t.Fatal("expected check-in url on event")
	}
}
