package calendar

import (
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// FeedOptions configures iCalendar serialization.
type FeedOptions struct {
	Name      string
	ProductID string
	Domain    string
	Stamp     time.Time
}

// Feed serializes occurrences as an iCalendar document. Each event UID is
// derived from the occurrence key so repeated exports stay stable.
func Feed(occurrences []Occurrence, opts FeedOptions) string {
	productID := opts.ProductID
	if productID == "" {
		productID = "-//club-crm//meetings//EN"
	}
	domain := opts.Domain
	if domain == "" {
		domain = "club-crm"
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if name := strings.TrimSpace(opts.Name); name != "" {
		cal.SetName(name)
	}

	for _, occurrence := range occurrences {
		event := cal.AddEvent(occurrence.Key().String() + "@" + domain)
		event.SetDtStampTime(stamp.UTC())
		event.SetStartAt(occurrence.Date.UTC())
		event.SetEndAt(occurrence.Date.Add(occurrence.Length()).UTC())
		event.SetSummary(occurrence.Title)
		if occurrence.Location != "" {
			event.SetLocation(occurrence.Location)
		}
		if occurrence.Description != "" {
			event.SetDescription(occurrence.Description)
		}
		if occurrence.Token != nil {
			event.SetURL(occurrence.Token.URL)
		}
	}

	return cal.Serialize()
}
