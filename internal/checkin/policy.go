package checkin

import (
	"time"

	"github.com/example/club-crm/internal/recurrence"
)

const (
	// DefaultLookaheadDays bounds how far ahead tokens are generated.
	DefaultLookaheadDays = 30
	// DefaultRetentionDays bounds how long past tokens are kept.
	DefaultRetentionDays = 30
)

// Policy decides when check-in tokens are generated and when they expire.
// The two windows are independent: Lookahead looks forward from today and
// Retention looks back from today.
type Policy struct {
	Lookahead int
	Retention int
	Location  *time.Location
}

// DefaultPolicy returns the 30 day generation and retention policy evaluated
// in loc (UTC when nil).
func DefaultPolicy(loc *time.Location) Policy {
	return Policy{Lookahead: DefaultLookaheadDays, Retention: DefaultRetentionDays, Location: loc}
}

// InGenerationWindow reports whether a token may be generated for date, i.e.
// today <= date <= today+Lookahead compared by calendar date.
func (p Policy) InGenerationWindow(date, now time.Time) bool {
	day := p.day(date)
	today := p.day(now)
	return !day.Before(today) && !day.After(today.AddDate(0, 0, p.Lookahead))
}

// Expired reports whether a token dated date falls before today-Retention.
func (p Policy) Expired(date, now time.Time) bool {
	return p.day(date).Before(p.day(now).AddDate(0, 0, -p.Retention))
}

// ExpiredKey applies Expired to a YYYY-MM-DD key. Unparseable keys count as
// expired so they are purged.
func (p Policy) ExpiredKey(date string, now time.Time) bool {
	day, err := time.ParseInLocation(recurrence.DateLayout, date, p.location())
	if err != nil {
		return true
	}
	return p.Expired(day, now)
}

// DateKey formats t as a calendar date in the policy location.
func (p Policy) DateKey(t time.Time) string {
	return t.In(p.location()).Format(recurrence.DateLayout)
}

func (p Policy) day(t time.Time) time.Time {
	loc := p.location()
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}
