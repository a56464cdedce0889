package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/example/club-crm/internal/checkin"
	"github.com/example/club-crm/internal/recurrence"
)

// Result is the outcome of expanding one meeting.
type Result struct {
	Occurrences []Occurrence
	// Tokens is the purged and possibly extended token list to persist.
	Tokens []checkin.Token
	// Changed reports whether Tokens differs from the meeting's stored list.
	Changed bool
}

// Expander turns meeting definitions into occurrences with check-in tokens.
type Expander struct {
	engine *recurrence.Engine
	issuer *checkin.Issuer
}

// NewExpander wires the recurrence engine and token issuer.
func NewExpander(engine *recurrence.Engine, issuer *checkin.Issuer) *Expander {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	return &Expander{engine: engine, issuer: issuer}
}

// Engine exposes the recurrence engine used for date arithmetic.
func (e *Expander) Engine() *recurrence.Engine {
	return e.engine
}

// Issuer exposes the token issuer used for lazy generation.
func (e *Expander) Issuer() *checkin.Issuer {
	return e.issuer
}

// Expand produces the ascending occurrences of meeting through its window
// end. Existing tokens are reused by date, missing ones are issued inside the
// generation window, and expired ones are purged on every call. Token
// rendering failures leave the occurrence without a token.
func (e *Expander) Expand(ctx context.Context, meeting Meeting, now time.Time) (Result, error) {
	if e == nil {
		return Result{}, fmt.Errorf("Expander is nil")
	}

	dates, err := e.engine.Dates(meeting.Definition(), now, recurrence.Options{})
	if err != nil {
		return Result{}, fmt.Errorf("expand meeting %s: %w", meeting.ID, err)
	}

	tokens := append([]checkin.Token(nil), meeting.Tokens...)
	occurrences := make([]Occurrence, 0, len(dates))
	for _, date := range dates {
		day := e.engine.DateKey(date)
		occurrence := newOccurrence(meeting, date, day)

		if token, ok := checkin.Find(tokens, day); ok {
			occurrence.Token = &token
		} else if token, ok := e.issuer.Issue(ctx, meeting.ID, date, now); ok {
			tokens = checkin.Upsert(tokens, token)
			occurrence.Token = &token
		}

		occurrences = append(occurrences, occurrence)
	}

	tokens = checkin.Purge(tokens, now, e.issuer.Policy())

	return Result{
		Occurrences: occurrences,
		Tokens:      tokens,
		Changed:     !checkin.Equal(tokens, meeting.Tokens),
	}, nil
}
