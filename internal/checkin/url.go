package checkin

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/example/club-crm/internal/recurrence"
)

// Reference identifies a single occurrence addressed by a check-in code.
type Reference struct {
	MeetingID string
	Date      string
}

// BuildURL returns <baseURL>/attendance?meeting=<meetingID>&date=<date>.
func BuildURL(baseURL, meetingID, date string) (string, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if strings.TrimSpace(meetingID) == "" {
		return "", fmt.Errorf("%w: meeting id is required", ErrInvalidCode)
	}
	if !datePattern.MatchString(date) {
		return "", fmt.Errorf("%w: date %q", ErrInvalidCode, date)
	}

	base.Path = strings.TrimRight(base.Path, "/") + "/attendance"
	base.RawQuery = "meeting=" + url.QueryEscape(meetingID) + "&date=" + url.QueryEscape(date)
	base.Fragment = ""
	return base.String(), nil
}

// ParseURL extracts the meeting and date from a scanned check-in code. The
// code may be URI encoded and may carry the meeting under "meeting" or
// "meetingId".
func ParseURL(code string) (Reference, error) {
	raw := strings.TrimSpace(code)
	if raw == "" {
		return Reference{}, fmt.Errorf("%w: empty code", ErrInvalidCode)
	}

	ref, err := parseReference(raw)
	if err == nil {
		return ref, nil
	}
	if decoded, decodeErr := url.QueryUnescape(raw); decodeErr == nil && decoded != raw {
		if ref, err = parseReference(decoded); err == nil {
			return ref, nil
		}
	}
	return Reference{}, err
}

func parseReference(raw string) (Reference, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Reference{}, fmt.Errorf("%w: not an absolute url", ErrInvalidCode)
	}

	query := u.Query()
	meetingID := strings.TrimSpace(query.Get("meeting"))
	if meetingID == "" {
		meetingID = strings.TrimSpace(query.Get("meetingId"))
	}
	date := strings.TrimSpace(query.Get("date"))
	if meetingID == "" || date == "" {
		return Reference{}, fmt.Errorf("%w: missing meeting or date", ErrInvalidCode)
	}
	if _, err := time.Parse(recurrence.DateLayout, date); err != nil {
		return Reference{}, fmt.Errorf("%w: date %q", ErrInvalidCode, date)
	}
	return Reference{MeetingID: meetingID, Date: date}, nil
}
