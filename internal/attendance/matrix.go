// Package attendance folds members, meeting sessions and recorded check-ins
// into a presence matrix with summary statistics.
package attendance

import (
	"math"
	"sort"
	"time"

	"github.com/example/club-crm/internal/recurrence"
)

// WindowDays is the trailing period covered by the matrix.
const WindowDays = 30

// RiskSessions is the number of most recent sessions a member must have
// missed to count as a retention risk.
const RiskSessions = 3

// Member is a roster entry.
type Member struct {
	ID       string
	Name     string
	JoinedAt time.Time
}

// Session is one meeting occurrence inside the window.
type Session struct {
	MeetingID string
	Title     string
	Date      time.Time
}

// CheckIn is a recorded presence.
type CheckIn struct {
	MemberID  string
	MeetingID string
	Date      time.Time
}

// Input carries everything Build folds over. Location decides calendar-date
// granularity and defaults to UTC.
type Input struct {
	Members  []Member
	Sessions []Session
	CheckIns []CheckIn
	Now      time.Time
	Location *time.Location
}

// Range is an inclusive time range.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Window returns the trailing attendance window ending at the close of
// today: from midnight WindowDays ago through 23:59:59.999999999 today.
func Window(now time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	end := time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), loc)
	start := time.Date(y, m, d-WindowDays, 0, 0, 0, 0, loc)
	return Range{Start: start, End: end}
}

// MatrixSession is a session column with its composite key.
type MatrixSession struct {
	Key       string
	MeetingID string
	Title     string
	Date      time.Time
	Day       string
}

// Row is the attendance of one member across every session.
type Row struct {
	MemberID string
	Name     string
	Records  map[string]bool
	Present  int
	Total    int
	Rate     int
}

// SessionRate is the turnout of one session.
type SessionRate struct {
	Session MatrixSession
	Present int
	Rate    int
}

// Cohort summarizes the join year whose members attended most on average.
type Cohort struct {
	Year            int
	AverageSessions float64
}

// Stats is the matrix summary.
type Stats struct {
	TotalMembers        int
	TotalSessions       int
	TotalPossible       int
	PresentCount        int
	AttendanceRate      float64
	ConsistentMembers   int
	TopSession          *SessionRate
	RetentionRisk       int
	Cohort              *Cohort
	RetentionWindowDays int

	// RetentionSessions is how many trailing sessions the retention risk
	// check looked at: RiskSessions, or fewer when the window holds fewer.
	RetentionSessions int
}

// Matrix is the folded result.
type Matrix struct {
	Window   Range
	Sessions []MatrixSession
	Rows     []Row
	Stats    Stats
}

// SessionKey identifies a session as "<meetingID>|<YYYY-MM-DD>".
func SessionKey(meetingID, day string) string {
	return meetingID + "|" + day
}

// Build computes the presence matrix. Sessions outside the window are
// dropped and duplicates of the same meeting and date collapse into one.
// A member is present for a session iff a check-in exists for the same
// member, meeting and calendar date.
func Build(in Input) Matrix {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	window := Window(in.Now, loc)
	dayOf := func(t time.Time) string {
		return t.In(loc).Format(recurrence.DateLayout)
	}

	sessions := make([]MatrixSession, 0, len(in.Sessions))
	seen := make(map[string]struct{}, len(in.Sessions))
	for _, session := range in.Sessions {
		if !window.Contains(session.Date) {
			continue
		}
		day := dayOf(session.Date)
		key := SessionKey(session.MeetingID, day)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sessions = append(sessions, MatrixSession{
			Key:       key,
			MeetingID: session.MeetingID,
			Title:     session.Title,
			Date:      session.Date,
			Day:       day,
		})
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Date.Before(sessions[j].Date)
	})

	present := make(map[string]struct{}, len(in.CheckIns))
	for _, checkIn := range in.CheckIns {
		present[checkIn.MemberID+"#"+SessionKey(checkIn.MeetingID, dayOf(checkIn.Date))] = struct{}{}
	}
	isPresent := func(memberID, sessionKey string) bool {
		_, ok := present[memberID+"#"+sessionKey]
		return ok
	}

	totalSessions := len(sessions)
	sessionPresent := make(map[string]int, totalSessions)
	rows := make([]Row, 0, len(in.Members))
	presentCount := 0
	consistent := 0

	for _, member := range in.Members {
		row := Row{
			MemberID: member.ID,
			Name:     member.Name,
			Records:  make(map[string]bool, totalSessions),
			Total:    totalSessions,
		}
		for _, session := range sessions {
			ok := isPresent(member.ID, session.Key)
			row.Records[session.Key] = ok
			if ok {
				row.Present++
				sessionPresent[session.Key]++
			}
		}
		row.Rate = percent(row.Present, totalSessions)
		if totalSessions > 0 && row.Present == totalSessions {
			consistent++
		}
		presentCount += row.Present
		rows = append(rows, row)
	}

	totalMembers := len(in.Members)
	totalPossible := totalMembers * totalSessions
	stats := Stats{
		TotalMembers:        totalMembers,
		TotalSessions:       totalSessions,
		TotalPossible:       totalPossible,
		PresentCount:        presentCount,
		ConsistentMembers:   consistent,
		RetentionSessions:   min(totalSessions, RiskSessions),
		RetentionWindowDays: WindowDays,
	}
	if totalPossible > 0 {
		stats.AttendanceRate = math.Round(float64(presentCount)/float64(totalPossible)*1000) / 10
	}

	for _, session := range sessions {
		rate := SessionRate{
			Session: session,
			Present: sessionPresent[session.Key],
			Rate:    percent(sessionPresent[session.Key], totalMembers),
		}
		if stats.TopSession == nil || rate.Rate > stats.TopSession.Rate {
			top := rate
			stats.TopSession = &top
		}
	}

	if totalSessions >= RiskSessions {
		recent := sessions[totalSessions-RiskSessions:]
		for _, member := range in.Members {
			absent := true
			for _, session := range recent {
				if isPresent(member.ID, session.Key) {
					absent = false
					break
				}
			}
			if absent {
				stats.RetentionRisk++
			}
		}
	}

	stats.Cohort = bestCohort(in.Members, rows, in.Now.In(loc).Year(), loc)

	return Matrix{
		Window:   window,
		Sessions: sessions,
		Rows:     rows,
		Stats:    stats,
	}
}

func bestCohort(members []Member, rows []Row, fallbackYear int, loc *time.Location) *Cohort {
	type tally struct {
		members int
		present int
	}
	tallies := make(map[int]*tally)
	for i, member := range members {
		year := fallbackYear
		if !member.JoinedAt.IsZero() {
			year = member.JoinedAt.In(loc).Year()
		}
		t, ok := tallies[year]
		if !ok {
			t = &tally{}
			tallies[year] = t
		}
		t.members++
		t.present += rows[i].Present
	}
	if len(tallies) == 0 {
		return nil
	}

	years := make([]int, 0, len(tallies))
	for year := range tallies {
		years = append(years, year)
	}
	sort.Ints(years)

	var best *Cohort
	for _, year := range years {
		t := tallies[year]
		avg := float64(t.present) / float64(t.members)
		if best == nil || avg > best.AverageSessions {
			best = &Cohort{Year: year, AverageSessions: avg}
		}
	}
	best.AverageSessions = math.Round(best.AverageSessions*10) / 10
	return best
}

func percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
