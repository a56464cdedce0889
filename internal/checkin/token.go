package checkin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	// ErrInvalidToken indicates a stored token failed validation.
	ErrInvalidToken = errors.New("checkin: invalid token")
	// ErrInvalidCode indicates a scanned check-in code could not be parsed.
	ErrInvalidCode = errors.New("checkin: invalid check-in code")
	// ErrInvalidBaseURL indicates the configured application URL is unusable.
	ErrInvalidBaseURL = errors.New("checkin: invalid base url")
	// ErrEncode indicates the token image could not be rendered.
	ErrEncode = errors.New("checkin: encode failed")
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Token is the per-date check-in artifact stored alongside a meeting.
type Token struct {
	Date  string `json:"date"`
	Image string `json:"image"`
	URL   string `json:"url"`
}

// Validate checks the token shape.
func (t Token) Validate() error {
	if !datePattern.MatchString(t.Date) {
		return fmt.Errorf("%w: date %q", ErrInvalidToken, t.Date)
	}
	if !strings.HasPrefix(t.Image, "data:image/") {
		return fmt.Errorf("%w: image must be a data url", ErrInvalidToken)
	}
	u, err := url.Parse(t.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: url %q", ErrInvalidToken, t.URL)
	}
	return nil
}

// Find returns the token stored for date, matched by exact date key.
func Find(tokens []Token, date string) (Token, bool) {
	for _, token := range tokens {
		if token.Date == date {
			return token, true
		}
	}
	return Token{}, false
}

// Upsert returns a copy of tokens with token replacing any entry for the same
// date, sorted by date.
func Upsert(tokens []Token, token Token) []Token {
	out := make([]Token, 0, len(tokens)+1)
	for _, existing := range tokens {
		if existing.Date != token.Date {
			out = append(out, existing)
		}
	}
	out = append(out, token)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Purge drops tokens the policy considers expired relative to now.
func Purge(tokens []Token, now time.Time, policy Policy) []Token {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]Token, 0, len(tokens))
	for _, token := range tokens {
		if policy.ExpiredKey(token.Date, now) {
			continue
		}
		out = append(out, token)
	}
	return out
}

// Equal reports whether two token lists hold the same entries in order.
func Equal(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DecodeTokens parses a stored token list. Empty or malformed payloads and
// lists with any invalid entry decode to nil, mirroring EncodeTokens.
func DecodeTokens(raw []byte) []Token {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var tokens []Token
	if err := json.Unmarshal(raw, &tokens); err != nil || len(tokens) == 0 {
		return nil
	}
	for _, token := range tokens {
		if token.Validate() != nil {
			return nil
		}
	}
	return tokens
}

// EncodeTokens serializes a token list for storage. A nil list encodes as [].
func EncodeTokens(tokens []Token) ([]byte, error) {
	if tokens == nil {
		tokens = []Token{}
	}
	return json.Marshal(tokens)
}
