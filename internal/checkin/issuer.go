package checkin

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/club-crm/internal/logging"
)

// Issuer generates check-in tokens on demand within the policy window.
type Issuer struct {
	policy  Policy
	encoder Encoder
	baseURL string
	logger  *slog.Logger
}

// NewIssuer constructs an Issuer. A nil logger falls back to slog.Default.
func NewIssuer(policy Policy, encoder Encoder, baseURL string, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{policy: policy, encoder: encoder, baseURL: baseURL, logger: logger}
}

// Policy returns the issuer's generation and retention policy.
func (i *Issuer) Policy() Policy {
	if i == nil {
		return DefaultPolicy(nil)
	}
	return i.policy
}

// Issue renders a token for the occurrence of meetingID on date. It reports
// false when date is outside the generation window or rendering fails; a
// failure never aborts the caller.
func (i *Issuer) Issue(ctx context.Context, meetingID string, date, now time.Time) (Token, bool) {
	if i == nil || i.encoder == nil {
		return Token{}, false
	}
	if !i.policy.InGenerationWindow(date, now) {
		return Token{}, false
	}

	key := i.policy.DateKey(date)
	logger := i.loggerFor(ctx).With("meeting_id", meetingID, "date", key)

	checkInURL, err := BuildURL(i.baseURL, meetingID, key)
	if err != nil {
		logger.WarnContext(ctx, "failed to build check-in url", "error", err)
		return Token{}, false
	}

	image, err := i.encoder.Encode(ctx, checkInURL)
	if err != nil {
		logger.WarnContext(ctx, "failed to encode check-in token", "error", err)
		return Token{}, false
	}

	return Token{Date: key, Image: image, URL: checkInURL}, true
}

func (i *Issuer) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return i.logger
}
