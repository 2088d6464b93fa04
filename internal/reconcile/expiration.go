package reconcile

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/compasscal/compass/internal/logging"
)

const (
	activeDeadlineDays = 14
	expiryBufferDays   = 3
	minutesPerDay      = 1440

	// Largest magnitude a millisecond timestamp may have and still be a date.
	maxEpochMillis = 8.64e15
)

// Clock reports the current time.
type Clock func() time.Time

// Calculator answers channel lifetime questions relative to its clock.
type Calculator struct {
	Now    Clock
	Logger *slog.Logger
}

// NewCalculator returns a Calculator on the wall clock. A nil logger discards.
func NewCalculator(logger *slog.Logger) *Calculator {
	return &Calculator{Now: time.Now, Logger: logging.OrDiscard(logger)}
}

func (c *Calculator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// ActiveSyncDeadline is the start of today minus the active window. Sync
// records not touched since then are stale.
func (c *Calculator) ActiveSyncDeadline() time.Time {
	now := c.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return today.AddDate(0, 0, -activeDeadlineDays)
}

// IsExpired treats a missing expiry as expired. A malformed one never is.
func (c *Calculator) IsExpired(expiry string) bool {
	if expiry == "" {
		return true
	}
	ms, ok := parseMillis(expiry)
	if !ok {
		return false
	}
	return c.now().UnixMilli() > ms
}

// ExpiresSoon reports whether expiry falls inside the look-ahead buffer.
// Malformed values report false.
func (c *Calculator) ExpiresSoon(expiry string) bool {
	ms, ok := parseMillis(expiry)
	if !ok {
		return false
	}
	deadline := c.now().Add(expiryBufferDays * minutesPerDay * time.Minute).UnixMilli()
	return ms < deadline
}

// ChannelExpiration returns now plus minutes as a millisecond epoch string,
// the format Google expects for a channel expiration.
func (c *Calculator) ChannelExpiration(minutes int) string {
	logging.OrDiscard(c.Logger).Debug(ExpirationReminder(minutes))
	ms := c.now().Add(time.Duration(minutes) * time.Minute).UnixMilli()
	return strconv.FormatInt(ms, 10)
}

// ExpirationReminder describes a channel lifetime in hours, or in days once
// it exceeds a day.
func ExpirationReminder(minutes int) string {
	hours := round2(float64(minutes) / 60)
	days := round2(hours / 24)

	label := formatNumber(hours) + " hours"
	if hours > 24 {
		label = formatNumber(days) + " days"
	}
	return fmt.Sprintf("REMINDER: Channel will expire in %d minutes (%s)", minutes, label)
}

func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseMillis reads the leading integer of s the way a lenient parser would:
// junk after the digits is ignored, a 0x prefix selects hex, and a string with
// no leading digits is malformed.
func parseMillis(s string) (int64, bool) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	base, isDigit := 10, isDecimal
	if i+1 < len(s) && s[i] == '0' && (s[i+1] == 'x' || s[i+1] == 'X') {
		base, isDigit = 16, isHex
		i += 2
	}
	digits := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == digits {
		return 0, false
	}
	v, err := strconv.ParseInt(s[digits:i], base, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	if math.Abs(float64(v)) > maxEpochMillis {
		return 0, false
	}
	return v, true
}

func isDecimal(b byte) bool { return b >= '0' && b <= '9' }

func isHex(b byte) bool {
	return isDecimal(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
