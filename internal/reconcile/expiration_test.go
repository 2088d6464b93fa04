package reconcile

import (
	"strconv"
	"testing"
	"time"
)

func fixedCalc(now time.Time) *Calculator {
	return &Calculator{Now: func() time.Time { return now }}
}

func msString(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := fixedCalc(now)

	tests := []struct {
		name   string
		expiry string
		want   bool
	}{
		{"empty", "", true},
		{"past", msString(now.Add(-time.Minute)), true},
		{"future", msString(now.Add(time.Minute)), false},
		{"exactly now", msString(now), false},
		{"malformed", "soon", false},
		{"leading digits", msString(now.Add(-time.Hour)) + "ms", true},
		{"out of range", "9000000000000000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsExpired(tt.expiry); got != tt.want {
				t.Fatalf("IsExpired(%q) = %v, want %v", tt.expiry, got, tt.want)
			}
		})
	}
}

func TestExpiresSoon(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := fixedCalc(now)

	tests := []struct {
		name   string
		expiry string
		want   bool
	}{
		{"in one day", msString(now.Add(24 * time.Hour)), true},
		{"in ten days", msString(now.Add(240 * time.Hour)), false},
		{"already past", msString(now.Add(-time.Hour)), true},
		{"at buffer edge", msString(now.Add(72 * time.Hour)), false},
		{"just inside buffer", msString(now.Add(72*time.Hour - time.Millisecond)), true},
		{"empty", "", false},
		{"malformed", "tomorrow", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.ExpiresSoon(tt.expiry); got != tt.want {
				t.Fatalf("ExpiresSoon(%q) = %v, want %v", tt.expiry, got, tt.want)
			}
		})
	}
}

func TestActiveSyncDeadline(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	now := time.Date(2026, 3, 20, 17, 45, 12, 0, loc)
	got := fixedCalc(now).ActiveSyncDeadline()
	want := time.Date(2026, 3, 6, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("ActiveSyncDeadline = %v, want %v", got, want)
	}
}

func TestChannelExpiration(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got := fixedCalc(now).ChannelExpiration(90)
	want := msString(now.Add(90 * time.Minute))
	if got != want {
		t.Fatalf("ChannelExpiration(90) = %q, want %q", got, want)
	}
}

func TestExpirationReminder(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{60, "REMINDER: Channel will expire in 60 minutes (1 hours)"},
		{100, "REMINDER: Channel will expire in 100 minutes (1.67 hours)"},
		{1440, "REMINDER: Channel will expire in 1440 minutes (24 hours)"},
		{10080, "REMINDER: Channel will expire in 10080 minutes (7 days)"},
		{2000, "REMINDER: Channel will expire in 2000 minutes (1.39 days)"},
	}
	for _, tt := range tests {
		if got := ExpirationReminder(tt.minutes); got != tt.want {
			t.Errorf("ExpirationReminder(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestParseMillis(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{"1700000000000", 1700000000000, true},
		{"  42", 42, true},
		{"42abc", 42, true},
		{"-5", -5, true},
		{"abc", 0, false},
		{"", 0, false},
		{"+", 0, false},
		{"8640000000000000", 8640000000000000, true},
		{"8640000000000001", 0, false},
		{"0x1A", 26, true},
		{"-0X1az", -26, true},
		{"0x", 0, false},
		{"0", 0, true},
	}
	for _, tt := range tests {
		got, ok := parseMillis(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseMillis(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
