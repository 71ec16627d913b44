package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// INSTANTS - All dates are normalized to UTC
// =============================================================================

// Accepted ISO-8601 layouts for external date strings, tried in order.
// Values without a zone are read as UTC.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"20060102T150405Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant parses an ISO-8601 date or date-time into a UTC instant.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "date", Value: s, Err: ErrInvalidDate}
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "date", Value: s, Err: ErrInvalidDate}
}

// MustParseInstant is ParseInstant for tests and constants. Panics on bad input.
func MustParseInstant(s string) time.Time {
	t, err := ParseInstant(s)
	if err != nil {
		panic(fmt.Sprintf("generic: %v", err))
	}
	return t
}

// AddMonths advances t by n calendar months in UTC. A day-of-month that
// does not exist in the target month is clamped to its last day, so
// Jan 31 + 1 month is Feb 28 (or 29), never Mar 3.
func AddMonths(t time.Time, n int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()

	target := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// DaysBetween returns the number of whole days from 'from' to 'to'.
// Partial days are truncated toward zero; the result is negative when
// 'to' precedes 'from'. Works on whole seconds, so spans longer than a
// time.Duration can hold are still exact.
func DaysBetween(from, to time.Time) int {
	secs := to.Unix() - from.Unix()
	nsec := to.Nanosecond() - from.Nanosecond()
	switch {
	case secs > 0 && nsec < 0:
		secs--
	case secs < 0 && nsec > 0:
		secs++
	}
	return int(secs / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// FormatInstant renders an instant the way it appears in logs.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
