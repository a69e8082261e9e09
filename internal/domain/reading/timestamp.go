package reading

import (
	"fmt"
	"strings"
	"time"
)

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseRecordedAt parses an RFC 3339 timestamp. Timestamps without an offset
// are rejected with ErrNaiveTimestamp instead of being guessed at.
func ParseRecordedAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	// RFC 3339 allows a space separator; encoding/json's layout does not.
	if t, err := time.Parse("2006-01-02 15:04:05.999999999Z07:00", s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrNaiveTimestamp, s)
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// AsUTC reinterprets the wall clock of t as UTC. Rows are always written in
// UTC, so this restores the zone for drivers that hand back a timestamp in
// time.Local or without any zone information.
func AsUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
