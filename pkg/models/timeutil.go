package models

import (
	"fmt"
	"time"
)

// FormatUTC renders a timestamp as RFC 3339 (nanosecond precision) in UTC
// with a trailing Z. All externally visible timestamps use this format.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseUTC parses an RFC 3339 timestamp and converts it to UTC. Explicit
// offsets are accepted and normalized; naive timestamps (no offset) fail to
// parse and are treated as a validation failure by callers.
func ParseUTC(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp must be RFC 3339 with offset: %w", err)
	}
	return t.UTC(), nil
}
