package models

import (
	"fmt"
	"time"
)

// TimestampLayout is the fixed-width UTC layout written to TEXT columns, so
// that lexical ordering in SQL matches chronological ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteLayout is what datetime('now') column defaults produce.
const sqliteLayout = "2006-01-02 15:04:05"

// clockLayout is the time-of-day form older clients stored in the time column.
const clockLayout = "15:04"

// FormatTimestamp encodes t for storage
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp decodes a stored timestamp written by this or an earlier client
func ParseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano, sqliteLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// ParseScheduledTime decodes the time column. Clock-only values ("18:30") are
// resolved against the UTC calendar day the task was created on.
func ParseScheduledTime(value string, createdAt time.Time) (time.Time, error) {
	if t, err := ParseTimestamp(value); err == nil {
		return t, nil
	}
	clock, err := time.Parse(clockLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized scheduled time %q", value)
	}
	day := createdAt.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC), nil
}
