package utils

import (
	"fmt"
	"strings"
	"time"
)

const DefaultDateFormat = "2006-01-02"

// AcceptedDateFormats are tried in order by ParseDate. Day-first is preferred
// over month-first for dashed dates.
var AcceptedDateFormats = []string{
	DefaultDateFormat,
	time.RFC3339,
	"2006/01/02",
	"02-01-2006",
	"01/02/2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// ParseDate parses a date string using the accepted upload formats. The
// result is midnight UTC of the calendar date as written; any time of day
// is dropped.
func ParseDate(dateStr string) (time.Time, error) {
	s := strings.TrimSpace(dateStr)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range AcceptedDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", dateStr)
}

// DaysBetween returns whole days from start to end, never negative.
func DaysBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}
