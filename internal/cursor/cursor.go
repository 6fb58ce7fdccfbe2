// Package cursor implements the (date, id) keyset-pagination cursor used
// by the message listing endpoints. Messages are returned newest first;
// a cursor names the last row the caller already has, so the next page
// is every row lexicographically less than (date, id).
package cursor

import (
	"fmt"
	"strings"
	"time"
)

// Cursor anchors a keyset-pagination page boundary.
type Cursor struct {
	Date time.Time
	ID   int64
}

// Less reports whether (d, id) sorts strictly before the cursor under
// the same lexicographic order used by the newest-first listing query:
// (date, id) < (c.Date, c.ID).
func (c Cursor) Less(d time.Time, id int64) bool {
	if d.Before(c.Date) {
		return true
	}
	if d.After(c.Date) {
		return false
	}
	return id < c.ID
}

// ParseBeforeDate parses the caller-supplied before_date query parameter.
// Per spec.md §4.8 it is ISO-8601 with an optional trailing "Z"; any
// timezone offset is stripped before use, matching the façade's cursor
// contract (messages are always compared in naive UTC).
func ParseBeforeDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty before_date")
	}
	// Strip a trailing Z or an explicit offset so parsing never attaches
	// a non-UTC location to the comparison value.
	trimmed := s
	if idx := strings.IndexAny(trimmed, "Zz"); idx == len(trimmed)-1 {
		trimmed = trimmed[:idx]
	} else if idx := strings.LastIndexAny(trimmed, "+-"); idx > 10 {
		trimmed = trimmed[:idx]
	}

	layouts := []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("malformed before_date %q", s)
}
