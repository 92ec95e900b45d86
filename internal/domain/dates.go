package domain

import (
	"strings"
	"time"
)

// Timestamp layouts seen in each export. Fractional seconds are accepted after
// any seconds field without being spelled out.
var (
	ServiceRequestLayouts = []string{
		"2006-01-02 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006",
		"2006-01-02",
	}
	CrimeLayouts = []string{
		"1/2/2006 3:04:05 PM",
		"1/2/2006 15:04",
		"1/2/2006",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	SpendingLayouts = []string{
		"January, 2 2006 15:04:05",
		"January, 2 2006",
		"1/2/2006 15:04",
		"1/2/2006",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// ParseTimestamp tries each layout in order and reports whether any matched.
func ParseTimestamp(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, nullSentinel) {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MondayIndex returns the weekday with Monday as 0 and Sunday as 6.
func MondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
