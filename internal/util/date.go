package util

import (
	"strings"
	"time"
)

// Spanish invoices default to day-first ordering; ISO is accepted for
// tabular sources that already export it.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2006-01-02",
	"02/01/06",
	"02-01-06",
}

// ParseDate parses a localized date string into a UTC date.
func ParseDate(input string) (time.Time, bool) {
	value := strings.TrimSpace(input)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func ParseDatePtr(input string) *time.Time {
	if t, ok := ParseDate(input); ok {
		return &t
	}
	return nil
}
