package core

import (
	"strings"
	"time"
)

// MonthNames is the ledger's month table, in Uzbek (Latin script).
// Index 0 is January.
var MonthNames = [12]string{
	"Yanvar", "Fevral", "Mart", "Aprel", "May", "Iyun",
	"Iyul", "Avgust", "Sentabr", "Oktabr", "Noyabr", "Dekabr",
}

var monthIndex = func() map[string]time.Month {
	m := make(map[string]time.Month, len(MonthNames))
	for i, name := range MonthNames {
		m[strings.ToLower(name)] = time.Month(i + 1)
	}
	return m
}()

// LookupMonth resolves a month name case-insensitively.
func LookupMonth(name string) (time.Month, bool) {
	m, ok := monthIndex[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// MonthName returns the display name for m, or "" when m is out of range.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return MonthNames[m-1]
}

// DayBounds returns the first and last instant of t's UTC calendar day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// MonthBounds returns the first and last instant of the given month in UTC.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}
