// Package datekey converts between calendar dates and the string keys the
// widget groups by: day-keys (YYYY-MM-DD) and month-keys (YYYY-MM).
//
// Functions named *UTC read UTC calendar fields and are independent of the
// process or display timezone. The others read the fields of the time value
// in its own location, which callers set to the configured display zone.
package datekey

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxSpanDays caps how many day-keys a single event may expand to.
// Spans longer than this (about two years) are silently truncated.
const MaxSpanDays = 740

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
	isoInstant  = "2006-01-02T15:04:05.000Z"
)

var dayKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// isoLayouts are tried, in order, when the text does not start with a day-key.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// DayKey formats t using the calendar fields of its own location.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// DayKeyUTC formats t using UTC calendar fields.
func DayKeyUTC(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// MonthKey formats t as YYYY-MM in its own location.
func MonthKey(t time.Time) string {
	return t.Format(monthLayout)
}

// FormatMonthKey renders a year/month pair as a month-key.
func FormatMonthKey(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// ISO renders an instant the way the event store expects query bounds.
func ISO(t time.Time) string {
	return t.UTC().Format(isoInstant)
}

// FromISO extracts the UTC day-key of an ISO timestamp. Text that already
// starts with YYYY-MM-DD is trusted as-is. Unparseable input yields "".
func FromISO(iso string) string {
	if len(iso) >= 10 {
		if head := iso[:10]; dayKeyPattern.MatchString(head) {
			return head
		}
	}
	t, ok := ParseISO(iso)
	if !ok {
		return ""
	}
	return DayKeyUTC(t)
}

// ParseISO parses a timestamp in any of the accepted ISO-like layouts.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseUTC parses a day-key as UTC midnight. The key must round-trip, so
// out-of-range values such as 2024-02-30 are rejected.
func ParseUTC(key string) (time.Time, bool) {
	return parseIn(key, time.UTC)
}

// ParseLocal parses a day-key as midnight in loc, with the same strictness
// as ParseUTC.
func ParseLocal(key string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	return parseIn(key, loc)
}

func parseIn(key string, loc *time.Location) (time.Time, bool) {
	if !dayKeyPattern.MatchString(key) {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(key[0:4])
	m, _ := strconv.Atoi(key[5:7])
	d, _ := strconv.Atoi(key[8:10])

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// ParseMonthKey splits a YYYY-MM key. Months outside 1..12 are rejected.
func ParseMonthKey(key string) (year, month int, ok bool) {
	parts := strings.Split(key, "-")
	if len(parts) != 2 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	return y, m, true
}

// EventKeys lists every UTC day-key an event covers, in order.
//
//   - no parseable start: no keys
//   - missing or unparseable end: the start day only
//   - end before start: the start day only
//   - spans longer than MaxSpanDays are truncated
func EventKeys(startAt, endAt string) []string {
	startKey := FromISO(startAt)
	if startKey == "" {
		return nil
	}
	endKey := FromISO(endAt)
	if endKey == "" {
		endKey = startKey
	}

	start, okStart := ParseUTC(startKey)
	end, okEnd := ParseUTC(endKey)
	if !okStart || !okEnd {
		return []string{startKey}
	}
	if end.Before(start) {
		end = start
	}

	keys := make([]string, 0, min(int(end.Sub(start).Hours()/24)+1, MaxSpanDays))
	for cursor := start; !cursor.After(end) && len(keys) < MaxSpanDays; cursor = cursor.AddDate(0, 0, 1) {
		keys = append(keys, DayKeyUTC(cursor))
	}
	if len(keys) == 0 {
		return []string{startKey}
	}
	return keys
}

// WeekStart returns local midnight of the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay pins t to 23:59:59.999 in its own location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// FirstOfMonth returns local midnight on the first day of t's month.
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
