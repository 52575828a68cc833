// Package bounds derives the navigable month range and the upcoming window
// from calendar metadata.
package bounds

import (
	"strings"
	"time"

	"schedview/internal/datekey"
	"schedview/internal/model"
)

// DefaultUpcomingYears is how far the upcoming window reaches when the
// calendar does not cap it.
const DefaultUpcomingYears = 1

// Month is a (year, month) pair ordered lexicographically.
type Month struct {
	Year  int
	Month int
}

// Before reports whether m sorts strictly before o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Key renders m as a month-key.
func (m Month) Key() string {
	return datekey.FormatMonthKey(m.Year, m.Month)
}

// MonthOf returns the month containing t in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: int(t.Month())}
}

// ParseMonth parses a month-key.
func ParseMonth(key string) (Month, bool) {
	y, m, ok := datekey.ParseMonthKey(key)
	if !ok {
		return Month{}, false
	}
	return Month{Year: y, Month: m}, true
}

// Range is an inclusive, ordered month range.
type Range struct {
	Min Month
	Max Month
}

// Single is the one-month range around m.
func Single(m Month) Range {
	return Range{Min: m, Max: m}
}

// Keys returns the range as month-keys.
func (r Range) Keys() (minKey, maxKey string) {
	return r.Min.Key(), r.Max.Key()
}

// Years lists every year touched by r in ascending order.
func (r Range) Years() []int {
	years := make([]int, 0, r.Max.Year-r.Min.Year+1)
	for y := r.Min.Year; y <= r.Max.Year; y++ {
		years = append(years, y)
	}
	return years
}

func ordered(a, b Month) Range {
	if b.Before(a) {
		return Range{Min: b, Max: a}
	}
	return Range{Min: a, Max: b}
}

// Resolve reads the navigable range from calendar metadata. With both ends
// present they are ordered; with one end the range collapses to that month;
// with neither (or no calendar) the fallback month is used.
func Resolve(cal *model.Calendar, fallback Month) Range {
	var minM, maxM Month
	var hasMin, hasMax bool
	if cal != nil {
		minM, hasMin = ParseMonth(cal.MinMonth)
		maxM, hasMax = ParseMonth(cal.MaxMonth)
	}
	switch {
	case hasMin && hasMax:
		return ordered(minM, maxM)
	case hasMin:
		return Single(minM)
	case hasMax:
		return Single(maxM)
	default:
		return Single(fallback)
	}
}

// FromKeys rebuilds a Range from stored month-keys, substituting fallback for
// an unparseable end and re-ordering if needed.
func FromKeys(minKey, maxKey string, fallback Month) Range {
	minM, ok := ParseMonth(minKey)
	if !ok {
		minM = fallback
	}
	maxM, ok := ParseMonth(maxKey)
	if !ok {
		maxM = fallback
	}
	return ordered(minM, maxM)
}

// Clamp snaps (year, month) into r.
func Clamp(year, month int, r Range) Month {
	m := Month{Year: year, Month: month}
	if m.Before(r.Min) {
		return r.Min
	}
	if r.Max.Before(m) {
		return r.Max
	}
	return m
}

// MonthsInYear returns the first and last selectable month of year within r.
func MonthsInYear(year int, r Range) (start, end int) {
	start, end = 1, 12
	if year == r.Min.Year {
		start = r.Min.Month
	}
	if year == r.Max.Year {
		end = r.Max.Month
	}
	if start > end {
		return r.Min.Month, r.Min.Month
	}
	return start, end
}

// Window is the forward-looking range of the upcoming list.
type Window struct {
	Start      time.Time
	End        time.Time
	StartLabel string
	EndLabel   string
}

// Label renders the window the way the list sub-heading shows it.
func (w Window) Label() string {
	return w.StartLabel + " 至 " + w.EndLabel
}

// UpcomingWindow computes the upcoming window beginning at start (local
// midnight in the display zone). A calendar RangeEndDate caps the window; a
// cap earlier than start collapses the window to start's own day.
func UpcomingWindow(cal *model.Calendar, start time.Time) Window {
	w := Window{Start: start, StartLabel: datekey.DayKey(start)}

	fallback := datekey.EndOfDay(start.AddDate(DefaultUpcomingYears, 0, 0))
	raw := ""
	if cal != nil {
		raw = strings.TrimSpace(cal.RangeEndDate)
	}
	parsed, ok := datekey.ParseUTC(raw)
	if raw == "" || !ok {
		w.End = fallback
		w.EndLabel = datekey.DayKey(fallback)
		return w
	}

	parsed = datekey.EndOfDay(parsed)
	if parsed.Before(start) {
		w.End = datekey.EndOfDay(start)
		w.EndLabel = w.StartLabel
		return w
	}
	w.End = parsed
	w.EndLabel = raw
	return w
}
