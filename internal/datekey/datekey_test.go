package datekey_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedview/internal/datekey"
)

func TestFromISO(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"DatePrefix", "2024-03-01T10:00:00+08:00", "2024-03-01"},
		{"DateOnly", "2024-03-01", "2024-03-01"},
		{"UTCInstant", "2024-03-01T23:30:00.000Z", "2024-03-01"},
		{"RFC1123ConvertedToUTC", "Fri, 01 Mar 2024 23:30:00 -0500", "2024-03-02"},
		{"Empty", "", ""},
		{"Garbage", "not a date", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, datekey.FromISO(tt.in))
		})
	}
}

func TestFromISO_RoundTripsThroughParseUTC(t *testing.T) {
	instants := []time.Time{
		time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
		time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 12, 0, 0, 0, time.FixedZone("KST", 9*3600)),
	}
	for _, instant := range instants {
		key := datekey.FromISO(datekey.ISO(instant))
		assert.Equal(t, instant.UTC().Format("2006-01-02"), key)

		parsed, ok := datekey.ParseUTC(key)
		require.True(t, ok)
		assert.Equal(t, key, datekey.DayKeyUTC(parsed))
	}
}

func TestParseUTC_RejectsOutOfRange(t *testing.T) {
	for _, key := range []string{"2024-02-30", "2023-02-29", "2024-13-01", "2024-00-10", "2024-1-01", ""} {
		_, ok := datekey.ParseUTC(key)
		assert.False(t, ok, key)
	}

	leap, ok := datekey.ParseUTC("2024-02-29")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), leap)
}

func TestEventKeys(t *testing.T) {
	assert.Equal(t,
		[]string{"2024-03-01", "2024-03-02", "2024-03-03"},
		datekey.EventKeys("2024-03-01", "2024-03-03"),
	)
	assert.Equal(t, []string{"2024-03-05"}, datekey.EventKeys("2024-03-05T10:00:00Z", "2024-03-01T10:00:00Z"))
	assert.Equal(t, []string{"2024-03-05"}, datekey.EventKeys("2024-03-05T10:00:00Z", ""))
	assert.Empty(t, datekey.EventKeys("", "2024-03-05"))

	// A start that looks like a key but is not a real date cannot be expanded.
	assert.Equal(t, []string{"2024-02-30"}, datekey.EventKeys("2024-02-30T00:00:00Z", "2024-03-02"))

	// Crossing a leap day.
	assert.Equal(t,
		[]string{"2024-02-28", "2024-02-29", "2024-03-01"},
		datekey.EventKeys("2024-02-28T08:00:00Z", "2024-03-01T08:00:00Z"),
	)
}

func TestEventKeys_TruncatesAbsurdSpans(t *testing.T) {
	keys := datekey.EventKeys("2000-01-01", "2099-12-31")
	require.Len(t, keys, datekey.MaxSpanDays)
	assert.Equal(t, "2000-01-01", keys[0])
}

func TestWeekStart(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)

	// 2024-03-07 is a Thursday.
	got := datekey.WeekStart(time.Date(2024, 3, 7, 15, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, loc), got)

	// Monday maps to itself, Sunday to the previous Monday.
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, loc), datekey.WeekStart(time.Date(2024, 3, 4, 1, 0, 0, 0, loc)))
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, loc), datekey.WeekStart(time.Date(2024, 3, 10, 23, 0, 0, 0, loc)))

	// Crossing a year boundary.
	assert.Equal(t, time.Date(2024, 12, 30, 0, 0, 0, 0, loc), datekey.WeekStart(time.Date(2025, 1, 1, 0, 0, 0, 0, loc)))
}

func TestLocalKeysUseOwnLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	instant := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-02", datekey.DayKey(instant.In(loc)))
	assert.Equal(t, "2024-03-01", datekey.DayKeyUTC(instant.In(loc)))
	assert.Equal(t, "2024-03", datekey.MonthKey(instant.In(loc)))
}

func TestParseMonthKey(t *testing.T) {
	y, m, ok := datekey.ParseMonthKey("2024-02")
	require.True(t, ok)
	assert.Equal(t, 2024, y)
	assert.Equal(t, 2, m)

	for _, bad := range []string{"2024", "2024-13", "2024-00", "x-01", "2024-02-01"} {
		_, _, ok := datekey.ParseMonthKey(bad)
		assert.False(t, ok, bad)
	}
	assert.Equal(t, "2024-02", datekey.FormatMonthKey(2024, 2))
}

func TestEndOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := datekey.EndOfDay(time.Date(2024, 3, 1, 8, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 999000000, loc), got)
	assert.Equal(t, "2024-03-02T04:59:59.999Z", datekey.ISO(got))
}
