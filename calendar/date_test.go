package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/calendar"
)

func TestParseDate_RoundTripsWithoutShift(t *testing.T) {
	d, err := calendar.ParseDate("2025-06-01")
	require.NoError(t, err)

	assert.Equal(t, calendar.Date{Year: 2025, Month: time.June, Day: 1}, d)
	assert.Equal(t, "2025-06-01", d.String())
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2025/06/01", "2025-13-01", "01-06-2025"} {
		_, err := calendar.ParseDate(s)
		assert.Error(t, err, s)
	}
}

func TestDateOf_UsesWallClockOfLocation(t *testing.T) {
	// 00:30 at +09:00 is June 1 locally and May 31 in UTC.
	tokyo := time.FixedZone("JST", 9*3600)
	instant := time.Date(2025, time.June, 1, 0, 30, 0, 0, tokyo)

	assert.Equal(t, calendar.NewDate(2025, time.June, 1), calendar.DateOf(instant))
}

func TestDaysBetween(t *testing.T) {
	today := calendar.MustParseDate("2025-06-01")

	assert.Equal(t, 0, calendar.DaysBetween(today, today))
	assert.Equal(t, 9, calendar.DaysBetween(today, calendar.MustParseDate("2025-06-10")))
	assert.Equal(t, 19, calendar.DaysBetween(today, calendar.MustParseDate("2025-06-20")))
	assert.Equal(t, -1, calendar.DaysBetween(today, calendar.MustParseDate("2025-05-31")))
	assert.Equal(t, 365, calendar.DaysBetween(today, calendar.MustParseDate("2026-06-01")))
}

func TestDate_MonthBoundaries(t *testing.T) {
	d := calendar.MustParseDate("2024-02-17")

	assert.Equal(t, "2024-02-01", d.StartOfMonth().String())
	assert.Equal(t, "2024-02-29", d.EndOfMonth().String())
	assert.Equal(t, "2024-02", d.MonthKey())

	r := calendar.MonthRange(d)
	assert.Len(t, r.Days(), 29)
	assert.True(t, r.Contains(d))
	assert.False(t, r.Contains(calendar.MustParseDate("2024-03-01")))
}

func TestDate_IsWeekend(t *testing.T) {
	assert.True(t, calendar.MustParseDate("2025-06-07").IsWeekend())  // Saturday
	assert.True(t, calendar.MustParseDate("2025-06-08").IsWeekend())  // Sunday
	assert.False(t, calendar.MustParseDate("2025-06-09").IsWeekend()) // Monday
}

func TestDate_JSON(t *testing.T) {
	var payload struct {
		Date calendar.Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-06-10"}`), &payload))
	assert.Equal(t, calendar.NewDate(2025, time.June, 10), payload.Date)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-06-10"}`, string(out))
}

func TestDateTime_OvernightSpan(t *testing.T) {
	start := calendar.MustParseDate("2025-06-01").At(calendar.MustParseClock("22:00"))
	end := calendar.MustParseDate("2025-06-02").At(calendar.MustParseClock("06:30"))

	assert.Equal(t, "2025-06-01 22:00:00", start.String())
	assert.Equal(t, 8*time.Hour+30*time.Minute, end.Sub(start))
	assert.Equal(t, calendar.MustParseDate("2025-06-01"), start.Date())
	assert.Equal(t, "06:30:00", end.Clock().String())
}

func TestParseDateTime_AcceptsTSeparator(t *testing.T) {
	dt, err := calendar.ParseDateTime("2025-06-01T09:15:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01 09:15:00", dt.String())

	_, err = calendar.ParseDateTime("2025-06-01T09:15:00Z")
	assert.Error(t, err)
}
