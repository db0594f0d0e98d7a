package calendar_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/calendar"
)

func TestCategoryOf(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewStaticCalendar(
		calendar.Holiday{Date: calendar.MustParseDate("2025-01-01"), Name: "New Year", Recurring: true},
		calendar.Holiday{Date: calendar.MustParseDate("2025-06-11"), Name: "Company Day"},
	)

	cases := map[string]calendar.Category{
		"2025-06-10": calendar.CategoryWeekday, // Tuesday
		"2025-06-11": calendar.CategoryHoliday, // one-off holiday
		"2025-06-14": calendar.CategoryHoliday, // Saturday
		"2026-01-01": calendar.CategoryHoliday, // recurring
		"2026-06-11": calendar.CategoryWeekday, // one-off does not repeat
	}
	for in, want := range cases {
		got, err := calendar.CategoryOf(ctx, cal, calendar.MustParseDate(in))
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestIsRestDay_NilCalendarOnlyWeekends(t *testing.T) {
	rest, err := calendar.IsRestDay(context.Background(), nil, calendar.MustParseDate("2025-06-07"))
	require.NoError(t, err)
	assert.True(t, rest)

	rest, err = calendar.IsRestDay(context.Background(), nil, calendar.MustParseDate("2025-06-06"))
	require.NoError(t, err)
	assert.False(t, rest)
}

func TestInYear_ExpandsRecurring(t *testing.T) {
	holidays := []calendar.Holiday{
		{Date: calendar.MustParseDate("2020-12-25"), Name: "Christmas", Recurring: true},
		{Date: calendar.MustParseDate("2025-03-03"), Name: "Inventory"},
		{Date: calendar.MustParseDate("2024-03-03"), Name: "Old"},
	}

	got := calendar.InYear(holidays, 2025)
	require.Len(t, got, 2)
	assert.Equal(t, "2025-03-03", got[0].Date.String())
	assert.Equal(t, calendar.NewDate(2025, time.December, 25), got[1].Date)
}

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//holidays//EN
BEGIN:VEVENT
UID:newyear@test
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250101
DTEND;VALUE=DATE:20250102
RRULE:FREQ=YEARLY
SUMMARY:New Year
END:VEVENT
BEGIN:VEVENT
UID:golden@test
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250503
DTEND;VALUE=DATE:20250506
SUMMARY:Golden Week
END:VEVENT
BEGIN:VEVENT
UID:late@test
DTSTAMP:20250101T000000Z
DTSTART:20250814T233000Z
SUMMARY:Summer Closing
END:VEVENT
END:VCALENDAR
`

func TestParseICS(t *testing.T) {
	holidays, err := calendar.ParseICS(strings.NewReader(sampleICS))
	require.NoError(t, err)
	require.Len(t, holidays, 5)

	assert.Equal(t, "New Year", holidays[0].Name)
	assert.True(t, holidays[0].Recurring)

	var golden []string
	for _, h := range holidays {
		if h.Name == "Golden Week" {
			golden = append(golden, h.Date.String())
			assert.False(t, h.Recurring)
		}
	}
	assert.Equal(t, []string{"2025-05-03", "2025-05-04", "2025-05-05"}, golden)

	// The date is taken as written, with no zone shift.
	assert.Equal(t, "2025-08-14", holidays[4].Date.String())
}
