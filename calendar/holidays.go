package calendar

import (
	"context"
	"sort"
)

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// Holiday is a non-working day. Recurring holidays repeat on the same
// month and day every year.
type Holiday struct {
	ID        string `json:"id"`
	Date      Date   `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// Matches reports whether the holiday falls on d.
func (h Holiday) Matches(d Date) bool {
	if h.Recurring {
		return h.Date.Month == d.Month && h.Date.Day == d.Day
	}
	return h.Date == d
}

// HolidayCalendar answers "is this date a holiday".
type HolidayCalendar interface {
	IsHoliday(ctx context.Context, d Date) (bool, error)
}

// Category selects which DefaultShiftPattern family applies to a date.
type Category string

const (
	CategoryWeekday Category = "weekday"
	CategoryHoliday Category = "holiday"
)

func (c Category) Valid() bool {
	return c == CategoryWeekday || c == CategoryHoliday
}

// IsRestDay reports whether d is a weekend or a holiday. Leave on a rest
// day never consumes balance.
func IsRestDay(ctx context.Context, cal HolidayCalendar, d Date) (bool, error) {
	if d.IsWeekend() {
		return true, nil
	}
	if cal == nil {
		return false, nil
	}
	return cal.IsHoliday(ctx, d)
}

// CategoryOf returns holiday for weekends and holidays, weekday otherwise.
func CategoryOf(ctx context.Context, cal HolidayCalendar, d Date) (Category, error) {
	rest, err := IsRestDay(ctx, cal, d)
	if err != nil {
		return "", err
	}
	if rest {
		return CategoryHoliday, nil
	}
	return CategoryWeekday, nil
}

// =============================================================================
// STATIC CALENDAR
// =============================================================================

// StaticCalendar is an in-memory HolidayCalendar.
type StaticCalendar struct {
	holidays []Holiday
}

func NewStaticCalendar(holidays ...Holiday) *StaticCalendar {
	return &StaticCalendar{holidays: holidays}
}

func (s *StaticCalendar) IsHoliday(_ context.Context, d Date) (bool, error) {
	for _, h := range s.holidays {
		if h.Matches(d) {
			return true, nil
		}
	}
	return false, nil
}

// InYear expands recurring holidays onto the given year and returns all
// holidays of that year sorted by date.
func InYear(holidays []Holiday, year int) []Holiday {
	var out []Holiday
	for _, h := range holidays {
		switch {
		case h.Recurring:
			h.Date = NewDate(year, h.Date.Month, h.Date.Day)
			out = append(out, h)
		case h.Date.Year == year:
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
