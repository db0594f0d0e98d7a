package calendar

import (
	"fmt"
	"io"
	"strings"

	ics "github.com/arran4/golang-ical"
)

// ParseICS reads holidays from an iCalendar feed. Each VEVENT becomes one
// holiday per covered day; a yearly RRULE marks it recurring. Date values
// are taken as written, without zone conversion.
func ParseICS(r io.Reader) ([]Holiday, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var out []Holiday
	for _, evt := range cal.Events() {
		name := "Holiday"
		if summary := evt.GetProperty(ics.ComponentPropertySummary); summary != nil && strings.TrimSpace(summary.Value) != "" {
			name = strings.TrimSpace(summary.Value)
		}

		startProp := evt.GetProperty(ics.ComponentPropertyDtStart)
		if startProp == nil {
			continue
		}
		start, err := icsDate(startProp.Value)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", name, err)
		}

		// DTEND on an all-day event is exclusive.
		end := start
		if endProp := evt.GetProperty(ics.ComponentPropertyDtEnd); endProp != nil && isDateOnly(endProp.Value) {
			if exclusive, err := icsDate(endProp.Value); err == nil && exclusive.After(start) {
				end = exclusive.AddDays(-1)
			}
		}

		recurring := false
		if rrule := evt.GetProperty(ics.ComponentPropertyRrule); rrule != nil {
			recurring = strings.Contains(strings.ToUpper(rrule.Value), "FREQ=YEARLY")
		}

		for d := start; !d.After(end); d = d.AddDays(1) {
			out = append(out, Holiday{Date: d, Name: name, Recurring: recurring})
		}
	}
	return out, nil
}

func isDateOnly(v string) bool {
	return len(strings.TrimSpace(v)) == 8
}

// icsDate takes the leading YYYYMMDD of a DATE or DATE-TIME value.
func icsDate(v string) (Date, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return Date{}, fmt.Errorf("invalid ics date %q", v)
	}
	d, err := ParseDate(v[0:4] + "-" + v[4:6] + "-" + v[6:8])
	if err != nil {
		return Date{}, fmt.Errorf("invalid ics date %q", v)
	}
	return d, nil
}
