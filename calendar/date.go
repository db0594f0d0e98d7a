/*
date.go - Naive calendar dates and wall-clock times

PURPOSE:
  Every date and time handled by the engine is a local wall-clock value with
  no zone attached. Values are stored and transmitted as plain strings:

    Date      "2006-01-02"
    DateTime  "2006-01-02 15:04:05"
    ClockTime "15:04:05"

  Parsing and formatting never pass through a zone conversion, so a date
  written as 2025-06-01 is read back as 2025-06-01 on every host.

ARITHMETIC:
  Internally values are laid onto a fixed UTC frame purely so that the
  standard library can do day and duration arithmetic. The frame is never
  used to convert between zones.

SEE ALSO:
  - holidays.go: Weekend/holiday oracle built on Date
  - schedule/deadline.go: Day distance used by the deadline classifier
*/
package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
	ClockLayout    = "15:04:05"
	MonthLayout    = "2006-01"
)

// =============================================================================
// DATE
// =============================================================================

// Date is a calendar day without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date, normalizing overflow (e.g. June 31 becomes July 1).
func NewDate(year int, month time.Month, day int) Date {
	return fromFrame(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the wall-clock day of t in t's own location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return fromFrame(t), nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fromFrame(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) frame() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.frame().Format(DateLayout)
}

// MonthKey returns "YYYY-MM".
func (d Date) MonthKey() string { return d.frame().Format(MonthLayout) }

func (d Date) IsZero() bool              { return d == Date{} }
func (d Date) AddDays(n int) Date        { return fromFrame(d.frame().AddDate(0, 0, n)) }
func (d Date) Weekday() time.Weekday     { return d.frame().Weekday() }
func (d Date) Before(other Date) bool    { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool     { return d.Compare(other) > 0 }
func (d Date) StartOfMonth() Date        { return Date{Year: d.Year, Month: d.Month, Day: 1} }
func (d Date) EndOfMonth() Date          { return d.StartOfMonth().AddMonths(1).AddDays(-1) }
func (d Date) AddMonths(n int) Date      { return fromFrame(d.frame().AddDate(0, n, 0)) }
func (d Date) At(c ClockTime) DateTime   { return DateTime{t: d.frame().Add(c.Duration())} }

// IsWeekend reports Saturday or Sunday.
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return cmpInt(d.Year, other.Year)
	case d.Month != other.Month:
		return cmpInt(int(d.Month), int(other.Month))
	default:
		return cmpInt(d.Day, other.Day)
	}
}

// DaysBetween returns the whole number of days from one date to another.
// It is negative when to precedes from.
func DaysBetween(from, to Date) int {
	return int(to.frame().Sub(from.frame()).Hours() / 24)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// MONTH RANGE
// =============================================================================

// ParseMonth parses "YYYY-MM" and returns its first day.
func ParseMonth(s string) (Date, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return fromFrame(t), nil
}

// Range is an inclusive span of dates.
type Range struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// MonthRange returns the full month containing d.
func MonthRange(d Date) Range {
	return Range{From: d.StartOfMonth(), To: d.EndOfMonth()}
}

func (r Range) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}

// Days lists every date in the range in order.
func (r Range) Days() []Date {
	var out []Date
	for d := r.From; !d.After(r.To); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// Valid reports whether To is not before From.
func (r Range) Valid() bool { return !r.To.Before(r.From) }

// =============================================================================
// CLOCK TIME
// =============================================================================

// ClockTime is a time of day expressed as seconds past midnight.
type ClockTime int

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	layout := ClockLayout
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM[:SS]", s)
	}
	return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
}

func MustParseClock(s string) ClockTime {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) Duration() time.Duration { return time.Duration(c) * time.Second }

func (c ClockTime) String() string {
	s := int(c)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func (c ClockTime) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// =============================================================================
// DATE TIME
// =============================================================================

// DateTime is a wall-clock instant without a zone.
type DateTime struct {
	t time.Time
}

// ParseDateTime parses "YYYY-MM-DD HH:MM:SS". A "T" separator is accepted
// but any zone suffix is rejected.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.Replace(strings.TrimSpace(s), "T", " ", 1)
	t, err := time.Parse(DateTimeLayout, s)
	if err != nil {
		return DateTime{}, fmt.Errorf("invalid datetime %q: want YYYY-MM-DD HH:MM:SS", s)
	}
	return DateTime{t: t}, nil
}

func MustParseDateTime(s string) DateTime {
	dt, err := ParseDateTime(s)
	if err != nil {
		panic(err)
	}
	return dt
}

// DateTimeOf captures the wall clock of t in t's own location.
func DateTimeOf(t time.Time) DateTime {
	return DateTime{t: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)}
}

func (dt DateTime) IsZero() bool                   { return dt.t.IsZero() }
func (dt DateTime) Date() Date                     { return fromFrame(dt.t) }
func (dt DateTime) Add(d time.Duration) DateTime   { return DateTime{t: dt.t.Add(d)} }
func (dt DateTime) Sub(other DateTime) time.Duration { return dt.t.Sub(other.t) }
func (dt DateTime) Before(other DateTime) bool     { return dt.t.Before(other.t) }
func (dt DateTime) After(other DateTime) bool      { return dt.t.After(other.t) }
func (dt DateTime) Equal(other DateTime) bool      { return dt.t.Equal(other.t) }

// Clock returns the time-of-day part.
func (dt DateTime) Clock() ClockTime {
	return ClockTime(dt.t.Hour()*3600 + dt.t.Minute()*60 + dt.t.Second())
}

func (dt DateTime) String() string {
	if dt.IsZero() {
		return ""
	}
	return dt.t.Format(DateTimeLayout)
}

func (dt DateTime) MarshalJSON() ([]byte, error) {
	if dt.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(dt.String())
}

func (dt *DateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*dt = DateTime{}
		return nil
	}
	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}
