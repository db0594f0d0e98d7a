/*
Package factory provides JSON to Go shift pattern conversion.

PURPOSE:
  Converts JSON pattern sets into schedule.DefaultShiftPattern rows so
  default shift times can be configured without code changes. Admins
  import a set through POST /api/patterns/import; demo scenarios seed
  from the presets below.

JSON SCHEMA:
  {
    "patterns": [
      {
        "category": "weekday",
        "days": ["mon", "tue", "wed", "thu", "fri"],
        "shift_type": "day",
        "start": "09:00",
        "end": "18:00"
      },
      {
        "category": "holiday",
        "days": ["all"],
        "shift_type": "night",
        "start": "22:00",
        "end": "07:00"
      }
    ]
  }

  "days" accepts weekday names (sun..sat, full or short) and the groups
  "all", "weekdays" and "weekend". An end at or before start rolls over
  midnight.

SEE ALSO:
  - schedule/types.go: DefaultShiftPattern
  - schedule/generation.go: ResolvePattern
*/
package factory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PatternSetJSON is the JSON representation of a pattern set.
type PatternSetJSON struct {
	Patterns []PatternJSON `json:"patterns"`
}

// PatternJSON covers one shift type on one or more days of a category.
type PatternJSON struct {
	Category  string   `json:"category"`
	Days      []string `json:"days"`
	ShiftType string   `json:"shift_type"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
}

// =============================================================================
// PATTERN FACTORY
// =============================================================================

// PatternFactory converts JSON pattern sets to DefaultShiftPatterns.
type PatternFactory struct{}

func NewPatternFactory() *PatternFactory {
	return &PatternFactory{}
}

// ParsePatterns parses a JSON document into patterns.
func (f *PatternFactory) ParsePatterns(data []byte) ([]schedule.DefaultShiftPattern, error) {
	var set PatternSetJSON
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, &schedule.ValidationError{Field: "body", Message: fmt.Sprintf("failed to parse pattern JSON: %v", err)}
	}
	return f.FromJSON(set)
}

// FromJSON expands a set into one pattern per (category, day, shift type).
// A key listed twice is an error.
func (f *PatternFactory) FromJSON(set PatternSetJSON) ([]schedule.DefaultShiftPattern, error) {
	if len(set.Patterns) == 0 {
		return nil, &schedule.ValidationError{Field: "patterns", Message: "at least one pattern is required"}
	}

	type key struct {
		category  calendar.Category
		dow       time.Weekday
		shiftType schedule.ShiftType
	}
	seen := make(map[key]bool)

	var out []schedule.DefaultShiftPattern
	for i, pj := range set.Patterns {
		field := fmt.Sprintf("patterns[%d]", i)

		category := calendar.Category(strings.ToLower(strings.TrimSpace(pj.Category)))
		if !category.Valid() {
			return nil, &schedule.ValidationError{Field: field + ".category", Message: fmt.Sprintf("must be weekday or holiday, got %q", pj.Category)}
		}
		shiftType := schedule.ShiftType(strings.ToLower(strings.TrimSpace(pj.ShiftType)))
		if !shiftType.Valid() {
			return nil, &schedule.ValidationError{Field: field + ".shift_type", Message: fmt.Sprintf("must be day or night, got %q", pj.ShiftType)}
		}
		start, err := calendar.ParseClock(pj.Start)
		if err != nil {
			return nil, &schedule.ValidationError{Field: field + ".start", Message: err.Error()}
		}
		end, err := calendar.ParseClock(pj.End)
		if err != nil {
			return nil, &schedule.ValidationError{Field: field + ".end", Message: err.Error()}
		}
		if start == end {
			return nil, &schedule.ValidationError{Field: field + ".end", Message: "must differ from start"}
		}
		days, err := parseDays(pj.Days)
		if err != nil {
			return nil, &schedule.ValidationError{Field: field + ".days", Message: err.Error()}
		}

		for _, dow := range days {
			k := key{category, dow, shiftType}
			if seen[k] {
				return nil, &schedule.ValidationError{
					Field:   field,
					Message: fmt.Sprintf("%s %s %s is defined twice", category, strings.ToLower(dow.String()), shiftType),
				}
			}
			seen[k] = true
			out = append(out, schedule.DefaultShiftPattern{
				Category:  category,
				DayOfWeek: dow,
				ShiftType: shiftType,
				Start:     start,
				End:       end,
			})
		}
	}
	return out, nil
}

// ToJSON folds patterns back into a set, grouping days that share a
// category, shift type and times.
func (f *PatternFactory) ToJSON(patterns []schedule.DefaultShiftPattern) PatternSetJSON {
	groups := make(map[string]*PatternJSON)
	var keys []string

	sorted := append([]schedule.DefaultShiftPattern(nil), patterns...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DayOfWeek < sorted[j].DayOfWeek })

	for _, p := range sorted {
		k := fmt.Sprintf("%s|%s|%s|%s", p.Category, p.ShiftType, p.Start, p.End)
		g, ok := groups[k]
		if !ok {
			g = &PatternJSON{
				Category:  string(p.Category),
				ShiftType: string(p.ShiftType),
				Start:     p.Start.String()[:5],
				End:       p.End.String()[:5],
			}
			groups[k] = g
			keys = append(keys, k)
		}
		g.Days = append(g.Days, dayNames[p.DayOfWeek])
	}

	set := PatternSetJSON{}
	for _, k := range keys {
		set.Patterns = append(set.Patterns, *groups[k])
	}
	return set
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

var dayNames = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

func parseDays(raw []string) ([]time.Weekday, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("at least one day is required")
	}
	set := make(map[time.Weekday]bool)
	for _, r := range raw {
		name := strings.ToLower(strings.TrimSpace(r))
		switch name {
		case "all":
			for d := time.Sunday; d <= time.Saturday; d++ {
				set[d] = true
			}
			continue
		case "weekdays":
			for d := time.Monday; d <= time.Friday; d++ {
				set[d] = true
			}
			continue
		case "weekend":
			set[time.Saturday], set[time.Sunday] = true, true
			continue
		}

		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			if name == dayNames[d] || name == strings.ToLower(d.String()) {
				set[d], found = true, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown day %q", r)
		}
	}

	days := make([]time.Weekday, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// =============================================================================
// PRESETS
// =============================================================================

// StandardPatternsJSON is a 09:00-18:00 day and 22:00-07:00 night pattern
// on every day, with shorter day shifts on holidays.
func StandardPatternsJSON() string {
	return `{
  "patterns": [
    {"category": "weekday", "days": ["all"], "shift_type": "day",   "start": "09:00", "end": "18:00"},
    {"category": "weekday", "days": ["all"], "shift_type": "night", "start": "22:00", "end": "07:00"},
    {"category": "holiday", "days": ["all"], "shift_type": "day",   "start": "10:00", "end": "16:00"},
    {"category": "holiday", "days": ["all"], "shift_type": "night", "start": "22:00", "end": "07:00"}
  ]
}`
}

// OfficeHoursPatternsJSON covers day shifts on working days only.
func OfficeHoursPatternsJSON() string {
	return `{
  "patterns": [
    {"category": "weekday", "days": ["weekdays"], "shift_type": "day", "start": "08:30", "end": "17:30"}
  ]
}`
}
