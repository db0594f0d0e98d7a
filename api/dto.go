/*
dto.go - Request and response bodies for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients. Domain types from schedule are
  returned directly where their JSON tags already match the contract;
  the types here cover request bodies and composite responses.

NAMING CONVENTION:
  - *Request: request body types from clients
  - *Response / *DTO: response wrappers

DATES:
  Dates are naive local "YYYY-MM-DD" strings, clock times "HH:MM[:SS]"
  and date-times "YYYY-MM-DD HH:MM:SS". Parsing lives in calendar.

SEE ALSO:
  - handlers.go: Uses these types
  - calendar/date.go: JSON codecs for Date, ClockTime, DateTime
*/
package api

import (
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response. Field names the
// offending input on validation failures; Hint and Window tell the client
// which path to use instead on deadline failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Window  string `json:"window,omitempty"`
}

// =============================================================================
// USERS
// =============================================================================

// MeDTO describes the caller and this month's leave quota.
type MeDTO struct {
	User         schedule.User          `json:"user"`
	Today        calendar.Date          `json:"today"`
	DeadlineDays int                    `json:"deadline_days"`
	Remaining    *schedule.LeaveBalance `json:"remaining,omitempty"`
}

// SaveUserRequest upserts a user. ID comes from the URL.
type SaveUserRequest struct {
	Name              string              `json:"name"`
	MonthlyLeaveLimit int                 `json:"monthly_leave_limit"`
	Status            schedule.UserStatus `json:"status"`
	Role              schedule.Role       `json:"role"`
}

// =============================================================================
// SHIFTS & DETAILS
// =============================================================================

// ShiftRequest assigns a shift from the default pattern, or from explicit
// times when both start_time and end_time are set.
type ShiftRequest struct {
	UserID    string              `json:"user_id"`
	Date      calendar.Date       `json:"date"`
	ShiftType schedule.ShiftType  `json:"shift_type"`
	Start     *calendar.ClockTime `json:"start_time,omitempty"`
	End       *calendar.ClockTime `json:"end_time,omitempty"`
	Position  string              `json:"position,omitempty"`
}

func (r ShiftRequest) assignment() schedule.ShiftAssignment {
	return schedule.ShiftAssignment{
		UserID:    r.UserID,
		Date:      r.Date,
		ShiftType: r.ShiftType,
		Start:     r.Start,
		End:       r.End,
		Position:  r.Position,
	}
}

// MonthShiftsRequest is the complete set of shifts wanted for a month.
type MonthShiftsRequest struct {
	Shifts []ShiftRequest `json:"shifts"`
}

// FlagRequest sets one situational flag.
type FlagRequest struct {
	Value *bool `json:"value"`
}

// DetailRequest adds a shift detail.
type DetailRequest struct {
	UserID string                `json:"user_id"`
	Date   calendar.Date         `json:"date"`
	Type   schedule.DetailType   `json:"type"`
	Status schedule.DetailStatus `json:"status"`
	Start  *calendar.DateTime    `json:"start_time"`
	End    *calendar.DateTime    `json:"end_time"`
}

// DetailTimesRequest retimes an existing detail.
type DetailTimesRequest struct {
	Start *calendar.DateTime `json:"start_time"`
	End   *calendar.DateTime `json:"end_time"`
}

// =============================================================================
// LEAVE & APPLICATIONS
// =============================================================================

// LeaveRequest registers immediate leave. UserID defaults to the caller.
type LeaveRequest struct {
	UserID string        `json:"user_id"`
	Date   calendar.Date `json:"date"`
}

// ApplicationRequest files a leave application. UserID defaults to the
// caller and Type to "leave".
type ApplicationRequest struct {
	UserID string                   `json:"user_id"`
	Date   calendar.Date            `json:"date"`
	Type   schedule.ApplicationType `json:"type"`
	Reason string                   `json:"reason"`
}

// RejectRequest carries the reviewer's note.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// CALENDAR & SETTINGS
// =============================================================================

// HolidayRequest creates a holiday.
type HolidayRequest struct {
	Date      calendar.Date `json:"date"`
	Name      string        `json:"name"`
	Recurring bool          `json:"recurring"`
}

// HolidayImportResponse lists holidays stored from an iCalendar feed.
type HolidayImportResponse struct {
	Imported int                `json:"imported"`
	Holidays []calendar.Holiday `json:"holidays"`
}

// PatternImportResponse echoes the stored pattern set.
type PatternImportResponse struct {
	Imported int                    `json:"imported"`
	Patterns factory.PatternSetJSON `json:"patterns"`
}

// DeadlineDTO is apply_deadline_days. Zero disables the application window.
type DeadlineDTO struct {
	Days *int `json:"days"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse returns the seeded users with ready-made tokens.
type LoadScenarioResponse struct {
	Scenario ScenarioDTO       `json:"scenario"`
	Tokens   map[string]string `json:"tokens,omitempty"`
}
