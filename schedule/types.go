/*
types.go - Core data model for shifts, details, applications and users

PURPOSE:
  Plain value types shared by the engine, the store and the HTTP layer.

KEY RELATIONSHIPS:
  User              external identity, mirrored locally for quota and role
  DefaultShiftPattern  (category, weekday, shift type) -> start/end clock
  Shift             one per (user, date); owns its ShiftDetails via ShiftID
  ShiftDetail       typed sub-interval; the unit monthly stats read
  ShiftApplication  leave request moving pending -> approved|rejected

LEAVE MARKER:
  Confirmed leave is a ShiftDetail of type break with status absent and no
  times. Ordinary breaks never use status absent.

SEE ALSO:
  - balance.go: Remaining leave derived from leave markers
  - store.go: Persistence contract
*/
package schedule

import (
	"time"

	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// USERS
// =============================================================================

type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserRetired UserStatus = "retired"
	UserShared  UserStatus = "shared"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserRetired || s == UserShared
}

type Role string

const (
	RoleMember     Role = "member"
	RoleSuperAdmin Role = "super_admin"
)

// User is the local projection of an external identity.
type User struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	MonthlyLeaveLimit int        `json:"monthly_leave_limit"` // 0 = unlimited
	Status            UserStatus `json:"status"`
	Role              Role       `json:"role"`
}

func (u User) IsSuperAdmin() bool { return u.Role == RoleSuperAdmin }

// =============================================================================
// PATTERNS & SHIFTS
// =============================================================================

type ShiftType string

const (
	ShiftDay   ShiftType = "day"
	ShiftNight ShiftType = "night"
)

func (t ShiftType) Valid() bool { return t == ShiftDay || t == ShiftNight }

// DefaultShiftPattern gives default start/end clock times for a
// (category, weekday, shift type) combination.
type DefaultShiftPattern struct {
	ID        string             `json:"id"`
	Category  calendar.Category  `json:"category"`
	DayOfWeek time.Weekday       `json:"day_of_week"`
	ShiftType ShiftType          `json:"shift_type"`
	Start     calendar.ClockTime `json:"start_time"`
	End       calendar.ClockTime `json:"end_time"`
}

// Span places the pattern on d. An end at or before the start rolls over
// to the following day.
func (p DefaultShiftPattern) Span(d calendar.Date) (start, end calendar.DateTime) {
	return overnightSpan(d, p.Start, p.End)
}

func overnightSpan(d calendar.Date, from, to calendar.ClockTime) (calendar.DateTime, calendar.DateTime) {
	start := d.At(from)
	end := d.At(to)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}

// Shift is a user's scheduled span for one date plus its situational flags.
type Shift struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Date       calendar.Date     `json:"date"`
	Start      calendar.DateTime `json:"start_time"`
	End        calendar.DateTime `json:"end_time"`
	StepOut    bool              `json:"step_out"`
	MealTicket bool              `json:"meal_ticket"`
	Position   string            `json:"position"`
}

// =============================================================================
// SHIFT DETAILS
// =============================================================================

type DetailType string

const (
	DetailWork   DetailType = "work"
	DetailBreak  DetailType = "break"
	DetailOuting DetailType = "outing"
)

func (t DetailType) Valid() bool {
	return t == DetailWork || t == DetailBreak || t == DetailOuting
}

type DetailStatus string

const (
	DetailScheduled DetailStatus = "scheduled"
	DetailActual    DetailStatus = "actual"
	DetailAbsent    DetailStatus = "absent"
)

func (s DetailStatus) Valid() bool {
	return s == DetailScheduled || s == DetailActual || s == DetailAbsent
}

// ShiftDetail is one typed sub-interval of a user's day.
type ShiftDetail struct {
	ID      string             `json:"id"`
	UserID  string             `json:"user_id"`
	ShiftID string             `json:"shift_id,omitempty"`
	Date    calendar.Date      `json:"date"`
	Type    DetailType         `json:"type"`
	Start   *calendar.DateTime `json:"start_time"`
	End     *calendar.DateTime `json:"end_time"`
	Status  DetailStatus       `json:"status"`
}

// IsLeaveMarker reports whether the detail records confirmed leave.
func (d ShiftDetail) IsLeaveMarker() bool {
	return d.Type == DetailBreak && d.Status == DetailAbsent
}

// Minutes is the detail's duration. Missing or inverted times count as zero.
func (d ShiftDetail) Minutes() int {
	if d.Start == nil || d.End == nil || !d.End.After(*d.Start) {
		return 0
	}
	return int(d.End.Sub(*d.Start) / time.Minute)
}

// =============================================================================
// APPLICATIONS
// =============================================================================

type ApplicationType string

const (
	ApplicationLeave ApplicationType = "leave"
)

func (t ApplicationType) Valid() bool { return t == ApplicationLeave }

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

func (s ApplicationStatus) Valid() bool {
	return s == ApplicationPending || s == ApplicationApproved || s == ApplicationRejected
}

// ShiftApplication is a leave request inside the deadline window.
type ShiftApplication struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Date       calendar.Date     `json:"date"`
	Type       ApplicationType   `json:"type"`
	Status     ApplicationStatus `json:"status"`
	Reason     string            `json:"reason"`
	ReviewerID string            `json:"reviewer_id,omitempty"`
	ReviewNote string            `json:"review_note,omitempty"`
	CreatedAt  calendar.DateTime `json:"created_at"`
	UpdatedAt  calendar.DateTime `json:"updated_at"`
}
