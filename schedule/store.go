/*
store.go - Persistence contract for the scheduling engine

PURPOSE:
  Defines what the engine needs from storage. The sqlite package is the
  production implementation; every balance-affecting operation runs inside
  WithTx so the re-read of remaining leave and the marker write commit
  together.

CONVENTIONS:
  Get*   return a *NotFoundError when the record is missing
  Find*  return (nil, nil) when the record is missing
  Ranges with a zero From or To are unbounded on that side

SEE ALSO:
  - store/sqlite: SQLite implementation
  - service.go: Locking and retry around WithTx
*/
package schedule

import (
	"context"
	"time"

	"github.com/warp/shift-engine/calendar"
)

// SettingDeadlineDays is the runtime override for apply_deadline_days.
const SettingDeadlineDays = "apply_deadline_days"

// ShiftFilter selects shifts. An empty UserID means all users.
type ShiftFilter struct {
	UserID string
	Range  calendar.Range
}

// DetailFilter selects shift details. An empty UserID means all users.
type DetailFilter struct {
	UserID  string
	ShiftID string
	Range   calendar.Range
}

// ApplicationFilter selects applications. Zero fields don't filter.
type ApplicationFilter struct {
	UserID string
	Type   ApplicationType
	Status ApplicationStatus
	Range  calendar.Range
}

// Repository is the set of reads and writes available both inside and
// outside a transaction.
type Repository interface {
	calendar.HolidayCalendar

	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SaveUser(ctx context.Context, u User) error

	FindPattern(ctx context.Context, category calendar.Category, dow time.Weekday, shiftType ShiftType) (*DefaultShiftPattern, error)
	ListPatterns(ctx context.Context) ([]DefaultShiftPattern, error)
	SavePattern(ctx context.Context, p DefaultShiftPattern) error

	GetShift(ctx context.Context, id string) (*Shift, error)
	FindShift(ctx context.Context, userID string, date calendar.Date) (*Shift, error)
	ListShifts(ctx context.Context, f ShiftFilter) ([]Shift, error)
	SaveShift(ctx context.Context, s Shift) error
	// DeleteShift removes the shift and its details. Leave markers are
	// detached and kept.
	DeleteShift(ctx context.Context, id string) error

	GetShiftDetail(ctx context.Context, id string) (*ShiftDetail, error)
	ListShiftDetails(ctx context.Context, f DetailFilter) ([]ShiftDetail, error)
	SaveShiftDetail(ctx context.Context, d ShiftDetail) error
	DeleteShiftDetail(ctx context.Context, id string) error
	// LeaveDates returns the distinct dates holding a leave marker.
	LeaveDates(ctx context.Context, userID string, r calendar.Range) ([]calendar.Date, error)

	GetApplication(ctx context.Context, id string) (*ShiftApplication, error)
	ListApplications(ctx context.Context, f ApplicationFilter) ([]ShiftApplication, error)
	SaveApplication(ctx context.Context, a ShiftApplication) error
	DeleteApplication(ctx context.Context, id string) error

	GetSetting(ctx context.Context, key string) (string, bool, error)
	SaveSetting(ctx context.Context, key, value string) error
}

// Store is a Repository that can run a function atomically.
type Store interface {
	Repository
	WithTx(ctx context.Context, fn func(repo Repository) error) error
}
