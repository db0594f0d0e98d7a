/*
errors.go - Error taxonomy for the scheduling engine

PURPOSE:
  Every failure a caller can act on maps to one sentinel, so transports can
  translate errors without knowing the operation that produced them.

CATEGORIES:
  ErrValidation          Malformed input, always recoverable by the caller
  ErrDeadline            Wrong mutation path for the date's window (carries a hint)
  ErrBalanceExhausted    Monthly leave quota used up
  ErrNotFound            Referenced user/shift/detail/application missing
  ErrConcurrencyConflict Lock or transaction contention; retried internally
  ErrAuthorization       Ownership or role failure

USAGE:
  if errors.Is(err, schedule.ErrDeadline) {
      var de *schedule.DeadlineError
      errors.As(err, &de)
      fmt.Println(de.Hint)
  }

SEE ALSO:
  - service.go: Bounded retry on ErrConcurrencyConflict
  - api/handlers.go: HTTP status mapping
*/
package schedule

import (
	"errors"
	"fmt"

	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or contradictory input.
	ErrValidation = errors.New("validation failed")

	// ErrDeadline is returned when a mutation uses the wrong path for the
	// date's deadline window, or targets a historical date.
	ErrDeadline = errors.New("deadline window violation")

	// ErrBalanceExhausted is returned when new leave would exceed the
	// monthly quota.
	ErrBalanceExhausted = errors.New("leave balance exhausted")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrencyConflict is returned on lock or transaction contention.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrAuthorization is returned when the actor may not perform the action.
	ErrAuthorization = errors.New("not authorized")
)

// Hints attached to DeadlineError.
const (
	HintImmediate   = "use immediate leave registration"
	HintApplication = "submit a leave application"
	HintHistorical  = "date is historical"
	HintFlagLocked  = "flag is locked for this date"
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// DeadlineError reports the window a date was classified into and which
// path the caller should use instead.
type DeadlineError struct {
	Date   calendar.Date
	Window Window
	Hint   string
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("deadline window violation on %s (%s): %s", e.Date, e.Window, e.Hint)
}

func (e *DeadlineError) Unwrap() error { return ErrDeadline }

// BalanceExhaustedError carries the quota state at rejection time.
type BalanceExhaustedError struct {
	UserID string
	Date   calendar.Date
	Limit  int
	Used   int
}

func (e *BalanceExhaustedError) Error() string {
	return fmt.Sprintf("leave balance exhausted for %s on %s: %d of %d used",
		e.UserID, e.Date, e.Used, e.Limit)
}

func (e *BalanceExhaustedError) Unwrap() error { return ErrBalanceExhausted }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// AuthorizationError names the actor and the refused action.
type AuthorizationError struct {
	ActorID string
	Action  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %s is not allowed to %s", e.ActorID, e.Action)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorization }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the caller can fix the request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDeadline) ||
		errors.Is(err, ErrBalanceExhausted) ||
		errors.Is(err, ErrAuthorization)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
