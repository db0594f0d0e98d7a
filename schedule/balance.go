package schedule

import (
	"context"
	"fmt"

	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// LEAVE BALANCE - derived on every read, never stored
// =============================================================================

// LeaveBalance is a user's quota state for one monthly period.
type LeaveBalance struct {
	UserID    string         `json:"user_id"`
	Period    calendar.Range `json:"period"`
	Limit     int            `json:"limit"`
	Used      int            `json:"used"`
	Remaining *int           `json:"remaining"` // nil = unlimited
}

// Unlimited reports a zero monthly limit.
func (b LeaveBalance) Unlimited() bool { return b.Remaining == nil }

// Exhausted reports that no further chargeable leave may be created.
func (b LeaveBalance) Exhausted() bool { return b.Remaining != nil && *b.Remaining <= 0 }

// computeBalance counts leave markers in the month containing date,
// skipping weekends and holidays.
func computeBalance(ctx context.Context, repo Repository, user User, date calendar.Date) (LeaveBalance, error) {
	period := calendar.MonthRange(date)
	b := LeaveBalance{UserID: user.ID, Period: period, Limit: user.MonthlyLeaveLimit}

	dates, err := repo.LeaveDates(ctx, user.ID, period)
	if err != nil {
		return b, fmt.Errorf("load leave dates: %w", err)
	}
	for _, d := range dates {
		rest, err := calendar.IsRestDay(ctx, repo, d)
		if err != nil {
			return b, fmt.Errorf("holiday lookup: %w", err)
		}
		if !rest {
			b.Used++
		}
	}

	if user.MonthlyLeaveLimit > 0 {
		remaining := user.MonthlyLeaveLimit - b.Used
		b.Remaining = &remaining
	}
	return b, nil
}

// chargeable checks the quota for new leave on date. Rest days are never
// charged and always pass.
func chargeable(ctx context.Context, repo Repository, user User, date calendar.Date) (LeaveBalance, bool, error) {
	rest, err := calendar.IsRestDay(ctx, repo, date)
	if err != nil {
		return LeaveBalance{}, false, fmt.Errorf("holiday lookup: %w", err)
	}
	b, err := computeBalance(ctx, repo, user, date)
	if err != nil {
		return b, false, err
	}
	if !rest && b.Exhausted() {
		return b, false, &BalanceExhaustedError{UserID: user.ID, Date: date, Limit: b.Limit, Used: b.Used}
	}
	return b, !rest, nil
}
