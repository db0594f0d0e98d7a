package schedule

import (
	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// DEADLINE POLICY ENGINE
// =============================================================================

// Window is the outcome of classifying a target date.
type Window string

const (
	// WindowFree dates change immediately, without an application.
	WindowFree Window = "free"
	// WindowRequiresApplication dates change only through the workflow.
	WindowRequiresApplication Window = "requires_application"
)

// Classification is the single gate every mutation consults.
type Classification struct {
	Date         calendar.Date `json:"date"`
	Window       Window        `json:"window"`
	DaysUntil    int           `json:"days_until"`
	DeadlineDays int           `json:"deadline_days"`
}

// Classify places target relative to today. With deadlineDays == 0 every
// date is free; otherwise a date 0..deadlineDays days ahead requires an
// application. Past dates classify as free and report Past().
func Classify(today, target calendar.Date, deadlineDays int) Classification {
	c := Classification{
		Date:         target,
		Window:       WindowFree,
		DaysUntil:    calendar.DaysBetween(today, target),
		DeadlineDays: deadlineDays,
	}
	if deadlineDays > 0 && c.DaysUntil >= 0 && c.DaysUntil <= deadlineDays {
		c.Window = WindowRequiresApplication
	}
	return c
}

// Past reports that the target date is before today. Past dates are
// historical and every mutation path rejects them.
func (c Classification) Past() bool { return c.DaysUntil < 0 }

// RequiresApplication reports that changes must go through the
// application workflow.
func (c Classification) RequiresApplication() bool { return c.Window == WindowRequiresApplication }

// NoDeadline reports that no deadline is configured.
func (c Classification) NoDeadline() bool { return c.DeadlineDays == 0 }

func (c Classification) reject(hint string) error {
	return &DeadlineError{Date: c.Date, Window: c.Window, Hint: hint}
}

// immediateGate admits the immediate-leave path: future or today, free.
func (c Classification) immediateGate() error {
	switch {
	case c.Past():
		return c.reject(HintHistorical)
	case c.RequiresApplication():
		return c.reject(HintApplication)
	}
	return nil
}

// applicationGate admits the workflow path: inside the window.
func (c Classification) applicationGate() error {
	switch {
	case c.Past():
		return c.reject(HintHistorical)
	case !c.RequiresApplication():
		return c.reject(HintImmediate)
	}
	return nil
}
