package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// SHIFT GENERATION
// =============================================================================

// ShiftAssignment asks for a shift on a date. Start and End override the
// default pattern when both are set.
type ShiftAssignment struct {
	UserID    string
	Date      calendar.Date
	ShiftType ShiftType
	Start     *calendar.ClockTime
	End       *calendar.ClockTime
	Position  string
}

// MonthResult summarizes a bulk month assignment.
type MonthResult struct {
	Created int     `json:"created"`
	Updated int     `json:"updated"`
	Deleted int     `json:"deleted"`
	Shifts  []Shift `json:"shifts"`
}

// ResolvePattern finds the default pattern for a date and shift type.
func ResolvePattern(ctx context.Context, repo Repository, date calendar.Date, shiftType ShiftType) (*DefaultShiftPattern, error) {
	category, err := calendar.CategoryOf(ctx, repo, date)
	if err != nil {
		return nil, fmt.Errorf("holiday lookup: %w", err)
	}
	p, err := repo.FindPattern(ctx, category, date.Weekday(), shiftType)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{
			Kind: "shift pattern",
			ID:   fmt.Sprintf("%s/%s/%s", category, strings.ToLower(date.Weekday().String()), shiftType),
		}
	}
	return p, nil
}

func (a ShiftAssignment) validate() error {
	switch {
	case a.UserID == "":
		return invalid("user_id", "is required")
	case a.Date.IsZero():
		return invalid("date", "is required")
	case !a.ShiftType.Valid():
		return invalid("shift_type", "must be day or night, got %q", a.ShiftType)
	case (a.Start == nil) != (a.End == nil):
		return invalid("start_time", "start and end overrides must be given together")
	}
	return nil
}

// AssignShift creates or updates the user's shift on a date. Owners may
// only do so in the free window; super admins may for any non-past date.
func (s *Service) AssignShift(ctx context.Context, actor User, a ShiftAssignment) (*Shift, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if err := authorize(actor, a.UserID, "assign shifts"); err != nil {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{"user_id": a.UserID, "date": a.Date.String(), "shift_type": a.ShiftType})

	var shift Shift
	err := s.mutate(ctx, []string{dateKey(a.UserID, a.Date)}, func(repo Repository) error {
		if _, err := s.loadUser(ctx, repo, a.UserID); err != nil {
			return err
		}
		c, err := s.classifyIn(ctx, repo, a.Date)
		if err != nil {
			return err
		}
		if err := editGate(actor, c); err != nil {
			return err
		}
		sh, _, err := s.applyAssignment(ctx, repo, a)
		if err != nil {
			return err
		}
		shift = *sh
		return nil
	})
	if err != nil {
		s.logFailure(entry, err, "shift assignment rejected")
		return nil, err
	}

	entry.WithField("shift_id", shift.ID).Info("shift assigned")
	return &shift, nil
}

// AssignMonth replaces a user's shifts for one month with the given set.
// Existing shifts missing from the set are deleted, present ones are
// updated in place and new ones are created. Past dates are left alone.
// The caller's slice is not modified.
func (s *Service) AssignMonth(ctx context.Context, actor User, userID string, month calendar.Date, assignments []ShiftAssignment) (*MonthResult, error) {
	if err := requireAdmin(actor, "edit monthly schedules"); err != nil {
		return nil, err
	}
	r := calendar.MonthRange(month)
	today := s.Today()

	assignments = append([]ShiftAssignment(nil), assignments...)
	wanted := make(map[calendar.Date]bool, len(assignments))
	for i := range assignments {
		a := &assignments[i]
		if a.UserID == "" {
			a.UserID = userID
		}
		if err := a.validate(); err != nil {
			return nil, err
		}
		switch {
		case a.UserID != userID:
			return nil, invalid("user_id", "assignment for %s in %s's month", a.UserID, userID)
		case !r.Contains(a.Date):
			return nil, invalid("date", "%s is outside %s", a.Date, month.MonthKey())
		case wanted[a.Date]:
			return nil, invalid("date", "%s is assigned twice", a.Date)
		case a.Date.Before(today):
			return nil, &DeadlineError{Date: a.Date, Window: WindowFree, Hint: HintHistorical}
		}
		wanted[a.Date] = true
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].Date.Before(assignments[j].Date) })

	var keys []string
	for _, d := range r.Days() {
		keys = append(keys, dateKey(userID, d))
	}
	entry := s.log.WithFields(logrus.Fields{"user_id": userID, "month": month.MonthKey()})

	var result MonthResult
	err := s.mutate(ctx, keys, func(repo Repository) error {
		result = MonthResult{}
		if _, err := s.loadUser(ctx, repo, userID); err != nil {
			return err
		}

		existing, err := repo.ListShifts(ctx, ShiftFilter{UserID: userID, Range: r})
		if err != nil {
			return err
		}
		for _, sh := range existing {
			if wanted[sh.Date] || sh.Date.Before(today) {
				continue
			}
			if err := repo.DeleteShift(ctx, sh.ID); err != nil {
				return fmt.Errorf("delete shift %s: %w", sh.ID, err)
			}
			result.Deleted++
		}

		for _, a := range assignments {
			sh, created, err := s.applyAssignment(ctx, repo, a)
			if err != nil {
				return err
			}
			if created {
				result.Created++
			} else {
				result.Updated++
			}
			result.Shifts = append(result.Shifts, *sh)
		}
		return nil
	})
	if err != nil {
		s.logFailure(entry, err, "month assignment rejected")
		return nil, err
	}

	entry.WithFields(logrus.Fields{
		"created": result.Created,
		"updated": result.Updated,
		"deleted": result.Deleted,
	}).Info("month assigned")
	return &result, nil
}

// applyAssignment upserts the shift for (user, date) and keeps its
// scheduled work detail in step. A date holding leave keeps its marker and
// gets no work detail.
func (s *Service) applyAssignment(ctx context.Context, repo Repository, a ShiftAssignment) (*Shift, bool, error) {
	var start, end calendar.DateTime
	if a.Start != nil {
		start, end = overnightSpan(a.Date, *a.Start, *a.End)
	} else {
		p, err := ResolvePattern(ctx, repo, a.Date, a.ShiftType)
		if err != nil {
			return nil, false, err
		}
		start, end = p.Span(a.Date)
	}

	position := strings.TrimSpace(a.Position)
	if position == "" {
		position = string(a.ShiftType)
	}

	shift, err := repo.FindShift(ctx, a.UserID, a.Date)
	if err != nil {
		return nil, false, err
	}
	created := shift == nil
	if created {
		shift = &Shift{ID: s.newID(), UserID: a.UserID, Date: a.Date, MealTicket: true}
	}
	shift.Start, shift.End, shift.Position = start, end, position
	if err := repo.SaveShift(ctx, *shift); err != nil {
		return nil, false, fmt.Errorf("save shift: %w", err)
	}

	details, err := repo.ListShiftDetails(ctx, DetailFilter{UserID: a.UserID, Range: calendar.Range{From: a.Date, To: a.Date}})
	if err != nil {
		return nil, false, err
	}
	var work *ShiftDetail
	for i := range details {
		d := details[i]
		if d.IsLeaveMarker() {
			if d.ShiftID != shift.ID {
				d.ShiftID = shift.ID
				if err := repo.SaveShiftDetail(ctx, d); err != nil {
					return nil, false, err
				}
			}
			return shift, created, nil
		}
		if work == nil && d.Type == DetailWork && d.Status == DetailScheduled {
			work = &d
		}
	}
	if work == nil {
		work = &ShiftDetail{ID: s.newID(), UserID: a.UserID, Date: a.Date, Type: DetailWork, Status: DetailScheduled}
	}
	work.ShiftID = shift.ID
	work.Start, work.End = &start, &end
	if err := repo.SaveShiftDetail(ctx, *work); err != nil {
		return nil, false, fmt.Errorf("save work detail: %w", err)
	}
	return shift, created, nil
}

// GetShift returns one shift.
func (s *Service) GetShift(ctx context.Context, id string) (*Shift, error) {
	return s.store.GetShift(ctx, id)
}

// ListShifts lists shifts for one user or, with an empty userID, everyone.
func (s *Service) ListShifts(ctx context.Context, userID string, r calendar.Range) ([]Shift, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	return s.store.ListShifts(ctx, ShiftFilter{UserID: userID, Range: r})
}

func validateRange(r calendar.Range) error {
	switch {
	case r.From.IsZero() || r.To.IsZero():
		return invalid("range", "from and to are required")
	case !r.Valid():
		return invalid("range", "to %s is before from %s", r.To, r.From)
	case calendar.DaysBetween(r.From, r.To) > 366:
		return invalid("range", "at most 366 days may be listed at once")
	}
	return nil
}
