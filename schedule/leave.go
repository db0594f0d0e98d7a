package schedule

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// IMMEDIATE LEAVE REGISTRATION
// =============================================================================

// LeaveResult is the outcome of a leave registration.
type LeaveResult struct {
	Marker  ShiftDetail  `json:"marker"`
	Balance LeaveBalance `json:"balance"`
	// Created is false when the date already held leave.
	Created bool `json:"created"`
}

// RegisterImmediateLeave records leave on a date in the free window. It is
// idempotent: a date that already holds leave is left untouched.
func (s *Service) RegisterImmediateLeave(ctx context.Context, actor User, userID string, date calendar.Date) (*LeaveResult, error) {
	if err := authorize(actor, userID, "register leave"); err != nil {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{"user_id": userID, "date": date.String()})

	var result LeaveResult
	err := s.mutate(ctx, []string{periodKey(userID, date), dateKey(userID, date)}, func(repo Repository) error {
		result = LeaveResult{}

		user, err := s.loadUser(ctx, repo, userID)
		if err != nil {
			return err
		}
		if err := ensureCanHoldLeave(user); err != nil {
			return err
		}

		c, err := s.classifyIn(ctx, repo, date)
		if err != nil {
			return err
		}
		if err := c.immediateGate(); err != nil {
			return err
		}

		existing, err := findLeaveMarker(ctx, repo, userID, date)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Marker = *existing
			result.Balance, err = computeBalance(ctx, repo, user, date)
			return err
		}

		if _, _, err := chargeable(ctx, repo, user, date); err != nil {
			return err
		}
		marker, err := s.placeLeaveMarker(ctx, repo, userID, date)
		if err != nil {
			return err
		}
		result.Marker = *marker
		result.Created = true
		result.Balance, err = computeBalance(ctx, repo, user, date)
		return err
	})
	if err != nil {
		s.logFailure(entry, err, "immediate leave rejected")
		return nil, err
	}

	entry.WithField("created", result.Created).Info("immediate leave registered")
	return &result, nil
}

// UnregisterImmediateLeave removes leave registered through the free
// window. The window is re-checked at call time; weekend and holiday leave
// can't be cancelled.
func (s *Service) UnregisterImmediateLeave(ctx context.Context, actor User, userID string, date calendar.Date) (*LeaveBalance, error) {
	if err := authorize(actor, userID, "cancel leave"); err != nil {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{"user_id": userID, "date": date.String()})

	var balance LeaveBalance
	err := s.mutate(ctx, []string{periodKey(userID, date), dateKey(userID, date)}, func(repo Repository) error {
		user, err := s.loadUser(ctx, repo, userID)
		if err != nil {
			return err
		}

		c, err := s.classifyIn(ctx, repo, date)
		if err != nil {
			return err
		}
		if err := c.immediateGate(); err != nil {
			return err
		}

		rest, err := calendar.IsRestDay(ctx, repo, date)
		if err != nil {
			return fmt.Errorf("holiday lookup: %w", err)
		}
		if rest {
			return invalid("date", "leave on weekends and holidays cannot be cancelled")
		}

		marker, err := findLeaveMarker(ctx, repo, userID, date)
		if err != nil {
			return err
		}
		if marker == nil {
			return &NotFoundError{Kind: "leave", ID: userID + "/" + date.String()}
		}

		granted, err := repo.ListApplications(ctx, ApplicationFilter{
			UserID: userID,
			Status: ApplicationApproved,
			Range:  calendar.Range{From: date, To: date},
		})
		if err != nil {
			return err
		}
		if len(granted) > 0 {
			return invalid("date", "leave was granted by application %s; delete the application instead", granted[0].ID)
		}

		if err := removeLeaveMarker(ctx, repo, *marker); err != nil {
			return err
		}
		balance, err = computeBalance(ctx, repo, user, date)
		return err
	})
	if err != nil {
		s.logFailure(entry, err, "leave cancellation rejected")
		return nil, err
	}

	entry.Info("immediate leave cancelled")
	return &balance, nil
}

// =============================================================================
// LEAVE MARKERS
// =============================================================================

func findLeaveMarker(ctx context.Context, repo Repository, userID string, date calendar.Date) (*ShiftDetail, error) {
	details, err := repo.ListShiftDetails(ctx, DetailFilter{UserID: userID, Range: calendar.Range{From: date, To: date}})
	if err != nil {
		return nil, err
	}
	for _, d := range details {
		if d.IsLeaveMarker() {
			return &d, nil
		}
	}
	return nil, nil
}

// placeLeaveMarker converts the date's scheduled work detail into a leave
// marker, or creates a marker if there is none. Every other scheduled
// detail on the date is removed so the day can't read as both worked and
// on leave. Actual rows are kept.
func (s *Service) placeLeaveMarker(ctx context.Context, repo Repository, userID string, date calendar.Date) (*ShiftDetail, error) {
	details, err := repo.ListShiftDetails(ctx, DetailFilter{UserID: userID, Range: calendar.Range{From: date, To: date}})
	if err != nil {
		return nil, err
	}

	var marker *ShiftDetail
	for i := range details {
		d := details[i]
		if d.Status != DetailScheduled {
			continue
		}
		if marker == nil && d.Type == DetailWork {
			d.Type = DetailBreak
			d.Status = DetailAbsent
			d.Start, d.End = nil, nil
			marker = &d
			continue
		}
		if err := repo.DeleteShiftDetail(ctx, d.ID); err != nil {
			return nil, err
		}
	}

	if marker == nil {
		shift, err := repo.FindShift(ctx, userID, date)
		if err != nil {
			return nil, err
		}
		marker = &ShiftDetail{
			ID:     s.newID(),
			UserID: userID,
			Date:   date,
			Type:   DetailBreak,
			Status: DetailAbsent,
		}
		if shift != nil {
			marker.ShiftID = shift.ID
		}
	}

	if err := repo.SaveShiftDetail(ctx, *marker); err != nil {
		return nil, fmt.Errorf("save leave marker: %w", err)
	}
	return marker, nil
}

// removeLeaveMarker restores the owning shift's scheduled work detail when
// the shift still exists, and deletes the marker otherwise.
func removeLeaveMarker(ctx context.Context, repo Repository, marker ShiftDetail) error {
	if marker.ShiftID != "" {
		shift, err := repo.GetShift(ctx, marker.ShiftID)
		switch {
		case err == nil:
			start, end := shift.Start, shift.End
			marker.Type = DetailWork
			marker.Status = DetailScheduled
			marker.Start, marker.End = &start, &end
			return repo.SaveShiftDetail(ctx, marker)
		case !IsNotFound(err):
			return err
		}
	}
	return repo.DeleteShiftDetail(ctx, marker.ID)
}
