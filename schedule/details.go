package schedule

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// SHIFT DETAIL EDITS
// =============================================================================

// DetailInput describes a detail to add.
type DetailInput struct {
	UserID string
	Date   calendar.Date
	Type   DetailType
	Status DetailStatus
	Start  *calendar.DateTime
	End    *calendar.DateTime
}

// editGate: nobody edits the past; inside the deadline window only super
// admins may change the schedule directly.
func editGate(actor User, c Classification) error {
	switch {
	case c.Past():
		return c.reject(HintHistorical)
	case c.RequiresApplication() && !actor.IsSuperAdmin():
		return c.reject(HintApplication)
	}
	return nil
}

// detailGate is editGate, except super admins may record actual times on
// past dates.
func detailGate(actor User, c Classification, status DetailStatus) error {
	if status == DetailActual && c.DaysUntil > 0 {
		return invalid("status", "actual times can't be recorded for a future date")
	}
	if c.Past() && actor.IsSuperAdmin() && status == DetailActual {
		return nil
	}
	return editGate(actor, c)
}

func validateSpan(date calendar.Date, status DetailStatus, start, end *calendar.DateTime) error {
	if start == nil && end == nil {
		if status == DetailAbsent {
			return nil
		}
		return invalid("start_time", "is required unless the detail is absent")
	}
	switch {
	case start == nil || end == nil:
		return invalid("end_time", "start and end must be given together")
	case start.Date() != date:
		return invalid("start_time", "must fall on %s", date)
	case !end.After(*start):
		return invalid("end_time", "must be after start_time")
	case end.Date().After(date.AddDays(1)):
		return invalid("end_time", "may cross midnight at most once")
	case end.Sub(*start) > 24*time.Hour:
		return invalid("end_time", "span exceeds 24 hours")
	}
	return nil
}

// AddShiftDetail adds a work, break or outing detail. Dates holding leave
// take no further details.
func (s *Service) AddShiftDetail(ctx context.Context, actor User, in DetailInput) (*ShiftDetail, error) {
	if in.Status == "" {
		in.Status = DetailScheduled
	}
	switch {
	case in.UserID == "":
		return nil, invalid("user_id", "is required")
	case in.Date.IsZero():
		return nil, invalid("date", "is required")
	case !in.Type.Valid():
		return nil, invalid("type", "unknown detail type %q", in.Type)
	case !in.Status.Valid():
		return nil, invalid("status", "unknown detail status %q", in.Status)
	case in.Type == DetailBreak && in.Status == DetailAbsent:
		return nil, invalid("status", "absent breaks are leave; use leave registration")
	}
	if err := validateSpan(in.Date, in.Status, in.Start, in.End); err != nil {
		return nil, err
	}
	if err := authorize(actor, in.UserID, "edit shift details"); err != nil {
		return nil, err
	}

	var detail ShiftDetail
	err := s.mutate(ctx, []string{dateKey(in.UserID, in.Date)}, func(repo Repository) error {
		if _, err := s.loadUser(ctx, repo, in.UserID); err != nil {
			return err
		}
		c, err := s.classifyIn(ctx, repo, in.Date)
		if err != nil {
			return err
		}
		if err := detailGate(actor, c, in.Status); err != nil {
			return err
		}
		marker, err := findLeaveMarker(ctx, repo, in.UserID, in.Date)
		if err != nil {
			return err
		}
		if marker != nil {
			return invalid("date", "leave is registered for %s", in.Date)
		}

		detail = ShiftDetail{
			ID:     s.newID(),
			UserID: in.UserID,
			Date:   in.Date,
			Type:   in.Type,
			Status: in.Status,
			Start:  in.Start,
			End:    in.End,
		}
		shift, err := repo.FindShift(ctx, in.UserID, in.Date)
		if err != nil {
			return err
		}
		if shift != nil {
			detail.ShiftID = shift.ID
		}
		return repo.SaveShiftDetail(ctx, detail)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"detail_id": detail.ID, "user_id": in.UserID, "date": in.Date.String(), "type": in.Type}).Info("shift detail added")
	return &detail, nil
}

// UpdateShiftDetailTimes retimes a detail. Leave markers can't be edited.
func (s *Service) UpdateShiftDetailTimes(ctx context.Context, actor User, id string, start, end *calendar.DateTime) (*ShiftDetail, error) {
	current, err := s.store.GetShiftDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, current.UserID, "edit shift details"); err != nil {
		return nil, err
	}

	var detail ShiftDetail
	err = s.mutate(ctx, []string{dateKey(current.UserID, current.Date)}, func(repo Repository) error {
		d, err := repo.GetShiftDetail(ctx, id)
		if err != nil {
			return err
		}
		if d.IsLeaveMarker() {
			return invalid("id", "leave markers change only through leave registration")
		}
		if err := validateSpan(d.Date, d.Status, start, end); err != nil {
			return err
		}
		c, err := s.classifyIn(ctx, repo, d.Date)
		if err != nil {
			return err
		}
		if err := detailGate(actor, c, d.Status); err != nil {
			return err
		}
		d.Start, d.End = start, end
		detail = *d
		return repo.SaveShiftDetail(ctx, detail)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"detail_id": id, "user_id": detail.UserID}).Info("shift detail retimed")
	return &detail, nil
}

// DeleteShiftDetail removes a detail. Leave markers can't be deleted here.
func (s *Service) DeleteShiftDetail(ctx context.Context, actor User, id string) error {
	current, err := s.store.GetShiftDetail(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, current.UserID, "edit shift details"); err != nil {
		return err
	}

	err = s.mutate(ctx, []string{dateKey(current.UserID, current.Date)}, func(repo Repository) error {
		d, err := repo.GetShiftDetail(ctx, id)
		if err != nil {
			return err
		}
		if d.IsLeaveMarker() {
			return invalid("id", "leave markers change only through leave registration")
		}
		c, err := s.classifyIn(ctx, repo, d.Date)
		if err != nil {
			return err
		}
		if err := detailGate(actor, c, d.Status); err != nil {
			return err
		}
		return repo.DeleteShiftDetail(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"detail_id": id, "user_id": current.UserID}).Info("shift detail deleted")
	return nil
}

// ListShiftDetails lists details for one user or, with an empty userID,
// everyone.
func (s *Service) ListShiftDetails(ctx context.Context, userID string, r calendar.Range) ([]ShiftDetail, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	return s.store.ListShiftDetails(ctx, DetailFilter{UserID: userID, Range: r})
}
