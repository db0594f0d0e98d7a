package schedule

import (
	"context"

	"github.com/sirupsen/logrus"
)

// SetFlag sets one flag on a shift after re-checking that flag's editable
// window. Other flags and the shift's details are never touched.
func (s *Service) SetFlag(ctx context.Context, actor User, shiftID string, flag FlagKind, value bool) (*Shift, error) {
	current, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, current.UserID, "change "+flag.String()); err != nil {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{
		"shift_id": shiftID,
		"user_id":  current.UserID,
		"date":     current.Date.String(),
		"flag":     flag.String(),
		"value":    value,
	})

	var shift Shift
	err = s.mutate(ctx, []string{dateKey(current.UserID, current.Date)}, func(repo Repository) error {
		sh, err := repo.GetShift(ctx, shiftID)
		if err != nil {
			return err
		}
		c, err := s.classifyIn(ctx, repo, sh.Date)
		if err != nil {
			return err
		}
		if !flag.Editable(c) {
			return c.reject(HintFlagLocked)
		}

		shift = *sh
		if flag.Value(shift) == value {
			return nil
		}
		flag.apply(&shift, value)
		return repo.SaveShift(ctx, shift)
	})
	if err != nil {
		s.logFailure(entry, err, "flag change rejected")
		return nil, err
	}

	entry.Info("flag updated")
	return &shift, nil
}
