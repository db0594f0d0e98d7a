package schedule

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// LEAVE APPLICATION WORKFLOW
//
//   pending --approve--> approved   (consumes balance, places leave marker)
//   pending --reject---> rejected
//   pending|rejected --delete--> gone (no balance effect)
//   approved --delete--> gone       (marker removed in the same transaction)
// =============================================================================

// ApplicationRequest is the input for CreateApplication.
type ApplicationRequest struct {
	UserID string
	Date   calendar.Date
	Type   ApplicationType
	Reason string
}

// CreateApplication files a pending application for a date inside the
// deadline window. No balance is consumed until approval.
func (s *Service) CreateApplication(ctx context.Context, actor User, req ApplicationRequest) (*ShiftApplication, error) {
	if req.Type == "" {
		req.Type = ApplicationLeave
	}
	req.Reason = strings.TrimSpace(req.Reason)
	switch {
	case !req.Type.Valid():
		return nil, invalid("type", "unknown application type %q", req.Type)
	case req.Reason == "":
		return nil, invalid("reason", "is required")
	case utf8.RuneCountInString(req.Reason) > s.cfg.MaxReasonLength:
		return nil, invalid("reason", "must be at most %d characters", s.cfg.MaxReasonLength)
	case req.Date.IsZero():
		return nil, invalid("date", "is required")
	}
	if err := authorize(actor, req.UserID, "apply for leave"); err != nil {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{"user_id": req.UserID, "date": req.Date.String()})

	var app ShiftApplication
	err := s.mutate(ctx, []string{periodKey(req.UserID, req.Date), dateKey(req.UserID, req.Date)}, func(repo Repository) error {
		user, err := s.loadUser(ctx, repo, req.UserID)
		if err != nil {
			return err
		}
		if err := ensureCanHoldLeave(user); err != nil {
			return err
		}

		c, err := s.classifyIn(ctx, repo, req.Date)
		if err != nil {
			return err
		}
		if err := c.applicationGate(); err != nil {
			return err
		}

		open, err := openApplications(ctx, repo, req.UserID, req.Date, req.Type)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return invalid("date", "an application for %s is already %s", req.Date, open[0].Status)
		}
		marker, err := findLeaveMarker(ctx, repo, req.UserID, req.Date)
		if err != nil {
			return err
		}
		if marker != nil {
			return invalid("date", "leave is already registered for %s", req.Date)
		}

		if _, _, err := chargeable(ctx, repo, user, req.Date); err != nil {
			return err
		}

		now := s.now()
		app = ShiftApplication{
			ID:        s.newID(),
			UserID:    req.UserID,
			Date:      req.Date,
			Type:      req.Type,
			Status:    ApplicationPending,
			Reason:    req.Reason,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return repo.SaveApplication(ctx, app)
	})
	if err != nil {
		s.logFailure(entry, err, "application rejected")
		return nil, err
	}

	entry.WithField("application_id", app.ID).Info("application created")
	return &app, nil
}

// ApproveApplication approves a pending application, consuming one unit of
// balance on chargeable dates and placing the leave marker atomically.
func (s *Service) ApproveApplication(ctx context.Context, actor User, id string) (*ShiftApplication, error) {
	if err := requireAdmin(actor, "approve applications"); err != nil {
		return nil, err
	}
	current, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	entry := s.log.WithFields(logrus.Fields{"application_id": id, "user_id": current.UserID, "date": current.Date.String()})

	var app ShiftApplication
	err = s.mutate(ctx, []string{periodKey(current.UserID, current.Date), dateKey(current.UserID, current.Date)}, func(repo Repository) error {
		a, err := repo.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != ApplicationPending {
			return invalid("status", "application is %s, not pending", a.Status)
		}

		c, err := s.classifyIn(ctx, repo, a.Date)
		if err != nil {
			return err
		}
		if c.Past() {
			return c.reject(HintHistorical)
		}

		user, err := s.loadUser(ctx, repo, a.UserID)
		if err != nil {
			return err
		}
		if err := ensureCanHoldLeave(user); err != nil {
			return err
		}

		marker, err := findLeaveMarker(ctx, repo, a.UserID, a.Date)
		if err != nil {
			return err
		}
		if marker == nil {
			if _, _, err := chargeable(ctx, repo, user, a.Date); err != nil {
				return err
			}
			if _, err := s.placeLeaveMarker(ctx, repo, a.UserID, a.Date); err != nil {
				return err
			}
		}

		a.Status = ApplicationApproved
		a.ReviewerID = actor.ID
		a.UpdatedAt = s.now()
		app = *a
		return repo.SaveApplication(ctx, app)
	})
	if err != nil {
		s.logFailure(entry, err, "approval failed")
		return nil, err
	}

	entry.WithField("reviewer_id", actor.ID).Info("application approved")
	return &app, nil
}

// RejectApplication closes a pending application without balance effect.
func (s *Service) RejectApplication(ctx context.Context, actor User, id, note string) (*ShiftApplication, error) {
	if err := requireAdmin(actor, "reject applications"); err != nil {
		return nil, err
	}
	return s.reject(ctx, actor.ID, id, strings.TrimSpace(note))
}

func (s *Service) reject(ctx context.Context, reviewerID, id, note string) (*ShiftApplication, error) {
	current, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}

	var app ShiftApplication
	err = s.mutate(ctx, []string{dateKey(current.UserID, current.Date)}, func(repo Repository) error {
		a, err := repo.GetApplication(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != ApplicationPending {
			return invalid("status", "application is %s, not pending", a.Status)
		}
		a.Status = ApplicationRejected
		a.ReviewerID = reviewerID
		a.ReviewNote = note
		a.UpdatedAt = s.now()
		app = *a
		return repo.SaveApplication(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"application_id": id, "reviewer_id": reviewerID}).Info("application rejected")
	return &app, nil
}

// DeleteApplication removes an application. Owners and super admins may
// delete; deleting an approved application restores the balance by
// removing its leave marker in the same transaction. Approved leave on a
// past date, a weekend or a holiday can't be deleted.
func (s *Service) DeleteApplication(ctx context.Context, actor User, id string) error {
	current, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(actor, current.UserID, "delete this application"); err != nil {
		return err
	}
	entry := s.log.WithFields(logrus.Fields{"application_id": id, "user_id": current.UserID, "date": current.Date.String()})

	err = s.mutate(ctx, []string{periodKey(current.UserID, current.Date), dateKey(current.UserID, current.Date)}, func(repo Repository) error {
		a, err := repo.GetApplication(ctx, id)
		if err != nil {
			return err
		}

		if a.Status == ApplicationApproved {
			c, err := s.classifyIn(ctx, repo, a.Date)
			if err != nil {
				return err
			}
			if c.Past() {
				return c.reject(HintHistorical)
			}
			rest, err := calendar.IsRestDay(ctx, repo, a.Date)
			if err != nil {
				return fmt.Errorf("holiday lookup: %w", err)
			}
			if rest {
				return invalid("date", "leave on weekends and holidays cannot be cancelled")
			}

			marker, err := findLeaveMarker(ctx, repo, a.UserID, a.Date)
			if err != nil {
				return err
			}
			if marker != nil {
				if err := removeLeaveMarker(ctx, repo, *marker); err != nil {
					return err
				}
			}
		}
		return repo.DeleteApplication(ctx, a.ID)
	})
	if err != nil {
		s.logFailure(entry, err, "application delete rejected")
		return err
	}

	entry.WithField("status", current.Status).Info("application deleted")
	return nil
}

// GetApplication returns one application visible to actor.
func (s *Service) GetApplication(ctx context.Context, actor User, id string) (*ShiftApplication, error) {
	a, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin() && actor.ID != a.UserID {
		return nil, &AuthorizationError{ActorID: actor.ID, Action: "view this application"}
	}
	return a, nil
}

// ListApplications lists applications. Non-admins only see their own.
func (s *Service) ListApplications(ctx context.Context, actor User, f ApplicationFilter) ([]ShiftApplication, error) {
	if !actor.IsSuperAdmin() {
		if f.UserID != "" && f.UserID != actor.ID {
			return nil, &AuthorizationError{ActorID: actor.ID, Action: "list other users' applications"}
		}
		f.UserID = actor.ID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("status", "unknown status %q", f.Status)
	}
	return s.store.ListApplications(ctx, f)
}

// ExpireStaleApplications rejects pending applications whose date has
// passed; they can no longer be approved.
func (s *Service) ExpireStaleApplications(ctx context.Context) (int, error) {
	yesterday := s.Today().AddDays(-1)
	stale, err := s.store.ListApplications(ctx, ApplicationFilter{
		Status: ApplicationPending,
		Range:  calendar.Range{To: yesterday},
	})
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, a := range stale {
		if _, err := s.reject(ctx, "", a.ID, "expired"); err != nil {
			if IsClientError(err) || IsNotFound(err) {
				continue
			}
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.log.WithField("count", expired).Info("expired stale applications")
	}
	return expired, nil
}

func openApplications(ctx context.Context, repo Repository, userID string, date calendar.Date, typ ApplicationType) ([]ShiftApplication, error) {
	apps, err := repo.ListApplications(ctx, ApplicationFilter{
		UserID: userID,
		Type:   typ,
		Range:  calendar.Range{From: date, To: date},
	})
	if err != nil {
		return nil, err
	}
	var open []ShiftApplication
	for _, a := range apps {
		if a.Status == ApplicationPending || a.Status == ApplicationApproved {
			open = append(open, a)
		}
	}
	return open, nil
}
