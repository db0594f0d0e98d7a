/*
service.go - Scheduling service: wiring, locking and retry

PURPOSE:
  Service is the entry point for every read and mutation. It owns the
  injected deadline configuration, the clock, the per-(user, date) Locker
  and the bounded retry loop around store transactions.

MUTATION FLOW:
  1. Acquire lock keys (period key for balance-affecting operations, then
     one key per touched date)
  2. Open a store transaction
  3. Re-read state, classify the date, check balance
  4. Write, commit, release locks
  5. On ErrConcurrencyConflict, back off and retry up to MaxRetries times

SEE ALSO:
  - leave.go, application.go, flags_service.go, generation.go, details.go
  - lock.go: Locker and KeyedMutex
*/
package schedule

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/calendar"
)

// Clock returns the current wall-clock time.
type Clock func() time.Time

// Config holds the engine's tunables.
type Config struct {
	// DeadlineDays is apply_deadline_days; a stored setting overrides it.
	DeadlineDays    int
	MaxReasonLength int
	MaxRetries      int
	RetryBackoff    time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DeadlineDays:    14,
		MaxReasonLength: 500,
		MaxRetries:      3,
		RetryBackoff:    20 * time.Millisecond,
	}
}

// Service implements the shift and leave operations.
type Service struct {
	store  Store
	locker Locker
	clock  Clock
	log    *logrus.Logger
	cfg    Config
	newID  func() string
}

type Option func(*Service)

func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }
func WithClock(c Clock) Option   { return func(s *Service) { s.clock = c } }

func WithLogger(l *logrus.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a service over store. Without options it uses an
// in-process KeyedMutex, the system clock and a discarding logger.
func NewService(store Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locker: NewKeyedMutex(),
		clock:  time.Now,
		cfg:    cfg,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.New()
		s.log.SetOutput(io.Discard)
	}
	if s.cfg.MaxRetries < 1 {
		s.cfg.MaxRetries = 1
	}
	if s.cfg.MaxReasonLength <= 0 {
		s.cfg.MaxReasonLength = DefaultConfig().MaxReasonLength
	}
	return s
}

// Today is the current local calendar day.
func (s *Service) Today() calendar.Date { return calendar.DateOf(s.clock()) }

func (s *Service) now() calendar.DateTime { return calendar.DateTimeOf(s.clock()) }

// =============================================================================
// DEADLINE CONFIGURATION
// =============================================================================

// DeadlineDays returns apply_deadline_days: the stored setting if present,
// the configured default otherwise.
func (s *Service) DeadlineDays(ctx context.Context) (int, error) {
	return s.deadlineDays(ctx, s.store)
}

func (s *Service) deadlineDays(ctx context.Context, repo Repository) (int, error) {
	raw, ok, err := repo.GetSetting(ctx, SettingDeadlineDays)
	if err != nil {
		return 0, fmt.Errorf("read deadline setting: %w", err)
	}
	if !ok {
		return s.cfg.DeadlineDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("stored %s is invalid: %q", SettingDeadlineDays, raw)
	}
	return days, nil
}

// SetDeadlineDays changes apply_deadline_days at runtime.
func (s *Service) SetDeadlineDays(ctx context.Context, actor User, days int) error {
	if !actor.IsSuperAdmin() {
		return &AuthorizationError{ActorID: actor.ID, Action: "change the deadline"}
	}
	if days < 0 {
		return invalid("apply_deadline_days", "must be zero or positive, got %d", days)
	}
	if err := s.store.SaveSetting(ctx, SettingDeadlineDays, strconv.Itoa(days)); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"actor_id": actor.ID, "deadline_days": days}).Info("deadline updated")
	return nil
}

// Classify classifies target against today and the current deadline.
func (s *Service) Classify(ctx context.Context, target calendar.Date) (Classification, error) {
	return s.classifyIn(ctx, s.store, target)
}

func (s *Service) classifyIn(ctx context.Context, repo Repository, target calendar.Date) (Classification, error) {
	days, err := s.deadlineDays(ctx, repo)
	if err != nil {
		return Classification{}, err
	}
	return Classify(s.Today(), target, days), nil
}

// =============================================================================
// MUTATION PLUMBING
// =============================================================================

// mutate runs fn in a transaction while holding keys, retrying a bounded
// number of times on ErrConcurrencyConflict.
func (s *Service) mutate(ctx context.Context, keys []string, fn func(repo Repository) error) error {
	for attempt := 1; ; attempt++ {
		err := s.mutateOnce(ctx, keys, fn)
		if err == nil || !IsRetryable(err) || attempt >= s.cfg.MaxRetries {
			return err
		}

		s.log.WithFields(logrus.Fields{"attempt": attempt, "keys": keys}).WithError(err).Warn("retrying after conflict")
		select {
		case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConcurrencyConflict, ctx.Err())
		}
	}
}

func (s *Service) mutateOnce(ctx context.Context, keys []string, fn func(repo Repository) error) error {
	unlock, err := lockAll(ctx, s.locker, keys...)
	if err != nil {
		return err
	}
	defer unlock()
	return s.store.WithTx(ctx, fn)
}

// logFailure records store failures loudly and business rejections quietly.
func (s *Service) logFailure(entry *logrus.Entry, err error, msg string) {
	if IsClientError(err) || IsNotFound(err) {
		entry.WithError(err).Debug(msg)
		return
	}
	entry.WithError(err).Error(msg)
}

// =============================================================================
// ACTORS
// =============================================================================

// authorize allows owners acting on themselves and super admins acting on
// anyone. Retired users can't mutate anything.
func authorize(actor User, ownerID, action string) error {
	if actor.Status == UserRetired {
		return &AuthorizationError{ActorID: actor.ID, Action: action}
	}
	if actor.IsSuperAdmin() || actor.ID == ownerID {
		return nil
	}
	return &AuthorizationError{ActorID: actor.ID, Action: action}
}

func requireAdmin(actor User, action string) error {
	if actor.IsSuperAdmin() && actor.Status != UserRetired {
		return nil
	}
	return &AuthorizationError{ActorID: actor.ID, Action: action}
}

// =============================================================================
// USERS
// =============================================================================

// GetUser returns the local projection of a user.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.store.GetUser(ctx, id)
}

// ListUsers returns every known user.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// SaveUser upserts a user. Super admins only.
func (s *Service) SaveUser(ctx context.Context, actor User, u User) error {
	if err := requireAdmin(actor, "manage users"); err != nil {
		return err
	}
	if u.ID == "" {
		return invalid("id", "is required")
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	switch {
	case !u.Status.Valid():
		return invalid("status", "unknown status %q", u.Status)
	case u.Role != RoleMember && u.Role != RoleSuperAdmin:
		return invalid("role", "unknown role %q", u.Role)
	case u.MonthlyLeaveLimit < 0:
		return invalid("monthly_leave_limit", "must be zero (unlimited) or positive")
	}
	return s.store.SaveUser(ctx, u)
}

// RemainingLeave returns the balance for the monthly period containing
// periodStart. Remaining is nil for unlimited users.
func (s *Service) RemainingLeave(ctx context.Context, userID string, periodStart calendar.Date) (LeaveBalance, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return LeaveBalance{}, err
	}
	return computeBalance(ctx, s.store, *user, periodStart)
}

func (s *Service) loadUser(ctx context.Context, repo Repository, id string) (User, error) {
	u, err := repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	return *u, nil
}

func ensureCanHoldLeave(u User) error {
	if u.Status == UserShared {
		return invalid("user_id", "shared accounts cannot hold leave")
	}
	if u.Status == UserRetired {
		return invalid("user_id", "retired users cannot hold leave")
	}
	return nil
}
