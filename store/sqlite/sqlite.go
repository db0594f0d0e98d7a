/*
Package sqlite provides the SQLite-backed schedule.Store.

PURPOSE:
  Persists users, holidays, default shift patterns, shifts, shift details,
  applications and runtime settings. All dates and times are stored as
  naive local strings in TEXT columns ("2006-01-02", "2006-01-02 15:04:05")
  so that no driver-level time conversion ever happens.

KEY TABLES:
  users                   Local projection of external identities
  holidays                One-off and recurring non-working days
  default_shift_patterns  (category, day_of_week, shift_type) -> clock times
  shifts                  One per (user_id, date)
  shift_details           Typed sub-intervals; leave markers live here
  shift_applications      Leave workflow records
  settings                Runtime key/value settings (apply_deadline_days)

INDEXES:
  - idx_details_user_date: balance and listing hot path, keyed by (user, date)
  - idx_details_leave_marker: at most one leave marker per (user, date)
  - idx_applications_user_date: duplicate detection

CONCURRENCY:
  WithTx serializes transactions in-process with a mutex. Busy/locked and
  uniqueness failures from SQLite surface as schedule.ErrConcurrencyConflict
  so the service can retry them.

WAL MODE:
  File databases are opened with WAL and a busy timeout. In-memory databases
  are pinned to one connection so every caller sees the same data.

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := schedule.NewService(store, schedule.DefaultConfig())

SEE ALSO:
  - schedule/store.go: Interface definitions
  - records.go: Shift, detail and application persistence
  - reference.go: Users, holidays, patterns and settings
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/schedule"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo implements schedule.Repository over a querier.
type repo struct {
	q querier
}

// Store implements schedule.Store using SQLite.
type Store struct {
	repo
	db *sql.DB
	mu sync.Mutex
}

var _ schedule.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	inMemory := dbPath == ":memory:"
	if inMemory {
		dsn = ":memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
	}

	store := &Store{repo: repo{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		monthly_leave_limit INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		role TEXT NOT NULL DEFAULT 'member',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);

	CREATE TABLE IF NOT EXISTS default_shift_patterns (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL CHECK (category IN ('weekday', 'holiday')),
		day_of_week INTEGER NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
		shift_type TEXT NOT NULL CHECK (shift_type IN ('day', 'night')),
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		UNIQUE(category, day_of_week, shift_type)
	);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		step_out BOOLEAN NOT NULL DEFAULT FALSE,
		meal_ticket BOOLEAN NOT NULL DEFAULT TRUE,
		position TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, date)
	);

	CREATE TABLE IF NOT EXISTS shift_details (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		shift_id TEXT REFERENCES shifts(id) ON DELETE SET NULL,
		date TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('work', 'break', 'outing')),
		start_time TEXT,
		end_time TEXT,
		status TEXT NOT NULL CHECK (status IN ('scheduled', 'actual', 'absent')),
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_details_user_date
		ON shift_details(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_details_shift
		ON shift_details(shift_id) WHERE shift_id IS NOT NULL;

	-- One leave marker per user and day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_details_leave_marker
		ON shift_details(user_id, date) WHERE type = 'break' AND status = 'absent';

	CREATE TABLE IF NOT EXISTS shift_applications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'leave',
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		reason TEXT NOT NULL,
		reviewer_id TEXT,
		review_note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_applications_user_date
		ON shift_applications(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_applications_status_date
		ON shift_applications(status, date);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. fn must only use the
// repository it is given.
func (s *Store) WithTx(ctx context.Context, fn func(repo schedule.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if err := fn(&repo{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return mapErr(fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// Reset deletes all data. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{
		"shift_applications", "shift_details", "shifts",
		"default_shift_patterns", "holidays", "users", "settings",
	} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// mapErr turns SQLite contention and uniqueness failures into
// schedule.ErrConcurrencyConflict.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy, se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", schedule.ErrConcurrencyConflict, err)
		case se.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %v", schedule.ErrConcurrencyConflict, err)
		}
	}
	return err
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDateTime(dt *calendar.DateTime) sql.NullString {
	if dt == nil || dt.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: dt.String(), Valid: true}
}

func parseNullDateTime(ns sql.NullString) (*calendar.DateTime, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	dt, err := calendar.ParseDateTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &dt, nil
}

func now() string {
	return calendar.DateTimeOf(time.Now()).String()
}

// whereClause joins conditions with AND.
func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// rangeConds appends date bounds for the non-zero sides of r.
func rangeConds(conds []string, args []any, column string, r calendar.Range) ([]string, []any) {
	if !r.From.IsZero() {
		conds = append(conds, column+" >= ?")
		args = append(args, r.From.String())
	}
	if !r.To.IsZero() {
		conds = append(conds, column+" <= ?")
		args = append(args, r.To.String())
	}
	return conds, args
}

func notFound(kind, id string) error {
	return &schedule.NotFoundError{Kind: kind, ID: id}
}

func affectedOrNotFound(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}
