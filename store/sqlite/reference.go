package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// USERS
// =============================================================================

func (r *repo) GetUser(ctx context.Context, id string) (*schedule.User, error) {
	var u schedule.User
	var status, role string
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, monthly_leave_limit, status, role FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.MonthlyLeaveLimit, &status, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	u.Status = schedule.UserStatus(status)
	u.Role = schedule.Role(role)
	return &u, nil
}

func (r *repo) ListUsers(ctx context.Context) ([]schedule.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, monthly_leave_limit, status, role FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []schedule.User
	for rows.Next() {
		var u schedule.User
		var status, role string
		if err := rows.Scan(&u.ID, &u.Name, &u.MonthlyLeaveLimit, &status, &role); err != nil {
			return nil, err
		}
		u.Status = schedule.UserStatus(status)
		u.Role = schedule.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *repo) SaveUser(ctx context.Context, u schedule.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, name, monthly_leave_limit, status, role, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			monthly_leave_limit = excluded.monthly_leave_limit,
			status = excluded.status,
			role = excluded.role,
			updated_at = excluded.updated_at
	`, u.ID, u.Name, u.MonthlyLeaveLimit, string(u.Status), string(u.Role), now())
	return mapErr(err)
}

// =============================================================================
// HOLIDAY CALENDAR
// =============================================================================

// IsHoliday checks one-off holidays on the date and recurring holidays on
// its month and day.
func (r *repo) IsHoliday(ctx context.Context, d calendar.Date) (bool, error) {
	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (recurring = FALSE AND date = ?)
		   OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
	`
	var count int
	monthDay := fmt.Sprintf("%02d-%02d", int(d.Month), d.Day)
	if err := r.q.QueryRowContext(ctx, query, d.String(), monthDay).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveHoliday inserts a holiday, assigning an id when empty. Saving the
// same date and name again updates the recurring flag.
func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) (calendar.Holiday, error) {
	if h.Date.IsZero() {
		return h, &schedule.ValidationError{Field: "date", Message: "is required"}
	}
	if h.Name == "" {
		return h, &schedule.ValidationError{Field: "name", Message: "is required"}
	}
	if h.ID == "" {
		h.ID = uuid.New().String()
	}

	query := `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, name) DO UPDATE SET
			recurring = excluded.recurring
	`
	if _, err := s.db.ExecContext(ctx, query, h.ID, h.Date.String(), h.Name, h.Recurring, now()); err != nil {
		return h, err
	}

	// On conflict the existing row keeps its id.
	err := s.db.QueryRowContext(ctx, `SELECT id FROM holidays WHERE date = ? AND name = ?`, h.Date.String(), h.Name).Scan(&h.ID)
	return h, err
}

// DeleteHoliday deletes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "holiday", id)
}

// ListHolidays returns every stored holiday ordered by date.
func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, date, name, recurring FROM holidays ORDER BY date ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		var date string
		if err := rows.Scan(&h.ID, &date, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = calendar.ParseDate(date); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// HolidaysInYear returns the year's holidays with recurring ones placed on
// that year.
func (s *Store) HolidaysInYear(ctx context.Context, year int) ([]calendar.Holiday, error) {
	all, err := s.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	return calendar.InYear(all, year), nil
}

// =============================================================================
// DEFAULT SHIFT PATTERNS
// =============================================================================

const patternColumns = `id, category, day_of_week, shift_type, start_time, end_time`

func scanPattern(row interface{ Scan(...any) error }) (*schedule.DefaultShiftPattern, error) {
	var p schedule.DefaultShiftPattern
	var category, shiftType, start, end string
	var dow int
	if err := row.Scan(&p.ID, &category, &dow, &shiftType, &start, &end); err != nil {
		return nil, err
	}
	p.Category = calendar.Category(category)
	p.DayOfWeek = time.Weekday(dow)
	p.ShiftType = schedule.ShiftType(shiftType)

	var err error
	if p.Start, err = calendar.ParseClock(start); err != nil {
		return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
	}
	if p.End, err = calendar.ParseClock(end); err != nil {
		return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
	}
	return &p, nil
}

func (r *repo) FindPattern(ctx context.Context, category calendar.Category, dow time.Weekday, shiftType schedule.ShiftType) (*schedule.DefaultShiftPattern, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+patternColumns+` FROM default_shift_patterns
		WHERE category = ? AND day_of_week = ? AND shift_type = ?
	`, string(category), int(dow), string(shiftType))
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repo) ListPatterns(ctx context.Context) ([]schedule.DefaultShiftPattern, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+patternColumns+` FROM default_shift_patterns
		ORDER BY category DESC, day_of_week ASC, shift_type ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []schedule.DefaultShiftPattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

// SavePattern upserts by (category, day_of_week, shift_type).
func (r *repo) SavePattern(ctx context.Context, p schedule.DefaultShiftPattern) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO default_shift_patterns (id, category, day_of_week, shift_type, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, day_of_week, shift_type) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time
	`, p.ID, string(p.Category), int(p.DayOfWeek), string(p.ShiftType), p.Start.String(), p.End.String())
	return mapErr(err)
}

// =============================================================================
// SETTINGS
// =============================================================================

func (r *repo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *repo) SaveSetting(ctx context.Context, key, value string) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now())
	return mapErr(err)
}
