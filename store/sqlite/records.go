package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// SHIFTS
// =============================================================================

const shiftColumns = `id, user_id, date, start_time, end_time, step_out, meal_ticket, position`

func scanShift(row interface{ Scan(...any) error }) (*schedule.Shift, error) {
	var sh schedule.Shift
	var date, start, end string
	if err := row.Scan(&sh.ID, &sh.UserID, &date, &start, &end, &sh.StepOut, &sh.MealTicket, &sh.Position); err != nil {
		return nil, err
	}
	var err error
	if sh.Date, err = calendar.ParseDate(date); err != nil {
		return nil, fmt.Errorf("shift %s: %w", sh.ID, err)
	}
	if sh.Start, err = calendar.ParseDateTime(start); err != nil {
		return nil, fmt.Errorf("shift %s: %w", sh.ID, err)
	}
	if sh.End, err = calendar.ParseDateTime(end); err != nil {
		return nil, fmt.Errorf("shift %s: %w", sh.ID, err)
	}
	return &sh, nil
}

func (r *repo) GetShift(ctx context.Context, id string) (*schedule.Shift, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, id)
	sh, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("shift", id)
	}
	return sh, err
}

func (r *repo) FindShift(ctx context.Context, userID string, date calendar.Date) (*schedule.Shift, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE user_id = ? AND date = ?`, userID, date.String())
	sh, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sh, err
}

func (r *repo) ListShifts(ctx context.Context, f schedule.ShiftFilter) ([]schedule.Shift, error) {
	var conds []string
	var args []any
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	conds, args = rangeConds(conds, args, "date", f.Range)

	rows, err := r.q.QueryContext(ctx, `SELECT `+shiftColumns+` FROM shifts`+whereClause(conds)+` ORDER BY date ASC, user_id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []schedule.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *sh)
	}
	return shifts, rows.Err()
}

// SaveShift inserts or updates a shift by id.
func (r *repo) SaveShift(ctx context.Context, sh schedule.Shift) error {
	query := `
		INSERT INTO shifts (id, user_id, date, start_time, end_time, step_out, meal_ticket, position, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			step_out = excluded.step_out,
			meal_ticket = excluded.meal_ticket,
			position = excluded.position,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		sh.ID, sh.UserID, sh.Date.String(), sh.Start.String(), sh.End.String(),
		sh.StepOut, sh.MealTicket, sh.Position, now(),
	)
	return mapErr(err)
}

// DeleteShift removes a shift and its details. Leave markers survive with
// their shift_id cleared by the foreign key.
func (r *repo) DeleteShift(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `
		DELETE FROM shift_details
		WHERE shift_id = ? AND NOT (type = 'break' AND status = 'absent')
	`, id); err != nil {
		return mapErr(err)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return affectedOrNotFound(res, "shift", id)
}

// =============================================================================
// SHIFT DETAILS
// =============================================================================

const detailColumns = `id, user_id, shift_id, date, type, start_time, end_time, status`

func scanDetail(row interface{ Scan(...any) error }) (*schedule.ShiftDetail, error) {
	var d schedule.ShiftDetail
	var shiftID, start, end sql.NullString
	var date, typ, status string
	if err := row.Scan(&d.ID, &d.UserID, &shiftID, &date, &typ, &start, &end, &status); err != nil {
		return nil, err
	}
	d.ShiftID = shiftID.String
	d.Type = schedule.DetailType(typ)
	d.Status = schedule.DetailStatus(status)

	var err error
	if d.Date, err = calendar.ParseDate(date); err != nil {
		return nil, fmt.Errorf("detail %s: %w", d.ID, err)
	}
	if d.Start, err = parseNullDateTime(start); err != nil {
		return nil, fmt.Errorf("detail %s: %w", d.ID, err)
	}
	if d.End, err = parseNullDateTime(end); err != nil {
		return nil, fmt.Errorf("detail %s: %w", d.ID, err)
	}
	return &d, nil
}

func (r *repo) GetShiftDetail(ctx context.Context, id string) (*schedule.ShiftDetail, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+detailColumns+` FROM shift_details WHERE id = ?`, id)
	d, err := scanDetail(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("shift detail", id)
	}
	return d, err
}

func (r *repo) ListShiftDetails(ctx context.Context, f schedule.DetailFilter) ([]schedule.ShiftDetail, error) {
	var conds []string
	var args []any
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ShiftID != "" {
		conds = append(conds, "shift_id = ?")
		args = append(args, f.ShiftID)
	}
	conds, args = rangeConds(conds, args, "date", f.Range)

	query := `SELECT ` + detailColumns + ` FROM shift_details` + whereClause(conds) +
		` ORDER BY date ASC, user_id ASC, start_time ASC, id ASC`
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []schedule.ShiftDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, rows.Err()
}

// SaveShiftDetail inserts or updates a detail by id.
func (r *repo) SaveShiftDetail(ctx context.Context, d schedule.ShiftDetail) error {
	query := `
		INSERT INTO shift_details (id, user_id, shift_id, date, type, start_time, end_time, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			shift_id = excluded.shift_id,
			type = excluded.type,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			status = excluded.status,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		d.ID, d.UserID, nullString(d.ShiftID), d.Date.String(), string(d.Type),
		nullDateTime(d.Start), nullDateTime(d.End), string(d.Status), now(),
	)
	return mapErr(err)
}

func (r *repo) DeleteShiftDetail(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM shift_details WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return affectedOrNotFound(res, "shift detail", id)
}

// LeaveDates returns distinct dates holding a leave marker, via
// idx_details_leave_marker.
func (r *repo) LeaveDates(ctx context.Context, userID string, rng calendar.Range) ([]calendar.Date, error) {
	conds := []string{"user_id = ?", "type = 'break'", "status = 'absent'"}
	args := []any{userID}
	conds, args = rangeConds(conds, args, "date", rng)

	rows, err := r.q.QueryContext(ctx, `SELECT DISTINCT date FROM shift_details`+whereClause(conds)+` ORDER BY date ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []calendar.Date
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		d, err := calendar.ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// =============================================================================
// APPLICATIONS
// =============================================================================

const applicationColumns = `id, user_id, date, type, status, reason, reviewer_id, review_note, created_at, updated_at`

func scanApplication(row interface{ Scan(...any) error }) (*schedule.ShiftApplication, error) {
	var a schedule.ShiftApplication
	var date, typ, status, createdAt, updatedAt string
	var reviewer, note sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &date, &typ, &status, &a.Reason, &reviewer, &note, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.Type = schedule.ApplicationType(typ)
	a.Status = schedule.ApplicationStatus(status)
	a.ReviewerID = reviewer.String
	a.ReviewNote = note.String

	var err error
	if a.Date, err = calendar.ParseDate(date); err != nil {
		return nil, fmt.Errorf("application %s: %w", a.ID, err)
	}
	// Timestamps are informational; tolerate legacy formats.
	a.CreatedAt, _ = calendar.ParseDateTime(createdAt)
	a.UpdatedAt, _ = calendar.ParseDateTime(updatedAt)
	return &a, nil
}

func (r *repo) GetApplication(ctx context.Context, id string) (*schedule.ShiftApplication, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM shift_applications WHERE id = ?`, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("application", id)
	}
	return a, err
}

func (r *repo) ListApplications(ctx context.Context, f schedule.ApplicationFilter) ([]schedule.ShiftApplication, error) {
	var conds []string
	var args []any
	if f.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	conds, args = rangeConds(conds, args, "date", f.Range)

	rows, err := r.q.QueryContext(ctx, `SELECT `+applicationColumns+` FROM shift_applications`+whereClause(conds)+` ORDER BY date ASC, created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []schedule.ShiftApplication
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// SaveApplication inserts or updates an application by id.
func (r *repo) SaveApplication(ctx context.Context, a schedule.ShiftApplication) error {
	query := `
		INSERT INTO shift_applications (id, user_id, date, type, status, reason, reviewer_id, review_note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			reviewer_id = excluded.reviewer_id,
			review_note = excluded.review_note,
			updated_at = excluded.updated_at
	`
	created := a.CreatedAt.String()
	if created == "" {
		created = now()
	}
	updated := a.UpdatedAt.String()
	if updated == "" {
		updated = created
	}
	_, err := r.q.ExecContext(ctx, query,
		a.ID, a.UserID, a.Date.String(), string(a.Type), string(a.Status), a.Reason,
		nullString(a.ReviewerID), nullString(a.ReviewNote), created, updated,
	)
	return mapErr(err)
}

func (r *repo) DeleteApplication(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM shift_applications WHERE id = ?`, id)
	if err != nil {
		return mapErr(err)
	}
	return affectedOrNotFound(res, "application", id)
}
