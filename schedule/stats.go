package schedule

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-engine/calendar"
)

// =============================================================================
// MONTHLY STATS AGGREGATOR - read side only
// =============================================================================

// StatsBucket is one user's aggregate for one month.
type StatsBucket struct {
	UserID string `json:"user_id"`
	Month  string `json:"month"`

	Days                 int `json:"days"`
	ScheduledWorkMinutes int `json:"scheduled_work_minutes"`
	WorkMinutes          int `json:"work_minutes"`
	Minutes              int `json:"minutes"`
	BreakMinutes         int `json:"break_minutes"`
	AbsentCount          int `json:"absent_count"`
	LeaveCount           int `json:"leave_count"`
	TransportCount       int `json:"transport_count"`
	StepOutCount         int `json:"step_out_count"`
	MealTicketCount      int `json:"meal_ticket_count"`

	ScheduledHours decimal.Decimal `json:"scheduled_hours"`
	WorkHours      decimal.Decimal `json:"work_hours"`
	BreakHours     decimal.Decimal `json:"break_hours"`
}

var sixty = decimal.NewFromInt(60)

func hours(minutes int) decimal.Decimal {
	return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2)
}

// Aggregate folds details and shifts of one user's month into a bucket.
// Rows outside the month or belonging to other users are ignored. On leave
// dates, scheduled details and shift flags don't count.
func Aggregate(userID string, month calendar.Date, details []ShiftDetail, shifts []Shift) StatsBucket {
	r := calendar.MonthRange(month)
	b := StatsBucket{UserID: userID, Month: month.MonthKey()}

	mine := func(uid string, d calendar.Date) bool { return uid == userID && r.Contains(d) }

	leaveDays := make(map[calendar.Date]bool)
	for _, d := range details {
		if mine(d.UserID, d.Date) && d.IsLeaveMarker() {
			leaveDays[d.Date] = true
		}
	}

	workDays := make(map[calendar.Date]bool)
	outingDays := make(map[calendar.Date]bool)
	actualOff := 0

	for _, d := range details {
		if !mine(d.UserID, d.Date) {
			continue
		}
		if leaveDays[d.Date] && d.Status == DetailScheduled {
			continue
		}
		if d.Status == DetailAbsent {
			b.AbsentCount++
		}
		if d.IsLeaveMarker() {
			b.LeaveCount++
		}

		switch d.Type {
		case DetailWork:
			if d.Status != DetailAbsent {
				workDays[d.Date] = true
			}
			switch d.Status {
			case DetailScheduled:
				b.ScheduledWorkMinutes += d.Minutes()
			case DetailActual:
				b.WorkMinutes += d.Minutes()
			}
		case DetailBreak:
			b.BreakMinutes += d.Minutes()
			if d.Status == DetailActual {
				actualOff += d.Minutes()
			}
		case DetailOuting:
			outingDays[d.Date] = true
			if d.Status == DetailActual {
				actualOff += d.Minutes()
			}
		}
	}

	for _, sh := range shifts {
		if !mine(sh.UserID, sh.Date) || leaveDays[sh.Date] {
			continue
		}
		if sh.StepOut {
			b.StepOutCount++
		}
		if sh.MealTicket {
			b.MealTicketCount++
		}
	}

	b.Days = len(workDays)
	b.TransportCount = len(outingDays)
	b.Minutes = b.WorkMinutes - actualOff
	if b.Minutes < 0 {
		b.Minutes = 0
	}
	b.ScheduledHours = hours(b.ScheduledWorkMinutes)
	b.WorkHours = hours(b.WorkMinutes)
	b.BreakHours = hours(b.BreakMinutes)
	return b
}

// MonthlyStats aggregates one user's month. Members may only read their
// own stats.
func (s *Service) MonthlyStats(ctx context.Context, actor User, userID string, month calendar.Date) (StatsBucket, error) {
	if !actor.IsSuperAdmin() && actor.ID != userID {
		return StatsBucket{}, &AuthorizationError{ActorID: actor.ID, Action: "read other users' stats"}
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return StatsBucket{}, err
	}
	r := calendar.MonthRange(month)
	details, err := s.store.ListShiftDetails(ctx, DetailFilter{UserID: userID, Range: r})
	if err != nil {
		return StatsBucket{}, err
	}
	shifts, err := s.store.ListShifts(ctx, ShiftFilter{UserID: userID, Range: r})
	if err != nil {
		return StatsBucket{}, err
	}
	return Aggregate(userID, month, details, shifts), nil
}

// AllMonthlyStats aggregates the month for every non-retired user, sorted
// by user id. Super admins only.
func (s *Service) AllMonthlyStats(ctx context.Context, actor User, month calendar.Date) ([]StatsBucket, error) {
	if err := requireAdmin(actor, "read everyone's stats"); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	r := calendar.MonthRange(month)
	details, err := s.store.ListShiftDetails(ctx, DetailFilter{Range: r})
	if err != nil {
		return nil, err
	}
	shifts, err := s.store.ListShifts(ctx, ShiftFilter{Range: r})
	if err != nil {
		return nil, err
	}

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	out := make([]StatsBucket, 0, len(users))
	for _, u := range users {
		if u.Status == UserRetired {
			continue
		}
		out = append(out, Aggregate(u.ID, month, details, shifts))
	}
	return out, nil
}
