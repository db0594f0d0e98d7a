package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// TEST FIXTURE
//
// The clock starts on Monday 2025-06-02 with a 14 day deadline, so
// 2025-06-02..2025-06-16 require an application and 2025-06-17 onward
// are free.
// =============================================================================

var (
	admin = schedule.User{ID: "admin", Name: "Admin", Status: schedule.UserActive, Role: schedule.RoleSuperAdmin}
	alice = schedule.User{ID: "alice", Name: "Alice", MonthlyLeaveLimit: 2, Status: schedule.UserActive, Role: schedule.RoleMember}
	bob   = schedule.User{ID: "bob", Name: "Bob", Status: schedule.UserActive, Role: schedule.RoleMember}
	front = schedule.User{ID: "front-desk", Name: "Front desk", MonthlyLeaveLimit: 3, Status: schedule.UserShared, Role: schedule.RoleMember}
)

type fixture struct {
	svc   *schedule.Service
	store *sqlite.Store
	now   time.Time
}

func (f *fixture) setToday(date string) {
	d := calendar.MustParseDate(date)
	f.now = time.Date(d.Year, d.Month, d.Day, 9, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store}
	f.setToday("2025-06-02")
	f.svc = schedule.NewService(store, schedule.DefaultConfig(),
		schedule.WithClock(func() time.Time { return f.now }),
	)

	ctx := context.Background()
	for _, u := range []schedule.User{admin, alice, bob, front} {
		require.NoError(t, store.SaveUser(ctx, u))
	}
	return f
}

// seedPatterns stores day and night patterns for every weekday, plus a
// shorter day pattern for holidays.
func (f *fixture) seedPatterns(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for dow := time.Sunday; dow <= time.Saturday; dow++ {
		for _, p := range []schedule.DefaultShiftPattern{
			{Category: calendar.CategoryWeekday, DayOfWeek: dow, ShiftType: schedule.ShiftDay, Start: calendar.MustParseClock("09:00"), End: calendar.MustParseClock("18:00")},
			{Category: calendar.CategoryWeekday, DayOfWeek: dow, ShiftType: schedule.ShiftNight, Start: calendar.MustParseClock("22:00"), End: calendar.MustParseClock("06:00")},
			{Category: calendar.CategoryHoliday, DayOfWeek: dow, ShiftType: schedule.ShiftDay, Start: calendar.MustParseClock("10:00"), End: calendar.MustParseClock("16:00")},
		} {
			require.NoError(t, f.store.SavePattern(ctx, p))
		}
	}
}

func (f *fixture) details(t *testing.T, userID, date string) []schedule.ShiftDetail {
	t.Helper()
	d := calendar.MustParseDate(date)
	out, err := f.store.ListShiftDetails(context.Background(), schedule.DetailFilter{UserID: userID, Range: calendar.Range{From: d, To: d}})
	require.NoError(t, err)
	return out
}

func (f *fixture) remaining(t *testing.T, userID, date string) schedule.LeaveBalance {
	t.Helper()
	b, err := f.svc.RemainingLeave(context.Background(), userID, calendar.MustParseDate(date))
	require.NoError(t, err)
	return b
}

func day(s string) calendar.Date { return calendar.MustParseDate(s) }

func deadlineHint(t *testing.T, err error) string {
	t.Helper()
	var de *schedule.DeadlineError
	require.ErrorAs(t, err, &de)
	return de.Hint
}
