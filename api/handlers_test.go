/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Authentication (bearer token, dev header, public routes)
- Immediate leave and applications through the REST surface
- Error to status mapping, including deadline hints
- Holiday and pattern imports, stats export, deadline setting
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/auth"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/logging"
	"github.com/warp/shift-engine/report"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// TEST FIXTURE
//
// Today is Monday 2025-06-02 with a 14 day deadline: 06-02..06-16 need an
// application, 06-17 onward take immediate registration.
// =============================================================================

type apiFixture struct {
	h      *Handler
	router http.Handler
	store  *sqlite.Store
	tokens *auth.Manager
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	log := logging.Discard()
	svc := schedule.NewService(store, schedule.DefaultConfig(),
		schedule.WithClock(func() time.Time { return now }),
		schedule.WithLogger(log),
	)
	tokens := auth.NewManager("handler-test-secret-0123", "shift-engine", time.Hour)

	h := NewHandler(svc, store, tokens, log)
	h.DevMode = true

	ctx := context.Background()
	for _, u := range []schedule.User{
		{ID: "admin", Name: "Admin", Status: schedule.UserActive, Role: schedule.RoleSuperAdmin},
		{ID: "alice", Name: "Alice", MonthlyLeaveLimit: 2, Status: schedule.UserActive, Role: schedule.RoleMember},
		{ID: "bob", Name: "Bob", Status: schedule.UserActive, Role: schedule.RoleMember},
	} {
		require.NoError(t, store.SaveUser(ctx, u))
	}

	return &apiFixture{
		h:      h,
		router: NewRouter(h, config.ServerConfig{}),
		store:  store,
		tokens: tokens,
	}
}

// do sends a request as the given user id; an empty id sends no
// credentials. body may be a string (sent raw) or a value to encode.
func (f *apiFixture) do(t *testing.T, method, path string, body any, as string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if as != "" {
		token, err := f.tokens.Issue(schedule.User{ID: as})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeAs[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

func TestAuth_PublicAndProtectedRoutes(t *testing.T) {
	f := newAPIFixture(t)

	// GIVEN: No credentials
	// THEN: healthz answers, protected routes refuse
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/healthz", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/me", nil, "").Code)

	// WHEN: A malformed bearer token is sent
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// WHEN: A valid token names a user the engine doesn't know
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/api/me", nil, "ghost").Code)
}

func TestAuth_DevHeader(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Outside dev mode the header is ignored
	f.h.DevMode = false
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_ReturnsQuota(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/me", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	me := decodeAs[MeDTO](t, rec)
	assert.Equal(t, "alice", me.User.ID)
	assert.Equal(t, "2025-06-02", me.Today.String())
	assert.Equal(t, 14, me.DeadlineDays)
	require.NotNil(t, me.Remaining)
	require.NotNil(t, me.Remaining.Remaining)
	assert.Equal(t, 2, *me.Remaining.Remaining)
}

// =============================================================================
// IMMEDIATE LEAVE
// =============================================================================

func TestRegisterLeave_CreatedThenIdempotent(t *testing.T) {
	f := newAPIFixture(t)

	// WHEN: alice registers a free-window date twice
	rec := f.do(t, http.MethodPost, "/api/leave", map[string]string{"date": "2025-06-17"}, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decodeAs[schedule.LeaveResult](t, rec)
	assert.True(t, first.Created)
	assert.Equal(t, 1, *first.Balance.Remaining)

	rec = f.do(t, http.MethodPost, "/api/leave", map[string]string{"date": "2025-06-17"}, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeAs[schedule.LeaveResult](t, rec)
	assert.False(t, second.Created)
	assert.Equal(t, first.Marker.ID, second.Marker.ID)

	// THEN: undo restores the day
	rec = f.do(t, http.MethodDelete, "/api/leave/2025-06-17", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decodeAs[schedule.LeaveBalance](t, rec)
	assert.Equal(t, 2, *balance.Remaining)
}

func TestRegisterLeave_InsideWindow_ConflictWithHint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/leave", map[string]string{"date": "2025-06-05"}, "alice")
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decodeAs[ErrorResponse](t, rec)
	assert.Equal(t, schedule.HintApplication, resp.Hint)
	assert.Equal(t, string(schedule.WindowRequiresApplication), resp.Window)
}

func TestRegisterLeave_BalanceExhausted(t *testing.T) {
	f := newAPIFixture(t)

	for _, d := range []string{"2025-06-17", "2025-06-18"} {
		rec := f.do(t, http.MethodPost, "/api/leave", map[string]string{"date": d}, "alice")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodPost, "/api/leave", map[string]string{"date": "2025-06-19"}, "alice")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRegisterLeave_ForOtherUser_Forbidden(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/leave", map[string]string{"user_id": "alice", "date": "2025-06-17"}, "bob")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admins may register on anyone's behalf
	rec = f.do(t, http.MethodPost, "/api/leave", map[string]string{"user_id": "alice", "date": "2025-06-17"}, "admin")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRegisterLeave_BadBody(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/leave", `{"date": "17/06/2025"}`, "alice")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "body", decodeAs[ErrorResponse](t, rec).Field)

	rec = f.do(t, http.MethodPost, "/api/leave", `{"date": "2025-06-17", "extra": 1}`, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// APPLICATIONS
// =============================================================================

func TestApplications_CreateApproveList(t *testing.T) {
	f := newAPIFixture(t)

	// GIVEN: alice applies for a date inside the window
	rec := f.do(t, http.MethodPost, "/api/applications",
		map[string]string{"date": "2025-06-10", "reason": "Family event"}, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	app := decodeAs[schedule.ShiftApplication](t, rec)
	assert.Equal(t, schedule.ApplicationPending, app.Status)
	assert.Equal(t, schedule.ApplicationLeave, app.Type)

	// WHEN: alice tries to approve her own application
	rec = f.do(t, http.MethodPost, "/api/applications/"+app.ID+"/approve", nil, "alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// WHEN: admin approves
	rec = f.do(t, http.MethodPost, "/api/applications/"+app.ID+"/approve", nil, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, schedule.ApplicationApproved, decodeAs[schedule.ShiftApplication](t, rec).Status)

	// THEN: the day is charged
	rec = f.do(t, http.MethodGet, "/api/users/alice/remaining?period=2025-06-01", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, *decodeAs[schedule.LeaveBalance](t, rec).Remaining)

	// AND: bob sees none of alice's applications, admin sees them all
	rec = f.do(t, http.MethodGet, "/api/applications", nil, "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeAs[[]schedule.ShiftApplication](t, rec))

	rec = f.do(t, http.MethodGet, "/api/applications?status=approved", nil, "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]schedule.ShiftApplication](t, rec), 1)
}

func TestApplications_OutsideWindow_HintImmediate(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/applications",
		map[string]string{"date": "2025-06-20", "reason": "Trip"}, "alice")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, schedule.HintImmediate, decodeAs[ErrorResponse](t, rec).Hint)
}

func TestApplications_RejectWithAndWithoutBody(t *testing.T) {
	f := newAPIFixture(t)

	var ids []string
	for _, d := range []string{"2025-06-10", "2025-06-11"} {
		rec := f.do(t, http.MethodPost, "/api/applications",
			map[string]string{"date": d, "reason": "Errand"}, "alice")
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decodeAs[schedule.ShiftApplication](t, rec).ID)
	}

	rec := f.do(t, http.MethodPost, "/api/applications/"+ids[0]+"/reject",
		map[string]string{"reason": "  short staffed  "}, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rejected := decodeAs[schedule.ShiftApplication](t, rec)
	assert.Equal(t, schedule.ApplicationRejected, rejected.Status)
	assert.Equal(t, "short staffed", rejected.ReviewNote)

	rec = f.do(t, http.MethodPost, "/api/applications/"+ids[1]+"/reject", nil, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Deleting a pending or rejected application needs no body either
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/applications/"+ids[0], nil, "alice").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/applications/"+ids[0], nil, "alice").Code)
}

// =============================================================================
// SHIFTS, FLAGS, PATTERNS
// =============================================================================

const patternSet = `{"patterns": [
  {"category": "weekday", "days": ["all"], "shift_type": "day", "start": "09:00", "end": "18:00"},
  {"category": "holiday", "days": ["all"], "shift_type": "day", "start": "10:00", "end": "16:00"}
]}`

func TestPatterns_ImportThenAssign(t *testing.T) {
	f := newAPIFixture(t)

	// Members can't import
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/patterns/import", patternSet, "alice").Code)

	rec := f.do(t, http.MethodPost, "/api/patterns/import", patternSet, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 14, decodeAs[PatternImportResponse](t, rec).Imported)

	rec = f.do(t, http.MethodGet, "/api/patterns", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	// WHEN: alice takes a day shift in the free window
	rec = f.do(t, http.MethodPost, "/api/shifts",
		map[string]string{"date": "2025-06-20", "shift_type": "day"}, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shift := decodeAs[schedule.Shift](t, rec)
	assert.Equal(t, "2025-06-20 09:00:00", shift.Start.String())
	assert.Equal(t, "2025-06-20 18:00:00", shift.End.String())

	// THEN: it is listed for June
	rec = f.do(t, http.MethodGet, "/api/shifts?from=2025-06-01&to=2025-06-30", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]schedule.Shift](t, rec), 1)
}

func TestPatterns_InvalidSet(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/patterns/import", `{"patterns": [{"category": "weekday"}]}`, "admin")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeAs[ErrorResponse](t, rec).Field)
}

func TestSetFlag(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/patterns/import", patternSet, "admin").Code)

	rec := f.do(t, http.MethodPost, "/api/shifts",
		map[string]string{"date": "2025-06-10", "shift_type": "day", "user_id": "alice"}, "admin")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shift := decodeAs[schedule.Shift](t, rec)

	// Unknown flag
	rec = f.do(t, http.MethodPut, "/api/shifts/"+shift.ID+"/flags/overtime", map[string]bool{"value": true}, "alice")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "flag", decodeAs[ErrorResponse](t, rec).Field)

	// Missing value
	rec = f.do(t, http.MethodPut, "/api/shifts/"+shift.ID+"/flags/step_out", `{}`, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Inside the window both flags are editable by the owner
	rec = f.do(t, http.MethodPut, "/api/shifts/"+shift.ID+"/flags/step_out", map[string]bool{"value": true}, "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeAs[schedule.Shift](t, rec)
	assert.True(t, updated.StepOut)
	assert.False(t, updated.MealTicket)
}

func TestAssignMonth_AdminOnly(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/patterns/import", patternSet, "admin").Code)

	body := MonthShiftsRequest{Shifts: []ShiftRequest{
		{Date: calendar.MustParseDate("2025-07-01"), ShiftType: schedule.ShiftDay},
		{Date: calendar.MustParseDate("2025-07-02"), ShiftType: schedule.ShiftDay},
	}}
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPut, "/api/users/alice/months/2025-07/shifts", body, "alice").Code)

	rec := f.do(t, http.MethodPut, "/api/users/alice/months/2025-07/shifts", body, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decodeAs[schedule.MonthResult](t, rec)
	assert.Equal(t, 2, result.Created)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/users/alice/months/july/shifts", body, "admin").Code)
}

func TestShiftDetails_AddAndList(t *testing.T) {
	f := newAPIFixture(t)

	detail := map[string]string{
		"date":       "2025-06-20",
		"type":       "work",
		"status":     "scheduled",
		"start_time": "2025-06-20 09:00:00",
		"end_time":   "2025-06-20 17:00:00",
	}
	rec := f.do(t, http.MethodPost, "/api/shift-details", detail, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeAs[schedule.ShiftDetail](t, rec)

	rec = f.do(t, http.MethodGet, "/api/shift-details?from=2025-06-20&to=2025-06-20", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]schedule.ShiftDetail](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/shift-details?from=2025-06-20&to=2024-01-01", nil, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/shift-details/"+created.ID, nil, "alice").Code)
}

// =============================================================================
// HOLIDAYS, STATS, SETTINGS
// =============================================================================

const holidayFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//holidays//EN
BEGIN:VEVENT
UID:founders@test
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250612
DTEND;VALUE=DATE:20250613
SUMMARY:Founders Day
END:VEVENT
END:VCALENDAR
`

func TestHolidays_ImportListDelete(t *testing.T) {
	f := newAPIFixture(t)
	feed := strings.ReplaceAll(holidayFeed, "\n", "\r\n")

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/holidays/import", feed, "alice").Code)

	rec := f.do(t, http.MethodPost, "/api/holidays/import", feed, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	imported := decodeAs[HolidayImportResponse](t, rec)
	require.Equal(t, 1, imported.Imported)
	assert.Equal(t, "Founders Day", imported.Holidays[0].Name)

	rec = f.do(t, http.MethodGet, "/api/holidays?year=2025", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]calendar.Holiday](t, rec), 1)

	// The holiday is a rest day, so leave there is free
	rec = f.do(t, http.MethodPost, "/api/applications",
		map[string]string{"date": "2025-06-12", "reason": "Holiday"}, "alice")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/holidays?year=abc", nil, "alice").Code)
	assert.Equal(t, http.StatusNoContent,
		f.do(t, http.MethodDelete, "/api/holidays/"+imported.Holidays[0].ID, nil, "admin").Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(t, http.MethodDelete, "/api/holidays/"+imported.Holidays[0].ID, nil, "admin").Code)
}

func TestStats_OwnAndExport(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/leave", map[string]string{"date": "2025-06-17"}, "alice").Code)

	rec := f.do(t, http.MethodGet, "/api/stats?month=2025-06", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bucket := decodeAs[schedule.StatsBucket](t, rec)
	assert.Equal(t, "alice", bucket.UserID)
	assert.Equal(t, 1, bucket.LeaveCount)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/stats?month=2025-06&user_id=bob", nil, "alice").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/stats/export?month=2025-06", nil, "alice").Code)

	rec = f.do(t, http.MethodGet, "/api/stats/export?month=2025-06", nil, "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "shift-stats-2025-06.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestDeadlineSetting(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPut, "/api/settings/deadline", map[string]int{"days": 3}, "alice").Code)

	rec := f.do(t, http.MethodPut, "/api/settings/deadline", map[string]int{"days": 3}, "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/settings/deadline", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, *decodeAs[DeadlineDTO](t, rec).Days)

	// 2025-06-10 is now free for immediate registration
	rec = f.do(t, http.MethodGet, "/api/classify?date=2025-06-10", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schedule.WindowFree, decodeAs[schedule.Classification](t, rec).Window)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenario_FrontDesk(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "front-desk"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeAs[LoadScenarioResponse](t, rec)
	assert.Contains(t, resp.Tokens, "alice")

	// Weekday shifts for alice in July, one of them covered by leave
	rec = f.do(t, http.MethodGet, "/api/shifts?from=2025-07-01&to=2025-07-31", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAs[[]schedule.Shift](t, rec), 23)

	rec = f.do(t, http.MethodGet, "/api/users/alice/remaining?period=2025-07-01", nil, "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeAs[schedule.LeaveBalance](t, rec).Used)

	rec = f.do(t, http.MethodGet, "/api/scenarios/current", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "front-desk", decodeAs[ScenarioDTO](t, rec).ID)
}

func TestScenario_OfficeHours(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "office-hours"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/applications?status=pending", nil, "admin")
	require.Equal(t, http.StatusOK, rec.Code)
	apps := decodeAs[[]schedule.ShiftApplication](t, rec)
	require.Len(t, apps, 1)
	assert.Equal(t, "dana", apps[0].UserID)
	assert.Equal(t, "2025-06-05", apps[0].Date.String())
}

func TestScenario_UnknownAndDisabled(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/scenarios/load", map[string]string{"scenario_id": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Outside dev mode the scenario routes aren't mounted
	f.h.DevMode = false
	router := NewRouter(f.h, config.ServerConfig{})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/scenarios", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&schedule.ValidationError{Field: "date", Message: "bad"}, http.StatusBadRequest},
		{&schedule.AuthorizationError{ActorID: "bob"}, http.StatusForbidden},
		{&schedule.NotFoundError{Kind: "shift", ID: "x"}, http.StatusNotFound},
		{&schedule.DeadlineError{Hint: schedule.HintHistorical}, http.StatusConflict},
		{&schedule.BalanceExhaustedError{UserID: "alice"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("lock: %w", schedule.ErrConcurrencyConflict), http.StatusServiceUnavailable},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestFail_InternalErrorHidesDetails(t *testing.T) {
	f := newAPIFixture(t)

	rec := httptest.NewRecorder()
	f.h.fail(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), errors.New("secret dsn"), "Failed")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret dsn")

	rec = httptest.NewRecorder()
	f.h.fail(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil), schedule.ErrConcurrencyConflict, "Busy")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
