/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Pre-built scenarios that populate the database with realistic data.
  Each scenario creates users, default shift patterns, holidays and a
  month of shifts relative to today, then exercises the leave paths so
  the UI has something to show.

AVAILABLE SCENARIOS:
  front-desk:    Round-the-clock desk, day and night shifts, quota of 2
  office-hours:  Weekday office, one pending application, quota of 1

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create users
 3. Import patterns via factory presets
 4. Add holidays
 5. Assign next month's shifts
 6. Register leave or file applications

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "front-desk"}

NOTE:
  Scenarios reset the database. Routes are only mounted in dev mode.

SEE ALSO:
  - factory/patterns.go: Pattern presets
  - server.go: Route registration
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "front-desk",
		Name:        "Front Desk",
		Description: "Day and night rotation with holidays, monthly quota of 2 days",
	},
	{
		ID:          "office-hours",
		Name:        "Office Hours",
		Description: "Weekday day shifts, quota of 1 day and a pending application",
	},
}

var scenarioAdmin = schedule.User{
	ID:     "admin",
	Name:   "Scheduler Admin",
	Status: schedule.UserActive,
	Role:   schedule.RoleSuperAdmin,
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario. The response
// carries a token for every seeded user.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var (
		scenario ScenarioDTO
		found    bool
	)
	for _, s := range scenarios {
		if s.ID == req.ScenarioID {
			scenario, found = s, true
		}
	}
	if !found {
		h.fail(w, r, &schedule.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", req.ScenarioID)}, "Unknown scenario")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		h.fail(w, r, err, "Failed to reset database")
		return
	}

	var users []schedule.User
	var err error
	switch scenario.ID {
	case "front-desk":
		users, err = h.loadFrontDeskScenario(ctx)
	case "office-hours":
		users, err = h.loadOfficeHoursScenario(ctx)
	}
	if err != nil {
		h.fail(w, r, err, "Failed to load scenario")
		return
	}
	h.currentScenario = scenario.ID

	resp := LoadScenarioResponse{Scenario: scenario}
	if h.Tokens != nil {
		resp.Tokens = make(map[string]string, len(users))
		for _, u := range users {
			token, err := h.Tokens.Issue(u)
			if err != nil {
				h.fail(w, r, err, "Failed to issue token")
				return
			}
			resp.Tokens[u.ID] = token
		}
	}

	h.requestLog(r).WithField("scenario", scenario.ID).Info("scenario loaded")
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SCENARIO: FRONT DESK
// =============================================================================

// Front desk staff cover every day, day and night, with a shared desk
// account that can hold shifts but not leave.
func (h *Handler) loadFrontDeskScenario(ctx context.Context) ([]schedule.User, error) {
	users := []schedule.User{
		scenarioAdmin,
		{ID: "alice", Name: "Alice Moreau", MonthlyLeaveLimit: 2},
		{ID: "bob", Name: "Bob Tanaka", MonthlyLeaveLimit: 2},
		{ID: "carol", Name: "Carol Nguyen"},
		{ID: "front-desk", Name: "Front Desk", Status: schedule.UserShared},
	}
	if err := h.seedUsers(ctx, users); err != nil {
		return nil, err
	}
	if err := h.seedPatterns(ctx, factory.StandardPatternsJSON()); err != nil {
		return nil, err
	}

	today := h.Service.Today()
	year := today.Year
	holidays := []calendar.Holiday{
		{Date: calendar.NewDate(year, 1, 1), Name: "New Year's Day", Recurring: true},
		{Date: calendar.NewDate(year, 5, 1), Name: "Labour Day", Recurring: true},
		{Date: calendar.NewDate(year, 12, 25), Name: "Christmas Day", Recurring: true},
	}
	for _, hol := range holidays {
		if _, err := h.Store.SaveHoliday(ctx, hol); err != nil {
			return nil, fmt.Errorf("holiday %s: %w", hol.Name, err)
		}
	}

	// Alternate day and night weeks for alice and bob; the desk account
	// takes weekend days.
	month := today.StartOfMonth().AddMonths(1)
	rotation := map[string]func(d calendar.Date, week int) (schedule.ShiftType, bool){
		"alice": func(d calendar.Date, week int) (schedule.ShiftType, bool) {
			return alternate(week%2 == 0), !d.IsWeekend()
		},
		"bob": func(d calendar.Date, week int) (schedule.ShiftType, bool) {
			return alternate(week%2 == 1), !d.IsWeekend()
		},
		"front-desk": func(d calendar.Date, _ int) (schedule.ShiftType, bool) {
			return schedule.ShiftDay, d.IsWeekend()
		},
	}
	for userID, pick := range rotation {
		var set []schedule.ShiftAssignment
		for i, d := range calendar.MonthRange(month).Days() {
			if st, ok := pick(d, i/7); ok {
				set = append(set, schedule.ShiftAssignment{UserID: userID, Date: d, ShiftType: st, Position: "reception"})
			}
		}
		if _, err := h.Service.AssignMonth(ctx, scenarioAdmin, userID, month, set); err != nil {
			return nil, fmt.Errorf("assign %s: %w", userID, err)
		}
	}

	// One day of immediate leave for alice in the free window.
	leaveDate, err := h.firstFreeWorkingDay(ctx, month)
	if err != nil {
		return nil, err
	}
	alice := users[1]
	if _, err := h.Service.RegisterImmediateLeave(ctx, alice, alice.ID, leaveDate); err != nil {
		return nil, fmt.Errorf("leave for alice: %w", err)
	}
	return users, nil
}

func alternate(day bool) schedule.ShiftType {
	if day {
		return schedule.ShiftDay
	}
	return schedule.ShiftNight
}

// =============================================================================
// SCENARIO: OFFICE HOURS
// =============================================================================

func (h *Handler) loadOfficeHoursScenario(ctx context.Context) ([]schedule.User, error) {
	users := []schedule.User{
		scenarioAdmin,
		{ID: "dana", Name: "Dana Kowalski", MonthlyLeaveLimit: 1},
		{ID: "eli", Name: "Eli Haddad", MonthlyLeaveLimit: 1},
	}
	if err := h.seedUsers(ctx, users); err != nil {
		return nil, err
	}
	if err := h.seedPatterns(ctx, factory.OfficeHoursPatternsJSON()); err != nil {
		return nil, err
	}

	// Working days only, from today through the end of next month.
	today := h.Service.Today()
	for _, month := range []calendar.Date{today.StartOfMonth(), today.StartOfMonth().AddMonths(1)} {
		for _, u := range users[1:] {
			var set []schedule.ShiftAssignment
			for _, d := range calendar.MonthRange(month).Days() {
				if d.Before(today) {
					continue
				}
				rest, err := calendar.IsRestDay(ctx, h.Store, d)
				if err != nil {
					return nil, err
				}
				if !rest {
					set = append(set, schedule.ShiftAssignment{UserID: u.ID, Date: d, ShiftType: schedule.ShiftDay})
				}
			}
			if _, err := h.Service.AssignMonth(ctx, scenarioAdmin, u.ID, month, set); err != nil {
				return nil, fmt.Errorf("assign %s: %w", u.ID, err)
			}
		}
	}

	// A pending application three days out, when that is inside the window.
	dana := users[1]
	target := today.AddDays(3)
	c, err := h.Service.Classify(ctx, target)
	if err != nil {
		return nil, err
	}
	if c.RequiresApplication() {
		if _, err := h.Service.CreateApplication(ctx, dana, schedule.ApplicationRequest{
			UserID: dana.ID,
			Date:   target,
			Reason: "Dentist appointment",
		}); err != nil {
			return nil, fmt.Errorf("application for dana: %w", err)
		}
	}
	return users, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// seedUsers saves users, filling in default status and role in place.
func (h *Handler) seedUsers(ctx context.Context, users []schedule.User) error {
	for i := range users {
		u := &users[i]
		if u.Status == "" {
			u.Status = schedule.UserActive
		}
		if u.Role == "" {
			u.Role = schedule.RoleMember
		}
		if err := h.Service.SaveUser(ctx, scenarioAdmin, *u); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	return nil
}

func (h *Handler) seedPatterns(ctx context.Context, preset string) error {
	patterns, err := h.Patterns.ParsePatterns([]byte(preset))
	if err != nil {
		return err
	}
	return h.savePatterns(ctx, patterns)
}

// firstFreeWorkingDay finds the first non-rest day of month that is past
// the application window.
func (h *Handler) firstFreeWorkingDay(ctx context.Context, month calendar.Date) (calendar.Date, error) {
	for _, d := range calendar.MonthRange(month).Days() {
		c, err := h.Service.Classify(ctx, d)
		if err != nil {
			return calendar.Date{}, err
		}
		if c.Past() || c.RequiresApplication() {
			continue
		}
		rest, err := calendar.IsRestDay(ctx, h.Store, d)
		if err != nil {
			return calendar.Date{}, err
		}
		if !rest {
			return d, nil
		}
	}
	return calendar.Date{}, fmt.Errorf("no free working day in %s", month.MonthKey())
}
