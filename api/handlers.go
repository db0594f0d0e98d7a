/*
handlers.go - HTTP API handlers for the shift and leave engine

PURPOSE:
  Exposes schedule.Service via REST. Handlers decode the request, resolve
  the calling user from the request context, delegate to the service and
  map domain errors onto HTTP statuses.

ENDPOINTS:
  Users:
    GET    /api/me                              Caller and this month's quota
    PUT    /api/users/{id}                      Upsert user (admin)
    GET    /api/users/{id}/remaining            Leave balance for a period
    PUT    /api/users/{id}/months/{month}/shifts  Replace a month (admin)

  Shifts:
    GET    /api/shifts                          List shifts in a range
    POST   /api/shifts                          Assign a shift
    GET    /api/shifts/{id}                     Get a shift
    PUT    /api/shifts/{id}/flags/{flag}        Set step_out / meal_ticket

  Shift details:
    GET    /api/shift-details                   List details in a range
    POST   /api/shift-details                   Add a detail
    PUT    /api/shift-details/{id}              Retime a detail
    DELETE /api/shift-details/{id}              Delete a detail

  Leave:
    POST   /api/leave                           Immediate registration
    DELETE /api/leave/{date}                    Undo immediate registration
    GET    /api/applications                    List applications
    POST   /api/applications                    File an application
    GET    /api/applications/{id}               Get an application
    POST   /api/applications/{id}/approve       Approve (admin)
    POST   /api/applications/{id}/reject        Reject (admin)
    DELETE /api/applications/{id}               Withdraw

  Stats, calendar, settings: see server.go.

ERROR HANDLING:
  - 400: validation failure (field in body)
  - 401: missing or invalid token
  - 403: authorization failure
  - 404: record not found
  - 409: deadline window violation (hint in body)
  - 422: leave balance exhausted
  - 503: lock contention after retries (Retry-After set)
  - 500: anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router and middleware
  - schedule/service.go: Domain operations
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
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/auth"
	"github.com/warp/shift-engine/calendar"
	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/report"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/store/sqlite"
)

// maxBodyBytes caps request bodies, including iCalendar imports.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *schedule.Service
	Store    *sqlite.Store
	Patterns *factory.PatternFactory
	Tokens   *auth.Manager
	DevMode  bool

	log *logrus.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over the service and its store.
func NewHandler(svc *schedule.Service, store *sqlite.Store, tokens *auth.Manager, log *logrus.Logger) *Handler {
	return &Handler{
		Service:  svc,
		Store:    store,
		Patterns: factory.NewPatternFactory(),
		Tokens:   tokens,
		log:      log,
	}
}

// actor returns the authenticated caller. The auth middleware guarantees
// one is present on protected routes.
func actor(r *http.Request) schedule.User {
	u, _ := auth.CurrentUser(r.Context())
	return u
}

// Health reports whether the database answers.
// GET /api/healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// Me returns the caller, today's date, the deadline setting and the
// caller's remaining leave this month.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	me := actor(r)
	today := h.Service.Today()

	days, err := h.Service.DeadlineDays(ctx)
	if err != nil {
		h.fail(w, r, err, "Failed to read deadline")
		return
	}

	dto := MeDTO{User: me, Today: today, DeadlineDays: days}
	if me.Status == schedule.UserActive {
		balance, err := h.Service.RemainingLeave(ctx, me.ID, today)
		if err != nil {
			h.fail(w, r, err, "Failed to compute remaining leave")
			return
		}
		dto.Remaining = &balance
	}
	writeJSON(w, http.StatusOK, dto)
}

// SaveUser upserts a user's local projection.
// PUT /api/users/{id}
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	var req SaveUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	u := schedule.User{
		ID:                chi.URLParam(r, "id"),
		Name:              strings.TrimSpace(req.Name),
		MonthlyLeaveLimit: req.MonthlyLeaveLimit,
		Status:            req.Status,
		Role:              req.Role,
	}
	if err := h.Service.SaveUser(r.Context(), actor(r), u); err != nil {
		h.fail(w, r, err, "Failed to save user")
		return
	}
	saved, err := h.Service.GetUser(r.Context(), u.ID)
	if err != nil {
		h.fail(w, r, err, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// GetRemaining returns the leave balance for the month containing ?period
// (default today). Members may only read their own.
// GET /api/users/{id}/remaining?period=YYYY-MM-DD
func (h *Handler) GetRemaining(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	me := actor(r)
	if !me.IsSuperAdmin() && me.ID != userID {
		h.fail(w, r, &schedule.AuthorizationError{ActorID: me.ID, Action: "read other users' balances"}, "Forbidden")
		return
	}
	period, err := queryDate(r, "period", h.Service.Today())
	if err != nil {
		h.fail(w, r, err, "Invalid period")
		return
	}
	balance, err := h.Service.RemainingLeave(r.Context(), userID, period)
	if err != nil {
		h.fail(w, r, err, "Failed to compute remaining leave")
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// ListShifts lists shifts in [from, to] for ?user_id, the caller when
// omitted, or everyone with user_id=all.
// GET /api/shifts?user_id=&from=&to=
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	rng, err := queryRange(r, h.Service.Today())
	if err != nil {
		h.fail(w, r, err, "Invalid range")
		return
	}
	shifts, err := h.Service.ListShifts(r.Context(), queryUser(r), rng)
	if err != nil {
		h.fail(w, r, err, "Failed to list shifts")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(shifts))
}

// GetShift returns one shift.
// GET /api/shifts/{id}
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	shift, err := h.Service.GetShift(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Failed to get shift")
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// AssignShift creates or updates a shift from the default pattern or from
// explicit clock times.
// POST /api/shifts
func (h *Handler) AssignShift(w http.ResponseWriter, r *http.Request) {
	var req ShiftRequest
	if !h.decode(w, r, &req) {
		return
	}
	me := actor(r)
	if req.UserID == "" {
		req.UserID = me.ID
	}
	shift, err := h.Service.AssignShift(r.Context(), me, req.assignment())
	if err != nil {
		h.fail(w, r, err, "Failed to assign shift")
		return
	}
	writeJSON(w, http.StatusCreated, shift)
}

// AssignMonth replaces a user's month with the given set of shifts.
// PUT /api/users/{id}/months/{month}/shifts
func (h *Handler) AssignMonth(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	month, err := calendar.ParseMonth(chi.URLParam(r, "month"))
	if err != nil {
		h.fail(w, r, &schedule.ValidationError{Field: "month", Message: err.Error()}, "Invalid month")
		return
	}
	var req MonthShiftsRequest
	if !h.decode(w, r, &req) {
		return
	}
	assignments := make([]schedule.ShiftAssignment, len(req.Shifts))
	for i, s := range req.Shifts {
		assignments[i] = s.assignment()
	}

	result, err := h.Service.AssignMonth(r.Context(), actor(r), userID, month, assignments)
	if err != nil {
		h.fail(w, r, err, "Failed to assign month")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// SetFlag sets step_out or meal_ticket on a shift.
// PUT /api/shifts/{id}/flags/{flag}
func (h *Handler) SetFlag(w http.ResponseWriter, r *http.Request) {
	flag, err := schedule.ParseFlag(chi.URLParam(r, "flag"))
	if err != nil {
		h.fail(w, r, err, "Unknown flag")
		return
	}
	var req FlagRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Value == nil {
		h.fail(w, r, &schedule.ValidationError{Field: "value", Message: "is required"}, "Invalid request body")
		return
	}

	shift, err := h.Service.SetFlag(r.Context(), actor(r), chi.URLParam(r, "id"), flag, *req.Value)
	if err != nil {
		h.fail(w, r, err, "Failed to set flag")
		return
	}
	writeJSON(w, http.StatusOK, shift)
}

// =============================================================================
// SHIFT DETAIL HANDLERS
// =============================================================================

// ListShiftDetails lists details in [from, to].
// GET /api/shift-details?user_id=&from=&to=
func (h *Handler) ListShiftDetails(w http.ResponseWriter, r *http.Request) {
	rng, err := queryRange(r, h.Service.Today())
	if err != nil {
		h.fail(w, r, err, "Invalid range")
		return
	}
	details, err := h.Service.ListShiftDetails(r.Context(), queryUser(r), rng)
	if err != nil {
		h.fail(w, r, err, "Failed to list shift details")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(details))
}

// AddShiftDetail adds a typed sub-interval to a user's day.
// POST /api/shift-details
func (h *Handler) AddShiftDetail(w http.ResponseWriter, r *http.Request) {
	var req DetailRequest
	if !h.decode(w, r, &req) {
		return
	}
	me := actor(r)
	if req.UserID == "" {
		req.UserID = me.ID
	}
	detail, err := h.Service.AddShiftDetail(r.Context(), me, schedule.DetailInput{
		UserID: req.UserID,
		Date:   req.Date,
		Type:   req.Type,
		Status: req.Status,
		Start:  req.Start,
		End:    req.End,
	})
	if err != nil {
		h.fail(w, r, err, "Failed to add shift detail")
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// UpdateShiftDetail retimes a detail.
// PUT /api/shift-details/{id}
func (h *Handler) UpdateShiftDetail(w http.ResponseWriter, r *http.Request) {
	var req DetailTimesRequest
	if !h.decode(w, r, &req) {
		return
	}
	detail, err := h.Service.UpdateShiftDetailTimes(r.Context(), actor(r), chi.URLParam(r, "id"), req.Start, req.End)
	if err != nil {
		h.fail(w, r, err, "Failed to update shift detail")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DeleteShiftDetail removes a detail. Leave markers are removed through
// the leave endpoints instead.
// DELETE /api/shift-details/{id}
func (h *Handler) DeleteShiftDetail(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteShiftDetail(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "Failed to delete shift detail")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// RegisterLeave registers immediate leave for a date in the free window.
// Returns 201 when a marker was placed and 200 when it already existed.
// POST /api/leave
func (h *Handler) RegisterLeave(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	me := actor(r)
	if req.UserID == "" {
		req.UserID = me.ID
	}
	result, err := h.Service.RegisterImmediateLeave(r.Context(), me, req.UserID, req.Date)
	if err != nil {
		h.fail(w, r, err, "Failed to register leave")
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// UnregisterLeave removes immediate leave and returns the restored balance.
// DELETE /api/leave/{date}?user_id=
func (h *Handler) UnregisterLeave(w http.ResponseWriter, r *http.Request) {
	date, err := calendar.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.fail(w, r, &schedule.ValidationError{Field: "date", Message: err.Error()}, "Invalid date")
		return
	}
	me := actor(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = me.ID
	}
	balance, err := h.Service.UnregisterImmediateLeave(r.Context(), me, userID, date)
	if err != nil {
		h.fail(w, r, err, "Failed to cancel leave")
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// =============================================================================
// APPLICATION HANDLERS
// =============================================================================

// ListApplications lists applications. Members only see their own.
// GET /api/applications?status=&user_id=&from=&to=
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := schedule.ApplicationFilter{
		UserID: q.Get("user_id"),
		Status: schedule.ApplicationStatus(q.Get("status")),
		Type:   schedule.ApplicationType(q.Get("type")),
	}
	var err error
	if f.Range.From, err = queryDate(r, "from", calendar.Date{}); err != nil {
		h.fail(w, r, err, "Invalid range")
		return
	}
	if f.Range.To, err = queryDate(r, "to", calendar.Date{}); err != nil {
		h.fail(w, r, err, "Invalid range")
		return
	}

	apps, err := h.Service.ListApplications(r.Context(), actor(r), f)
	if err != nil {
		h.fail(w, r, err, "Failed to list applications")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(apps))
}

// GetApplication returns one application.
// GET /api/applications/{id}
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.GetApplication(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Failed to get application")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// CreateApplication files a pending leave application.
// POST /api/applications
func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req ApplicationRequest
	if !h.decode(w, r, &req) {
		return
	}
	me := actor(r)
	if req.UserID == "" {
		req.UserID = me.ID
	}
	app, err := h.Service.CreateApplication(r.Context(), me, schedule.ApplicationRequest{
		UserID: req.UserID,
		Date:   req.Date,
		Type:   req.Type,
		Reason: req.Reason,
	})
	if err != nil {
		h.fail(w, r, err, "Failed to create application")
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// ApproveApplication approves a pending application.
// POST /api/applications/{id}/approve
func (h *Handler) ApproveApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.Service.ApproveApplication(r.Context(), actor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "Failed to approve application")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// RejectApplication rejects a pending application with an optional note.
// POST /api/applications/{id}/reject
func (h *Handler) RejectApplication(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	// Body is optional.
	if r.ContentLength > 0 && !h.decode(w, r, &req) {
		return
	}
	app, err := h.Service.RejectApplication(r.Context(), actor(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.fail(w, r, err, "Failed to reject application")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// DeleteApplication withdraws an application. Deleting an approved one
// gives the day back.
// DELETE /api/applications/{id}
func (h *Handler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteApplication(r.Context(), actor(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "Failed to delete application")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// STATS HANDLERS
// =============================================================================

// GetStats returns one user's monthly stats, or every user's with
// user_id=all.
// GET /api/stats?user_id=&month=YYYY-MM
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	month, err := queryMonth(r, h.Service.Today())
	if err != nil {
		h.fail(w, r, err, "Invalid month")
		return
	}
	me := actor(r)
	userID := r.URL.Query().Get("user_id")

	if userID == "all" {
		buckets, err := h.Service.AllMonthlyStats(r.Context(), me, month)
		if err != nil {
			h.fail(w, r, err, "Failed to compute stats")
			return
		}
		writeJSON(w, http.StatusOK, buckets)
		return
	}

	if userID == "" {
		userID = me.ID
	}
	bucket, err := h.Service.MonthlyStats(r.Context(), me, userID, month)
	if err != nil {
		h.fail(w, r, err, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, bucket)
}

// ExportStats downloads every user's monthly stats as an xlsx workbook.
// GET /api/stats/export?month=YYYY-MM
func (h *Handler) ExportStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	month, err := queryMonth(r, h.Service.Today())
	if err != nil {
		h.fail(w, r, err, "Invalid month")
		return
	}
	buckets, err := h.Service.AllMonthlyStats(ctx, actor(r), month)
	if err != nil {
		h.fail(w, r, err, "Failed to compute stats")
		return
	}
	users, err := h.Service.ListUsers(ctx)
	if err != nil {
		h.fail(w, r, err, "Failed to list users")
		return
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	buf, err := report.MonthlyStatsWorkbook(month, buckets, names)
	if err != nil {
		h.fail(w, r, err, "Failed to render workbook")
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.FileName(month)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.requestLog(r).WithError(err).Warn("stats export write failed")
	}
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns stored holidays, or with ?year the holidays falling
// in that year with recurring ones placed on it.
// GET /api/holidays?year=
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	var (
		holidays []calendar.Holiday
		err      error
	)
	if raw := r.URL.Query().Get("year"); raw != "" {
		year, convErr := strconv.Atoi(raw)
		if convErr != nil || year < 1 || year > 9999 {
			h.fail(w, r, &schedule.ValidationError{Field: "year", Message: fmt.Sprintf("invalid year %q", raw)}, "Invalid year")
			return
		}
		holidays, err = h.Store.HolidaysInYear(r.Context(), year)
	} else {
		holidays, err = h.Store.ListHolidays(r.Context())
	}
	if err != nil {
		h.fail(w, r, err, "Failed to list holidays")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(holidays))
}

// CreateHoliday adds a holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r, "manage holidays") {
		return
	}
	var req HolidayRequest
	if !h.decode(w, r, &req) {
		return
	}
	saved, err := h.Store.SaveHoliday(r.Context(), calendar.Holiday{
		Date:      req.Date,
		Name:      strings.TrimSpace(req.Name),
		Recurring: req.Recurring,
	})
	if err != nil {
		h.fail(w, r, err, "Failed to create holiday")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ImportHolidays stores every all-day event of an iCalendar body.
// POST /api/holidays/import
func (h *Handler) ImportHolidays(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r, "manage holidays") {
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	parsed, err := calendar.ParseICS(bytes.NewReader(body))
	if err != nil {
		h.fail(w, r, &schedule.ValidationError{Field: "body", Message: err.Error()}, "Invalid calendar")
		return
	}

	resp := HolidayImportResponse{Holidays: []calendar.Holiday{}}
	for _, hol := range parsed {
		saved, err := h.Store.SaveHoliday(r.Context(), hol)
		if err != nil {
			h.fail(w, r, err, "Failed to store holiday")
			return
		}
		resp.Holidays = append(resp.Holidays, saved)
	}
	resp.Imported = len(resp.Holidays)
	h.requestLog(r).WithField("imported", resp.Imported).Info("holidays imported")
	writeJSON(w, http.StatusOK, resp)
}

// DeleteHoliday deletes a holiday by ID.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r, "manage holidays") {
		return
	}
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, "Failed to delete holiday")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PATTERN HANDLERS
// =============================================================================

// ListPatterns returns the default shift patterns grouped as a pattern set.
// GET /api/patterns
func (h *Handler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.Store.ListPatterns(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to list patterns")
		return
	}
	writeJSON(w, http.StatusOK, h.Patterns.ToJSON(patterns))
}

// ImportPatterns upserts every pattern of a JSON pattern set atomically.
// POST /api/patterns/import
func (h *Handler) ImportPatterns(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r, "manage shift patterns") {
		return
	}
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	patterns, err := h.Patterns.ParsePatterns(body)
	if err != nil {
		h.fail(w, r, err, "Invalid pattern set")
		return
	}

	if err := h.savePatterns(r.Context(), patterns); err != nil {
		h.fail(w, r, err, "Failed to store patterns")
		return
	}
	writeJSON(w, http.StatusOK, PatternImportResponse{
		Imported: len(patterns),
		Patterns: h.Patterns.ToJSON(patterns),
	})
}

func (h *Handler) savePatterns(ctx context.Context, patterns []schedule.DefaultShiftPattern) error {
	return h.Store.WithTx(ctx, func(repo schedule.Repository) error {
		for _, p := range patterns {
			if err := repo.SavePattern(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetDeadline returns apply_deadline_days.
// GET /api/settings/deadline
func (h *Handler) GetDeadline(w http.ResponseWriter, r *http.Request) {
	days, err := h.Service.DeadlineDays(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to read deadline")
		return
	}
	writeJSON(w, http.StatusOK, DeadlineDTO{Days: &days})
}

// SetDeadline changes apply_deadline_days. Takes effect on the next
// classification.
// PUT /api/settings/deadline
func (h *Handler) SetDeadline(w http.ResponseWriter, r *http.Request) {
	var req DeadlineDTO
	if !h.decode(w, r, &req) {
		return
	}
	if req.Days == nil {
		h.fail(w, r, &schedule.ValidationError{Field: "days", Message: "is required"}, "Invalid request body")
		return
	}
	if err := h.Service.SetDeadlineDays(r.Context(), actor(r), *req.Days); err != nil {
		h.fail(w, r, err, "Failed to set deadline")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Classify reports which window a date falls into today.
// GET /api/classify?date=YYYY-MM-DD
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	date, err := queryDate(r, "date", h.Service.Today())
	if err != nil {
		h.fail(w, r, err, "Invalid date")
		return
	}
	c, err := h.Service.Classify(r.Context(), date)
	if err != nil {
		h.fail(w, r, err, "Failed to classify date")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, schedule.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, schedule.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, schedule.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, schedule.ErrDeadline):
		return http.StatusConflict
	case errors.Is(err, schedule.ErrBalanceExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, schedule.ErrConcurrencyConflict):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status its kind maps to. Internal errors are
// logged and their details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusFor(err)
	resp := ErrorResponse{Error: message, Details: err.Error()}

	var ve *schedule.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	var de *schedule.DeadlineError
	if errors.As(err, &de) {
		resp.Hint = de.Hint
		resp.Window = string(de.Window)
	}

	switch status {
	case http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
	case http.StatusInternalServerError:
		h.requestLog(r).WithError(err).Error(message)
		resp.Details = ""
	}
	writeJSON(w, status, resp)
}

func (h *Handler) requestLog(r *http.Request) *logrus.Entry {
	entry := h.log.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	if id := middleware.GetReqID(r.Context()); id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, action string) bool {
	me := actor(r)
	if me.IsSuperAdmin() && me.Status != schedule.UserRetired {
		return true
	}
	h.fail(w, r, &schedule.AuthorizationError{ActorID: me.ID, Action: action}, "Forbidden")
	return false
}

// decode reads a JSON body into v, rejecting unknown fields. On failure it
// writes a 400 and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.fail(w, r, &schedule.ValidationError{Field: "body", Message: err.Error()}, "Invalid request body")
		return false
	}
	return true
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, &schedule.ValidationError{Field: "body", Message: err.Error()}, "Invalid request body")
		return nil, false
	}
	return body, true
}

// queryUser resolves ?user_id: empty means the caller, "all" means
// everyone.
func queryUser(r *http.Request) string {
	switch v := r.URL.Query().Get("user_id"); v {
	case "":
		return actor(r).ID
	case "all":
		return ""
	default:
		return v
	}
}

func queryDate(r *http.Request, name string, def calendar.Date) (calendar.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return calendar.Date{}, &schedule.ValidationError{Field: name, Message: err.Error()}
	}
	return d, nil
}

// queryRange reads ?from and ?to. from defaults to the first of today's
// month and to to the end of from's month.
func queryRange(r *http.Request, today calendar.Date) (calendar.Range, error) {
	from, err := queryDate(r, "from", today.StartOfMonth())
	if err != nil {
		return calendar.Range{}, err
	}
	to, err := queryDate(r, "to", from.EndOfMonth())
	if err != nil {
		return calendar.Range{}, err
	}
	return calendar.Range{From: from, To: to}, nil
}

func queryMonth(r *http.Request, today calendar.Date) (calendar.Date, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return today.StartOfMonth(), nil
	}
	m, err := calendar.ParseMonth(raw)
	if err != nil {
		return calendar.Date{}, &schedule.ValidationError{Field: "month", Message: err.Error()}
	}
	return m, nil
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
