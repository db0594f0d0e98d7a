package schedule_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/schedule"
)

func apply(t *testing.T, f *fixture, actor schedule.User, userID, date string) *schedule.ShiftApplication {
	t.Helper()
	app, err := f.svc.CreateApplication(context.Background(), actor, schedule.ApplicationRequest{
		UserID: userID,
		Date:   day(date),
		Reason: "family event",
	})
	require.NoError(t, err)
	return app
}

func TestCreateApplication_InsideWindow_NoCharge(t *testing.T) {
	f := newFixture(t)

	app := apply(t, f, alice, alice.ID, "2025-06-10")
	assert.Equal(t, schedule.ApplicationPending, app.Status)
	assert.Equal(t, schedule.ApplicationLeave, app.Type)
	assert.Equal(t, 0, f.remaining(t, alice.ID, "2025-06-10").Used)
	assert.Empty(t, f.details(t, alice.ID, "2025-06-10"))
}

func TestCreateApplication_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := func(date, reason string) schedule.ApplicationRequest {
		return schedule.ApplicationRequest{UserID: alice.ID, Date: day(date), Reason: reason}
	}

	_, err := f.svc.CreateApplication(ctx, alice, req("2025-06-20", "trip"))
	assert.Equal(t, schedule.HintImmediate, deadlineHint(t, err))

	_, err = f.svc.CreateApplication(ctx, alice, req("2025-05-30", "trip"))
	assert.Equal(t, schedule.HintHistorical, deadlineHint(t, err))

	_, err = f.svc.CreateApplication(ctx, alice, req("2025-06-10", "   "))
	assert.ErrorIs(t, err, schedule.ErrValidation)

	_, err = f.svc.CreateApplication(ctx, alice, req("2025-06-10", strings.Repeat("x", 501)))
	assert.ErrorIs(t, err, schedule.ErrValidation)

	_, err = f.svc.CreateApplication(ctx, bob, req("2025-06-10", "trip"))
	assert.ErrorIs(t, err, schedule.ErrAuthorization)

	apply(t, f, alice, alice.ID, "2025-06-10")
	_, err = f.svc.CreateApplication(ctx, alice, req("2025-06-10", "again"))
	var ve *schedule.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "date", ve.Field)
}

func TestApproveApplication_ConsumesAndPlacesMarker(t *testing.T) {
	// GIVEN: A pending application inside the window
	// WHEN: A super admin approves it
	// THEN: One unit is consumed and the date holds a leave marker

	f := newFixture(t)
	ctx := context.Background()
	app := apply(t, f, alice, alice.ID, "2025-06-10")

	_, err := f.svc.ApproveApplication(ctx, alice, app.ID)
	assert.ErrorIs(t, err, schedule.ErrAuthorization)

	approved, err := f.svc.ApproveApplication(ctx, admin, app.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.ApplicationApproved, approved.Status)
	assert.Equal(t, admin.ID, approved.ReviewerID)

	assert.Equal(t, 1, f.remaining(t, alice.ID, "2025-06-10").Used)
	details := f.details(t, alice.ID, "2025-06-10")
	require.Len(t, details, 1)
	assert.True(t, details[0].IsLeaveMarker())

	_, err = f.svc.ApproveApplication(ctx, admin, app.ID)
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestApproveApplication_BalanceSpentMeanwhile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := apply(t, f, alice, alice.ID, "2025-06-10")

	for _, d := range []string{"2025-06-17", "2025-06-18"} {
		_, err := f.svc.RegisterImmediateLeave(ctx, alice, alice.ID, day(d))
		require.NoError(t, err)
	}

	_, err := f.svc.ApproveApplication(ctx, admin, app.ID)
	assert.ErrorIs(t, err, schedule.ErrBalanceExhausted)

	got, err := f.svc.GetApplication(ctx, alice, app.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.ApplicationPending, got.Status)
	assert.Empty(t, f.details(t, alice.ID, "2025-06-10"))
}

func TestCreateApplication_BalanceExhausted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []string{"2025-06-17", "2025-06-18"} {
		_, err := f.svc.RegisterImmediateLeave(ctx, alice, alice.ID, day(d))
		require.NoError(t, err)
	}

	_, err := f.svc.CreateApplication(ctx, alice, schedule.ApplicationRequest{UserID: alice.ID, Date: day("2025-06-10"), Reason: "trip"})
	assert.ErrorIs(t, err, schedule.ErrBalanceExhausted)

	// Saturdays stay open.
	apply(t, f, alice, alice.ID, "2025-06-14")
}

func TestRejectApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := apply(t, f, alice, alice.ID, "2025-06-10")

	rejected, err := f.svc.RejectApplication(ctx, admin, app.ID, " short staffed ")
	require.NoError(t, err)
	assert.Equal(t, schedule.ApplicationRejected, rejected.Status)
	assert.Equal(t, "short staffed", rejected.ReviewNote)
	assert.Equal(t, 0, f.remaining(t, alice.ID, "2025-06-10").Used)

	// A rejected application no longer blocks a new one.
	apply(t, f, alice, alice.ID, "2025-06-10")
}

func TestDeleteApplication_Approved_RestoresBalance(t *testing.T) {
	// GIVEN: An approved application on a weekday
	// WHEN: The owner deletes it
	// THEN: The marker is gone and the unit comes back

	f := newFixture(t)
	ctx := context.Background()
	app := apply(t, f, alice, alice.ID, "2025-06-10")
	_, err := f.svc.ApproveApplication(ctx, admin, app.ID)
	require.NoError(t, err)
	require.Equal(t, 1, *f.remaining(t, alice.ID, "2025-06-10").Remaining)

	assert.ErrorIs(t, f.svc.DeleteApplication(ctx, bob, app.ID), schedule.ErrAuthorization)
	require.NoError(t, f.svc.DeleteApplication(ctx, alice, app.ID))

	assert.Equal(t, 2, *f.remaining(t, alice.ID, "2025-06-10").Remaining)
	assert.Empty(t, f.details(t, alice.ID, "2025-06-10"))
	_, err = f.svc.GetApplication(ctx, alice, app.ID)
	assert.ErrorIs(t, err, schedule.ErrNotFound)
}

func TestDeleteApplication_ApprovedInPast_Refused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := apply(t, f, alice, alice.ID, "2025-06-10")
	_, err := f.svc.ApproveApplication(ctx, admin, app.ID)
	require.NoError(t, err)

	f.setToday("2025-06-11")
	err = f.svc.DeleteApplication(ctx, alice, app.ID)
	assert.Equal(t, schedule.HintHistorical, deadlineHint(t, err))
	assert.Equal(t, 1, f.remaining(t, alice.ID, "2025-06-10").Used)
}

func TestDeleteApplication_Pending_NoBalanceEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := apply(t, f, alice, alice.ID, "2025-06-10")

	require.NoError(t, f.svc.DeleteApplication(ctx, admin, app.ID))
	assert.Equal(t, 0, f.remaining(t, alice.ID, "2025-06-10").Used)
}

func TestListApplications_MembersSeeOwn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apply(t, f, alice, alice.ID, "2025-06-10")
	apply(t, f, bob, bob.ID, "2025-06-11")

	own, err := f.svc.ListApplications(ctx, alice, schedule.ApplicationFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, alice.ID, own[0].UserID)

	_, err = f.svc.ListApplications(ctx, alice, schedule.ApplicationFilter{UserID: bob.ID})
	assert.ErrorIs(t, err, schedule.ErrAuthorization)

	all, err := f.svc.ListApplications(ctx, admin, schedule.ApplicationFilter{Status: schedule.ApplicationPending})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.svc.GetApplication(ctx, bob, own[0].ID)
	assert.ErrorIs(t, err, schedule.ErrAuthorization)
}

func TestExpireStaleApplications(t *testing.T) {
	// GIVEN: Two pending applications
	// WHEN: The clock passes the first one's date
	// THEN: Only that one is rejected as expired

	f := newFixture(t)
	ctx := context.Background()
	early := apply(t, f, alice, alice.ID, "2025-06-05")
	late := apply(t, f, alice, alice.ID, "2025-06-12")

	f.setToday("2025-06-06")
	n, err := f.svc.ExpireStaleApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.GetApplication(ctx, admin, early.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.ApplicationRejected, got.Status)
	assert.Equal(t, "expired", got.ReviewNote)

	got, err = f.svc.GetApplication(ctx, admin, late.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.ApplicationPending, got.Status)

	n, err = f.svc.ExpireStaleApplications(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
