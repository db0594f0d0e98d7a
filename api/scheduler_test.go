package api

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/logging"
	"github.com/warp/shift-engine/schedule"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) ExpireStaleApplications(ctx context.Context) (int, error) {
	c.calls.Add(1)
	return 2, c.err
}

func TestApplicationSweeper_SweepsOnStartAndTick(t *testing.T) {
	target := &countingSweeper{}
	s := NewApplicationSweeper(target, logging.Discard(), 10*time.Millisecond)

	s.Start()
	s.Start() // no-op while running
	require.Eventually(t, func() bool { return target.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	// THEN: no more sweeps after Stop
	after := target.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, target.calls.Load())

	s.Stop() // idempotent
}

func TestApplicationSweeper_ZeroIntervalDisabled(t *testing.T) {
	target := &countingSweeper{}
	s := NewApplicationSweeper(target, logging.Discard(), 0)

	s.Start()
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	assert.Zero(t, target.calls.Load())
}

func TestApplicationSweeper_RunNowReportsCountOnError(t *testing.T) {
	target := &countingSweeper{err: errors.New("database locked")}
	s := NewApplicationSweeper(target, logging.Discard(), time.Hour)

	assert.Equal(t, 2, s.RunNow())
	assert.EqualValues(t, 1, target.calls.Load())
}

func TestApplicationSweeper_ExpiresPastApplications(t *testing.T) {
	// GIVEN: A pending application filed on 06-02 for 06-10
	f := newAPIFixture(t)
	rec := f.do(t, "POST", "/api/applications", map[string]string{"date": "2025-06-10", "reason": "Errand"}, "alice")
	require.Equal(t, 201, rec.Code, rec.Body.String())

	// WHEN: The clock moves past the date and the sweeper runs
	later := time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC)
	svc := schedule.NewService(f.store, schedule.DefaultConfig(),
		schedule.WithClock(func() time.Time { return later }),
	)
	s := NewApplicationSweeper(svc, logging.Discard(), time.Hour)

	// THEN: it is rejected as expired
	assert.Equal(t, 1, s.RunNow())
	apps, err := f.store.ListApplications(context.Background(), schedule.ApplicationFilter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, schedule.ApplicationRejected, apps[0].Status)
	assert.Equal(t, "expired", apps[0].ReviewNote)
}
