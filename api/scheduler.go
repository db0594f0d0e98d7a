/*
scheduler.go - Stale application sweeper

PURPOSE:
  Periodically rejects pending leave applications whose date has passed.
  They can no longer be approved, so they are closed with the note
  "expired" instead of lingering in reviewers' queues.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Sweeps once immediately on start
  - Each sweep is bounded by a timeout so a stuck lock can't pile up runs

CONFIGURATION:
  - CheckInterval: schedule.sweep_interval (default: 1 hour, 0 disables)

USAGE:
  sweeper := NewApplicationSweeper(svc, log, cfg.Schedule.SweepInterval)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - schedule/application.go: ExpireStaleApplications
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper is the part of schedule.Service the sweeper drives.
type Sweeper interface {
	ExpireStaleApplications(ctx context.Context) (int, error)
}

// ApplicationSweeper expires stale pending applications on a ticker.
type ApplicationSweeper struct {
	CheckInterval time.Duration
	Timeout       time.Duration

	target Sweeper
	log    *logrus.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewApplicationSweeper creates a sweeper. An interval of zero disables it.
func NewApplicationSweeper(target Sweeper, log *logrus.Logger, interval time.Duration) *ApplicationSweeper {
	return &ApplicationSweeper{
		CheckInterval: interval,
		Timeout:       30 * time.Second,
		target:        target,
		log:           log,
	}
}

// Start begins sweeping. Calling Start on a running sweeper is a no-op.
func (s *ApplicationSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CheckInterval <= 0 {
		s.log.Info("application sweeper disabled")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.log.WithField("interval", s.CheckInterval.String()).Info("application sweeper started")
}

// Stop stops the sweeper and waits for an in-flight sweep to finish.
func (s *ApplicationSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.log.Info("application sweeper stopped")
}

func (s *ApplicationSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow()
	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow performs one sweep and returns how many applications expired.
func (s *ApplicationSweeper) RunNow() int {
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	n, err := s.target.ExpireStaleApplications(ctx)
	if err != nil {
		s.log.WithError(err).WithField("expired", n).Error("application sweep failed")
	}
	return n
}
