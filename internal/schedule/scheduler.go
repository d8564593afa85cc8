package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"resboard/internal/config"
	"resboard/internal/realtime"
)

// RetryDelay replaces the update interval after a cycle that published
// nothing.
const RetryDelay = 10 * time.Second

// Refresher runs one departure update cycle and reports how many
// departures it published.
type Refresher interface {
	Refresh(ctx context.Context) int
}

// DelayPoller polls the delay feed once and reports whether the delay
// snapshot changed.
type DelayPoller interface {
	PollOnce(ctx context.Context) bool
}

// Scheduler drives the departure update timer and the delay poll timer.
// Each timer is rearmed only after its own handler returns. Refresh runs
// only on the update goroutine, so cycles never overlap.
type Scheduler struct {
	refresher  Refresher
	poller     DelayPoller // nil disables delay polling
	interval   time.Duration
	retryDelay time.Duration
	bands      []config.Band
	logger     *slog.Logger
	now        func() time.Time

	trigger chan struct{} // depth 1: pending refresh requests coalesce
}

// New creates a Scheduler. poller may be nil. Bands are matched against
// the hour in loc.
func New(refresher Refresher, poller DelayPoller, interval time.Duration, bands []config.Band, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		refresher:  refresher,
		poller:     poller,
		interval:   interval,
		retryDelay: RetryDelay,
		bands:      bands,
		logger:     logger,
		now:        func() time.Time { return time.Now().In(loc) },
		trigger:    make(chan struct{}, 1),
	}
}

// Trigger requests an update cycle as soon as the current one, if any,
// finishes. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run starts both loops and blocks until ctx is cancelled. The first
// update cycle and the first delay poll run immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.interval, "delay_polling", s.poller != nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.updateLoop(ctx)
	}()
	if s.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pollLoop(ctx)
		}()
	}
	wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) updateLoop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
		}

		next := s.interval
		if n := s.refresher.Refresh(ctx); n == 0 {
			next = s.retryDelay
			s.logger.Warn("no departures published, retrying soon", "in", next)
		}
		timer.Reset(next)
	}
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	for {
		if s.poller.PollOnce(ctx) {
			s.Trigger()
		}

		wait := s.delayInterval(s.now())
		s.logger.Debug("next delay poll scheduled", "in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// delayInterval picks the poll interval for the hour of now. Hours not
// covered by any band fall back to the update interval.
func (s *Scheduler) delayInterval(now time.Time) time.Duration {
	if d, ok := realtime.SelectFrequency(s.bands, now.Hour()); ok {
		return d
	}
	return s.interval
}
