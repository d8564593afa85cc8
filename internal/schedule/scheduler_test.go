package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resboard/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRefresher struct {
	mu       sync.Mutex
	results  []int // returned in order; the last one repeats
	calls    int
	inFlight atomic.Int32
	overlap  atomic.Bool
	started  chan struct{}
	hold     time.Duration
}

func (f *fakeRefresher) Refresh(ctx context.Context) int {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	time.Sleep(f.hold)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 && f.started != nil {
		close(f.started)
	}
	i := min(f.calls-1, len(f.results)-1)
	return f.results[i]
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePoller struct {
	wait    <-chan struct{}
	updated bool
	polls   atomic.Int32
}

func (p *fakePoller) PollOnce(ctx context.Context) bool {
	if p.wait != nil {
		<-p.wait
	}
	p.polls.Add(1)
	return p.updated
}

func run(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
}

func TestScheduler_RetriesAfterEmptyCycle(t *testing.T) {
	r := &fakeRefresher{results: []int{0, 0, 3}}
	s := New(r, nil, time.Hour, nil, time.UTC, testLogger())
	s.retryDelay = 10 * time.Millisecond
	run(t, s)

	assert.Eventually(t, func() bool { return r.Calls() == 3 }, time.Second, 5*time.Millisecond)

	// A successful cycle rearms with the full interval.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, r.Calls())
}

func TestScheduler_DelayUpdateTriggersRefresh(t *testing.T) {
	started := make(chan struct{})
	r := &fakeRefresher{results: []int{4}, started: started}
	p := &fakePoller{wait: started, updated: true}
	s := New(r, p, time.Hour, []config.Band{{Start: 0, End: 24, Frequency: 3600}}, time.UTC, testLogger())
	run(t, s)

	assert.Eventually(t, func() bool { return r.Calls() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), p.polls.Load())
}

func TestScheduler_UnchangedDelaysDoNotTrigger(t *testing.T) {
	started := make(chan struct{})
	r := &fakeRefresher{results: []int{4}, started: started}
	p := &fakePoller{wait: started, updated: false}
	s := New(r, p, time.Hour, []config.Band{{Start: 0, End: 24, Frequency: 3600}}, time.UTC, testLogger())
	run(t, s)

	assert.Eventually(t, func() bool { return p.polls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, r.Calls())
}

func TestScheduler_TriggersNeverOverlap(t *testing.T) {
	r := &fakeRefresher{results: []int{1}, hold: 5 * time.Millisecond}
	s := New(r, nil, time.Hour, nil, time.UTC, testLogger())
	run(t, s)

	for range 20 {
		s.Trigger()
		time.Sleep(time.Millisecond)
	}
	assert.Eventually(t, func() bool { return r.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, r.overlap.Load(), "refresh cycles overlapped")
	assert.Less(t, r.Calls(), 21, "pending triggers should coalesce")
}

func TestScheduler_DelayInterval(t *testing.T) {
	bands := []config.Band{
		{Name: "day", Start: 6, End: 22, Frequency: 60},
		{Name: "night", Start: 23, End: 5, Frequency: 300},
	}
	s := New(&fakeRefresher{results: []int{1}}, nil, 90*time.Second, bands, time.UTC, testLogger())

	tests := []struct {
		hour int
		want time.Duration
	}{
		{12, time.Minute},
		{23, 5 * time.Minute},
		{2, 5 * time.Minute},
		{22, 90 * time.Second}, // gap falls back to the update interval
		{5, 90 * time.Second},
	}
	for _, tt := range tests {
		now := time.Date(2024, 10, 9, tt.hour, 30, 0, 0, time.UTC)
		require.Equal(t, tt.want, s.delayInterval(now), "hour %d", tt.hour)
	}
}

func TestScheduler_TriggerNeverBlocks(t *testing.T) {
	s := New(&fakeRefresher{results: []int{1}}, nil, time.Hour, nil, time.UTC, testLogger())
	done := make(chan struct{})
	go func() {
		s.Trigger()
		s.Trigger()
		s.Trigger()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Trigger blocked without a running scheduler")
	}
}
