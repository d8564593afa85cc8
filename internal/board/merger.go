package board

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"resboard/internal/config"
	"resboard/internal/realtime"
	"resboard/internal/resrobot"
)

// RouteFetcher fetches the raw departure board for a route.
type RouteFetcher interface {
	Departures(ctx context.Context, route config.Route) ([]resrobot.Departure, error)
}

// DelaySource provides the current delay snapshot.
type DelaySource interface {
	Samples() []realtime.Sample
}

// Publisher receives every non-empty merged departure list.
type Publisher interface {
	Publish(ctx context.Context, deps []Departure)
}

// Options controls filtering and normalization of fetched departures.
type Options struct {
	SkipMinutes       int
	TruncateAfter     int
	TruncateLineAfter int
	DirectionFlag     string
	Location          *time.Location
}

// OptionsFromConfig extracts merger options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SkipMinutes:       cfg.SkipMinutes,
		TruncateAfter:     cfg.TruncateAfter,
		TruncateLineAfter: cfg.TruncateLineAfter,
		DirectionFlag:     cfg.ResRobot.DirectionFlag,
		Location:          cfg.Location,
	}
}

// Merger owns the cached departures for all configured routes. Refresh
// calls are serialized.
type Merger struct {
	routes    []config.Route
	opts      Options
	fetcher   RouteFetcher
	delays    DelaySource
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	departures []Departure
}

// NewMerger creates a Merger. delays may be nil when no delay feed is
// configured.
func NewMerger(routes []config.Route, opts Options, fetcher RouteFetcher, delays DelaySource, publisher Publisher, logger *slog.Logger) *Merger {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Merger{
		routes:    routes,
		opts:      opts,
		fetcher:   fetcher,
		delays:    delays,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Seed replaces the cache, e.g. with a board restored from storage. Seeded
// departures go through the normal staleness check on the next Refresh.
func (m *Merger) Seed(deps []Departure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departures = slices.Clone(deps)
}

// Departures returns a copy of the cached departures.
func (m *Merger) Departures() []Departure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.departures)
}

// Refresh runs one update cycle: evict stale routes, fetch them again,
// apply delays, sort, dedupe and publish. It returns the number of
// departures published; zero means nothing was published.
func (m *Merger) Refresh(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(time.Duration(m.opts.SkipMinutes) * time.Minute)

	fresh := freshPartitions(m.departures, cutoff)

	var deps []Departure
	var stale []int
	for id := range m.routes {
		if kept := fresh[id]; len(kept) > 0 {
			deps = append(deps, kept...)
		} else {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		deps = append(deps, m.fetchRoutes(ctx, stale, cutoff)...)
	}

	var samples []realtime.Sample
	if m.delays != nil {
		samples = m.delays.Samples()
	}
	applyDelays(deps, samples)

	deps = sortAndDedupe(deps)
	for i := range deps {
		deps[i].WaitingTime = int64(deps[i].Scheduled.Sub(now) / time.Second)
	}
	m.departures = deps

	if len(deps) == 0 {
		m.logger.Warn("no departures after refresh", "routes", len(m.routes), "fetched", len(stale))
		return 0
	}

	m.publisher.Publish(ctx, slices.Clone(deps))
	m.logger.Info("departures published", "count", len(deps), "fetched_routes", len(stale))
	return len(deps)
}

// freshPartitions groups cached departures by route and keeps only routes
// whose every departure leaves after cutoff. One departure at or before
// cutoff invalidates its whole route.
func freshPartitions(cached []Departure, cutoff time.Time) map[int][]Departure {
	sorted := slices.Clone(cached)
	slices.SortStableFunc(sorted, byRouteDescending)

	fresh := make(map[int][]Departure)
	invalid := make(map[int]bool)
	for _, d := range sorted {
		if invalid[d.RouteID] {
			continue
		}
		if !d.EffectiveTime().After(cutoff) {
			invalid[d.RouteID] = true
			delete(fresh, d.RouteID)
			continue
		}
		fresh[d.RouteID] = append(fresh[d.RouteID], d)
	}
	for id, deps := range fresh {
		slices.Reverse(deps)
		fresh[id] = deps
	}
	return fresh
}

// fetchRoutes fetches the given routes concurrently. A failed route is
// logged and contributes nothing.
func (m *Merger) fetchRoutes(ctx context.Context, routeIDs []int, cutoff time.Time) []Departure {
	results := make([][]Departure, len(routeIDs))

	var g errgroup.Group
	for i, id := range routeIDs {
		g.Go(func() error {
			route := m.routes[id]
			raw, err := m.fetcher.Departures(ctx, route)
			if err != nil {
				m.logger.Warn("route fetch failed", "route", id, "from", route.From, "to", route.To, "error", err)
				return nil
			}
			results[i] = m.normalize(id, raw, cutoff)
			return nil
		})
	}
	_ = g.Wait()

	var out []Departure
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// applyDelays matches each departure to the first sample whose
// back-computed scheduled time equals the departure's scheduled second.
// Departures without a match have their delay fields cleared.
//
// Two trips scheduled at the same second are indistinguishable; the first
// sample wins for both.
func applyDelays(deps []Departure, samples []realtime.Sample) {
	first := make(map[int64]realtime.Sample, len(samples))
	for _, s := range samples {
		if _, ok := first[s.Scheduled]; !ok {
			first[s.Scheduled] = s
		}
	}
	for i := range deps {
		d := &deps[i]
		s, ok := first[d.Scheduled.Unix()]
		if !ok {
			d.Delay, d.Updated, d.StopSequence = nil, nil, nil
			continue
		}
		delay := s.Delay
		updated := s.RealtimeTime().In(d.Scheduled.Location())
		seq := s.StopSequence
		d.Delay, d.Updated, d.StopSequence = &delay, &updated, &seq
	}
}
