package board

import (
	"cmp"
	"slices"
	"time"
)

// Departure is one scheduled departure on a configured route.
type Departure struct {
	RouteID       int       `json:"routeId"` // index into the configured routes
	Scheduled     time.Time `json:"scheduledTime"`
	WaitingTime   int64     `json:"waitingTime"` // seconds until Scheduled, as of the last publish
	Line          string    `json:"line"`
	Track         string    `json:"track,omitempty"`
	Type          string    `json:"type"` // short category code, e.g. BLT, JLT, ULT
	Destination   string    `json:"destination"`
	DirectionFlag string    `json:"directionFlag,omitempty"`

	// Set when a delay sample matched the scheduled time.
	Delay        *int32     `json:"delay,omitempty"`
	Updated      *time.Time `json:"updatedTime,omitempty"`
	StopSequence *uint32    `json:"stopSequence,omitempty"`
}

// EffectiveTime is the real-time corrected departure time when known,
// otherwise the scheduled time.
func (d Departure) EffectiveTime() time.Time {
	if d.Updated != nil {
		return *d.Updated
	}
	return d.Scheduled
}

// Delayed reports whether a delay sample has been applied.
func (d Departure) Delayed() bool {
	return d.Delay != nil
}

type dedupKey struct {
	scheduled int64
	line      string
}

// sortAndDedupe orders departures by scheduled time and keeps only the first
// departure for each (scheduled time, line) pair.
func sortAndDedupe(deps []Departure) []Departure {
	slices.SortStableFunc(deps, func(a, b Departure) int {
		return a.Scheduled.Compare(b.Scheduled)
	})
	seen := make(map[dedupKey]bool, len(deps))
	out := deps[:0]
	for _, d := range deps {
		k := dedupKey{d.Scheduled.Unix(), d.Line}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}

// byRouteDescending orders by route, then latest scheduled time first.
func byRouteDescending(a, b Departure) int {
	if c := cmp.Compare(a.RouteID, b.RouteID); c != 0 {
		return c
	}
	return b.Scheduled.Compare(a.Scheduled)
}
