package realtime

import (
	"sync"
	"time"
)

// Sample is one real-time correction for a trip passing the watched stop.
type Sample struct {
	StopID       string `json:"stopId"`
	StopSequence uint32 `json:"stopSequence"`
	Scheduled    int64  `json:"scheduledEpochSeconds"` // Realtime - Delay
	Realtime     int64  `json:"realtimeEpochSeconds"`
	Delay        int32  `json:"delaySeconds"` // positive is late
}

// RealtimeTime returns the predicted time.
func (s Sample) RealtimeTime() time.Time { return time.Unix(s.Realtime, 0) }

// Snapshot is a point-in-time set of samples. It is replaced wholesale,
// never modified.
type Snapshot struct {
	Samples   []Sample  `json:"samples"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Store holds the current delay snapshot in a thread-safe manner.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStore creates an empty delay store.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new snapshot.
func (s *Store) Replace(samples []Sample, fetchedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{Samples: samples, FetchedAt: fetchedAt}
}

// Snapshot returns the current snapshot. Callers must not modify Samples.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Samples returns the samples of the current snapshot.
func (s *Store) Samples() []Sample {
	return s.Snapshot().Samples
}
