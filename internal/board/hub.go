package board

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Archive persists published boards.
type Archive interface {
	SaveBoard(ctx context.Context, deps []Departure, publishedAt time.Time) error
}

// Hub is the publish boundary. It keeps the latest board, fans it out to
// subscribers and archives it.
type Hub struct {
	archive Archive // may be nil
	logger  *slog.Logger
	now     func() time.Time

	mu          sync.RWMutex
	latest      []Departure
	publishedAt time.Time
	subs        map[chan []Departure]struct{}
	ready       chan struct{} // closed on first publish
}

// NewHub creates a Hub. archive may be nil.
func NewHub(archive Archive, logger *slog.Logger) *Hub {
	return &Hub{
		archive: archive,
		logger:  logger,
		now:     time.Now,
		subs:    make(map[chan []Departure]struct{}),
		ready:   make(chan struct{}),
	}
}

// Restore sets the latest board without notifying subscribers or archiving,
// e.g. after loading it from storage.
func (h *Hub) Restore(deps []Departure, publishedAt time.Time) {
	if len(deps) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = slices.Clone(deps)
	h.publishedAt = publishedAt
	h.markReady()
}

// Publish stores deps as the latest board and delivers it to subscribers.
// Slow subscribers only ever see the newest board.
func (h *Hub) Publish(ctx context.Context, deps []Departure) {
	at := h.now()

	h.mu.Lock()
	h.latest = deps
	h.publishedAt = at
	h.markReady()
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- deps
	}
	h.mu.Unlock()

	if h.archive != nil {
		if err := h.archive.SaveBoard(ctx, deps, at); err != nil {
			h.logger.Error("archive board", "error", err)
		}
	}
}

// Latest returns the last published board and when it was published.
// Callers must not modify the returned slice.
func (h *Hub) Latest() ([]Departure, time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.publishedAt
}

// Ready is closed once a board is available.
func (h *Hub) Ready() <-chan struct{} {
	return h.ready
}

// Subscribe returns a channel receiving each published board and a func
// that unsubscribes.
func (h *Hub) Subscribe() (<-chan []Departure, func()) {
	ch := make(chan []Departure, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, ch)
	}
}

// markReady must be called with mu held.
func (h *Hub) markReady() {
	select {
	case <-h.ready:
	default:
		close(h.ready)
	}
}
