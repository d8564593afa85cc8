package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"resboard/internal/config"
)

// MinPollInterval is the shortest time between two polls. Calls to PollOnce
// within this window are ignored.
const MinPollInterval = 10 * time.Second

// Archive persists delay snapshots.
type Archive interface {
	SaveDelays(ctx context.Context, stopID string, snap Snapshot) error
}

// Poller fetches the GTFS-RT TripUpdates feed and keeps the delays for the
// watched stop in a Store.
type Poller struct {
	feedURL string
	stopID  string
	store   *Store
	archive Archive // may be nil
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time

	mu           sync.Mutex
	lastPoll     time.Time
	lastModified string
	etag         string
}

// NewPoller creates a delay feed poller writing into store. archive may be nil.
func NewPoller(cfg config.RealtimeConfig, store *Store, archive Archive, logger *slog.Logger) *Poller {
	return &Poller{
		feedURL: FeedURL(cfg),
		stopID:  cfg.StopID,
		store:   store,
		archive: archive,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		now:     time.Now,
	}
}

// FeedURL returns the TripUpdates URL for the configured operator.
func FeedURL(cfg config.RealtimeConfig) string {
	return fmt.Sprintf("%s%s/TripUpdates.pb?key=%s", cfg.BaseURL, url.PathEscape(cfg.Operator), url.QueryEscape(cfg.APIKey))
}

// PollOnce fetches and decodes the feed once and replaces the snapshot.
// It reports whether a new snapshot was stored. On any failure the previous
// snapshot is kept.
func (p *Poller) PollOnce(ctx context.Context) bool {
	p.mu.Lock()
	now := p.now()
	if !p.lastPoll.IsZero() && now.Sub(p.lastPoll) < MinPollInterval {
		p.mu.Unlock()
		p.logger.Debug("duplicate delay poll suppressed", "since_last", now.Sub(p.lastPoll))
		return false
	}
	p.lastPoll = now
	lastModified, etag := p.lastModified, p.etag
	p.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, "GET", p.feedURL, nil)
	if err != nil {
		p.logger.Error("create trip updates request", "error", err)
		return false
	}
	req.Header.Set("Accept", "application/octet-stream")
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("fetch trip updates failed", "error", redactKey(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		p.logger.Info("trip updates not modified")
		return false
	}
	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("trip updates feed returned non-200", "status", resp.StatusCode)
		return false
	}

	dec := NewDecoder(resp.Body)
	var samples []Sample
	entities := 0
	for entity, err := range dec.Entities() {
		if err != nil {
			p.logger.Error("decode trip updates", "error", err, "entities", entities)
			return false
		}
		entities++
		if s, ok := sampleForStop(entity, p.stopID); ok {
			samples = append(samples, s)
		}
	}

	fetchedAt := p.now()
	p.store.Replace(samples, fetchedAt)

	p.mu.Lock()
	p.lastModified = resp.Header.Get("Last-Modified")
	p.etag = resp.Header.Get("ETag")
	p.mu.Unlock()

	age := -1
	if ts := dec.Header().GetTimestamp(); ts > 0 {
		age = int(fetchedAt.Sub(time.Unix(int64(ts), 0)).Seconds())
	}
	p.logger.Info("trip updates decoded", "entities", entities, "delays", len(samples), "age_s", age)

	if p.archive != nil {
		if err := p.archive.SaveDelays(ctx, p.stopID, Snapshot{Samples: samples, FetchedAt: fetchedAt}); err != nil {
			p.logger.Error("archive delays", "error", err)
		}
	}
	return true
}

// sampleForStop extracts the update for stopID from a trip update entity.
// A trip passes the stop at most once, so the first match is used. The
// departure event is preferred; arrival is the fallback when departure
// lacks a time or a delay. Updates where neither event has both give no
// correlation key and are skipped.
func sampleForStop(e *gtfs.FeedEntity, stopID string) (Sample, bool) {
	for _, stu := range e.GetTripUpdate().GetStopTimeUpdate() {
		if stu.GetStopId() != stopID {
			continue
		}
		ev := stu.GetDeparture()
		if !hasTimeAndDelay(ev) {
			ev = stu.GetArrival()
		}
		if !hasTimeAndDelay(ev) {
			return Sample{}, false
		}
		return Sample{
			StopID:       stopID,
			StopSequence: stu.GetStopSequence(),
			Scheduled:    ev.GetTime() - int64(ev.GetDelay()),
			Realtime:     ev.GetTime(),
			Delay:        ev.GetDelay(),
		}, true
	}
	return Sample{}, false
}

func hasTimeAndDelay(ev *gtfs.TripUpdate_StopTimeEvent) bool {
	return ev != nil && ev.Time != nil && ev.Delay != nil
}

// redactKey drops the request URL, which carries the API key, from
// transport errors.
func redactKey(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
