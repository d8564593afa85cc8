package handler

import (
	"net/http"
	"time"

	"resboard/internal/board"
	"resboard/internal/realtime"
)

type boardResponse struct {
	PublishedAt time.Time         `json:"publishedAt"`
	Departures  []board.Departure `json:"departures"`
}

func latestBoard(hub *board.Hub) boardResponse {
	deps, at := hub.Latest()
	if deps == nil {
		deps = []board.Departure{}
	}
	return boardResponse{PublishedAt: at, Departures: deps}
}

// Departures returns the latest published board.
func (h *Handler) Departures(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, latestBoard(h.hub))
}

// Delays returns the current delay snapshot.
func (h *Handler) Delays(w http.ResponseWriter, r *http.Request) {
	if h.delays == nil {
		http.Error(w, "delay polling disabled", http.StatusNotFound)
		return
	}
	snap := h.delays.Snapshot()
	if snap.Samples == nil {
		snap.Samples = []realtime.Sample{}
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// Healthz reports whether a board has been published.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	deps, at := h.hub.Latest()
	resp := struct {
		Status      string     `json:"status"`
		Ready       bool       `json:"ready"`
		Departures  int        `json:"departures"`
		PublishedAt *time.Time `json:"publishedAt,omitempty"`
		DelaysAt    *time.Time `json:"delaysFetchedAt,omitempty"`
	}{Status: "ok", Departures: len(deps)}

	select {
	case <-h.hub.Ready():
		resp.Ready = true
		resp.PublishedAt = &at
	default:
	}
	if h.delays != nil {
		if fetched := h.delays.Snapshot().FetchedAt; !fetched.IsZero() {
			resp.DelaysAt = &fetched
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}
