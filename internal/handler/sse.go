package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"resboard/internal/board"
)

// SSEDepartures streams each published board as a "departures" event via
// Server-Sent Events. The latest board, if any, is sent immediately.
func (h *Handler) SSEDepartures(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	updates, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	select {
	case <-h.hub.Ready():
		if !h.sendBoardEvent(w, flusher, latestBoard(h.hub)) {
			return
		}
	default:
		// Commit headers so the client knows the stream is open.
		flusher.Flush()
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case deps := <-updates:
			_, at := h.hub.Latest()
			if !h.sendBoardEvent(w, flusher, boardResponse{PublishedAt: at, Departures: deps}) {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

// sendBoardEvent writes one SSE event and reports whether the client is
// still connected.
func (h *Handler) sendBoardEvent(w http.ResponseWriter, flusher http.Flusher, resp boardResponse) bool {
	if resp.Departures == nil {
		resp.Departures = []board.Departure{}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		h.logger.Error("encoding SSE departures", "error", err)
		return true
	}
	if _, err := fmt.Fprintf(w, "event: departures\ndata: %s\n\n", data); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
