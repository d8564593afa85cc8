package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"resboard/internal/board"
	"resboard/internal/realtime"
)

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	hub       *board.Hub
	delays    *realtime.Store // nil when delay polling is disabled
	logger    *slog.Logger
	keepAlive time.Duration
}

// New creates a Handler. delays may be nil.
func New(hub *board.Hub, delays *realtime.Store, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, delays: delays, logger: logger, keepAlive: 30 * time.Second}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", "error", err)
	}
}
