package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"resboard/internal/board"
	"resboard/internal/handler"
	"resboard/internal/realtime"
)

// Server is the HTTP server exposing the departure board.
type Server struct {
	mux    *http.ServeMux
	port   int
	logger *slog.Logger
	ready  <-chan struct{} // closed when a board is available
}

// New creates a new Server with all routes registered. delays may be nil.
func New(port int, hub *board.Hub, delays *realtime.Store, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := handler.New(hub, delays, logger)

	mux.HandleFunc("GET /departures", h.Departures)
	mux.HandleFunc("GET /delays", h.Delays)
	mux.HandleFunc("GET /sse/departures", h.SSEDepartures)
	mux.HandleFunc("GET /healthz", h.Healthz)

	return &Server{mux: mux, port: port, logger: logger, ready: hub.Ready()}
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger, s.ready)
}

// ListenAndServe starts the HTTP server and shuts it down gracefully when
// ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Open SSE streams never go idle; close them if shutdown times out.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
