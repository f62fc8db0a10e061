package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/keeper/internal/logging"
	"github.com/Iron-Ham/keeper/internal/rwlock"
)

const shutdownTimeout = 5 * time.Second

// LockSource reports the state of a named lock. Directory, Grid and Graph
// all satisfy it through their Stats method.
type LockSource interface {
	Stats() rwlock.Stats
}

// Server exposes metrics and lock state over HTTP:
//
//	GET /metrics  Prometheus exposition
//	GET /healthz  liveness
//	GET /locks    JSON snapshot of every registered lock
type Server struct {
	collector *Collector
	locks     map[string]LockSource
	logger    *logging.Logger
}

// NewServer creates a Server for c. locks maps a resource name to its
// lock; it may be nil.
func NewServer(c *Collector, locks map[string]LockSource, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Server{collector: c, locks: locks, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.collector.Registry(), promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/locks", s.handleLocks)
	return r
}

func (s *Server) handleLocks(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]rwlock.Stats, len(s.locks))
	for name, src := range s.locks {
		out[name] = src.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Warn("failed to encode lock stats", "error", err)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("metrics server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
