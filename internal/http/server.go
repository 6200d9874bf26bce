// Package http serves the worker's operational endpoints: liveness,
// readiness and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"closeout/internal/log"
	"closeout/internal/middleware/trace"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

type Server struct {
	http.Server
	checks       map[string]Check
	logger       *log.Logger
	shutdownOnce sync.Once
}

// NewServer configures the routes. gatherer may be nil, in which case
// /metrics is not mounted.
func NewServer(addr string, gatherer prometheus.Gatherer, checks map[string]Check, logger *log.Logger) *Server {
	mux := http.NewServeMux()
	logger = log.OrDefault(logger, log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           trace.NewMiddleware(logger).Middleware(mux),
			ReadHeaderTimeout: 5 * time.Second,
		},
		checks: checks,
		logger: logger,
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Ops server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Ops server failed", log.FieldError, err)
		}
	}()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed",
				"request_id", trace.GetRequestID(r.Context()),
				"check", name,
				log.FieldError, err)
			http.Error(w, name+": "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
