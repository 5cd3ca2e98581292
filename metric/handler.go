package metric

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the metrics registry over HTTP for Prometheus scraping.
type Server struct {
	port     int
	path     string
	server   *http.Server
	registry *MetricsRegistry
	logger   *slog.Logger
}

// NewServer creates a metrics HTTP server for the given registry.
func NewServer(port int, registry *MetricsRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		port:     port,
		path:     "/metrics",
		registry: registry,
		logger:   logger,
	}
}

// Start begins serving metrics. It returns once the listener goroutine is
// running; serve errors are logged.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("metrics server listening", "addr", s.server.Addr, "path", s.path)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts the metrics server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
