package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes the Prometheus metrics endpoint on its own
// port, separate from gateway traffic.
type MetricsServer struct {
	server *http.Server
	logger Logger
}

// NewMetricsServer creates a metrics server listening on the given port.
func NewMetricsServer(port int, logger Logger) *MetricsServer {
	if logger == nil {
		logger = NopLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start runs the metrics server. It blocks until the listener fails or
// the server is stopped.
func (s *MetricsServer) Start() error {
	s.logger.Info("starting metrics server",
		String("address", s.server.Addr),
	)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server error: %w", err)
	}
	return nil
}

// Stop shuts the metrics server down gracefully.
func (s *MetricsServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping metrics server")
	return s.server.Shutdown(ctx)
}
