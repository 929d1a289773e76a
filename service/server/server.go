package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/luxabot/service/metrics"
	"github.com/brojonat/luxabot/service/normalize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultMaxBodyBytes = 5 << 20
	// Webhook responses are written after the outbound alert and the mirror
	// publish complete, so the write deadline covers both plus some slack.
	writeTimeoutSlack = 5 * time.Second
)

// Processor runs the relay pipeline for one decoded payload.
type Processor interface {
	Process(ctx context.Context, payload any) normalize.Event
}

// Server represents the HTTP server for the webhook relay.
type Server struct {
	addr         string
	processor    Processor
	maxBodyBytes int64
	budget       time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
	server       *http.Server
}

// New creates a new HTTP server with the given dependencies.
// budget is the longest one webhook may spend in processor (alert timeout
// plus mirror timeout).
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, processor Processor, maxBodyBytes int64, budget time.Duration, m *metrics.Metrics, logger *slog.Logger) *Server {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{
		addr:         addr,
		processor:    processor,
		maxBodyBytes: maxBodyBytes,
		budget:       budget,
		metrics:      m,
		logger:       logger,
	}
}

// Handler builds the routed handler. Start serves it; tests can use it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /webhook", s.route("/webhook", handleWebhook(s.processor, s.maxBodyBytes, s.logger)))
	mux.Handle("GET /{$}", s.route("/", handleLiveness()))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return requestIDMiddleware(mux)
}

// route wraps a handler with metrics and panic recovery. Recovery sits inside
// the metrics middleware so recovered requests are still counted as 500s.
func (s *Server) route(name string, h http.Handler) http.Handler {
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(recoverMiddleware(s.logger)(h))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	if s.metrics != nil {
		s.logger.Info("Prometheus metrics endpoint enabled")
	}
	s.logger.Info("starting HTTP server", "addr", s.addr, "write_timeout", s.server.WriteTimeout)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func (s *Server) writeTimeout() time.Duration {
	timeout := s.budget + writeTimeoutSlack
	if timeout < 15*time.Second {
		timeout = 15 * time.Second
	}
	return timeout
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
