// Package server hosts the operational HTTP surface: health, status,
// Prometheus metrics and the live event stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"mev_engine/internal/core"
	"mev_engine/pkg/telemetry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HealthServer struct {
	addr    string
	logger  core.ILogger
	hm      core.IHealthMonitor
	handler http.Handler

	mu     sync.RWMutex
	srv    *http.Server
	status map[string]string
}

// NewHealthServer serves on port. A nil stream leaves /ws unmounted.
func NewHealthServer(port int, logger core.ILogger, hm core.IHealthMonitor, stream http.Handler) *HealthServer {
	s := &HealthServer{
		addr:   net.JoinHostPort("", strconv.Itoa(port)),
		logger: logger.WithField("component", "health_server"),
		hm:     hm,
		status: make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())
	if stream != nil {
		mux.Handle("/ws", stream)
	}
	s.handler = mux
	return s
}

func (s *HealthServer) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled and then shuts down gracefully
func (s *HealthServer) Run(ctx context.Context) error {
	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting health server", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

func (s *HealthServer) Stop(ctx context.Context) error {
	s.mu.RLock()
	srv := s.srv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("Stopping health server")
	return srv.Shutdown(ctx)
}

// UpdateStatus records a free-form status line shown under /status
func (s *HealthServer) UpdateStatus(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[key] = value
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	balances := make(map[string]string)
	for slot, v := range telemetry.GetGlobalMetrics().GetTradingBalances() {
		balances[slot] = strconv.FormatUint(v, 10)
	}

	health := map[string]interface{}{
		"status":           "ok",
		"time":             time.Now().UTC(),
		"trading_balances": balances,
	}

	code := http.StatusOK
	if s.hm != nil {
		health["components"] = s.hm.GetStatus()
		if !s.hm.IsHealthy() {
			health["status"] = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(health)
}

func (s *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	merged := make(map[string]string, len(s.status))
	for k, v := range s.status {
		merged[k] = v
	}
	s.mu.RUnlock()

	if s.hm != nil {
		for k, v := range s.hm.GetStatus() {
			merged[k] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(merged)
}
