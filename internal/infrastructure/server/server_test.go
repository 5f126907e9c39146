package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mev_engine/internal/infrastructure/health"
	"mev_engine/internal/mock"
	"mev_engine/pkg/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (*http.Response, map[string]interface{}) {
	t.Helper()
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestHealthServer_Health(t *testing.T) {
	telemetry.GetGlobalMetrics().SetTradingBalance("slot-health", ^uint64(0))
	t.Cleanup(func() { telemetry.GetGlobalMetrics().ClearTradingBalance("slot-health") })

	hm := health.NewHealthManager(nil)
	hm.Register("store", func(context.Context) error { return nil })
	s := NewHealthServer(0, &mock.MockLogger{}, hm, nil)

	resp, body := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "18446744073709551615", body["trading_balances"].(map[string]interface{})["slot-health"])
	assert.Equal(t, "Healthy", body["components"].(map[string]interface{})["store"])
}

func TestHealthServer_Unhealthy(t *testing.T) {
	hm := health.NewHealthManager(nil)
	hm.Register("store", func(context.Context) error { return errors.New("closed") })
	s := NewHealthServer(0, &mock.MockLogger{}, hm, nil)

	resp, body := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unhealthy", body["status"])
}

func TestHealthServer_Status(t *testing.T) {
	hm := health.NewHealthManager(nil)
	hm.Register("store", func(context.Context) error { return nil })
	s := NewHealthServer(0, &mock.MockLogger{}, hm, nil)
	s.UpdateStatus("engine", "dbos")

	_, body := get(t, s.Handler(), "/status")
	assert.Equal(t, "dbos", body["engine"])
	assert.Equal(t, "Healthy", body["store"])
}

func TestHealthServer_MetricsAndStream(t *testing.T) {
	stream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv := httptest.NewServer(NewHealthServer(0, &mock.MockLogger{}, nil, stream).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")

	resp, err = http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestHealthServer_RunStopsOnCancel(t *testing.T) {
	s := NewHealthServer(0, &mock.MockLogger{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
