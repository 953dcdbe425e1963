package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/oracle-monitor/pkg/metrics"
	"github.com/cuemby/oracle-monitor/pkg/monitor"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

type fakeState struct {
	snap     *types.Snapshot
	baseline bool
}

func (f *fakeState) Current() *types.Snapshot { return f.snap }
func (f *fakeState) HasBaseline() bool        { return f.baseline }

type fakeLoop monitor.State

func (f fakeLoop) State() monitor.State { return monitor.State(f) }

func sampleSnapshot() *types.Snapshot {
	snap := types.NewSnapshot(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	snap.AddValidator(types.Validator{OperatorAddress: "val-1", Moniker: "One", VotingPower: 10})
	snap.AddValidator(types.Validator{OperatorAddress: "val-2", Moniker: "Two", VotingPower: 30})
	snap.Misses["val-1"] = 4
	snap.FeederLinks["val-1"] = types.FeederLinked("feeder-1")
	snap.FeederLinks["val-2"] = types.FeederNone()
	snap.FeederBalances["feeder-1"] = 100
	snap.BalanceErrors["feeder-9"] = "timeout"
	snap.Rates["uusd"] = decimal.RequireFromString("1.5")
	return snap
}

func serve(hs *HealthServer, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	hs.Handler().ServeHTTP(w, req)
	return w
}

// TestHealthEndpoint tests the /health endpoint
func TestHealthEndpoint(t *testing.T) {
	hs := NewHealthServer(nil, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{
			name:           "GET request succeeds",
			method:         http.MethodGet,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "POST request fails",
			method:         http.MethodPost,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "DELETE request fails",
			method:         http.MethodDelete,
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(hs, tt.method, "/health")
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusOK {
				var response metrics.HealthStatus
				require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				assert.Equal(t, "healthy", response.Status)
				assert.False(t, response.Timestamp.IsZero())
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

// TestReadyEndpoint tests readiness as critical components report in
func TestReadyEndpoint(t *testing.T) {
	hs := NewHealthServer(nil, nil)

	metrics.UpdateComponent(metrics.ComponentStorage, true, "")
	metrics.UpdateComponent(metrics.ComponentFetcher, false, "chain unreachable")

	w := serve(hs, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var response metrics.HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "not_ready", response.Status)
	assert.Contains(t, response.Components[metrics.ComponentFetcher], "chain unreachable")
	assert.Equal(t, "waiting for fetcher", response.Message)

	metrics.UpdateComponent(metrics.ComponentFetcher, true, "")
	w = serve(hs, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestStateEndpoint tests the /state summary
func TestStateEndpoint(t *testing.T) {
	state := &fakeState{snap: sampleSnapshot(), baseline: true}
	hs := NewHealthServer(state, fakeLoop(monitor.StateSleeping))

	w := serve(hs, http.MethodGet, "/state")
	require.Equal(t, http.StatusOK, w.Code)

	var response StateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, "sleeping", response.LoopState)
	assert.True(t, response.HasBaseline)
	require.NotNil(t, response.CapturedAt)
	assert.True(t, response.CapturedAt.Equal(state.snap.CapturedAt))
	assert.Equal(t, 2, response.Validators)
	assert.Equal(t, 1, response.Misses)
	assert.Equal(t, uint64(40), response.TotalPower)
	assert.Equal(t, 1, response.FeederLinks[types.FeederStatusLinked])
	assert.Equal(t, 1, response.FeederLinks[types.FeederStatusNone])
	assert.Equal(t, 1, response.FeederBalances)
	assert.Equal(t, 1, response.BalanceErrors)
	assert.Equal(t, "1.5", response.ExchangeRates["uusd"])
}

// TestStateEndpointEmpty tests /state before the first fetch
func TestStateEndpointEmpty(t *testing.T) {
	hs := NewHealthServer(&fakeState{}, nil)

	w := serve(hs, http.MethodGet, "/state")
	require.Equal(t, http.StatusOK, w.Code)

	var response StateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "empty", response.Status)
	assert.Empty(t, response.LoopState)
	assert.Nil(t, response.CapturedAt)
	assert.Zero(t, response.Validators)
}

// TestRoutes verifies every route is registered
func TestRoutes(t *testing.T) {
	hs := NewHealthServer(nil, nil)

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{path: "/health", expectedStatus: http.StatusOK},
		{path: "/live", expectedStatus: http.StatusOK},
		{path: "/metrics", expectedStatus: http.StatusOK},
		{path: "/state", expectedStatus: http.StatusOK},
		{path: "/nonexistent", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := serve(hs, http.MethodGet, tt.path)
			assert.Equal(t, tt.expectedStatus, w.Code, "Path: %s", tt.path)
		})
	}
}

// TestServeAndShutdown tests the server lifecycle on a real listener
func TestServeAndShutdown(t *testing.T) {
	hs := NewHealthServer(nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- hs.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hs.Shutdown(ctx))
	assert.NoError(t, <-done)
}

// TestHealthServerConcurrency tests concurrent requests to health endpoints
func TestHealthServerConcurrency(t *testing.T) {
	hs := NewHealthServer(&fakeState{snap: sampleSnapshot()}, nil)

	done := make(chan bool, 20)
	for i := 0; i < 10; i++ {
		go func() {
			w := serve(hs, http.MethodGet, "/state")
			assert.Equal(t, http.StatusOK, w.Code)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		go func() {
			w := serve(hs, http.MethodGet, "/ready")
			assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, w.Code)
			done <- true
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}

func BenchmarkStateHandler(b *testing.B) {
	hs := NewHealthServer(&fakeState{snap: sampleSnapshot()}, nil)
	req := httptest.NewRequest(http.MethodGet, "/state", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		hs.Handler().ServeHTTP(w, req)
	}
}
