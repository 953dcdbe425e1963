package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/metrics"
	"github.com/cuemby/oracle-monitor/pkg/monitor"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

// StateSource exposes the monitor's in-memory state
type StateSource interface {
	Current() *types.Snapshot
	HasBaseline() bool
}

// LoopReporter exposes the monitoring loop state
type LoopReporter interface {
	State() monitor.State
}

// HealthServer provides HTTP health check, metrics and state endpoints
type HealthServer struct {
	state  StateSource
	loop   LoopReporter
	mux    *http.ServeMux
	server *http.Server
	logger zerolog.Logger
}

// NewHealthServer creates a new health check HTTP server. loop may be nil.
func NewHealthServer(state StateSource, loop LoopReporter) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		state:  state,
		loop:   loop,
		mux:    mux,
		logger: log.WithComponent("api"),
	}

	// Register endpoints
	mux.Handle("GET /health", metrics.HealthHandler())
	mux.Handle("GET /ready", metrics.ReadyHandler())
	mux.Handle("GET /live", metrics.LivenessHandler())
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /state", hs.stateHandler)

	return hs
}

// Handler returns the server's HTTP handler
func (hs *HealthServer) Handler() http.Handler {
	return hs.mux
}

// Start listens on addr and serves until Shutdown is called
func (hs *HealthServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return hs.Serve(ln)
}

// Serve serves requests on ln until Shutdown is called
func (hs *HealthServer) Serve(ln net.Listener) error {
	hs.server = &http.Server{
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hs.logger.Info().Str("addr", ln.Addr().String()).Msg("Health server listening")
	if err := hs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	if hs.server == nil {
		return nil
	}
	return hs.server.Shutdown(ctx)
}

// StateResponse summarizes the current snapshot
type StateResponse struct {
	Status         string                     `json:"status"` // "ok" or "empty"
	Timestamp      time.Time                  `json:"timestamp"`
	LoopState      string                     `json:"loop_state,omitempty"`
	HasBaseline    bool                       `json:"has_baseline"`
	CapturedAt     *time.Time                 `json:"captured_at,omitempty"`
	Validators     int                        `json:"validators"`
	Misses         int                        `json:"misses"`
	TotalPower     uint64                     `json:"total_power"`
	FeederLinks    map[types.FeederStatus]int `json:"feeder_links,omitempty"`
	FeederBalances int                        `json:"feeder_balances"`
	BalanceErrors  int                        `json:"balance_errors"`
	ExchangeRates  map[string]string          `json:"exchange_rates,omitempty"`
}

// stateHandler implements the /state endpoint
func (hs *HealthServer) stateHandler(w http.ResponseWriter, r *http.Request) {
	response := StateResponse{
		Status:    "empty",
		Timestamp: time.Now(),
	}
	if hs.loop != nil {
		response.LoopState = hs.loop.State().String()
	}

	if hs.state != nil {
		response.HasBaseline = hs.state.HasBaseline()
		if snap := hs.state.Current(); snap != nil {
			capturedAt := snap.CapturedAt
			response.Status = "ok"
			response.CapturedAt = &capturedAt
			response.Validators = len(snap.Validators)
			response.Misses = len(snap.Misses)
			response.TotalPower = snap.TotalPower()
			response.FeederLinks = snap.LinkCounts()
			response.FeederBalances = len(snap.FeederBalances)
			response.BalanceErrors = len(snap.BalanceErrors)
			if len(snap.Rates) > 0 {
				response.ExchangeRates = make(map[string]string, len(snap.Rates))
				for denom, rate := range snap.Rates {
					response.ExchangeRates[denom] = rate.String()
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
