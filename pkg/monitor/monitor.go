package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cuemby/oracle-monitor/pkg/chain"
	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/metrics"
	"github.com/cuemby/oracle-monitor/pkg/notify"
	"github.com/cuemby/oracle-monitor/pkg/reconciler"
	"github.com/cuemby/oracle-monitor/pkg/report"
	"github.com/cuemby/oracle-monitor/pkg/storage"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

// ErrCyclePanic is returned for a cycle that panicked
var ErrCyclePanic = errors.New("monitoring cycle panicked")

// Fetcher captures a snapshot of the oracle set
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*types.Snapshot, error)
}

// History records delivered reports
type History interface {
	SaveReport(rec *types.ReportRecord) error
}

// Config holds the loop timings and report options
type Config struct {
	Interval            time.Duration
	RetryCooldown       time.Duration
	LowBalanceThreshold uint64
	Title               string
}

// Monitor drives the fetch, reconcile and report cycle
type Monitor struct {
	fetcher Fetcher
	holder  *storage.StateHolder
	sender  notify.Sender
	history History
	cfg     Config
	now     func() time.Time
	logger  zerolog.Logger

	mu    sync.RWMutex
	state State
}

// New creates a monitor. history may be nil.
func New(fetcher Fetcher, holder *storage.StateHolder, sender notify.Sender, history History, cfg Config) *Monitor {
	return &Monitor{
		fetcher: fetcher,
		holder:  holder,
		sender:  sender,
		history: history,
		cfg:     cfg,
		now:     time.Now,
		logger:  log.WithComponent("monitor"),
		state:   StateIdle,
	}
}

// State returns the current loop state
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	metrics.LoopState.Set(float64(s))
}

// Run executes cycles until ctx is cancelled. The first cycle starts
// immediately and is a warm-up: it fetches and persists the snapshot but
// neither reconciles nor reports, even over a restored baseline. Reports
// start with the first cycle after a successful warm-up. A failed cycle is
// followed by the retry cooldown instead of the interval.
// Run returns ctx.Err() on shutdown.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.setState(StateStopped)

	m.logger.Info().
		Dur("interval", m.cfg.Interval).
		Dur("retry_cooldown", m.cfg.RetryCooldown).
		Bool("baseline", m.holder.HasBaseline()).
		Msg("Starting monitoring loop")

	warmUp := true
	for {
		if err := ctx.Err(); err != nil {
			m.logger.Info().Msg("Monitoring loop stopped")
			return err
		}

		wait, next := m.cfg.Interval, StateSleeping
		_, err := m.cycle(ctx, warmUp)
		switch {
		case err == nil:
			warmUp = false
		case ctx.Err() == nil:
			m.logger.Error().Err(err).Dur("cooldown", m.cfg.RetryCooldown).Msg("Monitoring cycle failed")
			wait, next = m.cfg.RetryCooldown, StateCooldown
		}

		m.setState(next)
		_ = sleep(ctx, wait)
	}
}

// RunOnce executes a single cycle against the current baseline. The report
// is nil when there was no baseline to diff against.
func (m *Monitor) RunOnce(ctx context.Context) (*report.Report, error) {
	defer m.setState(StateIdle)
	return m.cycle(ctx, false)
}

// cycle performs one fetch, reconcile and report pass. A warm-up cycle stops
// after the snapshot is persisted.
func (m *Monitor) cycle(ctx context.Context, warmUp bool) (rep *report.Report, err error) {
	cycleID := uuid.New().String()
	logger := log.WithCycleID(m.logger, cycleID)

	timer := metrics.NewTimer()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCyclePanic, r)
			rep = nil
		}
		timer.ObserveDuration(metrics.CycleDuration)
		metrics.CyclesTotal.WithLabelValues(cycleResult(err)).Inc()
	}()

	m.setState(StateFetching)
	snap, err := m.fetcher.FetchSnapshot(ctx)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentFetcher, false, err.Error())
		if errors.Is(err, chain.ErrEmptyRoster) {
			logger.Warn().Msg("Empty roster, keeping previous state")
		}
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		metrics.UpdateComponent(metrics.ComponentFetcher, false, err.Error())
		return nil, err
	}
	metrics.UpdateComponent(metrics.ComponentFetcher, true, "")

	m.holder.Rotate(snap)
	if err := m.holder.Persist(); err != nil {
		metrics.PersistenceErrorsTotal.Inc()
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		logger.Error().Err(err).Msg("Failed to persist state, continuing")
	} else {
		metrics.UpdateComponent(metrics.ComponentStorage, true, "")
	}

	if warmUp {
		logger.Info().
			Int("validators", len(snap.Validators)).
			Bool("restored_baseline", len(m.holder.Previous()) > 0).
			Msg("Warm-up cycle complete, reporting starts next cycle")
		metrics.LastSuccessTimestamp.Set(float64(m.now().Unix()))
		return nil, nil
	}

	m.setState(StateReconciling)
	res, err := reconciler.Reconcile(m.holder.Previous(), snap, m.cfg.LowBalanceThreshold)
	if err != nil {
		return nil, err
	}
	if res.Status == reconciler.StatusNoBaseline {
		logger.Info().Int("validators", len(snap.Validators)).Msg("Baseline established, no report sent")
		metrics.LastSuccessTimestamp.Set(float64(m.now().Unix()))
		return nil, nil
	}
	observeResult(res)

	m.setState(StateReporting)
	rep = report.Build(res, snap.Rates, report.Options{
		Title:               m.cfg.Title,
		LowBalanceThreshold: m.cfg.LowBalanceThreshold,
		Now:                 m.now,
	})

	sendErr := m.sender.Send(ctx, rep)
	if sendErr != nil {
		metrics.ReportsSentTotal.WithLabelValues("failure").Inc()
		metrics.UpdateComponent(metrics.ComponentNotifier, false, sendErr.Error())
		logger.Error().Err(sendErr).Str("report_id", rep.ID).Msg("Failed to deliver report")
	} else {
		metrics.ReportsSentTotal.WithLabelValues("success").Inc()
		metrics.UpdateComponent(metrics.ComponentNotifier, true, "")
	}
	m.recordHistory(logger, cycleID, rep, res, sendErr)

	logger.Info().
		Int("regressed", len(res.Regressed)).
		Int("stable", len(res.Stable)).
		Int("low_balance", len(res.LowBalance)).
		Int("no_feeder", len(res.NoFeeder)).
		Str("regressed_power", report.FormatPct(res.Power.Regressed.Pct)).
		Msg("Cycle complete")

	metrics.LastSuccessTimestamp.Set(float64(m.now().Unix()))
	return rep, nil
}

func (m *Monitor) recordHistory(logger zerolog.Logger, cycleID string, rep *report.Report, res *reconciler.Result, sendErr error) {
	if m.history == nil {
		return
	}

	rec := &types.ReportRecord{
		ID:             rep.ID,
		CycleID:        cycleID,
		SentAt:         m.now().UTC(),
		CapturedAt:     res.CapturedAt,
		HasIssues:      rep.HasIssues,
		Regressed:      len(res.Regressed),
		Stable:         len(res.Stable),
		LowBalance:     len(res.LowBalance),
		NoFeeder:       len(res.NoFeeder),
		RegressedPower: res.Power.Regressed.Pct,
		Delivered:      sendErr == nil,
	}
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}
	if data, err := json.Marshal(rep); err == nil {
		rec.Report = data
	}

	if err := m.history.SaveReport(rec); err != nil {
		metrics.PersistenceErrorsTotal.Inc()
		logger.Error().Err(err).Str("report_id", rep.ID).Msg("Failed to record report history")
	}
}

func observeResult(res *reconciler.Result) {
	metrics.ValidatorsTotal.WithLabelValues("regressed").Set(float64(len(res.Regressed)))
	metrics.ValidatorsTotal.WithLabelValues("stable").Set(float64(len(res.Stable)))
	metrics.ValidatorsTotal.WithLabelValues("low_balance").Set(float64(len(res.LowBalance)))
	metrics.ValidatorsTotal.WithLabelValues("no_feeder").Set(float64(len(res.NoFeeder)))
	metrics.ValidatorsTotal.WithLabelValues("balance_unknown").Set(float64(res.BalanceUnknown))

	metrics.PowerPct.WithLabelValues("regressed").Set(res.Power.Regressed.Pct)
	metrics.PowerPct.WithLabelValues("stable").Set(res.Power.Stable.Pct)
	metrics.PowerPct.WithLabelValues("no_feeder").Set(res.Power.NoFeeder.Pct)
}

func cycleResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, chain.ErrEmptyRoster):
		return "empty_roster"
	case errors.Is(err, ErrCyclePanic):
		return "panic"
	default:
		return "error"
	}
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
