package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/metrics"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

// ErrEmptyRoster is returned when the chain reports no bonded validators
var ErrEmptyRoster = errors.New("no bonded validators returned")

// API is the subset of the chain REST API the fetcher consumes
type API interface {
	BondedValidators(ctx context.Context) ([]types.Validator, error)
	MissCounter(ctx context.Context, valoper string) (uint64, error)
	FeederLink(ctx context.Context, valoper string) types.FeederLink
	Balance(ctx context.Context, address, denom string) (uint64, error)
	ExchangeRates(ctx context.Context) (types.ExchangeRateTable, error)
}

// Fetcher assembles a Snapshot from sequential chain API requests
type Fetcher struct {
	api    API
	denom  string
	pause  time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewFetcher creates a fetcher. pause is slept between consecutive requests
// to stay under the API's rate limits.
func NewFetcher(api API, denom string, pause time.Duration) *Fetcher {
	return &Fetcher{
		api:    api,
		denom:  denom,
		pause:  pause,
		now:    time.Now,
		logger: log.WithComponent("chain"),
	}
}

// FetchSnapshot captures the current state of the oracle set. Failures of a
// single validator's miss counter, feeder or balance degrade that field only;
// the snapshot is returned once every sub-request has completed.
func (f *Fetcher) FetchSnapshot(ctx context.Context) (*types.Snapshot, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FetchDuration)

	validators, err := f.api.BondedValidators(ctx)
	if err != nil {
		metrics.FetchErrorsTotal.WithLabelValues("validators").Inc()
		return nil, err
	}
	if len(validators) == 0 {
		return nil, ErrEmptyRoster
	}

	snap := types.NewSnapshot(f.now().UTC())
	for _, v := range validators {
		snap.AddValidator(v)
	}

	feeders := make([]string, 0, len(snap.Order))
	seenFeeder := make(map[string]bool)

	for _, addr := range snap.Order {
		if err := f.sleep(ctx); err != nil {
			return nil, err
		}
		vlog := log.WithValidator(f.logger, addr)

		misses, err := f.api.MissCounter(ctx, addr)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.FetchErrorsTotal.WithLabelValues("miss").Inc()
			vlog.Warn().Err(err).Msg("Failed to fetch miss counter")
		} else {
			snap.Misses[addr] = misses
		}

		if err := f.sleep(ctx); err != nil {
			return nil, err
		}
		link := f.api.FeederLink(ctx, addr)
		if link.IsError() {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.FetchErrorsTotal.WithLabelValues("feeder").Inc()
			vlog.Warn().Str("error", link.Error).Msg("Failed to fetch feeder")
		}
		snap.FeederLinks[addr] = link

		if link.IsLinked() && !seenFeeder[link.Address] {
			seenFeeder[link.Address] = true
			feeders = append(feeders, link.Address)
		}
	}

	for _, feeder := range feeders {
		if err := f.sleep(ctx); err != nil {
			return nil, err
		}
		balance, err := f.api.Balance(ctx, feeder, f.denom)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.FetchErrorsTotal.WithLabelValues("balance").Inc()
			f.logger.Warn().Err(err).Str("feeder", feeder).Msg("Failed to fetch feeder balance")
			snap.BalanceErrors[feeder] = err.Error()
			continue
		}
		snap.FeederBalances[feeder] = balance
	}

	if err := f.sleep(ctx); err != nil {
		return nil, err
	}
	rates, err := f.api.ExchangeRates(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.FetchErrorsTotal.WithLabelValues("rates").Inc()
		f.logger.Warn().Err(err).Msg("Failed to fetch exchange rates")
	} else {
		snap.Rates = rates
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("fetcher produced inconsistent snapshot: %w", err)
	}

	f.logger.Info().
		Int("validators", len(snap.Validators)).
		Int("misses", len(snap.Misses)).
		Int("feeders", len(feeders)).
		Int("balances", len(snap.FeederBalances)).
		Int("balance_errors", len(snap.BalanceErrors)).
		Int("rates", len(snap.Rates)).
		Msg("Snapshot fetched")

	return snap, nil
}

func (f *Fetcher) sleep(ctx context.Context) error {
	if f.pause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(f.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
