package chain

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/oracle-monitor/pkg/metrics"
	"github.com/cuemby/oracle-monitor/pkg/reconciler"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

func TestFetcher_FetchSnapshot(t *testing.T) {
	f := newFakeChain()
	f.validators = [][]map[string]any{{
		validatorJSON("val-1", "Alpha", "1000"),
		validatorJSON("val-2", "Beta", "2000"),
		validatorJSON("val-3", "Gamma", "3000"),
		validatorJSON("val-4", "Delta", "4000"),
	}}
	f.misses = map[string]string{"val-1": "1", "val-2": "2", "val-3": "3", "val-4": "4"}
	f.failMiss["val-2"] = true
	f.feeders = map[string]string{"val-1": "feeder-shared", "val-4": "feeder-shared"}
	f.failFeeder["val-3"] = true
	f.balances["feeder-shared"] = "900"
	f.rates = []map[string]string{{"denom": "uusd", "amount": "1.25"}}

	fetcher := NewFetcher(newTestClient(t, f), "note", 0)
	missErrors := testutil.ToFloat64(metrics.FetchErrorsTotal.WithLabelValues("miss"))

	snap, err := fetcher.FetchSnapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, snap.Validate())

	assert.Equal(t, []string{"val-1", "val-2", "val-3", "val-4"}, snap.Order)

	// a failed miss fetch drops that validator's counter only
	assert.Equal(t, map[string]uint64{"val-1": 1, "val-3": 3, "val-4": 4}, snap.Misses)
	assert.Equal(t, missErrors+1, testutil.ToFloat64(metrics.FetchErrorsTotal.WithLabelValues("miss")))

	assert.Equal(t, types.FeederLinked("feeder-shared"), snap.FeederLinks["val-1"])
	assert.True(t, snap.FeederLinks["val-2"].IsNone())
	assert.True(t, snap.FeederLinks["val-3"].IsError())
	assert.Equal(t, types.FeederLinked("feeder-shared"), snap.FeederLinks["val-4"])

	assert.Equal(t, map[string]uint64{"feeder-shared": 900}, snap.FeederBalances)
	assert.Equal(t, 1, f.Requests("balance"), "shared feeder balance fetched once")

	require.Len(t, snap.Rates, 1)
	assert.Equal(t, "1.25", snap.Rates["uusd"].String())
	assert.False(t, snap.CapturedAt.IsZero())
}

func TestFetcher_BalanceFailureIsUnknown(t *testing.T) {
	f := newFakeChain()
	f.validators = [][]map[string]any{{
		validatorJSON("val-1", "Alpha", "10"),
		validatorJSON("val-2", "Beta", "10"),
	}}
	f.misses = map[string]string{"val-1": "8", "val-2": "5"}
	f.feeders = map[string]string{"val-1": "feeder-1", "val-2": "feeder-2"}
	f.failBalance["feeder-1"] = true

	snap, err := NewFetcher(newTestClient(t, f), "note", 0).FetchSnapshot(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, snap.FeederBalances, "feeder-1")
	assert.Contains(t, snap.BalanceErrors, "feeder-1")
	// no entry for the denom reads as an empty account
	assert.Equal(t, uint64(0), snap.FeederBalances["feeder-2"])

	res, err := reconciler.Reconcile(map[string]uint64{"val-1": 5, "val-2": 5}, snap, 1_000_000)
	require.NoError(t, err)
	require.Len(t, res.LowBalance, 1)
	assert.Equal(t, "val-2", res.LowBalance[0].Address)
	assert.Equal(t, 1, res.BalanceUnknown)
}

func TestFetcher_RatesFailureLeavesTableEmpty(t *testing.T) {
	f := newFakeChain()
	f.validators = [][]map[string]any{{validatorJSON("val-1", "Alpha", "1")}}
	f.failRates = true

	snap, err := NewFetcher(newTestClient(t, f), "note", 0).FetchSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Rates)
	assert.Contains(t, snap.Misses, "val-1")
}

func TestFetcher_EmptyRoster(t *testing.T) {
	f := newFakeChain()

	_, err := NewFetcher(newTestClient(t, f), "note", 0).FetchSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrEmptyRoster)
	assert.Zero(t, f.Requests("miss"))
}

func TestFetcher_RosterFailure(t *testing.T) {
	fetcher := NewFetcher(NewClient(Opts{BaseURL: "http://127.0.0.1:1", Timeout: 500 * time.Millisecond}), "note", 0)

	_, err := fetcher.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransientFetch)
}

func TestFetcher_CancelledDuringPause(t *testing.T) {
	f := newFakeChain()
	f.validators = [][]map[string]any{{
		validatorJSON("val-1", "Alpha", "1"),
		validatorJSON("val-2", "Beta", "1"),
	}}

	fetcher := NewFetcher(newTestClient(t, f), "note", time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetcher.FetchSnapshot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.Requests("miss"))
}
