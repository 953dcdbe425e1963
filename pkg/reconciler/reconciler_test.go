package reconciler

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/oracle-monitor/pkg/types"
)

const threshold = 1_000_000

var captured = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type validatorFixture struct {
	addr   string
	power  uint64
	misses *uint64
	link   types.FeederLink
}

func misses(n uint64) *uint64 { return &n }

func buildSnapshot(fixtures []validatorFixture, balances map[string]uint64) *types.Snapshot {
	s := types.NewSnapshot(captured)
	for _, fx := range fixtures {
		s.AddValidator(types.Validator{
			OperatorAddress: fx.addr,
			Moniker:         "moniker-" + fx.addr,
			VotingPower:     fx.power,
		})
		if fx.misses != nil {
			s.Misses[fx.addr] = *fx.misses
		}
		if fx.link.Status != "" {
			s.FeederLinks[fx.addr] = fx.link
		}
	}
	for k, v := range balances {
		s.FeederBalances[k] = v
	}
	return s
}

func TestReconcile_RegressedIffIncrease(t *testing.T) {
	tests := []struct {
		name      string
		previous  uint64
		current   uint64
		regressed bool
		delta     uint64
	}{
		{name: "unchanged", previous: 5, current: 5},
		{name: "increase", previous: 5, current: 8, regressed: true, delta: 3},
		{name: "decrease after reset", previous: 40, current: 2},
		{name: "from zero", previous: 0, current: 1, regressed: true, delta: 1},
		{name: "both zero", previous: 0, current: 0},
		{name: "large counters", previous: math.MaxUint64 - 10, current: math.MaxUint64, regressed: true, delta: 10},
		{name: "large decrease", previous: math.MaxUint64, current: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := buildSnapshot([]validatorFixture{
				{addr: "V1", power: 10, misses: misses(tt.current)},
			}, nil)

			res, err := Reconcile(map[string]uint64{"V1": tt.previous}, snap, threshold)
			require.NoError(t, err)
			require.Equal(t, StatusReconciled, res.Status)

			if tt.regressed {
				require.Len(t, res.Regressed, 1)
				assert.Empty(t, res.Stable)
				assert.Equal(t, tt.delta, res.Regressed[0].Delta)
				assert.Equal(t, tt.previous, res.Regressed[0].Previous)
				assert.Equal(t, tt.current, res.Regressed[0].Current)
			} else {
				require.Len(t, res.Stable, 1)
				assert.Empty(t, res.Regressed)
				assert.Equal(t, tt.current, res.Stable[0].Current)
			}
		})
	}
}

func TestReconcile_NoBaseline(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 10, misses: misses(100), link: types.FeederNone()},
	}, nil)

	for name, previous := range map[string]map[string]uint64{
		"nil previous":   nil,
		"empty previous": {},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := Reconcile(previous, snap, threshold)
			require.NoError(t, err)
			assert.Equal(t, StatusNoBaseline, res.Status)
			assert.Empty(t, res.Regressed)
			assert.Empty(t, res.Stable)
			assert.Empty(t, res.NoFeeder)
			assert.False(t, res.HasIssues())
		})
	}
}

func TestReconcile_ScenarioA_Stable(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 1_000_000, misses: misses(5), link: types.FeederLinked("F1")},
	}, map[string]uint64{"F1": 5_000_000})

	res, err := Reconcile(map[string]uint64{"V1": 5}, snap, threshold)
	require.NoError(t, err)

	require.Len(t, res.Stable, 1)
	assert.Equal(t, "V1", res.Stable[0].Address)
	assert.Empty(t, res.Regressed)
	assert.Empty(t, res.LowBalance)
	assert.Empty(t, res.NoFeeder)
	assert.False(t, res.HasIssues())
}

func TestReconcile_ScenarioB_RegressedPower(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 1_000_000, misses: misses(8)},
	}, nil)

	res, err := Reconcile(map[string]uint64{"V1": 5}, snap, threshold)
	require.NoError(t, err)

	require.Len(t, res.Regressed, 1)
	assert.Equal(t, uint64(3), res.Regressed[0].Delta)
	assert.Equal(t, uint64(1_000_000), res.Power.Total)
	assert.Equal(t, 100.0, res.Power.Regressed.Pct)
	assert.Equal(t, 0.0, res.Power.Stable.Pct)
	assert.True(t, res.HasIssues())
}

func TestReconcile_ScenarioC_LowBalanceThreshold(t *testing.T) {
	tests := []struct {
		balance uint64
		low     bool
	}{
		{balance: 999_999, low: true},
		{balance: 1_000_000, low: false},
		{balance: 0, low: true},
	}

	for _, tt := range tests {
		snap := buildSnapshot([]validatorFixture{
			{addr: "V1", power: 10, misses: misses(1), link: types.FeederLinked("F1")},
		}, map[string]uint64{"F1": tt.balance})

		res, err := Reconcile(map[string]uint64{"V1": 1}, snap, threshold)
		require.NoError(t, err)

		if tt.low {
			require.Len(t, res.LowBalance, 1, "balance %d", tt.balance)
			assert.Equal(t, "F1", res.LowBalance[0].FeederAddress)
			assert.Equal(t, tt.balance, res.LowBalance[0].Balance)
		} else {
			assert.Empty(t, res.LowBalance, "balance %d", tt.balance)
		}
	}
}

func TestReconcile_BalanceErrorNeverLowBalance(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 10, misses: misses(5), link: types.FeederLinked("F1")},
		{addr: "V2", power: 10, misses: misses(5), link: types.FeederLinked("F1")},
		{addr: "V3", power: 10, misses: misses(5), link: types.FeederLinked("F3")},
	}, map[string]uint64{"F3": 0})
	snap.BalanceErrors["F1"] = "status 503"

	res, err := Reconcile(map[string]uint64{"V1": 5, "V2": 5, "V3": 5}, snap, threshold)
	require.NoError(t, err)

	require.Len(t, res.LowBalance, 1)
	assert.Equal(t, "V3", res.LowBalance[0].Address)
	assert.Equal(t, 2, res.BalanceUnknown)
}

func TestReconcile_ZeroBalanceReplyIsLow(t *testing.T) {
	// The chain answered without an entry for the denom: the fetcher stores 0
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 10, misses: misses(1), link: types.FeederLinked("F1")},
	}, map[string]uint64{"F1": 0})

	res, err := Reconcile(map[string]uint64{"V1": 1}, snap, threshold)
	require.NoError(t, err)
	require.Len(t, res.LowBalance, 1)
	assert.Equal(t, uint64(0), res.LowBalance[0].Balance)
	assert.Zero(t, res.BalanceUnknown)
}

func TestReconcile_ScenarioD_FirstCycle(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 10, misses: misses(3)},
		{addr: "V2", power: 20, misses: misses(0)},
	}, nil)

	res, err := Reconcile(map[string]uint64{}, snap, threshold)
	require.NoError(t, err)
	assert.Equal(t, StatusNoBaseline, res.Status)
	assert.Equal(t, captured, res.CapturedAt)
}

func TestReconcile_PartialFailureIsolation(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "none", power: 10, misses: misses(0), link: types.FeederNone()},
		{addr: "error", power: 10, misses: misses(0), link: types.FeederFetchError("timeout")},
		{addr: "missing-link", power: 10, misses: misses(0)},
	}, nil)

	res, err := Reconcile(map[string]uint64{"none": 0}, snap, threshold)
	require.NoError(t, err)

	require.Len(t, res.NoFeeder, 1)
	assert.Equal(t, "none", res.NoFeeder[0].Address)
	assert.Empty(t, res.LowBalance, "no-feeder and fetch-error validators never appear in LowBalance")
	assert.Equal(t, 2, res.FeederUnknown)
}

func TestReconcile_MissingMissData(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 300, misses: misses(9)},
		{addr: "V2", power: 700}, // miss fetch failed
	}, nil)

	res, err := Reconcile(map[string]uint64{"V1": 4, "V2": 1}, snap, threshold)
	require.NoError(t, err)

	assert.Len(t, res.Regressed, 1)
	assert.Empty(t, res.Stable)
	assert.Equal(t, 1, res.MissingMisses)
	// Denominator covers the whole roster
	assert.Equal(t, uint64(1000), res.Power.Total)
	assert.InDelta(t, 30.0, res.Power.Regressed.Pct, 1e-9)
}

func TestReconcile_ZeroTotalPower(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 0, misses: misses(2), link: types.FeederNone()},
		{addr: "V2", power: 0, misses: misses(1)},
	}, nil)

	res, err := Reconcile(map[string]uint64{"V1": 1, "V2": 1}, snap, threshold)
	require.NoError(t, err)

	for name, pct := range map[string]float64{
		"regressed": res.Power.Regressed.Pct,
		"stable":    res.Power.Stable.Pct,
		"no_feeder": res.Power.NoFeeder.Pct,
	} {
		assert.False(t, math.IsNaN(pct), name)
		assert.Equal(t, 0.0, pct, name)
	}
}

func TestReconcile_PowerAggregates(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "A", power: 500, misses: misses(10), link: types.FeederNone()},
		{addr: "B", power: 300, misses: misses(2)},
		{addr: "C", power: 200, misses: misses(7)},
	}, nil)

	res, err := Reconcile(map[string]uint64{"A": 4, "B": 2, "C": 9}, snap, threshold)
	require.NoError(t, err)

	assert.Equal(t, uint64(500), res.Power.Regressed.Sum)
	assert.InDelta(t, 50.0, res.Power.Regressed.Pct, 1e-9)
	assert.Equal(t, uint64(500), res.Power.Stable.Sum)
	assert.InDelta(t, 50.0, res.Power.Stable.Pct, 1e-9)
	assert.Equal(t, uint64(500), res.Power.NoFeeder.Sum)
	assert.InDelta(t, 50.0, res.Power.NoFeeder.Pct, 1e-9)
}

func TestReconcile_DeterministicOrder(t *testing.T) {
	fixtures := []validatorFixture{
		{addr: "zeta", power: 1, misses: misses(5)},
		{addr: "alpha", power: 1, misses: misses(5)},
		{addr: "mu", power: 1, misses: misses(5)},
		{addr: "beta", power: 1, misses: misses(0)},
		{addr: "omega", power: 1, misses: misses(1)},
	}
	previous := map[string]uint64{"zeta": 1, "alpha": 1, "mu": 1, "beta": 0, "omega": 1}

	for i := 0; i < 20; i++ {
		res, err := Reconcile(previous, buildSnapshot(fixtures, nil), threshold)
		require.NoError(t, err)

		var regressed, stable []string
		for _, r := range res.Regressed {
			regressed = append(regressed, r.Address)
		}
		for _, s := range res.Stable {
			stable = append(stable, s.Address)
		}
		assert.Equal(t, []string{"zeta", "alpha", "mu"}, regressed)
		assert.Equal(t, []string{"beta", "omega"}, stable)
	}
}

func TestReconcile_NewValidatorComparedToZero(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "old", power: 1, misses: misses(3)},
		{addr: "new", power: 1, misses: misses(4)},
	}, nil)

	res, err := Reconcile(map[string]uint64{"old": 3}, snap, threshold)
	require.NoError(t, err)
	require.Len(t, res.Regressed, 1)
	assert.Equal(t, "new", res.Regressed[0].Address)
	assert.Equal(t, uint64(4), res.Regressed[0].Delta)
}

func TestReconcile_InvalidSnapshot(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 1, misses: misses(1)},
	}, nil)
	snap.Misses["ghost"] = 7

	_, err := Reconcile(map[string]uint64{"V1": 1}, snap, threshold)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidSnapshot)
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	snap := buildSnapshot([]validatorFixture{
		{addr: "V1", power: 1, misses: misses(9), link: types.FeederLinked("F1")},
	}, map[string]uint64{"F1": 1})
	previous := map[string]uint64{"V1": 2}

	_, err := Reconcile(previous, snap, threshold)
	require.NoError(t, err)

	assert.Equal(t, map[string]uint64{"V1": 2}, previous)
	assert.Equal(t, map[string]uint64{"V1": 9}, snap.Misses)
	assert.Equal(t, map[string]uint64{"F1": 1}, snap.FeederBalances)
}
