package reconciler

import (
	"fmt"
	"time"

	"github.com/cuemby/oracle-monitor/pkg/types"
)

// Status tags a reconciliation result
type Status string

const (
	// StatusNoBaseline means there was no previous snapshot to diff against.
	// No alert must be sent for this result.
	StatusNoBaseline Status = "no_baseline"
	StatusReconciled Status = "reconciled"
)

// Regressed is a validator whose miss counter increased since the baseline
type Regressed struct {
	Moniker     string
	Address     string
	Previous    uint64
	Current     uint64
	Delta       uint64
	VotingPower uint64
}

// Stable is a validator with no new misses
type Stable struct {
	Moniker     string
	Address     string
	Current     uint64
	VotingPower uint64
}

// LowBalance is a validator whose feeder account is below the threshold
type LowBalance struct {
	Moniker       string
	Address       string
	FeederAddress string
	Balance       uint64
	VotingPower   uint64
}

// NoFeeder is a validator that has explicitly delegated no feeder
type NoFeeder struct {
	Moniker     string
	Address     string
	VotingPower uint64
}

// PowerShare is the voting power held by a class of validators
type PowerShare struct {
	Sum uint64
	Pct float64
}

// PowerStats aggregates voting power over the full roster
type PowerStats struct {
	Total     uint64
	Regressed PowerShare
	Stable    PowerShare
	NoFeeder  PowerShare
}

// Result is the classified diff of two snapshots
type Result struct {
	Status     Status
	CapturedAt time.Time

	Regressed  []Regressed
	Stable     []Stable
	LowBalance []LowBalance
	NoFeeder   []NoFeeder
	Power      PowerStats

	// Roster validators with no miss counter this cycle (fetch failed)
	MissingMisses int
	// Roster validators whose feeder lookup failed this cycle
	FeederUnknown int
	// Linked validators whose feeder balance fetch failed this cycle
	BalanceUnknown int
	// Roster size
	Validators int
}

// HasIssues reports whether the result warrants an alert
func (r *Result) HasIssues() bool {
	return len(r.Regressed) > 0 || len(r.LowBalance) > 0 || len(r.NoFeeder) > 0
}

// Reconcile compares the previous miss counters with the current snapshot.
// It does not mutate its inputs. An empty previous map yields a result
// tagged StatusNoBaseline.
func Reconcile(previous map[string]uint64, current *types.Snapshot, lowBalanceThreshold uint64) (*Result, error) {
	if len(previous) == 0 {
		res := &Result{Status: StatusNoBaseline}
		if current != nil {
			res.CapturedAt = current.CapturedAt
		}
		return res, nil
	}

	if err := current.Validate(); err != nil {
		return nil, fmt.Errorf("cannot reconcile: %w", err)
	}

	res := &Result{
		Status:     StatusReconciled,
		CapturedAt: current.CapturedAt,
		Validators: len(current.Validators),
	}

	for _, addr := range current.Order {
		v := current.Validators[addr]

		if cur, ok := current.Misses[addr]; ok {
			prev := previous[addr]
			if cur > prev {
				res.Regressed = append(res.Regressed, Regressed{
					Moniker:     v.Moniker,
					Address:     addr,
					Previous:    prev,
					Current:     cur,
					Delta:       cur - prev,
					VotingPower: v.VotingPower,
				})
			} else {
				// A decrease (chain reset) is indistinguishable from no change
				res.Stable = append(res.Stable, Stable{
					Moniker:     v.Moniker,
					Address:     addr,
					Current:     cur,
					VotingPower: v.VotingPower,
				})
			}
		} else {
			res.MissingMisses++
		}

		link, ok := current.FeederLinks[addr]
		if !ok {
			res.FeederUnknown++
			continue
		}
		switch link.Status {
		case types.FeederStatusLinked:
			// An unknown balance is not an alert
			if !current.BalanceKnown(link.Address) {
				res.BalanceUnknown++
				continue
			}
			balance := current.FeederBalances[link.Address]
			if balance < lowBalanceThreshold {
				res.LowBalance = append(res.LowBalance, LowBalance{
					Moniker:       v.Moniker,
					Address:       addr,
					FeederAddress: link.Address,
					Balance:       balance,
					VotingPower:   v.VotingPower,
				})
			}
		case types.FeederStatusNone:
			res.NoFeeder = append(res.NoFeeder, NoFeeder{
				Moniker:     v.Moniker,
				Address:     addr,
				VotingPower: v.VotingPower,
			})
		default:
			res.FeederUnknown++
		}
	}

	res.Power = powerStats(current.TotalPower(), res)
	return res, nil
}

func powerStats(total uint64, res *Result) PowerStats {
	var regressed, stable, noFeeder uint64
	for _, r := range res.Regressed {
		regressed += r.VotingPower
	}
	for _, s := range res.Stable {
		stable += s.VotingPower
	}
	for _, n := range res.NoFeeder {
		noFeeder += n.VotingPower
	}
	return PowerStats{
		Total:     total,
		Regressed: share(regressed, total),
		Stable:    share(stable, total),
		NoFeeder:  share(noFeeder, total),
	}
}

func share(sum, total uint64) PowerShare {
	if total == 0 {
		return PowerShare{Sum: sum}
	}
	return PowerShare{Sum: sum, Pct: 100 * float64(sum) / float64(total)}
}
