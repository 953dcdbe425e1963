/*
Package reconciler turns two point-in-time observations of the oracle set into
a classified, vote-power-weighted change report.

Reconcile is a pure function: it reads the previous cycle's miss counters and
the current Snapshot and returns a Result. It holds no state and performs no
I/O, which keeps it independently testable.

# Classification

	          previous misses          current snapshot
	                │                        │
	                └──────────┬─────────────┘
	                           ▼
	            ┌──────────────────────────────┐
	            │  previous empty?             │──yes──▶ StatusNoBaseline
	            └──────────────┬───────────────┘
	                           │ no
	                           ▼
	            ┌──────────────────────────────┐
	            │  for each validator in order │
	            └──────────────┬───────────────┘
	       ┌───────────────────┼─────────────────────┐
	       ▼                   ▼                     ▼
	current > previous   current <= previous   feeder link
	  Regressed            Stable              linked + balance < threshold ▶ LowBalance
	                                           linked + balance unknown  ▶ (neither)
	                                           none                      ▶ NoFeeder
	                                           error                     ▶ (neither)

Miss classification and feeder classification are independent: a regressed
validator can also be low on balance.

A validator missing from previous is compared against 0. A counter that went
down (for example after a chain reset) is classified Stable; the engine does
not attempt to detect resets.

Validators without a miss counter this cycle (the fetch failed) appear in
neither Regressed nor Stable and are counted in Result.MissingMisses.

A linked feeder whose balance request failed (Snapshot.BalanceErrors) is not
LowBalance; its validators are counted in Result.BalanceUnknown. A balance
reply without an entry for the denom is a real balance of 0.

# Vote-Power Aggregates

The denominator is the voting power of the full roster, including validators
whose miss data is missing. For Regressed, Stable and NoFeeder:

	Pct = 100 * Sum / Total    (0 when Total is 0)

Percentages are not rounded here; rounding is a presentation concern of the
report package.

# Determinism

Every list follows Snapshot.Order, the roster order returned by the chain, so
identical inputs always produce identical results.

# Errors

A snapshot whose miss or feeder maps reference an address outside its roster
is a contract violation of the fetcher and is returned as an error wrapping
types.ErrInvalidSnapshot.
*/
package reconciler
