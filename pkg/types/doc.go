/*
Package types defines the data model shared by every oracle-monitor package.

The model is deliberately small: a roster of validators, the per-validator
oracle miss counters, the price-feeder delegation of each validator, the
balance of each feeder account, and the oracle exchange rates. One polling
cycle captures all of these into a Snapshot.

# Core Types

Roster:
  - Validator: operator address, moniker, voting power (bonded tokens)

Feeder Delegation:
  - FeederLink: tagged variant with three cases
  - FeederLinked(addr): a feeder account is delegated
  - FeederNone(): the validator has explicitly delegated no feeder
  - FeederFetchError(reason): the lookup failed this cycle

The distinction between "none" and "error" matters: a validator whose feeder
lookup timed out must never be reported as misconfigured.

Snapshots:
  - Snapshot: everything fetched in one cycle, plus roster order
  - PersistedState: the flattened form written to the state store
  - ReportRecord: a delivered report kept for history

# Invariants

Every key in Snapshot.Misses and Snapshot.FeederLinks is a key of
Snapshot.Validators. Validate reports violations as ErrInvalidSnapshot.

Snapshot.Order lists each roster address exactly once, in the order the chain
returned them. Downstream lists follow this order so output is reproducible.

# Persistence

FromSnapshot and ToSnapshot convert losslessly:

	ps := types.FromSnapshot(snap)
	restored := ps.ToSnapshot()
	// restored holds the same validators, misses, links, balances and rates

Feeder links are split into three fields of the persisted record:
feeder_addresses (linked), validators_without_feeder (none) and
feeder_errors (error).
*/
package types
