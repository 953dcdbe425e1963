/*
Package storage persists monitor state in an embedded bbolt database.

# Layout

	<data-dir>/oracle-monitor.db
	  ├── state
	  │     └── current   PersistedState as JSON
	  └── reports
	        ├── 00000001  ReportRecord as JSON
	        ├── 00000002
	        └── ...       big-endian sequence keys, oldest pruned first

Save overwrites state/current inside a single update transaction, so a crash
leaves either the old or the new record, never a partial one. Load returns
nil, nil for an empty store.

SaveReport appends to the reports bucket and prunes it to the history limit
in the same transaction. A limit of zero disables history. ListReports walks
the bucket backwards and returns newest first.

Every write failure is wrapped in ErrPersistence.

# StateHolder

StateHolder owns the in-memory previous and current pair:

	Restore()    current = persisted state (fails soft to a cold start)
	Rotate(s)    previous = current.Misses; current = s
	Persist()    Save(FromSnapshot(current))
	Previous()   copy of previous miss counters
	Current()    current snapshot, read-only

Only the monitoring loop calls Rotate and Persist. Readers such as the /state
handler and the metrics collector go through the RWMutex.

bbolt takes an exclusive file lock. Opening a store held by a running monitor
waits for the open timeout and then fails.
*/
package storage
