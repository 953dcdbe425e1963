/*
Package monitor runs the periodic fetch, reconcile and report cycle.

# State Machine

	        ┌──────┐
	        │ Idle │
	        └──┬───┘
	           ▼
	     ┌──────────┐  error / panic   ┌──────────┐
	┌───▶│ Fetching │─────────────────▶│ Cooldown │──┐
	│    └────┬─────┘                  └──────────┘  │
	│         │ rotate + persist             ▲       │
	│         ▼                              │       │
	│  ┌─────────────┐   invalid snapshot    │       │
	│  │ Reconciling │───────────────────────┘       │
	│  └──────┬──────┘                               │
	│         │ no baseline ──────────┐              │
	│         ▼                       ▼              │
	│   ┌───────────┐          ┌──────────┐          │
	│   │ Reporting │─────────▶│ Sleeping │          │
	│   └───────────┘          └────┬─────┘          │
	│                               │                │
	└───────────────────────────────┴────────────────┘

	ctx cancelled in any state ──▶ Stopped

The first cycle of Run starts immediately and is a warm-up: it fetches, rotates
and persists, then goes straight to Sleeping. This holds when state was
restored from disk too, since the restored counters may be hours old. Reports
start with the cycle after a successful warm-up. RunOnce skips the warm-up and
diffs against whatever baseline the holder has.

State is rotated and persisted only after a successful, validated fetch, so a
failed cycle never overwrites the previous observation. A failed save is
logged and counted but does not stop reporting. Delivery is best effort: a
send failure is recorded in the report history and the cycle still counts as
successful.

Sleeps use a time.Timer selected against ctx.Done(), so shutdown never waits
for a full interval.
*/
package monitor
