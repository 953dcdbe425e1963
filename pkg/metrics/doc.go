/*
Package metrics provides Prometheus metrics and the component health registry
for the oracle monitor.

All metrics are registered with the default Prometheus registry at package
init and exposed by Handler, which pkg/api mounts at /metrics.

# Architecture

	┌──────────────── monitor loop ────────────────┐
	│  cycle ──▶ CyclesTotal, CycleDuration         │
	│        ──▶ LoopState, LastSuccessTimestamp    │
	│  reconcile ──▶ ValidatorsTotal, PowerPct      │
	│  persist ──▶ PersistenceErrorsTotal           │
	│  send ──▶ ReportsSentTotal                    │
	└──────────────────────┬───────────────────────┘
	                       │
	┌──────── fetcher ─────▼───────┐   ┌──── Collector ────┐
	│ FetchDuration                │   │ FeederLinksTotal  │
	│ FetchErrorsTotal{kind}       │   │ ValidatorsTotal   │
	└──────────────────────────────┘   │  (roster, missing)│
	                                   └───────────────────┘

# Metrics

oracle_monitor_cycles_total{result}:
  - Type: Counter
  - Labels: success, error, empty_roster, panic

oracle_monitor_cycle_duration_seconds:
  - Type: Histogram
  - Full fetch, reconcile and report pass

oracle_monitor_loop_state:
  - Type: Gauge
  - 0 idle, 1 fetching, 2 reconciling, 3 reporting, 4 sleeping, 5 cooldown, 6 stopped

oracle_monitor_last_success_timestamp_seconds:
  - Type: Gauge
  - Alert when time() minus this exceeds a few intervals

oracle_monitor_fetch_duration_seconds:
  - Type: Histogram

oracle_monitor_fetch_errors_total{kind}:
  - Type: Counter
  - Labels: validators, miss, feeder, balance, rates

oracle_monitor_validators_total{class}:
  - Type: Gauge
  - Labels: regressed, stable, low_balance, no_feeder, balance_unknown
    (last reconciliation),
    roster, missing_misses (current snapshot)

oracle_monitor_power_pct{class}:
  - Type: Gauge
  - Labels: regressed, stable, no_feeder

oracle_monitor_feeder_links_total{status}:
  - Type: Gauge
  - Labels: linked, none, error

oracle_monitor_persistence_errors_total:
  - Type: Counter

oracle_monitor_reports_sent_total{result}:
  - Type: Counter
  - Labels: success, failure

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FetchDuration)

# Health Registry

Components report their state with UpdateComponent. GetHealth is unhealthy
when any registered component is. GetReadiness requires storage and fetcher
to be registered and healthy; the notifier is tracked but not required, since
a monitor that cannot deliver still keeps its baseline current.

	metrics.UpdateComponent(metrics.ComponentFetcher, false, err.Error())

HealthHandler, ReadyHandler and LivenessHandler render the registry as JSON.
*/
package metrics
