package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cycle metrics
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_monitor_cycles_total",
			Help: "Total number of monitoring cycles by result",
		},
		[]string{"result"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_monitor_cycle_duration_seconds",
			Help:    "Duration of a full fetch, reconcile and report cycle in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	LoopState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_monitor_loop_state",
			Help: "Current state of the monitoring loop (0 idle, 1 fetching, 2 reconciling, 3 reporting, 4 sleeping, 5 cooldown, 6 stopped)",
		},
	)

	LastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "oracle_monitor_last_success_timestamp_seconds",
			Help: "Unix time of the last successfully completed cycle",
		},
	)

	// Fetch metrics
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "oracle_monitor_fetch_duration_seconds",
			Help:    "Time taken to fetch a full snapshot in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_monitor_fetch_errors_total",
			Help: "Total number of failed chain API requests by kind",
		},
		[]string{"kind"},
	)

	// Reconciliation metrics
	ValidatorsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_monitor_validators_total",
			Help: "Number of validators per class in the last reconciliation",
		},
		[]string{"class"},
	)

	PowerPct = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_monitor_power_pct",
			Help: "Share of total voting power per class in the last reconciliation",
		},
		[]string{"class"},
	)

	FeederLinksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "oracle_monitor_feeder_links_total",
			Help: "Number of validators by feeder link status in the current snapshot",
		},
		[]string{"status"},
	)

	// Persistence and delivery metrics
	PersistenceErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "oracle_monitor_persistence_errors_total",
			Help: "Total number of failed state saves",
		},
	)

	ReportsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_monitor_reports_sent_total",
			Help: "Total number of reports handed to the notifier by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(CyclesTotal)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(LoopState)
	prometheus.MustRegister(LastSuccessTimestamp)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(FetchErrorsTotal)
	prometheus.MustRegister(ValidatorsTotal)
	prometheus.MustRegister(PowerPct)
	prometheus.MustRegister(FeederLinksTotal)
	prometheus.MustRegister(PersistenceErrorsTotal)
	prometheus.MustRegister(ReportsSentTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in a histogram
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time in a histogram vector
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
