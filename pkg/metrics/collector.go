package metrics

import (
	"time"

	"github.com/cuemby/oracle-monitor/pkg/types"
)

// SnapshotSource exposes the snapshot the collector samples
type SnapshotSource interface {
	Current() *types.Snapshot
}

// Collector periodically exports gauges derived from the current snapshot
type Collector struct {
	source   SnapshotSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source SnapshotSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.source.Current()
	if snap == nil {
		return
	}

	counts := snap.LinkCounts()
	for status, n := range counts {
		FeederLinksTotal.WithLabelValues(string(status)).Set(float64(n))
	}
	ValidatorsTotal.WithLabelValues("roster").Set(float64(len(snap.Validators)))
	ValidatorsTotal.WithLabelValues("missing_misses").Set(float64(len(snap.Validators) - len(snap.Misses)))
}
