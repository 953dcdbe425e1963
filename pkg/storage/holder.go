package storage

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

// StateHolder owns the in-memory previous/current pair and its persistence.
// Only the monitoring loop mutates it; other goroutines read copies.
type StateHolder struct {
	store  Store
	logger zerolog.Logger

	mu       sync.RWMutex
	previous map[string]uint64
	current  *types.Snapshot
}

// NewStateHolder creates an empty holder backed by store
func NewStateHolder(store Store) *StateHolder {
	return &StateHolder{
		store:    store,
		logger:   log.WithComponent("storage"),
		previous: map[string]uint64{},
	}
}

// Restore loads the persisted state as the current snapshot. Read or decode
// errors are logged and treated as a cold start. It reports whether a
// baseline was restored.
func (h *StateHolder) Restore() bool {
	state, err := h.store.Load()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load persisted state, starting fresh")
		return false
	}
	if state == nil {
		h.logger.Info().Msg("No persisted state found, starting fresh")
		return false
	}

	snap := state.ToSnapshot()
	if err := snap.Validate(); err != nil {
		h.logger.Error().Err(err).Msg("Persisted state is inconsistent, starting fresh")
		return false
	}

	h.mu.Lock()
	h.current = snap
	h.previous = map[string]uint64{}
	h.mu.Unlock()

	h.logger.Info().
		Int("validators", len(snap.Validators)).
		Int("misses", len(snap.Misses)).
		Time("captured_at", snap.CapturedAt).
		Msg("Restored persisted state")
	return true
}

// Rotate moves the current miss counters into previous and publishes next
// as the current snapshot
func (h *StateHolder) Rotate(next *types.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current != nil {
		h.previous = types.CopyMisses(h.current.Misses)
	} else {
		h.previous = map[string]uint64{}
	}
	h.current = next
}

// Persist saves the current snapshot
func (h *StateHolder) Persist() error {
	h.mu.RLock()
	snap := h.current
	h.mu.RUnlock()

	if snap == nil {
		return nil
	}
	return h.store.Save(types.FromSnapshot(snap))
}

// Previous returns a copy of the previous cycle's miss counters
func (h *StateHolder) Previous() map[string]uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return types.CopyMisses(h.previous)
}

// Current returns the current snapshot. Callers must not mutate it.
func (h *StateHolder) Current() *types.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// HasBaseline reports whether a current snapshot exists to diff against
func (h *StateHolder) HasBaseline() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current != nil && len(h.current.Misses) > 0
}
