package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/oracle-monitor/pkg/storage"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

const legacyFixture = `{
  "validators_data": {
    "symphonyvaloper1bbb": {"moniker": "Beta", "operator_address": "symphonyvaloper1bbb"},
    "symphonyvaloper1aaa": {"moniker": "", "operator_address": "symphonyvaloper1aaa"}
  },
  "current_misses": {
    "symphonyvaloper1aaa": 12,
    "symphonyvaloper1bbb": 0,
    "symphonyvaloper1ccc": 7
  },
  "timestamp": "2025-06-01T08:30:00.123456"
}`

func TestParseLegacy(t *testing.T) {
	state, err := parseLegacy([]byte(legacyFixture))
	require.NoError(t, err)

	assert.Len(t, state.Validators, 3)
	assert.Equal(t, types.UnknownMoniker, state.Validators["symphonyvaloper1aaa"].Moniker)
	assert.Equal(t, "Beta", state.Validators["symphonyvaloper1bbb"].Moniker)
	assert.Equal(t, types.UnknownMoniker, state.Validators["symphonyvaloper1ccc"].Moniker)
	assert.Equal(t, uint64(12), state.CurrentMisses["symphonyvaloper1aaa"])
	assert.Equal(t, uint64(7), state.CurrentMisses["symphonyvaloper1ccc"])
	assert.True(t, state.Timestamp.Equal(time.Date(2025, 6, 1, 8, 30, 0, 123456000, time.UTC)))

	snap := state.ToSnapshot()
	require.NoError(t, snap.Validate())
	assert.Equal(t, []string{"symphonyvaloper1aaa", "symphonyvaloper1bbb", "symphonyvaloper1ccc"}, snap.Order)
}

func TestParseLegacyErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"empty", `{"validators_data": {}, "current_misses": {}}`},
		{"bad timestamp", `{"current_misses": {"v": 1}, "timestamp": "yesterday"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLegacy([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseLegacyTime(t *testing.T) {
	ts, err := parseLegacyTime("2025-06-01T08:30:00")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)))

	ts, err = parseLegacyTime("2025-06-01T08:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 8, ts.Hour())
}

func TestImportState(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir(), 0)
	require.NoError(t, err)
	defer store.Close()

	state, err := parseLegacy([]byte(legacyFixture))
	require.NoError(t, err)

	require.NoError(t, importState(store, state, false))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, state.CurrentMisses, loaded.CurrentMisses)

	// A second import needs force
	assert.ErrorIs(t, importState(store, state, false), errStateExists)
	assert.NoError(t, importState(store, state, true))

	// And restores as a baseline
	holder := storage.NewStateHolder(store)
	assert.True(t, holder.Restore())
	assert.True(t, holder.HasBaseline())
}
