package storage

import (
	"errors"

	"github.com/cuemby/oracle-monitor/pkg/types"
)

// ErrPersistence wraps every failure to write monitor state
var ErrPersistence = errors.New("persistence error")

// Store defines the interface for durable monitor state
// This is implemented by BoltDB-backed storage
type Store interface {
	// State of the last successful fetch
	Load() (*types.PersistedState, error)
	Save(state *types.PersistedState) error

	// History of delivered reports, newest first
	SaveReport(rec *types.ReportRecord) error
	ListReports(limit int) ([]*types.ReportRecord, error)

	// Utility
	Close() error
}
