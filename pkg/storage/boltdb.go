package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/oracle-monitor/pkg/types"
)

// DBFileName is the bbolt file created inside the data directory
const DBFileName = "oracle-monitor.db"

var (
	// Bucket names
	bucketState   = []byte("state")
	bucketReports = []byte("reports")

	keyCurrent = []byte("current")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db           *bolt.DB
	historyLimit int
}

// NewBoltStore creates a new BoltDB-backed store. historyLimit bounds the
// number of report records kept; 0 disables report history.
func NewBoltStore(dataDir string, historyLimit int) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(dataDir, DBFileName)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketState, bucketReports} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, historyLimit: historyLimit}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path
func (s *BoltStore) Path() string {
	return s.db.Path()
}

// Load returns the persisted state, or nil if none has been saved yet
func (s *BoltStore) Load() (*types.PersistedState, error) {
	var state *types.PersistedState
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketState).Get(keyCurrent)
		if data == nil {
			return nil
		}
		var ps types.PersistedState
		if err := json.Unmarshal(data, &ps); err != nil {
			return fmt.Errorf("failed to decode persisted state: %w", err)
		}
		state = &ps
		return nil
	})
	return state, err
}

// Save overwrites the persisted state in a single transaction
func (s *BoltStore) Save(state *types.PersistedState) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrPersistence)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("%w: failed to encode state: %v", ErrPersistence, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put(keyCurrent, data)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// SaveReport appends a report record and prunes history beyond the limit
func (s *BoltStore) SaveReport(rec *types.ReportRecord) error {
	if s.historyLimit <= 0 {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: failed to encode report: %v", ErrPersistence, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReports)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(sequenceKey(seq), data); err != nil {
			return err
		}

		// Keys are big-endian sequences, so the cursor walks oldest first
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		excess := len(keys) - s.historyLimit
		if excess <= 0 {
			return nil
		}
		for _, k := range keys[:excess] {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// ListReports returns up to limit report records, newest first. limit <= 0
// returns every record.
func (s *BoltStore) ListReports(limit int) ([]*types.ReportRecord, error) {
	var records []*types.ReportRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReports).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var rec types.ReportRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to decode report %x: %w", k, err)
			}
			records = append(records, &rec)
		}
		return nil
	})
	return records, err
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
