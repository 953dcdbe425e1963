package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/storage"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

// legacyFileName is the state file written by the first generation monitor
const legacyFileName = "validator_data.json"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "oracle-monitor-migrate",
	Short: "Import a legacy validator_data.json into the monitor store",
	Long: `Import the JSON state file of the previous monitor generation into the
bbolt store, so the first cycle after the upgrade reports against the last
recorded miss counters instead of starting cold.

Legacy records carry no voting power, feeder or balance data; those fields
are filled by the next cycle.`,
	SilenceUsage: true,
	RunE:         runMigrate,
}

func init() {
	rootCmd.Flags().String("data-dir", "data", "Monitor data directory")
	rootCmd.Flags().String("legacy-file", "", "Legacy state file (default: <data-dir>/"+legacyFileName+")")
	rootCmd.Flags().Bool("dry-run", false, "Show what would be migrated without making changes")
	rootCmd.Flags().Bool("force", false, "Overwrite state already present in the store")
	rootCmd.Flags().String("backup", "", "Path to back up the database before migration (default: <db>.backup)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	legacyFile, _ := cmd.Flags().GetString("legacy-file")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	backupPath, _ := cmd.Flags().GetString("backup")

	log.Init(log.Config{Level: log.InfoLevel})
	logger := log.WithComponent("migrate")

	if legacyFile == "" {
		legacyFile = filepath.Join(dataDir, legacyFileName)
	}
	data, err := os.ReadFile(legacyFile)
	if err != nil {
		return fmt.Errorf("failed to read legacy state: %w", err)
	}

	state, err := parseLegacy(data)
	if err != nil {
		return err
	}
	logger.Info().
		Str("file", legacyFile).
		Int("validators", len(state.Validators)).
		Int("misses", len(state.CurrentMisses)).
		Time("timestamp", state.Timestamp).
		Msg("Parsed legacy state")

	if dryRun {
		logger.Info().Msg("Dry run completed, no changes made")
		return nil
	}

	dbPath := filepath.Join(dataDir, storage.DBFileName)
	if _, err := os.Stat(dbPath); err == nil {
		if backupPath == "" {
			backupPath = dbPath + ".backup"
		}
		if err := copyFile(dbPath, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		logger.Info().Str("backup", backupPath).Msg("Backup created")
	}

	store, err := storage.NewBoltStore(dataDir, 0)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := importState(store, state, force); err != nil {
		return err
	}

	logger.Info().Str("db", store.Path()).Msg("Migration completed")
	return nil
}

// errStateExists is returned when the store already holds state and force is unset
var errStateExists = errors.New("store already holds state, use --force to overwrite")

func importState(store storage.Store, state *types.PersistedState, force bool) error {
	existing, err := store.Load()
	if err != nil && !force {
		return fmt.Errorf("failed to read existing state: %w", err)
	}
	if existing != nil && !force {
		return errStateExists
	}
	return store.Save(state)
}

type legacyValidator struct {
	Moniker         string `json:"moniker"`
	OperatorAddress string `json:"operator_address"`
}

type legacyState struct {
	ValidatorsData map[string]legacyValidator `json:"validators_data"`
	CurrentMisses  map[string]uint64          `json:"current_misses"`
	Timestamp      string                     `json:"timestamp"`
}

// Python's datetime.isoformat() omits the zone and trims zero microseconds
var legacyTimeLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// parseLegacy converts a legacy state file into a PersistedState
func parseLegacy(data []byte) (*types.PersistedState, error) {
	var legacy legacyState
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed to parse legacy state: %w", err)
	}
	if len(legacy.ValidatorsData) == 0 && len(legacy.CurrentMisses) == 0 {
		return nil, errors.New("legacy state holds no validators")
	}

	capturedAt, err := parseLegacyTime(legacy.Timestamp)
	if err != nil {
		return nil, err
	}

	snap := types.NewSnapshot(capturedAt)
	for addr, v := range legacy.ValidatorsData {
		if v.OperatorAddress == "" {
			v.OperatorAddress = addr
		}
		moniker := strings.TrimSpace(v.Moniker)
		if moniker == "" {
			moniker = types.UnknownMoniker
		}
		snap.AddValidator(types.Validator{OperatorAddress: v.OperatorAddress, Moniker: moniker})
	}
	for addr, n := range legacy.CurrentMisses {
		if _, ok := snap.Validators[addr]; !ok {
			snap.AddValidator(types.Validator{OperatorAddress: addr, Moniker: types.UnknownMoniker})
		}
		snap.Misses[addr] = n
	}

	state := types.FromSnapshot(snap)
	// Map iteration order is random; let ToSnapshot fall back to sorted order
	state.Order = nil
	return state, nil
}

func parseLegacyTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid legacy timestamp %q", s)
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
