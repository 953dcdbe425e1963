package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/oracle-monitor/pkg/config"
	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/metrics"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "oracle-monitor",
	Short: "Oracle validator miss-counter monitor",
	Long: `oracle-monitor polls the chain's oracle module, tracks each bonded
validator's miss counter, feeder delegation and feeder balance, and posts a
vote-power weighted report to Discord every interval.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"oracle-monitor version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "YAML config file")
	flags.String("env-file", ".env", "dotenv file loaded before the environment")
	flags.String("data-dir", "", "Data directory for monitor state (overrides DATA_DIR)")
	flags.String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	flags.Bool("log-json", false, "Emit JSON logs (overrides LOG_JSON)")
	flags.Bool("dry-run", false, "Log reports instead of sending them to Discord")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("oracle-monitor %s (commit %s, built %s)\n", Version, Commit, BuildTime)
	},
}

// loadConfig resolves the configuration and applies command line overrides.
// validate is false for read-only commands that never talk to Discord.
func loadConfig(cmd *cobra.Command, validate bool) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("log-json")
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	metrics.SetVersion(Version)
	return cfg, nil
}
