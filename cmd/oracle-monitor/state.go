package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cuemby/oracle-monitor/pkg/report"
	"github.com/cuemby/oracle-monitor/pkg/storage"
	"github.com/cuemby/oracle-monitor/pkg/types"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect persisted monitor state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the persisted snapshot",
	Long: `Show the snapshot persisted by the last successful cycle.

The store is locked while the monitor runs; stop it first or the command
times out.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := storage.NewBoltStore(cfg.DataDir, cfg.HistoryLimit)
		if err != nil {
			return err
		}
		defer store.Close()

		state, err := store.Load()
		if err != nil {
			return err
		}
		if state == nil {
			fmt.Println("No persisted state")
			return nil
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}
		printState(state)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently delivered reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := storage.NewBoltStore(cfg.DataDir, cfg.HistoryLimit)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.ListReports(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No reports recorded")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSENT\tISSUES\tREGRESSED\tSTABLE\tLOW BALANCE\tNO FEEDER\tREGRESSED POWER\tDELIVERED")
		for _, rec := range records {
			delivered := "yes"
			if !rec.Delivered {
				delivered = "no: " + rec.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\t%d\t%d\t%s\t%s\n",
				shortID(rec.ID), humanize.Time(rec.SentAt), rec.HasIssues,
				rec.Regressed, rec.Stable, rec.LowBalance, rec.NoFeeder,
				report.FormatPct(rec.RegressedPower), delivered)
		}
		return w.Flush()
	},
}

func init() {
	stateCmd.AddCommand(stateShowCmd)
	stateShowCmd.Flags().Bool("json", false, "Print the raw persisted record")

	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of reports to list")
}

func printState(state *types.PersistedState) {
	snap := state.ToSnapshot()
	counts := snap.LinkCounts()

	fmt.Printf("Captured:   %s (%s)\n", snap.CapturedAt.Format("2006-01-02 15:04:05 MST"), humanize.Time(snap.CapturedAt))
	fmt.Printf("Validators: %d (total power %s)\n", len(snap.Validators), report.FormatMLD(snap.TotalPower()))
	fmt.Printf("Misses:     %d recorded\n", len(snap.Misses))
	fmt.Printf("Feeders:    %d linked, %d none, %d unknown\n",
		counts[types.FeederStatusLinked], counts[types.FeederStatusNone], counts[types.FeederStatusError])
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MONIKER\tOPERATOR\tPOWER\tMISSES\tFEEDER\tBALANCE")
	for _, addr := range snap.Order {
		v := snap.Validators[addr]
		misses := "-"
		if n, ok := snap.Misses[addr]; ok {
			misses = report.FormatCount(n)
		}
		feeder, balance := "-", "-"
		if link, ok := snap.FeederLinks[addr]; ok {
			switch {
			case link.IsLinked():
				feeder = link.Address
				balance = "unknown"
				if snap.BalanceKnown(link.Address) {
					balance = report.FormatMLD(snap.FeederBalances[link.Address])
				}
			case link.IsNone():
				feeder = "none"
			default:
				feeder = "error"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", v.Moniker, addr, report.FormatMLD(v.VotingPower), misses, feeder, balance)
	}
	_ = w.Flush()

	if len(snap.Rates) > 0 {
		fmt.Println()
		for _, denom := range snap.Rates.SortedDenoms() {
			fmt.Printf("%s: %s\n", denom, snap.Rates[denom].StringFixed(4))
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
