package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/oracle-monitor/pkg/api"
	"github.com/cuemby/oracle-monitor/pkg/chain"
	"github.com/cuemby/oracle-monitor/pkg/config"
	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/metrics"
	"github.com/cuemby/oracle-monitor/pkg/monitor"
	"github.com/cuemby/oracle-monitor/pkg/notify"
	"github.com/cuemby/oracle-monitor/pkg/storage"
)

const collectInterval = 15 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring loop",
	Long: `Run the monitoring loop until interrupted.

The first cycle starts immediately. On a cold start it only records a
baseline; every following cycle reports the change since the previous one.`,
	RunE: runMonitor,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle against the persisted baseline",
	RunE:  runOnce,
}

// app bundles the components shared by run and once
type app struct {
	cfg     *config.Config
	store   *storage.BoltStore
	holder  *storage.StateHolder
	monitor *monitor.Monitor
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(cfg *config.Config, openGateway bool) (*app, error) {
	a := &app{cfg: cfg}

	store, err := storage.NewBoltStore(cfg.DataDir, cfg.HistoryLimit)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
		return nil, err
	}
	metrics.UpdateComponent(metrics.ComponentStorage, true, "")
	a.store = store
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			log.Errorf("Failed to close store", err)
		}
	})

	a.holder = storage.NewStateHolder(store)
	a.holder.Restore()

	client := chain.NewClient(chain.Opts{
		BaseURL: cfg.APIBase,
		Timeout: cfg.RequestTimeout(),
	})
	fetcher := chain.NewFetcher(client, cfg.Denom, cfg.RequestPause())

	sender, err := a.newSender(openGateway)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.monitor = monitor.New(fetcher, a.holder, sender, store, monitor.Config{
		Interval:            cfg.Interval(),
		RetryCooldown:       cfg.RetryCooldown(),
		LowBalanceThreshold: cfg.LowBalanceThreshold,
	})
	return a, nil
}

func (a *app) newSender(openGateway bool) (notify.Sender, error) {
	if a.cfg.DryRun {
		log.Info("Dry run enabled, reports will be logged")
		metrics.UpdateComponent(metrics.ComponentNotifier, true, "dry run")
		return notify.NewLogSender(), nil
	}

	session, err := notify.NewSession(a.cfg.Discord.Token)
	if err != nil {
		return nil, err
	}
	if openGateway {
		if err := session.Open(); err != nil {
			metrics.UpdateComponent(metrics.ComponentNotifier, false, err.Error())
			return nil, fmt.Errorf("failed to connect to discord: %w", err)
		}
		a.closers = append(a.closers, func() { _ = session.Close() })
		user := "unknown"
		if session.State != nil && session.State.User != nil {
			user = session.State.User.Username
		}
		log.Logger.Info().Str("user", user).Msg("Connected to Discord")
	}
	metrics.UpdateComponent(metrics.ComponentNotifier, true, "")
	return notify.NewDiscordSender(session, a.cfg.Discord.ChannelID), nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	collector := metrics.NewCollector(a.holder, collectInterval)
	collector.Start()
	defer collector.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HealthAddr != "" {
		hs := api.NewHealthServer(a.holder, a.monitor)
		go func() {
			if err := hs.Start(cfg.HealthAddr); err != nil {
				log.Errorf("Health server failed", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Shutdown(shutdownCtx)
		}()
	}

	log.Logger.Info().
		Str("version", Version).
		Str("api_base", cfg.APIBase).
		Str("data_dir", cfg.DataDir).
		Bool("dry_run", cfg.DryRun).
		Msg("Starting oracle monitor")

	if err := a.monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Shutdown complete")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := a.monitor.RunOnce(ctx)
	if err != nil {
		return err
	}
	if rep == nil {
		fmt.Println("No baseline yet: state recorded, run again to get a report")
		return nil
	}

	fmt.Println(rep.Title)
	for _, section := range rep.Sections {
		fmt.Printf("\n%s\n%s\n", section.Name, section.Text())
	}
	return nil
}
