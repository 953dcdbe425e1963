/*
Package log provides structured logging for oracle-monitor using zerolog.

A single package-level Logger is initialized once from main via Init. Every
other package derives a component logger from it:

	logger := log.WithComponent("monitor")
	logger.Info().Int("validators", n).Msg("Snapshot fetched")

# Configuration

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stdout,
	})

JSON output is meant for log shippers; console output is meant for a human
at a terminal. Levels below the configured threshold are discarded globally.

# Context Loggers

  - WithComponent: adds component (chain, storage, monitor, notify, api)
  - WithValidator: adds the validator operator address to a parent logger
  - WithCycleID: adds the polling cycle identifier to a parent logger

Derive the context loggers from a component logger:

	logger := log.WithCycleID(log.WithComponent("monitor"), id)

A fully failed polling cycle never reaches the notification channel, so the
error logs of the monitor component are the only trace of it. Keep those at
Error level with the underlying error attached via .Err(err).
*/
package log
