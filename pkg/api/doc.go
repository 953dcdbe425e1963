/*
Package api serves the monitor's local HTTP endpoints.

# Endpoints

	GET /health    overall component health (200 healthy, 503 unhealthy)
	GET /ready     200 once storage and fetcher report healthy, 503 otherwise
	GET /live      200 while the process serves requests
	GET /metrics   Prometheus exposition
	GET /state     summary of the current snapshot and loop state

Other methods on these paths return 405.

The server binds to the configured health address, 127.0.0.1:9090 by default,
and is disabled when the address is empty. /state reads the StateHolder
through its RWMutex and never blocks the monitoring loop for longer than a
map copy.

# Usage

	hs := api.NewHealthServer(holder, mon)
	go func() {
		if err := hs.Start(cfg.HealthAddr); err != nil {
			log.Errorf("health server failed", err)
		}
	}()
	defer hs.Shutdown(context.Background())
*/
package api
