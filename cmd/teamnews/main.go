// Command teamnews collects the team's news sources once and writes the
// snapshot file.
//
// With ENABLE_HTTP_MONITORING=true it serves /health, /metrics and /stats
// only while the run is in progress; the process exits when the snapshot is
// written. Scrape it under a long-running wrapper, or read the run summary
// from the logs.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deusflow/teamnews/internal/app"
	"github.com/deusflow/teamnews/internal/config"
	"github.com/deusflow/teamnews/internal/logger"
	"github.com/deusflow/teamnews/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	logger.Init(cfg != nil && cfg.Debug)
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Check if we should start HTTP server for monitoring
	if cfg.EnableHTTPMonitoring {
		go startMonitoringServer(cfg.MonitoringPort)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg); err != nil {
		logger.Error("Run failed", "error", err)
		os.Exit(1)
	}
}

func startMonitoringServer(port string) {
	logger.Info("Starting monitoring server", "port", port)
	if err := http.ListenAndServe(":"+port, monitoringMux()); err != nil {
		logger.Warn("Monitoring server error", "error", err)
	}
}

func monitoringMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Global.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/stats", statsHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status, code := "ok", http.StatusOK
	if healthy, _ := stats["is_healthy"].(bool); !healthy {
		status, code = "error", http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

func statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics.Global.GetStats())
}
