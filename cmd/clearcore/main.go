// ClearCore orchestrator server — registers agents, plans goals with an
// LLM, executes plans step by step and aggregates water accounting.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clearcoreai/clearcore/pkg/api"
	"github.com/clearcoreai/clearcore/pkg/config"
	"github.com/clearcoreai/clearcore/pkg/events"
	"github.com/clearcoreai/clearcore/pkg/executor"
	"github.com/clearcoreai/clearcore/pkg/llm"
	"github.com/clearcoreai/clearcore/pkg/manifest"
	"github.com/clearcoreai/clearcore/pkg/notify"
	"github.com/clearcoreai/clearcore/pkg/planner"
	"github.com/clearcoreai/clearcore/pkg/registry"
	"github.com/clearcoreai/clearcore/pkg/water"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	addr := cfg.Listen.Orchestrator
	if port := os.Getenv("HTTP_PORT"); port != "" {
		addr = ":" + port
	}

	slog.Info("Starting ClearCore orchestrator",
		"addr", addr,
		"config_dir", *configDir)

	// Water accounting: one persisted counter for the whole process.
	acct := water.NewAccountant(cfg.Paths.Waterdrops)

	// LLM client. A missing key is not fatal here: read-only endpoints
	// keep working and planning fails lazily with a clear error.
	keys, err := llm.LoadLicenseKeys(cfg.Paths.LicenseKeys)
	if err != nil {
		slog.Error("Failed to load license keys", "error", err)
		os.Exit(1)
	}
	llmClient := llm.NewClient(cfg.LLM.Endpoint, keys[cfg.LLM.Provider], cfg.LLM.Model)
	if !llmClient.HasKey() {
		slog.Warn("No LLM API key configured; planning and auditing will fail",
			"provider", cfg.LLM.Provider)
	}

	// Manifest validation and agent registry.
	validator, err := manifest.NewValidatorFromFile(cfg.Paths.ManifestSchema)
	if err != nil {
		slog.Error("Failed to build manifest validator", "error", err)
		os.Exit(1)
	}
	reg := registry.New(registry.Config{
		SnapshotPath:    cfg.Paths.AgentsSnapshot,
		RegisterTimeout: cfg.Timeouts.Register,
		MetricsTimeout:  cfg.Timeouts.Metrics,
	}, validator, acct)
	if err := reg.Load(); err != nil {
		slog.Error("Failed to load registry snapshot", "error", err)
		os.Exit(1)
	}

	// Planning and execution.
	pl := planner.New(llmClient, acct, planner.Config{
		Model:              cfg.LLM.Model,
		PlanTemperature:    cfg.LLM.PlanTemperature,
		FeasibilityTimeout: cfg.Timeouts.Feasibility,
		Timeout:            cfg.Timeouts.Plan,
	})
	connManager := events.NewConnectionManager(10 * time.Second)
	ex := executor.New(acct, connManager, executor.Config{
		StepTimeout: cfg.Timeouts.Execute,
	})

	// Slack notifications (nil service when not configured).
	notifier := notify.NewService(notify.ServiceConfig{
		Token:   cfg.SlackToken(),
		Channel: cfg.Slack.Channel,
	})
	if notifier == nil {
		slog.Info("Slack notifications disabled")
	}

	httpServer := api.NewServer(reg, pl, ex, acct, connManager, notifier)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := acct.Save(); err != nil {
		slog.Error("Failed to persist water counter", "error", err)
	}
	slog.Info("ClearCore orchestrator stopped")
}
