// ClearCore auditor agent — audits execution traces against per-agent
// policies using an LLM, and registers itself with an orchestrator when
// ORCHESTRATOR_URL is set.
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

	"github.com/clearcoreai/clearcore/pkg/auditor"
	"github.com/clearcoreai/clearcore/pkg/config"
	"github.com/clearcoreai/clearcore/pkg/llm"
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
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	addr := cfg.Listen.Auditor
	if port := os.Getenv("HTTP_PORT"); port != "" {
		addr = ":" + port
	}

	slog.Info("Starting ClearCore auditor",
		"addr", addr,
		"config_dir", *configDir)

	acct := water.NewAccountant(cfg.Paths.Waterdrops)

	keys, err := llm.LoadLicenseKeys(cfg.Paths.LicenseKeys)
	if err != nil {
		slog.Error("Failed to load license keys", "error", err)
		os.Exit(1)
	}
	llmClient := llm.NewClient(cfg.LLM.Endpoint, keys[cfg.LLM.Provider], cfg.LLM.Model)
	if !llmClient.HasKey() {
		slog.Warn("No LLM API key configured; audits will fail",
			"provider", cfg.LLM.Provider)
	}

	core := auditor.NewCore(llmClient, acct, auditor.Config{
		Model:         cfg.LLM.Model,
		Temperature:   cfg.LLM.AuditTemperature,
		LLMTimeout:    cfg.Timeouts.Audit,
		PolicyTimeout: cfg.Timeouts.Policy,
		LastCheckPath: cfg.Paths.LastCheck,
	})
	httpServer := auditor.NewServer(core, acct)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// Optional self-registration so the auditor shows up in plans.
	if orchestratorURL := os.Getenv("ORCHESTRATOR_URL"); orchestratorURL != "" {
		baseURL := getEnv("AUDITOR_BASE_URL", "http://localhost:8600")
		go func() {
			regCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := auditor.RegisterWithOrchestrator(regCtx, orchestratorURL, baseURL); err != nil {
				slog.Error("Self-registration failed", "orchestrator", orchestratorURL, "error", err)
				return
			}
			slog.Info("Registered with orchestrator", "orchestrator", orchestratorURL, "base_url", baseURL)
		}()
	}

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
	slog.Info("ClearCore auditor stopped")
}
