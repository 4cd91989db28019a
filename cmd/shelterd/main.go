// Command shelterd runs the doomsday shelter survival simulation.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/shelter/internal/api"
	"github.com/talgya/shelter/internal/config"
	"github.com/talgya/shelter/internal/llm"
	"github.com/talgya/shelter/internal/persistence"
	"github.com/talgya/shelter/internal/shelter"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// ── Configuration ─────────────────────────────────────────────────
	var cfg config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		slog.Info("config loaded", "path", *configPath)
	} else {
		cfg = config.Default()
		slog.Info("using default config")
	}

	// ── LLM Client ────────────────────────────────────────────────────
	apiKey := os.Getenv("SHELTER_LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	client := llm.NewClient(cfg.LLM, apiKey)
	if client.Enabled() {
		slog.Info("LLM client enabled", "base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model)
	} else {
		slog.Warn("no API key set — agents will use fallback decisions")
	}

	providers := make(map[string]shelter.DecisionProvider, len(cfg.Agents))
	if client.Enabled() {
		for _, a := range cfg.Agents {
			providers[a.Name] = llm.NewProvider(client, a.Name, a.Model)
		}
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := shelter.New(cfg, providers)

	// ── Audit store ───────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.AuditDBPath != "" {
		os.MkdirAll(filepath.Dir(cfg.AuditDBPath), 0755)
		db, err = persistence.Open(cfg.AuditDBPath)
		if err != nil {
			slog.Error("failed to open audit database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		runID, err := db.BeginRun(cfg.AgentNames(), cfg.TotalResources,
			cfg.SurvivalCostBase, cfg.TotalSimulationBudget)
		if err != nil {
			slog.Error("failed to start audit run", "error", err)
			os.Exit(1)
		}
		slog.Info("audit database opened", "path", cfg.AuditDBPath, "run_id", runID)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("SHELTER_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("SHELTER_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}

	server := &api.Server{
		Shelter:  sim,
		Cfg:      cfg,
		DB:       db,
		Port:     cfg.API.Port,
		AdminKey: adminKey,
	}
	server.Start()

	fmt.Printf("\nShelter online: %d residents, %d resources, survival cost %d/day.\n",
		len(cfg.Agents), cfg.TotalResources, cfg.SurvivalCostBase)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	fmt.Println("POST /api/v1/run advances one day. (Ctrl+C to stop)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
}
