// Command marketsim runs the farm commodity market headless: it spawns a
// trading population, clears the market every tick and journals the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/talgya/harvest-market/internal/agents"
	"github.com/talgya/harvest-market/internal/api"
	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/config"
	"github.com/talgya/harvest-market/internal/engine"
	"github.com/talgya/harvest-market/internal/market"
	"github.com/talgya/harvest-market/internal/metrics"
	"github.com/talgya/harvest-market/internal/persistence"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	addr := flag.String("addr", "", "HTTP listen address, overrides api.addr")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.API.Addr = *addr
	}
	slog.SetDefault(newLogger(os.Stdout, cfg))

	runID := uuid.NewString()
	slog.Info("harvest market starting",
		"run_id", runID,
		"seed", cfg.Seed,
		"requeue", cfg.RequeuePolicy(),
		"reject_unmatched", !cfg.MarketHouse().SilentDrain,
		"favorability", cfg.Market.Favorability,
	)

	// ── Journal ───────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Storage.Path != "" {
		db, err = openJournal(cfg.Storage.Path)
		if err != nil {
			slog.Error("failed to open journal", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if prev, err := db.GetMeta("run_id"); err == nil && prev != "" {
			last, _ := db.GetMeta("last_tick")
			slog.Info("journal holds an earlier run, its ticks will be overwritten", "previous_run_id", prev, "previous_last_tick", last)
		}
		if err := db.SaveMeta("run_id", runID); err != nil {
			slog.Warn("save run id failed", "error", err)
		}
		if err := db.SaveMeta("started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("save start time failed", "error", err)
		}
		slog.Info("journal opened", "path", cfg.Storage.Path)
	}

	// ── Population ────────────────────────────────────────────────────
	reg := commodity.DefaultRegistry()
	population := agents.NewSpawner(reg, cfg.Spawn()).SpawnPopulation(cfg.Counts())
	roles := map[agents.Role]int{}
	totalCash := 0.0
	for _, a := range population {
		roles[a.Role()]++
		totalCash += a.Cash()
	}
	slog.Info("population ready",
		"agents", len(population),
		"seed_merchants", roles[agents.RoleSeedMerchant],
		"farmers", roles[agents.RoleFarmer],
		"households", roles[agents.RoleHousehold],
		"cash", humanize.CommafWithDigits(totalCash, 2),
	)

	// ── Simulation ────────────────────────────────────────────────────
	house := market.NewHouse(reg, rand.New(rand.NewSource(cfg.Seed+100)), cfg.MarketHouse())
	sim := engine.NewSimulation(reg, population, house,
		engine.NewHarvest(cfg.Seed+200, *cfg.Market.HarvestAmplitude),
		engine.Options{
			TaxRate:      *cfg.Market.TaxRate,
			HouseholdUse: cfg.Market.HouseholdUse,
			TicksPerDay:  cfg.Engine.TicksPerDay,
		})
	mx := metrics.New()
	sim.Recorder = mx
	if db != nil {
		sim.Journal = db
	}

	eng := engine.NewEngine()
	eng.Interval = cfg.TickInterval()
	eng.SetSpeed(cfg.Engine.Speed)
	eng.TicksPerDay = cfg.Engine.TicksPerDay
	eng.MaxTicks = cfg.Engine.MaxTicks

	eng.OnTick = func(tick uint64) {
		if err := sim.TickMarket(tick); err != nil {
			slog.Error("market tick failed, stopping", "tick", tick, "error", err)
			eng.Stop()
		}
	}
	eng.OnDay = func(tick uint64) { sim.TickDay(tick) }

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.Addr != "off" {
		adminKey := os.Getenv("MARKETSIM_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("MARKETSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		limiter := api.NewRateLimiter(60, time.Minute)
		go limiter.RunJanitor(ctx)

		srv := &api.Server{
			Sim:            sim,
			Eng:            eng,
			DB:             db,
			Metrics:        mx.Handler(),
			MetricsPath:    cfg.API.MetricsPath,
			Addr:           cfg.API.Addr,
			AdminKey:       adminKey,
			RunID:          runID,
			HistoryLimiter: limiter,
		}
		srv.Start(ctx)
	}

	// ── Start ─────────────────────────────────────────────────────────
	eng.Run(ctx)

	status := sim.Snapshot().Status
	if db != nil {
		if err := db.SaveMeta("finished_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("save finish time failed", "error", err)
		}
	}
	slog.Info("harvest market stopped",
		"run_id", runID,
		"tick", status.Tick,
		"cash", humanize.CommafWithDigits(status.TotalCash, 2),
		"treasury", humanize.CommafWithDigits(status.Treasury, 2),
		"bankrupt", status.Bankrupt,
	)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// openJournal creates the journal's directory if needed and opens it.
func openJournal(path string) (*persistence.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}
	return persistence.Open(path)
}

// newLogger writes text to terminals and JSON everywhere else unless the
// config forces a format.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	format := cfg.Log.Format
	if format == "auto" {
		format = "json"
		if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
