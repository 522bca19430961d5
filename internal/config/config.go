// Package config loads the market simulator configuration from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/talgya/harvest-market/internal/agents"
	"github.com/talgya/harvest-market/internal/market"
)

// Config is the full simulator configuration.
type Config struct {
	Seed       int64            `yaml:"seed"`
	Engine     EngineConfig     `yaml:"engine"`
	Population PopulationConfig `yaml:"population"`
	Market     MarketConfig     `yaml:"market"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`
}

// EngineConfig controls the tick loop.
type EngineConfig struct {
	TickInterval string  `yaml:"tick_interval"` // Go duration, e.g. "500ms"
	Speed        float64 `yaml:"speed"`
	TicksPerDay  uint64  `yaml:"ticks_per_day"`
	MaxTicks     uint64  `yaml:"max_ticks"` // 0 runs until interrupted
}

// PopulationConfig sizes the initial population.
type PopulationConfig struct {
	SeedMerchants int     `yaml:"seed_merchants"` // Per seed kind
	Farmers       int     `yaml:"farmers"`        // Per crop kind
	Households    int     `yaml:"households"`
	InitCash      float64 `yaml:"init_cash"`
	InitStock     float64 `yaml:"init_stock"`
	MaxStock      float64 `yaml:"max_stock"`
}

// MarketConfig controls clearing and the agents' market behaviour.
type MarketConfig struct {
	Requeue             string   `yaml:"requeue"` // same_side or swapped
	RejectUnmatched     *bool    `yaml:"reject_unmatched"`
	Favorability        string   `yaml:"favorability"` // placeholder or lerp
	HistoryWindow       int      `yaml:"history_window"`
	TaxRate             *float64 `yaml:"tax_rate"`
	BankruptcyThreshold float64  `yaml:"bankruptcy_threshold"`
	HouseholdUse        float64  `yaml:"household_use"`
	HarvestAmplitude    *float64 `yaml:"harvest_amplitude"`

	// Tunables of the price-belief adjuster. Zero fields take the defaults.
	Tunables agents.Tunables `yaml:"tunables"`
}

// StorageConfig points at the SQLite journal. An empty path disables it.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// APIConfig controls the HTTP server. Addr "off" disables it.
type APIConfig struct {
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
}

// LogConfig selects log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // auto, text, json
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes after expanding ${VAR} references.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// TickInterval returns the parsed engine interval. Call after Validate.
func (c *Config) TickInterval() time.Duration {
	d, err := time.ParseDuration(c.Engine.TickInterval)
	if err != nil {
		return DefaultTickInterval
	}
	return d
}

// RequeuePolicy returns the configured clearing policy.
func (c *Config) RequeuePolicy() market.RequeuePolicy {
	p, err := market.ParseRequeuePolicy(c.Market.Requeue)
	if err != nil {
		return market.RequeueSameSide
	}
	return p
}

// MarketHouse returns the clearing settings.
func (c *Config) MarketHouse() market.Config {
	return market.Config{
		Requeue:     c.RequeuePolicy(),
		SilentDrain: c.Market.RejectUnmatched != nil && !*c.Market.RejectUnmatched,
	}
}

// Spawn returns the agent population settings.
func (c *Config) Spawn() agents.SpawnConfig {
	sc := agents.DefaultSpawnConfig()
	sc.Seed = c.Seed
	sc.InitCash = c.Population.InitCash
	sc.InitStock = c.Population.InitStock
	sc.MaxStock = c.Population.MaxStock
	sc.BankruptcyThreshold = c.Market.BankruptcyThreshold
	sc.HistoryCount = c.Market.HistoryWindow
	sc.Tunables = c.Market.Tunables
	if c.Market.Favorability == FavorabilityLerp {
		sc.Favorability = agents.LerpFavorability
	}
	return sc
}

// Counts returns how many agents of each role to spawn.
func (c *Config) Counts() agents.PopulationCounts {
	return agents.PopulationCounts{
		SeedMerchants: c.Population.SeedMerchants,
		Farmers:       c.Population.Farmers,
		Households:    c.Population.Households,
	}
}

// SlogLevel maps the configured level name.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
