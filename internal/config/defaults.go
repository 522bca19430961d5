package config

import (
	"time"

	"github.com/talgya/harvest-market/internal/agents"
)

// Default values for optional configuration fields.
const (
	DefaultSeed             = 42
	DefaultTickInterval     = 500 * time.Millisecond
	DefaultSpeed            = 1.0
	DefaultTicksPerDay      = 24
	DefaultSeedMerchants    = 2
	DefaultFarmers          = 4
	DefaultHouseholds       = 20
	DefaultInitCash         = 100.0
	DefaultInitStock        = 15.0
	DefaultMaxStock         = 20.0
	DefaultRequeue          = "same_side"
	DefaultFavorability     = FavorabilityPlaceholder
	DefaultHistoryWindow    = 10
	DefaultTaxRate          = 0.1
	DefaultBankruptcy       = -200.0
	DefaultHouseholdUse     = 0.5
	DefaultHarvestAmplitude = 0.25
	DefaultAPIAddr          = ":8080"
	DefaultMetricsPath      = "/metrics"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "auto"
)

// Favorability modes.
const (
	FavorabilityPlaceholder = "placeholder"
	FavorabilityLerp        = "lerp"
)

func (c *Config) applyDefaults() {
	if c.Seed == 0 {
		c.Seed = DefaultSeed
	}

	// Engine defaults
	if c.Engine.TickInterval == "" {
		c.Engine.TickInterval = DefaultTickInterval.String()
	}
	if c.Engine.Speed == 0 {
		c.Engine.Speed = DefaultSpeed
	}
	if c.Engine.TicksPerDay == 0 {
		c.Engine.TicksPerDay = DefaultTicksPerDay
	}

	// Population defaults
	if c.Population.SeedMerchants == 0 {
		c.Population.SeedMerchants = DefaultSeedMerchants
	}
	if c.Population.Farmers == 0 {
		c.Population.Farmers = DefaultFarmers
	}
	if c.Population.Households == 0 {
		c.Population.Households = DefaultHouseholds
	}
	if c.Population.InitCash == 0 {
		c.Population.InitCash = DefaultInitCash
	}
	if c.Population.InitStock == 0 {
		c.Population.InitStock = DefaultInitStock
	}
	if c.Population.MaxStock == 0 {
		c.Population.MaxStock = DefaultMaxStock
	}

	// Market defaults
	if c.Market.Requeue == "" {
		c.Market.Requeue = DefaultRequeue
	}
	if c.Market.RejectUnmatched == nil {
		reject := true
		c.Market.RejectUnmatched = &reject
	}
	if c.Market.Favorability == "" {
		c.Market.Favorability = DefaultFavorability
	}
	if c.Market.HistoryWindow == 0 {
		c.Market.HistoryWindow = DefaultHistoryWindow
	}
	if c.Market.TaxRate == nil {
		rate := DefaultTaxRate
		c.Market.TaxRate = &rate
	}
	if c.Market.BankruptcyThreshold == 0 {
		c.Market.BankruptcyThreshold = DefaultBankruptcy
	}
	if c.Market.HouseholdUse == 0 {
		c.Market.HouseholdUse = DefaultHouseholdUse
	}
	if c.Market.HarvestAmplitude == nil {
		amp := DefaultHarvestAmplitude
		c.Market.HarvestAmplitude = &amp
	}

	def := agents.DefaultTunables()
	tune := &c.Market.Tunables
	if tune.Significant == 0 {
		tune.Significant = def.Significant
	}
	if tune.SigImbalance == 0 {
		tune.SigImbalance = def.SigImbalance
	}
	if tune.LowInventory == 0 {
		tune.LowInventory = def.LowInventory
	}
	if tune.HighInventory == 0 {
		tune.HighInventory = def.HighInventory
	}
	if tune.Wobble == 0 {
		tune.Wobble = def.Wobble
	}

	// API defaults
	if c.API.Addr == "" {
		c.API.Addr = DefaultAPIAddr
	}
	if c.API.MetricsPath == "" {
		c.API.MetricsPath = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
