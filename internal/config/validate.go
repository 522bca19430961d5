package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/talgya/harvest-market/internal/market"
)

// Validate checks that all values are usable. Call after defaults are applied.
func (c *Config) Validate() error {
	d, err := time.ParseDuration(c.Engine.TickInterval)
	if err != nil {
		return fmt.Errorf("engine.tick_interval: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("engine.tick_interval must be >= 0, got %s", d)
	}
	if c.Engine.Speed < 0 {
		return errors.New("engine.speed must be >= 0")
	}
	if c.Engine.TicksPerDay < 1 {
		return errors.New("engine.ticks_per_day must be >= 1")
	}

	if c.Population.SeedMerchants < 0 || c.Population.Farmers < 0 || c.Population.Households < 0 {
		return errors.New("population counts must be >= 0")
	}
	if c.Population.InitStock < 0 {
		return errors.New("population.init_stock must be >= 0")
	}
	if c.Population.MaxStock < c.Population.InitStock {
		return fmt.Errorf("population.max_stock (%g) cannot be below init_stock (%g)", c.Population.MaxStock, c.Population.InitStock)
	}

	if _, err := market.ParseRequeuePolicy(c.Market.Requeue); err != nil {
		return fmt.Errorf("market.requeue: %w", err)
	}
	switch c.Market.Favorability {
	case FavorabilityPlaceholder, FavorabilityLerp:
	default:
		return fmt.Errorf("market.favorability must be %q or %q, got %q", FavorabilityPlaceholder, FavorabilityLerp, c.Market.Favorability)
	}
	if c.Market.HistoryWindow < 1 {
		return errors.New("market.history_window must be >= 1")
	}
	if c.Market.TaxRate != nil && (*c.Market.TaxRate < 0 || *c.Market.TaxRate > 1) {
		return fmt.Errorf("market.tax_rate must be between 0 and 1, got %g", *c.Market.TaxRate)
	}
	if c.Market.BankruptcyThreshold > 0 {
		return errors.New("market.bankruptcy_threshold must be <= 0")
	}
	if c.Market.HouseholdUse < 0 {
		return errors.New("market.household_use must be >= 0")
	}
	if c.Market.HarvestAmplitude != nil && (*c.Market.HarvestAmplitude < 0 || *c.Market.HarvestAmplitude > 1) {
		return fmt.Errorf("market.harvest_amplitude must be between 0 and 1, got %g", *c.Market.HarvestAmplitude)
	}

	tune := c.Market.Tunables
	if tune.Significant <= 0 || tune.Significant > 1 {
		return fmt.Errorf("market.tunables.significant must be in (0, 1], got %g", tune.Significant)
	}
	if tune.SigImbalance < 0 {
		return errors.New("market.tunables.sig_imbalance must be >= 0")
	}
	if tune.LowInventory < 0 || tune.HighInventory <= tune.LowInventory {
		return fmt.Errorf("market.tunables: need 0 <= low_inventory < high_inventory, got %g and %g", tune.LowInventory, tune.HighInventory)
	}
	if tune.Wobble < 0 || tune.Wobble >= 1 {
		return fmt.Errorf("market.tunables.wobble must be in [0, 1), got %g", tune.Wobble)
	}

	if c.API.Addr != "off" && !strings.HasPrefix(c.API.MetricsPath, "/") {
		return fmt.Errorf("api.metrics_path must start with /, got %q", c.API.MetricsPath)
	}

	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log.format must be auto, text or json, got %q", c.Log.Format)
	}
	return nil
}
