package agents

import (
	"context"
	"log/slog"
	"math"

	"github.com/talgya/harvest-market/internal/commodity"
)

// Price belief bounds. Every belief interval is clamped into this range.
const (
	MinPrice = 0.1
	MaxPrice = 900.0
)

// Rand is the random source used for quoting; *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Tunables are the knobs of the price-belief adjuster.
type Tunables struct {
	Significant   float64 `yaml:"significant"`    // Fraction of mean that counts as a surprising fill
	SigImbalance  float64 `yaml:"sig_imbalance"`  // Reserved for supply/demand-weighted adjustment
	LowInventory  float64 `yaml:"low_inventory"`  // Fraction of capacity considered critically low
	HighInventory float64 `yaml:"high_inventory"` // Multiple of capacity considered overstocked
	Wobble        float64 `yaml:"wobble"`         // Initial exploration width, halves on every fill
}

// DefaultTunables returns the standard adjuster settings.
func DefaultTunables() Tunables {
	return Tunables{
		Significant:   0.25,
		SigImbalance:  0.33,
		LowInventory:  0.1,
		HighInventory: 2.0,
		Wobble:        0.02,
	}
}

// CommodityStock is one agent's holding of one commodity together with its
// belief about the commodity's fair price.
type CommodityStock struct {
	kind           commodity.Kind
	quantity       float64
	maxQuantity    float64
	meanCost       float64
	production     float64 // Output multiplier applied to each production run
	productionRate float64 // Max production runs per tick
	cost           float64 // Floor for the lower belief
	minBelief      float64
	maxBelief      float64
	history        PriceHistory
	tune           Tunables
	wobble         float64
}

// NewCommodityStock creates a stock seeded with an initial price. The belief
// interval starts at [price/2, price*2].
func NewCommodityStock(k commodity.Kind, quantity, maxQuantity, price, production float64, tune Tunables) *CommodityStock {
	s := &CommodityStock{
		kind:           k,
		quantity:       max(quantity, 0),
		maxQuantity:    maxQuantity,
		meanCost:       price,
		production:     production,
		productionRate: 1.0,
		cost:           1.0,
		minBelief:      price / 2,
		maxBelief:      price * 2,
		tune:           tune,
		wobble:         tune.Wobble,
	}
	s.history.Add(price)
	return s
}

// Kind returns the commodity held.
func (s *CommodityStock) Kind() commodity.Kind { return s.kind }

// Quantity returns units held.
func (s *CommodityStock) Quantity() float64 { return s.quantity }

// MaxQuantity returns storage capacity.
func (s *CommodityStock) MaxQuantity() float64 { return s.maxQuantity }

// MeanCost returns the running average cost per unit held.
func (s *CommodityStock) MeanCost() float64 { return s.meanCost }

// Wobble returns the current exploration width.
func (s *CommodityStock) Wobble() float64 { return s.wobble }

// Beliefs returns the current price belief interval.
func (s *CommodityStock) Beliefs() (lo, hi float64) { return s.minBelief, s.maxBelief }

// History returns the prices this stock has observed.
func (s *CommodityStock) History() *PriceHistory { return &s.history }

// Deficit is unused capacity: how much more could be bought.
func (s *CommodityStock) Deficit() float64 {
	return max(s.maxQuantity-s.quantity, 0)
}

// Surplus is what could be sold.
func (s *CommodityStock) Surplus() float64 {
	return s.quantity
}

// Increase adjusts the quantity outside of trading (production, usage).
// Quantity never goes below zero.
func (s *CommodityStock) Increase(delta float64) {
	s.quantity = max(s.quantity+delta, 0)
}

// Buy records a purchase and returns the accepted quantity. Overfilling
// capacity is accepted. Overflow up to MinOrderSize is routine (a full
// agent still bids the minimum) and logs at debug level.
func (s *CommodityStock) Buy(quantity, price float64) float64 {
	total := s.quantity + quantity
	if total > 0 {
		s.meanCost = (s.meanCost*s.quantity + price*quantity) / total
	} else {
		s.meanCost = price
	}

	leftOver := quantity - s.Deficit()
	s.quantity = total
	if leftOver > 0 {
		level := slog.LevelDebug
		if leftOver > MinOrderSize {
			level = slog.LevelWarn
		}
		slog.Log(context.Background(), level, "stock over capacity",
			"commodity", s.kind,
			"quantity", s.quantity,
			"max", s.maxQuantity,
			"left_over", leftOver,
		)
	}

	s.UpdatePriceBelief(false, price, true)
	return quantity
}

// Sell removes the traded quantity from stock.
func (s *CommodityStock) Sell(quantity, price float64) {
	if quantity > s.quantity {
		slog.Warn("sold more than held",
			"commodity", s.kind,
			"quantity", s.quantity,
			"sold", quantity,
		)
	}
	s.quantity = max(s.quantity-quantity, 0)
	s.UpdatePriceBelief(true, price, true)
}

// Quote draws a price uniformly from the belief interval. Successive quotes
// differ; that is how agents probe the market.
func (s *CommodityStock) Quote(r Rand) float64 {
	s.SanePriceBeliefs()
	return s.minBelief + r.Float64()*(s.maxBelief-s.minBelief)
}

// SanePriceBeliefs repairs the belief interval so that
// MinPrice <= min <= max <= MaxPrice and min is at least the cost floor.
func (s *CommodityStock) SanePriceBeliefs() {
	if math.IsNaN(s.minBelief) {
		s.minBelief = s.cost
	}
	if math.IsNaN(s.maxBelief) {
		s.maxBelief = 2 * s.minBelief
	}
	s.minBelief = max(s.minBelief, s.cost)
	s.maxBelief = max(s.maxBelief, s.minBelief*1.1)
	s.minBelief = clamp(s.minBelief, MinPrice, MaxPrice)
	s.maxBelief = clamp(s.maxBelief, MinPrice, MaxPrice)
}

// UpdatePriceBelief adapts the belief interval after an order was filled
// (success) or left unmatched.
//
// A fill far from the believed mean in the unfavourable direction drags the
// interval a quarter of the way toward the fill price, then the interval
// narrows by the wobble and the wobble halves. A rejection always drags the
// interval toward the order price and widens it by the wobble.
func (s *CommodityStock) UpdatePriceBelief(isSell bool, price float64, success bool) {
	s.SanePriceBeliefs()
	s.history.Add(price)

	buy := !isSell
	mean := (s.minBelief + s.maxBelief) / 2
	deltaMean := mean - price

	if success {
		if (isSell && deltaMean < -s.tune.Significant*mean) ||
			(buy && deltaMean > s.tune.Significant*mean) {
			s.minBelief -= deltaMean / 4
			s.maxBelief -= deltaMean / 4
		}
		s.minBelief += s.wobble * mean
		s.maxBelief -= s.wobble * mean

		if s.minBelief > s.maxBelief {
			avg := (s.minBelief + s.maxBelief) / 2
			s.minBelief = avg * (1 - s.wobble)
			s.maxBelief = avg * (1 + s.wobble)
		}
		s.wobble /= 2
	} else {
		s.minBelief -= deltaMean / 4
		s.maxBelief -= deltaMean / 4

		if (buy && s.quantity < s.maxQuantity*s.tune.LowInventory) ||
			(isSell && s.quantity > s.maxQuantity*s.tune.HighInventory) {
			slog.Debug("order rejected at critical inventory",
				"commodity", s.kind,
				"sell", isSell,
				"quantity", s.quantity,
				"price", price,
			)
		}
		s.minBelief -= s.wobble * mean
		s.maxBelief += s.wobble * mean
	}

	if s.minBelief > s.maxBelief {
		s.minBelief = s.maxBelief / 2
	}
	s.SanePriceBeliefs()
}
