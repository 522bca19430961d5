// Package economy keeps the market-wide record of each commodity: the latest
// supply, demand and clearing price plus a bounded history of past ticks.
package economy

import (
	"sync"

	"github.com/talgya/harvest-market/internal/commodity"
)

// maxSeries bounds every history series (oldest entries are trimmed).
const maxSeries = 1000

// MarketEntry represents the supply/demand state for one commodity.
type MarketEntry struct {
	Good      commodity.Kind `json:"good"`
	Supply    float64        `json:"supply"`     // Units asked last tick
	Demand    float64        `json:"demand"`     // Units bid last tick
	Volume    float64        `json:"volume"`     // Units traded last tick
	Price     float64        `json:"price"`      // Average clearing price of the last tick with trades
	BasePrice float64        `json:"base_price"` // Catalog price, used before any trade
	Trades    int            `json:"trades"`     // Fills last tick

	bids    []float64
	asks    []float64
	prices  []float64
	volumes []float64
}

// Market holds the economic record for every commodity in one market house.
type Market struct {
	mu             sync.RWMutex
	Entries        map[commodity.Kind]*MarketEntry `json:"entries"`
	TradeCount     int                             `json:"trade_count"`      // Fills in the last resolution
	MostTradedGood commodity.Kind                  `json:"most_traded_good"` // Commodity with highest volume last tick
}

// NewMarket creates a record for every configured commodity, priced at the
// catalog's base price.
func NewMarket(reg *commodity.Registry) *Market {
	kinds := reg.Kinds()
	entries := make(map[commodity.Kind]*MarketEntry, len(kinds))
	for _, k := range kinds {
		base := reg.MustGet(k).BasePrice
		entries[k] = &MarketEntry{
			Good:      k,
			Price:     base,
			BasePrice: base,
			prices:    []float64{base},
		}
	}
	return &Market{Entries: entries}
}

// TickResult is what one commodity did during one resolution.
type TickResult struct {
	Good   commodity.Kind
	Demand float64
	Supply float64
	Volume float64
	Money  float64 // Sum of price*quantity over fills
	Trades int
}

// Record appends one resolution's result for a commodity. The clearing price
// series only grows on ticks with trades.
func (m *Market) Record(r TickResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.Entries[r.Good]
	if !ok {
		return
	}
	e.Demand = r.Demand
	e.Supply = r.Supply
	e.Volume = r.Volume
	e.Trades = r.Trades
	e.bids = appendBounded(e.bids, r.Demand)
	e.asks = appendBounded(e.asks, r.Supply)
	e.volumes = appendBounded(e.volumes, r.Volume)
	if r.Volume > 0 {
		e.Price = r.Money / r.Volume
		e.prices = appendBounded(e.prices, e.Price)
	}
}

// Summarize refreshes the market-wide counters after every commodity has
// been recorded for the tick.
func (m *Market) Summarize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TradeCount = 0
	best := -1.0
	for _, k := range commodity.All() {
		e, ok := m.Entries[k]
		if !ok {
			continue
		}
		m.TradeCount += e.Trades
		if e.Volume > best {
			best = e.Volume
			m.MostTradedGood = k
		}
	}
}

// AvgPrice returns the mean clearing price over the last window ticks that
// had trades. Unknown commodities report 0.
func (m *Market) AvgPrice(k commodity.Kind, window int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.Entries[k]
	if !ok {
		return 0
	}
	return lastAverage(e.prices, window)
}

// AvgVolume returns the mean traded units over the last window ticks.
func (m *Market) AvgVolume(k commodity.Kind, window int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.Entries[k]
	if !ok {
		return 0
	}
	return lastAverage(e.volumes, window)
}

// Snapshot returns a copy of every entry in commodity order.
func (m *Market) Snapshot() []MarketEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]MarketEntry, 0, len(m.Entries))
	for _, k := range commodity.All() {
		if e, ok := m.Entries[k]; ok {
			c := *e
			c.bids, c.asks, c.prices, c.volumes = nil, nil, nil, nil
			out = append(out, c)
		}
	}
	return out
}

func appendBounded(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > maxSeries {
		s = s[len(s)-maxSeries:]
	}
	return s
}

func lastAverage(s []float64, window int) float64 {
	if len(s) == 0 {
		return 0
	}
	if window <= 0 || window > len(s) {
		window = len(s)
	}
	sum := 0.0
	for _, v := range s[len(s)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// Summary returns the market-wide counters from the last Summarize.
func (m *Market) Summary() (trades int, mostTraded commodity.Kind) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.TradeCount, m.MostTradedGood
}

// Pressure returns average demand over average supply for the last window
// ticks. Above 1 buyers outnumber sellers. Supply is floored at 1 unit.
func (m *Market) Pressure(k commodity.Kind, window int) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.Entries[k]
	if !ok {
		return 0
	}
	return lastAverage(e.bids, window) / max(lastAverage(e.asks, window), 1)
}
