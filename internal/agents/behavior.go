package agents

import (
	"log/slog"
	"math"

	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/trade"
)

// Favorability scores how good the current market is for selling, given the
// market's recent average price and the low/high of the agent's own price
// history. The result is clamped to [0, 1]; buyers use 1 - score.
type Favorability func(avg, lowest, highest float64) float64

// PlaceholderFavorability treats every market as neutral.
func PlaceholderFavorability(avg, lowest, highest float64) float64 {
	return 0.5
}

// LerpFavorability places the average price inside the historical band:
// 0 at the lowest price seen, 1 at the highest. A flat history is neutral.
func LerpFavorability(avg, lowest, highest float64) float64 {
	if highest-lowest <= 0 {
		return 0.5
	}
	return (avg - lowest) / (highest - lowest)
}

func (a *Agent) favorabilityFor(k commodity.Kind, s *CommodityStock, board PriceBoard) float64 {
	avg := 0.0
	if board != nil {
		avg = board.AvgPrice(k, a.historyCount)
	}
	if avg <= 0 {
		avg = s.history.Mean(a.historyCount)
	}
	f := a.favorability(avg, s.history.Min(a.historyCount), s.history.Max(a.historyCount))
	if math.IsNaN(f) {
		return 0.5
	}
	return clamp(f, 0, 1)
}

// FindBuyCount sizes a bid for k.
func (a *Agent) FindBuyCount(k commodity.Kind, board PriceBoard) float64 {
	s := a.mustStock(k)
	f := a.favorabilityFor(k, s, board)
	return max((1-f)*s.Deficit(), MinOrderSize)
}

// FindSellCount sizes an ask for k.
func (a *Agent) FindSellCount(k commodity.Kind, board PriceBoard) float64 {
	s := a.mustStock(k)
	f := a.favorabilityFor(k, s, board)
	return max(f*s.Surplus(), MinOrderSize)
}

// Consume builds this tick's bids: one per held commodity the agent does not
// make itself. idx is the agent's position in the population.
func (a *Agent) Consume(idx int, board PriceBoard) trade.Submission {
	var bids trade.Submission
	for _, k := range a.Kinds() {
		if a.buildables[k] {
			continue
		}
		n := a.FindBuyCount(k, board)
		if n <= 0 {
			continue
		}
		price := a.stockpile[k].Quote(a.rng)
		bids.Add(trade.New(k, price, n, idx))
	}
	return bids
}

// Produce runs one production step for every buildable and builds this
// tick's asks. Each run consumes the registry's dependencies; the number of
// runs is bounded by the scarcest input, the production rate and free
// capacity. yield scales output per commodity (nil means 1).
//
// A producer keeps asking while it holds surplus, even when it is at
// capacity and made nothing. Only a producer with nothing made and nothing
// to sell pays the idle tax, charged on positive cash.
func (a *Agent) Produce(idx int, reg *commodity.Registry, board PriceBoard, yield func(commodity.Kind) float64) trade.Submission {
	var asks trade.Submission
	for _, k := range a.Buildables() {
		info := reg.MustGet(k)
		out := a.mustStock(k)

		runs := math.MaxFloat64
		for dep, needed := range info.Deps {
			if needed <= 0 {
				continue
			}
			runs = min(runs, a.mustStock(dep).Quantity()/needed)
		}
		runs = clamp(runs, 0, min(out.productionRate, out.Deficit()))

		for dep, needed := range info.Deps {
			in := a.mustStock(dep)
			in.Increase(-clamp(needed*runs, 0, in.Quantity()))
		}

		made := runs * out.production
		if yield != nil {
			made *= yield(k)
		}
		made = max(made, 0)
		out.Increase(made)

		if made <= 0 && out.Surplus() <= 0 {
			tax := max(a.cash, 0) * IdleTaxRate
			a.cash -= tax
			slog.Debug("idle producer taxed", "agent", a.name, "commodity", k, "tax", tax)
			continue
		}

		n := min(a.FindSellCount(k, board), out.Surplus())
		if n <= 0 {
			continue
		}
		asks.Add(trade.New(k, out.Quote(a.rng), n, idx))
	}
	return asks
}
