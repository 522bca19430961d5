// Package market clears the farm commodity market: it collects every agent's
// orders for a tick and matches them per commodity in a continuous double
// auction at the midpoint of each crossing bid and ask.
package market

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/harvest-market/internal/agents"
	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/economy"
	"github.com/talgya/harvest-market/internal/trade"
)

var (
	// ErrUnknownAgent means an order carried an index outside the population.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrEmptyBook means the match loop popped from an empty side.
	ErrEmptyBook = errors.New("pop from empty book")
)

// RequeuePolicy decides where the unfilled remainder of a partially matched
// order goes before matching continues.
type RequeuePolicy uint8

const (
	// RequeueSameSide returns a remainder to the top of its own side.
	RequeueSameSide RequeuePolicy = iota
	// RequeueSwapped puts a bid remainder on the ask side and an ask
	// remainder on the bid side, as the game's first market did.
	RequeueSwapped
)

var policyNames = [...]string{"same_side", "swapped"}

func (p RequeuePolicy) String() string {
	if int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", uint8(p))
}

// ParseRequeuePolicy returns the policy with the given name.
func ParseRequeuePolicy(s string) (RequeuePolicy, error) {
	for i, n := range policyNames {
		if n == s {
			return RequeuePolicy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown requeue policy %q", s)
}

// Config controls clearing behaviour.
type Config struct {
	Requeue RequeuePolicy
	// SilentDrain discards unmatched orders without telling their agents.
	// By default every leftover order is rejected so the agent's beliefs
	// learn from it.
	SilentDrain bool
}

// Rand shuffles order books; *rand.Rand satisfies it.
type Rand = trade.Shuffler

// House collects orders and clears them once per tick.
type House struct {
	reg    *commodity.Registry
	cfg    Config
	rng    Rand
	table  *trade.Table
	market *economy.Market
	tick   uint64

	// Yield scales production per commodity for the next Collect. nil means 1.
	Yield func(commodity.Kind) float64
}

// NewHouse creates a market house over the catalog.
func NewHouse(reg *commodity.Registry, rng Rand, cfg Config) *House {
	return &House{
		reg:    reg,
		cfg:    cfg,
		rng:    rng,
		table:  trade.NewTable(),
		market: economy.NewMarket(reg),
	}
}

// Market returns the running price and volume record.
func (h *House) Market() *economy.Market {
	return h.market
}

// Pending returns the number of orders waiting for the next resolution.
func (h *House) Pending() int {
	return h.table.Len()
}

// Submit adds one agent's asks and bids to this tick's table. Orders with no
// quantity or a non-finite price are dropped.
func (h *House) Submit(bids, asks trade.Submission) {
	h.table.AddBids(filter(bids))
	h.table.AddAsks(filter(asks))
}

func filter(s trade.Submission) trade.Submission {
	var out trade.Submission
	s.Each(func(t trade.Trade) {
		if t.Quantity <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
			slog.Debug("dropping malformed order", "order", t.String())
			return
		}
		out.Add(t)
	})
	return out
}

// Collect has every agent produce and consume, submitting the resulting asks
// and bids. An agent's slice index is its order handle.
func (h *House) Collect(population []*agents.Agent) {
	for i, a := range population {
		if a == nil {
			continue
		}
		asks := a.Produce(i, h.reg, h.market, h.Yield)
		bids := a.Consume(i, h.market)
		h.Submit(bids, asks)
	}
}

// Tick collects orders from the population and resolves every commodity.
func (h *House) Tick(population []*agents.Agent) (Report, error) {
	if err := h.collectSafely(population); err != nil {
		return Report{}, err
	}
	return h.ResolveAll(population)
}

func (h *House) collectSafely(population []*agents.Agent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.table.Reset()
			err = tickError(h.tick+1, "collect", r)
		}
	}()
	h.Collect(population)
	return nil
}

// ResolveAll clears every configured commodity against the population that
// submitted the pending orders. The table is empty afterwards whatever the
// outcome. A precondition violation inside clearing (an order for a
// commodity an agent does not hold, a bad agent index) aborts the tick with
// an error; settlements already applied stay applied.
func (h *House) ResolveAll(population []*agents.Agent) (rep Report, err error) {
	h.tick++
	rep.Tick = h.tick

	defer func() {
		h.table.Reset()
		if r := recover(); r != nil {
			err = tickError(h.tick, "resolve", r)
		}
	}()

	for _, k := range h.reg.Kinds() {
		cr, fills := h.resolve(k, population)
		rep.Commodities = append(rep.Commodities, cr)
		rep.Fills = append(rep.Fills, fills...)
		h.market.Record(economy.TickResult{
			Good:   k,
			Demand: cr.BidQuantity,
			Supply: cr.AskQuantity,
			Volume: cr.Traded,
			Money:  cr.Money,
			Trades: cr.Fills,
		})
	}
	h.market.Summarize()
	return rep, nil
}

func tickError(tick uint64, stage string, r any) error {
	if e, ok := r.(error); ok {
		return fmt.Errorf("%s tick %d: %w", stage, tick, e)
	}
	return fmt.Errorf("%s tick %d: %v", stage, tick, r)
}

func agentAt(population []*agents.Agent, idx int) *agents.Agent {
	if idx < 0 || idx >= len(population) || population[idx] == nil {
		panic(fmt.Errorf("agent %d of %d: %w", idx, len(population), ErrUnknownAgent))
	}
	return population[idx]
}

func pop(side []trade.Trade) ([]trade.Trade, trade.Trade) {
	if len(side) == 0 {
		panic(ErrEmptyBook)
	}
	last := len(side) - 1
	return side[:last], side[last]
}

// resolve runs shuffle, sort, match and drain for one commodity.
func (h *House) resolve(k commodity.Kind, population []*agents.Agent) (CommodityReport, []Fill) {
	book := h.table.Book(k)
	cr := CommodityReport{
		Commodity: k,
		Bids:      len(book.Bids),
		Asks:      len(book.Asks),
	}
	cr.BidQuantity, cr.AskQuantity = book.Quantities()
	if book.Empty() {
		return cr, nil
	}

	book.Shuffle(h.rng)
	book.Sort()

	var fills []Fill
	bids, asks := book.Bids, book.Asks
	for len(bids) > 0 && len(asks) > 0 {
		if bids[len(bids)-1].Price < asks[len(asks)-1].Price {
			break // Best bid below best ask: nothing else can cross.
		}

		var bid, ask trade.Trade
		bids, bid = pop(bids)
		asks, ask = pop(asks)
		cr.Rounds++

		q := min(bid.Quantity, ask.Quantity)
		p := (bid.Price + ask.Price) / 2
		if q > 0 {
			bid = bid.Reduce(q)
			ask = ask.Reduce(q)

			buyer := agentAt(population, bid.Agent)
			seller := agentAt(population, ask.Agent)
			bought := buyer.Buy(k, q, p)
			seller.Sell(k, q, p)

			fills = append(fills, Fill{
				Commodity: k,
				Price:     p,
				Quantity:  bought,
				Buyer:     bid.Agent,
				Seller:    ask.Agent,
				BidPrice:  bid.Price,
				AskPrice:  ask.Price,
			})
			cr.Fills++
			cr.Traded += q
			cr.Money += p * q
		}

		if !bid.Filled() {
			if h.cfg.Requeue == RequeueSwapped {
				asks = append(asks, bid)
			} else {
				bids = append(bids, bid)
			}
		}
		if !ask.Filled() {
			if h.cfg.Requeue == RequeueSwapped {
				bids = append(bids, ask)
			} else {
				asks = append(asks, ask)
			}
		}
	}

	// Drain: whatever is left did not trade this tick.
	for _, t := range bids {
		cr.Unmatched++
		if !h.cfg.SilentDrain {
			agentAt(population, t.Agent).RejectBid(k, t.Price)
		}
	}
	for _, t := range asks {
		cr.Unmatched++
		if !h.cfg.SilentDrain {
			agentAt(population, t.Agent).RejectAsk(k, t.Price)
		}
	}
	book.Bids, book.Asks = bids[:0], asks[:0]

	if cr.Traded > 0 {
		cr.AvgPrice = cr.Money / cr.Traded
	}
	return cr, fills
}
