package market

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/talgya/harvest-market/internal/agents"
	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/trade"
)

func cornTrader(cash, qty float64, seed int64) *agents.Agent {
	return agents.New(agents.Config{
		Name: "trader",
		Cash: cash,
		Stocks: []agents.StockSpec{
			{Kind: commodity.Corn, Quantity: qty, MaxQuantity: 20, Price: 8, Production: 1},
		},
		Rand: rand.New(rand.NewSource(seed)),
	})
}

func newHouse(cfg Config) *House {
	return NewHouse(commodity.DefaultRegistry(), rand.New(rand.NewSource(7)), cfg)
}

func bid(price, qty float64, agent int) trade.Submission {
	var s trade.Submission
	s.Add(trade.New(commodity.Corn, price, qty, agent))
	return s
}

func ask(price, qty float64, agent int) trade.Submission {
	return bid(price, qty, agent)
}

func cornStock(a *agents.Agent) float64 {
	s, err := a.Stock(commodity.Corn)
	if err != nil {
		return math.NaN()
	}
	return s.Quantity()
}

func quantity(t *testing.T, a *agents.Agent) float64 {
	t.Helper()
	s, err := a.Stock(commodity.Corn)
	require.NoError(t, err)
	return s.Quantity()
}

func TestSimpleCross(t *testing.T) {
	pop := []*agents.Agent{cornTrader(100, 0, 1), cornTrader(100, 10, 2)}
	h := newHouse(Config{})

	h.Submit(bid(10, 5, 0), trade.Submission{})
	h.Submit(trade.Submission{}, ask(6, 5, 1))
	rep, err := h.ResolveAll(pop)
	require.NoError(t, err)

	require.Len(t, rep.Fills, 1)
	f := rep.Fills[0]
	assert.Equal(t, 8.0, f.Price)
	assert.Equal(t, 5.0, f.Quantity)
	assert.Equal(t, 0, f.Buyer)
	assert.Equal(t, 1, f.Seller)

	assert.Equal(t, 60.0, pop[0].Cash())
	assert.Equal(t, 140.0, pop[1].Cash())
	assert.Equal(t, 5.0, quantity(t, pop[0]))
	assert.Equal(t, 5.0, quantity(t, pop[1]))

	cr, ok := rep.Commodity(commodity.Corn)
	require.True(t, ok)
	assert.Equal(t, 1, cr.Rounds)
	assert.Equal(t, 0, cr.Unmatched)
	assert.Equal(t, 8.0, cr.AvgPrice)
	assert.Equal(t, 0, h.Pending())

	assert.Equal(t, 8.0, h.Market().AvgPrice(commodity.Corn, 1))
	trades, most := h.Market().Summary()
	assert.Equal(t, 1, trades)
	assert.Equal(t, commodity.Corn, most)
}

func TestNoCrossRejectsBothSides(t *testing.T) {
	pop := []*agents.Agent{cornTrader(100, 5, 1), cornTrader(100, 5, 2)}
	buyer, _ := pop[0].Stock(commodity.Corn)
	seller, _ := pop[1].Stock(commodity.Corn)
	blo, bhi := buyer.Beliefs()
	slo, shi := seller.Beliefs()

	h := newHouse(Config{})
	h.Submit(bid(5, 3, 0), trade.Submission{})
	h.Submit(trade.Submission{}, ask(6, 3, 1))
	rep, err := h.ResolveAll(pop)
	require.NoError(t, err)

	assert.Empty(t, rep.Fills)
	assert.Equal(t, 100.0, pop[0].Cash())
	assert.Equal(t, 100.0, pop[1].Cash())
	assert.Equal(t, 5.0, quantity(t, pop[0]))
	assert.Equal(t, 5.0, quantity(t, pop[1]))

	cr, _ := rep.Commodity(commodity.Corn)
	assert.Equal(t, 0, cr.Rounds)
	assert.Equal(t, 2, cr.Unmatched)
	assert.Equal(t, 0.0, cr.AvgPrice)

	nblo, nbhi := buyer.Beliefs()
	nslo, nshi := seller.Beliefs()
	assert.Greater(t, nbhi-nblo, bhi-blo, "rejected bid widens beliefs")
	assert.Greater(t, nshi-nslo, shi-slo, "rejected ask widens beliefs")
}

func TestSilentDrainLeavesBeliefs(t *testing.T) {
	pop := []*agents.Agent{cornTrader(100, 5, 1), cornTrader(100, 5, 2)}
	s, _ := pop[0].Stock(commodity.Corn)
	lo, hi := s.Beliefs()

	h := newHouse(Config{SilentDrain: true})
	h.Submit(bid(5, 3, 0), ask(20, 1, 0))
	_, err := h.ResolveAll(pop)
	require.NoError(t, err)

	nlo, nhi := s.Beliefs()
	assert.Equal(t, lo, nlo)
	assert.Equal(t, hi, nhi)
}

func partialFillBook(h *House) {
	h.Submit(bid(10, 3, 0), trade.Submission{})
	h.Submit(trade.Submission{}, ask(6, 10, 1))
	h.Submit(bid(9, 4, 2), trade.Submission{})
}

func TestPartialFillSameSide(t *testing.T) {
	pop := []*agents.Agent{cornTrader(100, 0, 1), cornTrader(100, 10, 2), cornTrader(100, 0, 3)}
	h := newHouse(Config{Requeue: RequeueSameSide})
	partialFillBook(h)

	rep, err := h.ResolveAll(pop)
	require.NoError(t, err)

	require.Len(t, rep.Fills, 2)
	assert.Equal(t, Fill{Commodity: commodity.Corn, Price: 8, Quantity: 3, Buyer: 0, Seller: 1, BidPrice: 10, AskPrice: 6}, rep.Fills[0])
	assert.Equal(t, Fill{Commodity: commodity.Corn, Price: 7.5, Quantity: 4, Buyer: 2, Seller: 1, BidPrice: 9, AskPrice: 6}, rep.Fills[1])

	assert.Equal(t, 76.0, pop[0].Cash())
	assert.Equal(t, 154.0, pop[1].Cash())
	assert.Equal(t, 70.0, pop[2].Cash())
	assert.Equal(t, 3.0, quantity(t, pop[1]))

	cr, _ := rep.Commodity(commodity.Corn)
	assert.Equal(t, 2, cr.Rounds)
	assert.Equal(t, 1, cr.Unmatched, "3 units of the ask are left over")
	assert.Equal(t, 7.0, cr.Traded)
}

func TestPartialFillSwapped(t *testing.T) {
	pop := []*agents.Agent{cornTrader(100, 0, 1), cornTrader(100, 10, 2), cornTrader(100, 0, 3)}
	h := newHouse(Config{Requeue: RequeueSwapped})
	partialFillBook(h)

	rep, err := h.ResolveAll(pop)
	require.NoError(t, err)

	// The ask remainder lands on the bid side, leaving no asks to match
	// the second bidder against.
	require.Len(t, rep.Fills, 1)
	assert.Equal(t, 0, rep.Fills[0].Buyer)
	assert.Equal(t, 100.0, pop[2].Cash())

	cr, _ := rep.Commodity(commodity.Corn)
	assert.Equal(t, 1, cr.Rounds)
	assert.Equal(t, 2, cr.Unmatched)
}

func TestOneSidedBookRejectsEverything(t *testing.T) {
	pop := []*agents.Agent{cornTrader(100, 10, 1), cornTrader(100, 10, 2)}
	h := newHouse(Config{})
	h.Submit(trade.Submission{}, ask(6, 2, 0))
	h.Submit(trade.Submission{}, ask(7, 2, 1))

	rep, err := h.ResolveAll(pop)
	require.NoError(t, err)
	cr, _ := rep.Commodity(commodity.Corn)
	assert.Equal(t, 0, cr.Rounds)
	assert.Equal(t, 2, cr.Unmatched)
	assert.Equal(t, 4.0, cr.AskQuantity)
}

func TestSubmitDropsMalformedOrders(t *testing.T) {
	h := newHouse(Config{})
	h.Submit(bid(math.NaN(), 3, 0), ask(5, 0, 0))
	assert.Equal(t, 0, h.Pending())
	h.Submit(bid(4, 3, 0), trade.Submission{})
	assert.Equal(t, 1, h.Pending())
}

func TestUnknownAgentAbortsTick(t *testing.T) {
	pop := []*agents.Agent{cornTrader(100, 10, 1)}
	h := newHouse(Config{})
	h.Submit(bid(10, 1, 5), ask(6, 1, 0))

	_, err := h.ResolveAll(pop)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAgent)
	assert.Equal(t, 0, h.Pending(), "table is reset after a failed tick")

	// The next tick starts clean.
	rep, err := h.ResolveAll(pop)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rep.Tick)
}

func TestUnheldCommodityAbortsTick(t *testing.T) {
	seller := agents.New(agents.Config{
		Stocks: []agents.StockSpec{{Kind: commodity.Lettuce, Quantity: 5, MaxQuantity: 20, Price: 10, Production: 1}},
		Rand:   rand.New(rand.NewSource(1)),
	})
	pop := []*agents.Agent{cornTrader(100, 0, 1), seller}
	h := newHouse(Config{})

	var b, a trade.Submission
	b.Add(trade.New(commodity.Lettuce, 12, 1, 0))
	a.Add(trade.New(commodity.Lettuce, 8, 1, 1))
	h.Submit(b, a)

	_, err := h.ResolveAll(pop)
	assert.ErrorIs(t, err, commodity.ErrUnknownKind)
}

func TestTickWithSpawnedPopulation(t *testing.T) {
	reg := commodity.DefaultRegistry()
	pop := agents.NewSpawner(reg, agents.DefaultSpawnConfig()).SpawnPopulation(agents.PopulationCounts{
		SeedMerchants: 2,
		Farmers:       3,
		Households:    10,
	})
	h := NewHouse(reg, rand.New(rand.NewSource(3)), Config{})

	traded := 0.0
	for i := 0; i < 30; i++ {
		rep, err := h.Tick(pop)
		require.NoError(t, err, "tick %d", i)
		require.Len(t, rep.Commodities, commodity.NumKinds)
		traded += rep.Traded()
		for _, f := range rep.Fills {
			assert.NotEqual(t, f.Buyer, f.Seller)
		}
	}
	assert.Greater(t, traded, 0.0)
	for _, a := range pop {
		for _, k := range a.Kinds() {
			s, _ := a.Stock(k)
			lo, hi := s.Beliefs()
			assert.LessOrEqual(t, lo, hi)
			assert.GreaterOrEqual(t, s.Quantity(), 0.0)
		}
	}
}

func TestSpawnedPopulationKeepsTrading(t *testing.T) {
	if testing.Short() {
		t.Skip("long run")
	}
	reg := commodity.DefaultRegistry()
	pop := agents.NewSpawner(reg, agents.DefaultSpawnConfig()).SpawnPopulation(agents.PopulationCounts{
		SeedMerchants: 2,
		Farmers:       4,
		Households:    20,
	})
	h := NewHouse(reg, rand.New(rand.NewSource(11)), Config{})

	traded := 0.0
	asks := make(map[commodity.Kind]int)
	for i := 0; i < 600; i++ {
		for _, a := range pop {
			if a.Role() != agents.RoleHousehold {
				continue
			}
			for _, k := range a.Kinds() {
				a.Use(k, 0.5)
			}
		}
		rep, err := h.Tick(pop)
		require.NoError(t, err, "tick %d", i)
		if i < 500 {
			continue
		}
		traded += rep.Traded()
		for _, c := range rep.Commodities {
			asks[c.Commodity] += c.Asks
		}
	}

	assert.Greater(t, traded, 0.0, "no trades after tick 500")
	cropAsks := 0
	for _, k := range reg.Kinds() {
		if k.IsSeed() {
			// Seed merchants always hold stock, so they never stop asking.
			assert.Positive(t, asks[k], "no asks for %s after tick 500", k)
			continue
		}
		cropAsks += asks[k]
	}
	assert.Positive(t, cropAsks, "no crop asks after tick 500")
	for _, a := range pop {
		assert.False(t, math.IsNaN(a.Cash()) || math.IsInf(a.Cash(), 0), "%s cash %v", a.Name(), a.Cash())
		assert.Greater(t, a.Cash(), -1e7, "%s cash ran away", a.Name())
	}
}

func TestParseRequeuePolicy(t *testing.T) {
	p, err := ParseRequeuePolicy("swapped")
	require.NoError(t, err)
	assert.Equal(t, RequeueSwapped, p)
	assert.Equal(t, "same_side", RequeueSameSide.String())

	_, err = ParseRequeuePolicy("sideways")
	assert.Error(t, err)
}

type drawnOrder struct {
	price, qty float64
}

func drawOrders(t *rapid.T, label string) []drawnOrder {
	n := rapid.IntRange(0, 12).Draw(t, label+"_count")
	out := make([]drawnOrder, n)
	for i := range out {
		out[i] = drawnOrder{
			price: rapid.Float64Range(1, 20).Draw(t, label+"_price"),
			qty:   rapid.Float64Range(0.5, 10).Draw(t, label+"_qty"),
		}
	}
	return out
}

func TestClearingProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		policy := RequeuePolicy(rapid.IntRange(0, 1).Draw(t, "policy"))
		bids := drawOrders(t, "bid")
		asks := drawOrders(t, "ask")

		// One agent per order so each submission carries a single trade.
		pop := make([]*agents.Agent, 0, len(bids)+len(asks))
		h := NewHouse(commodity.DefaultRegistry(), rand.New(rand.NewSource(rapid.Int64().Draw(t, "rng"))), Config{Requeue: policy})
		for _, o := range bids {
			idx := len(pop)
			pop = append(pop, cornTrader(100, 10, int64(idx)))
			h.Submit(bid(o.price, o.qty, idx), trade.Submission{})
		}
		for _, o := range asks {
			idx := len(pop)
			pop = append(pop, cornTrader(100, 10, int64(idx)))
			h.Submit(trade.Submission{}, ask(o.price, o.qty, idx))
		}
		cashBefore := 0.0
		stockBefore := make([]float64, len(pop))
		for i, a := range pop {
			cashBefore += a.Cash()
			stockBefore[i] = cornStock(a)
		}

		rep, err := h.ResolveAll(pop)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		cr, _ := rep.Commodity(commodity.Corn)

		if cr.Rounds > len(bids)+len(asks) {
			t.Fatalf("%d rounds for %d orders", cr.Rounds, len(bids)+len(asks))
		}

		filled := 0.0
		wantStock := append([]float64(nil), stockBefore...)
		for _, f := range rep.Fills {
			if f.AskPrice > f.BidPrice {
				t.Fatalf("fill %v matched ask %v above bid %v", f, f.AskPrice, f.BidPrice)
			}
			if f.Price < f.AskPrice-1e-9 || f.Price > f.BidPrice+1e-9 {
				t.Fatalf("fill price %v outside its pair [%v, %v]", f.Price, f.AskPrice, f.BidPrice)
			}
			if f.Quantity <= 0 {
				t.Fatalf("empty fill %v", f)
			}
			filled += f.Quantity
			wantStock[f.Buyer] += f.Quantity
			wantStock[f.Seller] -= f.Quantity
		}
		for i, a := range pop {
			if got := cornStock(a); math.Abs(got-wantStock[i]) > 1e-9 {
				t.Fatalf("agent %d holds %v corn, fills say %v", i, got, wantStock[i])
			}
		}
		if math.Abs(filled-cr.Traded) > 1e-9 {
			t.Fatalf("fills sum %v, traded %v", filled, cr.Traded)
		}
		if policy == RequeueSameSide && cr.Traded > min(cr.BidQuantity, cr.AskQuantity)+1e-9 {
			t.Fatalf("traded %v exceeds bid %v or ask %v", cr.Traded, cr.BidQuantity, cr.AskQuantity)
		}
		if cr.Traded > (cr.BidQuantity+cr.AskQuantity)/2+1e-9 {
			t.Fatalf("traded %v exceeds half the book", cr.Traded)
		}

		cashAfter := 0.0
		for _, a := range pop {
			cashAfter += a.Cash()
		}
		if math.Abs(cashAfter-cashBefore) > 1e-6 {
			t.Fatalf("cash not conserved: %v -> %v", cashBefore, cashAfter)
		}
		if h.Pending() != 0 {
			t.Fatalf("%d orders left on the table", h.Pending())
		}
	})
}
