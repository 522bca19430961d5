package agents

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/trade"
)

type fixedBoard float64

func (b fixedBoard) AvgPrice(commodity.Kind, int) float64 { return float64(b) }

func newTestAgent(t *testing.T, cfg Config) *Agent {
	t.Helper()
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(1))
	}
	if cfg.Cash == 0 {
		cfg.Cash = 100
	}
	return New(cfg)
}

func household(t *testing.T) *Agent {
	return newTestAgent(t, Config{
		Name: "household",
		Stocks: []StockSpec{
			{Kind: commodity.Carrot, Quantity: 10, MaxQuantity: 20, Price: 6, Production: 1},
			{Kind: commodity.Corn, Quantity: 10, MaxQuantity: 20, Price: 8, Production: 1},
		},
	})
}

func farmer(t *testing.T, seeds float64) *Agent {
	return newTestAgent(t, Config{
		Name:       "farmer",
		Role:       RoleFarmer,
		Buildables: []commodity.Kind{commodity.Carrot},
		Stocks: []StockSpec{
			{Kind: commodity.Carrot, Quantity: 0, MaxQuantity: 20, Price: 6, Production: 2},
			{Kind: commodity.CarrotSeed, Quantity: seeds, MaxQuantity: 20, Price: 2, Production: 1},
		},
	})
}

func recoverErr(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	fn()
	return nil
}

func TestBuyAndSellMoveCash(t *testing.T) {
	a := household(t)

	got := a.Buy(commodity.Corn, 5, 8)
	assert.Equal(t, 5.0, got)
	assert.Equal(t, 60.0, a.Cash())

	a.Sell(commodity.Carrot, 4, 10)
	assert.Equal(t, 100.0, a.Cash())

	s, err := a.Stock(commodity.Carrot)
	require.NoError(t, err)
	assert.Equal(t, 6.0, s.Quantity())
}

func TestRejectChangesOnlyBeliefs(t *testing.T) {
	a := household(t)
	s, err := a.Stock(commodity.Corn)
	require.NoError(t, err)
	lo, hi := s.Beliefs()

	a.RejectBid(commodity.Corn, 8)
	a.RejectAsk(commodity.Corn, 8)

	assert.Equal(t, 100.0, a.Cash())
	assert.Equal(t, 10.0, s.Quantity())
	nlo, nhi := s.Beliefs()
	assert.Greater(t, nhi-nlo, hi-lo)
}

func TestUnknownCommodityPanics(t *testing.T) {
	a := household(t)

	err := recoverErr(func() { a.Buy(commodity.Lettuce, 1, 1) })
	assert.True(t, errors.Is(err, commodity.ErrUnknownKind), "got %v", err)

	err = recoverErr(func() { a.RejectAsk(commodity.PotatoSeed, 1) })
	assert.ErrorIs(t, err, commodity.ErrUnknownKind)

	_, err = a.Stock(commodity.Lettuce)
	assert.ErrorIs(t, err, commodity.ErrUnknownKind)
}

func TestFindCountsPlaceholder(t *testing.T) {
	a := household(t)
	assert.Equal(t, 5.0, a.FindBuyCount(commodity.Corn, nil))
	assert.Equal(t, 5.0, a.FindSellCount(commodity.Corn, nil))

	a.Use(commodity.Corn, 9.5)
	assert.Equal(t, 1.0, a.FindSellCount(commodity.Corn, nil), "floored at minimum order size")
}

func TestFindCountsLerp(t *testing.T) {
	a := newTestAgent(t, Config{
		Favorability: LerpFavorability,
		Stocks: []StockSpec{
			{Kind: commodity.Corn, Quantity: 8, MaxQuantity: 20, Price: 10, Production: 1},
		},
	})
	s, err := a.Stock(commodity.Corn)
	require.NoError(t, err)
	s.History().Add(4)
	s.History().Add(12)

	// avg 10 inside [4, 12] -> favorability 0.75
	assert.InDelta(t, 6.0, a.FindSellCount(commodity.Corn, fixedBoard(10)), 1e-9)
	assert.InDelta(t, 3.0, a.FindBuyCount(commodity.Corn, fixedBoard(10)), 1e-9)

	// Above the band clamps to 1: sell everything, buy the minimum.
	assert.InDelta(t, 8.0, a.FindSellCount(commodity.Corn, fixedBoard(50)), 1e-9)
	assert.Equal(t, MinOrderSize, a.FindBuyCount(commodity.Corn, fixedBoard(50)))
}

func TestLerpFavorabilityFlatHistory(t *testing.T) {
	assert.Equal(t, 0.5, LerpFavorability(3, 5, 5))
	assert.Equal(t, 0.0, LerpFavorability(5, 5, 9))
	assert.Equal(t, 0.5, PlaceholderFavorability(1, 2, 3))
}

func TestConsumeSkipsBuildables(t *testing.T) {
	h := household(t)
	sub := h.Consume(7, nil)
	assert.Equal(t, 2, sub.Len())
	sub.Each(func(tr trade.Trade) {
		assert.Equal(t, 7, tr.Agent)
		assert.Equal(t, 5.0, tr.Quantity)
		s, _ := h.Stock(tr.Commodity)
		lo, hi := s.Beliefs()
		assert.GreaterOrEqual(t, tr.Price, lo)
		assert.LessOrEqual(t, tr.Price, hi)
	})

	f := farmer(t, 5)
	sub = f.Consume(1, nil)
	_, ok := sub.Get(commodity.Carrot)
	assert.False(t, ok, "farmers do not bid on what they grow")
	_, ok = sub.Get(commodity.CarrotSeed)
	assert.True(t, ok)
}

func TestProduceConsumesInputsAndAsks(t *testing.T) {
	f := farmer(t, 5)
	reg := commodity.DefaultRegistry()

	sub := f.Produce(3, reg, nil, nil)

	seeds, _ := f.Stock(commodity.CarrotSeed)
	crops, _ := f.Stock(commodity.Carrot)
	assert.Equal(t, 4.0, seeds.Quantity(), "one production run uses one seed")
	assert.Equal(t, 2.0, crops.Quantity(), "one seed yields two carrots")

	ask, ok := sub.Get(commodity.Carrot)
	require.True(t, ok)
	assert.Equal(t, 3, ask.Agent)
	assert.Equal(t, 1.0, ask.Quantity)
	assert.Equal(t, 100.0, f.Cash())
}

func TestProduceAppliesYield(t *testing.T) {
	f := farmer(t, 5)
	reg := commodity.DefaultRegistry()

	f.Produce(0, reg, nil, func(commodity.Kind) float64 { return 1.5 })

	crops, _ := f.Stock(commodity.Carrot)
	assert.InDelta(t, 3.0, crops.Quantity(), 1e-9)
}

func TestProduceIdleTax(t *testing.T) {
	f := farmer(t, 0)
	sub := f.Produce(0, commodity.DefaultRegistry(), nil, nil)
	assert.Equal(t, 0, sub.Len())
	assert.Equal(t, 95.0, f.Cash())
}

func TestProduceAtCapacityStillAsks(t *testing.T) {
	f := newTestAgent(t, Config{
		Role:       RoleFarmer,
		Buildables: []commodity.Kind{commodity.Carrot},
		Stocks: []StockSpec{
			{Kind: commodity.Carrot, Quantity: 20, MaxQuantity: 20, Price: 6, Production: 2},
			{Kind: commodity.CarrotSeed, Quantity: 5, MaxQuantity: 20, Price: 2, Production: 1},
		},
	})

	for i := 0; i < 3; i++ {
		sub := f.Produce(0, commodity.DefaultRegistry(), nil, nil)
		ask, ok := sub.Get(commodity.Carrot)
		require.True(t, ok, "run %d", i)
		assert.Equal(t, 10.0, ask.Quantity)
	}
	assert.Equal(t, 100.0, f.Cash(), "a producer with stock to sell is not idle")

	seeds, _ := f.Stock(commodity.CarrotSeed)
	assert.Equal(t, 5.0, seeds.Quantity(), "no capacity, no inputs used")
}

func TestIdleTaxSparesDebt(t *testing.T) {
	f := farmer(t, 0)
	f.cash = -50
	for i := 0; i < 10; i++ {
		f.Produce(0, commodity.DefaultRegistry(), nil, nil)
	}
	assert.Equal(t, -50.0, f.Cash())
}

func TestSeedMerchantProducesWithoutInputs(t *testing.T) {
	m := newTestAgent(t, Config{
		Role:       RoleSeedMerchant,
		Buildables: []commodity.Kind{commodity.CornSeed},
		Stocks: []StockSpec{
			{Kind: commodity.CornSeed, Quantity: 10, MaxQuantity: 20, Price: 3, Production: 1},
		},
	})
	sub := m.Produce(0, commodity.DefaultRegistry(), nil, nil)
	s, _ := m.Stock(commodity.CornSeed)
	assert.Equal(t, 11.0, s.Quantity(), "production rate caps output at one run")
	ask, ok := sub.Get(commodity.CornSeed)
	require.True(t, ok)
	assert.Equal(t, 5.5, ask.Quantity)
}

func TestTaxProfitAndBankruptcy(t *testing.T) {
	a := household(t)
	a.Sell(commodity.Corn, 4, 10)

	assert.Equal(t, 36.0, a.TaxProfit(0.1))
	assert.Equal(t, 136.0, a.Cash())
	assert.Equal(t, 0.0, a.Profit())

	a.Buy(commodity.Corn, 1, 36)
	assert.Equal(t, -36.0, a.TaxProfit(0.1), "losses are not taxed")
	assert.False(t, a.IsBankrupt())

	broke := newTestAgent(t, Config{Cash: -250})
	assert.True(t, broke.IsBankrupt())
}

func TestNewRequiresRand(t *testing.T) {
	assert.Panics(t, func() { New(Config{}) })
}
