package trade

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/harvest-market/internal/commodity"
)

func TestTradeReduceDoesNotMutate(t *testing.T) {
	orig := New(commodity.Corn, 8, 5, 3)
	left := orig.Reduce(2)

	assert.Equal(t, 5.0, orig.Quantity)
	assert.Equal(t, 3.0, left.Quantity)
	assert.False(t, left.Filled())
	assert.True(t, left.Reduce(3).Filled())
}

func TestSubmissionOneOrderPerCommodity(t *testing.T) {
	var s Submission
	s.Add(New(commodity.Corn, 8, 5, 0))
	s.Add(New(commodity.Corn, 9, 2, 0))
	s.Add(New(commodity.Carrot, 4, 1, 0))

	assert.Equal(t, 2, s.Len())
	got, ok := s.Get(commodity.Corn)
	require.True(t, ok)
	assert.Equal(t, 9.0, got.Price)

	_, ok = s.Get(commodity.Lettuce)
	assert.False(t, ok)

	var order []commodity.Kind
	s.Each(func(tr Trade) { order = append(order, tr.Commodity) })
	assert.Equal(t, []commodity.Kind{commodity.Carrot, commodity.Corn}, order)

	assert.Panics(t, func() { s.Add(New(commodity.Kind(99), 1, 1, 0)) })
}

func TestTableAccumulateAndReset(t *testing.T) {
	tbl := NewTable()

	var bids, asks Submission
	bids.Add(New(commodity.Potato, 5, 2, 0))
	asks.Add(New(commodity.Potato, 4, 3, 1))
	tbl.AddBids(bids)
	tbl.AddAsks(asks)
	tbl.AddBids(bids)

	b := tbl.Book(commodity.Potato)
	assert.Len(t, b.Bids, 2)
	assert.Len(t, b.Asks, 1)
	assert.Equal(t, 3, tbl.Len())

	bq, aq := b.Quantities()
	assert.Equal(t, 4.0, bq)
	assert.Equal(t, 3.0, aq)

	tbl.Reset()
	assert.Equal(t, 0, tbl.Len())
	assert.True(t, tbl.Book(commodity.Potato).Empty())
}

func TestBookSortPutsBestLast(t *testing.T) {
	b := &Book{
		Bids: []Trade{New(commodity.Corn, 7, 1, 0), New(commodity.Corn, 9, 1, 1), New(commodity.Corn, 3, 1, 2)},
		Asks: []Trade{New(commodity.Corn, 6, 1, 3), New(commodity.Corn, 2, 1, 4), New(commodity.Corn, 8, 1, 5)},
	}
	b.Shuffle(rand.New(rand.NewSource(7)))
	b.Sort()

	assert.Equal(t, 9.0, b.Bids[len(b.Bids)-1].Price)
	assert.Equal(t, 2.0, b.Asks[len(b.Asks)-1].Price)
	assert.Equal(t, 3.0, b.Bids[0].Price)
	assert.Equal(t, 8.0, b.Asks[0].Price)
}

func TestShuffleDecidesTies(t *testing.T) {
	seen := make(map[int]bool)
	for seed := int64(0); seed < 50; seed++ {
		b := &Book{}
		for i := 0; i < 4; i++ {
			b.Bids = append(b.Bids, New(commodity.Corn, 5, 1, i))
		}
		b.Shuffle(rand.New(rand.NewSource(seed)))
		b.Sort()
		seen[b.Bids[len(b.Bids)-1].Agent] = true
	}
	// With equal prices every agent should get to be first in line at some point.
	assert.Len(t, seen, 4)
}
