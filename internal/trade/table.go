package trade

import (
	"sort"

	"github.com/talgya/harvest-market/internal/commodity"
)

// Book is the pending bids and asks for one commodity in the current tick.
type Book struct {
	Bids []Trade
	Asks []Trade
}

// Empty reports whether neither side has orders.
func (b *Book) Empty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// Shuffler permutes a sequence; *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Shuffle randomly permutes both sides so equal prices are not ordered by
// submission position once sorted.
func (b *Book) Shuffle(r Shuffler) {
	r.Shuffle(len(b.Bids), func(i, j int) { b.Bids[i], b.Bids[j] = b.Bids[j], b.Bids[i] })
	r.Shuffle(len(b.Asks), func(i, j int) { b.Asks[i], b.Asks[j] = b.Asks[j], b.Asks[i] })
}

// Sort orders bids ascending and asks descending by price, leaving the best
// order of each side at the end of its slice. The sort is stable so the
// preceding shuffle decides ties.
func (b *Book) Sort() {
	sort.SliceStable(b.Bids, func(i, j int) bool { return b.Bids[i].Price < b.Bids[j].Price })
	sort.SliceStable(b.Asks, func(i, j int) bool { return b.Asks[i].Price > b.Asks[j].Price })
}

// Quantities returns the total units bid and asked.
func (b *Book) Quantities() (bid, ask float64) {
	for _, t := range b.Bids {
		bid += t.Quantity
	}
	for _, t := range b.Asks {
		ask += t.Quantity
	}
	return bid, ask
}

// Table is the full set of books for a tick, one per commodity.
type Table struct {
	books [commodity.NumKinds]Book
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{}
}

// AddBids merges an agent's bid submission.
func (t *Table) AddBids(s Submission) {
	s.Each(func(tr Trade) {
		b := &t.books[tr.Commodity]
		b.Bids = append(b.Bids, tr)
	})
}

// AddAsks merges an agent's ask submission.
func (t *Table) AddAsks(s Submission) {
	s.Each(func(tr Trade) {
		b := &t.books[tr.Commodity]
		b.Asks = append(b.Asks, tr)
	})
}

// Book returns the book for k. The pointer stays valid until Reset.
func (t *Table) Book(k commodity.Kind) *Book {
	return &t.books[k]
}

// Reset drops every pending order, keeping slice capacity for the next tick.
func (t *Table) Reset() {
	for i := range t.books {
		t.books[i].Bids = t.books[i].Bids[:0]
		t.books[i].Asks = t.books[i].Asks[:0]
	}
}

// Len returns the total number of pending orders.
func (t *Table) Len() int {
	n := 0
	for i := range t.books {
		n += len(t.books[i].Bids) + len(t.books[i].Asks)
	}
	return n
}
