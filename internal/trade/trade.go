// Package trade provides the order types exchanged between agents and the
// market house: single orders, per-agent submissions and per-commodity books.
package trade

import (
	"fmt"

	"github.com/talgya/harvest-market/internal/commodity"
)

// Trade is a limit order for one commodity. Agent is an index into the
// population slice handed to the market, never a pointer.
type Trade struct {
	Commodity commodity.Kind `json:"commodity"`
	Price     float64        `json:"price"`    // Limit price per unit
	Quantity  float64        `json:"quantity"` // Remaining units
	Agent     int            `json:"agent"`
}

// New creates an order.
func New(k commodity.Kind, price, quantity float64, agent int) Trade {
	return Trade{Commodity: k, Price: price, Quantity: quantity, Agent: agent}
}

// Reduce returns a copy of t with q fewer units remaining.
func (t Trade) Reduce(q float64) Trade {
	t.Quantity -= q
	return t
}

// Filled reports whether nothing is left to trade.
func (t Trade) Filled() bool {
	return t.Quantity <= 0
}

func (t Trade) String() string {
	return fmt.Sprintf("%s %.2f@%.2f agent=%d", t.Commodity, t.Quantity, t.Price, t.Agent)
}

// Submission holds at most one order per commodity from a single agent for a
// single tick.
type Submission struct {
	slots [commodity.NumKinds]*Trade
}

// Add places t in its commodity slot, replacing any earlier order.
func (s *Submission) Add(t Trade) {
	if !t.Commodity.Valid() {
		panic(fmt.Errorf("submit %s: %w", t, commodity.ErrUnknownKind))
	}
	s.slots[t.Commodity] = &t
}

// Get returns the order for k, if any.
func (s *Submission) Get(k commodity.Kind) (Trade, bool) {
	if !k.Valid() || s.slots[k] == nil {
		return Trade{}, false
	}
	return *s.slots[k], true
}

// Len returns the number of filled slots.
func (s *Submission) Len() int {
	n := 0
	for _, t := range s.slots {
		if t != nil {
			n++
		}
	}
	return n
}

// Each calls fn for every order in commodity order.
func (s *Submission) Each(fn func(Trade)) {
	for _, t := range s.slots {
		if t != nil {
			fn(*t)
		}
	}
}
