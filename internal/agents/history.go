package agents

import (
	"math"

	"golang.org/x/exp/constraints"
)

// PriceHistory is an append-only record of prices an agent has seen for one
// commodity.
type PriceHistory struct {
	items []float64
}

// Add appends a price.
func (h *PriceHistory) Add(price float64) {
	h.items = append(h.items, price)
}

// Len returns the number of recorded prices.
func (h *PriceHistory) Len() int {
	return len(h.items)
}

// Last returns the most recent price, or 0 when empty.
func (h *PriceHistory) Last() float64 {
	if len(h.items) == 0 {
		return 0
	}
	return h.items[len(h.items)-1]
}

// recent returns the last window entries (all of them when window <= 0).
func (h *PriceHistory) recent(window int) []float64 {
	if window <= 0 || window >= len(h.items) {
		return h.items
	}
	return h.items[len(h.items)-window:]
}

// Min returns the lowest price among the last window entries, or 0 when empty.
func (h *PriceHistory) Min(window int) float64 {
	items := h.recent(window)
	if len(items) == 0 {
		return 0
	}
	lo := math.Inf(1)
	for _, p := range items {
		lo = math.Min(lo, p)
	}
	return lo
}

// Max returns the highest price among the last window entries, or 0 when empty.
func (h *PriceHistory) Max(window int) float64 {
	items := h.recent(window)
	if len(items) == 0 {
		return 0
	}
	hi := math.Inf(-1)
	for _, p := range items {
		hi = math.Max(hi, p)
	}
	return hi
}

// Mean returns the average of the last window entries, or 0 when empty.
func (h *PriceHistory) Mean(window int) float64 {
	items := h.recent(window)
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range items {
		sum += p
	}
	return sum / float64(len(items))
}

func clamp[T constraints.Float | constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
