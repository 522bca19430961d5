package agents

import "github.com/talgya/harvest-market/internal/commodity"

// Buy settles a filled bid and returns the quantity taken into stock.
func (a *Agent) Buy(k commodity.Kind, quantity, price float64) float64 {
	bought := a.mustStock(k).Buy(quantity, price)
	a.cash -= price * bought
	return bought
}

// Sell settles a filled ask.
func (a *Agent) Sell(k commodity.Kind, quantity, price float64) {
	a.mustStock(k).Sell(quantity, price)
	a.cash += price * quantity
}

// RejectAsk tells the agent its ask at price went unmatched.
func (a *Agent) RejectAsk(k commodity.Kind, price float64) {
	a.mustStock(k).UpdatePriceBelief(true, price, false)
}

// RejectBid tells the agent its bid at price went unmatched.
func (a *Agent) RejectBid(k commodity.Kind, price float64) {
	a.mustStock(k).UpdatePriceBelief(false, price, false)
}

// Use consumes up to quantity units outside of the market and returns the
// amount actually used.
func (a *Agent) Use(k commodity.Kind, quantity float64) float64 {
	s := a.mustStock(k)
	used := min(quantity, s.Quantity())
	s.Increase(-used)
	return used
}

// Profit returns cash gained since the previous call.
func (a *Agent) Profit() float64 {
	profit := a.cash - a.prevCash
	a.prevCash = a.cash
	return profit
}

// TaxProfit takes rate of any positive profit since the last call and returns
// the profit after tax. Losses are returned untaxed.
func (a *Agent) TaxProfit(rate float64) float64 {
	profit := a.Profit()
	if profit <= 0 {
		return profit
	}
	tax := profit * rate
	a.cash -= tax
	a.prevCash = a.cash
	return profit - tax
}

// IsBankrupt reports whether cash has fallen below the bankruptcy threshold.
func (a *Agent) IsBankrupt() bool {
	return a.cash < a.bankruptcyThreshold
}
