package market

import (
	"fmt"

	"github.com/talgya/harvest-market/internal/commodity"
)

// Fill is one match between a bid and an ask. Price is the midpoint of
// BidPrice and AskPrice.
type Fill struct {
	Commodity commodity.Kind `json:"commodity"`
	Price     float64        `json:"price"`
	Quantity  float64        `json:"quantity"`
	Buyer     int            `json:"buyer"`
	Seller    int            `json:"seller"`
	BidPrice  float64        `json:"bid_price"`
	AskPrice  float64        `json:"ask_price"`
}

func (f Fill) String() string {
	return fmt.Sprintf("%s %.2f@%.2f %d<-%d", f.Commodity, f.Quantity, f.Price, f.Buyer, f.Seller)
}

// CommodityReport summarizes one commodity's clearing in one tick.
type CommodityReport struct {
	Commodity   commodity.Kind `json:"commodity"`
	Bids        int            `json:"bids"`
	Asks        int            `json:"asks"`
	BidQuantity float64        `json:"bid_quantity"`
	AskQuantity float64        `json:"ask_quantity"`
	Fills       int            `json:"fills"`
	Traded      float64        `json:"traded"`
	Money       float64        `json:"money"`
	AvgPrice    float64        `json:"avg_price"` // 0 when nothing traded
	Unmatched   int            `json:"unmatched"` // Orders left when matching stopped
	Rounds      int            `json:"rounds"`    // Match loop iterations
}

// Report is the outcome of one ResolveAll.
type Report struct {
	Tick        uint64            `json:"tick"`
	Commodities []CommodityReport `json:"commodities"`
	Fills       []Fill            `json:"fills"`
}

// Traded returns total units exchanged across commodities.
func (r Report) Traded() float64 {
	total := 0.0
	for _, c := range r.Commodities {
		total += c.Traded
	}
	return total
}

// Money returns total cash exchanged across commodities.
func (r Report) Money() float64 {
	total := 0.0
	for _, c := range r.Commodities {
		total += c.Money
	}
	return total
}

// Commodity returns the report line for k.
func (r Report) Commodity(k commodity.Kind) (CommodityReport, bool) {
	for _, c := range r.Commodities {
		if c.Commodity == k {
			return c, true
		}
	}
	return CommodityReport{}, false
}
