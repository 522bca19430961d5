// Package agents provides the trading agents of the farm market: their
// per-commodity stock and price beliefs, order sizing, production and
// settlement of matched trades.
package agents

import (
	"fmt"

	"github.com/talgya/harvest-market/internal/commodity"
)

// Role describes what an agent makes, which decides the goods it sells.
type Role uint8

const (
	RoleHousehold    Role = iota // Makes nothing, eats crops
	RoleSeedMerchant             // Makes one kind of seed
	RoleFarmer                   // Grows one kind of crop from its seed
)

var roleNames = [...]string{"household", "seed_merchant", "farmer"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

// MarshalText renders the role name in JSON.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses a role name.
func (r *Role) UnmarshalText(b []byte) error {
	for i, n := range roleNames {
		if n == string(b) {
			*r = Role(i)
			return nil
		}
	}
	return fmt.Errorf("unknown role %q", b)
}

// Default agent settings.
const (
	DefaultBankruptcyThreshold = -200.0
	DefaultHistoryCount        = 10
	MinOrderSize               = 1.0
	IdleTaxRate                = 0.05 // Fraction of |cash| charged when a producer makes nothing
)

// PriceBoard supplies the market's recent average clearing price for a
// commodity.
type PriceBoard interface {
	AvgPrice(k commodity.Kind, window int) float64
}

// StockSpec describes one stockpile entry at agent creation.
type StockSpec struct {
	Kind        commodity.Kind
	Quantity    float64
	MaxQuantity float64
	Price       float64
	Production  float64
}

// Config holds the construction parameters of an Agent.
type Config struct {
	Name                string
	Role                Role
	Cash                float64
	Buildables          []commodity.Kind
	Stocks              []StockSpec
	BankruptcyThreshold float64 // 0 selects DefaultBankruptcyThreshold
	HistoryCount        int     // 0 selects DefaultHistoryCount
	Tunables            Tunables
	Favorability        Favorability // nil selects PlaceholderFavorability
	Rand                Rand
}

// Agent is a trader with cash and a stockpile of commodities.
type Agent struct {
	name                string
	role                Role
	cash                float64
	prevCash            float64
	stockpile           map[commodity.Kind]*CommodityStock
	buildables          map[commodity.Kind]bool
	bankruptcyThreshold float64
	historyCount        int
	favorability        Favorability
	rng                 Rand
}

// New creates an agent from cfg. Rand is required.
func New(cfg Config) *Agent {
	if cfg.Rand == nil {
		panic("agents: nil Rand")
	}
	a := &Agent{
		name:                cfg.Name,
		role:                cfg.Role,
		cash:                cfg.Cash,
		prevCash:            cfg.Cash,
		stockpile:           make(map[commodity.Kind]*CommodityStock, len(cfg.Stocks)),
		buildables:          make(map[commodity.Kind]bool, len(cfg.Buildables)),
		bankruptcyThreshold: cfg.BankruptcyThreshold,
		historyCount:        cfg.HistoryCount,
		favorability:        cfg.Favorability,
		rng:                 cfg.Rand,
	}
	if a.bankruptcyThreshold == 0 {
		a.bankruptcyThreshold = DefaultBankruptcyThreshold
	}
	if a.historyCount == 0 {
		a.historyCount = DefaultHistoryCount
	}
	if a.favorability == nil {
		a.favorability = PlaceholderFavorability
	}
	tune := cfg.Tunables
	if tune == (Tunables{}) {
		tune = DefaultTunables()
	}
	for _, st := range cfg.Stocks {
		a.AddStock(st, tune)
	}
	for _, b := range cfg.Buildables {
		a.buildables[b] = true
	}
	return a
}

// AddStock adds a stockpile entry unless the agent already holds that kind.
func (a *Agent) AddStock(st StockSpec, tune Tunables) {
	if _, ok := a.stockpile[st.Kind]; ok {
		return
	}
	a.stockpile[st.Kind] = NewCommodityStock(st.Kind, st.Quantity, st.MaxQuantity, st.Price, st.Production, tune)
}

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Role returns what the agent makes.
func (a *Agent) Role() Role { return a.role }

// Cash returns the current balance. May be negative.
func (a *Agent) Cash() float64 { return a.cash }

// Buildables returns the kinds this agent produces, in enumeration order.
func (a *Agent) Buildables() []commodity.Kind {
	var out []commodity.Kind
	for _, k := range commodity.All() {
		if a.buildables[k] {
			out = append(out, k)
		}
	}
	return out
}

// Stock returns the stockpile entry for k.
func (a *Agent) Stock(k commodity.Kind) (*CommodityStock, error) {
	s, ok := a.stockpile[k]
	if !ok {
		return nil, fmt.Errorf("agent %s stock %s: %w", a.name, k, commodity.ErrUnknownKind)
	}
	return s, nil
}

// mustStock is Stock for settlement paths, where a missing entry means the
// market routed an order the agent never could have placed.
func (a *Agent) mustStock(k commodity.Kind) *CommodityStock {
	s, err := a.Stock(k)
	if err != nil {
		panic(err)
	}
	return s
}

// Kinds returns the held commodities in enumeration order.
func (a *Agent) Kinds() []commodity.Kind {
	var out []commodity.Kind
	for _, k := range commodity.All() {
		if _, ok := a.stockpile[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
