// Agent spawning builds the initial market population: seed merchants,
// farmers and households with randomized starting stock.
package agents

import (
	"math/rand"

	"github.com/talgya/harvest-market/internal/commodity"
)

// SpawnConfig controls initial population generation.
type SpawnConfig struct {
	Seed                int64
	InitCash            float64
	InitStock           float64 // Lower bound of starting quantity
	MaxStock            float64 // Upper bound of starting quantity and minimum capacity
	BankruptcyThreshold float64
	HistoryCount        int
	Tunables            Tunables
	Favorability        Favorability
}

// DefaultSpawnConfig returns the stock market-house settings.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{
		Seed:                42,
		InitCash:            100,
		InitStock:           15,
		MaxStock:            20,
		BankruptcyThreshold: DefaultBankruptcyThreshold,
		HistoryCount:        DefaultHistoryCount,
		Tunables:            DefaultTunables(),
	}
}

// Spawner creates agents for the market.
type Spawner struct {
	rng *rand.Rand
	reg *commodity.Registry
	cfg SpawnConfig
}

// NewSpawner creates an agent spawner over the given catalog.
func NewSpawner(reg *commodity.Registry, cfg SpawnConfig) *Spawner {
	return &Spawner{
		rng: rand.New(rand.NewSource(cfg.Seed + 300)),
		reg: reg,
		cfg: cfg,
	}
}

// Spawn creates one agent of the given role. product is the commodity a seed
// merchant or farmer makes; households ignore it.
func (s *Spawner) Spawn(role Role, product commodity.Kind) *Agent {
	var held, builds []commodity.Kind
	switch role {
	case RoleSeedMerchant:
		held = []commodity.Kind{product}
		builds = held
	case RoleFarmer:
		info := s.reg.MustGet(product)
		held = append(held, product)
		for _, dep := range commodity.All() {
			if _, ok := info.Deps[dep]; ok && dep != product {
				held = append(held, dep)
			}
		}
		builds = []commodity.Kind{product}
	default:
		// Households eat every configured crop.
		for _, k := range s.reg.Kinds() {
			if !k.IsSeed() {
				held = append(held, k)
			}
		}
	}

	stocks := make([]StockSpec, 0, len(held))
	for _, k := range held {
		info := s.reg.MustGet(k)
		initStock := s.cfg.InitStock
		if s.cfg.MaxStock > s.cfg.InitStock {
			initStock += s.rng.Float64() * (s.cfg.MaxStock - s.cfg.InitStock)
		}
		stocks = append(stocks, StockSpec{
			Kind:        k,
			Quantity:    initStock,
			MaxQuantity: max(initStock, s.cfg.MaxStock),
			Price:       info.BasePrice,
			Production:  info.Production,
		})
	}

	return New(Config{
		Name:                s.generateName(),
		Role:                role,
		Cash:                s.cfg.InitCash,
		Buildables:          builds,
		Stocks:              stocks,
		BankruptcyThreshold: s.cfg.BankruptcyThreshold,
		HistoryCount:        s.cfg.HistoryCount,
		Tunables:            s.cfg.Tunables,
		Favorability:        s.cfg.Favorability,
		Rand:                rand.New(rand.NewSource(s.rng.Int63())),
	})
}

// PopulationCounts says how many agents of each role to spawn.
type PopulationCounts struct {
	SeedMerchants int // Per seed kind
	Farmers       int // Per crop kind
	Households    int
}

// SpawnPopulation creates the full trading population for the catalog.
func (s *Spawner) SpawnPopulation(counts PopulationCounts) []*Agent {
	var out []*Agent
	for _, k := range s.reg.Kinds() {
		role, n := RoleFarmer, counts.Farmers
		if k.IsSeed() {
			role, n = RoleSeedMerchant, counts.SeedMerchants
		}
		for i := 0; i < n; i++ {
			out = append(out, s.Spawn(role, k))
		}
	}
	for i := 0; i < counts.Households; i++ {
		out = append(out, s.Spawn(RoleHousehold, 0))
	}
	return out
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

var firstNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Ivan", "Jasper", "Kael", "Leif", "Magnus", "Nils",
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Helene", "Iris", "Juno", "Kira", "Lena", "Mira", "Nessa",
}

var lastNames = []string{
	"Thornwood", "Ashford", "Greenvale", "Millward", "Hearthstone",
	"Copperfield", "Brightwater", "Riverstone", "Marshwood", "Goldhaven",
	"Thatcher", "Harper", "Mercer", "Farrow", "Briar", "Caldwell",
}
