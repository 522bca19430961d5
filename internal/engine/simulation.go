// Simulation ties the population, the market house and the observers together
// and runs them each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/harvest-market/internal/agents"
	"github.com/talgya/harvest-market/internal/commodity"
	"github.com/talgya/harvest-market/internal/economy"
	"github.com/talgya/harvest-market/internal/market"
)

// Journal records what happened in the market. Failures are logged, never
// fatal to the simulation.
type Journal interface {
	SaveReport(rep market.Report) error
	SaveDay(stats DayStats) error
}

// Recorder receives per-tick and per-day observations, typically metrics.
type Recorder interface {
	ObserveReport(rep market.Report, elapsed time.Duration)
	ObserveDay(stats DayStats)
}

// DayStats summarizes one market day.
type DayStats struct {
	Tick       uint64  `json:"tick"`
	Day        uint64  `json:"day"`
	Population int     `json:"population"`
	TotalCash  float64 `json:"total_cash"`
	Taxes      float64 `json:"taxes"`    // Collected this day
	Treasury   float64 `json:"treasury"` // Collected since start
	Bankrupt   int     `json:"bankrupt"`
	Fills      int     `json:"fills"`
	Traded     float64 `json:"traded"`
	Money      float64 `json:"money"`
}

// Options tune a Simulation.
type Options struct {
	TaxRate      float64 // Share of positive daily profit collected
	HouseholdUse float64 // Units of each crop a household eats per tick
	TicksPerDay  uint64
}

// Simulation holds the complete market state and wires systems together.
type Simulation struct {
	Registry *commodity.Registry
	Agents   []*agents.Agent
	House    *market.House
	Harvest  *Harvest
	Journal  Journal  // Optional
	Recorder Recorder // Optional

	Options  Options
	LastTick uint64
	Treasury float64

	day DayStats // Accumulates until TickDay

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewSimulation creates a Simulation from a spawned population.
func NewSimulation(reg *commodity.Registry, ag []*agents.Agent, house *market.House, harvest *Harvest, opts Options) *Simulation {
	if opts.TicksPerDay == 0 {
		opts.TicksPerDay = DefaultTicksPerDay
	}
	sim := &Simulation{
		Registry: reg,
		Agents:   ag,
		House:    house,
		Harvest:  harvest,
		Options:  opts,
	}
	house.Yield = func(k commodity.Kind) float64 {
		return sim.Harvest.Yield(k, sim.LastTick/sim.Options.TicksPerDay)
	}
	sim.publish(nil)
	return sim
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.LastTick
}

// TickMarket runs every tick: households eat, then the house collects orders
// and clears every commodity. A clearing error aborts the tick.
func (s *Simulation) TickMarket(tick uint64) error {
	s.LastTick = tick
	s.feedHouseholds()

	start := time.Now()
	rep, err := s.House.Tick(s.Agents)
	if err != nil {
		return fmt.Errorf("market tick %d: %w", tick, err)
	}
	elapsed := time.Since(start)

	for _, c := range rep.Commodities {
		s.day.Fills += c.Fills
		s.day.Traded += c.Traded
		s.day.Money += c.Money
	}
	if s.Journal != nil {
		if err := s.Journal.SaveReport(rep); err != nil {
			slog.Warn("journal report failed", "tick", tick, "error", err)
		}
	}
	if s.Recorder != nil {
		s.Recorder.ObserveReport(rep, elapsed)
	}
	s.publish(&rep)
	return nil
}

// feedHouseholds removes each household's crop usage before it bids, so
// demand keeps coming back.
func (s *Simulation) feedHouseholds() {
	if s.Options.HouseholdUse <= 0 {
		return
	}
	for _, a := range s.Agents {
		if a.Role() != agents.RoleHousehold {
			continue
		}
		for _, k := range a.Kinds() {
			a.Use(k, s.Options.HouseholdUse)
		}
	}
}

// TickDay runs once per market day: taxes, bankruptcy count, daily summary.
// Bankrupt agents keep trading; they are reported, not removed.
func (s *Simulation) TickDay(tick uint64) DayStats {
	stats := s.day
	stats.Tick = tick
	stats.Day = tick / s.Options.TicksPerDay
	stats.Population = len(s.Agents)

	for _, a := range s.Agents {
		before := a.Cash()
		a.TaxProfit(s.Options.TaxRate)
		stats.Taxes += before - a.Cash()
		stats.TotalCash += a.Cash()
		if a.IsBankrupt() {
			stats.Bankrupt++
		}
	}
	s.Treasury += stats.Taxes
	stats.Treasury = s.Treasury
	s.day = DayStats{}

	trades, most := s.House.Market().Summary()
	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick, s.Options.TicksPerDay),
		"population", stats.Population,
		"bankrupt", stats.Bankrupt,
		"fills", stats.Fills,
		"traded", fmt.Sprintf("%.1f", stats.Traded),
		"money", humanize.CommafWithDigits(stats.Money, 2),
		"total_cash", humanize.CommafWithDigits(stats.TotalCash, 2),
		"treasury", humanize.CommafWithDigits(stats.Treasury, 2),
		"last_tick_trades", trades,
		"most_traded", most,
	)
	if stats.Bankrupt > 0 {
		slog.Warn("agents below bankruptcy threshold", "count", stats.Bankrupt, "population", stats.Population)
	}

	if s.Journal != nil {
		if err := s.Journal.SaveDay(stats); err != nil {
			slog.Warn("journal day failed", "tick", tick, "error", err)
		}
	}
	if s.Recorder != nil {
		s.Recorder.ObserveDay(stats)
	}
	s.mu.Lock()
	s.snapshot.Status.Treasury = s.Treasury
	s.snapshot.Status.Bankrupt = stats.Bankrupt
	s.mu.Unlock()
	return stats
}

// TrendWindow is the number of ticks the published averages cover.
const TrendWindow = 24

// Snapshot is a read-only copy of the market for observers.
type Snapshot struct {
	Status Status                `json:"status"`
	Market []economy.MarketEntry `json:"market"`
	Trends []Trend               `json:"trends"`
	Agents []AgentView           `json:"agents"`
	Last   *market.Report        `json:"last_report,omitempty"`
}

// Trend is a commodity's recent averages over TrendWindow ticks.
type Trend struct {
	Commodity commodity.Kind `json:"commodity"`
	AvgPrice  float64        `json:"avg_price"`
	AvgVolume float64        `json:"avg_volume"`
	Pressure  float64        `json:"pressure"` // Demand over supply
}

// Status is the headline numbers of the market.
type Status struct {
	Tick       uint64         `json:"tick"`
	Time       string         `json:"time"`
	Population int            `json:"population"`
	TotalCash  float64        `json:"total_cash"`
	Treasury   float64        `json:"treasury"`
	Bankrupt   int            `json:"bankrupt"`
	TradeCount int            `json:"trade_count"`
	MostTraded commodity.Kind `json:"most_traded"`
}

// AgentView is one agent as seen from outside.
type AgentView struct {
	Index    int           `json:"index"`
	Name     string        `json:"name"`
	Role     agents.Role   `json:"role"`
	Cash     float64       `json:"cash"`
	Bankrupt bool          `json:"bankrupt"`
	Holdings []HoldingView `json:"holdings"`
}

// HoldingView is one stockpile entry with the agent's price beliefs.
type HoldingView struct {
	Commodity commodity.Kind `json:"commodity"`
	Quantity  float64        `json:"quantity"`
	MeanCost  float64        `json:"mean_cost"`
	MinBelief float64        `json:"min_belief"`
	MaxBelief float64        `json:"max_belief"`
}

func (s *Simulation) publish(rep *market.Report) {
	views := make([]AgentView, len(s.Agents))
	total, bankrupt := 0.0, 0
	for i, a := range s.Agents {
		v := AgentView{
			Index:    i,
			Name:     a.Name(),
			Role:     a.Role(),
			Cash:     a.Cash(),
			Bankrupt: a.IsBankrupt(),
		}
		for _, k := range a.Kinds() {
			st, err := a.Stock(k)
			if err != nil {
				continue
			}
			lo, hi := st.Beliefs()
			v.Holdings = append(v.Holdings, HoldingView{
				Commodity: k,
				Quantity:  st.Quantity(),
				MeanCost:  st.MeanCost(),
				MinBelief: lo,
				MaxBelief: hi,
			})
		}
		total += v.Cash
		if v.Bankrupt {
			bankrupt++
		}
		views[i] = v
	}
	ledger := s.House.Market()
	trades, most := ledger.Summary()
	var trends []Trend
	for _, k := range s.Registry.Kinds() {
		trends = append(trends, Trend{
			Commodity: k,
			AvgPrice:  ledger.AvgPrice(k, TrendWindow),
			AvgVolume: ledger.AvgVolume(k, TrendWindow),
			Pressure:  ledger.Pressure(k, TrendWindow),
		})
	}

	snap := Snapshot{
		Status: Status{
			Tick:       s.LastTick,
			Time:       SimTime(s.LastTick, s.Options.TicksPerDay),
			Population: len(s.Agents),
			TotalCash:  total,
			Treasury:   s.Treasury,
			Bankrupt:   bankrupt,
			TradeCount: trades,
			MostTraded: most,
		},
		Market: ledger.Snapshot(),
		Trends: trends,
		Agents: views,
		Last:   rep,
	}

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// Snapshot returns the state published after the last tick. Safe to call
// from other goroutines.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}
