// Package metrics exposes market activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/harvest-market/internal/engine"
	"github.com/talgya/harvest-market/internal/market"
)

const namespace = "harvest_market"

// Market holds the collectors for one market house on its own registry.
type Market struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	tickDuration prometheus.Histogram
	fills        *prometheus.CounterVec
	traded       *prometheus.CounterVec
	money        *prometheus.CounterVec
	unmatched    *prometheus.CounterVec
	price        *prometheus.GaugeVec
	bidQuantity  *prometheus.GaugeVec
	askQuantity  *prometheus.GaugeVec
	bankrupt     prometheus.Gauge
	totalCash    prometheus.Gauge
	treasury     prometheus.Gauge
}

// New creates and registers the market collectors.
func New() *Market {
	m := &Market{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Market resolutions completed.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent collecting and clearing one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fills_total",
			Help:      "Matched bid/ask pairs.",
		}, []string{"commodity"}),
		traded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_units_total",
			Help:      "Units exchanged.",
		}, []string{"commodity"}),
		money: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "money_total",
			Help:      "Cash exchanged for goods.",
		}, []string{"commodity"}),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_orders_total",
			Help:      "Orders left on the book when matching stopped.",
		}, []string{"commodity"}),
		price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clearing_price",
			Help:      "Average clearing price of the last tick with trades.",
		}, []string{"commodity"}),
		bidQuantity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bid_units",
			Help:      "Units bid in the last tick.",
		}, []string{"commodity"}),
		askQuantity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ask_units",
			Help:      "Units asked in the last tick.",
		}, []string{"commodity"}),
		bankrupt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bankrupt_agents",
			Help:      "Agents below the bankruptcy threshold at the last day end.",
		}),
		totalCash: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "agent_cash",
			Help:      "Cash held by all agents at the last day end.",
		}),
		treasury: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "treasury",
			Help:      "Taxes collected since start.",
		}),
	}

	m.registry.MustRegister(
		m.ticks, m.tickDuration,
		m.fills, m.traded, m.money, m.unmatched,
		m.price, m.bidQuantity, m.askQuantity,
		m.bankrupt, m.totalCash, m.treasury,
	)
	return m
}

// ObserveReport records one tick's clearing.
func (m *Market) ObserveReport(rep market.Report, elapsed time.Duration) {
	m.ticks.Inc()
	m.tickDuration.Observe(elapsed.Seconds())
	for _, c := range rep.Commodities {
		name := c.Commodity.String()
		m.fills.WithLabelValues(name).Add(float64(c.Fills))
		m.traded.WithLabelValues(name).Add(c.Traded)
		m.money.WithLabelValues(name).Add(c.Money)
		m.unmatched.WithLabelValues(name).Add(float64(c.Unmatched))
		m.bidQuantity.WithLabelValues(name).Set(c.BidQuantity)
		m.askQuantity.WithLabelValues(name).Set(c.AskQuantity)
		if c.Traded > 0 {
			m.price.WithLabelValues(name).Set(c.AvgPrice)
		}
	}
}

// ObserveDay records the end-of-day summary.
func (m *Market) ObserveDay(stats engine.DayStats) {
	m.bankrupt.Set(float64(stats.Bankrupt))
	m.totalCash.Set(stats.TotalCash)
	m.treasury.Set(stats.Treasury)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Market) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Market) Registry() *prometheus.Registry {
	return m.registry
}
