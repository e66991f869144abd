package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dexArb/internal/model"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	SwapEvents    *prometheus.CounterVec
	Decisions     *prometheus.CounterVec
	CycleSeconds  prometheus.Histogram
	Subscriptions prometheus.Gauge
	BestProfit    prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SwapEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_swap_events_total",
			Help: "Swap events applied to the price state, by venue",
		}, []string{"venue"}),

		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_decisions_total",
			Help: "Decision cycles by outcome",
		}, []string{"outcome"}),

		CycleSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "arb_cycle_seconds",
			Help:    "Duration of a decision cycle from scan to outcome",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),

		Subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arb_subscriptions_active",
			Help: "Open swap log subscriptions",
		}),

		BestProfit: factory.NewGauge(prometheus.GaugeOpts{
			Name: "arb_best_profit_ratio",
			Help: "Best net profit ratio found by the latest scan",
		}),
	}
}

func (m *Metrics) RecordSwap(venue model.Venue) {
	if m == nil {
		return
	}
	m.SwapEvents.WithLabelValues(string(venue)).Inc()
}

func (m *Metrics) RecordDecision(outcome model.Outcome) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.CycleSeconds.Observe(d.Seconds())
}

func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.Subscriptions.Inc()
}

func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.Subscriptions.Dec()
}

func (m *Metrics) RecordBestProfit(ratio float64) {
	if m == nil {
		return
	}
	m.BestProfit.Set(ratio)
}
