// Package metrics exposes run counters through Prometheus.
//
// Counters live on a private registry owned by the Metrics value, so
// parallel runs and tests never collide on registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/raftroch1/0dte-sub001/pkg/types"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	daysProcessed      prometheus.Counter
	daysSkipped        prometheus.Counter
	positionsOpened    *prometheus.CounterVec
	positionsClosed    *prometheus.CounterVec
	candidatesRejected *prometheus.CounterVec
	realizedPnL        prometheus.Gauge
	openPositions      prometheus.Gauge
}

// New creates a Metrics value with its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		daysProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: "engine",
			Name:      "days_processed_total",
			Help:      "Trading days simulated",
		}),
		daysSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: "engine",
			Name:      "days_skipped_total",
			Help:      "Trading days skipped for missing or unusable data",
		}),
		positionsOpened: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: "engine",
			Name:      "positions_opened_total",
			Help:      "Positions opened by strategy family",
		}, []string{"family"}),
		positionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: "engine",
			Name:      "positions_closed_total",
			Help:      "Positions closed by exit reason",
		}, []string{"reason"}),
		candidatesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backtest",
			Subsystem: "risk",
			Name:      "candidates_rejected_total",
			Help:      "Candidates rejected by gate check",
		}, []string{"check"}),
		realizedPnL: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "backtest",
			Subsystem: "engine",
			Name:      "realized_pnl_dollars",
			Help:      "Cumulative realized P&L in dollars",
		}),
		openPositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "backtest",
			Subsystem: "engine",
			Name:      "open_positions",
			Help:      "Currently open positions",
		}),
	}
}

// Registry returns the private registry, for exposition or test scrapes.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// DayProcessed records a fully simulated trading day.
func (m *Metrics) DayProcessed() { m.daysProcessed.Inc() }

// DaySkipped records a day skipped for unusable data.
func (m *Metrics) DaySkipped() { m.daysSkipped.Inc() }

// PositionOpened records an open by family.
func (m *Metrics) PositionOpened(family types.StrategyFamily) {
	m.positionsOpened.WithLabelValues(string(family)).Inc()
	m.openPositions.Inc()
}

// PositionClosed records a close by exit reason and the realized P&L.
func (m *Metrics) PositionClosed(reason types.ExitReason, realizedPnL float64) {
	m.positionsClosed.WithLabelValues(string(reason)).Inc()
	m.openPositions.Dec()
	m.realizedPnL.Add(realizedPnL)
}

// CandidateRejected records a gate rejection by check name.
func (m *Metrics) CandidateRejected(check string) {
	m.candidatesRejected.WithLabelValues(check).Inc()
}
