// Package metrics holds the Prometheus collectors served at /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3guy0/lpbot/internal/monitor"
)

const namespace = "lpbot"

type Metrics struct {
	registry *prometheus.Registry

	snapshots   *prometheus.CounterVec
	currentTick prometheus.Gauge
	tickLower   prometheus.Gauge
	tickUpper   prometheus.Gauge
	outOfRange  prometheus.Gauge
	netValue    prometheus.Gauge
	pnl         prometheus.Gauge
	fees        prometheus.Gauge

	gasPrice    prometheus.Gauge
	gasSkips    prometheus.Counter
	actions     *prometheus.CounterVec
	actionTime  *prometheus.HistogramVec
	perpPending prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "snapshots_total", Help: "Snapshots taken, by trigger.",
		}, []string{"trigger"}),
		currentTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_tick", Help: "Current pool tick.",
		}),
		tickLower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "position_tick_lower", Help: "Lower tick of the monitored position.",
		}),
		tickUpper: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "position_tick_upper", Help: "Upper tick of the monitored position.",
		}),
		outOfRange: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "position_out_of_range", Help: "1 while the position is out of range.",
		}),
		netValue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "position_net_value_token1", Help: "Position value in token1.",
		}),
		pnl: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "position_pnl_token1", Help: "Unrealized PnL in token1.",
		}),
		fees: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "position_fees_token1", Help: "Uncollected fees in token1.",
		}),
		gasPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "gas_price_gwei", Help: "Last observed gas price.",
		}),
		gasSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rebalance_gas_skips_total", Help: "Rebalances skipped over the gas ceiling.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "actions_total", Help: "Position actions, by kind and result.",
		}, []string{"kind", "result"}),
		actionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "action_duration_seconds", Help: "Position action duration.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		perpPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "perp_positions", Help: "Open positions reported by the perp account stream.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.snapshots, m.currentTick, m.tickLower, m.tickUpper, m.outOfRange,
		m.netValue, m.pnl, m.fees, m.gasPrice, m.gasSkips, m.actions, m.actionTime, m.perpPending,
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveSnapshot(s monitor.Snapshot) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(s.Trigger).Inc()
	m.currentTick.Set(float64(s.CurrentTick))
	m.tickLower.Set(float64(s.TickLower))
	m.tickUpper.Set(float64(s.TickUpper))
	if s.OutOfRange {
		m.outOfRange.Set(1)
	} else {
		m.outOfRange.Set(0)
	}
	m.netValue.Set(s.NetValueIn1.InexactFloat64())
	m.pnl.Set(s.PnL.InexactFloat64())
	m.fees.Set(s.FeeTotalIn1.InexactFloat64())
}

func (m *Metrics) SetGasPrice(gwei float64) {
	if m == nil {
		return
	}
	m.gasPrice.Set(gwei)
}

func (m *Metrics) GasSkipped() {
	if m == nil {
		return
	}
	m.gasSkips.Inc()
}

// ActionDone records one close/rebalance/mint run.
func (m *Metrics) ActionDone(kind string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.actions.WithLabelValues(kind, result).Inc()
	m.actionTime.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) SetPerpPositions(n int) {
	if m == nil {
		return
	}
	m.perpPending.Set(float64(n))
}
