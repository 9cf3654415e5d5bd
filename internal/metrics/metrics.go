package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/engine"
)

// Recorder holds the agent's collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	CyclesTotal     prometheus.Counter
	CycleDuration   prometheus.Histogram
	TradesTotal     *prometheus.CounterVec
	AssetErrors     *prometheus.CounterVec
	WarningsTotal   prometheus.Counter
	CancelledCycles prometheus.Counter
}

func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}
	r.CyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agent_cycles_total",
		Help: "Trading cycles completed",
	})
	r.CycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_cycle_duration_seconds",
		Help:    "Wall time of one trading cycle",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})
	r.TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_trades_total", Help: "Position transitions executed"},
		[]string{"symbol", "action"},
	)
	r.AssetErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "agent_asset_errors_total", Help: "Per-asset cycle failures"},
		[]string{"symbol", "stage"},
	)
	r.WarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agent_cycle_warnings_total",
		Help: "Degraded inputs reported by cycles",
	})
	r.CancelledCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agent_cycles_cancelled_total",
		Help: "Cycles stopped before every asset ran",
	})
	r.registry.MustRegister(r.CyclesTotal, r.CycleDuration, r.TradesTotal, r.AssetErrors, r.WarningsTotal, r.CancelledCycles)
	return r
}

// RegisterEquity exports fn as the agent_equity_usd gauge, sampled on scrape.
func (r *Recorder) RegisterEquity(fn func() float64) {
	r.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: "agent_equity_usd", Help: "Paper account equity at last marks"},
		fn,
	))
}

// ObserveCycle records the outcome of one cycle.
func (r *Recorder) ObserveCycle(result engine.CycleResult, took time.Duration) {
	r.CyclesTotal.Inc()
	r.CycleDuration.Observe(took.Seconds())
	if result.Cancelled {
		r.CancelledCycles.Inc()
	}
	r.WarningsTotal.Add(float64(len(result.Warnings)))
	for _, d := range result.Decisions {
		if d.Action == domain.ActionNone {
			continue
		}
		r.TradesTotal.WithLabelValues(d.Symbol, string(d.Action)).Inc()
	}
	for _, err := range result.Errors {
		symbol, stage := "unknown", "unknown"
		var assetErr *domain.AssetError
		if errors.As(err, &assetErr) {
			symbol, stage = assetErr.Symbol, assetErr.Stage
		}
		r.AssetErrors.WithLabelValues(symbol, stage).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
