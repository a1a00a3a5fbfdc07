// Package metrics 定义回放引擎导出的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 汇总回放相关的 Prometheus 指标。
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: status
	SnapshotsTotal  prometheus.Counter
	DecisionsTotal  *prometheus.CounterVec // labels: decision
	FillsTotal      prometheus.Counter
	RunDuration     prometheus.Histogram
	ProgressPercent prometheus.Gauge
	NetProfit       prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics 创建并注册全部指标，reg 为空时使用独立的 Registry。
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booktrader_runs_total",
			Help: "Backtest runs by final status",
		}, []string{"status"}),
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booktrader_snapshots_processed_total",
			Help: "Snapshots replayed across all runs",
		}),
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booktrader_decisions_total",
			Help: "Strategy decisions by kind",
		}, []string{"decision"}),
		FillsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booktrader_fills_total",
			Help: "Simulated fills",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "booktrader_run_duration_seconds",
			Help:    "Wall-clock duration of a replay",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		ProgressPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "booktrader_progress_percent",
			Help: "Progress of the current replay",
		}),
		NetProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "booktrader_net_profit",
			Help: "Net profit of the last completed run",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RunsTotal,
		m.SnapshotsTotal,
		m.DecisionsTotal,
		m.FillsTotal,
		m.RunDuration,
		m.ProgressPercent,
		m.NetProfit,
	)
	return m
}

// ObserveRun 记录一次回放的结果。
func (m *Metrics) ObserveRun(status string, processed int, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.SnapshotsTotal.Add(float64(processed))
	m.RunDuration.Observe(duration.Seconds())
}

// Handler 返回 /metrics 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
