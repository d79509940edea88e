// Package metrics registers and serves Prometheus metrics for the bot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading bot.
type Metrics struct {
	HTTPTries     *prometheus.CounterVec // labels: endpoint
	HTTPFailures  *prometheus.CounterVec // labels: endpoint
	LimiterWaitNs *prometheus.CounterVec // labels: endpoint

	CandlesMerged  prometheus.Counter
	BackfillRows   prometheus.Counter
	EventsEmitted  *prometheus.CounterVec // labels: event
	SignalsTotal   *prometheus.CounterVec // labels: setup, kind
	OrdersPlaced   prometheus.Counter
	OrdersRejected prometheus.Counter

	IndicatorComputeDur prometheus.Histogram
	SignalComputeDur    prometheus.Histogram
}

// New registers and returns all metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPTries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_http_tries_total",
			Help: "HTTP attempts issued, by endpoint",
		}, []string{"endpoint"}),
		HTTPFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_http_failures_total",
			Help: "HTTP calls that exhausted their retry budget, by endpoint",
		}, []string{"endpoint"}),
		LimiterWaitNs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_limiter_wait_ns_total",
			Help: "Nanoseconds spent blocked in the rate limiter, by endpoint",
		}, []string{"endpoint"}),
		CandlesMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_candles_merged_total",
			Help: "Candle rows merged into the rolling store",
		}),
		BackfillRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_backfill_rows_total",
			Help: "Candle rows fetched during backfill",
		}),
		EventsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_events_emitted_total",
			Help: "Bus emissions, by event",
		}, []string{"event"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trader_signals_total",
			Help: "Signals detected, by setup and kind",
		}, []string{"setup", "kind"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_orders_placed_total",
			Help: "Orders accepted by the exchange",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trader_orders_rejected_total",
			Help: "Orders rejected by the exchange",
		}),
		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_indicator_compute_duration_seconds",
			Help:    "Indicator supervisor compute latency per batch",
			Buckets: prometheus.DefBuckets,
		}),
		SignalComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trader_signal_compute_duration_seconds",
			Help:    "Signal supervisor compute latency per batch",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.HTTPTries,
		m.HTTPFailures,
		m.LimiterWaitNs,
		m.CandlesMerged,
		m.BackfillRows,
		m.EventsEmitted,
		m.SignalsTotal,
		m.OrdersPlaced,
		m.OrdersRejected,
		m.IndicatorComputeDur,
		m.SignalComputeDur,
	)
	return m
}

// Serve exposes /metrics on addr. Blocks; run in its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
