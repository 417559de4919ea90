package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/yourorg/liquid-btc-yield/internal/circuitbreaker"
	"github.com/yourorg/liquid-btc-yield/internal/model"
)

// Metrics holds the Prometheus collectors for the API and the ledger.
// It implements ledger.Observer and jobs.GaugeSink.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     prometheus.Counter

	txRecorded *prometheus.CounterVec
	txSettled  *prometheus.CounterVec

	pending        prometheus.Gauge
	totalDeposited prometheus.Gauge
	totalEarned    prometheus.Gauge
	weightedAPY    prometheus.Gauge
	btcPrice       prometheus.Gauge
}

// NewMetrics registers all collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yield_http_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"route", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yield_http_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "yield_http_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
		txRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yield_transactions_recorded_total",
				Help: "Transactions recorded by kind",
			},
			[]string{"kind"},
		),
		txSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yield_transactions_settled_total",
				Help: "Transactions settled by kind and status",
			},
			[]string{"kind", "status"},
		),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yield_transactions_pending",
			Help: "Transactions awaiting confirmation",
		}),
		totalDeposited: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yield_total_deposited_usdc",
			Help: "Sum of deposited USDC across positions",
		}),
		totalEarned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yield_total_earned_usdc",
			Help: "Unclaimed yield across positions",
		}),
		weightedAPY: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yield_weighted_apy",
			Help: "Deposit weighted APY as a fraction",
		}),
		btcPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yield_btc_usd_price",
			Help: "Last BTC/USD reference price",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.requestDuration,
		m.rateLimited,
		m.txRecorded,
		m.txSettled,
		m.pending,
		m.totalDeposited,
		m.totalEarned,
		m.weightedAPY,
		m.btcPrice,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WatchBreaker exports the breaker state (0=closed, 1=open, 2=half-open)
func (m *Metrics) WatchBreaker(cb *circuitbreaker.CircuitBreaker) {
	if cb == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "yield_bridge_circuit_state",
			Help: "Bridge circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		func() float64 { return float64(cb.GetState()) },
	))
}

// TransactionRecorded implements ledger.Observer
func (m *Metrics) TransactionRecorded(tx model.Transaction) {
	m.txRecorded.WithLabelValues(string(tx.Kind)).Inc()
	m.pending.Inc()
}

// TransactionSettled implements ledger.Observer
func (m *Metrics) TransactionSettled(tx model.Transaction) {
	m.txSettled.WithLabelValues(string(tx.Kind), string(tx.Status)).Inc()
	m.pending.Dec()
}

// ObserveDashboard implements jobs.GaugeSink
func (m *Metrics) ObserveDashboard(view model.DashboardView, pending int) {
	m.pending.Set(float64(pending))
	m.totalDeposited.Set(parseFloat(view.TotalDeposited))
	m.totalEarned.Set(parseFloat(view.TotalYieldEarned))
	m.weightedAPY.Set(view.WeightedAPY.InexactFloat64())
}

// ObservePrice records the reference price
func (m *Metrics) ObservePrice(p decimal.Decimal) {
	m.btcPrice.Set(p.InexactFloat64())
}

func (m *Metrics) observeRequest(route, method string, status int, seconds float64) {
	m.requestCounter.WithLabelValues(route, method, http.StatusText(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(seconds)
}

func parseFloat(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}
