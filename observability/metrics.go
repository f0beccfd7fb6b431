package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetrics captures the operational counters for the stableswap pool:
// operation volume and latency, plus rejections segmented by the guard that
// fired.
type PoolMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rejections *prometheus.CounterVec
	reserves   *prometheus.GaugeVec
	lpSupply   prometheus.Gauge
}

// RPCMetrics records JSON-RPC handler activity.
type RPCMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	poolMetricsOnce sync.Once
	poolRegistry    *PoolMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// Pool returns the lazily-initialised pool metrics registry.
func Pool() *PoolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegpool",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Count of pool operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "pegpool",
				Subsystem: "pool",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for pool operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegpool",
				Subsystem: "pool",
				Name:      "rejections_total",
				Help:      "Count of pool operations rejected, segmented by operation and guard.",
			}, []string{"operation", "reason"}),
			reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "pegpool",
				Subsystem: "pool",
				Name:      "reserve_units",
				Help:      "Tradable reserve per asset in raw base units.",
			}, []string{"asset"}),
			lpSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "pegpool",
				Subsystem: "pool",
				Name:      "lp_supply_units",
				Help:      "Outstanding LP shares in raw base units.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.operations,
			poolRegistry.latency,
			poolRegistry.rejections,
			poolRegistry.reserves,
			poolRegistry.lpSupply,
		)
	})
	return poolRegistry
}

// Observe records a completed pool operation.
func (m *PoolMetrics) Observe(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRejection increments the rejection counter. Reasons should be stable
// strings such as "slippage", "price_deviation", "paused", or "oracle" so
// dashboards and alerts remain consistent.
func (m *PoolMetrics) RecordRejection(operation, reason string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.rejections.WithLabelValues(operation, reason).Inc()
}

// SetReserve publishes the current tradable reserve of an asset. The value is
// scaled down to float; the gauge is a trend signal, not an accounting source.
func (m *PoolMetrics) SetReserve(asset string, units float64) {
	if m == nil || asset == "" {
		return
	}
	m.reserves.WithLabelValues(asset).Set(units)
}

// SetLPSupply publishes the outstanding share count.
func (m *PoolMetrics) SetLPSupply(units float64) {
	if m == nil {
		return
	}
	m.lpSupply.Set(units)
}

// RPC returns the lazily-initialised JSON-RPC metrics registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegpool",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegpool",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and status code.",
			}, []string{"method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "pegpool",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.errors, rpcRegistry.latency)
	})
	return rpcRegistry
}

// Observe records the outcome of a JSON-RPC request. The status code should
// be the HTTP status ultimately written to the response.
func (m *RPCMetrics) Observe(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}
