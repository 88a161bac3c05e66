package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Perp Market Metrics Collector
// Provides metrics for monitoring the deferred execution queue and crank

var (
	// Singleton collector
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all perp market metrics
type Collector struct {
	// Deferred execution queue metrics
	QueueDepth        prometheus.Gauge
	ItemsEnqueued     *prometheus.CounterVec
	ItemsExecuted     *prometheus.CounterVec
	ItemsFailed       *prometheus.CounterVec
	QueueWaitTime     prometheus.Histogram
	SurchargeCharged  prometheus.Counter
	CongestionRejects *prometheus.CounterVec

	// Crank metrics
	CrankWorkTotal    *prometheus.CounterVec
	CrankBatchLatency prometheus.Histogram
	CrankBatchSize    prometheus.Histogram
	CrankRewardsPaid  prometheus.Counter

	// Price metrics
	OraclePrice    *prometheus.GaugeVec
	PriceStaleness prometheus.Gauge
	PricesAppended prometheus.Counter

	// Position metrics
	PositionsOpen     *prometheus.GaugeVec
	LiquidationsTotal *prometheus.CounterVec
	LimitOrdersOpen   prometheus.Gauge

	// Liquidity pool metrics
	PoolLiquidity prometheus.Gauge
	PoolLocked    prometheus.Gauge

	// WebSocket metrics
	WSConnectionsActive prometheus.Gauge
	WSMessagesTotal     *prometheus.CounterVec

	// API metrics
	APIRequestsTotal  *prometheus.CounterVec
	APIRequestLatency *prometheus.HistogramVec
	RateLimitHits     *prometheus.CounterVec
}

// GetCollector returns the singleton metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

// newCollector creates a new metrics collector
func newCollector() *Collector {
	c := &Collector{}

	// Deferred execution queue metrics
	c.QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perpmarket",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of pending deferred execution items",
		},
	)

	c.ItemsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Total deferred execution items enqueued",
		},
		[]string{"variant"},
	)

	c.ItemsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "queue",
			Name:      "executed_total",
			Help:      "Total deferred execution items applied successfully",
		},
		[]string{"variant"},
	)

	c.ItemsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "queue",
			Name:      "failed_total",
			Help:      "Total deferred execution items that failed validation at execution",
		},
		[]string{"variant", "reason"},
	)

	c.QueueWaitTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "perpmarket",
			Subsystem: "queue",
			Name:      "wait_seconds",
			Help:      "Time between enqueue and execution of a deferred item",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 300},
		},
	)

	c.SurchargeCharged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "queue",
			Name:      "surcharge_usd_total",
			Help:      "Total congestion surcharge collected in USD",
		},
	)

	c.CongestionRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "queue",
			Name:      "congestion_rejects_total",
			Help:      "Total enqueue attempts rejected at the queue ceiling",
		},
		[]string{"reason"},
	)

	// Crank metrics
	c.CrankWorkTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "crank",
			Name:      "work_total",
			Help:      "Total crank work items processed by kind",
		},
		[]string{"kind"},
	)

	c.CrankBatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "perpmarket",
			Subsystem: "crank",
			Name:      "batch_latency_ms",
			Help:      "Crank batch processing latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	c.CrankBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "perpmarket",
			Subsystem: "crank",
			Name:      "batch_size",
			Help:      "Work items processed per crank batch",
			Buckets:   []float64{1, 2, 5, 7, 10, 20, 50},
		},
	)

	c.CrankRewardsPaid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "crank",
			Name:      "rewards_paid_total",
			Help:      "Total crank rewards paid out in collateral",
		},
	)

	// Price metrics
	c.OraclePrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "perpmarket",
			Subsystem: "price",
			Name:      "latest",
			Help:      "Latest oracle price",
		},
		[]string{"price_type"},
	)

	c.PriceStaleness = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perpmarket",
			Subsystem: "price",
			Name:      "staleness_seconds",
			Help:      "Age of the latest price point in seconds",
		},
	)

	c.PricesAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "price",
			Name:      "appended_total",
			Help:      "Total price points appended",
		},
	)

	// Position metrics
	c.PositionsOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "perpmarket",
			Subsystem: "positions",
			Name:      "open",
			Help:      "Number of open positions",
		},
		[]string{"direction"},
	)

	c.LiquidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "positions",
			Name:      "liquidations_total",
			Help:      "Total positions closed by trigger, by reason",
		},
		[]string{"reason"},
	)

	c.LimitOrdersOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perpmarket",
			Subsystem: "orders",
			Name:      "open",
			Help:      "Number of open limit orders",
		},
	)

	// Liquidity pool metrics
	c.PoolLiquidity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perpmarket",
			Subsystem: "pool",
			Name:      "liquidity",
			Help:      "Total pool liquidity in collateral",
		},
	)

	c.PoolLocked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perpmarket",
			Subsystem: "pool",
			Name:      "locked",
			Help:      "Pool liquidity locked as counter collateral",
		},
	)

	// WebSocket metrics
	c.WSConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "perpmarket",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active WebSocket connections",
		},
	)

	c.WSMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total WebSocket messages sent",
		},
		[]string{"channel"},
	)

	// API metrics
	c.APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests",
		},
		[]string{"method", "path", "status"},
	)

	c.APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "perpmarket",
			Subsystem: "api",
			Name:      "request_latency_ms",
			Help:      "API request latency in milliseconds",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"method", "path"},
	)

	c.RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perpmarket",
			Subsystem: "api",
			Name:      "rate_limit_hits",
			Help:      "Total rate limit hits",
		},
		[]string{"limit_type"},
	)

	c.registerAll()

	return c
}

// registerAll registers all metrics with Prometheus
func (c *Collector) registerAll() {
	prometheus.MustRegister(c.QueueDepth)
	prometheus.MustRegister(c.ItemsEnqueued)
	prometheus.MustRegister(c.ItemsExecuted)
	prometheus.MustRegister(c.ItemsFailed)
	prometheus.MustRegister(c.QueueWaitTime)
	prometheus.MustRegister(c.SurchargeCharged)
	prometheus.MustRegister(c.CongestionRejects)

	prometheus.MustRegister(c.CrankWorkTotal)
	prometheus.MustRegister(c.CrankBatchLatency)
	prometheus.MustRegister(c.CrankBatchSize)
	prometheus.MustRegister(c.CrankRewardsPaid)

	prometheus.MustRegister(c.OraclePrice)
	prometheus.MustRegister(c.PriceStaleness)
	prometheus.MustRegister(c.PricesAppended)

	prometheus.MustRegister(c.PositionsOpen)
	prometheus.MustRegister(c.LiquidationsTotal)
	prometheus.MustRegister(c.LimitOrdersOpen)

	prometheus.MustRegister(c.PoolLiquidity)
	prometheus.MustRegister(c.PoolLocked)

	prometheus.MustRegister(c.WSConnectionsActive)
	prometheus.MustRegister(c.WSMessagesTotal)

	prometheus.MustRegister(c.APIRequestsTotal)
	prometheus.MustRegister(c.APIRequestLatency)
	prometheus.MustRegister(c.RateLimitHits)
}

// ============ Recording Helpers ============

// RecordEnqueue records a deferred execution item entering the queue
func (c *Collector) RecordEnqueue(variant string, queueDepth int, surchargeUsd float64) {
	c.ItemsEnqueued.WithLabelValues(variant).Inc()
	c.QueueDepth.Set(float64(queueDepth))
	if surchargeUsd > 0 {
		c.SurchargeCharged.Add(surchargeUsd)
	}
}

// RecordExecution records the outcome of a deferred execution attempt
func (c *Collector) RecordExecution(variant string, success bool, reason string, waitSeconds float64) {
	if success {
		c.ItemsExecuted.WithLabelValues(variant).Inc()
	} else {
		c.ItemsFailed.WithLabelValues(variant, reason).Inc()
	}
	c.QueueWaitTime.Observe(waitSeconds)
}

// RecordCongestionReject records an enqueue bounced off the queue ceiling
func (c *Collector) RecordCongestionReject(reason string) {
	c.CongestionRejects.WithLabelValues(reason).Inc()
}

// RecordCrankBatch records a completed crank batch
func (c *Collector) RecordCrankBatch(kinds []string, latencyMs float64) {
	for _, kind := range kinds {
		c.CrankWorkTotal.WithLabelValues(kind).Inc()
	}
	c.CrankBatchLatency.Observe(latencyMs)
	c.CrankBatchSize.Observe(float64(len(kinds)))
}

// RecordPrice records a newly appended price point
func (c *Collector) RecordPrice(priceBase, priceUsd float64) {
	c.OraclePrice.WithLabelValues("base").Set(priceBase)
	c.OraclePrice.WithLabelValues("usd").Set(priceUsd)
	c.PricesAppended.Inc()
	c.PriceStaleness.Set(0)
}

// RecordLiquidation records a triggered position close
func (c *Collector) RecordLiquidation(reason string) {
	c.LiquidationsTotal.WithLabelValues(reason).Inc()
}

// UpdatePoolMetrics updates the liquidity pool gauges
func (c *Collector) UpdatePoolMetrics(total, locked float64) {
	c.PoolLiquidity.Set(total)
	c.PoolLocked.Set(locked)
}

// RecordAPIRequest records an API request
func (c *Collector) RecordAPIRequest(method, path, status string, latencyMs float64) {
	c.APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.APIRequestLatency.WithLabelValues(method, path).Observe(latencyMs)
}

// RecordWSConnection records WebSocket connection changes
func (c *Collector) RecordWSConnection(delta int) {
	c.WSConnectionsActive.Add(float64(delta))
}

// RecordWSMessage records a WebSocket message
func (c *Collector) RecordWSMessage(channel string) {
	c.WSMessagesTotal.WithLabelValues(channel).Inc()
}

// ============ HTTP Handler ============

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring latency
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedMs returns the elapsed time in milliseconds
func (t *Timer) ElapsedMs() float64 {
	return float64(time.Since(t.start).Microseconds()) / 1000.0
}
