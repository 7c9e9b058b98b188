package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultAlpha is the EMA smoothing factor for the running latency average.
const defaultAlpha = 0.1

var (
	requestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatewayd",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total requests received by the gateway",
		},
	)

	cacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewayd",
			Subsystem: "gateway",
			Name:      "cache_events_total",
			Help:      "Cache lookups by result",
		},
		[]string{"result"},
	)

	batchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gatewayd",
			Subsystem: "gateway",
			Name:      "batched_requests_total",
			Help:      "Requests dispatched through the coalescer",
		},
	)

	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatewayd",
			Subsystem: "gateway",
			Name:      "completions_total",
			Help:      "Completed backend calls by outcome",
		},
		[]string{"outcome"},
	)

	completionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gatewayd",
			Subsystem: "gateway",
			Name:      "completion_latency_seconds",
			Help:      "Backend completion latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, cacheEventsTotal, batchedTotal, completionsTotal, completionLatency)
}

// Stats is a point-in-time view of the collector. It may lag in-flight
// requests; callers must not expect strict consistency with the live
// counters.
type Stats struct {
	TotalRequests   uint64
	CacheHits       uint64
	CacheMisses     uint64
	BatchedRequests uint64
	Completions     uint64
	Failures        uint64
	AvgLatency      time.Duration
	ErrorRate       float64
}

// Collector accumulates process-wide gateway counters and running averages.
// Counters are monotonic for the process lifetime and are never reset.
type Collector struct {
	mu sync.Mutex

	totalRequests   uint64
	cacheHits       uint64
	cacheMisses     uint64
	batchedRequests uint64
	completions     uint64
	failures        uint64

	avgLatency float64 // seconds, EMA
	errorRate  float64 // incremental mean of failure observations

	alpha float64
}

// NewCollector returns a Collector using the default EMA smoothing factor.
func NewCollector() *Collector {
	return &Collector{alpha: defaultAlpha}
}

// RecordRequest counts one incoming request, regardless of outcome.
func (c *Collector) RecordRequest() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
	requestsTotal.Inc()
}

// RecordCacheEvent counts one cache lookup.
func (c *Collector) RecordCacheEvent(hit bool) {
	c.mu.Lock()
	if hit {
		c.cacheHits++
	} else {
		c.cacheMisses++
	}
	c.mu.Unlock()
	if hit {
		cacheEventsTotal.WithLabelValues("hit").Inc()
	} else {
		cacheEventsTotal.WithLabelValues("miss").Inc()
	}
}

// RecordBatched counts one request dispatched through the coalescer.
func (c *Collector) RecordBatched() {
	c.mu.Lock()
	c.batchedRequests++
	c.mu.Unlock()
	batchedTotal.Inc()
}

// RecordCompletion folds one finished backend call into the running
// averages. The latency average is an EMA seeded by the first sample; the
// error rate is an incremental mean updated before the observation count,
// so the result equals failures/total independent of arrival order.
func (c *Collector) RecordCompletion(latency time.Duration, success bool) {
	sec := latency.Seconds()
	c.mu.Lock()
	if c.completions == 0 {
		c.avgLatency = sec
	} else {
		c.avgLatency = c.alpha*sec + (1-c.alpha)*c.avgLatency
	}
	var obs float64
	if !success {
		obs = 1
		c.failures++
	}
	c.errorRate += (obs - c.errorRate) / float64(c.completions+1)
	c.completions++
	c.mu.Unlock()

	completionLatency.Observe(sec)
	if success {
		completionsTotal.WithLabelValues("success").Inc()
	} else {
		completionsTotal.WithLabelValues("failure").Inc()
	}
}

// TotalCompletions reports how many backend calls have finished.
func (c *Collector) TotalCompletions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completions
}

// Snapshot returns a possibly-stale copy of the counters. It never waits
// for in-flight requests to settle.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TotalRequests:   c.totalRequests,
		CacheHits:       c.cacheHits,
		CacheMisses:     c.cacheMisses,
		BatchedRequests: c.batchedRequests,
		Completions:     c.completions,
		Failures:        c.failures,
		AvgLatency:      time.Duration(c.avgLatency * float64(time.Second)),
		ErrorRate:       c.errorRate,
	}
}
