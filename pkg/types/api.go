package types

// GatewayMetadata is attached to every successful proxied response under
// the "gatewayMetadata" key.
type GatewayMetadata struct {
	// Unique id assigned to this request, also present on error payloads.
	// example: 6a1f0a2e-8f5d-4c57-9b4e-2f0f0f6f4e21
	RequestID string `json:"requestId" example:"6a1f0a2e-8f5d-4c57-9b4e-2f0f0f6f4e21"`
	// Model that actually served the request (after any routing override).
	// example: coder-large
	ModelUsed string `json:"modelUsed" example:"coder-large"`
	// Wall-clock time spent handling the request, in seconds.
	// example: 0.42
	ExecutionTimeSeconds float64 `json:"executionTimeSeconds" example:"0.42"`
	// True when the response was served from the cache without touching the backend.
	// example: false
	CacheHit bool `json:"cacheHit" example:"false"`
	// Names of the optimizations applied to this request (e.g. cache, routing, batching).
	// example: ["model_routing","batching"]
	OptimizationsApplied []string `json:"optimizationsApplied"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Human-readable error message.
	// example: backend call timed out
	Error string `json:"error" example:"backend call timed out"`
	// Stable machine-readable classification.
	// example: timeout
	Classification string `json:"classification,omitempty" example:"timeout"`
	// HTTP status code.
	// example: 504
	Code int `json:"code" example:"504"`
	// Request id for cross-referencing against metrics and logs.
	RequestID string `json:"requestId,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Overall gateway status: healthy or degraded.
	// example: healthy
	Status string `json:"status" example:"healthy"`
	// Whether the inference backend answered the reachability probe.
	// example: true
	BackendReachable bool `json:"backendReachable" example:"true"`
	// Number of models known to the router.
	// example: 3
	ModelCount int `json:"modelCount" example:"3"`
	// Uptime of the gateway process in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptimeSeconds" example:"3600"`
	// Summarized request metrics.
	Metrics StatsResponse `json:"metrics"`
}

// StatsResponse is the process-wide metrics snapshot for GET /stats.
type StatsResponse struct {
	// Total requests received, including client errors and cache hits.
	// example: 1042
	TotalRequests uint64 `json:"totalRequests" example:"1042"`
	// Requests answered from the cache.
	// example: 230
	CacheHits uint64 `json:"cacheHits" example:"230"`
	// Requests that went through the coalescer.
	// example: 180
	BatchedRequests uint64 `json:"batchedRequests" example:"180"`
	// Completed requests that failed.
	// example: 12
	Failures uint64 `json:"failures" example:"12"`
	// Exponential moving average of backend latency in seconds.
	// example: 0.38
	AvgLatencySeconds float64 `json:"avgLatencySeconds" example:"0.38"`
	// Failures over completed requests, order-independent.
	// example: 0.014
	ErrorRate float64 `json:"errorRate" example:"0.014"`
}

// ModelPerf summarizes one model's observed performance for GET /performance.
type ModelPerf struct {
	// Model name as reported by the backend.
	// example: coder-large
	Name string `json:"name" example:"coder-large"`
	// Total completions routed to this model.
	// example: 412
	TotalRequests uint64 `json:"totalRequests" example:"412"`
	// Completions that succeeded.
	// example: 400
	SuccessfulRequests uint64 `json:"successfulRequests" example:"400"`
	// Completions that failed.
	// example: 12
	FailedRequests uint64 `json:"failedRequests" example:"12"`
	// Exponential moving average latency in seconds.
	// example: 0.41
	AvgLatencySeconds float64 `json:"avgLatencySeconds" example:"0.41"`
	// Requests currently in flight against this model.
	// example: 1
	InFlight int64 `json:"inFlight" example:"1"`
	// Last time this model served a request (unix seconds, 0 if never).
	// example: 1700000000
	LastUsedUnix int64 `json:"lastUsedUnix" example:"1700000000"`
	// False once the backend stops listing the model.
	// example: true
	Available bool `json:"available" example:"true"`
}

// PerformanceResponse is returned by GET /performance.
type PerformanceResponse struct {
	Models []ModelPerf `json:"models"`
}

// CacheStatsResponse is returned by GET /cache/stats.
type CacheStatsResponse struct {
	// Entries currently stored.
	// example: 120
	Size int `json:"size" example:"120"`
	// Configured capacity.
	// example: 256
	Capacity int `json:"capacity" example:"256"`
	// Lookups that found an entry.
	// example: 230
	Hits uint64 `json:"hits" example:"230"`
	// Lookups that missed.
	// example: 812
	Misses uint64 `json:"misses" example:"812"`
	// Hits over lookups, 0 when no lookups happened yet.
	// example: 0.22
	HitRate float64 `json:"hitRate" example:"0.22"`
	// Entries removed by batch eviction since startup.
	// example: 25
	Evictions uint64 `json:"evictions" example:"25"`
}
