// Package gateway composes the cache, coalescer, router, metrics collector
// and backend client into the request frontend. One Gateway is built at
// startup and owns all per-process state; nothing here is package-level,
// so tests can run independent gateways side by side.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"gatewayd/internal/backend"
	"gatewayd/internal/cache"
	"gatewayd/internal/coalesce"
	"gatewayd/internal/config"
	"gatewayd/internal/metrics"
	"gatewayd/internal/router"
	"gatewayd/pkg/types"
)

// Optimization names reported in gateway metadata.
const (
	OptCache   = "cache"
	OptRouting = "model_routing"
	OptBatch   = "batching"
)

// Result is what a handled request produces: the backend (or cached)
// payload plus the diagnostics that become gatewayMetadata. On failure the
// Result still carries the request id.
type Result struct {
	RequestID     string
	Model         string
	Payload       []byte
	CacheHit      bool
	Optimizations []string
	Duration      time.Duration
}

// Gateway is the request frontend. Safe for concurrent use.
type Gateway struct {
	cfg       config.Config
	backend   *backend.Client
	cache     *cache.Cache
	coalescer *coalesce.Coalescer
	router    *router.Router
	metrics   *metrics.Collector
	started   time.Time
}

// New builds a Gateway from cfg. The near-duplicate matcher defaults to
// never matching; pass one via NewWithMatcher to experiment.
func New(cfg config.Config) *Gateway {
	return NewWithMatcher(cfg, nil)
}

// NewWithMatcher is New with an explicit cache Matcher.
func NewWithMatcher(cfg config.Config, matcher cache.Matcher) *Gateway {
	cfg.ApplyDefaults()
	g := &Gateway{
		cfg:     cfg,
		backend: backend.NewClient(cfg.BackendURL, time.Duration(cfg.BackendTimeoutSeconds)*time.Second),
		cache:   cache.New(cfg.CacheCapacity, matcher),
		router:  router.New(cfg.AcceptanceThreshold),
		metrics: metrics.NewCollector(),
		started: time.Now(),
	}
	g.coalescer = coalesce.New(g.invoke, cfg.MaxBatchSize, time.Duration(cfg.BatchWaitMs)*time.Millisecond)
	return g
}

// DiscoverModels refreshes the router's model table from the backend.
func (g *Gateway) DiscoverModels(ctx context.Context) error {
	names, err := g.backend.ListModels(ctx)
	if err != nil {
		return err
	}
	g.router.SetModels(names)
	return nil
}

// Handle runs one request through the gateway: validate, consult the
// cache, route, dispatch (coalesced or direct), record the outcome. The
// returned Result is non-nil even on failure so callers can report the
// request id.
func (g *Gateway) Handle(ctx context.Context, endpoint string, payload []byte) (*Result, error) {
	res := &Result{RequestID: uuid.NewString()}
	start := time.Now()
	g.metrics.RecordRequest()

	prompt, model, err := g.validate(payload)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}
	res.Model = model

	if cached, hit := g.cache.Get(endpoint, payload); hit {
		g.metrics.RecordCacheEvent(true)
		res.Payload = cached
		res.CacheHit = true
		res.Optimizations = append(res.Optimizations, OptCache)
		res.Duration = time.Since(start)
		return res, nil
	}
	g.metrics.RecordCacheEvent(false)

	// The original payload keys the cache; routing may rewrite the copy
	// that goes to the backend.
	original := payload
	profile := router.InferProfile(prompt)
	if chosen, ok := g.router.Select(profile, model); ok && chosen != model {
		rewritten, serr := sjson.SetBytes(payload, "model", chosen)
		if serr == nil {
			payload = rewritten
			model = chosen
			res.Model = chosen
			res.Optimizations = append(res.Optimizations, OptRouting)
		}
	}

	var resp []byte
	if g.shouldBatch(prompt) {
		g.metrics.RecordBatched()
		res.Optimizations = append(res.Optimizations, OptBatch)
		resp, err = g.coalescer.Submit(ctx, coalesce.Key{Model: model, Endpoint: endpoint}, payload)
	} else {
		resp, err = g.invoke(ctx, endpoint, payload)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	g.cache.Put(endpoint, original, resp)
	res.Payload = resp
	return res, nil
}

// validate checks that the payload is a JSON object carrying a prompt and
// resolves the effective model. Malformed input fails here and never
// reaches the backend.
func (g *Gateway) validate(payload []byte) (prompt, model string, err error) {
	if !gjson.ValidBytes(payload) {
		return "", "", ErrClient("invalid JSON body")
	}
	parsed := gjson.ParseBytes(payload)
	if !parsed.IsObject() {
		return "", "", ErrClient("payload must be a JSON object")
	}
	prompt = extractPrompt(parsed)
	if prompt == "" {
		return "", "", ErrClient("prompt or messages is required")
	}
	model = parsed.Get("model").String()
	if model == "" {
		model = g.cfg.DefaultModel
	}
	if model == "" {
		return "", "", ErrClient("model is required")
	}
	return prompt, model, nil
}

func extractPrompt(parsed gjson.Result) string {
	if p := parsed.Get("prompt"); p.Exists() {
		return p.String()
	}
	msgs := parsed.Get("messages")
	if msgs.IsArray() {
		arr := msgs.Array()
		if len(arr) > 0 {
			return arr[len(arr)-1].Get("content").String()
		}
	}
	return ""
}

// shouldBatch decides BATCHED vs DIRECT: short prompts once the process
// has seen enough completed traffic to trust the batching economics.
func (g *Gateway) shouldBatch(prompt string) bool {
	if len(prompt) >= g.cfg.BatchMaxPromptBytes {
		return false
	}
	return g.metrics.TotalCompletions() >= uint64(g.cfg.BatchMinTraffic)
}

// invoke performs one backend call and records its outcome exactly once,
// both per model and process-wide. Used for direct dispatch and for each
// coalesced batch member.
func (g *Gateway) invoke(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	model := gjson.GetBytes(payload, "model").String()
	g.router.Begin(model)
	start := time.Now()
	resp, err := g.backend.Invoke(ctx, endpoint, payload)
	latency := time.Since(start)
	success := err == nil
	g.router.Done(model, latency, success)
	g.metrics.RecordCompletion(latency, success)
	return resp, err
}

// Drain flushes pending batches; called at shutdown.
func (g *Gateway) Drain() { g.coalescer.Drain() }

// Ready reports whether the backend currently answers probes.
func (g *Gateway) Ready(ctx context.Context) bool { return g.backend.Healthy(ctx) }

// Health reports gateway status, backend reachability and a metrics
// summary for GET /health.
func (g *Gateway) Health(ctx context.Context) types.HealthResponse {
	reachable := g.backend.Healthy(ctx)
	status := "healthy"
	if !reachable {
		status = "degraded"
	}
	return types.HealthResponse{
		Status:           status,
		BackendReachable: reachable,
		ModelCount:       g.router.ModelCount(),
		UptimeSeconds:    int64(time.Since(g.started).Seconds()),
		Metrics:          g.Stats(),
	}
}

// Stats returns the process-wide metrics snapshot.
func (g *Gateway) Stats() types.StatsResponse {
	s := g.metrics.Snapshot()
	return types.StatsResponse{
		TotalRequests:     s.TotalRequests,
		CacheHits:         s.CacheHits,
		BatchedRequests:   s.BatchedRequests,
		Failures:          s.Failures,
		AvgLatencySeconds: s.AvgLatency.Seconds(),
		ErrorRate:         s.ErrorRate,
	}
}

// Performance returns the per-model performance snapshot.
func (g *Gateway) Performance() types.PerformanceResponse {
	return types.PerformanceResponse{Models: g.router.Records()}
}

// CacheStats returns the cache diagnostic snapshot.
func (g *Gateway) CacheStats() types.CacheStatsResponse { return g.cache.Stats() }
