// Package router owns the model record table and picks the best-fit model
// for a request profile. Scoring is heuristic: name patterns, complexity
// fit, speed/precision alignment and observed success rate.
package router

import (
	"sort"
	"strings"
	"sync"
	"time"

	"gatewayd/pkg/types"
)

const (
	// DefaultAcceptanceThreshold is the minimum winning score required
	// before the router overrides a caller's explicit model choice.
	DefaultAcceptanceThreshold = 0.6

	latencyAlpha = 0.1
)

// Record tracks one model's live performance. Counts are monotonic; a
// record is never deleted, only marked unavailable when the backend stops
// listing the model.
type Record struct {
	mu         sync.Mutex
	name       string
	total      uint64
	successful uint64
	failed     uint64
	avgLatency float64 // seconds, EMA
	inFlight   int64
	lastUsed   time.Time
	available  bool
}

func (r *Record) successRate() float64 {
	if r.total == 0 {
		return 0
	}
	return float64(r.successful) / float64(r.total)
}

// Router is safe for concurrent use. The table mutex guards discovery and
// lookup; per-record mutation takes only that record's lock, so updates to
// different models never contend.
type Router struct {
	mu        sync.RWMutex
	records   map[string]*Record
	threshold float64
}

// New constructs a Router. A non-positive threshold selects the default.
func New(threshold float64) *Router {
	if threshold <= 0 {
		threshold = DefaultAcceptanceThreshold
	}
	return &Router{
		records:   make(map[string]*Record),
		threshold: threshold,
	}
}

// SetModels reconciles the record table against the backend's model
// listing. New names get records; names no longer listed are marked
// unavailable but keep their history.
func (rt *Router) SetModels(names []string) {
	listed := make(map[string]struct{}, len(names))
	for _, n := range names {
		listed[n] = struct{}{}
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, n := range names {
		if _, ok := rt.records[n]; !ok {
			rt.records[n] = &Record{name: n, available: true}
		}
	}
	for n, r := range rt.records {
		_, ok := listed[n]
		r.mu.Lock()
		r.available = ok
		r.mu.Unlock()
	}
}

// ModelCount reports how many models are currently available.
func (rt *Router) ModelCount() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	var n int
	for _, r := range rt.records {
		r.mu.Lock()
		if r.available {
			n++
		}
		r.mu.Unlock()
	}
	return n
}

// Select scores every available model against the profile and returns the
// winner, or ok=false when the router declines: fewer than two candidates,
// or the winning score does not exceed the acceptance threshold. The
// requested model stays in effect whenever Select declines.
func (rt *Router) Select(p Profile, requested string) (string, bool) {
	type scored struct {
		name     string
		score    float64
		inFlight int64
	}

	rt.mu.RLock()
	candidates := make([]scored, 0, len(rt.records))
	for _, r := range rt.records {
		r.mu.Lock()
		if r.available {
			candidates = append(candidates, scored{
				name:     r.name,
				score:    scoreModel(r.name, r.successRate(), p),
				inFlight: r.inFlight,
			})
		}
		r.mu.Unlock()
	}
	rt.mu.RUnlock()

	if len(candidates) < 2 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].inFlight != candidates[j].inFlight {
			return candidates[i].inFlight < candidates[j].inFlight
		}
		return candidates[i].name < candidates[j].name
	})
	winner := candidates[0]
	if winner.score <= rt.threshold {
		return "", false
	}
	if winner.name == requested {
		return "", false
	}
	return winner.name, true
}

// scoreModel computes the heuristic score for one candidate. Always within
// [0,1].
func scoreModel(name string, successRate float64, p Profile) float64 {
	score := 0.5
	if p.TaskType == TaskCoding && isCodingSpecialized(name) {
		score += 0.3
	}
	if p.TaskType == TaskMath && isReasoningSpecialized(name) {
		score += 0.2
	}
	if p.Complexity > 0.7 && isLargeCapacity(name) {
		score += 0.2
	}
	if p.Complexity < 0.3 && isSmallEfficient(name) {
		score += 0.15
	}
	if (p.RequiresSpeed && isSmallEfficient(name)) || (p.RequiresPrecision && isLargeCapacity(name)) {
		score += 0.1
	}
	score += successRate * 0.2
	return clamp01(score)
}

func isCodingSpecialized(name string) bool {
	return nameContains(name, "coder", "code", "starcoder", "codellama")
}

func isReasoningSpecialized(name string) bool {
	return nameContains(name, "r1", "reason", "math", "qwq", "think")
}

func isLargeCapacity(name string) bool {
	return nameContains(name, "large", "70b", "72b", "65b", "34b", "33b", "32b")
}

func isSmallEfficient(name string) bool {
	return nameContains(name, "small", "mini", "tiny", "lite", "1b", "3b", "7b", "phi")
}

func nameContains(name string, patterns ...string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Begin marks a request in flight against the model, creating the record
// on first sight of an explicitly requested model the backend never listed.
func (rt *Router) Begin(model string) {
	r := rt.record(model)
	r.mu.Lock()
	r.inFlight++
	r.lastUsed = time.Now()
	r.mu.Unlock()
}

// Done folds one completion into the model's record. Latency uses an EMA
// seeded by the first sample.
func (rt *Router) Done(model string, latency time.Duration, success bool) {
	r := rt.record(model)
	r.mu.Lock()
	if r.inFlight > 0 {
		r.inFlight--
	}
	sec := latency.Seconds()
	if r.total == 0 {
		r.avgLatency = sec
	} else {
		r.avgLatency = latencyAlpha*sec + (1-latencyAlpha)*r.avgLatency
	}
	r.total++
	if success {
		r.successful++
	} else {
		r.failed++
	}
	r.mu.Unlock()
}

func (rt *Router) record(model string) *Record {
	rt.mu.RLock()
	r := rt.records[model]
	rt.mu.RUnlock()
	if r != nil {
		return r
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if r = rt.records[model]; r == nil {
		r = &Record{name: model}
		rt.records[model] = r
	}
	return r
}

// Records returns a per-model performance snapshot sorted by name.
func (rt *Router) Records() []types.ModelPerf {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]types.ModelPerf, 0, len(rt.records))
	for _, r := range rt.records {
		r.mu.Lock()
		perf := types.ModelPerf{
			Name:               r.name,
			TotalRequests:      r.total,
			SuccessfulRequests: r.successful,
			FailedRequests:     r.failed,
			AvgLatencySeconds:  r.avgLatency,
			InFlight:           r.inFlight,
			Available:          r.available,
		}
		if !r.lastUsed.IsZero() {
			perf.LastUsedUnix = r.lastUsed.Unix()
		}
		r.mu.Unlock()
		out = append(out, perf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
