package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"gatewayd/internal/config"
)

// fakeBackend is an httptest stand-in for the inference backend: it lists
// a fixed set of models and echoes invocations.
type fakeBackend struct {
	mu     sync.Mutex
	models []string
	delay  time.Duration
	status int

	invokes atomic.Int64
}

func (f *fakeBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			f.mu.Lock()
			body := `{"models":[`
			for i, m := range f.models {
				if i > 0 {
					body += ","
				}
				body += fmt.Sprintf(`{"name":%q}`, m)
			}
			body += `]}`
			f.mu.Unlock()
			w.Write([]byte(body))
			return
		}
		f.invokes.Add(1)
		if f.delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(f.delay):
			}
		}
		if f.status != 0 {
			http.Error(w, "backend failure", f.status)
			return
		}
		payload, _ := io.ReadAll(r.Body)
		model := gjson.GetBytes(payload, "model").String()
		fmt.Fprintf(w, `{"model":%q,"response":"echoed"}`, model)
	})
}

func testConfig(url string) config.Config {
	return config.Config{
		BackendURL:            url,
		BackendTimeoutSeconds: 1,
		DefaultModel:          "base-model",
		CacheCapacity:         32,
		MaxBatchSize:          2,
		BatchWaitMs:           20,
		BatchMaxPromptBytes:   512,
		BatchMinTraffic:       100, // effectively disables batching unless a test lowers it
		AcceptanceThreshold:   0.6,
	}
}

func TestIdenticalRequestsSecondIsCacheHit(t *testing.T) {
	fb := &fakeBackend{models: []string{"base-model"}}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	g := New(testConfig(srv.URL))
	payload := []byte(`{"model":"base-model","prompt":"what is a goroutine"}`)

	first, err := g.Handle(context.Background(), "/api/generate", payload)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first request must miss")
	}
	if fb.invokes.Load() != 1 {
		t.Fatalf("backend calls=%d after first", fb.invokes.Load())
	}

	second, err := g.Handle(context.Background(), "/api/generate", payload)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second identical request must hit the cache")
	}
	if fb.invokes.Load() != 1 {
		t.Fatalf("cache hit reached the backend: calls=%d", fb.invokes.Load())
	}
	if string(second.Payload) != string(first.Payload) {
		t.Fatalf("cached payload differs: %s vs %s", second.Payload, first.Payload)
	}
	if len(second.Optimizations) == 0 || second.Optimizations[0] != OptCache {
		t.Fatalf("optimizations=%v", second.Optimizations)
	}
	if first.RequestID == second.RequestID || first.RequestID == "" {
		t.Fatalf("request ids must be distinct and non-empty: %q %q", first.RequestID, second.RequestID)
	}
}

func TestMalformedPayloadNeverReachesBackend(t *testing.T) {
	fb := &fakeBackend{models: []string{"base-model"}}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	g := New(testConfig(srv.URL))
	for _, bad := range [][]byte{
		[]byte("not json"),
		[]byte(`[1,2,3]`),
		[]byte(`{"model":"m"}`),
	} {
		res, err := g.Handle(context.Background(), "/api/chat", bad)
		if err == nil {
			t.Fatalf("payload %s: expected error", bad)
		}
		if !IsClientError(err) {
			t.Fatalf("payload %s: classification=%s", bad, Classify(err))
		}
		if res.RequestID == "" {
			t.Fatal("failures must still carry a request id")
		}
	}
	if fb.invokes.Load() != 0 {
		t.Fatalf("client errors reached the backend: %d", fb.invokes.Load())
	}
	s := g.Stats()
	if s.Failures != 0 || s.ErrorRate != 0 {
		t.Fatalf("client errors counted as backend failures: %+v", s)
	}
	if s.TotalRequests != 3 {
		t.Fatalf("totalRequests=%d", s.TotalRequests)
	}
}

func TestModelRequiredWithoutDefault(t *testing.T) {
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.DefaultModel = ""
	g := New(cfg)
	_, err := g.Handle(context.Background(), "/api/generate", []byte(`{"prompt":"hi"}`))
	if !IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestTimeoutClassifiedAndCounted(t *testing.T) {
	fb := &fakeBackend{models: []string{"base-model"}, delay: 3 * time.Second}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	g := New(testConfig(srv.URL)) // 1s backend timeout
	start := time.Now()
	_, err := g.Handle(context.Background(), "/api/generate", []byte(`{"prompt":"slow one"}`))
	elapsed := time.Since(start)
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !IsTimeout(err) || Classify(err) != ClassTimeout {
		t.Fatalf("classification=%s err=%v", Classify(err), err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("timeout surfaced after %v, expected around the 1s deadline", elapsed)
	}
	s := g.Stats()
	if s.Failures != 1 {
		t.Fatalf("failures=%d", s.Failures)
	}
	if s.ErrorRate != 1 {
		t.Fatalf("errorRate=%v", s.ErrorRate)
	}
}

func TestBackendStatusClassified(t *testing.T) {
	fb := &fakeBackend{models: []string{"base-model"}, status: http.StatusInternalServerError}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	g := New(testConfig(srv.URL))
	_, err := g.Handle(context.Background(), "/api/generate", []byte(`{"prompt":"boom"}`))
	if Classify(err) != ClassBackendError {
		t.Fatalf("classification=%s err=%v", Classify(err), err)
	}
	// A failed call must not populate the cache.
	if g.CacheStats().Size != 0 {
		t.Fatal("failure was cached")
	}
}

func TestRoutingOverridesToSpecializedModel(t *testing.T) {
	fb := &fakeBackend{models: []string{"coder-large", "coder-small"}}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	g := New(testConfig(srv.URL))
	if err := g.DiscoverModels(context.Background()); err != nil {
		t.Fatalf("discover: %v", err)
	}

	prompt := "write a function to reverse a linked list"
	payload := []byte(fmt.Sprintf(`{"model":"coder-large","prompt":%q}`, prompt))
	res, err := g.Handle(context.Background(), "/api/generate", payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	// Low inferred complexity: the small coding model wins the score.
	if res.Model != "coder-small" {
		t.Fatalf("modelUsed=%s want coder-small", res.Model)
	}
	if gjson.GetBytes(res.Payload, "model").String() != "coder-small" {
		t.Fatalf("backend saw wrong model: %s", res.Payload)
	}
	if !contains(res.Optimizations, OptRouting) {
		t.Fatalf("optimizations=%v", res.Optimizations)
	}
}

func TestRoutingKeepsRequestedModelWhenItWins(t *testing.T) {
	fb := &fakeBackend{models: []string{"coder-large", "coder-small"}}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	g := New(testConfig(srv.URL))
	if err := g.DiscoverModels(context.Background()); err != nil {
		t.Fatalf("discover: %v", err)
	}

	// Long, keyword-dense prompt: high complexity favors the large model.
	hard := ""
	for i := 0; i < 10; i++ {
		hard += "implement a distributed concurrent hash algorithm with encryption and database access across protocol layers "
	}
	payload := []byte(fmt.Sprintf(`{"model":"coder-large","prompt":%q}`, hard))
	res, err := g.Handle(context.Background(), "/api/generate", payload)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Model != "coder-large" {
		t.Fatalf("modelUsed=%s want coder-large", res.Model)
	}
	if contains(res.Optimizations, OptRouting) {
		t.Fatalf("no rewrite expected, optimizations=%v", res.Optimizations)
	}
}

func TestBatchedDispatchAfterTrafficThreshold(t *testing.T) {
	fb := &fakeBackend{models: []string{"base-model"}}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchMinTraffic = 1
	cfg.MaxBatchSize = 2
	cfg.BatchWaitMs = 1000
	g := New(cfg)

	// Prime one completion so the dispatch heuristic trusts batching.
	if _, err := g.Handle(context.Background(), "/api/generate", []byte(`{"prompt":"priming request"}`)); err != nil {
		t.Fatalf("prime: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := g.Handle(context.Background(), "/api/generate",
				[]byte(fmt.Sprintf(`{"prompt":"batched prompt %d"}`, i)))
			if err != nil {
				t.Errorf("handle %d: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if res == nil {
			t.Fatalf("member %d missing", i)
		}
		if !contains(res.Optimizations, OptBatch) {
			t.Fatalf("member %d not batched: %v", i, res.Optimizations)
		}
	}
	if got := g.Stats().BatchedRequests; got != 2 {
		t.Fatalf("batchedRequests=%d", got)
	}
	if got := fb.invokes.Load(); got != 3 {
		t.Fatalf("backend calls=%d want 3 (1 prime + 2 members)", got)
	}
}

func TestLongPromptsDispatchDirect(t *testing.T) {
	fb := &fakeBackend{models: []string{"base-model"}}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.BatchMinTraffic = 1
	cfg.BatchMaxPromptBytes = 16
	g := New(cfg)

	if _, err := g.Handle(context.Background(), "/api/generate", []byte(`{"prompt":"first request"}`)); err != nil {
		t.Fatalf("prime: %v", err)
	}
	res, err := g.Handle(context.Background(), "/api/generate",
		[]byte(`{"prompt":"this prompt is comfortably longer than sixteen bytes"}`))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if contains(res.Optimizations, OptBatch) {
		t.Fatalf("long prompt was batched: %v", res.Optimizations)
	}
}

func TestHealthAndSnapshots(t *testing.T) {
	fb := &fakeBackend{models: []string{"a", "b", "c"}}
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	g := New(testConfig(srv.URL))
	if err := g.DiscoverModels(context.Background()); err != nil {
		t.Fatalf("discover: %v", err)
	}
	h := g.Health(context.Background())
	if h.Status != "healthy" || !h.BackendReachable {
		t.Fatalf("health=%+v", h)
	}
	if h.ModelCount != 3 {
		t.Fatalf("modelCount=%d", h.ModelCount)
	}
	if got := g.CacheStats().Capacity; got != 32 {
		t.Fatalf("cache capacity=%d", got)
	}
	if len(g.Performance().Models) != 3 {
		t.Fatalf("performance=%+v", g.Performance())
	}

	srv.Close()
	h = g.Health(context.Background())
	if h.Status != "degraded" || h.BackendReachable {
		t.Fatalf("health after backend down=%+v", h)
	}
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}
