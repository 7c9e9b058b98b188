package router

import (
	"testing"
	"time"
)

func TestNoOverrideWithFewerThanTwoCandidates(t *testing.T) {
	rt := New(0)
	if _, ok := rt.Select(Profile{TaskType: TaskCoding}, "any"); ok {
		t.Fatal("override with zero candidates")
	}
	rt.SetModels([]string{"solo"})
	if _, ok := rt.Select(Profile{TaskType: TaskCoding}, "any"); ok {
		t.Fatal("override with one candidate")
	}
	rt.SetModels([]string{"coder-a", "coder-b"})
	if _, ok := rt.Select(Profile{TaskType: TaskCoding}, "other"); !ok {
		t.Fatal("expected an override with two coding candidates")
	}
}

func TestScoreAlwaysWithinBounds(t *testing.T) {
	profiles := []Profile{
		{},
		{TaskType: TaskCoding, Complexity: 1, RequiresSpeed: true, RequiresPrecision: true},
		{TaskType: TaskMath, Complexity: 0.1, RequiresSpeed: true},
		{TaskType: TaskGeneral, Complexity: 0.5},
	}
	names := []string{"coder-large", "coder-small", "qwq-reason", "tiny-3b", "plain"}
	for _, p := range profiles {
		for _, n := range names {
			for _, rate := range []float64{0, 0.5, 1} {
				if s := scoreModel(n, rate, p); s < 0 || s > 1 {
					t.Fatalf("score out of bounds: model=%s profile=%+v rate=%v score=%v", n, p, rate, s)
				}
			}
		}
	}
}

func TestComplexityRoutesCoderLargeVsSmall(t *testing.T) {
	rt := New(0)
	rt.SetModels([]string{"coder-large", "coder-small"})

	hard := Profile{TaskType: TaskCoding, Complexity: 0.8}
	if m, ok := rt.Select(hard, "coder-small"); !ok || m != "coder-large" {
		t.Fatalf("high complexity: got %q ok=%v, want coder-large", m, ok)
	}

	easy := Profile{TaskType: TaskCoding, Complexity: 0.2}
	if m, ok := rt.Select(easy, "coder-large"); !ok || m != "coder-small" {
		t.Fatalf("low complexity: got %q ok=%v, want coder-small", m, ok)
	}
}

func TestNoOverrideBelowThreshold(t *testing.T) {
	rt := New(0.99)
	rt.SetModels([]string{"alpha", "beta"})
	// General task, mid complexity: both score 0.5, below 0.99.
	if m, ok := rt.Select(Profile{TaskType: TaskGeneral, Complexity: 0.5}, "alpha"); ok {
		t.Fatalf("expected caller's choice to stand, got override to %q", m)
	}
}

func TestNoOverrideWhenWinnerIsRequested(t *testing.T) {
	rt := New(0)
	rt.SetModels([]string{"coder-large", "plain"})
	p := Profile{TaskType: TaskCoding, Complexity: 0.8}
	if m, ok := rt.Select(p, "coder-large"); ok {
		t.Fatalf("requested model already wins; unexpected override to %q", m)
	}
}

func TestTieBreakByInFlightThenName(t *testing.T) {
	rt := New(0)
	rt.SetModels([]string{"coder-b", "coder-a"})
	p := Profile{TaskType: TaskCoding, Complexity: 0.5}

	// Equal scores, equal in-flight: lexicographic name wins.
	if m, ok := rt.Select(p, "other"); !ok || m != "coder-a" {
		t.Fatalf("expected coder-a by name tie-break, got %q ok=%v", m, ok)
	}

	// Load coder-a: coder-b becomes the less busy candidate.
	rt.Begin("coder-a")
	if m, ok := rt.Select(p, "other"); !ok || m != "coder-b" {
		t.Fatalf("expected coder-b by in-flight tie-break, got %q ok=%v", m, ok)
	}
	rt.Done("coder-a", time.Millisecond, true)
}

func TestSuccessRateInfluencesScore(t *testing.T) {
	rt := New(0)
	rt.SetModels([]string{"flaky", "steady"})
	for i := 0; i < 10; i++ {
		rt.Begin("steady")
		rt.Done("steady", time.Millisecond, true)
		rt.Begin("flaky")
		rt.Done("flaky", time.Millisecond, false)
	}
	p := Profile{TaskType: TaskGeneral, Complexity: 0.5}
	if m, ok := rt.Select(p, "other"); !ok || m != "steady" {
		t.Fatalf("expected steady to win on success rate, got %q ok=%v", m, ok)
	}
}

func TestRecordsSurviveUnlisting(t *testing.T) {
	rt := New(0)
	rt.SetModels([]string{"a", "b"})
	rt.Begin("a")
	rt.Done("a", 100*time.Millisecond, true)
	rt.SetModels([]string{"b"})

	recs := rt.Records()
	if len(recs) != 2 {
		t.Fatalf("expected both records to persist, got %d", len(recs))
	}
	for _, r := range recs {
		switch r.Name {
		case "a":
			if r.Available {
				t.Fatal("unlisted model still available")
			}
			if r.TotalRequests != 1 || r.SuccessfulRequests != 1 {
				t.Fatalf("history lost: %+v", r)
			}
		case "b":
			if !r.Available {
				t.Fatal("listed model marked unavailable")
			}
		}
	}
	if rt.ModelCount() != 1 {
		t.Fatalf("modelCount=%d", rt.ModelCount())
	}
}

func TestDoneUpdatesLatencyEMA(t *testing.T) {
	rt := New(0)
	rt.SetModels([]string{"m"})
	rt.Begin("m")
	rt.Done("m", 100*time.Millisecond, true)
	rt.Begin("m")
	rt.Done("m", 200*time.Millisecond, true)
	recs := rt.Records()
	// 0.1*0.2 + 0.9*0.1 = 0.11s
	if got := recs[0].AvgLatencySeconds; got < 0.109 || got > 0.111 {
		t.Fatalf("avgLatency=%v want ~0.11", got)
	}
	if recs[0].InFlight != 0 {
		t.Fatalf("inFlight=%d", recs[0].InFlight)
	}
}
