package router

import (
	"strings"
	"testing"
)

func TestInferTaskType(t *testing.T) {
	cases := []struct {
		prompt string
		want   TaskType
	}{
		{"write a function to reverse a linked list", TaskCoding},
		{"solve this equation for x", TaskMath},
		{"write a haiku about the ocean", TaskCreative},
		{"compare these two proposals", TaskAnalysis},
		{"what's the weather like", TaskGeneral},
		{"", TaskGeneral},
	}
	for _, tc := range cases {
		if got := InferProfile(tc.prompt).TaskType; got != tc.want {
			t.Fatalf("prompt %q: taskType=%s want %s", tc.prompt, got, tc.want)
		}
	}
}

func TestComplexityBounds(t *testing.T) {
	prompts := []string{
		"",
		"hi",
		"write a function to reverse a linked list",
		strings.Repeat("implement a distributed concurrency protocol with encryption and database optimization ", 30),
	}
	for _, p := range prompts {
		c := InferProfile(p).Complexity
		if c < 0 || c > 1 {
			t.Fatalf("complexity out of bounds for %q: %v", p, c)
		}
	}
}

func TestComplexityOrdering(t *testing.T) {
	simple := InferProfile("reverse a list").Complexity
	hard := InferProfile(strings.Repeat("design a distributed hash algorithm with encryption, concurrency control and database optimization across the protocol layers ", 10)).Complexity
	if simple >= hard {
		t.Fatalf("simple=%v should score below hard=%v", simple, hard)
	}
	if hard <= 0.7 {
		t.Fatalf("long technical prompt should exceed 0.7, got %v", hard)
	}
	if simple >= 0.3 {
		t.Fatalf("short plain prompt should stay below 0.3, got %v", simple)
	}
}

func TestSpeedAndPrecisionCues(t *testing.T) {
	p := InferProfile("give me a quick brief answer")
	if !p.RequiresSpeed || p.RequiresPrecision {
		t.Fatalf("speed cue missed: %+v", p)
	}
	p = InferProfile("I need an exact and rigorous derivation")
	if p.RequiresSpeed || !p.RequiresPrecision {
		t.Fatalf("precision cue missed: %+v", p)
	}
}
