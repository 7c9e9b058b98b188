package router

import "strings"

// TaskType classifies what a prompt is asking for.
type TaskType string

const (
	TaskCoding   TaskType = "coding"
	TaskMath     TaskType = "math"
	TaskCreative TaskType = "creative"
	TaskAnalysis TaskType = "analysis"
	TaskGeneral  TaskType = "general"
)

// Profile is the inferred shape of one request. Ephemeral, per call.
type Profile struct {
	TaskType          TaskType
	Complexity        float64 // 0..1
	RequiresSpeed     bool
	RequiresPrecision bool
}

// Keyword sets are checked in a fixed order; the first set with a match
// decides the task type.
var taskKeywords = []struct {
	task     TaskType
	keywords []string
}{
	{TaskCoding, []string{"code", "function", "debug", "script", "program", "implement", "algorithm", "compile", "refactor", "class", "bug", "api"}},
	{TaskMath, []string{"calculate", "math", "equation", "solve", "integral", "derivative", "probability", "theorem", "proof"}},
	{TaskCreative, []string{"story", "poem", "creative", "imagine", "fiction", "song", "haiku"}},
	{TaskAnalysis, []string{"analyze", "analysis", "compare", "evaluate", "summarize", "assess", "review"}},
}

var technicalKeywords = []string{
	"algorithm", "complexity", "recursive", "concurrency", "distributed",
	"optimize", "database", "kernel", "protocol", "encryption", "compiler",
	"linked list", "binary tree", "hash", "graph", "regression", "tensor",
}

var speedKeywords = []string{"quick", "fast", "brief", "short", "urgent", "asap"}

var precisionKeywords = []string{"precise", "exact", "accurate", "careful", "detailed", "rigorous"}

// InferProfile derives a Profile from raw prompt text using fixed keyword
// sets and a fixed-weight complexity estimate. Pure function.
func InferProfile(prompt string) Profile {
	lower := strings.ToLower(prompt)
	p := Profile{TaskType: TaskGeneral}
	for _, set := range taskKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				p.TaskType = set.task
				break
			}
		}
		if p.TaskType != TaskGeneral {
			break
		}
	}
	p.Complexity = estimateComplexity(lower)
	p.RequiresSpeed = containsAny(lower, speedKeywords)
	p.RequiresPrecision = containsAny(lower, precisionKeywords)
	return p
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// estimateComplexity combines four capped sub-signals with fixed weights:
// text length (0.4), average token length (0.2), lexical uniqueness (0.1)
// and technical keyword hits (0.3). Result is always within [0,1].
func estimateComplexity(lower string) float64 {
	words := strings.Fields(lower)
	if len(words) == 0 {
		return 0
	}

	lengthSig := clamp01(float64(len(lower)) / 1000.0)

	var totalLen int
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		totalLen += len(w)
		unique[w] = struct{}{}
	}
	avgTokenSig := clamp01(float64(totalLen) / float64(len(words)) / 12.0)
	uniqueSig := clamp01(float64(len(unique)) / float64(len(words)))

	var hits int
	for _, kw := range technicalKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	techSig := clamp01(float64(hits) / 3.0)

	return 0.4*lengthSig + 0.2*avgTokenSig + 0.1*uniqueSig + 0.3*techSig
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
