package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/tidwall/gjson"
)

// normPrefixBytes bounds how much of the normalized prompt participates in
// the fingerprint. Long prompts that share a prefix beyond this bound are
// treated as identical on purpose: the tail rarely changes the answer for
// the short requests worth caching.
const normPrefixBytes = 256

// promptText pulls the prompt out of an opaque request payload. Chat-style
// payloads use the last message's content, generate-style payloads use the
// top-level prompt field.
func promptText(payload []byte) string {
	if p := gjson.GetBytes(payload, "prompt"); p.Exists() {
		return p.String()
	}
	msgs := gjson.GetBytes(payload, "messages")
	if msgs.IsArray() {
		arr := msgs.Array()
		if len(arr) > 0 {
			return arr[len(arr)-1].Get("content").String()
		}
	}
	return ""
}

// normalizePrompt lowercases, collapses runs of whitespace and truncates to
// the fingerprint prefix length.
func normalizePrompt(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > normPrefixBytes {
		s = s[:normPrefixBytes]
	}
	return s
}

// fingerprint computes the stable cache key for (endpoint, payload).
// The second return is false when no key can be derived; callers treat
// that as an unconditional miss.
func fingerprint(endpoint string, payload []byte) (string, bool) {
	if !gjson.ValidBytes(payload) {
		return "", false
	}
	prompt := normalizePrompt(promptText(payload))
	if prompt == "" {
		return "", false
	}
	model := gjson.GetBytes(payload, "model").String()

	h := xxhash.New()
	_, _ = h.WriteString(endpoint)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(model)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(prompt)
	return strconv.FormatUint(h.Sum64(), 16), true
}
