package cache

// Matcher is the near-duplicate lookup hook. Implementations get the
// endpoint, the raw payload and the set of stored keys, and may return the
// key of an entry considered close enough to reuse. Exact matching has
// already been tried (and missed) before a Matcher runs.
type Matcher interface {
	Match(endpoint string, payload []byte, keys []string) (string, bool)
}

// NeverMatch is the default Matcher: it reports no match for every input.
// A real similarity measure can be plugged in without touching the cache.
type NeverMatch struct{}

func (NeverMatch) Match(string, []byte, []string) (string, bool) { return "", false }
