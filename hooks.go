package confcache

// Hooks lightweight callbacks for high-signal cache events.
// Implementations MUST be cheap and non-blocking; the cache calls them
// on hot paths.
type Hooks interface {
	// A cache entry was deleted on read.
	// reason ∈ {"corrupt", "stale", "decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	SetRejected(storageKey string)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string) {}
func (NopHooks) SetRejected(string)      {}
