package confcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/confcache/codec"
	pr "github.com/unkn0wn-root/confcache/provider"
)

// Store is the configuration source of record, read on refresh and
// written by ResolveStored. Namespace and key are opaque identifiers.
// Implementations must be safe for concurrent use.
type Store interface {
	// Read returns (value, true, nil) when the key exists,
	// (nil, false, nil) when it does not.
	Read(ctx context.Context, namespace, key string) (any, bool, error)

	// Write stores value under (namespace, key), replacing any
	// previous value.
	Write(ctx context.Context, namespace, key string, value any) error
}

// Config is the public facade: cached reads, explicit refresh and
// invalidation, and batch change application over one Store.
type Config interface {
	// Get returns the resolved value, or def when the key is absent or
	// resolution fails. It never returns an error; failures are logged.
	Get(ctx context.Context, namespace, key string, def any, opts ...Option) any

	// Fetch returns the cached resolved value when present, otherwise
	// refreshes from the Store. ok=false means the key does not exist.
	Fetch(ctx context.Context, namespace, key string, opts ...Option) (v any, ok bool, err error)

	// MustFetch is Fetch, failing with *MissingKeyError when the key
	// does not exist.
	MustFetch(ctx context.Context, namespace, key string, opts ...Option) (any, error)

	// Refresh bypasses the cache: reads the raw value from the Store,
	// resolves it, caches the result (a miss is cached too) and
	// returns it. *UnresolvedError propagates and is not cached.
	Refresh(ctx context.Context, namespace, key string, opts ...Option) (v any, ok bool, err error)

	// Clear invalidates one cache entry. No-op when absent.
	Clear(ctx context.Context, namespace, key string) error

	// ClearNamespace invalidates every cache entry of a namespace.
	ClearNamespace(ctx context.Context, namespace string) error

	// ResolveStored reads the raw value from the Store, resolves it and
	// writes the resolved value back to the Store, bypassing the cache
	// entirely. Intended for consumers that read the Store directly.
	// No-op when the key is absent.
	ResolveStored(ctx context.Context, namespace, key string, opts ...Option) error

	// ApplyChange applies a configuration change set: removed keys are
	// cleared; changed and added pairs are resolved from the given raw
	// values and cached directly, without consulting the Store. The
	// cache is authoritative for those keys afterwards.
	ApplyChange(ctx context.Context, namespace string, changed, added []Entry, removed []string, opts ...Option) error

	Enabled() bool
	Close(ctx context.Context) error
}

// Options tune a Config instance. Only Source is required; everything
// else has a working default.
type Options struct {
	// Required
	Source Store

	Env      EnvSource   // nil => OSEnv{} (process environment)
	Provider pr.Provider // nil => provider/local (in-process map)

	// Codec serializes resolved values into the Provider. Cached
	// values round-trip through it, so scalar types normalize to what
	// the codec decodes. nil => CBOR (integers come back as int64).
	Codec c.Codec

	Logger    Logger        // nil => NopLogger
	Hooks     Hooks         // nil => NopHooks
	Transform Transform     // instance-wide default; nil => identity on the raw string
	EntryTTL  time.Duration // per-entry provider TTL; 0 => entries never expire
	Disabled  bool          // bypass the cache entirely; every read resolves fresh
}

// Option is a per-call override.
type Option func(*callOptions)

type callOptions struct {
	transform Transform
}

// WithTransform overrides the transform for one call.
func WithTransform(tr Transform) Option {
	return func(co *callOptions) {
		if tr != nil {
			co.transform = tr
		}
	}
}

func New(opts Options) (Config, error) {
	return newConfig(opts)
}
