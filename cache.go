package confcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	cd "github.com/unkn0wn-root/confcache/codec"
	"github.com/unkn0wn-root/confcache/internal/util"
	"github.com/unkn0wn-root/confcache/internal/wire"
	pr "github.com/unkn0wn-root/confcache/provider"
	"github.com/unkn0wn-root/confcache/provider/local"
)

type config struct {
	source    Store
	env       EnvSource
	provider  pr.Provider
	codec     cd.Codec
	log       Logger
	hooks     Hooks
	transform Transform
	ttl       time.Duration
	enabled   bool

	// namespace generations (in-memory; missing treated as gen=0).
	// ClearNamespace bumps; entries written under an older generation
	// are invisible and self-heal-deleted on read. This replaces a
	// scan-and-delete, which byte-store providers cannot offer.
	genMu sync.RWMutex
	gens  map[string]uint64
}

func newConfig(opts Options) (*config, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("confcache: source is required")
	}

	cc := &config{
		source:  opts.Source,
		gens:    make(map[string]uint64),
		enabled: !opts.Disabled,
		ttl:     opts.EntryTTL,
	}

	// defaults
	cc.env = coalesce[EnvSource](opts.Env, OSEnv{})
	cc.log = coalesce[Logger](opts.Logger, NopLogger{})
	cc.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if opts.Provider != nil {
		cc.provider = opts.Provider
	} else {
		cc.provider = local.New()
	}
	if opts.Codec != nil {
		cc.codec = opts.Codec
	} else {
		cb, err := cd.NewCBOR(false)
		if err != nil {
			return nil, err
		}
		cc.codec = cb
	}
	if opts.Transform != nil {
		cc.transform = opts.Transform
	} else {
		cc.transform = identityTransform
	}
	return cc, nil
}

func (c *config) Enabled() bool { return c.enabled }

func (c *config) Close(ctx context.Context) error {
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *config) callOpts(opts []Option) callOptions {
	co := callOptions{transform: c.transform}
	for _, o := range opts {
		o(&co)
	}
	return co
}

// lookup returns the cached result for (ns, key). present=false means
// no usable entry exists; present=true with ok=false is a cached miss.
func (c *config) lookup(ctx context.Context, ns, key string) (v any, ok, present bool) {
	if !c.enabled {
		return nil, false, false
	}
	k := util.EntryKey(ns, key)
	raw, hit, err := c.provider.Get(ctx, k)
	if err != nil {
		c.log.Warn("cache get failed; treating as miss", Fields{"key": k, "err": err})
		return nil, false, false
	}
	if !hit {
		return nil, false, false
	}
	gen, found, payload, err := wire.Decode(raw)
	if err != nil {
		_ = c.provider.Del(ctx, k) // self-heal corrupt
		c.hooks.SelfHeal(k, "corrupt")
		return nil, false, false
	}
	if gen != c.snapshotGen(ns) {
		_ = c.provider.Del(ctx, k) // written before the namespace was cleared
		c.hooks.SelfHeal(k, "stale")
		return nil, false, false
	}
	if !found {
		return nil, false, true
	}
	n, err := c.codec.Decode(payload)
	if err != nil {
		_ = c.provider.Del(ctx, k) // self-heal
		c.hooks.SelfHeal(k, "decode")
		return nil, false, false
	}
	return FromNode(n), true, true
}

// storeResult caches a resolved value (ok=true) or a confirmed miss
// (ok=false) under the current namespace generation.
func (c *config) storeResult(ctx context.Context, ns, key string, v any, ok bool) error {
	if !c.enabled {
		return nil
	}
	k := util.EntryKey(ns, key)
	gen := c.snapshotGen(ns)

	var frame []byte
	if ok {
		payload, err := c.codec.Encode(ToNode(v))
		if err != nil {
			return fmt.Errorf("confcache: encode %s/%s: %w", ns, key, err)
		}
		frame = wire.EncodeFound(gen, payload)
	} else {
		frame = wire.EncodeMissing(gen)
	}

	accepted, err := c.provider.Set(ctx, k, frame, c.ttl)
	if err != nil {
		return err
	}
	if !accepted {
		c.hooks.SetRejected(k)
		c.log.Debug("cache set rejected by provider (pressure)", Fields{"key": k})
	}
	return nil
}

func (c *config) Get(ctx context.Context, ns, key string, def any, opts ...Option) any {
	v, ok, err := c.Fetch(ctx, ns, key, opts...)
	if err != nil {
		c.log.Warn("get: resolution failed; returning default", Fields{"ns": ns, "key": key, "err": err})
		return def
	}
	if !ok {
		return def
	}
	return v
}

func (c *config) Fetch(ctx context.Context, ns, key string, opts ...Option) (any, bool, error) {
	if v, ok, present := c.lookup(ctx, ns, key); present {
		return v, ok, nil
	}
	return c.Refresh(ctx, ns, key, opts...)
}

func (c *config) MustFetch(ctx context.Context, ns, key string, opts ...Option) (any, error) {
	v, ok, err := c.Fetch(ctx, ns, key, opts...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &MissingKeyError{Namespace: ns, Key: key}
	}
	return v, nil
}

func (c *config) Refresh(ctx context.Context, ns, key string, opts ...Option) (any, bool, error) {
	co := c.callOpts(opts)

	raw, ok, err := c.source.Read(ctx, ns, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// cache the miss so repeated fetches of absent keys stay cheap
		if err := c.storeResult(ctx, ns, key, nil, false); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	// the entry key is the path root, so transforms see e.g.
	// ["db", "host", "port"] for a reference nested under key "db"
	resolved, err := resolveValue(raw, ns, []string{key}, c.env, co.transform)
	if err != nil {
		return nil, false, err
	}
	if err := c.storeResult(ctx, ns, key, resolved, true); err != nil {
		return nil, false, err
	}
	return resolved, true, nil
}

func (c *config) Clear(ctx context.Context, ns, key string) error {
	if !c.enabled {
		return nil
	}
	k := util.EntryKey(ns, key)
	if err := c.provider.Del(ctx, k); err != nil {
		return err
	}
	c.log.Debug("cleared entry", Fields{"ns": ns, "key": key})
	return nil
}

func (c *config) ClearNamespace(_ context.Context, ns string) error {
	if !c.enabled {
		return nil
	}
	newGen := c.bumpGen(ns)
	c.log.Debug("cleared namespace (bumped gen)", Fields{"ns": ns, "newGen": newGen})
	return nil
}

func (c *config) ResolveStored(ctx context.Context, ns, key string, opts ...Option) error {
	co := c.callOpts(opts)

	raw, ok, err := c.source.Read(ctx, ns, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	resolved, err := resolveValue(raw, ns, []string{key}, c.env, co.transform)
	if err != nil {
		return err
	}
	return c.source.Write(ctx, ns, key, resolved)
}

func (c *config) ApplyChange(ctx context.Context, ns string, changed, added []Entry, removed []string, opts ...Option) error {
	co := c.callOpts(opts)

	for _, key := range removed {
		if err := c.Clear(ctx, ns, key); err != nil {
			return err
		}
	}
	for _, batch := range [][]Entry{changed, added} {
		for _, e := range batch {
			resolved, err := resolveValue(e.Value, ns, []string{e.Key}, c.env, co.transform)
			if err != nil {
				return err
			}
			if err := c.storeResult(ctx, ns, e.Key, resolved, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *config) snapshotGen(ns string) uint64 {
	c.genMu.RLock()
	defer c.genMu.RUnlock()
	return c.gens[ns]
}

func (c *config) bumpGen(ns string) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.gens[ns]++
	return c.gens[ns]
}
