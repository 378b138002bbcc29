package confcache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/unkn0wn-root/confcache/internal/util"
	"github.com/unkn0wn-root/confcache/provider/local"
)

type memStore struct {
	mu    sync.Mutex
	m     map[string]map[string]any
	reads int
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore { return &memStore{m: make(map[string]map[string]any)} }

func (s *memStore) Read(_ context.Context, ns, key string) (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	v, ok := s.m[ns][key]
	return v, ok, nil
}

func (s *memStore) Write(_ context.Context, ns, key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m[ns] == nil {
		s.m[ns] = make(map[string]any)
	}
	s.m[ns][key] = v
	return nil
}

func (s *memStore) put(ns, key string, v any) { _ = s.Write(context.Background(), ns, key, v) }

func (s *memStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// countingEnv counts Lookup calls so tests can observe whether a read
// was served from cache or re-resolved.
type countingEnv struct {
	mu    sync.Mutex
	vars  map[string]string
	calls int
}

func newCountingEnv(vars map[string]string) *countingEnv {
	return &countingEnv{vars: vars}
}

func (e *countingEnv) Lookup(name string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	v, ok := e.vars[name]
	return v, ok
}

func (e *countingEnv) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type recordingHooks struct {
	mu       sync.Mutex
	healed   map[string]int // reason -> count
	rejected int
}

func newRecordingHooks() *recordingHooks { return &recordingHooks{healed: make(map[string]int)} }

func (h *recordingHooks) SelfHeal(_, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.healed[reason]++
}

func (h *recordingHooks) SetRejected(string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejected++
}

func (h *recordingHooks) healCount(reason string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healed[reason]
}

func newTestConfig(t *testing.T, src Store, env EnvSource, optsOpt func(*Options)) Config {
	t.Helper()
	opts := Options{Source: src, Env: env}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(context.Background()) })
	return cc
}

// ==============================
// Caching transparency
// ==============================

// TestFetchMatchesRefresh verifies the cache is invisible in results:
// a cold Fetch equals an explicit Refresh of the same key.
func TestFetchMatchesRefresh(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "db", Mapping{
		{Key: "host", Value: EnvDefault("DB_HOST", "localhost")},
		{Key: "port", Value: EnvDefault("DB_PORT", int64(5432))},
	})
	env := newCountingEnv(nil)
	cc := newTestConfig(t, src, env, nil)

	refreshed, ok, err := cc.Refresh(ctx, "app", "db")
	if err != nil || !ok {
		t.Fatalf("Refresh: ok=%v err=%v", ok, err)
	}

	if err := cc.Clear(ctx, "app", "db"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	fetched, ok, err := cc.Fetch(ctx, "app", "db")
	if err != nil || !ok {
		t.Fatalf("Fetch: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(refreshed, fetched) {
		t.Fatalf("Fetch != Refresh:\n fetch=%#v\n refresh=%#v", fetched, refreshed)
	}
}

// TestFetchIdempotent verifies a second Fetch is served from cache:
// neither the environment nor the store is touched again.
func TestFetchIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "port", Env("PORT"))
	env := newCountingEnv(map[string]string{"PORT": "8080"})
	cc := newTestConfig(t, src, env, nil)

	v1, ok, err := cc.Fetch(ctx, "app", "port")
	if err != nil || !ok {
		t.Fatalf("first Fetch: ok=%v err=%v", ok, err)
	}
	envCalls, storeReads := env.count(), src.readCount()

	v2, ok, err := cc.Fetch(ctx, "app", "port")
	if err != nil || !ok {
		t.Fatalf("second Fetch: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(v1, v2) {
		t.Fatalf("results differ: %#v vs %#v", v1, v2)
	}
	if env.count() != envCalls {
		t.Fatalf("cached Fetch re-touched the environment (%d -> %d)", envCalls, env.count())
	}
	if src.readCount() != storeReads {
		t.Fatalf("cached Fetch re-read the store (%d -> %d)", storeReads, src.readCount())
	}
}

// ==============================
// Invalidation
// ==============================

// TestClearRefetches verifies Clear forces the next Fetch back through
// the store and the environment.
func TestClearRefetches(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "port", Env("PORT"))
	env := newCountingEnv(map[string]string{"PORT": "8080"})
	cc := newTestConfig(t, src, env, nil)

	if _, _, err := cc.Fetch(ctx, "app", "port"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	before := env.count()

	if err := cc.Clear(ctx, "app", "port"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, _, err := cc.Fetch(ctx, "app", "port"); err != nil {
		t.Fatalf("Fetch after Clear: %v", err)
	}
	if env.count() != before+1 {
		t.Fatalf("Fetch after Clear must re-resolve: env calls %d -> %d", before, env.count())
	}
}

// TestClearNamespaceIsolation verifies namespace invalidation hits every
// key of the namespace and no key of any other.
func TestClearNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("a", "k1", Env("V1"))
	src.put("a", "k2", Env("V2"))
	src.put("b", "k1", Env("V3"))
	env := newCountingEnv(map[string]string{"V1": "1", "V2": "2", "V3": "3"})
	cc := newTestConfig(t, src, env, nil)

	for _, k := range [][2]string{{"a", "k1"}, {"a", "k2"}, {"b", "k1"}} {
		if _, _, err := cc.Fetch(ctx, k[0], k[1]); err != nil {
			t.Fatalf("warm Fetch %v: %v", k, err)
		}
	}
	warm := env.count()

	if err := cc.ClearNamespace(ctx, "a"); err != nil {
		t.Fatalf("ClearNamespace: %v", err)
	}

	// both keys under "a" must re-resolve
	if _, _, err := cc.Fetch(ctx, "a", "k1"); err != nil {
		t.Fatalf("Fetch a/k1: %v", err)
	}
	if _, _, err := cc.Fetch(ctx, "a", "k2"); err != nil {
		t.Fatalf("Fetch a/k2: %v", err)
	}
	if env.count() != warm+2 {
		t.Fatalf("expected 2 re-resolutions under ns a, got %d", env.count()-warm)
	}

	// "b" stays cached
	if _, _, err := cc.Fetch(ctx, "b", "k1"); err != nil {
		t.Fatalf("Fetch b/k1: %v", err)
	}
	if env.count() != warm+2 {
		t.Fatalf("ClearNamespace leaked into another namespace")
	}
}

// ==============================
// Miss handling
// ==============================

// TestCachedMissIsCached verifies a confirmed absence is cached: the
// second Fetch of an absent key does not re-read the store.
func TestCachedMissIsCached(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	env := newCountingEnv(nil)
	cc := newTestConfig(t, src, env, nil)

	if _, ok, err := cc.Fetch(ctx, "app", "nope"); err != nil || ok {
		t.Fatalf("Fetch absent: ok=%v err=%v", ok, err)
	}
	reads := src.readCount()

	if _, ok, err := cc.Fetch(ctx, "app", "nope"); err != nil || ok {
		t.Fatalf("second Fetch absent: ok=%v err=%v", ok, err)
	}
	if src.readCount() != reads {
		t.Fatalf("cached miss re-read the store")
	}
}

func TestMustFetch(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "present", "value")
	cc := newTestConfig(t, src, newCountingEnv(nil), nil)

	v, err := cc.MustFetch(ctx, "app", "present")
	if err != nil || v != "value" {
		t.Fatalf("MustFetch present: v=%v err=%v", v, err)
	}

	_, err = cc.MustFetch(ctx, "app", "absent")
	var mk *MissingKeyError
	if !errors.As(err, &mk) {
		t.Fatalf("expected *MissingKeyError, got %v", err)
	}
	if mk.Namespace != "app" || mk.Key != "absent" {
		t.Fatalf("error names wrong key: %+v", mk)
	}
}

func TestGetNeverFails(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "broken", Env("UNSET_VAR"))
	cc := newTestConfig(t, src, newCountingEnv(nil), nil)

	// absent key -> default
	if got := cc.Get(ctx, "app", "absent", "fallback"); got != "fallback" {
		t.Fatalf("Get absent = %v", got)
	}
	// unresolvable key -> default, no panic, no error channel
	if got := cc.Get(ctx, "app", "broken", "fallback"); got != "fallback" {
		t.Fatalf("Get unresolvable = %v", got)
	}
	// present key -> value, default ignored
	src.put("app", "ok", "v")
	if got := cc.Get(ctx, "app", "ok", "fallback"); got != "v" {
		t.Fatalf("Get present = %v", got)
	}
}

// ==============================
// Error propagation
// ==============================

// TestRefreshUnresolvedNotCached verifies a resolution failure
// propagates and leaves no cache entry behind, so a later Fetch retries
// the full read.
func TestRefreshUnresolvedNotCached(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "secret", Mapping{
		{Key: "token", Value: Env("SECRET")},
	})
	env := newCountingEnv(nil)
	cc := newTestConfig(t, src, env, nil)

	_, _, err := cc.Refresh(ctx, "app", "secret")
	var ue *UnresolvedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnresolvedError, got %v", err)
	}
	if ue.Namespace != "app" || ue.Name != "SECRET" {
		t.Fatalf("unexpected error contents: %+v", ue)
	}
	if want := []string{"secret", "token"}; !reflect.DeepEqual(ue.Path, want) {
		t.Fatalf("path = %v, want %v", ue.Path, want)
	}

	reads := src.readCount()
	if _, _, err := cc.Fetch(ctx, "app", "secret"); err == nil {
		t.Fatalf("Fetch must propagate the unresolved reference")
	}
	if src.readCount() != reads+1 {
		t.Fatalf("failed resolution must not be cached")
	}
}

// ==============================
// Batch change application
// ==============================

func TestApplyChange(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	// the store still holds stale raw values for bar; the change set,
	// not the store, is authoritative for changed/added pairs
	src.put("app", "bar", "stale")
	env := newCountingEnv(nil)
	cc := newTestConfig(t, src, env, nil)

	// warm foo so the removal has something to clear
	src.put("app", "foo", "gone-soon")
	if _, _, err := cc.Fetch(ctx, "app", "foo"); err != nil {
		t.Fatalf("warm foo: %v", err)
	}
	delete(src.m["app"], "foo")

	changed := []Entry{{Key: "bar", Value: "baz"}}
	added := []Entry{{Key: "baz", Value: "baz"}}
	removed := []string{"foo"}
	if err := cc.ApplyChange(ctx, "app", changed, added, removed); err != nil {
		t.Fatalf("ApplyChange: %v", err)
	}

	reads := src.readCount()
	if v, ok, err := cc.Fetch(ctx, "app", "bar"); err != nil || !ok || v != "baz" {
		t.Fatalf("Fetch bar = %v,%v,%v; want baz", v, ok, err)
	}
	if v, ok, err := cc.Fetch(ctx, "app", "baz"); err != nil || !ok || v != "baz" {
		t.Fatalf("Fetch baz = %v,%v,%v; want baz", v, ok, err)
	}
	if src.readCount() != reads {
		t.Fatalf("changed/added pairs must be served from cache, not the store")
	}
	if _, ok, err := cc.Fetch(ctx, "app", "foo"); err != nil || ok {
		t.Fatalf("Fetch foo after removal: ok=%v err=%v", ok, err)
	}
}

func TestApplyChangeResolvesReferences(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	env := newCountingEnv(map[string]string{"NEW_PORT": "9090"})
	cc := newTestConfig(t, src, env, nil)

	added := []Entry{{Key: "port", Value: Env("NEW_PORT")}}
	if err := cc.ApplyChange(ctx, "app", nil, added, nil); err != nil {
		t.Fatalf("ApplyChange: %v", err)
	}
	if v, ok, err := cc.Fetch(ctx, "app", "port"); err != nil || !ok || v != "9090" {
		t.Fatalf("Fetch port = %v,%v,%v; want 9090", v, ok, err)
	}
}

// ==============================
// Transforms
// ==============================

func TestTransformPathDispatch(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "key", Mapping{
		{Key: "host", Value: Mapping{
			{Key: "port", Value: Env("PORT")},
		}},
	})
	env := newCountingEnv(map[string]string{"PORT": "8080"})

	var seen []string
	tr := func(path []string, raw string) any {
		seen = append(seen[:0], path...)
		return raw
	}
	cc := newTestConfig(t, src, env, nil)

	if _, _, err := cc.Refresh(ctx, "app", "key", WithTransform(tr)); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if want := []string{"key", "host", "port"}; !reflect.DeepEqual(seen, want) {
		t.Fatalf("transform path = %v, want %v", seen, want)
	}
}

func TestPerCallTransformOverridesInstanceTransform(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "k", Env("V"))
	env := newCountingEnv(map[string]string{"V": "raw"})

	instance := func(_ []string, raw string) any { return "instance:" + raw }
	perCall := func(_ []string, raw string) any { return "call:" + raw }

	cc := newTestConfig(t, src, env, func(o *Options) { o.Transform = instance })

	v, _, err := cc.Refresh(ctx, "app", "k")
	if err != nil || v != "instance:raw" {
		t.Fatalf("instance transform: v=%v err=%v", v, err)
	}
	v, _, err = cc.Refresh(ctx, "app", "k", WithTransform(perCall))
	if err != nil || v != "call:raw" {
		t.Fatalf("per-call transform: v=%v err=%v", v, err)
	}
}

// ==============================
// Write-back resolution
// ==============================

func TestResolveStored(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "db", Mapping{
		{Key: "host", Value: EnvDefault("DB_HOST", "localhost")},
	})
	env := newCountingEnv(nil)
	lp := local.New()
	cc := newTestConfig(t, src, env, func(o *Options) { o.Provider = lp })

	if err := cc.ResolveStored(ctx, "app", "db"); err != nil {
		t.Fatalf("ResolveStored: %v", err)
	}

	// the store now holds the resolved value
	raw, ok, err := src.Read(ctx, "app", "db")
	if err != nil || !ok {
		t.Fatalf("store read-back: ok=%v err=%v", ok, err)
	}
	want := Mapping{{Key: "host", Value: "localhost"}}
	if !reflect.DeepEqual(raw, want) {
		t.Fatalf("stored value = %#v, want %#v", raw, want)
	}

	// the cache was bypassed entirely
	if lp.Len() != 0 {
		t.Fatalf("ResolveStored must not populate the cache, found %d entries", lp.Len())
	}

	// absent key is a no-op
	if err := cc.ResolveStored(ctx, "app", "absent"); err != nil {
		t.Fatalf("ResolveStored absent: %v", err)
	}
}

// ==============================
// Self-heal (corruption / staleness)
// ==============================

func TestSelfHealOnCorrupt(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "k", "good")
	env := newCountingEnv(nil)
	lp := local.New()
	hooks := newRecordingHooks()
	cc := newTestConfig(t, src, env, func(o *Options) {
		o.Provider = lp
		o.Hooks = hooks
	})

	// inject corrupt bytes under the entry's storage key
	storageKey := util.EntryKey("app", "k")
	if ok, err := lp.Set(ctx, storageKey, []byte("not-wire-format"), 0); err != nil || !ok {
		t.Fatalf("inject corrupt: ok=%v err=%v", ok, err)
	}

	// Fetch detects corruption, heals, and falls through to Refresh
	if v, ok, err := cc.Fetch(ctx, "app", "k"); err != nil || !ok || v != "good" {
		t.Fatalf("Fetch over corrupt entry = %v,%v,%v", v, ok, err)
	}
	if hooks.healCount("corrupt") != 1 {
		t.Fatalf("expected one corrupt self-heal, got %d", hooks.healCount("corrupt"))
	}

	// healed entry now serves from cache
	reads := src.readCount()
	if _, _, err := cc.Fetch(ctx, "app", "k"); err != nil {
		t.Fatalf("Fetch after heal: %v", err)
	}
	if src.readCount() != reads {
		t.Fatalf("healed entry should be cached")
	}
}

func TestSelfHealOnStaleGeneration(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "k", "v")
	env := newCountingEnv(nil)
	hooks := newRecordingHooks()
	cc := newTestConfig(t, src, env, func(o *Options) { o.Hooks = hooks })

	if _, _, err := cc.Fetch(ctx, "app", "k"); err != nil {
		t.Fatalf("warm Fetch: %v", err)
	}
	if err := cc.ClearNamespace(ctx, "app"); err != nil {
		t.Fatalf("ClearNamespace: %v", err)
	}

	// the old entry is still physically present but invisible; the read
	// deletes it and re-resolves
	if v, ok, err := cc.Fetch(ctx, "app", "k"); err != nil || !ok || v != "v" {
		t.Fatalf("Fetch after namespace clear = %v,%v,%v", v, ok, err)
	}
	if hooks.healCount("stale") != 1 {
		t.Fatalf("expected one stale self-heal, got %d", hooks.healCount("stale"))
	}
}

// ==============================
// Disabled mode
// ==============================

func TestDisabledBypassesCache(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "k", Env("V"))
	env := newCountingEnv(map[string]string{"V": "x"})
	cc := newTestConfig(t, src, env, func(o *Options) { o.Disabled = true })

	if cc.Enabled() {
		t.Fatalf("Enabled() must report false")
	}
	for i := 1; i <= 3; i++ {
		if v, ok, err := cc.Fetch(ctx, "app", "k"); err != nil || !ok || v != "x" {
			t.Fatalf("Fetch #%d = %v,%v,%v", i, v, ok, err)
		}
		if env.count() != i {
			t.Fatalf("disabled cache must resolve every time: %d calls after %d fetches", env.count(), i)
		}
	}
}

// ==============================
// Concurrency
// ==============================

// TestConcurrentAccess exercises mixed readers and invalidators; run
// with -race. Last write wins, nothing should error or corrupt.
func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	src := newMemStore()
	src.put("app", "k", Env("V"))
	env := newCountingEnv(map[string]string{"V": "x"})
	cc := newTestConfig(t, src, env, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch {
				case n%4 == 1 && j%10 == 0:
					_ = cc.Clear(ctx, "app", "k")
				case n%4 == 2 && j%25 == 0:
					_ = cc.ClearNamespace(ctx, "app")
				case n%4 == 3 && j%20 == 0:
					if _, _, err := cc.Refresh(ctx, "app", "k"); err != nil {
						t.Errorf("Refresh: %v", err)
					}
				default:
					if v, ok, err := cc.Fetch(ctx, "app", "k"); err != nil || !ok || v != "x" {
						t.Errorf("Fetch = %v,%v,%v", v, ok, err)
					}
				}
			}
		}(i)
	}
	wg.Wait()
}
