// Package confcache implements a cached configuration-resolution layer.
// It reads raw values from a pluggable configuration source, recursively
// substitutes environment-variable references (with optional defaults),
// and caches fully resolved results per (namespace, key) until
// explicitly invalidated.
//
// Components:
//   - Store: the configuration source of record (read/write by
//     namespace and key).
//   - EnvSource: environment-variable lookup (process env by default).
//   - Provider: byte store holding resolved entries (in-process map by
//     default; Ristretto, BigCache and Redis backends available).
//   - codec.Codec: serializes value trees for the provider and for
//     serialized sources.
//
// Values are plain Go scalars, ordered Mapping trees, and EnvRef
// markers built with Env / EnvDefault:
//
//	src.Write(ctx, "billing", "db", confcache.Mapping{
//	    {Key: "host", Value: confcache.EnvDefault("DB_HOST", "localhost")},
//	    {Key: "port", Value: confcache.EnvDefault("DB_PORT", int64(5432))},
//	    {Key: "password", Value: confcache.Env("DB_PASSWORD")},
//	})
//
//	cfg, _ := confcache.New(confcache.Options{Source: src})
//	db, ok, err := cfg.Fetch(ctx, "billing", "db")
//
// Resolution is deterministic against the current environment; there is
// no background refresh or expiry. Call Refresh, Clear, ClearNamespace
// or ApplyChange when configuration changes at runtime.
package confcache
