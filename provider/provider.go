// Package provider defines the byte-store abstraction the cache
// writes resolved entries through.
//
// Implementations MUST be byte-for-byte transparent: Get must return
// exactly the same []byte that was previously passed to Set for a key
// (no prepended/appended metadata, no re-encoding, no mutation). If a
// store performs internal transforms (e.g., compression), they MUST be
// fully reversed so that the bytes returned by Get are identical to
// the bytes provided to Set.
//
// Important: the "cfg:" keyspace is owned by confcache. External code
// MUST NOT write values under this prefix. Foreign writes may be
// treated as corruption by strict wire-format validation and deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store. Must be safe for concurrent use.
// TTL is advisory: 0 (or negative) means no expiry; stores without
// per-entry TTL support may ignore it.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. Returns ok=false when the
	// store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
