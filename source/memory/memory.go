// Package memory is an in-process configuration Store: a mutex-guarded
// two-level map. Useful for tests and for applications that assemble
// configuration at startup.
package memory

import (
	"context"
	"sync"

	"github.com/unkn0wn-root/confcache"
)

type Store struct {
	mu sync.RWMutex
	m  map[string]map[string]any // namespace -> key -> raw value
}

var _ confcache.Store = (*Store)(nil)

func New() *Store {
	return &Store{m: make(map[string]map[string]any)}
}

func (s *Store) Read(_ context.Context, namespace, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.m[namespace]
	if !ok {
		return nil, false, nil
	}
	v, ok := ns[key]
	return v, ok, nil
}

func (s *Store) Write(_ context.Context, namespace, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.m[namespace]
	if !ok {
		ns = make(map[string]any)
		s.m[namespace] = ns
	}
	ns[key] = value
	return nil
}

// Delete removes one key. Not part of the Store contract; convenient
// for tests simulating configuration removal.
func (s *Store) Delete(namespace, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.m[namespace]; ok {
		delete(ns, key)
	}
}
