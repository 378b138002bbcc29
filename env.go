package confcache

import "os"

// EnvSource looks up environment variables by exact, case-sensitive
// name. The process environment is the default; MapEnv exists for
// fixtures and tests.
type EnvSource interface {
	Lookup(name string) (string, bool)
}

// OSEnv reads the process environment.
type OSEnv struct{}

func (OSEnv) Lookup(name string) (string, bool) { return os.LookupEnv(name) }

// MapEnv is a fixed in-memory environment.
type MapEnv map[string]string

func (m MapEnv) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}
