package confcache

import (
	c "github.com/unkn0wn-root/confcache/codec"
)

// Entry is one ordered key/value pair of a Mapping.
type Entry struct {
	Key   string
	Value any
}

// Mapping is an identifier-keyed configuration value with preserved
// entry order. It is the only container the resolver descends into;
// slices and other containers are treated as opaque scalars.
type Mapping []Entry

// Get returns the value for key, scanning in entry order.
func (m Mapping) Get(key string) (any, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// EnvRef marks a position in configuration data whose value comes from
// an environment variable. A reference without a default is required:
// resolving it with the variable unset fails with UnresolvedError.
// A default is returned as-is when the variable is unset; it is assumed
// to already be in the target type and is NOT passed through the
// transform, nor re-resolved if it happens to contain references.
type EnvRef struct {
	Name       string
	Default    any
	HasDefault bool
}

// Env builds a required environment reference.
func Env(name string) EnvRef {
	return EnvRef{Name: name}
}

// EnvDefault builds an environment reference that falls back to def
// when the variable is unset. def may be nil.
func EnvDefault(name string, def any) EnvRef {
	return EnvRef{Name: name, Default: def, HasDefault: true}
}

// Transform converts a raw environment string into a typed value, given
// the root-to-leaf path (starting at the entry key) where the reference
// occurs. It is applied only to strings obtained from the environment,
// never to defaults or to values that are not references.
type Transform func(path []string, raw string) any

func identityTransform(_ []string, raw string) any { return raw }

// ToNode converts a value to its portable codec form. Unknown types
// become scalar nodes holding the value unchanged.
func ToNode(v any) *c.Node {
	switch x := v.(type) {
	case EnvRef:
		n := &c.Node{Kind: c.KindEnvRef, Name: x.Name}
		if x.HasDefault {
			n.HasDefault = true
			n.Default = ToNode(x.Default)
		}
		return n
	case Mapping:
		n := &c.Node{Kind: c.KindMapping, Entries: make([]c.MapEntry, 0, len(x))}
		for _, e := range x {
			n.Entries = append(n.Entries, c.MapEntry{Key: e.Key, Value: ToNode(e.Value)})
		}
		return n
	default:
		return &c.Node{Kind: c.KindScalar, Scalar: v}
	}
}

// FromNode is the inverse of ToNode. A nil or unknown-kind node decodes
// to nil.
func FromNode(n *c.Node) any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case c.KindMapping:
		m := make(Mapping, 0, len(n.Entries))
		for _, e := range n.Entries {
			m = append(m, Entry{Key: e.Key, Value: FromNode(e.Value)})
		}
		return m
	case c.KindEnvRef:
		r := EnvRef{Name: n.Name, HasDefault: n.HasDefault}
		if n.HasDefault {
			r.Default = FromNode(n.Default)
		}
		return r
	case c.KindScalar:
		return n.Scalar
	default:
		return nil
	}
}
