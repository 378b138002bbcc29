package confcache

// resolveValue walks a raw configuration value and substitutes
// environment references. path accumulates leaf-first: each descent
// prepends the current key, and the slice is reversed to root-to-leaf
// order only at the point a reference is actually resolved.
func resolveValue(v any, namespace string, path []string, env EnvSource, tr Transform) (any, error) {
	switch x := v.(type) {
	case EnvRef:
		raw, ok := env.Lookup(x.Name)
		if !ok {
			if x.HasDefault {
				// defaults are literals in the target type; they skip
				// the transform and are not re-resolved
				return x.Default, nil
			}
			return nil, &UnresolvedError{Namespace: namespace, Name: x.Name, Path: rootToLeaf(path)}
		}
		return tr(rootToLeaf(path), raw), nil
	case Mapping:
		out := make(Mapping, len(x))
		for i, e := range x {
			rv, err := resolveValue(e.Value, namespace, prepend(e.Key, path), env, tr)
			if err != nil {
				return nil, err
			}
			out[i] = Entry{Key: e.Key, Value: rv}
		}
		return out, nil
	default:
		// scalars, slices and malformed shapes pass through untouched;
		// recursion descends only into Mapping containers
		return v, nil
	}
}

func rootToLeaf(path []string) []string {
	out := make([]string, len(path))
	for i, p := range path {
		out[len(path)-1-i] = p
	}
	return out
}

func prepend(key string, path []string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, key)
	return append(out, path...)
}
