package confcache

import (
	"fmt"
	"strings"
)

// UnresolvedError reports a required environment reference whose
// variable is not set. Path is the root-to-leaf location of the
// reference, starting at the configuration key.
type UnresolvedError struct {
	Namespace string
	Name      string // environment variable name
	Path      []string
}

func (e *UnresolvedError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("confcache: %s: environment variable %q is not set",
			e.Namespace, e.Name)
	}
	return fmt.Sprintf("confcache: %s: environment variable %q referenced at %s is not set",
		e.Namespace, e.Name, strings.Join(e.Path, "."))
}

// MissingKeyError reports a MustFetch on a key that resolved to
// not-found.
type MissingKeyError struct {
	Namespace string
	Key       string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("confcache: key %q not found in namespace %q", e.Key, e.Namespace)
}
