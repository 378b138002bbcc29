// Package codec serializes configuration value trees for storage.
//
// Values travel as *Node trees: a self-describing tagged shape that
// preserves mapping entry order and keeps environment-reference markers
// distinct from ordinary containers in every format. This is what lets
// a byte store (or a serialized configuration source) round-trip a
// reference literal without confusing it with data.
package codec

// Node kinds.
const (
	KindScalar  = "s"
	KindMapping = "m"
	KindEnvRef  = "e"
)

// Node is the portable form of a single configuration value.
// Exactly one of the kind-specific field groups is meaningful,
// selected by Kind.
type Node struct {
	Kind string `json:"k" msgpack:"k"`

	// KindScalar. Numeric scalars normalize to whatever the format
	// decodes (CBOR: int64/float64; JSON and proto: float64).
	Scalar any `json:"v" msgpack:"v"`

	// KindMapping, in entry order.
	Entries []MapEntry `json:"m,omitempty" msgpack:"m,omitempty"`

	// KindEnvRef. Default is meaningful only when HasDefault is set;
	// a reference may carry an explicit nil default.
	Name       string `json:"n,omitempty" msgpack:"n,omitempty"`
	Default    *Node  `json:"d,omitempty" msgpack:"d,omitempty"`
	HasDefault bool   `json:"hd,omitempty" msgpack:"hd,omitempty"`
}

// MapEntry is one ordered key/value pair of a mapping node.
type MapEntry struct {
	Key   string `json:"k" msgpack:"k"`
	Value *Node  `json:"v" msgpack:"v"`
}

// Codec encodes/decodes Node trees to []byte for storage.
type Codec interface {
	Encode(*Node) ([]byte, error)
	Decode([]byte) (*Node, error)
}
