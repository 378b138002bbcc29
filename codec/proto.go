package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Proto serializes Node trees as a protobuf well-known Struct value
// (google.protobuf.Value). Useful when the surrounding system already
// speaks protobuf. Numeric scalars normalize to float64 and []byte
// scalars to base64 strings, per structpb; scalars outside the
// JSON-like set fail at Encode.
type Proto struct{}

var _ Codec = Proto{}

func (Proto) Encode(n *Node) ([]byte, error) {
	v, err := structpb.NewValue(nodeToAny(n))
	if err != nil {
		return nil, fmt.Errorf("proto codec: %w", err)
	}
	return proto.Marshal(v)
}

func (Proto) Decode(b []byte) (*Node, error) {
	v := new(structpb.Value)
	if err := proto.Unmarshal(b, v); err != nil {
		return nil, err
	}
	return anyToNode(v.AsInterface())
}

func nodeToAny(n *Node) any {
	out := map[string]any{"k": n.Kind}
	switch n.Kind {
	case KindScalar:
		out["v"] = n.Scalar
	case KindMapping:
		entries := make([]any, 0, len(n.Entries))
		for _, e := range n.Entries {
			entries = append(entries, map[string]any{"k": e.Key, "v": nodeToAny(e.Value)})
		}
		out["m"] = entries
	case KindEnvRef:
		out["n"] = n.Name
		if n.HasDefault {
			out["hd"] = true
			out["d"] = nodeToAny(n.Default)
		}
	}
	return out
}

func anyToNode(v any) (*Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("proto codec: unexpected node shape %T", v)
	}
	kind, _ := m["k"].(string)
	n := &Node{Kind: kind}
	switch kind {
	case KindScalar:
		n.Scalar = m["v"]
	case KindMapping:
		entries, _ := m["m"].([]any)
		n.Entries = make([]MapEntry, 0, len(entries))
		for _, raw := range entries {
			em, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("proto codec: unexpected entry shape %T", raw)
			}
			key, _ := em["k"].(string)
			val, err := anyToNode(em["v"])
			if err != nil {
				return nil, err
			}
			n.Entries = append(n.Entries, MapEntry{Key: key, Value: val})
		}
	case KindEnvRef:
		n.Name, _ = m["n"].(string)
		if hd, _ := m["hd"].(bool); hd {
			d, err := anyToNode(m["d"])
			if err != nil {
				return nil, err
			}
			n.HasDefault = true
			n.Default = d
		}
	default:
		return nil, fmt.Errorf("proto codec: unknown node kind %q", kind)
	}
	return n, nil
}
