package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes Node trees using vmihailenco/msgpack/v5.
// The zero value is ready to use.
type Msgpack struct{}

var _ Codec = Msgpack{}

func (Msgpack) Encode(n *Node) ([]byte, error) {
	return msgpack.Marshal(n)
}

func (Msgpack) Decode(b []byte) (*Node, error) {
	n := new(Node)
	if err := msgpack.Unmarshal(b, n); err != nil {
		return nil, err
	}
	return n, nil
}
