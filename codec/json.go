package codec

import "encoding/json"

// JSON serializes Node trees as JSON. Numeric scalars decode as
// float64, per encoding/json.
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Encode(n *Node) ([]byte, error) { return json.Marshal(n) }
func (JSON) Decode(b []byte) (*Node, error) {
	n := new(Node)
	if err := json.Unmarshal(b, n); err != nil {
		return nil, err
	}
	return n, nil
}
