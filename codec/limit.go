package codec

import "fmt"

// LimitCodec wraps another codec to enforce a maximum allowed payload
// size at Decode time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized inputs coming from a shared
// cache backend or an untrusted configuration source.
type LimitCodec struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec
	// MaxDecode is the maximum permitted length (in bytes) of the
	// incoming payload for Decode. If exceeded, Decode returns an
	// error without invoking Inner.
	MaxDecode int
}

var _ Codec = LimitCodec{}

func (c LimitCodec) Encode(n *Node) ([]byte, error) { return c.Inner.Encode(n) }
func (c LimitCodec) Decode(b []byte) (*Node, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		return nil, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
