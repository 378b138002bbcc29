package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR serializes Node trees using fxamacker/cbor. This is the default
// codec: compact, fast, and it keeps integer scalars integral (decoded
// as int64 rather than float64).
//
// The zero value is NOT ready to use. Construct with NewCBOR or
// MustCBOR. Use deterministic=true for canonical encoding (RFC 8949
// Core Deterministic) when you need byte-for-byte stable outputs;
// otherwise PreferredUnsortedEncOptions are used.
type CBOR struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec = CBOR{}

// NewCBOR constructs a CBOR codec. Time values encode as RFC3339Nano
// and integers decode signed so scalar comparisons behave across a
// cache round-trip.
func NewCBOR(deterministic bool) (CBOR, error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR{}, err
	}
	dm, err := (cbor.DecOptions{IntDec: cbor.IntDecConvertSigned}).DecMode()
	if err != nil {
		return CBOR{}, err
	}
	return CBOR{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error. Handy for
// package-level variables in tests/examples.
func MustCBOR(deterministic bool) CBOR {
	c, err := NewCBOR(deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR) Encode(n *Node) ([]byte, error) {
	return c.enc.Marshal(n)
}

func (c CBOR) Decode(b []byte) (*Node, error) {
	n := new(Node)
	if err := c.dec.Unmarshal(b, n); err != nil {
		return nil, err
	}
	return n, nil
}
