package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1

	stateFound   byte = 1
	stateMissing byte = 2
)

var (
	ErrCorrupt = errors.New("confcache: corrupt entry")
	magic4     = [...]byte{'C', 'F', 'G', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | state(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
//
// gen is the namespace generation observed at write time; an entry
// whose gen trails the current namespace generation is stale.
// A "missing" entry caches a confirmed absence and carries no payload.
func EncodeFound(gen uint64, payload []byte) []byte {
	return encode(stateFound, gen, payload)
}

func EncodeMissing(gen uint64) []byte {
	return encode(stateMissing, gen, nil)
}

func encode(state byte, gen uint64, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(state)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func Decode(b []byte) (gen uint64, found bool, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return 0, false, nil, ErrCorrupt
	}
	state := b[5]
	if state != stateFound && state != stateMissing {
		return 0, false, nil, ErrCorrupt
	}

	off := 6

	gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
		return 0, false, nil, ErrCorrupt
	}

	if state == stateMissing {
		if vlen != 0 {
			return 0, false, nil, ErrCorrupt
		}
		return gen, false, nil, nil
	}
	return gen, true, b[off : off+vlen], nil
}
