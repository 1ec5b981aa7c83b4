package wsframe

import (
	"encoding/binary"
	"math/bits"
	"math/rand/v2"
)

// newMaskKey returns a pseudorandom masking key. Masking only defeats proxy
// cache poisoning, so a non-cryptographic source is enough.
func newMaskKey() [4]byte {
	var key [4]byte
	binary.LittleEndian.PutUint32(key[:], rand.Uint32())
	return key
}

// maskBytes XORs b with key starting at key offset pos and returns the next offset.
func maskBytes(key [4]byte, pos int, b []byte) int {
	if len(b) < 8 {
		for i := range b {
			b[i] ^= key[pos&3]
			pos++
		}
		return pos & 3
	}

	key64 := uint64(binary.LittleEndian.Uint32(key[:]))
	key64 |= key64 << 32
	key64 = bits.RotateLeft64(key64, -(pos&3)*8)

	i := 0
	for ; len(b)-i >= 8; i += 8 {
		binary.LittleEndian.PutUint64(b[i:], binary.LittleEndian.Uint64(b[i:])^key64)
	}
	for ; i < len(b); i++ {
		b[i] ^= key[pos&3]
		pos++
	}
	return pos & 3
}
