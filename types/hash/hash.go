// Package hash implements the structural hash used to identify IR nodes and graphs.
//
// Hashes are 64 bits, deterministic across processes (they don't depend on a random seed),
// so they can be used as keys of caches of compiled graphs.
//
// Combine is order-sensitive: folding the same hashes in a different order yields (with
// overwhelming probability) a different result.
package hash

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hash is a structural hash value.
type Hash uint64

const (
	// Seed is the default seed of node hashes: 0x5a2d296e9 truncated to 32 bits.
	Seed Hash = 0xa2d296e9

	// NullOpt is folded in place of absent (null) operands.
	NullOpt Hash = 0x6e756c6c6f7074

	// goldenRatio is used to spread the bits in Combine.
	goldenRatio = 0x9e3779b97f4a7c15
)

// String implements fmt.Stringer.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// DataHash returns the hash of a raw sequence of bytes.
func DataHash(data []byte) Hash {
	return Hash(xxhash.Sum64(data))
}

// Combine mixes b into a. It is not commutative.
func Combine(a, b Hash) Hash {
	return a ^ (b + goldenRatio + (a << 6) + (a >> 2))
}

// Many folds Combine over the given hashes, starting from the first. It returns 0 if none is given.
func Many(hashes ...Hash) Hash {
	if len(hashes) == 0 {
		return 0
	}
	h := hashes[0]
	for _, other := range hashes[1:] {
		h = Combine(h, other)
	}
	return h
}

// Uint64 returns the hash of the little-endian bytes of v.
func Uint64(v uint64) Hash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return DataHash(buf[:])
}

// Int returns the hash of v as an int64.
func Int(v int) Hash {
	return Uint64(uint64(int64(v)))
}

// Bool returns the hash of a boolean.
func Bool(v bool) Hash {
	if v {
		return Uint64(1)
	}
	return Uint64(0)
}

// Float64 returns the hash of the IEEE-754 bits of v.
func Float64(v float64) Hash {
	return Uint64(math.Float64bits(v))
}

// String returns the hash of the UTF-8 bytes of s.
func String(s string) Hash {
	return Hash(xxhash.Sum64String(s))
}

// Ints returns the hash of the raw bytes of the values, each one encoded as a little-endian int64.
// Different values (or a different order) yield a different hash.
func Ints(values []int) Hash {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(int64(v)))
	}
	return DataHash(buf)
}
