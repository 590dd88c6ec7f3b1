package ring

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Bits is the fixed size of the identifier space: 2^Bits points on the ring.
// ByteLen is the number of bytes used to store an ID (Bits/8, Bits is a
// multiple of 8 so no masking of unused high bits is needed, unlike the
// configurable-width space this package is derived from).
const (
	Bits    = 48
	ByteLen = Bits / 8
)

// ID is a point on the ring, stored big-endian.
type ID [ByteLen]byte

// HashID derives the ring identifier for an arbitrary string (a node's
// "name:port", or a "<topic>:<id>" record key) by taking the big-endian
// lower ByteLen bytes of its SHA-256 digest, per the node-id and
// record-key hash domains.
func HashID(s string) ID {
	sum := sha256.Sum256([]byte(s))
	var id ID
	copy(id[:], sum[len(sum)-ByteLen:])
	return id
}

// ToHexString renders the identifier as a lowercase hex string.
func (x ID) ToHexString() string {
	return hex.EncodeToString(x[:])
}

// ToBigInt interprets the identifier as an unsigned big-endian integer.
func (x ID) ToBigInt() *big.Int {
	return new(big.Int).SetBytes(x[:])
}

// Cmp compares two identifiers as unsigned big-endian integers.
//
//	-1 if x < b, 0 if x == b, +1 if x > b
func (x ID) Cmp(b ID) int {
	return bytes.Compare(x[:], b[:])
}

// Equal reports whether x and b denote the same ring point.
func (x ID) Equal(b ID) bool {
	return x == b
}

// Between reports whether x lies in the half-open circular interval (a, b].
//
// Interval semantics mirror the classic Chord definition:
//   - a == b: the whole ring, always true.
//   - a < b: linear interval, true iff a < x <= b.
//   - a > b: interval wraps through zero, true iff x > a or x <= b.
func (x ID) Between(a, b ID) bool {
	acmp := a.Cmp(x)
	xbcmp := x.Cmp(b)
	abcmp := a.Cmp(b)

	if abcmp == 0 {
		return true
	}
	if abcmp < 0 {
		return acmp < 0 && xbcmp <= 0
	}
	return acmp < 0 || xbcmp <= 0
}

// FingerStart computes self + 2^i mod 2^Bits, the starting point of the
// i-th finger interval, for i in [0, Bits).
func FingerStart(self ID, i int) ID {
	mod := new(big.Int).Lsh(big.NewInt(1), Bits)
	offset := new(big.Int).Lsh(big.NewInt(1), uint(i))
	sum := new(big.Int).Add(self.ToBigInt(), offset)
	sum.Mod(sum, mod)

	var out ID
	b := sum.Bytes()
	copy(out[ByteLen-len(b):], b)
	return out
}

// ParseID parses a hex-encoded identifier, validating its length against
// the ring's fixed ByteLen.
func ParseID(s string) (ID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, fmt.Errorf("ring: invalid hex id %q: %w", s, err)
	}
	if len(raw) != ByteLen {
		return ID{}, fmt.Errorf("ring: id %q has %d bytes, want %d", s, len(raw), ByteLen)
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// maxID is 2^Bits - 1, the largest representable identifier.
const maxID uint64 = (1 << Bits) - 1

// FromUint64 encodes an integer in [0, 2^Bits) as a ring identifier,
// truncating any higher bits. Used to turn the manifest's plain-integer
// "hash" field into an ID.
func FromUint64(v uint64) ID {
	v &= maxID
	var id ID
	for i := ByteLen - 1; i >= 0; i-- {
		id[i] = byte(v & 0xFF)
		v >>= 8
	}
	return id
}

// ToUint64 interprets the identifier as an unsigned integer.
func (x ID) ToUint64() uint64 {
	var v uint64
	for _, b := range x {
		v = v<<8 | uint64(b)
	}
	return v
}
