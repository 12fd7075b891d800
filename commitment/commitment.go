// Package commitment implements the split-value voting commitment
// primitive of spec §4.1: a binding, hiding commitment c = C(value, r) =
// H(encode(value) ‖ r), modeled on a collision-resistant hash H.
package commitment

import (
	"crypto/subtle"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// Size is the length in bytes of a commitment value.
const Size = 32

// EncodeBytes canonically encodes an opaque byte string as a
// length-prefixed blob (spec §4.1 "length-prefixed for byte strings"),
// mirroring the teacher's types.BallotMode writeBigInt/readBigInt framing.
func EncodeBytes(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(out[:4], uint32(len(b)))
	copy(out[4:], b)
	return out
}

// Commit computes c = H(valueBytes ‖ r), where valueBytes is the caller's
// canonical encoding of the committed value (fixed-width big-endian for a
// field element via types.FieldElem.Bytes, or EncodeBytes for an opaque
// byte string) and r is the randomizer.
//
// H is keccak256 (github.com/ethereum/go-ethereum/crypto.Keccak256), the
// hash primitive already pulled in by the teacher's dependency graph for
// exactly this kind of preimage-committing use.
func Commit(valueBytes, r []byte) []byte {
	buf := make([]byte, 0, len(valueBytes)+len(r))
	buf = append(buf, valueBytes...)
	buf = append(buf, r...)
	return crypto.Keccak256(buf)
}

// Open recomputes C(valueBytes, r) and reports whether it equals c, in
// constant time with respect to the comparison itself (the values being
// compared are already public once disclosed, so this guards against
// nothing sensitive — it is simply the idiomatic way to compare digests).
func Open(c, valueBytes, r []byte) bool {
	got := Commit(valueBytes, r)
	return len(got) == len(c) && subtle.ConstantTimeCompare(got, c) == 1
}
