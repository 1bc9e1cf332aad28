// Package word provides the 32-bit machine-word abstraction the rest of
// the simulator is built on: an unsigned Word with a companion signed
// type, little-endian byte codecs, and the handful of operations the ISA
// semantics need (shift-by-low-5-bits, signed offset, truncation to a
// memory index).
//
// Modeled on original_source/src/reg.rs's RegData trait: a single
// concrete instantiation (32-bit) rather than a generic trait, since Go
// has no const-generic-free equivalent and the simulator only ever needs
// one width.
package word

import "encoding/binary"

// Word is the primary unsigned machine word: 32 bits, little-endian in
// memory.
type Word uint32

// Signed is Word's companion two's-complement type.
type Signed int32

// ToSigned reinterprets w as a Signed value. Bit-preserving: no value
// change, same as original_source's unsafe transmute::<u32,i32>.
func (w Word) ToSigned() Signed { return Signed(w) }

// FromSigned reinterprets a Signed value back into a Word.
func FromSigned(s Signed) Word { return Word(s) }

// Offset computes w + delta, modulo 2^32, i.e. W(iW(w) + delta).
func (w Word) Offset(delta Signed) Word {
	return FromSigned(w.ToSigned() + delta)
}

// AsIndex truncates w to a memory index. Memory is never larger than
// fits in an int on any platform this simulator targets.
func (w Word) AsIndex() int { return int(w) }

// Add returns w + other, wrapping modulo 2^32 (Go's uint32 arithmetic
// already wraps).
func (w Word) Add(other Word) Word { return w + other }

// Sub returns w - other, wrapping modulo 2^32.
func (w Word) Sub(other Word) Word { return w - other }

func (w Word) And(other Word) Word { return w & other }
func (w Word) Or(other Word) Word  { return w | other }
func (w Word) Xor(other Word) Word { return w ^ other }

// shiftAmount masks a shift count to the low 5 bits: on a 32-bit word the
// shift count is taken modulo 32.
func shiftAmount(by Word) uint { return uint(by & 0x1F) }

// ShiftLogicalLeft shifts w left, shift amount taken mod 32.
func (w Word) ShiftLogicalLeft(by Word) Word { return w << shiftAmount(by) }

// ShiftLogicalRight shifts w right with zero fill, shift amount mod 32.
func (w Word) ShiftLogicalRight(by Word) Word { return w >> shiftAmount(by) }

// ShiftArithmeticRight shifts the signed reinterpretation of w right,
// replicating the sign bit, shift amount mod 32.
func (w Word) ShiftArithmeticRight(by Word) Word {
	return FromSigned(w.ToSigned() >> shiftAmount(by))
}

// Less is unsigned ordering.
func (w Word) Less(other Word) bool { return w < other }

// SignedLess is signed ordering (compares the two's-complement
// reinterpretation of both operands).
func (w Word) SignedLess(other Word) bool {
	return w.ToSigned() < other.ToSigned()
}

// Zero is the additive identity, spelled out for readability at call
// sites that compare against "no value" (e.g. x0).
const Zero Word = 0

// Width in bytes of a Word.
const ByteSize = 4

// LittleEndianBytes returns w's little-endian byte representation.
func (w Word) LittleEndianBytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(w))
	return b
}

// FromLittleEndianBytes reconstructs a Word from (at least 4) little-endian
// bytes.
func FromLittleEndianBytes(b []byte) Word {
	return Word(binary.LittleEndian.Uint32(b))
}
