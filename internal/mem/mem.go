// Package mem implements the flat byte-addressable memory (C2): typed
// reads/writes at BYTE/HALF/WORD granularities, sign-extending reads, and
// a per-instance FIFO of pending stores used by the in-order pipeline to
// defer a store's visible effect to its WB tick.
//
// Grounded on original_source/src/mem.rs's Memory/Size, extended with the
// pending-store queue spec.md §4.2 requires (the original has no staged
// stores at all).
package mem

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/JulianKnodt/risc-v-sim/internal/word"
)

// Size is the access granularity of a memory operation.
type Size int

const (
	BYTE Size = 1
	HALF Size = 2
	WORD Size = 4
)

func (s Size) String() string {
	switch s {
	case BYTE:
		return "BYTE"
	case HALF:
		return "HALF"
	case WORD:
		return "WORD"
	default:
		return fmt.Sprintf("Size(%d)", int(s))
	}
}

// ErrOutOfBounds is returned whenever addr+width exceeds the memory's
// size. Alignment is never checked at this layer: the ISA allows byte
// addressing (LB/SB etc.).
var ErrOutOfBounds = errors.New("mem: address out of bounds")

// ErrEmpty is returned by CommitStore when the pending queue has nothing
// to drain.
var ErrEmpty = errors.New("mem: pending store queue is empty")

// pendingStore is one entry of the append-only, in-arrival-order FIFO of
// deferred writes.
type pendingStore struct {
	addr  int
	value word.Word
	width Size
}

// Memory owns a mutable byte sequence plus a FIFO of pending stores.
type Memory struct {
	data    []byte
	pending []pendingStore
}

// DefaultSize is the simulator's default memory size per spec.md §6.
const DefaultSize = 65536

// New allocates a zeroed memory of the given size in bytes.
func New(size int) *Memory {
	return &Memory{data: make([]byte, size)}
}

// Size returns the memory's total byte capacity.
func (m *Memory) Size() int { return len(m.data) }

func (m *Memory) bounds(addr int, width Size) error {
	if addr < 0 || addr+int(width) > len(m.data) {
		return fmt.Errorf("%w: addr=%#x width=%d size=%#x", ErrOutOfBounds, addr, int(width), len(m.data))
	}
	return nil
}

// Read returns a zero-extended value of the given width, read as
// little-endian from addr.
func (m *Memory) Read(addr int, width Size) (word.Word, error) {
	if err := m.bounds(addr, width); err != nil {
		return 0, err
	}
	return readLE(m.data[addr:addr+int(width)], width), nil
}

// ReadSigned is Read, but the result is sign-extended from width bits to
// 32.
func (m *Memory) ReadSigned(addr int, width Size) (word.Signed, error) {
	v, err := m.Read(addr, width)
	if err != nil {
		return 0, err
	}
	return signExtendFrom(v, width), nil
}

// ReadInstr always reads a full WORD, zero-extended (instructions are
// fetched whole).
func (m *Memory) ReadInstr(addr int) (word.Word, error) {
	return m.Read(addr, WORD)
}

// Write writes the low width bytes of value, little-endian, directly into
// the byte array (no staging).
func (m *Memory) Write(addr int, value word.Word, width Size) error {
	if err := m.bounds(addr, width); err != nil {
		return err
	}
	writeLE(m.data[addr:addr+int(width)], value, width)
	return nil
}

// QueueStore appends (addr, value, width) to the pending FIFO without
// modifying bytes yet. May be called repeatedly; bounds are not checked
// until commit, matching spec.md §4.2 ("a failure at commit time becomes
// a memory exception to the enclosing driver").
func (m *Memory) QueueStore(addr int, value word.Word, width Size) {
	m.pending = append(m.pending, pendingStore{addr: addr, value: value, width: width})
}

// CommitStore pops the oldest pending store and applies it.
func (m *Memory) CommitStore() error {
	if len(m.pending) == 0 {
		return ErrEmpty
	}
	ps := m.pending[0]
	m.pending = m.pending[1:]
	return m.Write(ps.addr, ps.value, ps.width)
}

// PendingStoreCount reports how many stores are queued but not yet
// committed. Exposed for tests and for drivers that want to assert the
// queue drains in arrival order.
func (m *Memory) PendingStoreCount() int { return len(m.pending) }

func readLE(b []byte, width Size) word.Word {
	var buf [4]byte
	copy(buf[:], b)
	switch width {
	case BYTE:
		return word.Word(buf[0])
	case HALF:
		return word.Word(binary.LittleEndian.Uint16(buf[:2]))
	default:
		return word.Word(binary.LittleEndian.Uint32(buf[:4]))
	}
}

func writeLE(dst []byte, value word.Word, width Size) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(value))
	copy(dst, buf[:int(width)])
}

// signExtendFrom sign-extends the low width*8 bits of v to a full 32-bit
// Signed value.
func signExtendFrom(v word.Word, width Size) word.Signed {
	switch width {
	case BYTE:
		return word.Signed(int32(int8(uint8(v))))
	case HALF:
		return word.Signed(int32(int16(uint16(v))))
	default:
		return v.ToSigned()
	}
}
