package isa

import "github.com/JulianKnodt/risc-v-sim/internal/word"

// ExceptionKind distinguishes the fault categories drivers can surface.
type ExceptionKind int

const (
	ExceptionMem ExceptionKind = iota
	ExceptionDecode
)

func (e ExceptionKind) String() string {
	switch e {
	case ExceptionMem:
		return "Mem"
	case ExceptionDecode:
		return "Decode"
	default:
		return "Unknown"
	}
}

// DirectiveKind tags which architectural side effect a Directive
// represents.
type DirectiveKind int

const (
	DirNop DirectiveKind = iota
	DirSetPC
	DirWriteReg
	DirStore
	DirException
	DirHalt
	DirLoadFault
)

// Directive is a single architectural side effect produced by the
// semantic kernel (C6). Idempotent when applied exactly once against the
// same pre-state.
//
// Modeled on original_source/src/sim/out_of_order.rs's
// OutputDirective<T> enum (PC/Reg/Exception/MemStore/Nop/Halt).
type Directive struct {
	Kind DirectiveKind

	// DirSetPC
	PC word.Word

	// DirWriteReg
	RegIndex Reg
	RegValue word.Word

	// DirStore
	StoreAddr  word.Word
	StoreValue word.Word
	StoreWidth int // byte width; kept as a plain int to avoid an
	// internal/mem import cycle (isa is lower in the dependency order than
	// mem's consumers need; the kernel translates this into mem.Size).

	// DirException
	Exception ExceptionKind
}

// LoadFaultDirective reports a failed memory read for an I-type load.
// Unlike DirException, drivers are not required to treat this as a hard
// stop: the sequential model recovers from it by leaving rd unchanged
// (original_source/src/sim/normal.rs's unwrap_or_else(|_| ps.regs[rd].v())),
// while the pipelined models still hard-fault on it.
func LoadFaultDirective() Directive { return Directive{Kind: DirLoadFault} }

func Nop() Directive { return Directive{Kind: DirNop} }

func SetPC(pc word.Word) Directive { return Directive{Kind: DirSetPC, PC: pc} }

func WriteReg(index Reg, value word.Word) Directive {
	return Directive{Kind: DirWriteReg, RegIndex: index, RegValue: value}
}

func Store(addr, value word.Word, width int) Directive {
	return Directive{Kind: DirStore, StoreAddr: addr, StoreValue: value, StoreWidth: width}
}

func ExceptionDirective(kind ExceptionKind) Directive {
	return Directive{Kind: DirException, Exception: kind}
}

func HaltDirective() Directive { return Directive{Kind: DirHalt} }
