// Package isa holds the decoded-instruction representation (C4's output),
// the pure decode function itself, and the output-directive type the
// semantic kernel (C6) produces.
//
// Field masks and immediate composition follow
// original_source/src/instr.rs's r/i/s/b/u/j submodules; sub-op sets
// follow spec.md §3's tag table, extended with the CSR/FENCE/ECALL/EBREAK
// sub-ops original_source leaves unimplemented (see SPEC_FULL.md §4.6).
package isa

import "github.com/JulianKnodt/risc-v-sim/internal/word"

// Reg is a 5-bit unsigned register index (0..31).
type Reg uint8

// Tag identifies which ISA format a decoded instruction uses.
type Tag int

const (
	TagR Tag = iota
	TagI
	TagS
	TagB
	TagU
	TagJ
	TagHalt
)

func (t Tag) String() string {
	switch t {
	case TagR:
		return "R"
	case TagI:
		return "I"
	case TagS:
		return "S"
	case TagB:
		return "B"
	case TagU:
		return "U"
	case TagJ:
		return "J"
	case TagHalt:
		return "Halt"
	default:
		return "Unknown"
	}
}

// RSubOp enumerates R-format sub-operations.
type RSubOp int

const (
	ADD RSubOp = iota
	SUB
	SLL
	SLT
	SLTU
	XOR
	SRL
	SRA
	OR
	AND
	SLLI
	SRLI
	SRAI
)

// ISubOp enumerates I-format sub-operations, including the recognized-
// but-never-executed CSR/system family (SPEC_FULL.md §4.6).
type ISubOp int

const (
	JALR ISubOp = iota
	LB
	LH
	LW
	LBU
	LHU
	ADDI
	SLTI
	SLTIU
	XORI
	ORI
	ANDI
	ECALL
	EBREAK
	CSRRW
	CSRRS
	CSRRC
	CSRRWI
	CSRRSI
	CSRRCI
	FENCE
	FENCEI
)

// SSubOp enumerates S-format sub-operations.
type SSubOp int

const (
	SB SSubOp = iota
	SH
	SW
)

// BSubOp enumerates B-format sub-operations.
type BSubOp int

const (
	BEQ BSubOp = iota
	BNE
	BLT
	BGE
	BLTU
	BGEU
)

// USubOp enumerates U-format sub-operations.
type USubOp int

const (
	LUI USubOp = iota
	AUIPC
)

// JSubOp enumerates J-format sub-operations (only JAL exists in this
// subset).
type JSubOp int

const (
	JAL JSubOp = iota
)

// DecodedInstr is the tagged variant C4 produces: exactly one of the
// per-tag payloads is meaningful, selected by Tag.
type DecodedInstr struct {
	Tag Tag

	RSub RSubOp
	ISub ISubOp
	SSub SSubOp
	BSub BSubOp
	USub USubOp
	JSub JSubOp

	Rs1, Rs2, Rd Reg

	// SXImm is the sign-extended immediate (I, B, J formats).
	SXImm word.Signed
	// ZXImm is the zero-extended immediate (I format) or the raw
	// already-shifted immediate (S, U formats).
	ZXImm word.Word
}

// IsControlTransfer reports whether instr can redirect the PC outside of
// the straight-line pc+4 path (used by the in-order pipeline's ID
// re-steering logic; the dependency oracle keeps its own, Halt-free check).
func (d DecodedInstr) IsControlTransfer() bool {
	switch d.Tag {
	case TagJ:
		return true
	case TagB:
		return true
	case TagI:
		return d.ISub == JALR
	case TagHalt:
		return true
	default:
		return false
	}
}

// WritesRd reports whether instr has a meaningful Rd that semantics write
// to (S, B, and Halt never write a register).
func (d DecodedInstr) WritesRd() bool {
	switch d.Tag {
	case TagR, TagU, TagJ:
		return true
	case TagI:
		switch d.ISub {
		case ECALL, EBREAK, FENCE, FENCEI,
			CSRRW, CSRRS, CSRRC, CSRRWI, CSRRSI, CSRRCI:
			return false
		default:
			return true
		}
	default:
		return false
	}
}

// IsSystem reports whether instr is a privileged/system/fence
// instruction: decode-recognized but never executed (spec.md §7).
func (d DecodedInstr) IsSystem() bool {
	if d.Tag != TagI {
		return false
	}
	switch d.ISub {
	case ECALL, EBREAK, FENCE, FENCEI,
		CSRRW, CSRRS, CSRRC, CSRRWI, CSRRSI, CSRRCI:
		return true
	default:
		return false
	}
}
