// Package depend implements the conservative, register-level dependency
// oracle the out-of-order scheduler (C9) uses to build its dependency
// DAG before issue.
//
// Grounded on proto/ooo/ooo.go's BuildDependencyMatrix (RAW-only check
// over a bitmap of producing instructions) and on the depends_on call
// site in original_source/src/sim/out_of_order.rs, whose body the
// original leaves unimplemented.
package depend

import "github.com/JulianKnodt/risc-v-sim/internal/isa"

// DependsOn reports whether later must not be reordered ahead of
// earlier under a conservative RAW-only register model. It never
// produces a false negative for the instruction subset this simulator
// executes: every real RAW hazard is reported, though some dependencies
// it reports are not strictly required (e.g. AUIPC-after-any-jump).
func DependsOn(later, earlier isa.DecodedInstr) bool {
	if later.Tag == isa.TagHalt {
		return true
	}
	if isHalt(earlier) {
		return true
	}

	switch later.Tag {
	case isa.TagJ:
		return false
	case isa.TagU:
		if later.USub == isa.LUI {
			return false
		}
		// AUIPC's result is pc-relative: any prior control-transfer
		// changes what "current pc" means for a not-yet-retired
		// instruction stream.
		return isControlTransfer(earlier)
	}

	if readsRs1(later) && earlier.WritesRd() && earlier.Rd == later.Rs1 {
		return true
	}
	if readsRs2(later) && earlier.WritesRd() && earlier.Rd == later.Rs2 {
		return true
	}

	if later.Tag == isa.TagI && later.ISub == isa.JALR && isControlTransfer(earlier) {
		return true
	}

	return false
}

func isHalt(d isa.DecodedInstr) bool { return d.Tag == isa.TagHalt }

func isControlTransfer(d isa.DecodedInstr) bool {
	switch d.Tag {
	case isa.TagJ, isa.TagB:
		return true
	case isa.TagI:
		return d.ISub == isa.JALR
	default:
		return false
	}
}

// readsRs1 reports whether instr consults its Rs1 field as a register
// read (as opposed to an unused/repurposed field, e.g. shift-by-shamt's
// Rs2).
func readsRs1(d isa.DecodedInstr) bool {
	switch d.Tag {
	case isa.TagR, isa.TagS, isa.TagB:
		return true
	case isa.TagI:
		switch d.ISub {
		case isa.ECALL, isa.EBREAK, isa.FENCE, isa.FENCEI,
			isa.CSRRWI, isa.CSRRSI, isa.CSRRCI:
			return false
		default:
			return true
		}
	default:
		return false
	}
}

// readsRs2 reports whether instr consults its Rs2 field as a register
// read. R-format shifts-by-shamt carry a literal shift amount in Rs2,
// not a register index, so they do not read it.
func readsRs2(d isa.DecodedInstr) bool {
	switch d.Tag {
	case isa.TagS, isa.TagB:
		return true
	case isa.TagR:
		switch d.RSub {
		case isa.SLLI, isa.SRLI, isa.SRAI:
			return false
		default:
			return true
		}
	default:
		return false
	}
}
