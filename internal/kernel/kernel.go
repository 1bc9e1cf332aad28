// Package kernel implements the semantic kernel (C6): a pure function
// from (pc, decoded instruction, read-only state) to the set of
// architectural side effects the instruction would cause. It never
// mutates state and never panics; every driver applies its own copy of
// the returned directives against its own state.
//
// Grounded on original_source/src/sim/normal.rs's run_instr match arms,
// which enumerate exactly this per-opcode semantics, and on
// original_source/src/sim/out_of_order.rs's OutputDirective::from for
// the directive-shape contract.
package kernel

import (
	"github.com/JulianKnodt/risc-v-sim/internal/isa"
	"github.com/JulianKnodt/risc-v-sim/internal/mem"
	"github.com/JulianKnodt/risc-v-sim/internal/sim"
	"github.com/JulianKnodt/risc-v-sim/internal/word"
)

// Execute computes the directive set for instr fetched at pc against
// st. It consults st.Regs and st.Mem read-only; callers (the three
// drivers) are solely responsible for applying the result.
func Execute(pc word.Word, instr isa.DecodedInstr, st *sim.State) []isa.Directive {
	switch instr.Tag {
	case isa.TagHalt:
		return []isa.Directive{isa.HaltDirective()}

	case isa.TagR:
		return []isa.Directive{execR(pc, instr, st)}

	case isa.TagI:
		return execI(pc, instr, st)

	case isa.TagS:
		return []isa.Directive{execS(pc, instr, st)}

	case isa.TagB:
		return []isa.Directive{execB(pc, instr, st)}

	case isa.TagU:
		return []isa.Directive{execU(pc, instr)}

	case isa.TagJ:
		return execJ(pc, instr)

	default:
		return []isa.Directive{isa.ExceptionDirective(isa.ExceptionDecode)}
	}
}

func execR(pc word.Word, instr isa.DecodedInstr, st *sim.State) isa.Directive {
	rs1 := st.Regs.ReadAt(int(instr.Rs1), pc)
	rs2 := st.Regs.ReadAt(int(instr.Rs2), pc)
	var result word.Word
	switch instr.RSub {
	case isa.ADD:
		result = rs1.Add(rs2)
	case isa.SUB:
		result = rs1.Sub(rs2)
	case isa.SLL:
		result = rs1.ShiftLogicalLeft(rs2)
	case isa.SRL:
		result = rs1.ShiftLogicalRight(rs2)
	case isa.SRA:
		result = rs1.ShiftArithmeticRight(rs2)
	case isa.SLT:
		result = boolWord(rs1.SignedLess(rs2))
	case isa.SLTU:
		result = boolWord(rs1.Less(rs2))
	case isa.XOR:
		result = rs1.Xor(rs2)
	case isa.OR:
		result = rs1.Or(rs2)
	case isa.AND:
		result = rs1.And(rs2)
	case isa.SLLI:
		result = rs1.ShiftLogicalLeft(word.Word(instr.Rs2))
	case isa.SRLI:
		result = rs1.ShiftLogicalRight(word.Word(instr.Rs2))
	case isa.SRAI:
		result = rs1.ShiftArithmeticRight(word.Word(instr.Rs2))
	}
	return isa.WriteReg(instr.Rd, result)
}

func execI(pc word.Word, instr isa.DecodedInstr, st *sim.State) []isa.Directive {
	rs1 := st.Regs.ReadAt(int(instr.Rs1), pc)

	switch instr.ISub {
	case isa.JALR:
		target := rs1.Offset(instr.SXImm).And(^word.Word(1))
		return []isa.Directive{
			isa.SetPC(target),
			isa.WriteReg(instr.Rd, pc.Add(word.Word(word.ByteSize))),
		}

	case isa.LB, isa.LH, isa.LW, isa.LBU, isa.LHU:
		addr := rs1.Offset(instr.SXImm)
		width := loadWidth(instr.ISub)
		var (
			v   word.Word
			err error
		)
		if signedLoad(instr.ISub) {
			var sv word.Signed
			sv, err = st.Mem.ReadSigned(addr.AsIndex(), width)
			v = word.FromSigned(sv)
		} else {
			v, err = st.Mem.Read(addr.AsIndex(), width)
		}
		if err != nil {
			return []isa.Directive{isa.LoadFaultDirective()}
		}
		return []isa.Directive{isa.WriteReg(instr.Rd, v)}

	case isa.ADDI:
		return []isa.Directive{isa.WriteReg(instr.Rd, rs1.Add(word.FromSigned(instr.SXImm)))}
	case isa.SLTI:
		return []isa.Directive{isa.WriteReg(instr.Rd, boolWord(rs1.SignedLess(word.FromSigned(instr.SXImm))))}
	case isa.SLTIU:
		return []isa.Directive{isa.WriteReg(instr.Rd, boolWord(rs1.Less(word.FromSigned(instr.SXImm))))}
	case isa.XORI:
		return []isa.Directive{isa.WriteReg(instr.Rd, rs1.Xor(instr.ZXImm))}
	case isa.ORI:
		return []isa.Directive{isa.WriteReg(instr.Rd, rs1.Or(instr.ZXImm))}
	case isa.ANDI:
		return []isa.Directive{isa.WriteReg(instr.Rd, rs1.And(instr.ZXImm))}

	case isa.ECALL, isa.EBREAK, isa.FENCE, isa.FENCEI,
		isa.CSRRW, isa.CSRRS, isa.CSRRC, isa.CSRRWI, isa.CSRRSI, isa.CSRRCI:
		// Decode-recognized, never executed: privileged/system/fence
		// instructions resolve to a decode exception if actually fetched.
		return []isa.Directive{isa.ExceptionDirective(isa.ExceptionDecode)}

	default:
		return []isa.Directive{isa.ExceptionDirective(isa.ExceptionDecode)}
	}
}

func execS(pc word.Word, instr isa.DecodedInstr, st *sim.State) isa.Directive {
	addr := st.Regs.ReadAt(int(instr.Rs1), pc).Add(instr.ZXImm)
	value := st.Regs.ReadAt(int(instr.Rs2), pc)
	width := storeWidth(instr.SSub)
	return isa.Store(addr, value, int(width))
}

func execB(pc word.Word, instr isa.DecodedInstr, st *sim.State) isa.Directive {
	rs1 := st.Regs.ReadAt(int(instr.Rs1), pc)
	rs2 := st.Regs.ReadAt(int(instr.Rs2), pc)
	var taken bool
	switch instr.BSub {
	case isa.BEQ:
		taken = rs1 == rs2
	case isa.BNE:
		taken = rs1 != rs2
	case isa.BLT:
		taken = rs1.SignedLess(rs2)
	case isa.BGE:
		taken = !rs1.SignedLess(rs2)
	case isa.BLTU:
		taken = rs1.Less(rs2)
	case isa.BGEU:
		taken = !rs1.Less(rs2)
	}
	if !taken {
		return isa.Nop()
	}
	return isa.SetPC(pc.Offset(instr.SXImm))
}

func execU(pc word.Word, instr isa.DecodedInstr) isa.Directive {
	if instr.USub == isa.LUI {
		return isa.WriteReg(instr.Rd, instr.ZXImm)
	}
	return isa.WriteReg(instr.Rd, pc.Add(instr.ZXImm))
}

func execJ(pc word.Word, instr isa.DecodedInstr) []isa.Directive {
	return []isa.Directive{
		isa.WriteReg(instr.Rd, pc.Add(word.Word(word.ByteSize))),
		isa.SetPC(pc.Offset(instr.SXImm)),
	}
}

func boolWord(b bool) word.Word {
	if b {
		return word.Word(1)
	}
	return word.Zero
}

func loadWidth(sub isa.ISubOp) mem.Size {
	switch sub {
	case isa.LB, isa.LBU:
		return mem.BYTE
	case isa.LH, isa.LHU:
		return mem.HALF
	default:
		return mem.WORD
	}
}

func signedLoad(sub isa.ISubOp) bool {
	switch sub {
	case isa.LB, isa.LH, isa.LW:
		return true
	default:
		return false
	}
}

func storeWidth(sub isa.SSubOp) mem.Size {
	switch sub {
	case isa.SB:
		return mem.BYTE
	case isa.SH:
		return mem.HALF
	default:
		return mem.WORD
	}
}
