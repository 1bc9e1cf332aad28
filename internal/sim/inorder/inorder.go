// Package inorder implements the five-stage in-order pipeline (C8):
// IF/ID/EX/MEM/WB, processed WB-down-to-ID each tick so older
// instructions retire before younger ones advance, with staged
// register/memory side effects standing in for operand forwarding.
//
// Grounded on original_source/src/sim/in_order.rs's Pipeline/Phases
// skeleton (five-slot array, WB-down-to-ID tick order via chained
// run_phase calls, separate run_if_phase) — every phase body there is
// empty; this is the full implementation per spec.md §4.8.
package inorder

import (
	"github.com/JulianKnodt/risc-v-sim/internal/isa"
	"github.com/JulianKnodt/risc-v-sim/internal/kernel"
	"github.com/JulianKnodt/risc-v-sim/internal/mem"
	"github.com/JulianKnodt/risc-v-sim/internal/sim"
	"github.com/JulianKnodt/risc-v-sim/internal/word"
)

// slot is one pipeline register: empty, a raw fetched word awaiting
// decode, or a fault that has already been detected and is riding down
// to WB to be surfaced.
type slot struct {
	empty bool
	fault bool
	exc   isa.ExceptionKind
	raw   word.Word
	pc    word.Word
}

// Driver runs the in-order pipeline over a shared sim.State.
type Driver struct {
	st          *sim.State
	slots       [5]slot // index 0=IF, 1=ID, 2=EX, 3=MEM, 4=WB
	haltFetched bool
}

const (
	stageIF = 0
	stageID = 1
	stageEX = 2
	stageMEM = 3
	stageWB = 4
)

// New wraps st in an in-order Driver with all pipeline slots empty.
func New(st *sim.State) *Driver {
	d := &Driver{st: st}
	for i := range d.slots {
		d.slots[i].empty = true
	}
	return d
}

func (d *Driver) State() *sim.State { return d.st }

// Step runs one full pipeline tick (WB, MEM, EX, ID, then IF) and
// reports whether the run is still Running.
func (d *Driver) Step() bool {
	fetchAddr, hasPendingPC := d.st.Regs.PeekPendingPC()
	if !hasPendingPC {
		fetchAddr = d.st.Regs.PCRead()
	}

	d.runWB(&d.slots[stageWB])
	d.runMEM(&d.slots[stageMEM])
	d.runEX(&d.slots[stageEX])
	redirected := d.runID(&d.slots[stageID])

	newIF := d.runIF(fetchAddr, hasPendingPC)
	oldIF := d.slots[stageIF]
	if redirected {
		// ID just resolved a taken control transfer. Two slots are on the
		// wrong (fall-through) path and must not reach ID/EX: oldIF, the
		// instruction already sitting in IF (fetched a cycle before the
		// branch resolved, about to shift into ID this tick), and newIF,
		// this same tick's own fetch (computed from the PC as it stood
		// before the redirect was staged). The real target instruction is
		// fetched next tick once PeekPendingPC reflects the staged
		// target.
		oldIF = slot{empty: true}
		newIF = slot{empty: true}
	}
	// Must check oldIF, not newIF: oldIF is what actually shifts into ID
	// this tick, after the squash above has had its say. newIF was only
	// just fetched this same tick; whether it's wrong-path isn't knowable
	// until next tick, when it becomes oldIF in turn.
	if !oldIF.empty && !oldIF.fault && oldIF.raw == isa.Halt {
		d.haltFetched = true
	}

	d.slots[stageWB] = d.slots[stageMEM]
	d.slots[stageMEM] = d.slots[stageEX]
	d.slots[stageEX] = d.slots[stageID]
	d.slots[stageID] = oldIF
	d.slots[stageIF] = newIF

	return d.st.Status == sim.Running
}

// runIF fetches the next raw word. Once the Halt sentinel has been
// fetched, IF permanently stops (the in-flight instructions still drain
// through the remaining stages).
func (d *Driver) runIF(addr word.Word, hasPendingPC bool) slot {
	if d.haltFetched {
		if hasPendingPC {
			d.st.Regs.RetirePC()
			d.st.Regs.IncPC()
		}
		return slot{empty: true}
	}

	raw, err := d.st.Mem.ReadInstr(addr.AsIndex())
	if hasPendingPC {
		// RetirePC alone would leave the committed pc sitting on the
		// address this call just fetched (the redirect target itself),
		// which the next tick's no-pending-redirect path would then
		// refetch a second time. IncPC afterward advances it past the
		// word just consumed here, same as the plain sequential path.
		d.st.Regs.RetirePC()
		d.st.Regs.IncPC()
	} else {
		d.st.Regs.IncPC()
	}
	if err != nil {
		return slot{fault: true, exc: isa.ExceptionMem, pc: addr}
	}
	// haltFetched is latched by the caller, not here: a redirect this same
	// tick can still discard this fetch as wrong-path, and a squashed word
	// that happens to decode as Halt must never stop fetch permanently.
	return slot{raw: raw, pc: addr}
}

// runID decodes and, for control-transfer instructions only, evaluates
// the branch/jump and stages the redirected PC (and link register for
// JAL/JALR) one tick ahead of when it formally retires at WB. Reports
// whether a PC redirect was staged, so Step can squash the fall-through
// instruction IF already fetched this same cycle.
func (d *Driver) runID(s *slot) bool {
	instr, ok := d.decodeSlot(s)
	if !ok || !instr.IsControlTransfer() || instr.Tag == isa.TagHalt {
		return false
	}
	dirs := kernel.Execute(s.pc, instr, d.st)
	d.applyTo(s, dirs)
	for _, dir := range dirs {
		if dir.Kind == isa.DirSetPC {
			return true
		}
	}
	return false
}

// runEX performs ALU work for R-type, non-memory/non-control I-type
// (arithmetic, compare, logical, and the decode-recognized system
// family), and U-type, staging the result for later retirement.
func (d *Driver) runEX(s *slot) {
	instr, ok := d.decodeSlot(s)
	if !ok || instr.Tag == isa.TagHalt || instr.IsControlTransfer() {
		return
	}
	switch instr.Tag {
	case isa.TagR, isa.TagU:
		d.applyTo(s, kernel.Execute(s.pc, instr, d.st))
	case isa.TagI:
		if !isLoad(instr.ISub) {
			d.applyTo(s, kernel.Execute(s.pc, instr, d.st))
		}
	}
}

// runMEM performs loads (staging rd) and queues stores (deferred to WB's
// commit_store), converting memory failures into a carried fault.
func (d *Driver) runMEM(s *slot) {
	instr, ok := d.decodeSlot(s)
	if !ok || instr.Tag == isa.TagHalt {
		return
	}
	switch instr.Tag {
	case isa.TagI:
		if isLoad(instr.ISub) {
			d.applyTo(s, kernel.Execute(s.pc, instr, d.st))
		}
	case isa.TagS:
		for _, dir := range kernel.Execute(s.pc, instr, d.st) {
			if dir.Kind == isa.DirStore {
				d.st.Mem.QueueStore(dir.StoreAddr.AsIndex(), dir.StoreValue, mem.Size(dir.StoreWidth))
			}
		}
	}
}

// runWB retires whatever the earlier stages staged: a register write for
// R/I/U/J, a staged PC for control-transfer instructions, one queued
// store for S-type, or a terminal status transition for Halt/fault.
func (d *Driver) runWB(s *slot) {
	if s.empty {
		return
	}
	if s.fault {
		d.st.Status = sim.Exception
		d.st.ExcKind = sim.ExceptionKind(s.exc)
		return
	}
	instr, err := isa.Decode(s.raw)
	if err != nil {
		d.st.Status = sim.Exception
		d.st.ExcKind = sim.ExceptionDecode
		return
	}
	if instr.Tag == isa.TagHalt {
		d.st.Status = sim.Done
		return
	}
	if instr.WritesRd() {
		d.st.Regs.RetireOne()
	}
	if instr.IsControlTransfer() {
		d.st.Regs.RetirePC()
	}
	if instr.Tag == isa.TagS {
		if err := d.st.Mem.CommitStore(); err != nil {
			d.st.Status = sim.Exception
			d.st.ExcKind = sim.ExceptionMem
		}
	}
}

// decodeSlot decodes a slot's raw word, marking it as a carried fault in
// place on error. A slot already faulted or empty is left untouched and
// reported as not-decodable.
func (d *Driver) decodeSlot(s *slot) (isa.DecodedInstr, bool) {
	if s.empty || s.fault {
		return isa.DecodedInstr{}, false
	}
	instr, err := isa.Decode(s.raw)
	if err != nil {
		s.fault = true
		s.exc = isa.ExceptionDecode
		return isa.DecodedInstr{}, false
	}
	return instr, true
}

// applyTo stages every directive in dirs against the register
// file/memory (never committing immediately — that is WB's job), and
// records a carried fault on s for any Exception directive.
func (d *Driver) applyTo(s *slot, dirs []isa.Directive) {
	for _, dir := range dirs {
		switch dir.Kind {
		case isa.DirSetPC:
			d.st.Regs.StagePC(dir.PC, s.pc)
		case isa.DirWriteReg:
			d.st.Regs.Stage(int(dir.RegIndex), dir.RegValue, s.pc)
		case isa.DirException:
			s.fault = true
			s.exc = dir.Exception
		case isa.DirLoadFault:
			// No soft-recovery path in the pipeline: a failed load rides
			// down as a hard fault, unlike the sequential driver.
			s.fault = true
			s.exc = isa.ExceptionMem
		case isa.DirNop, isa.DirStore, isa.DirHalt:
			// Nop: not-taken branch, nothing to stage. Store/Halt are
			// handled by their own stage duties (MEM, WB) and never
			// reach applyTo for this instruction class.
		}
	}
}

func isLoad(sub isa.ISubOp) bool {
	switch sub {
	case isa.LB, isa.LH, isa.LW, isa.LBU, isa.LHU:
		return true
	default:
		return false
	}
}

// Run steps the driver until it stops running.
func Run(st *sim.State) {
	d := New(st)
	for d.Step() {
	}
}
