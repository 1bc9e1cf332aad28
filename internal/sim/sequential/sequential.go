// Package sequential implements the atomic fetch-decode-execute driver
// (C7): the ground-truth reference model every other driver must agree
// with on final architectural state.
//
// Grounded on original_source/src/sim/normal.rs's execute/run_instr
// loop, restructured around the shared kernel.Execute instead of
// inlining per-opcode semantics.
package sequential

import (
	"github.com/JulianKnodt/risc-v-sim/internal/isa"
	"github.com/JulianKnodt/risc-v-sim/internal/kernel"
	"github.com/JulianKnodt/risc-v-sim/internal/mem"
	"github.com/JulianKnodt/risc-v-sim/internal/sim"
	"github.com/JulianKnodt/risc-v-sim/internal/word"
)

// Driver runs the sequential model over a shared sim.State.
type Driver struct {
	st *sim.State
}

// New wraps st in a sequential Driver.
func New(st *sim.State) *Driver { return &Driver{st: st} }

func (d *Driver) State() *sim.State { return d.st }

// Step performs one full fetch-decode-execute-apply cycle and reports
// whether the run is still Running.
func (d *Driver) Step() bool {
	if d.st.Status != sim.Running {
		return false
	}

	pc := d.st.Regs.PCRead()
	raw, err := d.st.Mem.ReadInstr(pc.AsIndex())
	if err != nil {
		d.st.Status = sim.Exception
		d.st.ExcKind = sim.ExceptionMem
		return false
	}

	instr, decErr := isa.Decode(raw)
	if decErr != nil {
		d.st.Status = sim.Exception
		d.st.ExcKind = sim.ExceptionDecode
		return false
	}

	pcWasSet := false
	for _, dir := range kernel.Execute(pc, instr, d.st) {
		if d.apply(dir) {
			pcWasSet = true
		}
	}

	d.st.Regs.ForceWrite(0, word.Zero)
	if !pcWasSet {
		d.st.Regs.SetPC(pc.Add(word.Word(word.ByteSize)))
	}
	return d.st.Status == sim.Running
}

// apply performs one directive's effect immediately (unstaged): the
// sequential model has no pending FIFOs to drain. Returns true iff the
// directive set the PC.
func (d *Driver) apply(dir isa.Directive) bool {
	switch dir.Kind {
	case isa.DirNop:
		return false

	case isa.DirSetPC:
		d.st.Regs.SetPC(dir.PC)
		return true

	case isa.DirWriteReg:
		d.st.Regs.ForceWrite(int(dir.RegIndex), dir.RegValue)
		return false

	case isa.DirStore:
		if err := d.st.Mem.Write(dir.StoreAddr.AsIndex(), dir.StoreValue, mem.Size(dir.StoreWidth)); err != nil {
			d.st.Status = sim.Exception
			d.st.ExcKind = sim.ExceptionMem
		}
		return false

	case isa.DirException:
		d.st.Status = sim.Exception
		d.st.ExcKind = sim.ExceptionKind(dir.Exception)
		return false

	case isa.DirLoadFault:
		// Soft recovery: rd keeps its prior value and the run continues,
		// matching original_source/src/sim/normal.rs's unwrap_or_else
		// fallback. Pipelined drivers hard-fault on this same directive.
		return false

	case isa.DirHalt:
		d.st.Status = sim.Done
		return false

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
