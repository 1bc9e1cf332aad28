// Package sim holds the program-state type shared by all three drivers
// (C7, C8, C9) and the status lattice that tracks how a run ends.
//
// Grounded on original_source/src/program_state.rs's ProgramState<T>
// (regs + mem + status bundle). Its sx/zx extension helpers have no
// counterpart here: sign/zero extension happens in mem.ReadSigned/Read and
// in isa's immediate decoding.
package sim

import (
	"github.com/JulianKnodt/risc-v-sim/internal/mem"
	"github.com/JulianKnodt/risc-v-sim/internal/regfile"
)

// Status is the run's terminal-state lattice: Running until a Halt or
// Exception directive is applied, then permanently Done or Exception.
type Status int

const (
	Running Status = iota
	Done
	Exception
)

func (s Status) String() string {
	switch s {
	case Running:
		return "Running"
	case Done:
		return "Done"
	case Exception:
		return "Exception"
	default:
		return "Unknown"
	}
}

// ExceptionKind mirrors isa.ExceptionKind but lives here too so that
// State doesn't need to import isa just to remember which fault class
// it stopped on (avoids a needless cross-package coupling for drivers
// that only inspect Status/ExcKind, not directive internals).
type ExceptionKind int

const (
	ExceptionMem ExceptionKind = iota
	ExceptionDecode
)

// State bundles the architectural state every driver owns exclusively
// for the duration of one run: the register file, flat memory, and the
// terminal-status lattice.
type State struct {
	Regs   *regfile.File
	Mem    *mem.Memory
	Status Status
	ExcKind ExceptionKind
}

// New constructs a fresh State with a memory of the given size and a
// zeroed register file/PC.
func New(memSize int) *State {
	return &State{
		Regs:   regfile.New(),
		Mem:    mem.New(memSize),
		Status: Running,
	}
}

// Driver is the common shape of the three execution models: advance one
// tick of work and report whether the run is still progressing.
type Driver interface {
	// Step runs one unit of driver-specific work (one instruction for
	// the sequential driver, one clock tick for the pipelined models)
	// and returns false once Status leaves Running.
	Step() bool
	State() *State
}
