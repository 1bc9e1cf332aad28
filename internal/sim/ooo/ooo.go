// Package ooo implements the out-of-order scheduler (C9): a bounded
// lookahead window, a conservative RAW dependency oracle gating issue
// order, eager dispatch of independent instructions, and strictly
// program-order retirement into architectural state.
//
// Grounded on proto/ooo/ooo.go's bitmap/CTZ-based window-and-scoreboard
// shape (bounded lookahead, dependency-gated issue, oldest-first
// priority selection) and on original_source/src/sim/out_of_order.rs's
// OutputDirective/OutputArtifact/BinaryHeap structure, whose retire loop
// the original leaves unimplemented (`unimplemented!()`).
package ooo

import (
	"container/heap"
	"math/bits"

	"github.com/JulianKnodt/risc-v-sim/internal/depend"
	"github.com/JulianKnodt/risc-v-sim/internal/isa"
	"github.com/JulianKnodt/risc-v-sim/internal/kernel"
	"github.com/JulianKnodt/risc-v-sim/internal/mem"
	"github.com/JulianKnodt/risc-v-sim/internal/sim"
	"github.com/JulianKnodt/risc-v-sim/internal/word"
)

// Window is the lookahead depth (W in spec.md §4.9).
const Window = 10

// artifact is a dispatched instruction's computed directive set, keyed
// by its source pc for program-order retirement. regWrites/pcWrites
// count how many entries this artifact pushed onto the register file's
// pending rings at dispatch time, so a flush can roll back exactly those
// entries without disturbing anything staged before or after it.
type artifact struct {
	pc        word.Word
	dirs      []isa.Directive
	regWrites int
	pcWrites  int
}

// readyHeap is a min-heap of artifacts ordered by src_pc, the Go
// container/heap analogue of the original's std::collections::BinaryHeap
// (inverted to a min-heap since the smallest pending pc retires first).
type readyHeap []artifact

func (h readyHeap) Len() int            { return len(h) }
func (h readyHeap) Less(i, j int) bool  { return h[i].pc < h[j].pc }
func (h readyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x interface{}) { *h = append(*h, x.(artifact)) }
func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// windowEntry is one fetch-lookahead slot: a decoded instruction at a
// given pc, and whether it was already dispatched in a prior tick
// (waiting in the ready heap for its retirement turn).
type windowEntry struct {
	pc       word.Word
	instr    isa.DecodedInstr
	resolved bool
}

// Driver runs the out-of-order scheduler over a shared sim.State.
type Driver struct {
	st         *sim.State
	ready      readyHeap
	dispatched map[word.Word]bool
}

// New wraps st in an out-of-order Driver with an empty ready heap.
func New(st *sim.State) *Driver {
	return &Driver{st: st, dispatched: make(map[word.Word]bool)}
}

func (d *Driver) State() *sim.State { return d.st }

// Step runs one full scheduler tick: fetch window, classify, dispatch,
// retire. It reports whether the run is still Running.
func (d *Driver) Step() bool {
	if d.st.Status != sim.Running {
		return false
	}

	win := d.fetchWindow()
	if d.st.Status != sim.Running {
		return false
	}
	runnable := classify(win)
	d.dispatch(win, runnable)
	return d.retire()
}

// fetchWindow reads and decodes up to Window instructions ahead of the
// committed pc. A decode error or out-of-bounds read past the committed
// pc is skipped (that address simply doesn't enter the window this
// tick); entries already dispatched in a prior tick are included but
// marked resolved so later entries see them as hazard-free (their
// result is already staged). A fault at the committed pc itself is not
// skippable the same way: it is the instruction retirement is waiting
// on, so nothing would ever reach the ready heap and the scheduler
// would spin forever. That one address raises Status=Exception
// directly, matching the other two drivers' fetch-fault handling.
func (d *Driver) fetchWindow() []windowEntry {
	committed := d.st.Regs.PCRead()
	win := make([]windowEntry, 0, Window)
	for i := 0; i < Window; i++ {
		addr := committed.Add(word.Word(i * word.ByteSize))
		raw, err := d.st.Mem.ReadInstr(addr.AsIndex())
		if err != nil {
			if i == 0 {
				d.st.Status = sim.Exception
				d.st.ExcKind = sim.ExceptionMem
			}
			continue
		}
		instr, derr := isa.Decode(raw)
		if derr != nil {
			if i == 0 {
				d.st.Status = sim.Exception
				d.st.ExcKind = sim.ExceptionDecode
			}
			continue
		}
		win = append(win, windowEntry{pc: addr, instr: instr, resolved: d.dispatched[addr]})
	}
	return win
}

// classify computes, for each window entry, whether it may dispatch
// this tick: unconditionally if it has no unresolved RAW hazard, or via
// single-hop promotion if its sole blocking producer is itself
// unconditionally runnable this tick. A hazard on a chain of two or
// more unresolved producers is not collapsed in one tick — each hop
// costs one additional tick, matching the conservative, at-most-one-
// promotion-per-tick scheduling this model implements.
//
// Like the window entry it is grounded on, waitsFor names only the
// single nearest blocking predecessor rather than a full predecessor
// set; an instruction with two distinct unresolved producers (one for
// each source register) is tracked against whichever is nearer.
//
// depend.DependsOn is register-only, so it never gates a load against an
// earlier, not-yet-retired store to the same address: a store's memory
// write happens at retirement (see retire's DirStore case), not
// dispatch, so any store still present anywhere in the window has not
// written memory yet, resolved or not. A load is therefore additionally
// held back — no single-hop promotion applies here, since a same-tick
// dispatching store still won't retire (and write memory) until this
// load's own turn comes — for as long as any earlier window entry is a
// store.
func classify(win []windowEntry) []bool {
	direct := make([]bool, len(win))
	waitsFor := make([]int, len(win))
	for i := range win {
		waitsFor[i] = -1
		if win[i].resolved {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if win[j].resolved {
				continue
			}
			if depend.DependsOn(win[i].instr, win[j].instr) {
				waitsFor[i] = j
				break
			}
		}
		direct[i] = waitsFor[i] == -1
	}

	runnable := make([]bool, len(win))
	earlierStore := false
	for i := range win {
		if win[i].resolved {
			earlierStore = earlierStore || win[i].instr.Tag == isa.TagS
			continue
		}
		switch {
		case direct[i]:
			runnable[i] = true
		default:
			// Single-hop promotion requires the producer to be BOTH
			// RAW-hazard-free itself (direct[waitsFor[i]]: a producer that
			// was only itself promoted must not chain a second hop onto the
			// same tick) AND actually dispatching this tick
			// (runnable[waitsFor[i]], already finalized since waitsFor[i] <
			// i, which also reflects the load-after-store gate below: a load
			// held back by an earlier, not-yet-retired store never promotes
			// its own consumer in the same tick even though it has no RAW
			// hazard of its own).
			runnable[i] = direct[waitsFor[i]] && runnable[waitsFor[i]]
		}
		if earlierStore && isLoad(win[i].instr) {
			runnable[i] = false
		}
		earlierStore = earlierStore || win[i].instr.Tag == isa.TagS
	}
	return runnable
}

func isLoad(instr isa.DecodedInstr) bool {
	if instr.Tag != isa.TagI {
		return false
	}
	switch instr.ISub {
	case isa.LB, isa.LH, isa.LW, isa.LBU, isa.LHU:
		return true
	default:
		return false
	}
}

// dispatch computes the directive set for every runnable, not-yet-
// dispatched entry and stages its register/PC side effects immediately
// so later entries in the same (pc-ascending) pass observe the forwarded
// value, then queues an artifact for retirement.
//
// Runnable slots are packed into a bitmap and walked oldest-first via
// bits.TrailingZeros32, the same CTZ idiom proto/ooo/ooo.go uses to scan
// a readiness scoreboard instead of a plain boolean loop.
func (d *Driver) dispatch(win []windowEntry, runnable []bool) {
	var mask uint32
	for i, ok := range runnable {
		if ok {
			mask |= 1 << uint(i)
		}
	}

	for mask != 0 {
		i := bits.TrailingZeros32(mask)
		mask &^= 1 << uint(i)

		dirs := kernel.Execute(win[i].pc, win[i].instr, d.st)
		var regWrites, pcWrites int
		for _, dir := range dirs {
			switch dir.Kind {
			case isa.DirWriteReg:
				d.st.Regs.Stage(int(dir.RegIndex), dir.RegValue, win[i].pc)
				if dir.RegIndex != 0 {
					regWrites++
				}
			case isa.DirSetPC:
				d.st.Regs.StagePC(dir.PC, win[i].pc)
				pcWrites++
			}
		}
		d.dispatched[win[i].pc] = true
		heap.Push(&d.ready, artifact{pc: win[i].pc, dirs: dirs, regWrites: regWrites, pcWrites: pcWrites})
	}
}

// retire pops and applies ready artifacts while the minimum src_pc
// equals the committed pc, preserving program order regardless of
// dispatch order. A taken branch invalidates every other in-flight
// artifact (they were computed on the wrong path).
func (d *Driver) retire() bool {
	for d.ready.Len() > 0 {
		if d.ready[0].pc != d.st.Regs.PCRead() {
			break
		}
		top := heap.Pop(&d.ready).(artifact)
		delete(d.dispatched, top.pc)

		advancedPC := false
		for _, dir := range top.dirs {
			switch dir.Kind {
			case isa.DirNop:
			case isa.DirSetPC:
				d.st.Regs.CommitPendingPC(dir.PC, top.pc)
				advancedPC = true
				d.flush()
			case isa.DirWriteReg:
				d.st.Regs.CommitPending(int(dir.RegIndex), dir.RegValue, top.pc)
			case isa.DirStore:
				if err := d.st.Mem.Write(dir.StoreAddr.AsIndex(), dir.StoreValue, mem.Size(dir.StoreWidth)); err != nil {
					d.st.Status = sim.Exception
					d.st.ExcKind = sim.ExceptionMem
				}
			case isa.DirException:
				d.st.Status = sim.Exception
				d.st.ExcKind = sim.ExceptionKind(dir.Exception)
			case isa.DirLoadFault:
				// The scheduler has no soft-recovery path: a failed load
				// hard-faults here, unlike the sequential driver.
				d.st.Status = sim.Exception
				d.st.ExcKind = sim.ExceptionMem
			case isa.DirHalt:
				d.st.Status = sim.Done
			}
		}
		if !advancedPC {
			d.st.Regs.IncPC()
		}
		if d.st.Status != sim.Running {
			return false
		}
	}
	return d.st.Status == sim.Running
}

// flush discards every in-flight speculative artifact: they were all
// computed assuming the branch that just retired would not redirect. The
// register/PC writes those artifacts already staged must be rolled back
// too, or a later retirement would pop and commit them out of turn.
func (d *Driver) flush() {
	var regWrites, pcWrites int
	for _, a := range d.ready {
		regWrites += a.regWrites
		pcWrites += a.pcWrites
	}
	d.st.Regs.DiscardPendingBack(regWrites)
	d.st.Regs.DiscardPendingPCBack(pcWrites)

	d.ready = d.ready[:0]
	d.dispatched = make(map[word.Word]bool)
}

// Run steps the driver until it stops running.
func Run(st *sim.State) {
	d := New(st)
	for d.Step() {
	}
}
