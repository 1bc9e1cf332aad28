// Package regfile implements the 32-entry general-purpose register file
// plus program counter (C3), with staged (not-yet-retired) writes and
// in-order retirement.
//
// Grounded on original_source/src/reg.rs's Register<T> (unwritten VecDeque
// of (index, value), assign/writeback/force_assign, Index reading the
// newest unwritten entry first). The bounded pending ring ("≤5 slots
// suffice for a 5-stage pipeline", spec.md §9) is modeled on
// original_source/src/fixed_size_deque.rs's FixedSizeDeque, sized instead
// to the out-of-order scheduler's wider requirement (see ringCapacity).
package regfile

import "github.com/JulianKnodt/risc-v-sim/internal/word"

const numRegisters = 32

// ringCapacity bounds the pending-write ring. Five slots would cover the
// in-order pipeline's one-write-per-stage worst case, but the
// out-of-order scheduler can stage up to Window in-flight writes before
// any of them retires (internal/sim/ooo.Window), so the ring is sized to
// that wider bound instead.
const ringCapacity = 10

// pendingWrite is one staged (index, value) entry. order is the source
// instruction's pc, used to break ties between in-flight writes to the
// same register by program order rather than by push order: the
// out-of-order scheduler can dispatch (and so push) a later instruction
// before an earlier one still blocked on a multi-hop RAW chain.
type pendingWrite struct {
	index int
	value word.Word
	order word.Word
}

// pendingRing is a small fixed-capacity FIFO of pending writes, the Go
// shape of fixed_size_deque.rs's FixedSizeDeque specialized to
// pendingWrite.
type pendingRing struct {
	data [ringCapacity]pendingWrite
	head int
	tail int
	full bool
}

func (r *pendingRing) len() int {
	switch {
	case r.head < r.tail:
		return r.tail - r.head
	case r.head > r.tail:
		return r.tail + ringCapacity - r.head
	case r.full:
		return ringCapacity
	default:
		return 0
	}
}

func (r *pendingRing) pushBack(v pendingWrite) bool {
	if r.full {
		return false
	}
	r.data[r.tail] = v
	r.tail = (r.tail + 1) % ringCapacity
	r.full = r.head == r.tail
	return true
}

func (r *pendingRing) popFront() (pendingWrite, bool) {
	if r.len() == 0 {
		return pendingWrite{}, false
	}
	out := r.data[r.head]
	r.head = (r.head + 1) % ringCapacity
	r.full = false
	return out, true
}

// popBack discards the most recently pushed entry without committing it,
// used to roll back speculative writes on a misdispatch flush.
func (r *pendingRing) popBack() (pendingWrite, bool) {
	if r.len() == 0 {
		return pendingWrite{}, false
	}
	r.tail = (r.tail - 1 + ringCapacity) % ringCapacity
	out := r.data[r.tail]
	r.full = false
	return out, true
}

// removeMatch finds the first entry (searching from the oldest) whose
// index, value, and order all equal the arguments and removes it, shifting
// everything after it back by one slot to keep the rest in relative
// order. Used to commit a specific artifact's staged write out of FIFO
// order: the out-of-order scheduler's dispatch order need not match its
// retirement order, so popFront's "oldest pushed" assumption does not
// hold there. Matching on order (the source pc) as well as (index, value)
// is required, not just a disambiguation nicety: depend.DependsOn is
// RAW-only, so two in-flight writes to the same register can carry the
// same value (a WAW race the oracle never gates), and matching on value
// alone could remove the wrong one of two identical-value entries,
// leaving a stale entry behind to corrupt later forwarding.
func (r *pendingRing) removeMatch(index int, value word.Word, order word.Word) bool {
	n := r.len()
	pos := r.head
	for i := 0; i < n; i++ {
		if r.data[pos].index == index && r.data[pos].value == value && r.data[pos].order == order {
			cur := pos
			for j := i; j < n-1; j++ {
				next := (cur + 1) % ringCapacity
				r.data[cur] = r.data[next]
				cur = next
			}
			r.tail = (r.tail - 1 + ringCapacity) % ringCapacity
			r.full = false
			return true
		}
		pos = (pos + 1) % ringCapacity
	}
	return false
}

// newest returns the most recently pushed entry, if any (newest-first
// reads per spec.md §4.3).
func (r *pendingRing) newest() (pendingWrite, bool) {
	if r.len() == 0 {
		return pendingWrite{}, false
	}
	idx := (r.tail - 1 + ringCapacity) % ringCapacity
	return r.data[idx], true
}

// newestFor returns the program-order-newest entry for a given register
// index: the matching entry with the largest order (source pc), not
// necessarily the most recently pushed one. Ties (equal order, as every
// plain Stage call not sourced from the out-of-order scheduler uses)
// resolve to the most recently pushed of the tied entries, since the
// tail-backward scan encounters those first and a strictly-greater order
// is required to displace an already-found candidate.
func (r *pendingRing) newestFor(index int) (word.Word, bool) {
	return r.newestBefore(index, word.Word(^uint32(0)))
}

// newestBefore is newestFor restricted to candidates whose order (source
// pc) is strictly less than before. The out-of-order scheduler can
// dispatch, and so stage, a program-order-later instruction before an
// earlier one still blocked on a RAW chain; an unrestricted scan over all
// same-index entries would let that later write forward into the earlier
// instruction's own read, even though program order says the earlier
// instruction cannot yet see it. Callers that don't have a reading
// instruction's own pc in hand (direct register inspection, not a
// kernel.Execute read) pass the maximum word as before and get the
// unrestricted scan back.
func (r *pendingRing) newestBefore(index int, before word.Word) (word.Word, bool) {
	n := r.len()
	pos := (r.tail - 1 + ringCapacity) % ringCapacity
	best, found := pendingWrite{}, false
	for i := 0; i < n; i++ {
		if r.data[pos].index == index && r.data[pos].order < before {
			if !found || r.data[pos].order > best.order {
				best, found = r.data[pos], true
			}
		}
		pos = (pos - 1 + ringCapacity) % ringCapacity
	}
	return best.value, found
}

// File is the 32 architectural GPRs plus PC, with staged writes.
type File struct {
	data    [numRegisters]word.Word
	pending pendingRing

	pc        word.Word
	pendingPC pendingRing // the in-order pipeline only ever stages one
	// entry at a time; the out-of-order scheduler can stage more than one
	// speculative control-transfer before any of them retires.
}

// New returns a File with all registers and PC reset to zero.
func New() *File {
	return &File{}
}

// Read returns the newest pending value for index if any, else the
// committed value, without regard to program order. Register x0 always
// reads zero. Used by tests and other direct inspection; kernel.Execute's
// operand reads go through ReadAt instead, since a plain Read would let
// an out-of-order, program-order-later write forward into an earlier
// instruction's read.
func (f *File) Read(index int) word.Word {
	if index == 0 {
		return word.Zero
	}
	if v, ok := f.pending.newestFor(index); ok {
		return v
	}
	return f.data[index]
}

// ReadAt returns the program-order-newest pending value for index among
// writes staged by instructions at a pc strictly less than readerPC, else
// the committed value. Register x0 always reads zero. The out-of-order
// scheduler can dispatch independent instructions ahead of an earlier one
// still blocked on a RAW chain, staging their writes first; readerPC
// excludes those not-yet-legal-to-observe writes from forwarding.
func (f *File) ReadAt(index int, readerPC word.Word) word.Word {
	if index == 0 {
		return word.Zero
	}
	if v, ok := f.pending.newestBefore(index, readerPC); ok {
		return v
	}
	return f.data[index]
}

// Stage appends (index, value) to the pending FIFO, tagged with the
// source instruction's pc so Read can forward the program-order-newest
// value rather than the push-order-newest one. Writes to x0 are
// discarded immediately (never staged).
func (f *File) Stage(index int, value word.Word, pc word.Word) {
	if index == 0 {
		return
	}
	if !f.pending.pushBack(pendingWrite{index: index, value: value, order: pc}) {
		panic("regfile: pending write ring exhausted; ringCapacity must cover every in-flight driver's worst case")
	}
}

// RetireOne dequeues the oldest pending entry and commits it, clamping x0
// to zero. Returns whether a retirement occurred.
func (f *File) RetireOne() bool {
	pw, ok := f.pending.popFront()
	if !ok {
		return false
	}
	if pw.index == 0 {
		f.data[0] = word.Zero
	} else {
		f.data[pw.index] = pw.value
	}
	return true
}

// CommitPending writes value directly into the architectural register at
// index, bypassing popFront, and removes its matching staged entry
// wherever it sits in the ring, identified by (index, value, pc) rather
// than just (index, value): the out-of-order scheduler uses this at
// retirement instead of RetireOne, where dispatch order (FIFO push order)
// and retirement order (strict program order) can diverge whenever a
// later, independent instruction dispatches ahead of an earlier one still
// blocked on an unresolved RAW hazard, so the oldest-pushed entry is not
// necessarily the one this retirement is committing — and a same-value
// WAW race (depend.DependsOn is RAW-only) means value alone can't
// disambiguate which staged entry is the one actually retiring.
func (f *File) CommitPending(index int, value word.Word, pc word.Word) {
	if index == 0 {
		return
	}
	f.data[index] = value
	f.pending.removeMatch(index, value, pc)
}

// ForceWrite is an unconditional, non-staged write used by the
// sequential driver, which has no pending FIFO to drain.
func (f *File) ForceWrite(index int, value word.Word) {
	if index == 0 {
		return
	}
	f.data[index] = value
}

// PCRead returns the committed PC, ignoring any staged value.
func (f *File) PCRead() word.Word { return f.pc }

// StagePC stages a new PC value, to be applied by RetirePC. pc tags the
// staging instruction's own source pc, mirroring Stage, so CommitPendingPC
// can disambiguate two in-flight redirects that happen to target the same
// address.
func (f *File) StagePC(v word.Word, pc word.Word) {
	if !f.pendingPC.pushBack(pendingWrite{value: v, order: pc}) {
		panic("regfile: pending PC ring exhausted; ringCapacity must cover every in-flight driver's worst case")
	}
}

// RetirePC commits the oldest staged PC value, if any.
func (f *File) RetirePC() bool {
	pw, ok := f.pendingPC.popFront()
	if !ok {
		return false
	}
	f.pc = pw.value
	return true
}

// CommitPendingPC is CommitPending for the staged-PC ring: it sets pc
// directly and removes the matching staged entry out of FIFO order,
// disambiguated by the redirecting instruction's own pc like CommitPending.
func (f *File) CommitPendingPC(value word.Word, pc word.Word) {
	f.pc = value
	f.pendingPC.removeMatch(0, value, pc)
}

// PeekPendingPC reports the newest staged PC value without consuming it,
// used by the in-order pipeline's IF stage to re-steer fetch a cycle
// after ID stages the target.
func (f *File) PeekPendingPC() (word.Word, bool) {
	pw, ok := f.pendingPC.newest()
	return pw.value, ok
}

// DiscardPendingBack rolls back the n most-recently staged (not yet
// retired) register writes without committing them, used by the
// out-of-order scheduler to undo speculative dispatch past a branch that
// turned out taken.
func (f *File) DiscardPendingBack(n int) {
	for i := 0; i < n; i++ {
		if _, ok := f.pending.popBack(); !ok {
			return
		}
	}
}

// DiscardPendingPCBack is DiscardPendingBack for the staged-PC ring.
func (f *File) DiscardPendingPCBack(n int) {
	for i := 0; i < n; i++ {
		if _, ok := f.pendingPC.popBack(); !ok {
			return
		}
	}
}

// IncPC advances the committed PC by one instruction word (4 bytes).
func (f *File) IncPC() { f.pc = f.pc.Add(word.Word(4)) }

// SetPC is an unconditional, non-staged PC write, used by the sequential
// driver (the out-of-order retirement path uses CommitPendingPC).
func (f *File) SetPC(v word.Word) { f.pc = v }

// Snapshot returns a copy of the 32 committed GPR values, for reporting
// and testing. Pending (not-yet-retired) values are not reflected.
func (f *File) Snapshot() [numRegisters]word.Word { return f.data }
