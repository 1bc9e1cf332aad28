// Package predict implements branch predictors that are never consulted
// by any internal/sim driver (spec.md §1: branch prediction sits outside
// the simulated execution models) but are complete, independently
// testable components: a saturating-counter predictor and a TAGE
// geometric-history predictor, both keyed by a word-aligned 32-bit PC
// instead of the wider addresses their sources assumed.
//
// Grounded on SupraX.go's BranchPredictor (4-bit saturating counters,
// two packed per byte) and proto/tage/tage.go's multi-table TAGE design.
package predict

import "github.com/JulianKnodt/risc-v-sim/internal/word"

// counterTableSize is the number of 4-bit saturating counters, indexed by
// the low bits of the instruction index (pc/4).
const counterTableSize = 32

// Counter is a 32-entry table of 4-bit saturating counters, two packed
// per byte, predicting taken when the counter's top bit is set.
type Counter struct {
	counters [counterTableSize / 2]uint8
}

// NewCounter returns a Counter initialized to a weakly-not-taken state
// (7, 0b0111) in every slot.
func NewCounter() *Counter {
	c := &Counter{}
	for i := range c.counters {
		c.counters[i] = 0x77
	}
	return c
}

func counterSlot(pc word.Word) (byteIdx, shift uint) {
	idx := (uint32(pc) >> 2) % counterTableSize
	return uint(idx) >> 1, (uint(idx) & 1) << 2
}

// Predict reports whether pc's branch is predicted taken.
func (c *Counter) Predict(pc word.Word) bool {
	byteIdx, shift := counterSlot(pc)
	counter := (c.counters[byteIdx] >> shift) & 0xF
	return counter&0b1000 != 0
}

// Update trains the counter for pc toward the observed outcome.
func (c *Counter) Update(pc word.Word, taken bool) {
	byteIdx, shift := counterSlot(pc)
	mask := uint8(0xF << shift)
	counter := (c.counters[byteIdx] >> shift) & 0xF

	next := counter
	if taken {
		if next < 15 {
			next++
		}
	} else if next > 0 {
		next--
	}
	c.counters[byteIdx] = (c.counters[byteIdx] &^ mask) | (next << shift)
}
