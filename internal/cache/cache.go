// Package cache implements a byte-addressed, write-back cache sitting in
// front of a mem.Memory backing store. It is never constructed by any
// internal/sim driver (spec.md §1 scopes caches out of the simulated
// timing model); it exists as a complete, independently testable
// component for a future timing model to adopt.
//
// Grounded on original_source/src/cache.rs's CacheRow{data,tag,valid,
// dirty}/Associativity{N(u32),Full}/Cache{assoc,data,backing}, whose body
// is the stub `// todo implement Caches`.
package cache

import (
	"fmt"

	"github.com/JulianKnodt/risc-v-sim/internal/mem"
	"github.com/JulianKnodt/risc-v-sim/internal/word"
)

// Associativity is the number of ways per set; Full means every line can
// live in any row (a single set spanning the whole cache).
type Associativity int

// Full is the sentinel Associativity value for a fully associative cache.
const Full Associativity = 0

// NWay constructs an N-way set-associative Associativity.
func NWay(ways int) Associativity { return Associativity(ways) }

// row is one cache line plus its bookkeeping bits, the Go shape of
// CacheRow.
type row struct {
	tag    int
	data   []byte
	valid  bool
	dirty  bool
	access uint64
}

// Cache is a set-associative, write-back cache over a fixed-size backing
// mem.Memory.
type Cache struct {
	backing  *mem.Memory
	lineSize int
	sets     int
	ways     int
	rows     [][]row
	clock    uint64
}

// New constructs a Cache over backing with the given line size (bytes),
// total number of lines, and associativity. A Full associativity folds
// every line into a single set of numLines ways.
func New(backing *mem.Memory, lineSize, numLines int, assoc Associativity) *Cache {
	ways := int(assoc)
	if ways <= 0 {
		ways = numLines
	}
	sets := numLines / ways
	if sets == 0 {
		sets = 1
	}
	rows := make([][]row, sets)
	for i := range rows {
		rows[i] = make([]row, ways)
		for j := range rows[i] {
			rows[i][j].data = make([]byte, lineSize)
		}
	}
	return &Cache{backing: backing, lineSize: lineSize, sets: sets, ways: ways, rows: rows}
}

func (c *Cache) lineOf(addr int) (setIdx, tag, offset int) {
	lineNum := addr / c.lineSize
	return lineNum % c.sets, lineNum / c.sets, addr % c.lineSize
}

// lookup returns the resident row for addr's line if present.
func (c *Cache) lookup(setIdx, tag int) *row {
	set := c.rows[setIdx]
	for i := range set {
		if set[i].valid && set[i].tag == tag {
			return &set[i]
		}
	}
	return nil
}

// fill loads addr's line from the backing store into the set, evicting
// the least-recently-used way if every way is occupied. Returns the
// filled row.
func (c *Cache) fill(setIdx, tag int) (*row, error) {
	set := c.rows[setIdx]
	victim := 0
	for i := range set {
		if !set[i].valid {
			victim = i
			break
		}
		if set[i].access < set[victim].access {
			victim = i
		}
	}
	r := &set[victim]
	if r.valid && r.dirty {
		if err := c.writeBack(r); err != nil {
			return nil, err
		}
	}
	base := (tag*c.sets + setIdx) * c.lineSize
	for i := 0; i < c.lineSize; i++ {
		b, err := c.backing.Read(base+i, mem.BYTE)
		if err != nil {
			return nil, fmt.Errorf("cache: filling line at %#x: %w", base, err)
		}
		r.data[i] = byte(b)
	}
	r.tag = tag
	r.valid = true
	r.dirty = false
	return r, nil
}

func (c *Cache) writeBack(r *row) error {
	base := (r.tag*c.sets + c.setIndexOf(r)) * c.lineSize
	for i, b := range r.data {
		if err := c.backing.Write(base+i, word.Word(b), mem.BYTE); err != nil {
			return fmt.Errorf("cache: writing back line at %#x: %w", base, err)
		}
	}
	r.dirty = false
	return nil
}

// setIndexOf finds which set r belongs to, since row doesn't carry its
// own set index.
func (c *Cache) setIndexOf(r *row) int {
	for s, set := range c.rows {
		for i := range set {
			if &set[i] == r {
				return s
			}
		}
	}
	return 0
}

func (c *Cache) resolve(addr int) (*row, int, error) {
	setIdx, tag, offset := c.lineOf(addr)
	r := c.lookup(setIdx, tag)
	if r == nil {
		var err error
		r, err = c.fill(setIdx, tag)
		if err != nil {
			return nil, 0, err
		}
	}
	c.clock++
	r.access = c.clock
	return r, offset, nil
}

// Read returns width bytes starting at addr, little-endian, servicing
// the access from cache (filling on a miss).
func (c *Cache) Read(addr int, width mem.Size) (word.Word, error) {
	var v uint32
	for i := 0; i < int(width); i++ {
		r, offset, err := c.resolve(addr + i)
		if err != nil {
			return 0, err
		}
		v |= uint32(r.data[offset]) << (8 * uint(i))
	}
	return word.Word(v), nil
}

// Write stores the low width bytes of value into the cache, marking the
// owning line dirty. Nothing reaches the backing store until the line is
// evicted or Flush is called.
func (c *Cache) Write(addr int, value word.Word, width mem.Size) error {
	for i := 0; i < int(width); i++ {
		r, offset, err := c.resolve(addr + i)
		if err != nil {
			return err
		}
		r.data[offset] = byte(value >> (8 * uint(i)))
		r.dirty = true
	}
	return nil
}

// Flush writes every dirty line back to the backing store.
func (c *Cache) Flush() error {
	for s := range c.rows {
		for i := range c.rows[s] {
			r := &c.rows[s][i]
			if r.valid && r.dirty {
				if err := c.writeBack(r); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
