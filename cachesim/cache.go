// Package cachesim models a hierarchy of write-back, write-allocate
// caches with random replacement. It is the simulation engine behind
// the memory tracer: the embedding emulator feeds it every load, store,
// and instruction fetch, and the level marked for miss tracing reports
// its misses through a callback.
package cachesim

import (
	"fmt"
	"io"
)

// Tag word flag bits. The remaining bits of a tag word hold
// paddr >> idxShift of the cached line.
const (
	valid uint64 = 1 << 63
	dirty uint64 = 1 << 62
)

// MissFunc receives the line-aligned address and size of a miss at a
// level that has miss tracing enabled. A miss caused by a dirty
// writeback carries the evicted line's installing vaddr, not the vaddr
// of the access that evicted it.
type MissFunc func(vaddr, paddr uint64, bytes int, store bool)

// Stats is the counter set maintained by every cache level. All
// counters are monotonically non-decreasing.
type Stats struct {
	BytesRead     uint64
	BytesWritten  uint64
	ReadAccesses  uint64
	WriteAccesses uint64
	ReadMisses    uint64
	WriteMisses   uint64
	Writebacks    uint64
}

// Accesses returns the total number of accesses of either kind.
func (s Stats) Accesses() uint64 {
	return s.ReadAccesses + s.WriteAccesses
}

// MissRate returns the overall miss rate as a percentage. It is zero
// when the level saw no accesses.
func (s Stats) MissRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}
	return 100 * float64(s.ReadMisses+s.WriteMisses) / float64(s.Accesses())
}

// tagStore hides the two tag-array layouts behind one contract. A
// returned slot is a mutable tag word; writing flag bits through it
// updates the stored line state.
type tagStore interface {
	// checkTag returns the slot holding paddr's line, or nil on miss.
	checkTag(paddr uint64) *uint64

	// victimize installs a line for paddr, recording src as its source
	// vaddr, and returns the evicted tag word together with the evicted
	// line's source vaddr.
	victimize(paddr, src uint64) (victimTag, victimSrc uint64)
}

// Cache is one level of the simulated hierarchy. Levels are chained
// through miss handlers: a miss at this level is filled from the next
// one, and dirty victims are written back to it.
type Cache struct {
	name     string
	sets     uint64
	ways     uint64
	lineSize uint64
	idxShift uint

	tags        tagStore
	lfsr        LFSR
	missHandler *Cache

	traceMiss bool
	onMiss    MissFunc

	stats Stats
}

// Name returns the level's human-readable name, e.g. "D$" or "L2$".
func (c *Cache) Name() string {
	return c.name
}

// LineSize returns the line size in bytes.
func (c *Cache) LineSize() int {
	return int(c.lineSize)
}

// Snapshot returns a copy of the level's counters.
func (c *Cache) Snapshot() Stats {
	return c.stats
}

// SetMissHandler chains this level to the next one. Misses fetch their
// line from next, and evicted dirty lines are written back to it.
func (c *Cache) SetMissHandler(next *Cache) {
	c.missHandler = next
}

// EnableTraceMiss marks this level as the output tap: every miss here
// is reported through fn. Only the deepest configured level is normally
// marked, so the callback carries the simulated last-level miss stream.
func (c *Cache) EnableTraceMiss(fn MissFunc) {
	c.traceMiss = true
	c.onMiss = fn
}

// Access runs one memory access through this level. bytes is the
// access width; store selects the write path. On a miss the line is
// fetched from the next level as a read regardless of store
// (write-allocate), after any dirty victim has been written back.
func (c *Cache) Access(vaddr, paddr uint64, bytes int, store bool) {
	if store {
		c.stats.WriteAccesses++
		c.stats.BytesWritten += uint64(bytes)
	} else {
		c.stats.ReadAccesses++
		c.stats.BytesRead += uint64(bytes)
	}

	if slot := c.tags.checkTag(paddr); slot != nil {
		if store {
			*slot |= dirty
		}
		return
	}

	lineMask := c.lineSize - 1

	if c.traceMiss && c.onMiss != nil {
		c.onMiss(vaddr&^lineMask, paddr&^lineMask, int(c.lineSize), store)
	}

	if store {
		c.stats.WriteMisses++
	} else {
		c.stats.ReadMisses++
	}

	victim, victimSrc := c.tags.victimize(paddr, vaddr&^lineMask)

	if victim&(valid|dirty) == valid|dirty {
		// The writeback reports the evicted line's own installing
		// vaddr, not the current access's: random eviction severs any
		// relation between the two.
		dirtyPaddr := (victim &^ (valid | dirty)) << c.idxShift
		if c.missHandler != nil {
			c.missHandler.Access(victimSrc, dirtyPaddr, int(c.lineSize), true)
		}
		c.stats.Writebacks++
	}

	if c.missHandler != nil {
		c.missHandler.Access(vaddr&^lineMask, paddr&^lineMask, int(c.lineSize), false)
	}

	if store {
		// Re-lookup rather than reuse the slot from victimize: after
		// the fill returns, the line is resident by invariant, and the
		// lookup stays correct even if a future miss handler were to
		// touch this level.
		*c.tags.checkTag(paddr) |= dirty
	}
}

// PrintStats writes the level's statistics block to w. Levels that saw
// no accesses print nothing.
func (c *Cache) PrintStats(w io.Writer) {
	if c.stats.Accesses() == 0 {
		return
	}

	fmt.Fprintf(w, "======== %s ========\n", c.name)
	fmt.Fprintf(w, "Bytes Read: %d\n", c.stats.BytesRead)
	fmt.Fprintf(w, "Bytes Written: %d\n", c.stats.BytesWritten)
	fmt.Fprintf(w, "Read Accesses: %d\n", c.stats.ReadAccesses)
	fmt.Fprintf(w, "Write Accesses: %d\n", c.stats.WriteAccesses)
	fmt.Fprintf(w, "Read Misses: %d\n", c.stats.ReadMisses)
	fmt.Fprintf(w, "Write Misses: %d\n", c.stats.WriteMisses)
	fmt.Fprintf(w, "Writebacks: %d\n", c.stats.Writebacks)
	fmt.Fprintf(w, "Miss Rate: %.3f\n", c.stats.MissRate())
}
