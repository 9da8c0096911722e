package cachesim

import (
	"errors"
	"fmt"
	"io"
)

// Level dependency errors. Levels must be configured inside-out.
var (
	ErrNoL1 = errors.New("cannot define L2 without L1 cache")
	ErrNoL2 = errors.New("cannot define L3 without L2 cache")
)

// Hierarchy owns the configured cache levels and their wiring. L1-I
// and L1-D share the L2 miss handler when L2 exists; L2 misses into
// L3. The chain is linear and built inside-out, so no cycles can form.
type Hierarchy struct {
	l1i *Cache
	l1d *Cache
	l2  *Cache
	l3  *Cache

	statsSink io.Writer
	flushed   bool
}

// NewHierarchy returns an empty hierarchy with no levels configured.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{}
}

// InitL1 builds the split L1 instruction and data caches with the same
// geometry.
func (h *Hierarchy) InitL1(cfg string) error {
	l1i, err := Construct(cfg, "I$")
	if err != nil {
		return err
	}
	l1d, err := Construct(cfg, "D$")
	if err != nil {
		return err
	}

	h.l1i = l1i
	h.l1d = l1d
	return nil
}

// InitL2 builds the unified L2 and chains both L1 caches to it.
func (h *Hierarchy) InitL2(cfg string) error {
	if h.l1i == nil || h.l1d == nil {
		return ErrNoL1
	}

	l2, err := Construct(cfg, "L2$")
	if err != nil {
		return err
	}

	h.l2 = l2
	h.l1i.SetMissHandler(l2)
	h.l1d.SetMissHandler(l2)
	return nil
}

// InitL3 builds the L3 and chains L2 to it.
func (h *Hierarchy) InitL3(cfg string) error {
	if h.l2 == nil {
		return ErrNoL2
	}

	l3, err := Construct(cfg, "L3$")
	if err != nil {
		return err
	}

	h.l3 = l3
	h.l2.SetMissHandler(l3)
	return nil
}

// L1I returns the L1 instruction cache, or nil if L1 is not configured.
func (h *Hierarchy) L1I() *Cache { return h.l1i }

// L1D returns the L1 data cache, or nil if L1 is not configured.
func (h *Hierarchy) L1D() *Cache { return h.l1d }

// Levels returns the configured levels in teardown order: L1-I, L1-D,
// L2, L3. Missing levels are omitted.
func (h *Hierarchy) Levels() []*Cache {
	var levels []*Cache
	for _, c := range []*Cache{h.l1i, h.l1d, h.l2, h.l3} {
		if c != nil {
			levels = append(levels, c)
		}
	}
	return levels
}

// Configured reports whether any cache level has been built.
func (h *Hierarchy) Configured() bool {
	return h.l1i != nil && h.l1d != nil
}

// Finalize marks the deepest configured level as the miss tap, writes
// the header line announcing it to w, and remembers w as the
// destination for the teardown statistics.
func (h *Hierarchy) Finalize(w io.Writer, onMiss MissFunc) {
	h.statsSink = w

	switch {
	case h.l3 != nil:
		fmt.Fprintf(w, "L3 misses will be traced\n")
		h.l3.EnableTraceMiss(onMiss)
	case h.l2 != nil:
		fmt.Fprintf(w, "L2 misses will be traced\n")
		h.l2.EnableTraceMiss(onMiss)
	case h.l1i != nil && h.l1d != nil:
		fmt.Fprintf(w, "L1 misses will be traced\n")
		h.l1i.EnableTraceMiss(onMiss)
		h.l1d.EnableTraceMiss(onMiss)
	}
}

// FlushStats prints every level's statistics block top-down. Repeated
// calls print nothing, so an exit hook and an explicit shutdown do not
// double-report.
func (h *Hierarchy) FlushStats() {
	if h.flushed || h.statsSink == nil {
		return
	}
	h.flushed = true

	for _, c := range h.Levels() {
		c.PrintStats(h.statsSink)
	}
}
