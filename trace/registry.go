package trace

import (
	"github.com/sarchlab/memtrace/cachesim"
)

// AccessKind classifies a guest memory access.
type AccessKind int

// The three access kinds presented by the emulator.
const (
	Load AccessKind = iota
	Store
	Fetch
)

func (k AccessKind) String() string {
	switch k {
	case Load:
		return "load"
	case Store:
		return "store"
	case Fetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// Tracer is one consumer of the access stream. A tracer declares which
// access kinds it wants; the registry only forwards those.
type Tracer interface {
	InterestedIn(kind AccessKind) bool
	Trace(vaddr, paddr uint64, bytes int, kind AccessKind)
}

// Registry fans an access out to every interested tracer, in
// registration order. For a cache hierarchy only one of the two L1
// tracers is interested in any given kind, so the order does not
// change semantics; it is fixed for reproducibility.
type Registry struct {
	tracers []Tracer
}

// Register appends a tracer to the fan-out list.
func (r *Registry) Register(t Tracer) {
	r.tracers = append(r.tracers, t)
}

// Trace forwards the access to every interested tracer.
func (r *Registry) Trace(vaddr, paddr uint64, bytes int, kind AccessKind) {
	for _, t := range r.tracers {
		if t.InterestedIn(kind) {
			t.Trace(vaddr, paddr, bytes, kind)
		}
	}
}

// ICacheTracer drives an instruction cache from fetch accesses.
type ICacheTracer struct {
	Cache *cachesim.Cache
}

// InterestedIn reports true only for fetches.
func (t *ICacheTracer) InterestedIn(kind AccessKind) bool {
	return kind == Fetch
}

// Trace runs the fetch through the instruction cache as a read.
func (t *ICacheTracer) Trace(vaddr, paddr uint64, bytes int, kind AccessKind) {
	if kind == Fetch {
		t.Cache.Access(vaddr, paddr, bytes, false)
	}
}

// DCacheTracer drives a data cache from load and store accesses.
type DCacheTracer struct {
	Cache *cachesim.Cache
}

// InterestedIn reports true for loads and stores.
func (t *DCacheTracer) InterestedIn(kind AccessKind) bool {
	return kind == Load || kind == Store
}

// Trace runs the access through the data cache.
func (t *DCacheTracer) Trace(vaddr, paddr uint64, bytes int, kind AccessKind) {
	if kind == Load || kind == Store {
		t.Cache.Access(vaddr, paddr, bytes, kind == Store)
	}
}
