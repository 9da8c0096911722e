// Package trace implements the memory-access tracing pipeline of the
// emulator: filtering, page-crossing splitting, and dispatch of guest
// accesses either to the simulated cache hierarchy or straight to the
// trace sink.
package trace

import (
	"fmt"
	"math"
	"os"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/memtrace/cachesim"
)

const (
	pageMask = 0xFFF
	pageSize = 0x1000
)

// System is the long-lived tracing context owned by the embedding
// emulator. It is single-threaded by contract: every entry point is
// called synchronously from the emulator's execution thread.
type System struct {
	started   bool
	emit      bool
	traceCode bool

	regionStart uint64
	regionEnd   uint64

	ramBase    uint64
	ramBaseSet bool

	translate Translator
	sink      *Sink
	recorder  Recorder

	registry  Registry
	hierarchy *cachesim.Hierarchy
	useCache  bool

	finalized bool
}

// NewSystem creates a tracing context. Without options it traces the
// whole physical address space through an identity translator and must
// still be started and given a sink before it emits anything.
func NewSystem(opts ...Option) *System {
	s := &System{
		emit:      true,
		traceCode: true,
		regionEnd: math.MaxUint64,
		translate: func(vaddr uint64) (uint64, bool) { return vaddr, true },
		hierarchy: cachesim.NewHierarchy(),
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start enables the pipeline. Intended to bracket a region of guest
// execution together with Stop.
func (s *System) Start() { s.started = true }

// Stop disables the pipeline; entry points become no-ops.
func (s *System) Stop() { s.started = false }

// Started reports whether the pipeline is currently enabled.
func (s *System) Started() bool { return s.started }

// SetRegion replaces the physical-address filter window from a
// "<start>:<end>" string. Previously emitted records are unaffected.
func (s *System) SetRegion(region string) error {
	start, end, err := parseRegion(region)
	if err != nil {
		return err
	}

	s.regionStart = start
	s.regionEnd = end

	fmt.Fprintf(os.Stderr, "region_start: %x\n", s.regionStart)
	fmt.Fprintf(os.Stderr, "region_end: %x\n", s.regionEnd)
	return nil
}

// SetRAMBase records the host address of guest RAM. Only the first
// call with an open sink is recorded; the first RAM block registered
// by the emulator is the system memory.
func (s *System) SetRAMBase(addr, size uint64) {
	if s.ramBaseSet || s.sink == nil {
		return
	}

	s.ramBase = addr
	s.ramBaseSet = true
	s.sink.Printf("RAM base: 0x%x, size: 0x%x\n", addr, size)
}

// InitL1 builds the split L1 caches.
func (s *System) InitL1(cfg string) error {
	return s.hierarchy.InitL1(cfg)
}

// InitL2 builds the unified L2. L1 must already be configured.
func (s *System) InitL2(cfg string) error {
	return s.hierarchy.InitL2(cfg)
}

// InitL3 builds the L3. L2 must already be configured.
func (s *System) InitL3(cfg string) error {
	return s.hierarchy.InitL3(cfg)
}

// Hierarchy exposes the configured cache levels, e.g. for a statistics
// endpoint.
func (s *System) Hierarchy() *cachesim.Hierarchy {
	return s.hierarchy
}

// Finalize opens the trace sink (path "" or "-" selects stdout, unless
// a sink writer was injected at construction) and, when a hierarchy is
// configured, registers the L1 tracers and marks the deepest level as
// the miss tap. Statistics are flushed at Shutdown, or at process exit
// through atexit as a fallback.
func (s *System) Finalize(path string) error {
	if s.finalized {
		return nil
	}

	if s.sink == nil {
		sink, err := OpenSink(path)
		if err != nil {
			return err
		}
		s.sink = sink
	}

	if s.hierarchy.Configured() {
		s.registry.Register(&ICacheTracer{Cache: s.hierarchy.L1I()})
		s.registry.Register(&DCacheTracer{Cache: s.hierarchy.L1D()})
		s.hierarchy.Finalize(s.sink.Writer(), s.logFiltered)
		s.useCache = true
	}

	s.finalized = true
	atexit.Register(s.flush)
	return nil
}

// Shutdown tears the tracing context down: cache statistics flush to
// the sink, the structured recorder drains, and the sink closes.
func (s *System) Shutdown() {
	s.started = false
	s.flush()
	s.sink.Close()
}

func (s *System) flush() {
	s.hierarchy.FlushStats()

	if s.recorder != nil {
		for _, c := range s.hierarchy.Levels() {
			s.recorder.RecordStats(c.Name(), c.Snapshot())
		}
		s.recorder.Flush()
	}
}

// OnLoad observes a guest load.
func (s *System) OnLoad(vaddr uint64, size int) {
	s.pipe(vaddr, size, Load)
}

// OnStore observes a guest store.
func (s *System) OnStore(vaddr uint64, size int) {
	s.pipe(vaddr, size, Store)
}

// OnFetch observes a guest instruction fetch.
func (s *System) OnFetch(vaddr uint64, size int) {
	s.pipe(vaddr, size, Fetch)
}

// pipe is the access pipeline: gate, split, translate, dispatch.
func (s *System) pipe(vaddr uint64, size int, kind AccessKind) {
	if !s.started {
		return
	}

	// An access that is unaligned for its size and crosses a page
	// boundary translates as two independent halves: translation is
	// page-granular. The emulator only presents power-of-two widths,
	// so the halves split cleanly.
	if uint64(size-1)&vaddr != 0 && (vaddr&pageMask)+uint64(size) >= pageSize {
		half := size / 2
		s.pipe(vaddr, half, kind)
		s.pipe(vaddr+uint64(half), half, kind)
		return
	}

	paddr, ok := s.translate(vaddr &^ uint64(pageMask))
	if !ok {
		// The access would fault in the guest; it is not a memory
		// event.
		return
	}
	paddr |= vaddr & pageMask

	if s.useCache {
		s.registry.Trace(vaddr, paddr, size, kind)
		return
	}

	if kind == Fetch && !s.traceCode {
		return
	}
	s.logFiltered(vaddr, paddr, size, kind == Store)
}

// logFiltered emits one record if emission is on, a sink is present,
// and paddr falls inside the region window. It is both the direct
// emitter and the cache-miss callback.
func (s *System) logFiltered(vaddr, paddr uint64, size int, store bool) {
	if !s.emit || s.sink == nil {
		return
	}
	if paddr < s.regionStart || paddr >= s.regionEnd {
		return
	}

	s.sink.Record(vaddr, paddr, size, store)

	if s.recorder != nil {
		s.recorder.Record(vaddr, paddr, size, store)
	}
}
