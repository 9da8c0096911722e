package trace

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/memtrace/cachesim"
)

// regionUsage is the hint attached to region parse failures.
const regionUsage = "trace regions must be of the form <start>:<end>, " +
	"both hex integers (e.g. 0x80000:0x90000)"

// Translator resolves a guest virtual address to a physical address.
// ok is false when the guest has no mapping for the address; such
// accesses are dropped by the pipeline.
type Translator func(vaddr uint64) (paddr uint64, ok bool)

// Recorder mirrors emitted trace records and final statistics into a
// structured store. The record package provides a SQLite-backed
// implementation.
type Recorder interface {
	Record(vaddr, paddr uint64, size int, store bool)
	RecordStats(level string, stats cachesim.Stats)
	Flush()
}

// Option configures a System at construction time.
type Option func(*System)

// WithTranslator sets the guest physical-address translator supplied
// by the embedding emulator.
func WithTranslator(t Translator) Option {
	return func(s *System) {
		s.translate = t
	}
}

// WithSink directs trace output to w instead of a file opened at
// Finalize time.
func WithSink(w io.Writer) Option {
	return func(s *System) {
		s.sink = NewSink(w)
	}
}

// WithRegion sets the physical-address filter window [start, end).
func WithRegion(start, end uint64) Option {
	return func(s *System) {
		s.regionStart = start
		s.regionEnd = end
	}
}

// WithEmit enables or disables writing to the sink. Disabled emission
// still drives the cache hierarchy.
func WithEmit(emit bool) Option {
	return func(s *System) {
		s.emit = emit
	}
}

// WithCodeTracing controls whether instruction fetches produce direct
// trace records when no cache hierarchy is configured. A configured
// hierarchy always simulates fetches through L1-I.
func WithCodeTracing(enable bool) Option {
	return func(s *System) {
		s.traceCode = enable
	}
}

// WithRecorder attaches a structured recorder alongside the line sink.
func WithRecorder(r Recorder) Option {
	return func(s *System) {
		s.recorder = r
	}
}

// parseRegion parses "<start>:<end>", both hex with or without a 0x
// prefix.
func parseRegion(region string) (start, end uint64, err error) {
	lo, hi, ok := strings.Cut(region, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed region %q: %s", region, regionUsage)
	}

	start, err = parseHex(lo)
	if err != nil {
		return 0, 0, fmt.Errorf("bad region start %q: %s", lo, regionUsage)
	}
	end, err = parseHex(hi)
	if err != nil {
		return 0, 0, fmt.Errorf("bad region end %q: %s", hi, regionUsage)
	}

	return start, end, nil
}

func parseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strconv.ParseUint(s, 16, 64)
}
