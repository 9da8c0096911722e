package trace

import (
	"fmt"
	"io"
	"os"
)

// Sink is the process-wide trace destination. Writes are line-granular
// and fail-silent: once the sink is open, a full disk must not take
// down the embedding emulator.
type Sink struct {
	w    io.Writer
	file *os.File
}

// NewSink wraps an arbitrary writer as a trace sink.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// OpenSink opens the trace file at path. An empty path or "-" selects
// standard output.
func OpenSink(path string) (*Sink, error) {
	if path == "" || path == "-" {
		return &Sink{w: os.Stdout}, nil
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open trace file: %w", err)
	}
	return &Sink{w: file, file: file}, nil
}

// Writer returns the sink's underlying writer.
func (s *Sink) Writer() io.Writer {
	return s.w
}

// Printf writes one formatted line. Errors are dropped.
func (s *Sink) Printf(format string, args ...any) {
	if s == nil || s.w == nil {
		return
	}
	fmt.Fprintf(s.w, format, args...)
}

// Record writes one trace record. Loads and fetches print as "L",
// stores as "S". A zero vaddr is the sentinel for "no virtual-address
// context" and omits the vaddr suffix. Cache writebacks are not given
// the sentinel: they carry the evicted line's installing vaddr.
func (s *Sink) Record(vaddr, paddr uint64, size int, store bool) {
	kind := "L"
	if store {
		kind = "S"
	}

	if vaddr != 0 {
		s.Printf("%s 0x%x size %d => 0x%x\n", kind, paddr, size, vaddr)
	} else {
		s.Printf("%s 0x%x size %d\n", kind, paddr, size)
	}
}

// Mark writes the trace location marker used to align a trace with a
// point in guest execution.
func (s *Sink) Mark() {
	s.Printf("===UCBTRACE===")
}

// Close closes the underlying file, if the sink owns one.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
