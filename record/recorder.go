// Package record mirrors trace output into a SQLite database, so a
// recorded run can be queried offline instead of grepping the line
// trace.
package record

import (
	"github.com/sarchlab/akita/v4/datarecording"

	"github.com/sarchlab/memtrace/cachesim"
)

const (
	recordTable = "trace_records"
	statsTable  = "cache_stats"
)

// TraceRecord is one emitted trace record. Kind is "L" for loads and
// fills, "S" for stores and writebacks, matching the line trace.
type TraceRecord struct {
	Kind  string
	VAddr uint64
	PAddr uint64
	Size  int
}

// StatsRecord is the final counter set of one cache level.
type StatsRecord struct {
	Level         string
	BytesRead     uint64
	BytesWritten  uint64
	ReadAccesses  uint64
	WriteAccesses uint64
	ReadMisses    uint64
	WriteMisses   uint64
	Writebacks    uint64
	MissRate      float64
}

// Recorder implements trace.Recorder on top of an akita DataRecorder.
type Recorder struct {
	backend datarecording.DataRecorder
}

// NewRecorder creates a recorder writing to <path>.sqlite3.
func NewRecorder(path string) *Recorder {
	return NewRecorderWithBackend(datarecording.NewDataRecorder(path))
}

// NewRecorderWithBackend wraps an existing DataRecorder. Used by tests
// to substitute an in-memory backend.
func NewRecorderWithBackend(backend datarecording.DataRecorder) *Recorder {
	r := &Recorder{backend: backend}
	r.backend.CreateTable(recordTable, TraceRecord{})
	r.backend.CreateTable(statsTable, StatsRecord{})
	return r
}

// Record mirrors one trace record.
func (r *Recorder) Record(vaddr, paddr uint64, size int, store bool) {
	kind := "L"
	if store {
		kind = "S"
	}

	r.backend.InsertData(recordTable, TraceRecord{
		Kind:  kind,
		VAddr: vaddr,
		PAddr: paddr,
		Size:  size,
	})
}

// RecordStats mirrors one level's final counters.
func (r *Recorder) RecordStats(level string, stats cachesim.Stats) {
	r.backend.InsertData(statsTable, StatsRecord{
		Level:         level,
		BytesRead:     stats.BytesRead,
		BytesWritten:  stats.BytesWritten,
		ReadAccesses:  stats.ReadAccesses,
		WriteAccesses: stats.WriteAccesses,
		ReadMisses:    stats.ReadMisses,
		WriteMisses:   stats.WriteMisses,
		Writebacks:    stats.Writebacks,
		MissRate:      stats.MissRate(),
	})
}

// Flush drains buffered rows to the database.
func (r *Recorder) Flush() {
	r.backend.Flush()
}
