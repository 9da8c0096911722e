package record_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memtrace/cachesim"
	"github.com/sarchlab/memtrace/record"
)

// fakeBackend captures DataRecorder calls in memory.
type fakeBackend struct {
	tables  map[string][]any
	flushes int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{tables: make(map[string][]any)}
}

func (b *fakeBackend) CreateTable(tableName string, sampleEntry any) {
	b.tables[tableName] = []any{}
}

func (b *fakeBackend) InsertData(tableName string, entry any) {
	b.tables[tableName] = append(b.tables[tableName], entry)
}

func (b *fakeBackend) ListTables() []string {
	names := make([]string, 0, len(b.tables))
	for name := range b.tables {
		names = append(names, name)
	}
	return names
}

func (b *fakeBackend) Flush() {
	b.flushes++
}

func (b *fakeBackend) Close() error {
	return nil
}

var _ = Describe("Recorder", func() {
	var (
		backend *fakeBackend
		r       *record.Recorder
	)

	BeforeEach(func() {
		backend = newFakeBackend()
		r = record.NewRecorderWithBackend(backend)
	})

	It("should create the trace and stats tables", func() {
		Expect(backend.ListTables()).To(ConsistOf("trace_records", "cache_stats"))
	})

	It("should mirror trace records", func() {
		r.Record(0x1000, 0x8000_1000, 8, false)
		r.Record(0, 0x4000, 64, true)

		Expect(backend.tables["trace_records"]).To(Equal([]any{
			record.TraceRecord{Kind: "L", VAddr: 0x1000, PAddr: 0x8000_1000, Size: 8},
			record.TraceRecord{Kind: "S", VAddr: 0, PAddr: 0x4000, Size: 64},
		}))
	})

	It("should mirror per-level statistics", func() {
		r.RecordStats("D$", cachesim.Stats{
			BytesRead:    64,
			ReadAccesses: 4,
			ReadMisses:   1,
		})

		rows := backend.tables["cache_stats"]
		Expect(rows).To(HaveLen(1))

		row := rows[0].(record.StatsRecord)
		Expect(row.Level).To(Equal("D$"))
		Expect(row.ReadAccesses).To(Equal(uint64(4)))
		Expect(row.MissRate).To(BeNumerically("~", 25.0, 1e-9))
	})

	It("should flush the backend", func() {
		r.Flush()
		Expect(backend.flushes).To(Equal(1))
	})
})
