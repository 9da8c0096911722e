package trace_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memtrace/cachesim"
	"github.com/sarchlab/memtrace/trace"
)

type recordingTracer struct {
	kinds []trace.AccessKind
	seen  []trace.AccessKind
}

func (t *recordingTracer) InterestedIn(kind trace.AccessKind) bool {
	for _, k := range t.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (t *recordingTracer) Trace(
	vaddr, paddr uint64, bytes int, kind trace.AccessKind,
) {
	t.seen = append(t.seen, kind)
}

var _ = Describe("Registry", func() {
	It("should forward only to interested tracers", func() {
		var r trace.Registry
		iSide := &recordingTracer{kinds: []trace.AccessKind{trace.Fetch}}
		dSide := &recordingTracer{
			kinds: []trace.AccessKind{trace.Load, trace.Store},
		}
		r.Register(iSide)
		r.Register(dSide)

		r.Trace(0x1000, 0x1000, 4, trace.Fetch)
		r.Trace(0x2000, 0x2000, 8, trace.Load)
		r.Trace(0x3000, 0x3000, 8, trace.Store)

		Expect(iSide.seen).To(Equal([]trace.AccessKind{trace.Fetch}))
		Expect(dSide.seen).To(Equal([]trace.AccessKind{trace.Load, trace.Store}))
	})
})

var _ = Describe("Cache tracers", func() {
	var (
		iCache *cachesim.Cache
		dCache *cachesim.Cache
	)

	BeforeEach(func() {
		iCache, _ = cachesim.Construct("16:2:64", "I$")
		dCache, _ = cachesim.Construct("16:2:64", "D$")
	})

	It("should drive the instruction cache from fetches only", func() {
		t := &trace.ICacheTracer{Cache: iCache}

		Expect(t.InterestedIn(trace.Fetch)).To(BeTrue())
		Expect(t.InterestedIn(trace.Load)).To(BeFalse())
		Expect(t.InterestedIn(trace.Store)).To(BeFalse())

		t.Trace(0x1000, 0x1000, 4, trace.Fetch)
		Expect(iCache.Snapshot().ReadAccesses).To(Equal(uint64(1)))
	})

	It("should drive the data cache with the store flag", func() {
		t := &trace.DCacheTracer{Cache: dCache}

		Expect(t.InterestedIn(trace.Load)).To(BeTrue())
		Expect(t.InterestedIn(trace.Store)).To(BeTrue())
		Expect(t.InterestedIn(trace.Fetch)).To(BeFalse())

		t.Trace(0x1000, 0x1000, 8, trace.Load)
		t.Trace(0x2000, 0x2000, 8, trace.Store)

		stats := dCache.Snapshot()
		Expect(stats.ReadAccesses).To(Equal(uint64(1)))
		Expect(stats.WriteAccesses).To(Equal(uint64(1)))
	})
})
