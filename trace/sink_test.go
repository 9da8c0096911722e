package trace_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memtrace/trace"
)

var _ = Describe("Sink", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("should format loads and stores", func() {
		s := trace.NewSink(buf)
		s.Record(0x1000, 0x1000, 8, false)
		s.Record(0x2000, 0x2000, 4, true)

		Expect(buf.String()).To(Equal(
			"L 0x1000 size 8 => 0x1000\n" +
				"S 0x2000 size 4 => 0x2000\n"))
	})

	It("should omit the vaddr suffix for the zero sentinel", func() {
		s := trace.NewSink(buf)
		s.Record(0, 0x4000, 64, true)

		Expect(buf.String()).To(Equal("S 0x4000 size 64\n"))
	})

	It("should write the location marker", func() {
		s := trace.NewSink(buf)
		s.Mark()

		Expect(buf.String()).To(Equal("===UCBTRACE==="))
	})

	It("should tolerate a nil sink", func() {
		var s *trace.Sink
		s.Record(0x1000, 0x1000, 8, false)
		Expect(s.Close()).To(Succeed())
	})

	It("should write to a file and close it", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace.out")
		s, err := trace.OpenSink(path)
		Expect(err).NotTo(HaveOccurred())

		s.Record(0x1000, 0x1000, 8, false)
		Expect(s.Close()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("L 0x1000 size 8 => 0x1000\n"))
	})

	It("should fail on an unwritable path", func() {
		_, err := trace.OpenSink("/nonexistent-dir/trace.out")
		Expect(err).To(HaveOccurred())
	})
})
