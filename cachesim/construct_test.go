package cachesim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/memtrace/cachesim"
)

var _ = Describe("Construct", func() {
	It("should build a fully-associative cache for one set and many ways", func() {
		c, err := cachesim.Construct("1:8:64", "FA")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.FullyAssociative()).To(BeTrue())
	})

	It("should build a set-associative cache for one set and few ways", func() {
		c, err := cachesim.Construct("1:4:64", "SA")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.FullyAssociative()).To(BeFalse())
	})

	It("should build a set-associative cache for many sets", func() {
		c, err := cachesim.Construct("64:8:64", "SA")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.FullyAssociative()).To(BeFalse())
		Expect(c.LineSize()).To(Equal(64))
	})

	It("should reject a config without three fields", func() {
		_, err := cachesim.Construct("64:8", "bad")
		Expect(err).To(HaveOccurred())
	})

	It("should reject non-numeric fields", func() {
		_, err := cachesim.Construct("sets:ways:line", "bad")
		Expect(err).To(HaveOccurred())
	})

	It("should reject a non-power-of-two set count", func() {
		_, err := cachesim.Construct("3:4:64", "bad")
		Expect(err).To(HaveOccurred())
	})

	It("should reject a zero set count", func() {
		_, err := cachesim.Construct("0:4:64", "bad")
		Expect(err).To(HaveOccurred())
	})

	It("should reject a zero way count", func() {
		_, err := cachesim.Construct("64:0:64", "bad")
		Expect(err).To(HaveOccurred())
	})

	It("should reject a line size below 8", func() {
		_, err := cachesim.Construct("64:4:4", "bad")
		Expect(err).To(HaveOccurred())
	})

	It("should reject a non-power-of-two line size", func() {
		_, err := cachesim.Construct("64:4:24", "bad")
		Expect(err).To(HaveOccurred())
	})
})
