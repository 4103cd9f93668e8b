package cloneable_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynshot/internal/cloneable"
)

var _ = Describe("Vector", func() {
	It("copies index by index and truncates", func() {
		first := newCounter(0)
		dst := cloneable.NewVector(first, newCounter(0), newCounter(0))
		dst.Clear(1)
		src := cloneable.NewVector(newCounter(10), newCounter(11))

		stats := dst.CopyFrom(src)
		Expect(stats).To(Equal(cloneable.MergeStats{Copied: 1, Cloned: 1, Dropped: 1}))
		Expect(dst.Len()).To(Equal(2))

		v0, ok := dst.At(0)
		Expect(ok).To(BeTrue())
		Expect(v0).To(BeIdenticalTo(first))
		Expect(v0.value).To(Equal(10))

		v1, ok := dst.At(1)
		Expect(ok).To(BeTrue())
		Expect(v1.clone).To(BeTrue())
		Expect(v1.value).To(Equal(11))
	})

	It("grows to the source length", func() {
		dst := cloneable.NewVector[*counter]()
		src := cloneable.NewVector(newCounter(1))
		src.AppendEmpty()
		src.Append(newCounter(3))

		stats := dst.CopyFrom(src)
		Expect(dst.Len()).To(Equal(3))
		Expect(stats).To(Equal(cloneable.MergeStats{Cloned: 2, Absent: 1}))

		_, ok := dst.At(1)
		Expect(ok).To(BeFalse())
	})

	It("empties slots the source leaves empty", func() {
		dst := cloneable.NewVector(newCounter(1))
		src := cloneable.NewVector(newCounter(2))
		src.Clear(0)

		dst.CopyFrom(src)
		_, ok := dst.At(0)
		Expect(ok).To(BeFalse())
	})

	It("clones into independent values", func() {
		orig := cloneable.NewVector(newCounter(5))
		c := orig.Clone()
		v, _ := c.At(0)
		o, _ := orig.At(0)
		Expect(v).NotTo(BeIdenticalTo(o))

		v.value = 6
		Expect(o.value).To(Equal(5))
	})
})
