package cloneable_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dynshot/internal/cloneable"
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/integrators"
	"github.com/san-kum/dynshot/internal/physics"
)

var _ = Describe("Map", func() {
	var dst, src *cloneable.Map[string, *counter]

	BeforeEach(func() {
		dst = cloneable.NewMap[string, *counter]()
		src = cloneable.NewMap[string, *counter]()
	})

	It("keeps keys sorted regardless of insertion order", func() {
		for _, k := range []string{"d", "a", "c", "b"} {
			dst.Set(k, newCounter(0))
		}
		Expect(dst.Keys()).To(Equal([]string{"a", "b", "c", "d"}))

		dst.Delete("b")
		Expect(dst.Keys()).To(Equal([]string{"a", "c", "d"}))
		Expect(dst.Has("b")).To(BeFalse())
	})

	It("reports empty slots as missing values but present keys", func() {
		dst.SetEmpty("a")
		_, ok := dst.Get("a")
		Expect(ok).To(BeFalse())
		Expect(dst.Has("a")).To(BeTrue())
		Expect(dst.Len()).To(Equal(1))
	})

	Describe("CopyFrom", func() {
		var kept *counter

		BeforeEach(func() {
			kept = newCounter(1)
			dst.Set("a", newCounter(0))
			dst.Set("b", kept)
			dst.Set("d", newCounter(0))
			dst.Set("e", newCounter(0))

			src.Set("b", newCounter(20))
			src.Set("c", newCounter(30))
			src.Set("e", newCounter(50))
			src.SetEmpty("f")
		})

		It("keeps destination-only keys as empty slots", func() {
			dst.CopyFrom(src)
			Expect(dst.Keys()).To(Equal([]string{"a", "b", "c", "d", "e", "f"}))
			for _, k := range []string{"a", "d"} {
				Expect(dst.Has(k)).To(BeTrue())
				_, ok := dst.Get(k)
				Expect(ok).To(BeFalse())
			}
		})

		It("drops destination keys past the last source key", func() {
			dst.Set("g", newCounter(0))
			dst.Set("h", newCounter(0))
			stats := dst.CopyFrom(src)
			Expect(dst.Keys()).To(Equal([]string{"a", "b", "c", "d", "e", "f"}))
			Expect(stats.Dropped).To(Equal(2))
			Expect(stats.Cleared).To(Equal(2))
		})

		It("keeps a middle key with no source counterpart", func() {
			small := cloneable.NewMap[string, *counter]()
			small.Set("a", newCounter(1))
			small.Set("e", newCounter(2))
			dst.CopyFrom(small)
			Expect(dst.Keys()).To(Equal([]string{"a", "b", "d", "e"}))
			_, ok := dst.Get("b")
			Expect(ok).To(BeFalse())
		})

		It("copies shared keys in place and clones new ones", func() {
			stats := dst.CopyFrom(src)

			Expect(stats).To(Equal(cloneable.MergeStats{Copied: 2, Cloned: 1, Cleared: 2, Absent: 1}))

			b, ok := dst.Get("b")
			Expect(ok).To(BeTrue())
			Expect(b).To(BeIdenticalTo(kept))
			Expect(b.value).To(Equal(20))
			Expect(b.copies).To(Equal(1))

			c, ok := dst.Get("c")
			Expect(ok).To(BeTrue())
			Expect(c.clone).To(BeTrue())
			srcC, _ := src.Get("c")
			Expect(c).NotTo(BeIdenticalTo(srcC))

			_, ok = dst.Get("f")
			Expect(ok).To(BeFalse())
			Expect(dst.Has("f")).To(BeTrue())
		})

		It("empties a destination slot when the source slot is empty", func() {
			src.SetEmpty("b")
			dst.CopyFrom(src)
			_, ok := dst.Get("b")
			Expect(ok).To(BeFalse())
		})

		It("clones into an empty destination slot", func() {
			dst.SetEmpty("e")
			stats := dst.CopyFrom(src)
			e, ok := dst.Get("e")
			Expect(ok).To(BeTrue())
			Expect(e.clone).To(BeTrue())
			Expect(stats.Cloned).To(Equal(2))
		})

		It("empties the destination when the source is empty", func() {
			stats := dst.CopyFrom(cloneable.NewMap[string, *counter]())
			Expect(dst.Len()).To(BeZero())
			Expect(stats.Dropped).To(Equal(4))
		})

		It("is a no-op on itself", func() {
			Expect(dst.CopyFrom(dst)).To(BeZero())
			Expect(dst.Len()).To(Equal(4))
		})
	})

	It("clones every value", func() {
		orig := newCounter(7)
		dst.Set("x", orig)
		dst.SetEmpty("y")

		c := dst.Clone()
		x, ok := c.Get("x")
		Expect(ok).To(BeTrue())
		Expect(x).NotTo(BeIdenticalTo(orig))
		Expect(x.value).To(Equal(7))
		Expect(c.Keys()).To(Equal([]string{"x", "y"}))
	})

	It("synchronises worlds without reallocating them", func() {
		template := physics.NewWorld(physics.NewPendulum(), integrators.NewRK4(), 0.01)
		template.SetPositions([]float64{0.4})

		workers := cloneable.NewMap[string, dynamo.World]()
		templates := cloneable.NewMap[string, dynamo.World]()
		templates.Set("p", template)

		workers.CopyFrom(templates)
		w, ok := workers.Get("p")
		Expect(ok).To(BeTrue())
		Expect(w).NotTo(BeIdenticalTo(dynamo.World(template)))
		Expect(w.Positions()).To(Equal(dynamo.State{0.4}))

		template.SetPositions([]float64{-0.2})
		stats := workers.CopyFrom(templates)
		again, _ := workers.Get("p")
		Expect(again).To(BeIdenticalTo(w))
		Expect(again.Positions()).To(Equal(dynamo.State{-0.2}))
		Expect(stats.Copied).To(Equal(1))
	})
})
