package cloneable

type slot[V Cloneable[V]] struct {
	value   V
	present bool
}

// Vector is a sequence of cloneable values, any of which may be empty.
type Vector[V Cloneable[V]] struct {
	slots []slot[V]
}

func NewVector[V Cloneable[V]](values ...V) *Vector[V] {
	v := &Vector[V]{slots: make([]slot[V], len(values))}
	for i, x := range values {
		v.slots[i] = slot[V]{value: x, present: true}
	}
	return v
}

func (v *Vector[V]) Len() int { return len(v.slots) }

func (v *Vector[V]) Append(x V) {
	v.slots = append(v.slots, slot[V]{value: x, present: true})
}

func (v *Vector[V]) AppendEmpty() {
	v.slots = append(v.slots, slot[V]{})
}

func (v *Vector[V]) At(i int) (x V, ok bool) {
	s := v.slots[i]
	return s.value, s.present
}

func (v *Vector[V]) Set(i int, x V) {
	v.slots[i] = slot[V]{value: x, present: true}
}

func (v *Vector[V]) Clear(i int) {
	v.slots[i] = slot[V]{}
}

func (v *Vector[V]) Clone() *Vector[V] {
	out := &Vector[V]{slots: make([]slot[V], len(v.slots))}
	for i, s := range v.slots {
		if s.present {
			out.slots[i] = slot[V]{value: s.value.Clone(), present: true}
		}
	}
	return out
}

func (v *Vector[V]) Copy(from *Vector[V]) {
	v.CopyFrom(from)
}

// CopyFrom resizes v to src's length and synchronises it index by index,
// copying into present slots and cloning into empty or new ones.
func (v *Vector[V]) CopyFrom(src *Vector[V]) MergeStats {
	var stats MergeStats
	if v == src {
		return stats
	}
	if len(v.slots) > len(src.slots) {
		stats.Dropped = len(v.slots) - len(src.slots)
		clear(v.slots[len(src.slots):])
		v.slots = v.slots[:len(src.slots)]
	}
	for len(v.slots) < len(src.slots) {
		v.slots = append(v.slots, slot[V]{})
	}
	for i, s := range src.slots {
		d := &v.slots[i]
		switch {
		case !s.present:
			*d = slot[V]{}
			stats.Absent++
		case d.present:
			d.value.Copy(s.value)
			stats.Copied++
		default:
			*d = slot[V]{value: s.value.Clone(), present: true}
			stats.Cloned++
		}
	}
	return stats
}
