package cloneable

import (
	"cmp"
	"slices"
)

type entry[K cmp.Ordered, V Cloneable[V]] struct {
	key     K
	value   V
	present bool
}

// Map is an ordered map of cloneable values. A key may be held with no
// value, which CopyFrom propagates as an empty slot.
type Map[K cmp.Ordered, V Cloneable[V]] struct {
	entries []entry[K, V]
}

func NewMap[K cmp.Ordered, V Cloneable[V]]() *Map[K, V] {
	return &Map[K, V]{}
}

func (m *Map[K, V]) find(k K) (int, bool) {
	return slices.BinarySearchFunc(m.entries, k, func(e entry[K, V], k K) int {
		return cmp.Compare(e.key, k)
	})
}

// Set stores v under k, replacing any previous value.
func (m *Map[K, V]) Set(k K, v V) {
	i, ok := m.find(k)
	if ok {
		m.entries[i].value = v
		m.entries[i].present = true
		return
	}
	m.entries = slices.Insert(m.entries, i, entry[K, V]{key: k, value: v, present: true})
}

// SetEmpty keeps k in the map with no value.
func (m *Map[K, V]) SetEmpty(k K) {
	var zero V
	i, ok := m.find(k)
	if ok {
		m.entries[i].value = zero
		m.entries[i].present = false
		return
	}
	m.entries = slices.Insert(m.entries, i, entry[K, V]{key: k})
}

// Get returns the value under k. ok is false for missing keys and for
// empty slots.
func (m *Map[K, V]) Get(k K) (v V, ok bool) {
	i, found := m.find(k)
	if !found || !m.entries[i].present {
		return v, false
	}
	return m.entries[i].value, true
}

func (m *Map[K, V]) Has(k K) bool {
	_, ok := m.find(k)
	return ok
}

func (m *Map[K, V]) Delete(k K) {
	if i, ok := m.find(k); ok {
		m.entries = slices.Delete(m.entries, i, i+1)
	}
}

func (m *Map[K, V]) Len() int { return len(m.entries) }

// Keys returns every key in ascending order, empty slots included.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

// Range calls fn for each present value in key order until fn returns
// false.
func (m *Map[K, V]) Range(fn func(k K, v V) bool) {
	for _, e := range m.entries {
		if e.present && !fn(e.key, e.value) {
			return
		}
	}
}

// Clone returns a map holding clones of every value.
func (m *Map[K, V]) Clone() *Map[K, V] {
	out := &Map[K, V]{entries: make([]entry[K, V], len(m.entries))}
	for i, e := range m.entries {
		out.entries[i] = entry[K, V]{key: e.key, present: e.present}
		if e.present {
			out.entries[i].value = e.value.Clone()
		}
	}
	return out
}

func (m *Map[K, V]) Copy(from *Map[K, V]) {
	m.CopyFrom(from)
}

// CopyFrom makes m hold the same keys as src with values equal to src's.
// Both key sequences are walked once in order: a value present on both
// sides is overwritten in place with Copy, a source value with no
// destination is cloned. A destination key missing from src keeps its slot
// with the value released, unless it sorts after every source key, in
// which case it is dropped.
func (m *Map[K, V]) CopyFrom(src *Map[K, V]) MergeStats {
	var stats MergeStats
	if m == src {
		return stats
	}
	out := make([]entry[K, V], 0, max(len(src.entries), len(m.entries)))
	i, j := 0, 0
	for j < len(src.entries) {
		s := src.entries[j]
		if i < len(m.entries) {
			d := m.entries[i]
			switch c := cmp.Compare(d.key, s.key); {
			case c < 0:
				out = append(out, entry[K, V]{key: d.key})
				stats.Cleared++
				i++
				continue
			case c == 0:
				out = append(out, mergeSlot(d, s, &stats))
				i++
				j++
				continue
			}
		}
		out = append(out, mergeSlot(entry[K, V]{key: s.key}, s, &stats))
		j++
	}
	stats.Dropped += len(m.entries) - i
	m.entries = out
	return stats
}

func mergeSlot[K cmp.Ordered, V Cloneable[V]](dst, src entry[K, V], stats *MergeStats) entry[K, V] {
	switch {
	case !src.present:
		stats.Absent++
		return entry[K, V]{key: src.key}
	case dst.present:
		dst.value.Copy(src.value)
		stats.Copied++
		return dst
	default:
		stats.Cloned++
		return entry[K, V]{key: src.key, value: src.value.Clone(), present: true}
	}
}
