// Package cloneable holds containers of polymorphic values that can be
// synchronised from another container while reusing their own storage.
//
// Synchronising prefers Copy, which overwrites an existing value in place,
// over Clone, which allocates a new one. A destination slot with no
// counterpart in the source has its value released.
package cloneable

// Cloneable is implemented by values that can produce an independent copy
// of themselves and can be overwritten in place from another value.
type Cloneable[T any] interface {
	Clone() T
	Copy(from T)
}

// MergeStats counts what a CopyFrom did with each slot.
type MergeStats struct {
	Copied  int
	Cloned  int
	Dropped int
	// Cleared counts destination keys kept as empty slots because the
	// source has no such key.
	Cleared int
	// Absent counts slots left empty because the source slot was empty.
	Absent int
}
