package objspace

import "fmt"

// ---------------------------------------------------------------------------
// Variable arrays
// ---------------------------------------------------------------------------

// VarArrayValue is a fixed-length backing sequence for a flexible array
// field. The length is decided at allocation time, never at declaration
// time, and does not change afterwards.
type VarArrayValue struct {
	elem  *Type
	items []Value
}

// newVarArrayValue builds a backing sequence of count uninitialized slots.
func newVarArrayValue(elem *Type, count int) *VarArrayValue {
	return &VarArrayValue{elem: elem, items: make([]Value, count)}
}

// NewVarArray builds a count-length backing sequence value for a vararray
// type. This exists for image restoration; normal code gets its arrays
// from GCAllocVarsize.
func NewVarArray(t *Type, count int) (Value, error) {
	if t == nil || t.kind != KindVarArray {
		return Value{}, fmt.Errorf("%w: %v is not a variable-array type", ErrShape, t)
	}
	if count < 0 {
		return Value{}, fmt.Errorf("%w: negative array count %d", ErrInvalidAlloc, count)
	}
	return arrayValueOf(t, newVarArrayValue(t.elem, count)), nil
}

// Elem returns the item type.
func (a *VarArrayValue) Elem() *Type { return a.elem }

// Len returns the length recorded at allocation.
func (a *VarArrayValue) Len() int { return len(a.items) }

// Get returns the item at index i.
func (a *VarArrayValue) Get(i int) (Value, error) {
	if i < 0 || i >= len(a.items) {
		return Value{}, fmt.Errorf("%w: index %d, length %d", ErrIndexRange, i, len(a.items))
	}
	return a.items[i], nil
}

// Set writes the item at index i in place.
func (a *VarArrayValue) Set(i int, v Value) error {
	if i < 0 || i >= len(a.items) {
		return fmt.Errorf("%w: index %d, length %d", ErrIndexRange, i, len(a.items))
	}
	a.items[i] = v
	return nil
}
