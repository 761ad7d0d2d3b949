package objspace

import "errors"

// ---------------------------------------------------------------------------
// Fault taxonomy
// ---------------------------------------------------------------------------

// All faults raised by this package are programmer or integrity errors.
// None of them is transient: the operation that triggered one has no
// partial-success or retry path.

// ErrShape indicates a struct declaration that breaks a layout rule:
// a flexible array field that is not last, more than one flexible array
// field, a malformed reference-type shape, or boxing a box.
var ErrShape = errors.New("shape error")

// ErrTypeMismatch indicates that the dynamic type found at a heap address
// disagrees with the statically expected type, or that a box-pointer
// conversion targets the wrong payload type.
var ErrTypeMismatch = errors.New("type mismatch")

// ErrInvalidAlloc indicates allocating a box layout directly, or
// varsize-allocating a type without exactly one flexible array field.
var ErrInvalidAlloc = errors.New("invalid allocation")

// ErrUnknownField indicates constructing with, or accessing, a field name
// the struct type does not declare.
var ErrUnknownField = errors.New("unknown field")

// ErrIndexRange indicates an out-of-range index into a variable array.
var ErrIndexRange = errors.New("index out of range")
