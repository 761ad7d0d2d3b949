// Package objspace implements the Fern object-layout and pointer-semantics
// engine on a host-simulated heap.
//
// This package contains:
//   - Scalar, struct and variable-array type descriptors
//   - Identity-memoized generic instantiation (Box, ptr, boxptr, arrays)
//   - GC-header-prefixed box layouts with reference-type elision
//   - An address-indexed heap with type-checked loads
//   - Opaque typed pointers with transparent field forwarding
//   - The gc_alloc allocation surface, including flexible trailing arrays
package objspace
