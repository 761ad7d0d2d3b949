package objspace

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Runtime: the context owning heap, caches and type registry
// ---------------------------------------------------------------------------

// Runtime owns one simulated address space, one generic instantiation
// cache and one name registry. Independent runtimes are fully isolated;
// type identity only holds within a single Runtime.
//
// The engine is designed for single-threaded use. The heap, the generic
// cache and the registry each carry a serializing lock so that concurrent
// callers do not corrupt the shared tables, but struct instances
// themselves are not synchronized.
type Runtime struct {
	id       string
	heap     *Heap
	generics *genericCache

	regMu sync.RWMutex
	types map[string]*Type

	i32    *Type
	u8     *Type
	meta   *Type // the fixed "type" sentinel
	header *Type // GCHeader
}

// NewRuntime creates an empty runtime with the builtin scalar types and
// the canonical GC header layout installed.
func NewRuntime() *Runtime {
	rt := &Runtime{
		id:       uuid.NewString(),
		heap:     newHeap(),
		generics: newGenericCache(),
		types:    make(map[string]*Type),
	}
	rt.i32 = &Type{name: "i32", kind: KindScalar}
	rt.u8 = &Type{name: "u8", kind: KindScalar}
	rt.meta = &Type{name: "type", kind: KindScalar}
	for _, t := range []*Type{rt.i32, rt.u8, rt.meta} {
		rt.types[t.name] = t
	}

	// Canonical header-first layout: every box starts with
	// GCHeader{refcount, dyntype}.
	hdr, err := newStructType("GCHeader", []Field{
		{Name: "refcount", Type: rt.i32},
		{Name: "dyntype", Type: rt.meta},
	})
	if err != nil {
		panic(fmt.Sprintf("objspace: building GCHeader: %v", err))
	}
	rt.header = hdr
	rt.types[hdr.name] = hdr
	return rt
}

// ID returns the runtime's unique instance identifier.
func (rt *Runtime) ID() string { return rt.id }

// I32Type returns the builtin i32 scalar type.
func (rt *Runtime) I32Type() *Type { return rt.i32 }

// U8Type returns the builtin u8 scalar type.
func (rt *Runtime) U8Type() *Type { return rt.u8 }

// TypeType returns the fixed "type" sentinel: the dynamic type of every
// type descriptor.
func (rt *Runtime) TypeType() *Type { return rt.meta }

// HeaderType returns the GCHeader struct type.
func (rt *Runtime) HeaderType() *Type { return rt.header }

// I32 tags an integer as an i32 value.
func (rt *Runtime) I32(n int32) Value { return Scalar(rt.i32, int64(n)) }

// U8 tags a byte as a u8 value.
func (rt *Runtime) U8(b byte) Value { return Scalar(rt.u8, int64(b)) }

// TypeValue wraps a type descriptor as a value tagged with the "type"
// sentinel.
func (rt *Runtime) TypeValue(t *Type) Value {
	return Value{typ: rt.meta, kind: valType, tval: t}
}

// DynTypeOf returns the dynamic type of v: the type it was tagged with at
// construction. Type descriptors report the fixed "type" sentinel.
func (rt *Runtime) DynTypeOf(v Value) *Type { return v.typ }

// ---------------------------------------------------------------------------
// Type constructors
// ---------------------------------------------------------------------------

// NewScalarType defines a new atomic named leaf type.
func (rt *Runtime) NewScalarType(name string) (*Type, error) {
	t := &Type{name: name, kind: KindScalar}
	if err := rt.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewStructType defines a struct type with the given ordered fields.
// Layout rules are enforced here: at most one flexible array field, and
// it must be last.
func (rt *Runtime) NewStructType(name string, fields []Field) (*Type, error) {
	t, err := newStructType(name, fields)
	if err != nil {
		return nil, err
	}
	if err := rt.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// NewRefType defines a reference type: a struct whose sole field is a
// pointer to target. Reference types opt out of separate boxing; the
// trait is declared here, never inferred from shape.
//
// The target must be a payload type, not another reference type: elision
// is one hop, so a reference over a reference would name a cell shape
// the heap can never hold.
func (rt *Runtime) NewRefType(name, fieldName string, target *Type) (*Type, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: reference type %s has no target", ErrShape, name)
	}
	if target.isRef {
		return nil, fmt.Errorf("%w: reference type %s targets reference type %s",
			ErrShape, name, target.name)
	}
	t, err := newStructType(name, []Field{{Name: fieldName, Type: rt.PtrType(target)}})
	if err != nil {
		return nil, err
	}
	t.isRef = true
	if err := rt.register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// PtrType returns the memoized payload-pointer descriptor ptr[target].
func (rt *Runtime) PtrType(target *Type) *Type {
	t, _ := rt.generics.get(cacheKey{op: opPtr, a: target}, func() (*Type, error) {
		return &Type{name: "ptr[" + target.name + "]", kind: KindPtr, elem: target}, nil
	})
	return t
}

// BoxPtrType returns the memoized box-pointer descriptor boxptr[target].
// The target records the payload type the box was built for.
func (rt *Runtime) BoxPtrType(target *Type) *Type {
	t, _ := rt.generics.get(cacheKey{op: opBoxPtr, a: target}, func() (*Type, error) {
		return &Type{name: "boxptr[" + target.name + "]", kind: KindBoxPtr, elem: target}, nil
	})
	return t
}

// VarArrayType returns the memoized variable-array descriptor item[...].
func (rt *Runtime) VarArrayType(item *Type) *Type {
	t, _ := rt.generics.get(cacheKey{op: opVarArray, a: item}, func() (*Type, error) {
		return &Type{name: item.name + "[...]", kind: KindVarArray, elem: item}, nil
	})
	return t
}

// LookupType returns a registered named type.
func (rt *Runtime) LookupType(name string) (*Type, bool) {
	rt.regMu.RLock()
	defer rt.regMu.RUnlock()
	t, ok := rt.types[name]
	return t, ok
}

// Types returns every registered named type, sorted by name.
func (rt *Runtime) Types() []*Type {
	rt.regMu.RLock()
	out := make([]*Type, 0, len(rt.types))
	for _, t := range rt.types {
		out = append(out, t)
	}
	rt.regMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (rt *Runtime) register(t *Type) error {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	if _, ok := rt.types[t.name]; ok {
		return fmt.Errorf("%w: type %s already defined", ErrShape, t.name)
	}
	rt.types[t.name] = t
	return nil
}

// ---------------------------------------------------------------------------
// Heap introspection (read-only, for verification and images)
// ---------------------------------------------------------------------------

// HeapSize returns the number of allocated cells.
func (rt *Runtime) HeapSize() int { return rt.heap.size() }

// HeapAddrs returns every allocated address in increasing order.
func (rt *Runtime) HeapAddrs() []Addr { return rt.heap.addrs() }

// HeapCell returns the raw boxed value stored at addr, if any.
func (rt *Runtime) HeapCell(addr Addr) (Value, bool) { return rt.heap.cell(addr) }

// AdoptCell installs a cell at an explicit address. This exists for image
// restoration only; normal code must allocate through GCAlloc.
func (rt *Runtime) AdoptCell(addr Addr, v Value) error { return rt.heap.adopt(addr, v) }
