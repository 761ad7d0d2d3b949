package objspace

import "fmt"

// ---------------------------------------------------------------------------
// Typed pointers
// ---------------------------------------------------------------------------

// Ptr is an opaque payload pointer: a heap address plus the static type of
// the logical payload it targets. Field access forwards transparently
// through the box stored at the address.
//
// Pointers are only constructible through the allocation API or through an
// explicit, type-checked conversion from a box pointer.
type Ptr struct {
	rt   *Runtime
	addr Addr
	typ  *Type
}

// Addr returns the heap address.
func (p Ptr) Addr() Addr { return p.addr }

// Target returns the static payload type.
func (p Ptr) Target() *Type { return p.typ }

// IsNull reports whether p is the null pointer.
func (p Ptr) IsNull() bool { return p.addr == NullAddr }

// Value wraps the pointer as a ptr[T]-typed value, suitable for storing
// into struct fields.
func (p Ptr) Value() Value {
	return addrValue(p.rt.PtrType(p.typ), p.addr)
}

// AsPtr reconstructs a payload pointer from a ptr-typed value.
func (v Value) AsPtr(rt *Runtime) (Ptr, error) {
	if v.typ == nil || v.typ.kind != KindPtr {
		return Ptr{}, fmt.Errorf("%w: value is not a payload pointer", ErrTypeMismatch)
	}
	return Ptr{rt: rt, addr: v.addr, typ: v.typ.elem}, nil
}

// loadBox loads the pointee's box from the heap. elided reports whether
// Box(target) collapsed to the target itself.
//
// The heap only ever stores two-field box layouts, and the allocation API
// types its pointers at the payload, so a pointer typed at a reference
// type always faults here with ErrTypeMismatch. The elided branches in
// payload and headerOf keep the forwarding rules uniform per kind of
// target rather than encoding that reachability argument.
func (p Ptr) loadBox() (sv *StructValue, elided bool, err error) {
	boxT, err := p.rt.Box(p.typ)
	if err != nil {
		return nil, false, err
	}
	sv, err = p.rt.heap.load(p.addr, boxT)
	if err != nil {
		return nil, false, err
	}
	return sv, boxT == p.typ, nil
}

// payload returns the field-accessor handle for the logical payload: the
// loaded value itself under elision, its payload sub-value otherwise.
func (p Ptr) payload() (*StructValue, error) {
	sv, elided, err := p.loadBox()
	if err != nil {
		return nil, err
	}
	if elided {
		return sv, nil
	}
	pv, err := sv.Get("payload")
	if err != nil {
		return nil, err
	}
	if !pv.IsStruct() {
		return nil, fmt.Errorf("%w: %s payload declares no fields", ErrUnknownField, p.typ.name)
	}
	return pv.Struct(), nil
}

// Get reads a payload field (or a method bound to the payload instance)
// through the pointer. Heap type mismatches propagate unchanged.
func (p Ptr) Get(field string) (Value, error) {
	sv, err := p.payload()
	if err != nil {
		return Value{}, err
	}
	return sv.Attr(field)
}

// Set writes a payload field through the pointer.
func (p Ptr) Set(field string, v Value) error {
	sv, err := p.payload()
	if err != nil {
		return err
	}
	return sv.Set(field, v)
}

// Deref returns the payload's field-accessor handle directly. The handle
// stays live: mutations through it are visible to every later load of the
// same address.
func (p Ptr) Deref() (*StructValue, error) {
	return p.payload()
}

// Header exposes the pointee's GC header uniformly. When boxing was elided
// the header lives in the pointee's own box, one pointer hop away; callers
// never need to know which case applies.
func (p Ptr) Header() (HeaderRef, error) {
	sv, elided, err := p.loadBox()
	if err != nil {
		return HeaderRef{}, err
	}
	return headerOf(p.rt, sv, elided)
}

// AsBoxPtr converts to the box pointer targeting the same allocation.
func (p Ptr) AsBoxPtr() BoxPtr {
	return BoxPtr{rt: p.rt, addr: p.addr, typ: p.typ}
}

// ---------------------------------------------------------------------------
// Box pointers
// ---------------------------------------------------------------------------

// BoxPtr is a pointer that targets a box layout directly. Its recorded
// target is the payload type the box was computed for.
type BoxPtr struct {
	rt   *Runtime
	addr Addr
	typ  *Type
}

// Addr returns the heap address.
func (p BoxPtr) Addr() Addr { return p.addr }

// Target returns the payload type the box was built for.
func (p BoxPtr) Target() *Type { return p.typ }

// Value wraps the pointer as a boxptr[T]-typed value.
func (p BoxPtr) Value() Value {
	return addrValue(p.rt.BoxPtrType(p.typ), p.addr)
}

// AsPtr converts to a payload pointer. The conversion is type-checked:
// the recorded target must be identical to the expected payload type.
func (p BoxPtr) AsPtr(want *Type) (Ptr, error) {
	if p.typ != want {
		return Ptr{}, fmt.Errorf("%w: box pointer targets %s, expected %s",
			ErrTypeMismatch, p.typ.name, want.name)
	}
	return Ptr{rt: p.rt, addr: p.addr, typ: p.typ}, nil
}

func (p BoxPtr) loadBox() (*StructValue, bool, error) {
	boxT, err := p.rt.Box(p.typ)
	if err != nil {
		return nil, false, err
	}
	sv, err := p.rt.heap.load(p.addr, boxT)
	if err != nil {
		return nil, false, err
	}
	return sv, boxT == p.typ, nil
}

// Payload returns the box's payload sub-value, or the loaded value itself
// under elision.
func (p BoxPtr) Payload() (Value, error) {
	sv, elided, err := p.loadBox()
	if err != nil {
		return Value{}, err
	}
	if elided {
		return structValueOf(sv), nil
	}
	return sv.Get("payload")
}

// SetPayload overwrites the box's payload sub-value.
func (p BoxPtr) SetPayload(v Value) error {
	sv, elided, err := p.loadBox()
	if err != nil {
		return err
	}
	if elided {
		return fmt.Errorf("%w: %s has no separate payload", ErrShape, p.typ.name)
	}
	return sv.Set("payload", v)
}

// Header exposes the box's GC header.
func (p BoxPtr) Header() (HeaderRef, error) {
	sv, elided, err := p.loadBox()
	if err != nil {
		return HeaderRef{}, err
	}
	return headerOf(p.rt, sv, elided)
}

// ---------------------------------------------------------------------------
// GC header access
// ---------------------------------------------------------------------------

// HeaderRef is a live handle on a box's GCHeader instance.
type HeaderRef struct {
	rt *Runtime
	sv *StructValue
}

// headerOf resolves the header of a loaded box. Under elision the loaded
// value is a reference type instance; the header is found by following its
// sole pointer field into the pointee's box.
func headerOf(rt *Runtime, sv *StructValue, elided bool) (HeaderRef, error) {
	if !elided {
		hv, err := sv.Get("header")
		if err != nil {
			return HeaderRef{}, err
		}
		return HeaderRef{rt: rt, sv: hv.Struct()}, nil
	}
	fv := sv.soleField()
	if !fv.IsAddr() {
		return HeaderRef{}, fmt.Errorf("%w: reference %s is unset", ErrTypeMismatch, sv.typ.name)
	}
	inner := Ptr{rt: rt, addr: fv.addr, typ: fv.typ.elem}
	return inner.Header()
}

// Refcount returns the header's reference count, or 0 if unset.
func (h HeaderRef) Refcount() int32 {
	v, _ := h.sv.Get("refcount")
	if v.IsUnset() {
		return 0
	}
	return int32(v.Int())
}

// SetRefcount overwrites the header's reference count.
func (h HeaderRef) SetRefcount(n int32) {
	_ = h.sv.Set("refcount", h.rt.I32(n))
}

// DynType returns the dynamic type recorded at allocation, or nil if unset.
func (h HeaderRef) DynType() *Type {
	v, _ := h.sv.Get("dyntype")
	return v.TypeVal()
}

// SetDynType overwrites the recorded dynamic type.
func (h HeaderRef) SetDynType(t *Type) {
	_ = h.sv.Set("dyntype", h.rt.TypeValue(t))
}
