package objspace

import "fmt"

// ---------------------------------------------------------------------------
// Allocation API
// ---------------------------------------------------------------------------

// GCAlloc allocates a GC-managed instance of t. The box for t's payload is
// reserved on the heap, the header is initialized with refcount 1 and
// dynamic type t, and a payload pointer is returned.
//
// If t is a reference type the allocation is for its pointee payload, and
// the returned pointer is typed at that payload.
func (rt *Runtime) GCAlloc(t *Type) (Ptr, error) {
	return rt.GCAllocDyn(t, nil)
}

// GCAllocDyn is GCAlloc with an explicit dynamic type for the header.
// dyn must be a reference type whose sole field points at t; nil means
// "use t itself".
func (rt *Runtime) GCAllocDyn(t, dyn *Type) (Ptr, error) {
	dyn, err := rt.checkAlloc(t, dyn)
	if err != nil {
		return Ptr{}, err
	}
	return rt.allocBox(t, dyn)
}

// GCAllocVarsize allocates an instance of t whose trailing flexible array
// field gets a count-length backing sequence of uninitialized slots.
func (rt *Runtime) GCAllocVarsize(t *Type, count int) (Ptr, error) {
	return rt.GCAllocVarsizeDyn(t, nil, count)
}

// GCAllocVarsizeDyn is GCAllocVarsize with an explicit dynamic type.
func (rt *Runtime) GCAllocVarsizeDyn(t, dyn *Type, count int) (Ptr, error) {
	dyn, err := rt.checkAlloc(t, dyn)
	if err != nil {
		return Ptr{}, err
	}
	if t.kind != KindStruct || !t.HasFlex() {
		return Ptr{}, fmt.Errorf("%w: %s has no flexible array field", ErrInvalidAlloc, t.name)
	}
	if count < 0 {
		return Ptr{}, fmt.Errorf("%w: negative array count %d", ErrInvalidAlloc, count)
	}

	ptr, err := rt.allocBox(t, dyn)
	if err != nil {
		return Ptr{}, err
	}

	// Attach the backing sequence to the flexible field. Its length is
	// fixed here, at allocation time.
	sv, err := ptr.Deref()
	if err != nil {
		return Ptr{}, err
	}
	arrT, _ := t.FieldType(t.flexField)
	arr := newVarArrayValue(arrT.elem, count)
	if err := sv.Set(t.flexField, arrayValueOf(arrT, arr)); err != nil {
		return Ptr{}, err
	}
	return ptr, nil
}

// checkAlloc validates the allocation request and resolves the dynamic
// type recorded in the header.
func (rt *Runtime) checkAlloc(t, dyn *Type) (*Type, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", ErrInvalidAlloc)
	}
	if t.isBox {
		return nil, fmt.Errorf("%w: cannot allocate box layout %s directly", ErrInvalidAlloc, t.name)
	}
	if dyn == nil {
		return t, nil
	}
	if !dyn.isRef || dyn.RefTarget() != t {
		return nil, fmt.Errorf("%w: dynamic type %s is not a reference type over %s",
			ErrShape, dyn.name, t.name)
	}
	return dyn, nil
}

// allocBox reserves Box(payload) on the heap and initializes the header.
func (rt *Runtime) allocBox(t, dyn *Type) (Ptr, error) {
	payload := t
	if t.isRef {
		payload = t.RefTarget()
	}
	boxT, err := rt.Box(payload)
	if err != nil {
		return Ptr{}, err
	}
	addr, err := rt.heap.alloc(boxT)
	if err != nil {
		return Ptr{}, err
	}

	ptr := Ptr{rt: rt, addr: addr, typ: payload}
	hdr, err := ptr.Header()
	if err != nil {
		return Ptr{}, err
	}
	hdr.SetRefcount(1)
	hdr.SetDynType(dyn)
	return ptr, nil
}
