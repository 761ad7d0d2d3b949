package objspace

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Payload pointers
// ---------------------------------------------------------------------------

func TestPtrFieldRoundTrip(t *testing.T) {
	rt := NewRuntime()
	point := newPointType(t, rt)

	ptr, err := rt.GCAlloc(point)
	if err != nil {
		t.Fatalf("GCAlloc: %v", err)
	}
	if ptr.IsNull() {
		t.Fatal("GCAlloc returned the null pointer")
	}
	if ptr.Target() != point {
		t.Errorf("Target() = %v, want Point", ptr.Target())
	}

	if err := ptr.Set("x", rt.I32(5)); err != nil {
		t.Fatalf("Set(x): %v", err)
	}
	x, err := ptr.Get("x")
	if err != nil {
		t.Fatalf("Get(x): %v", err)
	}
	if !x.Equal(rt.I32(5)) {
		t.Errorf("x = %v, want i32 5", x)
	}

	// The raw boxed value at the pointer's address shows the same write
	// in its payload.
	box, ok := rt.HeapCell(ptr.Addr())
	if !ok {
		t.Fatal("no cell at pointer address")
	}
	pay, _ := box.Struct().Get("payload")
	bx, _ := pay.Struct().Get("x")
	if !bx.Equal(rt.I32(5)) {
		t.Errorf("box payload x = %v, want i32 5", bx)
	}
}

func TestPtrUnknownField(t *testing.T) {
	rt := NewRuntime()
	point := newPointType(t, rt)
	ptr, _ := rt.GCAlloc(point)

	if _, err := ptr.Get("z"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Get(z): err = %v, want ErrUnknownField", err)
	}
	if err := ptr.Set("z", rt.I32(1)); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Set(z): err = %v, want ErrUnknownField", err)
	}
}

func TestPtrScalarPayloadHasNoFields(t *testing.T) {
	rt := NewRuntime()
	ptr, err := rt.GCAlloc(rt.I32Type())
	if err != nil {
		t.Fatalf("GCAlloc(i32): %v", err)
	}
	if _, err := ptr.Get("x"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("Get on scalar payload: err = %v, want ErrUnknownField", err)
	}
	// Scalar payloads are reached through the box pointer instead.
	bp := ptr.AsBoxPtr()
	if err := bp.SetPayload(rt.I32(7)); err != nil {
		t.Fatalf("SetPayload: %v", err)
	}
	got, err := bp.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if !got.Equal(rt.I32(7)) {
		t.Errorf("payload = %v, want i32 7", got)
	}
}

func TestPtrDerefIsLive(t *testing.T) {
	rt := NewRuntime()
	point := newPointType(t, rt)
	ptr, _ := rt.GCAlloc(point)

	sv, err := ptr.Deref()
	if err != nil {
		t.Fatalf("Deref: %v", err)
	}
	if err := sv.Set("y", rt.I32(9)); err != nil {
		t.Fatalf("Set through handle: %v", err)
	}
	y, _ := ptr.Get("y")
	if !y.Equal(rt.I32(9)) {
		t.Errorf("y through pointer = %v, want i32 9", y)
	}
}

func TestPtrMethodThroughPointer(t *testing.T) {
	rt := NewRuntime()
	point := newPointType(t, rt)
	point.AddMethod("xval", func(rt *Runtime, recv Value, args []Value) (Value, error) {
		return recv.Struct().Get("x")
	})

	ptr, _ := rt.GCAlloc(point)
	if err := ptr.Set("x", rt.I32(11)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	m, err := ptr.Get("xval")
	if err != nil {
		t.Fatalf("Get(xval): %v", err)
	}
	got, err := m.Method().Call(rt)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !got.Equal(rt.I32(11)) {
		t.Errorf("xval() = %v, want i32 11", got)
	}
}

// ---------------------------------------------------------------------------
// Pointer values in struct fields
// ---------------------------------------------------------------------------

func TestPtrValueRoundTrip(t *testing.T) {
	rt := NewRuntime()
	point := newPointType(t, rt)
	node, err := rt.NewStructType("Node", []Field{
		{Name: "point", Type: rt.PtrType(point)},
	})
	if err != nil {
		t.Fatalf("NewStructType(Node): %v", err)
	}

	target, _ := rt.GCAlloc(point)
	_ = target.Set("x", rt.I32(21))

	holder, _ := rt.GCAlloc(node)
	if err := holder.Set("point", target.Value()); err != nil {
		t.Fatalf("Set(point): %v", err)
	}

	v, _ := holder.Get("point")
	back, err := v.AsPtr(rt)
	if err != nil {
		t.Fatalf("AsPtr: %v", err)
	}
	if back.Addr() != target.Addr() || back.Target() != point {
		t.Errorf("round-tripped pointer = %v/%v, want original", back.Addr(), back.Target())
	}
	x, _ := back.Get("x")
	if !x.Equal(rt.I32(21)) {
		t.Errorf("x through stored pointer = %v, want i32 21", x)
	}
}

func TestRefTypedPointerAlwaysFaults(t *testing.T) {
	rt := NewRuntime()
	point := newPointType(t, rt)
	ref, err := rt.NewRefType("PointRef", "ref", point)
	if err != nil {
		t.Fatalf("NewRefType: %v", err)
	}

	// The allocation API never hands out a pointer typed at a reference
	// type; the cell behind GCAlloc(PointRef) is Box[Point].
	target, err := rt.GCAlloc(ref)
	if err != nil {
		t.Fatalf("GCAlloc: %v", err)
	}
	if target.Target() != point {
		t.Fatalf("Target() = %v, want Point", target.Target())
	}

	// Forming one by hand faults on every access: the cell holds a box
	// layout, never a bare reference instance.
	v, err := NewAddrValue(rt.PtrType(ref), target.Addr())
	if err != nil {
		t.Fatalf("NewAddrValue: %v", err)
	}
	p, err := v.AsPtr(rt)
	if err != nil {
		t.Fatalf("AsPtr: %v", err)
	}
	if _, err := p.Get("ref"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Get through ref-typed pointer: err = %v, want ErrTypeMismatch", err)
	}
	if err := p.Set("ref", target.Value()); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Set through ref-typed pointer: err = %v, want ErrTypeMismatch", err)
	}
	if _, err := p.Header(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Header through ref-typed pointer: err = %v, want ErrTypeMismatch", err)
	}
}

func TestAsPtrRejectsNonPointer(t *testing.T) {
	rt := NewRuntime()
	if _, err := rt.I32(1).AsPtr(rt); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("AsPtr on scalar: err = %v, want ErrTypeMismatch", err)
	}
}

// ---------------------------------------------------------------------------
// Box pointer conversion
// ---------------------------------------------------------------------------

func TestBoxPtrConversion(t *testing.T) {
	rt := NewRuntime()
	point := newPointType(t, rt)
	ptr, _ := rt.GCAlloc(point)

	bp := ptr.AsBoxPtr()
	if bp.Addr() != ptr.Addr() || bp.Target() != point {
		t.Fatalf("AsBoxPtr() = %v/%v, want same address and target", bp.Addr(), bp.Target())
	}

	back, err := bp.AsPtr(point)
	if err != nil {
		t.Fatalf("AsPtr(Point): %v", err)
	}
	if back.Addr() != ptr.Addr() {
		t.Error("conversion changed the address")
	}

	// Converting against the wrong payload type is a fault.
	if _, err := bp.AsPtr(rt.I32Type()); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("AsPtr(i32): err = %v, want ErrTypeMismatch", err)
	}
}

func TestBoxPtrPayloadMatchesPtrWrites(t *testing.T) {
	rt := NewRuntime()
	point := newPointType(t, rt)
	ptr, _ := rt.GCAlloc(point)
	_ = ptr.Set("x", rt.I32(1))

	pay, err := ptr.AsBoxPtr().Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	x, _ := pay.Struct().Get("x")
	if !x.Equal(rt.I32(1)) {
		t.Errorf("payload x = %v, want i32 1", x)
	}
}
