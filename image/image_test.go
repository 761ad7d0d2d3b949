package image

import (
	"bytes"
	"testing"

	"github.com/fernlang/fern/objspace"
	"github.com/fernlang/fern/prelude"
)

func buildRuntime(t *testing.T) (*objspace.Runtime, *prelude.Prelude, objspace.Ptr, objspace.Ptr) {
	t.Helper()
	rt := objspace.NewRuntime()
	p, err := prelude.Install(rt)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	point, err := rt.NewStructType("Point", []objspace.Field{
		{Name: "x", Type: rt.I32Type()},
		{Name: "y", Type: rt.I32Type()},
	})
	if err != nil {
		t.Fatalf("NewStructType: %v", err)
	}
	pp, err := rt.GCAlloc(point)
	if err != nil {
		t.Fatalf("GCAlloc: %v", err)
	}
	if err := pp.Set("x", rt.I32(1)); err != nil {
		t.Fatal(err)
	}
	if err := pp.Set("y", rt.I32(2)); err != nil {
		t.Fatal(err)
	}

	sp, err := p.NewString("hi")
	if err != nil {
		t.Fatalf("NewString: %v", err)
	}
	return rt, p, pp, sp
}

func TestSnapshotRoundTrip(t *testing.T) {
	rt, _, pp, sp := buildRuntime(t)

	img, err := Snapshot(rt)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if img.RuntimeID != rt.ID() {
		t.Errorf("RuntimeID = %q, want %q", img.RuntimeID, rt.ID())
	}

	data, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	img2, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	rt2, err := Restore(img2)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if rt2.HeapSize() != rt.HeapSize() {
		t.Fatalf("restored heap size = %d, want %d", rt2.HeapSize(), rt.HeapSize())
	}

	// The Point cell came back with its payload intact.
	point2, ok := rt2.LookupType("Point")
	if !ok {
		t.Fatal("Point missing after restore")
	}
	box2, ok := rt2.HeapCell(pp.Addr())
	if !ok {
		t.Fatal("Point cell missing after restore")
	}
	wantBox, _ := rt2.Box(point2)
	if box2.Type() != wantBox {
		t.Errorf("cell type = %v, want Box[Point] (memoized identity)", box2.Type())
	}
	pay, _ := box2.Struct().Get("payload")
	x, _ := pay.Struct().Get("x")
	y, _ := pay.Struct().Get("y")
	if !x.Equal(rt2.I32(1)) || !y.Equal(rt2.I32(2)) {
		t.Errorf("payload = (%v, %v), want (1, 2)", x, y)
	}

	// The header survived: refcount and dynamic type.
	hv, _ := box2.Struct().Get("header")
	rc, _ := hv.Struct().Get("refcount")
	if !rc.Equal(rt2.I32(1)) {
		t.Errorf("refcount = %v, want 1", rc)
	}
	dt, _ := hv.Struct().Get("dyntype")
	if dt.TypeVal() != point2 {
		t.Errorf("dyntype = %v, want restored Point", dt.TypeVal())
	}

	// The string cell came back readable through a fresh prelude view.
	sd2, ok := rt2.LookupType("StringData")
	if !ok {
		t.Fatal("StringData missing after restore")
	}
	strBox, ok := rt2.HeapCell(sp.Addr())
	if !ok {
		t.Fatal("string cell missing after restore")
	}
	wantStrBox, _ := rt2.Box(sd2)
	if strBox.Type() != wantStrBox {
		t.Errorf("string cell type = %v, want Box[StringData]", strBox.Type())
	}
	spay, _ := strBox.Struct().Get("payload")
	chars, _ := spay.Struct().Get("chars")
	if chars.Array().Len() != 2 {
		t.Fatalf("len(chars) = %d, want 2", chars.Array().Len())
	}
	c0, _ := chars.Array().Get(0)
	c1, _ := chars.Array().Get(1)
	if byte(c0.Int()) != 'h' || byte(c1.Int()) != 'i' {
		t.Errorf("chars = %c%c, want hi", byte(c0.Int()), byte(c1.Int()))
	}
}

func TestMarshalDeterministic(t *testing.T) {
	rt, _, _, _ := buildRuntime(t)

	img1, err := Snapshot(rt)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	img2, _ := Snapshot(rt)

	d1, err := img1.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	d2, _ := img2.Marshal()
	if !bytes.Equal(d1, d2) {
		t.Error("two snapshots of the same runtime encode differently")
	}
}

func TestTypesInDependencyOrder(t *testing.T) {
	rt, _, _, _ := buildRuntime(t)
	img, err := Snapshot(rt)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	seen := map[string]bool{}
	for _, rec := range img.Types {
		for _, f := range rec.Fields {
			if f.Type != rec.Name && !seen[f.Type] {
				t.Errorf("type %s references %s before its record", rec.Name, f.Type)
			}
		}
		if rec.Elem != "" && !seen[rec.Elem] && rec.Elem != rec.Name {
			t.Errorf("type %s references elem %s before its record", rec.Name, rec.Elem)
		}
		seen[rec.Name] = true
	}
}

func TestUnmarshalRejectsBadVersion(t *testing.T) {
	rt, _, _, _ := buildRuntime(t)
	img, _ := Snapshot(rt)
	img.Version = 99
	data, _ := img.Marshal()
	if _, err := Unmarshal(data); err == nil {
		t.Error("Unmarshal accepted unknown version")
	}
}

func TestWriteReadFile(t *testing.T) {
	rt, _, pp, _ := buildRuntime(t)
	path := t.TempDir() + "/heap.fimg"

	if err := WriteFile(path, rt); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	img, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	rt2, err := Restore(img)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, ok := rt2.HeapCell(pp.Addr()); !ok {
		t.Error("cell missing after file round trip")
	}
}
