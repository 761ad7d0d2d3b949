package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fernlang/fern/objspace"
)

const demoManifest = `
[project]
name = "demo"
version = "0.1.0"

[[types.struct]]
name = "Point"
fields = [
  { name = "x", type = "i32" },
  { name = "y", type = "i32" },
]

[[types.struct]]
name = "StringData"
fields = [
  { name = "length", type = "i32" },
  { name = "chars", type = "u8[...]" },
]

[[types.struct]]
name = "Node"
fields = [
  { name = "point", type = "ptr[Point]" },
]

[[types.ref]]
name = "str"
field = "ref"
target = "StringData"
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fern.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing fern.toml: %v", err)
	}
	return dir
}

func TestLoadAndRegister(t *testing.T) {
	dir := writeManifest(t, demoManifest)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if m.Dir == "" {
		t.Error("Dir not set")
	}

	rt := objspace.NewRuntime()
	if err := m.Register(rt); err != nil {
		t.Fatalf("Register: %v", err)
	}

	point, ok := rt.LookupType("Point")
	if !ok {
		t.Fatal("Point not registered")
	}
	if len(point.Fields()) != 2 || point.Fields()[0].Type != rt.I32Type() {
		t.Errorf("Point fields = %v", point.Fields())
	}

	sd, _ := rt.LookupType("StringData")
	if sd.FlexField() != "chars" {
		t.Errorf("StringData flex field = %q, want chars", sd.FlexField())
	}
	ct, _ := sd.FieldType("chars")
	if ct != rt.VarArrayType(rt.U8Type()) {
		t.Error("chars type is not the memoized u8[...] descriptor")
	}

	node, _ := rt.LookupType("Node")
	pt, _ := node.FieldType("point")
	if pt != rt.PtrType(point) {
		t.Error("point field is not the memoized ptr[Point] descriptor")
	}

	str, _ := rt.LookupType("str")
	if !str.IsRef() || str.RefTarget() != sd {
		t.Error("str is not a reference type over StringData")
	}

	// Declared types are usable straight away.
	ptr, err := rt.GCAllocVarsizeDyn(sd, str, 3)
	if err != nil {
		t.Fatalf("GCAllocVarsize: %v", err)
	}
	hdr, _ := ptr.Header()
	if hdr.DynType() != str {
		t.Errorf("dyntype = %v, want str", hdr.DynType())
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := writeManifest(t, demoManifest)
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m == nil || m.Project.Name != "demo" {
		t.Fatalf("FindAndLoad = %+v", m)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if m != nil {
		t.Errorf("FindAndLoad = %+v, want nil", m)
	}
}

func TestValidateRejectsAnonymous(t *testing.T) {
	dir := writeManifest(t, `
[project]
name = "demo"

[[types.struct]]
fields = [{ name = "x", type = "i32" }]
`)
	if _, err := Load(dir); err == nil {
		t.Error("Load accepted a struct without a name")
	}
}

func TestRegisterUnknownFieldType(t *testing.T) {
	dir := writeManifest(t, `
[project]
name = "demo"

[[types.struct]]
name = "Bad"
fields = [{ name = "x", type = "mystery" }]
`)
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Register(objspace.NewRuntime()); err == nil {
		t.Error("Register accepted an unknown field type")
	}
}

func TestRegisterShapeFaultPropagates(t *testing.T) {
	dir := writeManifest(t, `
[project]
name = "demo"

[[types.struct]]
name = "Bad"
fields = [
  { name = "chars", type = "u8[...]" },
  { name = "length", type = "i32" },
]
`)
	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = m.Register(objspace.NewRuntime())
	if !errors.Is(err, objspace.ErrShape) {
		t.Errorf("Register: err = %v, want ErrShape", err)
	}
}
