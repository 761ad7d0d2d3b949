package image

import (
	"fmt"

	"github.com/fernlang/fern/objspace"
)

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// encoder tracks which descriptors have been emitted. Types are emitted in
// dependency order; the type graph is acyclic because every constructor
// takes already-built descriptors.
type encoder struct {
	seen  map[*objspace.Type]bool
	types []TypeRec
}

// Snapshot captures rt's named types and heap into an image.
func Snapshot(rt *objspace.Runtime) (*Image, error) {
	enc := &encoder{seen: make(map[*objspace.Type]bool)}
	for _, t := range rt.Types() {
		enc.addType(t)
	}

	var cells []CellRec
	for _, addr := range rt.HeapAddrs() {
		v, ok := rt.HeapCell(addr)
		if !ok {
			continue
		}
		enc.addType(v.Type())
		rec, err := enc.encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("image: cell 0x%x: %w", uint64(addr), err)
		}
		cells = append(cells, CellRec{Addr: uint64(addr), Val: rec})
	}

	return &Image{
		Version:   Version,
		RuntimeID: rt.ID(),
		Types:     enc.types,
		Cells:     cells,
	}, nil
}

// addType emits t after its dependencies.
func (e *encoder) addType(t *objspace.Type) {
	if t == nil || e.seen[t] {
		return
	}
	e.seen[t] = true

	rec := TypeRec{Name: t.Name(), Kind: t.Kind().String()}
	switch t.Kind() {
	case objspace.KindStruct:
		for _, f := range t.Fields() {
			e.addType(f.Type)
			rec.Fields = append(rec.Fields, FieldRec{Name: f.Name, Type: f.Type.Name()})
		}
		rec.Box = t.IsBox()
		if t.IsRef() {
			rec.Ref = true
			rec.Elem = t.RefTarget().Name()
		}
	case objspace.KindVarArray, objspace.KindPtr, objspace.KindBoxPtr:
		e.addType(t.Elem())
		rec.Elem = t.Elem().Name()
	}
	e.types = append(e.types, rec)
}

func (e *encoder) encodeValue(v objspace.Value) (ValueRec, error) {
	switch {
	case v.IsUnset():
		return ValueRec{K: "unset"}, nil
	case v.IsType():
		e.addType(v.TypeVal())
		return ValueRec{K: "type", T: v.Type().Name(), Y: v.TypeVal().Name()}, nil
	case v.IsAddr():
		e.addType(v.Type())
		return ValueRec{K: "addr", T: v.Type().Name(), A: uint64(v.Addr())}, nil
	case v.IsStruct():
		sv := v.Struct()
		e.addType(sv.Type())
		rec := ValueRec{K: "struct", T: sv.Type().Name(), F: make(map[string]ValueRec)}
		for _, f := range sv.Type().Fields() {
			fv, err := sv.Get(f.Name)
			if err != nil {
				return ValueRec{}, err
			}
			fr, err := e.encodeValue(fv)
			if err != nil {
				return ValueRec{}, err
			}
			rec.F[f.Name] = fr
		}
		return rec, nil
	case v.IsArray():
		arr := v.Array()
		e.addType(v.Type())
		rec := ValueRec{K: "array", T: v.Type().Name(), L: arr.Len()}
		for i := 0; i < arr.Len(); i++ {
			iv, err := arr.Get(i)
			if err != nil {
				return ValueRec{}, err
			}
			ir, err := e.encodeValue(iv)
			if err != nil {
				return ValueRec{}, err
			}
			rec.I = append(rec.I, ir)
		}
		return rec, nil
	case v.Method() != nil:
		return ValueRec{}, fmt.Errorf("bound methods are not serializable")
	default:
		e.addType(v.Type())
		return ValueRec{K: "int", T: v.Type().Name(), N: v.Int()}, nil
	}
}
