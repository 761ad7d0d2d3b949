package image

import (
	"fmt"

	"github.com/fernlang/fern/objspace"
)

// ---------------------------------------------------------------------------
// Restore
// ---------------------------------------------------------------------------

// Restore rebuilds a fresh runtime from an image. Builtin types and every
// generic instantiation are recreated through the runtime's own
// constructors, so memoization identity holds in the restored runtime
// exactly as it did in the original.
func Restore(img *Image) (*objspace.Runtime, error) {
	rt := objspace.NewRuntime()
	names := make(map[string]*objspace.Type)
	for _, builtin := range []string{"i32", "u8", "type", "GCHeader"} {
		t, ok := rt.LookupType(builtin)
		if !ok {
			return nil, fmt.Errorf("image: runtime lacks builtin %s", builtin)
		}
		names[builtin] = t
	}

	for _, rec := range img.Types {
		if _, ok := names[rec.Name]; ok {
			continue
		}
		t, err := buildType(rt, names, rec)
		if err != nil {
			return nil, fmt.Errorf("image: type %s: %w", rec.Name, err)
		}
		names[rec.Name] = t
	}

	for _, c := range img.Cells {
		v, err := decodeValue(rt, names, c.Val)
		if err != nil {
			return nil, fmt.Errorf("image: cell 0x%x: %w", c.Addr, err)
		}
		if err := rt.AdoptCell(objspace.Addr(c.Addr), v); err != nil {
			return nil, fmt.Errorf("image: cell 0x%x: %w", c.Addr, err)
		}
	}
	return rt, nil
}

func lookup(names map[string]*objspace.Type, name string) (*objspace.Type, error) {
	t, ok := names[name]
	if !ok {
		return nil, fmt.Errorf("reference to unknown type %s", name)
	}
	return t, nil
}

func buildType(rt *objspace.Runtime, names map[string]*objspace.Type, rec TypeRec) (*objspace.Type, error) {
	switch rec.Kind {
	case "scalar":
		return rt.NewScalarType(rec.Name)

	case "vararray":
		elem, err := lookup(names, rec.Elem)
		if err != nil {
			return nil, err
		}
		return rt.VarArrayType(elem), nil

	case "ptr":
		elem, err := lookup(names, rec.Elem)
		if err != nil {
			return nil, err
		}
		return rt.PtrType(elem), nil

	case "boxptr":
		elem, err := lookup(names, rec.Elem)
		if err != nil {
			return nil, err
		}
		return rt.BoxPtrType(elem), nil

	case "struct":
		switch {
		case rec.Box:
			if len(rec.Fields) != 2 {
				return nil, fmt.Errorf("box record with %d fields", len(rec.Fields))
			}
			payload, err := lookup(names, rec.Fields[1].Type)
			if err != nil {
				return nil, err
			}
			t, err := rt.Box(payload)
			if err != nil {
				return nil, err
			}
			if t.Name() != rec.Name {
				return nil, fmt.Errorf("box rebuilt as %s", t.Name())
			}
			return t, nil

		case rec.Ref:
			if len(rec.Fields) != 1 {
				return nil, fmt.Errorf("reference record with %d fields", len(rec.Fields))
			}
			target, err := lookup(names, rec.Elem)
			if err != nil {
				return nil, err
			}
			return rt.NewRefType(rec.Name, rec.Fields[0].Name, target)

		default:
			fields := make([]objspace.Field, 0, len(rec.Fields))
			for _, f := range rec.Fields {
				ft, err := lookup(names, f.Type)
				if err != nil {
					return nil, err
				}
				fields = append(fields, objspace.Field{Name: f.Name, Type: ft})
			}
			return rt.NewStructType(rec.Name, fields)
		}

	default:
		return nil, fmt.Errorf("unknown kind %q", rec.Kind)
	}
}

func decodeValue(rt *objspace.Runtime, names map[string]*objspace.Type, rec ValueRec) (objspace.Value, error) {
	switch rec.K {
	case "unset":
		return objspace.Unset(), nil

	case "int":
		t, err := lookup(names, rec.T)
		if err != nil {
			return objspace.Value{}, err
		}
		return objspace.Scalar(t, rec.N), nil

	case "type":
		target, err := lookup(names, rec.Y)
		if err != nil {
			return objspace.Value{}, err
		}
		return rt.TypeValue(target), nil

	case "addr":
		t, err := lookup(names, rec.T)
		if err != nil {
			return objspace.Value{}, err
		}
		return objspace.NewAddrValue(t, objspace.Addr(rec.A))

	case "struct":
		t, err := lookup(names, rec.T)
		if err != nil {
			return objspace.Value{}, err
		}
		v, err := t.New(nil)
		if err != nil {
			return objspace.Value{}, err
		}
		for name, fr := range rec.F {
			fv, err := decodeValue(rt, names, fr)
			if err != nil {
				return objspace.Value{}, err
			}
			if err := v.Struct().Set(name, fv); err != nil {
				return objspace.Value{}, err
			}
		}
		return v, nil

	case "array":
		t, err := lookup(names, rec.T)
		if err != nil {
			return objspace.Value{}, err
		}
		v, err := objspace.NewVarArray(t, rec.L)
		if err != nil {
			return objspace.Value{}, err
		}
		for i, ir := range rec.I {
			iv, err := decodeValue(rt, names, ir)
			if err != nil {
				return objspace.Value{}, err
			}
			if err := v.Array().Set(i, iv); err != nil {
				return objspace.Value{}, err
			}
		}
		return v, nil

	default:
		return objspace.Value{}, fmt.Errorf("unknown value kind %q", rec.K)
	}
}
