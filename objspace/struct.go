package objspace

import "fmt"

// ---------------------------------------------------------------------------
// Struct instances
// ---------------------------------------------------------------------------

// StructValue is a mutable struct instance: field name -> Value. Instances
// are always handled by reference, so mutation through one handle is
// visible through every other handle to the same instance.
type StructValue struct {
	typ    *Type
	fields map[string]Value
}

// newStructValue builds a default-initialized instance: struct-typed fields
// get a freshly empty struct of their own, every other field gets the
// uninitialized sentinel.
func newStructValue(t *Type) *StructValue {
	sv := &StructValue{typ: t, fields: make(map[string]Value, len(t.fields))}
	for _, f := range t.fields {
		if f.Type.kind == KindStruct {
			sv.fields[f.Name] = structValueOf(newStructValue(f.Type))
		} else {
			sv.fields[f.Name] = Unset()
		}
	}
	return sv
}

// New constructs an instance of a struct type. Unknown field names are a
// fault; omitted fields are default-initialized per newStructValue.
func (t *Type) New(init map[string]Value) (Value, error) {
	if t.kind != KindStruct {
		return Value{}, fmt.Errorf("%w: %s is not a struct type", ErrShape, t.name)
	}
	sv := newStructValue(t)
	for name, v := range init {
		if _, ok := t.fieldIndex[name]; !ok {
			return Value{}, fmt.Errorf("%w: %s has no field %s", ErrUnknownField, t.name, name)
		}
		sv.fields[name] = v
	}
	return structValueOf(sv), nil
}

// Type returns the instance's struct type.
func (sv *StructValue) Type() *Type { return sv.typ }

// Get returns the named field's current value. Unset fields return the
// uninitialized sentinel.
func (sv *StructValue) Get(name string) (Value, error) {
	if _, ok := sv.typ.fieldIndex[name]; !ok {
		return Value{}, fmt.Errorf("%w: %s has no field %s", ErrUnknownField, sv.typ.name, name)
	}
	return sv.fields[name], nil
}

// Set writes the named field in place.
func (sv *StructValue) Set(name string, v Value) error {
	if _, ok := sv.typ.fieldIndex[name]; !ok {
		return fmt.Errorf("%w: %s has no field %s", ErrUnknownField, sv.typ.name, name)
	}
	sv.fields[name] = v
	return nil
}

// Attr performs attribute lookup: a declared field wins, otherwise a method
// attached to the type is returned bound to this instance.
func (sv *StructValue) Attr(name string) (Value, error) {
	if _, ok := sv.typ.fieldIndex[name]; ok {
		return sv.fields[name], nil
	}
	if fn := sv.typ.Method(name); fn != nil {
		return boundMethodValue(name, structValueOf(sv), fn), nil
	}
	return Value{}, fmt.Errorf("%w: %s has no field or method %s", ErrUnknownField, sv.typ.name, name)
}

// soleField returns the instance's only field value. Used when forwarding
// through elided reference types.
func (sv *StructValue) soleField() Value {
	return sv.fields[sv.typ.fields[0].Name]
}
