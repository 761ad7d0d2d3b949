package objspace

import "fmt"

// ---------------------------------------------------------------------------
// Type descriptors
// ---------------------------------------------------------------------------

// Kind classifies a type descriptor.
type Kind int

const (
	KindScalar Kind = iota // atomic named leaf (i32, u8, type)
	KindStruct             // ordered field mapping
	KindVarArray           // variable-length array of an item type
	KindPtr                // payload pointer to a target type
	KindBoxPtr             // pointer to a box layout
)

// String returns the kind name used in diagnostics and images.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindStruct:
		return "struct"
	case KindVarArray:
		return "vararray"
	case KindPtr:
		return "ptr"
	case KindBoxPtr:
		return "boxptr"
	default:
		return "?"
	}
}

// Field is one declared struct field.
type Field struct {
	Name string
	Type *Type
}

// MethodFunc is the signature of a method attached to a type descriptor.
// The receiver is the instance the method was looked up on.
type MethodFunc func(rt *Runtime, recv Value, args []Value) (Value, error)

// Type is a type descriptor. Descriptors are created once, cached for the
// lifetime of their Runtime, and compared by identity: two descriptors are
// the same type iff they are the same pointer.
type Type struct {
	name       string
	kind       Kind
	fields     []Field        // struct kinds only, declaration order
	fieldIndex map[string]int // name -> index into fields
	elem       *Type          // item type (vararray) or target (ptr, boxptr)
	flexField  string         // name of the flexible array field, "" if none
	isRef      bool           // declared reference type (boxing elided)
	isBox      bool           // this descriptor is a box layout
	methods    map[string]MethodFunc
}

// Name returns the unique name of this type instantiation.
func (t *Type) Name() string { return t.name }

// Kind returns the type's kind.
func (t *Type) Kind() Kind { return t.kind }

// IsStruct reports whether t is a struct type.
func (t *Type) IsStruct() bool { return t.kind == KindStruct }

// IsVarArray reports whether t is a variable-array type.
func (t *Type) IsVarArray() bool { return t.kind == KindVarArray }

// IsBox reports whether t is a box layout.
func (t *Type) IsBox() bool { return t.isBox }

// IsRef reports whether t was declared as a reference type: a struct whose
// sole field is a pointer to another type. Boxing of reference types is
// elided because the pointee's own box already carries the GC header.
func (t *Type) IsRef() bool { return t.isRef }

// Fields returns the declared fields in order. The returned slice is shared;
// callers must not modify it.
func (t *Type) Fields() []Field { return t.fields }

// FieldType returns the type of the named field.
func (t *Type) FieldType(name string) (*Type, bool) {
	i, ok := t.fieldIndex[name]
	if !ok {
		return nil, false
	}
	return t.fields[i].Type, true
}

// Elem returns the item type of a vararray, or the target type of a
// ptr/boxptr descriptor. Nil for other kinds.
func (t *Type) Elem() *Type { return t.elem }

// FlexField returns the name of the trailing flexible array field, or ""
// if the struct does not declare one.
func (t *Type) FlexField() string { return t.flexField }

// HasFlex reports whether the struct declares a flexible array field.
func (t *Type) HasFlex() bool { return t.flexField != "" }

// RefTarget returns the pointee payload type of a reference type: the
// target of its sole pointer field. Nil if t is not a reference type.
func (t *Type) RefTarget() *Type {
	if !t.isRef {
		return nil
	}
	return t.fields[0].Type.elem
}

// AddMethod attaches a method to the type descriptor. Attribute lookup on
// an instance returns the method bound to that instance.
func (t *Type) AddMethod(name string, fn MethodFunc) {
	if t.methods == nil {
		t.methods = make(map[string]MethodFunc)
	}
	t.methods[name] = fn
}

// Method returns the named method, or nil.
func (t *Type) Method(name string) MethodFunc {
	return t.methods[name]
}

func (t *Type) String() string {
	return fmt.Sprintf("<type %s>", t.name)
}

// newStructType builds a struct descriptor, enforcing the layout rules:
// at most one flexible array field, and it must be declared last.
func newStructType(name string, fields []Field) (*Type, error) {
	t := &Type{
		name:       name,
		kind:       KindStruct,
		fields:     fields,
		fieldIndex: make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Type == nil {
			return nil, fmt.Errorf("%w: %s.%s has no type", ErrShape, name, f.Name)
		}
		if _, dup := t.fieldIndex[f.Name]; dup {
			return nil, fmt.Errorf("%w: %s declares field %s twice", ErrShape, name, f.Name)
		}
		t.fieldIndex[f.Name] = i
		if f.Type.kind == KindVarArray {
			if t.flexField != "" {
				return nil, fmt.Errorf("%w: %s declares more than one flexible array field", ErrShape, name)
			}
			if i != len(fields)-1 {
				return nil, fmt.Errorf("%w: flexible array field %s.%s must be the last field", ErrShape, name, f.Name)
			}
			t.flexField = f.Name
		}
	}
	return t, nil
}
