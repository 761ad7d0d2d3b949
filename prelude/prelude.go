// Package prelude declares the application-level root types every Fern
// program starts from: the reference-rooted object type and the
// length-prefixed UTF-8 string type. Both are built purely through the
// objspace allocation API.
package prelude

import (
	"fmt"

	"github.com/fernlang/fern/objspace"
)

// Prelude holds the root type descriptors installed into one runtime.
type Prelude struct {
	rt *objspace.Runtime

	// ObjectData is the root payload every object allocation boxes.
	ObjectData *objspace.Type
	// Object is the reference type over ObjectData; its boxing is elided.
	Object *objspace.Type

	// StringData is {length i32, chars u8[...]}.
	StringData *objspace.Type
	// Str is the reference type over StringData.
	Str *objspace.Type
}

// Install registers the prelude types into rt.
func Install(rt *objspace.Runtime) (*Prelude, error) {
	p := &Prelude{rt: rt}
	var err error

	if p.ObjectData, err = rt.NewStructType("ObjectData", nil); err != nil {
		return nil, err
	}
	if p.Object, err = rt.NewRefType("object", "ref", p.ObjectData); err != nil {
		return nil, err
	}
	if p.StringData, err = rt.NewStructType("StringData", []objspace.Field{
		{Name: "length", Type: rt.I32Type()},
		{Name: "chars", Type: rt.VarArrayType(rt.U8Type())},
	}); err != nil {
		return nil, err
	}
	if p.Str, err = rt.NewRefType("str", "ref", p.StringData); err != nil {
		return nil, err
	}
	return p, nil
}

// Attach rebinds a Prelude to a runtime whose registry already carries the
// prelude types, for example one restored from a heap image. Returns an
// error if any of them is missing.
func Attach(rt *objspace.Runtime) (*Prelude, error) {
	p := &Prelude{rt: rt}
	for _, b := range []struct {
		name string
		dst  **objspace.Type
	}{
		{"ObjectData", &p.ObjectData},
		{"object", &p.Object},
		{"StringData", &p.StringData},
		{"str", &p.Str},
	} {
		t, ok := rt.LookupType(b.name)
		if !ok {
			return nil, fmt.Errorf("prelude type %s not registered", b.name)
		}
		*b.dst = t
	}
	return p, nil
}

// NewObject allocates a root object. The header's dynamic type is the
// object reference type.
func (p *Prelude) NewObject() (objspace.Ptr, error) {
	return p.rt.GCAllocDyn(p.ObjectData, p.Object)
}

// NewString allocates a StringData sized for s and copies its bytes in.
func (p *Prelude) NewString(s string) (objspace.Ptr, error) {
	b := []byte(s)
	ptr, err := p.rt.GCAllocVarsizeDyn(p.StringData, p.Str, len(b))
	if err != nil {
		return objspace.Ptr{}, err
	}
	if err := ptr.Set("length", p.rt.I32(int32(len(b)))); err != nil {
		return objspace.Ptr{}, err
	}
	chars, err := ptr.Get("chars")
	if err != nil {
		return objspace.Ptr{}, err
	}
	for i, c := range b {
		if err := chars.Array().Set(i, p.rt.U8(c)); err != nil {
			return objspace.Ptr{}, err
		}
	}
	return ptr, nil
}

// GoString reads a StringData back into a Go string. The length field
// decides how many chars are read; unset slots are a fault.
func (p *Prelude) GoString(ptr objspace.Ptr) (string, error) {
	length, err := ptr.Get("length")
	if err != nil {
		return "", err
	}
	if length.IsUnset() {
		return "", fmt.Errorf("string length is unset")
	}
	chars, err := ptr.Get("chars")
	if err != nil {
		return "", err
	}
	arr := chars.Array()
	if arr == nil {
		return "", fmt.Errorf("string chars are unset")
	}
	n := int(length.Int())
	if n > arr.Len() {
		return "", fmt.Errorf("string length %d exceeds chars length %d", n, arr.Len())
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		v, err := arr.Get(i)
		if err != nil {
			return "", err
		}
		if v.IsUnset() {
			return "", fmt.Errorf("string byte %d is unset", i)
		}
		out[i] = byte(v.Int())
	}
	return string(out), nil
}
