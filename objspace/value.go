package objspace

import "fmt"

// ---------------------------------------------------------------------------
// Tagged values
// ---------------------------------------------------------------------------

// valueKind is the internal variant tag of a Value.
type valueKind uint8

const (
	valUnset  valueKind = iota // uninitialized sentinel
	valInt                     // raw scalar payload
	valStruct                  // struct instance (shared reference)
	valArray                   // variable array instance (shared reference)
	valType                    // a type descriptor used as a value
	valAddr                    // heap address carried by a ptr-typed value
	valMethod                  // method bound to an instance
)

// Value is the uniform tagged representation of every Fern value: a raw
// payload paired with the Type it was tagged with at construction.
//
// The zero Value is the uninitialized sentinel. It is distinguishable from
// every legal value, including scalar zero.
type Value struct {
	typ   *Type
	kind  valueKind
	n     int64
	strct *StructValue
	arr   *VarArrayValue
	tval  *Type
	addr  Addr
	bound *BoundMethod
}

// Unset returns the explicit uninitialized sentinel.
func Unset() Value { return Value{} }

// IsUnset reports whether v is the uninitialized sentinel.
func (v Value) IsUnset() bool { return v.kind == valUnset }

// Type returns the dynamic type v was tagged with at construction.
// The sentinel has no type and returns nil.
func (v Value) Type() *Type { return v.typ }

// Scalar tags a raw integer payload with a scalar type.
func Scalar(t *Type, n int64) Value {
	return Value{typ: t, kind: valInt, n: n}
}

// Int returns the raw scalar payload.
func (v Value) Int() int64 { return v.n }

// IsStruct reports whether v holds a struct instance.
func (v Value) IsStruct() bool { return v.kind == valStruct }

// Struct returns the struct instance, or nil if v does not hold one.
// The instance is shared: mutating it is visible through every Value
// holding it.
func (v Value) Struct() *StructValue { return v.strct }

// IsArray reports whether v holds a variable array instance.
func (v Value) IsArray() bool { return v.kind == valArray }

// Array returns the variable array instance, or nil.
func (v Value) Array() *VarArrayValue { return v.arr }

// IsType reports whether v holds a type descriptor.
func (v Value) IsType() bool { return v.kind == valType }

// TypeVal returns the type descriptor held by a type-valued Value, or nil.
func (v Value) TypeVal() *Type { return v.tval }

// IsAddr reports whether v is a ptr-typed value carrying a heap address.
func (v Value) IsAddr() bool { return v.kind == valAddr }

// Addr returns the heap address carried by a ptr-typed value.
func (v Value) Addr() Addr { return v.addr }

// Method returns the bound method held by v, or nil.
func (v Value) Method() *BoundMethod { return v.bound }

// Equal compares two values: same type by identity and equal payload.
// Struct and array payloads compare by reference identity.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.kind != o.kind {
		return false
	}
	switch v.kind {
	case valUnset:
		return true
	case valInt:
		return v.n == o.n
	case valStruct:
		return v.strct == o.strct
	case valArray:
		return v.arr == o.arr
	case valType:
		return v.tval == o.tval
	case valAddr:
		return v.addr == o.addr
	case valMethod:
		return v.bound == o.bound
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case valUnset:
		return "<unset>"
	case valInt:
		return fmt.Sprintf("<%s %d>", v.typ.name, v.n)
	case valStruct:
		return fmt.Sprintf("<%s instance>", v.typ.name)
	case valArray:
		return fmt.Sprintf("<%s len=%d>", v.typ.name, v.arr.Len())
	case valType:
		return fmt.Sprintf("<type value %s>", v.tval.name)
	case valAddr:
		return fmt.Sprintf("<%s @0x%x>", v.typ.name, uint64(v.addr))
	case valMethod:
		return fmt.Sprintf("<bound method %s>", v.bound.name)
	default:
		return "<?>"
	}
}

// NewAddrValue tags a heap address with a pointer descriptor. This exists
// for image restoration; normal code obtains pointer values from Ptr.Value.
func NewAddrValue(t *Type, addr Addr) (Value, error) {
	if t == nil || (t.kind != KindPtr && t.kind != KindBoxPtr) {
		return Value{}, fmt.Errorf("%w: addresses require a pointer descriptor", ErrTypeMismatch)
	}
	return addrValue(t, addr), nil
}

// structValueOf tags a struct instance with its type.
func structValueOf(sv *StructValue) Value {
	return Value{typ: sv.typ, kind: valStruct, strct: sv}
}

// arrayValueOf tags a variable array instance with its vararray type.
func arrayValueOf(t *Type, a *VarArrayValue) Value {
	return Value{typ: t, kind: valArray, arr: a}
}

// addrValue tags a heap address with a ptr or boxptr descriptor.
func addrValue(pt *Type, addr Addr) Value {
	return Value{typ: pt, kind: valAddr, addr: addr}
}

// ---------------------------------------------------------------------------
// Bound methods
// ---------------------------------------------------------------------------

// BoundMethod is a type-attached method paired with the instance it was
// looked up on.
type BoundMethod struct {
	name string
	recv Value
	fn   MethodFunc
}

// Name returns the method name.
func (m *BoundMethod) Name() string { return m.name }

// Call invokes the method with its bound receiver.
func (m *BoundMethod) Call(rt *Runtime, args ...Value) (Value, error) {
	return m.fn(rt, m.recv, args)
}

func boundMethodValue(name string, recv Value, fn MethodFunc) Value {
	return Value{kind: valMethod, bound: &BoundMethod{name: name, recv: recv, fn: fn}}
}
