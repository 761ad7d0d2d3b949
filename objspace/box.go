package objspace

import "fmt"

// ---------------------------------------------------------------------------
// Box layout
// ---------------------------------------------------------------------------

// Box computes the storage shape for payload type t: a struct prefixing
// the payload with the GC header, named deterministically from t.
//
// Two rules:
//   - t must not already be a box layout (double boxing is a fault).
//   - If t is a reference type, Box(t) returns t unchanged. The pointee's
//     own box already supplies the header, so no new layout is created.
//
// Repeated calls with the identical t return the identical descriptor.
func (rt *Runtime) Box(t *Type) (*Type, error) {
	if t.isBox {
		return nil, fmt.Errorf("%w: %s is already a box layout", ErrShape, t.name)
	}
	if t.isRef {
		return t, nil
	}
	return rt.generics.get(cacheKey{op: opBox, a: t}, func() (*Type, error) {
		bt, err := newStructType("Box["+t.name+"]", []Field{
			{Name: "header", Type: rt.header},
			{Name: "payload", Type: t},
		})
		if err != nil {
			return nil, err
		}
		bt.isBox = true
		return bt, nil
	})
}
