// Package image serializes a runtime's type table and heap into a
// deterministic CBOR snapshot, and restores snapshots into fresh runtimes.
//
// Methods attached to type descriptors are host functions and are not part
// of an image; a restored type carries no methods.
package image

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/fernlang/fern/objspace"
)

// Version is the image format version.
const Version = 1

// cborEncMode uses canonical options so equal snapshots encode to equal
// bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Image records
// ---------------------------------------------------------------------------

// Image is one serializable snapshot of a runtime.
type Image struct {
	Version   int       `cbor:"v"`
	RuntimeID string    `cbor:"id"`
	Types     []TypeRec `cbor:"types"`
	Cells     []CellRec `cbor:"cells"`
}

// TypeRec describes one type descriptor. Types appear in dependency
// order: every name a record references occurs earlier in the list.
type TypeRec struct {
	Name   string     `cbor:"n"`
	Kind   string     `cbor:"k"`
	Fields []FieldRec `cbor:"f,omitempty"`
	Elem   string     `cbor:"e,omitempty"`
	Ref    bool       `cbor:"r,omitempty"`
	Box    bool       `cbor:"b,omitempty"`
}

// FieldRec is one declared struct field.
type FieldRec struct {
	Name string `cbor:"n"`
	Type string `cbor:"t"`
}

// CellRec is one heap cell: an address and the boxed value stored there.
type CellRec struct {
	Addr uint64   `cbor:"a"`
	Val  ValueRec `cbor:"val"`
}

// ValueRec is the tagged encoding of a Value.
type ValueRec struct {
	K string              `cbor:"k"`           // unset, int, struct, array, type, addr
	T string              `cbor:"t,omitempty"` // tagged type name
	N int64               `cbor:"n,omitempty"` // scalar payload
	A uint64              `cbor:"a,omitempty"` // heap address
	Y string              `cbor:"y,omitempty"` // type-value target name
	F map[string]ValueRec `cbor:"f,omitempty"` // struct fields
	I []ValueRec          `cbor:"i,omitempty"` // array items
	L int                 `cbor:"l,omitempty"` // array length
}

// Marshal serializes the image to canonical CBOR bytes.
func (img *Image) Marshal() ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes an image from CBOR bytes.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	if img.Version != Version {
		return nil, fmt.Errorf("image: unsupported version %d", img.Version)
	}
	return &img, nil
}

// WriteFile snapshots rt and writes the marshaled image to path.
func WriteFile(path string, rt *objspace.Runtime) error {
	img, err := Snapshot(rt)
	if err != nil {
		return err
	}
	data, err := img.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile reads and unmarshals an image from path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}
