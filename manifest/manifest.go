// Package manifest handles fern.toml project configuration: project
// metadata plus the application type declarations to install into a
// runtime at startup.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/fernlang/fern/objspace"
)

// Manifest represents a fern.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Types   Types   `toml:"types"`

	// Dir is the directory containing the fern.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Types groups the declared application types, applied in the order
// scalar, struct, ref, each list in declaration order.
type Types struct {
	Scalar []ScalarDecl `toml:"scalar"`
	Struct []StructDecl `toml:"struct"`
	Ref    []RefDecl    `toml:"ref"`
}

// ScalarDecl declares an atomic named leaf type.
type ScalarDecl struct {
	Name string `toml:"name"`
}

// StructDecl declares a struct type with ordered fields.
type StructDecl struct {
	Name   string      `toml:"name"`
	Fields []FieldDecl `toml:"fields"`
}

// FieldDecl is one struct field. Type is a type expression: a registered
// type name, "T[...]" for a variable array, or "ptr[T]" for a payload
// pointer.
type FieldDecl struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// RefDecl declares a reference type: a struct whose sole field points at
// the target type.
type RefDecl struct {
	Name   string `toml:"name"`
	Field  string `toml:"field"`
	Target string `toml:"target"`
}

// Load parses a fern.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "fern.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a fern.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "fern.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Validate checks the declarations that can be checked without a runtime.
func (m *Manifest) Validate() error {
	if m.Project.Name == "" {
		return fmt.Errorf("project.name is required")
	}
	for _, s := range m.Types.Scalar {
		if s.Name == "" {
			return fmt.Errorf("scalar declaration without a name")
		}
	}
	for _, s := range m.Types.Struct {
		if s.Name == "" {
			return fmt.Errorf("struct declaration without a name")
		}
		for _, f := range s.Fields {
			if f.Name == "" || f.Type == "" {
				return fmt.Errorf("struct %s: field needs name and type", s.Name)
			}
		}
	}
	for _, r := range m.Types.Ref {
		if r.Name == "" || r.Field == "" || r.Target == "" {
			return fmt.Errorf("ref declaration needs name, field and target")
		}
	}
	return nil
}

// Register installs the declared types into rt. Declarations are applied
// in order, so a declaration may use any type declared above it.
func (m *Manifest) Register(rt *objspace.Runtime) error {
	for _, s := range m.Types.Scalar {
		if _, err := rt.NewScalarType(s.Name); err != nil {
			return fmt.Errorf("scalar %s: %w", s.Name, err)
		}
	}
	for _, s := range m.Types.Struct {
		fields := make([]objspace.Field, 0, len(s.Fields))
		for _, f := range s.Fields {
			ft, err := resolveTypeExpr(rt, f.Type)
			if err != nil {
				return fmt.Errorf("struct %s, field %s: %w", s.Name, f.Name, err)
			}
			fields = append(fields, objspace.Field{Name: f.Name, Type: ft})
		}
		if _, err := rt.NewStructType(s.Name, fields); err != nil {
			return fmt.Errorf("struct %s: %w", s.Name, err)
		}
	}
	for _, r := range m.Types.Ref {
		target, err := resolveTypeExpr(rt, r.Target)
		if err != nil {
			return fmt.Errorf("ref %s: %w", r.Name, err)
		}
		if _, err := rt.NewRefType(r.Name, r.Field, target); err != nil {
			return fmt.Errorf("ref %s: %w", r.Name, err)
		}
	}
	return nil
}

// resolveTypeExpr resolves a type expression against rt's registry:
// "T" (a registered name), "T[...]" (variable array), "ptr[T]".
func resolveTypeExpr(rt *objspace.Runtime, expr string) (*objspace.Type, error) {
	expr = strings.TrimSpace(expr)
	if inner, ok := strings.CutSuffix(expr, "[...]"); ok {
		elem, err := resolveTypeExpr(rt, inner)
		if err != nil {
			return nil, err
		}
		return rt.VarArrayType(elem), nil
	}
	if inner, ok := strings.CutPrefix(expr, "ptr["); ok {
		inner, ok := strings.CutSuffix(inner, "]")
		if !ok {
			return nil, fmt.Errorf("malformed type expression %q", expr)
		}
		target, err := resolveTypeExpr(rt, inner)
		if err != nil {
			return nil, err
		}
		return rt.PtrType(target), nil
	}
	t, ok := rt.LookupType(expr)
	if !ok {
		return nil, fmt.Errorf("unknown type %q", expr)
	}
	return t, nil
}
