// Fern inspect - dumps the types and heap contents of a saved heap image
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/fernlang/fern/image"
	"github.com/fernlang/fern/objspace"
	"github.com/fernlang/fern/store"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("fern-inspect")

func main() {
	imagePath := flag.String("image", "", "Path to a heap image file")
	dbPath := flag.String("db", "", "Path to an image store database")
	name := flag.String("name", "", "Image name in the store (used with -db)")
	list := flag.Bool("list", false, "List images in the store (used with -db)")
	typesOnly := flag.Bool("types", false, "Print the type registry only")
	verbosity := flag.Int("v", 0, "Log verbosity (0 quiet, 2 debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fern-inspect [options]\n\n")
		fmt.Fprintf(os.Stderr, "Loads a heap image and prints its registered types and heap cells.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fern-inspect -image out.fimg            # Dump an image file\n")
		fmt.Fprintf(os.Stderr, "  fern-inspect -db fern.db -list          # List stored images\n")
		fmt.Fprintf(os.Stderr, "  fern-inspect -db fern.db -name boot     # Dump a stored image\n")
		fmt.Fprintf(os.Stderr, "  fern-inspect -image out.fimg -types     # Types only\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	switch {
	case *list:
		if *dbPath == "" {
			fail("-list requires -db")
		}
		listImages(*dbPath)
	case *imagePath != "":
		img, err := image.ReadFile(*imagePath)
		if err != nil {
			fail("reading %s: %v", *imagePath, err)
		}
		dump(img, *typesOnly)
	case *dbPath != "":
		if *name == "" {
			fail("-db requires -name (or -list)")
		}
		st, err := store.Open(*dbPath)
		if err != nil {
			fail("opening store %s: %v", *dbPath, err)
		}
		defer st.Close()
		img, err := st.Load(*name)
		if err != nil {
			fail("loading %q: %v", *name, err)
		}
		dump(img, *typesOnly)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func listImages(dbPath string) {
	st, err := store.Open(dbPath)
	if err != nil {
		fail("opening store %s: %v", dbPath, err)
	}
	defer st.Close()

	entries, err := st.List()
	if err != nil {
		fail("listing images: %v", err)
	}
	if len(entries) == 0 {
		fmt.Println("(no images)")
		return
	}
	for _, e := range entries {
		fmt.Printf("%-24s %8d bytes  %s  runtime=%s\n",
			e.Name, e.Size, e.CreatedAt.Format("2006-01-02 15:04:05"), e.RuntimeID)
	}
}

func dump(img *image.Image, typesOnly bool) {
	log.Infof("restoring image (runtime %s, %d types, %d cells)",
		img.RuntimeID, len(img.Types), len(img.Cells))

	rt, err := image.Restore(img)
	if err != nil {
		fail("restoring image: %v", err)
	}

	fmt.Printf("runtime %s\n\n", rt.ID())
	dumpTypes(rt)
	if typesOnly {
		return
	}
	fmt.Println()
	dumpHeap(rt)
}

func dumpTypes(rt *objspace.Runtime) {
	types := rt.Types()
	fmt.Printf("types (%d):\n", len(types))
	for _, t := range types {
		fmt.Printf("  %s\n", describeType(t))
	}
}

func describeType(t *objspace.Type) string {
	var b strings.Builder
	b.WriteString(t.Name())
	switch {
	case t.IsRef():
		fields := t.Fields()
		fmt.Fprintf(&b, "  ref{%s -> %s}", fields[0].Name, t.RefTarget().Name())
	case t.IsBox():
		b.WriteString("  box")
	case t.IsStruct():
		parts := make([]string, 0, len(t.Fields()))
		for _, f := range t.Fields() {
			s := f.Name + ": " + f.Type.Name()
			if t.FlexField() == f.Name {
				s += "  (flexible)"
			}
			parts = append(parts, s)
		}
		fmt.Fprintf(&b, "  struct{%s}", strings.Join(parts, ", "))
	case t.IsVarArray():
		fmt.Fprintf(&b, "  array of %s", t.Elem().Name())
	default:
		b.WriteString("  scalar")
	}
	return b.String()
}

func dumpHeap(rt *objspace.Runtime) {
	addrs := rt.HeapAddrs()
	fmt.Printf("heap (%d cells):\n", len(addrs))
	for _, addr := range addrs {
		v, ok := rt.HeapCell(addr)
		if !ok {
			continue
		}
		fmt.Printf("  0x%x: %s\n", uint64(addr), renderValue(v, 2))
	}
}

// renderValue formats v for display, descending into structs and arrays.
func renderValue(v objspace.Value, depth int) string {
	switch {
	case v.IsUnset():
		return "<unset>"
	case v.IsType():
		return "type " + v.TypeVal().Name()
	case v.IsAddr():
		if v.Addr() == objspace.NullAddr {
			return v.Type().Name() + " null"
		}
		return fmt.Sprintf("%s -> 0x%x", v.Type().Name(), uint64(v.Addr()))
	case v.IsStruct():
		sv := v.Struct()
		if depth <= 0 {
			return sv.Type().Name() + "{...}"
		}
		parts := make([]string, 0, len(sv.Type().Fields()))
		for _, f := range sv.Type().Fields() {
			fv, err := sv.Get(f.Name)
			if err != nil {
				continue
			}
			parts = append(parts, f.Name+"="+renderValue(fv, depth-1))
		}
		return sv.Type().Name() + "{" + strings.Join(parts, ", ") + "}"
	case v.IsArray():
		a := v.Array()
		if depth <= 0 {
			return fmt.Sprintf("%s[%d]", a.Elem().Name(), a.Len())
		}
		parts := make([]string, 0, a.Len())
		for i := 0; i < a.Len(); i++ {
			item, err := a.Get(i)
			if err != nil {
				continue
			}
			parts = append(parts, renderValue(item, depth-1))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%s %d", v.Type().Name(), v.Int())
	}
}
