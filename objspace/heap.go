package objspace

import (
	"fmt"
	"sort"
	"sync"
)

// ---------------------------------------------------------------------------
// Simulated heap
// ---------------------------------------------------------------------------

// Addr is a simulated heap address.
type Addr uint64

// NullAddr is reserved as "null" and is never allocated.
const NullAddr Addr = 0

// addrStride spaces consecutive allocations. Addresses are monotonically
// increasing and never reused; there is no reclamation in this design.
const addrStride Addr = 0x10

// Heap is a single simulated address space mapping addresses to typed
// values. Only box layouts are ever stored.
type Heap struct {
	mu    sync.Mutex
	cells map[Addr]Value
	next  Addr
}

func newHeap() *Heap {
	return &Heap{cells: make(map[Addr]Value), next: addrStride}
}

// alloc reserves a fresh address and stores a default-initialized instance
// of t, which must be a box layout.
func (h *Heap) alloc(t *Type) (Addr, error) {
	if !t.isBox {
		return NullAddr, fmt.Errorf("%w: heap stores box layouts only, got %s", ErrInvalidAlloc, t.name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	addr := h.next
	h.next += addrStride
	h.cells[addr] = structValueOf(newStructValue(t))
	return addr, nil
}

// load returns a live reference to the instance stored at addr. The stored
// dynamic type must be identical to want; a disagreement is never coerced.
func (h *Heap) load(addr Addr, want *Type) (*StructValue, error) {
	h.mu.Lock()
	v, ok := h.cells[addr]
	h.mu.Unlock()
	if addr == NullAddr {
		return nil, fmt.Errorf("%w: load at null address", ErrTypeMismatch)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no object at address 0x%x", ErrTypeMismatch, uint64(addr))
	}
	if v.typ != want {
		return nil, fmt.Errorf("%w: address 0x%x holds %s, expected %s",
			ErrTypeMismatch, uint64(addr), v.typ.name, want.name)
	}
	return v.strct, nil
}

// size returns the number of allocated cells.
func (h *Heap) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cells)
}

// addrs returns every allocated address in increasing order.
func (h *Heap) addrs() []Addr {
	h.mu.Lock()
	out := make([]Addr, 0, len(h.cells))
	for a := range h.cells {
		out = append(out, a)
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// cell returns the raw stored value at addr, for introspection.
func (h *Heap) cell(addr Addr) (Value, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.cells[addr]
	return v, ok
}

// adopt installs a cell at an explicit address, advancing the allocation
// cursor past it. Used when restoring a heap image.
func (h *Heap) adopt(addr Addr, v Value) error {
	if addr == NullAddr {
		return fmt.Errorf("%w: cannot adopt the null address", ErrInvalidAlloc)
	}
	if v.typ == nil || !v.typ.isBox || !v.IsStruct() {
		return fmt.Errorf("%w: adopted cells must hold box instances", ErrInvalidAlloc)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.cells[addr]; ok {
		return fmt.Errorf("%w: address 0x%x already occupied", ErrInvalidAlloc, uint64(addr))
	}
	h.cells[addr] = v
	if addr >= h.next {
		h.next = addr + addrStride
	}
	return nil
}
