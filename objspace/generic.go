package objspace

import "sync"

// ---------------------------------------------------------------------------
// Generic instantiation cache
// ---------------------------------------------------------------------------

// cacheOp identifies a generic constructor. Together with its argument
// types it forms the memoization key.
type cacheOp uint8

const (
	opBox cacheOp = iota
	opPtr
	opBoxPtr
	opVarArray
)

// cacheKey is the normalized argument tuple of a generic instantiation.
// Single-argument constructors leave b nil.
type cacheKey struct {
	op   cacheOp
	a, b *Type
}

// genericCache memoizes generic instantiations by argument identity.
// Exactly one descriptor exists per distinct key for the lifetime of the
// cache; there is no eviction. Downstream code relies on this to compare
// types by pointer identity.
type genericCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*Type
}

func newGenericCache() *genericCache {
	return &genericCache{entries: make(map[cacheKey]*Type)}
}

// get returns the cached descriptor for k, building and storing it on the
// first request. The build runs under the write lock so concurrent first
// requests still observe a single instance.
func (c *genericCache) get(k cacheKey, build func() (*Type, error)) (*Type, error) {
	c.mu.RLock()
	t, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.entries[k]; ok {
		return t, nil
	}
	t, err := build()
	if err != nil {
		return nil, err
	}
	c.entries[k] = t
	return t, nil
}
