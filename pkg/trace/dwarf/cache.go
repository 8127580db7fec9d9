package dwarf

import (
	lru "github.com/hashicorp/golang-lru"
)

// defaultCieCacheSize bounds how many evaluated rows (one per distinct
// (fde, pc) pair) rowCache keeps. It is generously sized rather than
// tuned; it exists to cap memory in a
// long-lived tracer that walks many distinct functions' FDEs over its
// lifetime (§5 "Concurrency & resource model" -- bounded, not unbounded,
// auxiliary state).
const defaultCieCacheSize = 64

// rowCache memoizes the evaluated Row for a (fde, pc) pair behind an
// LRU, the same role delve's frameBase/stackIterator caching plays for
// repeated unwinds of hot call sites, ported here onto
// hashicorp/golang-lru since that's the cache package the rest of the
// corpus uses (wired per SPEC_FULL.md's domain-stack table) rather than
// a hand-rolled map with manual eviction.
type rowCache struct {
	cache *lru.Cache
}

type rowCacheKey struct {
	fde *fde
	pc  uint64
}

func newRowCache() *rowCache {
	c, err := lru.New(defaultCieCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size, which
		// defaultCieCacheSize never is.
		panic(err)
	}
	return &rowCache{cache: c}
}

func (r *rowCache) get(f *fde, pc uint64) (Row, bool) {
	v, ok := r.cache.Get(rowCacheKey{f, pc})
	if !ok {
		return Row{}, false
	}
	return v.(Row), true
}

func (r *rowCache) put(f *fde, pc uint64, row Row) {
	r.cache.Add(rowCacheKey{f, pc}, row)
}
