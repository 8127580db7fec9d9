package dwarf

import "unsafe"

// readWordVolatileDwarf reads one 64-bit word from addr, the same
// read_volatile translation fp.go and ps.go use for their own memory
// reads (§9 "Volatile reads"): the target address comes from evaluating
// a CFI rule against the live CFA, so the compiler must not assume it
// can reorder or elide the load.
func readWordVolatileDwarf(addr uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(addr)))
}
