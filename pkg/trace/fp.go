package trace

import (
	"unsafe"

	"github.com/os-module/rvtrace/internal/logflags"
)

// FPTracer walks the frame-pointer linked list. It requires that every
// function prologue on the call chain saved the return address and the
// previous frame pointer at fp-8 and fp-16 respectively; it performs no
// bounds checking, so it must only be run in a context where that
// invariant actually holds (the caller's responsibility per §4.3).
type FPTracer struct {
	resolver SymbolResolver
}

// NewFPTracer builds an engine that resolves addresses through resolver.
func NewFPTracer(resolver SymbolResolver) *FPTracer {
	return &FPTracer{resolver: resolver}
}

// Trace starts a new iterator seeded from the live s0 register. Each
// FPTracer.Trace call captures fresh state; the tracer itself holds no
// mutable iteration state and so can be reused to start multiple
// independent traces.
func (t *FPTracer) Trace() Tracer {
	return &fpIterator{fp: readFP(), resolver: t.resolver}
}

type fpIterator struct {
	fp       uint64
	resolver SymbolResolver
	frame    TraceInfo
}

// readWordVolatile reads a 64-bit machine word at addr, standing in for
// the original's `(addr as *const usize).read_volatile()`. Go has no
// volatile load; this is the closest direct translation (a bare pointer
// dereference through unsafe.Pointer, performed exactly once per call with
// no caching), since delve itself reads target memory this way when
// walking the FP chain as a DWARF CFI fallback (arm64_arch.go,
// RuleFramePointer).
func readWordVolatile(addr uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(addr)))
}

func (it *fpIterator) Next() bool {
	if it.fp == 0 {
		return false
	}
	ra := readWordVolatile(it.fp - 8)
	newFP := readWordVolatile(it.fp - 16)

	base, name, ok := it.resolver.AddressToSymbol(ra)
	if logflags.Stack() {
		logflags.StackLogger().Debugf("fp step: fp=%#x ra=%#x resolved=%v", it.fp, ra, ok)
	}
	if !ok {
		return false
	}

	it.fp = newFP
	it.frame = TraceInfo{FuncName: name, FuncAddr: base, Bias: ra - base}
	return true
}

func (it *fpIterator) Frame() TraceInfo { return it.frame }
