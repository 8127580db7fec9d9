package trace

// Test-only seams: fpIterator and psIterator carry no exported
// constructor because production callers always go through
// FPTracer.Trace/PSTracer.Trace, which seed them from live registers.
// Scenario tests need to seed them from synthetic memimage fixtures
// instead, so this file (built only for `go test`, per the export_test.go
// convention) exposes narrow constructors for that purpose alone.

// NewFPIteratorForTest builds an fpIterator seeded at fp, bypassing the
// live readFP() call FPTracer.Trace makes.
func NewFPIteratorForTest(fp uint64, resolver SymbolResolver) Tracer {
	return &fpIterator{fp: fp, resolver: resolver}
}

// NewPSIteratorForTest builds a psIterator already past bootstrap, seeded
// directly at the given first-instruction address, stack pointer and
// return address -- the state bootstrap() would otherwise derive from
// the iterator's own reflected call site.
func NewPSIteratorForTest(firstInsAddr, sp, ra uint64, resolver SymbolResolver) Tracer {
	return &psIterator{
		state:    psIteratorState{fInsAddr: firstInsAddr, sp: sp, ra: ra},
		started:  true,
		resolver: resolver,
	}
}
