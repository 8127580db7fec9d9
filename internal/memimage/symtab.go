// Package memimage builds small synthetic call chains and their
// surrounding symbol/unwind-table data entirely in heap memory, so the
// three engines can be exercised against the seed scenarios of §8
// without needing a real compiled binary on disk. Nothing here reads
// from an actual process image; every byte a test unwinds through was
// assembled by this package.
package memimage

import "sort"

// Symbol is one entry of a synthetic, sorted-by-address symbol table.
type Symbol struct {
	Name string
	Base uint64
	End  uint64 // exclusive; 0 means "unbounded" (only the last symbol may use this)
}

// SymbolTable implements trace.SymbolResolver over a fixed, small set of
// symbols -- the "hand-written fakes" SPEC_FULL.md's test-tooling section
// calls for in place of a real DWARF/ELF symbol table, matching the
// corpus's own preference for minimal purpose-built fixtures over a
// general-purpose parser in test code.
type SymbolTable struct {
	syms []Symbol
}

// NewSymbolTable builds a table from syms, sorted by base address.
func NewSymbolTable(syms ...Symbol) *SymbolTable {
	cp := append([]Symbol(nil), syms...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Base < cp[j].Base })
	return &SymbolTable{syms: cp}
}

// AddressToSymbol implements trace.SymbolResolver: the symbol whose
// [Base, End) range contains addr, or ok==false if none does (the
// resolver-miss termination signal §7 describes).
func (t *SymbolTable) AddressToSymbol(addr uint64) (base uint64, name string, ok bool) {
	for _, s := range t.syms {
		if addr < s.Base {
			continue
		}
		if s.End != 0 && addr >= s.End {
			continue
		}
		return s.Base, s.Name, true
	}
	return 0, "", false
}

// NextBase returns the base address of the symbol immediately following
// the one containing addr: the upper bound in the bias-bound testable
// property (§8), `0 <= bias < next_symbol_base - func_addr`. No test in
// this module calls it.
func (t *SymbolTable) NextBase(addr uint64) (uint64, bool) {
	for i, s := range t.syms {
		if addr >= s.Base && (s.End == 0 || addr < s.End) {
			if i+1 < len(t.syms) {
				return t.syms[i+1].Base, true
			}
			return 0, false
		}
	}
	return 0, false
}
