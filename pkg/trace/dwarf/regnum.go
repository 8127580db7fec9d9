package dwarf

import "github.com/os-module/rvtrace/pkg/trace"

// RISC-V DWARF register numbers (RISC-V psABI, table in the DWARF CFI
// appendix): x1 is ra, x2 is sp, x8 is s0/fp. Only these three ever map
// to a trace.Reg -- the Register File is deliberately narrow (§4.2) -- so
// CFI rows that reference any other DWARF register number are never
// looked up; they simply aren't part of the {SP, FP, RA} iteration this
// engine performs.
const (
	RiscvRA uint64 = 1
	RiscvSP uint64 = 2
	RiscvS0 uint64 = 8
)

// regToDwarf maps a trace.Reg to the RISC-V DWARF register number used to
// index a CFI row.
func regToDwarf(r trace.Reg) uint64 {
	switch r {
	case trace.RegSP:
		return RiscvSP
	case trace.RegFP:
		return RiscvS0
	case trace.RegRA:
		return RiscvRA
	}
	return ^uint64(0)
}
