//go:build riscv64

package trace

// readFP, readSP and readRA read the live s0 (frame pointer), sp and ra
// registers of the calling goroutine, implemented in arch_riscv64.s. They
// must be called with no function call between the caller's prologue and
// the read, and are intentionally not inlined (go:noescape + assembly
// body prevents the compiler from reordering register writes across the
// call) so that capturing the current MachineState sees the caller's own
// frame, not some already-unwound state.
//
//go:noescape
func readFP() uint64

//go:noescape
func readSP() uint64

//go:noescape
func readRA() uint64

// CaptureMachineState reads the live PC/SP/FP/RA of the calling function
// at the point of the call. PC is obtained via a PC-relative instruction
// (AUIPC) rather than a named register, matching source note §9 ("The PC
// can be obtained by taking a PC-relative instruction's output").
func CaptureMachineState() MachineState {
	return MachineState{
		PC: readPC(),
		SP: readSP(),
		FP: readFP(),
		RA: readRA(),
	}
}

//go:noescape
func readPC() uint64
