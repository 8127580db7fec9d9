package dwarf

import "errors"

// Error taxonomy for the DW engine (§7). ErrNoPcRegister is raised by
// dwarfIterator.Next itself; the others are returned internally by
// dwarfIterator.step. None is surfaced past the Tracer interface: Next
// logs the error (with the pc, for a failed step) and ends iteration,
// matching original_source/src/dwarf/unwinder.rs's UnwinderError enum.
// The payload each Rust variant carried -- the offending Register -- is
// neither attached to the error nor logged.
//
// The Rust enum's UnexpectedRegister variant has no corresponding
// sentinel here: the only place that could produce it, RegisterFile.Set
// failing on a tag outside {SP, FP, RA}, already returns
// trace.ErrUnexpectedRegister (regfile.go), and step only ever calls Set
// with tags drawn from RegisterFile.Iter(), which never includes
// anything else. A second, package-local sentinel for the same
// unreachable condition would just be dead weight.
var (
	ErrUnsupportedCfaRule     = errors.New("dwarf: unsupported cfa rule")
	ErrCfaRuleUnknownRegister = errors.New("dwarf: cfa rule references unknown register")
	ErrUnimplementedRegRule   = errors.New("dwarf: unimplemented register rule")
	ErrNoUnwindInfo           = errors.New("dwarf: no unwind info for pc")
	ErrNoPcRegister           = errors.New("dwarf: no pc register")
	ErrNoReturnAddr           = errors.New("dwarf: no return address")
)
