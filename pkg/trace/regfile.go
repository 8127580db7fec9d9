package trace

import "errors"

// Reg tags the registers the RegisterFile participates in. PC is
// deliberately not a Reg value: it is accessed only through the dedicated
// GetPC/SetPC pair, matching the source's "PC is accessed only via
// dedicated get_pc/set_pc" rule.
type Reg int

const (
	RegSP Reg = iota
	RegFP
	RegRA
)

func (r Reg) String() string {
	switch r {
	case RegSP:
		return "sp"
	case RegFP:
		return "fp"
	case RegRA:
		return "ra"
	default:
		return "unknown"
	}
}

// ErrUnexpectedRegister is returned by RegisterFile.Set for any Reg value
// outside {RegSP, RegFP, RegRA}.
var ErrUnexpectedRegister = errors.New("trace: unexpected register")

// RegisterFile is a scratchpad for unwinding, not a full CPU model: it
// only ever holds PC, SP, FP and RA, each independently optional. The DW
// engine updates these each step as it evaluates CFI register rules; the
// FP and PS engines don't use it at all (they keep their own
// narrower iteration state).
type RegisterFile struct {
	pc, sp, fp, ra *uint64
}

// MachineState is a fully-populated snapshot of the four registers, taken
// once at unwinder construction time via live architectural register
// reads (see arch_riscv64.s).
type MachineState struct {
	PC, SP, FP, RA uint64
}

// RegisterFileFromMachineState builds a RegisterFile scratchpad seeded
// from a MachineState snapshot. The snapshot itself is never mutated; the
// returned RegisterFile is the engine's working copy.
func RegisterFileFromMachineState(ms MachineState) *RegisterFile {
	rf := &RegisterFile{}
	rf.SetPC(ms.PC)
	_ = rf.Set(RegSP, ms.SP)
	_ = rf.Set(RegFP, ms.FP)
	_ = rf.Set(RegRA, ms.RA)
	return rf
}

func (r *RegisterFile) slot(reg Reg) **uint64 {
	switch reg {
	case RegSP:
		return &r.sp
	case RegFP:
		return &r.fp
	case RegRA:
		return &r.ra
	default:
		return nil
	}
}

// Get returns the current value of reg, or ok==false if it is undefined.
func (r *RegisterFile) Get(reg Reg) (uint64, bool) {
	slot := r.slot(reg)
	if slot == nil || *slot == nil {
		return 0, false
	}
	return **slot, true
}

// Set stores v into reg. Tags outside {SP, FP, RA} fail with
// ErrUnexpectedRegister; PC has no Set via this method, use SetPC.
func (r *RegisterFile) Set(reg Reg, v uint64) error {
	slot := r.slot(reg)
	if slot == nil {
		return ErrUnexpectedRegister
	}
	val := v
	*slot = &val
	return nil
}

// Undef marks reg as having no known value. Unknown tags are silently
// ignored, matching the source ("undef silently ignores unknown tags") so
// that CFI rules which name a register this file doesn't track never
// abort a step.
func (r *RegisterFile) Undef(reg Reg) {
	slot := r.slot(reg)
	if slot == nil {
		return
	}
	*slot = nil
}

// GetPC returns the current PC, if known.
func (r *RegisterFile) GetPC() (uint64, bool) {
	if r.pc == nil {
		return 0, false
	}
	return *r.pc, true
}

// SetPC sets the current PC.
func (r *RegisterFile) SetPC(v uint64) {
	val := v
	r.pc = &val
}

// GetRet is Get(RegRA).
func (r *RegisterFile) GetRet() (uint64, bool) { return r.Get(RegRA) }

// SetStackPtr is Set(RegSP, v), never fails.
func (r *RegisterFile) SetStackPtr(v uint64) { _ = r.Set(RegSP, v) }

// Iter returns the register tags in the fixed order SP, FP, RA. CFI
// register-rule evaluation walks this order so that SP (on which CFA
// itself may depend via RuleRegister-like rules) is always resolved
// first.
func (r *RegisterFile) Iter() []Reg {
	return []Reg{RegSP, RegFP, RegRA}
}
