package dwarf

import (
	"github.com/os-module/rvtrace/internal/logflags"
	"github.com/os-module/rvtrace/pkg/trace"
)

// EhInfo bundles the parsed .eh_frame/.eh_frame_hdr sections read once
// from a Provider, the way original_source/src/dwarf/unwinder.rs's EhInfo
// parses both sections once at construction and keeps them for the
// Unwinder's lifetime.
type EhInfo struct {
	section *ehFrameSection
	hdr     *ehFrameHdrTable // nil if the hdr table couldn't be parsed; fdeForPC falls back to a linear scan
}

// NewEhInfo reads the section bytes a Provider exposes and parses them.
// The .eh_frame_hdr table is optional: if it fails to parse (or the
// Provider reports an empty range), lookups fall back to
// ehFrameSection.fdeForPC's linear scan rather than failing outright --
// unlike the Rust original, which treats a missing hdr as fatal, this
// port tolerates its absence since nothing about the FP/PS engines or
// the rest of this package depends on it being present.
func NewEhInfo(p Provider) (*EhInfo, error) {
	ehFrame := readBytesAt(p.EhFrame(), p.EhFrameEnd())
	section, err := parseEhFrame(ehFrame)
	if err != nil {
		return nil, err
	}

	info := &EhInfo{section: section}

	hdrBytes := readBytesAt(p.EhFrameHdr(), p.EhFrameHdrEnd())
	if len(hdrBytes) > 0 {
		if hdr, err := parseEhFrameHdr(hdrBytes); err == nil {
			info.hdr = hdr
		}
	}
	return info, nil
}

// fdeForPC resolves pc to its covering FDE, preferring the
// .eh_frame_hdr binary-search table (golang.org/x/exp/slices.
// BinarySearchFunc, see ehframehdr.go) when one was parsed and falling
// back to ehFrameSection's linear scan otherwise.
func (e *EhInfo) fdeForPC(pc uint64) (*fde, bool) {
	if e.hdr != nil {
		if entry, ok := e.hdr.lookup(uint32(pc)); ok {
			if f, ok := e.section.fdeAtOffset(entry.fdeOffset); ok && f.contains(pc) {
				return f, true
			}
		}
	}
	return e.section.fdeForPC(pc)
}

// DwarfTracer walks call frames by evaluating CFI rows from .eh_frame,
// the third and most general of the three unwinding engines (§4.5),
// ported from original_source/src/dwarf/unwinder.rs's Unwinder::next.
type DwarfTracer struct {
	info     *EhInfo
	resolver trace.SymbolResolver
	cache    *rowCache
}

// NewDwarfTracer builds an engine that resolves addresses through
// resolver and evaluates CFI rows against info.
func NewDwarfTracer(info *EhInfo, resolver trace.SymbolResolver) *DwarfTracer {
	return &DwarfTracer{info: info, resolver: resolver, cache: newRowCache()}
}

// Trace starts a new iterator seeded from the register snapshot ms (for
// example one taken with trace.CaptureMachineState). Each call builds a
// fresh register scratchpad from ms, so the tracer can start several
// independent traces; unlike FPTracer.Trace and PSTracer.Trace, it reads
// no live registers itself.
func (t *DwarfTracer) Trace(ms trace.MachineState) trace.Tracer {
	return &dwarfIterator{
		info:     t.info,
		resolver: t.resolver,
		regs:     trace.RegisterFileFromMachineState(ms),
		cache:    t.cache,
		isFirst:  true,
	}
}

type dwarfIterator struct {
	info     *EhInfo
	resolver trace.SymbolResolver
	regs     *trace.RegisterFile
	cache    *rowCache

	cfa     uint64
	isFirst bool
	frame   trace.TraceInfo
}

// Next implements Unwinder::next: the first call reports the pc the
// tracer was seeded with unchanged; every call after that evaluates one
// CFI row via step, applies its register rules to update the scratchpad,
// and reports the restored return address as the next frame's pc. A step
// failure or a resolver miss on the yielded pc both end iteration (§4.5
// "Termination"), matching FPTracer (fp.go) and PSTracer (ps.go), which
// both check the resolver's ok before ever emitting a frame.
func (t *dwarfIterator) Next() bool {
	pc, ok := t.regs.GetPC()
	if !ok {
		if logflags.Stack() {
			logflags.StackLogger().Debugf("dwarf: %v", ErrNoPcRegister)
		}
		return false
	}
	if t.isFirst {
		t.isFirst = false
		return t.commitFrame(pc)
	}

	ret, err := t.step(pc)
	if err != nil {
		if logflags.Stack() {
			logflags.StackLogger().Debugf("dwarf: step failed at pc=0x%x: %v", pc, err)
		}
		return false
	}
	if ret == 0 {
		return false
	}
	return t.commitFrame(ret)
}

// step evaluates the CFI row covering pc, applies its register rules to
// the scratchpad, and returns the restored return address. Every failure
// path reports a sentinel (one of those in errors.go, or
// trace.ErrUnexpectedRegister from RegisterFile.Set); Next logs it and
// ends iteration without emitting a frame.
func (t *dwarfIterator) step(pc uint64) (uint64, error) {
	f, ok := t.info.fdeForPC(pc)
	if !ok {
		return 0, ErrNoUnwindInfo
	}

	row, ok := t.cache.get(f, pc)
	if !ok {
		var err error
		row, err = program(f.cie, f, pc)
		if err != nil {
			return 0, err
		}
		t.cache.put(f, pc, row)
	}

	switch row.CFA.Kind {
	case CfaRegisterAndOffset:
		regVal, ok := t.regByDwarf(row.CFA.Reg)
		if !ok {
			return 0, ErrCfaRuleUnknownRegister
		}
		t.cfa = uint64(int64(regVal) + row.CFA.Offset)
	default:
		return 0, ErrUnsupportedCfaRule
	}

	for _, reg := range t.regs.Iter() {
		dreg := regToDwarf(reg)
		rule, has := row.Regs[dreg]
		if !has {
			continue
		}
		switch rule.Kind {
		case RuleUndefined:
			t.regs.Undef(reg)
		case RuleSameValue:
		case RuleOffset:
			addr := uint64(int64(t.cfa) + rule.Offset)
			if err := t.regs.Set(reg, readWordVolatileDwarf(addr)); err != nil {
				return 0, err
			}
		case RuleValOffset:
			v := uint64(int64(t.cfa) + rule.Offset)
			if err := t.regs.Set(reg, v); err != nil {
				return 0, err
			}
		default:
			return 0, ErrUnimplementedRegRule
		}
	}

	ret, ok := t.regs.GetRet()
	if !ok {
		return 0, ErrNoReturnAddr
	}
	t.regs.SetPC(ret)
	t.regs.SetStackPtr(t.cfa)
	return ret, nil
}

func (t *dwarfIterator) Frame() trace.TraceInfo { return t.frame }

// commitFrame resolves pc through the SymbolResolver and, on a hit,
// records the frame and reports success. A miss ends iteration without
// touching t.frame, the same contract fpIterator.Next and psIterator.Next
// follow.
func (t *dwarfIterator) commitFrame(pc uint64) bool {
	base, name, ok := t.resolver.AddressToSymbol(pc)
	if !ok {
		if logflags.Stack() {
			logflags.StackLogger().Debugf("dwarf: resolver miss at pc=0x%x", pc)
		}
		return false
	}
	t.frame = trace.TraceInfo{FuncName: name, FuncAddr: base, Bias: pc - base}
	return true
}

func (t *dwarfIterator) regByDwarf(dreg uint64) (uint64, bool) {
	for _, reg := range t.regs.Iter() {
		if regToDwarf(reg) == dreg {
			return t.regs.Get(reg)
		}
	}
	return 0, false
}
