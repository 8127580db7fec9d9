package trace

import (
	"reflect"
	"unsafe"

	"github.com/os-module/rvtrace/internal/logflags"
)

// PSTracer decodes each enclosing function's prologue to infer its frame
// size, requiring nothing from the compiler beyond a conventional
// prologue shape (a stack-pointer adjustment followed immediately by a
// store of ra to the stack). See §4.4.
type PSTracer struct {
	resolver SymbolResolver
}

// NewPSTracer builds a prologue-scanning engine resolving through
// resolver.
func NewPSTracer(resolver SymbolResolver) *PSTracer {
	return &PSTracer{resolver: resolver}
}

// Trace returns a fresh iterator. The very first Next() call bootstraps
// its state from the live sp register and from its own address (so that
// the first emitted frame is the caller of the function that called
// Next, not Trace itself -- see the bootstrap rule in §4.4).
func (t *PSTracer) Trace() Tracer {
	return &psIterator{resolver: t.resolver}
}

type psIteratorState struct {
	fInsAddr uint64
	sp       uint64
	ra       uint64
}

type psIterator struct {
	state    psIteratorState
	started  bool
	resolver SymbolResolver
	frame    TraceInfo
}

func readInstruction(addr uint64) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(addr)))
}

func readInstructionShort(addr uint64) uint16 {
	return *(*uint16)(unsafe.Pointer(uintptr(addr)))
}

func readWord(addr uint64) uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(addr)))
}

// bootstrap captures the live sp and seeds f_ins_addr/ra with the
// iterator's own emitting function address, per the protocol's first
// step.
func (it *psIterator) bootstrap() {
	traceAddr := uint64(reflect.ValueOf(it.Next).Pointer())
	it.state.sp = readSP()
	it.state.fInsAddr = traceAddr
	it.state.ra = traceAddr
	it.started = true
}

func (it *psIterator) Next() bool {
	if !it.started {
		it.bootstrap()
	}

	firstIns := readInstruction(it.state.fInsAddr)
	decoded, ok := decodeFirstInstruction(firstIns)
	if !ok {
		if logflags.Stack() {
			logflags.StackLogger().Debugf("ps: unrecognized prologue at %#x", it.state.fInsAddr)
		}
		return false
	}

	var nextInsAddr uint64
	var stackSize uint32
	switch decoded.kind {
	case spAddi:
		nextInsAddr = it.state.fInsAddr + 4
		stackSize = decoded.size
	case spCAddi, spCAddi16Sp:
		nextInsAddr = it.state.fInsAddr + 2
		stackSize = decoded.size
	}

	nextIns := readInstruction(nextInsAddr)
	if !checkSdRa(nextIns) {
		if logflags.Stack() {
			logflags.StackLogger().Debugf("ps: no ra-save after prologue at %#x", nextInsAddr)
		}
		return false
	}

	// Body scan: additional SP-adjusting instructions between the
	// ra-save and the known ra (the return address that led into this
	// function) accumulate into stackSize. See §4.4 for the exact
	// tie-break (compressed forms tried before the 0x0113 32-bit
	// placeholder at each half-word position).
	start := nextInsAddr
	end := it.state.ra
	for start < end {
		short := readInstructionShort(start)
		switch {
		case isCAddi16Sp(short) || isCAddi(short):
			if ins, ok := decodeSPAdjust(uint32(short), func(imm int32) bool { return imm < 0 }); ok {
				stackSize += ins.size
				if logflags.Stack() {
					logflags.StackLogger().Debugf("ps: scan short addr=%#x size=+%d", start, ins.size)
				}
			}
			start += 2
		case maybeIsAddi(short):
			full := readInstruction(start)
			if ins, ok := decodeSPAdjust(full, func(imm int32) bool { return imm < 0 }); ok && ins.kind == spAddi {
				stackSize += ins.size
				if logflags.Stack() {
					logflags.StackLogger().Debugf("ps: scan full addr=%#x size=+%d", start, ins.size)
				}
			}
			start += 4
		default:
			start += 2
		}
	}

	raAddr := it.state.sp + uint64(stackSize) - 8
	ra := readWord(raAddr)

	base, name, ok := it.resolver.AddressToSymbol(ra)
	if logflags.Stack() {
		logflags.StackLogger().Debugf("ps: frame pop stack_size=%d ra_addr=%#x ra=%#x resolved=%v", stackSize, raAddr, ra, ok)
	}
	if !ok {
		return false
	}

	it.state.fInsAddr = base
	it.state.sp += uint64(stackSize)
	it.state.ra = ra
	it.frame = TraceInfo{FuncName: name, FuncAddr: base, Bias: ra - base}
	return true
}

func (it *psIterator) Frame() TraceInfo { return it.frame }
