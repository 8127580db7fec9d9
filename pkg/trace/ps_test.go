package trace_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/os-module/rvtrace/internal/memimage"
	"github.com/os-module/rvtrace/pkg/trace"
)

// simplePrologue assembles `addi sp,sp,-16; sd ra,8(sp)` followed by
// enough nops to make body scans (reading past the ra-store while
// inside this function's own window) safe, into a buffer of bufLen
// bytes.
func simplePrologue(bufLen int) []byte {
	code := memimage.AppendU32(nil, memimage.EncodeAddiSP(-16))
	code = memimage.AppendU32(code, memimage.EncodeSdRa(8))
	for len(code) < bufLen {
		code = memimage.AppendU32(code, memimage.EncodeNop())
	}
	return code
}

// TestPSTracerThreeDeepChain exercises scenario 1 (§8): starting inside
// "c", PS must emit (c, bias=0x04), (b, bias=0x08), (a, bias=0x10), then
// end (a's saved return address resolves to nothing, the top of the
// synthetic stack).
func TestPSTracerThreeDeepChain(t *testing.T) {
	bootstrap := memimage.NewCodeBuffer(simplePrologue(32))
	bufC := memimage.NewCodeBuffer(simplePrologue(32))
	bufB := memimage.NewCodeBuffer(simplePrologue(32))
	bufA := memimage.NewCodeBuffer(simplePrologue(32))

	syms := memimage.NewSymbolTable(
		memimage.Symbol{Name: "c", Base: bufC.Addr(), End: bufC.Addr() + 32},
		memimage.Symbol{Name: "b", Base: bufB.Addr(), End: bufB.Addr() + 32},
		memimage.Symbol{Name: "a", Base: bufA.Addr(), End: bufA.Addr() + 32},
	)

	stack := memimage.NewStackBuffer(128)
	sp0 := stack.Base()

	raC := bufC.Addr() + 0x04
	raB := bufB.Addr() + 0x08
	raA := bufA.Addr() + 0x10

	stack.PutU64At(sp0+8, raC)    // bootstrap's own frame: saved ra -> c
	stack.PutU64At(sp0+16+8, raB) // c's frame: saved ra -> b
	stack.PutU64At(sp0+32+8, raA) // b's frame: saved ra -> a
	stack.PutU64At(sp0+48+8, 0)   // a's frame: saved ra -> nothing (top of stack)

	it := trace.NewPSIteratorForTest(bootstrap.Addr(), sp0, bootstrap.Addr(), syms)

	var got []trace.TraceInfo
	for it.Next() {
		got = append(got, it.Frame())
	}
	runtime.KeepAlive(bootstrap.Keep())
	runtime.KeepAlive(bufC.Keep())
	runtime.KeepAlive(bufB.Keep())
	runtime.KeepAlive(bufA.Keep())
	runtime.KeepAlive(stack.Keep())

	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].FuncName)
	assert.Equal(t, uint64(0x04), got[0].Bias)
	assert.Equal(t, "b", got[1].FuncName)
	assert.Equal(t, uint64(0x08), got[1].Bias)
	assert.Equal(t, "a", got[2].FuncName)
	assert.Equal(t, uint64(0x10), got[2].Bias)
}

// TestPSTracerAggregatesTwoStepPrologue exercises scenario 2: a function
// with a two-step prologue (`addi sp,sp,-16; sd ra,8(sp); addi
// sp,sp,-32`) must have its stack size aggregated to 48, recovering its
// ra at sp+48-8.
func TestPSTracerAggregatesTwoStepPrologue(t *testing.T) {
	code := memimage.AppendU32(nil, memimage.EncodeAddiSP(-16))
	code = memimage.AppendU32(code, memimage.EncodeSdRa(8))
	code = memimage.AppendU32(code, memimage.EncodeAddiSP(-32))
	for len(code) < 32 {
		code = memimage.AppendU32(code, memimage.EncodeNop())
	}
	bufB := memimage.NewCodeBuffer(code)

	bootstrap := memimage.NewCodeBuffer(simplePrologue(32))

	syms := memimage.NewSymbolTable(
		memimage.Symbol{Name: "b", Base: bufB.Addr(), End: bufB.Addr() + 32},
	)

	stack := memimage.NewStackBuffer(128)
	sp0 := stack.Base()

	// raB must sit past both prologue instructions (offsets 0-3 and
	// 8-11) so the body scan's upper bound doesn't stop short of the
	// second sp-adjust.
	raB := bufB.Addr() + 0x18
	stack.PutU64At(sp0+8, raB) // bootstrap's saved ra -> b

	// b's frame, once its 48-byte total size is recovered, stores its own
	// saved ra at sp(after bootstrap pop)+48-8.
	finalRA := uint64(0) // top of stack
	stack.PutU64At(sp0+16+48-8, finalRA)
	// Decoy at the slot a decoder that stopped at the first sp-adjust
	// (size 16) would read: it resolves to b, so such a decoder would
	// emit a second frame and fail the require.False below.
	stack.PutU64At(sp0+16+16-8, raB)

	it := trace.NewPSIteratorForTest(bootstrap.Addr(), sp0, bootstrap.Addr(), syms)

	require.True(t, it.Next())
	assert.Equal(t, "b", it.Frame().FuncName)
	assert.Equal(t, raB-bufB.Addr(), it.Frame().Bias)

	require.False(t, it.Next())

	runtime.KeepAlive(bootstrap.Keep())
	runtime.KeepAlive(bufB.Keep())
	runtime.KeepAlive(stack.Keep())
}

// TestPSTracerResolverMissEndsIteration exercises scenario 4 (§8): a
// resolver that hits on the first frame but misses on the second ends
// iteration after exactly one emission, mirroring TestFPTracerResolverMiss
// in fp_test.go.
func TestPSTracerResolverMissEndsIteration(t *testing.T) {
	bootstrap := memimage.NewCodeBuffer(simplePrologue(32))
	bufC := memimage.NewCodeBuffer(simplePrologue(32))

	syms := memimage.NewSymbolTable(
		memimage.Symbol{Name: "c", Base: bufC.Addr(), End: bufC.Addr() + 32},
	)

	stack := memimage.NewStackBuffer(128)
	sp0 := stack.Base()

	raC := bufC.Addr() + 0x04
	stack.PutU64At(sp0+8, raC)       // bootstrap's saved ra -> c
	stack.PutU64At(sp0+16+8, 0x9999) // c's saved ra -> an address no symbol covers

	it := trace.NewPSIteratorForTest(bootstrap.Addr(), sp0, bootstrap.Addr(), syms)

	require.True(t, it.Next())
	assert.Equal(t, "c", it.Frame().FuncName)

	require.False(t, it.Next())

	runtime.KeepAlive(bootstrap.Keep())
	runtime.KeepAlive(bufC.Keep())
	runtime.KeepAlive(stack.Keep())
}

// TestPSTracerUnrecognizedPrologueEndsWithoutEmission exercises scenario
// 3: a leaf function whose first instruction is not an SP-adjust (here,
// a nop) ends PS after zero emissions.
func TestPSTracerUnrecognizedPrologueEndsWithoutEmission(t *testing.T) {
	code := memimage.AppendU32(nil, memimage.EncodeNop())
	for len(code) < 16 {
		code = memimage.AppendU32(code, memimage.EncodeNop())
	}
	leaf := memimage.NewCodeBuffer(code)

	syms := memimage.NewSymbolTable()
	stack := memimage.NewStackBuffer(64)

	it := trace.NewPSIteratorForTest(leaf.Addr(), stack.Base(), leaf.Addr(), syms)
	require.False(t, it.Next())

	runtime.KeepAlive(leaf.Keep())
	runtime.KeepAlive(stack.Keep())
}
