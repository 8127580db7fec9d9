package trace_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/os-module/rvtrace/internal/memimage"
	"github.com/os-module/rvtrace/pkg/trace"
)

// TestFPTracerThreeDeepChain exercises scenario 1 (§8): a→b→c chain with
// known bases 0x1000/0x1100/0x1200 and return addresses 0x1010/0x1108/
// 0x1204, expecting innermost-first emission (c, b, a) then end.
func TestFPTracerThreeDeepChain(t *testing.T) {
	syms := memimage.NewSymbolTable(
		memimage.Symbol{Name: "a", Base: 0x1000, End: 0x1100},
		memimage.Symbol{Name: "b", Base: 0x1100, End: 0x1200},
		memimage.Symbol{Name: "c", Base: 0x1200, End: 0x1300},
	)

	chain := memimage.BuildFPChain([]uint64{0x1204, 0x1108, 0x1010})

	it := trace.NewFPIteratorForTest(chain.StartFP, syms)

	var got []trace.TraceInfo
	for it.Next() {
		got = append(got, it.Frame())
	}
	runtime.KeepAlive(chain.Keep())

	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].FuncName)
	assert.Equal(t, uint64(0x1200), got[0].FuncAddr)
	assert.Equal(t, uint64(0x04), got[0].Bias)

	assert.Equal(t, "b", got[1].FuncName)
	assert.Equal(t, uint64(0x1100), got[1].FuncAddr)
	assert.Equal(t, uint64(0x08), got[1].Bias)

	assert.Equal(t, "a", got[2].FuncName)
	assert.Equal(t, uint64(0x1000), got[2].FuncAddr)
	assert.Equal(t, uint64(0x10), got[2].Bias)
}

// TestFPTracerResolverMiss exercises scenario 4: a resolver returning
// ok==false for the second frame ends iteration after exactly one
// emission.
func TestFPTracerResolverMiss(t *testing.T) {
	syms := memimage.NewSymbolTable(
		memimage.Symbol{Name: "c", Base: 0x1200, End: 0x1300},
	)
	chain := memimage.BuildFPChain([]uint64{0x1204, 0x9999})

	it := trace.NewFPIteratorForTest(chain.StartFP, syms)

	var got []trace.TraceInfo
	for it.Next() {
		got = append(got, it.Frame())
	}
	runtime.KeepAlive(chain.Keep())

	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].FuncName)
}

// TestFPTracerZeroFPEndsIteration covers the terminal-frame case: a
// chain whose last saved fp is zero ends iteration without emitting an
// extra, garbage frame.
func TestFPTracerZeroFPEndsIteration(t *testing.T) {
	syms := memimage.NewSymbolTable(
		memimage.Symbol{Name: "only", Base: 0x2000, End: 0x2100},
	)
	chain := memimage.BuildFPChain([]uint64{0x2004})

	it := trace.NewFPIteratorForTest(chain.StartFP, syms)
	require.True(t, it.Next())
	require.False(t, it.Next())
	runtime.KeepAlive(chain.Keep())
}
