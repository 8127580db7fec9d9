package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/os-module/rvtrace/pkg/trace"
)

// newDemoCmd ports original_source/examples/trace.rs's demo: build a
// tracer, walk it, print each frame. Since rvtrace's FP/PS engines
// bootstrap from the live fp/sp registers (see pkg/trace/fp.go,
// pkg/trace/ps.go), there is no real call chain to walk here other than
// this process's own native-Go stack, so the demo resolves symbols
// through runtime.FuncForPC rather than through an internal/memimage
// fixture -- those fixtures are reserved for tests, where the iterator's
// state can be seeded directly with the test-only constructors in
// pkg/trace/export_test.go.
func newDemoCmd() *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk the running process's own call stack with one engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("engine") && cfg.Engine != "" {
				engine = cfg.Engine
			}
			return runDemo(cmd, engine)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "fp", "engine to demo: fp or ps (dw needs a real .eh_frame image)")
	return cmd
}

func runDemo(cmd *cobra.Command, engine string) error {
	resolver := newRuntimeResolver()

	var it trace.Tracer
	switch engine {
	case "fp":
		it = trace.NewFPTracer(resolver).Trace()
	case "ps":
		it = trace.NewPSTracer(resolver).Trace()
	case "dw":
		return fmt.Errorf("dw demo requires a real .eh_frame/.eh_frame_hdr image, which this CLI has no way to obtain for its own binary; exercised in pkg/trace/dwarf's tests instead")
	default:
		return fmt.Errorf("unknown engine %q (want fp or ps)", engine)
	}

	frames := trace.Walk(it, 32)
	out := colorableOut(cmd.OutOrStdout())
	for _, f := range frames {
		fmt.Fprintf(out, "func_name: %s, func_addr: %#x, bias: %#x\n", f.FuncName, f.FuncAddr, f.Bias)
	}
	return nil
}

// runtimeResolver implements trace.SymbolResolver over the running Go
// binary's own symbol table via runtime.FuncForPC, standing in for the
// ELF symtab a real deployment target would provide.
type runtimeResolver struct{}

func newRuntimeResolver() *runtimeResolver { return &runtimeResolver{} }

func (r *runtimeResolver) AddressToSymbol(addr uint64) (uint64, string, bool) {
	fn := runtime.FuncForPC(uintptr(addr))
	if fn == nil {
		return 0, "", false
	}
	return uint64(fn.Entry()), fn.Name(), true
}
