// Command rvtrace is a small CLI wrapping the rvtrace backtracing
// engines: a `demo` subcommand walks the running process's own call
// stack with one engine (fp or ps), and a `repl` subcommand offers an
// interactive shell for doing the same.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
