package main

import (
	"io"
	"os"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
)

// colorableOut wraps w with go-colorable's ANSI-on-Windows translation
// when color output is wanted: forced on/off by cfg.Color if the config
// file set it, auto-detected from the terminal otherwise. Mirrors how
// delve's terminal package decides whether to emit color codes at all.
func colorableOut(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok {
		return w
	}
	want := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	if cfg.Color != nil {
		want = *cfg.Color
	}
	if !want {
		return w
	}
	return colorable.NewColorable(f)
}
