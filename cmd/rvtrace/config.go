package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is rvtrace's CLI-facing configuration surface, loaded from an
// optional rvtrace.yaml. It has no bearing on pkg/trace or
// pkg/trace/dwarf, which take no configuration beyond their constructor
// arguments.
type Config struct {
	// SymbolTable names a file holding the address-to-symbol mapping to
	// resolve frames against. Unused by the demo/repl commands, which
	// resolve through the running Go binary's own runtime symbol table,
	// but read by any future command that walks a foreign image.
	SymbolTable string `yaml:"symbol-table"`

	// Engine selects the default engine a command should use when its
	// own --engine flag is left unset: "fp", "ps", or "dw".
	Engine string `yaml:"engine"`

	// Color forces ANSI output on or off, overriding the isatty
	// auto-detection in colorableOut. Nil means auto-detect.
	Color *bool `yaml:"color"`
}

// loadConfig reads path, returning a zero Config (not an error) if path
// does not exist -- an rvtrace.yaml is optional, and every field has a
// sensible zero-value fallback handled by the caller.
func loadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
