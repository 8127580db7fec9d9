package main

import (
	"github.com/spf13/cobra"

	"github.com/os-module/rvtrace/internal/logflags"
)

var (
	logFlags   string
	configPath string
	cfg        Config
)

// newRootCmd builds the cobra command tree, the same shape delve's
// `cmd/dlv` root command follows: a persistent `--log` flag gating
// internal/logflags, wired in PersistentPreRunE so it applies to every
// subcommand before that subcommand's RunE executes. An optional
// rvtrace.yaml is loaded the same way, populating cfg before any
// subcommand runs.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rvtrace",
		Short: "In-process RISC-V stack backtracing",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logflags.Configure(logFlags)
			loaded, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logFlags, "log", "", "comma-separated debug log flags (e.g. \"stack\")")
	root.PersistentFlags().StringVar(&configPath, "config", "rvtrace.yaml", "path to an optional config file")

	root.AddCommand(newDemoCmd())
	root.AddCommand(newReplCmd())
	return root
}
