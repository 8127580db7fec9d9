package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"
	liner "github.com/go-delve/liner"
	"github.com/spf13/cobra"

	"github.com/os-module/rvtrace/pkg/trace"
)

// replCommand is one named action the shell understands. args are the
// whitespace-tokenized words following the command name.
type replCommand struct {
	name string
	help string
	run  func(out io.Writer, args []string) error
}

// newReplCmd builds the interactive shell subcommand: a liner-backed
// readline loop, words tokenized shell-style with cosiner/argv (so quoted
// arguments work as a user expects), and tab completion driven by a trie
// of command names -- the same three libraries delve's own command-line
// vends, applied here to rvtrace's much smaller surface (engine demo and
// help only, no live target process to attach to).
func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive shell for poking at the backtracing engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd)
		},
	}
}

func replCommands() []replCommand {
	var cmds []replCommand
	cmds = append(cmds,
		replCommand{
			name: "demo",
			help: "demo <fp|ps> -- walk this process's call stack with one engine",
			run: func(out io.Writer, args []string) error {
				engine := "fp"
				if len(args) > 0 {
					engine = args[0]
				}
				resolver := newRuntimeResolver()
				var it trace.Tracer
				switch engine {
				case "fp":
					it = trace.NewFPTracer(resolver).Trace()
				case "ps":
					it = trace.NewPSTracer(resolver).Trace()
				default:
					return fmt.Errorf("unknown engine %q (want fp or ps)", engine)
				}
				for _, f := range trace.Walk(it, 32) {
					fmt.Fprintf(out, "func_name: %s, func_addr: %#x, bias: %#x\n", f.FuncName, f.FuncAddr, f.Bias)
				}
				return nil
			},
		},
		replCommand{
			name: "help",
			help: "help -- list commands",
			run: func(out io.Writer, _ []string) error {
				for _, c := range cmds {
					fmt.Fprintln(out, c.help)
				}
				return nil
			},
		},
	)
	return cmds
}

func runRepl(cmd *cobra.Command) error {
	cmds := replCommands()
	byName := make(map[string]replCommand, len(cmds))
	completionTrie := trie.New()
	for _, c := range cmds {
		byName[c.name] = c
		completionTrie.Add(c.name)
	}

	out := colorableOut(cmd.OutOrStdout())

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetWordCompleter(func(text string, pos int) (head string, completions []string, tail string) {
		return "", completionTrie.PrefixSearch(text[:pos]), text[pos:]
	})

	for {
		input, err := line.Prompt("rvtrace> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		words, err := argv.Argv([]rune(input), nil, nil)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if len(words) == 0 || len(words[0]) == 0 {
			continue
		}
		name, rest := words[0][0], words[0][1:]

		c, ok := byName[name]
		if !ok {
			fmt.Fprintf(out, "unknown command %q (try \"help\")\n", name)
			continue
		}
		if err := c.run(out, rest); err != nil {
			fmt.Fprintln(out, err)
		}
	}
}

