package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/nuon"
)

// replCmd is the "repl-lite" host spec.md §4.6 describes: it reads lines
// from stdin and evaluates each in turn against one shared engine.State
// and stack, with no line editor or history (those are explicitly out of
// scope, see spec.md §1 Non-goals). `def`/`module`/`use` declarations a
// line adds persist into later lines via the shared State's overlays,
// matching the real REPL's merge_delta-per-line behavior; `let`-bound
// variables stay lexically scoped to the line that declares them, since
// each line is its own top-level parse.
func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read lines from stdin and evaluate each against a shared engine state",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, opt, err := newEngine(cmd)
			if err != nil {
				return err
			}
			stack := eval.NewStack()

			scanner := bufio.NewScanner(os.Stdin)
			lineNo := 0
			for scanner.Scan() {
				lineNo++
				line := scanner.Text()
				if line == "" {
					continue
				}

				out, err := runSource(state, stack, opt, fmt.Sprintf("<repl:%d>", lineNo), []byte(line))
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				text, err := nuon.Marshal(out)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					continue
				}
				fmt.Println(text)
			}
			if err := scanner.Err(); err != nil && err != io.EOF {
				return err
			}
			return nil
		},
	}
}
