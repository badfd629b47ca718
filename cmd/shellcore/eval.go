package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shellcore/shellcore/internal/config"
	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/nuon"
	"github.com/shellcore/shellcore/internal/parser"
	"github.com/shellcore/shellcore/internal/value"
)

func evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <file.nu>",
		Short: "Parse, merge and evaluate a script, printing its result as nuon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			state, opt, err := newEngine(cmd)
			if err != nil {
				return err
			}

			out, err := runSource(state, eval.NewStack(), opt, args[0], src)
			if err != nil {
				return err
			}
			text, err := nuon.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
}

// runSource implements the Host API's parse -> merge_delta -> eval_block
// sequence (spec.md §6) against one already-constructed engine.State. The
// caller owns stack, so a REPL can reuse one across lines (`def`/`module`
// declarations persist into later calls via the shared State's overlays)
// while a one-shot eval just builds a throwaway stack.
func runSource(state *engine.State, stack *eval.Stack, opt config.Options, path string, src []byte) (value.Value, error) {
	ws := engine.NewWorkingSet(state)
	fileID, covered := state.Files().AddFile(path, src)

	blk, errs := parser.ParseBlock(ws, fileID, covered.Start, src, false)
	if len(errs) > 0 {
		state.MergeDelta(ws.RenderDelta())
		msg := errs[0].Error()
		for _, e := range errs[1:] {
			msg += "\n" + e.Error()
		}
		return value.Value{}, fmt.Errorf("%s", msg)
	}
	state.MergeDelta(ws.RenderDelta())

	ev := eval.New(state)
	ev.Unrestricted = opt.Unrestricted
	ev.MaxRecursionDepth = opt.MaxRecursionDepth
	pd, err := ev.EvalBlock(stack, blk, eval.Empty())
	if err != nil {
		return value.Value{}, err
	}
	return pd.Collect(covered, state.Cancel)
}
