package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/parser"
)

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file.nu>",
		Short: "Parse a script and report diagnostics without evaluating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			state, _, err := newEngine(cmd)
			if err != nil {
				return err
			}
			ws := engine.NewWorkingSet(state)
			fileID, covered := state.Files().AddFile(args[0], src)
			log.Debug().Str("file", args[0]).Int("bytes", len(src)).Msg("parsing")

			blk, errs := parser.ParseBlock(ws, fileID, covered.Start, src, false)
			state.MergeDelta(ws.RenderDelta())

			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e.Error())
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d parse error(s)", len(errs))
			}
			fmt.Printf("OK: %d pipeline(s) parsed\n", len(blk.Pipelines))
			return nil
		},
	}
}
