package main

import (
	"github.com/spf13/cobra"

	"github.com/shellcore/shellcore/internal/config"
	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/stdcmd"
)

// newEngine follows spec.md §9's lifecycle exactly: construct empty,
// register builtins, merge the resulting delta, ready for parse/eval. It
// also resolves config.Options from cmd's flags (merged with root's
// persistent flags by cobra before RunE runs), so every subcommand shares
// one env+flag resolution path.
func newEngine(cmd *cobra.Command) (*engine.State, config.Options, error) {
	opt, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, config.Options{}, err
	}

	state := engine.New()
	ws := engine.NewWorkingSet(state)
	stdcmd.Register(ws)
	state.MergeDelta(ws.RenderDelta())
	return state, opt, nil
}
