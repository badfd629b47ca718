// Command shellcore is the minimal host binary exercising the Host API of
// spec.md §6: it drives parse -> merge_delta -> eval_block against a
// freshly built engine state, the way the interactive frontend and LSP
// (out of scope here) would. Grounded on the cobra root-command-with-
// subcommands shape the example pack's own CLI entrypoints use (a
// PersistentPreRunE installing logging before any subcommand body runs),
// adapted to this repo's zerolog-based logging instead of slog.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:   "shellcore",
		Short: "shellcore — structured-data shell core",
		Long: `shellcore is a host binary over the structured-data shell core:
a lexer, a parser with inline name resolution and type inference, a
persistent engine state, and a tree-walking evaluator over typed
pipeline data.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initLogger(logLevel, logFormat)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
	root.PersistentFlags().String("workdir", ".", "working directory setting (loaded into config only; externals and redirections use the process directory)")
	root.PersistentFlags().Bool("unrestricted", false, "allow external command execution")
	root.PersistentFlags().Int("max-recursion-depth", 256, "maximum stack nesting depth at a def call (closures not counted)")

	root.AddCommand(parseCmd())
	root.AddCommand(evalCmd())
	root.AddCommand(replCmd())
	return root
}

func initLogger(level, format string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	var w = os.Stderr
	switch format {
	case "json":
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	case "text", "":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
	default:
		return fmt.Errorf("unknown log format %q: use text or json", format)
	}
	return nil
}
