// Package config resolves host-tunable interpreter options (spec.md §2
// ambient "config" component): sandboxing, working directory, recursion
// limits, and log verbosity. It mirrors yaegi's Options/opt split
// (internal/config.Options is the public, zero-value-friendly struct; a
// host fills in what it cares about and leaves the rest to defaults) but
// resolves those defaults through an env + flag overlay via
// github.com/spf13/viper instead of yaegi's bespoke environment parsing,
// since this corpus reaches for viper wherever a CLI needs layered
// configuration (see other_examples' atmos command wrappers binding their
// own pflag sets into viper.GetViper()).
package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options are the resolved interpreter options a host (cmd/shellcore, an
// embedding program, a test) can act on. Every field has a safe zero
// value, matching yaegi's Options struct.
type Options struct {
	// WorkDir is the working-directory setting loaded from the flag or
	// environment. It is not passed to the evaluator: external commands and
	// file redirections resolve against the process's working directory.
	WorkDir string

	// Unrestricted allows external command execution (spec.md §6). When
	// false, a host may choose to reject ECall nodes whose head resolves
	// to an external rather than a declared name.
	Unrestricted bool

	// MaxRecursionDepth bounds the Stack depth checked at each user def
	// call; that depth counts nested def calls, blocks, loop bodies and
	// match arms. A closure call starts from a fresh frame, so closure
	// nesting is not counted (spec.md §4.3 notes only cancellation, not a
	// depth limit).
	MaxRecursionDepth int

	// LogLevel and LogFormat configure the zerolog writer cmd/shellcore
	// installs as the global logger.
	LogLevel  string
	LogFormat string
}

const envPrefix = "SHELLCORE"

// defaults mirrors yaegi's New(Options) nil-field fallback behavior: every
// default lives in one place instead of scattered across call sites.
func defaults() Options {
	return Options{
		WorkDir:           ".",
		Unrestricted:      false,
		MaxRecursionDepth: 256,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load resolves Options from, in increasing priority: built-in defaults,
// SHELLCORE_*-prefixed environment variables, then flags already parsed
// into fs. Passing a nil fs skips the flag-binding step, which is how
// tests construct an env-only Options.
func Load(fs *pflag.FlagSet) (Options, error) {
	v := viper.New()
	d := defaults()

	v.SetDefault("workdir", d.WorkDir)
	v.SetDefault("unrestricted", d.Unrestricted)
	v.SetDefault("max-recursion-depth", d.MaxRecursionDepth)
	v.SetDefault("log-level", d.LogLevel)
	v.SetDefault("log-format", d.LogFormat)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Options{}, err
		}
	}

	return Options{
		WorkDir:           v.GetString("workdir"),
		Unrestricted:      v.GetBool("unrestricted"),
		MaxRecursionDepth: v.GetInt("max-recursion-depth"),
		LogLevel:          v.GetString("log-level"),
		LogFormat:         v.GetString("log-format"),
	}, nil
}
