// Package diag implements the diagnostic and ShellError taxonomy described
// in spec.md §7, shared by the lexer, parser and evaluator.
package diag

import (
	"fmt"

	"github.com/shellcore/shellcore/internal/span"
)

// Kind enumerates the error taxonomy of spec.md §7.
type Kind string

const (
	// ParseError kinds.
	KindUnbalancedDelimiter  Kind = "unbalanced-delimiter"
	KindUnknownCommand       Kind = "unknown-command"
	KindUnexpectedToken      Kind = "unexpected-token"
	KindExpectedShape        Kind = "expected-shape"
	KindBadVariableName      Kind = "bad-variable-name"
	KindDuplicateDefinition  Kind = "duplicate-definition"

	// NameError kinds.
	KindVariableNotFound Kind = "variable-not-found"
	KindCommandNotFound  Kind = "command-not-found"
	KindModuleNotFound   Kind = "module-not-found"
	KindColumnNotFound   Kind = "column-not-found"
	KindExternalNotFound Kind = "external-not-found"
	KindPrivateBinding   Kind = "private-binding"

	// TypeError kinds.
	KindOperatorMismatch    Kind = "operator-mismatch"
	KindArgumentTypeMismatch Kind = "argument-type-mismatch"
	KindDefaultTypeMismatch Kind = "default-type-mismatch"
	KindBadSpread           Kind = "bad-spread"
	KindDuplicateColumn     Kind = "duplicate-column"

	// ArityError kinds.
	KindMissingPositional    Kind = "missing-positional"
	KindUnexpectedPositional Kind = "unexpected-positional"
	KindMissingFlagValue     Kind = "missing-flag-value"

	// RuntimeError kinds.
	KindDivisionByZero       Kind = "division-by-zero"
	KindIntegerOverflow      Kind = "integer-overflow"
	KindIOError              Kind = "io-error"
	KindRegexCompileFailure  Kind = "regex-compile-failure"
	KindExternalFailed       Kind = "external-command-failed"
	KindNonZeroExit          Kind = "non-zero-exit"
	KindRecursionLimitExceeded Kind = "recursion-limit-exceeded"

	// Interrupted.
	KindInterrupted Kind = "interrupted"

	// UserError, produced by `error make`.
	KindUserError Kind = "user-error"
)

// Label attaches an explanatory note to a secondary span.
type Label struct {
	Span span.Span
	Note string
}

// Error is the shared diagnostic/ShellError representation: a primary span,
// zero or more labelled secondary spans, and optional help text. It is used
// both for parser diagnostics (accumulated, never thrown) and for runtime
// ShellErrors (propagated as Go errors and also embeddable as a Value).
type Error struct {
	Kind    Kind
	Message string
	Primary span.Span
	Labels  []Label
	Help    string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil diag.Error>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Help != "" {
		msg += " (help: " + e.Help + ")"
	}
	return msg
}

// New builds a primary-only diagnostic.
func New(kind Kind, primary span.Span, message string) *Error {
	return &Error{Kind: kind, Primary: primary, Message: message}
}

// WithLabel returns a copy of e with an additional labelled secondary span.
func (e *Error) WithLabel(s span.Span, note string) *Error {
	cp := *e
	cp.Labels = append(append([]Label{}, e.Labels...), Label{Span: s, Note: note})
	return &cp
}

// WithHelp returns a copy of e carrying help text.
func (e *Error) WithHelp(help string) *Error {
	cp := *e
	cp.Help = help
	return &cp
}

// Interrupted is a sentinel ShellError raised at cancellation points
// (spec.md §5).
func Interrupted(at span.Span) *Error {
	return New(KindInterrupted, at, "execution was interrupted")
}

// Bag accumulates diagnostics without aborting, matching the parser's
// "never throws" propagation policy (spec.md §4.2, §7).
type Bag struct {
	errors []*Error
}

// Add appends a diagnostic to the bag.
func (b *Bag) Add(e *Error) { b.errors = append(b.errors, e) }

// HasErrors reports whether any diagnostic was recorded.
func (b *Bag) HasErrors() bool { return len(b.errors) > 0 }

// Errors returns all recorded diagnostics in recording order.
func (b *Bag) Errors() []*Error { return b.errors }
