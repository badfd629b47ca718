package eval

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/span"
)

// ExtendedContext is the fuller surface internal/stdcmd builtins type-assert
// a BuiltinContext down to when they need more than ast.BuiltinContext's
// narrow interface{} boundary exposes: the owning Evaluator/Stack (to
// invoke a Closure argument, e.g. `each`/`where`/`par-each`) plus the rest
// args and call span. internal/ast cannot name this interface itself
// (it would import internal/eval), so it lives here and internal/stdcmd
// asserts ctx.(eval.ExtendedContext) instead.
type ExtendedContext interface {
	ast.BuiltinContext
	Eval() *Evaluator
	Stack() *Stack
	Rest() []interface{}
	Span() span.Span
}

// builtinContext implements ast.BuiltinContext, the narrow interface{}
// boundary a BuiltinFunc sees so internal/ast never imports internal/eval
// (spec.md §1 Non-goals, §3 Declaration).
type builtinContext struct {
	eval  *Evaluator
	stack *Stack
	call  *ast.Call
	input PipelineData

	sig  *ast.Signature
	args boundArgs
}

// Arg returns a named flag's bound value by long name, converted to the
// loosely-typed interface{} shape BuiltinContext exposes: a Value stays a
// Value (stdcmd builtins do their own ast/value-aware unwrapping), only the
// presence bit is adapted here.
func (c *builtinContext) Arg(name string) (interface{}, bool) {
	v, ok := c.args.named[name]
	if !ok {
		return nil, false
	}
	return v, true
}

// Positional returns the i-th bound positional argument.
func (c *builtinContext) Positional(i int) (interface{}, bool) {
	if i < 0 || i >= len(c.args.positional) {
		return nil, false
	}
	return c.args.positional[i], true
}

// Input returns the pipeline input this call received. Builtins that want
// PipelineData's streaming behaviour type-assert it back; builtins that only
// care about a materialised Value call Collect themselves, taking the
// cancellation check from the Evaluator that Eval() returns (internal/stdcmd).
func (c *builtinContext) Input() interface{} { return c.input }

// Eval exposes the owning Evaluator and Stack to a builtin that needs to run
// a Closure argument (e.g. `each`, `where`, `par-each`), a capability plain
// Arg/Positional/Input can't express through an interface{} return.
func (c *builtinContext) Eval() *Evaluator { return c.eval }

// Stack exposes the calling Stack. Closure invocation does not use it:
// CallClosure builds the closure's frame from a fresh NewStack.
func (c *builtinContext) Stack() *Stack { return c.stack }

// Rest returns the call's overflow rest arguments.
func (c *builtinContext) Rest() []interface{} {
	out := make([]interface{}, len(c.args.rest))
	for i, v := range c.args.rest {
		out[i] = v
	}
	return out
}

// Span returns the call's source span, for builtins constructing their own
// diagnostics.
func (c *builtinContext) Span() span.Span { return c.call.Span }
