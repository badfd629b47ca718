package eval

import (
	"github.com/pkg/errors"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// evalCall dispatches a resolved Call to its Declaration's body, matching
// spec.md §4.3 "Call evaluation": builtin/user/alias/external all share the
// same argument-binding step before diverging on body kind.
func (e *Evaluator) evalCall(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	call := expr.Call
	decl, ok := e.State.Decl(call.Decl)
	if !ok {
		return PipelineData{}, diag.New(diag.KindCommandNotFound, expr.Span, "command no longer registered")
	}
	switch decl.Body.Kind {
	case ast.BodyBuiltin:
		return e.callBuiltin(stack, decl, call, input)
	case ast.BodyUser:
		return e.callUser(stack, decl, call, input)
	case ast.BodyAlias:
		return e.callAlias(stack, decl, expr, input)
	case ast.BodyKnownExternal, ast.BodyPlugin:
		return e.callExternalDecl(stack, decl, call, input)
	}
	return PipelineData{}, errors.Errorf("eval: unknown declaration body kind %d", decl.Body.Kind)
}

// boundArgs is the fully-evaluated argument set for one call: positional
// values aligned 1:1 with sig.Positional, named values keyed by long flag
// name, and the overflow rest values (spec.md §4.2 "Argument binding").
type boundArgs struct {
	positional []value.Value
	named      map[string]value.Value
	rest       []value.Value
}

// paramDefault evaluates an optional parameter's declared default, falling
// back to Nothing when none is recorded. No parser path populates
// Param.Default yet (signature parsing stops at name/type/required today),
// so in practice this always takes the Nothing branch; the Span.Unknown
// check keeps this call site correct the day defaults are parsed.
func (e *Evaluator) paramDefault(stack *Stack, p ast.Param, sp span.Span, input PipelineData) (value.Value, error) {
	if p.Default.Span == span.Unknown {
		return value.Nothing(sp), nil
	}
	return e.EvalScalar(stack, p.Default, input)
}

// bindArgs evaluates every argument expression of call in the *caller's*
// stack (call.go's parser-side bindCall already aligned call.Positional to
// sig.Positional by index, so no name re-resolution is needed here) and
// fills in declared defaults for any positional/named param the call omits.
func (e *Evaluator) bindArgs(stack *Stack, sig *ast.Signature, call *ast.Call, input PipelineData) (boundArgs, error) {
	var out boundArgs
	out.named = map[string]value.Value{}

	for i, p := range sig.Positional {
		if i < len(call.Positional) {
			v, err := e.EvalScalar(stack, call.Positional[i], input)
			if err != nil {
				return boundArgs{}, err
			}
			out.positional = append(out.positional, v)
			continue
		}
		if p.Required {
			return boundArgs{}, diag.New(diag.KindMissingPositional, call.Span, "missing required argument: "+p.Name)
		}
		v, err := e.paramDefault(stack, p, call.Span, input)
		if err != nil {
			return boundArgs{}, err
		}
		out.positional = append(out.positional, v)
	}

	for _, p := range sig.Named {
		argExpr, present := call.Named[p.Name]
		switch {
		case present:
			if p.IsSwitch {
				out.named[p.Name] = value.MkBool(true, call.Span)
				continue
			}
			v, err := e.EvalScalar(stack, argExpr, input)
			if err != nil {
				return boundArgs{}, err
			}
			out.named[p.Name] = v
		case p.IsSwitch:
			out.named[p.Name] = value.MkBool(false, call.Span)
		default:
			v, err := e.paramDefault(stack, p, call.Span, input)
			if err != nil {
				return boundArgs{}, err
			}
			out.named[p.Name] = v
		}
	}

	for _, re := range call.Rest {
		v, err := e.EvalScalar(stack, re, input)
		if err != nil {
			return boundArgs{}, err
		}
		out.rest = append(out.rest, v)
	}
	return out, nil
}

func (e *Evaluator) callUser(stack *Stack, decl ast.Declaration, call *ast.Call, input PipelineData) (PipelineData, error) {
	blk, ok := e.State.Block(decl.Body.UserBlock)
	if !ok {
		return PipelineData{}, errors.Errorf("eval: unknown block id for %q", decl.Name)
	}
	if e.MaxRecursionDepth > 0 && stack.Depth()+1 > e.MaxRecursionDepth {
		return PipelineData{}, diag.New(diag.KindRecursionLimitExceeded, call.Span, "recursion limit exceeded calling "+decl.Name)
	}
	args, err := e.bindArgs(stack, &decl.Signature, call, input)
	if err != nil {
		return PipelineData{}, err
	}
	callee := stack.Child()
	for i, p := range decl.Signature.Positional {
		callee.Set(p.VarId, args.positional[i])
	}
	if decl.Signature.Rest != nil {
		callee.Set(decl.Signature.Rest.VarId, value.MkList(args.rest, call.Span))
	}
	for _, p := range decl.Signature.Named {
		callee.Set(p.VarId, args.named[p.Name])
	}
	out, err := e.EvalBlock(callee, blk, input)
	if err != nil {
		return PipelineData{}, err
	}
	if blk.RedirectEnv {
		stack.SetEnv(callee.Env())
	}
	return out, nil
}

func (e *Evaluator) callBuiltin(stack *Stack, decl ast.Declaration, call *ast.Call, input PipelineData) (PipelineData, error) {
	args, err := e.bindArgs(stack, &decl.Signature, call, input)
	if err != nil {
		return PipelineData{}, err
	}
	ctx := &builtinContext{
		eval: e, stack: stack, call: call, input: input,
		sig: &decl.Signature, args: args,
	}
	res, err := decl.Body.Builtin(ctx)
	if err != nil {
		return PipelineData{}, err
	}
	return builtinResultToPipeline(res, call.Span), nil
}

// callAlias splices the alias's recorded prefix call together with the
// actual call site's extra arguments: the prefix supplies its own Decl and
// any positional/named/rest arguments fixed at `alias` definition time, and
// the call site's own arguments are appended after them (spec.md §4.4
// "alias").
func (e *Evaluator) callAlias(stack *Stack, decl ast.Declaration, expr ast.Expression, input PipelineData) (PipelineData, error) {
	prefix := decl.Body.AliasPrefix
	if prefix == nil {
		return PipelineData{}, errors.Errorf("eval: alias %q has no recorded prefix", decl.Name)
	}
	merged := *prefix
	merged.Positional = append(append([]ast.Expression{}, prefix.Positional...), expr.Call.Positional...)
	merged.Rest = append(append([]ast.Expression{}, prefix.Rest...), expr.Call.Rest...)
	if len(expr.Call.Named) > 0 {
		named := make(map[string]ast.Expression, len(prefix.Named)+len(expr.Call.Named))
		for k, v := range prefix.Named {
			named[k] = v
		}
		for k, v := range expr.Call.Named {
			named[k] = v
		}
		merged.Named = named
	}
	merged.Span = expr.Span
	aliased := ast.Expression{Kind: ast.ECall, Call: &merged, Span: expr.Span, Ty: expr.Ty}
	return e.evalCall(stack, aliased, input)
}

func (e *Evaluator) callExternalDecl(stack *Stack, decl ast.Declaration, call *ast.Call, input PipelineData) (PipelineData, error) {
	args, err := e.bindArgs(stack, &decl.Signature, call, input)
	if err != nil {
		return PipelineData{}, err
	}
	argv := make([]string, 0, len(args.positional)+len(args.rest))
	for _, v := range args.positional {
		argv = append(argv, value.Display(v))
	}
	for _, v := range args.rest {
		argv = append(argv, value.Display(v))
	}
	return e.runExternal(stack, decl.Body.ExternalPath, argv, input, call.Span)
}

// builtinResultToPipeline adapts a BuiltinFunc's loosely-typed return value
// (spec.md §3 BuiltinContext: an interface{} boundary so internal/ast never
// imports internal/eval) into PipelineData.
func builtinResultToPipeline(res interface{}, sp span.Span) PipelineData {
	switch r := res.(type) {
	case PipelineData:
		return r
	case value.Value:
		return FromValue(r)
	case *ListStream:
		return FromList(r)
	case nil:
		return Empty()
	default:
		return FromValue(value.Nothing(sp))
	}
}
