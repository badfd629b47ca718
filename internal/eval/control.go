package eval

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// evalKeyword evaluates the keyword forms that survive into the AST as a
// plain EKeyword node: `let`/`mut`/`const` bind a variable, `for` loops,
// `where`/`error make` build their payload, `use` runs the imported
// module's export-env blocks, and the purely-static forms
// (`hide`/`alias`/`module`/`overlay`/`export-env`) already took effect
// during parsing and are no-ops here (spec.md §4.2/§4.4).
func (e *Evaluator) evalKeyword(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	switch expr.Keyword {
	case "let", "mut":
		v, err := e.EvalScalar(stack, *expr.Inner, input)
		if err != nil {
			return PipelineData{}, err
		}
		stack.Set(expr.Var, v)
		return Empty(), nil
	case "const":
		// The initializer was already folded into the Variable's ConstVal at
		// parse time when it was a literal (internal/parser/keyword.go
		// parseConst); a non-literal initializer leaves ConstVal nil and is
		// not evaluated, so nothing is done here either way.
		return Empty(), nil
	case "for":
		return e.evalFor(stack, expr, input)
	case "where":
		return e.Eval(stack, *expr.Inner, input)
	case "error-make":
		return PipelineData{}, e.buildErrorMake(stack, expr, input)
	case "use":
		for _, id := range expr.EnvBlocks {
			if _, err := e.EvalBlockID(stack, id, input); err != nil {
				return PipelineData{}, err
			}
		}
		return Empty(), nil
	case "hide", "alias", "module", "overlay", "export-env":
		return Empty(), nil
	}
	return PipelineData{}, diag.New(diag.KindExpectedShape, expr.Span, "unhandled keyword: "+expr.Keyword)
}

func (e *Evaluator) evalFor(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	iterVal, err := e.EvalScalar(stack, *expr.Inner, input)
	if err != nil {
		return PipelineData{}, err
	}
	items, err := valuesOf(iterVal, expr.Span)
	if err != nil {
		return PipelineData{}, err
	}
	blk, ok := e.State.Block(expr.Block)
	if !ok {
		return PipelineData{}, diag.New(diag.KindExpectedShape, expr.Span, "for: missing loop body block")
	}
	for _, item := range items {
		if e.State.Cancel() {
			return PipelineData{}, diag.Interrupted(expr.Span)
		}
		body := stack.Child()
		body.Set(expr.Var, item)
		if _, err := e.EvalBlock(body, blk, Empty()); err != nil {
			return PipelineData{}, err
		}
	}
	return Empty(), nil
}

// valuesOf turns a scalar into the sequence for/each/where iterate: a
// Range iterates its integers, a List/Table iterates its elements, and any
// other scalar iterates as a single-element sequence.
func valuesOf(v value.Value, sp span.Span) ([]value.Value, error) {
	switch v.Tag {
	case value.TagRange:
		var out []value.Value
		v.Range.Iter(func(n int64) bool {
			out = append(out, value.MkInt(n, sp))
			return true
		})
		return out, nil
	case value.TagList:
		return v.List, nil
	default:
		return []value.Value{v}, nil
	}
}

// buildErrorMake evaluates `error make`'s record argument and raises it as
// a ShellError, the way `try`/`catch` builtins (internal/stdcmd) expect to
// recover it (spec.md §4.3 "error make").
func (e *Evaluator) buildErrorMake(stack *Stack, expr ast.Expression, input PipelineData) error {
	rec, err := e.EvalScalar(stack, *expr.Inner, input)
	if err != nil {
		return err
	}
	if rec.Tag != value.TagRecord {
		return diag.New(diag.KindExpectedShape, expr.Span, "error make requires a record argument")
	}
	msg := "error"
	if m, ok := rec.Record.Get("msg"); ok {
		msg = value.Display(m)
	}
	help := ""
	if h, ok := rec.Record.Get("help"); ok {
		help = value.Display(h)
	}
	diagErr := diag.New(diag.KindUserError, expr.Span, msg)
	if labelV, ok := rec.Record.Get("label"); ok && labelV.Tag == value.TagRecord {
		text := ""
		if t, ok := labelV.Record.Get("text"); ok {
			text = value.Display(t)
		}
		diagErr = diagErr.WithLabel(expr.Span, text)
	}
	if help != "" {
		diagErr = diagErr.WithHelp(help)
	}
	return diagErr
}

// evalRange evaluates a `from..to`/`from..<to`/`from..` range literal
// (spec.md §3 "Range").
func (e *Evaluator) evalRange(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	from, err := e.intOperand(stack, expr.From, input, 0)
	if err != nil {
		return PipelineData{}, err
	}
	step := int64(1)
	if expr.Next != nil {
		next, err := e.EvalScalar(stack, *expr.Next, input)
		if err != nil {
			return PipelineData{}, err
		}
		if next.Tag != value.TagInt {
			return PipelineData{}, diag.New(diag.KindOperatorMismatch, expr.Span, "range step must be an int")
		}
		step = next.Int - from
	}
	r := value.RangeVal{From: from, Step: step, Inclusivity: expr.RangeOp}
	if expr.To != nil {
		to, err := e.EvalScalar(stack, *expr.To, input)
		if err != nil {
			return PipelineData{}, err
		}
		if to.Tag != value.TagInt {
			return PipelineData{}, diag.New(diag.KindOperatorMismatch, expr.Span, "range bound must be an int")
		}
		r.To = to.Int
		r.HasTo = true
	}
	return FromValue(value.MkRange(r, expr.Span)), nil
}

func (e *Evaluator) intOperand(stack *Stack, expr *ast.Expression, input PipelineData, def int64) (int64, error) {
	if expr == nil {
		return def, nil
	}
	v, err := e.EvalScalar(stack, *expr, input)
	if err != nil {
		return 0, err
	}
	if v.Tag != value.TagInt {
		return 0, diag.New(diag.KindOperatorMismatch, v.Span, "range bound must be an int")
	}
	return v.Int, nil
}

// evalMatchBlock evaluates an EMatchBlock: either a real `match` (non-nil
// Scrutinee) or an `if`/`else if`/`else` chain lowered with a nil
// Scrutinee and one PatWildcard arm per branch, guard carrying the
// condition (internal/parser/keyword.go parseIf).
func (e *Evaluator) evalMatchBlock(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	var scrutinee value.Value
	if expr.Scrutinee != nil {
		v, err := e.EvalScalar(stack, *expr.Scrutinee, input)
		if err != nil {
			return PipelineData{}, err
		}
		scrutinee = v
	}
	for _, arm := range expr.Arms {
		armStack := stack.Child()
		if !matchPattern(e, armStack, arm.Pattern, scrutinee, expr.Scrutinee != nil) {
			continue
		}
		if arm.Guard.Kind != ast.ENothing {
			g, err := e.EvalScalar(armStack, arm.Guard, input)
			if err != nil {
				return PipelineData{}, err
			}
			if g.Tag != value.TagBool || !g.Bool {
				continue
			}
		}
		return e.Eval(armStack, arm.Body, input)
	}
	return Empty(), nil
}

// matchPattern reports whether pat matches v, binding any PatVarBind names
// into armStack as a side effect (spec.md §4.3 "match" patterns). hasScrutinee
// is false for the if-lowering case, where PatWildcard is the only pattern
// ever produced and v carries no meaningful value.
func matchPattern(e *Evaluator, armStack *Stack, pat ast.Pattern, v value.Value, hasScrutinee bool) bool {
	switch pat.Kind {
	case ast.PatWildcard:
		return true
	case ast.PatVarBind:
		if hasScrutinee {
			armStack.Set(pat.VarId, v)
		}
		return true
	case ast.PatLiteral:
		lit, err := e.EvalScalar(armStack, pat.Literal, Empty())
		if err != nil {
			return false
		}
		eq, err := compare(ast.OpEq, v, lit, pat.Span)
		return err == nil && eq.Bool
	case ast.PatList:
		if v.Tag != value.TagList {
			return false
		}
		if pat.HasRest {
			if len(v.List) < len(pat.Items) {
				return false
			}
		} else if len(v.List) != len(pat.Items) {
			return false
		}
		for i, item := range pat.Items {
			if !matchPattern(e, armStack, item, v.List[i], true) {
				return false
			}
		}
		if pat.HasRest && pat.RestName != "" {
			rest := append([]value.Value{}, v.List[len(pat.Items):]...)
			armStack.Set(pat.RestVarId, value.MkList(rest, pat.Span))
		}
		return true
	case ast.PatRecord:
		if v.Tag != value.TagRecord {
			return false
		}
		for _, f := range pat.Fields {
			fv, ok := v.Record.Get(f.Name)
			if !ok {
				return false
			}
			if !matchPattern(e, armStack, f.Pattern, fv, true) {
				return false
			}
		}
		return true
	case ast.PatOr:
		for _, alt := range pat.Or {
			if matchPattern(e, armStack, alt, v, hasScrutinee) {
				return true
			}
		}
		return false
	}
	return false
}

// buildClosure materialises an EClosure expression into a runtime Closure
// value, copying every captured variable's current binding by value at
// construction time (spec.md §4.3 "Closures capture free variables by
// value").
func (e *Evaluator) buildClosure(stack *Stack, expr ast.Expression) value.Value {
	blk, ok := e.State.Block(expr.Block)
	captured := map[uint32]value.Value{}
	if ok {
		for _, id := range blk.Captures {
			if v, ok := stack.Get(id); ok {
				captured[uint32(id)] = v
			}
		}
	}
	return value.MkClosure(value.Closure{BlockID: uint32(expr.Block), CapturedVars: captured}, expr.Span)
}

// CallClosure invokes a Closure value with args bound to its declared
// positional parameters, in a fresh frame seeded only with its captured
// bindings (not the caller's live Stack), matching the lexical-scoping
// contract of spec.md §4.3 "Closures". Exported for internal/stdcmd's
// `each`/`where`/`skip-while`/`try` builtins.
func (e *Evaluator) CallClosure(cl value.Closure, args []value.Value, input PipelineData) (PipelineData, error) {
	blk, ok := e.State.Block(ast.BlockId(cl.BlockID))
	if !ok {
		return PipelineData{}, diag.New(diag.KindExpectedShape, span.Unknown, "closure references an unknown block")
	}
	frame := NewStack()
	for id, v := range cl.CapturedVars {
		frame.Set(ast.VarId(id), v)
	}
	if blk.Signature != nil {
		for i, p := range blk.Signature.Positional {
			if i < len(args) {
				frame.Set(p.VarId, args[i])
			}
		}
	}
	return e.EvalBlock(frame, blk, input)
}
