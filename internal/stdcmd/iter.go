package stdcmd

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/value"
)

// iterBuiltins are the closure-invoking row commands of spec.md §4.7: each,
// where, par-each. All three materialise the input row set up front (lazy
// ListStream re-chaining is left to a later pass; spec.md places no
// laziness requirement on these three specifically) and build the result as
// a fresh List, matching internal/eval's ParEach helper which already does
// the same for the concurrent case.
func iterBuiltins() []builtin {
	return []builtin{
		{"each", decl("each", "Run a closure on each row of the input, collecting its outputs.",
			ast.Signature{Positional: []ast.Param{
				{Name: "closure", Shape: ast.ShapeClosure, Type: value.Closure, Required: true},
			}}, cmdEach)},
		{"where", decl("where", "Keep only the rows for which closure evaluates truthy.",
			ast.Signature{Positional: []ast.Param{
				{Name: "closure", Shape: ast.ShapeClosure, Type: value.Closure, Required: true},
			}}, cmdWhere)},
		{"par-each", decl("par-each", "Run a closure on each row concurrently, collecting outputs in input order.",
			ast.Signature{
				Positional: []ast.Param{
					{Name: "closure", Shape: ast.ShapeClosure, Type: value.Closure, Required: true},
				},
				Named: []ast.Param{
					{Name: "threads", Shape: ast.ShapeInt, Type: value.Int, Short: 't', IsNamed: true},
				},
			}, cmdParEach)},
	}
}

func closureArg(ctx ast.BuiltinContext) value.Closure {
	raw, _ := ctx.Positional(0)
	return raw.(value.Value).Closure
}

func cmdEach(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	cl := closureArg(ctx)
	input := xc.Input().(eval.PipelineData)
	rows, err := input.AsListOfValues(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, 0, len(rows))
	for _, row := range rows {
		if xc.Eval().State.Cancel() {
			return nil, diag.Interrupted(xc.Span())
		}
		pd, err := xc.Eval().CallClosure(cl, []value.Value{row}, eval.Empty())
		if err != nil {
			return nil, err
		}
		v, err := pd.Collect(xc.Span(), xc.Eval().State.Cancel)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return value.MkList(out, xc.Span()), nil
}

func cmdWhere(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	cl := closureArg(ctx)
	input := xc.Input().(eval.PipelineData)
	rows, err := input.AsListOfValues(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, 0, len(rows))
	for _, row := range rows {
		if xc.Eval().State.Cancel() {
			return nil, diag.Interrupted(xc.Span())
		}
		pd, err := xc.Eval().CallClosure(cl, []value.Value{row}, eval.Empty())
		if err != nil {
			return nil, err
		}
		v, err := pd.Collect(xc.Span(), xc.Eval().State.Cancel)
		if err != nil {
			return nil, err
		}
		if v.IsTruthy() {
			out = append(out, row)
		}
	}
	return value.MkList(out, xc.Span()), nil
}

// cmdParEach delegates to eval.ParEach, which already implements the
// errgroup-bounded fan-out described in spec.md §5 "par-each fan-out"; this
// builtin only unpacks the --threads flag and materialises the input.
func cmdParEach(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	cl := closureArg(ctx)
	input := xc.Input().(eval.PipelineData)
	rows, err := input.AsListOfValues(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}
	concurrency := 0
	if t, ok := ctx.Arg("threads"); ok {
		if tv := t.(value.Value); tv.Tag == value.TagInt {
			concurrency = int(tv.Int)
		}
	}
	out, err := xc.Eval().ParEach(cl, rows, concurrency, xc.Span())
	if err != nil {
		return nil, err
	}
	return value.MkList(out, xc.Span()), nil
}
