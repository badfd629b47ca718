package stdcmd

import (
	"strconv"
	"strings"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// listBuiltins are the row/list-shaped commands of spec.md §4.7: length,
// lines, get, count, reverse, skip-while. Each receives its input through
// PipelineData.AsListOfValues so a bare scalar, a List or a lazily
// generated ListStream are all handled uniformly (internal/eval/pipeline.go
// AsListOfValues), grounded on original_source/src/commands/count.rs and
// reverse.rs which likewise collect into a Vec before operating.
func listBuiltins() []builtin {
	return []builtin{
		{"length", decl("length", "Return the number of rows in the input, or of characters in a string.",
			ast.Signature{IOPairs: []ast.IoPair{{In: value.Any, Out: value.Int}}}, cmdLength)},
		{"lines", decl("lines", "Split a string into a list of its lines.",
			ast.Signature{IOPairs: []ast.IoPair{{In: value.String, Out: value.List(value.String)}}}, cmdLines)},
		{"get", decl("get", "Extract a cell path's value from the input, broadcasting across a list.",
			ast.Signature{Positional: []ast.Param{
				{Name: "cell_path", Shape: ast.ShapeCellPath, Type: value.CellPath, Required: true},
			}}, cmdGet)},
		{"count", decl("count", "Return the number of rows in the input.",
			ast.Signature{IOPairs: []ast.IoPair{{In: value.Any, Out: value.Int}}}, cmdCount)},
		{"reverse", decl("reverse", "Reverse the order of the input rows.",
			ast.Signature{IOPairs: []ast.IoPair{{In: value.Any, Out: value.Any}}}, cmdReverse)},
		{"skip-while", decl("skip-while", "Skip elements from the front of the input while condition is true.",
			ast.Signature{Positional: []ast.Param{
				{Name: "condition", Shape: ast.ShapeClosure, Type: value.Closure, Required: true},
			}}, cmdSkipWhile)},
	}
}

// cmdLength returns a bare string's rune count when the input collects to
// a single TagString, and the row count otherwise.
func cmdLength(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	input := xc.Input().(eval.PipelineData)

	if input.Kind == eval.PDValue && input.Value.Tag == value.TagString {
		return value.MkInt(int64(len([]rune(input.Value.Str))), xc.Span()), nil
	}
	rows, err := input.AsListOfValues(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}
	return value.MkInt(int64(len(rows)), xc.Span()), nil
}

func cmdLines(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	input := xc.Input().(eval.PipelineData)
	v, err := input.Collect(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}
	if v.Tag != value.TagString {
		return nil, diag.New(diag.KindArgumentTypeMismatch, xc.Span(), "lines: input must be a string")
	}
	text := strings.TrimSuffix(v.Str, "\n")
	if text == "" {
		return value.MkList(nil, xc.Span()), nil
	}
	parts := strings.Split(text, "\n")
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.MkString(p, xc.Span())
	}
	return value.MkList(out, xc.Span()), nil
}

// cmdGet accepts either a genuine TagCellPath argument (built by the
// parser from a `$in.foo.0`-shaped literal) or a plain dotted TagString,
// splitting the latter into PathMembers itself so `get foo.0` works without
// requiring every call site to spell a literal cell path.
func cmdGet(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	raw, _ := ctx.Positional(0)
	arg := raw.(value.Value)

	var members []value.PathMember
	switch arg.Tag {
	case value.TagCellPath:
		members = arg.CellPath
	case value.TagString:
		members = splitDottedPath(arg.Str, arg.Span)
	default:
		return nil, diag.New(diag.KindArgumentTypeMismatch, xc.Span(), "get: expected a cell path")
	}

	input := xc.Input().(eval.PipelineData)
	root, err := input.Collect(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}
	return eval.FollowCellPath(root, members, xc.Span())
}

// splitDottedPath turns "foo.0.bar" into the same PathMember chain a
// parsed `$in.foo.0.bar` cell path literal would produce: numeric segments
// index by position, everything else indexes by column name.
func splitDottedPath(s string, sp span.Span) []value.PathMember {
	segs := strings.Split(s, ".")
	out := make([]value.PathMember, 0, len(segs))
	for _, seg := range segs {
		if n, err := strconv.ParseInt(seg, 10, 64); err == nil {
			out = append(out, value.PathMember{Kind: value.PathInt, Int: n, Span: sp})
			continue
		}
		out = append(out, value.PathMember{Kind: value.PathString, Str: seg, Span: sp})
	}
	return out
}

func cmdCount(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	input := xc.Input().(eval.PipelineData)
	rows, err := input.AsListOfValues(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}
	return value.MkInt(int64(len(rows)), xc.Span()), nil
}

func cmdReverse(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	input := xc.Input().(eval.PipelineData)
	rows, err := input.AsListOfValues(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, len(rows))
	for i, v := range rows {
		out[len(rows)-1-i] = v
	}
	return value.MkList(out, xc.Span()), nil
}

// cmdSkipWhile drops elements from the front of the input while condition
// evaluates truthy against each, then returns everything from the first
// falsy element on (original_source/src/commands/skip_while.rs).
func cmdSkipWhile(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	raw, _ := ctx.Positional(0)
	closure := raw.(value.Value).Closure

	input := xc.Input().(eval.PipelineData)
	rows, err := input.AsListOfValues(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}

	i := 0
	for ; i < len(rows); i++ {
		pd, err := xc.Eval().CallClosure(closure, []value.Value{rows[i]}, eval.Empty())
		if err != nil {
			return nil, err
		}
		v, err := pd.Collect(xc.Span(), xc.Eval().State.Cancel)
		if err != nil {
			return nil, err
		}
		if !v.IsTruthy() {
			break
		}
	}
	return value.MkList(rows[i:], xc.Span()), nil
}
