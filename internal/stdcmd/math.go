package stdcmd

import (
	"sort"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// mathBuiltins is the aggregate math family named in spec.md §4.7: `math
// median` plus the sibling sum/min/max/avg commands the same
// crates/nu-command/src/math module groups it with, so a pipeline that
// needs one aggregate isn't left reaching for the others in the standard
// library.
func mathBuiltins() []builtin {
	sig := ast.Signature{IOPairs: []ast.IoPair{{In: value.List(value.Number), Out: value.Number}}}
	return []builtin{
		{"math sum", decl("math sum", "Sum the input numbers.", sig, cmdMathSum)},
		{"math min", decl("math min", "Return the smallest input number.", sig, cmdMathMin)},
		{"math max", decl("math max", "Return the largest input number.", sig, cmdMathMax)},
		{"math avg", decl("math avg", "Return the arithmetic mean of the input numbers.", sig, cmdMathAvg)},
		{"math median", decl("math median", "Return the median of the input numbers.", sig, cmdMathMedian)},
	}
}

// numericRows collects input's rows, requiring every one to be Int or
// Float (spec.md §4.7 aggregate math commands operate over Number input).
func numericRows(ctx ast.BuiltinContext) ([]value.Value, span.Span, error) {
	xc := ctx.(eval.ExtendedContext)
	input := xc.Input().(eval.PipelineData)
	rows, err := input.AsListOfValues(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, span.Span{}, err
	}
	for _, v := range rows {
		if v.Tag != value.TagInt && v.Tag != value.TagFloat {
			return nil, span.Span{}, diag.New(diag.KindArgumentTypeMismatch, xc.Span(), "math: input must be a list of numbers")
		}
	}
	return rows, xc.Span(), nil
}

func asFloat(v value.Value) float64 {
	if v.Tag == value.TagFloat {
		return v.Float
	}
	return float64(v.Int)
}

func cmdMathSum(ctx ast.BuiltinContext) (interface{}, error) {
	rows, sp, err := numericRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return value.MkInt(0, sp), nil
	}
	allInt := true
	var fsum float64
	var isum int64
	for _, v := range rows {
		if v.Tag == value.TagFloat {
			allInt = false
		}
		fsum += asFloat(v)
		if v.Tag == value.TagInt {
			isum += v.Int
		}
	}
	if allInt {
		return value.MkInt(isum, sp), nil
	}
	return value.MkFloat(fsum, sp), nil
}

func cmdMathMin(ctx ast.BuiltinContext) (interface{}, error) {
	return mathExtreme(ctx, func(a, b float64) bool { return a < b })
}

func cmdMathMax(ctx ast.BuiltinContext) (interface{}, error) {
	return mathExtreme(ctx, func(a, b float64) bool { return a > b })
}

// mathExtreme returns the single row whose value wins under better,
// unmodified (spec.md §4.7: min/max preserve the winning element's own
// type rather than coercing to float).
func mathExtreme(ctx ast.BuiltinContext, better func(a, b float64) bool) (interface{}, error) {
	rows, sp, err := numericRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return value.Nothing(sp), nil
	}
	best := rows[0]
	for _, v := range rows[1:] {
		if better(asFloat(v), asFloat(best)) {
			best = v
		}
	}
	return best, nil
}

func cmdMathAvg(ctx ast.BuiltinContext) (interface{}, error) {
	rows, sp, err := numericRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return value.Nothing(sp), nil
	}
	var sum float64
	for _, v := range rows {
		sum += asFloat(v)
	}
	return value.MkFloat(sum/float64(len(rows)), sp), nil
}

// cmdMathMedian follows original_source's math/median.rs: sort the input,
// an odd-length list returns its untouched middle element (so an Int input
// can yield an Int median), an even-length list averages the two middle
// elements, which may promote an all-Int input to a Float result (e.g. the
// median of [3,8,9,12,12,15] is 10.5).
func cmdMathMedian(ctx ast.BuiltinContext) (interface{}, error) {
	rows, sp, err := numericRows(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return value.Nothing(sp), nil
	}
	sorted := append([]value.Value(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return asFloat(sorted[i]) < asFloat(sorted[j]) })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2], nil
	}
	lo, hi := sorted[n/2-1], sorted[n/2]
	return value.MkFloat((asFloat(lo)+asFloat(hi))/2, sp), nil
}
