package stdcmd

import (
	"time"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/value"
)

// dateBuiltins is the date family named in spec.md §4.7: `date to-timezone`,
// grounded on original_source/crates/nu-command/src/date/to_timezone.rs,
// which declares input_output_types [(Date,Date),(String,Date)] and one
// required String positional naming the target zone.
func dateBuiltins() []builtin {
	return []builtin{
		{"date to-timezone", decl("date to-timezone", "Convert a date to a different time zone.",
			ast.Signature{
				Positional: []ast.Param{
					{Name: "time zone", Shape: ast.ShapeString, Type: value.String, Required: true},
				},
				IOPairs: []ast.IoPair{
					{In: value.Date, Out: value.Date},
					{In: value.String, Out: value.Date},
				},
			}, cmdDateToTimezone)},
	}
}

func cmdDateToTimezone(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	raw, _ := ctx.Positional(0)
	zoneName := raw.(value.Value).Str

	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, diag.New(diag.KindArgumentTypeMismatch, xc.Span(), "date to-timezone: unknown time zone "+zoneName)
	}

	input := xc.Input().(eval.PipelineData)
	v, err := input.Collect(xc.Span(), xc.Eval().State.Cancel)
	if err != nil {
		return nil, err
	}

	var t time.Time
	switch v.Tag {
	case value.TagDate:
		t = v.Date
	case value.TagString:
		t, err = value.ParseDate(v.Str)
		if err != nil {
			return nil, diag.New(diag.KindArgumentTypeMismatch, xc.Span(), "date to-timezone: input is not a valid date string")
		}
	default:
		return nil, diag.New(diag.KindArgumentTypeMismatch, xc.Span(), "date to-timezone: input must be a date or string")
	}

	return value.MkDate(value.ConvertTimezone(t, loc), xc.Span()), nil
}
