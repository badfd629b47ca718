package stdcmd

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/value"
)

// controlBuiltins implements `try` as an ordinary BodyBuiltin declaration
// rather than a parser keyword: tryParseKeyword's dispatch table has no
// entry for it, so `try { ... } --catch { |err| ... }` is one ordinary
// call taking the try-block closure and an optional handler closure passed
// as the `catch` named flag. A bare `catch` word after the body is not
// recognised; it binds as an unexpected extra positional argument.
func controlBuiltins() []builtin {
	return []builtin{
		{"try", decl("try", "Run a closure, catching any error it raises.",
			ast.Signature{
				Positional: []ast.Param{
					{Name: "body", Shape: ast.ShapeClosure, Type: value.Closure, Required: true},
				},
				Named: []ast.Param{
					{Name: "catch", Shape: ast.ShapeClosure, Type: value.Closure, IsNamed: true},
				},
			}, cmdTry)},
	}
}

// cmdTry runs the body closure. If it raises a *diag.Error, the optional
// catch closure is invoked with the error wrapped as a TagError Value bound
// to catch's first parameter; with no catch closure the error is swallowed
// and Nothing is returned, matching a bare `try { ... }` with no handler.
func cmdTry(ctx ast.BuiltinContext) (interface{}, error) {
	xc := ctx.(eval.ExtendedContext)
	bodyRaw, _ := ctx.Positional(0)
	body := bodyRaw.(value.Value).Closure

	pd, err := xc.Eval().CallClosure(body, nil, eval.Empty())
	if err == nil {
		return pd, nil
	}

	derr, ok := err.(*diag.Error)
	if !ok {
		return nil, err
	}

	catchRaw, hasCatch := ctx.Arg("catch")
	if !hasCatch {
		return value.Nothing(xc.Span()), nil
	}
	catchVal := catchRaw.(value.Value)
	if catchVal.Tag != value.TagClosure {
		return value.Nothing(xc.Span()), nil
	}
	errVal := value.MkError(derr, xc.Span())
	return xc.Eval().CallClosure(catchVal.Closure, []value.Value{errVal}, eval.Empty())
}
