package stdcmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// fakeCtx is a minimal ast.BuiltinContext/eval.ExtendedContext stand-in so
// each builtin can be unit tested directly, without routing a call through
// the parser and evalCall's full dispatch.
type fakeCtx struct {
	ev         *eval.Evaluator
	stack      *eval.Stack
	input      eval.PipelineData
	positional []value.Value
	named      map[string]value.Value
	rest       []value.Value
}

func newFakeCtx(ev *eval.Evaluator) *fakeCtx {
	return &fakeCtx{ev: ev, stack: eval.NewStack(), named: map[string]value.Value{}}
}

func (c *fakeCtx) Arg(name string) (interface{}, bool) {
	v, ok := c.named[name]
	if !ok {
		return nil, false
	}
	return v, true
}

func (c *fakeCtx) Positional(i int) (interface{}, bool) {
	if i < 0 || i >= len(c.positional) {
		return nil, false
	}
	return c.positional[i], true
}

func (c *fakeCtx) Input() interface{}       { return c.input }
func (c *fakeCtx) Eval() *eval.Evaluator    { return c.ev }
func (c *fakeCtx) Stack() *eval.Stack       { return c.stack }
func (c *fakeCtx) Rest() []interface{} {
	out := make([]interface{}, len(c.rest))
	for i, v := range c.rest {
		out[i] = v
	}
	return out
}
func (c *fakeCtx) Span() span.Span { return span.Unknown }

var _ ast.BuiltinContext = (*fakeCtx)(nil)
var _ eval.ExtendedContext = (*fakeCtx)(nil)

func newEval() *eval.Evaluator { return eval.New(engine.New()) }

func intList(ns ...int64) eval.PipelineData {
	vs := make([]value.Value, len(ns))
	for i, n := range ns {
		vs[i] = value.MkInt(n, span.Unknown)
	}
	return eval.FromValue(value.MkList(vs, span.Unknown))
}

func TestLengthOnString(t *testing.T) {
	c := newFakeCtx(newEval())
	c.input = eval.FromValue(value.MkString("hello", span.Unknown))
	res, err := cmdLength(c)
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.(value.Value).Int)
}

func TestLengthOnList(t *testing.T) {
	c := newFakeCtx(newEval())
	c.input = intList(1, 2, 3)
	res, err := cmdLength(c)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.(value.Value).Int)
}

func TestCountAndReverse(t *testing.T) {
	c := newFakeCtx(newEval())
	c.input = intList(1, 2, 3)
	res, err := cmdCount(c)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.(value.Value).Int)

	res, err = cmdReverse(c)
	require.NoError(t, err)
	rev := res.(value.Value).List
	require.Len(t, rev, 3)
	assert.Equal(t, int64(3), rev[0].Int)
	assert.Equal(t, int64(1), rev[2].Int)
}

func TestGetWithDottedString(t *testing.T) {
	c := newFakeCtx(newEval())
	rec, err := value.NewRecord([]string{"name", "age"}, []value.Value{
		value.MkString("ferris", span.Unknown),
		value.MkInt(3, span.Unknown),
	})
	require.NoError(t, err)
	c.input = eval.FromValue(value.MkRecord(rec, span.Unknown))
	c.positional = []value.Value{value.MkString("name", span.Unknown)}

	res, err := cmdGet(c)
	require.NoError(t, err)
	assert.Equal(t, "ferris", res.(value.Value).Str)
}

func TestGetMissingColumnErrors(t *testing.T) {
	c := newFakeCtx(newEval())
	rec, err := value.NewRecord([]string{"name"}, []value.Value{value.MkString("ferris", span.Unknown)})
	require.NoError(t, err)
	c.input = eval.FromValue(value.MkRecord(rec, span.Unknown))
	c.positional = []value.Value{value.MkString("missing", span.Unknown)}

	_, err = cmdGet(c)
	require.Error(t, err)
	var derr *diag.Error
	require.ErrorAs(t, err, &derr)
}

func TestMathMedianOddLength(t *testing.T) {
	c := newFakeCtx(newEval())
	c.input = intList(9, 3, 12)
	res, err := cmdMathMedian(c)
	require.NoError(t, err)
	assert.Equal(t, value.TagInt, res.(value.Value).Tag)
	assert.Equal(t, int64(9), res.(value.Value).Int)
}

func TestMathMedianEvenLengthPromotesToFloat(t *testing.T) {
	c := newFakeCtx(newEval())
	c.input = intList(3, 8, 9, 12, 12, 15)
	res, err := cmdMathMedian(c)
	require.NoError(t, err)
	assert.Equal(t, value.TagFloat, res.(value.Value).Tag)
	assert.InDelta(t, 10.5, res.(value.Value).Float, 1e-9)
}

func TestMathSumMinMaxAvg(t *testing.T) {
	c := newFakeCtx(newEval())
	c.input = intList(3, 1, 4, 1, 5)

	sum, err := cmdMathSum(c)
	require.NoError(t, err)
	assert.Equal(t, int64(14), sum.(value.Value).Int)

	min, err := cmdMathMin(c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), min.(value.Value).Int)

	max, err := cmdMathMax(c)
	require.NoError(t, err)
	assert.Equal(t, int64(5), max.(value.Value).Int)

	avg, err := cmdMathAvg(c)
	require.NoError(t, err)
	assert.InDelta(t, 2.8, avg.(value.Value).Float, 1e-9)
}

func TestDateToTimezone(t *testing.T) {
	c := newFakeCtx(newEval())
	d, err := value.ParseDate("2024-03-05T10:30:00Z")
	require.NoError(t, err)
	c.input = eval.FromValue(value.MkDate(d, span.Unknown))
	c.positional = []value.Value{value.MkString("America/New_York", span.Unknown)}

	res, err := cmdDateToTimezone(c)
	require.NoError(t, err)
	out := res.(value.Value)
	require.Equal(t, value.TagDate, out.Tag)
	assert.True(t, d.Equal(out.Date))
	assert.Equal(t, "America/New_York", out.Date.Location().String())
}

// buildClosure registers a block computing `$x <op> operand` against a
// fresh engine.State and returns an Evaluator over that State plus the
// resulting runtime Closure, so each/where/skip-while/par-each tests can
// invoke a real closure without going through the parser.
func buildClosure(t *testing.T, op ast.BinOp, operand int64) (*eval.Evaluator, value.Closure) {
	t.Helper()
	state := engine.New()
	ws := engine.NewWorkingSet(state)
	varID := ws.AddVariable(ast.Variable{Name: "x", Type: value.Int})
	body := ast.Expression{
		Kind: ast.EBinaryOp,
		Lhs:  &ast.Expression{Kind: ast.EVar, Var: varID, Span: span.Unknown},
		Op:   op,
		Rhs:  &ast.Expression{Kind: ast.EInt, Int: operand, Span: span.Unknown},
		Span: span.Unknown,
	}
	block := &ast.Block{
		Signature: &ast.Signature{Positional: []ast.Param{{Name: "x", VarId: varID}}},
		Pipelines: []ast.Pipeline{{Elements: []ast.PipelineElement{{Expr: body, Span: span.Unknown}}}},
	}
	blockID := ws.AddBlock(block)
	state.MergeDelta(ws.RenderDelta())
	return eval.New(state), value.Closure{BlockID: uint32(blockID)}
}

func TestEachDoublesEachRow(t *testing.T) {
	ev, cl := buildClosure(t, ast.OpMul, 2)
	c := newFakeCtx(ev)
	c.input = intList(1, 2, 3)
	c.positional = []value.Value{value.MkClosure(cl, span.Unknown)}

	res, err := cmdEach(c)
	require.NoError(t, err)
	out := res.(value.Value).List
	require.Len(t, out, 3)
	assert.Equal(t, int64(2), out[0].Int)
	assert.Equal(t, int64(6), out[2].Int)
}

func TestWhereKeepsMatchingRows(t *testing.T) {
	ev, cl := buildClosure(t, ast.OpGt, 2)
	c := newFakeCtx(ev)
	c.input = intList(1, 2, 3, 4)
	c.positional = []value.Value{value.MkClosure(cl, span.Unknown)}

	res, err := cmdWhere(c)
	require.NoError(t, err)
	out := res.(value.Value).List
	require.Len(t, out, 2)
	assert.Equal(t, int64(3), out[0].Int)
	assert.Equal(t, int64(4), out[1].Int)
}

func TestSkipWhileDropsLeadingMatches(t *testing.T) {
	ev, cl := buildClosure(t, ast.OpLt, 3)
	c := newFakeCtx(ev)
	c.input = intList(1, 2, 5, 1)
	c.positional = []value.Value{value.MkClosure(cl, span.Unknown)}

	res, err := cmdSkipWhile(c)
	require.NoError(t, err)
	out := res.(value.Value).List
	require.Len(t, out, 2)
	assert.Equal(t, int64(5), out[0].Int)
	assert.Equal(t, int64(1), out[1].Int)
}

func TestParEachMatchesEachOrder(t *testing.T) {
	ev, cl := buildClosure(t, ast.OpMul, 10)
	c := newFakeCtx(ev)
	c.input = intList(1, 2, 3, 4, 5)
	c.positional = []value.Value{value.MkClosure(cl, span.Unknown)}
	c.named["threads"] = value.MkInt(2, span.Unknown)

	res, err := cmdParEach(c)
	require.NoError(t, err)
	out := res.(value.Value).List
	require.Len(t, out, 5)
	for i, v := range out {
		assert.Equal(t, int64((i+1)*10), v.Int)
	}
}

func TestTryCatchesRaisedError(t *testing.T) {
	state := engine.New()
	ws := engine.NewWorkingSet(state)
	bodyBlock := &ast.Block{
		Pipelines: []ast.Pipeline{{Elements: []ast.PipelineElement{{
			Expr: ast.Expression{
				Kind: ast.EBinaryOp,
				Lhs:  &ast.Expression{Kind: ast.EInt, Int: 1, Span: span.Unknown},
				Op:   ast.OpDiv,
				Rhs:  &ast.Expression{Kind: ast.EInt, Int: 0, Span: span.Unknown},
				Span: span.Unknown,
			},
			Span: span.Unknown,
		}}}},
	}
	bodyID := ws.AddBlock(bodyBlock)

	errVarID := ws.AddVariable(ast.Variable{Name: "err", Type: value.ErrorTy})
	catchBlock := &ast.Block{
		Signature: &ast.Signature{Positional: []ast.Param{{Name: "err", VarId: errVarID}}},
		Pipelines: []ast.Pipeline{{Elements: []ast.PipelineElement{{
			Expr: ast.Expression{Kind: ast.EString, String: "caught", Span: span.Unknown},
			Span: span.Unknown,
		}}}},
	}
	catchID := ws.AddBlock(catchBlock)
	state.MergeDelta(ws.RenderDelta())

	ev := eval.New(state)
	c := newFakeCtx(ev)
	c.input = eval.Empty()
	c.positional = []value.Value{value.MkClosure(value.Closure{BlockID: uint32(bodyID)}, span.Unknown)}
	c.named["catch"] = value.MkClosure(value.Closure{BlockID: uint32(catchID)}, span.Unknown)

	res, err := cmdTry(c)
	require.NoError(t, err)
	pd := res.(eval.PipelineData)
	v, err := pd.Collect(span.Unknown, ev.State.Cancel)
	require.NoError(t, err)
	assert.Equal(t, "caught", v.Str)
}

func TestRegisterAddsOverlayEntries(t *testing.T) {
	state := engine.New()
	ws := engine.NewWorkingSet(state)
	Register(ws)

	id, ok := ws.FindDecl("math median")
	require.True(t, ok)
	d, ok := ws.Decl(id)
	require.True(t, ok)
	assert.Equal(t, ast.BodyBuiltin, d.Body.Kind)

	_, ok = ws.FindDecl("each")
	assert.True(t, ok)
	_, ok = ws.FindDecl("try")
	assert.True(t, ok)
}
