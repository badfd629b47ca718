package eval

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// Evaluator walks a typed ast.Block over an engine.State, implementing
// spec.md §4.3: a tree-walking interpreter carrying a dynamic Stack and
// pipeline data flow across the three PipelineData channels.
type Evaluator struct {
	State *engine.State
	Log   zerolog.Logger

	// Unrestricted gates external command execution (spec.md §4.6), off
	// by default the way yaegi's own Options.Unrestricted defaults to a
	// sandboxed interpreter unless a host opts in.
	Unrestricted bool

	// MaxRecursionDepth bounds nested user-def call depth (spec.md §9
	// "recursion"); 0 means unlimited.
	MaxRecursionDepth int
}

// New returns an Evaluator over state, logging structured/leveled output
// the way the corpus's production services do (spec.md §2 ambient
// "logging" component).
func New(state *engine.State) *Evaluator {
	return &Evaluator{State: state, Log: log.With().Str("component", "eval").Logger()}
}

// EvalBlock runs every pipeline of blk in order against stack, threading
// PipelineData from one pipeline's final output into the next's input
// (spec.md §6 Host API "eval_block").
func (e *Evaluator) EvalBlock(stack *Stack, blk *ast.Block, input PipelineData) (PipelineData, error) {
	out := input
	for i := range blk.Pipelines {
		var err error
		out, err = e.evalPipeline(stack, &blk.Pipelines[i], out)
		if err != nil {
			return PipelineData{}, err
		}
	}
	return out, nil
}

// EvalBlockID resolves id against e.State and evaluates it, the shape
// every call/closure/control-flow path below needs to run a body.
func (e *Evaluator) EvalBlockID(stack *Stack, id ast.BlockId, input PipelineData) (PipelineData, error) {
	blk, ok := e.State.Block(id)
	if !ok {
		return PipelineData{}, errors.Errorf("eval: unknown block id %d", id)
	}
	return e.EvalBlock(stack, blk, input)
}

func (e *Evaluator) evalPipeline(stack *Stack, pl *ast.Pipeline, input PipelineData) (PipelineData, error) {
	cur := input
	for i := range pl.Elements {
		el := &pl.Elements[i]
		if e.State.Cancel() {
			return PipelineData{}, diag.Interrupted(el.Span)
		}
		out, err := e.Eval(stack, el.Expr, cur)
		if err != nil {
			return PipelineData{}, err
		}
		out, err = e.applyRedirection(stack, el.Redirection, out, el.Span)
		if err != nil {
			return PipelineData{}, err
		}
		cur = out
	}
	return cur, nil
}

func (e *Evaluator) applyRedirection(stack *Stack, r *ast.Redirection, pd PipelineData, sp span.Span) (PipelineData, error) {
	if r == nil || r.Kind == ast.RedirectDefault {
		return pd, nil
	}
	switch r.Kind {
	case ast.RedirectToFile, ast.RedirectAppendFile:
		return e.redirectToFile(stack, r, pd, sp)
	default:
		// Stderr split/merge only has meaning for a ByteStream (external
		// command); built-ins have no independent stderr channel to route.
		return pd, nil
	}
}

// EvalScalar evaluates expr to a single materialised Value, the form every
// operand, argument and cell-path head needs (spec.md §4.3 "every
// sub-expression's value is forced before use").
func (e *Evaluator) EvalScalar(stack *Stack, expr ast.Expression, input PipelineData) (value.Value, error) {
	pd, err := e.Eval(stack, expr, input)
	if err != nil {
		return value.Value{}, err
	}
	return pd.Collect(expr.Span, e.State.Cancel)
}

// Eval evaluates one Expression against stack and input, returning
// PipelineData so call/keyword forms that naturally produce a stream
// (ranges, `each`, external commands) aren't forced to materialise early
// (spec.md §3 PipelineData, §4.3 Evaluator).
func (e *Evaluator) Eval(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	if e.State.Cancel() {
		return PipelineData{}, diag.Interrupted(expr.Span)
	}
	switch expr.Kind {
	case ast.EBool:
		return FromValue(value.MkBool(expr.Bool, expr.Span)), nil
	case ast.EInt:
		return FromValue(e.intLiteral(expr)), nil
	case ast.EFloat:
		return FromValue(value.MkFloat(expr.Float, expr.Span)), nil
	case ast.EString:
		return FromValue(value.MkString(expr.String, expr.Span)), nil
	case ast.EDateTimeLiteral:
		t, err := value.ParseDate(expr.String)
		if err != nil {
			return PipelineData{}, diag.New(diag.KindExpectedShape, expr.Span, "invalid date literal: "+err.Error())
		}
		return FromValue(value.MkDate(t, expr.Span)), nil
	case ast.ENothing:
		return FromValue(value.Nothing(expr.Span)), nil
	case ast.EVar:
		return e.evalVar(stack, expr)
	case ast.EFullCellPath:
		return e.evalCellPath(stack, expr, input)
	case ast.EUnaryNot:
		v, err := e.EvalScalar(stack, *expr.Rhs, input)
		if err != nil {
			return PipelineData{}, err
		}
		if v.Tag != value.TagBool {
			return PipelineData{}, diag.New(diag.KindOperatorMismatch, expr.Span, "'not' requires a bool operand, got "+v.Type().String())
		}
		return FromValue(value.MkBool(!v.Bool, expr.Span)), nil
	case ast.EBinaryOp:
		return e.evalBinaryOp(stack, expr, input)
	case ast.ERange:
		return e.evalRange(stack, expr, input)
	case ast.EList:
		return e.evalList(stack, expr, input)
	case ast.ERecord:
		return e.evalRecord(stack, expr, input)
	case ast.ETable:
		return e.evalTable(stack, expr, input)
	case ast.EClosure:
		return FromValue(e.buildClosure(stack, expr)), nil
	case ast.EBlock:
		return e.EvalBlockID(stack.Child(), expr.Block, input)
	case ast.ESubexpression:
		return e.EvalBlockID(stack.Child(), expr.Block, Empty())
	case ast.EStringInterpolation:
		return e.evalInterpolation(stack, expr, input)
	case ast.ESpread:
		// A freestanding spread (outside a list/record literal) just
		// yields its inner value; EList/ERecord handle the splice case
		// themselves by inspecting ast.ListItem.Spread/ast.RecordItem.Spread.
		return e.Eval(stack, *expr.Rhs, input)
	case ast.ECall:
		return e.evalCall(stack, expr, input)
	case ast.EExternalCall:
		return e.evalExternalCall(stack, expr, input)
	case ast.EKeyword:
		return e.evalKeyword(stack, expr, input)
	case ast.EMatchBlock:
		return e.evalMatchBlock(stack, expr, input)
	}
	return PipelineData{}, errors.Errorf("eval: unhandled expression kind %d", expr.Kind)
}

// intLiteral picks the right Value constructor for an EInt expression: the
// parser reuses EInt/Int for plain integers, durations (nanoseconds) and
// filesizes (bytes), disambiguated by Ty (parser/expr.go parseNumberLiteral).
func (e *Evaluator) intLiteral(expr ast.Expression) value.Value {
	switch expr.Ty.Kind {
	case value.KindDuration:
		return value.MkDuration(expr.Int, expr.Span)
	case value.KindFilesize:
		return value.MkFilesize(expr.Int, expr.Span)
	default:
		return value.MkInt(expr.Int, expr.Span)
	}
}

func (e *Evaluator) evalVar(stack *Stack, expr ast.Expression) (PipelineData, error) {
	v, ok := e.State.Var(expr.Var)
	if ok && v.ConstVal != nil {
		return FromValue(*v.ConstVal), nil
	}
	if val, ok := stack.Get(expr.Var); ok {
		return FromValue(val), nil
	}
	return PipelineData{}, diag.New(diag.KindVariableNotFound, expr.Span, "variable not bound in this scope")
}

func (e *Evaluator) evalList(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	var out []value.Value
	for _, item := range expr.Items {
		v, err := e.EvalScalar(stack, item.Expr, input)
		if err != nil {
			return PipelineData{}, err
		}
		if item.Spread {
			if v.Tag != value.TagList {
				return PipelineData{}, diag.New(diag.KindBadSpread, item.Expr.Span, "spread requires a list operand")
			}
			out = append(out, v.List...)
			continue
		}
		out = append(out, v)
	}
	return FromValue(value.MkList(out, expr.Span)), nil
}

func (e *Evaluator) evalRecord(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	rec, err := e.buildRecord(stack, expr.Fields, input, expr.Span)
	if err != nil {
		return PipelineData{}, err
	}
	return FromValue(value.MkRecord(rec, expr.Span)), nil
}

func (e *Evaluator) buildRecord(stack *Stack, items []ast.RecordItem, input PipelineData, sp span.Span) (value.Record, error) {
	rec, _ := value.NewRecord(nil, nil)
	for _, it := range items {
		if it.Spread {
			v, err := e.EvalScalar(stack, it.Value, input)
			if err != nil {
				return value.Record{}, err
			}
			if v.Tag != value.TagRecord {
				return value.Record{}, diag.New(diag.KindBadSpread, it.Value.Span, "spread requires a record operand")
			}
			merged, err := rec.WithSpread(v.Record)
			if err != nil {
				return value.Record{}, diag.New(diag.KindDuplicateColumn, sp, err.Error())
			}
			rec = merged
			continue
		}
		keyV, err := e.EvalScalar(stack, it.Key, input)
		if err != nil {
			return value.Record{}, err
		}
		valV, err := e.EvalScalar(stack, it.Value, input)
		if err != nil {
			return value.Record{}, err
		}
		one, _ := value.NewRecord([]string{value.Display(keyV)}, []value.Value{valV})
		merged, err := rec.WithSpread(one)
		if err != nil {
			return value.Record{}, diag.New(diag.KindDuplicateColumn, sp, err.Error())
		}
		rec = merged
	}
	return rec, nil
}

func (e *Evaluator) evalTable(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	cols := make([]string, 0, len(expr.Columns))
	for _, c := range expr.Columns {
		v, err := e.EvalScalar(stack, c, input)
		if err != nil {
			return PipelineData{}, err
		}
		cols = append(cols, value.Display(v))
	}
	rows := make([]value.Value, 0, len(expr.Rows))
	for _, row := range expr.Rows {
		vals := make([]value.Value, 0, len(row))
		for _, cellExpr := range row {
			v, err := e.EvalScalar(stack, cellExpr, input)
			if err != nil {
				return PipelineData{}, err
			}
			vals = append(vals, v)
		}
		for len(vals) < len(cols) {
			vals = append(vals, value.Nothing(expr.Span))
		}
		rec, err := value.NewRecord(cols, vals[:len(cols)])
		if err != nil {
			return PipelineData{}, diag.New(diag.KindDuplicateColumn, expr.Span, err.Error())
		}
		rows = append(rows, value.MkRecord(rec, expr.Span))
	}
	return FromValue(value.MkList(rows, expr.Span)), nil
}

func (e *Evaluator) evalInterpolation(stack *Stack, expr ast.Expression, input PipelineData) (PipelineData, error) {
	var buf []byte
	for _, part := range expr.Parts {
		if part.Kind == ast.EString {
			buf = append(buf, part.String...)
			continue
		}
		v, err := e.EvalScalar(stack, part, input)
		if err != nil {
			return PipelineData{}, err
		}
		buf = append(buf, value.Display(v)...)
	}
	return FromValue(value.MkString(string(buf), expr.Span)), nil
}
