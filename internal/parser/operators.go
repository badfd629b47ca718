package parser

import (
	"fmt"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/value"
)

// buildBinary applies the static operator-typing table of spec.md §4.2 to
// construct a typed BinaryOp expression, recording a static TypeError
// unless one side is Any (in which case the check is deferred to runtime,
// per spec.md §4.2 "mismatch is a static error except when one side is
// Any").
func (p *Parser) buildBinary(lhs ast.Expression, op ast.BinOp, rhs ast.Expression) ast.Expression {
	sp := lhs.Span.Join(rhs.Span)
	resultTy, ok := resultType(op, lhs.Ty, rhs.Ty)
	if !ok {
		p.errs.Add(diag.New(diag.KindOperatorMismatch, sp,
			fmt.Sprintf("operator mismatch: %s %s", lhs.Ty, rhs.Ty)))
		resultTy = value.Any
	}
	lc, rc := lhs, rhs
	return ast.Expression{Kind: ast.EBinaryOp, Lhs: &lc, Op: op, Rhs: &rc, Span: sp, Ty: resultTy}
}

// resultType implements the operator table. Numeric equality across Int/
// Float (`1 == 1.0` is true) resolves the second Open Question of
// spec.md §9; recorded in DESIGN.md.
func resultType(op ast.BinOp, l, r value.Type) (value.Type, bool) {
	if l.Kind == value.KindAny || r.Kind == value.KindAny {
		return value.Any, true
	}
	numeric := func(t value.Type) bool {
		return t.Kind == value.KindInt || t.Kind == value.KindFloat || t.Kind == value.KindNumber
	}
	switch op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpFloorDiv, ast.OpMod, ast.OpPow:
		switch {
		case op == ast.OpAdd && l.Kind == value.KindString && r.Kind == value.KindString:
			return value.String, true
		case op == ast.OpAdd && l.Kind == value.KindDate && r.Kind == value.KindDuration:
			return value.Date, true
		case op == ast.OpAdd && l.Kind == value.KindDuration && r.Kind == value.KindDuration:
			return value.Duration, true
		case numeric(l) && numeric(r):
			if l.Kind == value.KindFloat || r.Kind == value.KindFloat {
				return value.Float, true
			}
			return value.Int, true
		case l.Kind == value.KindFilesize && r.Kind == value.KindFilesize:
			return value.Filesize, true
		case l.Kind == value.KindDuration && r.Kind == value.KindDuration:
			return value.Duration, true
		}
		return value.Nothing, false
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		if numeric(l) && numeric(r) {
			return value.Bool, true
		}
		if l.IsSubtype(r) || r.IsSubtype(l) {
			return value.Bool, true
		}
		return value.Nothing, false
	case ast.OpAnd, ast.OpOr, ast.OpXor:
		if l.Kind == value.KindBool && r.Kind == value.KindBool {
			return value.Bool, true
		}
		return value.Nothing, false
	case ast.OpIn, ast.OpNotIn:
		return value.Bool, true // membership is polymorphic over RHS container kind, checked at runtime
	case ast.OpMatchRegex, ast.OpNotMatchRegex, ast.OpStartsWith, ast.OpEndsWith:
		if l.Kind == value.KindString && r.Kind == value.KindString {
			return value.Bool, true
		}
		return value.Nothing, false
	case ast.OpConcat:
		if l.Kind == value.KindString && r.Kind == value.KindString {
			return value.String, true
		}
		if l.Kind == value.KindList {
			return value.List(value.Join(elemOrAny(l), elemOrAny(r))), true
		}
		return value.Nothing, false
	case ast.OpBitAnd, ast.OpBitOr, ast.OpBitXor, ast.OpBitShl, ast.OpBitShr:
		if l.Kind == value.KindInt && r.Kind == value.KindInt {
			return value.Int, true
		}
		return value.Nothing, false
	}
	return value.Nothing, false
}

func elemOrAny(t value.Type) value.Type {
	if t.Kind == value.KindList && t.Elem != nil {
		return *t.Elem
	}
	return value.Any
}
