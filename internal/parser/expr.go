package parser

import (
	"strconv"
	"strings"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/lexer"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// opAt reports whether tok names a binary operator, whether spelled as a
// symbolic TOperator ("==", "bit-and", …) or a keyword TBareWord
// ("and", "in", "mod", …).
func opAt(tok lexer.Token) (opInfo, bool) {
	if tok.Kind != lexer.TOperator && tok.Kind != lexer.TBareWord {
		return opInfo{}, false
	}
	info, ok := binOps[tok.Text]
	return info, ok
}

// parseExprPrec implements precedence-climbing over the operator table of
// precedence.go, with range (`..`/`..<`) handled specially since it is
// ternary-ish (from/step/to) rather than a simple left-associative binary
// operator (spec.md §4.3 "Range iteration", §9 precedence table).
func (p *Parser) parseExprPrec(c *cursor, minPrec int) ast.Expression {
	lhs := p.parseUnary(c)
	for {
		tok := c.peek()
		if isRangeOp(tok) && precRange >= minPrec {
			lhs = p.parseRangeTail(c, lhs, tok)
			continue
		}
		info, ok := opAt(tok)
		if !ok || info.prec < minPrec {
			break
		}
		c.next()
		nextMin := info.prec + 1
		if rightAssociative(info.prec) {
			nextMin = info.prec
		}
		rhs := p.parseExprPrec(c, nextMin)
		lhs = p.buildBinary(lhs, info.op, rhs)
	}
	return lhs
}

func isRangeOp(tok lexer.Token) bool {
	return tok.Kind == lexer.TOperator && (tok.Text == ".." || tok.Text == "..<")
}

// parseRangeTail parses the `..`/`..<` continuation(s) after an already
// parsed `from` expression, including the `a..c..b` step-inference form of
// spec.md §4.3.
func (p *Parser) parseRangeTail(c *cursor, from ast.Expression, firstOp lexer.Token) ast.Expression {
	c.next() // consume first ".."/"..<"
	incl := value.Inclusive
	if firstOp.Text == "..<" {
		incl = value.Exclusive
	}
	if rangeTerminates(c.peek()) {
		return p.buildRange(&from, nil, nil, incl)
	}
	second := p.parseExprPrec(c, precRange+1)
	if isRangeOp(c.peek()) {
		secondOpTok := c.next()
		incl2 := value.Inclusive
		if secondOpTok.Text == "..<" {
			incl2 = value.Exclusive
		}
		var to *ast.Expression
		if !rangeTerminates(c.peek()) {
			t := p.parseExprPrec(c, precRange+1)
			to = &t
		}
		return p.buildRange(&from, &second, to, incl2)
	}
	return p.buildRange(&from, nil, &second, incl)
}

func rangeTerminates(tok lexer.Token) bool {
	switch tok.Kind {
	case lexer.TEOF, lexer.TCloseParen, lexer.TCloseBracket, lexer.TCloseBrace:
		return true
	}
	return false
}

func (p *Parser) buildRange(from, next, to *ast.Expression, incl value.Inclusivity) ast.Expression {
	sp := span.Unknown
	for _, e := range []*ast.Expression{from, next, to} {
		if e != nil && e.Span != span.Unknown {
			sp = sp.Join(e.Span)
		}
	}
	return ast.Expression{
		Kind: ast.ERange, From: from, Next: next, To: to, RangeOp: incl,
		Span: sp, Ty: value.Any,
	}
}

// parseUnary handles the prefix operators `not` and unary `-`, a leading
// unbounded-below range (`..5`), then falls through to postfix cell-path
// application over a primary expression (spec.md §4.2 "Cell paths").
func (p *Parser) parseUnary(c *cursor) ast.Expression {
	tok := c.peek()
	switch {
	case tok.Kind == lexer.TBareWord && tok.Text == "not":
		c.next()
		inner := p.parseExprPrec(c, precNot)
		return ast.Expression{Kind: ast.EUnaryNot, Rhs: &inner, Span: tok.Span.Join(inner.Span), Ty: value.Bool}
	case tok.Kind == lexer.TOperator && tok.Text == "-":
		c.next()
		inner := p.parseExprPrec(c, precUnaryMinus)
		zero := ast.Expression{Kind: ast.EInt, Int: 0, Ty: value.Number, Span: tok.Span}
		return p.buildBinary(zero, ast.OpSub, inner)
	case isRangeOp(tok):
		nothing := ast.Expression{Kind: ast.ENothing, Span: tok.Span, Ty: value.Nothing}
		return p.parseRangeTail(c, nothing, tok)
	}
	return p.parsePostfix(c)
}

// parsePostfix parses a primary expression then chains any `.member`,
// `?.member` cell-path accesses onto it (spec.md §4.2 "Cell paths").
func (p *Parser) parsePostfix(c *cursor) ast.Expression {
	head := p.parsePrimary(c)
	var tail []value.PathMember
	for {
		optional := false
		tok := c.peek()
		if tok.Kind == lexer.TOperator && tok.Text == "?" && c.peekAt(1).Kind == lexer.TOperator && c.peekAt(1).Text == "." {
			optional = true
			c.next()
			tok = c.peek()
		}
		if !(tok.Kind == lexer.TOperator && tok.Text == ".") {
			break
		}
		c.next() // consume "."
		memberTok := c.next()
		var m value.PathMember
		switch memberTok.Kind {
		case lexer.TNumber:
			n, _ := strconv.ParseInt(memberTok.Text, 10, 64)
			m = value.PathMember{Kind: value.PathInt, Int: n, Optional: optional, Span: memberTok.Span}
		case lexer.TBareWord, lexer.TSingleQuoted, lexer.TDoubleQuoted:
			m = value.PathMember{Kind: value.PathString, Str: memberTok.Text, Optional: optional, Span: memberTok.Span}
		default:
			p.errs.Add(diag.New(diag.KindExpectedShape, memberTok.Span, "expected a field name or index after '.'"))
			continue
		}
		tail = append(tail, m)
	}
	if len(tail) == 0 {
		return head
	}
	return ast.Expression{
		Kind: ast.EFullCellPath, Head: &head, Tail: tail,
		Span: head.Span.Join(tail[len(tail)-1].Span), Ty: value.Any,
	}
}

// parsePrimary parses one leaf expression form: literals, variables, list/
// record/table/closure/block/subexpression literals, spreads, or a call.
func (p *Parser) parsePrimary(c *cursor) ast.Expression {
	tok := c.peek()
	switch tok.Kind {
	case lexer.TNumber:
		c.next()
		return parseNumberLiteral(tok)
	case lexer.TSingleQuoted, lexer.TBacktick:
		c.next()
		return ast.Expression{Kind: ast.EString, String: tok.Text, Span: tok.Span, Ty: value.String}
	case lexer.TDoubleQuoted:
		c.next()
		return p.parseDoubleQuoted(tok)
	case lexer.TOpenParen:
		return p.parseSubexpression(c)
	case lexer.TOpenBracket:
		return p.parseListOrTable(c)
	case lexer.TOpenBrace:
		return p.parseBraceForm(c)
	case lexer.TBareWord:
		if strings.HasPrefix(tok.Text, "$") {
			c.next()
			return p.parseVarRef(tok)
		}
		if tok.Text == "..." {
			c.next()
			inner := p.parseExprPrec(c, precUnaryMinus)
			return ast.Expression{Kind: ast.ESpread, Rhs: &inner, Span: tok.Span.Join(inner.Span), Ty: inner.Ty}
		}
		if tok.Text == "true" || tok.Text == "false" {
			c.next()
			return ast.Expression{Kind: ast.EBool, Bool: tok.Text == "true", Span: tok.Span, Ty: value.Bool}
		}
		if tok.Text == "null" {
			c.next()
			return ast.Expression{Kind: ast.ENothing, Span: tok.Span, Ty: value.Nothing}
		}
		return p.parseCallLike(c)
	case lexer.TEOF:
		return ast.Expression{Kind: ast.ENothing, Ty: value.Nothing}
	}
	p.errs.Add(diag.New(diag.KindUnexpectedToken, tok.Span, "unexpected token"))
	c.next()
	return ast.Expression{Kind: ast.ENothing, Span: tok.Span, Ty: value.Nothing}
}

func parseNumberLiteral(tok lexer.Token) ast.Expression {
	text := tok.Text
	if hasUnitSuffix(text, true) {
		if ns, err := value.ParseDuration(text); err == nil {
			return ast.Expression{Kind: ast.EInt, Int: ns, Span: tok.Span, Ty: value.Duration}
		}
	}
	if hasUnitSuffix(text, false) {
		if bs, err := value.ParseFilesize(text); err == nil {
			return ast.Expression{Kind: ast.EInt, Int: bs, Span: tok.Span, Ty: value.Filesize}
		}
	}
	if strings.Contains(text, ".") {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return ast.Expression{Kind: ast.EFloat, Float: f, Span: tok.Span, Ty: value.Float}
		}
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return ast.Expression{Kind: ast.EInt, Int: n, Span: tok.Span, Ty: value.Int}
	}
	f, _ := strconv.ParseFloat(text, 64)
	return ast.Expression{Kind: ast.EFloat, Float: f, Span: tok.Span, Ty: value.Float}
}

func hasUnitSuffix(text string, duration bool) bool {
	lower := strings.ToLower(text)
	suffixes := []string{"b", "kb", "mb", "gb", "tb", "kib", "mib", "gib", "tib"}
	if duration {
		suffixes = []string{"ns", "us", "ms", "sec", "min", "hr", "day", "wk"}
	}
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) && lower != s {
			return true
		}
	}
	return false
}

// parseVarRef parses a `$name` token. The lexer's word-scanner doesn't stop
// at a `.` when it directly follows a `$name` with no intervening space, so
// `$x.foo` arrives as a single token "$x.foo" rather than three; split the
// merged spelling into a var name and a dotted cell-path tail here instead
// of relying on parsePostfix to see separate tokens.
func (p *Parser) parseVarRef(tok lexer.Token) ast.Expression {
	full := strings.TrimPrefix(tok.Text, "$")
	name, tailSegs := full, []string(nil)
	if i := strings.IndexByte(full, '.'); i >= 0 {
		name = full[:i]
		tailSegs = strings.Split(full[i+1:], ".")
	}
	id, ok := p.resolveVar(name)
	if !ok {
		p.errs.Add(diag.New(diag.KindVariableNotFound, tok.Span, "variable not found: $"+name))
		return ast.Expression{Kind: ast.ENothing, Span: tok.Span, Ty: value.Nothing}
	}
	v, _ := p.ws.Var(id)
	head := ast.Expression{Kind: ast.EVar, Var: id, Span: tok.Span, Ty: v.Type}
	if len(tailSegs) == 0 {
		return head
	}
	tail := make([]value.PathMember, 0, len(tailSegs))
	for _, seg := range tailSegs {
		if n, err := strconv.ParseInt(seg, 10, 64); err == nil {
			tail = append(tail, value.PathMember{Kind: value.PathInt, Int: n, Span: tok.Span})
			continue
		}
		tail = append(tail, value.PathMember{Kind: value.PathString, Str: seg, Span: tok.Span})
	}
	return ast.Expression{Kind: ast.EFullCellPath, Head: &head, Tail: tail, Span: tok.Span, Ty: value.Any}
}

// parseDoubleQuoted turns a double-quoted token's decomposed Parts
// into either a plain EString (no interpolation) or an
// EStringInterpolation node whose Parts are recursively parsed
// sub-expressions (spec.md §4.2 Interpolation).
func (p *Parser) parseDoubleQuoted(tok lexer.Token) ast.Expression {
	if len(tok.Parts) == 0 {
		return ast.Expression{Kind: ast.EString, String: tok.Text, Span: tok.Span, Ty: value.String}
	}
	allLiteral := true
	for _, part := range tok.Parts {
		if part.Kind != lexer.InterpLiteral {
			allLiteral = false
			break
		}
	}
	if allLiteral {
		return ast.Expression{Kind: ast.EString, String: tok.Text, Span: tok.Span, Ty: value.String}
	}
	var parts []ast.Expression
	for _, part := range tok.Parts {
		if part.Kind == lexer.InterpLiteral {
			parts = append(parts, ast.Expression{Kind: ast.EString, String: part.Text, Span: part.Span, Ty: value.String})
			continue
		}
		parts = append(parts, p.parseFragmentAsSubexpression(part.Text, part.Span))
	}
	return ast.Expression{Kind: ast.EStringInterpolation, Parts: parts, Span: tok.Span, Ty: value.String}
}

// parseFragmentAsSubexpression re-lexes and parses a fragment of
// already-registered source text (used for `$(...)`/`${...}` interpolation
// segments), reusing the fragment's
// own absolute span so every resulting AST node's span still points into
// the original file (spec.md §8 "Span containment").
func (p *Parser) parseFragmentAsSubexpression(text string, sp span.Span) ast.Expression {
	lx := lexer.New(sp.FileID, sp.Start, []byte(text))
	toks := lx.Tokenize()
	for _, e := range lx.Errors() {
		p.errs.Add(e)
	}
	lite := lexer.Group(toks)
	blk := p.parseLiteBlock(lite)
	id := p.ws.AddBlock(blk)
	return ast.Expression{Kind: ast.ESubexpression, Block: id, Span: sp, Ty: value.Any}
}
