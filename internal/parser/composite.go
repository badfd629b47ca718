package parser

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/lexer"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// bracketed extracts the token run strictly between a matching open/close
// delimiter pair starting at c's current position (which must be the open
// delimiter), advancing c past the whole bracketed run. It returns the
// inner tokens and the full span (including delimiters).
func bracketed(c *cursor, open, close lexer.Kind) ([]lexer.Token, span.Span, bool) {
	openTok := c.peek()
	closeRel := c.matchingClose(open, close)
	if closeRel < 0 {
		c.next()
		return nil, openTok.Span, false
	}
	inner := c.toks[c.pos+1 : closeRel]
	fullSpan := openTok.Span.Join(c.toks[closeRel].Span)
	c.pos = closeRel + 1
	return inner, fullSpan, true
}

// parseSubexpression parses `(...)`: a nested pipeline sequence whose
// final value becomes the Subexpression's value (spec.md §3 Expression
// "Subexpression(BlockId)").
func (p *Parser) parseSubexpression(c *cursor) ast.Expression {
	inner, sp, ok := bracketed(c, lexer.TOpenParen, lexer.TCloseParen)
	if !ok {
		p.errs.Add(diag.New(diag.KindUnbalancedDelimiter, sp, "unbalanced '('"))
		return ast.Expression{Kind: ast.ENothing, Span: sp, Ty: value.Nothing}
	}
	lite := lexer.Group(inner)
	blk := p.parseLiteBlock(lite)
	id := p.ws.AddBlock(blk)
	ty := value.Any
	if n := len(blk.Pipelines); n > 0 {
		if m := len(blk.Pipelines[n-1].Elements); m > 0 {
			ty = blk.Pipelines[n-1].Elements[m-1].Expr.Ty
		}
	}
	return ast.Expression{Kind: ast.ESubexpression, Block: id, Span: sp, Ty: ty}
}

// parseListOrTable parses `[...]`. A table literal has the shape
// `[[col1, col2]; [v1, v2] [v3, v4]]`: the first bracketed group is a
// column-name list, followed immediately by `;` and one or more row
// groups (spec.md §3 Expression "Table{cols, rows}"). Anything else is an
// ordinary List literal whose items may include `...spread` entries.
func (p *Parser) parseListOrTable(c *cursor) ast.Expression {
	inner, sp, ok := bracketed(c, lexer.TOpenBracket, lexer.TCloseBracket)
	if !ok {
		p.errs.Add(diag.New(diag.KindUnbalancedDelimiter, sp, "unbalanced '['"))
		return ast.Expression{Kind: ast.ENothing, Span: sp, Ty: value.Nothing}
	}
	if looksLikeTableHeader(inner) {
		return p.parseTableBody(inner, sp)
	}
	items, elemTy := p.parseListItems(inner)
	return ast.Expression{Kind: ast.EList, Items: items, Span: sp, Ty: value.List(elemTy)}
}

// looksLikeTableHeader reports whether inner starts with a bracketed
// column-name group immediately followed by `;`.
func looksLikeTableHeader(inner []lexer.Token) bool {
	if len(inner) == 0 || inner[0].Kind != lexer.TOpenBracket {
		return false
	}
	ic := newCursor(inner)
	closeRel := ic.matchingClose(lexer.TOpenBracket, lexer.TCloseBracket)
	if closeRel < 0 || closeRel+1 >= len(inner) {
		return false
	}
	return inner[closeRel+1].Kind == lexer.TSemicolon
}

// parseColumnName parses one table-header column name. A single bareword
// token is always a literal column name, never a command dispatch (mirrors
// parseArgValue's bareword-is-a-string treatment); anything else (a quoted
// string, a string with interpolation) parses as a normal expression.
func (p *Parser) parseColumnName(it []lexer.Token) ast.Expression {
	if len(it) == 1 && it[0].Kind == lexer.TBareWord {
		tok := it[0]
		return ast.Expression{Kind: ast.EString, String: tok.Text, Span: tok.Span, Ty: value.String}
	}
	return p.parseExprPrec(newCursor(it), precLowest)
}

func (p *Parser) parseTableBody(inner []lexer.Token, sp span.Span) ast.Expression {
	ic2 := newCursor(inner)
	colsInner, _, _ := bracketed(ic2, lexer.TOpenBracket, lexer.TCloseBracket)
	var cols []ast.Expression
	for _, it := range splitOnCommas(colsInner) {
		if len(it) == 0 {
			continue
		}
		cols = append(cols, p.parseColumnName(it))
	}
	if ic2.peek().Kind == lexer.TSemicolon {
		ic2.next()
	}
	var rows [][]ast.Expression
	for !ic2.eof() {
		if ic2.peek().Kind != lexer.TOpenBracket {
			ic2.next()
			continue
		}
		rowInner, _, ok := bracketed(ic2, lexer.TOpenBracket, lexer.TCloseBracket)
		if !ok {
			break
		}
		var row []ast.Expression
		for _, it := range splitOnCommas(rowInner) {
			if len(it) == 0 {
				continue
			}
			row = append(row, p.parseExprPrec(newCursor(it), precLowest))
		}
		rows = append(rows, row)
	}
	fields := make([]value.Field, 0, len(cols))
	for i, col := range cols {
		ft := value.Any
		if len(rows) > 0 && i < len(rows[0]) {
			ft = rows[0][i].Ty
		}
		fields = append(fields, value.Field{Name: col.String, Type: ft})
	}
	return ast.Expression{Kind: ast.ETable, Columns: cols, Rows: rows, Span: sp, Ty: value.Table(fields...)}
}

// parseListItems parses comma-separated list items, honouring `...expr`
// spreads (spec.md §4.2 Spread).
func (p *Parser) parseListItems(inner []lexer.Token) ([]ast.ListItem, value.Type) {
	var items []ast.ListItem
	elemTy := value.Nothing
	for _, it := range splitOnCommas(inner) {
		if len(it) == 0 {
			continue
		}
		spread := false
		if it[0].Kind == lexer.TBareWord && it[0].Text == "..." {
			spread = true
			it = it[1:]
		}
		e := p.parseExprPrec(newCursor(it), precLowest)
		items = append(items, ast.ListItem{Expr: e, Spread: spread})
		if spread {
			if e.Ty.Kind == value.KindList && e.Ty.Elem != nil {
				elemTy = value.Join(elemTy, *e.Ty.Elem)
			}
		} else {
			elemTy = value.Join(elemTy, e.Ty)
		}
	}
	return items, elemTy
}

// splitOnCommas splits toks on top-level commas (a bareword "," token, or
// the lexer may have folded a literal comma into TOperator depending on
// configuration; we accept either spelling), respecting bracket nesting.
func splitOnCommas(toks []lexer.Token) [][]lexer.Token {
	var groups [][]lexer.Token
	var cur []lexer.Token
	depth := 0
	for _, t := range toks {
		switch t.Kind {
		case lexer.TOpenParen, lexer.TOpenBracket, lexer.TOpenBrace:
			depth++
		case lexer.TCloseParen, lexer.TCloseBracket, lexer.TCloseBrace:
			depth--
		}
		if depth == 0 && isComma(t) {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	return groups
}

func isComma(t lexer.Token) bool {
	return (t.Kind == lexer.TBareWord || t.Kind == lexer.TOperator) && t.Text == ","
}

// parseBraceForm parses `{...}`: a closure (`{|params| body}`), a record
// literal (`{k: v, ...}`), or a bare block (anything else), per spec.md
// §3 Expression Closure/Block and Record.
func (p *Parser) parseBraceForm(c *cursor) ast.Expression {
	inner, sp, ok := bracketed(c, lexer.TOpenBrace, lexer.TCloseBrace)
	if !ok {
		p.errs.Add(diag.New(diag.KindUnbalancedDelimiter, sp, "unbalanced '{'"))
		return ast.Expression{Kind: ast.ENothing, Span: sp, Ty: value.Nothing}
	}
	if len(inner) > 0 && inner[0].Kind == lexer.TPipe {
		return p.parseClosure(inner, sp)
	}
	if looksLikeRecord(inner) {
		return p.parseRecordLiteral(inner, sp)
	}
	lite := lexer.Group(inner)
	blk := p.parseLiteBlock(lite)
	id := p.ws.AddBlock(blk)
	return ast.Expression{Kind: ast.EBlock, Block: id, Span: sp, Ty: value.Block}
}

// looksLikeRecord reports whether inner opens with `key:` (a bareword or
// quoted string token immediately followed by a bare `:`), distinguishing
// a Record literal from a Block.
func looksLikeRecord(inner []lexer.Token) bool {
	if len(inner) == 0 {
		return true // `{}` is the empty record
	}
	if len(inner) < 2 {
		return false
	}
	k := inner[0]
	if k.Kind != lexer.TBareWord && k.Kind != lexer.TSingleQuoted && k.Kind != lexer.TDoubleQuoted {
		if k.Kind == lexer.TBareWord && k.Text == "..." {
			return true
		}
		return false
	}
	nxt := inner[1]
	return (nxt.Kind == lexer.TBareWord || nxt.Kind == lexer.TOperator) && nxt.Text == ":"
}

func (p *Parser) parseRecordLiteral(inner []lexer.Token, sp span.Span) ast.Expression {
	var items []ast.RecordItem
	var fields []value.Field
	for _, it := range splitOnCommas(inner) {
		if len(it) == 0 {
			continue
		}
		if it[0].Kind == lexer.TBareWord && it[0].Text == "..." {
			rest := newCursor(it[1:])
			e := p.parseExprPrec(rest, precLowest)
			items = append(items, ast.RecordItem{Value: e, Spread: true})
			if e.Ty.Kind == value.KindRecord {
				fields = append(fields, e.Ty.Fields...)
			}
			continue
		}
		if len(it) < 2 {
			p.errs.Add(diag.New(diag.KindExpectedShape, it[0].Span, "expected 'key: value' in record literal"))
			continue
		}
		keyTok := it[0]
		key := ast.Expression{Kind: ast.EString, String: keyTok.Text, Span: keyTok.Span, Ty: value.String}
		val := p.parseExprPrec(newCursor(it[2:]), precLowest)
		items = append(items, ast.RecordItem{Key: &key, Value: val})
		fields = append(fields, value.Field{Name: keyTok.Text, Type: val.Ty})
	}
	if dupCol := firstDuplicateField(fields); dupCol != "" {
		p.errs.Add(diag.New(diag.KindDuplicateColumn, sp, "duplicate column: "+dupCol))
	}
	return ast.Expression{Kind: ast.ERecord, Fields: items, Span: sp, Ty: value.Record(fields...)}
}

func firstDuplicateField(fields []value.Field) string {
	seen := map[string]bool{}
	for _, f := range fields {
		if seen[f.Name] {
			return f.Name
		}
		seen[f.Name] = true
	}
	return ""
}

// parseClosure parses `{|x, y| body}`: a parameter list then a block body
// whose free variables are captured from the current lexical scope at
// construction (spec.md §4.3 Closures).
func (p *Parser) parseClosure(inner []lexer.Token, sp span.Span) ast.Expression {
	c := newCursor(inner)
	c.next() // leading "|"
	var params []ast.Param
	for {
		tok := c.peek()
		if tok.Kind == lexer.TPipe || tok.Kind == lexer.TEOF {
			break
		}
		if tok.Kind == lexer.TBareWord && tok.Text == "," {
			c.next()
			continue
		}
		if isComma(tok) {
			c.next()
			continue
		}
		name := tok.Text
		if name == "" {
			c.next()
			continue
		}
		c.next()
		params = append(params, ast.Param{Name: name, Required: true, Type: value.Any})
	}
	if c.peek().Kind == lexer.TPipe {
		c.next()
	}
	p.pushScope()
	var captureIds []ast.VarId
	for i := range params {
		id := p.declareVar(params[i].Name, ast.Variable{Name: params[i].Name, Type: params[i].Type, Mutable: true, Span: sp})
		params[i].VarId = id
		captureIds = append(captureIds, id)
	}
	bodyToks := c.rest()
	lite := lexer.Group(bodyToks)
	blk := p.parseLiteBlock(lite)
	blk.Signature = &ast.Signature{Positional: params}
	blk.Span = sp
	p.popScope()
	id := p.ws.AddBlock(blk)
	return ast.Expression{Kind: ast.EClosure, Block: id, Span: sp, Ty: value.Closure}
}
