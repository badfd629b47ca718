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

// parseCallLike parses a bareword-headed command invocation: longest-prefix
// name resolution against the declaration table (spec.md §4.2 "Command
// dispatch"), falling back to an external-command call when no declaration
// matches. It consumes every remaining token in c, since a call's arguments
// run to the end of its LiteCommand.
func (p *Parser) parseCallLike(c *cursor) ast.Expression {
	headTok := c.next()
	words := []string{headTok.Text}
	sp := headTok.Span
	bestId, bestOk := p.ws.FindDecl(headTok.Text)

	// Longest-prefix matching: "math median" must win over a bare "math"
	// declaration when both exist (spec.md §4.2 "Command dispatch").
	save := c.pos
	for {
		nxt := c.peek()
		if nxt.Kind != lexer.TBareWord || strings.HasPrefix(nxt.Text, "-") || strings.HasPrefix(nxt.Text, "$") {
			break
		}
		cand := strings.Join(append(append([]string{}, words...), nxt.Text), " ")
		if id, ok := p.ws.FindDecl(cand); ok {
			words = append(words, nxt.Text)
			sp = sp.Join(nxt.Span)
			bestId, bestOk = id, true
			c.next()
			save = c.pos
			continue
		}
		break
	}
	c.pos = save

	if !bestOk {
		return p.parseExternalCall(headTok, c)
	}
	decl, _ := p.ws.Decl(bestId)
	return p.bindCall(bestId, decl, sp, c)
}

// bindCall binds the remaining tokens of c against decl's Signature,
// implementing spec.md §4.2 "Argument binding": positional params filled in
// order, named (`--long`/`--long=value`/`-x`) flags matched against Named
// params (a bundled short-switch run like `-la` expands to one bool per
// letter), and any overflow collected into Rest if the signature declares
// one.
func (p *Parser) bindCall(id ast.DeclId, decl ast.Declaration, headSpan span.Span, c *cursor) ast.Expression {
	sig := decl.Signature
	call := &ast.Call{Decl: id, Head: headSpan, Named: map[string]ast.Expression{}}
	sp := headSpan
	posIdx := 0

	for {
		tok := c.peek()
		if tok.Kind == lexer.TEOF {
			break
		}
		if tok.Kind == lexer.TBareWord && strings.HasPrefix(tok.Text, "--") && tok.Text != "--" {
			c.next()
			sp = sp.Join(tok.Span)
			body := strings.TrimPrefix(tok.Text, "--")
			long, inlineVal, hasInline := body, "", false
			if i := strings.IndexByte(body, '='); i >= 0 {
				long, inlineVal, hasInline = body[:i], body[i+1:], true
			}
			param, ok := sig.FindNamed(long, 0)
			if !ok {
				p.errs.Add(diag.New(diag.KindUnexpectedPositional, tok.Span, "unknown flag --"+long))
				continue
			}
			if param.IsSwitch {
				call.Named[param.Name] = ast.Expression{Kind: ast.EBool, Bool: true, Ty: value.Bool, Span: tok.Span}
				continue
			}
			if hasInline {
				call.Named[param.Name] = ast.Expression{Kind: ast.EString, String: inlineVal, Ty: value.String, Span: tok.Span}
				continue
			}
			if c.peek().Kind == lexer.TEOF {
				p.errs.Add(diag.New(diag.KindMissingFlagValue, tok.Span, "flag --"+long+" requires a value"))
				continue
			}
			val := p.parseArgValue(c)
			sp = sp.Join(val.Span)
			call.Named[param.Name] = val
			continue
		}
		if tok.Kind == lexer.TBareWord && len(tok.Text) >= 2 && tok.Text[0] == '-' && tok.Text[1] != '-' && isShortRun(tok.Text) {
			c.next()
			sp = sp.Join(tok.Span)
			for _, r := range tok.Text[1:] {
				param, ok := sig.FindNamed("", r)
				if !ok {
					p.errs.Add(diag.New(diag.KindUnexpectedPositional, tok.Span, "unknown flag -"+string(r)))
					continue
				}
				call.Named[param.Name] = ast.Expression{Kind: ast.EBool, Bool: true, Ty: value.Bool, Span: tok.Span}
			}
			continue
		}
		val := p.parseArgValue(c)
		sp = sp.Join(val.Span)
		if posIdx < len(sig.Positional) {
			call.Positional = append(call.Positional, val)
			posIdx++
		} else if sig.Rest != nil {
			call.Rest = append(call.Rest, val)
		} else {
			p.errs.Add(diag.New(diag.KindUnexpectedPositional, val.Span, "unexpected extra argument"))
		}
	}

	if posIdx < len(sig.Positional) {
		for _, missing := range sig.Positional[posIdx:] {
			if missing.Required {
				p.errs.Add(diag.New(diag.KindMissingPositional, sp, "missing required parameter: "+missing.Name))
			}
		}
	}

	call.Span = sp
	return ast.Expression{Kind: ast.ECall, Call: call, Span: sp, Ty: sig.OutputFor(value.Any)}
}

// isShortRun reports whether text is a bundled short-switch run like "-la"
// (every char after the leading '-' is a letter, no digits/operators so it
// isn't mistaken for a negative number already handled by the lexer).
func isShortRun(text string) bool {
	for _, r := range text[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return len(text) > 1
}

// parseArgValue parses one command-argument value: a literal, a variable
// reference, a bracketed compound literal, or (the common case for bare
// command arguments) a plain string. Using another command's output as an
// argument requires an explicit `(...)` subexpression; a bare word is
// always a string, never a nested call (spec.md §4.2 "Shape-directed
// expansion" applied to ShapeString/ShapeAny parameters).
func (p *Parser) parseArgValue(c *cursor) ast.Expression {
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
			inner := p.parseArgValue(c)
			return ast.Expression{Kind: ast.ESpread, Rhs: &inner, Span: tok.Span.Join(inner.Span), Ty: inner.Ty}
		}
		if tok.Text == "true" || tok.Text == "false" {
			c.next()
			return ast.Expression{Kind: ast.EBool, Bool: tok.Text == "true", Span: tok.Span, Ty: value.Bool}
		}
		c.next()
		if n, err := strconv.ParseInt(tok.Text, 10, 64); err == nil {
			return ast.Expression{Kind: ast.EInt, Int: n, Span: tok.Span, Ty: value.Int}
		}
		return ast.Expression{Kind: ast.EString, String: tok.Text, Span: tok.Span, Ty: value.String}
	}
	c.next()
	return ast.Expression{Kind: ast.ENothing, Span: tok.Span, Ty: value.Nothing}
}

// parseExternalCall parses a call to a program not found in the
// declaration table: spec.md §4.2 dispatch falls through to an external
// process, its arguments passed through with minimal interpretation (raw
// glob/bareword arguments are preserved verbatim rather than quoted).
func (p *Parser) parseExternalCall(headTok lexer.Token, c *cursor) ast.Expression {
	head := ast.Expression{Kind: ast.EString, String: headTok.Text, Span: headTok.Span, Ty: value.String}
	sp := headTok.Span
	var args []ast.ExternalArg
	for {
		tok := c.peek()
		if tok.Kind == lexer.TEOF {
			break
		}
		raw := tok.Kind == lexer.TBareWord
		val := p.parseArgValue(c)
		sp = sp.Join(val.Span)
		args = append(args, ast.ExternalArg{Expr: val, Raw: raw})
	}
	return ast.Expression{
		Kind: ast.EExternalCall, ExternalHead: &head, ExternalArgs: args,
		Span: sp, Ty: value.Any,
	}
}
