package parser

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/lexer"
	"github.com/shellcore/shellcore/internal/value"
)

// parsePipeline parses one LitePipeline: a LiteCommand (| LiteCommand)*
// run, each becoming a PipelineElement with its optional redirection
// (spec.md §3 Pipeline, §4.1).
func (p *Parser) parsePipeline(lp lexer.LitePipeline) ast.Pipeline {
	pl := ast.Pipeline{Span: lp.Span}
	for _, cmd := range lp.Commands {
		parts, redir := splitRedirection(cmd.Parts)
		expr := p.parseCommandToks(parts)
		pl.Elements = append(pl.Elements, ast.PipelineElement{Expr: expr, Redirection: redir, Span: cmd.Span})
	}
	return pl
}

// splitRedirection detects a trailing `o>`, `o>>`, `e>` or `o+e>`
// redirection token (spec.md §6 "File I/O redirections") followed by a
// path argument, stripping it from the command's tokens.
func splitRedirection(toks []lexer.Token) ([]lexer.Token, *ast.Redirection) {
	for i, t := range toks {
		if t.Kind != lexer.TBareWord {
			continue
		}
		var kind ast.RedirectKind
		switch t.Text {
		case "o>":
			kind = ast.RedirectToFile
		case "o>>":
			kind = ast.RedirectAppendFile
		case "e>":
			kind = ast.RedirectSplitStderr
		case "o+e>":
			kind = ast.RedirectMergeStderr
		default:
			continue
		}
		if i+1 >= len(toks) {
			return toks, &ast.Redirection{Kind: kind}
		}
		pathTok := toks[i+1]
		pathExpr := ast.Expression{Kind: ast.EString, String: pathTok.Text, Span: pathTok.Span, Ty: value.String}
		return append(append([]lexer.Token{}, toks[:i]...), toks[i+2:]...), &ast.Redirection{Kind: kind, Path: &pathExpr}
	}
	return toks, nil
}

var keywordCommands = map[string]bool{
	"let": true, "mut": true, "const": true, "def": true, "def-env": true,
	"export": true, "export-env": true, "use": true, "hide": true, "if": true, "for": true,
	"match": true, "alias": true, "module": true, "overlay": true,
	"where": true, "error": true,
}

func (p *Parser) parseCommandToks(toks []lexer.Token) ast.Expression {
	if len(toks) == 0 {
		return ast.Expression{Kind: ast.ENothing}
	}
	head := toks[0]
	if head.Kind == lexer.TBareWord && keywordCommands[head.Text] {
		if expr, ok := p.tryParseKeyword(head.Text, toks); ok {
			return expr
		}
	}
	c := newCursor(toks)
	return p.parseExprPrec(c, precLowest)
}

// diagHere is a small helper that records a diagnostic and returns a
// Nothing expression, keeping the parse going
// (spec.md §4.2 "Parser never throws").
func (p *Parser) diagHere(kind diag.Kind, expr ast.Expression, msg string) ast.Expression {
	p.errs.Add(diag.New(kind, expr.Span, msg))
	return ast.Expression{Kind: ast.ENothing, Span: expr.Span, Ty: value.Nothing}
}
