package parser

import (
	"fmt"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/lexer"
	"github.com/shellcore/shellcore/internal/span"
)

// Parser holds the state for one parse: a WorkingSet to resolve names
// against and accumulate new declarations/variables/blocks into, a stack
// of lexical variable scopes (innermost last), and an accumulating
// diagnostic bag (spec.md §4.2).
type Parser struct {
	ws    *engine.WorkingSet
	scope []map[string]ast.VarId
	errs  diag.Bag

	// defined tracks, per lexical block, which names have already been
	// defined (def/def-env names, registered by predeclare; aliases are not
	// tracked), to enforce "each name in a block may
	// be defined at most once" (spec.md §4.2, §4.4).
	defined []map[string]bool

	// exports tracks, per enclosing module body, which names an `export`
	// prefix has marked exported (spec.md §4.4 "Module definition": only
	// `export ...` items become part of the resulting Module). nil
	// (as opposed to an empty, non-nil map) outside of any module body,
	// so parseExport can tell "not inside a module" from "inside one with
	// nothing exported yet".
	exports []map[string]bool
}

// pushExports starts tracking export-marked names for a new module body.
func (p *Parser) pushExports() {
	p.exports = append(p.exports, map[string]bool{})
}

// popExports stops tracking and returns the names exported since the
// matching pushExports.
func (p *Parser) popExports() map[string]bool {
	top := p.exports[len(p.exports)-1]
	p.exports = p.exports[:len(p.exports)-1]
	return top
}

// markExported records name as exported in the innermost module body
// currently being parsed, a no-op when export appears outside any module.
func (p *Parser) markExported(name string) {
	if len(p.exports) == 0 {
		return
	}
	p.exports[len(p.exports)-1][name] = true
}

// New returns a Parser over ws.
func New(ws *engine.WorkingSet) *Parser {
	p := &Parser{ws: ws}
	p.pushScope()
	return p
}

// Errors returns every diagnostic recorded during the parse.
func (p *Parser) Errors() []*diag.Error { return p.errs.Errors() }

func (p *Parser) pushScope() {
	p.scope = append(p.scope, map[string]ast.VarId{})
	p.defined = append(p.defined, map[string]bool{})
}

func (p *Parser) popScope() {
	p.scope = p.scope[:len(p.scope)-1]
	p.defined = p.defined[:len(p.defined)-1]
}

func (p *Parser) declareVar(name string, v ast.Variable) ast.VarId {
	id := p.ws.AddVariable(v)
	p.scope[len(p.scope)-1][name] = id
	return id
}

// resolveVar resolves name against the lexical scope stack, innermost
// first (spec.md §4.2 "Name resolution").
func (p *Parser) resolveVar(name string) (ast.VarId, bool) {
	for i := len(p.scope) - 1; i >= 0; i-- {
		if id, ok := p.scope[i][name]; ok {
			return id, true
		}
	}
	return ast.NoVar, false
}

func (p *Parser) markDefined(name string, sp span.Span) bool {
	m := p.defined[len(p.defined)-1]
	if m[name] {
		p.errs.Add(diag.New(diag.KindDuplicateDefinition, sp, fmt.Sprintf("%q is defined more than once in this block", name)))
		return false
	}
	m[name] = true
	return true
}

// ParseBlock is the top-level entry point (spec.md §6 "parse"): it groups
// tokens into a LiteBlock and parses it into a typed ast.Block, recording
// the block into the WorkingSet delta. scoped=true parses inside a fresh
// lexical scope discarded after use, for one-off expression evaluation
// that must not leak variable declarations.
func ParseBlock(ws *engine.WorkingSet, fileID uint32, base uint32, src []byte, scoped bool) (*ast.Block, []*diag.Error) {
	lx := lexer.New(fileID, base, src)
	toks := lx.Tokenize()
	lite := lexer.Group(toks)

	p := New(ws)
	if scoped {
		p.pushScope()
		defer p.popScope()
	}
	blk := p.parseLiteBlock(lite)

	allErrs := append([]*diag.Error{}, lx.Errors()...)
	allErrs = append(allErrs, p.Errors()...)
	return blk, allErrs
}

func (p *Parser) parseLiteBlock(lite lexer.LiteBlock) *ast.Block {
	p.predeclare(lite)
	blk := &ast.Block{Span: lite.Span}
	for _, lp := range lite.Pipelines {
		blk.Pipelines = append(blk.Pipelines, p.parsePipeline(lp))
	}
	return blk
}

// predeclare implements spec.md §4.2's "Predeclaration rule": every
// `def`/`export def` name in a block is registered with an empty body
// before any statement is parsed, so later defs may forward-reference
// earlier (or later!) ones. It returns nothing; registered ids are looked
// up again by name when the real `def` body is parsed.
func (p *Parser) predeclare(lite lexer.LiteBlock) {
	for _, lp := range lite.Pipelines {
		for _, cmd := range lp.Commands {
			name, sigTokIdx, isDef := sniffDefHeader(cmd.Parts)
			if !isDef {
				continue
			}
			if !p.markDefined(name, cmd.Span) {
				continue
			}
			decl := ast.Declaration{
				Name: name,
				Body: ast.DeclBody{Kind: ast.BodyUser},
				Span: cmd.Span,
			}
			id := p.ws.AddDecl(decl)
			p.ws.ActiveOverlay().Decls[name] = id
			_ = sigTokIdx
		}
	}
}

// sniffDefHeader recognises a `def name ...` or `export def name ...`
// command header without fully parsing it, returning the declared name.
func sniffDefHeader(toks []lexer.Token) (name string, sigIdx int, ok bool) {
	i := 0
	if i < len(toks) && toks[i].Kind == lexer.TBareWord && toks[i].Text == "export" {
		i++
	}
	if i >= len(toks) || toks[i].Kind != lexer.TBareWord || (toks[i].Text != "def" && toks[i].Text != "def-env") {
		return "", 0, false
	}
	i++
	if i >= len(toks) {
		return "", 0, false
	}
	// The name may itself be a multi-word quoted string ("def \"math
	// median\" [...]") or a single bare word; accept either.
	nameTok := toks[i]
	if nameTok.Kind != lexer.TBareWord && nameTok.Kind != lexer.TDoubleQuoted && nameTok.Kind != lexer.TSingleQuoted {
		return "", 0, false
	}
	return nameTok.Text, i + 1, true
}
