package parser

import (
	"strings"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/lexer"
	"github.com/shellcore/shellcore/internal/span"
	"github.com/shellcore/shellcore/internal/value"
)

// tryParseKeyword dispatches on a command head recognised in
// keywordCommands, parsing the bespoke grammar of spec.md §4.2's keyword
// forms (`let`, `mut`, `const`, `def`, `def-env`, `export`, `use`, `hide`,
// `if`, `for`, `match`, `alias`, `module`, `overlay`, `where`, `error
// make`). ok is false only when head isn't actually one of these (the
// keywordCommands membership check already filters most of that, `error`
// additionally requires a following `make`).
func (p *Parser) tryParseKeyword(head string, toks []lexer.Token) (ast.Expression, bool) {
	rest := toks[1:]
	switch head {
	case "let", "mut":
		return p.parseLetLike(head, rest, toks[0].Span), true
	case "const":
		return p.parseConst(rest, toks[0].Span), true
	case "def", "def-env":
		return p.parseDef(head, rest, toks[0].Span), true
	case "export-env":
		return p.parseExportEnv(rest, toks[0].Span), true
	case "export":
		return p.parseExport(rest, toks[0].Span)
	case "use":
		return p.parseUse(rest, toks[0].Span), true
	case "hide":
		return p.parseHide(rest, toks[0].Span), true
	case "alias":
		return p.parseAlias(rest, toks[0].Span), true
	case "module":
		return p.parseModule(rest, toks[0].Span), true
	case "overlay":
		return p.parseOverlay(rest, toks[0].Span), true
	case "if":
		return p.parseIf(rest, toks[0].Span), true
	case "for":
		return p.parseFor(rest, toks[0].Span), true
	case "match":
		return p.parseMatch(rest, toks[0].Span), true
	case "where":
		inner := p.parseExprPrec(newCursor(rest), precLowest)
		return ast.Expression{Kind: ast.EKeyword, Keyword: "where", Inner: &inner, Span: toks[0].Span.Join(inner.Span), Ty: value.Bool}, true
	case "error":
		if len(rest) == 0 || rest[0].Kind != lexer.TBareWord || rest[0].Text != "make" {
			return ast.Expression{}, false
		}
		inner := p.parseExprPrec(newCursor(rest[1:]), precLowest)
		return ast.Expression{Kind: ast.EKeyword, Keyword: "error-make", Inner: &inner, Span: toks[0].Span.Join(inner.Span), Ty: value.ErrorTy}, true
	}
	return ast.Expression{}, false
}

// splitFirstOperator returns the tokens before/after the first top-level
// (bracket-depth 0) TOperator token matching text.
func splitFirstOperator(toks []lexer.Token, text string) (before, after []lexer.Token, found bool) {
	depth := 0
	for i, t := range toks {
		switch t.Kind {
		case lexer.TOpenParen, lexer.TOpenBracket, lexer.TOpenBrace:
			depth++
		case lexer.TCloseParen, lexer.TCloseBracket, lexer.TCloseBrace:
			depth--
		}
		if depth == 0 && t.Kind == lexer.TOperator && t.Text == text {
			return toks[:i], toks[i+1:], true
		}
	}
	return toks, nil, false
}

// splitFirstBareword is splitFirstOperator's counterpart for a keyword
// spelled as a TBareWord ("in", "else", "=>", ...).
func splitFirstBareword(toks []lexer.Token, text string) (before, after []lexer.Token, found bool) {
	depth := 0
	for i, t := range toks {
		switch t.Kind {
		case lexer.TOpenParen, lexer.TOpenBracket, lexer.TOpenBrace:
			depth++
		case lexer.TCloseParen, lexer.TCloseBracket, lexer.TCloseBrace:
			depth--
		}
		if depth == 0 && t.Kind == lexer.TBareWord && t.Text == text {
			return toks[:i], toks[i+1:], true
		}
	}
	return toks, nil, false
}

// firstTopLevelBrace returns the index of the first bracket-depth-0
// TOpenBrace token, used to split an `if`/`for` header from its body block.
func firstTopLevelBrace(toks []lexer.Token) int {
	depth := 0
	for i, t := range toks {
		switch t.Kind {
		case lexer.TOpenBrace:
			if depth == 0 {
				return i
			}
			depth++
		case lexer.TOpenParen, lexer.TOpenBracket:
			depth++
		case lexer.TCloseParen, lexer.TCloseBracket, lexer.TCloseBrace:
			depth--
		}
	}
	return -1
}

// parseLetLike parses `let $name[: type] = expr` / `mut $name = expr`
// (spec.md §4.2, §4.3 "Variable declaration").
func (p *Parser) parseLetLike(keyword string, rest []lexer.Token, headSp span.Span) ast.Expression {
	lhs, rhsToks, ok := splitFirstOperator(rest, "=")
	if !ok || len(lhs) == 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected '"+keyword+" $name = <expr>'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	nameTok := lhs[0]
	name := strings.TrimPrefix(nameTok.Text, "$")
	rhs := p.parseExprPrec(newCursor(rhsToks), precLowest)
	id := p.declareVar(name, ast.Variable{Name: name, Type: rhs.Ty, Mutable: keyword == "mut", Span: nameTok.Span})
	sp := headSp.Join(rhs.Span)
	return ast.Expression{Kind: ast.EKeyword, Keyword: keyword, Var: id, Inner: &rhs, Span: sp, Ty: value.Nothing}
}

// parseConst parses `const $name = expr`, evaluating simple scalar
// literals immediately so the Variable carries a ConstVal (spec.md §4.2
// "Constant evaluation"). A non-literal initializer still declares the
// variable but leaves ConstVal nil, and no diagnostic is recorded for it.
func (p *Parser) parseConst(rest []lexer.Token, headSp span.Span) ast.Expression {
	lhs, rhsToks, ok := splitFirstOperator(rest, "=")
	if !ok || len(lhs) == 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected 'const $name = <expr>'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	nameTok := lhs[0]
	name := strings.TrimPrefix(nameTok.Text, "$")
	rhs := p.parseExprPrec(newCursor(rhsToks), precLowest)
	var constVal *value.Value
	switch rhs.Kind {
	case ast.EInt:
		v := value.MkInt(rhs.Int, rhs.Span)
		constVal = &v
	case ast.EFloat:
		v := value.MkFloat(rhs.Float, rhs.Span)
		constVal = &v
	case ast.EString:
		v := value.MkString(rhs.String, rhs.Span)
		constVal = &v
	case ast.EBool:
		v := value.MkBool(rhs.Bool, rhs.Span)
		constVal = &v
	}
	id := p.declareVar(name, ast.Variable{Name: name, Type: rhs.Ty, ConstVal: constVal, Span: nameTok.Span})
	sp := headSp.Join(rhs.Span)
	return ast.Expression{Kind: ast.EKeyword, Keyword: "const", Var: id, Inner: &rhs, Span: sp, Ty: value.Nothing}
}

// parseDef parses `def name [params] { body }`, filling in the real body of
// the Declaration predeclare() already registered with an empty body
// (spec.md §4.2 "Predeclaration").
func (p *Parser) parseDef(keyword string, rest []lexer.Token, headSp span.Span) ast.Expression {
	if len(rest) == 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected a name after '"+keyword+"'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	nameTok := rest[0]
	name := nameTok.Text
	rest = rest[1:]

	var positional, named []ast.Param
	var restParam *ast.Param
	if len(rest) > 0 && rest[0].Kind == lexer.TOpenBracket {
		c := newCursor(rest)
		inner, _, ok := bracketed(c, lexer.TOpenBracket, lexer.TCloseBracket)
		if ok {
			positional, named, restParam = parseSignatureParams(inner)
		}
		rest = c.rest()
	}

	if len(rest) == 0 || rest[0].Kind != lexer.TOpenBrace {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected a '{' body for def "+name))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	c := newCursor(rest)
	inner, bodySp, ok := bracketed(c, lexer.TOpenBrace, lexer.TCloseBrace)
	if !ok {
		p.errs.Add(diag.New(diag.KindUnbalancedDelimiter, bodySp, "unbalanced '{' in def body"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}

	p.pushScope()
	for i := range positional {
		positional[i].VarId = p.declareVar(positional[i].Name, ast.Variable{Name: positional[i].Name, Type: positional[i].Type, Mutable: true, Span: bodySp})
	}
	for i := range named {
		named[i].VarId = p.declareVar(named[i].Name, ast.Variable{Name: named[i].Name, Type: named[i].Type, Mutable: true, Span: bodySp})
	}
	if restParam != nil {
		restParam.VarId = p.declareVar(restParam.Name, ast.Variable{Name: restParam.Name, Type: value.List(restParam.Type), Mutable: true, Span: bodySp})
	}
	lite := lexer.Group(inner)
	blk := p.parseLiteBlock(lite)
	blk.Span = bodySp
	blk.RedirectEnv = keyword == "def-env"
	p.popScope()

	sig := ast.Signature{Name: name, Positional: positional, Named: named, Rest: restParam}
	blockId := p.ws.AddBlock(blk)
	decl := ast.Declaration{
		Name:      name,
		Signature: sig,
		Body:      ast.DeclBody{Kind: ast.BodyUser, UserBlock: blockId},
		Span:      headSp.Join(bodySp),
	}
	if id, ok := p.ws.ActiveOverlay().Decls[name]; ok {
		p.ws.SetDecl(id, decl)
	} else {
		id := p.ws.AddDecl(decl)
		p.ws.ActiveOverlay().Decls[name] = id
	}
	return ast.Expression{Kind: ast.ENothing, Span: headSp.Join(bodySp), Ty: value.Nothing}
}

// parseSignatureParams parses a def's `[name: type, name?: type, --flag,
// --flag: type, ...rest: type]` parameter list (spec.md §3 Signature). Type
// annotations are a fixed set of primitive type names; `name?` marks an
// optional positional (spec.md §8 scenario 2, `x?: int`), whose missing-
// argument default is Nothing rather than a declared literal default.
func parseSignatureParams(inner []lexer.Token) (positional, named []ast.Param, rest *ast.Param) {
	for _, it := range splitOnCommas(inner) {
		if len(it) == 0 {
			continue
		}
		var buf strings.Builder
		for _, t := range it {
			buf.WriteString(t.Text)
		}
		body := buf.String()

		isNamed := strings.HasPrefix(body, "--")
		isRest := strings.HasPrefix(body, "...")
		switch {
		case isNamed:
			body = strings.TrimPrefix(body, "--")
		case isRest:
			body = strings.TrimPrefix(body, "...")
		}

		name, typeName := body, ""
		if i := strings.IndexByte(body, ':'); i >= 0 {
			name, typeName = body[:i], body[i+1:]
		}
		optional := strings.HasSuffix(name, "?")
		name = strings.TrimSuffix(name, "?")

		p := ast.Param{Name: name, Type: paramTypeFromName(typeName), IsNamed: isNamed}
		switch {
		case isNamed:
			p.IsSwitch = typeName == ""
		case isRest:
			// Required/optional don't apply to the rest slot itself.
		default:
			p.Required = !optional
		}

		switch {
		case isRest:
			rp := p
			rest = &rp
		case isNamed:
			named = append(named, p)
		default:
			positional = append(positional, p)
		}
	}
	return positional, named, rest
}

// paramTypeFromName maps a signature's bare type-name annotation to a
// value.Type; an empty or unrecognised name defaults to Any (spec.md §3
// "Any absorbs everywhere it is annotated").
func paramTypeFromName(name string) value.Type {
	switch name {
	case "int":
		return value.Int
	case "float":
		return value.Float
	case "number":
		return value.Number
	case "string":
		return value.String
	case "bool":
		return value.Bool
	case "filesize":
		return value.Filesize
	case "duration":
		return value.Duration
	case "date":
		return value.Date
	case "glob":
		return value.Glob
	case "binary":
		return value.Binary
	case "cell-path":
		return value.CellPath
	case "closure":
		return value.Closure
	case "block":
		return value.Block
	case "list":
		return value.List(value.Any)
	case "record":
		return value.Record()
	case "table":
		return value.Table()
	default:
		return value.Any
	}
}

// parseExport handles the `export <def|def-env|alias|module|const|use>`
// prefix: export forwards to the inner keyword form, then marks the
// declared name exported in the enclosing module body so parseModule
// knows to copy it into the resulting Module (spec.md §4.4 "Module
// definition": only `export ...` items are visible to importers).
// Outside of any module body this mark is simply a no-op.
func (p *Parser) parseExport(rest []lexer.Token, headSp span.Span) (ast.Expression, bool) {
	if len(rest) == 0 {
		return ast.Expression{}, false
	}
	inner := rest[0].Text
	if !keywordCommands[inner] {
		return ast.Expression{}, false
	}
	expr, ok := p.tryParseKeyword(inner, rest)
	if ok && len(rest) > 1 && rest[1].Kind == lexer.TBareWord {
		p.markExported(rest[1].Text)
	}
	return expr, ok
}

// parseUse parses the four import-pattern forms of spec.md §4.4 "Import
// patterns": bare `use foo` imports every exported item under a "foo "
// prefix; `use foo cmd` imports one exported item unprefixed; `use foo
// [a, b]` imports a set unprefixed; `use foo *` imports everything
// unprefixed and additionally runs the module's `export-env` blocks in
// the importer's scope.
func (p *Parser) parseUse(rest []lexer.Token, headSp span.Span) ast.Expression {
	if len(rest) == 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected a module name after 'use'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	name := rest[0].Text
	modId, ok := p.ws.FindModule(name)
	if !ok {
		p.errs.Add(diag.New(diag.KindModuleNotFound, rest[0].Span, "module not found: "+name))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	mod, ok := p.ws.Module(modId)
	if !ok {
		p.errs.Add(diag.New(diag.KindModuleNotFound, rest[0].Span, "module not found: "+name))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	active := p.ws.ActiveOverlay()
	tail := rest[1:]
	fullSp := headSp.Join(rest[0].Span)

	switch {
	case len(tail) == 0:
		// `use foo`: import the whole module as a "foo cmd" prefix.
		for k, v := range mod.Decls {
			active.Decls[name+" "+k] = v
		}
		for k, v := range mod.Vars {
			active.Vars[name+" "+k] = v
		}
		for k, v := range mod.Modules {
			active.Modules[name+" "+k] = v
		}
		return ast.Expression{Kind: ast.EKeyword, Keyword: "use", Span: fullSp, Ty: value.Nothing}

	case tail[0].Kind == lexer.TBareWord && tail[0].Text == "*":
		// `use foo *`: import every export unprefixed, run export-env.
		for k, v := range mod.Decls {
			active.Decls[k] = v
		}
		for k, v := range mod.Vars {
			active.Vars[k] = v
		}
		for k, v := range mod.Modules {
			active.Modules[k] = v
		}
		return ast.Expression{Kind: ast.EKeyword, Keyword: "use", Span: fullSp.Join(tail[0].Span), Ty: value.Nothing, EnvBlocks: mod.EnvBlocks}

	case tail[0].Kind == lexer.TOpenBracket:
		c := newCursor(tail)
		inner, listSp, bok := bracketed(c, lexer.TOpenBracket, lexer.TCloseBracket)
		if !bok {
			p.errs.Add(diag.New(diag.KindUnbalancedDelimiter, listSp, "unbalanced '[' in use import list"))
			return ast.Expression{Kind: ast.ENothing, Span: fullSp, Ty: value.Nothing}
		}
		for _, grp := range splitOnCommas(inner) {
			if len(grp) == 0 {
				continue
			}
			p.importOne(mod, name, grp[0], active)
		}
		return ast.Expression{Kind: ast.EKeyword, Keyword: "use", Span: fullSp.Join(listSp), Ty: value.Nothing}

	default:
		// `use foo cmd`.
		p.importOne(mod, name, tail[0], active)
		return ast.Expression{Kind: ast.EKeyword, Keyword: "use", Span: fullSp.Join(tail[0].Span), Ty: value.Nothing}
	}
}

// importOne imports a single named item out of mod unprefixed, the shared
// tail of `use foo cmd` and `use foo [a, b]`. Distinguishes "item exists
// but is private" (diag.KindPrivateBinding) from "item does not exist"
// (diag.KindCommandNotFound) using mod.PrivateNames.
func (p *Parser) importOne(mod *ast.Module, modName string, tok lexer.Token, active *engine.Overlay) {
	item := tok.Text
	if id, ok := mod.Decls[item]; ok {
		active.Decls[item] = id
		return
	}
	if id, ok := mod.Vars[item]; ok {
		active.Vars[item] = id
		return
	}
	if id, ok := mod.Modules[item]; ok {
		active.Modules[item] = id
		return
	}
	if mod.PrivateNames[item] {
		p.errs.Add(diag.New(diag.KindPrivateBinding, tok.Span, "private binding: "+modName+" "+item))
		return
	}
	p.errs.Add(diag.New(diag.KindCommandNotFound, tok.Span, "not found in module "+modName+": "+item))
}

// parseHide parses `hide name` / `hide foo cmd` (hiding one name imported
// under prefix `foo`), adding the (possibly space-joined) name to the
// active overlay's hidden set. Hiding the same name twice is an error
// unless `--ignore-errors` is given (spec.md §4.4 "Hiding").
func (p *Parser) parseHide(rest []lexer.Token, headSp span.Span) ast.Expression {
	ignoreErrors := false
	var nameToks []lexer.Token
	for _, t := range rest {
		if t.Kind == lexer.TBareWord && t.Text == "--ignore-errors" {
			ignoreErrors = true
			continue
		}
		nameToks = append(nameToks, t)
	}
	if len(nameToks) == 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected a name after 'hide'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	words := make([]string, len(nameToks))
	sp := headSp
	for i, t := range nameToks {
		words[i] = t.Text
		sp = sp.Join(t.Span)
	}
	name := strings.Join(words, " ")

	hidden := p.ws.ActiveOverlay().Hidden
	if hidden[name] && !ignoreErrors {
		p.errs.Add(diag.New(diag.KindDuplicateDefinition, sp, "already hidden: "+name))
		return ast.Expression{Kind: ast.ENothing, Span: sp, Ty: value.Nothing}
	}
	hidden[name] = true
	return ast.Expression{Kind: ast.EKeyword, Keyword: "hide", Span: sp, Ty: value.Nothing}
}

// parseAlias parses `alias name = expansion...`, registering a Declaration
// whose body splices the parsed expansion call in at call sites (spec.md
// §4.2 "Alias"). The Open Question of self-referential aliases (spec.md
// §9) resolves by resolving the expansion against the name table as it
// stood before this alias's own predeclaration, i.e. plain lexical lookup
// of whatever `name` already means in scope.
func (p *Parser) parseAlias(rest []lexer.Token, headSp span.Span) ast.Expression {
	lhs, rhsToks, ok := splitFirstOperator(rest, "=")
	if !ok || len(lhs) == 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected 'alias name = <expansion>'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	name := lhs[0].Text
	expansion := p.parseCommandToks(rhsToks)
	decl := ast.Declaration{Name: name, Span: headSp}
	if expansion.Kind == ast.ECall {
		decl.Body = ast.DeclBody{Kind: ast.BodyAlias, AliasPrefix: expansion.Call}
	} else {
		decl.Body = ast.DeclBody{Kind: ast.BodyAlias}
	}
	id := p.ws.AddDecl(decl)
	p.ws.ActiveOverlay().Decls[name] = id
	return ast.Expression{Kind: ast.EKeyword, Keyword: "alias", Span: headSp.Join(expansion.Span), Ty: value.Nothing}
}

// parseExportEnv parses `export-env { ... }`: the block runs in the
// importer's scope when `use mod *` brings the enclosing module in
// (spec.md §4.4 "Module definition", "Import patterns"). Outside of a
// module body the parsed block is simply never collected by anything, so
// it has no effect, matching how a bare `use`/`hide` at top level is also
// inert.
func (p *Parser) parseExportEnv(rest []lexer.Token, headSp span.Span) ast.Expression {
	if len(rest) == 0 || rest[0].Kind != lexer.TOpenBrace {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected a '{' body for export-env"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	c := newCursor(rest)
	inner, bodySp, ok := bracketed(c, lexer.TOpenBrace, lexer.TCloseBrace)
	if !ok {
		p.errs.Add(diag.New(diag.KindUnbalancedDelimiter, bodySp, "unbalanced '{' in export-env body"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	p.pushScope()
	lite := lexer.Group(inner)
	blk := p.parseLiteBlock(lite)
	blk.Span = bodySp
	p.popScope()
	blockId := p.ws.AddBlock(blk)
	return ast.Expression{Kind: ast.EKeyword, Keyword: "export-env", Block: blockId, Span: headSp.Join(bodySp), Ty: value.Nothing}
}

// parseModule parses `module name { body }` into a fresh Module: every name
// declared in body is recorded in PrivateNames, the exported defs, variables
// and submodules are collected, and so are the body's export-env blocks
// (spec.md §4.4 "module").
func (p *Parser) parseModule(rest []lexer.Token, headSp span.Span) ast.Expression {
	if len(rest) == 0 || rest[0].Kind != lexer.TBareWord {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected a name after 'module'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	name := rest[0].Text
	rest = rest[1:]
	if len(rest) == 0 || rest[0].Kind != lexer.TOpenBrace {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected a '{' body for module "+name))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	c := newCursor(rest)
	inner, bodySp, ok := bracketed(c, lexer.TOpenBrace, lexer.TCloseBrace)
	if !ok {
		p.errs.Add(diag.New(diag.KindUnbalancedDelimiter, bodySp, "unbalanced '{' in module body"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}

	overlay := p.ws.PushOverlay(name)
	p.pushExports()
	lite := lexer.Group(inner)
	bodyBlk := p.parseLiteBlock(lite)
	exported := p.popExports()

	mod := ast.NewModule(name, headSp.Join(bodySp))
	for k, v := range overlay.Decls {
		mod.PrivateNames[k] = true
		if exported[k] {
			mod.Decls[k] = v
		}
	}
	for k, v := range overlay.Vars {
		mod.PrivateNames[k] = true
		if exported[k] {
			mod.Vars[k] = v
		}
	}
	for k, v := range overlay.Modules {
		mod.PrivateNames[k] = true
		if exported[k] {
			mod.Modules[k] = v
		}
	}
	for _, pipe := range bodyBlk.Pipelines {
		for _, el := range pipe.Elements {
			if el.Expr.Kind == ast.EKeyword && el.Expr.Keyword == "export-env" {
				mod.EnvBlocks = append(mod.EnvBlocks, el.Expr.Block)
			}
		}
	}
	p.ws.PopOverlay(name)

	modId := p.ws.AddModule(mod)
	p.ws.ActiveOverlay().Modules[name] = modId
	return ast.Expression{Kind: ast.EKeyword, Keyword: "module", Span: headSp.Join(bodySp), Ty: value.Nothing}
}

// parseOverlay parses `overlay use name` / `overlay hide name` (spec.md
// §4.4).
func (p *Parser) parseOverlay(rest []lexer.Token, headSp span.Span) ast.Expression {
	if len(rest) < 2 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected 'overlay use|hide <name>'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	sub, name := rest[0].Text, rest[1].Text
	switch sub {
	case "use":
		p.ws.PushOverlay(name)
	case "hide":
		p.ws.PopOverlay(name)
	default:
		p.errs.Add(diag.New(diag.KindExpectedShape, rest[0].Span, "expected 'use' or 'hide' after 'overlay'"))
	}
	return ast.Expression{Kind: ast.EKeyword, Keyword: "overlay", Span: headSp.Join(rest[1].Span), Ty: value.Nothing}
}

// parseIf parses `if cond { then } [else (if cond2 {..} | { else })]`,
// lowered into an EMatchBlock with no scrutinee: each arm's Guard carries
// the branch condition (an ENothing guard on the trailing else), matching the
// evaluator's "first true guard wins" match semantics (spec.md §4.3 "if").
func (p *Parser) parseIf(rest []lexer.Token, headSp span.Span) ast.Expression {
	braceIdx := firstTopLevelBrace(rest)
	if braceIdx < 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected '{' after if condition"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	condToks, bodyToks := rest[:braceIdx], rest[braceIdx:]
	cond := p.parseExprPrec(newCursor(condToks), precLowest)
	thenExpr := p.parseBraceForm(newCursor(bodyToks))

	// Guard absence is marked with an ENothing sentinel expression rather
	// than a nil/zero Expression, since EBool's zero value (false) would
	// otherwise be indistinguishable from a real literal-false guard.
	noGuard := ast.Expression{Kind: ast.ENothing, Ty: value.Nothing}
	arms := []ast.MatchArm{{Guard: cond, Body: thenExpr, Pattern: ast.Pattern{Kind: ast.PatWildcard}}}
	sp := headSp.Join(thenExpr.Span)

	c := newCursor(bodyToks)
	bracketed(c, lexer.TOpenBrace, lexer.TCloseBrace)
	if c.peek().Kind == lexer.TBareWord && c.peek().Text == "else" {
		elseTok := c.next()
		sp = sp.Join(elseTok.Span)
		elseRest := c.rest()
		if len(elseRest) > 0 && elseRest[0].Kind == lexer.TBareWord && elseRest[0].Text == "if" {
			nested := p.parseIf(elseRest[1:], elseTok.Span)
			sp = sp.Join(nested.Span)
			arms = append(arms, nested.Arms...)
		} else {
			elseExpr := p.parseBraceForm(newCursor(elseRest))
			sp = sp.Join(elseExpr.Span)
			arms = append(arms, ast.MatchArm{Guard: noGuard, Body: elseExpr, Pattern: ast.Pattern{Kind: ast.PatWildcard}})
		}
	}
	return ast.Expression{Kind: ast.EMatchBlock, Arms: arms, Span: sp, Ty: value.Any}
}

// parseFor parses `for $x in iterable { body }` (spec.md §4.3 "for").
func (p *Parser) parseFor(rest []lexer.Token, headSp span.Span) ast.Expression {
	varToks, afterVar, ok := splitFirstBareword(rest, "in")
	if !ok || len(varToks) == 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected 'for $x in <expr> { body }'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	name := strings.TrimPrefix(varToks[0].Text, "$")
	braceIdx := firstTopLevelBrace(afterVar)
	if braceIdx < 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected '{' body after 'for ... in ...'"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	iterToks, bodyToks := afterVar[:braceIdx], afterVar[braceIdx:]
	iterable := p.parseExprPrec(newCursor(iterToks), precLowest)

	p.pushScope()
	loopVar := p.declareVar(name, ast.Variable{Name: name, Type: value.Any, Mutable: true, Span: varToks[0].Span})
	body := p.parseBraceForm(newCursor(bodyToks))
	p.popScope()

	return ast.Expression{Kind: ast.EKeyword, Keyword: "for", Var: loopVar, Inner: &iterable, Block: body.Block, Span: headSp.Join(body.Span), Ty: value.Nothing}
}

// parseMatch parses `match scrutinee { pattern [if guard] => body ... }`
// (spec.md §4.3 "match").
func (p *Parser) parseMatch(rest []lexer.Token, headSp span.Span) ast.Expression {
	braceIdx := firstTopLevelBrace(rest)
	if braceIdx < 0 {
		p.errs.Add(diag.New(diag.KindExpectedShape, headSp, "expected '{' after match scrutinee"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}
	scrutineeToks, bodyToks := rest[:braceIdx], rest[braceIdx:]
	scrutinee := p.parseExprPrec(newCursor(scrutineeToks), precLowest)

	c := newCursor(bodyToks)
	inner, bodySp, ok := bracketed(c, lexer.TOpenBrace, lexer.TCloseBrace)
	if !ok {
		p.errs.Add(diag.New(diag.KindUnbalancedDelimiter, bodySp, "unbalanced '{' in match body"))
		return ast.Expression{Kind: ast.ENothing, Span: headSp, Ty: value.Nothing}
	}

	lite := lexer.Group(inner)
	var arms []ast.MatchArm
	for _, lp := range lite.Pipelines {
		for _, cmd := range lp.Commands {
			armToks, bodyExprToks, found := splitFirstBareword(cmd.Parts, "=>")
			if !found {
				continue
			}
			patToks, guardToks, hasGuard := splitFirstBareword(armToks, "if")
			p.pushScope()
			pat := p.parsePattern(patToks)
			guard := ast.Expression{Kind: ast.ENothing, Ty: value.Nothing}
			if hasGuard {
				guard = p.parseExprPrec(newCursor(guardToks), precLowest)
			}
			body := p.parseCommandToks(bodyExprToks)
			p.popScope()
			arms = append(arms, ast.MatchArm{Pattern: pat, Guard: guard, Body: body})
		}
	}
	sp := headSp.Join(bodySp)
	return ast.Expression{Kind: ast.EMatchBlock, Scrutinee: &scrutinee, Arms: arms, Span: sp, Ty: value.Any}
}

// parsePattern parses one match-arm pattern: a literal, `_` wildcard, a
// plain identifier (variable bind), a `[a, b, ..rest]` list pattern, a
// `{k: pat, ...}` record pattern, or `p1 | p2` alternatives (spec.md §4.3
// "match" patterns).
func (p *Parser) parsePattern(toks []lexer.Token) ast.Pattern {
	if len(toks) == 0 {
		return ast.Pattern{Kind: ast.PatWildcard}
	}
	if alts := splitOnTopLevelBar(toks); len(alts) > 1 {
		var pats []ast.Pattern
		for _, a := range alts {
			pats = append(pats, p.parsePattern(a))
		}
		return ast.Pattern{Kind: ast.PatOr, Or: pats}
	}
	tok := toks[0]
	switch tok.Kind {
	case lexer.TOpenBracket:
		c := newCursor(toks)
		inner, sp, _ := bracketed(c, lexer.TOpenBracket, lexer.TCloseBracket)
		var items []ast.Pattern
		restName := ""
		hasRest := false
		for _, it := range splitOnCommas(inner) {
			if len(it) == 0 {
				continue
			}
			if it[0].Kind == lexer.TBareWord && strings.HasPrefix(it[0].Text, "..") {
				hasRest = true
				restName = strings.TrimPrefix(it[0].Text, "..")
				continue
			}
			items = append(items, p.parsePattern(it))
			}
			restVarId := ast.NoVar
			if hasRest && restName != "" {
				restVarId = p.declareVar(restName, ast.Variable{Name: restName, Type: value.Any, Span: sp})
			}
			return ast.Pattern{Kind: ast.PatList, Items: items, HasRest: hasRest, RestName: restName, RestVarId: restVarId, Span: sp}
	case lexer.TOpenBrace:
		c := newCursor(toks)
		inner, sp, _ := bracketed(c, lexer.TOpenBrace, lexer.TCloseBrace)
		var fields []ast.PatternField
		for _, it := range splitOnCommas(inner) {
			if len(it) < 2 {
				continue
			}
			fields = append(fields, ast.PatternField{Name: it[0].Text, Pattern: p.parsePattern(it[2:])})
		}
		return ast.Pattern{Kind: ast.PatRecord, Fields: fields, Span: sp}
	case lexer.TBareWord:
		if tok.Text == "_" {
			return ast.Pattern{Kind: ast.PatWildcard, Span: tok.Span}
		}
		if tok.Text == "true" || tok.Text == "false" {
			return ast.Pattern{Kind: ast.PatLiteral, Literal: ast.Expression{Kind: ast.EBool, Bool: tok.Text == "true", Ty: value.Bool, Span: tok.Span}, Span: tok.Span}
		}
		if !strings.HasPrefix(tok.Text, "$") && len(toks) == 1 {
			id := p.declareVar(tok.Text, ast.Variable{Name: tok.Text, Type: value.Any, Span: tok.Span})
			return ast.Pattern{Kind: ast.PatVarBind, VarName: tok.Text, VarId: id, Span: tok.Span}
		}
	}
	lit := p.parseExprPrec(newCursor(toks), precLowest)
	return ast.Pattern{Kind: ast.PatLiteral, Literal: lit, Span: lit.Span}
}

// splitOnTopLevelBar splits toks on bracket-depth-0 "|" pipe tokens, used
// for or-patterns. Note this is the same glyph the lexer also uses for
// pipeline separators, but lite.Group already consumed those; any "|" left
// inside a match arm's token run was inside brackets, i.e. here at the
// pattern level it unambiguously means an or-pattern.
func splitOnTopLevelBar(toks []lexer.Token) [][]lexer.Token {
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
		if depth == 0 && t.Kind == lexer.TPipe {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	return groups
}
