// Package stdcmd implements the builtin command set named in spec.md §4.7:
// a fixed table of host-provided Declarations registered into an
// engine.WorkingSet the same way a parsed `def` registers a user command,
// so the evaluator's call dispatch in internal/eval/call.go never
// special-cases a builtin by name.
package stdcmd

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/engine"
)

// builtin bundles a command's name with the Declaration it registers.
type builtin struct {
	name string
	decl ast.Declaration
}

// Register installs every builtin command into ws, following the same
// name -> id registration parseDef uses for a `def`: AddDecl appends the
// Declaration to the delta and returns its id, then the id is recorded
// into the active overlay's Decls map so FindDecl can resolve the name
// (internal/parser/keyword.go parseDef, internal/engine/workingset.go
// AddDecl/ActiveOverlay). Callers typically call this once against a
// WorkingSet opened over a fresh engine.State before any user parsing, per
// spec.md §9 "construct empty -> register builtins -> parse/merge deltas
// -> evaluate".
func Register(ws *engine.WorkingSet) {
	for _, b := range allBuiltins() {
		id := ws.AddDecl(b.decl)
		ws.ActiveOverlay().Decls[b.name] = id
	}
}

func allBuiltins() []builtin {
	var out []builtin
	out = append(out, listBuiltins()...)
	out = append(out, iterBuiltins()...)
	out = append(out, mathBuiltins()...)
	out = append(out, dateBuiltins()...)
	out = append(out, controlBuiltins()...)
	return out
}

// decl is a small constructor shared by every builtin file: it fills in
// the Name/Usage/Span-bearing fields a Declaration needs around the
// Signature and BuiltinFunc each command supplies.
func decl(name, usage string, sig ast.Signature, fn ast.BuiltinFunc) ast.Declaration {
	sig.Name = name
	sig.Usage = usage
	return ast.Declaration{
		Name:      name,
		Signature: sig,
		Usage:     usage,
		Body:      ast.DeclBody{Kind: ast.BodyBuiltin, Builtin: fn},
	}
}
