package ast

import (
	"github.com/shellcore/shellcore/internal/span"
)

// BodyKind tags which of the five DeclBody variants a Declaration carries
// (spec.md §3, §9 "Dynamic dispatch over command kinds").
type BodyKind int

const (
	BodyBuiltin BodyKind = iota
	BodyUser
	BodyAlias
	BodyKnownExternal
	BodyPlugin // known-external signature shape shared by plugins, per
	// original_source/crates/nu_plugin_query; plugin IPC transport itself
	// stays out of scope.
)

// BuiltinFunc is the opaque host-implemented function pointer a built-in
// Declaration carries. It is invoked by the evaluator with the same
// (engine, stack, call, input) shape as a user Block, but through an
// interface boundary so the core never depends on individual command
// implementations (spec.md §1 Non-goals).
type BuiltinFunc func(ctx BuiltinContext) (interface{}, error)

// BuiltinContext is the minimal context a BuiltinFunc needs; concretely
// implemented by internal/eval so internal/ast has no evaluator
// dependency.
type BuiltinContext interface {
	Arg(name string) (interface{}, bool)
	Positional(i int) (interface{}, bool)
	Input() interface{}
}

// DeclBody is one of builtin / user / alias / known-external / plugin
// (spec.md §3 Declaration, §9 Dynamic dispatch).
type DeclBody struct {
	Kind BodyKind

	// BodyBuiltin
	Builtin BuiltinFunc

	// BodyUser
	UserBlock   BlockId
	ParentScope ModuleId

	// BodyAlias: a parsed call prefix spliced in at call sites.
	AliasPrefix *Call

	// BodyKnownExternal / BodyPlugin: an external program (or plugin) with
	// a declared signature but no body the core evaluates directly.
	ExternalPath string
}

// Declaration is a named command (spec.md §3).
type Declaration struct {
	Name       string
	Signature  Signature
	Body       DeclBody
	Usage      string
	ExtraUsage string
	Span       span.Span
	IsConst    bool
}

// Module is a named collection of exported items (spec.md §4.4). Only
// `export def`/`export def-env`/`export alias`/`export const`/`export
// module` items land in Decls/Vars/Modules; a plain `def`/`alias`/`const`/
// `module` inside the body is visible to sibling definitions in the same
// body (via the module's own parse-time overlay) but never reaches here.
type Module struct {
	Name    string
	Decls   map[string]DeclId
	Vars    map[string]VarId
	Modules map[string]ModuleId
	// PrivateNames records every def/alias/const/module name declared in
	// the body, exported or not, so a targeted import (`use mod item`)
	// can tell "item is private" (diag.KindPrivateBinding) apart from
	// "item does not exist" (diag.KindCommandNotFound).
	PrivateNames map[string]bool
	// EnvBlocks are `export-env { ... }` block ids run in the importer's
	// scope on `use mod *`.
	EnvBlocks []BlockId
	Span      span.Span
}

// NewModule returns an empty Module named name.
func NewModule(name string, sp span.Span) *Module {
	return &Module{
		Name:         name,
		Decls:        map[string]DeclId{},
		Vars:         map[string]VarId{},
		Modules:      map[string]ModuleId{},
		PrivateNames: map[string]bool{},
		Span:         sp,
	}
}
