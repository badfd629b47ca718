// Package ast defines the typed AST produced by the parser: Declarations,
// Signatures, Blocks, Pipelines and Expressions, all cross-referencing each
// other through dense integer ids rather than pointers (spec.md §3, §9
// "Cyclic references").
package ast

// DeclId, VarId, ModuleId, BlockId and FileId are dense indices into the
// parallel arrays held by engine.State. Using ids instead of pointers lets
// cyclic references (mutually recursive defs, closures capturing their own
// enclosing def) exist without reference counting or cycle detection.
type (
	DeclId   uint32
	VarId    uint32
	ModuleId uint32
	BlockId  uint32
	FileId   uint32
)

// NoDecl etc. are sentinel "absent" ids, analogous to a nil pointer.
const (
	NoDecl   DeclId   = ^DeclId(0)
	NoVar    VarId    = ^VarId(0)
	NoModule ModuleId = ^ModuleId(0)
	NoBlock  BlockId  = ^BlockId(0)
)
