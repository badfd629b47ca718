package engine

import "github.com/shellcore/shellcore/internal/ast"

// Overlay is a named lexical scope layered on the engine's overlay stack
// (spec.md §3, §4.4). Later overlays shadow earlier ones; a HiddenSet
// suppresses names the overlay would otherwise inherit.
type Overlay struct {
	Name    string
	Decls   map[string]ast.DeclId
	Vars    map[string]ast.VarId
	Modules map[string]ast.ModuleId
	Hidden  map[string]bool
}

// NewOverlay returns an empty overlay named name.
func NewOverlay(name string) *Overlay {
	return &Overlay{
		Name:    name,
		Decls:   map[string]ast.DeclId{},
		Vars:    map[string]ast.VarId{},
		Modules: map[string]ast.ModuleId{},
		Hidden:  map[string]bool{},
	}
}

// Clone returns a deep-enough copy of o suitable for a WorkingSet delta
// frame: map contents are copied so mutation during parsing doesn't affect
// the base EngineState's overlay until merge.
func (o *Overlay) Clone() *Overlay {
	n := NewOverlay(o.Name)
	for k, v := range o.Decls {
		n.Decls[k] = v
	}
	for k, v := range o.Vars {
		n.Vars[k] = v
	}
	for k, v := range o.Modules {
		n.Modules[k] = v
	}
	for k, v := range o.Hidden {
		n.Hidden[k] = v
	}
	return n
}
