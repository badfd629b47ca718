// Package engine implements the compact engine state described in
// spec.md §3/§4.4: a persistent, snapshot/delta-structured symbol table of
// declarations, variables, modules, blocks and captured source files, plus
// the overlay stack that implements `use`/`hide`/`export`.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/span"
)

// State is the process-wide symbol table (spec.md §3 EngineState, §9
// "Global state"). It grows monotonically within a session: merge_delta
// only appends, never rewrites existing entries, so DeclId/VarId/ModuleId/
// BlockId handed out earlier remain valid forever (spec.md §8 "DeclId
// stability").
type State struct {
	mu sync.RWMutex

	decls   []ast.Declaration
	vars    []ast.Variable
	modules []*ast.Module
	blocks  []*ast.Block

	files *span.Registry

	overlays       []*Overlay
	activeOverlay  int // index into overlays of the overlay new defs land in
	overlayIndexOf map[string]int

	cancelFlag atomic.Bool
}

// New returns an empty engine State with a single "zero" overlay active,
// matching the lifecycle of spec.md §9 ("construct empty -> register
// builtins -> parse/merge deltas -> evaluate").
func New() *State {
	s := &State{
		files:          span.NewRegistry(),
		overlayIndexOf: map[string]int{},
	}
	s.pushOverlayLocked(NewOverlay("zero"))
	return s
}

func (s *State) pushOverlayLocked(o *Overlay) {
	s.overlayIndexOf[o.Name] = len(s.overlays)
	s.overlays = append(s.overlays, o)
	s.activeOverlay = len(s.overlays) - 1
}

// Files returns the engine's append-only file registry.
func (s *State) Files() *span.Registry { return s.files }

// Cancel returns whether the cancellation flag is set (spec.md §5).
func (s *State) Cancel() bool { return s.cancelFlag.Load() }

// SetCancel sets or clears the cancellation flag; called by the host in
// response to SIGINT or its equivalent.
func (s *State) SetCancel(v bool) { s.cancelFlag.Store(v) }

// Decl returns the Declaration for id.
func (s *State) Decl(id ast.DeclId) (ast.Declaration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.decls) {
		return ast.Declaration{}, false
	}
	return s.decls[id], true
}

// Var returns the Variable for id.
func (s *State) Var(id ast.VarId) (ast.Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.vars) {
		return ast.Variable{}, false
	}
	return s.vars[id], true
}

// Module returns the Module for id.
func (s *State) Module(id ast.ModuleId) (*ast.Module, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.modules) {
		return nil, false
	}
	return s.modules[id], true
}

// Block returns the Block for id.
func (s *State) Block(id ast.BlockId) (*ast.Block, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.blocks) {
		return nil, false
	}
	return s.blocks[id], true
}

// NumDecls, NumVars, NumModules, NumBlocks report current counts, used by a
// WorkingSet to know where its delta appends begin.
func (s *State) NumDecls() int   { s.mu.RLock(); defer s.mu.RUnlock(); return len(s.decls) }
func (s *State) NumVars() int    { s.mu.RLock(); defer s.mu.RUnlock(); return len(s.vars) }
func (s *State) NumModules() int { s.mu.RLock(); defer s.mu.RUnlock(); return len(s.modules) }
func (s *State) NumBlocks() int  { s.mu.RLock(); defer s.mu.RUnlock(); return len(s.blocks) }

// ActiveOverlayName returns the name of the overlay new definitions land
// in.
func (s *State) ActiveOverlayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlays[s.activeOverlay].Name
}

// Overlays returns the overlay stack, topmost (most recently activated)
// last, matching the "later overlays shadow earlier ones" rule.
func (s *State) Overlays() []*Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Overlay{}, s.overlays...)
}

// FindDecl resolves name against the overlay stack top-down, skipping any
// overlay that hides it, matching spec.md §8's "Overlay shadowing"
// invariant. removedOverlays lets a caller exclude specific overlay names
// from the search (spec.md §6 Host API find_decl).
func (s *State) FindDecl(name string, removedOverlays map[string]bool) (ast.DeclId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.overlays) - 1; i >= 0; i-- {
		o := s.overlays[i]
		if removedOverlays[o.Name] {
			continue
		}
		if o.Hidden[name] {
			continue
		}
		if id, ok := o.Decls[name]; ok {
			return id, true
		}
	}
	return ast.NoDecl, false
}

// FindVar resolves a name against the overlay stack the same way FindDecl
// does. Lexical (block-local) variable resolution is handled separately by
// WorkingSet scopes, not by overlays (spec.md §4.2 "Name resolution").
func (s *State) FindVar(name string) (ast.VarId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.overlays) - 1; i >= 0; i-- {
		o := s.overlays[i]
		if o.Hidden[name] {
			continue
		}
		if id, ok := o.Vars[name]; ok {
			return id, true
		}
	}
	return ast.NoVar, false
}

// FindModule resolves a module name against the overlay stack.
func (s *State) FindModule(name string) (ast.ModuleId, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.overlays) - 1; i >= 0; i-- {
		o := s.overlays[i]
		if o.Hidden[name] {
			continue
		}
		if id, ok := o.Modules[name]; ok {
			return id, true
		}
	}
	return ast.NoModule, false
}

// ActivateOverlay pushes (or re-raises to the top) the named overlay,
// implementing `overlay use name` (spec.md §4.4).
func (s *State) ActivateOverlay(name string) *Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.overlayIndexOf[name]; ok {
		o := s.overlays[i]
		s.overlays = append(append(s.overlays[:i], s.overlays[i+1:]...), o)
		s.reindexOverlaysLocked()
		s.activeOverlay = len(s.overlays) - 1
		return o
	}
	o := NewOverlay(name)
	s.pushOverlayLocked(o)
	return o
}

// RemoveOverlay pops the named overlay off the stack, implementing
// `overlay hide name` (spec.md §4.4). It is a no-op if the overlay isn't
// present.
func (s *State) RemoveOverlay(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.overlayIndexOf[name]
	if !ok {
		return
	}
	s.overlays = append(s.overlays[:i], s.overlays[i+1:]...)
	s.reindexOverlaysLocked()
	if s.activeOverlay >= len(s.overlays) {
		s.activeOverlay = len(s.overlays) - 1
	}
}

func (s *State) reindexOverlaysLocked() {
	s.overlayIndexOf = map[string]int{}
	for i, o := range s.overlays {
		s.overlayIndexOf[o.Name] = i
	}
}
