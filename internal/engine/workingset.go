package engine

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/span"
)

// Delta holds everything a WorkingSet accumulated during one parse: new
// declarations/variables/modules/blocks appended after the base State's
// counts, plus the overlay frame as it stood at the end of parsing
// (spec.md §3 WorkingSet, §4.4).
type Delta struct {
	baseDecls, baseVars, baseModules, baseBlocks int

	Decls   []ast.Declaration
	Vars    []ast.Variable
	Modules []*ast.Module
	Blocks  []*ast.Block

	// Overlays is the full overlay stack as it existed at the end of
	// parsing (new overlays are appended wholesale; existing overlays
	// carry their updated Decls/Vars/Modules/Hidden maps).
	Overlays []*Overlay
}

// WorkingSet is a mutable delta layered over an immutable State snapshot;
// all parsing writes here, then is merged atomically via MergeDelta
// (spec.md §3 WorkingSet, §5 "Shared resources").
type WorkingSet struct {
	base *State

	decls   []ast.Declaration
	vars    []ast.Variable
	modules []*ast.Module
	blocks  []*ast.Block

	// overlays is a working copy of base's overlay stack; parsing may
	// push/pop/mutate it freely before a merge.
	overlays      []*Overlay
	activeOverlay int

	// Errors accumulates parser diagnostics across the parse; the parser
	// never aborts on error (spec.md §4.2 "Parser never throws").
	Errors []error
}

// NewWorkingSet opens a WorkingSet over base, cloning base's current
// overlay stack so lexical use/hide scratch during parsing doesn't touch
// base until MergeDelta.
func NewWorkingSet(base *State) *WorkingSet {
	base.mu.RLock()
	defer base.mu.RUnlock()
	ws := &WorkingSet{base: base, activeOverlay: base.activeOverlay}
	for _, o := range base.overlays {
		ws.overlays = append(ws.overlays, o.Clone())
	}
	return ws
}

// NumDecls etc. return the *total* count (base + delta so far), so newly
// minted ids keep counting up from wherever the base snapshot left off.
func (ws *WorkingSet) NumDecls() int   { return ws.base.NumDecls() + len(ws.decls) }
func (ws *WorkingSet) NumVars() int    { return ws.base.NumVars() + len(ws.vars) }
func (ws *WorkingSet) NumModules() int { return ws.base.NumModules() + len(ws.modules) }
func (ws *WorkingSet) NumBlocks() int  { return ws.base.NumBlocks() + len(ws.blocks) }

// AddDecl appends a new Declaration and returns its id.
func (ws *WorkingSet) AddDecl(d ast.Declaration) ast.DeclId {
	id := ast.DeclId(ws.NumDecls())
	ws.decls = append(ws.decls, d)
	return id
}

// SetDecl overwrites the Declaration at id, which must belong to this
// WorkingSet's delta (not the base snapshot). It is how predeclaration
// (spec.md §4.2 "Predeclaration") fills in a `def`'s real body once parsed,
// after an empty-bodied placeholder was registered so sibling defs in the
// same block could forward-reference it.
func (ws *WorkingSet) SetDecl(id ast.DeclId, d ast.Declaration) {
	i := int(id) - ws.base.NumDecls()
	if i < 0 || i >= len(ws.decls) {
		panic("engine: SetDecl on an id outside this WorkingSet's delta")
	}
	ws.decls[i] = d
}

// AddVariable appends a new Variable and returns its id.
func (ws *WorkingSet) AddVariable(v ast.Variable) ast.VarId {
	id := ast.VarId(ws.NumVars())
	ws.vars = append(ws.vars, v)
	return id
}

// AddModule appends a new Module and returns its id.
func (ws *WorkingSet) AddModule(m *ast.Module) ast.ModuleId {
	id := ast.ModuleId(ws.NumModules())
	ws.modules = append(ws.modules, m)
	return id
}

// AddBlock appends a new Block and returns its id.
func (ws *WorkingSet) AddBlock(b *ast.Block) ast.BlockId {
	id := ast.BlockId(ws.NumBlocks())
	ws.blocks = append(ws.blocks, b)
	return id
}

// AddFile registers new source bytes directly against the base State's
// append-only FileRegistry: file bytes are never part of the rollback-able
// delta since a discarded scoped parse still needs stable spans into
// whatever it already lexed (spec.md §3 "Spans live forever").
func (ws *WorkingSet) AddFile(path string, bytes []byte) (ast.FileId, span.Span) {
	id, covered := ws.base.files.AddFile(path, bytes)
	return ast.FileId(id), covered
}

// Decl resolves id, checking the delta first then falling back to base.
func (ws *WorkingSet) Decl(id ast.DeclId) (ast.Declaration, bool) {
	base := ws.base.NumDecls()
	if int(id) < base {
		return ws.base.Decl(id)
	}
	i := int(id) - base
	if i < 0 || i >= len(ws.decls) {
		return ast.Declaration{}, false
	}
	return ws.decls[i], true
}

// Var resolves id the same way Decl does.
func (ws *WorkingSet) Var(id ast.VarId) (ast.Variable, bool) {
	base := ws.base.NumVars()
	if int(id) < base {
		return ws.base.Var(id)
	}
	i := int(id) - base
	if i < 0 || i >= len(ws.vars) {
		return ast.Variable{}, false
	}
	return ws.vars[i], true
}

// Module resolves id the same way Decl does.
func (ws *WorkingSet) Module(id ast.ModuleId) (*ast.Module, bool) {
	base := ws.base.NumModules()
	if int(id) < base {
		return ws.base.Module(id)
	}
	i := int(id) - base
	if i < 0 || i >= len(ws.modules) {
		return nil, false
	}
	return ws.modules[i], true
}

// Block resolves id the same way Decl does.
func (ws *WorkingSet) Block(id ast.BlockId) (*ast.Block, bool) {
	base := ws.base.NumBlocks()
	if int(id) < base {
		return ws.base.Block(id)
	}
	i := int(id) - base
	if i < 0 || i >= len(ws.blocks) {
		return nil, false
	}
	return ws.blocks[i], true
}

// ActiveOverlay returns the overlay new definitions are currently recorded
// into.
func (ws *WorkingSet) ActiveOverlay() *Overlay { return ws.overlays[ws.activeOverlay] }

// PushOverlay activates (or re-raises) the named overlay within this
// WorkingSet, implementing `overlay use`/`use` prefixing at parse time.
func (ws *WorkingSet) PushOverlay(name string) *Overlay {
	for i, o := range ws.overlays {
		if o.Name == name {
			ws.overlays = append(append(ws.overlays[:i], ws.overlays[i+1:]...), o)
			ws.activeOverlay = len(ws.overlays) - 1
			return o
		}
	}
	o := NewOverlay(name)
	ws.overlays = append(ws.overlays, o)
	ws.activeOverlay = len(ws.overlays) - 1
	return o
}

// PopOverlay removes the named overlay from this WorkingSet's stack,
// implementing `overlay hide`.
func (ws *WorkingSet) PopOverlay(name string) {
	for i, o := range ws.overlays {
		if o.Name == name {
			ws.overlays = append(ws.overlays[:i], ws.overlays[i+1:]...)
			if ws.activeOverlay >= len(ws.overlays) {
				ws.activeOverlay = len(ws.overlays) - 1
			}
			return
		}
	}
}

// FindDecl resolves name top-down across this WorkingSet's overlay stack.
func (ws *WorkingSet) FindDecl(name string) (ast.DeclId, bool) {
	for i := len(ws.overlays) - 1; i >= 0; i-- {
		o := ws.overlays[i]
		if o.Hidden[name] {
			continue
		}
		if id, ok := o.Decls[name]; ok {
			return id, true
		}
	}
	return ast.NoDecl, false
}

// FindVar resolves name top-down across this WorkingSet's overlay stack.
func (ws *WorkingSet) FindVar(name string) (ast.VarId, bool) {
	for i := len(ws.overlays) - 1; i >= 0; i-- {
		o := ws.overlays[i]
		if o.Hidden[name] {
			continue
		}
		if id, ok := o.Vars[name]; ok {
			return id, true
		}
	}
	return ast.NoVar, false
}

// FindModule resolves name top-down across this WorkingSet's overlay
// stack.
func (ws *WorkingSet) FindModule(name string) (ast.ModuleId, bool) {
	for i := len(ws.overlays) - 1; i >= 0; i-- {
		o := ws.overlays[i]
		if o.Hidden[name] {
			continue
		}
		if id, ok := o.Modules[name]; ok {
			return id, true
		}
	}
	return ast.NoModule, false
}

// RenderDelta packages everything accumulated in ws into a Delta ready for
// MergeDelta.
func (ws *WorkingSet) RenderDelta() *Delta {
	return &Delta{
		baseDecls:   ws.base.NumDecls(),
		baseVars:    ws.base.NumVars(),
		baseModules: ws.base.NumModules(),
		baseBlocks:  ws.base.NumBlocks(),
		Decls:       ws.decls,
		Vars:        ws.vars,
		Modules:     ws.modules,
		Blocks:      ws.blocks,
		Overlays:    ws.overlays,
	}
}

// MergeDelta promotes a rendered Delta into the base EngineState: appended
// entries become part of the base with identical indices (spec.md §3
// "merge_delta", §8 "DeclId stability"). It is the host's responsibility to
// serialise concurrent parses so only one MergeDelta runs against a given
// State at a time (spec.md §5 "Shared resources").
func (s *State) MergeDelta(d *Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.baseDecls != len(s.decls) || d.baseVars != len(s.vars) ||
		d.baseModules != len(s.modules) || d.baseBlocks != len(s.blocks) {
		// Another merge landed first; appended ids from this delta would
		// collide. A language-neutral host is expected to serialise
		// parses (spec.md §5), so this only fires on a host bug.
		panic("engine: stale WorkingSet merged after a concurrent merge_delta")
	}
	s.decls = append(s.decls, d.Decls...)
	s.vars = append(s.vars, d.Vars...)
	s.modules = append(s.modules, d.Modules...)
	s.blocks = append(s.blocks, d.Blocks...)
	s.overlays = d.Overlays
	s.reindexOverlaysLocked()
	if s.activeOverlay >= len(s.overlays) {
		s.activeOverlay = len(s.overlays) - 1
	}
}
