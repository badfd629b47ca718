package eval

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/value"
)

// Stack is the evaluator's dynamic variable/environment binding frame. It
// chains to an ancestor frame the same way breadchris-yaegi's frame.anc
// chains a call's frame back to its defining scope, so a lookup walks
// outward until it finds the id or runs off the root (spec.md §4.3 "Stack
// frames").
type Stack struct {
	anc   *Stack
	vars  map[ast.VarId]value.Value
	env   value.Record
	depth int
}

// NewStack returns a fresh root frame with an empty environment.
func NewStack() *Stack {
	return &Stack{vars: map[ast.VarId]value.Value{}}
}

// Child returns a new frame for a nested call or block body, inheriting
// the caller's environment by value: `def-env` mutations are merged back
// explicitly by callUser calling SetEnv rather than being visible
// automatically (spec.md §4.3 "Environment").
func (s *Stack) Child() *Stack {
	return &Stack{anc: s, vars: map[ast.VarId]value.Value{}, env: s.env, depth: s.depth + 1}
}

// Depth returns how many Child calls separate this frame from its root;
// user-def calls, block bodies, `for` bodies and match arms each add one.
func (s *Stack) Depth() int { return s.depth }

// Get resolves id by walking the ancestor chain outward.
func (s *Stack) Get(id ast.VarId) (value.Value, bool) {
	for f := s; f != nil; f = f.anc {
		if v, ok := f.vars[id]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}

// Set binds id to v in this frame specifically (shadowing an ancestor's
// binding of the same id is not meaningful here since ids are unique per
// declaration site, but Set never writes through to an ancestor frame).
func (s *Stack) Set(id ast.VarId, v value.Value) { s.vars[id] = v }

// Env returns the frame's current environment record.
func (s *Stack) Env() value.Record { return s.env }

// SetEnv replaces the frame's environment record wholesale, used by
// `def-env` call evaluation to merge a callee's mutated environment back
// into the caller (spec.md §4.3 "def-env").
func (s *Stack) SetEnv(r value.Record) { s.env = r }

// Clone copies this frame's own bindings (not its ancestors') into a
// detached frame with the same ancestor pointer, matching yaegi's
// frame.clone. Closure construction (buildClosure) and par-each workers do
// not use it: they copy captured bindings into a fresh NewStack frame.
func (s *Stack) Clone() *Stack {
	n := &Stack{anc: s.anc, env: s.env}
	n.vars = make(map[ast.VarId]value.Value, len(s.vars))
	for k, v := range s.vars {
		n.vars[k] = v
	}
	return n
}
