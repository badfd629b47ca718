package engine

import (
	"github.com/shellcore/shellcore/internal/ast"
	"github.com/shellcore/shellcore/internal/span"
)

// Query exposes the narrow EngineState surface external renderers (LSP,
// CLI) need for hover/completion/symbols/goto-def (spec.md §6), without the
// core depending on the LSP server itself (spec.md §1 Non-goals). Grounded
// on the query shape of original_source/crates/nu-lsp/src/{goto,hints,symbols}.rs.
type Query struct {
	state *State
}

// NewQuery wraps state for read-only introspection.
func NewQuery(state *State) *Query { return &Query{state: state} }

// Files iterates every cached file (path, bytes, covered span), matching
// spec.md §6 "iterate cached files".
func (q *Query) Files() []span.File {
	return q.state.Files().Files()
}

// ResolveOffset maps an absolute byte offset to a human Position, the
// building block a hover/goto-def renderer uses to go from "cursor
// position" to "byte offset" and back.
func (q *Query) ResolveOffset(offset uint32) (span.Position, error) {
	return q.state.Files().Resolve(offset)
}

// DeclsNamed returns every currently-visible Declaration whose name starts
// with prefix, used for completion.
func (q *Query) DeclsNamed(prefix string) []ast.Declaration {
	q.state.mu.RLock()
	defer q.state.mu.RUnlock()
	var out []ast.Declaration
	seen := map[string]bool{}
	for i := len(q.state.overlays) - 1; i >= 0; i-- {
		o := q.state.overlays[i]
		for name, id := range o.Decls {
			if seen[name] || o.Hidden[name] {
				continue
			}
			if len(prefix) > len(name) || name[:len(prefix)] != prefix {
				continue
			}
			seen[name] = true
			if int(id) < len(q.state.decls) {
				out = append(out, q.state.decls[id])
			}
		}
	}
	return out
}

// DescribeDecl renders a Declaration's usage into a markdown blurb
// (spec.md §6 get_decl_description). brief=true returns the `## name`
// heading and the one-line Usage; brief=false appends ExtraUsage and the
// rendered Signature.
func DescribeDecl(d ast.Declaration, brief bool) string {
	out := "## " + d.Name + "\n\n" + d.Usage
	if !brief {
		if d.ExtraUsage != "" {
			out += "\n\n" + d.ExtraUsage
		}
		out += "\n\n```\n" + signatureLine(d) + "\n```"
	}
	return out
}

func signatureLine(d ast.Declaration) string {
	line := d.Name
	for _, p := range d.Signature.Positional {
		if p.Required {
			line += " <" + p.Name + ">"
		} else {
			line += " <" + p.Name + "?>"
		}
	}
	if d.Signature.Rest != nil {
		line += " ...<" + d.Signature.Rest.Name + ">"
	}
	for _, p := range d.Signature.Named {
		line += " --" + p.Name
	}
	return line
}
