package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellcore/shellcore/internal/diag"
	"github.com/shellcore/shellcore/internal/engine"
)

func newWorkingSet() *engine.WorkingSet {
	return engine.NewWorkingSet(engine.New())
}

func TestParseBlockArithmeticExpression(t *testing.T) {
	ws := newWorkingSet()
	blk, errs := ParseBlock(ws, 0, 0, []byte("3 + 4 * 2"), false)
	require.Empty(t, errs)
	require.Len(t, blk.Pipelines, 1)
}

func TestParseBlockLetThenUseVariable(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("let x = 10\n$x + 1"), false)
	require.Empty(t, errs)
}

func TestParseBlockUndeclaredVariableErrors(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("$never_declared"), false)
	require.NotEmpty(t, errs)
	assert.Equal(t, diag.KindVariableNotFound, errs[0].Kind)
}

// TestParseBlockDuplicateDefInSameBlockErrors grounds spec.md §4.2's
// predeclaration rule: each def name may be defined at most once per
// block.
func TestParseBlockDuplicateDefInSameBlockErrors(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("def foo [] { 1 }\ndef foo [] { 2 }"), false)
	require.NotEmpty(t, errs)
	assert.Equal(t, diag.KindDuplicateDefinition, errs[0].Kind)
}

// TestParseBlockDefRegistersDeclInActiveOverlay exercises the same
// registration mechanism internal/stdcmd's Register depends on: a def
// must land in ws.ActiveOverlay().Decls under its own name, not just in
// the delta's decl slice.
func TestParseBlockDefRegistersDeclInActiveOverlay(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("def foo [] { 1 }"), false)
	require.Empty(t, errs)
	_, ok := ws.ActiveOverlay().Decls["foo"]
	assert.True(t, ok)
}

// TestParseBlockForwardReferenceBetweenDefs exercises the predeclaration
// rule's forward-reference half (spec.md §4.2): a def may call a sibling
// def declared later in the same block.
func TestParseBlockForwardReferenceBetweenDefs(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("def a [] { b }\ndef b [] { 1 }"), false)
	require.Empty(t, errs)
}

// TestParseBlockSpanContainment exercises spec.md §8's "Span containment"
// invariant directly on the parser's output: every pipeline's span sits
// inside the block's span, and every element's span sits inside its
// pipeline's span.
func TestParseBlockSpanContainment(t *testing.T) {
	ws := newWorkingSet()
	blk, errs := ParseBlock(ws, 0, 0, []byte("1 + 2 | describe\n3 * 4"), false)
	require.Empty(t, errs)
	for _, pipe := range blk.Pipelines {
		assert.True(t, blk.Span.Contains(pipe.Span), "pipeline span %v not contained in block span %v", pipe.Span, blk.Span)
		for _, el := range pipe.Elements {
			assert.True(t, pipe.Span.Contains(el.Expr.Span), "element span %v not contained in pipeline span %v", el.Expr.Span, pipe.Span)
		}
	}
}

func TestParseBlockUnbalancedDelimiterErrors(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("def foo [] { 1"), false)
	require.NotEmpty(t, errs)
}

// TestParseBlockModuleOnlyExportsMarkedItems grounds spec.md §4.4's
// "module name { ... } creates a Module containing only the export …
// items defined lexically inside": a bare `use m` (prefix import) only
// makes the exported name resolvable under the "m " prefix, never the
// private one.
func TestParseBlockModuleOnlyExportsMarkedItems(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("module m { export def a [] { 1 }\ndef b [] { 2 } }\nuse m\nm a"), false)
	require.Empty(t, errs)

	ws = newWorkingSet()
	_, errs = ParseBlock(ws, 0, 0, []byte("module m { export def a [] { 1 }\ndef b [] { 2 } }\nuse m\nm b"), false)
	require.Empty(t, errs, "parsing 'm b' itself never errors, it just resolves as an external call")
	_, ok := ws.FindDecl("m b")
	assert.False(t, ok, "private member b must not be reachable under the 'm ' prefix")
}

// TestParseBlockUseSingleItemImportsUnprefixed exercises `use foo cmd`
// (spec.md §4.4 "Import patterns").
func TestParseBlockUseSingleItemImportsUnprefixed(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("module m { export def a [] { 1 } }\nuse m a\na"), false)
	require.Empty(t, errs)
}

// TestParseBlockUseSingleItemPrivateErrors exercises the private-binding
// diagnostic (spec.md §7): importing a non-exported name by its bare
// name must fail distinctly from "not found".
func TestParseBlockUseSingleItemPrivateErrors(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("module m { export def a [] { 1 }\ndef b [] { 2 } }\nuse m b"), false)
	require.NotEmpty(t, errs)
	assert.Equal(t, diag.KindPrivateBinding, errs[0].Kind)
}

// TestParseBlockUseListImport exercises `use foo [a, b]`.
func TestParseBlockUseListImport(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("module m { export def a [] { 1 }\nexport def c [] { 2 } }\nuse m [a, c]\na\nc"), false)
	require.Empty(t, errs)
}

// TestParseBlockUseStarImportsUnprefixed exercises `use foo *`.
func TestParseBlockUseStarImportsUnprefixed(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("module m { export def a [] { 1 } }\nuse m *\na"), false)
	require.Empty(t, errs)
}

// TestParseBlockHideTwiceErrors and TestParseBlockHideTwiceIgnoreErrors
// ground spec.md §4.4 "Hiding": hiding the same name twice is an error
// unless `--ignore-errors`.
func TestParseBlockHideTwiceErrors(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("def foo [] { 1 }\nhide foo\nhide foo"), false)
	require.NotEmpty(t, errs)
}

func TestParseBlockHideTwiceIgnoreErrors(t *testing.T) {
	ws := newWorkingSet()
	_, errs := ParseBlock(ws, 0, 0, []byte("def foo [] { 1 }\nhide foo\nhide foo --ignore-errors"), false)
	require.Empty(t, errs)
}
