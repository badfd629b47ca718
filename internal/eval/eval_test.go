// Package eval_test exercises the ten end-to-end scenarios of spec.md §8
// against the real lexer/parser/engine/eval pipeline. It lives in a
// separate eval_test package (rather than package eval) specifically so
// it can import internal/stdcmd for the handful of scenarios that need a
// registered builtin (`get`, `lines`, `where`, `par-each`); internal/eval
// itself must never import internal/stdcmd, so only an external test
// package can pull both in without a cycle.
package eval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/parser"
	"github.com/shellcore/shellcore/internal/stdcmd"
	"github.com/shellcore/shellcore/internal/value"
)

// run parses src against a fresh engine (builtins registered), merges the
// delta, and evaluates the resulting block over one fresh stack,
// returning the collected final value.
func run(t *testing.T, src string) (value.Value, error) {
	t.Helper()
	state := engine.New()
	ws := engine.NewWorkingSet(state)
	stdcmd.Register(ws)
	state.MergeDelta(ws.RenderDelta())

	ws = engine.NewWorkingSet(state)
	blk, errs := parser.ParseBlock(ws, 0, 0, []byte(src), false)
	require.Empty(t, errs, "parse errors for %q: %v", src, errs)
	state.MergeDelta(ws.RenderDelta())

	ev := eval.New(state)
	pd, err := ev.EvalBlock(eval.NewStack(), blk, eval.Empty())
	if err != nil {
		return value.Value{}, err
	}
	return pd.Collect(blk.Span, state.Cancel)
}

// Scenario 1: [[lang, gems]; [nu, 100]] | get lang.0 -> "nu"
func TestScenarioTableGetCellPath(t *testing.T) {
	out, err := run(t, `[[lang, gems]; [nu, 100]] | get lang.0`)
	require.NoError(t, err)
	assert.Equal(t, value.TagString, out.Tag)
	assert.Equal(t, "nu", out.Str)
}

// Scenario 2: optional positional defaulting to Nothing vs an explicit arg.
func TestScenarioOptionalPositionalDefault(t *testing.T) {
	out, err := run(t, `def foo [x?: int] { if $x == null { 5 } else { $x + 10 } }
foo`)
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.Int)

	out, err = run(t, `def foo [x?: int] { if $x == null { 5 } else { $x + 10 } }
foo 3`)
	require.NoError(t, err)
	assert.Equal(t, int64(13), out.Int)
}

// Scenario 3: module export visibility. `use m` only brings exported decls
// into scope; a non-exported sibling (`b`) stays unreachable.
func TestScenarioModuleExportVisibility(t *testing.T) {
	out, err := run(t, `module m { export def a [] { 1 }; def b [] { 2 } }
use m
m a`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Int)

	_, err = run(t, `module m { export def a [] { 1 }; def b [] { 2 } }
use m
m b`)
	require.Error(t, err)
}

// Scenario 4: a def closes over a lexically enclosing `let` via
// predeclaration capture.
func TestScenarioDefCapturesEnclosingLet(t *testing.T) {
	out, err := run(t, `let x = 10
def f [] { $x }
f`)
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.Int)
}

// Scenario 5: optional cell-path chaining yields Nothing instead of
// erroring once every missing member past the first optional is marked.
func TestScenarioOptionalCellPathChain(t *testing.T) {
	out, err := run(t, `{foo: [{bar: "baz"}]}.foo?.3?.bar`)
	require.NoError(t, err)
	assert.Equal(t, value.TagNothing, out.Tag)
}

// Scenario 6: par-each preserves input order regardless of scheduling.
func TestScenarioParEachPreservesOrder(t *testing.T) {
	out, err := run(t, `[1, 2, 3] | par-each {|x| $x * 2 }`)
	require.NoError(t, err)
	require.Equal(t, value.TagList, out.Tag)
	require.Len(t, out.List, 3)
	assert.Equal(t, []int64{2, 4, 6}, []int64{out.List[0].Int, out.List[1].Int, out.List[2].Int})
}

// Scenario 7: `and` short-circuits; the division by zero on the right must
// never be evaluated.
func TestScenarioAndShortCircuits(t *testing.T) {
	out, err := run(t, `true and (5 / 0; false)`)
	require.NoError(t, err)
	assert.Equal(t, value.TagBool, out.Tag)
	assert.False(t, out.Bool)
}

// Scenario 8: "hello\nworld" | lines | length -> 2
func TestScenarioLinesThenLength(t *testing.T) {
	out, err := run(t, "\"hello\\nworld\" | lines | length")
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Int)
}

// Scenario 9: where filters rows, get projects a column, .0 indexes it.
func TestScenarioWhereThenGet(t *testing.T) {
	out, err := run(t, `[[a, b]; [1, 2] [3, 4]] | where a > 1 | get b.0`)
	require.NoError(t, err)
	assert.Equal(t, int64(4), out.Int)
}

// Scenario 10: spreading a record that redefines an existing key is a
// TypeError (duplicate column at construction), not a silent overwrite.
func TestScenarioDuplicateColumnOnSpreadErrors(t *testing.T) {
	_, err := run(t, `{a: 1, ...{a: 3}}`)
	require.Error(t, err)
}

// TestUseStarRunsExportEnvBlock exercises spec.md §4.4's "`use foo *`
// additionally runs each exported export-env block in the caller's
// scope": the block must actually execute (not just parse) when `use`
// is evaluated.
func TestUseStarRunsExportEnvBlock(t *testing.T) {
	out, err := run(t, "module m { export-env { 41 + 1 } }\nuse m *\n2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Int)

	// A failing export-env block must surface its error on `use foo *`,
	// proving the block actually executes rather than being ignored.
	_, err = run(t, "module m { export-env { 1 / 0 } }\nuse m *\n2")
	require.Error(t, err)
}

// TestMaxRecursionDepthStopsInfiniteRecursion exercises the host-configured
// recursion bound (spec.md §9): an unconditionally self-calling def must
// error out instead of overflowing the Go call stack.
func TestMaxRecursionDepthStopsInfiniteRecursion(t *testing.T) {
	state := engine.New()
	ws := engine.NewWorkingSet(state)
	stdcmd.Register(ws)
	state.MergeDelta(ws.RenderDelta())

	ws = engine.NewWorkingSet(state)
	blk, errs := parser.ParseBlock(ws, 0, 0, []byte("def loop [] { loop }\nloop"), false)
	require.Empty(t, errs)
	state.MergeDelta(ws.RenderDelta())

	ev := eval.New(state)
	ev.MaxRecursionDepth = 10
	_, err := ev.EvalBlock(eval.NewStack(), blk, eval.Empty())
	require.Error(t, err)
}
