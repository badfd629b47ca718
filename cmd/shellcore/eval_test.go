package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shellcore/shellcore/internal/config"
	"github.com/shellcore/shellcore/internal/engine"
	"github.com/shellcore/shellcore/internal/eval"
	"github.com/shellcore/shellcore/internal/stdcmd"
	"github.com/shellcore/shellcore/internal/value"
)

func testState(t *testing.T) *engine.State {
	t.Helper()
	state := engine.New()
	ws := engine.NewWorkingSet(state)
	stdcmd.Register(ws)
	state.MergeDelta(ws.RenderDelta())
	return state
}

func TestRunSourceEvaluatesArithmetic(t *testing.T) {
	state := testState(t)
	out, err := runSource(state, eval.NewStack(), config.Options{}, "<test>", []byte("3 + 4"))
	require.NoError(t, err)
	assert.Equal(t, value.TagInt, out.Tag)
	assert.Equal(t, int64(7), out.Int)
}

func TestRunSourceRejectsExternalByDefault(t *testing.T) {
	state := testState(t)
	_, err := runSource(state, eval.NewStack(), config.Options{Unrestricted: false}, "<test>", []byte("echo hello"))
	require.Error(t, err)
}

func TestRunSourceSurfacesParseErrors(t *testing.T) {
	state := testState(t)
	_, err := runSource(state, eval.NewStack(), config.Options{}, "<test>", []byte("let"))
	require.Error(t, err)
}

func TestRunSourcePersistsDefinitionsAcrossCalls(t *testing.T) {
	state := testState(t)
	stack := eval.NewStack()

	_, err := runSource(state, stack, config.Options{}, "<line1>", []byte(`def double [x: int] { $x * 2 }`))
	require.NoError(t, err)

	out, err := runSource(state, stack, config.Options{}, "<line2>", []byte(`double 5`))
	require.NoError(t, err)
	assert.Equal(t, int64(10), out.Int)
}
