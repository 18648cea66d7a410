package runtime

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_StashAndResolveRoundTrip(t *testing.T) {
	e := New()
	v := e.Runtime().ToValue(42)
	id := e.Stash(v)

	got, ok := e.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, int64(42), got.ToInteger())
}

func TestEngine_ResolveUnknownIDFails(t *testing.T) {
	e := New()
	_, ok := e.Resolve(ObjectID("nope"))
	assert.False(t, ok)
}

func TestEngine_ReleaseRemovesEntry(t *testing.T) {
	e := New()
	id := e.Stash(e.Runtime().ToValue("x"))
	e.Release(id)

	_, ok := e.Resolve(id)
	assert.False(t, ok)
}

func TestEngine_MintedIDsAreUnique(t *testing.T) {
	e := New()
	a := e.Stash(e.Runtime().ToValue(1))
	b := e.Stash(e.Runtime().ToValue(2))
	assert.NotEqual(t, a, b)
}

func TestEngine_EvaluateInContextStashesResult(t *testing.T) {
	e := New()
	id, err := e.EvaluateInContext("1 + 2")
	require.NoError(t, err)

	v, ok := e.Resolve(id)
	require.True(t, ok)
	assert.Equal(t, int64(3), v.ToInteger())
}

func TestEngine_EvaluateInContextPropagatesSyntaxError(t *testing.T) {
	e := New()
	_, err := e.EvaluateInContext("{{{")
	assert.Error(t, err)
}

func TestEngine_GetPropertiesOfEnumeratesOwnKeys(t *testing.T) {
	e := New()
	id, err := e.EvaluateInContext(`({ a: 1, b: 2 })`)
	require.NoError(t, err)

	props, err := e.GetPropertiesOf(id)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, int64(1), props["a"].ToInteger())
	assert.Equal(t, int64(2), props["b"].ToInteger())
}

func TestEngine_GetPropertiesOfRejectsNonObject(t *testing.T) {
	e := New()
	id, err := e.EvaluateInContext("42")
	require.NoError(t, err)

	_, err = e.GetPropertiesOf(id)
	assert.Error(t, err)
}

func TestEngine_CallFunctionOnInvokesWithArgs(t *testing.T) {
	e := New()
	fnID, err := e.EvaluateInContext("(function (a, b) { return a + b; })")
	require.NoError(t, err)
	aID := e.Stash(e.Runtime().ToValue(2))
	bID := e.Stash(e.Runtime().ToValue(3))

	resultID, err := e.CallFunctionOn(fnID, "", aID, bID)
	require.NoError(t, err)

	result, ok := e.Resolve(resultID)
	require.True(t, ok)
	assert.Equal(t, int64(5), result.ToInteger())
}

func TestEngine_CallFunctionOnRejectsUnknownFunction(t *testing.T) {
	e := New()
	_, err := e.CallFunctionOn(ObjectID("missing"), "")
	assert.Error(t, err)
}

func TestEngine_NewWithRuntimeReusesCallerRuntime(t *testing.T) {
	rt := goja.New()
	e := NewWithRuntime(rt)
	assert.Same(t, rt, e.Runtime())
}
