package closurekit

import (
	"testing"

	ckruntime "github.com/closurekit/closurekit/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProbe() *GojaProbe {
	return NewGojaProbe(ckruntime.New())
}

func TestGojaProbe_SourceOfReturnsCanonicalToString(t *testing.T) {
	p := newTestProbe()
	fn, err := p.Closure("function add(a, b) { return a + b; }")
	require.NoError(t, err)

	src, err := p.SourceOf(fn)
	require.NoError(t, err)
	assert.Equal(t, "function add(a, b) { return a + b; }", src)
}

func TestGojaProbe_ScopesOfReturnsRegisteredChain(t *testing.T) {
	p := newTestProbe()
	n := p.Runtime().ToValue(1)
	fn, err := p.Closure("function () { return n; }", ScopeBindings{Bindings: map[string]Value{"n": n}})
	require.NoError(t, err)

	scopes, err := p.ScopesOf(fn)
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Equal(t, int64(1), scopes[0].Bindings["n"].ToInteger())
}

func TestGojaProbe_ScopesOfFailsWhenNeverRegistered(t *testing.T) {
	p := newTestProbe()
	fn, err := p.Closure("function () { return 1; }")
	require.NoError(t, err)

	_, err = p.ScopesOf(fn)
	require.Error(t, err)
	var ckErr *Error
	require.ErrorAs(t, err, &ckErr)
	assert.Equal(t, ErrScopesMissing, ckErr.Kind)
}

func TestGojaProbe_ScopesOfRegistersEvenWhenEmpty(t *testing.T) {
	p := newTestProbe()
	fn, err := p.Closure("function () { return 1; }", ScopeBindings{Bindings: map[string]Value{}})
	require.NoError(t, err)

	scopes, err := p.ScopesOf(fn)
	require.NoError(t, err)
	require.Len(t, scopes, 1)
	assert.Empty(t, scopes[0].Bindings)
}

func TestGojaProbe_BindRecordsTargetThisAndArgs(t *testing.T) {
	p := newTestProbe()
	target, err := p.Closure("function greet(greeting, name) { return greeting + name; }")
	require.NoError(t, err)

	bound, err := p.Bind(target, p.Runtime().ToValue("receiver"), p.Runtime().ToValue("hello, "))
	require.NoError(t, err)

	bi, err := p.BoundInternalsOf(bound)
	require.NoError(t, err)
	assert.Equal(t, "receiver", bi.This.String())
	require.Len(t, bi.Args, 1)
	assert.Equal(t, "hello, ", bi.Args[0].String())
}

func TestGojaProbe_BoundInternalsOfFailsForOrdinaryFunction(t *testing.T) {
	p := newTestProbe()
	fn, err := p.Closure("function () {}")
	require.NoError(t, err)

	_, err = p.BoundInternalsOf(fn)
	require.Error(t, err)
	var ckErr *Error
	require.ErrorAs(t, err, &ckErr)
	assert.Equal(t, ErrNotBound, ckErr.Kind)
}

func TestGojaProbe_ClosureRejectsUnparseableSource(t *testing.T) {
	p := newTestProbe()
	_, err := p.Closure("{{{ not javascript")
	assert.Error(t, err)
}
