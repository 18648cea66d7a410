package closurekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func neverResolves(string) (Value, bool) { return nil, false }

func TestAnalyzer_FindsFreeVariable(t *testing.T) {
	fa, err := NewParser().Parse("function f(a) { return a + b; }")
	require.NoError(t, err)

	resolve := func(name string) (Value, bool) {
		return nil, name == "b"
	}
	vars := NewAnalyzer(resolve).Analyze(fa)

	require.Len(t, vars, 1)
	assert.Equal(t, "b", vars[0].Name)
	assert.True(t, vars[0].Resolved)
}

func TestAnalyzer_ParameterIsNotFree(t *testing.T) {
	fa, err := NewParser().Parse("function f(a) { return a; }")
	require.NoError(t, err)

	vars := NewAnalyzer(neverResolves).Analyze(fa)
	assert.Empty(t, vars)
}

func TestAnalyzer_FunctionDeclarationsAreHoisted(t *testing.T) {
	fa, err := NewParser().Parse("function f() { return g(); function g() { return 1; } }")
	require.NoError(t, err)

	vars := NewAnalyzer(neverResolves).Analyze(fa)
	assert.Empty(t, vars)
}

func TestAnalyzer_UninitializedVarIsHoisted(t *testing.T) {
	fa, err := NewParser().Parse("function f() { var x = y; var y; return x; }")
	require.NoError(t, err)

	resolve := func(name string) (Value, bool) { return nil, name == "y" }
	vars := NewAnalyzer(resolve).Analyze(fa)
	// y is hoisted (uninitialized var), so referencing it before its own
	// declaration still resolves to the local binding, not an outer one.
	assert.Empty(t, vars)
}

func TestAnalyzer_InitializedVarIsNotHoisted(t *testing.T) {
	fa, err := NewParser().Parse("function f() { var x = y; var y = 2; return x; }")
	require.NoError(t, err)

	resolve := func(name string) (Value, bool) { return nil, name == "y" }
	vars := NewAnalyzer(resolve).Analyze(fa)
	require.Len(t, vars, 1)
	assert.Equal(t, "y", vars[0].Name)
}

func TestAnalyzer_ReferenceBeforeConstDeclaratorIsFree(t *testing.T) {
	fa, err := NewParser().Parse("function f() { function before() { return x; } const x = 1; return before(); }")
	require.NoError(t, err)

	resolve := func(name string) (Value, bool) { return nil, name == "x" }
	vars := NewAnalyzer(resolve).Analyze(fa)
	require.Len(t, vars, 1)
	assert.Equal(t, "x", vars[0].Name)
	assert.True(t, vars[0].Resolved)
}

func TestAnalyzer_ReferenceAfterConstDeclaratorIsBound(t *testing.T) {
	fa, err := NewParser().Parse("function f() { const x = 1; function after() { return x; } return after(); }")
	require.NoError(t, err)

	vars := NewAnalyzer(neverResolves).Analyze(fa)
	assert.Empty(t, vars)
}

func TestAnalyzer_ArrowLexicalThisDoesNotLeakAsFreeVariable(t *testing.T) {
	fa, err := NewParser().Parse("function f() { return () => this.value; }")
	require.NoError(t, err)

	vars := NewAnalyzer(neverResolves).Analyze(fa)
	assert.Empty(t, vars)
}

func TestAnalyzer_ClassSuperclassIdentifierIsFree(t *testing.T) {
	fa, err := NewParser().Parse("class extends Base { constructor() { super(); } }")
	require.NoError(t, err)

	resolve := func(name string) (Value, bool) { return nil, name == "Base" }
	vars := NewAnalyzer(resolve).Analyze(fa)
	require.Len(t, vars, 1)
	assert.Equal(t, "Base", vars[0].Name)
}

func TestAnalyzer_NonComputedObjectLiteralKeyIsNotFree(t *testing.T) {
	fa, err := NewParser().Parse("function () { return { x: 1 }; }")
	require.NoError(t, err)

	// x only appears as a non-computed object-literal key; resolving it
	// would mean the analyzer mistook a property name for a reference, so
	// any lookup at all here is a failure regardless of what it resolves to.
	resolve := func(name string) (Value, bool) {
		t.Fatalf("resolver must not be consulted for a non-computed property key, got %q", name)
		return nil, false
	}
	vars := NewAnalyzer(resolve).Analyze(fa)
	assert.Empty(t, vars, "a non-computed object-literal key must never be treated as a free variable")
}

func TestAnalyzer_ComputedObjectLiteralKeyIsFree(t *testing.T) {
	fa, err := NewParser().Parse("function f() { return { [k]: 1 }; }")
	require.NoError(t, err)

	resolve := func(name string) (Value, bool) { return nil, name == "k" }
	vars := NewAnalyzer(resolve).Analyze(fa)
	require.Len(t, vars, 1)
	assert.Equal(t, "k", vars[0].Name)
}

func TestAnalyzer_ShorthandObjectLiteralPropertyIsFree(t *testing.T) {
	fa, err := NewParser().Parse("function f() { return { x }; }")
	require.NoError(t, err)

	resolve := func(name string) (Value, bool) { return nil, name == "x" }
	vars := NewAnalyzer(resolve).Analyze(fa)
	require.Len(t, vars, 1)
	assert.Equal(t, "x", vars[0].Name)
}

func TestAnalyzer_DestructuredParametersAreBound(t *testing.T) {
	fa, err := NewParser().Parse("function f({ a, b: [c] }) { return a + c + outer; }")
	require.NoError(t, err)

	resolve := func(name string) (Value, bool) { return nil, name == "outer" }
	vars := NewAnalyzer(resolve).Analyze(fa)
	require.Len(t, vars, 1)
	assert.Equal(t, "outer", vars[0].Name)
}
