package closurekit

import (
	"math"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compositeShellID scans preamble for the single "var <id> = <shell>;"
// statement and returns <id>, failing the test if there isn't exactly one.
func compositeShellID(t *testing.T, module *EmittedModule, shell string) string {
	t.Helper()
	var id string
	count := 0
	for _, stmt := range module.Preamble {
		parts := strings.SplitN(stmt, " = ", 2)
		if len(parts) == 2 && strings.HasPrefix(parts[0], "var ") && parts[1] == shell+";" {
			count++
			id = strings.TrimPrefix(parts[0], "var ")
		}
	}
	require.Equal(t, 1, count, "expected exactly one %q shell in preamble: %v", shell, module.Preamble)
	return id
}

func emptyScope() ScopeBindings {
	return ScopeBindings{Bindings: map[string]Value{}}
}

func TestSerialize_PrimitiveFreeVariablesInlineAsLiterals(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	fn, err := s.Probe().Closure("function (x) { return x + n; }", ScopeBindings{
		Bindings: map[string]Value{"n": rt.ToValue(42)},
	})
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{})
	require.NoError(t, err)
	assert.Contains(t, module.String(), "42")
	assert.Contains(t, module.String(), "module.exports =")
}

func TestSerialize_SpecialFloatsRoundTripExactly(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	fn, err := s.Probe().Closure("function () { return nan + inf + ninf + negZero; }", ScopeBindings{
		Bindings: map[string]Value{
			"nan":     rt.ToValue(math.NaN()),
			"inf":     rt.ToValue(math.Inf(1)),
			"ninf":    rt.ToValue(math.Inf(-1)),
			"negZero": rt.ToValue(math.Copysign(0, -1)),
		},
	})
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{})
	require.NoError(t, err)
	out := module.String()
	assert.Contains(t, out, "NaN")
	assert.Contains(t, out, "Infinity")
	assert.Contains(t, out, "-Infinity")
	assert.Contains(t, out, "-0")
}

func TestSerialize_SharedReferenceIsCachedByIdentity(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	shared, err := rt.RunString(`({ tag: "shared" })`)
	require.NoError(t, err)

	fn, err := s.Probe().Closure("function () { return [a, b]; }", ScopeBindings{
		Bindings: map[string]Value{"a": shared, "b": shared},
	})
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{})
	require.NoError(t, err)

	// Exactly one preamble shell should be minted for the shared object even
	// though it is referenced under two different free-variable names.
	shellCount := 0
	for _, stmt := range module.Preamble {
		if strings.HasSuffix(stmt, "= {};") {
			shellCount++
		}
	}
	assert.Equal(t, 1, shellCount)
}

func TestSerialize_CyclicObjectBreaksViaPreambleShell(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	cyclic, err := rt.RunString(`(function () { var o = {}; o.self = o; return o; })()`)
	require.NoError(t, err)

	fn, err := s.Probe().Closure("function () { return o; }", ScopeBindings{
		Bindings: map[string]Value{"o": cyclic},
	})
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{})
	require.NoError(t, err)

	id := compositeShellID(t, module, "{}")
	assert.Contains(t, module.String(), id+`["self"] = `+id+`;`)
}

func TestSerialize_ArrayHoleIsPreserved(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	sparse, err := rt.RunString(`(function () { return [1, , 3]; })()`)
	require.NoError(t, err)

	fn, err := s.Probe().Closure("function () { return a; }", ScopeBindings{
		Bindings: map[string]Value{"a": sparse},
	})
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{})
	require.NoError(t, err)

	id := compositeShellID(t, module, "[]")
	out := module.String()
	assert.Contains(t, out, id+`["0"] = 1;`)
	assert.Contains(t, out, id+`["2"] = 3;`)
	assert.NotContains(t, out, id+`["1"]`)
}

func TestSerialize_BoundFunctionRewrapsViaBind(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	target, err := s.Probe().Closure("function add(a, b) { return a + b; }", emptyScope())
	require.NoError(t, err)

	bound, err := s.Probe().Bind(target, goja.Undefined(), rt.ToValue(1))
	require.NoError(t, err)

	module, err := s.Serialize(bound, Options{})
	require.NoError(t, err)

	out := module.String()
	assert.Contains(t, out, ".bind(")
	assert.Contains(t, out, "function add(a, b)")
}

func TestSerialize_GlobalWhitelistReferencesByIdentity(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	mathObj := rt.GlobalObject().Get("Math")
	fn, err := s.Probe().Closure("function () { return Math.PI; }", ScopeBindings{
		Bindings: map[string]Value{"Math": mathObj},
	})
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{})
	require.NoError(t, err)

	for _, stmt := range module.Preamble {
		assert.NotContains(t, stmt, "{};", "Math should be referenced by name, never serialized as a composite")
	}
	assert.Contains(t, module.String(), "(Math)")
}

func TestSerialize_FactoryModeInvokesRootAtLoadTime(t *testing.T) {
	s := NewSerializer(nil)

	fn, err := s.Probe().Closure("function () { return function (x) { return x; }; }", emptyScope())
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{IsFactoryFunction: true})
	require.NoError(t, err)
	assert.Contains(t, module.Export, ")();")
}

func TestSerialize_StrictModeFailsOnUnresolvedFreeVariable(t *testing.T) {
	s := NewSerializer(nil)

	fn, err := s.Probe().Closure("function () { return mystery; }", emptyScope())
	require.NoError(t, err)

	_, err = s.Serialize(fn, Options{Strict: true})
	require.Error(t, err)
	var ckErr *Error
	require.ErrorAs(t, err, &ckErr)
	assert.Equal(t, ErrUnresolvedFreeVariable, ckErr.Kind)
}

func TestSerialize_NonStrictModeLeavesUnresolvedFreeVariableInPlace(t *testing.T) {
	s := NewSerializer(nil)

	fn, err := s.Probe().Closure("function () { return mystery; }", emptyScope())
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{})
	require.NoError(t, err)
	assert.Contains(t, module.String(), "mystery")
}

func TestSerialize_ClassHeritageMutationRewritesSuper(t *testing.T) {
	s := NewSerializer(nil)

	animal, err := s.Probe().Closure("class Animal {}", emptyScope())
	require.NoError(t, err)
	// Closure evaluates the class literal in the runtime, and a heritage
	// clause is evaluated eagerly, so Animal must be defined there too.
	s.Runtime().Set("Animal", animal)
	otherBase, err := s.Probe().Closure("function OtherBase() {}", emptyScope())
	require.NoError(t, err)

	dog, err := s.Probe().Closure("class Dog extends Animal { bark() { return 1; } }", ScopeBindings{
		Bindings: map[string]Value{"Animal": animal},
	})
	require.NoError(t, err)

	dogObj, ok := dog.(*goja.Object)
	require.True(t, ok)
	otherBaseObj, ok := otherBase.(*goja.Object)
	require.True(t, ok)
	require.NoError(t, dogObj.SetPrototype(otherBaseObj))

	module, err := s.Serialize(dog, Options{})
	require.NoError(t, err)

	out := module.String()
	assert.Contains(t, out, "extends _super")
	assert.NotContains(t, out, "extends Animal")
}

func TestSerialize_NonComputedObjectLiteralKeyIsNotSmuggledAsFreeVariable(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	// x is bound in the captured scope (standing in for an outer
	// parameter), but the only occurrence of the identifier "x" inside the
	// function body is a non-computed object-literal key, which must never
	// be resolved through the scope chain.
	fn, err := s.Probe().Closure("function () { return { x: 1 }; }", ScopeBindings{
		Bindings: map[string]Value{"x": rt.ToValue("outer-value-must-not-leak")},
	})
	require.NoError(t, err)

	module, err := s.Serialize(fn, Options{})
	require.NoError(t, err)

	out := module.String()
	assert.NotContains(t, out, "outer-value-must-not-leak")
	assert.Contains(t, out, "function () { return { x: 1 }; }")
}

func TestSerialize_RejectsNonFunctionRoot(t *testing.T) {
	s := NewSerializer(nil)
	rt := s.Runtime()

	obj, err := rt.RunString(`({ a: 1 })`)
	require.NoError(t, err)

	_, err = s.Serialize(obj, Options{})
	require.Error(t, err)
}
