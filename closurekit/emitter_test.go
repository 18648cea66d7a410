package closurekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_NoFreeVarsPassesSourceThrough(t *testing.T) {
	fa, err := NewParser().Parse("function (x) { return x + 1; }")
	require.NoError(t, err)

	got := NewEmitter(NewAllocator()).Emit(fa, EmitOptions{})
	assert.Equal(t, fa.Source, got)
}

func TestEmitter_FreeVarsWrapInIIFE(t *testing.T) {
	fa, err := NewParser().Parse("function (x) { return x + y; }")
	require.NoError(t, err)

	got := NewEmitter(NewAllocator()).Emit(fa, EmitOptions{
		FreeVars: []EmitFreeVar{{Name: "y", Expr: "42"}},
	})
	assert.Equal(t, "(function(y) { return function (x) { return x + y; }; })(42)", got)
}

func TestEmitter_MultipleFreeVarsPreserveOrder(t *testing.T) {
	fa, err := NewParser().Parse("function (x) { return x + y + z; }")
	require.NoError(t, err)

	got := NewEmitter(NewAllocator()).Emit(fa, EmitOptions{
		FreeVars: []EmitFreeVar{{Name: "y", Expr: "1"}, {Name: "z", Expr: "2"}},
	})
	assert.Equal(t, "(function(y, z) { return function (x) { return x + y + z; }; })(1, 2)", got)
}

func TestEmitter_SuperSpliceRewritesNamedHeritage(t *testing.T) {
	fa, err := NewParser().Parse("class Dog extends Animal { bark() { return 1; } }")
	require.NoError(t, err)

	got := NewEmitter(NewAllocator()).Emit(fa, EmitOptions{SuperName: "_super"})
	assert.Equal(t, "class Dog extends _super { bark() { return 1; } }", got)
}

func TestEmitter_SuperSpliceInsertsHeritageWhenAbsent(t *testing.T) {
	fa, err := NewParser().Parse("class Dog { bark() { return 1; } }")
	require.NoError(t, err)

	got := NewEmitter(NewAllocator()).Emit(fa, EmitOptions{SuperName: "_super"})
	assert.Equal(t, "class Dog extends _super { bark() { return 1; } }", got)
}

func TestEmitter_SuperSpliceCombinesWithFreeVars(t *testing.T) {
	fa, err := NewParser().Parse("class Dog extends Animal { bark() { return sound; } }")
	require.NoError(t, err)

	got := NewEmitter(NewAllocator()).Emit(fa, EmitOptions{
		FreeVars:  []EmitFreeVar{{Name: "sound", Expr: `"woof"`}},
		SuperName: "_super",
	})
	assert.Equal(t, `(function(sound) { return class Dog extends _super { bark() { return sound; } }; })("woof")`, got)
}
