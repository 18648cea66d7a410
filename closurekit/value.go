package closurekit

import (
	"strings"

	"github.com/dop251/goja"
)

// Value is the runtime representation of a live JavaScript value. It is an
// alias for goja.Value so hosts that already drive a goja.Runtime can pass
// values straight through without conversion.
type Value = goja.Value

// Binding is a single (name -> value) pair within one lexical scope.
type Binding struct {
	Name  string
	Value Value
}

// ScopeBindings is one frame of the captured-scope chain: the set of names
// bound at one lexical level. LiveFunction.Scopes lists them
// outer-to-inner, so the innermost scope appears last.
type ScopeBindings struct {
	Bindings map[string]Value
}

// BoundInternals is present on a LiveFunction whose declared name begins
// with "bound ": the target it wraps, the receiver it was bound with, and
// any leading arguments curried in by .bind().
type BoundInternals struct {
	Target Value
	This   Value
	Args   []Value
}

// LiveFunction is a borrowed reference to a function value living in the
// host engine, plus everything the Engine Probe was able to recover about
// it. It is only valid for the duration of one serialize call.
type LiveFunction struct {
	Value Value

	// Source is the engine's canonical stringification of Value. It may be
	// the distinguished native-body marker containing "[native code]".
	Source string

	// Name is the function's declared name. Empty for anonymous functions;
	// begins with "bound " for functions produced by Function.prototype.bind.
	Name string

	// Scopes is the lexical scope chain, outer-to-inner as captured, but
	// consumers walk it innermost-first (see Analyzer.resolve). Nil when
	// the Engine Probe could not recover it (ScopesMissing).
	Scopes []ScopeBindings

	// Bound holds bound-function internals; nil unless Name has the
	// "bound " prefix and the probe could resolve them.
	Bound *BoundInternals

	// Prototype is the object stored as the function's own `prototype`
	// property, if any (ordinary functions and classes have one; arrows
	// and bound functions do not).
	Prototype Value

	// MetaPrototype is what Value itself delegates property lookup to
	// (its own [[Prototype]]), distinct from the Prototype field above.
	MetaPrototype Value
}

// IsNative reports whether Source is the engine's distinguished
// native-code marker rather than readable JavaScript.
func (lf *LiveFunction) IsNative() bool {
	return isNativeSource(lf.Source)
}

// IsBoundName reports whether the declared name carries the "bound "
// prefix that Function.prototype.bind produces.
func (lf *LiveFunction) IsBoundName() bool {
	return len(lf.Name) > len(boundPrefix) && lf.Name[:len(boundPrefix)] == boundPrefix
}

const boundPrefix = "bound "

func isNativeSource(src string) bool {
	return strings.Contains(src, "[native code]")
}
