package closurekit

// Transform is a user-supplied AST rewrite. It receives the function's
// normalized AST (no enclosing program is passed) and mutates or replaces
// it in place.
// Returning an error aborts the pipeline with InvalidConfiguration unless
// the transform's own error already carries a more specific Kind.
type Transform func(fn *FunctionAST) error

// PreSerializeHook is invoked inside the Value Graph Serializer, before any
// cache lookup, for every value about to be serialized, primitives
// included. Its
// return value replaces the original for this and all further references
// to that identity (see Options.PreSerializeValue doc for the identity
// trade-off this implies).
type PreSerializeHook func(v Value) Value

// Options configures one Serialize call. The zero value is valid: no
// transforms, factory mode off, non-strict free-variable resolution, and
// the default global whitelist.
type Options struct {
	// PreProcess runs on the function's AST before free-variable analysis.
	PreProcess []Transform

	// PostProcess runs after free-variable analysis, before emission.
	PostProcess []Transform

	// PreSerializeValue lets the caller substitute values (e.g. to strip
	// unserializable handles) before the Value Graph Serializer caches or
	// walks them. Applied before cache lookup: two references to the same
	// original value may therefore be emitted as two distinct values if the
	// hook returns a fresh object each time. Callers that need identity
	// preserved across calls should memoize their own hook.
	PreSerializeValue PreSerializeHook

	// IsFactoryFunction, when true, makes the final export line
	// `module.exports = (<root>)();` instead of `module.exports = <root>;`:
	// the root function is invoked once at module load and its return
	// value becomes the handler.
	IsFactoryFunction bool

	// Strict makes UnresolvedFreeVariable fatal instead of leaving the
	// identifier in place in the emitted source.
	Strict bool

	// GlobalNames overrides the set of identifier names treated as engine
	// globals (referenced by name in the output rather than copied), when
	// their currently-bound value is identity-equal to what the probe's
	// runtime currently exposes under that name. Defaults to
	// DefaultGlobalNames.
	GlobalNames []string
}

func (o Options) globalNames() []string {
	if o.GlobalNames != nil {
		return o.GlobalNames
	}
	return DefaultGlobalNames
}

// DefaultGlobalNames is the built-in global whitelist: constructors and
// host objects whose bound values are assumed present, by identity, in any
// target environment running the emitted module.
var DefaultGlobalNames = []string{
	"Object", "Array", "Function", "Number", "String", "Boolean", "Symbol",
	"BigInt", "Math", "JSON", "Date", "RegExp", "Map", "Set", "WeakMap",
	"WeakSet", "Promise", "Error", "TypeError", "RangeError", "SyntaxError",
	"console", "process", "globalThis",
}
