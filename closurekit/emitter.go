package closurekit

import (
	"fmt"
	"strings"
)

// EmitFreeVar pairs a free variable's rebinding parameter name with the
// already-serialized expression text that supplies its value at module
// load time.
type EmitFreeVar struct {
	Name string
	Expr string
}

// EmitOptions carries everything the Value Graph Serializer has already
// resolved about one function/class value: its free variables (each
// already turned into a serialized reference) and the minted parameter
// name for a rewritten `extends` clause when the class's actual prototype
// chain diverges from its literal heritage. Bound-function rewrapping is
// handled directly by the caller (it needs no rebinding of the wrapper's
// own body, since a bound function's source is never readable JavaScript)
// rather than through the Emitter.
type EmitOptions struct {
	FreeVars []EmitFreeVar

	// SuperName, when non-empty, is the parameter name substituted for
	// fn's superclass expression (or inserted as a fresh `extends` clause
	// if fn had none). Ignored for non-class functions.
	SuperName string
}

// Emitter wraps a function's normalized AST and its already-resolved free
// variables into the right-hand-side expression text that recreates the
// function, with its free variables re-bound in scope, when
// assigned to its identifier in the emitted module.
type Emitter struct {
	names *Allocator
}

// NewEmitter builds an Emitter that mints any additional identifiers it
// needs (currently unused directly, kept for parity with the rest of the
// pipeline's constructors and for future per-function scratch names).
func NewEmitter(names *Allocator) *Emitter { return &Emitter{names: names} }

// Emit renders fn as a standalone expression. When SuperName is set on a
// class, the heritage clause is spliced first. With no free variables the
// (possibly spliced) text is returned as is; otherwise it is wrapped in an
// immediately-invoked function expression whose parameters rebind
// opts.FreeVars to their serialized values. Emit does not add SuperName as
// a parameter itself: a caller that needs it bound passes it among
// FreeVars, as the Value Graph Serializer does.
func (e *Emitter) Emit(fn *FunctionAST, opts EmitOptions) string {
	body := fn.Source

	params := make([]string, 0, len(opts.FreeVars)+1)
	args := make([]string, 0, len(opts.FreeVars)+1)
	for _, fv := range opts.FreeVars {
		params = append(params, fv.Name)
		args = append(args, fv.Expr)
	}

	if opts.SuperName != "" && fn.IsClass() {
		body = spliceSuper(fn, opts.SuperName)
	}

	expr := body
	if len(params) == 0 {
		return expr
	}
	return fmt.Sprintf("(function(%s) { return %s; })(%s)",
		strings.Join(params, ", "), expr, strings.Join(args, ", "))
}

// spliceSuper rewrites fn's heritage clause to extend name instead of its
// original superclass expression, or inserts one if fn had none. Position
// comes from the Aux node parser.go records on every class node's
// superclass expression; absent that, the rewrite falls back to inserting
// the clause just before the class body's opening brace.
func spliceSuper(fn *FunctionAST, name string) string {
	src := fn.Source
	if fn.Root != nil && fn.Root.Aux != nil {
		aux := fn.Root.Aux
		if aux.Start >= 0 && aux.End <= len(src) && aux.Start <= aux.End {
			return src[:aux.Start] + name + src[aux.End:]
		}
	}
	brace := strings.IndexByte(src, '{')
	if brace < 0 {
		return src
	}
	return src[:brace] + "extends " + name + " " + src[brace:]
}
