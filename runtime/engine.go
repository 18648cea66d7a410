// Package runtime hosts the in-process JavaScript engine that the closure
// serializer introspects. It plays the role of a "host
// JavaScript engine": something that exposes function source text, bound
// receivers/arguments, and lexical scope bindings through a narrow,
// serialized request surface.
//
// The shape is lifted from a Node.js subprocess bridge
// (nodejs_runtime.go): a side-channel execution context, a scratch table of
// live values keyed by freshly-minted opaque ids, and a single mutex that
// forces at most one outstanding "remote" operation at a time. Here the
// "remote" is an embedded goja.Runtime rather than a subprocess, but the
// id-indirection is kept deliberately even though it isn't strictly required
// in-process: it is what lets a real debugger-protocol client stand in for
// this engine later without changing callers.
package runtime

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/google/uuid"
)

// ObjectID is an opaque handle into the engine's scratch table, analogous to
// a Chrome DevTools Protocol remote-object-id.
type ObjectID string

// Engine wraps a goja.Runtime and the scratch table used to hand out object
// ids for values that cross the probe boundary.
type Engine struct {
	rt *goja.Runtime

	mu      sync.Mutex
	scratch map[ObjectID]goja.Value
	nextID  atomic.Int64

	sessionID string
}

// New creates an Engine with a fresh, private goja.Runtime. The runtime is
// never shared with host program globals: it is the "side-channel execution
// context" the probe owns for the lifetime of the Engine.
func New() *Engine {
	return NewWithRuntime(goja.New())
}

// NewWithRuntime wraps an existing runtime. Useful when the host program
// wants functions it defines to be introspectable by the same VM instance
// the serializer drives.
func NewWithRuntime(rt *goja.Runtime) *Engine {
	return &Engine{
		rt:        rt,
		scratch:   make(map[ObjectID]goja.Value, 64),
		sessionID: uuid.NewString(),
	}
}

// Runtime returns the underlying goja.Runtime, for callers that need to
// build or evaluate values to stash.
func (e *Engine) Runtime() *goja.Runtime {
	return e.rt
}

func (e *Engine) mint() ObjectID {
	n := e.nextID.Add(1)
	return ObjectID(fmt.Sprintf("%s-%d", e.sessionID, n))
}

// Stash records v in the scratch table under a freshly minted id and
// returns that id. Callers MUST hold no assumption about when the id is
// released; Release is explicit.
func (e *Engine) Stash(v goja.Value) ObjectID {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.mint()
	e.scratch[id] = v
	return id
}

// Resolve returns the value stashed at id, if any.
func (e *Engine) Resolve(id ObjectID) (goja.Value, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.scratch[id]
	return v, ok
}

// Release removes id from the scratch table.
func (e *Engine) Release(id ObjectID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.scratch, id)
}

// EvaluateInContext evaluates expr in the engine's runtime and stashes the
// result, mirroring the CDP "Runtime.evaluate" request shape. All engine
// operations share one lock, so only one evaluate-in-context,
// get-properties-of, or call-function-on round trip is ever outstanding at
// once, so probe round trips never interleave.
func (e *Engine) EvaluateInContext(expr string) (ObjectID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.rt.RunString(expr)
	if err != nil {
		return "", fmt.Errorf("runtime: evaluate-in-context: %w", err)
	}
	id := e.mint()
	e.scratch[id] = v
	return id, nil
}

// GetPropertiesOf enumerates the own enumerable string-keyed properties of
// the object stashed at id.
func (e *Engine) GetPropertiesOf(id ObjectID) (map[string]goja.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.scratch[id]
	if !ok {
		return nil, fmt.Errorf("runtime: unknown object id %q", id)
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("runtime: object id %q does not denote an object", id)
	}
	out := make(map[string]goja.Value, len(obj.Keys()))
	for _, k := range obj.Keys() {
		out[k] = obj.Get(k)
	}
	return out, nil
}

// CallFunctionOn invokes the function stashed at fnID with `this` bound to
// the value stashed at thisID (may be the empty ObjectID for undefined) and
// arguments bound to the values stashed at argIDs, mirroring CDP's
// "Runtime.callFunctionOn". The result is stashed and its id returned.
func (e *Engine) CallFunctionOn(fnID, thisID ObjectID, argIDs ...ObjectID) (ObjectID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fnVal, ok := e.scratch[fnID]
	if !ok {
		return "", fmt.Errorf("runtime: unknown function object id %q", fnID)
	}
	callable, ok := goja.AssertFunction(fnVal)
	if !ok {
		return "", fmt.Errorf("runtime: object id %q is not callable", fnID)
	}

	var this goja.Value
	if thisID != "" {
		this = e.scratch[thisID]
	}
	args := make([]goja.Value, len(argIDs))
	for i, id := range argIDs {
		args[i] = e.scratch[id]
	}

	result, err := callable(this, args...)
	if err != nil {
		return "", fmt.Errorf("runtime: call-function-on: %w", err)
	}
	id := e.mint()
	e.scratch[id] = result
	return id, nil
}

// ToValue stashes a pre-existing goja value without a round trip through
// the runtime, for callers that already hold one. It is the same operation
// as Stash.
func (e *Engine) ToValue(v goja.Value) ObjectID {
	return e.Stash(v)
}

// Invoke looks up method on the object stashed at id — walking its full
// prototype chain the way Object.Get does, so inherited, non-enumerable
// methods like toString/bind resolve correctly, unlike GetPropertiesOf's
// own-enumerable-only enumeration — binds `this` to that same object, and
// calls it with the values stashed at argIDs. The result is stashed and
// its id returned, mirroring CDP's "Runtime.callFunctionOn" called with a
// method-reference functionDeclaration rather than a pre-resolved id.
func (e *Engine) Invoke(id ObjectID, method string, argIDs ...ObjectID) (ObjectID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, ok := e.scratch[id]
	if !ok {
		return "", fmt.Errorf("runtime: unknown object id %q", id)
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return "", fmt.Errorf("runtime: object id %q does not denote an object", id)
	}
	fn, ok := goja.AssertFunction(obj.Get(method))
	if !ok {
		return "", fmt.Errorf("runtime: object id %q has no callable %q", id, method)
	}

	args := make([]goja.Value, len(argIDs))
	for i, a := range argIDs {
		args[i] = e.scratch[a]
	}

	result, err := fn(obj, args...)
	if err != nil {
		return "", fmt.Errorf("runtime: invoke %q: %w", method, err)
	}
	rid := e.mint()
	e.scratch[rid] = result
	return rid, nil
}
