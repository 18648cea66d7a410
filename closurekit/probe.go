package closurekit

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"golang.org/x/sync/semaphore"

	ckruntime "github.com/closurekit/closurekit/runtime"
)

// probeLock serializes probe round trips the way a single shared
// scratch table requires: at most one outstanding request at a time. A
// weighted semaphore of size 1 plays the same role as a plain
// request/response mutex but gives the probe a Lock/Unlock pair that reads
// like the sync.Mutex it replaces.
type probeLock struct {
	sem *semaphore.Weighted
}

func newProbeLock() *probeLock {
	return &probeLock{sem: semaphore.NewWeighted(1)}
}

func (l *probeLock) Lock() {
	// A weight-1 Acquire against an unbounded context never blocks on
	// ctx.Done, so this cannot fail; the error is deliberately discarded.
	_ = l.sem.Acquire(context.Background(), 1)
}

func (l *probeLock) Unlock() {
	l.sem.Release(1)
}

// EngineProbe is the Engine Probe collaborator: source-of,
// bound-internals-of, and scopes-of over a live function value. Any
// implementation that honors these three operations' contracts (including
// a real debugger-protocol client) can stand in for GojaProbe.
type EngineProbe interface {
	SourceOf(v Value) (string, error)
	BoundInternalsOf(v Value) (*BoundInternals, error)
	ScopesOf(v Value) ([]ScopeBindings, error)
}

// protoGetter is satisfied by goja.Object implementations that expose
// their own [[Prototype]]. Probed defensively the way a narrow interface
// contextWrapper narrows an opaque context to the capability it actually
// needs (see js_eval_node.go's IsMathOn/EnterCalc pattern).
type protoGetter interface {
	Prototype() *goja.Object
}

// GojaProbe drives an embedded goja.Runtime as the host engine, through
// runtime.Engine's id-keyed scratch table rather than around it: every
// value the probe hands out or receives is stashed there first, and every
// round trip (evaluating a closure literal, calling toString, calling
// bind) goes through one of the engine's own CDP-shaped methods
// (EvaluateInContext, Invoke), so a real debugger-protocol client could
// stand in for engine without this probe's call sites changing. objIDs is
// the probe's own reverse index from live object identity back to the
// scratch-table id the engine minted for it — the engine's table is
// id-to-value only, so this is what lets ScopesOf/SourceOf/BoundInternalsOf
// accept a bare Value later and still find its id. Every operation is
// additionally funneled through a single weight-1 probeLock, layered over
// the engine's own lock, so at most one probe round trip is outstanding at
// a time (the remote side shares one id-keyed scratch table and concurrent
// use would race on ids).
//
// goja has no public debugger/inspector protocol, so unlike a real engine
// it cannot report the lexical scope chain of an arbitrary function value
// discovered after the fact. This probe instead requires scope chains to
// be registered at the point a closure is minted, via Closure or Bind; a
// function value that never went through either returns ScopesMissing,
// and callers fall back to the Closure Registry (ordinary top-level script
// functions, or third-party code handed in directly, are the common case
// that falls back).
type GojaProbe struct {
	engine *ckruntime.Engine

	mu     *probeLock
	objIDs map[*goja.Object]ckruntime.ObjectID
	scopes map[ckruntime.ObjectID][]ScopeBindings
	bound  map[ckruntime.ObjectID]*BoundInternals
}

// NewGojaProbe wraps engine. engine's own goja.Runtime is reused as the
// probe's side-channel execution context.
func NewGojaProbe(engine *ckruntime.Engine) *GojaProbe {
	return &GojaProbe{
		engine: engine,
		mu:     newProbeLock(),
		objIDs: make(map[*goja.Object]ckruntime.ObjectID),
		scopes: make(map[ckruntime.ObjectID][]ScopeBindings),
		bound:  make(map[ckruntime.ObjectID]*BoundInternals),
	}
}

// Runtime exposes the underlying goja.Runtime for callers that build
// values to capture.
func (p *GojaProbe) Runtime() *goja.Runtime {
	return p.engine.Runtime()
}

// idFor returns the scratch-table id already recorded for v's underlying
// object, stashing it on first sight (via engine.Stash) if the probe has
// never seen this identity before. Callers must already hold p.mu.
func (p *GojaProbe) idFor(v Value) (ckruntime.ObjectID, *goja.Object, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return "", nil, false
	}
	if id, ok := p.objIDs[obj]; ok {
		return id, obj, true
	}
	id := p.engine.Stash(v)
	p.objIDs[obj] = id
	return id, obj, true
}

// Closure evaluates source (a function or class literal) via
// engine.EvaluateInContext and records scopes as its captured lexical
// scope chain, outer-to-inner, for later ScopesOf calls.
func (p *GojaProbe) Closure(source string, scopes ...ScopeBindings) (Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, err := p.engine.EvaluateInContext("(" + source + ")")
	if err != nil {
		return nil, fmt.Errorf("closurekit: probe: evaluating closure literal: %w", err)
	}
	v, _ := p.engine.Resolve(id)
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("closurekit: probe: closure literal did not evaluate to an object")
	}
	p.objIDs[obj] = id
	if len(scopes) > 0 {
		p.scopes[id] = scopes
	}
	return v, nil
}

// Bind produces a bound function via the runtime's native
// Function.prototype.bind, invoked through engine.Invoke, and records its
// target/receiver/arguments so a later BoundInternalsOf call can recover
// them.
func (p *GojaProbe) Bind(target Value, this Value, args ...Value) (Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	targetID, _, ok := p.idFor(target)
	if !ok {
		return nil, fmt.Errorf("closurekit: probe: bind target is not an object")
	}

	argIDs := make([]ckruntime.ObjectID, 0, len(args)+1)
	argIDs = append(argIDs, p.engine.Stash(this))
	for _, a := range args {
		argIDs = append(argIDs, p.engine.Stash(a))
	}

	resultID, err := p.engine.Invoke(targetID, "bind", argIDs...)
	if err != nil {
		return nil, fmt.Errorf("closurekit: probe: bind: %w", err)
	}
	result, _ := p.engine.Resolve(resultID)
	if obj, ok := result.(*goja.Object); ok {
		p.objIDs[obj] = resultID
		p.bound[resultID] = &BoundInternals{Target: target, This: this, Args: args}
	}
	return result, nil
}

// SourceOf implements the engine's canonical stringification: it invokes
// the function's own toString through engine.Invoke, matching
// Function.prototype.toString semantics rather than re-deriving source
// text from the AST.
func (p *GojaProbe) SourceOf(v Value) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, _, ok := p.idFor(v)
	if !ok {
		return "", newError(ErrNativeFunctionUnsupported, "", "", fmt.Errorf("value is not an object"))
	}
	resultID, err := p.engine.Invoke(id, "toString")
	if err != nil {
		return "", newError(ErrProbeUnavailable, "", "", fmt.Errorf("source-of: %w", err))
	}
	result, _ := p.engine.Resolve(resultID)
	return result.String(), nil
}

// BoundInternalsOf returns the target/receiver/arguments recorded when v
// was produced by Bind. Callers MUST only invoke this when v's declared
// name begins with "bound ".
func (p *GojaProbe) BoundInternalsOf(v Value) (*BoundInternals, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, _, ok := p.idFor(v)
	if !ok {
		return nil, newError(ErrNotBound, "", "", fmt.Errorf("value is not an object"))
	}
	bi, ok := p.bound[id]
	if !ok {
		return nil, newError(ErrNotBound, "", "", fmt.Errorf("no recorded bound-internals; only functions produced by Bind expose them"))
	}
	return bi, nil
}

// ScopesOf returns the lexical scope chain recorded for v via Closure, in
// the order it was recorded (outer-to-inner).
func (p *GojaProbe) ScopesOf(v Value) ([]ScopeBindings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id, _, ok := p.idFor(v)
	if !ok {
		return nil, newError(ErrScopesMissing, "", "", fmt.Errorf("value is not an object"))
	}
	scopes, ok := p.scopes[id]
	if !ok {
		return nil, newError(ErrScopesMissing, "", "", fmt.Errorf("no captured scope chain recorded for this function"))
	}
	return scopes, nil
}

// buildLiveFunction assembles a LiveFunction for v using probe, tolerating
// (and propagating, not swallowing) the non-fatal gaps this allows:
// an unbound function's BoundInternalsOf is simply never asked for, and a
// missing scope chain is returned as an error for the caller (serialize.go)
// to react to by falling back to the Closure Registry.
func buildLiveFunction(probe EngineProbe, v Value) (*LiveFunction, error) {
	source, err := probe.SourceOf(v)
	if err != nil {
		return nil, err
	}

	lf := &LiveFunction{Value: v, Source: source}

	if obj, ok := v.(*goja.Object); ok {
		if nameVal := obj.Get("name"); nameVal != nil {
			lf.Name = nameVal.String()
		}
		lf.Prototype = obj.Get("prototype")
		if pg, ok := v.(protoGetter); ok {
			if meta := pg.Prototype(); meta != nil {
				lf.MetaPrototype = meta
			}
		}
	}

	if lf.IsBoundName() {
		if bi, err := probe.BoundInternalsOf(v); err == nil {
			lf.Bound = bi
		}
	}

	if !lf.IsNative() {
		scopes, err := probe.ScopesOf(v)
		if err != nil {
			return lf, err
		}
		lf.Scopes = scopes
	}

	return lf, nil
}
