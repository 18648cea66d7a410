package closurekit

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// EmittedModule is the two-phase output of one Serialize call:
// preamble statements create every composite binding with an empty shell
// so cyclic references have something to point at, postamble statements
// populate them, and Export is the final `exports.<name> = ...` line.
type EmittedModule struct {
	Preamble  []string
	Postamble []string
	Export    string
}

// String renders the module as a single ordered source text: every
// preamble statement, then every postamble statement, then the export
// line, matching the order an ingest-by-require consumer needs.
func (m *EmittedModule) String() string {
	var b strings.Builder
	for _, s := range m.Preamble {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	for _, s := range m.Postamble {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	b.WriteString(m.Export)
	b.WriteByte('\n')
	return b.String()
}

// ValueGraphSerializer walks the reachable object graph of a root value:
// it walks a live value's object graph once, emitting primitives inline
// and composite values as identity-cached preamble/postamble pairs, and
// hands functions and classes off to the Free-Variable Analyzer and
// Closure Emitter.
type ValueGraphSerializer struct {
	probe    EngineProbe
	registry *ClosureRegistry
	parser   *Parser
	names    *Allocator
	emitter  *Emitter
	opts     Options

	module *EmittedModule
	cache  map[*goja.Object]string

	globalRefs map[*goja.Object]string

	objectProto   *goja.Object
	arrayProto    *goja.Object
	functionProto *goja.Object
}

// NewValueGraphSerializer builds a serializer for one Serialize call. rt
// is the runtime probe and registry ultimately read live values from; it
// is used here only to resolve the global whitelist and the built-in
// default prototypes composite values are compared against.
func NewValueGraphSerializer(probe EngineProbe, registry *ClosureRegistry, rt *goja.Runtime, opts Options) *ValueGraphSerializer {
	names := NewAllocator()
	s := &ValueGraphSerializer{
		probe:    probe,
		registry: registry,
		parser:   NewParser(),
		names:    names,
		emitter:  NewEmitter(names),
		opts:     opts,
		module:   &EmittedModule{},
		cache:    make(map[*goja.Object]string),
	}

	s.objectProto = protoOfGlobalCtor(rt, "Object")
	s.arrayProto = protoOfGlobalCtor(rt, "Array")
	s.functionProto = protoOfGlobalCtor(rt, "Function")

	s.globalRefs = make(map[*goja.Object]string, len(opts.globalNames()))
	if rt != nil {
		for _, name := range opts.globalNames() {
			if obj, ok := rt.GlobalObject().Get(name).(*goja.Object); ok {
				s.globalRefs[obj] = name
			}
		}
	}
	return s
}

func protoOfGlobalCtor(rt *goja.Runtime, name string) *goja.Object {
	if rt == nil {
		return nil
	}
	ctor, ok := rt.GlobalObject().Get(name).(*goja.Object)
	if !ok {
		return nil
	}
	proto, _ := ctor.Get("prototype").(*goja.Object)
	return proto
}

// Module returns the module built up so far; valid to call after the root
// SerializeValue call returns.
func (s *ValueGraphSerializer) Module() *EmittedModule { return s.module }

// SerializeValue renders v: a primitive as an inline literal, a
// previously-seen composite as its cached identifier, a whitelisted
// global as its global reference, and anything else as a freshly
// allocated identifier with preamble/postamble statements appended to the
// serializer's module.
func (s *ValueGraphSerializer) SerializeValue(v Value, path string) (string, error) {
	if s.opts.PreSerializeValue != nil {
		v = s.opts.PreSerializeValue(v)
	}
	if v == nil || goja.IsUndefined(v) {
		return "undefined", nil
	}
	if goja.IsNull(v) {
		return "null", nil
	}

	obj, isObject := v.(*goja.Object)
	if !isObject {
		lit, ok := literalOf(v)
		if !ok {
			return "", wrapf(ErrUnparseableSource, "", path, "value of unsupported kind %T", v)
		}
		return lit, nil
	}

	if name, ok := s.cache[obj]; ok {
		return name, nil
	}
	if name, ok := s.globalRefs[obj]; ok {
		return name, nil
	}

	if _, callable := goja.AssertFunction(obj); callable {
		return s.serializeFunction(obj, path)
	}
	if obj.ClassName() == "Array" {
		return s.serializeComposite(obj, path, "[]", s.arrayProto)
	}
	return s.serializeComposite(obj, path, "{}", s.objectProto)
}

// serializeComposite handles plain objects and arrays alike: both need an
// empty preamble shell, an optional prototype rewrite, and a postamble
// loop over own enumerable keys. Iterating obj.Keys() rather than a dense
// index range naturally preserves array holes: a missing index is simply
// never assigned in the postamble.
func (s *ValueGraphSerializer) serializeComposite(obj *goja.Object, path, shell string, defaultProto *goja.Object) (string, error) {
	id := s.names.Next(DefaultValuePrefix, nil)
	s.cache[obj] = id
	s.module.Preamble = append(s.module.Preamble, fmt.Sprintf("var %s = %s;", id, shell))

	if proto := obj.Prototype(); proto != nil && proto != defaultProto {
		protoExpr, err := s.SerializeValue(proto, path+".[[Prototype]]")
		if err != nil {
			return "", err
		}
		s.module.Postamble = append(s.module.Postamble, fmt.Sprintf("Object.setPrototypeOf(%s, %s);", id, protoExpr))
	}

	for _, key := range obj.Keys() {
		valExpr, err := s.SerializeValue(obj.Get(key), path+"."+key)
		if err != nil {
			return "", err
		}
		s.module.Postamble = append(s.module.Postamble, fmt.Sprintf("%s[%s] = %s;", id, strconv.Quote(key), valExpr))
	}
	return id, nil
}

// serializeFunction handles both ordinary functions/classes and bound
// wrappers. A bound wrapper is never textually re-derived (its own
// source is the engine's native-code marker); instead the underlying
// target, receiver, and curried arguments are each serialized and wired
// back together with a trailing .bind() call.
func (s *ValueGraphSerializer) serializeFunction(obj *goja.Object, path string) (string, error) {
	id := s.names.Next(DefaultValuePrefix, nil)
	s.cache[obj] = id
	s.module.Preamble = append(s.module.Preamble, fmt.Sprintf("var %s;", id))

	lf, err := buildLiveFunction(s.probe, obj)
	var resolver Resolver
	if err != nil {
		ckErr, ok := err.(*Error)
		if !ok || ckErr.Kind != ErrScopesMissing {
			return "", err
		}
		resolver, err = s.registry.Resolver(obj)
		if err != nil {
			return "", wrapf(ErrProbeUnavailable, lf.Name, path, "no captured scope chain and no registry entry: %v", err)
		}
	}
	if lf.IsBoundName() && lf.Bound != nil {
		return s.serializeBoundFunction(id, lf, path)
	}

	if lf.IsNative() {
		return "", newError(ErrNativeFunctionUnsupported, lf.Name, path, fmt.Errorf("function has no readable source"))
	}

	fn, err := s.parser.Parse(lf.Source)
	if err != nil {
		return "", newError(ErrUnparseableSource, lf.Name, path, err)
	}
	if err := applyTransforms(s.opts.PreProcess, fn, lf.Name, path); err != nil {
		return "", err
	}

	if resolver == nil {
		resolver = scopeResolver(lf.Scopes)
	}
	freeVars := NewAnalyzer(resolver).Analyze(fn)

	if err := applyTransforms(s.opts.PostProcess, fn, lf.Name, path); err != nil {
		return "", err
	}

	rewriteTo, auxName, needsSuper := s.classSuperRewrite(fn, lf, freeVars)

	emitFreeVars := make([]EmitFreeVar, 0, len(freeVars)+1)
	for _, fv := range freeVars {
		if needsSuper && fv.Name == auxName {
			continue
		}
		if !fv.Resolved {
			if s.opts.Strict {
				return "", newError(ErrUnresolvedFreeVariable, lf.Name, path+"."+fv.Name,
					fmt.Errorf("%q is not bound in the captured scope chain", fv.Name))
			}
			continue
		}
		valExpr, err := s.SerializeValue(fv.Value, path+"."+fv.Name)
		if err != nil {
			return "", err
		}
		emitFreeVars = append(emitFreeVars, EmitFreeVar{Name: fv.Name, Expr: valExpr})
	}

	superName := ""
	if needsSuper {
		superExpr, err := s.SerializeValue(rewriteTo, path+".[[Prototype]]")
		if err != nil {
			return "", err
		}
		exclude := make(map[string]bool)
		collectIdentifiers(fn.Root, exclude)
		superName = s.names.NextReserved(DefaultSuperPrefix, exclude)
		emitFreeVars = append(emitFreeVars, EmitFreeVar{Name: superName, Expr: superExpr})
	}

	expr := s.emitter.Emit(fn, EmitOptions{FreeVars: emitFreeVars, SuperName: superName})
	s.module.Postamble = append(s.module.Postamble, fmt.Sprintf("%s = %s;", id, expr))
	return id, nil
}

func (s *ValueGraphSerializer) serializeBoundFunction(id string, lf *LiveFunction, path string) (string, error) {
	targetExpr, err := s.SerializeValue(lf.Bound.Target, path+".[[BoundTarget]]")
	if err != nil {
		return "", err
	}
	thisExpr, err := s.SerializeValue(lf.Bound.This, path+".[[BoundThis]]")
	if err != nil {
		return "", err
	}
	bindArgs := make([]string, 0, len(lf.Bound.Args)+1)
	bindArgs = append(bindArgs, thisExpr)
	for i, a := range lf.Bound.Args {
		argExpr, err := s.SerializeValue(a, fmt.Sprintf("%s.[[BoundArgs]][%d]", path, i))
		if err != nil {
			return "", err
		}
		bindArgs = append(bindArgs, argExpr)
	}
	s.module.Postamble = append(s.module.Postamble,
		fmt.Sprintf("%s = (%s).bind(%s);", id, targetExpr, strings.Join(bindArgs, ", ")))
	return id, nil
}

// classSuperRewrite decides whether fn's class heritage needs rewriting
// because the live value's actual [[Prototype]] (its static inheritance
// target) no longer matches what its source text's extends clause
// resolves to — e.g. Object.setPrototypeOf(C, B) ran after `class C
// extends A {}` was declared. When the extends clause names a plain
// identifier, that identifier is already one of fn's free variables, so
// the comparison is just identity against the value already resolved for
// it; when there is no named identifier to compare against (no extends
// clause, or a non-identifier heritage expression), it falls back to
// comparing against the default class meta-prototype, Function.prototype.
func (s *ValueGraphSerializer) classSuperRewrite(fn *FunctionAST, lf *LiveFunction, freeVars []FreeVariable) (rewriteTo Value, auxName string, needed bool) {
	if !fn.IsClass() {
		return nil, "", false
	}
	meta := lf.MetaPrototype

	if aux := fn.Root.Aux; aux != nil && aux.Kind == KindIdentifier {
		for _, fv := range freeVars {
			if fv.Name != aux.Name {
				continue
			}
			if !fv.Resolved {
				return nil, "", false
			}
			if sameObject(fv.Value, meta) {
				return nil, aux.Name, false
			}
			return meta, aux.Name, true
		}
		return nil, "", false
	}

	if meta != nil && !sameObject(meta, s.functionProto) {
		return meta, "", true
	}
	return nil, "", false
}

func sameObject(a, b Value) bool {
	ao, aok := a.(*goja.Object)
	bo, bok := b.(*goja.Object)
	if !aok || !bok {
		return a == b
	}
	return ao == bo
}

// scopeResolver builds a Resolver over a captured scope chain. scopes is
// stored outer-to-inner; resolution walks it from the end so the
// innermost frame's binding wins on a name collision between nested
// scopes, matching ordinary lexical shadowing.
func scopeResolver(scopes []ScopeBindings) Resolver {
	return func(name string) (Value, bool) {
		for i := len(scopes) - 1; i >= 0; i-- {
			if v, ok := scopes[i].Bindings[name]; ok {
				return v, true
			}
		}
		return nil, false
	}
}

// literalOf renders a non-object value as an inline JavaScript literal.
// Numbers route through formatFloat/strconv so NaN, the two signed
// infinities, and negative zero round-trip exactly; strings and bigints
// use the quoting/suffix the JavaScript grammar expects.
func literalOf(v Value) (string, bool) {
	switch x := v.Export().(type) {
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	case int64:
		return strconv.FormatInt(x, 10), true
	case float64:
		return formatFloat(x), true
	case string:
		return strconv.Quote(x), true
	case fmt.Stringer:
		// *big.Int (BigInt values) stringifies to its decimal digits; the
		// JavaScript grammar appends "n" to mark it a bigint literal.
		return x.String() + "n", true
	default:
		return "", false
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	if f == 0 && math.Signbit(f) {
		return "-0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
