package closurekit

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	ckruntime "github.com/closurekit/closurekit/runtime"
)

// Serializer owns one embedded JavaScript runtime, its Engine Probe, and
// the closure registry consulted as a fallback ingest path. Use Runtime
// (or Probe, for closures that need their scope chain captured at
// creation time) to build the function you intend to serialize, then
// call Serialize.
type Serializer struct {
	engine   *ckruntime.Engine
	probe    *GojaProbe
	registry *ClosureRegistry
	log      *zap.SugaredLogger
}

// NewSerializer builds a Serializer around a fresh embedded runtime. A nil
// log falls back to a no-op logger.
func NewSerializer(log *zap.Logger) *Serializer {
	if log == nil {
		log = zap.NewNop()
	}
	engine := ckruntime.New()
	return &Serializer{
		engine:   engine,
		probe:    NewGojaProbe(engine),
		registry: DefaultRegistry(),
		log:      log.Sugar(),
	}
}

// Runtime exposes the embedded goja.Runtime: run source in it, or read
// values back out of it, before handing a function value to Serialize.
func (s *Serializer) Runtime() *goja.Runtime { return s.engine.Runtime() }

// Probe exposes the Engine Probe driving Runtime, for closures minted via
// GojaProbe.Closure/Bind rather than plain script evaluation.
func (s *Serializer) Probe() *GojaProbe { return s.probe }

// Registry exposes the closure registry consulted when a function's scope
// chain was never captured via Probe().Closure/Bind — the ingest path for
// functions loaded as ordinary top-level script or module code via a
// build-time transform.
func (s *Serializer) Registry() *ClosureRegistry { return s.registry }

// Serialize is the top-level operation: given a live
// function or class value, it resolves its transitive closure of free
// variables, recursively serializes every composite value it reaches
// exactly once, and returns the emitted module. No partial module is ever
// returned alongside an error.
func (s *Serializer) Serialize(root Value, opts Options) (*EmittedModule, error) {
	obj, ok := root.(*goja.Object)
	if !ok {
		return nil, newError(ErrUnparseableSource, "", "", fmt.Errorf("root value is not an object"))
	}
	if _, callable := goja.AssertFunction(obj); !callable {
		return nil, newError(ErrUnparseableSource, "", "", fmt.Errorf("root value is not callable"))
	}

	vgs := NewValueGraphSerializer(s.probe, s.registry, s.Runtime(), opts)

	rootExpr, err := vgs.SerializeValue(root, "$root")
	if err != nil {
		s.log.Debugw("closure serialization failed", "error", err)
		return nil, err
	}

	module := vgs.Module()
	if opts.IsFactoryFunction {
		module.Export = fmt.Sprintf("module.exports = (%s)();", rootExpr)
	} else {
		module.Export = fmt.Sprintf("module.exports = %s;", rootExpr)
	}

	s.log.Debugw("closure serialized",
		"preambleStatements", len(module.Preamble),
		"postambleStatements", len(module.Postamble),
	)
	return module, nil
}
