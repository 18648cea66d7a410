package closurekit

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// registryEntry is what ClosureRegistry stores per registered function:
// the source-file identifier a build-time transform stamped the function
// with, and the zero-arg extractor that returns its captured values.
type registryEntry struct {
	SourceFileID string
	Extract      Value // a goja function: () => [a, b, c]
}

// ClosureRegistry is the alternate ingest path for functions whose scope
// chain was never captured by the probe: a process-wide table mapping
// functions to pre-annotated free-variable extractors, consulted instead
// of the Engine Probe when present. It models a "process-wide weak
// mapping" as a plain map keyed by function identity; entries are never
// removed for the registry's lifetime (the only mutation is Register,
// which rejects re-registration of an already-known function).
type ClosureRegistry struct {
	mu      sync.RWMutex
	entries map[Value]*registryEntry
}

// NewClosureRegistry creates an empty registry.
func NewClosureRegistry() *ClosureRegistry {
	return &ClosureRegistry{entries: make(map[Value]*registryEntry)}
}

var defaultRegistry = NewClosureRegistry()

// DefaultRegistry returns the process-wide registry a load-time transform
// (the require-hook, out of scope for this package) would populate.
func DefaultRegistry() *ClosureRegistry { return defaultRegistry }

// Register installs fn's extractor. fn is keyed by identity: registering
// the same function twice fails with DuplicateRegistration.
func (r *ClosureRegistry) Register(fn Value, sourceFileID string, extract Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[fn]; exists {
		return newError(ErrDuplicateRegistration, "", "", fmt.Errorf("function already registered under source file %q", sourceFileID))
	}
	r.entries[fn] = &registryEntry{SourceFileID: sourceFileID, Extract: extract}
	return nil
}

// Resolver returns a Resolver backed by fn's registry entry, suitable for
// handing straight to NewAnalyzer, or an error if fn was never registered
// or its extractor doesn't have the required shape (the registry's wire
// contract: an arrow expression whose body is an array literal each of
// whose elements is a bare identifier).
func (r *ClosureRegistry) Resolver(fn Value) (Resolver, error) {
	r.mu.RLock()
	entry, ok := r.entries[fn]
	r.mu.RUnlock()
	if !ok {
		return nil, newError(ErrProbeUnavailable, "", "", fmt.Errorf("no closure registry entry for this function"))
	}

	names, err := extractorNames(entry.Extract)
	if err != nil {
		return nil, err
	}

	values, err := callExtractor(entry.Extract)
	if err != nil {
		return nil, err
	}
	if len(values) != len(names) {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor returned %d values for %d captured identifiers", len(values), len(names)))
	}

	byName := make(map[string]Value, len(names))
	for i, n := range names {
		byName[n] = values[i]
	}
	return func(name string) (Value, bool) {
		v, ok := byName[name]
		return v, ok
	}, nil
}

// extractorNames parses extract's own source text (via its toString) and
// recovers the bare identifier names of its returned array literal.
func extractorNames(extract Value) ([]string, error) {
	obj, ok := extract.(*goja.Object)
	if !ok {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor is not an object"))
	}
	toStringFn, ok := goja.AssertFunction(obj.Get("toString"))
	if !ok {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor has no callable toString"))
	}
	srcVal, err := toStringFn(extract)
	if err != nil {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("reading extractor source: %w", err))
	}

	prog, err := parser.ParseFile(nil, "", srcVal.String(), 0)
	if err != nil {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor source did not parse: %w", err))
	}
	if len(prog.Body) != 1 {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor source is not a single expression"))
	}
	stmt, ok := prog.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor source is not an expression statement"))
	}
	arrow, ok := stmt.Expression.(*ast.ArrowFunctionLiteral)
	if !ok {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor is not an arrow expression"))
	}
	arrayLit, ok := arrow.Body.(*ast.ArrayLiteral)
	if !ok {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor body is not an array literal"))
	}

	names := make([]string, 0, len(arrayLit.Value))
	for _, el := range arrayLit.Value {
		id, ok := el.(*ast.Identifier)
		if !ok {
			return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("array literal element is not a bare identifier"))
		}
		names = append(names, string(id.Name))
	}
	return names, nil
}

func callExtractor(extract Value) ([]Value, error) {
	callable, ok := goja.AssertFunction(extract)
	if !ok {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor is not callable"))
	}
	result, err := callable(goja.Undefined())
	if err != nil {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("calling extractor: %w", err))
	}
	arr, ok := result.(*goja.Object)
	if !ok {
		return nil, newError(ErrMalformedRegistryEntry, "", "", fmt.Errorf("extractor did not return an array"))
	}
	length := int(arr.Get("length").ToInteger())
	values := make([]Value, length)
	for i := 0; i < length; i++ {
		values[i] = arr.Get(fmt.Sprintf("%d", i))
	}
	return values, nil
}
