// Package closurekit serializes a live JavaScript function, together with
// its transitive closure of captured values, into a self-contained
// JavaScript module that re-creates an equivalent function when loaded in
// a fresh environment.
//
// Architecture Overview
//
// Serializing a closure is a four-stage pipeline:
//
//  1. The Engine Probe recovers a function value's source text, its
//     bound-function internals (if any), and the lexical scope chain it
//     closed over, from a live embedded JavaScript runtime (goja). A
//     process-wide Closure Registry stands in for functions whose scope
//     chain was never captured this way — e.g. ordinary top-level script
//     functions, annotated at build time with a small extractor that
//     returns their captured values.
//  2. The Parser turns a function's source text into a normalized AST,
//     decoupled from the embedded runtime's own parser types.
//  3. The Free-Variable Analyzer walks that AST once, threading a
//     lexical-scope set through the tree, and resolves every identifier
//     that references a value outside the function.
//  4. The Value Graph Serializer walks the resulting object graph,
//     inlining primitives and identity-caching composite values behind a
//     preamble/postamble split so cycles and shared references round-trip
//     correctly, handing nested functions and classes to the Closure
//     Emitter, which rebinds their free variables through an
//     immediately-invoked wrapper.
//
// Usage
//
//	s := closurekit.NewSerializer(nil)
//	fn, err := s.Probe().Closure(`function (x) { return x + y; }`, closurekit.ScopeBindings{
//		Bindings: map[string]closurekit.Value{"y": s.Runtime().ToValue(1)},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	module, err := s.Serialize(fn, closurekit.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Print(module.String())
package closurekit
