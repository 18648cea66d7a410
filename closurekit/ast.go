package closurekit

// NodeKind normalizes the shapes the Free-Variable Analyzer and Closure
// Emitter need to distinguish. It deliberately does not mirror goja/ast's
// full node set: parser.go collapses everything the analyzer treats
// identically (most expressions) into KindOther, and keeps the shapes that
// change scope or identifier resolution as distinct kinds.
type NodeKind int

const (
	KindIdentifier NodeKind = iota
	KindFunctionDeclaration
	KindFunctionExpression
	KindArrowFunction
	KindClassDeclaration
	KindClassExpression
	KindClassMethod
	KindBlockStatement
	KindProgram
	KindVariableDeclaration
	KindVariableDeclarator
	KindParameter
	KindArrayPattern
	KindObjectPattern
	KindRestElement
	KindAssignmentPattern
	KindProperty
	KindMemberExpression
	KindCallExpression
	KindCatchClause
	KindForStatement
	KindForBinding
	KindOther
)

// Node is the serializer's own lightweight AST, built once by parser.go
// from goja's parse tree and then owned entirely by this package. Start
// and End are byte offsets into FunctionAST.Source; the Closure Emitter
// prints by slicing the original source rather than re-generating it from
// scratch, so Start/End must bracket exactly the text the node covers.
type Node struct {
	Kind     NodeKind
	Name     string // identifier text, declaration keyword ("var"/"let"/"const"), or property key
	Computed bool   // true for obj[expr] / {[expr]: v} rather than obj.prop / {prop: v}
	Static   bool   // true for `static` class members
	Async    bool
	Start    int
	End      int
	Children []*Node

	// Aux holds a single auxiliary child outside the generic Children
	// walk order when a node needs to be found directly rather than by
	// position: currently only the superclass expression of a class
	// node, consulted by the Closure Emitter's extends-clause rewrite.
	Aux *Node
}

func (n *Node) text(src string) string {
	if n == nil || n.Start < 0 || n.End > len(src) || n.Start > n.End {
		return ""
	}
	return src[n.Start:n.End]
}

func newNode(kind NodeKind, start, end int, children ...*Node) *Node {
	return &Node{Kind: kind, Start: start, End: end, Children: children}
}

// walk visits n and every descendant, in evaluation order (the same order
// Children were appended in), calling visit before descending into each
// node's children. Returning false from visit skips that node's children.
func walk(n *Node, visit func(*Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range n.Children {
		walk(c, visit)
	}
}

// FunctionAST is the normalized parse of a single function or class,
// together with the source text it was parsed from (used as print
// context by the Closure Emitter).
type FunctionAST struct {
	// Source is the exact text that was parsed (after any shorthand-retry
	// rewrite has been undone by position-adjustment, see parser.go).
	Source string

	// Root is the normalized function/class node: one of
	// KindFunctionDeclaration, KindFunctionExpression, KindArrowFunction,
	// KindClassDeclaration, or KindClassExpression.
	Root *Node

	// declaredName is the function's own name, if the declaration form or
	// a named function expression supplies one.
	declaredName string
}

// DeclaredName returns the function/class's own name, or "" if anonymous.
func (f *FunctionAST) DeclaredName() string {
	return f.declaredName
}

// IsClass reports whether Root is a class declaration or expression.
func (f *FunctionAST) IsClass() bool {
	return f.Root != nil && (f.Root.Kind == KindClassDeclaration || f.Root.Kind == KindClassExpression)
}

// IsArrow reports whether Root is an arrow-function expression (arrows
// never get their own `this`/`arguments`/`super`, which the Closure
// Emitter must account for).
func (f *FunctionAST) IsArrow() bool {
	return f.Root != nil && f.Root.Kind == KindArrowFunction
}
