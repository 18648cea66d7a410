package closurekit

// FreeVariable is a (lexical-name, value) pair: the identifier
// text as it appears in the function body, and the live value resolved for
// it from the owning function's captured scope chain.
type FreeVariable struct {
	Name     string
	Value    Value
	Resolved bool // false => UnresolvedFreeVariable (non-fatal unless Options.Strict)
}

// Resolver looks up the value bound to a lexical name in the scope chain
// of the function currently being analyzed. The Engine Probe and the
// Closure Registry both implement this signature ("a single
// analyzer interface resolve(function, name) -> value").
type Resolver func(name string) (Value, bool)

// Analyzer walks a function's AST and resolves its free variables: one
// depth-first traversal over a FunctionAST that threads a lexical-scope
// set through the tree and enumerates identifiers that reference values
// outside the function.
type Analyzer struct {
	resolve Resolver
}

// NewAnalyzer builds an Analyzer that resolves free variables with resolve.
func NewAnalyzer(resolve Resolver) *Analyzer {
	return &Analyzer{resolve: resolve}
}

// Analyze walks fn.Root and returns its free variables, deduplicated by
// lexical name, ordered by first occurrence in evaluation order.
func (a *Analyzer) Analyze(fn *FunctionAST) []FreeVariable {
	root := fn.Root
	scope := newScopeFrame(ownBindings(root)...)

	var order []string
	seen := make(map[string]bool)
	record := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		order = append(order, name)
	}

	if isClassKind(root) {
		walkClassChildren(root, scope, record)
	} else {
		walkFunctionChildren(root, scope, record)
	}

	vars := make([]FreeVariable, 0, len(order))
	for _, name := range order {
		v, ok := a.resolve(name)
		vars = append(vars, FreeVariable{Name: name, Value: v, Resolved: ok})
	}
	return vars
}

func isClassKind(n *Node) bool {
	return n != nil && (n.Kind == KindClassDeclaration || n.Kind == KindClassExpression)
}

func isFunctionKind(n *Node) bool {
	return n != nil && (n.Kind == KindFunctionDeclaration || n.Kind == KindFunctionExpression || n.Kind == KindArrowFunction)
}

// ownBindings returns the names a function/class/method node binds within
// its own scope: its own name (if any) plus, for functions, every
// parameter-binding name (covering identifier, array-destructure,
// object-destructure, and nested patterns, rest elements included).
func ownBindings(n *Node) []string {
	var names []string
	switch n.Kind {
	case KindFunctionDeclaration, KindFunctionExpression:
		for _, c := range n.Children {
			switch c.Kind {
			case KindIdentifier:
				names = append(names, c.Name)
			case KindParameter, KindRestElement:
				collectBindingIdentifiers(c, &names)
			}
		}
	case KindArrowFunction:
		for _, c := range n.Children {
			if c.Kind == KindParameter || c.Kind == KindRestElement {
				collectBindingIdentifiers(c, &names)
			}
		}
	case KindClassDeclaration, KindClassExpression:
		if len(n.Children) > 0 && n.Children[0].Kind == KindIdentifier && n.Children[0] != n.Aux {
			names = append(names, n.Children[0].Name)
		}
	}
	return names
}

// collectBindingIdentifiers recurses into a binding-target subtree
// (identifier, array pattern, object pattern, rest element) and appends
// every identifier that the pattern binds, ignoring default-value
// initializer expressions (those are evaluated, not bound, and are walked
// separately as ordinary free-variable-seeking expressions).
func collectBindingIdentifiers(n *Node, out *[]string) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindIdentifier:
		*out = append(*out, n.Name)
	case KindArrayPattern, KindRestElement:
		for _, c := range n.Children {
			collectBindingIdentifiers(c, out)
		}
	case KindObjectPattern:
		for _, c := range n.Children {
			collectBindingIdentifiers(c, out)
		}
	case KindProperty:
		if n.Name != "" {
			// shorthand {a} or {a = default}: children[0] is the binding.
			if len(n.Children) > 0 {
				collectBindingIdentifiers(n.Children[0], out)
			}
		} else {
			// keyed {key: value}: children[0] is the key, children[1] the
			// value pattern.
			if len(n.Children) > 1 {
				collectBindingIdentifiers(n.Children[1], out)
			}
		}
	case KindParameter, KindAssignmentPattern:
		if len(n.Children) > 0 {
			collectBindingIdentifiers(n.Children[0], out)
		}
	}
}

// walkFunctionChildren visits a function/arrow node's children for
// free-variable references: skips the own-name identifier and the
// parameter binding targets (already folded into scope), but still walks
// parameter default-value initializers and the body.
func walkFunctionChildren(n *Node, scope ScopeFrame, record func(string)) {
	for _, c := range n.Children {
		switch c.Kind {
		case KindIdentifier:
			continue
		case KindParameter:
			if len(c.Children) > 1 {
				walkExpr(c.Children[1], scope, record)
			}
		case KindRestElement:
			continue
		case KindBlockStatement:
			walkBlock(c, scope, record)
		default:
			walkExpr(c, scope, record)
		}
	}
}

// walkClassChildren visits a class node's children: skips the own-name
// identifier (already folded into scope by the caller), walks the
// superclass expression (if any) for free-variable references, and
// descends into each method. The superclass child is identified via
// n.Aux rather than position, since an anonymous class's first child is
// the superclass expression, not a name.
func walkClassChildren(n *Node, scope ScopeFrame, record func(string)) {
	for _, c := range n.Children {
		if c == n.Aux {
			walkExpr(c, scope, record)
			continue
		}
		if c.Kind == KindIdentifier {
			continue
		}
		walkExpr(c, scope, record)
	}
}

// walkBlock implements the hoisting + in-order-extension rules of spec
// §4.3/§3: function declarations and uninitialized var declarations are
// bound before the first statement runs; every other var/let/const/class
// binding extends scope only after its declarator has been visited, so
// its own initializer sees the pre-declaration scope.
func walkBlock(block *Node, scope ScopeFrame, record func(string)) {
	var hoisted []string
	collectHoisted(block, &hoisted)
	scope = scope.with(hoisted...)

	for _, stmt := range block.Children {
		switch stmt.Kind {
		case KindVariableDeclaration:
			for _, d := range stmt.Children {
				if len(d.Children) > 1 {
					walkExpr(d.Children[1], scope, record)
				}
				var names []string
				if len(d.Children) > 0 {
					collectBindingIdentifiers(d.Children[0], &names)
				}
				scope = scope.with(names...)
			}
		case KindClassDeclaration:
			inner := scope.with(stmt.Name)
			walkClassChildren(stmt, inner, record)
			scope = scope.with(stmt.Name)
		case KindFunctionDeclaration:
			walkExpr(stmt, scope, record)
		default:
			walkExpr(stmt, scope, record)
		}
	}
}

func collectHoisted(block *Node, out *[]string) {
	for _, stmt := range block.Children {
		switch stmt.Kind {
		case KindFunctionDeclaration:
			if stmt.Name != "" {
				*out = append(*out, stmt.Name)
			}
		case KindVariableDeclaration:
			if stmt.Name != "var" {
				continue
			}
			for _, d := range stmt.Children {
				if len(d.Children) == 1 { // no initializer
					var names []string
					collectBindingIdentifiers(d.Children[0], &names)
					*out = append(*out, names...)
				}
			}
		}
	}
}

// walkExpr is the generic identifier-reference walk: it descends into any
// node, entering a fresh lexical region for nested functions/classes,
// catch clauses, and for-bindings, and reports every Identifier not bound
// by the current cumulative scope.
func walkExpr(n *Node, scope ScopeFrame, record func(string)) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindIdentifier:
		if !scope[n.Name] {
			record(n.Name)
		}
	case KindFunctionDeclaration, KindFunctionExpression, KindArrowFunction:
		inner := scope.with(ownBindings(n)...)
		walkFunctionChildren(n, inner, record)
	case KindClassDeclaration, KindClassExpression:
		inner := scope.with(ownBindings(n)...)
		walkClassChildren(n, inner, record)
	case KindClassMethod:
		for _, c := range n.Children {
			walkExpr(c, scope, record)
		}
	case KindBlockStatement:
		walkBlock(n, scope, record)
	case KindMemberExpression:
		if len(n.Children) > 0 {
			walkExpr(n.Children[0], scope, record)
		}
		if len(n.Children) > 1 {
			if n.Computed {
				walkExpr(n.Children[1], scope, record)
			}
			// non-computed: n.Children[1] is a property name position, not
			// a variable reference.
		}
	case KindProperty:
		// Shorthand (`{ x }`) has a single child: the identifier is both
		// the key and the value reference, so it must be walked. Keyed
		// properties (`{ x: 1 }`) have Children[0]=key, Children[1]=value;
		// a non-computed key is a property name position, not a variable
		// reference, same as the non-computed member case above.
		if len(n.Children) == 1 {
			walkExpr(n.Children[0], scope, record)
		} else if len(n.Children) > 1 {
			if n.Computed {
				walkExpr(n.Children[0], scope, record)
			}
			walkExpr(n.Children[1], scope, record)
		}
	case KindVariableDeclaration:
		for _, d := range n.Children {
			if len(d.Children) > 1 {
				walkExpr(d.Children[1], scope, record)
			}
		}
	case KindCatchClause:
		var names []string
		if len(n.Children) > 0 {
			collectBindingIdentifiers(n.Children[0], &names)
		}
		inner := scope.with(names...)
		if len(n.Children) > 1 {
			walkExpr(n.Children[1], inner, record)
		}
	case KindForBinding:
		if len(n.Children) < 3 {
			return
		}
		into, source, body := n.Children[0], n.Children[1], n.Children[2]
		var names []string
		if into.Kind == KindVariableDeclaration {
			for _, d := range into.Children {
				if len(d.Children) > 0 {
					collectBindingIdentifiers(d.Children[0], &names)
				}
			}
		} else {
			collectBindingIdentifiers(into, &names)
		}
		walkExpr(source, scope, record)
		inner := scope.with(names...)
		walkExpr(body, inner, record)
	case KindForStatement:
		inner := scope
		if len(n.Children) > 0 && n.Children[0].Kind == KindVariableDeclaration {
			var names []string
			for _, d := range n.Children[0].Children {
				if len(d.Children) > 0 {
					collectBindingIdentifiers(d.Children[0], &names)
				}
			}
			inner = inner.with(names...)
		}
		for _, c := range n.Children {
			walkExpr(c, inner, record)
		}
	default:
		for _, c := range n.Children {
			walkExpr(c, scope, record)
		}
	}
}
