package closurekit

import (
	"fmt"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// Parser turns a LiveFunction's source text into a normalized FunctionAST.
// It is grounded on goja/parser + goja/ast, the pack's pure-Go ECMAScript
// front end (see other_examples/.../r3e-network-service_layer,
// ethereum-go-ethereum for its use as a general-purpose JS parser).
type Parser struct{}

// NewParser returns a Parser. It holds no state; one value may be shared
// across serialize calls.
func NewParser() *Parser { return &Parser{} }

// Parse implements §4.2: attempt a standalone parse of source first (this
// is what succeeds for named function/class declarations and for arrow
// expressions, which are valid expression statements unwrapped). Engine
// toString output that standalone parse rejects falls back to two
// retries, in order: parenthesizing the text (anonymous function/class
// expressions, which a bare "function"/"class" keyword at statement
// position would otherwise misparse as a declaration), then prepending a
// synthetic "function " keyword (method-shorthand sources like "foo(x)
// {...}", which have neither a leading keyword nor a wrapping
// expression). Both retries adjust recorded offsets back to the original
// source before returning.
func (p *Parser) Parse(source string) (*FunctionAST, error) {
	if fa, err := p.tryParse(source, 0); err == nil {
		return fa, nil
	}

	if fa, err := p.tryParse("("+source+")", 1); err == nil {
		fa.Source = source
		return fa, nil
	}

	prefix := "function "
	if fa, err := p.tryParse(prefix+source, len(prefix)); err == nil {
		fa.Source = source
		return fa, nil
	}

	return nil, newError(ErrUnparseableSource, "", "", fmt.Errorf("source did not parse standalone, parenthesized, or with a prepended 'function ' keyword"))
}

// tryParse parses text and, on success, extracts the single normalized
// function/class node. shift is subtracted from every recorded byte
// offset so the returned FunctionAST's positions line up with whatever
// the caller ultimately sets Source to; callers that pass a non-zero
// shift always overwrite the returned Source with the true original
// right after, since text itself was a synthetic wrapper.
func (p *Parser) tryParse(text string, shift int) (*FunctionAST, error) {
	prog, err := parser.ParseFile(nil, "", text, 0)
	if err != nil {
		return nil, err
	}
	if len(prog.Body) != 1 {
		return nil, fmt.Errorf("expected exactly one top-level statement, got %d", len(prog.Body))
	}

	root, name, err := normalizeTopLevel(prog.Body[0])
	if err != nil {
		return nil, err
	}

	shiftNode(root, shift)

	return &FunctionAST{Source: text, Root: root, declaredName: name}, nil
}

func shiftNode(n *Node, shift int) {
	if n == nil || shift == 0 {
		return
	}
	walk(n, func(cur *Node) bool {
		cur.Start -= shift
		cur.End -= shift
		return true
	})
}

// normalizeTopLevel accepts a function/class declaration statement, or an
// expression statement wrapping a function/arrow/class expression, and
// returns the normalized Node plus the declared name if any.
func normalizeTopLevel(stmt ast.Statement) (*Node, string, error) {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		return functionNode(s.Function, KindFunctionDeclaration)
	case *ast.ClassDeclaration:
		return classNode(s.Class, KindClassDeclaration)
	case *ast.ExpressionStatement:
		return normalizeExpression(s.Expression)
	default:
		return nil, "", fmt.Errorf("top-level statement is not a function/class declaration or expression statement (%T)", stmt)
	}
}

func normalizeExpression(expr ast.Expression) (*Node, string, error) {
	switch e := expr.(type) {
	case *ast.FunctionLiteral:
		kind := KindFunctionExpression
		return functionNode(e, kind)
	case *ast.ArrowFunctionLiteral:
		return arrowNode(e)
	case *ast.ClassLiteral:
		return classNode(e, KindClassExpression)
	default:
		return nil, "", fmt.Errorf("expression statement does not wrap a function/arrow/class expression (%T)", expr)
	}
}

func functionNode(fn *ast.FunctionLiteral, kind NodeKind) (*Node, string, error) {
	n := &Node{Kind: kind, Async: fn.Async, Start: int(fn.Idx0()) - 1, End: int(fn.Idx1()) - 1}
	name := ""
	if fn.Name != nil {
		name = string(fn.Name.Name)
		n.Children = append(n.Children, identifierNode(fn.Name))
	}
	if fn.ParameterList != nil {
		for _, b := range fn.ParameterList.List {
			n.Children = append(n.Children, parameterNode(b))
		}
		if fn.ParameterList.Rest != nil {
			n.Children = append(n.Children, &Node{Kind: KindRestElement, Children: []*Node{exprNode(fn.ParameterList.Rest)}})
		}
	}
	if fn.Body != nil {
		n.Children = append(n.Children, blockNode(fn.Body))
	}
	return n, name, nil
}

func arrowNode(fn *ast.ArrowFunctionLiteral) (*Node, string, error) {
	n := &Node{Kind: KindArrowFunction, Async: fn.Async, Start: int(fn.Idx0()) - 1, End: int(fn.Idx1()) - 1}
	if fn.ParameterList != nil {
		for _, b := range fn.ParameterList.List {
			n.Children = append(n.Children, parameterNode(b))
		}
		if fn.ParameterList.Rest != nil {
			n.Children = append(n.Children, &Node{Kind: KindRestElement, Children: []*Node{exprNode(fn.ParameterList.Rest)}})
		}
	}
	switch body := fn.Body.(type) {
	case *ast.BlockStatement:
		n.Children = append(n.Children, blockNode(body))
	case ast.Expression:
		n.Children = append(n.Children, exprNode(body))
	}
	return n, "", nil
}

func classNode(c *ast.ClassLiteral, kind NodeKind) (*Node, string, error) {
	n := &Node{Kind: kind, Start: int(c.Idx0()) - 1, End: int(c.Idx1()) - 1}
	name := ""
	if c.Name != nil {
		name = string(c.Name.Name)
		n.Children = append(n.Children, identifierNode(c.Name))
	}
	if c.SuperClass != nil {
		super := exprNode(c.SuperClass)
		n.Children = append(n.Children, super)
		n.Aux = super
	}
	for _, elem := range c.Body {
		n.Children = append(n.Children, classElementNode(elem))
	}
	return n, name, nil
}

func classElementNode(elem ast.ClassElement) *Node {
	switch m := elem.(type) {
	case *ast.MethodDefinition:
		cm := &Node{Kind: KindClassMethod, Static: m.Static, Computed: m.Computed}
		if fn, name, err := functionNode(m.Body, KindFunctionExpression); err == nil {
			_ = name
			cm.Children = append(cm.Children, fn)
		}
		return cm
	case *ast.FieldDefinition:
		return &Node{Kind: KindOther, Static: m.Static, Computed: m.Computed}
	default:
		return &Node{Kind: KindOther}
	}
}

func identifierNode(id *ast.Identifier) *Node {
	return &Node{Kind: KindIdentifier, Name: string(id.Name), Start: int(id.Idx0()) - 1, End: int(id.Idx1()) - 1}
}

// parameterNode normalizes a parameter binding, covering plain
// identifiers, destructuring patterns (array/object, possibly nested), and
// defaulted parameters.
func parameterNode(b *ast.Binding) *Node {
	p := &Node{Kind: KindParameter}
	p.Children = append(p.Children, bindingTargetNode(b.Target))
	if b.Initializer != nil {
		p.Children = append(p.Children, exprNode(b.Initializer))
	}
	return p
}

func bindingTargetNode(t ast.BindingTarget) *Node {
	switch bt := t.(type) {
	case *ast.Identifier:
		return identifierNode(bt)
	case *ast.ArrayPattern:
		n := &Node{Kind: KindArrayPattern}
		for _, el := range bt.Elements {
			if el == nil {
				continue
			}
			n.Children = append(n.Children, exprNode(el))
		}
		if bt.Rest != nil {
			n.Children = append(n.Children, &Node{Kind: KindRestElement, Children: []*Node{exprNode(bt.Rest)}})
		}
		return n
	case *ast.ObjectPattern:
		n := &Node{Kind: KindObjectPattern}
		for _, prop := range bt.Properties {
			n.Children = append(n.Children, objectPatternPropertyNode(prop))
		}
		if bt.Rest != nil {
			n.Children = append(n.Children, &Node{Kind: KindRestElement, Children: []*Node{exprNode(bt.Rest)}})
		}
		return n
	default:
		return &Node{Kind: KindOther}
	}
}

func objectPatternPropertyNode(prop ast.Property) *Node {
	switch p := prop.(type) {
	case *ast.PropertyShort:
		id := identifierNode(&p.Name)
		n := &Node{Kind: KindProperty, Name: string(p.Name.Name), Children: []*Node{id}}
		if p.Initializer != nil {
			n.Children = append(n.Children, exprNode(p.Initializer))
		}
		return n
	case *ast.PropertyKeyed:
		n := &Node{Kind: KindProperty, Computed: p.Computed}
		n.Children = append(n.Children, exprNode(p.Key))
		n.Children = append(n.Children, bindingPatternValueNode(p.Value))
		return n
	default:
		return &Node{Kind: KindOther}
	}
}

// bindingPatternValueNode normalizes the value position of a destructuring
// object pattern's keyed property: a nested binding target (identifier,
// array/object pattern), optionally wrapped in an AssignExpression when the
// property carries a default (`{ b: c = 1 }`), which goja's parser
// represents the same way it represents a plain assignment expression.
func bindingPatternValueNode(value ast.Expression) *Node {
	if assign, ok := value.(*ast.AssignExpression); ok {
		if bt, ok := assign.Left.(ast.BindingTarget); ok {
			return &Node{Kind: KindAssignmentPattern, Children: []*Node{bindingTargetNode(bt), exprNode(assign.Right)}}
		}
	}
	if bt, ok := value.(ast.BindingTarget); ok {
		return bindingTargetNode(bt)
	}
	return exprNode(value)
}

func blockNode(b *ast.BlockStatement) *Node {
	n := &Node{Kind: KindBlockStatement, Start: int(b.Idx0()) - 1, End: int(b.Idx1()) - 1}
	for _, stmt := range b.List {
		n.Children = append(n.Children, stmtNode(stmt))
	}
	return n
}

// stmtNode and exprNode are deliberately shallow: the analyzer only needs
// to distinguish scope-affecting shapes (declarations, functions, classes,
// catch clauses, for-bindings) from everything else, which it treats as an
// opaque subtree it still must walk for identifier references. Unhandled
// concrete types fall through to a generic KindOther walk over whatever
// sub-nodes a best-effort reflection-free visitor can find; see
// genericChildren.
func stmtNode(stmt ast.Statement) *Node {
	switch s := stmt.(type) {
	case *ast.VariableDeclaration:
		return variableDeclarationNode(s)
	case *ast.FunctionDeclaration:
		n, name, _ := functionNode(s.Function, KindFunctionDeclaration)
		n.Name = name
		return n
	case *ast.ClassDeclaration:
		n, name, _ := classNode(s.Class, KindClassDeclaration)
		n.Name = name
		return n
	case *ast.BlockStatement:
		return blockNode(s)
	case *ast.ExpressionStatement:
		return exprNode(s.Expression)
	case *ast.TryStatement:
		n := &Node{Kind: KindOther}
		if s.Body != nil {
			n.Children = append(n.Children, blockNode(s.Body))
		}
		if s.Catch != nil {
			cc := &Node{Kind: KindCatchClause}
			if s.Catch.Parameter != nil {
				cc.Children = append(cc.Children, bindingTargetNode(s.Catch.Parameter))
			}
			if s.Catch.Body != nil {
				cc.Children = append(cc.Children, blockNode(s.Catch.Body))
			}
			n.Children = append(n.Children, cc)
		}
		if s.Finally != nil {
			n.Children = append(n.Children, blockNode(s.Finally))
		}
		return n
	case *ast.ForStatement:
		n := &Node{Kind: KindForStatement}
		if init, ok := s.Initializer.(ast.Statement); ok {
			n.Children = append(n.Children, stmtNode(init))
		}
		if s.Test != nil {
			n.Children = append(n.Children, exprNode(s.Test))
		}
		if s.Update != nil {
			n.Children = append(n.Children, exprNode(s.Update))
		}
		n.Children = append(n.Children, stmtNode(s.Body))
		return n
	case *ast.ForInStatement:
		n := &Node{Kind: KindForBinding}
		n.Children = append(n.Children, forIntoNode(s.Into), exprNode(s.Source), stmtNode(s.Body))
		return n
	case *ast.ForOfStatement:
		n := &Node{Kind: KindForBinding}
		n.Children = append(n.Children, forIntoNode(s.Into), exprNode(s.Source), stmtNode(s.Body))
		return n
	case *ast.ReturnStatement:
		n := &Node{Kind: KindOther}
		if s.Argument != nil {
			n.Children = append(n.Children, exprNode(s.Argument))
		}
		return n
	case *ast.IfStatement:
		n := &Node{Kind: KindOther}
		n.Children = append(n.Children, exprNode(s.Test), stmtNode(s.Consequent))
		if s.Alternate != nil {
			n.Children = append(n.Children, stmtNode(s.Alternate))
		}
		return n
	default:
		return &Node{Kind: KindOther}
	}
}

func forIntoNode(into ast.ForInto) *Node {
	switch v := into.(type) {
	case *ast.ForIntoVar:
		return variableDeclarationNode(v.Binding)
	case *ast.ForIntoExpression:
		return exprNode(v.Expression)
	default:
		return &Node{Kind: KindOther}
	}
}

func variableDeclarationNode(vd *ast.VariableDeclaration) *Node {
	n := &Node{Kind: KindVariableDeclaration, Name: string(vd.Token.String())}
	for _, bnd := range vd.List {
		d := &Node{Kind: KindVariableDeclarator}
		d.Children = append(d.Children, bindingTargetNode(bnd.Target))
		if bnd.Initializer != nil {
			d.Children = append(d.Children, exprNode(bnd.Initializer))
		}
		n.Children = append(n.Children, d)
	}
	return n
}

func exprNode(expr ast.Expression) *Node {
	switch e := expr.(type) {
	case nil:
		return &Node{Kind: KindOther}
	case *ast.Identifier:
		return identifierNode(e)
	case *ast.FunctionLiteral:
		n, name, _ := functionNode(e, KindFunctionExpression)
		n.Name = name
		return n
	case *ast.ArrowFunctionLiteral:
		n, _, _ := arrowNode(e)
		return n
	case *ast.ClassLiteral:
		n, name, _ := classNode(e, KindClassExpression)
		n.Name = name
		return n
	case *ast.DotExpression:
		return &Node{Kind: KindMemberExpression, Children: []*Node{exprNode(e.Left), identifierNode(&e.Identifier)}}
	case *ast.BracketExpression:
		return &Node{Kind: KindMemberExpression, Computed: true, Children: []*Node{exprNode(e.Left), exprNode(e.Member)}}
	case *ast.CallExpression:
		n := &Node{Kind: KindCallExpression}
		n.Children = append(n.Children, exprNode(e.Callee))
		for _, a := range e.ArgumentList {
			n.Children = append(n.Children, exprNode(a))
		}
		return n
	case *ast.AssignExpression:
		return &Node{Kind: KindOther, Children: []*Node{exprNode(e.Left), exprNode(e.Right)}}
	case *ast.BinaryExpression:
		return &Node{Kind: KindOther, Children: []*Node{exprNode(e.Left), exprNode(e.Right)}}
	case *ast.ConditionalExpression:
		return &Node{Kind: KindOther, Children: []*Node{exprNode(e.Test), exprNode(e.Consequent), exprNode(e.Alternate)}}
	case *ast.ObjectLiteral:
		n := &Node{Kind: KindOther}
		for _, p := range e.Value {
			n.Children = append(n.Children, objectLiteralPropertyNode(p))
		}
		return n
	case *ast.ArrayLiteral:
		n := &Node{Kind: KindOther}
		for _, el := range e.Value {
			if el == nil {
				continue
			}
			n.Children = append(n.Children, exprNode(el))
		}
		return n
	default:
		return &Node{Kind: KindOther}
	}
}

func objectLiteralPropertyNode(prop ast.Property) *Node {
	switch p := prop.(type) {
	case *ast.PropertyShort:
		return &Node{Kind: KindProperty, Name: string(p.Name.Name), Children: []*Node{identifierNode(&p.Name)}}
	case *ast.PropertyKeyed:
		n := &Node{Kind: KindProperty, Computed: p.Computed}
		if !p.Computed {
			if id, ok := p.Key.(*ast.Identifier); ok {
				n.Name = string(id.Name)
			}
		}
		n.Children = append(n.Children, exprNode(p.Key), exprNode(p.Value))
		return n
	default:
		return &Node{Kind: KindOther}
	}
}
