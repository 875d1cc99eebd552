package ast

import (
	"fmt"
	"strconv"
)

// Declaration is a name declared directly in a block.
type Declaration struct {
	Name  string
	Const bool
	Node  Node // *VariableDeclaration or *FunctionDeclaration
}

// Declarations collects the names declared directly in a sequence of
// statements, not descending into nested blocks. Function declarations
// bind constants. The result is in source order; duplicates are kept,
// leaving it to the caller to report redeclarations.
func Declarations(body []Node) []Declaration {
	var decls []Declaration
	for _, stmt := range body {
		switch s := stmt.(type) {
		case *VariableDeclaration:
			decls = append(decls, Declaration{Name: s.Name.Name, Const: s.Kind == Const, Node: s})
		case *FunctionDeclaration:
			decls = append(decls, Declaration{Name: s.Function.Name, Const: true, Node: s})
		}
	}
	return decls
}

// Children returns the direct sub-nodes of a node, in evaluation order.
func Children(n Node) []Node {
	var ch []Node
	add := func(nodes ...Node) {
		for _, c := range nodes {
			if c != nil && !isNilNode(c) {
				ch = append(ch, c)
			}
		}
	}
	switch n := n.(type) {
	case *Program:
		add(n.Body...)
	case *Block:
		add(n.Body...)
	case *ExpressionStatement:
		add(n.Expression)
	case *VariableDeclaration:
		add(n.Name, n.Init)
	case *FunctionDeclaration:
		add(n.Function)
	case *Return:
		add(n.Argument)
	case *If:
		add(n.Test, n.Consequent, n.Alternate)
	case *While:
		add(n.Test, n.Body)
	case *For:
		add(n.Init, n.Test, n.Update, n.Body)
	case *Binary:
		add(n.Left, n.Right)
	case *Unary:
		add(n.Argument)
	case *Logical:
		add(n.Left, n.Right)
	case *Conditional:
		add(n.Test, n.Consequent, n.Alternate)
	case *Call:
		add(n.Callee)
		add(n.Arguments...)
	case *Function:
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	case *Assignment:
		add(n.Target, n.Value)
	case *Member:
		add(n.Object, n.Property)
	case *Array:
		add(n.Elements...)
	case *Object:
		for _, p := range n.Properties {
			add(p.Value)
		}
	}
	return ch
}

// typed nil pointers stored in a Node interface, e.g. an absent *Block
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Block:
		return n == nil
	case *Identifier:
		return n == nil
	case *Function:
		return n == nil
	}
	return false
}

// Inspect traverses a syntax tree depth-first. If f returns false, the
// children of a node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// Kind returns the name of a node's kind.
func Kind(n Node) string {
	switch n.(type) {
	case *Program:
		return "Program"
	case *Block:
		return "BlockStatement"
	case *ExpressionStatement:
		return "ExpressionStatement"
	case *VariableDeclaration:
		return "VariableDeclaration"
	case *FunctionDeclaration:
		return "FunctionDeclaration"
	case *Return:
		return "ReturnStatement"
	case *If:
		return "IfStatement"
	case *While:
		return "WhileStatement"
	case *For:
		return "ForStatement"
	case *Break:
		return "BreakStatement"
	case *Continue:
		return "ContinueStatement"
	case *Debugger:
		return "DebuggerStatement"
	case *Literal:
		return "Literal"
	case *Identifier:
		return "Identifier"
	case *Binary:
		return "BinaryExpression"
	case *Unary:
		return "UnaryExpression"
	case *Logical:
		return "LogicalExpression"
	case *Conditional:
		return "ConditionalExpression"
	case *Call:
		return "CallExpression"
	case *Function:
		if n.(*Function).Arrow {
			return "ArrowFunctionExpression"
		}
		return "FunctionExpression"
	case *Assignment:
		return "AssignmentExpression"
	case *Member:
		return "MemberExpression"
	case *Array:
		return "ArrayExpression"
	case *Object:
		return "ObjectExpression"
	}
	return fmt.Sprintf("%T", n)
}

// Label is a one-line description of a node, used for tree displays and tracing.
func Label(n Node) string {
	switch n := n.(type) {
	case *Literal:
		return "Literal " + n.Text()
	case *Identifier:
		return "Identifier " + n.Name
	case *Binary:
		return "BinaryExpression " + n.Operator
	case *Unary:
		return "UnaryExpression " + n.Operator
	case *Logical:
		return "LogicalExpression " + n.Operator
	case *VariableDeclaration:
		return fmt.Sprintf("VariableDeclaration %s %s", n.Kind, n.Name.Name)
	case *FunctionDeclaration:
		return "FunctionDeclaration " + n.Function.Name
	case *Function:
		if n.Name != "" {
			return Kind(n) + " " + n.Name
		}
	case *Member:
		if !n.Computed {
			if lit, ok := n.Property.(*Literal); ok {
				return "MemberExpression ." + lit.String
			}
		}
	}
	return Kind(n)
}

// Text returns the literal the way it appears in source text.
func (l *Literal) Text() string {
	switch l.Kind {
	case NumberLiteral:
		return strconv.FormatFloat(l.Number, 'g', -1, 64)
	case StringLiteral:
		return strconv.Quote(l.String)
	case BooleanLiteral:
		return strconv.FormatBool(l.Bool)
	case NullLiteral:
		return "null"
	}
	return "undefined"
}

// Statements returns the set of lines on which statements start. Breakpoints
// are only meaningful on these lines.
func Statements(prog *Program) map[int]bool {
	lines := make(map[int]bool)
	Inspect(prog, func(n Node) bool {
		if IsStatement(n) {
			lines[n.Loc().Line()] = true
		}
		return true
	})
	return lines
}

// IsStatement is a predicate: is n a statement other than a block?
func IsStatement(n Node) bool {
	switch n.(type) {
	case *ExpressionStatement, *VariableDeclaration, *FunctionDeclaration, *Return,
		*If, *While, *For, *Break, *Continue, *Debugger:
		return true
	}
	return false
}
