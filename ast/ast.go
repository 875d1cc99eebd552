package ast

import (
	"github.com/npillmayer/srceval"
)

// Node is the interface all syntax nodes implement.
type Node interface {
	Loc() srceval.Location
	node()
}

// Pos is embedded into every node type and carries its location.
type Pos struct {
	Location srceval.Location
}

// Loc returns the source location of a node.
func (p Pos) Loc() srceval.Location { return p.Location }
func (Pos) node()                   {}

// --- Statements ------------------------------------------------------------

// Program is the root of a syntax tree.
type Program struct {
	Pos
	Body []Node
}

// Block is a sequence of statements in braces, opening a new scope.
type Block struct {
	Pos
	Body []Node
}

// ExpressionStatement wraps an expression used as a statement.
type ExpressionStatement struct {
	Pos
	Expression Node
}

// DeclKind distinguishes constant from variable declarations.
type DeclKind int8

// Declaration kinds.
const (
	Const DeclKind = iota
	Let
)

func (k DeclKind) String() string {
	if k == Let {
		return "let"
	}
	return "const"
}

// VariableDeclaration is a 'let' or 'const' declaration with an initializer.
type VariableDeclaration struct {
	Pos
	Kind DeclKind
	Name *Identifier
	Init Node
}

// FunctionDeclaration is a named function statement. Its name is bound as a constant.
type FunctionDeclaration struct {
	Pos
	Function *Function
}

// Return is a return statement. Argument may be nil.
type Return struct {
	Pos
	Argument Node
}

// If is an if-statement. Alternate is nil, a *Block or another *If.
type If struct {
	Pos
	Test       Node
	Consequent *Block
	Alternate  Node
}

// While is a while-loop.
type While struct {
	Pos
	Test Node
	Body *Block
}

// For is a for-loop. Init is either nil, a *VariableDeclaration or an
// expression; Test and Update may be nil.
type For struct {
	Pos
	Init   Node
	Test   Node
	Update Node
	Body   *Block
}

// Break leaves the innermost loop.
type Break struct{ Pos }

// Continue ends the current iteration of the innermost loop.
type Continue struct{ Pos }

// Debugger is a 'debugger;' statement, pausing a suspendable execution.
type Debugger struct{ Pos }

// --- Expressions -----------------------------------------------------------

// LiteralKind tags the value of a literal.
type LiteralKind int8

// Kinds of literals.
const (
	NumberLiteral LiteralKind = iota
	StringLiteral
	BooleanLiteral
	NullLiteral
	UndefinedLiteral
)

// Literal is a constant value in the source text.
type Literal struct {
	Pos
	Kind   LiteralKind
	Number float64
	String string
	Bool   bool
}

// Identifier is a name reference.
type Identifier struct {
	Pos
	Name string
}

// Binary is an arithmetic or relational expression.
type Binary struct {
	Pos
	Operator string
	Left     Node
	Right    Node
}

// Unary is '!x' or '-x'.
type Unary struct {
	Pos
	Operator string
	Argument Node
}

// Logical is 'a && b' or 'a || b'.
type Logical struct {
	Pos
	Operator string
	Left     Node
	Right    Node
}

// Conditional is 'test ? consequent : alternate'.
type Conditional struct {
	Pos
	Test       Node
	Consequent Node
	Alternate  Node
}

// Call is a function application.
type Call struct {
	Pos
	Callee    Node
	Arguments []Node
}

// Function is a function literal: a function expression, an arrow function
// or the function part of a declaration. Arrow functions with expression
// bodies get a body consisting of a single return statement.
type Function struct {
	Pos
	Name   string // empty for anonymous functions
	Params []*Identifier
	Body   *Block
	Arrow  bool
}

// Assignment assigns to an identifier or a member expression.
type Assignment struct {
	Pos
	Target Node
	Value  Node
}

// Member is 'object[property]' or 'object.name'. For the dot form,
// Property is a string literal and Computed is false.
type Member struct {
	Pos
	Object   Node
	Property Node
	Computed bool
}

// Array is an array literal.
type Array struct {
	Pos
	Elements []Node
}

// Property is a key/value pair of an object literal.
type Property struct {
	Key   string
	Value Node
}

// Object is an object literal.
type Object struct {
	Pos
	Properties []Property
}

// Interface guards
var (
	_ Node = (*Program)(nil)
	_ Node = (*Block)(nil)
	_ Node = (*ExpressionStatement)(nil)
	_ Node = (*VariableDeclaration)(nil)
	_ Node = (*FunctionDeclaration)(nil)
	_ Node = (*Return)(nil)
	_ Node = (*If)(nil)
	_ Node = (*While)(nil)
	_ Node = (*For)(nil)
	_ Node = (*Break)(nil)
	_ Node = (*Continue)(nil)
	_ Node = (*Debugger)(nil)
	_ Node = (*Literal)(nil)
	_ Node = (*Identifier)(nil)
	_ Node = (*Binary)(nil)
	_ Node = (*Unary)(nil)
	_ Node = (*Logical)(nil)
	_ Node = (*Conditional)(nil)
	_ Node = (*Call)(nil)
	_ Node = (*Function)(nil)
	_ Node = (*Assignment)(nil)
	_ Node = (*Member)(nil)
	_ Node = (*Array)(nil)
	_ Node = (*Object)(nil)
)
