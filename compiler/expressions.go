package compiler

import (
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/svml"
)

// expression compiles an expression, leaving its value on the operand stack.
func (c *compiler) expression(n ast.Node) {
	c.named(n, "")
}

// named compiles an expression. Anonymous function literals get the name
// given, e.g. the name of the constant they are bound to.
func (c *compiler) named(n ast.Node, name string) {
	switch e := n.(type) {
	case *ast.Literal:
		c.literal(e)
	case *ast.Identifier:
		tag, depth := c.resolve(e)
		c.emitName(svml.Load, e.Loc(), e.Name, depth, tag.Slot)
	case *ast.Binary:
		op, ok := svml.BinaryOp(e.Operator)
		if !ok {
			c.fail(srceval.SyntaxError.New("unknown operator %s", e.Operator), e.Loc())
		}
		c.expression(e.Left)
		c.expression(e.Right)
		c.emit(op, e.Loc())
	case *ast.Unary:
		c.expression(e.Argument)
		if e.Operator == "!" {
			c.emit(svml.Not, e.Loc())
		} else {
			c.emit(svml.Neg, e.Loc())
		}
	case *ast.Logical:
		c.logical(e)
	case *ast.Conditional:
		c.expression(e.Test)
		toElse := c.emit(svml.JumpOnFalse, e.Loc())
		c.expression(e.Consequent)
		toEnd := c.emit(svml.Goto, e.Loc())
		c.patch(toElse)
		c.expression(e.Alternate)
		c.patch(toEnd)
	case *ast.Call:
		if c.concurrency(e) {
			return
		}
		c.expression(e.Callee)
		for _, arg := range e.Arguments {
			c.expression(arg)
		}
		c.emit(svml.Call, e.Loc(), len(e.Arguments))
	case *ast.Function:
		c.emit(svml.LoadFunction, e.Loc(), c.enqueue(e, name))
	case *ast.Assignment:
		c.assignment(e)
	case *ast.Member:
		if !e.Computed {
			c.unsupported("property access", e.Loc())
		}
		c.expression(e.Object)
		c.expression(e.Property)
		c.emit(svml.LoadElement, e.Loc())
	case *ast.Array:
		for _, el := range e.Elements {
			c.expression(el)
		}
		c.emit(svml.NewArray, e.Loc(), len(e.Elements))
	case *ast.Object:
		c.unsupported("object literal", e.Loc())
	default:
		c.fail(srceval.SyntaxError.New("%s is not an expression", ast.Kind(n)), n.Loc())
	}
}

func (c *compiler) literal(l *ast.Literal) {
	switch l.Kind {
	case ast.NumberLiteral:
		c.emitInstruction(svml.Instruction{Op: svml.LoadNumber, Num: l.Number}, l.Loc())
	case ast.StringLiteral:
		c.emitInstruction(svml.Instruction{Op: svml.LoadString, Str: l.String}, l.Loc())
	case ast.BooleanLiteral:
		b := 0
		if l.Bool {
			b = 1
		}
		c.emit(svml.LoadBool, l.Loc(), b)
	case ast.NullLiteral:
		c.emit(svml.LoadNull, l.Loc())
	default:
		c.emit(svml.LoadUndefined, l.Loc())
	}
}

// logical compiles a && b as a ? b : false and a || b as a ? true : b.
func (c *compiler) logical(e *ast.Logical) {
	c.expression(e.Left)
	toElse := c.emit(svml.JumpOnFalse, e.Loc())
	if e.Operator == "&&" {
		c.expression(e.Right)
	} else {
		c.emit(svml.LoadBool, e.Loc(), 1)
	}
	toEnd := c.emit(svml.Goto, e.Loc())
	c.patch(toElse)
	if e.Operator == "&&" {
		c.emit(svml.LoadBool, e.Loc(), 0)
	} else {
		c.expression(e.Right)
	}
	c.patch(toEnd)
}

func (c *compiler) assignment(a *ast.Assignment) {
	switch t := a.Target.(type) {
	case *ast.Identifier:
		tag, depth := c.resolve(t)
		if tag.Const {
			c.fail(srceval.AssignToConstant.New("cannot assign new value to constant %s", t.Name), a.Loc())
		}
		c.expression(a.Value)
		c.emit(svml.Dup, a.Loc())
		c.emitName(svml.Store, a.Loc(), t.Name, depth, tag.Slot)
	case *ast.Member:
		if !t.Computed {
			c.unsupported("property access", t.Loc())
		}
		c.expression(t.Object)
		c.expression(t.Property)
		c.expression(a.Value)
		c.emit(svml.StoreElement, a.Loc())
	default:
		c.fail(srceval.SyntaxError.New("invalid assignment target"), a.Loc())
	}
}

func (c *compiler) unsupported(what string, loc srceval.Location) {
	c.fail(srceval.ChapterError.New("%s not supported by the virtual machine", what), loc)
}

// --- Tail calls ------------------------------------------------------------

// tail compiles the argument of a return statement. Calls in tail position
// compile to TailCall; conditionals and logical operators pass the tail
// position on to their branches.
func (c *compiler) tail(n ast.Node) {
	switch e := n.(type) {
	case *ast.Call:
		if c.isSpecialForm(e) {
			break
		}
		c.expression(e.Callee)
		for _, arg := range e.Arguments {
			c.expression(arg)
		}
		c.emit(svml.TailCall, e.Loc(), len(e.Arguments))
		return
	case *ast.Conditional:
		c.expression(e.Test)
		toElse := c.emit(svml.JumpOnFalse, e.Loc())
		c.tail(e.Consequent)
		c.patch(toElse)
		c.tail(e.Alternate)
		return
	case *ast.Logical:
		c.expression(e.Left)
		toElse := c.emit(svml.JumpOnFalse, e.Loc())
		if e.Operator == "&&" {
			c.tail(e.Right)
			c.patch(toElse)
			c.emit(svml.LoadBool, e.Loc(), 0)
			c.emit(svml.Return, e.Loc())
		} else {
			c.emit(svml.LoadBool, e.Loc(), 1)
			c.emit(svml.Return, e.Loc())
			c.patch(toElse)
			c.tail(e.Right)
		}
		return
	}
	c.expression(n)
	c.emit(svml.Return, n.Loc())
}

// --- Concurrency -----------------------------------------------------------

// isSpecialForm is a predicate: is call a call of a concurrency primitive
// compiled to instructions of its own?
func (c *compiler) isSpecialForm(call *ast.Call) bool {
	if !c.concurrent {
		return false
	}
	id, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return false
	}
	switch id.Name {
	case "concurrent_execute", "send", "receive":
		return c.isGlobal(id.Name)
	}
	return false
}

// concurrency compiles calls of concurrent_execute, send and receive.
// Returns false for any other call.
func (c *compiler) concurrency(call *ast.Call) bool {
	if !c.isSpecialForm(call) {
		return false
	}
	name := call.Callee.(*ast.Identifier).Name
	arity := map[string]int{"send": 2, "receive": 1}
	if n, ok := arity[name]; ok && len(call.Arguments) != n {
		c.fail(srceval.InvalidNumberOfArguments.New("%s: expected %d arguments, but got %d",
			name, n, len(call.Arguments)), call.Loc())
	}
	switch name {
	case "concurrent_execute":
		for _, arg := range call.Arguments {
			c.expression(arg)
			c.emit(svml.Go, arg.Loc())
		}
		c.emit(svml.LoadUndefined, call.Loc())
	case "send":
		c.expression(call.Arguments[0])
		c.expression(call.Arguments[1])
		c.emit(svml.Send, call.Loc())
	case "receive":
		c.expression(call.Arguments[0])
		c.emit(svml.Receive, call.Loc())
	}
	return true
}
