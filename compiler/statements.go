package compiler

import (
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/svml"
)

// statements compiles a sequence of statements. In value mode, the operand
// stack holds the completion value of the statements compiled so far and
// every statement not being a declaration replaces it. This yields the
// value of the last expression statement evaluated, as in the interpreter.
func (c *compiler) statements(body []ast.Node, value bool) {
	for _, stmt := range body {
		c.statement(stmt, value)
	}
}

func (c *compiler) statement(n ast.Node, value bool) {
	switch s := n.(type) {
	case *ast.ExpressionStatement:
		if value {
			c.emit(svml.Pop, s.Loc())
			c.expression(s.Expression)
		} else {
			c.expression(s.Expression)
			c.emit(svml.Pop, s.Loc())
		}
	case *ast.VariableDeclaration:
		tag, depth := c.resolve(s.Name)
		c.named(s.Init, s.Name.Name)
		c.emitName(svml.Store, s.Loc(), s.Name.Name, depth, tag.Slot)
	case *ast.FunctionDeclaration:
		// bound when the enclosing block is entered
	case *ast.Block:
		if value {
			c.emit(svml.Pop, s.Loc())
			c.emit(svml.LoadUndefined, s.Loc())
		}
		c.block(s, value)
	case *ast.If:
		if value {
			c.emit(svml.Pop, s.Loc())
			c.emit(svml.LoadUndefined, s.Loc())
		}
		c.ifStatement(s, value)
	case *ast.While:
		c.whileLoop(s)
		c.completeWithUndefined(s.Loc(), value)
	case *ast.For:
		c.forLoop(s)
		c.completeWithUndefined(s.Loc(), value)
	case *ast.Debugger:
		c.completeWithUndefined(s.Loc(), value)
	case *ast.Return:
		if s.Argument == nil {
			c.emit(svml.LoadUndefined, s.Loc())
			c.emit(svml.Return, s.Loc())
		} else {
			c.tail(s.Argument)
		}
	case *ast.Break:
		l := c.innermostLoop(s.Loc())
		c.reset(l, s.Loc())
		l.breaks = append(l.breaks, c.emit(svml.Goto, s.Loc()))
	case *ast.Continue:
		l := c.innermostLoop(s.Loc())
		c.reset(l, s.Loc())
		l.continues = append(l.continues, c.emit(svml.Goto, s.Loc()))
	default:
		c.fail(srceval.SyntaxError.New("%s is not a statement", ast.Kind(n)), n.Loc())
	}
}

func (c *compiler) completeWithUndefined(loc srceval.Location, value bool) {
	if value {
		c.emit(svml.Pop, loc)
		c.emit(svml.LoadUndefined, loc)
	}
}

func (c *compiler) block(b *ast.Block, value bool) {
	scoped := c.openScope("block", b.Body, b.Loc(), false)
	c.statements(b.Body, value)
	if scoped {
		c.closeScope(b.Loc())
	}
}

// ifStatement compiles
//
//	test; JumpOnFalse else; consequent; Goto end; else: alternate; end:
//
// leaving out the Goto if there is no alternate.
func (c *compiler) ifStatement(s *ast.If, value bool) {
	c.expression(s.Test)
	toElse := c.emit(svml.JumpOnFalse, s.Loc())
	c.statement(s.Consequent, value)
	if s.Alternate == nil {
		c.patch(toElse)
		return
	}
	toEnd := c.emit(svml.Goto, s.Loc())
	c.patch(toElse)
	c.statement(s.Alternate, value)
	c.patch(toEnd)
}

// --- Loops -----------------------------------------------------------------

func (c *compiler) pushLoop() *loop {
	l := &loop{frames: c.fn.frames}
	c.fn.loops.Push(l)
	return l
}

// popLoop patches the jumps of break and continue statements of the
// innermost loop.
func (c *compiler) popLoop(continueAt, breakAt int) {
	top, _ := c.fn.loops.Pop()
	l := top.(*loop)
	for _, pc := range l.continues {
		c.patchTo(pc, continueAt)
	}
	for _, pc := range l.breaks {
		c.patchTo(pc, breakAt)
	}
}

func (c *compiler) innermostLoop(loc srceval.Location) *loop {
	top, ok := c.fn.loops.Peek()
	if !ok {
		c.fail(srceval.SyntaxError.New("break or continue not in loop"), loc)
	}
	return top.(*loop)
}

// reset leaves the frames entered within the body of a loop.
func (c *compiler) reset(l *loop, loc srceval.Location) {
	if n := c.fn.frames - l.frames; n > 0 {
		c.emit(svml.Reset, loc, n)
	}
}

func (c *compiler) whileLoop(w *ast.While) {
	start := len(c.fn.code)
	c.pushLoop()
	c.expression(w.Test)
	toEnd := c.emit(svml.JumpOnFalse, w.Loc())
	c.block(w.Body, false)
	c.patchTo(c.emit(svml.Goto, w.Loc()), start)
	c.patch(toEnd)
	c.popLoop(start, len(c.fn.code))
}

// forLoop compiles a for-loop. A loop variable lives in a frame of its own.
// Every iteration copies it into a fresh frame, so closures created by the
// body capture the value of their iteration.
func (c *compiler) forLoop(f *ast.For) {
	var loopVar *ast.VariableDeclaration
	if decl, ok := f.Init.(*ast.VariableDeclaration); ok {
		loopVar = decl
		sc := c.scopes.PushNewScope("for")
		if _, err := sc.Declare(decl.Name.Name, decl.Kind == ast.Const); err != nil {
			c.fail(err, decl.Loc())
		}
		c.emit(svml.EnterScope, f.Loc(), 1)
		c.fn.frames++
		c.statement(decl, false)
	} else if f.Init != nil {
		c.expression(f.Init)
		c.emit(svml.Pop, f.Loc())
	}
	start := len(c.fn.code)
	c.pushLoop()
	toEnd := -1
	if f.Test != nil {
		c.expression(f.Test)
		toEnd = c.emit(svml.JumpOnFalse, f.Loc())
	}
	if loopVar != nil {
		sc := c.scopes.PushNewScope("for-iteration")
		sc.Declare(loopVar.Name.Name, true)
		c.emit(svml.EnterScope, f.Loc(), 1)
		c.fn.frames++
		c.emitName(svml.Load, f.Loc(), loopVar.Name.Name, 1, 0)
		c.emitName(svml.Store, f.Loc(), loopVar.Name.Name, 0, 0)
	}
	c.block(f.Body, false)
	if loopVar != nil {
		c.closeScope(f.Loc())
	}
	continueAt := len(c.fn.code)
	if f.Update != nil {
		c.expression(f.Update)
		c.emit(svml.Pop, f.Loc())
	}
	c.patchTo(c.emit(svml.Goto, f.Loc()), start)
	breakAt := len(c.fn.code)
	if toEnd >= 0 {
		c.patchTo(toEnd, breakAt)
	}
	c.popLoop(continueAt, breakAt)
	if loopVar != nil {
		c.closeScope(f.Loc())
	}
}
