package vm

import (
	"math"

	"github.com/joomcode/errorx"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/heap"
	"github.com/npillmayer/srceval/runtime"
	"github.com/npillmayer/srceval/svml"
)

// exec executes a single instruction. The program counter has already
// been advanced.
//
// Operands stay on the operand stack until all allocations for an
// instruction are done: the operand stack is a root for garbage
// collection, Go variables are not.
func (m *Machine) exec(g *goroutine, in *svml.Instruction) error {
	switch in.Op {
	case svml.Nop:
	case svml.LoadNumber:
		g.push(m.number(in.Num))
	case svml.LoadString:
		g.push(m.str(in.Str))
	case svml.LoadBool:
		g.push(m.boolean(in.A != 0))
	case svml.LoadNull:
		g.push(m.null)
	case svml.LoadUndefined:
		g.push(m.undefined)
	case svml.Load:
		v := m.child(m.outer(g.env, in.A), in.B+1)
		if v == m.unassigned {
			return srceval.UseBeforeAssignment.New("name %s declared later in current scope", in.Str)
		}
		g.push(v)
	case svml.Store:
		m.setChild(m.outer(g.env, in.A), in.B+1, g.pop())
	case svml.Pop:
		g.pop()
	case svml.Dup:
		g.push(g.peek(0))
	case svml.Not, svml.Neg:
		v, err := runtime.UnaryOp(in.Op.Operator(), m.decode(g.peek(0)))
		if err != nil {
			return err
		}
		return m.replace(g, 1, v)
	case svml.JumpOnFalse:
		switch v := g.pop(); v {
		case m.false_:
			g.pc = in.Target
		case m.true_:
		default:
			return srceval.RuntimeTypeError.New("Expected boolean as condition, got %s.", m.typeName(v))
		}
	case svml.Goto:
		g.pc = in.Target
	case svml.Call:
		return m.call(g, in.A, false)
	case svml.TailCall:
		return m.call(g, in.A, true)
	case svml.Return:
		return m.ret(g, g.pop())
	case svml.EnterScope:
		g.env = m.frame(g.env, in.A)
	case svml.ExitScope:
		g.env = m.outer(g.env, 1)
	case svml.Reset:
		g.env = m.outer(g.env, in.A)
	case svml.LoadFunction:
		g.push(m.closure(in.A, g.env))
	case svml.NewArray:
		arr := m.array(in.A)
		for i := 0; i < in.A; i++ {
			m.setElement(arr, i, g.peek(in.A-1-i))
		}
		g.drop(in.A)
		g.push(arr)
	case svml.LoadElement:
		i, err := m.index(g.peek(1), g.peek(0))
		if err != nil {
			return err
		}
		v := m.undefined
		if arr := g.peek(1); i < m.length(arr) {
			v = m.element(arr, i)
		}
		g.drop(2)
		g.push(v)
	case svml.StoreElement:
		i, err := m.index(g.peek(2), g.peek(1))
		if err != nil {
			return err
		}
		v := g.peek(0)
		m.setElement(g.peek(2), i, v)
		g.drop(3)
		g.push(v)
	case svml.Go:
		if m.prog.Spawn < 0 {
			return srceval.ExceptionError.New("program has not been compiled for concurrency")
		}
		m.start(m.prog.Spawn, m.globals, g.pop())
	case svml.GoDestroy:
		m.destroy(g)
	case svml.Send:
		return m.send(g)
	case svml.Receive:
		return m.receive(g)
	case svml.Done:
		g.result = g.pop()
		g.state = done
	default:
		if !in.Op.IsBinary() {
			return errorx.IllegalState.New("illegal opcode %s", in.Op)
		}
		return m.binary(g, in.Op)
	}
	return nil
}

// outer walks up n frames.
func (m *Machine) outer(env heap.Addr, n int) heap.Addr {
	for ; n > 0; n-- {
		env = m.child(env, 0)
	}
	return env
}

// replace pops n operands and pushes v in their place.
func (m *Machine) replace(g *goroutine, n int, v runtime.Value) error {
	a, err := m.encode(v)
	if err != nil {
		return err
	}
	g.drop(n)
	g.push(a)
	return nil
}

func (m *Machine) binary(g *goroutine, op svml.Opcode) error {
	l, r := g.peek(1), g.peek(0)
	switch op {
	case svml.Eq:
		g.drop(2)
		g.push(m.boolean(m.equal(l, r)))
		return nil
	case svml.Neq:
		g.drop(2)
		g.push(m.boolean(!m.equal(l, r)))
		return nil
	}
	v, err := runtime.BinaryOp(op.Operator(), m.decode(l), m.decode(r))
	if err != nil {
		return err
	}
	return m.replace(g, 2, v)
}

// index checks an array access and returns the index.
func (m *Machine) index(arr, key heap.Addr) (int, error) {
	if m.heap.Tag(arr) != tagArray {
		return 0, srceval.RuntimeTypeError.New("Expected array, got %s.", m.typeName(arr))
	}
	if m.heap.Tag(key) != tagNumber {
		return 0, srceval.RuntimeTypeError.New("Expected array index as prop, got %s.", m.stringify(key))
	}
	f := m.float(key)
	if f < 0 || f != math.Trunc(f) || f > math.MaxUint16 {
		return 0, srceval.RuntimeTypeError.New("Expected array index as prop, got %s.", m.stringify(key))
	}
	return int(f), nil
}

// --- Calls -----------------------------------------------------------------

// call applies the function below argc arguments on the operand stack.
// A tail call replaces the frame of the caller.
func (m *Machine) call(g *goroutine, argc int, tail bool) error {
	callee := g.peek(argc)
	switch m.heap.Tag(callee) {
	case tagClosure:
		index := int(m.heap.Field(callee))
		fn := m.prog.Functions[index]
		if argc != fn.ParamCount {
			return srceval.InvalidNumberOfArguments.New("%s: expected %d arguments, but got %d",
				fn.Name, fn.ParamCount, argc)
		}
		env := m.frame(m.child(callee, 0), fn.EnvSize)
		for i := 0; i < argc; i++ {
			m.setChild(env, i+1, g.peek(argc-1-i))
		}
		g.drop(argc + 1)
		if tail {
			g.stack = g.stack[:g.base()]
		} else {
			if m.maxCalls > 0 && len(g.calls) >= m.maxCalls {
				return srceval.ExceptionError.New("Maximum call stack size of %d exceeded", m.maxCalls)
			}
			g.calls = append(g.calls, callFrame{fn: g.fn, pc: g.pc, env: g.env, base: len(g.stack)})
		}
		g.fn, g.pc, g.env = index, 0, env
		return nil
	case tagPrimitive:
		p := m.prims[m.heap.Field(callee)]
		if err := p.CheckArity(argc); err != nil {
			return err
		}
		v, err := p.call(m, g.stack[len(g.stack)-argc:])
		if err != nil {
			return err
		}
		g.drop(argc + 1)
		if tail {
			return m.ret(g, v)
		}
		g.push(v)
		return nil
	}
	return srceval.CallingNonFunctionValue.New("Calling non-function value %s.", m.stringify(callee))
}

// ret returns v to the caller of the function executing.
func (m *Machine) ret(g *goroutine, v heap.Addr) error {
	if len(g.calls) == 0 {
		return errorx.IllegalState.New("return from function %s without caller", m.prog.Functions[g.fn].Name)
	}
	c := g.calls[len(g.calls)-1]
	g.calls = g.calls[:len(g.calls)-1]
	g.stack = append(g.stack[:c.base], v)
	g.fn, g.pc, g.env = c.fn, c.pc, c.env
	return nil
}
