package vm

import (
	"math"

	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/heap"
	"github.com/npillmayer/srceval/prelude"
	"github.com/npillmayer/srceval/runtime"
)

// primitive is a function of the machine implemented in Go. The embedded
// runtime primitive carries name and arity, and is what the primitive
// decodes to.
type primitive struct {
	*runtime.Primitive
	call func(m *Machine, args []heap.Addr) (heap.Addr, error)
}

func (p *primitive) decoded() runtime.Value {
	return p.Primitive
}

type native struct {
	arity int
	call  func(m *Machine, args []heap.Addr) (heap.Addr, error)
}

// Primitives working on the heap directly. All other names are served by
// package prelude, with arguments and results converted.
var natives = map[string]native{
	"pair":         {2, func(m *Machine, args []heap.Addr) (heap.Addr, error) { return m.pair(args[0], args[1]), nil }},
	"list":         {runtime.Variadic, list},
	"head":         {1, pairAccess("head", 0)},
	"tail":         {1, pairAccess("tail", 1)},
	"set_head":     {2, pairMutate("set_head", 0)},
	"set_tail":     {2, pairMutate("set_tail", 1)},
	"is_pair":      {1, predicate(func(m *Machine, a heap.Addr) bool { return m.isPair(a) })},
	"is_null":      {1, predicate(func(m *Machine, a heap.Addr) bool { return a == m.null })},
	"is_array":     {1, predicate(func(m *Machine, a heap.Addr) bool { return m.heap.Tag(a) == tagArray })},
	"is_function":  {1, predicate(func(m *Machine, a heap.Addr) bool { return m.isFunction(a) })},
	"array_length": {1, arrayLength},
	"display":      {runtime.Variadic, display},
	// concurrency
	"make_channel":       {0, makeChannel},
	"test_and_set":       {1, testAndSet},
	"clear":              {1, clearFlag},
	"concurrent_execute": {runtime.Variadic, specialForm("concurrent_execute")},
	"send":               {2, specialForm("send")},
	"receive":            {1, specialForm("receive")},
}

// global creates the value of a pre-declared name.
func (m *Machine) global(name string) (heap.Addr, error) {
	if n, ok := natives[name]; ok {
		return m.primitive(&runtime.Primitive{Name: name, Arity: n.arity, Fn: hidden(name)}, n.call)
	}
	v, ok := prelude.Value(name, m.out)
	if !ok {
		return heap.Nil, srceval.UnboundName.New("name %s not declared", name)
	}
	if p, ok := v.(*runtime.Primitive); ok {
		return m.primitive(p, bridge(p))
	}
	return m.encode(v)
}

func (m *Machine) primitive(p *runtime.Primitive, call func(*Machine, []heap.Addr) (heap.Addr, error)) (heap.Addr, error) {
	if len(m.prims) > math.MaxUint16 {
		return heap.Nil, srceval.ExceptionError.New("too many primitives")
	}
	a := m.alloc(tagPrimitive, 1)
	m.heap.SetRaw(a)
	m.check(m.heap.SetField(a, uint16(len(m.prims))))
	m.prims = append(m.prims, &primitive{Primitive: p, call: call})
	return a, nil
}

// hidden is the Go function of a primitive which is decoded but called by
// a program outside the machine.
func hidden(name string) func([]runtime.Value) (runtime.Value, error) {
	return func([]runtime.Value) (runtime.Value, error) {
		return nil, srceval.ExceptionError.New("function %s lives in the virtual machine", name)
	}
}

// bridge calls a primitive of package prelude. Results identical to an
// argument are mapped back to the argument, keeping the identity of
// compound values.
func bridge(p *runtime.Primitive) func(*Machine, []heap.Addr) (heap.Addr, error) {
	return func(m *Machine, args []heap.Addr) (heap.Addr, error) {
		vals := make([]runtime.Value, len(args))
		for i, a := range args {
			vals[i] = m.decode(a)
		}
		v, err := p.Fn(vals)
		if err != nil {
			return heap.Nil, err
		}
		if arr, ok := v.(*runtime.Array); ok {
			for i, w := range vals {
				if w == runtime.Value(arr) {
					return args[i], nil
				}
			}
		}
		return m.encode(v)
	}
}

// --- Lists and arrays ------------------------------------------------------

func list(m *Machine, args []heap.Addr) (heap.Addr, error) {
	l := m.null
	for i := len(args) - 1; i >= 0; i-- {
		l = m.pair(args[i], l)
	}
	return l, nil
}

func pairAccess(name string, i int) func(*Machine, []heap.Addr) (heap.Addr, error) {
	return func(m *Machine, args []heap.Addr) (heap.Addr, error) {
		if !m.isPair(args[0]) {
			return heap.Nil, srceval.RuntimeTypeError.New("%s(xs) expects a pair as argument xs, but encountered %s",
				name, m.stringify(args[0]))
		}
		return m.element(args[0], i), nil
	}
}

func pairMutate(name string, i int) func(*Machine, []heap.Addr) (heap.Addr, error) {
	return func(m *Machine, args []heap.Addr) (heap.Addr, error) {
		if !m.isPair(args[0]) {
			return heap.Nil, srceval.RuntimeTypeError.New("%s(xs, v) expects a pair as argument xs, but encountered %s",
				name, m.stringify(args[0]))
		}
		m.setElement(args[0], i, args[1])
		return m.undefined, nil
	}
}

func predicate(pred func(*Machine, heap.Addr) bool) func(*Machine, []heap.Addr) (heap.Addr, error) {
	return func(m *Machine, args []heap.Addr) (heap.Addr, error) {
		return m.boolean(pred(m, args[0])), nil
	}
}

func arrayLength(m *Machine, args []heap.Addr) (heap.Addr, error) {
	if m.heap.Tag(args[0]) != tagArray {
		return heap.Nil, srceval.RuntimeTypeError.New("array_length expects an array as argument, but encountered %s",
			m.typeName(args[0]))
	}
	return m.number(float64(m.length(args[0]))), nil
}

// display prints with the display of package prelude and returns its
// first argument unchanged.
func display(m *Machine, args []heap.Addr) (heap.Addr, error) {
	p, _ := prelude.Value("display", m.out)
	vals := make([]runtime.Value, len(args))
	for i, a := range args {
		vals[i] = m.decode(a)
	}
	if _, err := p.(*runtime.Primitive).Fn(vals); err != nil {
		return heap.Nil, err
	}
	return args[0], nil
}

// --- Concurrency -----------------------------------------------------------

// test_and_set(a) sets a[0] to true and returns its previous value, in
// one step.
func testAndSet(m *Machine, args []heap.Addr) (heap.Addr, error) {
	a := args[0]
	if m.heap.Tag(a) != tagArray {
		return heap.Nil, srceval.RuntimeTypeError.New("test_and_set expects an array as argument, but encountered %s",
			m.typeName(a))
	}
	old := m.undefined
	if m.length(a) > 0 {
		old = m.element(a, 0)
	}
	m.setElement(a, 0, m.true_)
	return old, nil
}

// clear(a) sets a[0] to false.
func clearFlag(m *Machine, args []heap.Addr) (heap.Addr, error) {
	a := args[0]
	if m.heap.Tag(a) != tagArray {
		return heap.Nil, srceval.RuntimeTypeError.New("clear expects an array as argument, but encountered %s",
			m.typeName(a))
	}
	m.setElement(a, 0, m.false_)
	return m.undefined, nil
}

// The compiler translates direct calls of these names to instructions.
// Any other use ends up here.
func specialForm(name string) func(*Machine, []heap.Addr) (heap.Addr, error) {
	return func(*Machine, []heap.Addr) (heap.Addr, error) {
		return heap.Nil, srceval.ExceptionError.New("%s may only be called directly", name)
	}
}
