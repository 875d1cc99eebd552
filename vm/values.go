package vm

import (
	"github.com/joomcode/errorx"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/heap"
	"github.com/npillmayer/srceval/runtime"
)

// Block tags of values.
const (
	tagNumber     heap.Tag = 2
	tagString     heap.Tag = 3
	tagBool       heap.Tag = 4
	tagNull       heap.Tag = 5
	tagUndefined  heap.Tag = 6
	tagUnassigned heap.Tag = 7
	tagArray      heap.Tag = 8
	tagElements   heap.Tag = 9 | heap.Growable
	tagClosure    heap.Tag = 10
	tagFrame      heap.Tag = 11
	tagPrimitive  heap.Tag = 12
	tagChannel    heap.Tag = 13
)

// Heap errors are fatal for a run. They are raised as panics and turned
// back into errors by Run.
func (m *Machine) check(err error) {
	if err != nil {
		errorx.Panic(err)
	}
}

func (m *Machine) alloc(tag heap.Tag, size int) heap.Addr {
	a, err := m.heap.Allocate(tag, size)
	m.check(err)
	return a
}

func (m *Machine) child(a heap.Addr, i int) heap.Addr {
	c, err := m.heap.GetChild(a, i)
	m.check(err)
	return c
}

func (m *Machine) setChild(a heap.Addr, i int, c heap.Addr) {
	m.check(m.heap.SetChild(a, i, c))
}

// hold keeps a value alive while it is referenced from Go variables only.
// Every hold has to be matched by a release.
func (m *Machine) hold(a heap.Addr) {
	m.temps = append(m.temps, a)
}

func (m *Machine) release(n int) {
	m.temps = m.temps[:len(m.temps)-n]
}

// --- Scalars ---------------------------------------------------------------

func (m *Machine) singleton(tag heap.Tag, field uint16) heap.Addr {
	a := m.alloc(tag, 1)
	m.check(m.heap.SetField(a, field))
	return a
}

func (m *Machine) number(f float64) heap.Addr {
	a := m.alloc(tagNumber, 1)
	m.heap.SetRaw(a)
	m.check(m.heap.SetFloat(m.heap.ChildStart(a), f))
	return a
}

func (m *Machine) float(a heap.Addr) float64 {
	f, err := m.heap.GetFloat(m.heap.ChildStart(a))
	m.check(err)
	return f
}

func (m *Machine) boolean(b bool) heap.Addr {
	if b {
		return m.true_
	}
	return m.false_
}

// A string block holds the length in its first child, followed by the
// bytes of the string.
func (m *Machine) str(s string) heap.Addr {
	a := m.alloc(tagString, 1+(len(s)+heap.WordSize-1)/heap.WordSize)
	m.heap.SetRaw(a)
	start := m.heap.ChildStart(a)
	m.check(m.heap.Set(start, uint64(len(s))))
	for i := 0; i < len(s); i++ {
		m.check(m.heap.SetByte(start+1, i, s[i]))
	}
	return a
}

func (m *Machine) goString(a heap.Addr) string {
	start := m.heap.ChildStart(a)
	n, err := m.heap.Get(start)
	m.check(err)
	b := make([]byte, n)
	for i := range b {
		b[i], err = m.heap.GetByte(start+1, i)
		m.check(err)
	}
	return string(b)
}

// --- Compound values -------------------------------------------------------

// An array block refers to a growable block of elements. Growing moves the
// elements, the array block keeps the identity of the array.
func (m *Machine) array(capacity int) heap.Addr {
	if capacity < 1 {
		capacity = 1
	}
	a := m.alloc(tagArray, 1)
	m.hold(a)
	defer m.release(1)
	els := m.alloc(tagElements, capacity)
	m.setChild(a, 0, els)
	return a
}

func (m *Machine) length(arr heap.Addr) int {
	return m.heap.NumChildren(m.child(arr, 0))
}

func (m *Machine) element(arr heap.Addr, i int) heap.Addr {
	return m.child(m.child(arr, 0), i)
}

// setElement writes element i, filling up with undefined if i is beyond
// the end of the array.
func (m *Machine) setElement(arr heap.Addr, i int, v heap.Addr) {
	els := m.child(arr, 0)
	if i < m.heap.NumChildren(els) {
		m.setChild(els, i, v)
		return
	}
	m.hold(v)
	defer m.release(1)
	var err error
	for m.heap.NumChildren(els) < i {
		els, err = m.heap.AddChild(els, m.undefined)
		m.check(err)
		m.setChild(arr, 0, els)
	}
	els, err = m.heap.AddChild(els, v)
	m.check(err)
	m.setChild(arr, 0, els)
}

func (m *Machine) pair(head, tail heap.Addr) heap.Addr {
	m.hold(head)
	m.hold(tail)
	defer m.release(2)
	p := m.array(2)
	m.setElement(p, 0, head)
	m.setElement(p, 1, tail)
	return p
}

func (m *Machine) isPair(a heap.Addr) bool {
	return m.heap.Tag(a) == tagArray && m.length(a) == 2
}

// frame creates an environment frame with n slots, all unassigned.
func (m *Machine) frame(parent heap.Addr, n int) heap.Addr {
	f := m.alloc(tagFrame, n+1)
	m.setChild(f, 0, parent)
	for i := 1; i <= n; i++ {
		m.setChild(f, i, m.unassigned)
	}
	return f
}

func (m *Machine) closure(fn int, env heap.Addr) heap.Addr {
	c := m.alloc(tagClosure, 1)
	m.check(m.heap.SetField(c, uint16(fn)))
	m.setChild(c, 0, env)
	return c
}

// --- Conversion ------------------------------------------------------------

func (m *Machine) typeName(a heap.Addr) string {
	switch m.heap.Tag(a) {
	case tagNumber:
		return "number"
	case tagString:
		return "string"
	case tagBool:
		return "boolean"
	case tagNull:
		return "null"
	case tagUndefined, tagUnassigned:
		return "undefined"
	case tagArray:
		if m.length(a) == 2 {
			return "pair"
		}
		return "array"
	case tagClosure, tagPrimitive:
		return "function"
	case tagChannel:
		return "channel"
	}
	return "unknown"
}

func (m *Machine) isFunction(a heap.Addr) bool {
	tag := m.heap.Tag(a)
	return tag == tagClosure || tag == tagPrimitive
}

// equal implements '==='. Numbers and strings compare by value, everything
// else by identity.
func (m *Machine) equal(a, b heap.Addr) bool {
	ta, tb := m.heap.Tag(a), m.heap.Tag(b)
	switch {
	case ta == tagNumber && tb == tagNumber:
		return m.float(a) == m.float(b)
	case ta == tagString && tb == tagString:
		return m.goString(a) == m.goString(b)
	}
	return a == b
}

// decode converts a value on the heap to a value of package runtime.
// Closures become primitives which cannot be applied outside the machine.
func (m *Machine) decode(a heap.Addr) runtime.Value {
	return m.decodeWith(a, map[heap.Addr]*runtime.Array{})
}

func (m *Machine) decodeWith(a heap.Addr, seen map[heap.Addr]*runtime.Array) runtime.Value {
	switch m.heap.Tag(a) {
	case tagNumber:
		return m.float(a)
	case tagString:
		return m.goString(a)
	case tagBool:
		return a == m.true_
	case tagNull:
		return runtime.Null
	case tagArray:
		if arr, ok := seen[a]; ok {
			return arr
		}
		arr := runtime.NewArray()
		seen[a] = arr
		for i, n := 0, m.length(a); i < n; i++ {
			arr.Elements = append(arr.Elements, m.decodeWith(m.element(a, i), seen))
		}
		return arr
	case tagClosure:
		fn := m.prog.Functions[m.heap.Field(a)]
		return &runtime.Primitive{
			Name:  fn.Name,
			Arity: fn.ParamCount,
			Fn: func([]runtime.Value) (runtime.Value, error) {
				return nil, srceval.ExceptionError.New("function %s lives in the virtual machine", fn.Name)
			},
		}
	case tagPrimitive:
		return m.prims[m.heap.Field(a)].decoded()
	case tagChannel:
		return m.channels[m.heap.Field(a)]
	}
	return runtime.Undefined
}

// encode converts a value of package runtime to a value on the heap.
func (m *Machine) encode(v runtime.Value) (heap.Addr, error) {
	switch v := v.(type) {
	case float64:
		return m.number(v), nil
	case string:
		return m.str(v), nil
	case bool:
		return m.boolean(v), nil
	case *runtime.Array:
		arr := m.array(len(v.Elements))
		m.hold(arr)
		defer m.release(1)
		for i, el := range v.Elements {
			a, err := m.encode(el)
			if err != nil {
				return heap.Nil, err
			}
			m.setElement(arr, i, a)
		}
		return arr, nil
	}
	switch v {
	case runtime.Null:
		return m.null, nil
	case runtime.Undefined:
		return m.undefined, nil
	}
	return heap.Nil, srceval.ExceptionError.New("cannot represent %s in the virtual machine", runtime.TypeName(v))
}

// stringify prints a value the way display does.
func (m *Machine) stringify(a heap.Addr) string {
	return runtime.Stringify(m.decode(a))
}
