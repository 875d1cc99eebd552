package vm

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/google/uuid"
	"github.com/joomcode/errorx"
	"github.com/npillmayer/schuko/gconf"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/heap"
	"github.com/npillmayer/srceval/runtime"
	"github.com/npillmayer/srceval/svml"
)

// Defaults for machines not configured otherwise.
const (
	DefaultHeapWords = 1 << 20
	DefaultQuantum   = 100
)

// Machine executes compiled programs. A machine may run any number of
// programs, one after the other. Every run starts with a fresh heap.
type Machine struct {
	heapWords int
	quantum   int
	stepLimit int64
	maxCalls  int
	out       io.Writer

	id         uuid.UUID // of the current run
	prog       *svml.Program
	heap       *heap.Heap
	globals    heap.Addr // frame holding the primitives
	prims      []*primitive
	channels   []*channel
	goroutines []*goroutine    // live goroutines, the main goroutine first
	queue      *arraylist.List // runnable goroutines, served round-robin
	main       *goroutine
	temps      []heap.Addr      // values referenced from Go variables only
	loc        srceval.Location // of the instruction executing
	steps      int64
	serial     int

	// preallocated values
	undefined, null, unassigned, true_, false_ heap.Addr
}

// Option configures a machine.
type Option func(*Machine)

// Output sets the writer for display.
func Output(w io.Writer) Option {
	return func(m *Machine) {
		if w != nil {
			m.out = w
		}
	}
}

// HeapWords sets the size of the heap in words.
func HeapWords(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.heapWords = n
		}
	}
}

// Quantum sets the number of instructions a goroutine may execute before
// the next one is scheduled.
func Quantum(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.quantum = n
		}
	}
}

// StepLimit sets the number of instructions after which a run fails with a
// Timeout error. 0 means unlimited.
func StepLimit(n int64) Option {
	return func(m *Machine) {
		m.stepLimit = n
	}
}

// MaxStack limits the depth of calls of a goroutine. Calls in tail
// position do not count. 0 means unlimited.
func MaxStack(n int) Option {
	return func(m *Machine) {
		m.maxCalls = n
	}
}

// New creates a machine. Options not given are taken from the global
// configuration (keys "srceval.heapwords", "srceval.quantum",
// "srceval.steplimit", "srceval.maxstack").
func New(opts ...Option) *Machine {
	m := &Machine{
		heapWords: gconf.GetInt("srceval.heapwords"),
		quantum:   gconf.GetInt("srceval.quantum"),
		stepLimit: int64(gconf.GetInt("srceval.steplimit")),
		maxCalls:  gconf.GetInt("srceval.maxstack"),
		out:       os.Stdout,
	}
	if m.heapWords <= 0 {
		m.heapWords = DefaultHeapWords
	}
	if m.quantum <= 0 {
		m.quantum = DefaultQuantum
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes a program until its main goroutine is done and returns the
// completion value of the program. Goroutines still alive at that time are
// discarded.
func (m *Machine) Run(ctx context.Context, prog *svml.Program) (result runtime.Value, err error) {
	if err = prog.Validate(); err != nil {
		return nil, err
	}
	m.id = uuid.New()
	defer func() {
		if r := recover(); r != nil {
			e, ok := errorx.ErrorFromPanic(r)
			if !ok {
				panic(r)
			}
			result, err = nil, srceval.WithLocation(e, m.loc)
			tracer().P("run", m.id.String()).Errorf("run aborted: %v", err)
		}
	}()
	if err = m.boot(prog); err != nil {
		return nil, err
	}
	if err = m.schedule(ctx); err != nil {
		tracer().P("run", m.id.String()).Infof("run failed after %d instructions: %v", m.steps, err)
		return nil, err
	}
	result = m.decode(m.main.result)
	s := m.heap.Stats()
	tracer().P("run", m.id.String()).Infof("run done after %d instructions, %d goroutines, %d collections",
		m.steps, m.serial, s.Collections)
	return result, nil
}

// boot creates the heap for a run, the primitives and the main goroutine.
func (m *Machine) boot(prog *svml.Program) error {
	m.prog = prog
	m.heap = heap.New(m.heapWords)
	m.heap.OnExhausted(m.roots)
	m.globals = heap.Nil
	m.prims, m.channels, m.goroutines, m.temps = nil, nil, nil, nil
	m.queue = arraylist.New()
	m.loc = srceval.Location{}
	m.steps, m.serial = 0, 0
	m.undefined = m.singleton(tagUndefined, 0)
	m.null = m.singleton(tagNull, 0)
	m.unassigned = m.singleton(tagUnassigned, 0)
	m.false_ = m.singleton(tagBool, 0)
	m.true_ = m.singleton(tagBool, 1)
	m.globals = m.frame(heap.Nil, len(prog.Globals))
	for i, name := range prog.Globals {
		v, err := m.global(name)
		if err != nil {
			return err
		}
		m.setChild(m.globals, i+1, v)
	}
	m.main = m.start(prog.Entry, m.globals)
	tracer().P("run", m.id.String()).Debugf("booted with %d globals, heap of %d words",
		len(prog.Globals), m.heap.Words())
	return nil
}

// roots returns the roots for garbage collection.
func (m *Machine) roots() []heap.Addr {
	roots := []heap.Addr{m.undefined, m.null, m.unassigned, m.false_, m.true_, m.globals}
	roots = append(roots, m.temps...)
	for _, g := range m.goroutines {
		roots = append(roots, g.env)
		roots = append(roots, g.stack...)
		for _, c := range g.calls {
			roots = append(roots, c.env)
		}
	}
	return roots
}

// Stats returns the usage of the heap of the current or last run.
func (m *Machine) Stats() heap.Stats {
	if m.heap == nil {
		return heap.Stats{}
	}
	return m.heap.Stats()
}

// Steps returns the number of instructions executed by the current or last
// run.
func (m *Machine) Steps() int64 {
	return m.steps
}

// --- Goroutines ------------------------------------------------------------

type state int

const (
	runnable state = iota
	blocked
	done
)

// callFrame saves the state of a caller.
type callFrame struct {
	fn   int
	pc   int
	env  heap.Addr
	base int // height of the operand stack after removing callee and arguments
}

type goroutine struct {
	id     int
	fn     int // index of the function executing
	pc     int
	env    heap.Addr
	stack  []heap.Addr
	calls  []callFrame
	state  state
	loc    srceval.Location // of the last instruction executed
	result heap.Addr
}

func (g *goroutine) push(a heap.Addr) {
	g.stack = append(g.stack, a)
}

func (g *goroutine) pop() heap.Addr {
	a := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	return a
}

// peek returns the value i positions below the top of the operand stack.
func (g *goroutine) peek(i int) heap.Addr {
	return g.stack[len(g.stack)-1-i]
}

func (g *goroutine) drop(n int) {
	g.stack = g.stack[:len(g.stack)-n]
}

// base returns the height of the operand stack at the time the function
// executing has been called.
func (g *goroutine) base() int {
	if len(g.calls) == 0 {
		return 0
	}
	return g.calls[len(g.calls)-1].base
}

// start creates a runnable goroutine executing function fn.
func (m *Machine) start(fn int, env heap.Addr, stack ...heap.Addr) *goroutine {
	m.serial++
	g := &goroutine{
		id:    m.serial,
		fn:    fn,
		env:   env,
		stack: append(make([]heap.Addr, 0, m.prog.Functions[fn].MaxStackSize), stack...),
	}
	m.goroutines = append(m.goroutines, g)
	m.queue.Add(g)
	tracer().Debugf("goroutine #%d started", g.id)
	return g
}

func (m *Machine) destroy(g *goroutine) {
	g.state = done
	for i, h := range m.goroutines {
		if h == g {
			m.goroutines = append(m.goroutines[:i], m.goroutines[i+1:]...)
			break
		}
	}
	tracer().Debugf("goroutine #%d done", g.id)
}

func (m *Machine) wake(g *goroutine) {
	g.state = runnable
	m.queue.Add(g)
}

// schedule runs goroutines round-robin until the main goroutine is done.
func (m *Machine) schedule(ctx context.Context) error {
	for m.main.state != done {
		next, ok := m.queue.Get(0)
		if !ok {
			return srceval.WithLocation(
				srceval.Deadlock.New("all goroutines are asleep, %d blocked", len(m.goroutines)),
				m.main.loc)
		}
		m.queue.Remove(0)
		g := next.(*goroutine)
		if err := m.slice(ctx, g); err != nil {
			return err
		}
		if g.state == runnable {
			m.queue.Add(g)
		}
	}
	return nil
}

// slice executes instructions of a goroutine until its quantum is used up
// or it blocks or finishes.
func (m *Machine) slice(ctx context.Context, g *goroutine) error {
	for n := 0; n < m.quantum && g.state == runnable; n++ {
		if err := m.tick(ctx); err != nil {
			return srceval.WithLocation(err, g.loc)
		}
		in := &m.prog.Functions[g.fn].Code[g.pc]
		m.loc, g.loc = in.Loc, in.Loc
		g.pc++
		if err := m.exec(g, in); err != nil {
			return srceval.WithLocation(err, in.Loc)
		}
	}
	return nil
}

// tick counts an instruction. It enforces the step limit and observes
// cancellation.
func (m *Machine) tick(ctx context.Context) error {
	m.steps++
	if m.stepLimit > 0 && m.steps > m.stepLimit {
		return srceval.Timeout.New("Potential infinite loop: exceeded %d instructions", m.stepLimit)
	}
	if m.steps&1023 == 1 {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return srceval.Timeout.Wrap(err, "execution timed out")
			}
			return srceval.Stopped.Wrap(err, "execution cancelled")
		}
	}
	return nil
}
