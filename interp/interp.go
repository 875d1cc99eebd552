package interp

import (
	"context"
	"io"
	"os"

	"github.com/npillmayer/schuko/gconf"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/parser"
	"github.com/npillmayer/srceval/prelude"
	"github.com/npillmayer/srceval/runtime"
)

// Interpreter is a tree-walking interpreter for Source programs.
//
// An interpreter keeps its global environment and a program environment
// across evaluations. Top-level declarations of one evaluation are visible
// to later ones, which is what a REPL needs.
type Interpreter struct {
	globals   *runtime.Environment // primitives and library
	program   *runtime.Environment // top-level declarations of user programs
	stack     *runtime.EnvStack
	chapter   int
	lazy      bool
	stepLimit int64
	maxStack  int // closure calls
	maxDepth  int // nested evaluations on the host stack
	out       io.Writer
	debugger  *Debugger
	proto     *runtime.Object
	current   *Execution // execution currently (or last) running
	active    *Execution // execution started last, possibly suspended
}

// Option configures an interpreter.
type Option func(*Interpreter)

// Lazy switches to lazy evaluation.
func Lazy(lazy bool) Option {
	return func(in *Interpreter) {
		in.lazy = lazy
	}
}

// StepLimit sets the number of node visits after which an execution fails
// with a Timeout error. 0 means unlimited.
func StepLimit(n int64) Option {
	return func(in *Interpreter) {
		in.stepLimit = n
	}
}

// Limits of an execution, used when neither an option nor the
// configuration gives one.
const (
	DefaultMaxStack = 10000
	DefaultMaxDepth = 250000
)

// MaxStack limits the number of nested closure calls. Calls in tail
// position replace their caller and do not count. 0 means no limit other
// than the evaluation depth.
func MaxStack(n int) Option {
	return func(in *Interpreter) {
		in.maxStack = n
	}
}

// MaxDepth limits the nesting of evaluations, including the forcing of
// delayed values. Exceeding it fails the execution instead of overflowing
// the host stack. Values < 1 select DefaultMaxDepth.
func MaxDepth(n int) Option {
	return func(in *Interpreter) {
		in.maxDepth = n
	}
}

// Output sets the writer for display.
func Output(w io.Writer) Option {
	return func(in *Interpreter) {
		if w != nil {
			in.out = w
		}
	}
}

// WithDebugger attaches a debugger.
func WithDebugger(d *Debugger) Option {
	return func(in *Interpreter) {
		in.debugger = d
	}
}

// Chapter sets the language chapter for parsing and for the prelude.
func Chapter(n int) Option {
	return func(in *Interpreter) {
		if n >= 1 && n <= parser.MaxChapter {
			in.chapter = n
		}
	}
}

// New creates an interpreter. Options not given are taken from the global
// configuration (keys "srceval.chapter", "srceval.lazy", "srceval.steplimit",
// "srceval.maxstack").
func New(opts ...Option) (*Interpreter, error) {
	in := &Interpreter{
		chapter:   parser.DefaultChapter(),
		lazy:      gconf.GetBool("srceval.lazy"),
		stepLimit: int64(gconf.GetInt("srceval.steplimit")),
		maxStack:  gconf.GetInt("srceval.maxstack"),
		maxDepth:  DefaultMaxDepth,
		out:       os.Stdout,
	}
	if in.maxStack <= 0 {
		in.maxStack = DefaultMaxStack
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.maxDepth < 1 {
		in.maxDepth = DefaultMaxDepth
	}
	if in.debugger == nil {
		in.debugger = NewDebugger()
	}
	in.proto = prelude.ObjectPrototype()
	if err := in.Reset(); err != nil {
		return nil, err
	}
	return in, nil
}

// Reset discards all top-level declarations and re-creates the global
// environment.
func (in *Interpreter) Reset() error {
	if in.active != nil {
		in.active.Stop()
		in.active = nil
	}
	in.globals = runtime.NewEnvironment("globals", nil)
	if err := prelude.Install(in.globals, in.chapter, in.out); err != nil {
		return err
	}
	in.stack = runtime.NewEnvStack(in.globals)
	in.program = in.globals
	if lib := prelude.Library(in.chapter); lib != "" {
		prog, err := parser.Parse(lib, parser.Chapter(in.chapter))
		if err != nil {
			return err
		}
		ex := in.start(context.Background(), prog, false)
		if _, err := ex.finish(); err != nil {
			return err
		}
		in.globals.Each(func(name string, b *runtime.Binding) {
			if c, ok := b.Value.(*runtime.Closure); ok {
				c.PreDefined = true
			}
		})
	}
	in.program = runtime.NewEnvironment("program", in.globals)
	in.stack.Push(in.program)
	in.stack.ResetMaxDepth()
	tracer().Infof("interpreter reset, chapter %d, lazy=%v", in.chapter, in.lazy)
	return nil
}

// Globals returns the global environment, holding the prelude.
func (in *Interpreter) Globals() *runtime.Environment {
	return in.globals
}

// Program returns the environment holding the top-level declarations of
// user programs.
func (in *Interpreter) Program() *runtime.Environment {
	return in.program
}

// Stack returns the environment stack.
func (in *Interpreter) Stack() *runtime.EnvStack {
	return in.stack
}

// Debugger returns the debugger attached to the interpreter.
func (in *Interpreter) Debugger() *Debugger {
	return in.debugger
}

// Chapter returns the language chapter in use.
func (in *Interpreter) Chapter() int {
	return in.chapter
}

// IsLazy is a predicate: does the interpreter evaluate lazily?
func (in *Interpreter) IsLazy() bool {
	return in.lazy
}

// Evaluate parses and runs a program, resuming all pauses. It returns the
// completion value of the program.
func (in *Interpreter) Evaluate(ctx context.Context, source string) (runtime.Value, error) {
	prog, err := parser.Parse(source, parser.Chapter(in.chapter))
	if err != nil {
		return nil, err
	}
	return in.Run(ctx, prog)
}

// Run executes a parsed program to its end, resuming all pauses.
func (in *Interpreter) Run(ctx context.Context, prog *ast.Program) (runtime.Value, error) {
	return in.start(ctx, prog, false).finish()
}

// Start begins a suspendable execution of a program. Nothing is evaluated
// until the first call to Continue. A previous execution still suspended is
// stopped.
func (in *Interpreter) Start(ctx context.Context, prog *ast.Program) *Execution {
	return in.start(ctx, prog, true)
}

func (in *Interpreter) start(ctx context.Context, prog *ast.Program, debug bool) *Execution {
	if in.active != nil && in.active.status == Paused {
		tracer().Infof("stopping suspended execution %s", in.active.ID)
		in.active.Stop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ex := newExecution(in, ctx, prog, debug)
	in.active = ex
	return ex
}
