package compiler

import (
	"github.com/emirpasic/gods/stacks/arraystack"
	"github.com/joomcode/errorx"
	"github.com/npillmayer/schuko/gconf"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/parser"
	"github.com/npillmayer/srceval/prelude"
	"github.com/npillmayer/srceval/runtime"
	"github.com/npillmayer/srceval/svml"
)

// Option configures a compilation.
type Option func(*compiler)

// Chapter sets the language chapter. It determines the primitives
// available and, for chapters 2 and above, the library compiled into the
// program.
func Chapter(n int) Option {
	return func(c *compiler) {
		if n >= 1 && n <= parser.MaxChapter {
			c.chapter = n
		}
	}
}

// Concurrent enables concurrent_execute, send and receive, compiled to
// goroutine instructions.
func Concurrent(on bool) Option {
	return func(c *compiler) {
		c.concurrent = on
	}
}

// Globals replaces the names the program is compiled against. By default
// these are the primitives of the chapter.
func Globals(names ...string) Option {
	return func(c *compiler) {
		c.globals = names
	}
}

// Library switches compilation of the Source library on or off.
func Library(on bool) Option {
	return func(c *compiler) {
		c.library = on
	}
}

// CompileSource parses and compiles a program text.
func CompileSource(source string, opts ...Option) (*svml.Program, error) {
	c := newCompiler(opts)
	prog, err := parser.Parse(source, parser.Chapter(c.chapter))
	if err != nil {
		return nil, err
	}
	return c.compile(prog)
}

// Compile compiles a syntax tree to a program for the virtual machine.
func Compile(prog *ast.Program, opts ...Option) (*svml.Program, error) {
	return newCompiler(opts).compile(prog)
}

// --- Compiler state --------------------------------------------------------

type compiler struct {
	chapter    int
	concurrent bool
	library    bool
	globals    []string
	prog       *svml.Program
	scopes     *runtime.ScopeTree
	fn         *function
	queue      []pending
}

// function is the state of the function currently being compiled.
type function struct {
	index  int
	code   []svml.Instruction
	frames int               // frames entered so far within the function
	loops  *arraystack.Stack // of *loop
}

// loop records the jumps of break and continue statements, to be patched
// when the destinations are known.
type loop struct {
	frames    int
	breaks    []int
	continues []int
}

// pending is a function literal waiting for its body to be compiled.
type pending struct {
	index int
	fn    *ast.Function
	scope *runtime.Scope
}

func newCompiler(opts []Option) *compiler {
	c := &compiler{
		chapter:    parser.DefaultChapter(),
		concurrent: gconf.GetBool("srceval.concurrent"),
		library:    true,
		scopes:     &runtime.ScopeTree{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.globals == nil {
		c.globals = prelude.Names(c.chapter)
		if c.concurrent {
			c.globals = append(c.globals, prelude.ConcurrencyNames()...)
		}
	}
	return c
}

func (c *compiler) compile(prog *ast.Program) (p *svml.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := errorx.ErrorFromPanic(r)
			if !ok {
				panic(r)
			}
			p, err = nil, e
		}
	}()
	var lib *ast.Program
	if c.library && c.chapter >= 2 {
		if lib, err = parser.Parse(prelude.Library(c.chapter), parser.Chapter(c.chapter)); err != nil {
			return nil, errorx.Decorate(err, "cannot parse library")
		}
	}
	c.prog = &svml.Program{Spawn: -1}
	c.program(lib, prog)
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.compileFunction(next)
	}
	c.scopes.Globals().Tags().Each(func(name string, _ *runtime.Tag) {
		c.prog.Globals = append(c.prog.Globals, name)
	})
	if err = c.prog.Validate(); err != nil {
		return nil, err
	}
	tracer().Debugf("compiled %d functions, fingerprint %s", len(c.prog.Functions), c.prog.Fingerprint())
	return c.prog, nil
}

// program compiles the entry function. It runs within the frame of the
// globals and enters one frame for the library and one for the program.
func (c *compiler) program(lib, prog *ast.Program) {
	globals := c.scopes.PushNewScope("globals")
	for _, name := range c.globals {
		if t, _ := globals.ResolveTag(name); t == nil {
			globals.Declare(name, true)
		}
	}
	c.prog.Entry = c.newFunction("main")
	if c.concurrent {
		c.prog.Spawn = c.newFunction("spawn")
		c.prog.Functions[c.prog.Spawn].Code = []svml.Instruction{
			svml.Make(svml.Call, 0),
			svml.Make(svml.Pop),
			svml.Make(svml.GoDestroy),
		}
		c.prog.Functions[c.prog.Spawn].MaxStackSize = 1
	}
	c.begin(c.prog.Entry)
	if lib != nil {
		c.openScope("library", lib.Body, lib.Loc(), true)
		c.statements(lib.Body, false)
	}
	c.openScope("program", prog.Body, prog.Loc(), true)
	c.emit(svml.LoadUndefined, prog.Loc())
	c.statements(prog.Body, true)
	c.emit(svml.Done, prog.Loc())
	entry := c.end()
	entry.EnvSize = globals.Size()
}

// compileFunction compiles the body of a function literal in the scope the
// literal appeared in. Parameters and the top-level declarations of the
// body share one frame.
func (c *compiler) compileFunction(p pending) {
	prev := c.scopes.Enter(p.scope)
	defer c.scopes.Leave(prev)
	sc := c.scopes.PushNewScope(c.prog.Functions[p.index].Name)
	for _, param := range p.fn.Params {
		if _, err := sc.Declare(param.Name, false); err != nil {
			c.fail(err, param.Loc())
		}
	}
	c.declare(sc, p.fn.Body.Body)
	c.begin(p.index)
	c.hoist(p.fn.Body.Body)
	c.statements(p.fn.Body.Body, false)
	c.emit(svml.LoadUndefined, p.fn.Body.Loc())
	c.emit(svml.Return, p.fn.Body.Loc())
	fn := c.end()
	fn.ParamCount = len(p.fn.Params)
	fn.EnvSize = sc.Size()
	c.scopes.PopScope()
}

// newFunction reserves an index for a function, to be filled later.
func (c *compiler) newFunction(name string) int {
	c.prog.Functions = append(c.prog.Functions, &svml.Function{Name: name})
	return len(c.prog.Functions) - 1
}

// enqueue schedules a function literal for compilation, returning the index
// it will be loaded by.
func (c *compiler) enqueue(fn *ast.Function, name string) int {
	if fn.Name != "" {
		name = fn.Name
	} else if name == "" {
		name = "(anonymous)"
	}
	index := c.newFunction(name)
	c.queue = append(c.queue, pending{index: index, fn: fn, scope: c.scopes.Current()})
	return index
}

func (c *compiler) begin(index int) {
	c.fn = &function{index: index, loops: arraystack.New()}
}

func (c *compiler) end() *svml.Function {
	fn := c.prog.Functions[c.fn.index]
	fn.Code = c.fn.code
	fn.MaxStackSize = svml.StackSize(fn.Code, 0)
	if fn.MaxStackSize == 0 {
		fn.MaxStackSize = 1
	}
	tracer().P("fn", fn.Name).Debugf("%d instructions, stack size %d", len(fn.Code), fn.MaxStackSize)
	c.fn = nil
	return fn
}

// --- Emitting code ---------------------------------------------------------

// emit appends an instruction and returns its index.
func (c *compiler) emit(op svml.Opcode, loc srceval.Location, operands ...int) int {
	in := svml.Make(op, operands...)
	in.Loc = loc
	c.fn.code = append(c.fn.code, in)
	return len(c.fn.code) - 1
}

func (c *compiler) emitInstruction(in svml.Instruction, loc srceval.Location) {
	in.Target = svml.Unpatched
	in.Loc = loc
	c.fn.code = append(c.fn.code, in)
}

// emitName appends a Load or Store, recording the name for messages and
// listings.
func (c *compiler) emitName(op svml.Opcode, loc srceval.Location, name string, depth, slot int) {
	c.emitInstruction(svml.Instruction{Op: op, A: depth, B: slot, Str: name}, loc)
}

// patch sets the target of the jump at pc to the next instruction to emit.
func (c *compiler) patch(pc int) {
	c.patchTo(pc, len(c.fn.code))
}

func (c *compiler) patchTo(pc, target int) {
	if !c.fn.code[pc].Op.IsJump() {
		errorx.Panic(errorx.IllegalState.New("patching %s at %d", c.fn.code[pc].Op, pc))
	}
	c.fn.code[pc].Target = target
}

func (c *compiler) fail(err error, loc srceval.Location) {
	errorx.Panic(srceval.WithLocation(err, loc))
}

// --- Scopes ----------------------------------------------------------------

// declare enters the declarations of a block into a scope.
func (c *compiler) declare(sc *runtime.Scope, body []ast.Node) {
	for _, d := range ast.Declarations(body) {
		if _, err := sc.Declare(d.Name, d.Const); err != nil {
			c.fail(err, d.Node.Loc())
		}
	}
}

// openScope opens a scope for the declarations of a block and enters its
// frame, binding functions declared in the block. Blocks without
// declarations do not get a frame, unless forced.
func (c *compiler) openScope(name string, body []ast.Node, loc srceval.Location, force bool) bool {
	if len(ast.Declarations(body)) == 0 && !force {
		return false
	}
	sc := c.scopes.PushNewScope(name)
	c.declare(sc, body)
	c.emit(svml.EnterScope, loc, sc.Size())
	c.fn.frames++
	c.hoist(body)
	return true
}

func (c *compiler) closeScope(loc srceval.Location) {
	c.emit(svml.ExitScope, loc)
	c.fn.frames--
	c.scopes.PopScope()
}

// hoist binds the functions declared in a block before any of its
// statements run.
func (c *compiler) hoist(body []ast.Node) {
	for _, stmt := range body {
		if fd, ok := stmt.(*ast.FunctionDeclaration); ok {
			tag, _ := c.scopes.Current().ResolveTag(fd.Function.Name)
			c.emit(svml.LoadFunction, fd.Loc(), c.enqueue(fd.Function, ""))
			c.emitName(svml.Store, fd.Loc(), fd.Function.Name, 0, tag.Slot)
		}
	}
}

// resolve finds the frame depth and slot of a name.
func (c *compiler) resolve(id *ast.Identifier) (*runtime.Tag, int) {
	tag, depth := c.scopes.Current().ResolveTag(id.Name)
	if tag == nil {
		c.fail(srceval.UnboundName.New("name %s not declared", id.Name), id.Loc())
	}
	return tag, depth
}

// isGlobal is a predicate: does name refer to a pre-declared global?
func (c *compiler) isGlobal(name string) bool {
	tag, depth := c.scopes.Current().ResolveTag(name)
	if tag == nil {
		return false
	}
	sc := c.scopes.Current()
	for ; depth > 0; depth-- {
		sc = sc.Parent
	}
	return sc == c.scopes.Globals()
}
