package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/compiler"
	"github.com/npillmayer/srceval/interp"
	"github.com/npillmayer/srceval/parser"
	"github.com/npillmayer/srceval/runtime"
	"github.com/npillmayer/srceval/vm"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

// Session is our interpreter object. It holds the state living from one
// input to the next: the program environment of the interpreter, the
// breakpoints and a suspended execution, if any.
type Session struct {
	out      io.Writer
	useVM    bool
	intp     *interp.Interpreter
	debugger *interp.Debugger
	machine  *vm.Machine
	exec     *interp.Execution // suspended execution
}

func newSession(out io.Writer, useVM bool) (*Session, error) {
	s := &Session{
		out:      out,
		useVM:    useVM,
		debugger: interp.NewDebugger(),
	}
	intp, err := interp.New(interp.Output(out), interp.WithDebugger(s.debugger))
	if err != nil {
		return nil, err
	}
	s.intp = intp
	s.machine = vm.New(vm.Output(out))
	return s, nil
}

// Eval evaluates a line of input, which is either a command or a program.
// It returns true if the user wants to quit.
func (s *Session) Eval(line string) bool {
	if strings.HasPrefix(line, ":") {
		return s.command(line)
	}
	if s.useVM {
		s.runVM(line)
	} else {
		s.run(line)
	}
	return false
}

func (s *Session) command(line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	tracer().Debugf("command %s %q", cmd, arg)
	switch cmd {
	case ":quit", ":q":
		return true
	case ":break", ":b":
		s.setBreakpoints(arg)
	case ":clear":
		s.debugger.ClearBreakpoints()
		s.printInfo("breakpoints cleared")
	case ":step", ":s":
		s.step()
	case ":continue", ":c":
		if s.exec == nil {
			s.printInfo("no suspended execution")
			return false
		}
		s.drive(s.exec)
	case ":env":
		s.printEnv()
	case ":ast":
		s.printAST(arg)
	case ":dis":
		s.disassemble(arg)
	case ":load":
		s.load(arg)
	default:
		s.printError(fmt.Errorf("unknown command %s", cmd))
	}
	return false
}

// --- Evaluation ------------------------------------------------------------

// run starts a suspendable execution of a program on the interpreter.
func (s *Session) run(src string) {
	prog, err := parser.Parse(src, parser.Chapter(s.intp.Chapter()))
	if err != nil {
		s.printError(err)
		return
	}
	s.exec = nil
	s.drive(s.intp.Start(context.Background(), prog))
}

// drive continues an execution until it pauses or terminates and prints
// the outcome.
func (s *Session) drive(ex *interp.Execution) {
	status, err := ex.Continue()
	switch status {
	case interp.Paused:
		s.exec = ex
		p := ex.Pause()
		s.printInfo(fmt.Sprintf("%s: %s", p, ast.Label(p.Node)))
	case interp.Finished:
		s.exec = nil
		s.printResult(ex.Result())
	default:
		s.exec = nil
		s.printError(err)
	}
}

func (s *Session) step() {
	if s.exec == nil {
		s.printInfo("no suspended execution")
		return
	}
	stepping := s.debugger.IsStepping()
	s.debugger.SetStepping(true)
	defer s.debugger.SetStepping(stepping)
	s.drive(s.exec)
}

// runVM compiles a program and runs it on the virtual machine. Every run
// starts from scratch.
func (s *Session) runVM(src string) {
	prog, err := compiler.CompileSource(src, compiler.Chapter(s.intp.Chapter()))
	if err != nil {
		s.printError(err)
		return
	}
	v, err := s.machine.Run(context.Background(), prog)
	if err != nil {
		s.printError(err)
		return
	}
	st := s.machine.Stats()
	tracer().Infof("%d instructions, %d of %d heap words in use, %d collections",
		s.machine.Steps(), st.Used, st.Words, st.Collections)
	s.printResult(v)
}

// load evaluates the contents of a file as a single program.
func (s *Session) load(filename string) {
	if filename == "" {
		s.printError(fmt.Errorf("no file name given"))
		return
	}
	src, err := os.ReadFile(filename)
	if err != nil {
		tracer().Errorf("Unable to open file: %s", filename)
		s.printError(err)
		return
	}
	tracer().Infof("loading %s", filename)
	s.Eval(string(src))
}

// --- Debugging -------------------------------------------------------------

func (s *Session) setBreakpoints(arg string) {
	for _, field := range strings.Fields(arg) {
		line, err := strconv.Atoi(field)
		if err != nil || line < 1 {
			s.printError(fmt.Errorf("not a line number: %s", field))
			return
		}
		s.debugger.SetBreakpointAtLine(line)
	}
	lines := s.debugger.Breakpoints()
	if len(lines) == 0 {
		s.printInfo("no breakpoints")
		return
	}
	s.printInfo(fmt.Sprintf("breakpoints at lines %s", strings.Trim(fmt.Sprint(lines), "[]")))
}

// printEnv shows the environments of a suspended execution, innermost
// first, or the program environment if there is no suspended execution.
// The global environment holding the primitives is left out.
func (s *Session) printEnv() {
	env := s.intp.Program()
	if s.exec != nil && s.exec.Pause().Env != nil {
		env = s.exec.Pause().Env
	}
	var ll pterm.LeveledList
	for ; env != nil && env != s.intp.Globals(); env = env.Tail {
		ll = append(ll, pterm.LeveledListItem{Level: 0, Text: env.Name})
		env.Each(func(name string, b *runtime.Binding) {
			ll = append(ll, pterm.LeveledListItem{Level: 1, Text: b.String()})
		})
	}
	s.tree("environment", ll)
}

// --- Inspection ------------------------------------------------------------

func (s *Session) printAST(src string) {
	prog, err := parser.Parse(src, parser.Chapter(s.intp.Chapter()))
	if err != nil {
		s.printError(err)
		return
	}
	var ll pterm.LeveledList
	for _, stmt := range ast.Children(prog) {
		ll = leveledNode(stmt, ll, 0)
	}
	s.tree("Program", ll)
}

func leveledNode(n ast.Node, ll pterm.LeveledList, level int) pterm.LeveledList {
	ll = append(ll, pterm.LeveledListItem{
		Level: level,
		Text:  fmt.Sprintf("%s %s", ast.Label(n), n.Loc()),
	})
	for _, c := range ast.Children(n) {
		ll = leveledNode(c, ll, level+1)
	}
	return ll
}

func (s *Session) disassemble(src string) {
	prog, err := compiler.CompileSource(src, compiler.Chapter(s.intp.Chapter()))
	if err != nil {
		s.printError(err)
		return
	}
	if err := prog.Disassemble(s.out); err != nil {
		s.printError(err)
	}
}

// --- Output ----------------------------------------------------------------

func (s *Session) tree(label string, ll pterm.LeveledList) {
	if len(ll) == 0 {
		s.printInfo(label + " is empty")
		return
	}
	out, err := pterm.DefaultTree.WithRoot(putils.TreeFromLeveledList(ll)).Srender()
	if err != nil {
		s.printError(err)
		return
	}
	pterm.Fprintln(s.out, label)
	pterm.Fprint(s.out, out)
}

func (s *Session) printResult(v runtime.Value) {
	pterm.Info.WithWriter(s.out).Println(runtime.Stringify(v))
}

func (s *Session) printInfo(msg string) {
	pterm.Info.WithWriter(s.out).Println(msg)
}

func (s *Session) printError(err error) {
	tracer().Debugf("error: %v", err)
	pterm.Error.WithWriter(s.out).Println(srceval.Describe(err))
}
