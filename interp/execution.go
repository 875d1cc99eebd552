package interp

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/runtime"
)

// Status is the state of an execution.
type Status int8

// States of an execution.
const (
	Created Status = iota
	Paused
	Finished
	Failed
	Stopped
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	}
	return "stopped"
}

// PauseReason tells why an execution has been suspended.
type PauseReason int8

// Reasons for pausing.
const (
	AtBreakpoint PauseReason = iota
	AtStep
	AtDebuggerStatement
	OnRequest
)

func (r PauseReason) String() string {
	switch r {
	case AtBreakpoint:
		return "breakpoint"
	case AtStep:
		return "step"
	case AtDebuggerStatement:
		return "debugger statement"
	}
	return "request"
}

// Pause describes a suspension point: the node about to be evaluated and
// the environment it will be evaluated in.
type Pause struct {
	Reason PauseReason
	Node   ast.Node
	Env    *runtime.Environment
}

// Loc returns the source location of the paused node.
func (p Pause) Loc() srceval.Location {
	if p.Node == nil {
		return srceval.Location{}
	}
	return p.Node.Loc()
}

func (p Pause) String() string {
	return fmt.Sprintf("paused at %s (%s)", p.Loc(), p.Reason)
}

// Execution is a suspendable evaluation of a program. It is driven by
// calls to Continue, each of which runs the program until the next pause
// or to its end.
type Execution struct {
	ID       uuid.UUID
	in       *Interpreter
	ctx      context.Context
	prog     *ast.Program
	debug    bool
	next     func() (Pause, bool)
	stop     func()
	yield    func(Pause) bool
	killed   bool
	status   Status
	result   runtime.Value
	errs     []error
	pause    Pause
	steps    int64
	depth    int // nested evaluations
	calls    int // nested closure calls
	declared []string // top-level names hoisted by this execution
}

func newExecution(in *Interpreter, ctx context.Context, prog *ast.Program, debug bool) *Execution {
	ex := &Execution{
		ID:     uuid.New(),
		in:     in,
		ctx:    ctx,
		prog:   prog,
		debug:  debug,
		result: runtime.Undefined,
	}
	ex.next, ex.stop = iter.Pull(ex.coroutine)
	return ex
}

// coroutine is the body of an execution, run by iter.Pull.
func (ex *Execution) coroutine(yield func(Pause) bool) {
	ex.run(yield)
}

// Continue runs the execution until the next pause or its end. It returns
// the resulting status and, for failed executions, the error.
func (ex *Execution) Continue() (Status, error) {
	switch ex.status {
	case Finished:
		return ex.status, nil
	case Failed, Stopped:
		return ex.status, ex.Err()
	}
	if p, ok := ex.next(); ok {
		ex.status = Paused
		ex.pause = p
		ex.in.debugger.paused(ex, p)
		tracer().P("exec", ex.ID.String()[:8]).Debugf("%s", p)
		return Paused, nil
	}
	return ex.status, ex.Err()
}

// Stop abandons the execution. Side effects performed so far are not
// undone.
func (ex *Execution) Stop() {
	ex.stop()
	if ex.status == Created || ex.status == Paused {
		ex.status = Stopped
		ex.errs = append(ex.errs, srceval.Stopped.New("execution stopped"))
	}
}

// finish continues the execution until it terminates, ignoring pauses.
func (ex *Execution) finish() (runtime.Value, error) {
	for {
		status, err := ex.Continue()
		if status != Paused {
			return ex.result, err
		}
	}
}

// Status returns the current state of the execution.
func (ex *Execution) Status() Status {
	return ex.status
}

// Result returns the completion value of a finished execution.
func (ex *Execution) Result() runtime.Value {
	return ex.result
}

// Errors returns the errors of the execution. At most one error is
// reported per execution: the first one wins.
func (ex *Execution) Errors() []error {
	return ex.errs
}

// Err returns the first error of the execution, or nil.
func (ex *Execution) Err() error {
	if len(ex.errs) == 0 {
		return nil
	}
	return ex.errs[0]
}

// Pause returns the most recent suspension point.
func (ex *Execution) Pause() Pause {
	return ex.pause
}

// Steps returns the number of node visits so far.
func (ex *Execution) Steps() int64 {
	return ex.steps
}

// run evaluates the program within the coroutine.
func (ex *Execution) run(yield func(Pause) bool) {
	in := ex.in
	ex.yield = yield
	in.current = ex
	defer func() { ex.yield = nil }()
	base := in.stack.Depth()
	v, err := ex.evalProgram(ex.prog)
	if err == nil && in.lazy {
		v, err = runtime.ForceDeep(v)
	}
	if err != nil {
		in.stack.Unwind(base)
		ex.rollback()
		ex.errs = append(ex.errs, err)
		if srceval.IsOfType(err, srceval.Stopped) {
			ex.status = Stopped
		} else {
			ex.status = Failed
		}
		tracer().P("exec", ex.ID.String()[:8]).Infof("%s after %d steps: %s", ex.status, ex.steps, srceval.Describe(err))
		return
	}
	ex.result = v
	ex.status = Finished
	tracer().P("exec", ex.ID.String()[:8]).Debugf("finished after %d steps", ex.steps)
}

// rollback removes top-level names hoisted by a failed execution and never
// assigned, so a corrected program may declare them again.
func (ex *Execution) rollback() {
	env := ex.in.program
	for _, name := range ex.declared {
		if b := env.Binding(name); b != nil && !b.IsAssigned() {
			tracer().Debugf("rolling back declaration of %s", name)
			env.Undeclare(name)
		}
	}
}

// visit is called before evaluating a node. It enforces the step limit,
// observes cancellation and suspends the execution where the debugger
// asks for it.
func (ex *Execution) visit(n ast.Node, env *runtime.Environment) error {
	ex.steps++
	if ex.killed {
		return srceval.Stopped.New("execution stopped")
	}
	if limit := ex.in.stepLimit; limit > 0 && ex.steps > limit {
		return srceval.Timeout.New("Potential infinite loop: exceeded %d evaluation steps", limit)
	}
	if ex.steps&1023 == 1 {
		if err := ex.ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return srceval.Timeout.Wrap(err, "execution timed out")
			}
			return srceval.Stopped.Wrap(err, "execution cancelled")
		}
	}
	if !ex.debug || ex.yield == nil || !ast.IsStatement(n) {
		return nil
	}
	reason, ok := ex.in.debugger.shouldPause(n)
	if !ok {
		return nil
	}
	if !ex.yield(Pause{Reason: reason, Node: n, Env: env}) {
		ex.killed = true
		return srceval.Stopped.New("execution stopped")
	}
	return nil
}
