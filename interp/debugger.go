package interp

import (
	"github.com/npillmayer/srceval/ast"
	"golang.org/x/tools/container/intsets"
)

// Debugger decides where suspendable executions pause. It holds a set of
// breakpoint lines, a single-step mode and a one-shot manual pause
// request. Executions started with Run never pause.
type Debugger struct {
	breakpoints intsets.Sparse
	stepping    bool
	requested   bool
	saved       *Execution
	last        Pause
}

// NewDebugger creates a debugger without breakpoints.
func NewDebugger() *Debugger {
	return &Debugger{}
}

// SetBreakpointAtLine adds breakpoints. Executions pause before evaluating
// a statement starting on one of these lines.
func (d *Debugger) SetBreakpointAtLine(lines ...int) {
	for _, l := range lines {
		if l > 0 {
			d.breakpoints.Insert(l)
		}
	}
}

// RemoveBreakpoint removes the breakpoint at a line, if any.
func (d *Debugger) RemoveBreakpoint(line int) {
	d.breakpoints.Remove(line)
}

// ClearBreakpoints removes all breakpoints.
func (d *Debugger) ClearBreakpoints() {
	d.breakpoints.Clear()
}

// Breakpoints returns the breakpoint lines in ascending order.
func (d *Debugger) Breakpoints() []int {
	return d.breakpoints.AppendTo(nil)
}

// SetStepping switches single-step mode on or off. In single-step mode,
// executions pause before every statement.
func (d *Debugger) SetStepping(on bool) {
	d.stepping = on
}

// IsStepping is a predicate: is single-step mode on?
func (d *Debugger) IsStepping() bool {
	return d.stepping
}

// ManualToggleDebugger toggles a request to pause before the next
// statement. It returns true if a request is pending afterwards.
func (d *Debugger) ManualToggleDebugger() bool {
	d.requested = !d.requested
	return d.requested
}

// SaveState remembers a suspended execution, to be resumed later by the
// host. Executions save themselves whenever they pause.
func (d *Debugger) SaveState(ex *Execution) {
	d.saved = ex
}

// SavedState returns the execution saved last, or nil.
func (d *Debugger) SavedState() *Execution {
	if d.saved != nil && d.saved.Status() != Paused {
		return nil
	}
	return d.saved
}

// LastPause returns the pause recorded last.
func (d *Debugger) LastPause() Pause {
	return d.last
}

func (d *Debugger) paused(ex *Execution, p Pause) {
	d.SaveState(ex)
	d.last = p
}

// shouldPause is consulted for every statement node visited by a
// suspendable execution.
func (d *Debugger) shouldPause(n ast.Node) (PauseReason, bool) {
	if _, ok := n.(*ast.Debugger); ok {
		return AtDebuggerStatement, true
	}
	if d.requested {
		d.requested = false
		return OnRequest, true
	}
	if d.stepping {
		return AtStep, true
	}
	if !d.breakpoints.IsEmpty() && d.breakpoints.Has(n.Loc().Line()) {
		return AtBreakpoint, true
	}
	return 0, false
}
