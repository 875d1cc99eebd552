package interp

import (
	"context"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/parser"
	"github.com/npillmayer/srceval/runtime"
)

const fourLines = `const a = 1;
const b = a + 1;
display(b);
b * 10;`

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse(src)
	if err != nil {
		t.Fatalf("cannot parse program: %v", err)
	}
	return prog
}

func TestBreakpoint(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.interp")
	defer teardown()
	//
	var out strings.Builder
	in := newInterpreter(t, Output(&out))
	in.Debugger().SetBreakpointAtLine(3)
	ex := in.Start(context.Background(), parse(t, fourLines))
	status, err := ex.Continue()
	if err != nil || status != Paused {
		t.Fatalf("expected execution to pause, got %s, %v", status, err)
	}
	if line := ex.Pause().Loc().Line(); line != 3 {
		t.Errorf("expected pause on line 3, got line %d", line)
	}
	if ex.Pause().Reason != AtBreakpoint {
		t.Errorf("expected pause at breakpoint, got %s", ex.Pause().Reason)
	}
	if out.Len() != 0 {
		t.Errorf("display ran before the breakpoint")
	}
	if v, err := ex.Pause().Env.Lookup("b"); err != nil || v != 2.0 {
		t.Errorf("expected b = 2 in paused environment, got %v, %v", v, err)
	}
	if in.Debugger().SavedState() != ex {
		t.Errorf("expected paused execution to be saved")
	}
	status, err = ex.Continue()
	if err != nil || status != Finished {
		t.Fatalf("expected execution to finish, got %s, %v", status, err)
	}
	if ex.Result() != 20.0 {
		t.Errorf("expected result 20, got %s", runtime.Stringify(ex.Result()))
	}
	if out.String() != "2\n" {
		t.Errorf("unexpected output %q", out.String())
	}
	if in.Debugger().SavedState() != nil {
		t.Errorf("finished execution still saved")
	}
}

func TestStepping(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.interp")
	defer teardown()
	//
	in := newInterpreter(t)
	in.Debugger().SetStepping(true)
	ex := in.Start(context.Background(), parse(t, fourLines))
	var lines []int
	for {
		status, err := ex.Continue()
		if err != nil {
			t.Fatal(err)
		}
		if status != Paused {
			break
		}
		lines = append(lines, ex.Pause().Loc().Line())
	}
	if len(lines) != 4 || lines[0] != 1 || lines[3] != 4 {
		t.Errorf("expected to step through lines 1…4, got %v", lines)
	}
}

func TestDebuggerStatement(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.interp")
	defer teardown()
	//
	in := newInterpreter(t)
	ex := in.Start(context.Background(), parse(t, "function f(x) {\n  debugger;\n  return x;\n}\nf(7);"))
	status, _ := ex.Continue()
	if status != Paused || ex.Pause().Reason != AtDebuggerStatement {
		t.Fatalf("expected pause at debugger statement, got %s", status)
	}
	if v, err := ex.Pause().Env.Lookup("x"); err != nil || v != 7.0 {
		t.Errorf("expected x = 7 at pause, got %v", v)
	}
	status, _ = ex.Continue()
	if status != Finished || ex.Result() != 7.0 {
		t.Errorf("expected f(7) = 7, got %s %v", status, ex.Result())
	}
	// Run ignores pauses
	v, err := in.Run(context.Background(), parse(t, "function g() {\n  debugger;\n  return 1;\n}\ng();"))
	if err != nil || v != 1.0 {
		t.Errorf("expected Run to ignore debugger statements, got %v, %v", v, err)
	}
}

func TestManualPause(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.interp")
	defer teardown()
	//
	in := newInterpreter(t)
	if !in.Debugger().ManualToggleDebugger() {
		t.Fatalf("expected pause request to be pending")
	}
	ex := in.Start(context.Background(), parse(t, fourLines))
	status, _ := ex.Continue()
	if status != Paused || ex.Pause().Reason != OnRequest || ex.Pause().Loc().Line() != 1 {
		t.Fatalf("expected requested pause at line 1, got %s at %s", status, ex.Pause())
	}
	status, _ = ex.Continue()
	if status != Finished {
		t.Errorf("expected request to be one-shot, got %s", status)
	}
}

func TestStopPausedExecution(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.interp")
	defer teardown()
	//
	var out strings.Builder
	in := newInterpreter(t, Output(&out))
	in.Debugger().SetBreakpointAtLine(3)
	ex := in.Start(context.Background(), parse(t, fourLines))
	if status, _ := ex.Continue(); status != Paused {
		t.Fatalf("expected pause, got %s", status)
	}
	ex.Stop()
	if ex.Status() != Stopped || !srceval.IsOfType(ex.Err(), srceval.Stopped) {
		t.Errorf("expected stopped execution, got %s, %v", ex.Status(), ex.Err())
	}
	if out.Len() != 0 {
		t.Errorf("stopped execution produced output %q", out.String())
	}
	if in.Stack().Depth() != 2 {
		t.Errorf("expected stack to be unwound, depth is %d", in.Stack().Depth())
	}
	in.Debugger().ClearBreakpoints()
	// a, b have been assigned before the stop and persist
	v, err := in.Evaluate(context.Background(), "a + b;")
	if err != nil || v != 3.0 {
		t.Errorf("expected a + b = 3, got %v, %v", v, err)
	}
}

func TestStartStopsSuspendedExecution(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.interp")
	defer teardown()
	//
	in := newInterpreter(t)
	in.Debugger().SetBreakpointAtLine(2)
	first := in.Start(context.Background(), parse(t, "const p = 1;\nconst q = 2;"))
	first.Continue()
	in.Debugger().ClearBreakpoints()
	second := in.Start(context.Background(), parse(t, "p;"))
	if first.Status() != Stopped {
		t.Errorf("expected first execution to be stopped, is %s", first.Status())
	}
	if status, err := second.Continue(); status != Finished || err != nil {
		t.Errorf("expected second execution to finish, got %s, %v", status, err)
	}
	if _, err := in.Evaluate(context.Background(), "const q = 3;"); err != nil {
		t.Errorf("expected unassigned q to be rolled back, got %v", err)
	}
}

func TestBreakpointSet(t *testing.T) {
	d := NewDebugger()
	d.SetBreakpointAtLine(7, 3, 0, 12)
	d.RemoveBreakpoint(12)
	bps := d.Breakpoints()
	if len(bps) != 2 || bps[0] != 3 || bps[1] != 7 {
		t.Errorf("expected breakpoints [3 7], got %v", bps)
	}
}

func TestBreakpointPausesOncePerStatement(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.interp")
	defer teardown()
	//
	in := newInterpreter(t)
	in.Debugger().SetBreakpointAtLine(2)
	ex := in.Start(context.Background(), parse(t, "const a = 1;\nconst b = (a + 1) * (a + 2);\nb;"))
	status, err := ex.Continue()
	if err != nil || status != Paused {
		t.Fatalf("expected execution to pause, got %s, %v", status, err)
	}
	if !ast.IsStatement(ex.Pause().Node) {
		t.Errorf("expected pause at a statement, got %s", ast.Kind(ex.Pause().Node))
	}
	status, err = ex.Continue()
	if err != nil || status != Finished {
		t.Fatalf("expected no further pause on line 2, got %s, %v", status, err)
	}
	if ex.Result() != 6.0 {
		t.Errorf("expected result 6, got %s", runtime.Stringify(ex.Result()))
	}
}
