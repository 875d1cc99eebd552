package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/pterm/pterm"
)

func newTestSession(t *testing.T, useVM bool) (*Session, *bytes.Buffer) {
	t.Helper()
	pterm.DisableStyling()
	out := &bytes.Buffer{}
	s, err := newSession(out, useVM)
	if err != nil {
		t.Fatalf("cannot create session: %v", err)
	}
	return s, out
}

func expectOutput(t *testing.T, out *bytes.Buffer, fragments ...string) {
	t.Helper()
	text := out.String()
	for _, f := range fragments {
		if !strings.Contains(text, f) {
			t.Errorf("expected output to contain %q, got\n%s", f, text)
		}
	}
	out.Reset()
}

func TestDeclarationsPersist(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.srepl")
	defer teardown()
	//
	s, out := newTestSession(t, false)
	s.Eval("const x = 2;")
	out.Reset()
	s.Eval("x * 21;")
	expectOutput(t, out, "42")
	s.Eval("y;")
	expectOutput(t, out, "Line 1: name y not declared")
}

func TestBreakpointStepContinue(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.srepl")
	defer teardown()
	//
	s, out := newTestSession(t, false)
	s.Eval(":break 2")
	expectOutput(t, out, "breakpoints at lines 2")
	s.Eval("let a = 1;\na = a + 1;\na * 10;")
	expectOutput(t, out, "breakpoint", "ExpressionStatement")
	if s.exec == nil {
		t.Fatalf("expected a suspended execution")
	}
	s.Eval(":env")
	expectOutput(t, out, "<let a = 1>")
	s.Eval(":step")
	expectOutput(t, out, "step")
	s.Eval(":continue")
	expectOutput(t, out, "20")
	if s.exec != nil {
		t.Errorf("expected execution to be finished")
	}
	s.Eval(":continue")
	expectOutput(t, out, "no suspended execution")
	s.Eval(":clear")
	s.Eval(":break")
	expectOutput(t, out, "no breakpoints")
}

func TestInspectionCommands(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.srepl")
	defer teardown()
	//
	s, out := newTestSession(t, false)
	s.Eval(":ast const x = 1 + 2;")
	expectOutput(t, out, "VariableDeclaration const x", "BinaryExpression +", "Literal 2")
	s.Eval(":dis 1 + 2;")
	expectOutput(t, out, "LoadNumber")
	s.Eval(":nonsense")
	expectOutput(t, out, "unknown command :nonsense")
	if quit := s.Eval(":quit"); !quit {
		t.Errorf("expected :quit to end the session")
	}
}

func TestVirtualMachineSession(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.srepl")
	defer teardown()
	//
	s, out := newTestSession(t, true)
	s.Eval("function f(n) { return n === 0 ? 1 : n * f(n - 1); } f(5);")
	expectOutput(t, out, "120")
	s.Eval("display('hello'); 1 + undefined_name;")
	expectOutput(t, out, "name undefined_name not declared")
}

func TestFlagConfig(t *testing.T) {
	conf := flagConfig{
		"trace.root":        "Debug",
		"srceval.chapter":   "3",
		"srceval.lazy":      "true",
		"srceval.heapwords": "x",
	}
	conf.InitDefaults()
	if conf.GetString("tracing.adapter") != "go" {
		t.Errorf("expected Go log adapter to be the default")
	}
	if conf.GetString("trace.srceval.vm") != "Debug" {
		t.Errorf("expected package trace level to default to root trace level")
	}
	if conf.GetInt("srceval.chapter") != 3 || conf.GetInt("srceval.heapwords") != 0 {
		t.Errorf("unexpected integer values")
	}
	if !conf.GetBool("srceval.lazy") || conf.GetBool("srceval.concurrent") {
		t.Errorf("unexpected boolean values")
	}
}
