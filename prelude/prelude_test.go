package prelude

import (
	"bytes"
	"io"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/parser"
	"github.com/npillmayer/srceval/runtime"
)

func call(t *testing.T, name string, out io.Writer, args ...runtime.Value) (runtime.Value, error) {
	t.Helper()
	v, ok := Value(name, out)
	if !ok {
		t.Fatalf("%s is not a primitive", name)
	}
	p, ok := v.(*runtime.Primitive)
	if !ok {
		t.Fatalf("%s is not a function", name)
	}
	if err := p.CheckArity(len(args)); err != nil {
		return nil, err
	}
	return p.Fn(args)
}

func TestChapters(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.prelude")
	defer teardown()
	//
	for _, c := range []struct {
		name    string
		chapter int
	}{
		{"display", 1}, {"math_PI", 1}, {"pair", 2}, {"is_null", 2}, {"set_head", 3}, {"is_array", 3},
		{"no_such_thing", 0},
	} {
		if ch := Chapter(c.name); ch != c.chapter {
			t.Errorf("%s: expected chapter %d, got %d", c.name, c.chapter, ch)
		}
	}
	one, four := Names(1), Names(4)
	if len(one) >= len(four) {
		t.Errorf("expected chapter 4 to offer more primitives than chapter 1")
	}
	for _, name := range one {
		if name == "pair" {
			t.Errorf("pair must not be available in chapter 1")
		}
	}
}

func TestInstall(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.prelude")
	defer teardown()
	//
	env := runtime.NewEnvironment("globals", nil)
	if err := Install(env, 2, nil); err != nil {
		t.Fatal(err)
	}
	if env.Size() != len(Names(2)) {
		t.Errorf("expected %d names, got %d", len(Names(2)), env.Size())
	}
	b := env.Binding("math_PI")
	if b == nil || !b.Const {
		t.Fatalf("expected math_PI to be a constant")
	}
	if env.Binding("set_head") != nil {
		t.Errorf("set_head must not be installed for chapter 2")
	}
}

func TestDisplayAndError(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.prelude")
	defer teardown()
	//
	out := &bytes.Buffer{}
	v, err := call(t, "display", out, runtime.NewPair(1.0, runtime.Null), "xs:")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*runtime.Array); !ok {
		t.Errorf("expected display to return its argument, got %v", v)
	}
	if out.String() != "xs: [1, null]\n" {
		t.Errorf("unexpected output %q", out.String())
	}
	if _, err := call(t, "display", out); !srceval.IsOfType(err, srceval.InvalidNumberOfArguments) {
		t.Errorf("expected arity error, got %v", err)
	}
	_, err = call(t, "error", out, "oops")
	if !srceval.IsOfType(err, srceval.UserError) || srceval.Describe(err) != "Error: oops" {
		t.Errorf("unexpected error %v", err)
	}
	_, err = call(t, "error", out, 42.0, "bad value:")
	if srceval.Describe(err) != "Error: bad value: 42" {
		t.Errorf("unexpected error %q", srceval.Describe(err))
	}
}

func TestPrimitiveFailures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.prelude")
	defer teardown()
	//
	_, err := call(t, "head", nil, 1.0)
	if !srceval.IsOfType(err, srceval.RuntimeTypeError) {
		t.Errorf("expected type error for head(1), got %v", err)
	}
	_, err = call(t, "math_abs", nil, "x")
	if !srceval.IsOfType(err, srceval.RuntimeTypeError) {
		t.Errorf("expected type error for math_abs('x'), got %v", err)
	}
	v, err := call(t, "math_max", nil, 3.0, 9.0, 4.0)
	if err != nil || v != 9.0 {
		t.Errorf("expected math_max to be 9, got %v (%v)", v, err)
	}
	if _, err := call(t, "stringify", nil); !srceval.IsOfType(err, srceval.InvalidNumberOfArguments) {
		t.Errorf("expected arity error for stringify(), got %v", err)
	}
}

func TestLibrary(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.prelude")
	defer teardown()
	//
	if Library(1) != "" || LibraryNames(1) != nil {
		t.Errorf("expected no library for chapter 1")
	}
	prog, err := parser.Parse(Library(2), parser.Chapter(2))
	if err != nil {
		t.Fatalf("library does not parse: %v", err)
	}
	declared := make(map[string]bool)
	for _, d := range ast.Declarations(prog.Body) {
		declared[d.Name] = true
	}
	for _, name := range LibraryNames(2) {
		if !declared[name] {
			t.Errorf("library function %s is not declared", name)
		}
	}
}
