package compiler

import (
	"strings"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/svml"
)

func compile(t *testing.T, src string, opts ...Option) *svml.Program {
	t.Helper()
	p, err := CompileSource(src, opts...)
	if err != nil {
		t.Fatalf("cannot compile: %v", err)
	}
	return p
}

func lookup(p *svml.Program, name string) *svml.Function {
	for _, fn := range p.Functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

func count(fn *svml.Function, op svml.Opcode) int {
	n := 0
	for _, in := range fn.Code {
		if in.Op == op {
			n++
		}
	}
	return n
}

func TestJumpPatching(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.compiler")
	defer teardown()
	//
	p := compile(t, `let r = 0;
const x = 2;
if (x === 1) { r = 10; } else if (x === 2) { r = 20; } else { r = 30; }
r;`, Library(false))
	var sb strings.Builder
	p.Disassemble(&sb)
	t.Logf("\n%s", sb.String())
	code := p.EntryFunction().Code
	var jofs, gotos []int
	for pc, in := range code {
		switch in.Op {
		case svml.JumpOnFalse:
			jofs = append(jofs, pc)
		case svml.Goto:
			gotos = append(gotos, pc)
		}
		if in.Op.IsJump() && (in.Target < 0 || in.Target >= len(code)) {
			t.Fatalf("jump at %d has invalid target %d", pc, in.Target)
		}
	}
	if len(jofs) != 2 || len(gotos) != 2 {
		t.Fatalf("expected 2 conditional and 2 unconditional jumps, got %d and %d", len(jofs), len(gotos))
	}
	for _, pc := range jofs {
		target := code[pc].Target
		if code[target-1].Op != svml.Goto {
			t.Errorf("JumpOnFalse at %d: expected alternate to start after a Goto, target is %d", pc, target)
		}
	}
	end := code[gotos[0]].Target
	if code[gotos[1]].Target != end {
		t.Errorf("expected all branches to join at %d, got %d", end, code[gotos[1]].Target)
	}
	if code[end].Loc.Line() != 4 {
		t.Errorf("expected join point at the statement on line 4, is on line %d", code[end].Loc.Line())
	}
}

func TestTailCalls(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.compiler")
	defer teardown()
	//
	p := compile(t, `
        function f(n, acc) { return n === 0 ? acc : f(n - 1, acc + n); }
        function g(x) { return x > 0 && g(x - 1); }
        function h(x) { return 1 + h(x); }
        f(10, 0);`, Library(false))
	f := lookup(p, "f")
	if count(f, svml.TailCall) != 1 || count(f, svml.Call) != 0 {
		t.Errorf("expected f to tail call itself")
	}
	if f.ParamCount != 2 || f.EnvSize != 2 {
		t.Errorf("expected 2 parameters in a frame of 2, got %d/%d", f.ParamCount, f.EnvSize)
	}
	if g := lookup(p, "g"); count(g, svml.TailCall) != 1 {
		t.Errorf("expected tail call through &&")
	}
	if h := lookup(p, "h"); count(h, svml.TailCall) != 0 || count(h, svml.Call) != 1 {
		t.Errorf("expected call within an operation not to be a tail call")
	}
}

func TestScopes(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.compiler")
	defer teardown()
	//
	p := compile(t, `
        function f(n) {
            let i = 0;
            while (true) {
                const j = i;
                if (j > n) { break; }
                i = i + 1;
            }
            return i;
        }
        function g() {
            const fs = [];
            for (let i = 0; i < 3; i = i + 1) { fs[i] = () => i; }
            return fs;
        }`, Library(false))
	f := lookup(p, "f")
	if f.EnvSize != 2 {
		t.Errorf("expected frame of f to hold n and i, size is %d", f.EnvSize)
	}
	if count(f, svml.EnterScope) != 1 {
		t.Errorf("expected a single frame for the loop body, got %d", count(f, svml.EnterScope))
	}
	reset := false
	for pc, in := range f.Code {
		if in.Op == svml.Reset {
			reset = in.A == 1 && f.Code[pc+1].Op == svml.Goto
		}
	}
	if !reset {
		t.Errorf("expected break to leave one frame")
	}
	g := lookup(p, "g")
	if count(g, svml.EnterScope) != 2 || count(g, svml.ExitScope) != 2 {
		t.Errorf("expected frames for loop variable and iteration")
	}
	closure := p.Functions[len(p.Functions)-1]
	if closure.Name != "(anonymous)" {
		t.Fatalf("expected arrow function last, got %s", closure.Name)
	}
	if in := closure.Code[0]; in.Op != svml.Load || in.A != 1 || in.B != 0 {
		t.Errorf("expected closure to read i from the iteration frame, got %s", in)
	}
}

func TestStaticErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.compiler")
	defer teardown()
	//
	cases := []struct {
		src  string
		typ  *errorx.Type
		line int
	}{
		{"const a = 1;\nb;", srceval.UnboundName, 2},
		{"const a = 1;\n\na = 2;", srceval.AssignToConstant, 3},
		{"function f(x) {\n  const x = 1;\n  return x;\n}", srceval.Redeclaration, 2},
		{"let x = 1;\n{\n  let y = 1;\n  let y = 2;\n}", srceval.Redeclaration, 4},
		{"const o = {a: 1};", srceval.ChapterError, 1},
		{"for (let i = 0; i < 3; i = i + 1) {\n  i = 5;\n}", srceval.AssignToConstant, 2},
		{"send(1, 2);", srceval.UnboundName, 1},
	}
	for _, c := range cases {
		_, err := CompileSource(c.src, Library(false))
		if !srceval.IsOfType(err, c.typ) {
			t.Errorf("%q: expected %s, got %v", c.src, c.typ, err)
			continue
		}
		if loc, ok := srceval.LocationOf(err); !ok || loc.Line() != c.line {
			t.Errorf("%q: expected error on line %d, got %s", c.src, c.line, srceval.Describe(err))
		}
	}
}

func TestLibraryAndGlobals(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.compiler")
	defer teardown()
	//
	p := compile(t, "length(list(1, 2, 3));", Chapter(2))
	if lookup(p, "length") == nil || lookup(p, "map") == nil {
		t.Errorf("expected library functions to be compiled")
	}
	found := false
	for _, g := range p.Globals {
		found = found || g == "pair"
	}
	if !found || p.EntryFunction().EnvSize != len(p.Globals) {
		t.Errorf("expected globals to include pair and to size the entry frame")
	}
	p = compile(t, "math_abs(-1);", Chapter(1))
	if lookup(p, "length") != nil {
		t.Errorf("expected no library in chapter 1")
	}
	if _, err := CompileSource("pair(1, 2);", Chapter(1)); !srceval.IsOfType(err, srceval.UnboundName) {
		t.Errorf("expected pair to be unbound in chapter 1, got %v", err)
	}
	// a program may shadow library functions
	compile(t, "function map(x) { return x; } map(1);", Chapter(2))
}

func TestConcurrency(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.compiler")
	defer teardown()
	//
	p := compile(t, `
        const ch = make_channel();
        concurrent_execute(() => send(ch, 1), () => send(ch, 2));
        receive(ch) + receive(ch);`, Concurrent(true), Library(false))
	main := p.EntryFunction()
	if count(main, svml.Go) != 2 || count(main, svml.Receive) != 2 {
		t.Errorf("expected 2 Go and 2 Receive instructions")
	}
	if p.Spawn < 0 || p.Functions[p.Spawn].Code[2].Op != svml.GoDestroy {
		t.Errorf("expected a spawn function ending in GoDestroy")
	}
	sends := 0
	for _, fn := range p.Functions {
		sends += count(fn, svml.Send)
	}
	if sends != 2 {
		t.Errorf("expected 2 Send instructions, got %d", sends)
	}
	// shadowed names are ordinary calls
	p = compile(t, "function send(a, b) { return a; } send(1, 2);", Concurrent(true), Library(false))
	if count(p.EntryFunction(), svml.Send) != 0 {
		t.Errorf("expected shadowed send to be called as a function")
	}
	if _, err := CompileSource("receive();", Concurrent(true)); !srceval.IsOfType(err, srceval.InvalidNumberOfArguments) {
		t.Errorf("expected arity error, got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.compiler")
	defer teardown()
	//
	p := compile(t, "const x = 1; x + 1;", Library(false))
	q := compile(t, "const x = 1;\n\n    x + 1;", Library(false))
	if p.Fingerprint() != q.Fingerprint() {
		t.Errorf("expected layout not to change the fingerprint")
	}
	r := compile(t, "const x = 1; x + 2;", Library(false))
	if p.Fingerprint() == r.Fingerprint() {
		t.Errorf("expected different programs to have different fingerprints")
	}
}
