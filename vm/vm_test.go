package vm

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/compiler"
	"github.com/npillmayer/srceval/interp"
	"github.com/npillmayer/srceval/runtime"
)

func run(t *testing.T, src string, copts []compiler.Option, opts ...Option) (runtime.Value, *Machine, error) {
	t.Helper()
	prog, err := compiler.CompileSource(src, copts...)
	if err != nil {
		t.Fatalf("cannot compile: %v", err)
	}
	m := New(append([]Option{Output(io.Discard)}, opts...)...)
	v, err := m.Run(context.Background(), prog)
	return v, m, err
}

func concurrent() []compiler.Option {
	return []compiler.Option{compiler.Concurrent(true)}
}

func TestExpressions(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	cases := []struct {
		src    string
		result runtime.Value
	}{
		{"1 + 2 * 3;", 7.0},
		{"-(2 - 5);", 3.0},
		{"7 % 3;", 1.0},
		{"'ab' + 'cd';", "abcd"},
		{"'a' < 'b';", true},
		{"!(1 > 2);", true},
		{"1 === 1;", true},
		{"'x' === 'x';", true},
		{"const a = [1]; a === a;", true},
		{"[1] === [1];", false},
		{"true ? 1 : 2;", 1.0},
		{"false || 3 > 2;", true},
		{"true && false;", false},
		{"let x = 1; x = x + 1; x;", 2.0},
		{"1; 2;", 2.0},
		{"null;", runtime.Null},
		{"undefined;", runtime.Undefined},
		{"math_abs(-4);", 4.0},
		{"is_number(1) && !is_string(1);", true},
		{"stringify([1, 'a']);", `[1, "a"]`},
	}
	for _, c := range cases {
		v, _, err := run(t, c.src, nil)
		if err != nil {
			t.Errorf("%s: %v", c.src, err)
			continue
		}
		if !runtime.Equal(v, c.result) {
			t.Errorf("%s: expected %s, got %s", c.src, runtime.Stringify(c.result), runtime.Stringify(v))
		}
	}
}

func TestTailCalls(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	v, m, err := run(t, `
        function f(n, acc) { return n === 0 ? acc : f(n - 1, acc + n); }
        f(100000, 0);`, nil, MaxStack(10))
	if err != nil {
		t.Fatal(err)
	}
	if v != 5000050000.0 {
		t.Errorf("expected 5000050000, got %v", v)
	}
	t.Logf("%d instructions, heap %+v", m.Steps(), m.Stats())
	_, _, err = run(t, `
        function is_even(n) { return n === 0 || is_odd(n - 1); }
        function is_odd(n) { return n !== 0 && is_even(n - 1); }
        is_even(10001);`, nil, MaxStack(10))
	if err != nil {
		t.Errorf("expected tail calls through logical operators to be bounded, got %v", err)
	}
}

func TestNonTailRecursion(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	v, _, err := run(t, `
        function fact(n) { return n === 0 ? 1 : n * fact(n - 1); }
        fact(10);`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 3628800.0 {
		t.Errorf("expected 3628800, got %v", v)
	}
	_, _, err = run(t, `
        function down(n) { return n === 0 ? 0 : 1 + down(n - 1); }
        down(1000);`, nil, MaxStack(100))
	if !srceval.IsOfType(err, srceval.ExceptionError) {
		t.Errorf("expected stack overflow to be reported, got %v", err)
	}
}

func TestLists(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	cases := []struct {
		src    string
		result runtime.Value
	}{
		{"head(tail(list(1, 2, 3)));", 2.0},
		{"length(list(1, 2, 3));", 3.0},
		{"equal(list(1, 2), list(1, 2));", true},
		{"accumulate((x, y) => x + y, 0, map(x => x * x, list(1, 2, 3)));", 14.0},
		{"const p = pair(1, 2); set_head(p, 5); head(p) + tail(p);", 7.0},
		{"is_pair(pair(1, 2)) && is_null(tail(list(1)));", true},
		{"stringify(list(1, 2));", "[1, [2, null]]"},
	}
	for _, c := range cases {
		v, _, err := run(t, c.src, nil)
		if err != nil {
			t.Errorf("%s: %v", c.src, err)
			continue
		}
		if !runtime.Equal(v, c.result) {
			t.Errorf("%s: expected %s, got %s", c.src, runtime.Stringify(c.result), runtime.Stringify(v))
		}
	}
}

func TestArrays(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	v, _, err := run(t, `
        const a = [1, 2];
        a[4] = 5;
        array_length(a) * 100 + a[1] * 10 + (a[3] === undefined ? 1 : 0);`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 521.0 {
		t.Errorf("expected 521, got %v", v)
	}
	v, _, err = run(t, `
        const a = [];
        for (let i = 0; i < 100; i = i + 1) { a[i] = i * i; }
        a[99] + array_length(a);`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 9901.0 {
		t.Errorf("expected array to grow to 100 elements, got %v", v)
	}
}

func TestLoopClosures(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	v, _, err := run(t, `
        const fs = [];
        for (let i = 0; i < 3; i = i + 1) {
            fs[i] = () => i;
        }
        fs[0]() + fs[1]() * 10 + fs[2]() * 100;`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 210.0 {
		t.Errorf("expected every closure to capture its own iteration, got %v", v)
	}
	v, _, err = run(t, `
        let n = 0;
        while (true) {
            n = n + 1;
            if (n < 5) { continue; }
            break;
        }
        n;`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != 5.0 {
		t.Errorf("expected 5, got %v", v)
	}
}

func TestRuntimeErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	errs := []struct {
		src  string
		typ  *errorx.Type
		line int
	}{
		{"const x = 1;\nx(2);", srceval.CallingNonFunctionValue, 2},
		{"function f(a) { return a; }\nf(1, 2);", srceval.InvalidNumberOfArguments, 2},
		{"1 + 'a';", srceval.RuntimeTypeError, 1},
		{"\nif (1) { 2; }", srceval.RuntimeTypeError, 2},
		{"head(null);", srceval.RuntimeTypeError, 1},
		{"\n\nerror('boom');", srceval.UserError, 3},
		{"[1][-1];", srceval.RuntimeTypeError, 1},
		{"{\n  f();\n  const y = 1;\n  function f() { return y; }\n}", srceval.UseBeforeAssignment, 4},
	}
	for _, c := range errs {
		_, _, err := run(t, c.src, nil)
		if !srceval.IsOfType(err, c.typ) {
			t.Errorf("%q: unexpected error %v", c.src, err)
			continue
		}
		if loc, ok := srceval.LocationOf(err); !ok || loc.Line() != c.line {
			t.Errorf("%q: expected error in line %d, got %v", c.src, c.line, loc)
		}
	}
}

func TestLimits(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	_, _, err := run(t, "while (true) {}", nil, StepLimit(10000))
	if !srceval.IsOfType(err, srceval.Timeout) {
		t.Errorf("expected timeout, got %v", err)
	}
	prog, err := compiler.CompileSource("while (true) {}")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = New().Run(ctx, prog); !srceval.IsOfType(err, srceval.Stopped) {
		t.Errorf("expected cancelled run to stop, got %v", err)
	}
}

func TestDisplay(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	var out strings.Builder
	prog, err := compiler.CompileSource(`
        const xs = list(1, 2);
        display(1 + 2);
        display(xs, "xs:") === xs;`)
	if err != nil {
		t.Fatal(err)
	}
	v, err := New(Output(&out)).Run(context.Background(), prog)
	if err != nil {
		t.Fatal(err)
	}
	if v != true {
		t.Errorf("expected display to return its argument")
	}
	if out.String() != "3\nxs: [1, [2, null]]\n" {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestConcurrency(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	for _, q := range []int{1, 7, 100} {
		v, m, err := run(t, `
            const c = make_channel();
            concurrent_execute(() => send(c, 1), () => send(c, 2));
            receive(c) + receive(c);`, concurrent(), Quantum(q))
		if err != nil {
			t.Fatalf("quantum %d: %v", q, err)
		}
		if v != 3.0 {
			t.Errorf("quantum %d: expected 3, got %v", q, v)
		}
		if m.serial != 3 {
			t.Errorf("quantum %d: expected 3 goroutines, got %d", q, m.serial)
		}
	}
}

func TestMutualExclusion(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	v, _, err := run(t, `
        const done = make_channel();
        const lock = [false];
        let count = 0;
        function work() {
            for (let i = 0; i < 20; i = i + 1) {
                while (test_and_set(lock)) {}
                const c = count;
                count = c + 1;
                clear(lock);
            }
            send(done, true);
        }
        concurrent_execute(work, work, work);
        receive(done);
        receive(done);
        receive(done);
        count;`, concurrent(), Quantum(3))
	if err != nil {
		t.Fatal(err)
	}
	if v != 60.0 {
		t.Errorf("expected 60 increments, got %v", v)
	}
}

func TestDeadlock(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	_, _, err := run(t, "const c = make_channel();\nreceive(c);", concurrent())
	if !srceval.IsOfType(err, srceval.Deadlock) {
		t.Fatalf("expected deadlock, got %v", err)
	}
	if loc, ok := srceval.LocationOf(err); !ok || loc.Line() != 2 {
		t.Errorf("expected deadlock to be reported at line 2, got %v", loc)
	}
	_, _, err = run(t, "send(1, 2);", concurrent())
	if !srceval.IsOfType(err, srceval.RuntimeTypeError) {
		t.Errorf("expected sending on a number to fail, got %v", err)
	}
}

func TestGarbageCollection(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	v, m, err := run(t, `
        const keep = list(1, 2, 3);
        function build(n, xs) { return n === 0 ? xs : build(n - 1, pair(n, xs)); }
        let total = 0;
        for (let i = 0; i < 200; i = i + 1) {
            total = total + length(build(50, null));
        }
        total + head(tail(keep));`, nil, HeapWords(8192))
	if err != nil {
		t.Fatal(err)
	}
	if v != 10002.0 {
		t.Errorf("expected 10002, got %v", v)
	}
	s := m.Stats()
	if s.Collections == 0 || s.Reclaimed == 0 {
		t.Errorf("expected garbage collections, got %+v", s)
	}
	t.Logf("heap %+v", s)
	_, _, err = run(t, `
        function build(n, xs) { return n === 0 ? xs : build(n - 1, pair(n, xs)); }
        build(100000, null);`, nil, HeapWords(8192))
	if !srceval.IsOfType(err, srceval.MemExhausted) && !srceval.IsOfType(err, srceval.CannotAddChild) {
		t.Errorf("expected live data exceeding the heap to exhaust memory, got %v", err)
	}
}

func TestAgreesWithInterpreter(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.vm")
	defer teardown()
	//
	programs := []string{
		"function fib(n) { return n < 2 ? n : fib(n - 1) + fib(n - 2); } fib(15);",
		"accumulate((x, y) => x + y, 0, filter(x => x % 2 === 0, enum_list(1, 20)));",
		"let s = ''; for (let i = 0; i < 5; i = i + 1) { s = s + stringify(i); } s;",
		"const xs = reverse(list(1, 2, 3)); head(xs) * 10 + list_ref(xs, 2);",
		"function compose(f, g) { return x => f(g(x)); } compose(x => x + 1, x => x * 2)(5);",
		"{ let x = 1; { let x = 2; } x; }",
	}
	in, err := interp.New(interp.Output(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	for _, src := range programs {
		want, err := in.Evaluate(context.Background(), src)
		if err != nil {
			t.Errorf("interpreter: %s: %v", src, err)
			continue
		}
		got, _, err := run(t, src, nil)
		if err != nil {
			t.Errorf("vm: %s: %v", src, err)
			continue
		}
		if !runtime.Equal(got, want) {
			t.Errorf("%s: interpreter says %s, vm says %s", src, runtime.Stringify(want), runtime.Stringify(got))
		}
	}
}
