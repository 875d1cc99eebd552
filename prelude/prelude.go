/*
Package prelude contains the names pre-declared for Source programs:
primitives implemented in Go and a library of list functions written in
Source itself. Both are gated by the chapter of the language in use.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package prelude

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/runtime"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// tracer traces with key 'srceval.prelude'.
func tracer() tracing.Trace {
	return tracing.Select("srceval.prelude")
}

type entry struct {
	chapter int
	value   func(out io.Writer) runtime.Value
}

var entries = map[string]entry{
	// chapter 1
	"display":      {1, func(out io.Writer) runtime.Value { return display(out) }},
	"error":        {1, func(io.Writer) runtime.Value { return prim("error", runtime.Variadic, raise) }},
	"stringify":    {1, func(io.Writer) runtime.Value { return prim("stringify", 1, stringify) }},
	"is_number":    {1, func(io.Writer) runtime.Value { return predicate("is_number", isType("number")) }},
	"is_string":    {1, func(io.Writer) runtime.Value { return predicate("is_string", isType("string")) }},
	"is_boolean":   {1, func(io.Writer) runtime.Value { return predicate("is_boolean", isType("boolean")) }},
	"is_undefined": {1, func(io.Writer) runtime.Value { return predicate("is_undefined", isType("undefined")) }},
	"is_function":  {1, func(io.Writer) runtime.Value { return predicate("is_function", runtime.IsFunction) }},
	"math_abs":     {1, func(io.Writer) runtime.Value { return math1("math_abs", math.Abs) }},
	"math_floor":   {1, func(io.Writer) runtime.Value { return math1("math_floor", math.Floor) }},
	"math_sqrt":    {1, func(io.Writer) runtime.Value { return math1("math_sqrt", math.Sqrt) }},
	"math_pow":     {1, func(io.Writer) runtime.Value { return math2("math_pow", math.Pow) }},
	"math_max":     {1, func(io.Writer) runtime.Value { return mathFold("math_max", math.Inf(-1), math.Max) }},
	"math_min":     {1, func(io.Writer) runtime.Value { return mathFold("math_min", math.Inf(1), math.Min) }},
	"math_PI":      {1, func(io.Writer) runtime.Value { return math.Pi }},
	"math_E":       {1, func(io.Writer) runtime.Value { return math.E }},
	// chapter 2
	"pair":    {2, func(io.Writer) runtime.Value { return nonStrict(prim("pair", 2, pair)) }},
	"list":    {2, func(io.Writer) runtime.Value { return nonStrict(prim("list", runtime.Variadic, list)) }},
	"head":    {2, func(io.Writer) runtime.Value { return prim("head", 1, pairAccess("head", 0)) }},
	"tail":    {2, func(io.Writer) runtime.Value { return prim("tail", 1, pairAccess("tail", 1)) }},
	"is_pair": {2, func(io.Writer) runtime.Value { return predicate("is_pair", runtime.IsPair) }},
	"is_null": {2, func(io.Writer) runtime.Value { return predicate("is_null", isType("null")) }},
	// chapter 3
	"set_head":     {3, func(io.Writer) runtime.Value { return prim("set_head", 2, pairMutate("set_head", 0)) }},
	"set_tail":     {3, func(io.Writer) runtime.Value { return prim("set_tail", 2, pairMutate("set_tail", 1)) }},
	"array_length": {3, func(io.Writer) runtime.Value { return prim("array_length", 1, arrayLength) }},
	"is_array":     {3, func(io.Writer) runtime.Value { return predicate("is_array", isArray) }},
}

// Names returns the names of all primitives available in a chapter, sorted.
func Names(chapter int) []string {
	var names []string
	for _, name := range maps.Keys(entries) {
		if entries[name].chapter <= chapter {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Chapter returns the chapter a primitive has been introduced in, or 0 for
// unknown names.
func Chapter(name string) int {
	return entries[name].chapter
}

// Value creates the value a primitive name is bound to. Output of display
// goes to out (default os.Stdout).
func Value(name string, out io.Writer) (runtime.Value, bool) {
	e, ok := entries[name]
	if !ok {
		return nil, false
	}
	if out == nil {
		out = os.Stdout
	}
	return e.value(out), true
}

// ConcurrencyNames lists the names pre-declared for concurrent programs.
// These are understood by the virtual machine only.
func ConcurrencyNames() []string {
	return []string{"clear", "concurrent_execute", "make_channel", "receive", "send", "test_and_set"}
}

// Install defines the primitives of a chapter in env, as constants.
// Output of display goes to out (default os.Stdout).
func Install(env *runtime.Environment, chapter int, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	for _, name := range Names(chapter) {
		if err := env.Define(name, entries[name].value(out), true); err != nil {
			return err
		}
	}
	tracer().P("env", env.Name).Debugf("installed %d primitives for chapter %d", env.Size(), chapter)
	return nil
}

// ObjectPrototype creates the prototype for object literals. Its names are
// visible to the member access check only: Source programs may not read
// inherited properties.
func ObjectPrototype() *runtime.Object {
	proto := runtime.NewObject(nil)
	for _, name := range []string{"constructor", "hasOwnProperty", "toString", "valueOf"} {
		name := name
		proto.Set(name, prim(name, runtime.Variadic, func([]runtime.Value) (runtime.Value, error) {
			return nil, srceval.GetInheritedPropertyError.New("%s is not accessible", name)
		}))
	}
	return proto
}

// --- Helpers ---------------------------------------------------------------

func prim(name string, arity int, fn func([]runtime.Value) (runtime.Value, error)) *runtime.Primitive {
	return &runtime.Primitive{Name: name, Arity: arity, Fn: fn}
}

func nonStrict(p *runtime.Primitive) *runtime.Primitive {
	p.NonStrict = true
	return p
}

func predicate(name string, pred func(runtime.Value) bool) *runtime.Primitive {
	return prim(name, 1, func(args []runtime.Value) (runtime.Value, error) {
		return pred(args[0]), nil
	})
}

func isType(typ string) func(runtime.Value) bool {
	return func(v runtime.Value) bool {
		return runtime.TypeName(v) == typ
	}
}

func isArray(v runtime.Value) bool {
	_, ok := v.(*runtime.Array)
	return ok
}

func number(fname string, v runtime.Value) (float64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, srceval.RuntimeTypeError.New("%s expects a number as argument, but encountered %s",
			fname, runtime.TypeName(v))
	}
	return f, nil
}

func math1(name string, fn func(float64) float64) *runtime.Primitive {
	return prim(name, 1, func(args []runtime.Value) (runtime.Value, error) {
		x, err := number(name, args[0])
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	})
}

func math2(name string, fn func(float64, float64) float64) *runtime.Primitive {
	return prim(name, 2, func(args []runtime.Value) (runtime.Value, error) {
		x, err := number(name, args[0])
		if err != nil {
			return nil, err
		}
		y, err := number(name, args[1])
		if err != nil {
			return nil, err
		}
		return fn(x, y), nil
	})
}

func mathFold(name string, start float64, fn func(float64, float64) float64) *runtime.Primitive {
	return prim(name, runtime.Variadic, func(args []runtime.Value) (runtime.Value, error) {
		acc := start
		for _, a := range args {
			x, err := number(name, a)
			if err != nil {
				return nil, err
			}
			acc = fn(acc, x)
		}
		return acc, nil
	})
}

// --- Output and errors -----------------------------------------------------

// display(v) or display(v, prefix) prints a value and returns it.
func display(out io.Writer) *runtime.Primitive {
	return prim("display", runtime.Variadic, func(args []runtime.Value) (runtime.Value, error) {
		if len(args) < 1 || len(args) > 2 {
			return nil, srceval.InvalidNumberOfArguments.New("display: expected 1 or 2 arguments, but got %d", len(args))
		}
		v, err := runtime.ForceDeep(args[0])
		if err != nil {
			return nil, err
		}
		if len(args) == 2 {
			fmt.Fprintf(out, "%s %s\n", runtime.ToString(args[1]), runtime.Stringify(v))
		} else {
			fmt.Fprintln(out, runtime.Stringify(v))
		}
		return v, nil
	})
}

// error(v) or error(v, prefix) terminates the program with a user error.
func raise(args []runtime.Value) (runtime.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, srceval.InvalidNumberOfArguments.New("error: expected 1 or 2 arguments, but got %d", len(args))
	}
	v, err := runtime.ForceDeep(args[0])
	if err != nil {
		return nil, err
	}
	msg := runtime.ToString(v)
	if len(args) == 2 {
		msg = runtime.ToString(args[1]) + " " + runtime.Stringify(v)
	}
	return nil, srceval.UserError.New("Error: %s", msg)
}

func stringify(args []runtime.Value) (runtime.Value, error) {
	v, err := runtime.ForceDeep(args[0])
	if err != nil {
		return nil, err
	}
	return runtime.Stringify(v), nil
}

// --- Pairs and lists -------------------------------------------------------

func pair(args []runtime.Value) (runtime.Value, error) {
	return runtime.NewPair(args[0], args[1]), nil
}

func list(args []runtime.Value) (runtime.Value, error) {
	var l runtime.Value = runtime.Null
	for i := len(args) - 1; i >= 0; i-- {
		l = runtime.NewPair(args[i], l)
	}
	return l, nil
}

func pairAccess(name string, i int) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		p, ok := args[0].(*runtime.Array)
		if !ok || p.Len() != 2 {
			return nil, srceval.RuntimeTypeError.New("%s(xs) expects a pair as argument xs, but encountered %s",
				name, describe(args[0]))
		}
		return p.Elements[i], nil
	}
}

func pairMutate(name string, i int) func([]runtime.Value) (runtime.Value, error) {
	return func(args []runtime.Value) (runtime.Value, error) {
		p, ok := args[0].(*runtime.Array)
		if !ok || p.Len() != 2 {
			return nil, srceval.RuntimeTypeError.New("%s(xs, v) expects a pair as argument xs, but encountered %s",
				name, describe(args[0]))
		}
		p.Elements[i] = args[1]
		return runtime.Undefined, nil
	}
}

func arrayLength(args []runtime.Value) (runtime.Value, error) {
	a, ok := args[0].(*runtime.Array)
	if !ok {
		return nil, srceval.RuntimeTypeError.New("array_length expects an array as argument, but encountered %s",
			runtime.TypeName(args[0]))
	}
	return float64(a.Len()), nil
}

func describe(v runtime.Value) string {
	s := runtime.Stringify(v)
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return strings.TrimSpace(s)
}
