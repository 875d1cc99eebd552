package runtime

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
)

var closureSerial atomic.Int64

// Closure is a function value: a function literal together with the
// environment active at its definition. Closures are immutable.
type Closure struct {
	Node         *ast.Function
	Env          *Environment
	ID           int64
	FunctionName string
	PreDefined   bool // part of the prelude
}

// NewClosure creates a closure for a function literal, capturing env. The
// name is used for display if the literal itself is anonymous, e.g. for
// arrow functions bound by a declaration.
func NewClosure(fn *ast.Function, env *Environment, name string) *Closure {
	if fn.Name != "" {
		name = fn.Name
	}
	return &Closure{
		Node:         fn,
		Env:          env,
		ID:           closureSerial.Add(1),
		FunctionName: name,
	}
}

// Arity returns the number of parameters.
func (c *Closure) Arity() int {
	return len(c.Node.Params)
}

// Bind creates the environment for a call of the closure: a fresh frame
// enclosed by the captured environment, binding the parameters
// positionally. The number of arguments has to match the arity exactly.
func (c *Closure) Bind(args []Value) (*Environment, error) {
	if len(args) != len(c.Node.Params) {
		return nil, srceval.InvalidNumberOfArguments.New("%s: expected %d arguments, but got %d",
			c.displayName(), len(c.Node.Params), len(args))
	}
	env := NewEnvironment(c.displayName(), c.Env)
	for i, p := range c.Node.Params {
		env.head[p.Name] = &Binding{name: p.Name, Value: args[i]}
	}
	return env, nil
}

func (c *Closure) displayName() string {
	if c.FunctionName == "" {
		return "anonymous"
	}
	return c.FunctionName
}

func (c *Closure) String() string {
	params := make([]string, len(c.Node.Params))
	for i, p := range c.Node.Params {
		params[i] = p.Name
	}
	if c.Node.Arrow {
		return fmt.Sprintf("(%s) => {…}", strings.Join(params, ", "))
	}
	return fmt.Sprintf("function %s(%s) {…}", c.FunctionName, strings.Join(params, ", "))
}

// Variadic is the arity of primitives accepting any number of arguments.
const Variadic = -1

// Primitive is a function implemented by the host.
type Primitive struct {
	Name      string
	Arity     int  // number of arguments, or Variadic
	NonStrict bool // arguments are passed without forcing them (lazy evaluation)
	Fn        func(args []Value) (Value, error)
}

// CheckArity checks the number of arguments for a call.
func (p *Primitive) CheckArity(n int) error {
	if p.Arity != Variadic && p.Arity != n {
		return srceval.InvalidNumberOfArguments.New("%s: expected %d arguments, but got %d",
			p.Name, p.Arity, n)
	}
	return nil
}

func (p *Primitive) String() string {
	return fmt.Sprintf("function %s(...) { [implementation hidden] }", p.Name)
}
