package runtime

import (
	"fmt"
	"strings"

	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// This module implements environments: frames of name bindings, chained
// along lexical scopes.

// --- Bindings --------------------------------------------------------------

// unassignedValue is the sentinel held by hoisted names before their
// declaration has been evaluated.
type unassignedValue struct{}

func (unassignedValue) String() string { return "<unassigned>" }

// Unassigned is the hoisting sentinel.
var Unassigned Value = unassignedValue{}

// Binding is the entry for a name in an environment's head.
type Binding struct {
	name  string
	Value Value
	Const bool
}

// Name gets the binding's name.
func (b *Binding) Name() string {
	return b.name
}

// IsAssigned is a predicate: has the binding left the hoisting state?
func (b *Binding) IsAssigned() bool {
	return b.Value != Unassigned
}

func (b *Binding) String() string {
	kind := "let"
	if b.Const {
		kind = "const"
	}
	return fmt.Sprintf("<%s %s = %s>", kind, b.name, Stringify(b.Value))
}

// --- Environments ----------------------------------------------------------

// Environment is a frame of bindings, linked to its lexically enclosing
// environment (Tail). The root environment has a nil tail.
type Environment struct {
	Name           string
	head           map[string]*Binding
	Tail           *Environment
	ThisContext    Value
	CallExpression ast.Node // call which created this frame, if any
}

// NewEnvironment creates an empty environment enclosed by tail.
func NewEnvironment(name string, tail *Environment) *Environment {
	return &Environment{
		Name: name,
		head: make(map[string]*Binding),
		Tail: tail,
	}
}

func (env *Environment) String() string {
	return fmt.Sprintf("<env %s>", env.Name)
}

// IsRoot is a predicate: Is this a root frame?
func (env *Environment) IsRoot() bool {
	return env.Tail == nil
}

// Size counts the bindings of this frame.
func (env *Environment) Size() int {
	return len(env.head)
}

// Resolve finds the binding for a name, walking the tail links. Returns the
// binding and the environment it was found in, or nil and nil.
func (env *Environment) Resolve(name string) (*Binding, *Environment) {
	for e := env; e != nil; e = e.Tail {
		if b, ok := e.head[name]; ok {
			return b, e
		}
	}
	return nil, nil
}

// Lookup returns the value bound to name. It fails with UnboundName if no
// frame defines the name, and with UseBeforeAssignment if the name has
// been hoisted but not yet assigned.
func (env *Environment) Lookup(name string) (Value, error) {
	b, _ := env.Resolve(name)
	if b == nil {
		return nil, srceval.UnboundName.New("name %s not declared", name)
	}
	if !b.IsAssigned() {
		return nil, srceval.UseBeforeAssignment.New("name %s declared later in current scope", name)
	}
	return b.Value, nil
}

// DeclaredHere is a predicate: does this frame (not an enclosing one) bind name?
func (env *Environment) DeclaredHere(name string) bool {
	_, ok := env.head[name]
	return ok
}

// Declare inserts name into this frame, holding the hoisting sentinel.
// Fails with Redeclaration if this frame already binds the name; shadowing
// names of enclosing frames is legal.
func (env *Environment) Declare(name string, isConst bool) error {
	if _, ok := env.head[name]; ok {
		return srceval.Redeclaration.New("name %s declared twice in the same scope", name)
	}
	env.head[name] = &Binding{name: name, Value: Unassigned, Const: isConst}
	tracer().P("env", env.Name).Debugf("declare %s", name)
	return nil
}

// Define resolves the hoisting sentinel of name in this frame to a value.
// Names not hoisted beforehand are declared on the fly. Defining a name
// twice fails with Redeclaration.
func (env *Environment) Define(name string, value Value, isConst bool) error {
	b, ok := env.head[name]
	if !ok {
		env.head[name] = &Binding{name: name, Value: value, Const: isConst}
		return nil
	}
	if b.IsAssigned() {
		return srceval.Redeclaration.New("name %s declared twice in the same scope", name)
	}
	b.Value = value
	b.Const = isConst
	return nil
}

// Assign walks to the frame owning name and replaces its value. Assigning
// to constants fails with AssignToConstant, assigning to unknown names with
// UnboundName.
func (env *Environment) Assign(name string, value Value) error {
	b, owner := env.Resolve(name)
	if b == nil {
		return srceval.UnboundName.New("name %s not declared", name)
	}
	if !b.IsAssigned() {
		return srceval.UseBeforeAssignment.New("name %s declared later in current scope", name)
	}
	if b.Const {
		return srceval.AssignToConstant.New("cannot assign new value to constant %s", name)
	}
	b.Value = value
	tracer().P("env", owner.Name).Debugf("assign %s", name)
	return nil
}

// Undeclare removes a binding from this frame.
func (env *Environment) Undeclare(name string) {
	delete(env.head, name)
}

// Names returns the names bound in this frame, sorted.
func (env *Environment) Names() []string {
	names := maps.Keys(env.head)
	slices.Sort(names)
	return names
}

// Binding returns the binding for name in this frame, or nil.
func (env *Environment) Binding(name string) *Binding {
	return env.head[name]
}

// Each iterates over each binding of this frame in name order.
func (env *Environment) Each(mapper func(string, *Binding)) {
	for _, name := range env.Names() {
		mapper(name, env.head[name])
	}
}

// Chain returns this environment and all enclosing ones, innermost first.
func (env *Environment) Chain() []*Environment {
	var chain []*Environment
	for e := env; e != nil; e = e.Tail {
		chain = append(chain, e)
	}
	return chain
}

// Dump returns a multi-line description of the environment chain, for
// debugging. Frames with more than maxNames bindings are abbreviated.
func (env *Environment) Dump(maxNames int) string {
	var b strings.Builder
	for i, e := range env.Chain() {
		fmt.Fprintf(&b, "%s#%d %s (%d names)\n", strings.Repeat(" ", i), i, e.Name, e.Size())
		names := e.Names()
		if maxNames > 0 && len(names) > maxNames {
			fmt.Fprintf(&b, "%s   …\n", strings.Repeat(" ", i))
			continue
		}
		for _, name := range names {
			fmt.Fprintf(&b, "%s   %s\n", strings.Repeat(" ", i), e.head[name])
		}
	}
	return b.String()
}
