package runtime

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Value is a Source value. Primitive values are represented by Go values
// (float64, string, bool); Null and Undefined are singletons; compound
// values are pointers (*Array, *Object, *Closure, *Primitive, *Thunk).
type Value interface{}

type nullValue struct{}
type undefinedValue struct{}

func (nullValue) String() string      { return "null" }
func (undefinedValue) String() string { return "undefined" }

// The singletons for null and undefined.
var (
	Null      Value = nullValue{}
	Undefined Value = undefinedValue{}
)

// --- Arrays and objects ----------------------------------------------------

// Array is a mutable, growable sequence of values. Pairs are arrays of length 2,
// lists are chains of pairs ending in Null.
type Array struct {
	Elements []Value
}

// NewArray creates an array from a list of values.
func NewArray(elems ...Value) *Array {
	return &Array{Elements: elems}
}

// NewPair creates a pair.
func NewPair(head, tail Value) *Array {
	return &Array{Elements: []Value{head, tail}}
}

// Len returns the length of an array.
func (a *Array) Len() int {
	return len(a.Elements)
}

// Get returns element i, or Undefined if i is out of range.
func (a *Array) Get(i int) Value {
	if i < 0 || i >= len(a.Elements) {
		return Undefined
	}
	return a.Elements[i]
}

// Set sets element i, growing the array with Undefined if needed.
func (a *Array) Set(i int, v Value) {
	for len(a.Elements) <= i {
		a.Elements = append(a.Elements, Undefined)
	}
	a.Elements[i] = v
}

// IsPair is a predicate: is v an array of length 2?
func IsPair(v Value) bool {
	a, ok := v.(*Array)
	return ok && len(a.Elements) == 2
}

// Object is a record of named properties. Objects may have a prototype,
// from which they inherit names; reading inherited names is an error in
// Source, see Get.
type Object struct {
	props map[string]Value
	keys  []string // insertion order
	Proto *Object
}

// NewObject creates an empty object with the given prototype (may be nil).
func NewObject(proto *Object) *Object {
	return &Object{props: make(map[string]Value), Proto: proto}
}

// Get returns an own property. The second result tells if the property
// exists on the object itself, the third if it exists on the prototype chain.
func (o *Object) Get(key string) (Value, bool, bool) {
	if v, ok := o.props[key]; ok {
		return v, true, false
	}
	for p := o.Proto; p != nil; p = p.Proto {
		if _, ok := p.props[key]; ok {
			return Undefined, false, true
		}
	}
	return Undefined, false, false
}

// Set sets an own property.
func (o *Object) Set(key string, v Value) {
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

// Keys returns the own property names in insertion order.
func (o *Object) Keys() []string {
	return slices.Clone(o.keys)
}

// --- Type predicates -------------------------------------------------------

// TypeName returns the name of a value's type, as used in error messages.
func TypeName(v Value) string {
	switch v := v.(type) {
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "boolean"
	case nullValue:
		return "null"
	case undefinedValue:
		return "undefined"
	case *Array:
		if len(v.Elements) == 2 {
			return "pair"
		}
		return "array"
	case *Object:
		return "object"
	case *Closure, *Primitive:
		return "function"
	case *Thunk:
		return "thunk"
	}
	return "unknown"
}

// IsFunction is a predicate: can v be applied?
func IsFunction(v Value) bool {
	switch v.(type) {
	case *Closure, *Primitive:
		return true
	}
	return false
}

// Equal implements '==='. Compound values are compared by identity.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return a == b
}

// --- String conversion -----------------------------------------------------

// FormatNumber converts a number to a string the way JavaScript does.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64) // e.g. 1.5e-07
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + string(sign) + exp
}

// ToString converts a value for string output: strings are not quoted.
func ToString(v Value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return Stringify(v)
}

// Stringify renders a value the way the language displays it.
// Strings are quoted, nested arrays are shown in brackets.
func Stringify(v Value) string {
	var b strings.Builder
	stringify(&b, v, make(map[interface{}]bool))
	return b.String()
}

func stringify(b *strings.Builder, v Value, visited map[interface{}]bool) {
	switch v := v.(type) {
	case float64:
		b.WriteString(FormatNumber(v))
	case string:
		b.WriteString(strconv.Quote(v))
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case nullValue:
		b.WriteString("null")
	case undefinedValue:
		b.WriteString("undefined")
	case unassignedValue:
		b.WriteString("<unassigned>")
	case *Array:
		if visited[v] {
			b.WriteString("...<circular>")
			return
		}
		visited[v] = true
		b.WriteByte('[')
		for i, e := range v.Elements {
			if i > 0 {
				b.WriteString(", ")
			}
			stringify(b, e, visited)
		}
		b.WriteByte(']')
		delete(visited, v)
	case *Object:
		if visited[v] {
			b.WriteString("...<circular>")
			return
		}
		visited[v] = true
		b.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			stringify(b, v.props[k], visited)
		}
		b.WriteByte('}')
		delete(visited, v)
	case *Closure:
		b.WriteString(v.String())
	case *Primitive:
		b.WriteString(v.String())
	case *Thunk:
		if v.done {
			stringify(b, v.value, visited)
		} else {
			b.WriteString("<thunk>")
		}
	case nil:
		b.WriteString("<nil>")
	default:
		b.WriteString("<?>")
	}
}
