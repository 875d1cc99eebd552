package runtime

import (
	"github.com/npillmayer/srceval"
)

// Thunk is a deferred computation. It is a memoizing cell: either pending,
// holding a supplier, or done, holding the supplier's result. The supplier
// runs at most once successfully; afterwards the cell returns the cached
// value. Failed evaluations are not cached.
type Thunk struct {
	supplier func() (Value, error)
	value    Value
	done     bool
	running  bool
}

// NewThunk creates a pending thunk.
func NewThunk(supplier func() (Value, error)) *Thunk {
	return &Thunk{supplier: supplier}
}

// IsDone is a predicate: has the thunk been evaluated?
func (t *Thunk) IsDone() bool {
	return t.done
}

// Evaluate runs the supplier, if the thunk is still pending, and returns
// its result. The result may itself be a thunk; use Force to get to a
// proper value.
func (t *Thunk) Evaluate() (Value, error) {
	if t.done {
		return t.value, nil
	}
	if t.running {
		return nil, srceval.UseBeforeAssignment.New("delayed value depends on itself")
	}
	t.running = true
	v, err := t.supplier()
	t.running = false
	if err != nil {
		return nil, err
	}
	t.value, t.done = v, true
	t.supplier = nil // release captured environment
	return v, nil
}

// Force evaluates nested thunks until a non-thunk value is reached. Values
// which are not thunks are returned unchanged.
func Force(v Value) (Value, error) {
	for {
		t, ok := v.(*Thunk)
		if !ok {
			return v, nil
		}
		var err error
		if v, err = t.Evaluate(); err != nil {
			return nil, err
		}
	}
}

// ForceDeep forces a value and, recursively, all elements of arrays and
// properties of objects reachable from it. Forced elements replace their
// thunks in place.
func ForceDeep(v Value) (Value, error) {
	return forceDeep(v, make(map[interface{}]bool))
}

func forceDeep(v Value, visited map[interface{}]bool) (Value, error) {
	v, err := Force(v)
	if err != nil {
		return nil, err
	}
	switch c := v.(type) {
	case *Array:
		if visited[c] {
			return c, nil
		}
		visited[c] = true
		for i, e := range c.Elements {
			if c.Elements[i], err = forceDeep(e, visited); err != nil {
				return nil, err
			}
		}
	case *Object:
		if visited[c] {
			return c, nil
		}
		visited[c] = true
		for _, k := range c.keys {
			if c.props[k], err = forceDeep(c.props[k], visited); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}
