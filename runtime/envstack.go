package runtime

import "fmt"

// EnvStack is the runtime stack of active environments. Every block, call
// and loop iteration pushes an environment and pops it on exit. Tail calls
// replace the top-most environment instead of pushing a new one.
type EnvStack struct {
	frames   []*Environment
	maxDepth int
}

// NewEnvStack creates a stack with base as its bottom-most environment.
func NewEnvStack(base *Environment) *EnvStack {
	st := &EnvStack{}
	if base != nil {
		st.Push(base)
	}
	return st
}

// Current gets the current environment of a stack (TOS).
func (st *EnvStack) Current() *Environment {
	if len(st.frames) == 0 {
		panic("attempt to access environment from empty stack")
	}
	return st.frames[len(st.frames)-1]
}

// Globals gets the bottom-most environment.
func (st *EnvStack) Globals() *Environment {
	if len(st.frames) == 0 {
		panic("attempt to access global environment from empty stack")
	}
	return st.frames[0]
}

// Push pushes an environment as TOS.
func (st *EnvStack) Push(env *Environment) {
	st.frames = append(st.frames, env)
	if len(st.frames) > st.maxDepth {
		st.maxDepth = len(st.frames)
	}
	tracer().Debugf("push environment [%s], depth=%d", env.Name, len(st.frames))
}

// Pop pops the top-most environment. Returns the popped environment.
func (st *EnvStack) Pop() *Environment {
	if len(st.frames) == 0 {
		panic("attempt to pop environment from empty stack")
	}
	env := st.frames[len(st.frames)-1]
	st.frames[len(st.frames)-1] = nil
	st.frames = st.frames[:len(st.frames)-1]
	tracer().Debugf("popping environment [%s]", env.Name)
	return env
}

// Replace exchanges TOS for env, keeping the depth of the stack.
func (st *EnvStack) Replace(env *Environment) {
	if len(st.frames) == 0 {
		panic("attempt to replace environment of empty stack")
	}
	st.frames[len(st.frames)-1] = env
}

// Depth returns the number of environments on the stack.
func (st *EnvStack) Depth() int {
	return len(st.frames)
}

// MaxDepth returns the highest depth the stack has reached since creation
// or the last call to ResetMaxDepth.
func (st *EnvStack) MaxDepth() int {
	return st.maxDepth
}

// ResetMaxDepth restarts depth measurement at the current depth.
func (st *EnvStack) ResetMaxDepth() {
	st.maxDepth = len(st.frames)
}

// Unwind pops environments until the stack has the given depth.
func (st *EnvStack) Unwind(depth int) {
	if depth < 0 || depth > len(st.frames) {
		panic(fmt.Sprintf("cannot unwind environment stack of depth %d to %d", len(st.frames), depth))
	}
	if n := len(st.frames) - depth; n > 0 {
		tracer().Debugf("unwinding %d environments", n)
	}
	for len(st.frames) > depth {
		st.Pop()
	}
}

// FindEnvironment finds the top-most stack entry with the given name.
func (st *EnvStack) FindEnvironment(name string) *Environment {
	for i := len(st.frames) - 1; i >= 0; i-- {
		if st.frames[i].Name == name {
			return st.frames[i]
		}
	}
	return nil
}
