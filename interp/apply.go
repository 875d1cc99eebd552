package interp

import (
	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/runtime"
)

// apply calls a function value with arguments.
//
// Calling a closure pushes a fresh environment binding the parameters.
// If the body ends with a tail call, the environment of the callee
// replaces the top-most environment and apply loops, so tail calls do not
// grow the environment stack nor the host stack. On return or error, the
// environment stack is unwound to the depth it had before the call.
//
// Only the first closure entered counts against the MaxStack limit.
func (ex *Execution) apply(callee runtime.Value, args []runtime.Value, call *ast.Call) (runtime.Value, error) {
	stack := ex.in.stack
	depth := stack.Depth()
	defer stack.Unwind(depth)
	pushed := false
	for {
		switch fn := callee.(type) {
		case *runtime.Primitive:
			v, err := ex.applyPrimitive(fn, args)
			return v, srceval.WithLocation(err, call.Loc())
		case *runtime.Closure:
			env, err := fn.Bind(args)
			if err != nil {
				return nil, srceval.WithLocation(err, call.Loc())
			}
			env.CallExpression = call
			if pushed {
				stack.Replace(env)
			} else {
				if limit := ex.in.maxStack; limit > 0 && ex.calls >= limit {
					return nil, srceval.WithLocation(srceval.ExceptionError.New(
						"Maximum call stack size of %d exceeded", limit), call.Loc())
				}
				ex.calls++
				defer func() { ex.calls-- }()
				stack.Push(env)
				pushed = true
			}
			body := fn.Node.Body.Body
			if _, err := ex.hoist(body, env); err != nil {
				return nil, err
			}
			r, err := ex.evalSequence(body, env)
			if err != nil {
				return nil, err
			}
			switch s := r.(type) {
			case TailCallValue:
				tracer().Debugf("tail call of %s", runtime.Stringify(s.Callee))
				callee, args, call = s.Callee, s.Args, s.Node
				continue
			case ReturnValue:
				return s.Value, nil
			case BreakValue, ContinueValue:
				return nil, srceval.ExceptionError.New("break or continue outside of a loop")
			}
			return runtime.Undefined, nil
		default:
			return nil, srceval.WithLocation(srceval.CallingNonFunctionValue.New(
				"Calling non-function value %s.", runtime.Stringify(callee)), call.Loc())
		}
	}
}

// applyPrimitive calls a function implemented by the host. Strict
// primitives get their arguments forced. Host errors and panics are
// converted to ExceptionError.
func (ex *Execution) applyPrimitive(p *runtime.Primitive, args []runtime.Value) (v runtime.Value, err error) {
	if err = p.CheckArity(len(args)); err != nil {
		return nil, err
	}
	if !p.NonStrict {
		forced := make([]runtime.Value, len(args))
		for i, a := range args {
			if forced[i], err = runtime.Force(a); err != nil {
				return nil, err
			}
		}
		args = forced
	}
	defer func() {
		if r := recover(); r != nil {
			tracer().Errorf("primitive %s panicked: %v", p.Name, r)
			v, err = nil, srceval.ExceptionError.New("%s: %v", p.Name, r)
		}
	}()
	if v, err = p.Fn(args); err != nil && !srceval.IsSourceError(err) {
		err = srceval.ExceptionError.Wrap(err, "%s", err.Error())
	}
	return v, err
}
