package interp

import (
	"math"

	"github.com/npillmayer/srceval"
	"github.com/npillmayer/srceval/ast"
	"github.com/npillmayer/srceval/runtime"
)

// --- Control flow signals --------------------------------------------------

// ReturnValue signals a return from a function body.
type ReturnValue struct {
	Value runtime.Value
}

// TailCallValue signals a call in tail position. It is absorbed by the
// apply loop, which performs the call in place of the returning function.
type TailCallValue struct {
	Callee runtime.Value
	Args   []runtime.Value
	Node   *ast.Call
}

// BreakValue signals a 'break' statement.
type BreakValue struct{}

// ContinueValue signals a 'continue' statement.
type ContinueValue struct{}

func isSignal(v runtime.Value) bool {
	switch v.(type) {
	case ReturnValue, TailCallValue, BreakValue, ContinueValue:
		return true
	}
	return false
}

// --- Evaluation ------------------------------------------------------------

// eval evaluates a node in an environment. The result is either a value or
// a control flow signal. Errors are located at the innermost node they
// occur in.
func (ex *Execution) eval(n ast.Node, env *runtime.Environment) (runtime.Value, error) {
	defer ex.ascend()
	if err := ex.descend(); err != nil {
		return nil, srceval.WithLocation(err, n.Loc())
	}
	if err := ex.visit(n, env); err != nil {
		return nil, err
	}
	v, err := ex.dispatch(n, env)
	if err != nil {
		return nil, srceval.WithLocation(err, n.Loc())
	}
	return v, nil
}

func (ex *Execution) dispatch(n ast.Node, env *runtime.Environment) (runtime.Value, error) {
	switch e := n.(type) {
	case *ast.Literal:
		return literal(e), nil
	case *ast.Identifier:
		return env.Lookup(e.Name)
	case *ast.Block:
		return ex.evalBlock(e, env)
	case *ast.ExpressionStatement:
		return ex.eval(e.Expression, env)
	case *ast.VariableDeclaration:
		v, err := ex.delay(e.Init, env, e.Name.Name)
		if err != nil {
			return nil, err
		}
		return runtime.Undefined, env.Define(e.Name.Name, v, e.Kind == ast.Const)
	case *ast.FunctionDeclaration:
		return runtime.Undefined, nil // bound when the enclosing block has been entered
	case *ast.Return:
		if e.Argument == nil {
			return ReturnValue{Value: runtime.Undefined}, nil
		}
		return ex.evalTail(e.Argument, env)
	case *ast.If:
		t, err := ex.evalTest(e.Test, env)
		if err != nil {
			return nil, err
		}
		if t {
			return ex.evalBlock(e.Consequent, env)
		} else if e.Alternate != nil {
			return ex.eval(e.Alternate, env)
		}
		return runtime.Undefined, nil
	case *ast.While:
		return ex.evalWhile(e, env)
	case *ast.For:
		return ex.evalFor(e, env)
	case *ast.Break:
		return BreakValue{}, nil
	case *ast.Continue:
		return ContinueValue{}, nil
	case *ast.Debugger:
		return runtime.Undefined, nil
	case *ast.Binary:
		l, err := ex.evalForced(e.Left, env)
		if err != nil {
			return nil, err
		}
		r, err := ex.evalForced(e.Right, env)
		if err != nil {
			return nil, err
		}
		return runtime.BinaryOp(e.Operator, l, r)
	case *ast.Unary:
		v, err := ex.evalForced(e.Argument, env)
		if err != nil {
			return nil, err
		}
		return runtime.UnaryOp(e.Operator, v)
	case *ast.Logical:
		t, err := ex.evalTest(e.Left, env)
		if err != nil {
			return nil, err
		}
		if e.Operator == "&&" && !t {
			return false, nil
		} else if e.Operator == "||" && t {
			return true, nil
		}
		return ex.eval(e.Right, env)
	case *ast.Conditional:
		t, err := ex.evalTest(e.Test, env)
		if err != nil {
			return nil, err
		}
		if t {
			return ex.eval(e.Consequent, env)
		}
		return ex.eval(e.Alternate, env)
	case *ast.Call:
		callee, args, err := ex.evalCall(e, env)
		if err != nil {
			return nil, err
		}
		return ex.apply(callee, args, e)
	case *ast.Function:
		return runtime.NewClosure(e, env, ""), nil
	case *ast.Assignment:
		return ex.evalAssignment(e, env)
	case *ast.Member:
		obj, key, err := ex.evalMember(e, env)
		if err != nil {
			return nil, err
		}
		return memberGet(obj, key)
	case *ast.Array:
		arr := runtime.NewArray()
		for _, el := range e.Elements {
			v, err := ex.delay(el, env, "")
			if err != nil {
				return nil, err
			}
			arr.Elements = append(arr.Elements, v)
		}
		return arr, nil
	case *ast.Object:
		obj := runtime.NewObject(ex.in.proto)
		for _, p := range e.Properties {
			v, err := ex.delay(p.Value, env, p.Key)
			if err != nil {
				return nil, err
			}
			obj.Set(p.Key, v)
		}
		return obj, nil
	}
	return nil, srceval.ExceptionError.New("cannot evaluate %s", ast.Kind(n))
}

func literal(l *ast.Literal) runtime.Value {
	switch l.Kind {
	case ast.NumberLiteral:
		return l.Number
	case ast.StringLiteral:
		return l.String
	case ast.BooleanLiteral:
		return l.Bool
	case ast.NullLiteral:
		return runtime.Null
	}
	return runtime.Undefined
}

// evalForced evaluates a node and forces the result.
func (ex *Execution) evalForced(n ast.Node, env *runtime.Environment) (runtime.Value, error) {
	v, err := ex.eval(n, env)
	if err != nil {
		return nil, err
	}
	v, err = runtime.Force(v)
	return v, srceval.WithLocation(err, n.Loc())
}

// evalTest evaluates the test of a conditional, which has to be a boolean.
func (ex *Execution) evalTest(n ast.Node, env *runtime.Environment) (bool, error) {
	v, err := ex.evalForced(n, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, srceval.WithLocation(srceval.RuntimeTypeError.New(
			"Expected boolean as condition, got %s.", runtime.TypeName(v)), n.Loc())
	}
	return b, nil
}

// delay evaluates a node eagerly or, in lazy mode, wraps it into a thunk.
// Literals and function expressions are never delayed. A name is given to
// anonymous function expressions, e.g. to arrow functions bound by a
// declaration.
func (ex *Execution) delay(n ast.Node, env *runtime.Environment, name string) (runtime.Value, error) {
	if fn, ok := n.(*ast.Function); ok {
		if err := ex.visit(fn, env); err != nil {
			return nil, err
		}
		return runtime.NewClosure(fn, env, name), nil
	}
	if _, ok := n.(*ast.Literal); ok || !ex.in.lazy {
		return ex.eval(n, env)
	}
	in := ex.in
	return runtime.NewThunk(func() (runtime.Value, error) {
		cur := in.current
		defer cur.ascend()
		if err := cur.descend(); err != nil {
			return nil, srceval.WithLocation(err, n.Loc())
		}
		return cur.eval(n, env)
	}), nil
}

// descend enters one more level of nested evaluation. Every call has to be
// matched by a call to ascend, even if descend fails.
func (ex *Execution) descend() error {
	ex.depth++
	if ex.depth > ex.in.maxDepth {
		return srceval.ExceptionError.New("Maximum call stack size exceeded: evaluation nested deeper than %d", ex.in.maxDepth)
	}
	return nil
}

func (ex *Execution) ascend() {
	ex.depth--
}

// --- Blocks ----------------------------------------------------------------

// hoist declares all names declared directly in a sequence of statements
// and binds function declarations to their closures. It returns the names
// declared.
func (ex *Execution) hoist(body []ast.Node, env *runtime.Environment) ([]string, error) {
	decls := ast.Declarations(body)
	names := make([]string, 0, len(decls))
	for _, d := range decls {
		if err := env.Declare(d.Name, d.Const); err != nil {
			return names, srceval.WithLocation(err, d.Node.Loc())
		}
		names = append(names, d.Name)
	}
	for _, d := range decls {
		if fd, ok := d.Node.(*ast.FunctionDeclaration); ok {
			c := runtime.NewClosure(fd.Function, env, d.Name)
			if err := env.Define(d.Name, c, true); err != nil {
				return names, srceval.WithLocation(err, d.Node.Loc())
			}
		}
	}
	return names, nil
}

// evalSequence evaluates statements in order. It returns the first signal
// encountered or the completion value of the sequence: the value of the
// last statement which is not a declaration.
func (ex *Execution) evalSequence(body []ast.Node, env *runtime.Environment) (runtime.Value, error) {
	var completion runtime.Value = runtime.Undefined
	for _, stmt := range body {
		v, err := ex.eval(stmt, env)
		if err != nil {
			return nil, err
		}
		if isSignal(v) {
			return v, nil
		}
		switch stmt.(type) {
		case *ast.VariableDeclaration, *ast.FunctionDeclaration:
		default:
			completion = v
		}
	}
	return completion, nil
}

// evalBlock evaluates a block in a fresh environment enclosed by env.
func (ex *Execution) evalBlock(b *ast.Block, env *runtime.Environment) (runtime.Value, error) {
	benv := runtime.NewEnvironment("block", env)
	if _, err := ex.hoist(b.Body, benv); err != nil {
		return nil, err
	}
	stack := ex.in.stack
	depth := stack.Depth()
	stack.Push(benv)
	defer stack.Unwind(depth)
	return ex.evalSequence(b.Body, benv)
}

// evalProgram evaluates the top-level statements of a program in the
// program environment.
func (ex *Execution) evalProgram(prog *ast.Program) (runtime.Value, error) {
	env := ex.in.program
	names, err := ex.hoist(prog.Body, env)
	ex.declared = append(ex.declared, names...)
	if err != nil {
		return nil, err
	}
	v, err := ex.evalSequence(prog.Body, env)
	if err != nil {
		return nil, err
	}
	if isSignal(v) {
		return nil, srceval.ExceptionError.New("control flow statement outside of function or loop")
	}
	return v, nil
}

// --- Loops -----------------------------------------------------------------

// loopBody evaluates the body of a loop once. It reports whether the loop
// has to terminate and, if a function return is pending, the signal.
func (ex *Execution) loopBody(body *ast.Block, env *runtime.Environment) (bool, runtime.Value, error) {
	v, err := ex.evalBlock(body, env)
	if err != nil {
		return true, nil, err
	}
	switch v.(type) {
	case BreakValue:
		return true, nil, nil
	case ReturnValue, TailCallValue:
		return true, v, nil
	}
	return false, nil, nil
}

func (ex *Execution) evalWhile(w *ast.While, env *runtime.Environment) (runtime.Value, error) {
	for {
		t, err := ex.evalTest(w.Test, env)
		if err != nil {
			return nil, err
		}
		if !t {
			break
		}
		done, signal, err := ex.loopBody(w.Body, env)
		if err != nil || signal != nil {
			return signal, err
		}
		if done {
			break
		}
	}
	return runtime.Undefined, nil
}

// evalFor evaluates a for-loop. The loop variable lives in an environment
// of its own. Each iteration evaluates the body in a fresh environment
// holding a constant copy of the loop variable, so closures created in the
// body capture the value of their iteration.
func (ex *Execution) evalFor(f *ast.For, env *runtime.Environment) (runtime.Value, error) {
	loopEnv := runtime.NewEnvironment("for", env)
	stack := ex.in.stack
	depth := stack.Depth()
	stack.Push(loopEnv)
	defer stack.Unwind(depth)
	var loopVar string
	if decl, ok := f.Init.(*ast.VariableDeclaration); ok {
		loopVar = decl.Name.Name
		if err := loopEnv.Declare(loopVar, decl.Kind == ast.Const); err != nil {
			return nil, srceval.WithLocation(err, decl.Loc())
		}
		if _, err := ex.eval(decl, loopEnv); err != nil {
			return nil, err
		}
	} else if f.Init != nil {
		if _, err := ex.eval(f.Init, loopEnv); err != nil {
			return nil, err
		}
	}
	for {
		if f.Test != nil {
			t, err := ex.evalTest(f.Test, loopEnv)
			if err != nil {
				return nil, err
			}
			if !t {
				break
			}
		}
		iterEnv := loopEnv
		if loopVar != "" {
			iterEnv = runtime.NewEnvironment("for-iteration", loopEnv)
			iterEnv.Define(loopVar, loopEnv.Binding(loopVar).Value, true)
		}
		done, signal, err := ex.loopBody(f.Body, iterEnv)
		if err != nil || signal != nil {
			return signal, err
		}
		if done {
			break
		}
		if f.Update != nil {
			if _, err := ex.eval(f.Update, loopEnv); err != nil {
				return nil, err
			}
		}
	}
	return runtime.Undefined, nil
}

// --- Calls -----------------------------------------------------------------

// evalCall evaluates the callee and the arguments of a call, left to right.
// Arguments are delayed in lazy mode.
func (ex *Execution) evalCall(call *ast.Call, env *runtime.Environment) (runtime.Value, []runtime.Value, error) {
	callee, err := ex.evalForced(call.Callee, env)
	if err != nil {
		return nil, nil, err
	}
	args := make([]runtime.Value, len(call.Arguments))
	for i, a := range call.Arguments {
		if args[i], err = ex.delay(a, env, ""); err != nil {
			return nil, nil, err
		}
	}
	return callee, args, nil
}

// evalTail evaluates the argument of a return statement. Calls in tail
// position, possibly nested within conditionals and logical expressions,
// are not performed but returned as TailCallValue.
func (ex *Execution) evalTail(n ast.Node, env *runtime.Environment) (runtime.Value, error) {
	switch e := n.(type) {
	case *ast.Call:
		if err := ex.visit(e, env); err != nil {
			return nil, err
		}
		callee, args, err := ex.evalCall(e, env)
		if err != nil {
			return nil, srceval.WithLocation(err, e.Loc())
		}
		return TailCallValue{Callee: callee, Args: args, Node: e}, nil
	case *ast.Conditional:
		if err := ex.visit(e, env); err != nil {
			return nil, err
		}
		t, err := ex.evalTest(e.Test, env)
		if err != nil {
			return nil, err
		}
		if t {
			return ex.evalTail(e.Consequent, env)
		}
		return ex.evalTail(e.Alternate, env)
	case *ast.Logical:
		if err := ex.visit(e, env); err != nil {
			return nil, err
		}
		t, err := ex.evalTest(e.Left, env)
		if err != nil {
			return nil, err
		}
		if e.Operator == "&&" && !t {
			return ReturnValue{Value: false}, nil
		} else if e.Operator == "||" && t {
			return ReturnValue{Value: true}, nil
		}
		return ex.evalTail(e.Right, env)
	}
	v, err := ex.eval(n, env)
	if err != nil {
		return nil, err
	}
	return ReturnValue{Value: v}, nil
}

// --- Assignment and member access ------------------------------------------

func (ex *Execution) evalAssignment(a *ast.Assignment, env *runtime.Environment) (runtime.Value, error) {
	switch t := a.Target.(type) {
	case *ast.Identifier:
		v, err := ex.evalForced(a.Value, env)
		if err != nil {
			return nil, err
		}
		return v, env.Assign(t.Name, v)
	case *ast.Member:
		obj, key, err := ex.evalMember(t, env)
		if err != nil {
			return nil, err
		}
		v, err := ex.evalForced(a.Value, env)
		if err != nil {
			return nil, err
		}
		return v, srceval.WithLocation(memberSet(obj, key, v), t.Loc())
	}
	return nil, srceval.RuntimeTypeError.New("invalid assignment target %s", ast.Kind(a.Target))
}

func (ex *Execution) evalMember(m *ast.Member, env *runtime.Environment) (runtime.Value, runtime.Value, error) {
	obj, err := ex.evalForced(m.Object, env)
	if err != nil {
		return nil, nil, err
	}
	key, err := ex.evalForced(m.Property, env)
	if err != nil {
		return nil, nil, err
	}
	return obj, key, nil
}

func arrayIndex(key runtime.Value) (int, error) {
	f, ok := key.(float64)
	if !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, srceval.RuntimeTypeError.New("Expected array index as prop, got %s.",
			runtime.Stringify(key))
	}
	return int(f), nil
}

func propertyName(key runtime.Value) (string, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case float64:
		return runtime.FormatNumber(k), nil
	}
	return "", srceval.RuntimeTypeError.New("Expected string as prop, got %s.", runtime.TypeName(key))
}

func memberGet(obj, key runtime.Value) (runtime.Value, error) {
	switch o := obj.(type) {
	case *runtime.Array:
		i, err := arrayIndex(key)
		if err != nil {
			return nil, err
		}
		return o.Get(i), nil
	case *runtime.Object:
		name, err := propertyName(key)
		if err != nil {
			return nil, err
		}
		v, own, inherited := o.Get(name)
		if !own && inherited {
			return nil, srceval.GetInheritedPropertyError.New(
				"Cannot read inherited property %s of %s.", name, runtime.Stringify(o))
		}
		return v, nil
	}
	return nil, srceval.RuntimeTypeError.New("Expected object or array, got %s.", runtime.TypeName(obj))
}

func memberSet(obj, key, v runtime.Value) error {
	switch o := obj.(type) {
	case *runtime.Array:
		i, err := arrayIndex(key)
		if err != nil {
			return err
		}
		o.Set(i, v)
		return nil
	case *runtime.Object:
		name, err := propertyName(key)
		if err != nil {
			return err
		}
		o.Set(name, v)
		return nil
	}
	return srceval.RuntimeTypeError.New("Expected object or array, got %s.", runtime.TypeName(obj))
}
