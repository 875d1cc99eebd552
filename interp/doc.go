/*
Package interp implements a tree-walking interpreter for Source.

The interpreter evaluates syntax trees directly against a chain of
environments. Every evaluation rule is a case of one type switch over the
closed set of node types. Control flow within function bodies and loops is
signalled by values (ReturnValue, TailCallValue, BreakValue,
ContinueValue), which propagate upwards until absorbed by the construct
giving them meaning.

Calls in tail position are not executed where they appear. They are
returned to the apply loop as TailCallValue, which replaces the top-most
environment of the environment stack and loops. Tail-recursive programs
therefore run in constant stack space, for both the host and the
environment stack.

Executions are suspendable. Each execution runs as a coroutine (see
iter.Pull) and every node visit is a potential suspension point: a
debugger may pause at breakpoints, in single-step mode or at 'debugger'
statements, and hosts may resume or abandon a paused execution at will.
Step limits and context cancellation terminate executions at node visits
as well.

In lazy mode, arguments of calls, initializers of declarations and
components of arrays and objects are wrapped into memoizing thunks instead
of being evaluated. Thunks are forced where a value is needed: operands of
operators, tests of conditionals, callees and arguments of strict
primitives.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package interp

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'srceval.interp'.
func tracer() tracing.Trace {
	return tracing.Select("srceval.interp")
}
