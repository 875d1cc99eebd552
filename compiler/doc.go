/*
Package compiler lowers Source syntax trees to svml programs.

Compilation is a single recursive pass over the syntax tree. Names are
resolved statically: every block declaring names opens a scope, and every
scope corresponds to exactly one environment frame at runtime. A reference
to a name therefore compiles to a (frame depth, slot) pair.

Jumps are emitted with unknown destinations and patched as soon as the
destination is reached. Function literals are compiled out of line: the
enclosing code loads the function by index, and the body is compiled
after the enclosing function has been finished, in the scope the literal
appeared in. Calls in tail position compile to TailCall, following the
same syntactic rules as the interpreter.

Programs with errors a static pass can find (unbound names,
redeclarations, assignments to constants, syntax the virtual machine does
not support) are rejected with a located error.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package compiler

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'srceval.compiler'.
func tracer() tracing.Trace {
	return tracing.Select("srceval.compiler")
}
