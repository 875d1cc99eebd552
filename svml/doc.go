/*
Package svml defines the instruction set of the Source virtual machine.

A compiled program is a list of functions, one of them the entry point.
Every function carries its own instruction sequence, the maximum depth of
its operand stack, the number of its parameters and the size of its
environment frame. Instructions address names by (frame depth, slot)
pairs: depth 0 is the innermost frame of the executing function, every
enclosing block or function frame adds one. No name lookups happen at
runtime.

Jumps address instructions within the same function by index. The
compiler emits jumps before their destinations are known and patches them
later; Validate checks that no jump is left unpatched.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package svml

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'srceval.svml'.
func tracer() tracing.Trace {
	return tracing.Select("srceval.svml")
}
