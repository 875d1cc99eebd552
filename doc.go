/*
Package srceval is an evaluation engine for "Source", a family of small
teaching languages derived from JavaScript. Source comes in chapters of
increasing expressive power; chapter 1 knows constants, functions and
conditionals, chapter 2 adds lists, chapter 3 adds mutable state and loops,
chapter 4 adds objects.

Package structure is as follows:

■ ast: Package ast defines the abstract syntax tree as a closed sum type.

■ parser: Package parser produces ASTs from source text (with sub-package scanner).

■ runtime: Package runtime provides environments, scopes and values shared by
the evaluation back ends.

■ interp: Package interp implements a tree-walking evaluator, eager or lazy,
with proper tail calls and suspendable execution for stepping and debugging.

■ svml, compiler, heap, vm: a compiler from ASTs to a stack-machine instruction
set, and a virtual machine executing it on top of a buddy-allocated heap,
including cooperatively scheduled goroutines.

■ prelude: Package prelude contains the primitives and library functions
visible to Source programs.

The base package contains data types which are used throughout all the other packages:
source locations and the error taxonomy.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package srceval
