/*
Package srepl/main provides an interactive command line tool (S.REPL)
for programs of the Source language. Input lines are evaluated by the
tree-walking interpreter, with declarations persisting from one input
to the next. With flag -vm, every input is compiled and run as a
complete program on the virtual machine instead.

S.REPL understands a small set of commands, all starting with a colon:

    :break L…     set breakpoints at lines L…, or list them
    :clear        remove all breakpoints
    :step         run a suspended execution up to the next statement
    :continue     resume a suspended execution
    :env          show the environment of a suspended execution or the program
    :ast <src>    show the syntax tree of src
    :dis <src>    show the compiled instructions of src
    :load <file>  evaluate a file as a single program
    :quit         leave S.REPL

Breakpoints refer to lines of a single input, which makes them most
useful together with :load.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package main

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'srceval.srepl'
func tracer() tracing.Trace {
	return tracing.Select("srceval.srepl")
}
