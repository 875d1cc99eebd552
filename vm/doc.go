/*
Package vm implements a virtual machine executing compiled svml programs.

All values a program creates live in a heap of words managed by a buddy
allocator (package heap). The machine identifies a value by the address of
its block; the block's tag tells its type:

	number     raw, child 0 holds the bits of a float64
	string     raw, child 0 holds the length, bytes follow
	boolean    two preallocated blocks, field = 0 or 1
	array      child 0 is an element store, growing as needed
	closure    field = function index, child 0 = environment frame
	frame      child 0 = parent frame, slots follow
	primitive  raw, field = index into the primitive table
	channel    raw, field = index into the channel table

null, undefined and the marker for unassigned slots are preallocated
singletons as well. Garbage collection is mark-sweep and runs whenever
an allocation fails.

Programs compiled for concurrency may start goroutines. The machine
schedules them round-robin on a single host thread, switching after a
quantum of instructions or when a goroutine blocks on a channel.
Channels are unbuffered: a send completes only together with a receive.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package vm

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'srceval.vm'.
func tracer() tracing.Trace {
	return tracing.Select("srceval.vm")
}
