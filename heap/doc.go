/*
Package heap implements the memory of the Source virtual machine.

The heap is a flat buffer of 64-bit words. Memory is handed out in blocks
of power-of-two sizes by a buddy allocator: a request is served from the
smallest free block large enough, splitting larger blocks in halves as
needed, and freed blocks are merged with their buddy whenever the buddy is
free as well. Free blocks are kept in one ordered set per power.

Every block starts with a header word:

	byte 0    tag
	byte 1–2  number of children in use
	byte 3    bits 0–4: power (the block spans 2^power words)
	          bits 5–6: color, used by the collector
	byte 4    flags
	byte 6–7  a field free for use by the owner of the block

The words following the header are the children of the block. Unless the
block is flagged raw, children are addresses of other blocks (or Nil).
Raw blocks hold numbers, bytes or anything else not to be traced.

All accessors check their arguments against the bounds of the heap and of
the block addressed. Violations are reported as errors of the memory
namespace, all of which carry the fatal trait: they indicate a bug in the
virtual machine, not in the user program.

When memory is exhausted, the heap calls a hook to learn the roots of the
live data, runs a mark and sweep collection and retries the allocation
once.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package heap

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'srceval.heap'.
func tracer() tracing.Trace {
	return tracing.Select("srceval.heap")
}
