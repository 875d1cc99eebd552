/*
Package ast defines the abstract syntax tree for Source programs.

The node kinds form a closed sum type: every node implements Node, and the
set of implementations is fixed by an unexported marker method. Back ends
dispatch with exhaustive type switches instead of string-keyed tables.

Every node carries the source location of the construct it represents.
Locations are used for breakpoint matching and error reporting.

License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2021 Norbert Pillmayer <norbert@pillmayer.com>

*/
package ast
