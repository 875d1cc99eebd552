package runtime

import (
	"fmt"

	"github.com/npillmayer/srceval"
)

// Symbol table for names resolved at compile time. Symbol tables are
// attached to scopes, scopes are organized in a tree. Every scope
// corresponds to exactly one environment frame at runtime, and every name
// gets a slot within that frame. This allows compiled code to address
// names as (depth, slot) pairs without any lookup by name.

// --- Tags ------------------------------------------------------------------

// Tag is the type stored into symbol tables. It is not called 'Symbol' to
// keep it apart from runtime bindings: tags exist during compilation,
// bindings during execution.
type Tag struct {
	name  string
	Slot  int
	Const bool
	UData interface{} // user data
}

// NewTag creates a new tag.
func NewTag(nm string) *Tag {
	return &Tag{name: nm, Slot: -1}
}

// String is a debug Stringer for tags.
func (s *Tag) String() string {
	return fmt.Sprintf("<tag '%s' @%d>", s.Name(), s.Slot)
}

// Name gets the tag's name.
func (s *Tag) Name() string {
	return s.name
}

// === Symbol Tables =========================================================

// SymbolTable is a symbol table to store tags (map-like semantics).
// Tags are numbered in order of definition.
type SymbolTable struct {
	Table map[string]*Tag
	order []*Tag
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Table: make(map[string]*Tag),
	}
}

// ResolveTag checks for a tag in the symbol table.
// Returns a tag or nil.
func (t *SymbolTable) ResolveTag(tagname string) *Tag {
	return t.Table[tagname]
}

// DefineTag creates a new tag to store into the symbol table, assigning it
// the next free slot. Returns the new tag and the previously stored tag
// under this name (or nil); in the latter case the table is left unchanged.
func (t *SymbolTable) DefineTag(tagname string) (*Tag, *Tag) {
	if len(tagname) == 0 {
		return nil, nil
	}
	if old := t.ResolveTag(tagname); old != nil {
		return nil, old
	}
	tag := NewTag(tagname)
	tag.Slot = len(t.order)
	t.Table[tagname] = tag
	t.order = append(t.order, tag)
	return tag, nil
}

// Size counts the tags in a symbol table.
func (t *SymbolTable) Size() int {
	return len(t.order)
}

// Each iterates over each tag in the table in slot order, executing a mapper function.
func (t *SymbolTable) Each(mapper func(string, *Tag)) {
	for _, tag := range t.order {
		mapper(tag.name, tag)
	}
}

// === Scopes ================================================================

// Scope is a named scope, which may contain symbol definitions. Scopes link back to a
// parent scope, forming a tree.
type Scope struct {
	Name   string
	Parent *Scope
	symtab *SymbolTable
}

// NewScope creates a new scope.
func NewScope(nm string, parent *Scope) *Scope {
	return &Scope{
		Name:   nm,
		Parent: parent,
		symtab: NewSymbolTable(),
	}
}

// Prettyfied Stringer.
func (s *Scope) String() string {
	return fmt.Sprintf("<scope %s>", s.Name)
}

// Tags returns the symbol table of a scope.
func (s *Scope) Tags() *SymbolTable {
	return s.symtab
}

// Size is the number of slots the frame for this scope needs.
func (s *Scope) Size() int {
	return s.symtab.Size()
}

// Declare defines a name in the scope. Fails with Redeclaration if the
// name is already defined in this scope.
func (s *Scope) Declare(tagname string, isConst bool) (*Tag, error) {
	tag, old := s.symtab.DefineTag(tagname)
	if old != nil {
		return nil, srceval.Redeclaration.New("name %s declared twice in the same scope", tagname)
	}
	tag.Const = isConst
	return tag, nil
}

// ResolveTag finds a tag. Returns the tag (or nil) and the number of scopes
// walked up to find it. Depth 0 is the scope itself.
func (s *Scope) ResolveTag(tagname string) (*Tag, int) {
	depth := 0
	for sc := s; sc != nil; sc = sc.Parent {
		if tag := sc.symtab.ResolveTag(tagname); tag != nil {
			return tag, depth
		}
		depth++
	}
	return nil, -1
}

// ---------------------------------------------------------------------------

// ScopeTree can be treated as a stack during static analysis, thus
// building a tree from scopes which are pushed an popped to/from the stack.
type ScopeTree struct {
	ScopeBase *Scope
	ScopeTOS  *Scope
}

// Current gets the current scope of a stack (TOS).
func (scst *ScopeTree) Current() *Scope {
	if scst.ScopeTOS == nil {
		panic("attempt to access scope from empty stack")
	}
	return scst.ScopeTOS
}

// Globals gets the outermost scope, containing global symbols.
func (scst *ScopeTree) Globals() *Scope {
	if scst.ScopeBase == nil {
		panic("attempt to access global scope from empty stack")
	}
	return scst.ScopeBase
}

// PushNewScope pushes a scope onto the stack of scopes. A scope is constructed, including a symbol table
// for variable declarations.
func (scst *ScopeTree) PushNewScope(nm string) *Scope {
	scp := scst.ScopeTOS
	newsc := NewScope(nm, scp)
	if scp == nil { // the new scope is the global scope
		scst.ScopeBase = newsc // make new scope anchor
	}
	scst.ScopeTOS = newsc // new scope now TOS
	tracer().P("scope", newsc.Name).Debugf("pushing new scope")
	return newsc
}

// Enter makes an existing scope TOS, e.g. when compiling a function body
// out of line within the scope the function literal appeared in.
// Returns the previous TOS, to be restored with Leave.
func (scst *ScopeTree) Enter(sc *Scope) *Scope {
	prev := scst.ScopeTOS
	scst.ScopeTOS = sc
	return prev
}

// Leave restores a TOS saved by Enter.
func (scst *ScopeTree) Leave(prev *Scope) {
	scst.ScopeTOS = prev
}

// PopScope pops the top-most (recent) scope.
func (scst *ScopeTree) PopScope() *Scope {
	if scst.ScopeTOS == nil {
		panic("attempt to pop scope from empty stack")
	}
	sc := scst.ScopeTOS
	tracer().Debugf("popping scope [%s]", sc.Name)
	scst.ScopeTOS = scst.ScopeTOS.Parent
	return sc
}
