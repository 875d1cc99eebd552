package runtime

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/srceval"
)

func TestNewSymTab(t *testing.T) {
	symtab := NewSymbolTable()
	if symtab == nil {
		t.Error("no symbol table created")
	}
}

func TestTagsGetConsecutiveSlots(t *testing.T) {
	symtab := NewSymbolTable()
	sym1, _ := symtab.DefineTag("new-sym1")
	sym2, _ := symtab.DefineTag("new-sym2")
	if sym1 == sym2 {
		t.Error("2 symbols with equal name")
	}
	if sym1.Slot != 0 || sym2.Slot != 1 {
		t.Errorf("expected slots 0 and 1, got %d and %d", sym1.Slot, sym2.Slot)
	}
}

func TestResolveTag(t *testing.T) {
	symtab := NewSymbolTable()
	sym, _ := symtab.DefineTag("new-sym")
	if s := symtab.ResolveTag(sym.Name()); s == nil {
		t.Error("cannot find stored symbol in table")
	}
}

func TestDefineTagTwice(t *testing.T) {
	symtab := NewSymbolTable()
	sym, _ := symtab.DefineTag("new-sym")
	if _, old := symtab.DefineTag("new-sym"); old != sym {
		t.Error("second definition should report the existing symbol")
	}
	if symtab.Size() != 1 {
		t.Errorf("expected table size 1, is %d", symtab.Size())
	}
}

func TestScopeUpsearch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.runtime")
	defer teardown()
	//
	scopep := NewScope("parent", nil)
	scope := NewScope("current", scopep)
	scopep.Declare("new-sym", false)
	if sym, depth := scope.ResolveTag("new-sym"); sym != nil {
		t.Logf("found symbol '%s' in parent scope, ok\n", sym.Name())
		if depth != 1 {
			t.Errorf("expected depth 1, got %d", depth)
		}
	} else {
		t.Fail()
	}
	if _, depth := scope.ResolveTag("unknown"); depth != -1 {
		t.Errorf("expected unknown name to resolve to depth -1")
	}
}

func TestScopeRedeclaration(t *testing.T) {
	scope := NewScope("current", nil)
	if _, err := scope.Declare("x", true); err != nil {
		t.Fatal(err)
	}
	_, err := scope.Declare("x", false)
	if !srceval.IsOfType(err, srceval.Redeclaration) {
		t.Errorf("expected Redeclaration, got %v", err)
	}
}

func TestScopeTreeEnterLeave(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.runtime")
	defer teardown()
	//
	tree := &ScopeTree{}
	g := tree.PushNewScope("globals")
	f := tree.PushNewScope("f")
	tree.PopScope()
	if tree.Current() != g {
		t.Fatalf("expected globals to be TOS")
	}
	prev := tree.Enter(f)
	if tree.Current() != f || prev != g {
		t.Errorf("Enter did not switch TOS")
	}
	tree.Leave(prev)
	if tree.Current() != g {
		t.Errorf("Leave did not restore TOS")
	}
}
