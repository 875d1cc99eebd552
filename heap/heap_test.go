package heap

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/srceval"
)

const (
	tagData  Tag = 2
	tagNode  Tag = 3
	tagFrame Tag = 4 | Growable
)

func TestRoundTrip(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.heap")
	defer teardown()
	//
	h := New(4096)
	for _, size := range []int{1, 2, 3, 7, 8, 100, 511} {
		a, err := h.Allocate(tagData, size)
		if err != nil {
			t.Fatalf("cannot allocate %d words: %v", size, err)
		}
		if h.Tag(a) != tagData || h.Capacity(a) < size {
			t.Errorf("size %d: unexpected header, tag %d capacity %d", size, h.Tag(a), h.Capacity(a))
		}
		if int(a)%h.Size(a) != 0 {
			t.Errorf("size %d: block at %d not aligned to its size %d", size, a, h.Size(a))
		}
		for i := 0; i < size; i++ {
			pattern := uint64(0xA5A5A5A5)<<32 | uint64(i)*0x01010101
			if err := h.Set(h.ChildStart(a)+Addr(i), pattern); err != nil {
				t.Fatal(err)
			}
		}
		for i := 0; i < size; i++ {
			pattern := uint64(0xA5A5A5A5)<<32 | uint64(i)*0x01010101
			if w, _ := h.Get(h.ChildStart(a) + Addr(i)); w != pattern {
				t.Fatalf("size %d: word %d reads %x, wrote %x", size, i, w, pattern)
			}
		}
		if h.Tag(a) != tagData {
			t.Errorf("size %d: writing children clobbered the header", size)
		}
	}
	a, _ := h.Allocate(tagData, 1)
	h.SetFloat(h.ChildStart(a), -2.5)
	if f, _ := h.GetFloat(h.ChildStart(a)); f != -2.5 {
		t.Errorf("expected -2.5, got %g", f)
	}
	h.SetByte(h.ChildStart(a), 3, 0x7f)
	h.Set2Bytes(h.ChildStart(a), 6, 0xbeef)
	if b, _ := h.GetByte(h.ChildStart(a), 3); b != 0x7f {
		t.Errorf("expected byte 0x7f, got %x", b)
	}
	if v, _ := h.Get2Bytes(h.ChildStart(a), 6); v != 0xbeef {
		t.Errorf("expected 0xbeef, got %x", v)
	}
	h.SetField(a, 4711)
	if h.Field(a) != 4711 || h.Tag(a) != tagData {
		t.Errorf("expected header field 4711, got %d", h.Field(a))
	}
}

func TestAllocFreeCycles(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.heap")
	defer teardown()
	//
	h := New(1024)
	count := -1
	for round := 0; round < 10; round++ {
		var blocks []Addr
		for {
			a, err := h.Allocate(tagData, 7)
			if err != nil {
				if !srceval.IsOfType(err, srceval.MemExhausted) {
					t.Fatalf("expected exhaustion, got %v", err)
				}
				break
			}
			blocks = append(blocks, a)
		}
		if count >= 0 && len(blocks) != count {
			t.Fatalf("round %d: allocated %d blocks, previous round %d", round, len(blocks), count)
		}
		count = len(blocks)
		for _, a := range blocks {
			if err := h.Free(a); err != nil {
				t.Fatal(err)
			}
		}
	}
	if count != 1024/8-1 {
		t.Errorf("expected %d blocks of 8 words, got %d", 1024/8-1, count)
	}
	// buddies have been merged again
	if _, err := h.Allocate(tagData, 511); err != nil {
		t.Errorf("expected upper half to be free as one block, got %v", err)
	}
	if s := h.Stats(); s.Blocks != 2 || s.Used != 2+512 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestBounds(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.heap")
	defer teardown()
	//
	h := New(64)
	a, _ := h.Allocate(tagNode, 3)
	if _, err := h.Get(Addr(h.Words())); !srceval.IsOfType(err, srceval.MemOutOfBounds) {
		t.Errorf("expected out of bounds, got %v", err)
	}
	if err := h.Set(-1, 0); !srceval.IsOfType(err, srceval.MemOutOfBounds) {
		t.Errorf("expected out of bounds, got %v", err)
	}
	if _, err := h.GetByte(Addr(h.Words()-1), 8); !srceval.IsOfType(err, srceval.MemOutOfBounds) {
		t.Errorf("expected out of bounds, got %v", err)
	}
	if _, err := h.GetChild(a, h.Capacity(a)); !srceval.IsOfType(err, srceval.InvalidChildIndex) {
		t.Errorf("expected invalid child index, got %v", err)
	}
	if _, err := h.Allocate(tagNode, 0); !srceval.IsOfType(err, srceval.InvalidMemRequested) {
		t.Errorf("expected invalid request, got %v", err)
	}
	if _, err := h.Allocate(tagNode, 1000); !srceval.IsOfType(err, srceval.MemExhausted) {
		t.Errorf("expected exhaustion, got %v", err)
	}
	if err := h.Free(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Free(a); err == nil || !srceval.IsFatal(err) {
		t.Errorf("expected double free to be a fatal error, got %v", err)
	}
	if err := h.Free(Nil); err == nil {
		t.Errorf("expected freeing Nil to fail")
	}
}

func TestAddChild(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.heap")
	defer teardown()
	//
	h := New(256)
	kids := make([]Addr, 5)
	for i := range kids {
		kids[i], _ = h.Allocate(tagData, 1)
	}
	frame, _ := h.Allocate(tagFrame, 1)
	h.SetField(frame, 42)
	first := frame
	var err error
	for _, k := range kids {
		if frame, err = h.AddChild(frame, k); err != nil {
			t.Fatal(err)
		}
	}
	if frame == first || h.Tag(first) != Free {
		t.Errorf("expected frame to have moved and the old block to be freed")
	}
	if h.NumChildren(frame) != 5 || h.Capacity(frame) < 5 || h.Field(frame) != 42 {
		t.Errorf("expected 5 children and the header field to move along, got %d/%d/%d",
			h.NumChildren(frame), h.Capacity(frame), h.Field(frame))
	}
	for i, k := range kids {
		if c, _ := h.GetChild(frame, i); c != k {
			t.Errorf("child %d: expected %d, got %d", i, k, c)
		}
	}
	node, _ := h.Allocate(tagNode, 1)
	h.AddChild(node, kids[0])
	if _, err := h.AddChild(node, kids[1]); !srceval.IsOfType(err, srceval.CannotAddChild) {
		t.Errorf("expected full block of fixed size to reject child, got %v", err)
	}
}

func TestHeaderLayout(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.heap")
	defer teardown()
	//
	h := New(256)
	a, err := h.Allocate(tagNode, 5)
	if err != nil {
		t.Fatal(err)
	}
	p := h.Power(a)
	if p != 3 {
		t.Fatalf("expected block of 8 words for 5 children, got 2^%d", p)
	}
	if b, _ := h.GetByte(a, 0); Tag(b) != tagNode {
		t.Errorf("expected tag %d in byte 0, got %d", tagNode, b)
	}
	h.SetChild(a, 1, a)
	if n, _ := h.Get2Bytes(a, 1); n != 2 {
		t.Errorf("expected 2 children in bytes 1-2, got %d", n)
	}
	for _, c := range []Color{Black, Grey, White} {
		h.SetColor(a, c)
		b, _ := h.GetByte(a, 3)
		if b != byte(p)|byte(c)<<5 {
			t.Errorf("color %d: expected packed byte %#02x, got %#02x", c, byte(p)|byte(c)<<5, b)
		}
		if h.Power(a) != p || h.Color(a) != c {
			t.Errorf("color %d: read back power %d and color %d", c, h.Power(a), h.Color(a))
		}
	}
	frame, _ := h.Allocate(tagFrame, 1)
	h.SetColor(frame, Grey)
	h.SetRaw(frame)
	h.AddChild(frame, Nil)
	moved, err := h.AddChild(frame, Nil)
	if err != nil {
		t.Fatal(err)
	}
	if h.Power(moved) != h.Power(frame)+1 || h.Color(moved) != Grey || !h.IsRaw(moved) {
		t.Errorf("expected grown block to keep color and flags, got power %d, color %d",
			h.Power(moved), h.Color(moved))
	}
}

func TestCollect(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "srceval.heap")
	defer teardown()
	//
	h := New(128)
	c, _ := h.Allocate(tagData, 1)
	h.SetRaw(c)
	h.SetChild(c, 0, Addr(77)) // data, not an address
	b, _ := h.Allocate(tagNode, 1)
	h.SetChild(b, 0, c)
	a, _ := h.Allocate(tagNode, 2)
	h.SetChild(a, 0, b)
	h.SetChild(a, 1, Nil)
	garbage, _ := h.Allocate(tagNode, 1)
	h.SetChild(garbage, 0, a)
	if n := h.Collect([]Addr{a}); n != 1 {
		t.Errorf("expected 1 block to be freed, got %d", n)
	}
	for _, live := range []Addr{a, b, c} {
		if h.Tag(live) == Free || h.Color(live) != White {
			t.Errorf("expected block %d to survive, whitened", live)
		}
	}
	if h.Tag(garbage) != Free {
		t.Errorf("expected unreachable block to be freed")
	}
	// on exhaustion, the hook supplies the roots
	h.OnExhausted(func() []Addr { return []Addr{a} })
	for i := 0; i < 100; i++ {
		if _, err := h.Allocate(tagData, 7); err != nil {
			t.Fatalf("allocation #%d failed: %v", i, err)
		}
	}
	if s := h.Stats(); s.Collections < 2 || s.Reclaimed < 10 {
		t.Errorf("expected collections to have run, got %+v", s)
	}
	if h.Tag(b) != tagNode {
		t.Errorf("live block freed by collection on exhaustion")
	}
}
