package heap

// Collect frees every block not reachable from the roots given and returns
// the number of blocks freed.
//
// Marking is tri-color: roots are greyed, grey blocks get their children
// greyed and turn black. The sweep walks the heap block by block, freeing
// white blocks and whitening black ones for the next collection.
func (h *Heap) Collect(roots []Addr) int {
	h.collections++
	grey := make([]Addr, 0, len(roots)+len(h.pinned)+1)
	shade := func(a Addr) {
		if a != Nil && h.checkBlock(a) == nil && h.Color(a) == White {
			h.SetColor(a, Grey)
			grey = append(grey, a)
		}
	}
	for _, r := range roots {
		shade(r)
	}
	for _, r := range h.pinned {
		shade(r)
	}
	for len(grey) > 0 {
		a := grey[len(grey)-1]
		grey = grey[:len(grey)-1]
		if !h.IsRaw(a) {
			for i, n := 0, h.NumChildren(a); i < n; i++ {
				child, _ := h.GetChild(a, i)
				shade(child)
			}
		}
		h.SetColor(a, Black)
	}
	var garbage []Addr
	for a := Addr(0); int(a) < h.Words(); a += Addr(h.Size(a)) {
		switch tag := Tag(h.mem[int(a)*WordSize+hdrTag]); {
		case tag == Free || tag == Reserved:
		case h.Color(a) == White:
			garbage = append(garbage, a)
		default:
			h.SetColor(a, White)
		}
	}
	for _, a := range garbage {
		h.Free(a)
	}
	h.reclaimed += len(garbage)
	tracer().Infof("collection #%d freed %d blocks, %d blocks in use", h.collections, len(garbage), h.allocated)
	return len(garbage)
}
