package heap

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/npillmayer/srceval"
)

// Addr is the address of a word in the heap.
type Addr int

// Nil is the null address. The heap reserves the block at address 0 so no
// other block ever gets this address.
const Nil Addr = 0

// Tag tells what a block holds. Tags are defined by the users of the heap,
// except for Free and Reserved.
type Tag uint8

const (
	Free     Tag = 0    // block is on a free list
	Reserved Tag = 1    // block at Nil
	Growable Tag = 0x80 // blocks with tags having this bit set may grow when adding children
)

// Color is the mark of a block during garbage collection.
type Color uint8

// Colors of the tri-color marking.
const (
	White Color = iota
	Grey
	Black
)

// Flags of a block header.
const (
	FlagRaw uint8 = 1 << iota // children are not addresses
)

// WordSize is the size of a word in bytes.
const WordSize = 8

const (
	minPower = 1  // header plus one child
	maxPower = 30 // 8 GB
	maxKids  = math.MaxUint16
)

const (
	hdrTag    = 0
	hdrKids   = 1
	hdrPower  = 3 // power and color
	hdrFlags  = 4
	hdrField  = 6
	hdrLength = 8
)

const (
	powerMask  = 0x1f
	colorShift = 5
	colorMask  = 0x3 << colorShift
)

// Heap is a memory of words with a buddy allocator.
type Heap struct {
	mem         []byte
	power       int            // the heap spans 2^power words
	free        []*treeset.Set // free block addresses, per power
	roots       func() []Addr  // hook called on exhaustion
	pinned      []Addr         // additional roots while growing blocks
	allocated   int            // number of blocks in use
	used        int            // words in use
	collections int
	reclaimed   int
}

// New creates a heap of at least the given number of words, rounded up to
// a power of two.
func New(words int) *Heap {
	power := minPower + 3
	for 1<<power < words && power < maxPower {
		power++
	}
	h := &Heap{
		mem:   make([]byte, (1<<power)*WordSize),
		power: power,
		free:  make([]*treeset.Set, power+1),
	}
	for p := range h.free {
		h.free[p] = treeset.NewWithIntComparator()
	}
	h.pushFree(0, power)
	if a, err := h.Allocate(Reserved, 1); err != nil || a != Nil {
		panic("cannot reserve Nil block")
	}
	tracer().Debugf("heap of %d words created", 1<<power)
	return h
}

// Words returns the size of the heap in words.
func (h *Heap) Words() int {
	return 1 << h.power
}

// OnExhausted installs a hook to be called when no block is left to serve
// an allocation. It has to return the roots of all live blocks.
func (h *Heap) OnExhausted(roots func() []Addr) {
	h.roots = roots
}

// --- Allocation ------------------------------------------------------------

// powerFor returns the smallest power of a block holding size children.
func powerFor(size int) int {
	p := bits.Len(uint(size)) // 2^p > size, i.e. 2^p >= size+1
	if p < minPower {
		p = minPower
	}
	return p
}

// Allocate reserves a block with room for size children and writes its
// header. If no free block is large enough, the heap collects garbage and
// tries once more.
func (h *Heap) Allocate(tag Tag, size int) (Addr, error) {
	if size <= 0 || size > maxKids {
		return Nil, srceval.InvalidMemRequested.New("cannot allocate block of %d words", size)
	}
	if tag == Free {
		return Nil, srceval.InvalidMemRequested.New("cannot allocate block tagged free")
	}
	want := powerFor(size)
	if want > h.power {
		return Nil, srceval.MemExhausted.New("block of %d words exceeds heap size", size)
	}
	addr, ok := h.take(want)
	if !ok && h.roots != nil {
		tracer().Infof("heap exhausted allocating %d words, collecting", size)
		h.Collect(h.roots())
		addr, ok = h.take(want)
	}
	if !ok {
		return Nil, srceval.MemExhausted.New("out of memory allocating %d words", size)
	}
	h.writeHeader(addr, tag, want)
	h.allocated++
	h.used += 1 << want
	return addr, nil
}

// take pops the lowest free block of the smallest sufficient power,
// splitting it down to the power wanted.
func (h *Heap) take(want int) (Addr, bool) {
	p := want
	for p <= h.power && h.free[p].Empty() {
		p++
	}
	if p > h.power {
		return Nil, false
	}
	it := h.free[p].Iterator()
	it.First()
	addr := Addr(it.Value().(int))
	h.free[p].Remove(int(addr))
	for p > want {
		p--
		h.pushFree(addr+Addr(1<<p), p)
	}
	return addr, true
}

func (h *Heap) pushFree(addr Addr, power int) {
	h.writeHeader(addr, Free, power)
	h.free[power].Add(int(addr))
}

func (h *Heap) writeHeader(addr Addr, tag Tag, power int) {
	hdr := h.mem[int(addr)*WordSize : int(addr+1)*WordSize]
	for i := range hdr {
		hdr[i] = 0
	}
	hdr[hdrTag] = byte(tag)
	hdr[hdrPower] = byte(power) & powerMask
}

// powerAt reads the size power from a header known to be in bounds.
func (h *Heap) powerAt(addr Addr) int {
	return int(h.mem[int(addr)*WordSize+hdrPower] & powerMask)
}

// Free returns a block to the allocator, merging it with its buddy as long
// as the buddy is free.
func (h *Heap) Free(addr Addr) error {
	if err := h.checkBlock(addr); err != nil {
		return err
	}
	if addr == Nil {
		return srceval.InvalidMemRequested.New("cannot free Nil")
	}
	p := h.powerAt(addr)
	h.mem[int(addr)*WordSize+hdrTag] = byte(Free)
	h.allocated--
	h.used -= 1 << p
	for p < h.power {
		buddy := addr ^ Addr(1<<p)
		if !h.free[p].Contains(int(buddy)) {
			break
		}
		h.free[p].Remove(int(buddy))
		if buddy < addr {
			addr = buddy
		}
		p++
	}
	h.pushFree(addr, p)
	return nil
}

// --- Bounds checks ---------------------------------------------------------

func (h *Heap) checkAddr(addr Addr) error {
	if addr < 0 || int(addr) >= h.Words() {
		return srceval.MemOutOfBounds.New("address %d outside of heap of %d words", addr, h.Words())
	}
	return nil
}

// checkBlock checks that addr is the start of a block in use.
func (h *Heap) checkBlock(addr Addr) error {
	if err := h.checkAddr(addr); err != nil {
		return err
	}
	p := h.powerAt(addr)
	if Tag(h.mem[int(addr)*WordSize+hdrTag]) == Free || p < minPower || p > h.power || int(addr)%(1<<p) != 0 {
		return srceval.MemOutOfBounds.New("no block in use at address %d", addr)
	}
	return nil
}

func (h *Heap) checkChild(addr Addr, i int) error {
	if err := h.checkBlock(addr); err != nil {
		return err
	}
	if i < 0 || i >= h.Capacity(addr) {
		return srceval.InvalidChildIndex.New("child %d of block %d with capacity %d", i, addr, h.Capacity(addr))
	}
	return nil
}

// --- Words and bytes -------------------------------------------------------

// Get reads a word.
func (h *Heap) Get(addr Addr) (uint64, error) {
	if err := h.checkAddr(addr); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(h.mem[int(addr)*WordSize:]), nil
}

// Set writes a word.
func (h *Heap) Set(addr Addr, w uint64) error {
	if err := h.checkAddr(addr); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(h.mem[int(addr)*WordSize:], w)
	return nil
}

// GetFloat reads a word as a number.
func (h *Heap) GetFloat(addr Addr) (float64, error) {
	w, err := h.Get(addr)
	return math.Float64frombits(w), err
}

// SetFloat writes a number into a word.
func (h *Heap) SetFloat(addr Addr, f float64) error {
	return h.Set(addr, math.Float64bits(f))
}

func (h *Heap) checkByte(addr Addr, offset, width int) (int, error) {
	if err := h.checkAddr(addr); err != nil {
		return 0, err
	}
	pos := int(addr)*WordSize + offset
	if offset < 0 || pos+width > len(h.mem) {
		return 0, srceval.MemOutOfBounds.New("byte %d of word %d outside of heap", offset, addr)
	}
	return pos, nil
}

// GetByte reads the byte at offset from the start of word addr.
func (h *Heap) GetByte(addr Addr, offset int) (byte, error) {
	pos, err := h.checkByte(addr, offset, 1)
	if err != nil {
		return 0, err
	}
	return h.mem[pos], nil
}

// SetByte writes the byte at offset from the start of word addr.
func (h *Heap) SetByte(addr Addr, offset int, b byte) error {
	pos, err := h.checkByte(addr, offset, 1)
	if err != nil {
		return err
	}
	h.mem[pos] = b
	return nil
}

// Get2Bytes reads a 16-bit value at offset from the start of word addr.
func (h *Heap) Get2Bytes(addr Addr, offset int) (uint16, error) {
	pos, err := h.checkByte(addr, offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(h.mem[pos:]), nil
}

// Set2Bytes writes a 16-bit value at offset from the start of word addr.
func (h *Heap) Set2Bytes(addr Addr, offset int, v uint16) error {
	pos, err := h.checkByte(addr, offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(h.mem[pos:], v)
	return nil
}

// --- Headers ---------------------------------------------------------------

// Tag returns the tag of the block at addr. Addresses not starting a
// block in use report Free.
func (h *Heap) Tag(addr Addr) Tag {
	if h.checkBlock(addr) != nil {
		return Free
	}
	return Tag(h.mem[int(addr)*WordSize+hdrTag])
}

// Power returns the power of the block at addr: the block spans 2^power words.
func (h *Heap) Power(addr Addr) int {
	if h.checkAddr(addr) != nil {
		return 0
	}
	return h.powerAt(addr)
}

// Size returns the number of words the block at addr spans, header included.
func (h *Heap) Size(addr Addr) int {
	return 1 << h.Power(addr)
}

// Capacity returns the number of children the block at addr has room for.
func (h *Heap) Capacity(addr Addr) int {
	c := h.Size(addr) - 1
	if c > maxKids {
		c = maxKids
	}
	return c
}

// Color returns the collector mark of the block at addr.
func (h *Heap) Color(addr Addr) Color {
	if h.checkAddr(addr) != nil {
		return White
	}
	return Color((h.mem[int(addr)*WordSize+hdrPower] & colorMask) >> colorShift)
}

// SetColor sets the collector mark of the block at addr.
func (h *Heap) SetColor(addr Addr, c Color) {
	if h.checkAddr(addr) != nil {
		return
	}
	pos := int(addr)*WordSize + hdrPower
	h.mem[pos] = h.mem[pos]&powerMask | byte(c)<<colorShift&colorMask
}

// IsRaw is a predicate: are the children of the block at addr data rather
// than addresses?
func (h *Heap) IsRaw(addr Addr) bool {
	if h.checkAddr(addr) != nil {
		return false
	}
	return h.mem[int(addr)*WordSize+hdrFlags]&FlagRaw != 0
}

// SetRaw flags the children of the block at addr as data.
func (h *Heap) SetRaw(addr Addr) {
	if h.checkAddr(addr) != nil {
		return
	}
	h.mem[int(addr)*WordSize+hdrFlags] |= FlagRaw
}

// Field returns the 16-bit field of the header of the block at addr.
func (h *Heap) Field(addr Addr) uint16 {
	v, _ := h.Get2Bytes(addr, hdrField)
	return v
}

// SetField sets the 16-bit field of the header of the block at addr.
func (h *Heap) SetField(addr Addr, v uint16) error {
	if err := h.checkBlock(addr); err != nil {
		return err
	}
	return h.Set2Bytes(addr, hdrField, v)
}

// ChildStart returns the address of the first child of the block at addr.
func (h *Heap) ChildStart(addr Addr) Addr {
	return addr + 1
}

// --- Children --------------------------------------------------------------

// NumChildren returns the number of children in use of the block at addr.
func (h *Heap) NumChildren(addr Addr) int {
	v, _ := h.Get2Bytes(addr, hdrKids)
	return int(v)
}

// SetNumChildren sets the number of children in use of the block at addr.
func (h *Heap) SetNumChildren(addr Addr, n int) error {
	if n > 0 {
		if err := h.checkChild(addr, n-1); err != nil {
			return err
		}
	} else if err := h.checkBlock(addr); err != nil {
		return err
	}
	return h.Set2Bytes(addr, hdrKids, uint16(n))
}

// GetChild reads child i of the block at addr.
func (h *Heap) GetChild(addr Addr, i int) (Addr, error) {
	if err := h.checkChild(addr, i); err != nil {
		return Nil, err
	}
	w, err := h.Get(h.ChildStart(addr) + Addr(i))
	return Addr(w), err
}

// SetChild writes child i of the block at addr, counting it as in use.
func (h *Heap) SetChild(addr Addr, i int, child Addr) error {
	if err := h.checkChild(addr, i); err != nil {
		return err
	}
	if i >= h.NumChildren(addr) {
		h.Set2Bytes(addr, hdrKids, uint16(i+1))
	}
	return h.Set(h.ChildStart(addr)+Addr(i), uint64(child))
}

// AddChild appends a child to the block at addr. If the block is full and
// its tag is growable, the block is moved to a new block of twice its
// size. AddChild returns the address of the block, which callers must use
// from then on.
func (h *Heap) AddChild(addr Addr, child Addr) (Addr, error) {
	if err := h.checkBlock(addr); err != nil {
		return Nil, err
	}
	n := h.NumChildren(addr)
	if n < h.Capacity(addr) {
		return addr, h.SetChild(addr, n, child)
	}
	tag := h.Tag(addr)
	if tag&Growable == 0 {
		return Nil, srceval.CannotAddChild.New("block %d tagged %d is full", addr, tag)
	}
	h.pinned = append(h.pinned, addr, child)
	moved, err := h.Allocate(tag, 2*h.Capacity(addr)+1)
	h.pinned = h.pinned[:len(h.pinned)-2]
	if err != nil {
		return Nil, srceval.CannotAddChild.Wrap(err, "cannot grow block %d", addr)
	}
	tracer().Debugf("block %d moved to %d", addr, moved)
	from, to := int(addr)*WordSize, int(moved)*WordSize
	copy(h.mem[to+hdrKids:to+hdrPower], h.mem[from+hdrKids:from+hdrPower])
	copy(h.mem[to+hdrFlags:to+hdrLength], h.mem[from+hdrFlags:from+hdrLength])
	h.SetColor(moved, h.Color(addr))
	copy(h.mem[to+hdrLength:to+hdrLength+n*WordSize], h.mem[from+hdrLength:from+hdrLength+n*WordSize])
	if err = h.Free(addr); err != nil {
		return Nil, err
	}
	return moved, h.SetChild(moved, n, child)
}

// --- Statistics ------------------------------------------------------------

// Stats describes the usage of a heap.
type Stats struct {
	Words       int // size of the heap
	Blocks      int // blocks in use, including the Nil block
	Used        int // words in blocks in use
	Collections int // garbage collections run
	Reclaimed   int // blocks freed by garbage collections
}

// Stats returns the current usage of the heap.
func (h *Heap) Stats() Stats {
	return Stats{
		Words:       h.Words(),
		Blocks:      h.allocated,
		Used:        h.used,
		Collections: h.collections,
		Reclaimed:   h.reclaimed,
	}
}
