package branchpred

// btb is a direct-mapped branch target buffer, the same shape as the
// teacher's btbEntry/btbValid pair but pulled out as its own type so it
// composes with any Direction family.
type btb struct {
	entries []btbEntry
	valid   []bool
	mask    uint32
}

type btbEntry struct {
	pc     uint64
	target uint64
}

func newBTB(entries uint32) *btb {
	if entries == 0 {
		entries = 256
	}
	return &btb{
		entries: make([]btbEntry, entries),
		valid:   make([]bool, entries),
		mask:    entries - 1,
	}
}

func (b *btb) index(pc uint64) uint32 {
	return uint32(pc>>2) & b.mask
}

// Lookup returns the predicted target for pc, if known.
func (b *btb) Lookup(pc uint64) (target uint64, ok bool) {
	idx := b.index(pc)
	if b.valid[idx] && b.entries[idx].pc == pc {
		return b.entries[idx].target, true
	}
	return 0, false
}

// Update records pc's resolved target.
func (b *btb) Update(pc, target uint64) {
	idx := b.index(pc)
	b.entries[idx] = btbEntry{pc: pc, target: target}
	b.valid[idx] = true
}

func (b *btb) Reset() {
	for i := range b.valid {
		b.valid[i] = false
	}
}

// ras is a fixed-depth return address stack for call/return prediction.
// Pushes beyond capacity overwrite the oldest entry (the standard
// circular-buffer RAS behavior), rather than growing unbounded.
type ras struct {
	stack []uint64
	sp    int
	size  int
	count int // entries actually pushed, clamped to size once the stack wraps
}

func newRAS(entries uint32) *ras {
	if entries == 0 {
		entries = 16
	}
	return &ras{stack: make([]uint64, entries), size: int(entries)}
}

// Push records a call's return address.
func (r *ras) Push(addr uint64) {
	r.stack[r.sp] = addr
	r.sp = (r.sp + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// Pop returns the most recently pushed return address, if any.
func (r *ras) Pop() (uint64, bool) {
	if r.count == 0 {
		return 0, false
	}
	prev := (r.sp - 1 + r.size) % r.size
	addr := r.stack[prev]
	r.sp = prev
	r.count--
	return addr, true
}

func (r *ras) Reset() {
	for i := range r.stack {
		r.stack[i] = 0
	}
	r.sp = 0
	r.count = 0
}

// Snapshot captures the stack's current read/write position. A later
// Restore to this snapshot undoes every Push/Pop made since.
func (r *ras) Snapshot() (sp, count int) {
	return r.sp, r.count
}

// Restore rolls the stack back to a previously captured Snapshot,
// discarding any pushes/pops made in between without touching the
// overwritten slot contents (the next Push simply overwrites them again).
func (r *ras) Restore(sp, count int) {
	r.sp, r.count = sp, count
}
