// Package pipeline implements the 10-stage superscalar out-of-order
// core: FETCH1/FETCH2/DECODE/RENAME/ISSUE/EXECUTE/MEM1/MEM2/WRITEBACK/
// COMMIT, a reorder buffer, a tag-based register scoreboard, and a store
// buffer with store-to-load forwarding. It keeps the teacher's two-phase
// current/next pipeline-register discipline (stages evaluated in reverse
// order into "next" shadow state, then swapped synchronously) but
// generalizes past the teacher's fixed-width duplicated pipeline
// registers to a width-parameterized slice of in-flight instructions,
// the same "replace dynamic polymorphism with a single, data-driven
// dispatch" principle the teacher itself applies to its own instruction
// execution, taken one level further to pipeline width.
package pipeline

import (
	"github.com/willmccallion/rvsim/addr"
	"github.com/willmccallion/rvsim/insts"
)

// ROBEntry is one in-flight instruction's reorder buffer slot: its
// architectural identity, its speculative result once computed, and
// enough branch/store metadata for COMMIT to resolve mispredicts and
// retire stores in order.
type ROBEntry struct {
	Valid   bool
	Busy    bool // dispatched but not yet resolved by EXECUTE/MEM2
	Done    bool // result computed, ready to commit once it reaches the head
	Issued  bool // picked by ISSUE and sent to a functional unit
	RemainingLatency int // cycles left to spend in EXECUTE/MEM before Done

	PC     uint64
	Inst   insts.Instruction
	Tag    int // this entry's own ROB index, doubling as its register tag

	Rd      uint8
	IsFPRd  bool
	HasRd   bool
	Result  uint64

	Trap *addr.Trap

	IsBranch        bool
	PredictedTaken  bool
	PredictedTarget uint64
	ActualTaken     bool
	ActualTarget    uint64
	Mispredicted    bool

	IsStore    bool
	StoreAddr  uint64
	StoreData  uint64
	StoreWidth int

	IsLoad bool

	// RASSnapSP/RASSnapCount are the RAS's position as captured at FETCH2,
	// right after this instruction's own speculative call push or return
	// pop (if any). A squash triggered by this entry restores the RAS to
	// exactly this position, discarding every speculative push/pop made
	// by younger, now-discarded instructions.
	RASSnapSP    int
	RASSnapCount int
}

// ROB is a circular reorder buffer of fixed capacity. Instructions are
// appended at the tail in program order by RENAME and retired from the
// head in program order by COMMIT; EXECUTE/MEM2/WRITEBACK may complete
// entries in the middle out of order.
type ROB struct {
	entries  []ROBEntry
	head     int
	tail     int
	count    int
}

// NewROB creates a reorder buffer with the given number of entries.
func NewROB(capacity int) *ROB {
	return &ROB{entries: make([]ROBEntry, capacity)}
}

// Capacity returns the ROB's total entry count.
func (r *ROB) Capacity() int { return len(r.entries) }

// Free reports how many entries are available for new dispatches.
func (r *ROB) Free() int { return len(r.entries) - r.count }

// Full reports whether the ROB has no free entries.
func (r *ROB) Full() bool { return r.count == len(r.entries) }

// Empty reports whether the ROB holds no in-flight instructions.
func (r *ROB) Empty() bool { return r.count == 0 }

// Allocate reserves the next tail slot for a newly renamed instruction
// and returns its tag (ROB index). The caller must have already checked
// Free() > 0.
func (r *ROB) Allocate(pc uint64, inst insts.Instruction) int {
	tag := r.tail
	r.entries[tag] = ROBEntry{Valid: true, Busy: true, PC: pc, Inst: inst, Tag: tag}
	r.tail = (r.tail + 1) % len(r.entries)
	r.count++
	return tag
}

// Entry returns a pointer to the entry at the given tag for in-place
// updates by EXECUTE/MEM2/WRITEBACK.
func (r *ROB) Entry(tag int) *ROBEntry {
	return &r.entries[tag]
}

// Head returns the oldest in-flight entry, or nil if the ROB is empty.
func (r *ROB) Head() *ROBEntry {
	if r.count == 0 {
		return nil
	}
	return &r.entries[r.head]
}

// RetireHead pops the head entry once COMMIT has processed it.
func (r *ROB) RetireHead() {
	if r.count == 0 {
		return
	}
	r.entries[r.head] = ROBEntry{}
	r.head = (r.head + 1) % len(r.entries)
	r.count--
}

// Flush discards every in-flight entry, used on a mispredict or trap
// squash.
func (r *ROB) Flush() {
	for i := range r.entries {
		r.entries[i] = ROBEntry{}
	}
	r.head, r.tail, r.count = 0, 0, 0
}

// InFlight returns every currently valid entry in program order, oldest
// first, for ISSUE to scan for ready operations.
func (r *ROB) InFlight() []*ROBEntry {
	out := make([]*ROBEntry, 0, r.count)
	idx := r.head
	for i := 0; i < r.count; i++ {
		out = append(out, &r.entries[idx])
		idx = (idx + 1) % len(r.entries)
	}
	return out
}
