package pipeline

import "github.com/willmccallion/rvsim/insts"

// slot is one lane's payload as it moves through the in-order front end
// (FETCH1 through RENAME). A width-W pipeline register is a []slot of
// length W; this is the generalization of the teacher's fixed-width
// duplicated pipeline-register fields (Primary/Secondary/.../Octonary)
// into a single slice indexed by lane.
type slot struct {
	valid bool

	pc      uint64
	rawWord uint32 // 32 bits fetched at pc; may only use the low 16 for RVC

	inst *insts.Instruction

	predTaken       bool
	predTarget      uint64
	predTargetKnown bool

	// rasSnapSP/rasSnapCount capture the RAS's position as of right after
	// this lane passed through FETCH2 (including this lane's own
	// speculative call push or return pop, if any), so RENAME can carry it
	// into the ROB entry for squash to restore from.
	rasSnapSP    int
	rasSnapCount int

	tag int // ROB tag, assigned at RENAME
}

// frontReg is a width-W pipeline register: the current set of lanes
// between two adjacent front-end stages.
type frontReg []slot

func newFrontReg(width int) frontReg {
	return make(frontReg, width)
}

func (r frontReg) clear() {
	for i := range r {
		r[i] = slot{}
	}
}
