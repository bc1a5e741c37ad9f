package pipeline

import "github.com/willmccallion/rvsim/addr"

// Stats mirrors the teacher's timing/pipeline.Stats shape: a small set
// of named counters plus a couple of derived ratios, reported alongside
// (and folded into) the simulator-wide stats.Collector.
type Stats struct {
	Cycles              uint64
	InstructionsFetched  uint64
	InstructionsRetired  uint64
	BranchesResolved     uint64
	Mispredictions       uint64
	Traps                uint64
	ROBFullStalls        uint64
	LoadStoreStalls      uint64

	// Per-class retirement counters, incremented at COMMIT alongside
	// InstructionsRetired; their sum always equals InstructionsRetired.
	InstALU    uint64
	InstLoad   uint64
	InstStore  uint64
	InstBranch uint64
	InstMul    uint64
	InstDiv    uint64
	InstFPU    uint64
	InstCSR    uint64

	// TrapsByCause breaks Traps down by cause, keyed the same way
	// addr.Cause.Name() names it. Left nil until the first trap.
	TrapsByCause map[addr.Cause]uint64

	// StallsControl counts front-end stalls caused by a structural
	// hazard (RENAME finding the ROB full). StallsData counts ISSUE
	// cycles where an otherwise-ready entry waits on an operand a prior
	// instruction hasn't produced yet (a RAW hazard). StallsMem counts
	// cycles a load/AMO spends waiting on an outstanding cache miss
	// once the access has already been issued to the cache.
	StallsControl uint64
	StallsData    uint64
	StallsMem     uint64
}

// IPC returns instructions retired per cycle, 0 if no cycles elapsed.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.InstructionsRetired) / float64(s.Cycles)
}

// CPI returns cycles per retired instruction, 0 if none retired.
func (s Stats) CPI() float64 {
	if s.InstructionsRetired == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.InstructionsRetired)
}

// MispredictionRate returns mispredictions per resolved branch.
func (s Stats) MispredictionRate() float64 {
	if s.BranchesResolved == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.BranchesResolved)
}
