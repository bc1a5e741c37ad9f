package branchpred

// Prediction is what FETCH2 consults to steer the next fetch, the same
// shape as the teacher's Prediction type.
type Prediction struct {
	Taken       bool
	Target      uint64
	TargetKnown bool
}

// Unit is the complete branch prediction subsystem FETCH2 queries: a
// pluggable Direction predictor, a BTB, and a RAS, wired together the way
// the teacher's single BranchPredictor combines a bimodal table with a
// BTB, generalized to one Direction implementation per configured family.
type Unit struct {
	dir   Direction
	btb   *btb
	ras   *ras
	stats Stats
}

// NewUnit builds a prediction unit from cfg.
func NewUnit(cfg Config) *Unit {
	return &Unit{
		dir: New(cfg),
		btb: newBTB(cfg.BTBEntries),
		ras: newRAS(cfg.RASEntries),
	}
}

// Predict returns a full prediction for a fetched instruction at pc,
// given whether it is a call, return, or ordinary conditional branch.
func (u *Unit) Predict(pc uint64, isCall, isReturn bool) Prediction {
	u.stats.Predictions++

	if isReturn {
		if target, ok := u.ras.Pop(); ok {
			u.stats.RASHits++
			return Prediction{Taken: true, Target: target, TargetKnown: true}
		}
		u.stats.RASMisses++
		return Prediction{Taken: true}
	}

	taken := isCall || u.dir.Predict(pc)
	pred := Prediction{Taken: taken}
	if target, ok := u.btb.Lookup(pc); ok {
		pred.Target = target
		pred.TargetKnown = true
		u.stats.BTBHits++
	} else {
		u.stats.BTBMisses++
	}
	return pred
}

// Update trains the direction predictor with a branch's resolved outcome
// and records taken targets in the BTB. It does not touch the RAS; call
// return addresses are pushed by PushReturn.
func (u *Unit) Update(pc uint64, taken bool, target uint64, isCall, isReturn bool) {
	predicted := u.dir.Predict(pc)
	if predicted == taken {
		u.stats.Correct++
	} else {
		u.stats.Mispredictions++
	}
	u.dir.Update(pc, taken)
	if taken {
		u.btb.Update(pc, target)
	}
}

// PushReturn records a call instruction's return address onto the RAS.
func (u *Unit) PushReturn(returnAddr uint64) {
	u.ras.Push(returnAddr)
}

// RASSnapshot captures the RAS's current position, for a ROB entry to
// carry forward so a later squash can undo every speculative push/pop
// younger than that entry (every call/return is speculated at FETCH2,
// well before the instruction reaches the ROB head).
func (u *Unit) RASSnapshot() (sp, count int) {
	return u.ras.Snapshot()
}

// RASRestore rolls the RAS back to a previously captured RASSnapshot.
func (u *Unit) RASRestore(sp, count int) {
	u.ras.Restore(sp, count)
}

// Stats returns the unit's accuracy/hit-rate counters.
func (u *Unit) Stats() Stats {
	return u.stats
}

// Reset clears all predictor state and statistics.
func (u *Unit) Reset() {
	u.dir.Reset()
	u.btb.Reset()
	u.ras.Reset()
	u.stats = Stats{}
}
