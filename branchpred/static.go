package branchpred

// staticPredictor is the stateless baseline used when no history table is
// warranted. It predicts every branch not-taken; no backward-taken rule
// is applied to its predictions, here or by the caller.
type staticPredictor struct{}

func newStatic() *staticPredictor {
	return &staticPredictor{}
}

// Predict has no PC-indexed state to consult and the Direction interface
// carries no branch displacement, so it always predicts not-taken.
// Neither Unit nor FETCH2 adds a backward-taken override, so a static
// configuration predicts every conditional branch not-taken.
func (s *staticPredictor) Predict(pc uint64) bool {
	return false
}

func (s *staticPredictor) Update(pc uint64, taken bool) {}

func (s *staticPredictor) Reset() {}
