package branchpred

// tournament combines a local (PC-indexed, per-branch history) predictor
// with a global (GHR-indexed) predictor via a chooser table of
// saturating counters, following the classic Alpha 21264 scheme.
type tournament struct {
	local       []satCounter // indexed by local history
	localHist   []uint32     // per-PC local history register
	localMask   uint32
	global      *gshare
	chooser     []satCounter // 0-1 favors local, 2-3 favors global
	chooserMask uint32
	ghr         uint32
	ghrMask     uint32
}

func newTournament(cfg Config) *tournament {
	size := uint32(1) << cfg.TableBits
	localHistBits := cfg.HistoryBits
	if localHistBits == 0 {
		localHistBits = 10
	}
	t := &tournament{
		local:       make([]satCounter, uint32(1)<<localHistBits),
		localHist:   make([]uint32, size),
		localMask:   size - 1,
		global:      newGShare(cfg),
		chooser:     make([]satCounter, size),
		chooserMask: size - 1,
		ghrMask:     uint32(1)<<cfg.HistoryBits - 1,
	}
	for i := range t.local {
		t.local[i] = weakTaken
	}
	for i := range t.chooser {
		t.chooser[i] = weakTaken // start slightly favoring global
	}
	return t
}

func (t *tournament) pcIndex(pc uint64) uint32 {
	return uint32(pc>>2) & t.localMask
}

func (t *tournament) localPredict(pc uint64) bool {
	hist := t.localHist[t.pcIndex(pc)] & (uint32(len(t.local)) - 1)
	return satTaken(t.local[hist])
}

func (t *tournament) Predict(pc uint64) bool {
	idx := t.pcIndex(pc)
	if satTaken(t.chooser[idx]) {
		return t.global.Predict(pc)
	}
	return t.localPredict(pc)
}

func (t *tournament) Update(pc uint64, taken bool) {
	idx := t.pcIndex(pc)
	histIdx := t.localHist[idx] & (uint32(len(t.local)) - 1)

	localPred := satTaken(t.local[histIdx])
	globalPred := t.global.Predict(pc)

	if localPred != globalPred {
		if globalPred == taken {
			t.chooser[idx] = satIncrement(t.chooser[idx])
		} else if localPred == taken {
			t.chooser[idx] = satDecrement(t.chooser[idx])
		}
	}

	if taken {
		t.local[histIdx] = satIncrement(t.local[histIdx])
	} else {
		t.local[histIdx] = satDecrement(t.local[histIdx])
	}
	t.localHist[idx] = (t.localHist[idx] << 1)
	if taken {
		t.localHist[idx] |= 1
	}

	t.global.Update(pc, taken)
}

func (t *tournament) Reset() {
	for i := range t.local {
		t.local[i] = weakTaken
	}
	for i := range t.localHist {
		t.localHist[i] = 0
	}
	for i := range t.chooser {
		t.chooser[i] = weakTaken
	}
	t.global.Reset()
}
