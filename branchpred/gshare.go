package branchpred

// gshare indexes a table of 2-bit saturating counters with the XOR of PC
// bits and the global history register, the standard improvement over
// the teacher's plain PC-indexed bimodal table.
type gshare struct {
	table   []satCounter
	ghr     uint32
	ghrMask uint32
	idxMask uint32
}

func newGShare(cfg Config) *gshare {
	size := uint32(1) << cfg.TableBits
	g := &gshare{
		table:   make([]satCounter, size),
		ghrMask: uint32(1)<<cfg.HistoryBits - 1,
		idxMask: size - 1,
	}
	for i := range g.table {
		g.table[i] = weakTaken
	}
	return g
}

func (g *gshare) index(pc uint64) uint32 {
	return (uint32(pc>>2) ^ g.ghr) & g.idxMask
}

func (g *gshare) Predict(pc uint64) bool {
	return satTaken(g.table[g.index(pc)])
}

func (g *gshare) Update(pc uint64, taken bool) {
	idx := g.index(pc)
	if taken {
		g.table[idx] = satIncrement(g.table[idx])
	} else {
		g.table[idx] = satDecrement(g.table[idx])
	}
	g.ghr <<= 1
	if taken {
		g.ghr |= 1
	}
	g.ghr &= g.ghrMask
}

func (g *gshare) Reset() {
	for i := range g.table {
		g.table[i] = weakTaken
	}
	g.ghr = 0
}
