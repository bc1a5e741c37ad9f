package branchpred

// tage implements a simplified TAGE predictor: a base bimodal table plus
// a small number of tagged tables indexed by progressively longer,
// folded history lengths. The longest-matching tagged table that hits
// provides the prediction; ties are broken toward the longer history, and
// a per-entry "useful" counter governs allocation on mispredict, matching
// the essential TAGE mechanism without the full set-associative
// allocation throttling real implementations add.
type tage struct {
	base     []satCounter
	baseMask uint32

	tables []tageTable
	ghr    []bool
}

type tageTable struct {
	entries    []tageEntry
	mask       uint32
	histLength int
	tagBits    uint32
}

type tageEntry struct {
	counter satCounter
	tag     uint16
	useful  uint8
	valid   bool
}

func newTAGE(cfg Config) *tage {
	baseSize := uint32(1) << cfg.TableBits
	numTables := int(cfg.TageTables)
	if numTables == 0 {
		numTables = 4
	}
	histBits := int(cfg.HistoryBits)
	if histBits == 0 {
		histBits = 16
	}

	t := &tage{
		base:     make([]satCounter, baseSize),
		baseMask: baseSize - 1,
		ghr:      make([]bool, histBits*4), // room for the longest table's history
	}
	for i := range t.base {
		t.base[i] = weakTaken
	}

	tableSize := uint32(1) << cfg.TableBits
	length := 4
	for i := 0; i < numTables; i++ {
		tt := tageTable{
			entries:    make([]tageEntry, tableSize),
			mask:       tableSize - 1,
			histLength: length,
			tagBits:    0xff,
		}
		t.tables = append(t.tables, tt)
		length *= 2
	}
	return t
}

func (t *tage) foldedHistory(pc uint64, length int) uint32 {
	if length > len(t.ghr) {
		length = len(t.ghr)
	}
	var folded uint32
	for i := 0; i < length; i++ {
		if t.ghr[i] {
			folded ^= 1 << (uint(i) % 20)
		}
	}
	return folded ^ uint32(pc>>2)
}

func (t *tage) tagOf(pc uint64, length int) uint16 {
	h := t.foldedHistory(pc, length) ^ uint32(pc>>5)
	return uint16(h & 0xff)
}

func (t *tage) Predict(pc uint64) bool {
	for i := len(t.tables) - 1; i >= 0; i-- {
		tbl := &t.tables[i]
		idx := t.foldedHistory(pc, tbl.histLength) & tbl.mask
		e := &tbl.entries[idx]
		if e.valid && e.tag == t.tagOf(pc, tbl.histLength) {
			return satTaken(e.counter)
		}
	}
	return satTaken(t.base[uint32(pc>>2)&t.baseMask])
}

func (t *tage) Update(pc uint64, taken bool) {
	predicted := t.Predict(pc)
	hitTable := -1
	for i := len(t.tables) - 1; i >= 0; i-- {
		tbl := &t.tables[i]
		idx := t.foldedHistory(pc, tbl.histLength) & tbl.mask
		e := &tbl.entries[idx]
		if e.valid && e.tag == t.tagOf(pc, tbl.histLength) {
			hitTable = i
			if taken {
				e.counter = satIncrement(e.counter)
			} else {
				e.counter = satDecrement(e.counter)
			}
			if satTaken(e.counter) == taken {
				if e.useful < 3 {
					e.useful++
				}
			} else if e.useful > 0 {
				e.useful--
			}
			break
		}
	}

	if hitTable == -1 {
		baseIdx := uint32(pc>>2) & t.baseMask
		if taken {
			t.base[baseIdx] = satIncrement(t.base[baseIdx])
		} else {
			t.base[baseIdx] = satDecrement(t.base[baseIdx])
		}
	}

	// Allocate a new entry in a longer-history table than the hit (or
	// any table, on a base-table hit) when the prediction was wrong, the
	// classic TAGE allocation-on-mispredict policy.
	if predicted != taken {
		for i := hitTable + 1; i < len(t.tables); i++ {
			tbl := &t.tables[i]
			idx := t.foldedHistory(pc, tbl.histLength) & tbl.mask
			e := &tbl.entries[idx]
			if !e.valid || e.useful == 0 {
				*e = tageEntry{
					counter: weakTaken,
					tag:     t.tagOf(pc, tbl.histLength),
					useful:  0,
					valid:   true,
				}
				if !taken {
					e.counter = weakNotTaken
				}
				break
			}
			e.useful--
		}
	}

	copy(t.ghr, t.ghr[1:])
	t.ghr[len(t.ghr)-1] = taken
}

func (t *tage) Reset() {
	for i := range t.base {
		t.base[i] = weakTaken
	}
	for ti := range t.tables {
		for i := range t.tables[ti].entries {
			t.tables[ti].entries[i] = tageEntry{}
		}
	}
	for i := range t.ghr {
		t.ghr[i] = false
	}
}
