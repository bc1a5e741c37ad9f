package branchpred

// perceptron implements Jimenez & Lin's perceptron branch predictor: a
// table of per-PC weight vectors dotted with the global history register
// (read as +1/-1 per bit), trained by gradient updates clamped to a
// saturating weight range.
type perceptron struct {
	weights   [][]int8
	ghr       []bool
	histBits  int
	tableMask uint32
	theta     int32
}

func newPerceptron(cfg Config) *perceptron {
	size := uint32(1) << cfg.TableBits
	histBits := int(cfg.HistoryBits)
	if histBits == 0 {
		histBits = 16
	}
	p := &perceptron{
		weights:   make([][]int8, size),
		ghr:       make([]bool, histBits),
		histBits:  histBits,
		tableMask: size - 1,
		theta:     int32(1.93*float64(histBits)) + 14,
	}
	for i := range p.weights {
		p.weights[i] = make([]int8, histBits+1) // +1 bias weight
	}
	return p
}

func (p *perceptron) index(pc uint64) uint32 {
	return uint32(pc>>2) & p.tableMask
}

func (p *perceptron) dot(weights []int8) int32 {
	sum := int32(weights[0]) // bias
	for i, taken := range p.ghr {
		if taken {
			sum += int32(weights[i+1])
		} else {
			sum -= int32(weights[i+1])
		}
	}
	return sum
}

func (p *perceptron) Predict(pc uint64) bool {
	return p.dot(p.weights[p.index(pc)]) >= 0
}

func (p *perceptron) Update(pc uint64, taken bool) {
	idx := p.index(pc)
	weights := p.weights[idx]
	sum := p.dot(weights)
	predicted := sum >= 0

	if predicted != taken || abs32(sum) <= p.theta {
		adjust := func(w *int8, agree bool) {
			if agree {
				if *w < 127 {
					*w++
				}
			} else {
				if *w > -128 {
					*w--
				}
			}
		}
		adjust(&weights[0], taken)
		for i, bitTaken := range p.ghr {
			agree := bitTaken == taken
			adjust(&weights[i+1], agree)
		}
	}

	copy(p.ghr, p.ghr[1:])
	p.ghr[len(p.ghr)-1] = taken
}

func (p *perceptron) Reset() {
	for i := range p.weights {
		for j := range p.weights[i] {
			p.weights[i][j] = 0
		}
	}
	for i := range p.ghr {
		p.ghr[i] = false
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
