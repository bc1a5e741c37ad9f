package cache

// Prefetcher predicts future block addresses to fetch ahead of demand
// access, observing each access via Next and returning zero or more
// additional block-aligned addresses to fill speculatively.
type Prefetcher interface {
	Next(addr uint64) []uint64
}

// PrefetchKind selects a Prefetcher implementation.
type PrefetchKind uint8

const (
	PrefetchNone PrefetchKind = iota
	PrefetchNextLine
	PrefetchStride
	PrefetchStream
	PrefetchTagged
)

// NewPrefetcher builds the prefetcher selected by kind.
func NewPrefetcher(kind PrefetchKind, blockSize int) Prefetcher {
	switch kind {
	case PrefetchNextLine:
		return &nextLinePrefetcher{blockSize: blockSize}
	case PrefetchStride:
		return &stridePrefetcher{blockSize: blockSize}
	case PrefetchStream:
		return &streamPrefetcher{blockSize: blockSize, depth: 4}
	case PrefetchTagged:
		return &taggedPrefetcher{inner: &nextLinePrefetcher{blockSize: blockSize}}
	default:
		return nil
	}
}

// nextLinePrefetcher always fetches the block immediately following the
// one just accessed, the simplest useful prefetcher for sequential code
// and array scans.
type nextLinePrefetcher struct {
	blockSize int
}

func (p *nextLinePrefetcher) Next(addr uint64) []uint64 {
	bs := uint64(p.blockSize)
	block := (addr / bs) * bs
	return []uint64{block + bs}
}

// stridePrefetcher detects a constant address delta between consecutive
// accesses and prefetches one stride ahead once the pattern repeats.
type stridePrefetcher struct {
	blockSize  int
	lastAddr   uint64
	lastStride int64
	haveLast   bool
	confirmed  bool
}

func (p *stridePrefetcher) Next(addr uint64) []uint64 {
	defer func() { p.lastAddr, p.haveLast = addr, true }()
	if !p.haveLast {
		return nil
	}
	stride := int64(addr) - int64(p.lastAddr)
	if stride == 0 {
		return nil
	}
	if stride == p.lastStride {
		p.confirmed = true
		return []uint64{uint64(int64(addr) + stride)}
	}
	p.lastStride = stride
	return nil
}

// streamPrefetcher fetches several lines ahead along a detected
// monotonic access direction, useful for large sequential streams where
// a single next-line lookahead is not deep enough to hide miss latency.
type streamPrefetcher struct {
	blockSize int
	depth     int
	lastAddr  uint64
	haveLast  bool
	ascending bool
}

func (p *streamPrefetcher) Next(addr uint64) []uint64 {
	bs := uint64(p.blockSize)
	defer func() { p.lastAddr, p.haveLast = addr, true }()
	if !p.haveLast {
		return nil
	}
	p.ascending = addr >= p.lastAddr

	base := (addr / bs) * bs
	out := make([]uint64, 0, p.depth)
	for i := 1; i <= p.depth; i++ {
		if p.ascending {
			out = append(out, base+uint64(i)*bs)
		} else if base >= uint64(i)*bs {
			out = append(out, base-uint64(i)*bs)
		}
	}
	return out
}

// taggedPrefetcher wraps another prefetcher and records every address it
// returns in a tag set. The tag set does not gate anything: Next returns
// the inner prefetcher's output on every access, whether or not the
// accessed block was itself brought in by a prefetch.
type taggedPrefetcher struct {
	inner   Prefetcher
	tagged  map[uint64]bool
}

func (p *taggedPrefetcher) Next(addr uint64) []uint64 {
	if p.tagged == nil {
		p.tagged = make(map[uint64]bool)
	}
	next := p.inner.Next(addr)
	for _, n := range next {
		p.tagged[n] = true
	}
	return next
}
