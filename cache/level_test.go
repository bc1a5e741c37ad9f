package cache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/willmccallion/rvsim/cache"
)

func TestCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cache Suite")
}

// memStore is a flat byte-slice BackingStore stub, standing in for a
// dram.Controller without pulling in the timing model.
type memStore struct {
	data []byte
}

func newMemStore(size int) *memStore {
	return &memStore{data: make([]byte, size)}
}

func (m *memStore) Read(addr uint64, size int) []byte {
	out := make([]byte, size)
	copy(out, m.data[addr:int(addr)+size])
	return out
}

func (m *memStore) Write(addr uint64, data []byte) {
	copy(m.data[addr:int(addr)+len(data)], data)
}

func smallConfig() cache.Config {
	return cache.Config{
		Size: 256, Associativity: 2, BlockSize: 64,
		HitLatency: 1, MissLatency: 5,
		Replacement: cache.ReplacementLRU, Prefetcher: cache.PrefetchNone,
	}
}

var _ = Describe("Level", func() {
	var backing *memStore
	var lvl *cache.Level

	BeforeEach(func() {
		backing = newMemStore(4096)
		lvl = cache.New("l1", smallConfig(), backing)
	})

	It("misses on first access and fills from the backing store", func() {
		backing.Write(0, []byte{1, 2, 3, 4})
		res := lvl.Read(0, 4)
		Expect(res.Hit).To(BeFalse())
		Expect(res.Data).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("hits on a subsequent access to the same line", func() {
		lvl.Read(0, 4)
		res := lvl.Read(0, 4)
		Expect(res.Hit).To(BeTrue())
	})

	It("allocates on a store miss and marks the line dirty", func() {
		res := lvl.Write(0, 4, []byte{9, 9, 9, 9})
		Expect(res.Hit).To(BeFalse())

		read := lvl.Read(0, 4)
		Expect(read.Hit).To(BeTrue())
		Expect(read.Data).To(Equal([]byte{9, 9, 9, 9}))
	})

	It("writes back a dirty line to the backing store on eviction", func() {
		// Two ways per set, block size 64: fill the same set three times
		// over to force an eviction of the first block written.
		lvl.Write(0, 4, []byte{1, 1, 1, 1})
		lvl.Write(256, 4, []byte{2, 2, 2, 2})   // same set (256 % sets*64 wraps), different tag
		lvl.Write(512, 4, []byte{3, 3, 3, 3})   // forces eviction in a 2-way set

		Expect(backing.Read(0, 4)).To(Equal([]byte{1, 1, 1, 1}))
	})

	It("counts hits, misses, and evictions in its statistics", func() {
		lvl.Read(0, 4)
		lvl.Read(0, 4)
		stats := lvl.Stats()
		Expect(stats.Reads).To(Equal(uint64(2)))
		Expect(stats.Misses).To(Equal(uint64(1)))
		Expect(stats.Hits).To(Equal(uint64(1)))
	})

	It("back-invalidates an inclusive child on eviction", func() {
		child := cache.New("l0", smallConfig(), backing)
		lvl.AddInclusiveChild(child)

		lvl.Read(0, 4)   // parent caches addr 0
		child.Read(0, 4) // child pulls the same line in too

		lvl.Write(256, 4, []byte{1, 1, 1, 1})
		lvl.Write(512, 4, []byte{2, 2, 2, 2}) // evicts addr 0's line from lvl (LRU)

		res := child.Read(0, 4)
		Expect(res.Hit).To(BeFalse()) // invalidated, must miss and refill
	})

	It("back-invalidates transitively down an L3->L2->L1 inclusive chain", func() {
		l2 := cache.New("l2", smallConfig(), backing)
		l1 := cache.New("l1", smallConfig(), backing)
		lvl.AddInclusiveChild(l2) // lvl stands in for l3 here
		l2.AddInclusiveChild(l1)

		lvl.Read(0, 4) // l3 caches addr 0
		l2.Read(0, 4)  // l2 caches the same line
		l1.Read(0, 4)  // l1 caches the same line too

		lvl.Write(256, 4, []byte{1, 1, 1, 1})
		lvl.Write(512, 4, []byte{2, 2, 2, 2}) // evicts addr 0's line from lvl (LRU)

		resL2 := l2.Read(0, 4)
		Expect(resL2.Hit).To(BeFalse()) // l3's eviction invalidated l2's copy

		resL1 := l1.Read(0, 4)
		Expect(resL1.Hit).To(BeFalse()) // ...which must cascade to invalidate l1's copy too
	})

	It("drops the oldest line under a FIFO replacement policy", func() {
		cfg := smallConfig()
		cfg.Replacement = cache.ReplacementFIFO
		fifo := cache.New("fifo", cfg, backing)

		fifo.Read(0, 4)
		fifo.Read(256, 4)
		fifo.Read(512, 4) // same set, evicts addr 0 first (FIFO order)

		res := fifo.Read(0, 4)
		Expect(res.Hit).To(BeFalse())
	})

	It("flushes dirty lines to the backing store and invalidates", func() {
		lvl.Write(0, 4, []byte{7, 7, 7, 7})
		lvl.Flush()

		Expect(backing.Read(0, 4)).To(Equal([]byte{7, 7, 7, 7}))
		res := lvl.Read(0, 4)
		Expect(res.Hit).To(BeFalse()) // flush invalidated it
	})

	It("resets statistics and directory state", func() {
		lvl.Read(0, 4)
		lvl.Reset()
		Expect(lvl.Stats()).To(Equal(cache.Statistics{}))

		res := lvl.Read(0, 4)
		Expect(res.Hit).To(BeFalse())
	})
})

var _ = Describe("AsBackingStore", func() {
	It("adapts a Level's Read/Write to the BackingStore interface", func() {
		backing := newMemStore(4096)
		l2 := cache.New("l2", smallConfig(), backing)
		l1 := cache.New("l1", smallConfig(), cache.AsBackingStore(l2))

		backing.Write(0, []byte{4, 5, 6, 7})
		res := l1.Read(0, 4)

		Expect(res.Data).To(Equal([]byte{4, 5, 6, 7}))
		Expect(l2.Stats().Reads).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Prefetchers", func() {
	It("next-line prefetcher always targets the following block", func() {
		p := cache.NewPrefetcher(cache.PrefetchNextLine, 64)
		Expect(p.Next(0)).To(Equal([]uint64{64}))
		Expect(p.Next(128)).To(Equal([]uint64{192}))
	})

	It("stride prefetcher only fires once a repeated stride is confirmed", func() {
		p := cache.NewPrefetcher(cache.PrefetchStride, 64)
		Expect(p.Next(0)).To(BeEmpty())
		Expect(p.Next(64)).To(BeEmpty())   // stride 64 seen once, not yet confirmed
		Expect(p.Next(128)).To(Equal([]uint64{192}))
	})

	It("returns nil for PrefetchNone", func() {
		Expect(cache.NewPrefetcher(cache.PrefetchNone, 64)).To(BeNil())
	})
})
