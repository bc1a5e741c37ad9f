package mmu_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/willmccallion/rvsim/addr"
	"github.com/willmccallion/rvsim/arch"
	"github.com/willmccallion/rvsim/mmu"
)

// pageTableFixture builds a minimal 3-level SV39 page table (root ppn
// 0x80 -> level1 ppn 0x81 -> level0 ppn 0x82, all physical addresses
// below 0x1000*0x100 so they fit a 1 MiB backing memory) with three
// level-0 leaves already installed: vpn0=1 (read+write+exec, user),
// vpn0=2 (read-only, user), vpn0=3 (read+write, user).
func pageTableFixture() *arch.Memory {
	mem := arch.NewMemory(0, 0x100000)

	const pteV, pteR, pteW, pteX, pteU, pteA, pteD = 1, 2, 4, 8, 16, 64, 128

	root := uint64(0x80) * 0x1000
	l1 := uint64(0x81) * 0x1000
	l0 := uint64(0x82) * 0x1000

	mem.Write64(root+0*8, (uint64(0x81)<<10)|pteV)
	mem.Write64(l1+0*8, (uint64(0x82)<<10)|pteV)

	mem.Write64(l0+1*8, (uint64(0x90)<<10)|(pteV|pteR|pteW|pteX|pteU|pteA|pteD))
	mem.Write64(l0+2*8, (uint64(0x92)<<10)|(pteV|pteR|pteU|pteA))
	mem.Write64(l0+3*8, (uint64(0x91)<<10)|(pteV|pteR|pteW|pteU|pteA|pteD))

	return mem
}

const satpSV39 = uint64(8)<<60 | uint64(0x80) // mode=SV39, ASID=0, root ppn=0x80

func TestMMU(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MMU Suite")
}

var _ = Describe("MMU", func() {
	var m *mmu.MMU
	var mem *arch.Memory

	BeforeEach(func() {
		mem = pageTableFixture()
		m = mmu.New(mmu.DefaultConfig(), mem)
	})

	It("walks a 3-level page table to a leaf translation", func() {
		pa, trap := m.Translate(0x1000, addr.AccessRead, addr.PrivU, satpSV39, false, false)
		Expect(trap).To(BeNil())
		Expect(pa).To(Equal(addr.Physical(0x90000)))
	})

	It("bypasses translation entirely in Bare mode", func() {
		pa, trap := m.Translate(0x1000, addr.AccessRead, addr.PrivU, 0, false, false)
		Expect(trap).To(BeNil())
		Expect(pa).To(Equal(addr.Physical(0x1000)))
	})

	It("bypasses translation for M-mode regardless of satp", func() {
		pa, trap := m.Translate(0x1000, addr.AccessRead, addr.PrivM, satpSV39, false, false)
		Expect(trap).To(BeNil())
		Expect(pa).To(Equal(addr.Physical(0x1000)))
	})

	It("raises a store page fault writing a read-only page", func() {
		_, trap := m.Translate(0x2000, addr.AccessWrite, addr.PrivU, satpSV39, false, false)
		Expect(trap).NotTo(BeNil())
		Expect(trap.Cause).To(Equal(addr.CauseStoreAMOPageFault))
	})

	It("reuses a cached translation on a repeated access", func() {
		pa1, trap1 := m.Translate(0x1000, addr.AccessRead, addr.PrivU, satpSV39, false, false)
		pa2, trap2 := m.Translate(0x1000, addr.AccessRead, addr.PrivU, satpSV39, false, false)
		Expect(trap1).To(BeNil())
		Expect(trap2).To(BeNil())
		Expect(pa2).To(Equal(pa1))
	})

	It("serves a stale TLB entry until SFENCE.VMA flushes it", func() {
		pa, trap := m.Translate(0x3000, addr.AccessWrite, addr.PrivU, satpSV39, false, false)
		Expect(trap).To(BeNil())
		Expect(pa).To(Equal(addr.Physical(0x91000)))

		// Revoke the write bit directly in the backing page table, as a
		// supervisor OS would on an munmap/mprotect, without an
		// intervening SFENCE.VMA.
		const pteW = 4
		l0 := uint64(0x82) * 0x1000
		entry := mem.Read64(l0 + 3*8)
		mem.Write64(l0+3*8, entry&^uint64(pteW))

		// The dTLB still holds the old permissive entry.
		_, trap = m.Translate(0x3000, addr.AccessWrite, addr.PrivU, satpSV39, false, false)
		Expect(trap).To(BeNil())

		m.SFENCEVMA(true, true, 0, 0)

		_, trap = m.Translate(0x3000, addr.AccessWrite, addr.PrivU, satpSV39, false, false)
		Expect(trap).NotTo(BeNil())
		Expect(trap.Cause).To(Equal(addr.CauseStoreAMOPageFault))
	})

	It("counts a TLB miss on first translation and a hit on a repeat", func() {
		m.Translate(0x1000, addr.AccessRead, addr.PrivU, satpSV39, false, false)
		Expect(m.Stats()).To(Equal(mmu.Stats{Hits: 0, Misses: 1}))

		m.Translate(0x1000, addr.AccessRead, addr.PrivU, satpSV39, false, false)
		Expect(m.Stats()).To(Equal(mmu.Stats{Hits: 1, Misses: 1}))
	})
})
