package dram_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/willmccallion/rvsim/arch"
	"github.com/willmccallion/rvsim/dram"
)

func TestDRAM(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DRAM Suite")
}

var _ = Describe("Controller", func() {
	var mem *arch.Memory
	var ctrl *dram.Controller

	BeforeEach(func() {
		mem = arch.NewMemory(0, 1<<20)
		ctrl = dram.New(dram.DefaultConfig(0, 1<<20), mem)
	})

	It("round-trips bytes through the backing memory", func() {
		ctrl.Write(0x100, []byte{1, 2, 3, 4})
		Expect(ctrl.Read(0x100, 4)).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("charges a row-miss activation on the first access to a row", func() {
		ctrl.Read(0, 8)
		Expect(ctrl.Stats.RowMisses).To(Equal(uint64(1)))
		Expect(ctrl.Stats.Activates).To(Equal(uint64(1)))
	})

	It("charges only CAS+burst latency on a row hit", func() {
		ctrl.Read(0, 8)
		missLatency := ctrl.LastAccessLatency

		ctrl.Read(8, 8) // same row (RowSize default 8192), same bank
		hitLatency := ctrl.LastAccessLatency

		Expect(ctrl.Stats.RowHits).To(Equal(uint64(1)))
		Expect(hitLatency).To(BeNumerically("<", missLatency))
	})

	It("charges a precharge when switching rows within the same bank", func() {
		cfg := dram.DefaultConfig(0, 1<<20)
		cfg.NumBanks = 1 // force both rows into the same bank
		ctrl = dram.New(cfg, mem)

		ctrl.Read(0, 8)               // opens row 0
		ctrl.Read(cfg.RowSize, 8)     // different row, same bank: must precharge first

		Expect(ctrl.Stats.Precharges).To(Equal(uint64(1)))
		Expect(ctrl.Stats.RowMisses).To(Equal(uint64(2)))
	})

	It("clears bank state and statistics on Reset", func() {
		ctrl.Read(0, 8)
		ctrl.Reset()
		Expect(ctrl.Stats).To(Equal(dram.Statistics{}))

		ctrl.Read(0, 8)
		Expect(ctrl.Stats.RowMisses).To(Equal(uint64(1))) // row reopens as a fresh miss
	})
})
