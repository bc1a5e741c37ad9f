package arch_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/willmccallion/rvsim/addr"
	"github.com/willmccallion/rvsim/arch"
)

func TestArch(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Arch Suite")
}

var _ = Describe("RegFile", func() {
	It("hardwires x0 to zero regardless of writes", func() {
		var rf arch.RegFile
		rf.WriteReg(0, 0xdeadbeef)
		Expect(rf.ReadReg(0)).To(Equal(uint64(0)))
	})

	It("round-trips a write through a read on any other register", func() {
		var rf arch.RegFile
		rf.WriteReg(5, 42)
		Expect(rf.ReadReg(5)).To(Equal(uint64(42)))
	})
})

var _ = Describe("FPRegFile", func() {
	It("round-trips a double-precision value", func() {
		var fp arch.FPRegFile
		fp.WriteDouble(1, 3.5)
		Expect(fp.ReadDouble(1)).To(Equal(3.5))
	})

	It("NaN-boxes a single-precision write so ReadSingle recovers it", func() {
		var fp arch.FPRegFile
		fp.WriteSingle(2, 1.5)
		Expect(fp.ReadSingle(2)).To(Equal(float32(1.5)))
	})

	It("reads a non-NaN-boxed register as the canonical quiet NaN", func() {
		var fp arch.FPRegFile
		fp.WriteDouble(3, 1.0) // a real double, not NaN-boxed as a single
		got := fp.ReadSingle(3)
		Expect(got != got).To(BeTrue()) // NaN != NaN
	})

	It("round-trips raw bits independent of the double/single views", func() {
		var fp arch.FPRegFile
		fp.WriteRawBits(4, 0x1234567890abcdef)
		Expect(fp.RawBits(4)).To(Equal(uint64(0x1234567890abcdef)))
	})
})

var _ = Describe("Memory", func() {
	It("round-trips bytes at every granularity", func() {
		mem := arch.NewMemory(0x1000, 0x100)
		mem.Write8(0x1000, 0xab)
		Expect(mem.Read8(0x1000)).To(Equal(uint8(0xab)))

		mem.Write32(0x1008, 0xdeadbeef)
		Expect(mem.Read32(0x1008)).To(Equal(uint32(0xdeadbeef)))

		mem.Write64(0x1010, 0x1122334455667788)
		Expect(mem.Read64(0x1010)).To(Equal(uint64(0x1122334455667788)))
	})

	It("offsets addresses relative to its configured base", func() {
		mem := arch.NewMemory(0x8000_0000, 0x1000)
		Expect(mem.Contains(0x8000_0000)).To(BeTrue())
		Expect(mem.Contains(0x7fff_ffff)).To(BeFalse())
		Expect(mem.Contains(0x8000_1000)).To(BeFalse())
	})

	It("copies program bytes in via LoadProgram", func() {
		mem := arch.NewMemory(0, 0x100)
		mem.LoadProgram(0x10, []byte{1, 2, 3})
		Expect(mem.ReadBlock(0x10, 3)).To(Equal([]byte{1, 2, 3}))
	})
})

var _ = Describe("CSRFile", func() {
	It("reports which CSRs are implemented", func() {
		csr := arch.NewCSRFile()
		Expect(csr.Implemented(arch.CSRMcause)).To(BeTrue())
		Expect(csr.Implemented(0x999)).To(BeFalse())
	})

	It("pre-populates misa with RV64IMAFDCSU bits set", func() {
		csr := arch.NewCSRFile()
		misa := csr.Read(arch.CSRMisa)
		Expect(misa >> 62).To(Equal(uint64(2))) // XLEN=64
		Expect(misa & (1 << ('I' - 'A'))).NotTo(BeZero())
		Expect(misa & (1 << ('M' - 'A'))).NotTo(BeZero())
	})

	It("shadows sstatus as a masked view of mstatus", func() {
		csr := arch.NewCSRFile()
		csr.Write(arch.CSRSstatus, ^uint64(0))
		mstatus := csr.Read(arch.CSRMstatus)
		Expect(mstatus).NotTo(Equal(uint64(0)))
		Expect(csr.Read(arch.CSRSstatus)).To(Equal(mstatus))
	})

	It("records cause/epc/tval and computes a vectored M-mode trap target", func() {
		csr := arch.NewCSRFile()
		csr.Write(arch.CSRMtvec, 0x8000_0000)

		target := csr.EnterTrap(addr.PrivM, addr.PrivU, 0x1000, addr.Trap{
			Cause: addr.CauseIllegalInstruction, Tval: 0xbad,
		})

		Expect(target).To(Equal(uint64(0x8000_0000)))
		Expect(csr.Read(arch.CSRMepc)).To(Equal(uint64(0x1000)))
		Expect(csr.Read(arch.CSRMcause)).To(Equal(uint64(addr.CauseIllegalInstruction)))
		Expect(csr.Read(arch.CSRMtval)).To(Equal(uint64(0xbad)))
	})

	It("restores PC and privilege on Return after an M-mode trap", func() {
		csr := arch.NewCSRFile()
		csr.EnterTrap(addr.PrivM, addr.PrivU, 0x2000, addr.Trap{Cause: addr.CauseBreakpoint})

		pc, priv := csr.Return(true)
		Expect(pc).To(Equal(uint64(0x2000)))
		Expect(priv).To(Equal(addr.PrivU))
	})
})
