package units_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/willmccallion/rvsim/insts"
	"github.com/willmccallion/rvsim/units"
)

func TestUnits(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Units Suite")
}

var _ = Describe("ALU", func() {
	var alu *units.ALU

	BeforeEach(func() {
		alu = units.NewALU()
	})

	It("adds two operands", func() {
		Expect(alu.Execute(insts.OpADD, 2, 3)).To(Equal(uint64(5)))
	})

	It("computes signed less-than", func() {
		Expect(alu.Execute(insts.OpSLT, ^uint64(0), 1)).To(Equal(uint64(1))) // -1 < 1
	})

	It("computes unsigned less-than", func() {
		Expect(alu.Execute(insts.OpSLTU, ^uint64(0), 1)).To(Equal(uint64(0))) // huge < 1 is false
	})

	It("arithmetic-shifts right preserving sign", func() {
		Expect(alu.Execute(insts.OpSRA, ^uint64(0), 4)).To(Equal(^uint64(0)))
	})

	It("sign-extends a 32-bit ADDW result", func() {
		// 0x7fffffff + 1 wraps to a negative int32, sign-extended to 64 bits
		got := alu.Execute(insts.OpADDW, 0x7fffffff, 1)
		Expect(got).To(Equal(uint64(0xffffffff80000000)))
	})

	It("masks shift amounts to the low 5 bits for *W ops", func() {
		got := alu.Execute(insts.OpSLLW, 1, 32) // shift amount 32 & 0x1f == 0
		Expect(got).To(Equal(uint64(1)))
	})
})

var _ = Describe("MulUnit", func() {
	var mul *units.MulUnit

	BeforeEach(func() {
		mul = units.NewMulUnit()
	})

	It("computes the low 64 bits of a product", func() {
		Expect(mul.Execute(insts.OpMUL, 6, 7)).To(Equal(uint64(42)))
	})

	It("computes the signed high half of a 128-bit product", func() {
		// (-1) * (-1) = 1, whose high 64 bits are all zero.
		Expect(mul.Execute(insts.OpMULH, ^uint64(0), ^uint64(0))).To(Equal(uint64(0)))
	})

	It("computes the unsigned high half of a 128-bit product", func() {
		// max*max overflows into a nonzero high half.
		got := mul.Execute(insts.OpMULHU, ^uint64(0), ^uint64(0))
		Expect(got).To(Equal(^uint64(0) - 1))
	})

	It("sign-extends a 32-bit MULW result", func() {
		got := mul.Execute(insts.OpMULW, 0x10000, 0x10000) // overflows int32
		Expect(got).To(Equal(uint64(0)))
	})
})

var _ = Describe("DivUnit", func() {
	var div *units.DivUnit

	BeforeEach(func() {
		div = units.NewDivUnit()
	})

	It("divides two positive operands", func() {
		Expect(div.Execute(insts.OpDIV, 10, 3)).To(Equal(uint64(3)))
	})

	It("returns all-ones for division by zero rather than trapping", func() {
		Expect(div.Execute(insts.OpDIV, 10, 0)).To(Equal(^uint64(0)))
		Expect(div.Execute(insts.OpDIVU, 10, 0)).To(Equal(^uint64(0)))
	})

	It("returns the dividend unchanged for REM by zero", func() {
		Expect(div.Execute(insts.OpREM, 10, 0)).To(Equal(uint64(10)))
	})

	It("handles the MinInt64/-1 signed overflow sentinel", func() {
		minInt64 := uint64(1) << 63
		Expect(div.Execute(insts.OpDIV, minInt64, ^uint64(0))).To(Equal(minInt64))
		Expect(div.Execute(insts.OpREM, minInt64, ^uint64(0))).To(Equal(uint64(0)))
	})

	It("computes unsigned remainder", func() {
		Expect(div.Execute(insts.OpREMU, 10, 3)).To(Equal(uint64(1)))
	})
})

var _ = Describe("BranchUnit", func() {
	var bu *units.BranchUnit

	BeforeEach(func() {
		bu = units.NewBranchUnit()
	})

	It("evaluates BEQ/BNE", func() {
		Expect(bu.Taken(insts.OpBEQ, 5, 5)).To(BeTrue())
		Expect(bu.Taken(insts.OpBNE, 5, 5)).To(BeFalse())
	})

	It("evaluates signed comparisons", func() {
		Expect(bu.Taken(insts.OpBLT, ^uint64(0), 1)).To(BeTrue()) // -1 < 1
		Expect(bu.Taken(insts.OpBGE, 1, ^uint64(0))).To(BeTrue()) // 1 >= -1
	})

	It("evaluates unsigned comparisons", func() {
		Expect(bu.Taken(insts.OpBLTU, ^uint64(0), 1)).To(BeFalse()) // huge < 1 is false
		Expect(bu.Taken(insts.OpBGEU, ^uint64(0), 1)).To(BeTrue())
	})

	It("computes a PC-relative target", func() {
		Expect(bu.Target(0x1000, 8)).To(Equal(uint64(0x1008)))
		Expect(bu.Target(0x1000, -8)).To(Equal(uint64(0xff8)))
	})

	It("clears bit 0 of a JALR target", func() {
		Expect(bu.JALRTarget(0x1001, 4)).To(Equal(uint64(0x1004)))
	})
})

var _ = Describe("AddressGen and load/store widths", func() {
	It("computes base+imm effective addresses", func() {
		g := units.NewAddressGen()
		Expect(g.Effective(0x1000, -4)).To(Equal(uint64(0xffc)))
	})

	It("sign-extends narrow signed loads", func() {
		Expect(units.ExtendLoad(insts.OpLB, 0xff)).To(Equal(^uint64(0)))
		Expect(units.ExtendLoad(insts.OpLH, 0xffff)).To(Equal(^uint64(0)))
		Expect(units.ExtendLoad(insts.OpLW, 0xffffffff)).To(Equal(^uint64(0)))
	})

	It("zero-extends unsigned loads", func() {
		Expect(units.ExtendLoad(insts.OpLBU, 0xff)).To(Equal(uint64(0xff)))
		Expect(units.ExtendLoad(insts.OpLWU, 0xffffffff)).To(Equal(uint64(0xffffffff)))
	})

	It("passes LD through unchanged", func() {
		Expect(units.ExtendLoad(insts.OpLD, 0x1234)).To(Equal(uint64(0x1234)))
	})

	It("reports store widths in bytes", func() {
		Expect(units.StoreWidth(insts.OpSB)).To(Equal(1))
		Expect(units.StoreWidth(insts.OpSH)).To(Equal(2))
		Expect(units.StoreWidth(insts.OpSW)).To(Equal(4))
		Expect(units.StoreWidth(insts.OpSD)).To(Equal(8))
	})

	It("reports load widths in bytes", func() {
		Expect(units.LoadWidth(insts.OpLB)).To(Equal(1))
		Expect(units.LoadWidth(insts.OpLH)).To(Equal(2))
		Expect(units.LoadWidth(insts.OpLW)).To(Equal(4))
		Expect(units.LoadWidth(insts.OpLD)).To(Equal(8))
	})
})
