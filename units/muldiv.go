package units

import "github.com/willmccallion/rvsim/insts"

// MulUnit implements the "M" extension's multiply operations.
type MulUnit struct{}

// NewMulUnit creates a multiply unit.
func NewMulUnit() *MulUnit {
	return &MulUnit{}
}

// Execute computes a multiply-class result. MULH/MULHSU/MULHU return the
// upper 64 bits of the full 128-bit product under their respective
// signedness interpretations.
func (m *MulUnit) Execute(op insts.Op, op1, op2 uint64) uint64 {
	switch op {
	case insts.OpMUL:
		return op1 * op2
	case insts.OpMULW:
		return signExtend32(uint32(op1) * uint32(op2))
	case insts.OpMULH:
		return uint64(mulHiSigned(int64(op1), int64(op2)))
	case insts.OpMULHU:
		return mulHiUnsigned(op1, op2)
	case insts.OpMULHSU:
		return uint64(mulHiSignedUnsigned(int64(op1), op2))
	default:
		return 0
	}
}

func mulHiUnsigned(a, b uint64) uint64 {
	const mask32 = 0xffffffff
	aLo, aHi := a&mask32, a>>32
	bLo, bHi := b&mask32, b>>32

	lo := aLo * bLo
	mid1 := aHi * bLo
	mid2 := aLo * bHi
	hi := aHi * bHi

	carry := (lo>>32 + mid1&mask32 + mid2&mask32) >> 32
	return hi + mid1>>32 + mid2>>32 + carry
}

func mulHiSigned(a, b int64) int64 {
	hi := int64(mulHiUnsigned(uint64(a), uint64(b)))
	if a < 0 {
		hi -= b
	}
	if b < 0 {
		hi -= a
	}
	return hi
}

func mulHiSignedUnsigned(a int64, b uint64) int64 {
	hi := int64(mulHiUnsigned(uint64(a), b))
	if a < 0 {
		hi -= int64(b)
	}
	return hi
}

// DivUnit implements the "M" extension's divide/remainder operations. Per
// the ISA, division by zero and signed overflow (MinInt/-1) do not trap;
// they produce the specified sentinel results.
type DivUnit struct{}

// NewDivUnit creates a divide unit.
func NewDivUnit() *DivUnit {
	return &DivUnit{}
}

// Execute computes a divide-class result.
func (d *DivUnit) Execute(op insts.Op, op1, op2 uint64) uint64 {
	switch op {
	case insts.OpDIV:
		return divSigned64(int64(op1), int64(op2))
	case insts.OpDIVU:
		return divUnsigned64(op1, op2)
	case insts.OpREM:
		return remSigned64(int64(op1), int64(op2))
	case insts.OpREMU:
		return remUnsigned64(op1, op2)
	case insts.OpDIVW:
		return signExtend32(uint32(divSigned32(int32(op1), int32(op2))))
	case insts.OpDIVUW:
		return signExtend32(divUnsigned32(uint32(op1), uint32(op2)))
	case insts.OpREMW:
		return signExtend32(uint32(remSigned32(int32(op1), int32(op2))))
	case insts.OpREMUW:
		return signExtend32(remUnsigned32(uint32(op1), uint32(op2)))
	default:
		return 0
	}
}

func divSigned64(a, b int64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	if a == minInt64 && b == -1 {
		return uint64(a)
	}
	return uint64(a / b)
}

func divUnsigned64(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

func remSigned64(a, b int64) uint64 {
	if b == 0 {
		return uint64(a)
	}
	if a == minInt64 && b == -1 {
		return 0
	}
	return uint64(a % b)
}

func remUnsigned64(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

const minInt64 = int64(-1) << 63
const minInt32 = int32(-1) << 31

func divSigned32(a, b int32) int32 {
	if b == 0 {
		return -1
	}
	if a == minInt32 && b == -1 {
		return a
	}
	return a / b
}

func divUnsigned32(a, b uint32) uint32 {
	if b == 0 {
		return ^uint32(0)
	}
	return a / b
}

func remSigned32(a, b int32) int32 {
	if b == 0 {
		return a
	}
	if a == minInt32 && b == -1 {
		return 0
	}
	return a % b
}

func remUnsigned32(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}
