// Package units implements the functional units a RISC-V core dispatches
// decoded instructions to: the integer ALU, multiply/divide, atomics,
// branch resolution, load/store address generation, and the FPU.
package units

import "github.com/willmccallion/rvsim/insts"

// ALU implements RV64I's register-register and register-immediate integer
// operations. It is a pure function of its operands; it holds no state of
// its own, unlike the teacher's register-file-bound ALU, because the
// timing pipeline's issue stage supplies already-read operand values
// rather than register indices.
type ALU struct{}

// NewALU creates an ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Execute computes the result of an ALU-class instruction given its two
// (already sign/zero-extended as needed) operands. For the W-suffixed
// 32-bit ops, op1/op2 are the full 64-bit register contents; Execute
// truncates and sign-extends as RV64I specifies.
func (a *ALU) Execute(op insts.Op, op1, op2 uint64) uint64 {
	switch op {
	case insts.OpADD:
		return op1 + op2
	case insts.OpSUB:
		return op1 - op2
	case insts.OpSLL:
		return op1 << (op2 & 0x3f)
	case insts.OpSLT:
		if int64(op1) < int64(op2) {
			return 1
		}
		return 0
	case insts.OpSLTU:
		if op1 < op2 {
			return 1
		}
		return 0
	case insts.OpXOR:
		return op1 ^ op2
	case insts.OpSRL:
		return op1 >> (op2 & 0x3f)
	case insts.OpSRA:
		return uint64(int64(op1) >> (op2 & 0x3f))
	case insts.OpOR:
		return op1 | op2
	case insts.OpAND:
		return op1 & op2
	case insts.OpADDW:
		return signExtend32(uint32(op1) + uint32(op2))
	case insts.OpSUBW:
		return signExtend32(uint32(op1) - uint32(op2))
	case insts.OpSLLW:
		return signExtend32(uint32(op1) << (op2 & 0x1f))
	case insts.OpSRLW:
		return signExtend32(uint32(op1) >> (op2 & 0x1f))
	case insts.OpSRAW:
		return uint64(int64(int32(op1) >> (op2 & 0x1f)))
	case insts.OpLUI:
		return uint64(int64(int32(op2)))
	default:
		return 0
	}
}

func signExtend32(v uint32) uint64 {
	return uint64(int64(int32(v)))
}
