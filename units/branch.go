package units

import "github.com/willmccallion/rvsim/insts"

// BranchUnit resolves conditional branches and computes jump/branch
// target addresses. It is stateless, mirroring the teacher's
// register-file-bound BranchUnit but taking already-read operand values
// since resolution happens at EXECUTE against renamed register values,
// not the architectural file directly.
type BranchUnit struct{}

// NewBranchUnit creates a branch unit.
func NewBranchUnit() *BranchUnit {
	return &BranchUnit{}
}

// Taken evaluates a conditional branch's condition.
func (b *BranchUnit) Taken(op insts.Op, rs1, rs2 uint64) bool {
	switch op {
	case insts.OpBEQ:
		return rs1 == rs2
	case insts.OpBNE:
		return rs1 != rs2
	case insts.OpBLT:
		return int64(rs1) < int64(rs2)
	case insts.OpBGE:
		return int64(rs1) >= int64(rs2)
	case insts.OpBLTU:
		return rs1 < rs2
	case insts.OpBGEU:
		return rs1 >= rs2
	default:
		return false
	}
}

// Target computes a branch or JAL's PC-relative target.
func (b *BranchUnit) Target(pc uint64, imm int64) uint64 {
	return uint64(int64(pc) + imm)
}

// JALRTarget computes JALR's target: (rs1 + imm) with bit 0 cleared.
func (b *BranchUnit) JALRTarget(rs1 uint64, imm int64) uint64 {
	return uint64(int64(rs1)+imm) &^ 1
}
