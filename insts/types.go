package insts

// Op represents a decoded RISC-V operation, independent of its original
// encoding width (compressed instructions decode to the same Op values as
// their canonical 32-bit form).
type Op uint16

// Operations, grouped by functional unit.
const (
	OpUnknown Op = iota

	// Integer register-register and register-immediate ALU ops.
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpADDW
	OpSUBW
	OpSLLW
	OpSRLW
	OpSRAW
	OpLUI
	OpAUIPC

	// Branches and jumps.
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpJAL
	OpJALR

	// Loads and stores.
	OpLB
	OpLH
	OpLW
	OpLD
	OpLBU
	OpLHU
	OpLWU
	OpSB
	OpSH
	OpSW
	OpSD

	// Multiply/divide ("M").
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU
	OpMULW
	OpDIVW
	OpDIVUW
	OpREMW
	OpREMUW

	// Atomics ("A").
	OpLR
	OpSC
	OpAMOSWAP
	OpAMOADD
	OpAMOXOR
	OpAMOAND
	OpAMOOR
	OpAMOMIN
	OpAMOMAX
	OpAMOMINU
	OpAMOMAXU

	// Floating point loads/stores.
	OpFLW
	OpFLD
	OpFSW
	OpFSD

	// Floating-point arithmetic ("F"/"D").
	OpFADD
	OpFSUB
	OpFMUL
	OpFDIV
	OpFSQRT
	OpFMIN
	OpFMAX
	OpFSGNJ
	OpFSGNJN
	OpFSGNJX
	OpFMADD
	OpFMSUB
	OpFNMADD
	OpFNMSUB
	OpFEQ
	OpFLT
	OpFLE
	OpFCLASS
	OpFCVTToInt
	OpFCVTFromInt
	OpFCVTFtoF
	OpFMVXtoF
	OpFMVFtoX

	// CSR.
	OpCSRRW
	OpCSRRS
	OpCSRRC
	OpCSRRWI
	OpCSRRSI
	OpCSRRCI

	// SYSTEM / misc.
	OpECALL
	OpEBREAK
	OpMRET
	OpSRET
	OpWFI
	OpSFENCEVMA
	OpFENCE
	OpFENCEI
)

// Format identifies the instruction's canonical 32-bit encoding shape,
// which determines how immediates and operand fields are extracted.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatR              // register-register
	FormatR4             // fused multiply-add (rs1, rs2, rs3, rd)
	FormatI              // register-immediate, loads, JALR
	FormatS              // stores
	FormatB              // conditional branches
	FormatU              // LUI/AUIPC
	FormatJ              // JAL
	FormatAMO            // atomic memory operations
	FormatCSR            // Zicsr
	FormatFence          // FENCE/FENCE.I
	FormatSystem         // ECALL/EBREAK/xRET/WFI/SFENCE.VMA
)

// Class is the dispatch class used by RENAME/ISSUE to pick a functional
// unit and by the statistics collector to bucket retired instructions.
type Class uint8

const (
	ClassUnknown Class = iota
	ClassALU
	ClassBranch
	ClassLoad
	ClassStore
	ClassMul
	ClassDiv
	ClassFPU
	ClassCSR
	ClassSystem
)

// FPWidth distinguishes single- and double-precision floating point
// operations sharing the same Op.
type FPWidth uint8

const (
	FPSingle FPWidth = iota
	FPDouble
)

// RoundMode mirrors the RISC-V rm encoding, either taken from the
// instruction or (RMDynamic) read from frm at execute time.
type RoundMode uint8

const (
	RMRNE     RoundMode = 0 // round to nearest, ties to even
	RMRTZ     RoundMode = 1 // round toward zero
	RMRDN     RoundMode = 2 // round down (toward -inf)
	RMRUP     RoundMode = 3 // round up (toward +inf)
	RMRMM     RoundMode = 4 // round to nearest, ties to max magnitude
	RMDynamic RoundMode = 7 // use frm
)

// Instruction is the uniform decoded form produced by Decode, independent
// of whether the original encoding was 16 or 32 bits wide.
type Instruction struct {
	PC     uint64 // address this instruction was fetched from
	Raw    uint32 // original encoding (zero-extended to 32 bits for RVC)
	Length uint8  // 2 or 4
	Op     Op
	Format Format
	Class  Class

	Rd, Rs1, Rs2, Rs3 uint8 // integer/float register indices, as applicable
	IsFPRd            bool
	IsFPRs1           bool
	IsFPRs2           bool
	IsFPRs3           bool

	Imm int64 // sign-extended immediate

	FPWidth   FPWidth
	RoundMode RoundMode

	CSRAddr uint16 // CSR address for Zicsr ops
	CSRImm  uint8  // zimm for CSRR*I variants

	AqRl uint8 // aq/rl bits for A-extension ops

	// LatencyHint is a rough static latency estimate the decoder can supply
	// before the functional unit assigns a precise one; unused by callers
	// that have their own latency table (the pipeline uses execLatency).
	LatencyHint uint8

	Illegal bool
}

// IsBranch reports whether this is a conditional branch.
func (i *Instruction) IsBranch() bool {
	switch i.Op {
	case OpBEQ, OpBNE, OpBLT, OpBGE, OpBLTU, OpBGEU:
		return true
	default:
		return false
	}
}

// IsJump reports whether this unconditionally redirects control flow.
func (i *Instruction) IsJump() bool {
	return i.Op == OpJAL || i.Op == OpJALR
}

// IsAMO reports whether this is an atomic memory operation (including
// LR/SC).
func (i *Instruction) IsAMO() bool {
	return i.Format == FormatAMO
}

// WritesRd reports whether the instruction writes an integer or floating
// point destination register (x0/the absence of Rd is handled by callers).
func (i *Instruction) WritesRd() bool {
	switch i.Class {
	case ClassBranch, ClassStore:
		return false
	case ClassSystem:
		return i.Op == OpCSRRW || i.Op == OpCSRRS || i.Op == OpCSRRC ||
			i.Op == OpCSRRWI || i.Op == OpCSRRSI || i.Op == OpCSRRCI
	default:
		return true
	}
}
