package insts

// Decoder decodes RV64IMAFDC instruction words into Instruction values.
// It is stateless and safe for concurrent use; state-free decoding also
// makes it trivially deterministic, which the round-trip tests in
// decoder_test.go rely on.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes the instruction at pc given its first two bytes (to
// distinguish 16- from 32-bit encodings) and, if needed, the following two
// bytes. Callers (the FETCH1/FETCH2 pipeline stages) supply exactly the
// bytes the instruction needs; fetchLow32 holds up to 4 bytes already
// assembled into a little-endian uint32, which is sufficient for both
// forms since a 32-bit instruction never needs more than its own 4 bytes
// and a 16-bit one only examines the low 16 bits.
func (d *Decoder) Decode(fetchLow32 uint32, pc uint64) *Instruction {
	if fetchLow32&0x3 != 0x3 {
		return d.decodeCompressed(uint16(fetchLow32), pc)
	}
	return d.decode32(fetchLow32, pc)
}

func bits(word uint32, hi, lo uint) uint32 {
	mask := uint32(1)<<(hi-lo+1) - 1
	return (word >> lo) & mask
}

func signExtend(value uint64, bit uint) int64 {
	shift := 63 - bit
	return int64(value<<shift) >> shift
}

// decode32 decodes a canonical 32-bit RV64 instruction word.
func (d *Decoder) decode32(word uint32, pc uint64) *Instruction {
	inst := &Instruction{PC: pc, Raw: word, Length: 4}

	opcode := bits(word, 6, 0)
	funct3 := uint8(bits(word, 14, 12))
	funct7 := uint8(bits(word, 31, 25))
	rd := uint8(bits(word, 11, 7))
	rs1 := uint8(bits(word, 19, 15))
	rs2 := uint8(bits(word, 24, 20))

	switch opcode {
	case 0b0110111: // LUI
		inst.Op, inst.Format, inst.Class = OpLUI, FormatU, ClassALU
		inst.Rd = rd
		inst.Imm = int64(int32(word & 0xfffff000))

	case 0b0010111: // AUIPC
		inst.Op, inst.Format, inst.Class = OpAUIPC, FormatU, ClassALU
		inst.Rd = rd
		inst.Imm = int64(int32(word & 0xfffff000))

	case 0b1101111: // JAL
		inst.Op, inst.Format, inst.Class = OpJAL, FormatJ, ClassBranch
		inst.Rd = rd
		imm := (bits(word, 31, 31) << 20) | (bits(word, 19, 12) << 12) |
			(bits(word, 20, 20) << 11) | (bits(word, 30, 21) << 1)
		inst.Imm = signExtend(uint64(imm), 20)

	case 0b1100111: // JALR
		inst.Op, inst.Format, inst.Class = OpJALR, FormatI, ClassBranch
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)

	case 0b1100011: // branches
		inst.Format, inst.Class = FormatB, ClassBranch
		inst.Rs1, inst.Rs2 = rs1, rs2
		imm := (bits(word, 31, 31) << 12) | (bits(word, 7, 7) << 11) |
			(bits(word, 30, 25) << 5) | (bits(word, 11, 8) << 1)
		inst.Imm = signExtend(uint64(imm), 12)
		switch funct3 {
		case 0b000:
			inst.Op = OpBEQ
		case 0b001:
			inst.Op = OpBNE
		case 0b100:
			inst.Op = OpBLT
		case 0b101:
			inst.Op = OpBGE
		case 0b110:
			inst.Op = OpBLTU
		case 0b111:
			inst.Op = OpBGEU
		default:
			inst.Illegal = true
		}

	case 0b0000011: // loads
		inst.Format, inst.Class = FormatI, ClassLoad
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
		switch funct3 {
		case 0b000:
			inst.Op = OpLB
		case 0b001:
			inst.Op = OpLH
		case 0b010:
			inst.Op = OpLW
		case 0b011:
			inst.Op = OpLD
		case 0b100:
			inst.Op = OpLBU
		case 0b101:
			inst.Op = OpLHU
		case 0b110:
			inst.Op = OpLWU
		default:
			inst.Illegal = true
		}

	case 0b0100011: // stores
		inst.Format, inst.Class = FormatS, ClassStore
		inst.Rs1, inst.Rs2 = rs1, rs2
		imm := (bits(word, 31, 25) << 5) | bits(word, 11, 7)
		inst.Imm = signExtend(uint64(imm), 11)
		switch funct3 {
		case 0b000:
			inst.Op = OpSB
		case 0b001:
			inst.Op = OpSH
		case 0b010:
			inst.Op = OpSW
		case 0b011:
			inst.Op = OpSD
		default:
			inst.Illegal = true
		}

	case 0b0010011: // ALU-immediate
		inst.Format, inst.Class = FormatI, ClassALU
		inst.Rd, inst.Rs1 = rd, rs1
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
		switch funct3 {
		case 0b000:
			inst.Op = OpADD // ADDI
		case 0b010:
			inst.Op = OpSLT // SLTI
		case 0b011:
			inst.Op = OpSLTU // SLTIU
		case 0b100:
			inst.Op = OpXOR // XORI
		case 0b110:
			inst.Op = OpOR // ORI
		case 0b111:
			inst.Op = OpAND // ANDI
		case 0b001:
			inst.Op = OpSLL // SLLI
			inst.Imm = int64(bits(word, 25, 20))
		case 0b101:
			inst.Imm = int64(bits(word, 25, 20))
			if bits(word, 30, 30) == 1 {
				inst.Op = OpSRA // SRAI
			} else {
				inst.Op = OpSRL // SRLI
			}
		default:
			inst.Illegal = true
		}

	case 0b0111011: // ALU register-register and M-extension, 32-bit W forms
		inst.Format = FormatR
		inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
		if funct7 == 0b0000001 {
			inst.Class = ClassDiv
			switch funct3 {
			case 0b000:
				inst.Op, inst.Class = OpMULW, ClassMul
			case 0b100:
				inst.Op = OpDIVW
			case 0b101:
				inst.Op = OpDIVUW
			case 0b110:
				inst.Op = OpREMW
			case 0b111:
				inst.Op = OpREMUW
			default:
				inst.Illegal = true
			}
			break
		}
		inst.Class = ClassALU
		switch funct3 {
		case 0b000:
			if funct7 == 0b0100000 {
				inst.Op = OpSUBW
			} else {
				inst.Op = OpADDW
			}
		case 0b001:
			inst.Op = OpSLLW
		case 0b101:
			if bits(word, 30, 30) == 1 {
				inst.Op = OpSRAW
			} else {
				inst.Op = OpSRLW
			}
		default:
			inst.Illegal = true
		}

	case 0b0011011: // ADDIW/SLLIW/SRLIW/SRAIW
		inst.Format, inst.Class = FormatI, ClassALU
		inst.Rd, inst.Rs1 = rd, rs1
		switch funct3 {
		case 0b000:
			inst.Op = OpADDW
			inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
		case 0b001:
			inst.Op = OpSLLW
			inst.Imm = int64(bits(word, 24, 20))
		case 0b101:
			inst.Imm = int64(bits(word, 24, 20))
			if bits(word, 30, 30) == 1 {
				inst.Op = OpSRAW
			} else {
				inst.Op = OpSRLW
			}
		default:
			inst.Illegal = true
		}

	case 0b0110011: // ALU register-register / M-extension
		inst.Format = FormatR
		inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
		if funct7 == 0b0000001 {
			inst.Class = decodeMClass(funct3)
			inst.Op = decodeMOp(funct3)
		} else {
			inst.Class = ClassALU
			inst.Op = decodeAluRegOp(funct3, funct7)
		}

	case 0b0101111: // A-extension
		inst.Format, inst.Class = FormatAMO, ClassALU
		inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
		inst.AqRl = uint8(bits(word, 26, 25))
		width := funct3 // 010 = word, 011 = doubleword
		inst.FPWidth = FPSingle
		if width == 0b011 {
			inst.FPWidth = FPDouble
		}
		switch bits(word, 31, 27) {
		case 0b00010:
			inst.Op = OpLR
			inst.Class = ClassLoad
		case 0b00011:
			inst.Op = OpSC
			inst.Class = ClassStore
		case 0b00001:
			inst.Op = OpAMOSWAP
		case 0b00000:
			inst.Op = OpAMOADD
		case 0b00100:
			inst.Op = OpAMOXOR
		case 0b01100:
			inst.Op = OpAMOAND
		case 0b01000:
			inst.Op = OpAMOOR
		case 0b10000:
			inst.Op = OpAMOMIN
		case 0b10100:
			inst.Op = OpAMOMAX
		case 0b11000:
			inst.Op = OpAMOMINU
		case 0b11100:
			inst.Op = OpAMOMAXU
		default:
			inst.Illegal = true
		}

	case 0b0000111: // FLW/FLD
		inst.Format, inst.Class = FormatI, ClassFPU
		inst.Rd, inst.Rs1 = rd, rs1
		inst.IsFPRd = true
		inst.Imm = signExtend(uint64(bits(word, 31, 20)), 11)
		if funct3 == 0b010 {
			inst.Op, inst.FPWidth = OpFLW, FPSingle
		} else {
			inst.Op, inst.FPWidth = OpFLD, FPDouble
		}

	case 0b0100111: // FSW/FSD
		inst.Format, inst.Class = FormatS, ClassFPU
		inst.Rs1, inst.Rs2 = rs1, rs2
		inst.IsFPRs2 = true
		imm := (bits(word, 31, 25) << 5) | bits(word, 11, 7)
		inst.Imm = signExtend(uint64(imm), 11)
		if funct3 == 0b010 {
			inst.Op, inst.FPWidth = OpFSW, FPSingle
		} else {
			inst.Op, inst.FPWidth = OpFSD, FPDouble
		}

	case 0b1000011, 0b1000111, 0b1001011, 0b1001111: // FMADD/FMSUB/FNMSUB/FNMADD
		inst.Format, inst.Class = FormatR4, ClassFPU
		inst.Rd, inst.Rs1, inst.Rs2, inst.Rs3 = rd, rs1, rs2, uint8(bits(word, 31, 27))
		inst.IsFPRd, inst.IsFPRs1, inst.IsFPRs2, inst.IsFPRs3 = true, true, true, true
		inst.RoundMode = RoundMode(funct3)
		inst.FPWidth = fpWidthFromFmt(bits(word, 26, 25))
		switch opcode {
		case 0b1000011:
			inst.Op = OpFMADD
		case 0b1000111:
			inst.Op = OpFMSUB
		case 0b1001011:
			inst.Op = OpFNMSUB
		case 0b1001111:
			inst.Op = OpFNMADD
		}

	case 0b1010011: // FP-ALU
		decodeFPAlu(inst, word, rd, rs1, rs2, funct3, funct7)

	case 0b0001111: // FENCE/FENCE.I
		inst.Format, inst.Class = FormatFence, ClassSystem
		if funct3 == 0b001 {
			inst.Op = OpFENCEI
		} else {
			inst.Op = OpFENCE
		}

	case 0b1110011: // SYSTEM: ECALL/EBREAK/xRET/WFI/SFENCE.VMA/CSR
		decodeSystem(inst, word, rd, rs1, funct3)

	default:
		inst.Illegal = true
	}

	return inst
}

func fpWidthFromFmt(fmt uint32) FPWidth {
	if fmt == 0b01 {
		return FPDouble
	}
	return FPSingle
}

func decodeAluRegOp(funct3, funct7 uint8) Op {
	switch funct3 {
	case 0b000:
		if funct7 == 0b0100000 {
			return OpSUB
		}
		return OpADD
	case 0b001:
		return OpSLL
	case 0b010:
		return OpSLT
	case 0b011:
		return OpSLTU
	case 0b100:
		return OpXOR
	case 0b101:
		if funct7 == 0b0100000 {
			return OpSRA
		}
		return OpSRL
	case 0b110:
		return OpOR
	case 0b111:
		return OpAND
	default:
		return OpUnknown
	}
}

func decodeMClass(funct3 uint8) Class {
	switch funct3 {
	case 0b000, 0b001, 0b010, 0b011:
		return ClassMul
	default:
		return ClassDiv
	}
}

func decodeMOp(funct3 uint8) Op {
	switch funct3 {
	case 0b000:
		return OpMUL
	case 0b001:
		return OpMULH
	case 0b010:
		return OpMULHSU
	case 0b011:
		return OpMULHU
	case 0b100:
		return OpDIV
	case 0b101:
		return OpDIVU
	case 0b110:
		return OpREM
	case 0b111:
		return OpREMU
	default:
		return OpUnknown
	}
}

func decodeFPAlu(inst *Instruction, word uint32, rd, rs1, rs2, funct3, funct7 uint8) {
	inst.Format, inst.Class = FormatR, ClassFPU
	inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
	inst.RoundMode = RoundMode(funct3)
	fmtBits := funct7 & 0b11
	inst.FPWidth = fpWidthFromFmt(uint32(fmtBits))

	switch funct7 >> 2 {
	case 0b00000:
		inst.Op = OpFADD
		inst.IsFPRd, inst.IsFPRs1, inst.IsFPRs2 = true, true, true
	case 0b00001:
		inst.Op = OpFSUB
		inst.IsFPRd, inst.IsFPRs1, inst.IsFPRs2 = true, true, true
	case 0b00010:
		inst.Op = OpFMUL
		inst.IsFPRd, inst.IsFPRs1, inst.IsFPRs2 = true, true, true
	case 0b00011:
		inst.Op = OpFDIV
		inst.IsFPRd, inst.IsFPRs1, inst.IsFPRs2 = true, true, true
	case 0b01011:
		inst.Op = OpFSQRT
		inst.IsFPRd, inst.IsFPRs1 = true, true
	case 0b00100:
		inst.IsFPRd, inst.IsFPRs1, inst.IsFPRs2 = true, true, true
		switch funct3 {
		case 0b000:
			inst.Op = OpFSGNJ
		case 0b001:
			inst.Op = OpFSGNJN
		case 0b010:
			inst.Op = OpFSGNJX
		}
	case 0b00101:
		inst.IsFPRd, inst.IsFPRs1, inst.IsFPRs2 = true, true, true
		if funct3 == 0b000 {
			inst.Op = OpFMIN
		} else {
			inst.Op = OpFMAX
		}
	case 0b10100:
		inst.IsFPRs1, inst.IsFPRs2 = true, true
		switch funct3 {
		case 0b000:
			inst.Op = OpFLE
		case 0b001:
			inst.Op = OpFLT
		case 0b010:
			inst.Op = OpFEQ
		}
	case 0b11100:
		inst.IsFPRs1 = true
		if funct3 == 0b001 {
			inst.Op = OpFCLASS
		} else {
			inst.Op = OpFMVFtoX
		}
	case 0b11110:
		inst.IsFPRd = true
		inst.Op = OpFMVXtoF
	case 0b11000:
		inst.IsFPRs1 = true
		inst.Op = OpFCVTToInt
	case 0b11010:
		inst.IsFPRd = true
		inst.Op = OpFCVTFromInt
	case 0b01000:
		inst.IsFPRd, inst.IsFPRs1 = true, true
		inst.Op = OpFCVTFtoF
		if rs2 == 0 {
			inst.FPWidth = FPDouble // converting to double
		} else {
			inst.FPWidth = FPSingle
		}
	default:
		inst.Illegal = true
	}
}

func decodeSystem(inst *Instruction, word uint32, rd, rs1, funct3 uint8) {
	if funct3 == 0 {
		inst.Format, inst.Class = FormatSystem, ClassSystem
		imm12 := bits(word, 31, 20)
		switch imm12 {
		case 0x000:
			inst.Op = OpECALL
		case 0x001:
			inst.Op = OpEBREAK
		case 0x302:
			inst.Op = OpMRET
		case 0x102:
			inst.Op = OpSRET
		case 0x105:
			inst.Op = OpWFI
		default:
			if bits(word, 31, 25) == 0b0001001 {
				inst.Op = OpSFENCEVMA
				inst.Rs1 = rs1
				inst.Rs2 = uint8(bits(word, 24, 20))
			} else {
				inst.Illegal = true
			}
		}
		return
	}

	inst.Format, inst.Class = FormatCSR, ClassCSR
	inst.Rd = rd
	inst.CSRAddr = uint16(bits(word, 31, 20))
	switch funct3 {
	case 0b001:
		inst.Op, inst.Rs1 = OpCSRRW, rs1
	case 0b010:
		inst.Op, inst.Rs1 = OpCSRRS, rs1
	case 0b011:
		inst.Op, inst.Rs1 = OpCSRRC, rs1
	case 0b101:
		inst.Op, inst.CSRImm = OpCSRRWI, rs1
	case 0b110:
		inst.Op, inst.CSRImm = OpCSRRSI, rs1
	case 0b111:
		inst.Op, inst.CSRImm = OpCSRRCI, rs1
	default:
		inst.Illegal = true
	}
}
