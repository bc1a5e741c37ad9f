package insts

// decodeCompressed expands a 16-bit RVC instruction to its canonical
// semantics, reusing the same Op/Format/Class vocabulary as decode32 so
// that every later pipeline stage stays oblivious to the original
// encoding width. Coverage is the common RV64GC compressed subset that a
// standard toolchain actually emits (quadrants C0/C1/C2); rarer or
// reserved encodings decode to Illegal rather than panicking, since a
// fetched word off a stale branch prediction can legitimately contain
// garbage.
func (d *Decoder) decodeCompressed(word uint16, pc uint64) *Instruction {
	inst := &Instruction{PC: pc, Raw: uint32(word), Length: 2}

	op := word & 0x3
	funct3 := (word >> 13) & 0x7

	switch op {
	case 0b00:
		decodeC0(inst, word, funct3)
	case 0b01:
		decodeC1(inst, word, funct3)
	case 0b10:
		decodeC2(inst, word, funct3)
	default:
		inst.Illegal = true
	}
	return inst
}

// rvcReg expands a 3-bit compressed register field (x8-x15) to its full
// 5-bit index.
func rvcReg(field uint16) uint8 {
	return uint8(field&0x7) + 8
}

func decodeC0(inst *Instruction, word, funct3 uint16) {
	rdp := rvcReg(word >> 2)
	rs1p := rvcReg(word >> 7)

	switch funct3 {
	case 0b000: // C.ADDI4SPN
		nzuimm := ((word>>6)&0x1)<<2 | ((word>>5)&0x1)<<3 |
			((word>>11)&0x3)<<4 | ((word>>7)&0xf)<<6
		if nzuimm == 0 {
			inst.Illegal = true
			return
		}
		inst.Op, inst.Format, inst.Class = OpADD, FormatI, ClassALU
		inst.Rd, inst.Rs1 = rdp, 2
		inst.Imm = int64(nzuimm)

	case 0b010: // C.LW
		imm := ((word>>6)&0x1)<<2 | ((word>>10)&0x7)<<3 | ((word>>5)&0x1)<<6
		inst.Op, inst.Format, inst.Class = OpLW, FormatI, ClassLoad
		inst.Rd, inst.Rs1 = rdp, rs1p
		inst.Imm = int64(imm)

	case 0b011: // C.LD
		imm := ((word>>10)&0x7)<<3 | ((word>>5)&0x3)<<6
		inst.Op, inst.Format, inst.Class = OpLD, FormatI, ClassLoad
		inst.Rd, inst.Rs1 = rdp, rs1p
		inst.Imm = int64(imm)

	case 0b110: // C.SW
		imm := ((word>>6)&0x1)<<2 | ((word>>10)&0x7)<<3 | ((word>>5)&0x1)<<6
		inst.Op, inst.Format, inst.Class = OpSW, FormatS, ClassStore
		inst.Rs1, inst.Rs2 = rs1p, rdp
		inst.Imm = int64(imm)

	case 0b111: // C.SD
		imm := ((word>>10)&0x7)<<3 | ((word>>5)&0x3)<<6
		inst.Op, inst.Format, inst.Class = OpSD, FormatS, ClassStore
		inst.Rs1, inst.Rs2 = rs1p, rdp
		inst.Imm = int64(imm)

	default:
		inst.Illegal = true
	}
}

func decodeC1(inst *Instruction, word, funct3 uint16) {
	rd := uint8((word >> 7) & 0x1f)
	rdp := rvcReg(word >> 7)

	switch funct3 {
	case 0b000: // C.ADDI / C.NOP
		imm := cImm6(word)
		inst.Op, inst.Format, inst.Class = OpADD, FormatI, ClassALU
		inst.Rd, inst.Rs1 = rd, rd
		inst.Imm = imm

	case 0b001: // C.ADDIW
		imm := cImm6(word)
		inst.Op, inst.Format, inst.Class = OpADDW, FormatI, ClassALU
		inst.Rd, inst.Rs1 = rd, rd
		inst.Imm = imm

	case 0b010: // C.LI
		imm := cImm6(word)
		inst.Op, inst.Format, inst.Class = OpADD, FormatI, ClassALU
		inst.Rd, inst.Rs1 = rd, 0
		inst.Imm = imm

	case 0b011: // C.ADDI16SP / C.LUI
		if rd == 2 {
			nzimm := (((word >> 12) & 0x1) << 9) | (((word >> 3) & 0x3) << 7) |
				(((word >> 5) & 0x1) << 6) | (((word >> 2) & 0x1) << 5) |
				(((word >> 6) & 0x1) << 4)
			imm := signExtend(uint64(nzimm), 9)
			if nzimm == 0 {
				inst.Illegal = true
				return
			}
			inst.Op, inst.Format, inst.Class = OpADD, FormatI, ClassALU
			inst.Rd, inst.Rs1 = 2, 2
			inst.Imm = imm
		} else {
			nzimm := (((word >> 12) & 0x1) << 17) | (((word >> 2) & 0x1f) << 12)
			if nzimm == 0 {
				inst.Illegal = true
				return
			}
			inst.Op, inst.Format, inst.Class = OpLUI, FormatU, ClassALU
			inst.Rd = rd
			inst.Imm = signExtend(uint64(nzimm), 17)
		}

	case 0b100:
		decodeC1Alu(inst, word, rdp)

	case 0b101: // C.J
		imm := cJImm(word)
		inst.Op, inst.Format, inst.Class = OpJAL, FormatJ, ClassBranch
		inst.Rd = 0
		inst.Imm = imm

	case 0b110: // C.BEQZ
		imm := cBImm(word)
		inst.Op, inst.Format, inst.Class = OpBEQ, FormatB, ClassBranch
		inst.Rs1, inst.Rs2 = rdp, 0
		inst.Imm = imm

	case 0b111: // C.BNEZ
		imm := cBImm(word)
		inst.Op, inst.Format, inst.Class = OpBNE, FormatB, ClassBranch
		inst.Rs1, inst.Rs2 = rdp, 0
		inst.Imm = imm

	default:
		inst.Illegal = true
	}
}

func decodeC1Alu(inst *Instruction, word uint16, rdp uint8) {
	sub := (word >> 10) & 0x3
	rs2p := rvcReg(word >> 2)

	switch sub {
	case 0b00: // C.SRLI
		shamt := ((word >> 12) & 0x1 << 5) | ((word >> 2) & 0x1f)
		inst.Op, inst.Format, inst.Class = OpSRL, FormatI, ClassALU
		inst.Rd, inst.Rs1 = rdp, rdp
		inst.Imm = int64(shamt)

	case 0b01: // C.SRAI
		shamt := ((word >> 12) & 0x1 << 5) | ((word >> 2) & 0x1f)
		inst.Op, inst.Format, inst.Class = OpSRA, FormatI, ClassALU
		inst.Rd, inst.Rs1 = rdp, rdp
		inst.Imm = int64(shamt)

	case 0b10: // C.ANDI
		imm := cImm6(word)
		inst.Op, inst.Format, inst.Class = OpAND, FormatI, ClassALU
		inst.Rd, inst.Rs1 = rdp, rdp
		inst.Imm = imm

	case 0b11:
		funct2 := (word >> 5) & 0x3
		isWord := (word>>12)&0x1 == 1
		inst.Format, inst.Class = FormatR, ClassALU
		inst.Rd, inst.Rs1, inst.Rs2 = rdp, rdp, rs2p
		switch {
		case !isWord && funct2 == 0b00:
			inst.Op = OpSUB
		case !isWord && funct2 == 0b01:
			inst.Op = OpXOR
		case !isWord && funct2 == 0b10:
			inst.Op = OpOR
		case !isWord && funct2 == 0b11:
			inst.Op = OpAND
		case isWord && funct2 == 0b00:
			inst.Op = OpSUBW
		case isWord && funct2 == 0b01:
			inst.Op = OpADDW
		default:
			inst.Illegal = true
		}
	}
}

func decodeC2(inst *Instruction, word, funct3 uint16) {
	rd := uint8((word >> 7) & 0x1f)
	rs2 := uint8((word >> 2) & 0x1f)

	switch funct3 {
	case 0b000: // C.SLLI
		shamt := ((word >> 12) & 0x1 << 5) | ((word >> 2) & 0x1f)
		inst.Op, inst.Format, inst.Class = OpSLL, FormatI, ClassALU
		inst.Rd, inst.Rs1 = rd, rd
		inst.Imm = int64(shamt)

	case 0b010: // C.LWSP
		imm := ((word>>4)&0x7)<<2 | ((word>>12)&0x1)<<5 | ((word>>2)&0x3)<<6
		if rd == 0 {
			inst.Illegal = true
			return
		}
		inst.Op, inst.Format, inst.Class = OpLW, FormatI, ClassLoad
		inst.Rd, inst.Rs1 = rd, 2
		inst.Imm = int64(imm)

	case 0b011: // C.LDSP
		imm := ((word>>5)&0x3)<<3 | ((word>>12)&0x1)<<5 | ((word>>2)&0x7)<<6
		if rd == 0 {
			inst.Illegal = true
			return
		}
		inst.Op, inst.Format, inst.Class = OpLD, FormatI, ClassLoad
		inst.Rd, inst.Rs1 = rd, 2
		inst.Imm = int64(imm)

	case 0b100:
		hi := (word >> 12) & 0x1
		if hi == 0 {
			if rs2 == 0 { // C.JR
				if rd == 0 {
					inst.Illegal = true
					return
				}
				inst.Op, inst.Format, inst.Class = OpJALR, FormatI, ClassBranch
				inst.Rd, inst.Rs1, inst.Imm = 0, rd, 0
			} else { // C.MV
				inst.Op, inst.Format, inst.Class = OpADD, FormatR, ClassALU
				inst.Rd, inst.Rs1, inst.Rs2 = rd, 0, rs2
			}
		} else {
			if rd == 0 && rs2 == 0 { // C.EBREAK
				inst.Op, inst.Format, inst.Class = OpEBREAK, FormatSystem, ClassSystem
			} else if rs2 == 0 { // C.JALR
				inst.Op, inst.Format, inst.Class = OpJALR, FormatI, ClassBranch
				inst.Rd, inst.Rs1, inst.Imm = 1, rd, 0
			} else { // C.ADD
				inst.Op, inst.Format, inst.Class = OpADD, FormatR, ClassALU
				inst.Rd, inst.Rs1, inst.Rs2 = rd, rd, rs2
			}
		}

	case 0b110: // C.SWSP
		imm := ((word>>9)&0xf)<<2 | ((word>>7)&0x3)<<6
		inst.Op, inst.Format, inst.Class = OpSW, FormatS, ClassStore
		inst.Rs1, inst.Rs2 = 2, rs2
		inst.Imm = int64(imm)

	case 0b111: // C.SDSP
		imm := ((word>>10)&0x7)<<3 | ((word>>7)&0x7)<<6
		inst.Op, inst.Format, inst.Class = OpSD, FormatS, ClassStore
		inst.Rs1, inst.Rs2 = 2, rs2
		inst.Imm = int64(imm)

	default:
		inst.Illegal = true
	}
}

// cImm6 extracts the sign-extended 6-bit immediate shared by C.ADDI,
// C.ADDIW, C.LI, and C.ANDI (bit 12 high, bits 6:2 low).
func cImm6(word uint16) int64 {
	raw := ((word>>12)&0x1)<<5 | ((word >> 2) & 0x1f)
	return signExtend(uint64(raw), 5)
}

// cJImm extracts the sign-extended jump target offset (bits 11:1) used by
// C.J.
func cJImm(word uint16) int64 {
	b := func(bit uint16) uint16 { return (word >> bit) & 0x1 }
	var raw uint16
	raw |= b(12) << 11
	raw |= b(11) << 4
	raw |= b(10) << 9
	raw |= b(9) << 8
	raw |= b(8) << 10
	raw |= b(7) << 6
	raw |= b(6) << 7
	raw |= b(5) << 3
	raw |= b(4) << 2
	raw |= b(3) << 1
	raw |= b(2) << 5
	return signExtend(uint64(raw), 11)
}

// cBImm extracts the 8-bit sign-extended branch offset used by C.BEQZ
// and C.BNEZ.
func cBImm(word uint16) int64 {
	b := func(bit uint16) uint16 { return (word >> bit) & 0x1 }
	var raw uint16
	raw |= b(12) << 8
	raw |= b(11) << 4
	raw |= b(10) << 3
	raw |= ((word >> 5) & 0x3) << 6
	raw |= ((word >> 3) & 0x3) << 1
	raw |= b(2) << 5
	return signExtend(uint64(raw), 8)
}
