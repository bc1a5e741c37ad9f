// Package insts provides RV64IMAFDC instruction definitions and decoding.
//
// This package implements decoding of 16-bit (compressed, "C" extension) and
// 32-bit RISC-V machine code into a single uniform Instruction representation.
// It supports:
//   - RV64I base integer instructions
//   - "M": integer multiply/divide/remainder
//   - "A": load-reserved/store-conditional and atomic memory operations
//   - "F"/"D": single- and double-precision floating point
//   - "C": the compressed 16-bit instruction subset, expanded to its
//     canonical 32-bit form before classification
//   - Zicsr: CSR read/modify/write
//   - SYSTEM: ECALL, EBREAK, MRET, SRET, WFI, SFENCE.VMA, FENCE
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00a50513, 0x1000) // ADDI x10, x10, 10
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
