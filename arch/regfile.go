// Package arch holds the hart's architectural state: integer and
// floating-point register files, the CSR file, and backing memory.
package arch

import "math"

// RegFile holds the 32 integer general-purpose registers. x0 is hardwired
// to zero, unlike the top-of-range XZR convention used by some other ISAs;
// WriteReg silently drops writes to register 0 rather than special-casing
// reads of it, which keeps ReadReg a plain array index.
type RegFile struct {
	X [32]uint64
}

// ReadReg reads a register value. x0 always reads as 0 because it is
// never written (see WriteReg).
func (r *RegFile) ReadReg(reg uint8) uint64 {
	return r.X[reg&0x1f]
}

// WriteReg writes a value to a register. Writes to x0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg == 0 {
		return
	}
	r.X[reg&0x1f] = value
}

// nanBox is the upper 32 bits that mark a 64-bit FP register as holding a
// valid single-precision value, per the F/D NaN-boxing rule: any value
// without this upper half is treated as a quiet NaN when read as a float32.
const nanBox = uint64(0xffffffff00000000)

// FPRegFile holds the 32 floating point registers, each stored as the raw
// 64 bits of its double-precision representation. Single-precision values
// are NaN-boxed into the upper half per the F/D NaN-boxing convention.
type FPRegFile struct {
	F [32]uint64
}

// ReadDouble reads register reg as a double-precision value.
func (r *FPRegFile) ReadDouble(reg uint8) float64 {
	return math.Float64frombits(r.F[reg&0x1f])
}

// WriteDouble writes a double-precision value to register reg.
func (r *FPRegFile) WriteDouble(reg uint8, value float64) {
	r.F[reg&0x1f] = math.Float64bits(value)
}

// ReadSingle reads register reg as a single-precision value. If the
// register does not hold a properly NaN-boxed single, it reads as the
// canonical quiet NaN, per the ISA's NaN-boxing rule.
func (r *FPRegFile) ReadSingle(reg uint8) float32 {
	raw := r.F[reg&0x1f]
	if raw&nanBox != nanBox {
		return float32(math.NaN())
	}
	return math.Float32frombits(uint32(raw))
}

// WriteSingle writes a single-precision value to register reg, NaN-boxing
// the upper 32 bits.
func (r *FPRegFile) WriteSingle(reg uint8, value float32) {
	r.F[reg&0x1f] = nanBox | uint64(math.Float32bits(value))
}

// RawBits returns the full 64-bit register contents, used by FMV.X.D and
// the FCLASS/FP-to-int paths that need the exact bit pattern.
func (r *FPRegFile) RawBits(reg uint8) uint64 {
	return r.F[reg&0x1f]
}

// WriteRawBits writes the full 64-bit register contents directly, used by
// FMV.D.X.
func (r *FPRegFile) WriteRawBits(reg uint8, bits uint64) {
	r.F[reg&0x1f] = bits
}
