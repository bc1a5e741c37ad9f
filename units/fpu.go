package units

import (
	"math"

	"github.com/willmccallion/rvsim/insts"
)

// FFlags mirrors the fflags CSR's five accrued-exception bits.
type FFlags struct {
	NV bool // invalid operation
	DZ bool // divide by zero
	OF bool // overflow
	UF bool // underflow
	NX bool // inexact
}

// Bits packs the flags into fflags' bit layout (NV=4, DZ=3, OF=2, UF=1, NX=0).
func (f FFlags) Bits() uint8 {
	var b uint8
	if f.NV {
		b |= 1 << 4
	}
	if f.DZ {
		b |= 1 << 3
	}
	if f.OF {
		b |= 1 << 2
	}
	if f.UF {
		b |= 1 << 1
	}
	if f.NX {
		b |= 1
	}
	return b
}

// FPU implements the "F"/"D" scalar floating point operations. Its
// methods take no rounding mode: arithmetic uses Go's float operations,
// which always round to nearest-even, and ConvertFloatToInt always
// truncates toward zero. The frm CSR and an instruction's rm field are
// not applied.
type FPU struct{}

// NewFPU creates a floating point unit.
func NewFPU() *FPU {
	return &FPU{}
}

// ExecuteDouble computes a double-precision arithmetic result.
func (u *FPU) ExecuteDouble(op insts.Op, a, b, c float64) (float64, FFlags) {
	var flags FFlags
	switch op {
	case insts.OpFADD:
		return a + b, checkResult(a+b, &flags)
	case insts.OpFSUB:
		return a - b, checkResult(a-b, &flags)
	case insts.OpFMUL:
		return a * b, checkResult(a*b, &flags)
	case insts.OpFDIV:
		if b == 0 && a != 0 && !math.IsNaN(a) {
			flags.DZ = true
		}
		return a / b, checkResult(a/b, &flags)
	case insts.OpFSQRT:
		if a < 0 {
			flags.NV = true
			return math.NaN(), flags
		}
		return math.Sqrt(a), flags
	case insts.OpFMIN:
		return fMinMax(a, b, false), flags
	case insts.OpFMAX:
		return fMinMax(a, b, true), flags
	case insts.OpFSGNJ:
		return math.Copysign(a, b), flags
	case insts.OpFSGNJN:
		return math.Copysign(a, -b), flags
	case insts.OpFSGNJX:
		mag := math.Abs(a)
		if math.Signbit(a) != math.Signbit(b) {
			return -mag, flags
		}
		return mag, flags
	case insts.OpFMADD:
		return a*b + c, checkResult(a*b+c, &flags)
	case insts.OpFMSUB:
		return a*b - c, checkResult(a*b-c, &flags)
	case insts.OpFNMADD:
		return -(a*b + c), checkResult(-(a*b+c), &flags)
	case insts.OpFNMSUB:
		return -(a*b - c), checkResult(-(a*b-c), &flags)
	default:
		return 0, flags
	}
}

func checkResult(r float64, flags *FFlags) float64 {
	if math.IsInf(r, 0) {
		flags.OF = true
	}
	return r
}

func fMinMax(a, b float64, max bool) float64 {
	if math.IsNaN(a) && math.IsNaN(b) {
		return math.NaN()
	}
	if math.IsNaN(a) {
		return b
	}
	if math.IsNaN(b) {
		return a
	}
	if max {
		return math.Max(a, b)
	}
	return math.Min(a, b)
}

// ExecuteSingle is ExecuteDouble's single-precision counterpart; the
// operands and result are kept in float32 throughout so intermediate
// rounding matches single-precision hardware rather than computing in
// double and narrowing at the end.
func (u *FPU) ExecuteSingle(op insts.Op, a, b, c float32) (float32, FFlags) {
	var flags FFlags
	switch op {
	case insts.OpFADD:
		return a + b, flags
	case insts.OpFSUB:
		return a - b, flags
	case insts.OpFMUL:
		return a * b, flags
	case insts.OpFDIV:
		if b == 0 && a != 0 && !math.IsNaN(float64(a)) {
			flags.DZ = true
		}
		return a / b, flags
	case insts.OpFSQRT:
		if a < 0 {
			flags.NV = true
			return float32(math.NaN()), flags
		}
		return float32(math.Sqrt(float64(a))), flags
	case insts.OpFMIN:
		return float32(fMinMax(float64(a), float64(b), false)), flags
	case insts.OpFMAX:
		return float32(fMinMax(float64(a), float64(b), true)), flags
	case insts.OpFSGNJ:
		return float32(math.Copysign(float64(a), float64(b))), flags
	case insts.OpFSGNJN:
		return float32(math.Copysign(float64(a), -float64(b))), flags
	case insts.OpFSGNJX:
		mag := float32(math.Abs(float64(a)))
		if math.Signbit(float64(a)) != math.Signbit(float64(b)) {
			return -mag, flags
		}
		return mag, flags
	case insts.OpFMADD:
		return a*b + c, flags
	case insts.OpFMSUB:
		return a*b - c, flags
	case insts.OpFNMADD:
		return -(a*b + c), flags
	case insts.OpFNMSUB:
		return -(a*b - c), flags
	default:
		return 0, flags
	}
}

// Compare implements FEQ/FLT/FLE, returning 1/0 as the ISA requires for
// writeback to an integer register.
func (u *FPU) Compare(op insts.Op, a, b float64) (uint64, FFlags) {
	var flags FFlags
	if math.IsNaN(a) || math.IsNaN(b) {
		if op != insts.OpFEQ {
			flags.NV = true
		}
		return 0, flags
	}
	switch op {
	case insts.OpFEQ:
		if a == b {
			return 1, flags
		}
	case insts.OpFLT:
		if a < b {
			return 1, flags
		}
	case insts.OpFLE:
		if a <= b {
			return 1, flags
		}
	}
	return 0, flags
}

// Classify implements FCLASS.D/S, returning the 10-bit class mask.
func (u *FPU) Classify(a float64) uint64 {
	switch {
	case math.IsInf(a, -1):
		return 1 << 0
	case a < 0 && !isSubnormal(a):
		return 1 << 1
	case a < 0 && isSubnormal(a):
		return 1 << 2
	case math.Signbit(a) && a == 0:
		return 1 << 3
	case a == 0 && !math.Signbit(a):
		return 1 << 4
	case a > 0 && isSubnormal(a):
		return 1 << 5
	case a > 0 && !isSubnormal(a) && !math.IsInf(a, 1):
		return 1 << 6
	case math.IsInf(a, 1):
		return 1 << 7
	case math.IsNaN(a):
		if isSignalingNaN(a) {
			return 1 << 8
		}
		return 1 << 9
	default:
		return 0
	}
}

func isSubnormal(a float64) bool {
	bits := math.Float64bits(math.Abs(a))
	exp := (bits >> 52) & 0x7ff
	return exp == 0 && bits != 0
}

func isSignalingNaN(a float64) bool {
	bits := math.Float64bits(a)
	return bits&(1<<51) == 0
}

// ConvertFloatToInt implements FCVT.{W,WU,L,LU}.{S,D}, truncating toward
// zero per the default conversion semantics and saturating on overflow.
func ConvertFloatToInt(a float64, signed bool, width int) (uint64, FFlags) {
	var flags FFlags
	if math.IsNaN(a) {
		flags.NV = true
		if signed {
			return saturateSigned(width, true), flags
		}
		return saturateUnsigned(width, true), flags
	}
	truncated := math.Trunc(a)
	if truncated != a {
		flags.NX = true
	}
	if signed {
		maxV, minV := float64(saturateBoundSigned(width, true)), float64(saturateBoundSigned(width, false))
		if truncated > maxV {
			flags.NV = true
			return saturateSigned(width, true), flags
		}
		if truncated < minV {
			flags.NV = true
			return saturateSigned(width, false), flags
		}
		return uint64(int64(truncated)), flags
	}
	if truncated < 0 {
		flags.NV = true
		return 0, flags
	}
	maxV := float64(saturateBoundUnsigned(width))
	if truncated > maxV {
		flags.NV = true
		return saturateUnsigned(width, true), flags
	}
	return uint64(truncated), flags
}

func saturateBoundSigned(width int, max bool) int64 {
	if width == 32 {
		if max {
			return math.MaxInt32
		}
		return math.MinInt32
	}
	if max {
		return math.MaxInt64
	}
	return math.MinInt64
}

func saturateBoundUnsigned(width int) uint64 {
	if width == 32 {
		return math.MaxUint32
	}
	return math.MaxUint64
}

func saturateSigned(width int, positive bool) uint64 {
	return uint64(saturateBoundSigned(width, positive))
}

func saturateUnsigned(width int, max bool) uint64 {
	if !max {
		return 0
	}
	return saturateBoundUnsigned(width)
}

// ConvertIntToFloat implements FCVT.{S,D}.{W,WU,L,LU}.
func ConvertIntToFloat(v uint64, signed bool, width int) float64 {
	if width == 32 {
		if signed {
			return float64(int32(v))
		}
		return float64(uint32(v))
	}
	if signed {
		return float64(int64(v))
	}
	return float64(v)
}
