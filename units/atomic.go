package units

import "github.com/willmccallion/rvsim/insts"

// AtomicUnit computes the new value an AMO instruction writes back to
// memory, given the value read from memory and the register operand. The
// caller (the pipeline's MEM stage) is responsible for the actual
// read-modify-write ordering and for LR/SC's reservation-set bookkeeping,
// which lives on arch.State.
type AtomicUnit struct{}

// NewAtomicUnit creates an atomic-memory-operation unit.
func NewAtomicUnit() *AtomicUnit {
	return &AtomicUnit{}
}

// Apply computes the value to store back to memory for an AMO op. rd is
// always the unmodified value loaded from memory (what gets written to
// the destination register); this method returns the second half, the
// value to store.
func (u *AtomicUnit) Apply(op insts.Op, width FPWidthBytes, loaded, operand uint64) uint64 {
	loaded = truncateSigned(loaded, width)
	operand = truncateSigned(operand, width)
	switch op {
	case insts.OpAMOSWAP:
		return operand
	case insts.OpAMOADD:
		return loaded + operand
	case insts.OpAMOXOR:
		return loaded ^ operand
	case insts.OpAMOAND:
		return loaded & operand
	case insts.OpAMOOR:
		return loaded | operand
	case insts.OpAMOMIN:
		if signed(loaded, width) < signed(operand, width) {
			return loaded
		}
		return operand
	case insts.OpAMOMAX:
		if signed(loaded, width) > signed(operand, width) {
			return loaded
		}
		return operand
	case insts.OpAMOMINU:
		if loaded < operand {
			return loaded
		}
		return operand
	case insts.OpAMOMAXU:
		if loaded > operand {
			return loaded
		}
		return operand
	default:
		return loaded
	}
}

// FPWidthBytes is the AMO access width in bytes: 4 (amo.w) or 8 (amo.d).
type FPWidthBytes int

func truncateSigned(v uint64, width FPWidthBytes) uint64 {
	if width == 4 {
		return uint64(int64(int32(v)))
	}
	return v
}

func signed(v uint64, width FPWidthBytes) int64 {
	if width == 4 {
		return int64(int32(v))
	}
	return int64(v)
}
