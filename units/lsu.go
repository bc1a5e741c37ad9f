package units

import "github.com/willmccallion/rvsim/insts"

// AddressGen computes a load/store's effective address, grounded on the
// teacher's load_store unit's base+offset pattern but generalized to a
// single entry point since RV64I addressing has exactly one mode
// (register + sign-extended immediate) rather than ARM64's family of
// addressing-mode variants.
type AddressGen struct{}

// NewAddressGen creates an address-generation unit.
func NewAddressGen() *AddressGen {
	return &AddressGen{}
}

// Effective computes base + imm.
func (g *AddressGen) Effective(base uint64, imm int64) uint64 {
	return uint64(int64(base) + imm)
}

// ExtendLoad sign- or zero-extends a loaded value to 64 bits according to
// the load opcode's width and signedness.
func ExtendLoad(op insts.Op, raw uint64) uint64 {
	switch op {
	case insts.OpLB:
		return uint64(int64(int8(raw)))
	case insts.OpLH:
		return uint64(int64(int16(raw)))
	case insts.OpLW:
		return uint64(int64(int32(raw)))
	case insts.OpLBU:
		return raw & 0xff
	case insts.OpLHU:
		return raw & 0xffff
	case insts.OpLWU:
		return raw & 0xffffffff
	case insts.OpLD:
		return raw
	default:
		return raw
	}
}

// StoreWidth returns the number of bytes a store-class op writes.
func StoreWidth(op insts.Op) int {
	switch op {
	case insts.OpSB:
		return 1
	case insts.OpSH:
		return 2
	case insts.OpSW:
		return 4
	case insts.OpSD:
		return 8
	default:
		return 0
	}
}

// LoadWidth returns the number of bytes a load-class op reads.
func LoadWidth(op insts.Op) int {
	switch op {
	case insts.OpLB, insts.OpLBU:
		return 1
	case insts.OpLH, insts.OpLHU:
		return 2
	case insts.OpLW, insts.OpLWU:
		return 4
	case insts.OpLD:
		return 8
	default:
		return 0
	}
}
