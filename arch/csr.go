package arch

import "github.com/willmccallion/rvsim/addr"

// Standard CSR addresses, restricted to the subset this simulator models:
// M/S-mode trap handling, SV39 address translation, and the base counters.
const (
	CSRFflags   uint16 = 0x001
	CSRFrm      uint16 = 0x002
	CSRFcsr     uint16 = 0x003
	CSRCycle    uint16 = 0xc00
	CSRTime     uint16 = 0xc01
	CSRInstret  uint16 = 0xc02
	CSRSstatus  uint16 = 0x100
	CSRSie      uint16 = 0x104
	CSRStvec    uint16 = 0x105
	CSRScounter uint16 = 0x106
	CSRSscratch uint16 = 0x140
	CSRSepc     uint16 = 0x141
	CSRScause   uint16 = 0x142
	CSRStval    uint16 = 0x143
	CSRSip      uint16 = 0x144
	CSRSatp     uint16 = 0x180
	CSRMstatus  uint16 = 0x300
	CSRMisa     uint16 = 0x301
	CSRMedeleg  uint16 = 0x302
	CSRMideleg  uint16 = 0x303
	CSRMie      uint16 = 0x304
	CSRMtvec    uint16 = 0x305
	CSRMscratch uint16 = 0x340
	CSRMepc     uint16 = 0x341
	CSRMcause   uint16 = 0x342
	CSRMtval    uint16 = 0x343
	CSRMip      uint16 = 0x344
	CSRMvendorid uint16 = 0xf11
	CSRMarchid  uint16 = 0xf12
	CSRMimpid   uint16 = 0xf13
	CSRMhartid  uint16 = 0xf14
	CSRStimecmp uint16 = 0x14d // Sstc extension
)

// mstatus / sstatus bit positions relevant to this simulator.
const (
	mstatusSIE  = uint64(1) << 1
	mstatusMIE  = uint64(1) << 3
	mstatusSPIE = uint64(1) << 5
	mstatusMPIE = uint64(1) << 7
	mstatusSPP  = uint64(1) << 8
	mstatusMPPShift = 11
	mstatusMPPMask  = uint64(0x3) << mstatusMPPShift
)

// CSRFile is a sparse map of CSR addresses to values, backed by a plain
// map rather than a fixed array since only a small fraction of the 4096
// possible CSR addresses are implemented; unimplemented addresses read as
// zero and Implemented reports whether the address is actually wired up, so
// callers can raise an illegal-instruction trap on a genuinely unknown
// CSR rather than silently succeeding.
type CSRFile struct {
	regs map[uint16]uint64
}

// NewCSRFile creates a CSR file with its fixed-identity registers
// (misa, vendor/arch/imp/hart id) pre-populated.
func NewCSRFile() *CSRFile {
	c := &CSRFile{regs: make(map[uint16]uint64)}
	c.regs[CSRMisa] = misaValue()
	c.regs[CSRMvendorid] = 0
	c.regs[CSRMarchid] = 0
	c.regs[CSRMimpid] = 0
	c.regs[CSRMhartid] = 0
	return c
}

// misaValue encodes RV64IMAFDC plus the S and U privilege modes: XLEN=64
// in the top two bits plus one bit per extension letter (A=0, C=2, D=3,
// F=5, I=8, M=12, S=18, U=20).
func misaValue() uint64 {
	xlen64 := uint64(2) << 62
	ext := func(letter rune) uint64 { return uint64(1) << uint(letter-'A') }
	return xlen64 | ext('A') | ext('C') | ext('D') | ext('F') | ext('I') | ext('M') | ext('S') | ext('U')
}

var implemented = map[uint16]bool{
	CSRFflags: true, CSRFrm: true, CSRFcsr: true,
	CSRCycle: true, CSRTime: true, CSRInstret: true,
	CSRSstatus: true, CSRSie: true, CSRStvec: true, CSRSscratch: true,
	CSRSepc: true, CSRScause: true, CSRStval: true, CSRSip: true, CSRSatp: true,
	CSRMstatus: true, CSRMisa: true, CSRMedeleg: true, CSRMideleg: true,
	CSRMie: true, CSRMtvec: true, CSRMscratch: true, CSRMepc: true,
	CSRMcause: true, CSRMtval: true, CSRMip: true,
	CSRMvendorid: true, CSRMarchid: true, CSRMimpid: true, CSRMhartid: true,
	CSRStimecmp: true,
}

// Implemented reports whether csr is a recognized address.
func (c *CSRFile) Implemented(csr uint16) bool {
	return implemented[csr]
}

// Read returns the CSR's raw value, applying the sstatus/sie/sip
// shadow-of-mstatus views the privileged spec requires.
func (c *CSRFile) Read(csr uint16) uint64 {
	switch csr {
	case CSRSstatus:
		return c.regs[CSRMstatus] & (mstatusSIE | mstatusSPIE | mstatusSPP)
	case CSRSie:
		return c.regs[CSRMie] & c.regs[CSRMideleg]
	case CSRSip:
		return c.regs[CSRMip] & c.regs[CSRMideleg]
	default:
		return c.regs[csr]
	}
}

// Write stores value into csr, routing sstatus/sie/sip writes through to
// their mstatus/mie/mip backing bits.
func (c *CSRFile) Write(csr uint16, value uint64) {
	switch csr {
	case CSRSstatus:
		mask := mstatusSIE | mstatusSPIE | mstatusSPP
		c.regs[CSRMstatus] = (c.regs[CSRMstatus] &^ mask) | (value & mask)
	case CSRSie:
		mask := c.regs[CSRMideleg]
		c.regs[CSRMie] = (c.regs[CSRMie] &^ mask) | (value & mask)
	case CSRSip:
		mask := c.regs[CSRMideleg]
		c.regs[CSRMip] = (c.regs[CSRMip] &^ mask) | (value & mask)
	default:
		c.regs[csr] = value
	}
}

// EnterTrap updates xstatus/xepc/xcause/xtval and returns the vectored
// handler PC for a trap taken at the given privilege level.
func (c *CSRFile) EnterTrap(toPriv addr.Privilege, fromPriv addr.Privilege, pc uint64, trap addr.Trap) uint64 {
	if toPriv == addr.PrivM {
		status := c.regs[CSRMstatus]
		status = setBit(status, mstatusMPIE, status&mstatusMIE != 0)
		status &^= mstatusMIE
		status &^= mstatusMPPMask
		status |= uint64(fromPriv) << mstatusMPPShift
		c.regs[CSRMstatus] = status
		c.regs[CSRMepc] = pc
		c.regs[CSRMcause] = uint64(trap.Cause)
		c.regs[CSRMtval] = trap.Tval
		return vectoredTarget(c.regs[CSRMtvec], trap.Cause)
	}
	status := c.regs[CSRMstatus]
	status = setBit(status, mstatusSPIE, status&mstatusSIE != 0)
	status &^= mstatusSIE
	if fromPriv == addr.PrivU {
		status &^= mstatusSPP
	} else {
		status |= mstatusSPP
	}
	c.regs[CSRMstatus] = status
	c.regs[CSRSepc] = pc
	c.regs[CSRScause] = uint64(trap.Cause)
	c.regs[CSRStval] = trap.Tval
	return vectoredTarget(c.regs[CSRStvec], trap.Cause)
}

func vectoredTarget(tvec uint64, cause addr.Cause) uint64 {
	base := tvec &^ 0x3
	mode := tvec & 0x3
	if mode == 1 && cause.IsInterrupt() {
		return base + 4*cause.Code()
	}
	return base
}

func setBit(v, mask uint64, set bool) uint64 {
	if set {
		return v | mask
	}
	return v &^ mask
}

// Return undoes EnterTrap's privilege-stack push on MRET/SRET, returning
// the PC to resume at and the privilege level to resume in.
func (c *CSRFile) Return(fromM bool) (pc uint64, resumePriv addr.Privilege) {
	if fromM {
		status := c.regs[CSRMstatus]
		resumePriv = addr.Privilege((status & mstatusMPPMask) >> mstatusMPPShift)
		status = setBit(status, mstatusMIE, status&mstatusMPIE != 0)
		status |= mstatusMPIE
		status &^= mstatusMPPMask
		status |= uint64(addr.PrivU) << mstatusMPPShift
		c.regs[CSRMstatus] = status
		return c.regs[CSRMepc], resumePriv
	}
	status := c.regs[CSRMstatus]
	if status&mstatusSPP != 0 {
		resumePriv = addr.PrivS
	} else {
		resumePriv = addr.PrivU
	}
	status = setBit(status, mstatusSIE, status&mstatusSPIE != 0)
	status |= mstatusSPIE
	status &^= mstatusSPP
	c.regs[CSRMstatus] = status
	return c.regs[CSRSepc], resumePriv
}
