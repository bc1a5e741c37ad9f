package soc

// PLIC register layout, a drastically simplified subset of the real
// platform-level interrupt controller sufficient to model claim/
// complete for one hart's machine-mode external-interrupt context: a
// pending bitmap, a per-source priority (ignored — every pending source
// is claimable in id order), and the single claim/complete register at
// context 0's offset.
const (
	plicPendingBase = 0x1000
	plicClaimOffset = 0x20_1004
)

// PLIC models external interrupt claim/complete for up to 32 sources.
type PLIC struct {
	pending uint32
	claimed uint32
}

// NewPLIC creates a PLIC with no sources pending.
func NewPLIC() *PLIC {
	return &PLIC{}
}

// Raise marks source (1..31) pending, called by a device model (e.g. a
// future VirtIO disk completion) that wants to interrupt the hart.
func (p *PLIC) Raise(source uint32) {
	p.pending |= 1 << source
}

// Pending reports whether any source is pending and not yet claimed,
// the condition the core checks for the external interrupt line.
func (p *PLIC) Pending() bool {
	return p.pending&^p.claimed != 0
}

// ReadByte implements Device.
func (p *PLIC) ReadByte(off uint64) uint8 {
	if off == plicClaimOffset {
		for id := uint32(1); id < 32; id++ {
			if p.pending&^p.claimed&(1<<id) != 0 {
				p.claimed |= 1 << id
				return uint8(id)
			}
		}
		return 0
	}
	if off >= plicPendingBase && off < plicPendingBase+4 {
		return byteOf(uint64(p.pending), off-plicPendingBase)
	}
	return 0
}

// WriteByte implements Device. A write to the claim register completes
// the named interrupt, clearing both its pending and claimed bits.
func (p *PLIC) WriteByte(off uint64, v uint8) {
	if off == plicClaimOffset {
		id := uint32(v)
		p.pending &^= 1 << id
		p.claimed &^= 1 << id
	}
}
