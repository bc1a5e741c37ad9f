package soc

import "encoding/binary"

// CLINT register layout, matching the SiFive/QEMU-virt convention the
// rest of the RISC-V ecosystem's bare-metal startup code expects:
// msip at 0x0000, mtimecmp at 0x4000, mtime at 0xbff8.
const (
	clintMSIPOffset     = 0x0000
	clintMTimeCmpOffset = 0x4000
	clintMTimeOffset    = 0xbff8
)

// CLINT is the core-local interruptor: a free-running mtime counter, a
// single hart's mtimecmp compare register, and a software-interrupt
// doorbell (msip). It advances mtime once per Step call rather than
// once per cycle, matching the configurable clint_divider the tick loop
// applies so guest-visible time doesn't run a full cycle per tick.
type CLINT struct {
	mtime    uint64
	mtimecmp uint64
	msip     uint32
}

// NewCLINT creates a CLINT with mtimecmp at its maximum value, so no
// timer interrupt is pending until software programs a compare value.
func NewCLINT() *CLINT {
	return &CLINT{mtimecmp: ^uint64(0)}
}

// Step advances mtime by one tick, called by the simulator's device
// loop once every clint_divider core cycles.
func (c *CLINT) Step() {
	c.mtime++
}

// TimerPending reports whether mtime has reached mtimecmp, the
// condition that raises the machine timer interrupt.
func (c *CLINT) TimerPending() bool {
	return c.mtime >= c.mtimecmp
}

// SoftwarePending reports whether msip's interrupt bit is set.
func (c *CLINT) SoftwarePending() bool {
	return c.msip&1 != 0
}

// ReadByte implements Device.
func (c *CLINT) ReadByte(off uint64) uint8 {
	switch {
	case off >= clintMSIPOffset && off < clintMSIPOffset+4:
		return byteOf(uint64(c.msip), off-clintMSIPOffset)
	case off >= clintMTimeCmpOffset && off < clintMTimeCmpOffset+8:
		return byteOf(c.mtimecmp, off-clintMTimeCmpOffset)
	case off >= clintMTimeOffset && off < clintMTimeOffset+8:
		return byteOf(c.mtime, off-clintMTimeOffset)
	default:
		return 0
	}
}

// WriteByte implements Device.
func (c *CLINT) WriteByte(off uint64, v uint8) {
	switch {
	case off >= clintMSIPOffset && off < clintMSIPOffset+4:
		c.msip = setByteOf32(c.msip, off-clintMSIPOffset, v)
	case off >= clintMTimeCmpOffset && off < clintMTimeCmpOffset+8:
		c.mtimecmp = setByteOf64(c.mtimecmp, off-clintMTimeCmpOffset, v)
	case off >= clintMTimeOffset && off < clintMTimeOffset+8:
		c.mtime = setByteOf64(c.mtime, off-clintMTimeOffset, v)
	}
}

func byteOf(v uint64, idx uint64) uint8 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[idx]
}

func setByteOf64(v uint64, idx uint64, b uint8) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	buf[idx] = b
	return binary.LittleEndian.Uint64(buf[:])
}

func setByteOf32(v uint32, idx uint64, b uint8) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	buf[idx] = b
	return binary.LittleEndian.Uint32(buf[:])
}
