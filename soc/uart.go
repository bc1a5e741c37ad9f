package soc

import "io"

// UART register offsets, modeled after the single-register "htif-lite"
// convention QEMU's virt machine and most bare-metal RISC-V textbooks
// use: a write to offset 0 transmits a byte immediately, with no FIFO,
// baud, or interrupt modeling.
const (
	uartTXOffset     = 0x00
	uartStatusOffset = 0x05 // bit0: transmitter empty, always set
)

// UART is a minimal polled-mode serial port. Every byte written to the
// TX register is forwarded synchronously to out, so program output
// appears in the simulator's own stdout/stderr rather than being
// buffered and requiring the guest to poll for completion.
type UART struct {
	out     io.Writer
	history []byte
}

// NewUART creates a UART that writes transmitted bytes to out.
func NewUART(out io.Writer) *UART {
	return &UART{out: out}
}

// ReadByte implements Device.
func (u *UART) ReadByte(off uint64) uint8 {
	if off == uartStatusOffset {
		return 1
	}
	return 0
}

// WriteByte implements Device.
func (u *UART) WriteByte(off uint64, v uint8) {
	if off != uartTXOffset {
		return
	}
	u.history = append(u.history, v)
	if u.out != nil {
		_, _ = u.out.Write([]byte{v})
	}
}

// History returns every byte ever transmitted, letting tests assert on
// program output without capturing an io.Writer.
func (u *UART) History() []byte {
	return u.history
}
