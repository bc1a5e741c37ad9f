package arch

import "encoding/binary"

// Memory is flat little-endian byte-addressable physical memory backing
// the simulator's functional emulation path and the golden model the
// timing pipeline's cache hierarchy checks itself against. It is not
// timed; DRAM latency lives in the dram package, which wraps a Memory as
// its storage.
type Memory struct {
	bytes []byte
	base  uint64
}

// NewMemory allocates size bytes of physical memory starting at base.
func NewMemory(base, size uint64) *Memory {
	return &Memory{bytes: make([]byte, size), base: base}
}

func (m *Memory) off(addr uint64) uint64 {
	return addr - m.base
}

// Size returns the number of bytes backing this memory.
func (m *Memory) Size() uint64 {
	return uint64(len(m.bytes))
}

// Base returns the physical base address this memory is mapped at.
func (m *Memory) Base() uint64 {
	return m.base
}

// Contains reports whether addr falls within this memory's mapped range.
func (m *Memory) Contains(addr uint64) bool {
	return addr >= m.base && addr-m.base < uint64(len(m.bytes))
}

func (m *Memory) Read8(addr uint64) uint8 {
	return m.bytes[m.off(addr)]
}

func (m *Memory) Write8(addr uint64, v uint8) {
	m.bytes[m.off(addr)] = v
}

func (m *Memory) Read16(addr uint64) uint16 {
	o := m.off(addr)
	return binary.LittleEndian.Uint16(m.bytes[o : o+2])
}

func (m *Memory) Write16(addr uint64, v uint16) {
	o := m.off(addr)
	binary.LittleEndian.PutUint16(m.bytes[o:o+2], v)
}

func (m *Memory) Read32(addr uint64) uint32 {
	o := m.off(addr)
	return binary.LittleEndian.Uint32(m.bytes[o : o+4])
}

func (m *Memory) Write32(addr uint64, v uint32) {
	o := m.off(addr)
	binary.LittleEndian.PutUint32(m.bytes[o:o+4], v)
}

func (m *Memory) Read64(addr uint64) uint64 {
	o := m.off(addr)
	return binary.LittleEndian.Uint64(m.bytes[o : o+8])
}

func (m *Memory) Write64(addr uint64, v uint64) {
	o := m.off(addr)
	binary.LittleEndian.PutUint64(m.bytes[o:o+8], v)
}

// ReadBlock copies n bytes starting at addr, used by cache line fills.
func (m *Memory) ReadBlock(addr uint64, n int) []byte {
	o := m.off(addr)
	out := make([]byte, n)
	copy(out, m.bytes[o:o+uint64(n)])
	return out
}

// WriteBlock writes data starting at addr, used by cache line writebacks.
func (m *Memory) WriteBlock(addr uint64, data []byte) {
	o := m.off(addr)
	copy(m.bytes[o:o+uint64(len(data))], data)
}

// LoadProgram copies data into memory starting at the given physical
// address, as used by the loader to place ELF segments and the
// zero-initialize BSS.
func (m *Memory) LoadProgram(loadAddr uint64, data []byte) {
	o := m.off(loadAddr)
	copy(m.bytes[o:o+uint64(len(data))], data)
}
