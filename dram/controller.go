// Package dram models an open-row DRAM controller: a single backing
// arch.Memory with row-buffer state per bank and CAS/RAS/precharge
// timing charged on row misses, satisfying the same BackingStore
// interface the cache package's Level type expects of whatever sits
// below the last-level cache.
package dram

import "github.com/willmccallion/rvsim/arch"

// Timing holds the controller's open-row latency parameters, in cycles.
type Timing struct {
	CAS       uint64 // column access latency on a row hit
	RAS       uint64 // row activation latency on a row miss
	Precharge uint64 // precharge latency to close a dirty open row
	BurstLen  uint64 // additional cycles per burst beyond the first
}

// DefaultTiming returns representative DDR4-like timings.
func DefaultTiming() Timing {
	return Timing{CAS: 14, RAS: 14, Precharge: 14, BurstLen: 4}
}

// Config sizes the controller's bank and row geometry.
type Config struct {
	NumBanks  int
	RowSize   uint64 // bytes per row
	Timing    Timing
	BaseAddr  uint64
	SizeBytes uint64
}

// DefaultConfig returns an 8-bank controller with 8 KiB rows over the
// address range [base, base+size).
func DefaultConfig(base, size uint64) Config {
	return Config{NumBanks: 8, RowSize: 8192, Timing: DefaultTiming(), BaseAddr: base, SizeBytes: size}
}

type bankState struct {
	openRow    uint64
	rowIsValid bool
}

// Controller is the timed DRAM model backing the memory hierarchy.
type Controller struct {
	config Config
	mem    *arch.Memory
	banks  []bankState

	// LastAccessLatency is the cycle cost of the most recent Read/Write.
	// The cache Level does not read it; a miss at the last cache level is
	// charged that level's flat MissLatency.
	LastAccessLatency uint64

	Stats Statistics
}

// Statistics counts row hits/misses, the DRAM-level analogue of a
// cache's hit rate.
type Statistics struct {
	RowHits    uint64
	RowMisses  uint64
	Activates  uint64
	Precharges uint64
}

// New creates a DRAM controller backed by mem.
func New(config Config, mem *arch.Memory) *Controller {
	return &Controller{config: config, mem: mem, banks: make([]bankState, config.NumBanks)}
}

func (c *Controller) bankOf(addr uint64) int {
	return int((addr / c.config.RowSize) % uint64(c.config.NumBanks))
}

func (c *Controller) rowOf(addr uint64) uint64 {
	return addr / c.config.RowSize
}

// access charges the open-row timing for touching addr and updates the
// targeted bank's open row.
func (c *Controller) access(addr uint64) uint64 {
	bank := c.bankOf(addr)
	row := c.rowOf(addr)
	st := &c.banks[bank]

	if st.rowIsValid && st.openRow == row {
		c.Stats.RowHits++
		c.LastAccessLatency = c.config.Timing.CAS + c.config.Timing.BurstLen
		return c.LastAccessLatency
	}

	c.Stats.RowMisses++
	latency := c.config.Timing.RAS + c.config.Timing.CAS + c.config.Timing.BurstLen
	if st.rowIsValid {
		c.Stats.Precharges++
		latency += c.config.Timing.Precharge
	}
	c.Stats.Activates++
	st.openRow = row
	st.rowIsValid = true
	c.LastAccessLatency = latency
	return latency
}

// Read implements cache.BackingStore, returning size bytes from addr
// after charging open-row access timing.
func (c *Controller) Read(addr uint64, size int) []byte {
	c.access(addr)
	return c.mem.ReadBlock(addr, size)
}

// Write implements cache.BackingStore.
func (c *Controller) Write(addr uint64, data []byte) {
	c.access(addr)
	c.mem.WriteBlock(addr, data)
}

// Reset closes all open rows and clears statistics.
func (c *Controller) Reset() {
	for i := range c.banks {
		c.banks[i] = bankState{}
	}
	c.Stats = Statistics{}
}
