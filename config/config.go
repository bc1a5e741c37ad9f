// Package config loads and validates the simulator's full configuration
// surface, generalizing the teacher's flat TimingConfig into a nested
// structure covering pipeline width, branch prediction, the cache
// hierarchy, the memory controller, the MMU, the SoC bus, and tracing,
// while keeping the teacher's encoding/json-based load/save/validate/
// clone idiom unchanged.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the complete simulator configuration.
type Config struct {
	Width            int             `json:"width"`
	Backend          string          `json:"backend"`
	BranchPredictor  BranchPredConf  `json:"branch_predictor"`
	Cache            CacheConf       `json:"cache"`
	Memory           MemoryConf      `json:"memory"`
	MMU              MMUConf         `json:"mmu"`
	Bus              BusConf         `json:"bus"`
	Trace            TraceConf       `json:"trace"`
	StartPC          uint64          `json:"start_pc"`
	DirectMode       bool            `json:"direct_mode"`
	InitialSP        uint64          `json:"initial_sp"`
	Devices          DeviceConf      `json:"devices"`
	UARTToStderr     bool            `json:"uart_to_stderr"`
}

// BranchPredConf configures the direction predictor family and the
// shared BTB/RAS structures.
type BranchPredConf struct {
	Family      string `json:"family"` // static, gshare, tournament, perceptron, tage
	TableBits   uint   `json:"table_bits"`
	HistoryBits uint   `json:"history_bits"`
	BTBSize     uint32 `json:"btb_size"`
	RASSize     uint32 `json:"ras_size"`
	TageTables  uint   `json:"tage_tables"`
}

// LevelConf configures one cache level.
type LevelConf struct {
	Size          int    `json:"size"`
	Associativity int    `json:"associativity"`
	BlockSize     int    `json:"block_size"`
	HitLatency    uint64 `json:"hit_latency"`
	MissLatency   uint64 `json:"miss_latency"`
	Replacement   string `json:"replacement"` // lru, plru, fifo, random, mru
	Prefetcher    string `json:"prefetcher"`  // none, next_line, stride, stream, tagged
}

// CacheConf configures the full L1i/L1d/L2/L3 hierarchy.
type CacheConf struct {
	L1I LevelConf `json:"l1i"`
	L1D LevelConf `json:"l1d"`
	L2  LevelConf `json:"l2"`
	L3  LevelConf `json:"l3"`
}

// MemoryConf configures the backing DRAM controller.
type MemoryConf struct {
	RAMSize           uint64 `json:"ram_size"`
	RAMBase           uint64 `json:"ram_base"`
	NumBanks          int    `json:"num_banks"`
	RowSize           uint64 `json:"row_size"`
	CASLatency        uint64 `json:"cas_latency"`
	RASLatency        uint64 `json:"ras_latency"`
	PrechargeLatency  uint64 `json:"precharge_latency"`
	BurstLen          uint64 `json:"burst_len"`
}

// MMUConf configures TLB sizing.
type MMUConf struct {
	ITLBSize int `json:"itlb_size"`
	DTLBSize int `json:"dtlb_size"`
}

// BusConf configures the SoC interconnect.
type BusConf struct {
	Width   int    `json:"bus_width"`
	Latency uint64 `json:"bus_latency"`
}

// TraceConf configures execution tracing.
type TraceConf struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DeviceConf configures MMIO device base addresses and the CLINT's timer
// divider.
type DeviceConf struct {
	UARTBase    uint64 `json:"uart_base"`
	CLINTBase   uint64 `json:"clint_base"`
	CLINTDivider uint64 `json:"clint_divider"`
	PLICBase    uint64 `json:"plic_base"`
	SysconBase  uint64 `json:"syscon_base"`
}

// DefaultConfig returns a representative single-issue-to-superscalar
// configuration with the same latency texture as the teacher's
// DefaultTimingConfig, extended across the full component surface.
func DefaultConfig() *Config {
	return &Config{
		Width:   4,
		Backend: "timing",
		BranchPredictor: BranchPredConf{
			Family: "gshare", TableBits: 10, HistoryBits: 10,
			BTBSize: 256, RASSize: 16, TageTables: 4,
		},
		Cache: CacheConf{
			L1I: LevelConf{Size: 32 * 1024, Associativity: 4, BlockSize: 64, HitLatency: 1, MissLatency: 10, Replacement: "lru", Prefetcher: "next_line"},
			L1D: LevelConf{Size: 32 * 1024, Associativity: 8, BlockSize: 64, HitLatency: 4, MissLatency: 10, Replacement: "lru", Prefetcher: "stride"},
			L2:  LevelConf{Size: 2 * 1024 * 1024, Associativity: 16, BlockSize: 64, HitLatency: 12, MissLatency: 40, Replacement: "lru", Prefetcher: "stream"},
			L3:  LevelConf{Size: 16 * 1024 * 1024, Associativity: 16, BlockSize: 64, HitLatency: 35, MissLatency: 150, Replacement: "plru", Prefetcher: "none"},
		},
		Memory: MemoryConf{
			RAMSize: 256 * 1024 * 1024, RAMBase: 0x8000_0000,
			NumBanks: 8, RowSize: 8192,
			CASLatency: 14, RASLatency: 14, PrechargeLatency: 14, BurstLen: 4,
		},
		MMU: MMUConf{ITLBSize: 64, DTLBSize: 64},
		Bus: BusConf{Width: 8, Latency: 2},
		Trace: TraceConf{Enabled: false},
		StartPC: 0x8000_0000,
		InitialSP: 0x8000_0000 + 256*1024*1024 - 16,
		Devices: DeviceConf{
			UARTBase: 0x1000_0000, CLINTBase: 0x0200_0000, CLINTDivider: 100,
			PLICBase: 0x0c00_0000, SysconBase: 0x0010_0000,
		},
	}
}

// LoadConfig reads and validates a Config from a JSON file, starting
// from DefaultConfig so an incomplete file only overrides the fields it
// specifies.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as indented JSON.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if c.Width == 0 {
		return fmt.Errorf("width must be > 0")
	}
	if c.Backend != "timing" && c.Backend != "emulation" {
		return fmt.Errorf("backend must be \"timing\" or \"emulation\"")
	}
	for name, lvl := range map[string]LevelConf{"l1i": c.Cache.L1I, "l1d": c.Cache.L1D, "l2": c.Cache.L2, "l3": c.Cache.L3} {
		if lvl.Size <= 0 || lvl.Associativity <= 0 || lvl.BlockSize <= 0 {
			return fmt.Errorf("cache.%s: size, associativity, and block_size must be > 0", name)
		}
		if lvl.Size%(lvl.Associativity*lvl.BlockSize) != 0 {
			return fmt.Errorf("cache.%s: size must be a multiple of associativity*block_size", name)
		}
	}
	if c.Memory.RAMSize == 0 {
		return fmt.Errorf("memory.ram_size must be > 0")
	}
	if c.Memory.NumBanks <= 0 {
		return fmt.Errorf("memory.num_banks must be > 0")
	}
	if c.MMU.ITLBSize <= 0 || c.MMU.DTLBSize <= 0 {
		return fmt.Errorf("mmu tlb sizes must be > 0")
	}
	return nil
}

// Clone returns a deep copy of cfg.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}
