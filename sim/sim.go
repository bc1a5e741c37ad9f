// Package sim is the simulator driver: it wires the pipeline, the
// cache/DRAM memory hierarchy, the MMU, the branch predictor, and the
// SoC bus into one steppable Core, the same thin-wrapper role the
// teacher's timing/core.Core plays around its pipeline, generalized to
// the fuller component surface this core exercises.
package sim

import (
	"fmt"
	"io"
	"strings"

	"github.com/willmccallion/rvsim/arch"
	"github.com/willmccallion/rvsim/branchpred"
	"github.com/willmccallion/rvsim/cache"
	"github.com/willmccallion/rvsim/config"
	"github.com/willmccallion/rvsim/dram"
	"github.com/willmccallion/rvsim/loader"
	"github.com/willmccallion/rvsim/mmu"
	"github.com/willmccallion/rvsim/pipeline"
	"github.com/willmccallion/rvsim/soc"
	"github.com/willmccallion/rvsim/stats"
)

// ExitReason names why a Core stopped running.
type ExitReason int

const (
	// ExitNone means the core is still running.
	ExitNone ExitReason = iota
	// ExitECALL means a7=93 ECALL requested exit.
	ExitECALL
	// ExitSyscon means a syscon MMIO write requested exit.
	ExitSyscon
	// ExitTrap means an uncaught M-mode exception had no handler to fall
	// back to and the simulator terminated rather than loop forever.
	ExitTrap
)

// Core is one simulated hart: a pipeline plus everything it is wired
// against (memory hierarchy, MMU, SoC bus), steppable one cycle at a
// time or run to completion.
type Core struct {
	cfg *config.Config

	mem  *arch.Memory
	state *arch.State

	l1i, l1d, l2, l3 *cache.Level
	dramCtrl         *dram.Controller
	mmuUnit          *mmu.MMU
	bp               *branchpred.Unit
	pipe             *pipeline.Pipeline

	bus    *soc.Bus
	uart   *soc.UART
	clint  *soc.CLINT
	plic   *soc.PLIC
	syscon *soc.Syscon

	clintDivider uint64
	cyclesSinceClintStep uint64

	exitReason ExitReason
	exitCode   int

	stats *stats.Collector
}

// NewCore builds a fully-wired Core from cfg, loading prog into the
// backing RAM at its segment addresses and starting the hart's PC at
// prog.EntryPoint.
func NewCore(cfg *config.Config, prog *loader.Program, uartOut io.Writer) *Core {
	mem := arch.NewMemory(cfg.Memory.RAMBase, cfg.Memory.RAMSize)
	loader.PlaceInMemory(prog, mem)

	state := arch.NewState(mem, prog.EntryPoint)
	if prog.InitialSP != 0 {
		state.Int.WriteReg(2, prog.InitialSP)
	} else {
		state.Int.WriteReg(2, cfg.InitialSP)
	}

	dramCfg := dram.Config{
		NumBanks: cfg.Memory.NumBanks,
		RowSize:  cfg.Memory.RowSize,
		Timing: dram.Timing{
			CAS: cfg.Memory.CASLatency, RAS: cfg.Memory.RASLatency,
			Precharge: cfg.Memory.PrechargeLatency, BurstLen: cfg.Memory.BurstLen,
		},
		BaseAddr: cfg.Memory.RAMBase, SizeBytes: cfg.Memory.RAMSize,
	}
	dramCtrl := dram.New(dramCfg, mem)

	l3 := cache.New("l3", levelConfig(cfg.Cache.L3), dramCtrl)
	l2 := cache.New("l2", levelConfig(cfg.Cache.L2), cache.AsBackingStore(l3))
	l1i := cache.New("l1i", levelConfig(cfg.Cache.L1I), cache.AsBackingStore(l2))
	l1d := cache.New("l1d", levelConfig(cfg.Cache.L1D), cache.AsBackingStore(l2))
	l2.AddInclusiveChild(l1i)
	l2.AddInclusiveChild(l1d)
	l3.AddInclusiveChild(l2)

	mmuUnit := mmu.New(mmu.Config{ITLBEntries: cfg.MMU.ITLBSize, DTLBEntries: cfg.MMU.DTLBSize}, mem)

	bp := branchpred.NewUnit(branchpred.Config{
		Family:      parseFamily(cfg.BranchPredictor.Family),
		TableBits:   cfg.BranchPredictor.TableBits,
		HistoryBits: cfg.BranchPredictor.HistoryBits,
		BTBEntries:  cfg.BranchPredictor.BTBSize,
		RASEntries:  cfg.BranchPredictor.RASSize,
		TageTables:  cfg.BranchPredictor.TageTables,
	})

	c := &Core{
		cfg: cfg, mem: mem, state: state,
		l1i: l1i, l1d: l1d, l2: l2, l3: l3,
		dramCtrl: dramCtrl, mmuUnit: mmuUnit, bp: bp,
		clintDivider: cfg.Devices.CLINTDivider,
		stats:        stats.NewCollector(),
	}
	if c.clintDivider == 0 {
		c.clintDivider = 1
	}

	c.wireSoC(cfg, uartOut)

	opts := []pipeline.Option{
		pipeline.WithWidth(cfg.Width),
		pipeline.WithBranchPredictor(bp),
		pipeline.WithCaches(l1i, l1d),
		pipeline.WithBus(c.bus, cfg.Bus.Latency),
	}
	if cfg.DirectMode {
		opts = append(opts, pipeline.WithDirectMode(true))
	} else {
		opts = append(opts, pipeline.WithMMU(mmuUnit))
	}

	c.pipe = pipeline.New(state, l1i, l1d, opts...)
	return c
}

func (c *Core) wireSoC(cfg *config.Config, uartOut io.Writer) {
	c.bus = soc.NewBus()
	c.uart = soc.NewUART(uartOut)
	c.clint = soc.NewCLINT()
	c.plic = soc.NewPLIC()
	c.syscon = soc.NewSyscon(func(code int) {
		c.exitReason = ExitSyscon
		c.exitCode = code
	})

	c.bus.Attach("uart", cfg.Devices.UARTBase, 0x1000, c.uart)
	c.bus.Attach("clint", cfg.Devices.CLINTBase, 0x10000, c.clint)
	c.bus.Attach("plic", cfg.Devices.PLICBase, 0x400000, c.plic)
	c.bus.Attach("syscon", cfg.Devices.SysconBase, 0x1000, c.syscon)
	c.bus.Attach("virtio0", 0x9000_0000, 0x1000, soc.NewVirtIODisk())
}

func levelConfig(l config.LevelConf) cache.Config {
	return cache.Config{
		Size: l.Size, Associativity: l.Associativity, BlockSize: l.BlockSize,
		HitLatency: l.HitLatency, MissLatency: l.MissLatency,
		Replacement: parseReplacement(l.Replacement),
		Prefetcher:  parsePrefetch(l.Prefetcher),
	}
}

func parseReplacement(s string) cache.ReplacementKind {
	switch strings.ToLower(s) {
	case "plru":
		return cache.ReplacementPLRU
	case "fifo":
		return cache.ReplacementFIFO
	case "random":
		return cache.ReplacementRandom
	case "mru":
		return cache.ReplacementMRU
	default:
		return cache.ReplacementLRU
	}
}

func parsePrefetch(s string) cache.PrefetchKind {
	switch strings.ToLower(s) {
	case "next_line":
		return cache.PrefetchNextLine
	case "stride":
		return cache.PrefetchStride
	case "stream":
		return cache.PrefetchStream
	case "tagged":
		return cache.PrefetchTagged
	default:
		return cache.PrefetchNone
	}
}

func parseFamily(s string) branchpred.Family {
	switch strings.ToLower(s) {
	case "gshare":
		return branchpred.FamilyGShare
	case "tournament":
		return branchpred.FamilyTournament
	case "perceptron":
		return branchpred.FamilyPerceptron
	case "tage":
		return branchpred.FamilyTAGE
	default:
		return branchpred.FamilyStatic
	}
}

// Halted reports whether the core has stopped: either the pipeline
// itself halted (an ECALL a7=93 exit committed), or an exit was
// recorded via ECALL or syscon.
func (c *Core) Halted() bool {
	return c.pipe.Halted() || c.exitReason != ExitNone
}

// ExitReason reports why the core stopped.
func (c *Core) ExitReason() ExitReason { return c.exitReason }

// ExitCode returns the exit code reported by ECALL a7=93 or syscon.
func (c *Core) ExitCode() int { return c.exitCode }

// UART returns the core's UART device, letting a caller inspect
// transmitted output without having configured an io.Writer up front.
func (c *Core) UART() *soc.UART { return c.uart }

// Tick advances the core by one cycle: the pipeline itself, then a check
// for an ECALL-requested exit the pipeline can't act on by itself (it
// has no notion of "the simulator," only of committing a SYSTEM
// instruction), then the CLINT's divided timer step.
func (c *Core) Tick() {
	if c.Halted() {
		return
	}
	c.pipe.Tick()
	c.checkECALLExit()

	c.cyclesSinceClintStep++
	if c.cyclesSinceClintStep >= c.clintDivider {
		c.cyclesSinceClintStep = 0
		c.clint.Step()
	}
}

// checkECALLExit surfaces the pipeline's ECALL a7=93 exit convention as
// the core's own exit reason.
func (c *Core) checkECALLExit() {
	if c.exitReason != ExitNone {
		return
	}
	if c.pipe.ECALLExited() {
		c.exitReason = ExitECALL
		c.exitCode = int(c.pipe.ECALLExitCode())
	}
}

// Run executes the core until it halts, returning the exit code.
func (c *Core) Run() int {
	for !c.Halted() {
		c.Tick()
	}
	return c.ExitCode()
}

// RunCycles executes up to n cycles, stopping early if the core halts.
// Returns false once the core has halted.
func (c *Core) RunCycles(n uint64) bool {
	for i := uint64(0); i < n && !c.Halted(); i++ {
		c.Tick()
	}
	return !c.Halted()
}

// Reset restores the core to its pre-execution state, reusing the same
// memory image and configuration.
func (c *Core) Reset() {
	c.pipe.Reset()
	c.exitReason = ExitNone
	c.exitCode = 0
}

// Stats gathers every component's counters into one flat dictionary
// under the "core0." prefix, the dotted-key convention the stats
// package's Collector uses.
func (c *Core) Stats() *stats.Collector {
	s := c.stats
	ps := c.pipe.Stats()
	s.Set("core0.pipeline.cycles", ps.Cycles)
	s.Set("core0.pipeline.instructions_retired", ps.InstructionsRetired)
	s.Set("core0.pipeline.instructions_fetched", ps.InstructionsFetched)
	s.Set("core0.pipeline.branches_resolved", ps.BranchesResolved)
	s.Set("core0.pipeline.mispredictions", ps.Mispredictions)
	s.Set("core0.pipeline.traps", ps.Traps)
	s.Set("core0.pipeline.rob_full_stalls", ps.ROBFullStalls)
	s.Set("core0.pipeline.load_store_stalls", ps.LoadStoreStalls)

	for _, lvl := range []*cache.Level{c.l1i, c.l1d, c.l2, c.l3} {
		st := lvl.Stats()
		prefix := fmt.Sprintf("core0.cache.%s.", lvl.Name())
		s.Set(prefix+"reads", st.Reads)
		s.Set(prefix+"writes", st.Writes)
		s.Set(prefix+"hits", st.Hits)
		s.Set(prefix+"misses", st.Misses)
		s.Set(prefix+"evictions", st.Evictions)
		s.Set(prefix+"writebacks", st.Writebacks)
		s.Set(prefix+"prefetches", st.Prefetches)
	}

	bps := c.bp.Stats()
	s.Set("core0.branchpred.predictions", bps.Predictions)
	s.Set("core0.branchpred.correct", bps.Correct)
	s.Set("core0.branchpred.ras_hits", bps.RASHits)

	// The flat, unprefixed keys below are the dictionary's own vocabulary
	// (what Collector.IPC/CPI read, and what a cross-core-naming-agnostic
	// consumer would look for), coexisting with the core0.*-prefixed keys
	// above rather than replacing them.
	s.Set("cycles", ps.Cycles)
	s.Set("instructions_retired", ps.InstructionsRetired)
	s.Set("inst_alu", ps.InstALU)
	s.Set("inst_load", ps.InstLoad)
	s.Set("inst_store", ps.InstStore)
	s.Set("inst_branch", ps.InstBranch)
	s.Set("inst_mul", ps.InstMul)
	s.Set("inst_div", ps.InstDiv)
	s.Set("inst_fpu", ps.InstFPU)
	s.Set("inst_csr", ps.InstCSR)

	s.Set("stalls_control", ps.StallsControl)
	s.Set("stalls_data", ps.StallsData)
	s.Set("stalls_mem", ps.StallsMem)

	for cause, count := range ps.TrapsByCause {
		s.Set("traps_"+cause.Name(), count)
	}

	mmuStats := c.pipe.MMUStats()
	s.Set("tlb_hits", mmuStats.Hits)
	s.Set("tlb_misses", mmuStats.Misses)

	s.Set("branch_predictions", bps.Predictions)
	s.Set("branch_mispredictions", bps.Mispredictions)
	s.SetFloat("ipc", s.IPC())
	if bps.Predictions > 0 {
		s.SetFloat("branch_accuracy_pct", 100*float64(bps.Correct)/float64(bps.Predictions))
	} else {
		s.SetFloat("branch_accuracy_pct", 0)
	}

	return s
}
