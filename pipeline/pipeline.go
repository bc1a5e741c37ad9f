package pipeline

import (
	"github.com/willmccallion/rvsim/addr"
	"github.com/willmccallion/rvsim/arch"
	"github.com/willmccallion/rvsim/branchpred"
	"github.com/willmccallion/rvsim/cache"
	"github.com/willmccallion/rvsim/insts"
	"github.com/willmccallion/rvsim/mmu"
	"github.com/willmccallion/rvsim/units"
)

// DefaultWidth is the pipeline's default issue/commit width, used when no
// WithWidth option is supplied.
const DefaultWidth = 4

// DefaultROBCapacity is the default number of in-flight instructions the
// reorder buffer can hold.
const DefaultROBCapacity = 64

// Pipeline is the 10-stage superscalar out-of-order core described in the
// package doc comment. It owns the reorder buffer, scoreboard, store
// buffer, and the functional units every dispatched instruction is
// routed to; it does not own architectural state directly, instead
// operating on an injected *arch.State so the same pipeline can drive
// different harts or be reset independently of simulator-wide state.
type Pipeline struct {
	width int

	state      *arch.State
	decoder    *insts.Decoder
	rob        *ROB
	sb         *Scoreboard
	storeBuf   *StoreBuffer
	bp         *branchpred.Unit
	icache     *cache.Level
	dcache     *cache.Level
	mmuUnit    mmuTranslator
	directMode bool

	alu        *units.ALU
	mulUnit    *units.MulUnit
	divUnit    *units.DivUnit
	branchUnit *units.BranchUnit
	addrGen    *units.AddressGen
	fpu        *units.FPU

	pendingMem map[int]*memOp

	bus        busAccessor
	busLatency uint64

	fetchPC   uint64
	haltFetch bool
	halted    bool

	// ecallExited/ecallExitCode implement the ECALL a7=93 exit
	// convention riscv-tests and most bare-metal RISC-V test harnesses
	// use: rather than modeling a real operating system's syscall
	// dispatch, an M-mode ECALL with a7=93 is recognized at commit as a
	// request to stop the simulator and report a0 as the exit code.
	ecallExited  bool
	ecallExitCode int64

	f1f2, f1f2Next frontReg
	f2d, f2dNext   frontReg
	dr, drNext     frontReg

	stats Stats
}

// mmuTranslator is the subset of *mmu.MMU the pipeline depends on,
// letting tests substitute a trivial identity-mapping stub without
// constructing a full SV39 walker.
type mmuTranslator interface {
	Translate(va addr.Virtual, kind addr.AccessKind, priv addr.Privilege, satp uint64, sum, mxr bool) (addr.Physical, *addr.Trap)
	SFENCEVMA(matchAllAddr, matchAllASID bool, va addr.Virtual, asid uint16)
	Stats() mmu.Stats
}

// busAccessor is the subset of *soc.Bus the pipeline's memory stage
// needs: a way to tell whether a physical address is MMIO rather than
// backing RAM, and raw byte access bypassing the cache hierarchy
// entirely, since peripherals are never architecturally cacheable.
type busAccessor interface {
	Contains(addr uint64) bool
	Read(addr uint64, size int) []byte
	Write(addr uint64, data []byte)
}

// Option configures a Pipeline at construction time, following the
// functional-options idiom the rest of this codebase uses for its
// constructors.
type Option func(*Pipeline)

// WithWidth sets the superscalar fetch/issue/commit width.
func WithWidth(width int) Option {
	return func(p *Pipeline) { p.width = width }
}

// WithROBCapacity sets the reorder buffer's entry count.
func WithROBCapacity(capacity int) Option {
	return func(p *Pipeline) { p.rob = NewROB(capacity) }
}

// WithBranchPredictor injects a configured branch prediction unit.
func WithBranchPredictor(bp *branchpred.Unit) Option {
	return func(p *Pipeline) { p.bp = bp }
}

// WithCaches injects the instruction and data cache levels EXECUTE's
// MEM stages issue against.
func WithCaches(icache, dcache *cache.Level) Option {
	return func(p *Pipeline) { p.icache, p.dcache = icache, dcache }
}

// WithMMU injects the MMU used for virtual-address translation; when
// omitted the pipeline runs in direct (identity-mapped) mode.
func WithMMU(m mmuTranslator) Option {
	return func(p *Pipeline) { p.mmuUnit = m; p.directMode = false }
}

// WithDirectMode forces identity-mapped (no translation) operation
// regardless of whether an MMU was injected, matching the teacher's
// bare-metal fast-path configuration.
func WithDirectMode(direct bool) Option {
	return func(p *Pipeline) { p.directMode = direct }
}

// WithBus injects the SoC bus MMIO loads/stores are routed to once a
// translated physical address falls outside the cached RAM region, and
// the fixed per-access latency charged for that uncached crossing.
func WithBus(bus busAccessor, latency uint64) Option {
	return func(p *Pipeline) { p.bus = bus; p.busLatency = latency }
}

// New creates a Pipeline bound to state, with icache/dcache required
// (every core needs somewhere to fetch from and access data through)
// and every other component defaulted, then overridden by opts.
func New(state *arch.State, icache, dcache *cache.Level, opts ...Option) *Pipeline {
	p := &Pipeline{
		width:      DefaultWidth,
		state:      state,
		decoder:    insts.NewDecoder(),
		rob:        NewROB(DefaultROBCapacity),
		sb:         NewScoreboard(),
		storeBuf:   NewStoreBuffer(),
		bp:         branchpred.NewUnit(branchpred.DefaultConfig()),
		icache:     icache,
		dcache:     dcache,
		directMode: true,
		alu:        units.NewALU(),
		mulUnit:    units.NewMulUnit(),
		divUnit:    units.NewDivUnit(),
		branchUnit: units.NewBranchUnit(),
		addrGen:    units.NewAddressGen(),
		fpu:        units.NewFPU(),
		pendingMem: make(map[int]*memOp),
		busLatency: 2,
		fetchPC:    state.PC,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.f1f2 = newFrontReg(p.width)
	p.f1f2Next = newFrontReg(p.width)
	p.f2d = newFrontReg(p.width)
	p.f2dNext = newFrontReg(p.width)
	p.dr = newFrontReg(p.width)
	p.drNext = newFrontReg(p.width)
	return p
}

// Halted reports whether the pipeline has stopped. No stage sets the
// halted flag (WFI retires as a no-op), so in practice this becomes true
// only once an ECALL a7=93 exit request commits; callers typically stop
// calling Tick once this is true.
func (p *Pipeline) Halted() bool { return p.halted || p.ecallExited }

// ECALLExited reports whether an ECALL a7=93 exit request has committed.
func (p *Pipeline) ECALLExited() bool { return p.ecallExited }

// ECALLExitCode returns the a0 value reported with the exit request.
func (p *Pipeline) ECALLExitCode() int64 { return p.ecallExitCode }

// Stats returns the pipeline's cumulative statistics.
func (p *Pipeline) Stats() Stats { return p.stats }

// MMUStats returns the TLB hit/miss counters, zero-valued in direct
// mode where no MMU is attached.
func (p *Pipeline) MMUStats() mmu.Stats {
	if p.mmuUnit == nil {
		return mmu.Stats{}
	}
	return p.mmuUnit.Stats()
}

// PC returns the architectural program counter of the next instruction
// to retire, i.e. the ROB head's PC if non-empty, else the speculative
// fetch PC.
func (p *Pipeline) PC() uint64 {
	if head := p.rob.Head(); head != nil {
		return head.PC
	}
	return p.fetchPC
}

// Tick advances the pipeline by one cycle. Stages are evaluated in
// reverse pipeline order so that a stage reads only its predecessor's
// *current* register, never one already overwritten this cycle, then
// every "next" register is swapped into "current" synchronously at the
// end — the same two-phase discipline the teacher's fixed-width
// pipeline registers use, generalized to width-parameterized slices.
func (p *Pipeline) Tick() {
	if p.Halted() {
		return
	}
	p.stats.Cycles++

	p.stageCommit()
	p.stageComplete()
	p.stageIssue()

	// DECODE and FETCH2 each populate every lane of their output register
	// unconditionally (a lane is either copied through invalid or fully
	// rewritten), so only FETCH1's output needs an explicit clear: it can
	// stop early mid-register on a branch, call or return, or a halted
	// fetch, leaving trailing lanes that must read back as invalid.
	// RENAME has no further register of its own — its output is the ROB,
	// which ISSUE scans directly.
	p.stageRename(p.dr)
	p.stageDecode(p.f2d, p.drNext)
	p.stageFetch2(p.f1f2, p.f2dNext)
	p.f1f2Next.clear()
	p.stageFetch1(p.f1f2Next)

	p.f1f2, p.f1f2Next = p.f1f2Next, p.f1f2
	p.f2d, p.f2dNext = p.f2dNext, p.f2d
	p.dr, p.drNext = p.drNext, p.dr

	for _, s := range p.dr {
		if s.valid {
			p.stats.InstructionsFetched++
		}
	}
}

// Reset clears every piece of pipeline state back to a fresh hart,
// refetching from the architectural state's current PC.
func (p *Pipeline) Reset() {
	p.rob.Flush()
	p.sb.Reset()
	p.storeBuf.Flush()
	p.pendingMem = make(map[int]*memOp)
	p.f1f2.clear()
	p.f2d.clear()
	p.dr.clear()
	p.bp.Reset()
	p.fetchPC = p.state.PC
	p.haltFetch = false
	p.halted = false
	p.ecallExited = false
	p.ecallExitCode = 0
	p.stats = Stats{}
}
