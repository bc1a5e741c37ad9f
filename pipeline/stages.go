package pipeline

import (
	"encoding/binary"

	"github.com/willmccallion/rvsim/addr"
	"github.com/willmccallion/rvsim/arch"
	"github.com/willmccallion/rvsim/insts"
	"github.com/willmccallion/rvsim/units"
)

// instLength reports an instruction's encoded length from its raw
// fetched word without a full decode, the same cheap predecode real
// front ends use to know how far to advance the fetch pointer before
// the formal DECODE stage runs.
func instLength(word uint32) int {
	if word&0x3 != 0x3 {
		return 2
	}
	return 4
}

// isCallWord / isReturnWord classify a raw 32-bit word as a call or
// return for branch-prediction purposes using only its opcode/register
// fields, mirroring a BTB's predecode bits rather than a full decode.
func isCallWord(word uint32) bool {
	opcode := word & 0x7f
	rd := uint8((word >> 7) & 0x1f)
	if opcode == 0b1101111 { // JAL
		return rd == 1 || rd == 5
	}
	if opcode == 0b1100111 { // JALR
		return rd == 1 || rd == 5
	}
	return false
}

func isReturnWord(word uint32) bool {
	opcode := word & 0x7f
	if opcode != 0b1100111 { // JALR
		return false
	}
	rd := uint8((word >> 7) & 0x1f)
	rs1 := uint8((word >> 15) & 0x1f)
	return (rs1 == 1 || rs1 == 5) && rd != rs1
}

// stageFetch1 fetches one instruction word per lane from the current
// speculative fetch PC, advancing it by each lane's predecoded length,
// and stops early on a lane that predecodes as a conditional branch, call
// or return, since FETCH2 may redirect fetch after it.
func (p *Pipeline) stageFetch1(out frontReg) {
	pc := p.fetchPC
	for i := 0; i < p.width; i++ {
		if p.haltFetch {
			return
		}
		res := p.icache.Read(pc, 4)
		word := binary.LittleEndian.Uint32(pad4(res.Data))
		out[i] = slot{valid: true, pc: pc, rawWord: word}
		length := instLength(word)

		if isCallWord(word) || isReturnWord(word) || isBranchOpcode(word) {
			// Stop fetching further lanes this cycle; FETCH2 will redirect
			// before the next lane's address is known.
			p.fetchPC = pc + uint64(length)
			return
		}
		pc += uint64(length)
	}
	p.fetchPC = pc
}

func pad4(b []byte) []byte {
	if len(b) >= 4 {
		return b
	}
	out := make([]byte, 4)
	copy(out, b)
	return out
}

func isBranchOpcode(word uint32) bool {
	opcode := word & 0x7f
	return opcode == 0b1100011 // all conditional branches
}

// stageFetch2 consults the branch predictor for every branch/call/return
// lane, redirecting future fetch if a lane is predicted taken. Every
// valid lane (not just branches) captures the RAS's position right
// after its own speculative effect, since any instruction can end up
// being the one a later squash rolls the RAS back to.
func (p *Pipeline) stageFetch2(in frontReg, out frontReg) {
	for i := 0; i < p.width; i++ {
		out[i] = in[i]
		if !in[i].valid {
			continue
		}
		word := in[i].rawWord
		call := isCallWord(word)
		ret := isReturnWord(word)
		branch := isBranchOpcode(word)
		if call || ret || branch {
			pred := p.bp.Predict(in[i].pc, call, ret)
			out[i].predTaken = pred.Taken
			out[i].predTarget = pred.Target
			out[i].predTargetKnown = pred.TargetKnown
			if call {
				p.bp.PushReturn(in[i].pc + uint64(instLength(word)))
			}
			if pred.Taken && pred.TargetKnown {
				p.fetchPC = pred.Target
			}
		}
		out[i].rasSnapSP, out[i].rasSnapCount = p.bp.RASSnapshot()
	}
}

// stageDecode turns each lane's raw word into a full insts.Instruction.
// The decoder runs in full here, independently of FETCH2's predecode
// classification, to produce the operand fields RENAME and EXECUTE need.
func (p *Pipeline) stageDecode(in frontReg, out frontReg) {
	for i := 0; i < p.width; i++ {
		out[i] = in[i]
		if !in[i].valid {
			continue
		}
		out[i].inst = p.decoder.Decode(in[i].rawWord, in[i].pc)
	}
}

// stageRename allocates a ROB entry and (for stores) a store-buffer slot
// for each valid lane, and records the scoreboard mapping so later
// instructions reading the same destination register see this entry as
// the current producer. RENAME stalls a lane (and every lane behind it,
// preserving program order) when the ROB has no free entries.
func (p *Pipeline) stageRename(in frontReg) {
	if p.haltFetch && p.rob.Free() > 0 {
		p.haltFetch = false
	}
	for i := 0; i < p.width; i++ {
		if !in[i].valid {
			continue
		}
		if p.rob.Free() == 0 {
			p.stats.ROBFullStalls++
			p.stats.StallsControl++
			// The front end has no separate buffer to hold undispatched
			// lanes across a stall, so the simplest correct fallback is to
			// refetch this lane (and everything behind it) once the ROB
			// has room again, by resetting speculative fetch back to it.
			p.fetchPC = in[i].pc
			p.haltFetch = true
			return
		}
		inst := in[i].inst
		tag := p.rob.Allocate(in[i].pc, *inst)
		entry := p.rob.Entry(tag)
		entry.RASSnapSP, entry.RASSnapCount = in[i].rasSnapSP, in[i].rasSnapCount

		if inst.Illegal {
			// A malformed or reserved encoding never reaches EXECUTE: it
			// traps as soon as it would otherwise issue, recorded on
			// entry.Trap the same way ECALL/EBREAK record their own causes
			// in executeSystem, so COMMIT handles all three the same way.
			entry.Trap = &addr.Trap{Cause: addr.CauseIllegalInstruction, Tval: uint64(in[i].rawWord)}
			entry.Done = true
			entry.Issued = true
			continue
		}

		entry.HasRd = inst.WritesRd()
		entry.Rd = inst.Rd
		entry.IsFPRd = inst.IsFPRd
		entry.IsBranch = inst.IsBranch() || inst.Op == insts.OpJAL || inst.Op == insts.OpJALR
		entry.PredictedTaken = in[i].predTaken
		entry.PredictedTarget = in[i].predTarget
		entry.IsStore = inst.Class == insts.ClassStore
		entry.IsLoad = inst.Class == insts.ClassLoad

		if entry.HasRd {
			if inst.IsFPRd {
				p.sb.MarkFPProducer(inst.Rd, tag)
			} else {
				p.sb.MarkIntProducer(inst.Rd, tag)
			}
		}
		if entry.IsStore {
			p.storeBuf.Allocate(tag)
		}
	}
}

// readOperand resolves a source register's value: either the committed
// architectural value (no outstanding producer) or the result already
// computed by an in-flight producer (forwarded straight off the ROB,
// the same role a common data bus plays in a real OOO core). ready is
// false only when a producer exists and hasn't finished yet.
func (p *Pipeline) readOperand(reg uint8, isFP bool) (value uint64, ready bool) {
	var producer int
	if isFP {
		producer = p.sb.FPProducer(reg)
	} else {
		producer = p.sb.IntProducer(reg)
	}
	if producer == -1 {
		if isFP {
			return p.state.FP.RawBits(reg), true
		}
		return p.state.Int.ReadReg(reg), true
	}
	e := p.rob.Entry(producer)
	if !e.Valid || !e.Done {
		return 0, false
	}
	return e.Result, true
}

// stageIssue scans the ROB in program order for entries not yet issued
// whose operands are all ready, and dispatches up to width of them per
// cycle to EXECUTE. Program-order scanning with no artificial reordering
// keeps older ready instructions from starving behind younger ones only
// by issue width, not by design; true OOO issue would use a
// separate reservation-station wakeup array, which this dispatch-by-scan
// approach approximates at the cost of an O(ROB) scan per cycle.
func (p *Pipeline) stageIssue() {
	dispatched := 0
	for _, e := range p.rob.InFlight() {
		if dispatched >= p.width {
			return
		}
		if e.Issued || !e.Valid {
			continue
		}
		inst := &e.Inst
		if isSystemClass(inst) && e != p.rob.Head() {
			// System/CSR instructions only issue once they reach the ROB
			// head, serializing them so a speculative privilege or CSR
			// change never has to be undone.
			continue
		}
		op1, op2, op3, ok := p.resolveOperands(e.Tag, inst)
		if !ok {
			p.stats.StallsData++
			continue
		}
		e.Issued = true
		dispatched++
		p.dispatchExecute(e.Tag, inst, op1, op2, op3)
	}
}

func isSystemClass(inst *insts.Instruction) bool {
	return inst.Class == insts.ClassSystem || inst.Class == insts.ClassCSR
}

func (p *Pipeline) resolveOperands(tag int, inst *insts.Instruction) (op1, op2, op3 uint64, ok bool) {
	switch inst.Format {
	case insts.FormatR:
		v1, r1 := p.readOperand(inst.Rs1, inst.IsFPRs1)
		if inst.Class == insts.ClassFPU && !inst.IsFPRs2 {
			// rs2 is a format selector (FCVT's int-width field), a
			// register-state-change indicator, or simply unused for this
			// op, not a value to read.
			return v1, 0, 0, r1
		}
		v2, r2 := p.readOperand(inst.Rs2, inst.IsFPRs2)
		return v1, v2, 0, r1 && r2
	case insts.FormatR4:
		v1, r1 := p.readOperand(inst.Rs1, inst.IsFPRs1)
		v2, r2 := p.readOperand(inst.Rs2, inst.IsFPRs2)
		v3, r3 := p.readOperand(inst.Rs3, inst.IsFPRs3)
		return v1, v2, v3, r1 && r2 && r3
	case insts.FormatAMO:
		v1, r1 := p.readOperand(inst.Rs1, false)
		v2, r2 := p.readOperand(inst.Rs2, false)
		return v1, v2, 0, r1 && r2
	case insts.FormatI:
		v1, r1 := p.readOperand(inst.Rs1, inst.IsFPRs1)
		return v1, uint64(inst.Imm), 0, r1
	case insts.FormatS:
		v1, r1 := p.readOperand(inst.Rs1, false)
		v2, r2 := p.readOperand(inst.Rs2, inst.IsFPRs2)
		return v1, v2, 0, r1 && r2
	case insts.FormatB:
		v1, r1 := p.readOperand(inst.Rs1, false)
		v2, r2 := p.readOperand(inst.Rs2, false)
		return v1, v2, 0, r1 && r2
	case insts.FormatU, insts.FormatJ:
		return 0, 0, 0, true
	case insts.FormatCSR, insts.FormatSystem, insts.FormatFence:
		if inst.Rs1 != 0 {
			v1, r1 := p.readOperand(inst.Rs1, false)
			return v1, 0, 0, r1
		}
		return 0, 0, 0, true
	default:
		return 0, 0, 0, true
	}
}

// execLatency returns a functional unit's static issue-to-writeback
// latency in cycles, absent a cache or memory-controller-driven delay.
func execLatency(inst *insts.Instruction) int {
	switch {
	case inst.Class == insts.ClassMul:
		return 3
	case inst.Class == insts.ClassDiv:
		return 12
	case inst.Class == insts.ClassFPU:
		return 4
	default:
		return 1
	}
}

// dispatchExecute performs EXECUTE (and, for ALU/branch/mul/div/FPU ops
// that never touch memory, folds in MEM1/MEM2/WRITEBACK since those
// stages are no-ops for them) and schedules a functional-unit latency
// after which stageComplete finishes the ROB entry. Loads, stores, and
// atomics instead hand off to stageMem, which models MEM1/MEM2 against
// the data cache explicitly since their latency depends on a cache hit
// or miss rather than a fixed functional-unit delay.
func (p *Pipeline) dispatchExecute(tag int, inst *insts.Instruction, op1, op2, op3 uint64) {
	e := p.rob.Entry(tag)

	switch {
	case inst.IsAMO():
		p.pendingMem[tag] = &memOp{kind: memKindAMO, base: op1, regVal: op2}
		e.RemainingLatency = 1
		return
	case inst.Class == insts.ClassLoad:
		addrEff := p.addrGen.Effective(op1, inst.Imm)
		p.pendingMem[tag] = &memOp{kind: memKindLoad, addr: addrEff}
		e.RemainingLatency = 1
		return
	case inst.Class == insts.ClassStore:
		addrEff := p.addrGen.Effective(op1, inst.Imm)
		width := units.StoreWidth(inst.Op)
		p.storeBuf.SetAddrData(tag, addrEff, op2, width)
		e.IsStore, e.StoreAddr, e.StoreData, e.StoreWidth = true, addrEff, op2, width
		e.Done = true
		e.RemainingLatency = 0
		return
	}

	switch inst.Class {
	case insts.ClassALU:
		switch inst.Op {
		case insts.OpLUI:
			e.Result = uint64(inst.Imm)
		case insts.OpAUIPC:
			e.Result = uint64(int64(e.PC) + inst.Imm)
		default:
			e.Result = p.alu.Execute(inst.Op, op1, op2)
		}
	case insts.ClassMul:
		e.Result = p.mulUnit.Execute(inst.Op, op1, op2)
	case insts.ClassDiv:
		e.Result = p.divUnit.Execute(inst.Op, op1, op2)
	case insts.ClassBranch:
		p.resolveBranch(e, inst, op1, op2)
	case insts.ClassFPU:
		p.executeFPU(e, inst, op1, op2, op3)
	case insts.ClassSystem, insts.ClassCSR:
		p.executeSystem(e, inst, op1)
	}
	e.RemainingLatency = execLatency(inst)
}

func (p *Pipeline) resolveBranch(e *ROBEntry, inst *insts.Instruction, op1, op2 uint64) {
	switch inst.Op {
	case insts.OpJAL:
		e.ActualTaken = true
		e.ActualTarget = uint64(int64(e.PC) + inst.Imm)
		e.Result = e.PC + uint64(lengthOfInst(inst))
	case insts.OpJALR:
		e.ActualTaken = true
		e.ActualTarget = p.branchUnit.JALRTarget(op1, inst.Imm)
		e.Result = e.PC + uint64(lengthOfInst(inst))
	default:
		taken := p.branchUnit.Taken(inst.Op, op1, op2)
		e.ActualTaken = taken
		if taken {
			e.ActualTarget = p.branchUnit.Target(e.PC, inst.Imm)
		} else {
			e.ActualTarget = e.PC + uint64(lengthOfInst(inst))
		}
	}
	e.Mispredicted = e.ActualTaken != e.PredictedTaken ||
		(e.ActualTaken && e.ActualTarget != e.PredictedTarget)
}

func lengthOfInst(inst *insts.Instruction) uint8 {
	if inst.Length == 0 {
		return 4
	}
	return inst.Length
}

func (p *Pipeline) executeFPU(e *ROBEntry, inst *insts.Instruction, op1, op2, op3 uint64) {
	switch inst.Op {
	case insts.OpFEQ, insts.OpFLT, insts.OpFLE:
		res, _ := p.fpu.Compare(inst.Op, bitsToDouble(op1, inst.FPWidth), bitsToDouble(op2, inst.FPWidth))
		e.Result = res
	case insts.OpFCLASS:
		e.Result = p.fpu.Classify(bitsToDouble(op1, inst.FPWidth))
	case insts.OpFCVTToInt:
		// rs2's field encodes the integer format: 0=W, 1=WU, 2=L, 3=LU.
		signed := inst.Rs2&1 == 0
		width := 32
		if inst.Rs2&2 != 0 {
			width = 64
		}
		res, _ := units.ConvertFloatToInt(bitsToDouble(op1, inst.FPWidth), signed, width)
		e.Result = res
	case insts.OpFCVTFromInt:
		signed := inst.Rs2&1 == 0
		width := 32
		if inst.Rs2&2 != 0 {
			width = 64
		}
		f := units.ConvertIntToFloat(op1, signed, width)
		e.Result = doubleToBits(f, inst.FPWidth)
	case insts.OpFMVXtoF, insts.OpFMVFtoX:
		e.Result = op1
	case insts.OpFCVTFtoF:
		// FPWidth already holds the *target* width (the decoder special-
		// cases rs2 for this op); the source width is the opposite one.
		if inst.FPWidth == insts.FPDouble {
			e.Result = doubleToBits(float64(float32FromBits(uint32(op1))), insts.FPDouble)
		} else {
			e.Result = doubleToBits(float64(float32(float64FromBits(op1))), insts.FPSingle)
		}
	default:
		if inst.FPWidth == insts.FPSingle {
			r, _ := p.fpu.ExecuteSingle(inst.Op, float32FromBits(uint32(op1)), float32FromBits(uint32(op2)), float32FromBits(uint32(op3)))
			e.Result = uint64(float32ToBits(r)) | nanBoxMask
		} else {
			r, _ := p.fpu.ExecuteDouble(inst.Op, bitsToDouble(op1, insts.FPDouble), bitsToDouble(op2, insts.FPDouble), bitsToDouble(op3, insts.FPDouble))
			e.Result = doubleToBits(r, insts.FPDouble)
		}
	}
}

// executeSystem handles CSR and privileged SYSTEM instructions. Because
// stageIssue only dispatches these once an entry reaches the ROB head,
// it is always safe to read/write CSR state here immediately rather
// than deferring the side effect to COMMIT.
func (p *Pipeline) executeSystem(e *ROBEntry, inst *insts.Instruction, op1 uint64) {
	switch inst.Op {
	case insts.OpCSRRW, insts.OpCSRRS, insts.OpCSRRC, insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
		old := p.state.CSR.Read(inst.CSRAddr)
		e.Result = old
		var src uint64
		switch inst.Op {
		case insts.OpCSRRWI, insts.OpCSRRSI, insts.OpCSRRCI:
			src = uint64(inst.CSRImm)
		default:
			src = op1
		}
		switch inst.Op {
		case insts.OpCSRRW, insts.OpCSRRWI:
			p.state.CSR.Write(inst.CSRAddr, src)
		case insts.OpCSRRS, insts.OpCSRRSI:
			p.state.CSR.Write(inst.CSRAddr, old|src)
		case insts.OpCSRRC, insts.OpCSRRCI:
			p.state.CSR.Write(inst.CSRAddr, old&^src)
		}
	case insts.OpECALL:
		cause := addr.CauseEnvCallFromU
		switch p.state.Priv {
		case addr.PrivS:
			cause = addr.CauseEnvCallFromS
		case addr.PrivM:
			cause = addr.CauseEnvCallFromM
		}
		e.Trap = &addr.Trap{Cause: cause}
	case insts.OpEBREAK:
		e.Trap = &addr.Trap{Cause: addr.CauseBreakpoint}
	case insts.OpMRET:
		pc, priv := p.state.CSR.Return(true)
		e.Result = pc
		e.ActualTarget = pc
		e.ActualTaken = true
		_ = priv
	case insts.OpSRET:
		pc, priv := p.state.CSR.Return(false)
		e.Result = pc
		e.ActualTarget = pc
		e.ActualTaken = true
		_ = priv
	case insts.OpSFENCEVMA:
		p.mmuUnit.SFENCEVMA(true, true, 0, 0)
	case insts.OpFENCE, insts.OpFENCEI, insts.OpWFI:
		// No-ops in this single-hart, strongly-ordered memory model.
	}
}

const nanBoxMask = 0xffffffff00000000

func bitsToDouble(bits uint64, width insts.FPWidth) float64 {
	if width == insts.FPSingle {
		return float64(float32FromBits(uint32(bits)))
	}
	return float64FromBits(bits)
}

func doubleToBits(v float64, width insts.FPWidth) uint64 {
	if width == insts.FPSingle {
		return uint64(float32ToBits(float32(v))) | nanBoxMask
	}
	return float64ToBits(v)
}

// stageComplete decrements every pending functional-unit latency and
// the in-flight memory-operation state machine, marking ROB entries
// Done once their latency reaches zero. This folds WRITEBACK into the
// latency countdown itself: the entry becomes externally visible
// (readOperand-forwardable) the instant RemainingLatency hits 0.
func (p *Pipeline) stageComplete() {
	for _, e := range p.rob.InFlight() {
		if !e.Issued || e.Done {
			continue
		}
		if mem, ok := p.pendingMem[e.Tag]; ok {
			p.stageMem(e, mem)
			continue
		}
		if e.RemainingLatency > 0 {
			e.RemainingLatency--
		}
		if e.RemainingLatency == 0 {
			e.Done = true
		}
	}
}

type memKind int

const (
	memKindLoad memKind = iota
	memKindAMO
)

type memOp struct {
	kind    memKind
	addr    uint64
	base    uint64
	regVal  uint64
	issued  bool // false until the cache has been accessed once
	latency int
}

// stageMem implements MEM1 (store-forward check, address translation,
// and cache issue, all on the first cycle an entry is seen here) and
// MEM2 (the wait for the cache's reported hit/miss latency before the
// result becomes visible) for one in-flight load or AMO. The cache
// access itself is not re-issued every cycle of the wait: it runs once,
// and its reported Latency is then spent as an ordinary countdown,
// matching the teacher's cache_stages.go convention of not re-triggering
// a lookup on stall replays.
func (p *Pipeline) stageMem(e *ROBEntry, mem *memOp) {
	inst := &e.Inst

	if !mem.issued {
		va := mem.addr
		if inst.IsAMO() {
			va = mem.base
		}
		if data, ok := p.storeBuf.Forward(va, loadWidth(inst)); ok && !inst.IsAMO() {
			e.Result = units.ExtendLoad(inst.Op, data)
			e.RemainingLatency = 1
			delete(p.pendingMem, e.Tag)
			return
		}
		pa, trap := p.translate(va, addr.AccessRead, inst)
		if trap != nil {
			e.Trap = trap
			e.RemainingLatency = 1
			delete(p.pendingMem, e.Tag)
			return
		}

		mmio := p.bus != nil && p.bus.Contains(uint64(pa))

		if inst.Op == insts.OpSC {
			ok := p.state.CheckAndClearReservation(uint64(pa))
			if ok {
				p.memWrite(mmio, uint64(pa), 8, encodeWidth(mem.regVal, 8))
				e.Result = 0
			} else {
				e.Result = 1
			}
			e.RemainingLatency = 1
			delete(p.pendingMem, e.Tag)
			return
		}

		raw, latency := p.memRead(mmio, uint64(pa), memWidth(inst))

		switch {
		case inst.Op == insts.OpLR:
			p.state.SetReservation(uint64(pa))
			e.Result = raw
		case inst.IsAMO():
			au := units.NewAtomicUnit()
			newVal := au.Apply(inst.Op, 8, raw, mem.regVal)
			p.memWrite(mmio, uint64(pa), 8, encodeWidth(newVal, 8))
			e.Result = raw
		default:
			e.Result = units.ExtendLoad(inst.Op, raw)
		}

		mem.issued = true
		mem.latency = int(latency)
		if mem.latency < 1 {
			mem.latency = 1
		}
		return
	}

	p.stats.LoadStoreStalls++
	p.stats.StallsMem++
	mem.latency--
	if mem.latency <= 0 {
		e.RemainingLatency = 1
		delete(p.pendingMem, e.Tag)
	}
}

func (p *Pipeline) translate(va uint64, kind addr.AccessKind, inst *insts.Instruction) (addr.Physical, *addr.Trap) {
	if p.directMode {
		return addr.Physical(va), nil
	}
	satp := p.state.CSR.Read(arch.CSRSatp)
	sstatus := p.state.CSR.Read(arch.CSRSstatus)
	sum := sstatus&(1<<18) != 0
	mxr := sstatus&(1<<19) != 0
	return p.mmuUnit.Translate(addr.Virtual(va), kind, p.state.Priv, satp, sum, mxr)
}

// memRead resolves a physical read either through the cache hierarchy
// (ordinary RAM) or straight to the SoC bus (MMIO), since peripherals
// are never architecturally cacheable; it returns the zero-extended raw
// bytes and the latency to charge.
func (p *Pipeline) memRead(mmio bool, pa uint64, width int) (uint64, uint64) {
	if mmio {
		return binary.LittleEndian.Uint64(pad8(p.bus.Read(pa, width))), p.busLatency
	}
	res := p.dcache.Read(pa, width)
	return binary.LittleEndian.Uint64(pad8(res.Data)), res.Latency
}

// memWrite is memRead's write counterpart.
func (p *Pipeline) memWrite(mmio bool, pa uint64, width int, data []byte) {
	if mmio {
		p.bus.Write(pa, data)
		return
	}
	p.dcache.Write(pa, width, data)
}

func loadWidth(inst *insts.Instruction) int {
	return units.LoadWidth(inst.Op)
}

func memWidth(inst *insts.Instruction) int {
	if inst.IsAMO() {
		return 8
	}
	return units.LoadWidth(inst.Op)
}

func pad8(b []byte) []byte {
	if len(b) >= 8 {
		return b
	}
	out := make([]byte, 8)
	copy(out, b)
	return out
}

func encodeWidth(v uint64, width int) []byte {
	buf := make([]byte, width)
	switch width {
	case 1:
		buf[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	default:
		binary.LittleEndian.PutUint64(buf, v)
	}
	return buf
}

// stageCommit retires the ROB head in program order: writing its result
// to the architectural register file, draining a completed store to the
// data cache, redirecting fetch and squashing everything younger on a
// mispredict, and entering a trap handler when the entry faulted.
func (p *Pipeline) stageCommit() {
	for i := 0; i < p.width; i++ {
		head := p.rob.Head()
		if head == nil || !head.Done {
			return
		}

		if head.Trap != nil {
			if head.Inst.Op == insts.OpECALL && p.state.Int.ReadReg(17) == 93 {
				p.ecallExited = true
				p.ecallExitCode = int64(p.state.Int.ReadReg(10))
				p.rob.RetireHead()
				return
			}
			p.enterTrap(head)
			return
		}

		if head.HasRd {
			if head.IsFPRd {
				p.state.FP.WriteRawBits(head.Rd, head.Result)
			} else {
				p.state.Int.WriteReg(head.Rd, head.Result)
			}
			p.sb.ClearIfMatches(head.Rd, head.IsFPRd, head.Tag)
		}

		if head.IsStore {
			// Store addresses are translated here rather than in a MEM
			// stage of their own: RENAME already reserved the store
			// buffer slot in program order and EXECUTE filled in its
			// (virtual) address/data, so by the time a store reaches the
			// ROB head nothing younger can still be speculating past it
			// — the only thing left to resolve is translation, which is
			// safe to do right before the drain instead of earlier.
			if addrv, data, width, ok := p.storeBuf.DrainHead(head.Tag); ok {
				pa, trap := p.translate(addrv, addr.AccessWrite, &head.Inst)
				if trap != nil {
					head.Trap = trap
					p.enterTrap(head)
					return
				}
				p.state.ClearReservation()
				mmio := p.bus != nil && p.bus.Contains(uint64(pa))
				p.memWrite(mmio, uint64(pa), width, encodeWidth(data, width))
			}
		}

		p.stats.InstructionsRetired++
		p.countRetiredClass(head.Inst.Class)
		if head.IsBranch {
			p.stats.BranchesResolved++
			p.bp.Update(head.PC, head.ActualTaken, head.ActualTarget, false, false)
			if head.Mispredicted {
				p.stats.Mispredictions++
				p.squash(head.ActualTarget, head.RASSnapSP, head.RASSnapCount)
				p.rob.RetireHead()
				return
			}
		}
		if head.Inst.Op == insts.OpMRET || head.Inst.Op == insts.OpSRET {
			p.squash(head.Result, head.RASSnapSP, head.RASSnapCount)
			p.rob.RetireHead()
			return
		}

		p.rob.RetireHead()
	}
}

// countRetiredClass buckets one retired instruction into its per-class
// counter; the illegal-instruction class (ClassUnknown) is counted only
// in InstructionsRetired/Traps since it never reached a functional unit.
func (p *Pipeline) countRetiredClass(class insts.Class) {
	switch class {
	case insts.ClassALU:
		p.stats.InstALU++
	case insts.ClassBranch:
		p.stats.InstBranch++
	case insts.ClassLoad:
		p.stats.InstLoad++
	case insts.ClassStore:
		p.stats.InstStore++
	case insts.ClassMul:
		p.stats.InstMul++
	case insts.ClassDiv:
		p.stats.InstDiv++
	case insts.ClassFPU:
		p.stats.InstFPU++
	case insts.ClassCSR:
		p.stats.InstCSR++
	}
}

func (p *Pipeline) enterTrap(head *ROBEntry) {
	p.stats.Traps++
	if p.stats.TrapsByCause == nil {
		p.stats.TrapsByCause = make(map[addr.Cause]uint64)
	}
	p.stats.TrapsByCause[head.Trap.Cause]++
	toPriv := addr.PrivM
	target := p.state.CSR.EnterTrap(toPriv, p.state.Priv, head.PC, *head.Trap)
	p.state.Priv = toPriv
	p.squash(target, head.RASSnapSP, head.RASSnapCount)
	p.rob.RetireHead()
}

// squash discards every speculative instruction and buffered store
// younger than the one just resolved, redirects fetch to target, and
// rolls the RAS back to rasSP/rasCount — the position captured at
// FETCH2 right after the resolving instruction's own call push or
// return pop, undoing every push/pop made by the now-discarded,
// never-committed instructions younger than it.
func (p *Pipeline) squash(target uint64, rasSP, rasCount int) {
	p.rob.Flush()
	p.sb.Reset()
	p.storeBuf.Flush()
	p.pendingMem = make(map[int]*memOp)
	p.f1f2.clear()
	p.f2d.clear()
	p.dr.clear()
	p.bp.RASRestore(rasSP, rasCount)
	p.fetchPC = target
	p.haltFetch = false
}
