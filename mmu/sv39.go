// Package mmu implements SV39 virtual address translation: a three-level
// page walk over physical memory, split instruction/data TLBs, and the
// access-permission checks that turn a failed walk into a page fault.
package mmu

import (
	"github.com/willmccallion/rvsim/addr"
	"github.com/willmccallion/rvsim/arch"
)

// SV39 page table entry bit positions.
const (
	pteV = uint64(1) << 0
	pteR = uint64(1) << 1
	pteW = uint64(1) << 2
	pteX = uint64(1) << 3
	pteU = uint64(1) << 4
	pteG = uint64(1) << 5
	pteA = uint64(1) << 6
	pteD = uint64(1) << 7

	pageShift = 12
	pageSize  = uint64(1) << pageShift
	ptesPerPage = 512
)

// satpModeSV39 is the satp.MODE value selecting SV39.
const satpModeSV39 = uint64(8)

// MMU performs SV39 translation for one hart, backed by split
// instruction/data TLBs.
type MMU struct {
	mem *arch.Memory
	itlb *TLB
	dtlb *TLB

	hits, misses uint64
}

// Stats reports the combined instruction/data TLB hit and miss counts.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Stats returns the MMU's TLB hit/miss counters.
func (m *MMU) Stats() Stats {
	return Stats{Hits: m.hits, Misses: m.misses}
}

// Config sizes the two TLBs.
type Config struct {
	ITLBEntries int
	DTLBEntries int
}

// DefaultConfig returns a 64-entry iTLB/dTLB pair.
func DefaultConfig() Config {
	return Config{ITLBEntries: 64, DTLBEntries: 64}
}

// New creates an MMU reading page tables from mem.
func New(config Config, mem *arch.Memory) *MMU {
	return &MMU{
		mem:  mem,
		itlb: NewTLB(config.ITLBEntries),
		dtlb: NewTLB(config.DTLBEntries),
	}
}

// Translate resolves a virtual address to a physical one for the given
// access kind, privilege level, and satp CSR value. When satp's MODE
// field selects Bare addressing, translation is the identity function.
func (m *MMU) Translate(va addr.Virtual, kind addr.AccessKind, priv addr.Privilege, satp uint64, mstatusSUM, mstatusMXR bool) (addr.Physical, *addr.Trap) {
	mode := satp >> 60
	if mode != satpModeSV39 || priv == addr.PrivM {
		return addr.Physical(va), nil
	}

	tlb := m.tlbFor(kind)
	asid := uint16((satp >> 44) & 0xffff)
	vpn := uint64(va) >> pageShift

	if entry, ok := tlb.Lookup(asid, vpn); ok {
		m.hits++
		if trap := checkPermission(entry.pte, kind, priv, mstatusSUM, mstatusMXR, va); trap != nil {
			return 0, trap
		}
		pa := (entry.ppn << pageShift) | (uint64(va) & (pageSize - 1))
		return addr.Physical(pa), nil
	}
	m.misses++

	ppn, pte, trap := m.walk(va, satp&((uint64(1)<<44)-1), kind, priv, mstatusSUM, mstatusMXR)
	if trap != nil {
		return 0, trap
	}
	tlb.Insert(asid, vpn, ppn, pte)
	pa := (ppn << pageShift) | (uint64(va) & (pageSize - 1))
	return addr.Physical(pa), nil
}

func (m *MMU) tlbFor(kind addr.AccessKind) *TLB {
	if kind == addr.AccessFetch {
		return m.itlb
	}
	return m.dtlb
}

// walk performs the three-level SV39 page table walk.
func (m *MMU) walk(va addr.Virtual, rootPPN uint64, kind addr.AccessKind, priv addr.Privilege, sum, mxr bool) (ppn uint64, pte uint64, trap *addr.Trap) {
	vpn := [3]uint64{
		(uint64(va) >> 12) & 0x1ff,
		(uint64(va) >> 21) & 0x1ff,
		(uint64(va) >> 30) & 0x1ff,
	}

	faultCause := addr.CauseLoadPageFault
	switch kind {
	case addr.AccessFetch:
		faultCause = addr.CauseInstPageFault
	case addr.AccessWrite:
		faultCause = addr.CauseStoreAMOPageFault
	}
	fault := func() (uint64, uint64, *addr.Trap) {
		return 0, 0, &addr.Trap{Cause: faultCause, Tval: uint64(va)}
	}

	a := rootPPN * pageSize
	var leaf uint64
	level := 2
	for {
		ptePhys := a + vpn[level]*8
		leaf = m.mem.Read64(ptePhys)
		if leaf&pteV == 0 || (leaf&pteR == 0 && leaf&pteW != 0) {
			return fault()
		}
		if leaf&(pteR|pteX) != 0 {
			break // leaf PTE found
		}
		if level == 0 {
			return fault()
		}
		a = (leaf >> 10) * pageSize
		level--
	}

	// Superpage misalignment check: a leaf above level 0 must have its
	// lower PPN fields zero.
	if level > 0 {
		lowMask := uint64(1)<<(9*level) - 1
		if (leaf>>10)&lowMask != 0 {
			return fault()
		}
	}

	if trap := checkPermission(leaf, kind, priv, sum, mxr, va); trap != nil {
		return 0, 0, trap
	}
	if leaf&pteA == 0 || (kind == addr.AccessWrite && leaf&pteD == 0) {
		// A real implementation sets A/D atomically here; this
		// simulator treats their absence on first touch as a fault-free
		// set rather than raising a fault, since RISC-V privileged
		// software commonly expects hardware A/D management (Svadu) and
		// the simulator's instruction set does not model a software
		// page-fault handler that would set them itself.
		leaf |= pteA
		if kind == addr.AccessWrite {
			leaf |= pteD
		}
		m.mem.Write64(a+vpn[level]*8, leaf)
	}

	fullPPN := leaf >> 10
	if level > 0 {
		lowMask := uint64(1)<<(9*level) - 1
		fullPPN = (fullPPN &^ lowMask) | (uint64(va)>>12)&lowMask
	}
	return fullPPN, leaf, nil
}

func checkPermission(pte uint64, kind addr.AccessKind, priv addr.Privilege, sum, mxr bool, va addr.Virtual) *addr.Trap {
	ok := false
	switch kind {
	case addr.AccessFetch:
		ok = pte&pteX != 0
	case addr.AccessWrite:
		ok = pte&pteW != 0
	case addr.AccessRead:
		ok = pte&pteR != 0 || (mxr && pte&pteX != 0)
	}
	if !ok {
		return faultFor(kind, va)
	}
	if pte&pteU != 0 {
		if priv == addr.PrivS && !(sum && kind != addr.AccessFetch) {
			return faultFor(kind, va)
		}
	} else if priv == addr.PrivU {
		return faultFor(kind, va)
	}
	return nil
}

func faultFor(kind addr.AccessKind, va addr.Virtual) *addr.Trap {
	cause := addr.CauseLoadPageFault
	switch kind {
	case addr.AccessFetch:
		cause = addr.CauseInstPageFault
	case addr.AccessWrite:
		cause = addr.CauseStoreAMOPageFault
	}
	return &addr.Trap{Cause: cause, Tval: uint64(va)}
}

// SFENCEVMA flushes TLB entries. A zero vaddr/asid (with the
// corresponding matchAll flag) flushes broadly, per SFENCE.VMA's
// rs1=x0/rs2=x0 encodings.
func (m *MMU) SFENCEVMA(matchAllAddr, matchAllASID bool, va addr.Virtual, asid uint16) {
	m.itlb.Flush(matchAllAddr, matchAllASID, uint64(va)>>pageShift, asid)
	m.dtlb.Flush(matchAllAddr, matchAllASID, uint64(va)>>pageShift, asid)
}
