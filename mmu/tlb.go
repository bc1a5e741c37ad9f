package mmu

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// tlbEntry holds one translation's page table entry bits and PPN,
// cached separately from akita's directory (which only tracks
// tag/valid/dirty) since a TLB needs the full PTE for permission
// rechecks.
type tlbEntry struct {
	ppn uint64
	pte uint64
	asid uint16
}

// TLB is a fully-associative, LRU-managed translation cache, modeled as
// a single-set akita directory (one set, N ways) since akita's
// DirectoryImpl already provides exactly the recency-tracked eviction a
// hardware TLB needs; ASID-awareness and the PTE payload are layered on
// top in a side map keyed by directory block, since a TLB entry is more
// than a plain tag.
type TLB struct {
	directory *akitacache.DirectoryImpl
	entries   map[*akitacache.Block]tlbEntry
	ways      int
}

// NewTLB creates a fully-associative TLB with the given entry count.
func NewTLB(entries int) *TLB {
	return &TLB{
		directory: akitacache.NewDirectory(1, entries, 1, akitacache.NewLRUVictimFinder()),
		entries:   make(map[*akitacache.Block]tlbEntry),
		ways:      entries,
	}
}

// key packs an ASID and VPN into the single uint64 tag akita's directory
// indexes on, since an entry's global-vs-ASID-scoped identity both
// matter for a correct lookup.
func key(asid uint16, vpn uint64) uint64 {
	return (uint64(asid) << 48) | (vpn & ((1 << 48) - 1))
}

// Lookup returns the cached translation for (asid, vpn), if present. A
// global (pteG) entry also matches lookups under other ASIDs; the
// MMU's Translate only ever queries its own ASID so that distinction is
// enforced at Insert/Flush time rather than here.
func (t *TLB) Lookup(asid uint16, vpn uint64) (tlbEntry, bool) {
	b := t.directory.Lookup(0, key(asid, vpn))
	if b == nil || !b.IsValid {
		// Also check global entries under ASID 0's namespace.
		if b2 := t.directory.Lookup(0, key(0, vpn)); b2 != nil && b2.IsValid {
			if e, ok := t.entries[b2]; ok && e.pte&pteG != 0 {
				t.directory.Visit(b2)
				return e, true
			}
		}
		return tlbEntry{}, false
	}
	t.directory.Visit(b)
	return t.entries[b], true
}

// Insert records a new translation, evicting the LRU way if full.
func (t *TLB) Insert(asid uint16, vpn, ppn, pte uint64) {
	k := key(asid, vpn)
	if pte&pteG != 0 {
		k = key(0, vpn)
	}
	victim := t.directory.FindVictim(k)
	if victim == nil {
		return
	}
	victim.Tag = k
	victim.IsValid = true
	t.directory.Visit(victim)
	t.entries[victim] = tlbEntry{ppn: ppn, pte: pte, asid: asid}
}

// Flush invalidates entries matching the given scope. matchAllAddr and
// matchAllASID broaden the match per SFENCE.VMA's rs1=x0/rs2=x0 forms.
func (t *TLB) Flush(matchAllAddr, matchAllASID bool, vpn uint64, asid uint16) {
	for b, e := range t.entries {
		addrMatch := matchAllAddr || (b.Tag&((1<<48)-1)) == vpn
		asidMatch := matchAllASID || e.asid == asid
		if addrMatch && asidMatch {
			b.IsValid = false
			delete(t.entries, b)
		}
	}
}
