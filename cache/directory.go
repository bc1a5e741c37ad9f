package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// block is the tag/state metadata for one cache line that Level operates
// on. For the LRU policy it is a thin view over akita's own
// mem/cache.Block (whose fields are exported and mutated in place); for
// every other policy it is the sole representation.
type block struct {
	setID, wayID int
	tag          uint64
	valid, dirty bool
	raw          *akitacache.Block // non-nil only when backed by akitaDirectory
}

// directory is the tag-store abstraction Level drives: look a block up
// by address, mark it visited (for recency-based policies), find a
// victim to evict on a miss, and enumerate all blocks for flush/reset.
// akita's mem/cache package only ships an LRU victim finder, so policies
// other than ReplacementLRU are served by genericDirectory's own
// bookkeeping instead of pretending akita supports them.
type directory interface {
	lookup(addr uint64) *block
	visit(b *block)
	findVictim(addr uint64) *block
	allBlocks() []*block
	commit(b *block) // persist setValid/setDirty/setTag calls made on b
	reset()
}

func (b *block) setValid(v bool) {
	b.valid = v
	if b.raw != nil {
		b.raw.IsValid = v
	}
}

func (b *block) setDirty(v bool) {
	b.dirty = v
	if b.raw != nil {
		b.raw.IsDirty = v
	}
}

func (b *block) setTag(t uint64) {
	b.tag = t
	if b.raw != nil {
		b.raw.Tag = t
	}
}

// akitaDirectory wraps akita's mem/cache.DirectoryImpl directly, exactly
// as the teacher's Cache does, for the LRU policy.
type akitaDirectory struct {
	impl *akitacache.DirectoryImpl
}

func newAkitaDirectory(numSets, ways, blockSize int) *akitaDirectory {
	return &akitaDirectory{
		impl: akitacache.NewDirectory(numSets, ways, blockSize, akitacache.NewLRUVictimFinder()),
	}
}

func wrapAkitaBlock(raw *akitacache.Block) *block {
	if raw == nil {
		return nil
	}
	return &block{setID: raw.SetID, wayID: raw.WayID, tag: raw.Tag, valid: raw.IsValid, dirty: raw.IsDirty, raw: raw}
}

func (d *akitaDirectory) lookup(addr uint64) *block {
	raw := d.impl.Lookup(0, addr)
	if raw == nil || !raw.IsValid {
		return nil
	}
	return wrapAkitaBlock(raw)
}

func (d *akitaDirectory) visit(b *block) {
	d.impl.Visit(b.raw)
}

func (d *akitaDirectory) findVictim(addr uint64) *block {
	return wrapAkitaBlock(d.impl.FindVictim(addr))
}

func (d *akitaDirectory) allBlocks() []*block {
	var out []*block
	for _, set := range d.impl.GetSets() {
		for _, raw := range set.Blocks {
			out = append(out, wrapAkitaBlock(raw))
		}
	}
	return out
}

func (d *akitaDirectory) commit(b *block) {}

func (d *akitaDirectory) reset() {
	d.impl.Reset()
}

// genericDirectory implements set-associative lookup/eviction for
// replacement policies akita does not provide (PLRU, FIFO, Random, MRU).
// Each set's metadata and the policy's own per-set bookkeeping live
// side by side, with Policy deciding which way a miss evicts.
type genericDirectory struct {
	sets      int
	ways      int
	blockSize int
	blocks    [][]*block // [setID][wayID]
	policy    Policy
}

func newGenericDirectory(numSets, ways, blockSize int, policy Policy) *genericDirectory {
	d := &genericDirectory{sets: numSets, ways: ways, blockSize: blockSize, policy: policy}
	d.blocks = make([][]*block, numSets)
	for s := range d.blocks {
		d.blocks[s] = make([]*block, ways)
		for w := range d.blocks[s] {
			d.blocks[s][w] = &block{setID: s, wayID: w}
		}
		policy.initSet(s, ways)
	}
	return d
}

func (d *genericDirectory) setIndex(addr uint64) int {
	return int((addr / uint64(d.blockSize)) % uint64(d.sets))
}

func (d *genericDirectory) lookup(addr uint64) *block {
	setID := d.setIndex(addr)
	blockAddr := (addr / uint64(d.blockSize)) * uint64(d.blockSize)
	for _, b := range d.blocks[setID] {
		if b.valid && b.tag == blockAddr {
			return b
		}
	}
	return nil
}

func (d *genericDirectory) visit(b *block) {
	d.policy.onAccess(b.setID, b.wayID)
}

func (d *genericDirectory) findVictim(addr uint64) *block {
	setID := d.setIndex(addr)
	way := d.policy.chooseVictim(setID, d.blocks[setID])
	return d.blocks[setID][way]
}

func (d *genericDirectory) allBlocks() []*block {
	var out []*block
	for _, set := range d.blocks {
		out = append(out, set...)
	}
	return out
}

func (d *genericDirectory) commit(b *block) {}

func (d *genericDirectory) reset() {
	for s := range d.blocks {
		for w := range d.blocks[s] {
			d.blocks[s][w] = &block{setID: s, wayID: w}
		}
		d.policy.initSet(s, d.ways)
	}
}
