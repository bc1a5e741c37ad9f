package pipeline

// storeEntry is one in-order store awaiting its turn to drain to the
// data cache at COMMIT. Stores are kept here from RENAME (address and
// data are only known once EXECUTE/MEM1 compute them) so that younger
// loads can forward from an older, not-yet-committed store at the same
// address rather than stalling for it to retire.
type storeEntry struct {
	tag      int // owning ROB tag, for in-order drain and squash matching
	addr     uint64
	data     uint64
	width    int
	addrKnown bool
	drained  bool
}

// StoreBuffer holds every store between RENAME and its COMMIT-time
// drain to the cache hierarchy, and answers the store-to-load
// forwarding query MEM1 issues on every load.
type StoreBuffer struct {
	entries []storeEntry
}

// NewStoreBuffer creates an empty store buffer.
func NewStoreBuffer() *StoreBuffer {
	return &StoreBuffer{}
}

// Allocate reserves a slot for a store renamed into ROB entry tag; its
// address and data are filled in later by SetAddrData once EXECUTE/MEM1
// compute them.
func (sb *StoreBuffer) Allocate(tag int) {
	sb.entries = append(sb.entries, storeEntry{tag: tag})
}

// SetAddrData records a store's effective address and value once known.
func (sb *StoreBuffer) SetAddrData(tag int, addr, data uint64, width int) {
	for i := range sb.entries {
		if sb.entries[i].tag == tag {
			sb.entries[i].addr = addr
			sb.entries[i].data = data
			sb.entries[i].width = width
			sb.entries[i].addrKnown = true
			return
		}
	}
}

// Forward searches the buffer, oldest to youngest, for a store whose
// address and width exactly match a pending load, returning the
// youngest such match's data. Because RENAME allocates store-buffer
// entries in program order before any load downstream of them reaches
// MEM1, every entry present here when a load forwards is guaranteed
// older-or-concurrent in program order. Partial overlaps (a load
// narrower than, or misaligned against, the forwarding store) are
// conservatively treated as a miss, so the caller falls through to a
// normal cache access rather than assembling a partial forward.
func (sb *StoreBuffer) Forward(addr uint64, width int) (uint64, bool) {
	found := false
	var data uint64
	for i := range sb.entries {
		e := &sb.entries[i]
		if !e.addrKnown {
			continue
		}
		if e.addr == addr && e.width == width {
			data = e.data
			found = true
		}
	}
	return data, found
}

// DrainHead removes and returns the oldest store if it belongs to tag
// and has a known address, for COMMIT to write through to the cache
// hierarchy. ok is false if the head entry doesn't match tag (COMMIT
// should not drain out of order) or its address isn't known yet.
func (sb *StoreBuffer) DrainHead(tag int) (addr, data uint64, width int, ok bool) {
	if len(sb.entries) == 0 || sb.entries[0].tag != tag || !sb.entries[0].addrKnown {
		return 0, 0, 0, false
	}
	e := sb.entries[0]
	sb.entries = sb.entries[1:]
	return e.addr, e.data, e.width, true
}

// Flush discards every buffered store, used on a pipeline squash.
func (sb *StoreBuffer) Flush() {
	sb.entries = nil
}

// Len reports how many stores are currently buffered.
func (sb *StoreBuffer) Len() int {
	return len(sb.entries)
}
