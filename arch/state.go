package arch

import "github.com/willmccallion/rvsim/addr"

// State is the complete architectural state of a single hart: everything
// that must be saved and restored exactly across a trap, and everything a
// functional (non-timing) interpreter needs to execute a program. The
// timing pipeline keeps its own speculative copies of the integer and FP
// files per in-flight instruction; State is the committed, retired view.
type State struct {
	Int RegFile
	FP  FPRegFile
	CSR *CSRFile

	PC   uint64
	Priv addr.Privilege

	// ReservationValid/ReservationAddr implement LR/SC's reservation set.
	// A single global reservation is a conservative but architecturally
	// legal simplification of SC's "reservation set" requirement.
	ReservationValid bool
	ReservationAddr  uint64

	Mem *Memory
}

// NewState creates a hart in its reset state: M-mode, PC at entry, and a
// zeroed register file.
func NewState(mem *Memory, entry uint64) *State {
	return &State{
		CSR:  NewCSRFile(),
		PC:   entry,
		Priv: addr.PrivM,
		Mem:  mem,
	}
}

// ClearReservation invalidates any outstanding LR reservation. Any
// store to memory, not just a matching SC, invalidates it per the ISA's
// permissive-but-safe reservation-granularity rule.
func (s *State) ClearReservation() {
	s.ReservationValid = false
}

// SetReservation records an LR reservation at addr.
func (s *State) SetReservation(addr uint64) {
	s.ReservationValid = true
	s.ReservationAddr = addr
}

// CheckAndClearReservation reports whether an SC at addr should succeed
// (a matching, still-valid reservation exists) and clears the reservation
// either way, since SC always clears it regardless of outcome.
func (s *State) CheckAndClearReservation(addr uint64) bool {
	ok := s.ReservationValid && s.ReservationAddr == addr
	s.ReservationValid = false
	return ok
}
