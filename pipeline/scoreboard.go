package pipeline

import "github.com/willmccallion/rvsim/addr"

// Scoreboard tracks, for each architectural register, which in-flight
// ROB entry (if any) will produce its next value. RENAME consults it to
// decide whether an operand is ready in the architectural file or must
// be read from the producing ROB entry's result once computed; ISSUE
// and WRITEBACK keep it current as instructions are dispatched and
// retired.
type Scoreboard struct {
	intTag [addr.NumGPR]int // -1 means "no outstanding producer"
	fpTag  [addr.NumFPR]int
}

// NewScoreboard creates a scoreboard with every register initially
// unmapped (architectural value is current).
func NewScoreboard() *Scoreboard {
	s := &Scoreboard{}
	for i := range s.intTag {
		s.intTag[i] = -1
	}
	for i := range s.fpTag {
		s.fpTag[i] = -1
	}
	return s
}

// IntProducer returns the ROB tag currently producing reg, or -1 if
// reg's architectural value is already current.
func (s *Scoreboard) IntProducer(reg uint8) int {
	if reg == 0 {
		return -1 // x0 is never renamed
	}
	return s.intTag[reg]
}

// FPProducer returns the ROB tag currently producing FP register reg.
func (s *Scoreboard) FPProducer(reg uint8) int {
	return s.fpTag[reg]
}

// MarkIntProducer records that tag will next produce reg's value.
func (s *Scoreboard) MarkIntProducer(reg uint8, tag int) {
	if reg == 0 {
		return
	}
	s.intTag[reg] = tag
}

// MarkFPProducer records that tag will next produce FP register reg.
func (s *Scoreboard) MarkFPProducer(reg uint8, tag int) {
	s.fpTag[reg] = tag
}

// ClearIfMatches clears reg's producer mapping if it still points at
// tag, called on commit so a later producer of the same register (from
// an instruction dispatched afterward) is not accidentally cleared.
func (s *Scoreboard) ClearIfMatches(reg uint8, isFP bool, tag int) {
	if isFP {
		if s.fpTag[reg] == tag {
			s.fpTag[reg] = -1
		}
		return
	}
	if reg != 0 && s.intTag[reg] == tag {
		s.intTag[reg] = -1
	}
}

// Reset clears every register's producer mapping, used on a pipeline
// flush once the ROB itself has been flushed.
func (s *Scoreboard) Reset() {
	for i := range s.intTag {
		s.intTag[i] = -1
	}
	for i := range s.fpTag {
		s.fpTag[i] = -1
	}
}
