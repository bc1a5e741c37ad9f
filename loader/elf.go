// Package loader provides ELF and flat-binary image loading for RV64
// targets.
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"github.com/willmccallion/rvsim/arch"
)

// SegmentFlags represents memory protection flags for a segment.
type SegmentFlags uint32

const (
	// SegmentFlagExecute indicates the segment is executable.
	SegmentFlagExecute SegmentFlags = 1 << iota
	// SegmentFlagWrite indicates the segment is writable.
	SegmentFlagWrite
	// SegmentFlagRead indicates the segment is readable.
	SegmentFlagRead
)

// DefaultStackTop is the default stack top for a bare-metal RV64 image,
// placed at the top of a conventional 256MB RAM region starting at
// 0x8000_0000, the standard QEMU/SiFive-style load address.
const DefaultStackTop = 0x8000_0000 + 256*1024*1024 - 16

// DefaultStackSize is the default stack size (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// Segment represents a loadable segment from an ELF binary.
type Segment struct {
	// VirtAddr is the virtual (here, for a bare-metal image, physical)
	// address where this segment should be loaded.
	VirtAddr uint64
	// Data contains the segment contents from the file.
	Data []byte
	// MemSize is the size in memory (may be larger than len(Data) for BSS).
	MemSize uint64
	// Flags contains the segment protection flags.
	Flags SegmentFlags
}

// Program represents a loaded program image ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint64
	// Segments contains all loadable segments.
	Segments []Segment
	// InitialSP is the initial stack pointer value.
	InitialSP uint64
}

// Load parses an RV64 ELF binary and returns a Program ready for
// placement into memory.
func Load(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("not a 64-bit ELF file")
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("not a RISC-V ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoint: f.Entry,
		InitialSP:  DefaultStackTop,
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
					phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

// LoadFlat wraps a headerless flat binary (as produced by objcopy -O
// binary) into a single RWX Program segment loaded at loadAddr, for
// images that skip ELF entirely.
func LoadFlat(data []byte, loadAddr uint64) *Program {
	return &Program{
		EntryPoint: loadAddr,
		InitialSP:  DefaultStackTop,
		Segments: []Segment{{
			VirtAddr: loadAddr,
			Data:     data,
			MemSize:  uint64(len(data)),
			Flags:    SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}},
	}
}

// LoadKernel loads path the same way Load does but overrides InitialSP
// the way a supervisor-mode kernel image expects: EntryPoint stays the
// ELF's e_entry as usual, but the stack is placed just below the top
// of the memory region the kernel itself will manage, rather than the
// default bare-metal image's stack address.
func LoadKernel(path string, stackTop uint64) (*Program, error) {
	prog, err := Load(path)
	if err != nil {
		return nil, err
	}
	prog.InitialSP = stackTop - 16
	return prog, nil
}

// PlaceInMemory copies every segment of prog into mem, zero-extending
// each segment to MemSize (so BSS past the file-backed data reads as
// zero).
func PlaceInMemory(prog *Program, mem *arch.Memory) {
	for _, seg := range prog.Segments {
		mem.LoadProgram(seg.VirtAddr, seg.Data)
		if seg.MemSize > uint64(len(seg.Data)) {
			zeroLen := seg.MemSize - uint64(len(seg.Data))
			mem.LoadProgram(seg.VirtAddr+uint64(len(seg.Data)), make([]byte, zeroLen))
		}
	}
}
