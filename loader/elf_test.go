package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/willmccallion/rvsim/arch"
	"github.com/willmccallion/rvsim/loader"
)

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("with a valid RV64 ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				createMinimalRV64ELF(elfPath, 0x8000_0000, 0x8000_0080, []byte{
					// addi a0, zero, 42; jalr zero, ra, 0
					0x13, 0x05, 0xa0, 0x02,
					0x67, 0x80, 0x00, 0x00,
				})
			})

			It("should load without error", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog).NotTo(BeNil())
			})

			It("should extract the correct entry point", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0x8000_0080)))
			})

			It("should load segments into memory", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(len(prog.Segments)).To(BeNumerically(">", 0))
			})

			It("should default to the bare-metal stack top", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.InitialSP).To(Equal(uint64(loader.DefaultStackTop)))
			})
		})

		Context("with segment data", func() {
			It("should correctly load segment contents", func() {
				elfPath := filepath.Join(tempDir, "code.elf")
				codeData := []byte{0x13, 0x05, 0xa0, 0x02, 0x67, 0x80, 0x00, 0x00}
				createMinimalRV64ELF(elfPath, 0x8000_0000, 0x8000_0000, codeData)

				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())

				var foundSegment *loader.Segment
				for i := range prog.Segments {
					if prog.Segments[i].VirtAddr == 0x8000_0000 {
						foundSegment = &prog.Segments[i]
						break
					}
				}
				Expect(foundSegment).NotTo(BeNil())
				Expect(foundSegment.Data).To(HaveLen(len(codeData)))
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return error for non-ELF file", func() {
				notElfPath := filepath.Join(tempDir, "not-elf.bin")
				err := os.WriteFile(notElfPath, []byte("not an elf file"), 0644)
				Expect(err).NotTo(HaveOccurred())

				_, err = loader.Load(notElfPath)
				Expect(err).To(HaveOccurred())
			})

			It("should return error for empty file", func() {
				emptyPath := filepath.Join(tempDir, "empty.elf")
				err := os.WriteFile(emptyPath, []byte{}, 0644)
				Expect(err).NotTo(HaveOccurred())

				_, err = loader.Load(emptyPath)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with a non-RISC-V ELF", func() {
			It("should return an error for an x86-64 ELF", func() {
				elfPath := filepath.Join(tempDir, "x86.elf")
				createMinimalx86ELF(elfPath)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a RISC-V ELF"))
			})
		})

		Context("with a 32-bit ELF", func() {
			It("should return an error for a 32-bit ELF", func() {
				elfPath := filepath.Join(tempDir, "elf32.elf")
				createMinimal32BitELF(elfPath)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("64-bit"))
			})
		})
	})

	Describe("Segment", func() {
		It("should have the correct virtual address", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			createMinimalRV64ELF(elfPath, 0x8010_0000, 0x8010_0000, []byte{0x13, 0x00, 0x00, 0x00})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			found := false
			for _, seg := range prog.Segments {
				if seg.VirtAddr == 0x8010_0000 {
					found = true
					break
				}
			}
			Expect(found).To(BeTrue())
		})

		It("should correctly report permissions", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			createMinimalRV64ELF(elfPath, 0x8000_0000, 0x8000_0000, []byte{0x13, 0x00, 0x00, 0x00})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			hasExecutable := false
			for _, seg := range prog.Segments {
				if seg.Flags&loader.SegmentFlagExecute != 0 {
					hasExecutable = true
					break
				}
			}
			Expect(hasExecutable).To(BeTrue())
		})
	})

	Describe("Multi-segment ELFs", func() {
		It("should load multiple PT_LOAD segments", func() {
			elfPath := filepath.Join(tempDir, "multi-segment.elf")
			codeData := []byte{0x13, 0x05, 0xa0, 0x02, 0x67, 0x80, 0x00, 0x00}
			dataData := []byte{0x01, 0x02, 0x03, 0x04}
			createMultiSegmentRV64ELF(elfPath, 0x8000_0000, 0x8000_0000, codeData, 0x8100_0000, dataData)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))

			var codeSeg, dataSeg *loader.Segment
			for i := range prog.Segments {
				if prog.Segments[i].VirtAddr == 0x8000_0000 {
					codeSeg = &prog.Segments[i]
				}
				if prog.Segments[i].VirtAddr == 0x8100_0000 {
					dataSeg = &prog.Segments[i]
				}
			}

			Expect(codeSeg).NotTo(BeNil())
			Expect(codeSeg.Data).To(Equal(codeData))
			Expect(codeSeg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())

			Expect(dataSeg).NotTo(BeNil())
			Expect(dataSeg.Data).To(Equal(dataData))
			Expect(dataSeg.Flags & loader.SegmentFlagWrite).NotTo(BeZero())
		})
	})

	Describe("BSS segments", func() {
		It("should handle segments where Memsz > Filesz", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			initialData := []byte{0x01, 0x02, 0x03, 0x04}
			memSize := uint64(1024)
			createBSSSegmentELF(elfPath, 0x8100_0000, 0x8000_0000, initialData, memSize)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			var bssSeg *loader.Segment
			for i := range prog.Segments {
				if prog.Segments[i].VirtAddr == 0x8100_0000 {
					bssSeg = &prog.Segments[i]
					break
				}
			}

			Expect(bssSeg).NotTo(BeNil())
			Expect(bssSeg.Data).To(Equal(initialData))
			Expect(bssSeg.MemSize).To(Equal(memSize))
			Expect(bssSeg.MemSize).To(BeNumerically(">", uint64(len(bssSeg.Data))))
		})
	})

	Describe("PlaceInMemory", func() {
		It("should zero-extend BSS past the file-backed data", func() {
			elfPath := filepath.Join(tempDir, "bss2.elf")
			initialData := []byte{0xaa, 0xbb}
			memSize := uint64(16)
			createBSSSegmentELF(elfPath, 0x8000_0000, 0x8000_0000, initialData, memSize)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			mem := arch.NewMemory(0x8000_0000, 4096)
			loader.PlaceInMemory(prog, mem)

			Expect(mem.Read8(0x8000_0000)).To(Equal(uint8(0xaa)))
			Expect(mem.Read8(0x8000_0001)).To(Equal(uint8(0xbb)))
			Expect(mem.Read8(0x8000_0002)).To(Equal(uint8(0)))
		})
	})
})

// createMinimalRV64ELF creates a minimal valid RV64 ELF64 binary.
func createMinimalRV64ELF(path string, loadAddr, entryPoint uint64, code []byte) {
	elfHeader := make([]byte, 64)

	copy(elfHeader[0:4], []byte{0x7f, 'E', 'L', 'F'})
	elfHeader[4] = 2 // 64-bit
	elfHeader[5] = 1 // little endian
	elfHeader[6] = 1 // version
	elfHeader[7] = 0 // OS/ABI
	binary.LittleEndian.PutUint16(elfHeader[16:18], 2)   // executable
	binary.LittleEndian.PutUint16(elfHeader[18:20], 243) // EM_RISCV
	binary.LittleEndian.PutUint32(elfHeader[20:24], 1)
	binary.LittleEndian.PutUint64(elfHeader[24:32], entryPoint)
	binary.LittleEndian.PutUint64(elfHeader[32:40], 64)
	binary.LittleEndian.PutUint64(elfHeader[40:48], 0)
	binary.LittleEndian.PutUint32(elfHeader[48:52], 0)
	binary.LittleEndian.PutUint16(elfHeader[52:54], 64)
	binary.LittleEndian.PutUint16(elfHeader[54:56], 56)
	binary.LittleEndian.PutUint16(elfHeader[56:58], 1)
	binary.LittleEndian.PutUint16(elfHeader[58:60], 64)
	binary.LittleEndian.PutUint16(elfHeader[60:62], 0)
	binary.LittleEndian.PutUint16(elfHeader[62:64], 0)

	progHeader := make([]byte, 56)
	binary.LittleEndian.PutUint32(progHeader[0:4], 1)   // PT_LOAD
	binary.LittleEndian.PutUint32(progHeader[4:8], 0x5) // PF_X | PF_R
	binary.LittleEndian.PutUint64(progHeader[8:16], 120)
	binary.LittleEndian.PutUint64(progHeader[16:24], loadAddr)
	binary.LittleEndian.PutUint64(progHeader[24:32], loadAddr)
	binary.LittleEndian.PutUint64(progHeader[32:40], uint64(len(code)))
	binary.LittleEndian.PutUint64(progHeader[40:48], uint64(len(code)))
	binary.LittleEndian.PutUint64(progHeader[48:56], 0x1000)

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(elfHeader)
	_, _ = file.Write(progHeader)
	_, _ = file.Write(code)
}

// createMinimalx86ELF creates a minimal x86-64 ELF to test rejection.
func createMinimalx86ELF(path string) {
	elfHeader := make([]byte, 64)

	copy(elfHeader[0:4], []byte{0x7f, 'E', 'L', 'F'})
	elfHeader[4] = 2
	elfHeader[5] = 1
	elfHeader[6] = 1
	binary.LittleEndian.PutUint16(elfHeader[16:18], 2)
	binary.LittleEndian.PutUint16(elfHeader[18:20], 62) // EM_X86_64
	binary.LittleEndian.PutUint32(elfHeader[20:24], 1)
	binary.LittleEndian.PutUint64(elfHeader[24:32], 0)
	binary.LittleEndian.PutUint64(elfHeader[32:40], 64)
	binary.LittleEndian.PutUint16(elfHeader[52:54], 64)
	binary.LittleEndian.PutUint16(elfHeader[54:56], 56)
	binary.LittleEndian.PutUint16(elfHeader[56:58], 0)

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(elfHeader)
}

// createMinimal32BitELF creates a minimal 32-bit ELF to test rejection.
func createMinimal32BitELF(path string) {
	elfHeader := make([]byte, 52)

	copy(elfHeader[0:4], []byte{0x7f, 'E', 'L', 'F'})
	elfHeader[4] = 1 // ELFCLASS32
	elfHeader[5] = 1
	elfHeader[6] = 1
	binary.LittleEndian.PutUint16(elfHeader[16:18], 2)
	binary.LittleEndian.PutUint16(elfHeader[18:20], 243)
	binary.LittleEndian.PutUint32(elfHeader[20:24], 1)

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(elfHeader)
}

// createMultiSegmentRV64ELF creates an RV64 ELF with two PT_LOAD segments:
// a code segment (RX) and a data segment (RW).
func createMultiSegmentRV64ELF(path string, codeAddr, entryPoint uint64, code []byte, dataAddr uint64, data []byte) {
	elfHeader := make([]byte, 64)

	copy(elfHeader[0:4], []byte{0x7f, 'E', 'L', 'F'})
	elfHeader[4] = 2
	elfHeader[5] = 1
	elfHeader[6] = 1
	binary.LittleEndian.PutUint16(elfHeader[16:18], 2)
	binary.LittleEndian.PutUint16(elfHeader[18:20], 243)
	binary.LittleEndian.PutUint32(elfHeader[20:24], 1)
	binary.LittleEndian.PutUint64(elfHeader[24:32], entryPoint)
	binary.LittleEndian.PutUint64(elfHeader[32:40], 64)
	binary.LittleEndian.PutUint16(elfHeader[52:54], 64)
	binary.LittleEndian.PutUint16(elfHeader[54:56], 56)
	binary.LittleEndian.PutUint16(elfHeader[56:58], 2)

	progHeader1 := make([]byte, 56)
	binary.LittleEndian.PutUint32(progHeader1[0:4], 1)
	binary.LittleEndian.PutUint32(progHeader1[4:8], 0x5)
	binary.LittleEndian.PutUint64(progHeader1[8:16], 64+56*2)
	binary.LittleEndian.PutUint64(progHeader1[16:24], codeAddr)
	binary.LittleEndian.PutUint64(progHeader1[24:32], codeAddr)
	binary.LittleEndian.PutUint64(progHeader1[32:40], uint64(len(code)))
	binary.LittleEndian.PutUint64(progHeader1[40:48], uint64(len(code)))
	binary.LittleEndian.PutUint64(progHeader1[48:56], 0x1000)

	progHeader2 := make([]byte, 56)
	binary.LittleEndian.PutUint32(progHeader2[0:4], 1)
	binary.LittleEndian.PutUint32(progHeader2[4:8], 0x6)
	binary.LittleEndian.PutUint64(progHeader2[8:16], 64+56*2+uint64(len(code)))
	binary.LittleEndian.PutUint64(progHeader2[16:24], dataAddr)
	binary.LittleEndian.PutUint64(progHeader2[24:32], dataAddr)
	binary.LittleEndian.PutUint64(progHeader2[32:40], uint64(len(data)))
	binary.LittleEndian.PutUint64(progHeader2[40:48], uint64(len(data)))
	binary.LittleEndian.PutUint64(progHeader2[48:56], 0x1000)

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(elfHeader)
	_, _ = file.Write(progHeader1)
	_, _ = file.Write(progHeader2)
	_, _ = file.Write(code)
	_, _ = file.Write(data)
}

// createBSSSegmentELF creates an RV64 ELF with a BSS-like segment where Memsz > Filesz.
func createBSSSegmentELF(path string, segAddr, entryPoint uint64, data []byte, memSize uint64) {
	elfHeader := make([]byte, 64)

	copy(elfHeader[0:4], []byte{0x7f, 'E', 'L', 'F'})
	elfHeader[4] = 2
	elfHeader[5] = 1
	elfHeader[6] = 1
	binary.LittleEndian.PutUint16(elfHeader[16:18], 2)
	binary.LittleEndian.PutUint16(elfHeader[18:20], 243)
	binary.LittleEndian.PutUint32(elfHeader[20:24], 1)
	binary.LittleEndian.PutUint64(elfHeader[24:32], entryPoint)
	binary.LittleEndian.PutUint64(elfHeader[32:40], 64)
	binary.LittleEndian.PutUint16(elfHeader[52:54], 64)
	binary.LittleEndian.PutUint16(elfHeader[54:56], 56)
	binary.LittleEndian.PutUint16(elfHeader[56:58], 1)

	progHeader := make([]byte, 56)
	binary.LittleEndian.PutUint32(progHeader[0:4], 1)
	binary.LittleEndian.PutUint32(progHeader[4:8], 0x6)
	binary.LittleEndian.PutUint64(progHeader[8:16], 120)
	binary.LittleEndian.PutUint64(progHeader[16:24], segAddr)
	binary.LittleEndian.PutUint64(progHeader[24:32], segAddr)
	binary.LittleEndian.PutUint64(progHeader[32:40], uint64(len(data)))
	binary.LittleEndian.PutUint64(progHeader[40:48], memSize)
	binary.LittleEndian.PutUint64(progHeader[48:56], 0x1000)

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(elfHeader)
	_, _ = file.Write(progHeader)
	_, _ = file.Write(data)
}
