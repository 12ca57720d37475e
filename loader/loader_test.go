package loader_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bvm/asm"
	"github.com/sarchlab/bvm/emu"
	"github.com/sarchlab/bvm/loader"
)

var _ = Describe("Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "bvm-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	write := func(name, content string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	Describe("Load", func() {
		It("should load a raw image with entry point 0", func() {
			path := write("prog.bin", "\x10\x02\x07\x06")

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint64(0)))
			Expect(prog.Image).To(Equal([]byte{0x10, 0x02, 0x07, 0x06}))
			Expect(prog.Labels).To(BeEmpty())
			Expect(prog.HasStack).To(BeFalse())
		})

		It("should assemble .s files", func() {
			path := write("prog.s", "ldi x, 7\nhalt\n")

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Image).To(Equal([]byte{16, 2, 7, 6}))
		})

		It("should assemble .asm files regardless of case", func() {
			path := write("PROG.ASM", "halt\n")

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Image).To(Equal([]byte{6}))
		})

		It("should take the entry point from the start label", func() {
			path := write("prog.s", ".byte 1, 2\nstart: halt\n")

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint64(2)))
		})

		It("should prefer the entry label over start", func() {
			path := write("prog.s", "start: halt\nentry: halt\n")

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(Equal(uint64(1)))
		})

		It("should set the stack from the stack label", func() {
			path := write("prog.s", "halt\n.org 0x40\nstack: .byte 0\n")

			prog, err := loader.Load(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.HasStack).To(BeTrue())
			Expect(prog.InitialSP).To(Equal(uint64(0x40)))
		})

		It("should return error for non-existent file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.bin"))
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
		})

		It("should return error for empty file", func() {
			_, err := loader.Load(write("empty.bin", ""))
			Expect(err).To(MatchError(loader.ErrEmptyProgram))
		})

		It("should return error for source without code", func() {
			_, err := loader.Load(write("empty.s", "; nothing\n"))
			Expect(err).To(MatchError(loader.ErrEmptyProgram))
		})

		It("should report assembly errors with their line", func() {
			_, err := loader.Load(write("bad.s", "halt\nfrob\n"))
			Expect(err).To(MatchError(asm.ErrUnknownMnemonic))

			var synErr *asm.SyntaxError
			Expect(errors.As(err, &synErr)).To(BeTrue())
			Expect(synErr.Line).To(Equal(2))
		})
	})

	Describe("LoadBytes", func() {
		It("should copy its input", func() {
			data := []byte{6}
			prog, err := loader.LoadBytes(data)
			Expect(err).NotTo(HaveOccurred())

			data[0] = 0
			Expect(prog.Image).To(Equal([]byte{6}))
		})
	})

	Describe("Apply", func() {
		It("should load the image and set IP and SP", func() {
			prog, err := loader.LoadSource([]byte(
				"start: push\n" +
					"       pop\n" +
					"       halt\n" +
					".org 0x80\n" +
					"stack: .byte 0\n"))
			Expect(err).NotTo(HaveOccurred())

			e := emu.NewEmulator(emu.WithMemorySize(4096))
			Expect(prog.Apply(e)).To(Succeed())
			Expect(e.RegFile().IP()).To(Equal(uint64(0)))
			Expect(e.RegFile().SP()).To(Equal(uint64(0x80)))

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().SP()).To(Equal(uint64(0x80)))
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should fail when the image does not fit", func() {
			prog, err := loader.LoadBytes(make([]byte, 128))
			Expect(err).NotTo(HaveOccurred())

			e := emu.NewEmulator(emu.WithMemorySize(64))
			Expect(prog.Apply(e)).To(MatchError(emu.ErrOutOfBounds))
		})
	})
})
