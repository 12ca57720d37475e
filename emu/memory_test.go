package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bvm/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemoryWithSize(256)
	})

	It("should default to 1 MiB", func() {
		Expect(emu.NewMemory().Capacity()).To(Equal(uint64(1 << 20)))
	})

	It("should start zeroed with zero versions", func() {
		b, err := memory.Read8(17)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(BeZero())

		v, err := memory.Version(17)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeZero())
	})

	Describe("Versions", func() {
		It("should advance by exactly one per write", func() {
			Expect(memory.Write8(3, 0xAA)).To(Succeed())
			Expect(memory.Write8(3, 0xAA)).To(Succeed())

			v, _ := memory.Version(3)
			Expect(v).To(Equal(uint64(2)))
		})

		It("should not change on reads", func() {
			Expect(memory.Write8(3, 0xAA)).To(Succeed())
			for i := 0; i < 5; i++ {
				_, _ = memory.Read8(3)
				_, _ = memory.Read64(0)
			}

			v, _ := memory.Version(3)
			Expect(v).To(Equal(uint64(1)))
		})

		It("should advance every byte of a multi-byte store independently", func() {
			Expect(memory.Write32(8, 0xDEADBEEF)).To(Succeed())
			Expect(memory.Write16(10, 0x1234)).To(Succeed())

			versions := []uint64{}
			for addr := uint64(7); addr < 13; addr++ {
				v, _ := memory.Version(addr)
				versions = append(versions, v)
			}
			Expect(versions).To(Equal([]uint64{0, 1, 1, 2, 2, 0}))
		})
	})

	Describe("Little-endian access", func() {
		It("should lay out a 64-bit store on distinct ascending bytes", func() {
			Expect(memory.Write64(0x10, 0x0807060504030201)).To(Succeed())

			data, err := memory.ReadRange(0x10, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}))
		})

		It("should read back 16 and 32-bit values", func() {
			Expect(memory.Write16(0x20, 0xBEEF)).To(Succeed())
			Expect(memory.Write32(0x30, 0xCAFEBABE)).To(Succeed())

			v16, err := memory.Read16(0x20)
			Expect(err).NotTo(HaveOccurred())
			Expect(v16).To(Equal(uint16(0xBEEF)))

			v32, err := memory.Read32(0x30)
			Expect(err).NotTo(HaveOccurred())
			Expect(v32).To(Equal(uint32(0xCAFEBABE)))

			b, _ := memory.Read8(0x30)
			Expect(b).To(Equal(byte(0xBE)))
		})
	})

	Describe("Bounds", func() {
		It("should fail reads and writes at capacity", func() {
			_, err := memory.Read8(256)
			Expect(err).To(MatchError(emu.ErrOutOfBounds))

			err = memory.Write8(256, 1)
			Expect(err).To(MatchError(emu.ErrOutOfBounds))

			var oob *emu.OutOfBoundsError
			Expect(errors.As(err, &oob)).To(BeTrue())
			Expect(oob.Addr).To(Equal(uint64(256)))
		})

		It("should leave memory untouched when a store straddles the end", func() {
			err := memory.Write64(252, 0xFFFFFFFFFFFFFFFF)
			Expect(err).To(MatchError(emu.ErrOutOfBounds))

			for addr := uint64(252); addr < 256; addr++ {
				b, _ := memory.Read8(addr)
				v, _ := memory.Version(addr)
				Expect(b).To(BeZero())
				Expect(v).To(BeZero())
			}
		})

		It("should not wrap around for huge addresses", func() {
			_, err := memory.Read64(^uint64(0) - 2)
			Expect(err).To(MatchError(emu.ErrOutOfBounds))
		})
	})

	Describe("LoadProgram", func() {
		It("should write the image at ascending addresses", func() {
			Expect(memory.LoadProgram(4, []byte{9, 8, 7})).To(Succeed())

			data, _ := memory.ReadRange(3, 5)
			Expect(data).To(Equal([]byte{0, 9, 8, 7, 0}))
		})

		It("should reject an image that does not fit", func() {
			Expect(memory.LoadProgram(250, make([]byte, 10))).To(MatchError(emu.ErrOutOfBounds))
		})
	})
})
