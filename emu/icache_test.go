package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bvm/emu"
	"github.com/sarchlab/bvm/insts"
)

var _ = Describe("InstructionCache", func() {
	var (
		memory *emu.Memory
		cache  *emu.InstructionCache
	)

	BeforeEach(func() {
		memory = emu.NewMemoryWithSize(1024)
		cache = emu.NewInstructionCache(memory, insts.NewDecoder())

		Expect(memory.LoadProgram(0, program(
			alu(insts.OpADD, 2, 3, 4), // 0..3
			ldi(5, 9),                 // 4..6
			single(insts.OpHALT),      // 7
		))).To(Succeed())
	})

	It("should miss on first fetch and hit afterwards", func() {
		inst, hit, err := cache.Fetch(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeFalse())
		Expect(inst.Op).To(Equal(insts.OpADD))

		again, hit, err := cache.Fetch(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeTrue())
		Expect(again).To(BeIdenticalTo(inst))

		Expect(cache.Stats().Hits).To(Equal(uint64(1)))
		Expect(cache.Stats().Misses).To(Equal(uint64(1)))
	})

	It("should re-decode after a write to the opcode byte", func() {
		_, _, _ = cache.Fetch(0)
		Expect(memory.Write8(0, byte(insts.OpSUB))).To(Succeed())

		inst, hit, err := cache.Fetch(0)
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeFalse())
		Expect(inst.Op).To(Equal(insts.OpSUB))
		Expect(cache.Stats().Stale).To(Equal(uint64(1)))
	})

	DescribeTable("re-decode after a write to any operand byte",
		func(offset uint64, check func(*insts.Instruction)) {
			_, _, _ = cache.Fetch(0)
			Expect(memory.Write8(offset, 7)).To(Succeed())

			inst, hit, err := cache.Fetch(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
			check(inst)
		},
		Entry("first source", uint64(1), func(i *insts.Instruction) { Expect(i.Rn).To(Equal(uint8(7))) }),
		Entry("second source", uint64(2), func(i *insts.Instruction) { Expect(i.Rm).To(Equal(uint8(7))) }),
		Entry("last byte of the instruction", uint64(3), func(i *insts.Instruction) { Expect(i.Rd).To(Equal(uint8(7))) }),
	)

	It("should re-decode even when the written value is unchanged", func() {
		_, _, _ = cache.Fetch(4)
		Expect(memory.Write8(6, 9)).To(Succeed())

		_, hit, err := cache.Fetch(4)
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeFalse())
	})

	It("should keep hitting when neighbouring bytes change", func() {
		_, _, _ = cache.Fetch(4)
		Expect(memory.Write8(3, 2)).To(Succeed())
		Expect(memory.Write8(7, byte(insts.OpPUSH))).To(Succeed())

		_, hit, err := cache.Fetch(4)
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeTrue())
	})

	It("should use the decoded length when a rewrite changes the opcode", func() {
		// HALT is one byte long; turning it into LOAD_IMM extends the
		// range to three bytes, which must then all be watched.
		_, _, _ = cache.Fetch(7)
		Expect(memory.LoadProgram(7, ldi(2, 1))).To(Succeed())

		inst, hit, err := cache.Fetch(7)
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeFalse())
		Expect(inst.Len).To(Equal(uint8(3)))

		Expect(memory.Write8(9, 5)).To(Succeed())
		inst, hit, err = cache.Fetch(7)
		Expect(err).NotTo(HaveOccurred())
		Expect(hit).To(BeFalse())
		Expect(inst.Imm).To(Equal(uint64(5)))
	})

	It("should forward decode errors and drop the entry", func() {
		_, _, _ = cache.Fetch(0)
		Expect(memory.Write8(0, 0xEE)).To(Succeed())

		_, _, err := cache.Fetch(0)
		Expect(err).To(MatchError(insts.ErrUnknownOpcode))
		Expect(cache.Len()).To(BeZero())
	})

	It("should forward out-of-bounds fetches", func() {
		_, _, err := cache.Fetch(1024)
		Expect(err).To(MatchError(emu.ErrOutOfBounds))
	})

	Describe("External invalidation", func() {
		BeforeEach(func() {
			_, _, _ = cache.Fetch(0)
			_, _, _ = cache.Fetch(4)
			_, _, _ = cache.Fetch(7)
		})

		It("should re-decode an invalidated entry", func() {
			cache.Invalidate(4)

			_, hit, err := cache.Fetch(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
			Expect(cache.Stats().Invalidations).To(Equal(uint64(1)))
		})

		It("should invalidate every entry overlapping a range", func() {
			// [3, 5) touches the ADD at 0..3 and the LOAD_IMM at 4..6
			cache.InvalidateRange(3, 5)

			_, hit, _ := cache.Fetch(0)
			Expect(hit).To(BeFalse())
			_, hit, _ = cache.Fetch(4)
			Expect(hit).To(BeFalse())
			_, hit, _ = cache.Fetch(7)
			Expect(hit).To(BeTrue())
		})

		It("should ignore ranges that only touch neighbours", func() {
			cache.InvalidateRange(8, 100)

			_, hit, _ := cache.Fetch(7)
			Expect(hit).To(BeTrue())
			Expect(cache.Stats().Invalidations).To(BeZero())
		})

		It("should drop everything on Flush", func() {
			Expect(cache.Len()).To(Equal(3))
			cache.Flush()
			Expect(cache.Len()).To(BeZero())

			_, hit, _ := cache.Fetch(0)
			Expect(hit).To(BeFalse())
		})
	})
})
