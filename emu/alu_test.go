package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bvm/emu"
)

var _ = Describe("ALU", func() {
	var (
		regFile *emu.RegFile
		alu     *emu.ALU
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		alu = emu.NewALU(regFile)
	})

	It("should add", func() {
		regFile.WriteReg(2, 40)
		regFile.WriteReg(3, 2)
		alu.ADD(4, 2, 3)
		Expect(regFile.ReadReg(4)).To(Equal(uint64(42)))
	})

	It("should wrap ADD modulo 2^64", func() {
		regFile.WriteReg(2, math.MaxUint64)
		regFile.WriteReg(3, 2)
		alu.ADD(4, 2, 3)
		Expect(regFile.ReadReg(4)).To(Equal(uint64(1)))
	})

	It("should wrap SUB below zero", func() {
		regFile.WriteReg(2, 1)
		regFile.WriteReg(3, 2)
		alu.SUB(4, 2, 3)
		Expect(regFile.ReadReg(4)).To(Equal(uint64(math.MaxUint64)))
	})

	It("should keep the low 64 bits of MUL", func() {
		regFile.WriteReg(2, 1<<63)
		regFile.WriteReg(3, 6)
		alu.MUL(4, 2, 3)
		Expect(regFile.ReadReg(4)).To(Equal(uint64(0)))
	})

	It("should divide unsigned", func() {
		regFile.WriteReg(2, 100)
		regFile.WriteReg(3, 7)
		Expect(alu.DIV(4, 2, 3)).To(Succeed())
		Expect(regFile.ReadReg(4)).To(Equal(uint64(14)))
	})

	It("should fail DIV by zero without touching registers", func() {
		regFile.WriteReg(2, 100)
		regFile.WriteReg(4, 55)
		before := *regFile

		Expect(alu.DIV(4, 2, 3)).To(MatchError(emu.ErrDivisionByZero))
		Expect(*regFile).To(Equal(before))
	})

	It("should set the comparison flag with LESS", func() {
		regFile.WriteReg(2, 1)
		regFile.WriteReg(3, 2)

		alu.LESS(2, 3)
		Expect(regFile.Cmp).To(BeTrue())

		alu.LESS(3, 2)
		Expect(regFile.Cmp).To(BeFalse())

		alu.LESS(2, 2)
		Expect(regFile.Cmp).To(BeFalse())
	})
})

var _ = Describe("RegFile", func() {
	It("should alias R0 and R1 as IP and SP", func() {
		regFile := &emu.RegFile{}
		regFile.SetIP(0x40)
		regFile.SetSP(0x80)
		Expect(regFile.ReadReg(emu.RegIP)).To(Equal(uint64(0x40)))
		Expect(regFile.ReadReg(emu.RegSP)).To(Equal(uint64(0x80)))
	})

	It("should ignore registers outside the file", func() {
		regFile := &emu.RegFile{}
		regFile.WriteReg(emu.NumRegisters, 7)
		Expect(regFile.ReadReg(emu.NumRegisters)).To(BeZero())
	})
})
