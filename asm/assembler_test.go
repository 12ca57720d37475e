package asm_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bvm/asm"
	"github.com/sarchlab/bvm/insts"
)

// image is a ByteReader over a byte slice.
type image []byte

func (m image) Read8(addr uint64) (byte, error) {
	if addr >= uint64(len(m)) {
		return 0, errors.New("past end of image")
	}
	return m[addr], nil
}

func assemble(lines ...string) *asm.Object {
	obj, err := asm.AssembleString(strings.Join(lines, "\n"))
	Expect(err).NotTo(HaveOccurred())
	return obj
}

var _ = Describe("Assembler", func() {
	It("should assemble the counting loop", func() {
		obj := assemble(
			"loop:  add    x, y, x",
			"       store8 x, a",
			"       load8  a, b",
			"       less   b, z",
			"       jc     loop",
			"       halt",
		)

		Expect(obj.Image).To(Equal([]byte{
			0, 2, 3, 2,
			5, 2, 5,
			4, 5, 6,
			9, 6, 4,
			8, 0,
			6,
		}))
		Expect(obj.Labels).To(Equal(map[string]uint64{"loop": 0}))
	})

	It("should resolve forward labels", func() {
		obj := assemble(
			"      jmp end",
			"      halt",
			"end:  ldi x, 7",
			"      halt",
		)

		Expect(obj.Image).To(Equal([]byte{7, 3, 6, 16, 2, 7, 6}))
		Expect(obj.Labels["end"]).To(Equal(uint64(3)))
	})

	It("should handle data, padding, character literals and comments", func() {
		obj := assemble(
			"start: jmp main  ; skip data",
			`data:  .byte 'A', '\n', 0x10, 0b11`,
			".org 0x10",
			"main:  halt      # done",
		)

		want := []byte{7, 0x10, 65, 10, 0x10, 3}
		want = append(want, make([]byte, 0x10-len(want))...)
		want = append(want, 6)
		Expect(obj.Image).To(Equal(want))
		Expect(obj.Labels).To(Equal(map[string]uint64{
			"start": 0,
			"data":  2,
			"main":  0x10,
		}))
	})

	It("should substitute equates for registers and values", func() {
		a := asm.NewAssembler()
		a.Define("limit", "0x20")

		obj, err := a.Assemble(strings.NewReader(strings.Join([]string{
			".equ counter g",
			".equ step 1",
			"ldi counter, step",
			"ldi r4, limit",
		}, "\n")))

		Expect(err).NotTo(HaveOccurred())
		Expect(obj.Image).To(Equal([]byte{16, 11, 1, 16, 4, 0x20}))
	})

	It("should evaluate expressions over equates and labels", func() {
		obj := assemble(
			".equ base 8",
			"ldi x, $(base * 4 + 1)",
			"jmp $(after - 1)",
			"after: halt",
		)

		Expect(obj.Image).To(Equal([]byte{16, 2, 33, 7, 4, 6}))
	})

	It("should accept upper case mnemonics and registers", func() {
		obj := assemble("ADD X, Y, R11", "PUSH", "POP", "HALT")
		Expect(obj.Image).To(Equal([]byte{0, 2, 3, 11, 17, 18, 6}))
	})

	It("should accept blank-separated operands", func() {
		obj := assemble("store64 sp ip")
		Expect(obj.Image).To(Equal([]byte{15, 1, 0}))
	})

	It("should allow several labels on one address", func() {
		obj := assemble("first: second:", "third: halt")
		Expect(obj.Labels).To(Equal(map[string]uint64{
			"first":  0,
			"second": 0,
			"third":  0,
		}))
	})

	It("should produce an empty image for comment-only source", func() {
		obj := assemble("; nothing", "", "   # also nothing")
		Expect(obj.Image).To(BeEmpty())
	})

	It("should start over on every Assemble call", func() {
		a := asm.NewAssembler()
		_, err := a.Assemble(strings.NewReader("l: halt"))
		Expect(err).NotTo(HaveOccurred())

		obj, err := a.Assemble(strings.NewReader("l: push"))
		Expect(err).NotTo(HaveOccurred())
		Expect(obj.Image).To(Equal([]byte{17}))
	})

	It("should re-assemble its own disassembly", func() {
		code := image{
			0, 2, 3, 4,
			1, 5, 6, 7,
			2, 8, 9, 10,
			3, 11, 0, 1,
			9, 1, 0,
			12, 9, 10,
			13, 11, 1,
			16, 4, 200,
			7, 0x10,
			8, 0,
			17, 18, 6,
		}

		decoder := insts.NewDecoder()
		var lines []string
		for addr := uint64(0); addr < uint64(len(code)); {
			inst, err := decoder.Decode(addr, code)
			Expect(err).NotTo(HaveOccurred())
			lines = append(lines, inst.String())
			addr = inst.End()
		}

		obj := assemble(lines...)
		Expect(obj.Image).To(Equal([]byte(code)))
	})

	DescribeTable("rejecting bad source",
		func(src string, line int, want error) {
			_, err := asm.AssembleString(src)
			Expect(err).To(MatchError(want))

			var synErr *asm.SyntaxError
			Expect(errors.As(err, &synErr)).To(BeTrue())
			Expect(synErr.Line).To(Equal(line))
		},
		Entry("unknown mnemonic", "halt\nfoo r1", 2, asm.ErrUnknownMnemonic),
		Entry("missing operand", "add x, y", 1, asm.ErrOperandCount),
		Entry("empty .byte", ".byte", 1, asm.ErrOperandCount),
		Entry("register past the file", "ldi r12, 1", 1, asm.ErrInvalidRegister),
		Entry("literal above a byte", "ldi x, 256", 1, asm.ErrValueRange),
		Entry("expression above a byte", "ldi x, $(300)", 1, asm.ErrValueRange),
		Entry("malformed number", ".byte 0x1G", 1, asm.ErrInvalidValue),
		Entry("undefined label", "halt\njmp nowhere", 2, asm.ErrUndefinedLabel),
		Entry("duplicate label", "l1:\nl1: halt", 2, asm.ErrDuplicateLabel),
		Entry("label named like a register", "x: halt", 1, asm.ErrInvalidLabel),
		Entry("backwards .org", ".org 8\n.org 4", 2, asm.ErrOrgBackwards),
		Entry("huge .org", ".org 0x10000000", 1, asm.ErrImageTooLarge),
		Entry("duplicate equate", ".equ n 1\n.equ n 2", 2, asm.ErrDuplicateEquate),
		Entry("equate without value", ".equ n", 1, asm.ErrEquateSyntax),
		Entry("circular equates", ".equ p q\n.equ q p\nldi x, p", 3, asm.ErrEquateDepth),
		Entry("bad expression", "ldi x, $(1 +)", 1, asm.ErrExpression),
	)

	It("should report the source text of the failing line", func() {
		_, err := asm.AssembleString("halt\n  bogus  ")
		Expect(err).To(MatchError(ContainSubstring(`line 2 "  bogus  "`)))
	})
})

var _ = Describe("ParseRegister", func() {
	DescribeTable("register names",
		func(name string, want uint8) {
			Expect(asm.ParseRegister(name)).To(Equal(want))
		},
		Entry("ip", "ip", uint8(insts.RegIP)),
		Entry("sp", "SP", uint8(insts.RegSP)),
		Entry("alias", "g", uint8(11)),
		Entry("numbered", "r4", uint8(4)),
	)

	It("should reject names outside the register file", func() {
		_, err := asm.ParseRegister("r12")
		Expect(err).To(MatchError(asm.ErrInvalidRegister))

		_, err = asm.ParseRegister("h")
		Expect(err).To(MatchError(asm.ErrInvalidRegister))
	})
})
