// Package insts provides bytecode instruction definitions and decoding.
package insts

// Op represents an opcode byte.
type Op uint8

// Opcodes. The values of the first ten are fixed by existing images.
const (
	OpADD     Op = 0
	OpSUB     Op = 1
	OpDIV     Op = 2
	OpMUL     Op = 3
	OpLOAD8   Op = 4
	OpSTORE8  Op = 5
	OpHALT    Op = 6
	OpJMP     Op = 7
	OpCondJMP Op = 8
	OpLESS    Op = 9
	OpLOAD16  Op = 10
	OpLOAD32  Op = 11
	OpLOAD64  Op = 12
	OpSTORE16 Op = 13
	OpSTORE32 Op = 14
	OpSTORE64 Op = 15
	OpLOADIMM Op = 16
	OpPUSH    Op = 17
	OpPOP     Op = 18
)

// Format represents an operand layout.
type Format uint8

// Operand layouts.
const (
	FormatUnknown Format = iota
	FormatALU      // srcA, srcB, dst
	FormatCompare  // srcA, srcB
	FormatLoad     // address register, dst
	FormatStore    // value register, address register
	FormatLoadImm  // dst, literal
	FormatBranch   // literal address
	FormatNone     // no operands
)

// Register file layout shared by the decoder and the emulator.
const (
	NumRegisters = 12
	RegIP        = 0
	RegSP        = 1
)

// MaxLen is the longest encoded instruction in bytes.
const MaxLen = 4

// Info describes the static encoding of one opcode.
type Info struct {
	Name   string
	Format Format
	Len    uint8 // opcode byte plus operand bytes
	Size   uint8 // access width in bytes for loads and stores
}

var opTable = map[Op]Info{
	OpADD:     {Name: "add", Format: FormatALU, Len: 4},
	OpSUB:     {Name: "sub", Format: FormatALU, Len: 4},
	OpDIV:     {Name: "div", Format: FormatALU, Len: 4},
	OpMUL:     {Name: "mul", Format: FormatALU, Len: 4},
	OpLESS:    {Name: "less", Format: FormatCompare, Len: 3},
	OpLOAD8:   {Name: "load8", Format: FormatLoad, Len: 3, Size: 1},
	OpLOAD16:  {Name: "load16", Format: FormatLoad, Len: 3, Size: 2},
	OpLOAD32:  {Name: "load32", Format: FormatLoad, Len: 3, Size: 4},
	OpLOAD64:  {Name: "load64", Format: FormatLoad, Len: 3, Size: 8},
	OpSTORE8:  {Name: "store8", Format: FormatStore, Len: 3, Size: 1},
	OpSTORE16: {Name: "store16", Format: FormatStore, Len: 3, Size: 2},
	OpSTORE32: {Name: "store32", Format: FormatStore, Len: 3, Size: 4},
	OpSTORE64: {Name: "store64", Format: FormatStore, Len: 3, Size: 8},
	OpLOADIMM: {Name: "ldi", Format: FormatLoadImm, Len: 3},
	OpJMP:     {Name: "jmp", Format: FormatBranch, Len: 2},
	OpCondJMP: {Name: "jc", Format: FormatBranch, Len: 2},
	OpPUSH:    {Name: "push", Format: FormatNone, Len: 1},
	OpPOP:     {Name: "pop", Format: FormatNone, Len: 1},
	OpHALT:    {Name: "halt", Format: FormatNone, Len: 1},
}

// Lookup returns the encoding of an opcode byte.
func Lookup(op Op) (Info, bool) {
	info, ok := opTable[op]
	return info, ok
}

// Ops returns every defined opcode in ascending order.
func Ops() []Op {
	ops := make([]Op, 0, len(opTable))
	for op := Op(0); op <= OpPOP; op++ {
		if _, ok := opTable[op]; ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// String returns the assembler mnemonic of the opcode.
func (op Op) String() string {
	if info, ok := opTable[op]; ok {
		return info.Name
	}
	return "unknown"
}

// Instruction represents one decoded opcode occurrence.
// It is never mutated after decoding.
type Instruction struct {
	Op     Op     // Operation code
	Format Format // Operand layout

	// Addr and Len give the byte range [Addr, Addr+Len) the
	// instruction was decoded from.
	Addr uint64
	Len  uint8

	// Register operands. Loads read the address from Rn and write Rd.
	// Stores write Rd to the address held in Rn.
	Rd uint8
	Rn uint8
	Rm uint8

	// Imm is the literal operand of LOAD_IMM, JMP and COND_JMP.
	Imm uint64

	// Size is the access width in bytes for loads and stores.
	Size uint8
}

// End returns the first address after the instruction.
func (i *Instruction) End() uint64 {
	return i.Addr + uint64(i.Len)
}

// ByteReader is the view of memory the decoder needs.
type ByteReader interface {
	Read8(addr uint64) (byte, error)
}

// Decoder decodes bytecode into instructions.
type Decoder struct{}

// NewDecoder creates a new decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes the instruction starting at addr.
// The operand count, and therefore the decoded length, is taken from the
// opcode table.
func (d *Decoder) Decode(addr uint64, mem ByteReader) (*Instruction, error) {
	opcode, err := mem.Read8(addr)
	if err != nil {
		return nil, err
	}

	info, ok := Lookup(Op(opcode))
	if !ok {
		return nil, &UnknownOpcodeError{Addr: addr, Opcode: opcode}
	}

	var operands [MaxLen - 1]byte
	for i := 0; i < int(info.Len)-1; i++ {
		operands[i], err = mem.Read8(addr + 1 + uint64(i))
		if err != nil {
			return nil, err
		}
	}

	inst := &Instruction{
		Op:     Op(opcode),
		Format: info.Format,
		Addr:   addr,
		Len:    info.Len,
		Size:   info.Size,
	}

	switch info.Format {
	case FormatALU:
		inst.Rn, inst.Rm, inst.Rd = operands[0], operands[1], operands[2]
		err = d.checkRegs(addr, inst.Rn, inst.Rm, inst.Rd)
	case FormatCompare:
		inst.Rn, inst.Rm = operands[0], operands[1]
		err = d.checkRegs(addr, inst.Rn, inst.Rm)
	case FormatLoad:
		inst.Rn, inst.Rd = operands[0], operands[1]
		err = d.checkRegs(addr, inst.Rn, inst.Rd)
	case FormatStore:
		inst.Rd, inst.Rn = operands[0], operands[1]
		err = d.checkRegs(addr, inst.Rd, inst.Rn)
	case FormatLoadImm:
		inst.Rd = operands[0]
		inst.Imm = uint64(operands[1])
		err = d.checkRegs(addr, inst.Rd)
	case FormatBranch:
		inst.Imm = uint64(operands[0])
	}

	if err != nil {
		return nil, err
	}

	return inst, nil
}

// checkRegs rejects register operands outside the register file.
func (d *Decoder) checkRegs(addr uint64, regs ...uint8) error {
	for _, r := range regs {
		if r >= NumRegisters {
			return &InvalidRegisterError{Addr: addr, Index: r}
		}
	}
	return nil
}
