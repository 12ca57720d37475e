package insts

import "fmt"

// Encode returns the byte encoding of the instruction.
// Addr and Len are ignored; the length comes from the opcode table.
func (i *Instruction) Encode() []byte {
	info, ok := Lookup(i.Op)
	if !ok {
		return []byte{byte(i.Op)}
	}

	out := make([]byte, 0, info.Len)
	out = append(out, byte(i.Op))

	switch info.Format {
	case FormatALU:
		out = append(out, i.Rn, i.Rm, i.Rd)
	case FormatCompare:
		out = append(out, i.Rn, i.Rm)
	case FormatLoad:
		out = append(out, i.Rn, i.Rd)
	case FormatStore:
		out = append(out, i.Rd, i.Rn)
	case FormatLoadImm:
		out = append(out, i.Rd, byte(i.Imm))
	case FormatBranch:
		out = append(out, byte(i.Imm))
	}

	return out
}

// RegName returns the assembler name of a register index.
func RegName(r uint8) string {
	switch r {
	case RegIP:
		return "ip"
	case RegSP:
		return "sp"
	default:
		return fmt.Sprintf("r%d", r)
	}
}

// String disassembles the instruction into assembler syntax.
func (i *Instruction) String() string {
	name := i.Op.String()

	switch i.Format {
	case FormatALU:
		return fmt.Sprintf("%s %s, %s, %s", name, RegName(i.Rn), RegName(i.Rm), RegName(i.Rd))
	case FormatCompare:
		return fmt.Sprintf("%s %s, %s", name, RegName(i.Rn), RegName(i.Rm))
	case FormatLoad:
		return fmt.Sprintf("%s %s, %s", name, RegName(i.Rn), RegName(i.Rd))
	case FormatStore:
		return fmt.Sprintf("%s %s, %s", name, RegName(i.Rd), RegName(i.Rn))
	case FormatLoadImm:
		return fmt.Sprintf("%s %s, %d", name, RegName(i.Rd), i.Imm)
	case FormatBranch:
		return fmt.Sprintf("%s 0x%02X", name, i.Imm)
	default:
		return name
	}
}
