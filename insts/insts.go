// Package insts provides bytecode instruction definitions and decoding.
//
// Every instruction starts with a one-byte opcode followed by a fixed number
// of operand bytes. The decoder turns the bytes found at an address into an
// Instruction that records the address range it was decoded from:
//   - Arithmetic: ADD, SUB, MUL, DIV over three register operands
//   - Comparison: LESS sets the comparison flag
//   - Memory: LOAD/STORE of 1, 2, 4 or 8 bytes through an address register
//   - Control: JMP, COND_JMP to a literal address, HALT
//   - Stack: PUSH and POP of the whole register file
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode(0, memory) // memory implements insts.ByteReader
//	fmt.Printf("%v spans [%d, %d)\n", inst, inst.Addr, inst.End())
package insts
