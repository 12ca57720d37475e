package insts

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOpcode is matched by every UnknownOpcodeError.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrInvalidRegister is matched by every InvalidRegisterError.
	ErrInvalidRegister = errors.New("invalid register")
)

// UnknownOpcodeError reports a byte that does not select any opcode.
type UnknownOpcodeError struct {
	Addr   uint64
	Opcode byte
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02X at 0x%X", e.Opcode, e.Addr)
}

// Is reports whether target is ErrUnknownOpcode.
func (e *UnknownOpcodeError) Is(target error) bool {
	return target == ErrUnknownOpcode
}

// InvalidRegisterError reports a register operand outside the register file.
type InvalidRegisterError struct {
	Addr  uint64
	Index byte
}

func (e *InvalidRegisterError) Error() string {
	return fmt.Sprintf("invalid register index %d in instruction at 0x%X", e.Index, e.Addr)
}

// Is reports whether target is ErrInvalidRegister.
func (e *InvalidRegisterError) Is(target error) bool {
	return target == ErrInvalidRegister
}
