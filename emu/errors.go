package emu

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is matched by every OutOfBoundsError.
	ErrOutOfBounds = errors.New("memory access out of bounds")

	// ErrDivisionByZero is returned by DIV when the divisor register is zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrStackUnderflow is returned by POP when the stack pointer is below
	// one full frame.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrMaxInstructions is returned by Step once the instruction budget set
	// with WithMaxInstructions is used up.
	ErrMaxInstructions = errors.New("max instructions reached")
)

// OutOfBoundsError reports the first address of an access that lies beyond
// the memory capacity.
type OutOfBoundsError struct {
	Addr     uint64
	Capacity uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("memory access at 0x%X out of bounds (capacity 0x%X)", e.Addr, e.Capacity)
}

// Is reports whether target is ErrOutOfBounds.
func (e *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}
