package asm

import (
	"errors"
	"fmt"
)

// Assembler errors.
var (
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	ErrOperandCount    = errors.New("wrong number of operands")
	ErrInvalidRegister = errors.New("invalid register")
	ErrInvalidValue    = errors.New("invalid value")
	ErrValueRange      = errors.New("value out of range")
	ErrInvalidLabel    = errors.New("invalid label name")
	ErrDuplicateLabel  = errors.New("label defined twice")
	ErrUndefinedLabel  = errors.New("undefined label")
	ErrDuplicateEquate = errors.New(".equ defined twice")
	ErrEquateSyntax    = errors.New(".equ syntax")
	ErrEquateDepth     = errors.New(".equ nesting too deep")
	ErrOrgBackwards    = errors.New(".org moves backwards")
	ErrImageTooLarge   = errors.New("image too large")
	ErrExpression      = errors.New("invalid expression")
)

// SyntaxError reports the source line an assembler error occurred on.
type SyntaxError struct {
	Line int    // 1-based line number
	Text string // source text of the line
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
