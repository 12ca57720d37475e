// Package emu provides functional bytecode emulation.
package emu

import (
	"context"
	"fmt"
	"io"

	"github.com/sarchlab/bvm/insts"
)

// ctxCheckInterval is how many instructions RunContext executes between
// context checks.
const ctxCheckInterval = 1024

// MemAccess describes the data memory touched by one instruction.
type MemAccess struct {
	// Addr is the first byte accessed.
	Addr uint64
	// Size is the number of bytes accessed; 0 means no data access.
	Size int
	// Write is true for stores and PUSH.
	Write bool
}

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true once a HALT has been executed.
	Halted bool

	// Err is set if an error occurred during execution.
	Err error

	// Inst is the executed instruction.
	Inst *insts.Instruction

	// CacheHit is true if Inst was served by the instruction cache
	// without decoding.
	CacheHit bool

	// Taken is true for a JMP and for a COND_JMP that branched.
	Taken bool

	// Access is the data access made by Inst, if any.
	Access MemAccess
}

// Emulator executes bytecode instructions functionally.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder
	icache  *InstructionCache

	// Execution units
	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit
	stackUnit  *StackUnit

	// Configuration
	memorySize    uint64
	icacheEnabled bool
	trace         io.Writer

	// Execution state
	halted           bool
	fault            error
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemorySize sets the memory capacity in bytes.
func WithMemorySize(size uint64) EmulatorOption {
	return func(e *Emulator) {
		e.memorySize = size
	}
}

// WithInstructionCache enables or disables the decoded-instruction cache.
// With the cache disabled every step decodes from memory.
func WithInstructionCache(enabled bool) EmulatorOption {
	return func(e *Emulator) {
		e.icacheEnabled = enabled
	}
}

// WithRegister sets the initial value of a register.
func WithRegister(reg uint8, value uint64) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.WriteReg(reg, value)
	}
}

// WithStackPointer sets the initial stack pointer value.
func WithStackPointer(sp uint64) EmulatorOption {
	return func(e *Emulator) {
		e.regFile.SetSP(sp)
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithTrace writes one line per executed instruction to w.
func WithTrace(w io.Writer) EmulatorOption {
	return func(e *Emulator) {
		e.trace = w
	}
}

// NewEmulator creates a new emulator with zeroed registers and memory.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile:       &RegFile{},
		decoder:       insts.NewDecoder(),
		memorySize:    DefaultMemorySize,
		icacheEnabled: true,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.memory = NewMemoryWithSize(e.memorySize)
	e.connect()

	return e
}

// connect (re)creates the execution units and the instruction cache over
// the current register file and memory.
func (e *Emulator) connect() {
	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)
	e.stackUnit = NewStackUnit(e.regFile, e.memory)
	e.icache = NewInstructionCache(e.memory, e.decoder)
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCache returns the decoded-instruction cache.
func (e *Emulator) InstructionCache() *InstructionCache {
	return e.icache
}

// InstructionCacheEnabled reports whether fetches go through the cache.
func (e *Emulator) InstructionCacheEnabled() bool {
	return e.icacheEnabled
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Halted reports whether a HALT has been executed.
func (e *Emulator) Halted() bool {
	return e.halted
}

// Fault returns the fatal error that stopped the emulator, if any.
func (e *Emulator) Fault() error {
	return e.fault
}

// LoadProgram writes the image at address 0 and sets IP to entry.
func (e *Emulator) LoadProgram(entry uint64, image []byte) error {
	if err := e.memory.LoadProgram(0, image); err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}
	e.regFile.SetIP(entry)
	return nil
}

// Reset resets the emulator to its initial state, keeping its options
// except the initial register values.
func (e *Emulator) Reset() {
	e.regFile = &RegFile{}
	e.memory = NewMemoryWithSize(e.memorySize)
	e.halted = false
	e.fault = nil
	e.instructionCount = 0
	e.connect()
}

// Step executes a single instruction.
// Each step is applied completely or, on error, not at all: a failing
// instruction leaves registers, flag and IP as they were.
func (e *Emulator) Step() StepResult {
	if e.fault != nil {
		return StepResult{Err: e.fault}
	}
	if e.halted {
		return StepResult{Halted: true}
	}

	// Check instruction limit before executing
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.IP()

	// 1. Fetch and decode
	inst, hit, err := e.fetch(pc)
	if err != nil {
		return e.fail(fmt.Errorf("fetch at IP=0x%X: %w", pc, err))
	}

	if e.trace != nil {
		mark := "decode"
		if hit {
			mark = "cached"
		}
		_, _ = fmt.Fprintf(e.trace, "%08X  %-6s  %v\n", pc, mark, inst)
	}

	// 2. Execute
	result := e.execute(inst)
	result.Inst = inst
	result.CacheHit = hit
	if result.Err != nil {
		failed := e.fail(fmt.Errorf("%v at IP=0x%X: %w", inst.Op, pc, result.Err))
		failed.Inst = inst
		failed.CacheHit = hit
		return failed
	}

	e.instructionCount++

	return result
}

func (e *Emulator) fetch(pc uint64) (*insts.Instruction, bool, error) {
	if e.icacheEnabled {
		return e.icache.Fetch(pc)
	}
	inst, err := e.decoder.Decode(pc, e.memory)
	return inst, false, err
}

func (e *Emulator) fail(err error) StepResult {
	e.fault = err
	return StepResult{Err: err}
}

// Run executes instructions until a HALT or an error.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Halted {
			return nil
		}
	}
}

// RunContext is Run with cancellation. The context is checked between
// instructions, so a stop never leaves an instruction half applied.
func (e *Emulator) RunContext(ctx context.Context) error {
	for n := uint64(0); ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		result := e.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Halted {
			return nil
		}
	}
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	var result StepResult

	switch inst.Op {
	case insts.OpADD:
		e.alu.ADD(inst.Rd, inst.Rn, inst.Rm)
	case insts.OpSUB:
		e.alu.SUB(inst.Rd, inst.Rn, inst.Rm)
	case insts.OpMUL:
		e.alu.MUL(inst.Rd, inst.Rn, inst.Rm)
	case insts.OpDIV:
		if err := e.alu.DIV(inst.Rd, inst.Rn, inst.Rm); err != nil {
			return StepResult{Err: err}
		}
	case insts.OpLESS:
		e.alu.LESS(inst.Rn, inst.Rm)
	case insts.OpLOADIMM:
		e.alu.LDI(inst.Rd, inst.Imm)
	case insts.OpLOAD8, insts.OpLOAD16, insts.OpLOAD32, insts.OpLOAD64:
		addr, err := e.lsu.Load(inst.Rd, inst.Rn, inst.Size)
		if err != nil {
			return StepResult{Err: err}
		}
		result.Access = MemAccess{Addr: addr, Size: int(inst.Size)}
	case insts.OpSTORE8, insts.OpSTORE16, insts.OpSTORE32, insts.OpSTORE64:
		addr, err := e.lsu.Store(inst.Rd, inst.Rn, inst.Size)
		if err != nil {
			return StepResult{Err: err}
		}
		result.Access = MemAccess{Addr: addr, Size: int(inst.Size), Write: true}
	case insts.OpPUSH:
		addr, err := e.stackUnit.Push()
		if err != nil {
			return StepResult{Err: err}
		}
		result.Access = MemAccess{Addr: addr, Size: FrameSize, Write: true}
	case insts.OpPOP:
		addr, err := e.stackUnit.Pop()
		if err != nil {
			return StepResult{Err: err}
		}
		result.Access = MemAccess{Addr: addr, Size: FrameSize}
	case insts.OpJMP:
		e.branchUnit.JMP(inst.Imm)
		return StepResult{Taken: true} // IP already updated by branch
	case insts.OpCondJMP:
		taken := e.branchUnit.CondJMP(inst)
		return StepResult{Taken: taken} // IP already updated
	case insts.OpHALT:
		e.halted = true
		return StepResult{Halted: true} // IP stays on the HALT
	default:
		return StepResult{Err: &insts.UnknownOpcodeError{Addr: inst.Addr, Opcode: byte(inst.Op)}}
	}

	// Advance IP past the instruction (for non-branch instructions).
	// This also overrides any write to R0 made by the instruction itself.
	e.regFile.SetIP(inst.End())

	return result
}
