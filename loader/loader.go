// Package loader reads bytecode programs from disk.
//
// Files ending in .s or .asm are assembled; anything else is taken as a raw
// memory image that starts at address 0.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/bvm/asm"
	"github.com/sarchlab/bvm/emu"
)

// Labels with special meaning to the loader.
const (
	// EntryLabel and StartLabel mark the entry point. EntryLabel wins when
	// both are present.
	EntryLabel = "entry"
	StartLabel = "start"

	// StackLabel marks the base of the stack. When present the stack
	// pointer is initialised to it.
	StackLabel = "stack"
)

// ErrEmptyProgram is returned for a program without any bytes.
var ErrEmptyProgram = errors.New("empty program")

// Program represents a loaded program ready for execution.
type Program struct {
	// EntryPoint is the address where execution should begin.
	EntryPoint uint64
	// Image is the memory image, loaded at address 0.
	Image []byte
	// Labels holds assembler labels; it is empty for raw images.
	Labels map[string]uint64
	// InitialSP is the initial stack pointer value, if HasStack is set.
	InitialSP uint64
	HasStack  bool
}

// Load reads a program file. Assembly errors carry their line number.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	if isSource(path) {
		prog, err := LoadSource(data)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble %s: %w", path, err)
		}
		return prog, nil
	}

	return LoadBytes(data)
}

// LoadBytes wraps a raw image. Execution starts at address 0.
func LoadBytes(data []byte) (*Program, error) {
	if len(data) == 0 {
		return nil, ErrEmptyProgram
	}

	image := make([]byte, len(data))
	copy(image, data)

	return &Program{
		Image:  image,
		Labels: map[string]uint64{},
	}, nil
}

// LoadSource assembles source text into a program.
func LoadSource(src []byte) (*Program, error) {
	obj, err := asm.NewAssembler().Assemble(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	if len(obj.Image) == 0 {
		return nil, ErrEmptyProgram
	}

	prog := &Program{
		Image:  obj.Image,
		Labels: obj.Labels,
	}

	if addr, ok := obj.Labels[EntryLabel]; ok {
		prog.EntryPoint = addr
	} else if addr, ok := obj.Labels[StartLabel]; ok {
		prog.EntryPoint = addr
	}

	if addr, ok := obj.Labels[StackLabel]; ok {
		prog.InitialSP = addr
		prog.HasStack = true
	}

	return prog, nil
}

// Apply writes the image at address 0, sets IP to the entry point and, when
// the program marks a stack, sets SP.
func (p *Program) Apply(e *emu.Emulator) error {
	if err := e.LoadProgram(p.EntryPoint, p.Image); err != nil {
		return err
	}
	if p.HasStack {
		e.RegFile().SetSP(p.InitialSP)
	}
	return nil
}

func isSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		return true
	default:
		return false
	}
}
