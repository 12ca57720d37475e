package emu

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot is a copy of the architectural state of an emulator.
// Version counters and cached decodes are not part of it.
type Snapshot struct {
	Registers        [NumRegisters]uint64 `cbor:"regs"`
	Cmp              bool                 `cbor:"cmp"`
	Halted           bool                 `cbor:"halted"`
	InstructionCount uint64               `cbor:"count"`
	Memory           []byte               `cbor:"mem"`
}

// Snapshot captures registers, flag, halt state, instruction count and the
// full memory contents.
func (e *Emulator) Snapshot() *Snapshot {
	mem := make([]byte, len(e.memory.data))
	copy(mem, e.memory.data)

	return &Snapshot{
		Registers:        e.regFile.R,
		Cmp:              e.regFile.Cmp,
		Halted:           e.halted,
		InstructionCount: e.instructionCount,
		Memory:           mem,
	}
}

// Restore reinstates a snapshot. Memory bytes that differ are written, which
// advances their versions, and the instruction cache is flushed. A pending
// fault is cleared.
func (e *Emulator) Restore(s *Snapshot) error {
	if uint64(len(s.Memory)) > e.memory.Capacity() {
		return fmt.Errorf("snapshot memory of %d bytes does not fit capacity %d",
			len(s.Memory), e.memory.Capacity())
	}

	for addr := range e.memory.data {
		var b byte
		if addr < len(s.Memory) {
			b = s.Memory[addr]
		}
		if e.memory.data[addr] != b {
			e.memory.write(uint64(addr), b)
		}
	}

	e.regFile.R = s.Registers
	e.regFile.Cmp = s.Cmp
	e.halted = s.Halted
	e.instructionCount = s.InstructionCount
	e.fault = nil
	e.icache.Flush()

	return nil
}

// MarshalSnapshot encodes a snapshot as CBOR.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	data, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a CBOR snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := cbor.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}
