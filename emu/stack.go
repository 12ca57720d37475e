package emu

// FrameSize is the number of bytes PUSH writes: every register as 8
// little-endian bytes followed by one byte for the comparison flag.
const FrameSize = NumRegisters*8 + 1

// StackUnit implements PUSH and POP of the whole machine state.
// The stack grows towards higher addresses.
type StackUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewStackUnit creates a new StackUnit connected to the given register file
// and memory.
func NewStackUnit(regFile *RegFile, memory *Memory) *StackUnit {
	return &StackUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// Push writes a frame at SP and advances SP by FrameSize.
// The frame holds the register values as they were before the push.
// It returns the frame address.
func (s *StackUnit) Push() (uint64, error) {
	base := s.regFile.SP()
	if err := s.memory.check(base, FrameSize); err != nil {
		return base, err
	}

	for i, value := range s.regFile.R {
		// range checked above
		_ = s.memory.writeLE(base+uint64(i)*8, 8, value)
	}

	var flag byte
	if s.regFile.Cmp {
		flag = 1
	}
	s.memory.write(base+NumRegisters*8, flag)

	s.regFile.SetSP(base + FrameSize)
	return base, nil
}

// Pop reads the frame just below SP and restores every register except the
// instruction pointer, plus the comparison flag. The stack pointer is
// restored from the frame, which returns it to its value before the push.
// It returns the frame address.
func (s *StackUnit) Pop() (uint64, error) {
	sp := s.regFile.SP()
	if sp < FrameSize {
		return 0, ErrStackUnderflow
	}
	base := sp - FrameSize

	frame, err := s.memory.ReadRange(base, FrameSize)
	if err != nil {
		return base, err
	}

	for i := RegSP; i < NumRegisters; i++ {
		var value uint64
		for b := 0; b < 8; b++ {
			value |= uint64(frame[i*8+b]) << (8 * b)
		}
		s.regFile.R[i] = value
	}
	s.regFile.Cmp = frame[NumRegisters*8] != 0

	return base, nil
}
