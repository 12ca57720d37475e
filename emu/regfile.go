package emu

import "github.com/sarchlab/bvm/insts"

// NumRegisters is the size of the register file.
const NumRegisters = insts.NumRegisters

// Register aliases used by programs.
const (
	RegIP = insts.RegIP
	RegSP = insts.RegSP
	RegX  = 2
	RegY  = 3
	RegZ  = 4
	RegA  = 5
	RegB  = 6
	RegC  = 7
	RegD  = 8
	RegE  = 9
	RegF  = 10
	RegG  = 11
)

// RegFile represents the register file.
// R[0] is the instruction pointer and R[1] the stack pointer; the rest are
// general purpose.
type RegFile struct {
	// R holds all registers.
	R [NumRegisters]uint64

	// Cmp is the comparison flag written by LESS and read by COND_JMP.
	Cmp bool
}

// IP returns the instruction pointer.
func (r *RegFile) IP() uint64 {
	return r.R[RegIP]
}

// SetIP sets the instruction pointer.
func (r *RegFile) SetIP(ip uint64) {
	r.R[RegIP] = ip
}

// SP returns the stack pointer.
func (r *RegFile) SP() uint64 {
	return r.R[RegSP]
}

// SetSP sets the stack pointer.
func (r *RegFile) SetSP(sp uint64) {
	r.R[RegSP] = sp
}

// ReadReg reads a register value. Indices outside the file read as 0.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg >= NumRegisters {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes a register value. Writes outside the file are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg >= NumRegisters {
		return
	}
	r.R[reg] = value
}
