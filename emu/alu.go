package emu

// ALU implements the arithmetic and comparison operations.
// All arithmetic wraps modulo 2^64.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// ADD performs Rd = Rn + Rm.
func (a *ALU) ADD(rd, rn, rm uint8) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rn)+a.regFile.ReadReg(rm))
}

// SUB performs Rd = Rn - Rm.
func (a *ALU) SUB(rd, rn, rm uint8) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rn)-a.regFile.ReadReg(rm))
}

// MUL performs Rd = Rn * Rm.
func (a *ALU) MUL(rd, rn, rm uint8) {
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rn)*a.regFile.ReadReg(rm))
}

// DIV performs Rd = Rn / Rm (unsigned).
// A zero divisor leaves the register file untouched.
func (a *ALU) DIV(rd, rn, rm uint8) error {
	divisor := a.regFile.ReadReg(rm)
	if divisor == 0 {
		return ErrDivisionByZero
	}
	a.regFile.WriteReg(rd, a.regFile.ReadReg(rn)/divisor)
	return nil
}

// LESS sets the comparison flag to Rn < Rm (unsigned).
func (a *ALU) LESS(rn, rm uint8) {
	a.regFile.Cmp = a.regFile.ReadReg(rn) < a.regFile.ReadReg(rm)
}

// LDI performs Rd = imm.
func (a *ALU) LDI(rd uint8, imm uint64) {
	a.regFile.WriteReg(rd, imm)
}
