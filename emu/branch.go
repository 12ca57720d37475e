package emu

import "github.com/sarchlab/bvm/insts"

// BranchUnit implements the control transfer instructions.
// Targets are absolute literal addresses.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// JMP sets IP to target.
func (b *BranchUnit) JMP(target uint64) {
	b.regFile.SetIP(target)
}

// CondJMP sets IP to the target of inst if the comparison flag is set,
// otherwise it falls through to the next instruction.
// It reports whether the branch was taken.
func (b *BranchUnit) CondJMP(inst *insts.Instruction) bool {
	if b.regFile.Cmp {
		b.regFile.SetIP(inst.Imm)
		return true
	}
	b.regFile.SetIP(inst.End())
	return false
}
