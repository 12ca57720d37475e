package emu

// LoadStoreUnit implements loads and stores of 1, 2, 4 and 8 bytes.
// The address always comes from a register.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// Load performs Rd = zero_extend(mem[Rn .. Rn+size)).
// It returns the accessed address.
func (lsu *LoadStoreUnit) Load(rd, rn, size uint8) (uint64, error) {
	addr := lsu.regFile.ReadReg(rn)
	value, err := lsu.memory.readLE(addr, uint64(size))
	if err != nil {
		return addr, err
	}
	lsu.regFile.WriteReg(rd, value)
	return addr, nil
}

// Store performs mem[Rn .. Rn+size) = low size bytes of Rd.
// It returns the accessed address.
func (lsu *LoadStoreUnit) Store(rd, rn, size uint8) (uint64, error) {
	addr := lsu.regFile.ReadReg(rn)
	return addr, lsu.memory.writeLE(addr, uint64(size), lsu.regFile.ReadReg(rd))
}
