package emu

// DefaultMemorySize is the capacity of a memory created by NewMemory (1 MiB).
const DefaultMemorySize = 1 << 20

// Memory is a flat byte-addressable memory. Every byte carries a version
// counter that is incremented exactly once per write to that byte and is
// never touched by reads.
type Memory struct {
	data     []byte
	versions []uint64
}

// NewMemory creates a zeroed memory of DefaultMemorySize bytes.
func NewMemory() *Memory {
	return NewMemoryWithSize(DefaultMemorySize)
}

// NewMemoryWithSize creates a zeroed memory of the given capacity.
func NewMemoryWithSize(size uint64) *Memory {
	return &Memory{
		data:     make([]byte, size),
		versions: make([]uint64, size),
	}
}

// Capacity returns the number of addressable bytes.
func (m *Memory) Capacity() uint64 {
	return uint64(len(m.data))
}

// check verifies that [addr, addr+n) lies within the memory.
func (m *Memory) check(addr, n uint64) error {
	capacity := m.Capacity()
	if addr >= capacity {
		return &OutOfBoundsError{Addr: addr, Capacity: capacity}
	}
	if n > capacity-addr {
		return &OutOfBoundsError{Addr: capacity, Capacity: capacity}
	}
	return nil
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint64) (byte, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.data[addr], nil
}

// Write8 writes one byte and advances its version.
func (m *Memory) Write8(addr uint64, value byte) error {
	if err := m.check(addr, 1); err != nil {
		return err
	}
	m.write(addr, value)
	return nil
}

func (m *Memory) write(addr uint64, value byte) {
	m.data[addr] = value
	m.versions[addr]++
}

// Version returns the write counter of one byte.
func (m *Memory) Version(addr uint64) (uint64, error) {
	if err := m.check(addr, 1); err != nil {
		return 0, err
	}
	return m.versions[addr], nil
}

// readLE reads n bytes little-endian. The range is checked as a whole.
func (m *Memory) readLE(addr, n uint64) (uint64, error) {
	if err := m.check(addr, n); err != nil {
		return 0, err
	}
	var value uint64
	for i := uint64(0); i < n; i++ {
		value |= uint64(m.data[addr+i]) << (8 * i)
	}
	return value, nil
}

// writeLE writes the low n bytes of value little-endian, one byte at a time.
// Nothing is written if any byte of the range is out of bounds.
func (m *Memory) writeLE(addr, n, value uint64) error {
	if err := m.check(addr, n); err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		m.write(addr+i, byte(value>>(8*i)))
	}
	return nil
}

// Read16 reads a little-endian 16-bit value.
func (m *Memory) Read16(addr uint64) (uint16, error) {
	v, err := m.readLE(addr, 2)
	return uint16(v), err
}

// Read32 reads a little-endian 32-bit value.
func (m *Memory) Read32(addr uint64) (uint32, error) {
	v, err := m.readLE(addr, 4)
	return uint32(v), err
}

// Read64 reads a little-endian 64-bit value.
func (m *Memory) Read64(addr uint64) (uint64, error) {
	return m.readLE(addr, 8)
}

// Write16 writes a little-endian 16-bit value.
func (m *Memory) Write16(addr uint64, value uint16) error {
	return m.writeLE(addr, 2, uint64(value))
}

// Write32 writes a little-endian 32-bit value.
func (m *Memory) Write32(addr uint64, value uint32) error {
	return m.writeLE(addr, 4, uint64(value))
}

// Write64 writes a little-endian 64-bit value to addr..addr+7.
func (m *Memory) Write64(addr uint64, value uint64) error {
	return m.writeLE(addr, 8, value)
}

// LoadProgram writes an image at ascending addresses starting at base.
func (m *Memory) LoadProgram(base uint64, image []byte) error {
	if len(image) == 0 {
		return nil
	}
	if err := m.check(base, uint64(len(image))); err != nil {
		return err
	}
	for i, b := range image {
		m.write(base+uint64(i), b)
	}
	return nil
}

// ReadRange returns a copy of n bytes starting at addr.
func (m *Memory) ReadRange(addr, n uint64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if err := m.check(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.data[addr:addr+n])
	return out, nil
}
