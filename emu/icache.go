package emu

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/bvm/insts"
)

// ICacheStats holds decoded-instruction cache statistics.
type ICacheStats struct {
	// Hits counts fetches served from a valid, current entry.
	Hits uint64
	// Misses counts fetches that had to decode, including stale ones.
	Misses uint64
	// Stale counts entries found valid whose bytes had been rewritten.
	Stale uint64
	// Invalidations counts entries marked invalid from outside.
	Invalidations uint64
}

type icacheEntry struct {
	inst  *insts.Instruction
	valid bool

	// versions holds the memory version of each byte of
	// [inst.Addr, inst.End()) at decode time.
	versions [insts.MaxLen]uint64
}

// InstructionCache caches decoded instructions by address.
//
// An entry is reused only while every byte it was decoded from still has the
// version recorded at decode time, so stores into code, including stores that
// only touch operand bytes, force a re-decode on the next fetch.
type InstructionCache struct {
	memory  *Memory
	decoder *insts.Decoder

	entries map[uint64]*icacheEntry

	// starts marks every address that has an entry.
	starts *bitset.BitSet

	stats ICacheStats
}

// NewInstructionCache creates an empty cache over memory.
func NewInstructionCache(memory *Memory, decoder *insts.Decoder) *InstructionCache {
	return &InstructionCache{
		memory:  memory,
		decoder: decoder,
		entries: make(map[uint64]*icacheEntry),
		starts:  bitset.New(uint(memory.Capacity())),
	}
}

// Fetch returns the instruction at addr and whether it came from the cache.
// Decode and memory errors are forwarded unchanged.
func (c *InstructionCache) Fetch(addr uint64) (*insts.Instruction, bool, error) {
	entry, ok := c.entries[addr]
	if ok && entry.valid {
		if c.current(entry) {
			c.stats.Hits++
			return entry.inst, true, nil
		}
		c.stats.Stale++
	}

	c.stats.Misses++
	inst, err := c.fill(addr)
	return inst, false, err
}

// current compares the versions of every byte of the entry's range with
// its snapshot.
func (c *InstructionCache) current(entry *icacheEntry) bool {
	for i := uint64(0); i < uint64(entry.inst.Len); i++ {
		v, err := c.memory.Version(entry.inst.Addr + i)
		if err != nil || v != entry.versions[i] {
			return false
		}
	}
	return true
}

// fill decodes addr and replaces its entry.
func (c *InstructionCache) fill(addr uint64) (*insts.Instruction, error) {
	inst, err := c.decoder.Decode(addr, c.memory)
	if err != nil {
		c.remove(addr)
		return nil, err
	}

	entry := &icacheEntry{inst: inst, valid: true}
	for i := uint64(0); i < uint64(inst.Len); i++ {
		// the decoder has just read every byte of the range
		entry.versions[i], _ = c.memory.Version(addr + i)
	}

	c.entries[addr] = entry
	c.starts.Set(uint(addr))

	return inst, nil
}

func (c *InstructionCache) remove(addr uint64) {
	if _, ok := c.entries[addr]; !ok {
		return
	}
	delete(c.entries, addr)
	c.starts.Clear(uint(addr))
}

// Invalidate marks the entry starting at addr invalid.
func (c *InstructionCache) Invalidate(addr uint64) {
	entry, ok := c.entries[addr]
	if ok && entry.valid {
		entry.valid = false
		c.stats.Invalidations++
	}
}

// InvalidateRange marks every entry whose byte range overlaps
// [start, end) invalid.
func (c *InstructionCache) InvalidateRange(start, end uint64) {
	if end <= start {
		return
	}

	// entries starting up to MaxLen-1 bytes before start can still
	// reach into the range
	lo := uint64(0)
	if start > insts.MaxLen-1 {
		lo = start - (insts.MaxLen - 1)
	}

	for a, ok := c.starts.NextSet(uint(lo)); ok && uint64(a) < end; a, ok = c.starts.NextSet(a + 1) {
		entry := c.entries[uint64(a)]
		if entry.valid && entry.inst.End() > start {
			entry.valid = false
			c.stats.Invalidations++
		}
	}
}

// Flush drops every entry. Statistics are kept.
func (c *InstructionCache) Flush() {
	c.entries = make(map[uint64]*icacheEntry)
	c.starts.ClearAll()
}

// Len returns the number of entries, valid or not.
func (c *InstructionCache) Len() int {
	return len(c.entries)
}

// Stats returns cache statistics.
func (c *InstructionCache) Stats() ICacheStats {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *InstructionCache) ResetStats() {
	c.stats = ICacheStats{}
}
