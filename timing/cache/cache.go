// Package cache provides level-1 cache timing models using Akita cache
// components.
//
// The caches only track tags and dirty state. Data always lives in the
// emulator's memory, so a cache decides how long an access takes but never
// what it returns.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// HitLatency in cycles
	HitLatency uint64
	// MissLatency in cycles (includes memory access time)
	MissLatency uint64
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether every line touched by the access was present.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Lines is the number of cache lines the access touched.
	Lines int
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the address of the last evicted block (if Evicted is true).
	EvictedAddr uint64
}

// StoreForwardLatency is the extra latency (in cycles) when a load reads the
// address written by the immediately preceding store.
const StoreForwardLatency uint64 = 1

// Cache represents an L1 cache using Akita cache components.
type Cache struct {
	// Configuration
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	// Statistics
	stats Statistics

	// Store buffer tracking for store-to-load forwarding detection.
	recentStoreAddr  uint64
	recentStoreValid bool
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads         uint64
	Writes        uint64
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	Writebacks    uint64
	Invalidations uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 before any access.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New creates a new cache with the given configuration.
func New(config Config) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockAddr(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

// Access models a read or write of size bytes starting at addr.
// Every line in the range is looked up; missing lines are allocated, so
// writes use a write-allocate policy. The access hits only if every line
// hit, and its latency is that of the slowest line.
func (c *Cache) Access(addr uint64, size int, isWrite bool) AccessResult {
	if isWrite {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	if size < 1 {
		size = 1
	}

	result := AccessResult{Hit: true, Latency: c.config.HitLatency}

	first := c.blockAddr(addr)
	last := c.blockAddr(addr + uint64(size) - 1)
	for block := first; ; block += uint64(c.config.BlockSize) {
		result.Lines++
		if !c.accessLine(block, isWrite, &result) {
			result.Hit = false
			result.Latency = c.config.MissLatency
		}
		if block >= last {
			break
		}
	}

	if isWrite {
		c.recentStoreAddr = addr
		c.recentStoreValid = true
	} else if c.recentStoreValid && c.recentStoreAddr == addr {
		result.Latency += StoreForwardLatency
		c.recentStoreValid = false
	}

	return result
}

// accessLine looks up one block-aligned address and allocates it on a miss.
// It reports whether the line was present.
func (c *Cache) accessLine(blockAddr uint64, isWrite bool, result *AccessResult) bool {
	block := c.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block) // Update LRU
		if isWrite {
			block.IsDirty = true
		}
		return true
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return false
	}

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	// Tag stores the block-aligned address
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.directory.Visit(victim)

	return false
}

// Contains reports whether the line holding addr is present.
func (c *Cache) Contains(addr uint64) bool {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	return block != nil && block.IsValid
}

// Invalidate marks the cache line holding addr as invalid.
func (c *Cache) Invalidate(addr uint64) {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block != nil && block.IsValid {
		block.IsValid = false
		block.IsDirty = false
		c.stats.Invalidations++
	}
}

// InvalidateRange invalidates every line overlapping [start, end).
func (c *Cache) InvalidateRange(start, end uint64) {
	if end <= start {
		return
	}
	for block := c.blockAddr(start); block < end; block += uint64(c.config.BlockSize) {
		c.Invalidate(block)
	}
}

// Flush counts writebacks for all dirty blocks and invalidates every line.
func (c *Cache) Flush() {
	sets := c.directory.GetSets()
	for _, set := range sets {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
	c.recentStoreValid = false
}

// Reset invalidates all cache lines without writeback and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
	c.recentStoreValid = false
	c.recentStoreAddr = 0
}
