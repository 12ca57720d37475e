// Package core provides the cycle-approximate CPU core model.
// It wraps a functional emulator and charges cycles for every instruction it
// retires: execution latency, instruction fetch through L1I, decode when the
// decoded-instruction cache missed, data access through L1D and redirect
// penalties for taken branches.
package core

import (
	"context"

	"github.com/sarchlab/bvm/emu"
	"github.com/sarchlab/bvm/timing/cache"
	"github.com/sarchlab/bvm/timing/latency"
)

// ctxCheckInterval is how many instructions RunContext retires between
// context checks.
const ctxCheckInterval = 1024

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// FetchStalls is the number of cycles lost to L1I misses.
	FetchStalls uint64
	// MemoryStalls is the number of cycles lost to L1D misses.
	MemoryStalls uint64
	// DecodeStalls is the number of cycles spent decoding instructions
	// the decoded-instruction cache could not supply.
	DecodeStalls uint64
	// BranchPenalties is the number of cycles lost to taken branches.
	BranchPenalties uint64
	// TakenBranches counts JMPs and taken COND_JMPs.
	TakenBranches uint64
	// MemoryOps counts instructions that accessed data memory.
	MemoryOps uint64
}

// CPI returns cycles per instruction, or 0 before any instruction retired.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Core represents a cycle-approximate CPU core model.
type Core struct {
	emulator *emu.Emulator
	latency  *latency.Table
	l1i      *cache.Cache
	l1d      *cache.Cache

	stats Stats
}

// NewCore creates a new Core around an emulator. A nil config selects
// latency.DefaultTimingConfig.
func NewCore(e *emu.Emulator, config *latency.TimingConfig) *Core {
	if config == nil {
		config = latency.DefaultTimingConfig()
	}

	return &Core{
		emulator: e,
		latency:  latency.NewTableWithConfig(config),
		l1i:      cache.New(l1Config(config, config.L1ISize)),
		l1d:      cache.New(l1Config(config, config.L1DSize)),
	}
}

func l1Config(config *latency.TimingConfig, size int) cache.Config {
	return cache.Config{
		Size:          size,
		Associativity: config.L1Associativity,
		BlockSize:     config.L1BlockSize,
		HitLatency:    config.L1HitLatency,
		MissLatency:   config.MemoryLatency,
	}
}

// Emulator returns the wrapped emulator.
func (c *Core) Emulator() *emu.Emulator {
	return c.emulator
}

// L1I returns the instruction cache model.
func (c *Core) L1I() *cache.Cache {
	return c.l1i
}

// L1D returns the data cache model.
func (c *Core) L1D() *cache.Cache {
	return c.l1d
}

// SetPC sets the instruction pointer.
func (c *Core) SetPC(pc uint64) {
	c.emulator.RegFile().SetIP(pc)
}

// Halted returns true if the core has executed a HALT.
func (c *Core) Halted() bool {
	return c.emulator.Halted()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// CPI returns the cycles per instruction so far.
func (c *Core) CPI() float64 {
	return c.stats.CPI()
}

// Step retires one instruction and charges its cycles. Failed steps are not
// charged.
func (c *Core) Step() emu.StepResult {
	result := c.emulator.Step()
	if result.Err != nil || result.Inst == nil {
		return result
	}

	inst := result.Inst
	config := c.latency.Config()
	cycles := c.latency.GetLatency(inst)

	fetch := c.l1i.Access(inst.Addr, int(inst.Len), false)
	cycles += fetch.Latency
	if !fetch.Hit {
		c.stats.FetchStalls += fetch.Latency - config.L1HitLatency
	}

	if !result.CacheHit {
		cycles += config.DecodePenalty
		c.stats.DecodeStalls += config.DecodePenalty
	}

	if access := result.Access; access.Size > 0 {
		c.stats.MemoryOps++

		data := c.l1d.Access(access.Addr, access.Size, access.Write)
		cycles += data.Latency
		if !data.Hit {
			c.stats.MemoryStalls += data.Latency - config.L1HitLatency
		}

		// stores into code must refetch
		if access.Write {
			c.l1i.InvalidateRange(access.Addr, access.Addr+uint64(access.Size))
		}
	}

	if result.Taken {
		cycles += config.BranchTakenPenalty
		c.stats.BranchPenalties += config.BranchTakenPenalty
		c.stats.TakenBranches++
	}

	c.stats.Cycles += cycles
	c.stats.Instructions++

	return result
}

// Run executes the core until it halts or faults.
func (c *Core) Run() error {
	for {
		result := c.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Halted {
			return nil
		}
	}
}

// RunContext is Run with cancellation, checked between instructions.
func (c *Core) RunContext(ctx context.Context) error {
	for n := uint64(0); ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		result := c.Step()
		if result.Err != nil {
			return result.Err
		}
		if result.Halted {
			return nil
		}
	}
}

// RunCycles executes instructions until at least the given number of
// additional cycles has elapsed.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) (bool, error) {
	target := c.stats.Cycles + cycles
	for c.stats.Cycles < target {
		result := c.Step()
		if result.Err != nil {
			return false, result.Err
		}
		if result.Halted {
			return false, nil
		}
	}
	return true, nil
}

// Reset clears statistics and both cache models. The emulator is not
// touched.
func (c *Core) Reset() {
	c.stats = Stats{}
	c.l1i.Reset()
	c.l1d.Reset()
}
