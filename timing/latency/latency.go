// Package latency provides instruction timing models for cycle-approximate
// simulation.
//
// The latency values can be configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/bvm/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction. Cache, decode and branch penalties are not included.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpLESS, insts.OpLOADIMM:
		return t.config.ALULatency

	case insts.OpMUL:
		return t.config.MultiplyLatency

	case insts.OpDIV:
		return t.config.DivideLatency

	case insts.OpJMP, insts.OpCondJMP:
		return t.config.BranchLatency

	case insts.OpPUSH, insts.OpPOP:
		return t.config.StackLatency

	case insts.OpHALT:
		return t.config.HaltLatency

	default:
		switch inst.Format {
		case insts.FormatLoad:
			return t.config.LoadLatency
		case insts.FormatStore:
			return t.config.StoreLatency
		}
		return 1
	}
}

// IsMemoryOp returns true if the instruction accesses data memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpPUSH, insts.OpPOP:
		return true
	}
	return inst.Format == insts.FormatLoad || inst.Format == insts.FormatStore
}

// IsBranchOp returns true if the instruction is a branch operation.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Format == insts.FormatBranch
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
