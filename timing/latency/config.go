package latency

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// TimingConfig holds latency values for different instruction classes and
// the geometry of the level-1 caches.
type TimingConfig struct {
	// ALULatency is the execution latency for ADD, SUB, LESS and LOAD_IMM.
	// Default: 1 cycle.
	ALULatency uint64 `yaml:"alu_latency"`

	// MultiplyLatency is the latency for MUL. Default: 3 cycles.
	MultiplyLatency uint64 `yaml:"multiply_latency"`

	// DivideLatency is the latency for DIV. Default: 12 cycles.
	DivideLatency uint64 `yaml:"divide_latency"`

	// LoadLatency is the execution latency of a load before the data
	// cache is consulted. Default: 1 cycle.
	LoadLatency uint64 `yaml:"load_latency"`

	// StoreLatency is the execution latency of a store before the data
	// cache is consulted. Default: 1 cycle.
	StoreLatency uint64 `yaml:"store_latency"`

	// BranchLatency is the base latency for JMP and COND_JMP.
	// Default: 1 cycle.
	BranchLatency uint64 `yaml:"branch_latency"`

	// BranchTakenPenalty is added when control flow is redirected.
	// Default: 2 cycles.
	BranchTakenPenalty uint64 `yaml:"branch_taken_penalty"`

	// StackLatency is the execution latency of PUSH and POP, which move a
	// whole register frame. Default: 4 cycles.
	StackLatency uint64 `yaml:"stack_latency"`

	// HaltLatency is the latency of HALT. Default: 1 cycle.
	HaltLatency uint64 `yaml:"halt_latency"`

	// DecodePenalty is charged when an instruction had to be decoded
	// because the decoded-instruction cache missed. Default: 2 cycles.
	DecodePenalty uint64 `yaml:"decode_penalty"`

	// L1HitLatency is the L1 instruction and data cache hit latency.
	// Default: 1 cycle.
	L1HitLatency uint64 `yaml:"l1_hit_latency"`

	// MemoryLatency is the latency of an L1 miss. Default: 40 cycles.
	MemoryLatency uint64 `yaml:"memory_latency"`

	// L1ISize and L1DSize are the cache capacities in bytes.
	// Defaults: 16 KiB and 32 KiB.
	L1ISize int `yaml:"l1i_size"`
	L1DSize int `yaml:"l1d_size"`

	// L1Associativity is the number of ways of both caches. Default: 4.
	L1Associativity int `yaml:"l1_associativity"`

	// L1BlockSize is the cache line size in bytes. Default: 64.
	L1BlockSize int `yaml:"l1_block_size"`
}

// DefaultTimingConfig returns a TimingConfig with default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:         1,
		MultiplyLatency:    3,
		DivideLatency:      12,
		LoadLatency:        1,
		StoreLatency:       1,
		BranchLatency:      1,
		BranchTakenPenalty: 2,
		StackLatency:       4,
		HaltLatency:        1,
		DecodePenalty:      2,
		L1HitLatency:       1,
		MemoryLatency:      40,
		L1ISize:            16 * 1024,
		L1DSize:            32 * 1024,
		L1Associativity:    4,
		L1BlockSize:        64,
	}
}

// LoadConfig loads a TimingConfig from a YAML file. JSON files are accepted
// as well. Fields missing from the file keep their default values; unknown
// fields are rejected.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := yaml.UnmarshalWithOptions(data, config, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a YAML file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that latencies are positive and that the cache geometry
// describes a whole number of sets.
func (c *TimingConfig) Validate() error {
	positive := []struct {
		name  string
		value uint64
	}{
		{"alu_latency", c.ALULatency},
		{"multiply_latency", c.MultiplyLatency},
		{"divide_latency", c.DivideLatency},
		{"load_latency", c.LoadLatency},
		{"store_latency", c.StoreLatency},
		{"branch_latency", c.BranchLatency},
		{"stack_latency", c.StackLatency},
		{"halt_latency", c.HaltLatency},
		{"l1_hit_latency", c.L1HitLatency},
	}
	for _, p := range positive {
		if p.value == 0 {
			return fmt.Errorf("%s must be > 0", p.name)
		}
	}

	if c.MemoryLatency < c.L1HitLatency {
		return errors.New("memory_latency must be >= l1_hit_latency")
	}

	if c.L1BlockSize <= 0 || c.L1BlockSize&(c.L1BlockSize-1) != 0 {
		return errors.New("l1_block_size must be a power of two")
	}
	if c.L1Associativity <= 0 {
		return errors.New("l1_associativity must be > 0")
	}
	way := c.L1Associativity * c.L1BlockSize
	if c.L1ISize < way || c.L1ISize%way != 0 {
		return fmt.Errorf("l1i_size must be a positive multiple of %d", way)
	}
	if c.L1DSize < way || c.L1DSize%way != 0 {
		return fmt.Errorf("l1d_size must be a positive multiple of %d", way)
	}

	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
