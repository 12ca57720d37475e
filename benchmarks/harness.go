package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sarchlab/bvm/emu"
	"github.com/sarchlab/bvm/insts"
	"github.com/sarchlab/bvm/loader"
	"github.com/sarchlab/bvm/timing/core"
	"github.com/sarchlab/bvm/timing/latency"
)

// BenchmarkResult holds the results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// Decoded-instruction cache statistics (if the cache is enabled)
	DecodeHits   uint64 `json:"decode_hits,omitempty"`
	DecodeMisses uint64 `json:"decode_misses,omitempty"`
	StaleDecodes uint64 `json:"stale_decodes,omitempty"`

	// SimulatedCycles is the total cycle count from the timing model
	SimulatedCycles uint64 `json:"simulated_cycles,omitempty"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi,omitempty"`

	// Stall breakdown from the timing model
	FetchStalls     uint64 `json:"fetch_stalls,omitempty"`
	MemoryStalls    uint64 `json:"memory_stalls,omitempty"`
	DecodeStalls    uint64 `json:"decode_stalls,omitempty"`
	BranchPenalties uint64 `json:"branch_penalties,omitempty"`

	// L1I/L1D statistics from the timing model
	L1IHits          uint64 `json:"l1i_hits,omitempty"`
	L1IMisses        uint64 `json:"l1i_misses,omitempty"`
	L1IInvalidations uint64 `json:"l1i_invalidations,omitempty"`
	L1DHits          uint64 `json:"l1d_hits,omitempty"`
	L1DMisses        uint64 `json:"l1d_misses,omitempty"`

	// Passed is true if the run ended in HALT with the expected state
	Passed bool `json:"passed"`

	// Error describes the failure when Passed is false
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Source is the program in assembler syntax
	Source string

	// Registers holds initial register values
	Registers map[uint8]uint64

	// ExpectedRegisters holds register values required after HALT
	ExpectedRegisters map[uint8]uint64

	// ExpectedMemory holds bytes required after HALT, keyed by the label
	// they start at
	ExpectedMemory map[string][]byte
}

// Verify checks the final state of e against the expectations. Labels
// resolve ExpectedMemory.
func (b Benchmark) Verify(e *emu.Emulator, labels map[string]uint64) error {
	regs := make([]int, 0, len(b.ExpectedRegisters))
	for r := range b.ExpectedRegisters {
		regs = append(regs, int(r))
	}
	sort.Ints(regs)

	for _, r := range regs {
		want := b.ExpectedRegisters[uint8(r)]
		if got := e.RegFile().ReadReg(uint8(r)); got != want {
			return fmt.Errorf("%s = %d, expected %d", insts.RegName(uint8(r)), got, want)
		}
	}

	names := make([]string, 0, len(b.ExpectedMemory))
	for name := range b.ExpectedMemory {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		want := b.ExpectedMemory[name]
		addr, ok := labels[name]
		if !ok {
			return fmt.Errorf("undefined label %q", name)
		}
		got, err := e.Memory().ReadRange(addr, uint64(len(want)))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		for i := range want {
			if got[i] != want[i] {
				return fmt.Errorf("%s+%d = %d, expected %d", name, i, got[i], want[i])
			}
		}
	}

	return nil
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// EnableICache enables the decoded-instruction cache
	EnableICache bool

	// EnableTiming runs the benchmarks under the timing model
	EnableTiming bool

	// Timing is the timing configuration; nil selects the defaults
	Timing *latency.TimingConfig

	// MaxInstructions bounds every run (0 means no limit)
	MaxInstructions uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnableICache:    true,
		EnableTiming:    true,
		MaxInstructions: 10_000_000,
		Output:          os.Stdout,
		Verbose:         false,
	}
}

// Harness runs benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// Config returns the harness configuration.
func (h *Harness) Config() HarnessConfig {
	return h.config
}

// Benchmarks returns the benchmarks added so far.
func (h *Harness) Benchmarks() []Benchmark {
	return h.benchmarks
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		results = append(results, h.Run(bench))
	}

	return results
}

// Run executes a single benchmark on a fresh emulator.
func (h *Harness) Run(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	prog, err := loader.LoadSource([]byte(bench.Source))
	if err != nil {
		result.Error = fmt.Sprintf("failed to assemble: %v", err)
		return result
	}

	opts := []emu.EmulatorOption{
		emu.WithInstructionCache(h.config.EnableICache),
		emu.WithMaxInstructions(h.config.MaxInstructions),
	}
	for reg, value := range bench.Registers {
		opts = append(opts, emu.WithRegister(reg, value))
	}

	e := emu.NewEmulator(opts...)
	if err := prog.Apply(e); err != nil {
		result.Error = err.Error()
		return result
	}

	var c *core.Core
	start := time.Now()
	if h.config.EnableTiming {
		c = core.NewCore(e, h.config.Timing)
		err = c.Run()
	} else {
		err = e.Run()
	}
	result.WallTime = time.Since(start)

	result.InstructionsRetired = e.InstructionCount()
	if e.InstructionCacheEnabled() {
		icStats := e.InstructionCache().Stats()
		result.DecodeHits = icStats.Hits
		result.DecodeMisses = icStats.Misses
		result.StaleDecodes = icStats.Stale
	}

	if c != nil {
		stats := c.Stats()
		result.SimulatedCycles = stats.Cycles
		result.CPI = stats.CPI()
		result.FetchStalls = stats.FetchStalls
		result.MemoryStalls = stats.MemoryStalls
		result.DecodeStalls = stats.DecodeStalls
		result.BranchPenalties = stats.BranchPenalties

		l1i := c.L1I().Stats()
		result.L1IHits = l1i.Hits
		result.L1IMisses = l1i.Misses
		result.L1IInvalidations = l1i.Invalidations

		l1d := c.L1D().Stats()
		result.L1DHits = l1d.Hits
		result.L1DMisses = l1d.Misses
	}

	if err == nil {
		err = bench.Verify(e, prog.Labels)
	}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Passed = true
	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== BVM Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL: " + r.Error
		}

		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Status: %s\n", status)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)

		if r.DecodeHits > 0 || r.DecodeMisses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Decode Cache ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.DecodeHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.DecodeMisses)
			_, _ = fmt.Fprintf(h.config.Output, "  Stale:  %d\n", r.StaleDecodes)
		}

		if r.SimulatedCycles > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
			_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
			_, _ = fmt.Fprintf(h.config.Output, "  Fetch Stalls:         %d\n", r.FetchStalls)
			_, _ = fmt.Fprintf(h.config.Output, "  Memory Stalls:        %d\n", r.MemoryStalls)
			_, _ = fmt.Fprintf(h.config.Output, "  Decode Stalls:        %d\n", r.DecodeStalls)
			_, _ = fmt.Fprintf(h.config.Output, "  Branch Penalties:     %d\n", r.BranchPenalties)

			if h.config.Verbose {
				_, _ = fmt.Fprintln(h.config.Output, "  --- L1I ---")
				_, _ = fmt.Fprintf(h.config.Output, "  Hits:          %d\n", r.L1IHits)
				_, _ = fmt.Fprintf(h.config.Output, "  Misses:        %d\n", r.L1IMisses)
				_, _ = fmt.Fprintf(h.config.Output, "  Invalidations: %d\n", r.L1IInvalidations)
				_, _ = fmt.Fprintln(h.config.Output, "  --- L1D ---")
				_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.L1DHits)
				_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.L1DMisses)
			}
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,instructions,decode_hits,decode_misses,stale_decodes,cycles,cpi,fetch_stalls,mem_stalls,decode_stalls,branch_penalties,l1i_hits,l1i_misses,l1d_hits,l1d_misses,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.InstructionsRetired,
			r.DecodeHits,
			r.DecodeMisses,
			r.StaleDecodes,
			r.SimulatedCycles,
			r.CPI,
			r.FetchStalls,
			r.MemoryStalls,
			r.DecodeStalls,
			r.BranchPenalties,
			r.L1IHits,
			r.L1IMisses,
			r.L1DHits,
			r.L1DMisses,
			r.Passed,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	ICacheEnabled bool `json:"icache_enabled"`
	TimingEnabled bool `json:"timing_enabled"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Passed is the number of benchmarks that passed
	Passed int `json:"passed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize computes aggregate statistics over results.
func Summarize(results []BenchmarkResult) ReportSummary {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		if r.Passed {
			summary.Passed++
		}
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
	}

	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	return summary
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config: BenchmarkConfig{
				ICacheEnabled: h.config.EnableICache,
				TimingEnabled: h.config.EnableTiming,
			},
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
