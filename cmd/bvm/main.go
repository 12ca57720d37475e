// Package main provides the entry point for bvm.
// bvm runs bytecode programs functionally or under the cycle-approximate
// timing model and reports the final machine state.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/k0kubun/pp/v3"
	"github.com/logrusorgru/aurora/v4"

	"github.com/sarchlab/bvm/asm"
	"github.com/sarchlab/bvm/emu"
	"github.com/sarchlab/bvm/insts"
	"github.com/sarchlab/bvm/loader"
	"github.com/sarchlab/bvm/timing/core"
	"github.com/sarchlab/bvm/timing/latency"
)

// registerValues collects repeated -reg NAME=VALUE flags.
type registerValues map[uint8]uint64

func (r registerValues) String() string {
	regs := make([]int, 0, len(r))
	for reg := range r {
		regs = append(regs, int(reg))
	}
	sort.Ints(regs)

	parts := make([]string, 0, len(regs))
	for _, reg := range regs {
		parts = append(parts, fmt.Sprintf("%s=%d", insts.RegName(uint8(reg)), r[uint8(reg)]))
	}
	return strings.Join(parts, ",")
}

func (r registerValues) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return fmt.Errorf("want NAME=VALUE, got %q", s)
	}

	reg, err := asm.ParseRegister(name)
	if err != nil {
		n, numErr := strconv.ParseUint(name, 10, 8)
		if numErr != nil || n >= insts.NumRegisters {
			return err
		}
		reg = uint8(n)
	}

	v, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	r[reg] = v
	return nil
}

// machineState is the -dump view of an emulator.
type machineState struct {
	Registers    map[string]uint64
	Cmp          bool
	Halted       bool
	Fault        string
	Instructions uint64
	DecodeCache  emu.ICacheStats
}

func stateOf(e *emu.Emulator) machineState {
	s := machineState{
		Registers:    make(map[string]uint64, emu.NumRegisters),
		Cmp:          e.RegFile().Cmp,
		Halted:       e.Halted(),
		Instructions: e.InstructionCount(),
		DecodeCache:  e.InstructionCache().Stats(),
	}
	for r := uint8(0); r < emu.NumRegisters; r++ {
		s.Registers[insts.RegName(r)] = e.RegFile().ReadReg(r)
	}
	if err := e.Fault(); err != nil {
		s.Fault = err.Error()
	}
	return s
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns the process exit code: 0 after a
// HALT, 1 on a fault or setup error and 2 on bad usage.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bvm", flag.ContinueOnError)
	fs.SetOutput(stderr)

	timing := fs.Bool("timing", false, "Enable timing simulation mode")
	configPath := fs.String("config", "", "Path to timing configuration YAML or JSON file")
	maxInstr := fs.Uint64("max", 0, "Max instructions to execute (0 = unlimited)")
	noICache := fs.Bool("no-icache", false, "Disable the decoded-instruction cache")
	memSize := fs.Uint64("mem", emu.DefaultMemorySize, "Memory size in bytes")
	verbose := fs.Bool("v", false, "Verbose output with an instruction trace on stderr")
	dump := fs.Bool("dump", false, "Dump the final machine state")
	snapshotPath := fs.String("snapshot", "", "Write the final machine state to this file (CBOR)")
	restorePath := fs.String("restore", "", "Resume from a snapshot file instead of the program's initial state")
	color := fs.Bool("color", false, "Colorize the output")
	regs := registerValues{}
	fs.Var(regs, "reg", "Set a register before running, NAME=VALUE (repeatable)")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: bvm [options] <program.s|program.bin>\n")
		_, _ = fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	au := aurora.New(aurora.WithColors(*color))
	fail := func(format string, a ...any) int {
		_, _ = fmt.Fprintf(stderr, "%s %s\n", au.Red("Error:"), fmt.Sprintf(format, a...))
		return 1
	}

	programPath := fs.Arg(0)

	prog, err := loader.Load(programPath)
	if err != nil {
		return fail("loading program: %v", err)
	}

	if *verbose {
		_, _ = fmt.Fprintf(stdout, "Loaded: %s\n", programPath)
		_, _ = fmt.Fprintf(stdout, "Entry point: 0x%X\n", prog.EntryPoint)
		_, _ = fmt.Fprintf(stdout, "Image: %d bytes, %d labels\n", len(prog.Image), len(prog.Labels))
	}

	opts := []emu.EmulatorOption{
		emu.WithMemorySize(*memSize),
		emu.WithInstructionCache(!*noICache),
		emu.WithMaxInstructions(*maxInstr),
	}
	if *verbose {
		opts = append(opts, emu.WithTrace(stderr))
	}

	e := emu.NewEmulator(opts...)
	if err := prog.Apply(e); err != nil {
		return fail("%v", err)
	}
	for reg, value := range regs {
		e.RegFile().WriteReg(reg, value)
	}

	if *restorePath != "" {
		if err := restore(e, *restorePath); err != nil {
			return fail("%v", err)
		}
	}

	var c *core.Core
	if *timing {
		config := latency.DefaultTimingConfig()
		if *configPath != "" {
			config, err = latency.LoadConfig(*configPath)
			if err != nil {
				return fail("loading timing config: %v", err)
			}
		}
		c = core.NewCore(e, config)
		err = c.Run()
	} else {
		err = e.Run()
	}

	code := 0
	if err != nil {
		code = 1
		_, _ = fmt.Fprintf(stdout, "%s %v\n", au.Red("FAULT").Bold(), err)
	} else {
		_, _ = fmt.Fprintf(stdout, "%s at IP=0x%X\n", au.Green("HALT").Bold(), e.RegFile().IP())
	}
	_, _ = fmt.Fprintf(stdout, "Instructions executed: %d\n", e.InstructionCount())

	if c != nil {
		printTiming(stdout, au, c)
	}

	if *dump {
		printer := pp.New()
		printer.SetColoringEnabled(*color)
		_, _ = printer.Fprintln(stdout, stateOf(e))
	}

	if *snapshotPath != "" {
		if err := writeSnapshot(e, *snapshotPath); err != nil {
			return fail("%v", err)
		}
	}

	return code
}

func restore(e *emu.Emulator, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	s, err := emu.UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	if err := e.Restore(s); err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	return nil
}

func writeSnapshot(e *emu.Emulator, path string) error {
	data, err := emu.MarshalSnapshot(e.Snapshot())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// printTiming prints the cycle breakdown of a timing run.
func printTiming(w io.Writer, au *aurora.Aurora, c *core.Core) {
	stats := c.Stats()

	totalCycles := stats.Cycles
	if totalCycles == 0 {
		totalCycles = 1
	}
	stalls := stats.FetchStalls + stats.MemoryStalls + stats.DecodeStalls + stats.BranchPenalties
	execCycles := stats.Cycles - stalls
	percent := func(n uint64) float64 {
		return 100.0 * float64(n) / float64(totalCycles)
	}

	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "%s\n", au.Cyan("Timing"))
	_, _ = fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	_, _ = fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Breakdown:\n")
	_, _ = fmt.Fprintf(w, "  Execute:          %6d cycles (%5.1f%%)\n", execCycles, percent(execCycles))
	_, _ = fmt.Fprintf(w, "  Fetch stalls:     %6d cycles (%5.1f%%)\n", stats.FetchStalls, percent(stats.FetchStalls))
	_, _ = fmt.Fprintf(w, "  Decode stalls:    %6d cycles (%5.1f%%)\n", stats.DecodeStalls, percent(stats.DecodeStalls))
	_, _ = fmt.Fprintf(w, "  Memory stalls:    %6d cycles (%5.1f%%)\n", stats.MemoryStalls, percent(stats.MemoryStalls))
	_, _ = fmt.Fprintf(w, "  Branch penalties: %6d cycles (%5.1f%%)\n", stats.BranchPenalties, percent(stats.BranchPenalties))
	_, _ = fmt.Fprintf(w, "\n")
	_, _ = fmt.Fprintf(w, "Caches:\n")
	l1i, l1d := c.L1I().Stats(), c.L1D().Stats()
	_, _ = fmt.Fprintf(w, "  L1I: %d hits, %d misses, %d invalidations\n", l1i.Hits, l1i.Misses, l1i.Invalidations)
	_, _ = fmt.Fprintf(w, "  L1D: %d hits, %d misses\n", l1d.Hits, l1d.Misses)
}
