// Package main provides a profiling wrapper for bvm to identify performance bottlenecks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/bvm/emu"
	"github.com/sarchlab/bvm/loader"
	"github.com/sarchlab/bvm/timing/core"
)

var (
	timing      = flag.Bool("timing", false, "Enable timing simulation mode")
	noICache    = flag.Bool("no-icache", false, "Disable the decoded-instruction cache")
	cpuProfile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile  = flag.String("memprofile", "", "write memory profile to file")
	duration    = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	instruction = flag.Uint64("max-instr", 1000000, "max instructions to execute (0 = unlimited)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: profile [options] <program.s|program.bin>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	os.Exit(profile(flag.Arg(0)))
}

func profile(programPath string) int {
	// Start CPU profiling if requested
	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating CPU profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		return 1
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: 0x%X\n", prog.EntryPoint)

	e := emu.NewEmulator(
		emu.WithInstructionCache(!*noICache),
		emu.WithMaxInstructions(*instruction),
	)
	if err := prog.Apply(e); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()

	var c *core.Core
	if *timing {
		c = core.NewCore(e, nil)
		err = c.RunContext(ctx)
	} else {
		err = e.RunContext(ctx)
	}

	elapsed := time.Since(start)

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	status := "halted"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status = fmt.Sprintf("stopped after %v", *duration)
	case errors.Is(err, emu.ErrMaxInstructions):
		status = "instruction budget reached"
	case err != nil:
		status = fmt.Sprintf("fault: %v", err)
	}

	instrCount := e.InstructionCount()

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Instructions executed: %d\n", instrCount)
	if c != nil {
		fmt.Printf("Simulated cycles: %d\n", c.Stats().Cycles)
	}
	if e.InstructionCacheEnabled() {
		stats := e.InstructionCache().Stats()
		fmt.Printf("Decode cache: %d hits, %d misses, %d stale\n", stats.Hits, stats.Misses, stats.Stale)
	}
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}

	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, emu.ErrMaxInstructions) {
		return 1
	}
	return 0
}
