// Command benchmark runs the bvm workload harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results as a JSON report
//	-no-icache  Only run with the decoded-instruction cache disabled
//	-icache     Only run with the decoded-instruction cache enabled
//	-no-timing  Run functionally, without the timing model
//	-config     Timing configuration file
//	-quick      Run the core workloads only
//
// By default every workload runs twice, with and without the
// decoded-instruction cache, so the two result sets can be compared.
//
// Example:
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/sarchlab/bvm/benchmarks"
	"github.com/sarchlab/bvm/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results as a JSON report")
	noICache := flag.Bool("no-icache", false, "Only run with the decoded-instruction cache disabled")
	onlyICache := flag.Bool("icache", false, "Only run with the decoded-instruction cache enabled")
	noTiming := flag.Bool("no-timing", false, "Run functionally, without the timing model")
	configPath := flag.String("config", "", "Timing configuration file (YAML or JSON)")
	quick := flag.Bool("quick", false, "Run the core workloads only")
	flag.Parse()

	var timingConfig *latency.TimingConfig
	if *configPath != "" {
		var err error
		timingConfig, err = latency.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading timing config: %v\n", err)
			os.Exit(1)
		}
	}

	workloads := benchmarks.GetWorkloads()
	if *quick {
		workloads = benchmarks.GetCoreWorkloads()
	}

	modes := []bool{true, false}
	switch {
	case *noICache && *onlyICache:
		fmt.Fprintln(os.Stderr, "-icache and -no-icache are mutually exclusive")
		os.Exit(2)
	case *noICache:
		modes = []bool{false}
	case *onlyICache:
		modes = []bool{true}
	}

	humanReadable := !*csvOutput && !*jsonOutput
	if humanReadable {
		fmt.Println("BVM Benchmark Harness")
		fmt.Println("=====================")
		fmt.Printf("Timing: %v\n", !*noTiming)
		fmt.Println("")
	}

	bar := progressbar.NewOptions(len(workloads)*len(modes),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("running"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var harness *benchmarks.Harness
	var all []benchmarks.BenchmarkResult
	failed := 0

	for _, icache := range modes {
		config := benchmarks.DefaultConfig()
		config.EnableICache = icache
		config.EnableTiming = !*noTiming
		config.Timing = timingConfig
		config.Output = os.Stdout

		harness = benchmarks.NewHarness(config)

		results := make([]benchmarks.BenchmarkResult, 0, len(workloads))
		for _, w := range workloads {
			bar.Describe(w.Name)
			r := harness.Run(w)
			if !r.Passed {
				failed++
			}
			results = append(results, r)
			_ = bar.Add(1)
		}

		if humanReadable {
			fmt.Printf("--- decoded-instruction cache: %v ---\n\n", icache)
			harness.PrintResults(results)
		}
		all = append(all, results...)
	}
	_ = bar.Finish()

	switch {
	case *csvOutput:
		harness.PrintCSV(all)
	case *jsonOutput:
		if err := harness.PrintJSON(all); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			os.Exit(1)
		}
	default:
		summary := benchmarks.Summarize(all)
		fmt.Println("=== Summary ===")
		fmt.Printf("Passed: %d/%d\n", summary.Passed, summary.TotalBenchmarks)
		fmt.Printf("Instructions: %d\n", summary.TotalInstructions)
		if summary.TotalCycles > 0 {
			fmt.Printf("Average CPI: %.3f\n", summary.AverageCPI)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
