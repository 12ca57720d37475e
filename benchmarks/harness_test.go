package benchmarks_test

import (
	"bytes"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bvm/benchmarks"
	"github.com/sarchlab/bvm/emu"
)

func find(results []benchmarks.BenchmarkResult, name string) benchmarks.BenchmarkResult {
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	Fail("no result named " + name)
	return benchmarks.BenchmarkResult{}
}

var _ = Describe("Harness", func() {
	var (
		out    *bytes.Buffer
		config benchmarks.HarnessConfig
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		config = benchmarks.DefaultConfig()
		config.Output = out
	})

	DescribeTable("every workload passes",
		func(icache, timing bool) {
			config.EnableICache = icache
			config.EnableTiming = timing
			harness := benchmarks.NewHarness(config)
			harness.AddBenchmarks(benchmarks.GetWorkloads())

			results := harness.RunAll()

			Expect(results).To(HaveLen(len(benchmarks.GetWorkloads())))
			for _, r := range results {
				Expect(r.Passed).To(BeTrue(), "%s: %s", r.Name, r.Error)
				Expect(r.InstructionsRetired).To(BeNumerically(">", 0))
				if timing {
					Expect(r.SimulatedCycles).To(BeNumerically(">=", r.InstructionsRetired))
				} else {
					Expect(r.SimulatedCycles).To(BeZero())
				}
			}
		},
		Entry("functional, decoded-instruction cache", true, false),
		Entry("functional, no decoded-instruction cache", false, false),
		Entry("timing, decoded-instruction cache", true, true),
		Entry("timing, no decoded-instruction cache", false, true),
	)

	It("should count the counting loop exactly", func() {
		harness := benchmarks.NewHarness(config)
		harness.AddBenchmarks(benchmarks.GetCoreWorkloads())

		r := find(harness.RunAll(), "counting_loop")
		Expect(r.InstructionsRetired).To(Equal(uint64(200*5 + 1)))
		Expect(r.DecodeMisses).To(Equal(uint64(6)))
		Expect(r.DecodeHits).To(Equal(uint64(200*5 + 1 - 6)))
		Expect(r.StaleDecodes).To(BeZero())
	})

	It("should redecode the patched instruction on every iteration", func() {
		harness := benchmarks.NewHarness(config)
		harness.AddBenchmarks(benchmarks.GetCoreWorkloads())

		r := find(harness.RunAll(), "self_modifying_loop")
		Expect(r.Passed).To(BeTrue(), r.Error)
		Expect(r.StaleDecodes).To(Equal(uint64(19)))
		Expect(r.L1IInvalidations).To(BeNumerically(">=", 20))
	})

	It("should report a wrong final register", func() {
		harness := benchmarks.NewHarness(config)
		r := harness.Run(benchmarks.Benchmark{
			Name:              "wrong",
			Source:            "ldi x, 3\nhalt\n",
			ExpectedRegisters: map[uint8]uint64{emu.RegX: 4},
		})

		Expect(r.Passed).To(BeFalse())
		Expect(r.Error).To(ContainSubstring("expected 4"))
	})

	It("should report wrong memory contents", func() {
		harness := benchmarks.NewHarness(config)
		r := harness.Run(benchmarks.Benchmark{
			Name:           "wrong_memory",
			Source:         "halt\ndata: .byte 1, 2\n",
			ExpectedMemory: map[string][]byte{"data": {1, 3}},
		})

		Expect(r.Passed).To(BeFalse())
		Expect(r.Error).To(ContainSubstring("data+1"))
	})

	It("should report an assembly error", func() {
		harness := benchmarks.NewHarness(config)
		r := harness.Run(benchmarks.Benchmark{Name: "bad", Source: "frob x\n"})

		Expect(r.Passed).To(BeFalse())
		Expect(r.Error).To(ContainSubstring("failed to assemble"))
	})

	It("should stop a runaway program at the instruction budget", func() {
		config.MaxInstructions = 100
		harness := benchmarks.NewHarness(config)
		r := harness.Run(benchmarks.Benchmark{Name: "spin", Source: "loop: jmp loop\n"})

		Expect(r.Passed).To(BeFalse())
		Expect(r.InstructionsRetired).To(Equal(uint64(100)))
		Expect(r.Error).To(ContainSubstring(emu.ErrMaxInstructions.Error()))
	})

	Describe("Output", func() {
		var results []benchmarks.BenchmarkResult
		var harness *benchmarks.Harness

		BeforeEach(func() {
			harness = benchmarks.NewHarness(config)
			harness.AddBenchmarks(benchmarks.GetCoreWorkloads())
			results = harness.RunAll()
		})

		It("should print one CSV row per result", func() {
			harness.PrintCSV(results)

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(4))
			Expect(lines[0]).To(HavePrefix("name,instructions,"))
			Expect(lines[1]).To(HavePrefix("counting_loop,1001,"))
			Expect(lines[1]).To(HaveSuffix(",true"))
		})

		It("should print a readable report", func() {
			harness.PrintResults(results)

			Expect(out.String()).To(ContainSubstring("Benchmark: stack_churn"))
			Expect(out.String()).To(ContainSubstring("Status: PASS"))
			Expect(out.String()).To(ContainSubstring("Simulated Cycles:"))
		})

		It("should print a JSON report with a summary", func() {
			Expect(harness.PrintJSON(results)).To(Succeed())

			var report benchmarks.BenchmarkReport
			Expect(json.Unmarshal(out.Bytes(), &report)).To(Succeed())
			Expect(report.Results).To(HaveLen(3))
			Expect(report.Summary.TotalBenchmarks).To(Equal(3))
			Expect(report.Summary.Passed).To(Equal(3))
			Expect(report.Summary.AverageCPI).To(BeNumerically(">=", 1))
			Expect(report.Metadata.Config.TimingEnabled).To(BeTrue())
		})
	})
})
