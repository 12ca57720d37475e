// Validate the decoded-instruction cache - measures decode cost with and without it
package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/sarchlab/bvm/asm"
	"github.com/sarchlab/bvm/emu"
	"github.com/sarchlab/bvm/insts"
)

const loop = `
loop:   add    x, y, x
        store8 x, a
        load8  a, b
        less   b, z
        jc     loop
        halt
`

type measurement struct {
	elapsed time.Duration
	mallocs uint64
	bytes   uint64
}

func measure(iterations int, fetch func()) measurement {
	// Warm up
	for i := 0; i < 1000; i++ {
		fetch()
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	for i := 0; i < iterations; i++ {
		fetch()
	}
	elapsed := time.Since(start)

	runtime.ReadMemStats(&m2)

	return measurement{
		elapsed: elapsed,
		mallocs: m2.Mallocs - m1.Mallocs,
		bytes:   m2.TotalAlloc - m1.TotalAlloc,
	}
}

func report(name string, m measurement, decodes int) {
	fmt.Printf("%s:\n", name)
	fmt.Printf("  Time elapsed: %v\n", m.elapsed)
	fmt.Printf("  Decodes per second: %.0f\n", float64(decodes)/m.elapsed.Seconds())
	fmt.Printf("  Allocations per decode: %.3f\n", float64(m.mallocs)/float64(decodes))
	fmt.Printf("  Bytes per decode: %.1f\n", float64(m.bytes)/float64(decodes))
}

func main() {
	obj, err := asm.AssembleString(loop)
	if err != nil {
		panic(err)
	}

	memory := emu.NewMemory()
	if err := memory.LoadProgram(0, obj.Image); err != nil {
		panic(err)
	}

	// Instruction addresses of the loop body
	var addrs []uint64
	decoder := insts.NewDecoder()
	for addr := uint64(0); addr < uint64(len(obj.Image)); {
		inst, err := decoder.Decode(addr, memory)
		if err != nil {
			panic(err)
		}
		addrs = append(addrs, addr)
		addr = inst.End()
	}

	iterations := 100000
	totalDecodes := iterations * len(addrs)

	uncached := measure(iterations, func() {
		for _, addr := range addrs {
			_, _ = decoder.Decode(addr, memory)
		}
	})

	icache := emu.NewInstructionCache(memory, decoder)
	cached := measure(iterations, func() {
		for _, addr := range addrs {
			_, _, _ = icache.Fetch(addr)
		}
	})

	fmt.Printf("Decoded-Instruction Cache Validation Results:\n")
	fmt.Printf("=============================================\n")
	fmt.Printf("Total fetches per run: %d\n\n", totalDecodes)
	report("Decoder", uncached, totalDecodes)
	report("Instruction cache", cached, totalDecodes)

	stats := icache.Stats()
	fmt.Printf("\nCache hits: %d, misses: %d\n", stats.Hits, stats.Misses)

	if cached.mallocs == 0 {
		fmt.Printf("\n✅ SUCCESS: Zero allocations on cached fetches.\n")
	} else if float64(cached.mallocs)/float64(totalDecodes) < 0.1 {
		fmt.Printf("\n✅ GOOD: Low allocation rate (< 0.1 per fetch)\n")
	} else {
		fmt.Printf("\n⚠️  WARNING: High allocation rate detected\n")
	}
	if cached.elapsed < uncached.elapsed {
		fmt.Printf("✅ Cached fetch is %.1fx faster than decoding\n",
			float64(uncached.elapsed)/float64(cached.elapsed))
	} else {
		fmt.Printf("⚠️  WARNING: Cached fetch is not faster than decoding\n")
	}
}
