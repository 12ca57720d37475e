// Package benchmarks provides bytecode workloads and a harness that runs
// them functionally and under the timing model.
package benchmarks

import "github.com/sarchlab/bvm/emu"

// GetWorkloads returns the standard set of workloads.
// Each workload targets a specific part of the machine.
func GetWorkloads() []Benchmark {
	return []Benchmark{
		countingLoop(),
		selfModifyingLoop(),
		stackChurn(),
		memoryCopy(),
		factorial(),
	}
}

// GetCoreWorkloads returns a minimal set for quick validation: the counting
// loop, self-modifying code and the stack.
func GetCoreWorkloads() []Benchmark {
	return []Benchmark{
		countingLoop(),
		selfModifyingLoop(),
		stackChurn(),
	}
}

// 1. Counting loop - the store/load round trip through memory each iteration
func countingLoop() Benchmark {
	return Benchmark{
		Name:        "counting_loop",
		Description: "X counts to 200 through a byte of memory - measures loop and cached decode",
		Source: `
loop:   add    x, y, x
        store8 x, a
        load8  a, b
        less   b, z
        jc     loop
        halt
`,
		Registers: map[uint8]uint64{
			emu.RegY: 1,
			emu.RegZ: 200,
			emu.RegA: 0x100,
		},
		ExpectedRegisters: map[uint8]uint64{
			emu.RegX: 200,
			emu.RegB: 200,
		},
	}
}

// 2. Self-modifying loop - every iteration rewrites an immediate it executes
func selfModifyingLoop() Benchmark {
	return Benchmark{
		Name:        "self_modifying_loop",
		Description: "a loop patches its own LDI immediate - measures stale decode detection",
		Source: `
        .equ   count 20
start:  ldi    a, $(patch + 2)
        ldi    y, 1
        ldi    z, count
patch:  ldi    b, 0            ; immediate rewritten below
        add    x, b, x
        add    c, y, c
        store8 c, a
        less   c, z
        jc     patch
        halt
`,
		ExpectedRegisters: map[uint8]uint64{
			emu.RegX: 190, // 0 + 1 + ... + 19
			emu.RegB: 19,
			emu.RegC: 20,
		},
		ExpectedMemory: map[string][]byte{
			"patch": {16, emu.RegB, 20},
		},
	}
}

// 3. Stack churn - full-state frames pushed and popped every iteration
func stackChurn() Benchmark {
	return Benchmark{
		Name:        "stack_churn",
		Description: "40 PUSH/POP pairs around a memory counter - measures frame traffic",
		Source: `
start:  ldi    y, 1
        ldi    z, 40
        ldi    a, counter
loop:   push
        load8  a, x
        add    x, y, x
        store8 x, a
        ldi    b, 0xEE         ; undone by pop
        pop
        load8  a, c
        less   c, z
        jc     loop
        halt
counter:
        .byte  0
stack:
`,
		ExpectedRegisters: map[uint8]uint64{
			emu.RegX: 0,
			emu.RegB: 0,
			emu.RegC: 40,
		},
		ExpectedMemory: map[string][]byte{
			"counter": {40},
		},
	}
}

// 4. Memory copy - byte loop from one buffer to another
func memoryCopy() Benchmark {
	return Benchmark{
		Name:        "memory_copy",
		Description: "copies 16 bytes one load/store pair at a time - measures data access",
		Source: `
        .equ   length 16
start:  ldi    a, src
        ldi    b, dst
        ldi    c, length
        ldi    y, 1
loop:   load8  a, x
        store8 x, b
        add    a, y, a
        add    b, y, b
        add    d, y, d
        less   d, c
        jc     loop
        halt
src:    .byte  1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16
dst:
`,
		ExpectedRegisters: map[uint8]uint64{
			emu.RegX: 16,
			emu.RegD: 16,
		},
		ExpectedMemory: map[string][]byte{
			"dst": {1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		},
	}
}

// 5. Factorial - multiply chain followed by a divide
func factorial() Benchmark {
	return Benchmark{
		Name:        "factorial",
		Description: "5! by repeated MUL then one DIV - measures long-latency ALU ops",
		Source: `
        ldi    x, 1
        ldi    c, 5
        ldi    y, 1
loop:   mul    x, c, x
        sub    c, y, c
        less   y, c
        jc     loop
        ldi    d, 10
        div    x, d, e
        halt
`,
		ExpectedRegisters: map[uint8]uint64{
			emu.RegX: 120,
			emu.RegE: 12,
		},
	}
}
