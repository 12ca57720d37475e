// Package main provides accuracy validation for the decoded-instruction cache
// and the timing model. Neither may change what a program computes.
package main

import (
	"fmt"
	"os"
	"reflect"

	"github.com/sarchlab/bvm/benchmarks"
	"github.com/sarchlab/bvm/emu"
	"github.com/sarchlab/bvm/insts"
	"github.com/sarchlab/bvm/loader"
	"github.com/sarchlab/bvm/timing/core"
)

// image is a ByteReader over a byte slice.
type image []byte

func (m image) Read8(addr uint64) (byte, error) {
	if addr >= uint64(len(m)) {
		return 0, fmt.Errorf("read past image at 0x%X", addr)
	}
	return m[addr], nil
}

// testInstructionDecoding validates that every opcode decodes back to the
// instruction it was encoded from, for every register combination.
func testInstructionDecoding() bool {
	decoder := insts.NewDecoder()

	fmt.Println("Testing instruction decoder accuracy...")

	for _, op := range insts.Ops() {
		info, _ := insts.Lookup(op)
		checked := 0

		for r := 0; r < insts.NumRegisters*insts.NumRegisters; r++ {
			want := insts.Instruction{
				Op:     op,
				Format: info.Format,
				Len:    info.Len,
				Size:   info.Size,
			}
			a, b := uint8(r/insts.NumRegisters), uint8(r%insts.NumRegisters)

			switch info.Format {
			case insts.FormatALU:
				want.Rn, want.Rm, want.Rd = a, b, (a+b)%insts.NumRegisters
			case insts.FormatCompare:
				want.Rn, want.Rm = a, b
			case insts.FormatLoad, insts.FormatStore:
				want.Rn, want.Rd = a, b
			case insts.FormatLoadImm:
				want.Rd, want.Imm = a, uint64(r&0xFF)
			case insts.FormatBranch:
				want.Imm = uint64(r & 0xFF)
			}

			got, err := decoder.Decode(0, image(want.Encode()))
			if err != nil {
				fmt.Printf("❌ %s: decode failed: %v\n", op, err)
				return false
			}
			if *got != want {
				fmt.Printf("❌ %s: Decode mismatch\n", op)
				fmt.Printf("  Encoded: %+v\n", want)
				fmt.Printf("  Decoded: %+v\n", *got)
				return false
			}
			checked++
		}

		fmt.Printf("✅ %-8s %d encodings decoded correctly\n", op, checked)
	}

	return true
}

type runMode struct {
	name   string
	icache bool
	timing bool
}

var modes = []runMode{
	{"functional, cached", true, false},
	{"functional, uncached", false, false},
	{"timing, cached", true, true},
	{"timing, uncached", false, true},
}

func runWorkload(b benchmarks.Benchmark, mode runMode) (*emu.Snapshot, error) {
	prog, err := loader.LoadSource([]byte(b.Source))
	if err != nil {
		return nil, err
	}

	opts := []emu.EmulatorOption{
		emu.WithInstructionCache(mode.icache),
		emu.WithMaxInstructions(10_000_000),
	}
	for reg, value := range b.Registers {
		opts = append(opts, emu.WithRegister(reg, value))
	}

	e := emu.NewEmulator(opts...)
	if err := prog.Apply(e); err != nil {
		return nil, err
	}

	if mode.timing {
		err = core.NewCore(e, nil).Run()
	} else {
		err = e.Run()
	}
	if err != nil {
		return nil, err
	}

	return e.Snapshot(), nil
}

// testWorkloadExecution validates that every workload ends in the same
// machine state in every run mode.
func testWorkloadExecution() bool {
	fmt.Println("\nTesting workload execution accuracy...")

	for _, b := range benchmarks.GetWorkloads() {
		reference, err := runWorkload(b, modes[0])
		if err != nil {
			fmt.Printf("❌ %s (%s): %v\n", b.Name, modes[0].name, err)
			return false
		}

		for _, mode := range modes[1:] {
			s, err := runWorkload(b, mode)
			if err != nil {
				fmt.Printf("❌ %s (%s): %v\n", b.Name, mode.name, err)
				return false
			}
			if !reflect.DeepEqual(reference, s) {
				fmt.Printf("❌ %s: state after %s run differs from %s run\n",
					b.Name, mode.name, modes[0].name)
				return false
			}
		}

		fmt.Printf("✅ %s: identical state in %d modes (%d instructions)\n",
			b.Name, len(modes), reference.InstructionCount)
	}

	return true
}

func main() {
	fmt.Println("BVM Accuracy Validation - Cache and Timing Transparency")
	fmt.Println("=======================================================")

	allPassed := true

	if !testInstructionDecoding() {
		allPassed = false
	}

	if !testWorkloadExecution() {
		allPassed = false
	}

	fmt.Println("\n=======================================================")
	if allPassed {
		fmt.Println("🎉 ALL ACCURACY TESTS PASSED")
		os.Exit(0)
	} else {
		fmt.Println("❌ ACCURACY TESTS FAILED")
		os.Exit(1)
	}
}
