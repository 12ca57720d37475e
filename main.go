// Package main provides the entry point for BVM.
// BVM is a bytecode virtual machine with a self-modifying-code aware
// decoded-instruction cache and a cycle-approximate timing model.
//
// For the full CLI, use: go run ./cmd/bvm
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("BVM - Bytecode Virtual Machine")
	fmt.Println("")
	fmt.Println("Usage: bvm [options] <program.s|program.bin>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -timing    Enable timing simulation mode")
	fmt.Println("  -config    Path to timing configuration YAML or JSON file")
	fmt.Println("  -reg       Set a register, NAME=VALUE (repeatable)")
	fmt.Println("  -v         Verbose output with an instruction trace")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/bvm' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/bvm' instead.")
	}
}
