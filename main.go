// Package main provides the entry point for RVFetch.
// RVFetch is a cycle-accurate RISC-V instruction-fetch stage simulator.
//
// For the full CLI, use: go run ./cmd/rvfetch
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("RVFetch - RISC-V instruction-fetch stage simulator")
	fmt.Println("")
	fmt.Println("Usage: rvfetch [options] <program>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -flat      Treat the image as a raw binary")
	fmt.Println("  -base      Load address for flat images")
	fmt.Println("  -boot      Boot address override")
	fmt.Println("  -cycles    Number of cycles to simulate")
	fmt.Println("  -config    Path to memory timing configuration JSON file")
	fmt.Println("  -icache    Enable the L1 instruction cache model")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rvfetch' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rvfetch' instead.")
	}
}
