// Package main provides the entry point for RVFetch.
// RVFetch is a cycle-accurate RISC-V instruction-fetch stage simulator.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sarchlab/rvfetch/loader"
	"github.com/sarchlab/rvfetch/timing/core"
	"github.com/sarchlab/rvfetch/timing/fetch"
	"github.com/sarchlab/rvfetch/timing/imem"
)

var (
	flat       = flag.Bool("flat", false, "Treat the image as a raw binary instead of an ELF file")
	base       = flag.Uint64("base", 0, "Load address for flat images")
	boot       = flag.Uint64("boot", 0, "Boot address override (default: image entry point)")
	cycles     = flag.Uint64("cycles", 1000, "Number of cycles to simulate")
	configPath = flag.String("config", "", "Path to memory timing configuration JSON file")
	icache     = flag.Bool("icache", false, "Enable the L1 instruction cache model")
	verbose    = flag.Bool("v", false, "Verbose output (per-instruction fetch trace)")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rvfetch [options] <program>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	programPath := flag.Arg(0)

	var prog *loader.Program
	var err error
	if *flat {
		prog, err = loader.LoadFlat(programPath, uint32(*base))
	} else {
		prog, err = loader.Load(programPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	config := imem.DefaultConfig()
	if *configPath != "" {
		config, err = imem.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	opts := []imem.MemoryOption{imem.WithConfig(config)}
	if *icache {
		opts = append(opts, imem.WithL1I(imem.DefaultL1IConfig()))
	}
	mem := imem.NewMemory(opts...)
	for _, seg := range prog.Segments {
		mem.LoadImage(seg.VirtAddr, seg.Data)
	}

	bootAddr := prog.EntryPoint
	if *boot != 0 {
		bootAddr = uint32(*boot)
	}

	c := core.NewCore(mem, fetch.WithDiagnostics(log.Printf))
	c.SetBootAddr(bootAddr)

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Boot address: 0x%08X\n", bootAddr)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	c.RunCycles(*cycles)

	if *verbose {
		for _, f := range c.Trace() {
			fmt.Printf("  %08X: %08X\n", f.PC, f.Instr)
		}
	}

	stats := c.Stats()
	fmt.Printf("Cycles:       %d\n", stats.Cycles)
	fmt.Printf("Fetched:      %d\n", stats.Fetched)
	fmt.Printf("Bubbles:      %d\n", stats.Bubbles)
	fmt.Printf("Wait cycles:  %d\n", stats.WaitCycles)
	fmt.Printf("Redirects:    %d\n", stats.Redirects)
	fmt.Printf("IPC:          %.3f\n", stats.IPC())

	if *icache {
		cs := mem.CacheStats()
		fmt.Printf("L1I reads:    %d (hits %d, misses %d, evictions %d)\n",
			cs.Reads, cs.Hits, cs.Misses, cs.Evictions)
	}
}
