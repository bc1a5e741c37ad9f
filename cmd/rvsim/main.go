// Package main provides the entry point for rvsim.
// rvsim is a cycle-accurate RV64IMAFDC CPU simulator.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/willmccallion/rvsim/config"
	"github.com/willmccallion/rvsim/loader"
	"github.com/willmccallion/rvsim/sim"
)

var (
	configPath = flag.String("config", "", "Path to simulator configuration JSON file")
	maxCycles  = flag.Uint64("max-cycles", 0, "Stop after this many cycles (0 = unlimited)")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: rvsim [options] <program.elf>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	programPath := flag.Arg(0)

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	prog, err := loader.Load(programPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading program: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%x\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	uartOut := os.Stdout
	core := sim.NewCore(cfg, prog, uartOut)

	if *maxCycles > 0 {
		core.RunCycles(*maxCycles)
	} else {
		core.Run()
	}

	if *verbose {
		st := core.Stats()
		for _, k := range st.Keys() {
			fmt.Printf("%s = %d\n", k, st.Get(k))
		}
		fmt.Printf("Exit reason: %v\n", core.ExitReason())
	}

	os.Exit(core.ExitCode())
}
