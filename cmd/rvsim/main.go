// Command rvsim loads one or more raw RV32I program images and runs each
// one to completion under a chosen execution model.
//
// Grounded on oisee-z80-optimizer/cmd/z80opt/main.go's cobra root command
// construction (Flags().*Var registration, RunE error propagation to a
// single exit-code site) and on original_source/src/main.rs's argument
// loop (memory-size flag, run-type selection, "Unsupported flag" warning
// for anything it doesn't recognize, one file run after another).
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JulianKnodt/risc-v-sim/internal/loader"
	"github.com/JulianKnodt/risc-v-sim/internal/mem"
	"github.com/JulianKnodt/risc-v-sim/internal/sim"
	"github.com/JulianKnodt/risc-v-sim/internal/sim/inorder"
	"github.com/JulianKnodt/risc-v-sim/internal/sim/ooo"
	"github.com/JulianKnodt/risc-v-sim/internal/sim/sequential"
)

// normalizeShorthands rewrites the spec's two single-dash, multi-letter
// flags into long-flag spellings pflag's single-rune shorthand system
// cannot express directly, before cobra ever sees argv.
func normalizeShorthands(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		switch a {
		case "-io":
			out[i] = "--inorder"
		case "-ooo":
			out[i] = "--outoforder"
		default:
			out[i] = a
		}
	}
	return out
}

func main() {
	var memSize int
	var normal, inorderFlag, oooFlag, verbose bool

	rootCmd := &cobra.Command{
		Use:   "rvsim [image...]",
		Short: "RISC-V base integer ISA simulator (sequential, in-order, out-of-order)",
		FParseErrWhitelist: cobra.FParseErrWhitelist{
			UnknownFlags: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var files []string
			for _, a := range args {
				if strings.HasPrefix(a, "-") {
					fmt.Fprintf(os.Stderr, "Unsupported flag: %s\n", a)
					continue
				}
				files = append(files, a)
			}

			exitCode := 0
			for _, f := range files {
				if err := runImage(f, memSize, selectDriver(inorderFlag, oooFlag), verbose); err != nil {
					fmt.Fprintf(os.Stderr, "%s: %v\n", f, err)
					exitCode = 1
				}
			}
			if exitCode != 0 {
				os.Exit(exitCode)
			}
			return nil
		},
	}

	rootCmd.Flags().IntVarP(&memSize, "mem", "m", mem.DefaultSize, "memory size in bytes")
	rootCmd.Flags().BoolVar(&normal, "normal", false, "use the sequential driver (default)")
	rootCmd.Flags().BoolVar(&inorderFlag, "inorder", false, "use the in-order pipeline")
	rootCmd.Flags().BoolVar(&oooFlag, "outoforder", false, "use the out-of-order scheduler")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the final register file on termination")

	rootCmd.SetArgs(normalizeShorthands(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// driverKind names which execution model a run uses.
type driverKind int

const (
	driverSequential driverKind = iota
	driverInorder
	driverOOO
)

func selectDriver(inorderFlag, oooFlag bool) driverKind {
	switch {
	case oooFlag:
		return driverOOO
	case inorderFlag:
		return driverInorder
	default:
		return driverSequential
	}
}

// runImage loads path into a fresh memory of memSize bytes, runs it under
// kind to completion, optionally dumps the final register file, and
// reports a non-nil error for any terminal status other than Done.
func runImage(path string, memSize int, kind driverKind, verbose bool) error {
	st := sim.New(memSize)
	if err := loader.Load(path, st.Mem); err != nil {
		return err
	}

	switch kind {
	case driverInorder:
		inorder.Run(st)
	case driverOOO:
		ooo.Run(st)
	default:
		sequential.Run(st)
	}

	if verbose {
		dumpRegisters(st)
	}

	switch st.Status {
	case sim.Done:
		return nil
	case sim.Exception:
		return fmt.Errorf("halted on exception (kind=%v)", st.ExcKind)
	default:
		return fmt.Errorf("run did not terminate (status=%v)", st.Status)
	}
}

// dumpRegisters prints the final architectural state per spec.md §6:
// one "[ xNN: HHHHHHHH | DDDDD ]" line per GPR, then "[ pc : HHHHHHHH ]".
func dumpRegisters(st *sim.State) {
	snap := st.Regs.Snapshot()
	for i, v := range snap {
		fmt.Printf("[ x%-2d: %08X | %5d ]\n", i, uint32(v), int32(v))
	}
	fmt.Printf("[ pc : %08X ]\n", uint32(st.Regs.PCRead()))
}
