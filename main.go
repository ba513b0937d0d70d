// Command vm loads a compiled AQ bytecode image and executes it.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aquisk/AQ/vm"
)

var errMissingArgument = errors.New("vm: expected exactly one image path argument")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var trace bool
	var usage string

	rootCmd := &cobra.Command{
		Use:           "vm <image-path>",
		Short:         "Execute a compiled AQ bytecode image",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errMissingArgument
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImage(args[0], trace)
		},
	}
	rootCmd.Flags().BoolVarP(&trace, "trace", "t", false, "print a trace of each decoded instruction to standard error")
	rootCmd.SetArgs(args)
	rootCmd.SetOut(os.Stdout)
	usage = rootCmd.UsageString()

	err := rootCmd.Execute()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errMissingArgument):
		fmt.Fprint(os.Stdout, usage)
		return -1
	case errors.Is(err, errOpenFailed):
		fmt.Fprintln(os.Stderr, err)
		return -2
	case errors.Is(err, vm.ErrInvalidMagic):
		fmt.Fprintln(os.Stderr, err)
		return -3
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}

var errOpenFailed = errors.New("vm: failed to open image")

func runImage(path string, trace bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", errOpenFailed, err)
	}
	defer f.Close()

	machine, err := vm.LoadImage(f, os.Stdout)
	if err != nil {
		return err
	}
	defer machine.Close()

	if trace {
		machine.SetTrace(os.Stderr)
	}

	return machine.Run()
}
