// Package main provides the scanctl command line entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// exitCodeInfected is returned when at least one scanned file is infected
const exitCodeInfected = 1

// exitCodeError is returned for usage and configuration errors
const exitCodeError = 2

// errInfected marks a scan run that found infected files
var errInfected = errors.New("infected files found")

type rootOptions struct {
	configFile string
	logLevel   string
	noColor    bool
}

func main() {
	err := newRootCmd().Execute()
	if errors.Is(err, errInfected) {
		os.Exit(exitCodeInfected)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeError)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "scanctl",
		Short:         "Scan files for viruses with the attachment scan pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "settings file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(scanCmd(opts))
	rootCmd.AddCommand(backendsCmd())

	return rootCmd
}
