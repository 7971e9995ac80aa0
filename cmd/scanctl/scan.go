package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/logging"
	"github.com/sysdig/attachment-virus-scanner/pkg/pipeline"
	"github.com/sysdig/attachment-virus-scanner/pkg/scanner"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

type scanOptions struct {
	scannerType  string
	keepInfected bool
	addons       []string
}

func scanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan PATH...",
		Short: "Scan files and report a verdict per file",
		Long: `Scan files with the configured scanner. Infected files are removed
unless --keep-infected is given. The exit code is 1 when any file is infected.

Examples:
  scanctl scan upload.pdf
  scanctl scan --scanner clamd --keep-infected ./incoming/*
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.OutOrStdout(), root, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.scannerType, "scanner", "", "scanner type, overrides the settings file")
	cmd.Flags().BoolVar(&opts.keepInfected, "keep-infected", false, "do not remove infected files")
	cmd.Flags().StringSliceVar(&opts.addons, "addon", nil, "addons to apply, replaces the configured list")

	return cmd
}

func loadSettings(root *rootOptions) (*config.Config, error) {
	if root.configFile == "" {
		return config.Default(), nil
	}
	return config.Load(root.configFile)
}

func runScan(out io.Writer, root *rootOptions, opts *scanOptions, paths []string) error {
	cfg, err := loadSettings(root)
	if err != nil {
		return err
	}
	if opts.scannerType != "" {
		cfg.Scanner = config.BackendConfig{Type: opts.scannerType}
	}
	// Plain paths only need the filepath adapter
	cfg.Storage = config.BackendConfig{Type: storage.TypeFilepath}
	if opts.addons != nil {
		cfg.Addons = opts.addons
	}

	logger := logging.NewLoggerWithOutput(logging.LogLevel(root.logLevel), os.Stderr)

	p := pipeline.New(logger)
	if err := p.Configure(cfg); err != nil {
		return err
	}
	if opts.keepInfected {
		p.RemoveAddon(scanner.AddonRemoveInfected)
	}

	s, err := p.Scanner()
	if err != nil {
		return err
	}
	if !s.Available() {
		return fmt.Errorf("scanner %s is not available", s.Type())
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed, color.Bold).SprintFunc()

	infected := 0
	var total uint64

	for _, path := range paths {
		size := ""
		if info, statErr := os.Stat(path); statErr == nil {
			total += uint64(info.Size())
			size = humanize.Bytes(uint64(info.Size()))
		}

		virus, err := s.Virus(path)
		if err != nil {
			return fmt.Errorf("scan %s: %w", path, err)
		}

		if virus {
			infected++
			fmt.Fprintf(out, "%s %s (%s): %s\n", red("INFECTED"), path, size, strings.Join(s.Errors().Strings(), ", "))
			continue
		}
		fmt.Fprintf(out, "%s    %s (%s)\n", green("clean"), path, size)
	}

	fmt.Fprintf(out, "\n%s files scanned, %s, %d infected\n",
		humanize.Comma(int64(len(paths))), humanize.Bytes(total), infected)

	if infected > 0 {
		return errInfected
	}
	return nil
}
