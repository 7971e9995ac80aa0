package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sysdig/attachment-virus-scanner/pkg/config"
	"github.com/sysdig/attachment-virus-scanner/pkg/pipeline"
	"github.com/sysdig/attachment-virus-scanner/pkg/scanner"
	"github.com/sysdig/attachment-virus-scanner/pkg/storage"
)

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the registered scanner, storage and addon types",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), renderBackends())
		},
	}
}

func renderBackends() string {
	defaults := make(map[string]bool, len(pipeline.DefaultAddons))
	for _, name := range pipeline.DefaultAddons {
		defaults[name] = true
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.AppendHeader(table.Row{"Kind", "Name", "Default"})

	rows := 0
	for _, name := range scanner.DetectorTypes() {
		tbl.AppendRow(table.Row{"scanner", name, mark(name == config.DefaultScannerType)})
		rows++
	}
	for _, name := range storage.Registry().Names() {
		tbl.AppendRow(table.Row{"storage", name, mark(name == config.DefaultStorageType)})
		rows++
	}
	for _, name := range scanner.AddonNames() {
		tbl.AppendRow(table.Row{"addon", name, mark(defaults[name])})
		rows++
	}

	tbl.AppendFooter(table.Row{"", fmt.Sprintf("Total: %d", rows), ""})

	return strings.TrimRight(tbl.Render(), "\n")
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return ""
}
