package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/coredump-labs/rspd/internal/rspconfig"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List configured targets and the ports they would listen on",
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runStatus()
	}
	return cmd
}

// runStatus renders the configuration rspd would serve if started now. It
// does not reach into a running process: this binary has no out-of-band
// control channel, so "status" is configuration-derived, not a live
// session report.
func runStatus() error {
	cfg, err := rspconfig.Load(configFile, nil)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Target", "Port"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for i, name := range cfg.Targets {
		table.Append([]string{name, fmt.Sprintf("%d", cfg.Port+i)})
	}
	table.Render()
	return nil
}
