package main

import (
	"fmt"

	"github.com/sensiblebit/cardkit/internal"
	"github.com/spf13/cobra"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.pkpass>",
	Short: "Verify and display a wallet pass bundle",
	Long:  "Check a .pkpass bundle's manifest hashes and detached signature, and show its identifiers and contents.",
	Example: `  cardkit inspect jdoe.pkpass
  cardkit inspect jdoe.pkpass --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "text", "Output format: text or json")
	registerCompletion(inspectCmd, "format", fixedCompletion("text", "json"))
}

func runInspect(cmd *cobra.Command, args []string) error {
	result, err := internal.InspectFile(args[0], internal.DefaultArchiveLimits())
	if err != nil {
		return err
	}
	output, err := internal.FormatInspectResult(result, inspectFormat)
	if err != nil {
		return err
	}
	fmt.Print(output)
	return nil
}
