package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sensiblebit/cardkit/internal/passdb"
	"github.com/spf13/cobra"
)

var passesFormat string

var passesCmd = &cobra.Command{
	Use:   "passes [handle]",
	Short: "List passes recorded in the registry",
	Long:  "List passes recorded in the pass registry (--db), optionally only those issued for one handle. Authentication tokens are never printed.",
	Example: `  cardkit passes --db passes.db
  cardkit passes jdoe --db passes.db --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPasses,
}

func init() {
	passesCmd.Flags().StringVar(&passesFormat, "format", "text", "Output format: text or json")
	registerCompletion(passesCmd, "format", fixedCompletion("text", "json"))
}

func runPasses(cmd *cobra.Command, args []string) error {
	if dbPath == "" {
		return errors.New("--db is required to list recorded passes")
	}
	registry, err := passdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := registry.Close(); err != nil {
			slog.Warn("closing pass registry", "error", err)
		}
	}()

	var rows []passdb.PassRow
	if len(args) == 1 {
		rows, err = registry.PassesForHandle(args[0])
	} else {
		rows, err = registry.AllPasses()
	}
	if err != nil {
		return err
	}

	switch passesFormat {
	case "json":
		if rows == nil {
			rows = []passdb.PassRow{}
		}
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Println(string(data))
	case "text":
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SERIAL\tHANDLE\tKIND\tCREATED")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.SerialNumber, r.Handle, r.Kind, r.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format %q (use text or json)", passesFormat)
	}
	return nil
}
