package main

import (
	"github.com/sensiblebit/cardkit"
	"github.com/sensiblebit/cardkit/internal"
	"github.com/spf13/cobra"
)

var vcardOutFile string

var vcardCmd = &cobra.Command{
	Use:   "vcard <contact-file>",
	Short: "Generate a vCard 3.0 contact file",
	Long: `Generate a vCard 3.0 document from a contact file (YAML or JSON, "-" for stdin).

The profile URL is built from the configured base URL.`,
	Example: `  cardkit vcard jdoe.yaml
  cardkit vcard jdoe.json -o jdoe-contact.vcf`,
	Args: cobra.ExactArgs(1),
	RunE: runVCard,
}

func init() {
	vcardCmd.Flags().StringVarP(&vcardOutFile, "out", "o", "", "Output file (default: stdout)")
}

func runVCard(cmd *cobra.Command, args []string) error {
	contact, err := internal.LoadContactFile(args[0])
	if err != nil {
		return err
	}
	card := cardkit.EncodeVCard(*contact, cfg.VCardOptions())
	return writeOutput(vcardOutFile, []byte(card), false, 0644)
}
