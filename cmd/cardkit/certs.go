package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sensiblebit/cardkit/internal"
	"github.com/spf13/cobra"
)

var (
	importWWDRPath string
	importOutDir   string
	importForce    bool
	checkFormat    string
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Manage pass signing material",
}

var certsImportCmd = &cobra.Command{
	Use:   "import <file.p12>",
	Short: "Install signing material from a .p12 export",
	Long: `Split a Pass Type ID certificate exported from Keychain Access (.p12) into
wwdr.pem, signerCert.pem and signerKey.pem in the certificates directory.

The .p12 password is taken from --passphrase or --passphrase-file. The
WWDR intermediate is read from --wwdr (DER, PEM, or PKCS#7) when given,
otherwise from the CA certificates inside the .p12. The key is written
unencrypted with 0600 permissions.`,
	Example: `  cardkit certs import pass.p12 --wwdr AppleWWDRCAG4.cer
  cardkit certs import pass.p12 --passphrase-file p12.pass --out ./certificates --force`,
	Args: cobra.ExactArgs(1),
	RunE: runCertsImport,
}

var certsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether signing material is installed and loads",
	Args:  cobra.NoArgs,
	RunE:  runCertsCheck,
}

func init() {
	certsImportCmd.Flags().StringVar(&importWWDRPath, "wwdr", "", "WWDR intermediate certificate file")
	certsImportCmd.Flags().StringVarP(&importOutDir, "out", "o", "", "Certificates directory (default: configured directory)")
	certsImportCmd.Flags().BoolVarP(&importForce, "force", "f", false, "Overwrite existing files")
	registerCompletion(certsImportCmd, "wwdr", fileCompletion)
	registerCompletion(certsImportCmd, "out", directoryCompletion)

	certsCheckCmd.Flags().StringVar(&checkFormat, "format", "text", "Output format: text or json")
	registerCompletion(certsCheckCmd, "format", fixedCompletion("text", "json"))

	certsCmd.AddCommand(certsImportCmd)
	certsCmd.AddCommand(certsCheckCmd)
}

func runCertsImport(cmd *cobra.Command, args []string) error {
	dir, err := certDir()
	if err != nil {
		return err
	}
	outDir := importOutDir
	if outDir == "" {
		outDir = dir.Dir
	}

	result, err := internal.ImportPKCS12(internal.ImportOptions{
		P12Path:  args[0],
		Password: dir.Passphrase,
		WWDRPath: importWWDRPath,
		OutDir:   outDir,
		Force:    importForce,
	})
	if err != nil {
		return fmt.Errorf("importing %s: %w", args[0], err)
	}

	fmt.Fprintf(os.Stderr, "Signer: %s\n", result.Signer)
	fmt.Fprintf(os.Stderr, "SHA-256: %s\n", result.Fingerprint)
	for _, f := range result.Files {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", f)
	}
	return nil
}

func runCertsCheck(cmd *cobra.Command, args []string) error {
	dir, err := certDir()
	if err != nil {
		return err
	}
	status, err := internal.CheckCertDir(dir)
	if err != nil {
		return err
	}

	switch checkFormat {
	case "json":
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Println(string(data))
	case "text":
		fmt.Printf("Directory: %s\n", status.Dir)
		if !status.Installed {
			fmt.Printf("Status:    not installed (missing %s); passes will be development previews\n",
				strings.Join(status.Missing, ", "))
			return nil
		}
		fmt.Println("Status:    installed")
		fmt.Printf("Signer:    %s\n", status.Signer)
		fmt.Printf("SHA-256:   %s\n", status.Fingerprint)
		fmt.Printf("Expires:   %s\n", status.NotAfter)
		fmt.Printf("WWDR:      %s\n", status.WWDR)
	default:
		return fmt.Errorf("unsupported output format %q (use text or json)", checkFormat)
	}
	return nil
}
