package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sensiblebit/cardkit"
	"github.com/sensiblebit/cardkit/internal"
	"github.com/sensiblebit/cardkit/internal/passdb"
	"github.com/spf13/cobra"
)

var (
	passOutFile    string
	passAssets     []string
	passRequireSig bool
)

// packager is stateless and shared by every generation in the process.
var packager = cardkit.NewPackager()

var passCmd = &cobra.Command{
	Use:   "pass <contact-file>",
	Short: "Generate a wallet pass",
	Long: `Generate a wallet pass (.pkpass) from a contact file (YAML or JSON, "-" for stdin).

When wwdr.pem, signerCert.pem and signerKey.pem are present in the
certificates directory the pass is signed. When any is missing, a JSON
development preview is written instead; it cannot be added to a wallet.
Use --require-signed to fail instead.

Every generated pass is recorded in the pass registry (--db) together with
its web-service authentication token.`,
	Example: `  cardkit pass jdoe.yaml -o jdoe.pkpass
  cardkit pass jdoe.yaml --asset icon.png=./art/icon.png --asset logo.png=./art/logo.png -o jdoe.pkpass
  cardkit pass jdoe.yaml --db passes.db --require-signed -o jdoe.pkpass`,
	Args: cobra.ExactArgs(1),
	RunE: runPass,
}

func init() {
	passCmd.Flags().StringVarP(&passOutFile, "out", "o", "", "Output file (default: stdout)")
	passCmd.Flags().StringArrayVar(&passAssets, "asset", nil, "Bundle asset as name=path (repeatable)")
	passCmd.Flags().BoolVar(&passRequireSig, "require-signed", false, "Fail when signing material is not installed")
}

func runPass(cmd *cobra.Command, args []string) error {
	contact, err := internal.LoadContactFile(args[0])
	if err != nil {
		return err
	}

	assets, err := loadAssets(passAssets)
	if err != nil {
		return err
	}

	source, err := certDir()
	if err != nil {
		return err
	}

	// checked before anything is recorded in the registry
	var signing cardkit.SigningMaterialSource = source
	if passRequireSig {
		m, err := requireSigningMaterial(source)
		if err != nil {
			return err
		}
		signing = loadedMaterial{m}
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

	gen := &cardkit.Generator{
		Builder:  cfg.PassBuilder(),
		Packager: packager,
		Signing:  signing,
		Assets:   assets,
		Recorder: registry,
	}
	result, err := gen.GenerateWalletPass(*contact)
	if err != nil {
		return err
	}

	if !result.Signed() {
		fmt.Fprintf(os.Stderr, "WARNING: signing material not found in %s; writing development preview\n", source.Dir)
	}

	data, err := result.Bytes()
	if err != nil {
		return err
	}
	return writeOutput(passOutFile, data, result.Signed(), 0644)
}

// requireSigningMaterial loads the signing material in src and fails when
// it is not installed.
func requireSigningMaterial(src internal.CertDir) (*cardkit.SigningMaterial, error) {
	m, err := src.LoadSigningMaterial()
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("signing material not found in %s", src.Dir)
	}
	return m, nil
}

// loadedMaterial serves material that was already loaded.
type loadedMaterial struct {
	m *cardkit.SigningMaterial
}

func (l loadedMaterial) LoadSigningMaterial() (*cardkit.SigningMaterial, error) {
	return l.m, nil
}

// loadAssets reads name=path pairs into a bundle asset map.
func loadAssets(specs []string) (map[string][]byte, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	assets := make(map[string][]byte, len(specs))
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid --asset %q (want name=path)", spec)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading asset %s: %w", path, err)
		}
		assets[name] = data
	}
	return assets, nil
}
