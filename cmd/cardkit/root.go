package main

import (
	"log/slog"

	"github.com/sensiblebit/cardkit/internal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	logLevel       string
	configPath     string
	dbPath         string
	passphrase     string
	passphraseFile string

	// cfg is loaded once per invocation in PersistentPreRunE.
	cfg *internal.Config
)

var rootCmd = &cobra.Command{
	Use:   "cardkit",
	Short: "Digital business card generator",
	Long: `Generate vCard contact files and wallet passes from contact profiles.

Passes are signed when signing material is installed in the certificates
directory; otherwise a development preview (JSON) is produced instead.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cardkit.yaml", "Configuration file (YAML); missing file means defaults")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite pass registry path (default: in-memory)")
	rootCmd.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "Signer key passphrase (overrides config)")
	rootCmd.PersistentFlags().StringVar(&passphraseFile, "passphrase-file", "", "File containing the signer key passphrase")

	registerCompletion(rootCmd, "log-level", fixedCompletion("debug", "info", "warn", "error"))
	registerCompletion(rootCmd, "config", fileCompletion)
	registerCompletion(rootCmd, "passphrase-file", fileCompletion)

	rootCmd.AddCommand(vcardCmd)
	rootCmd.AddCommand(passCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(certsCmd)
	rootCmd.AddCommand(passesCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := internal.LoadConfig(configPath)
	if err != nil {
		return err
	}
	internal.SetupLogger(logLevel, loaded.LogFormat)

	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == "passphrase" {
			slog.Debug("flag set", "flag", f.Name)
			return
		}
		slog.Debug("flag set", "flag", f.Name, "value", f.Value.String())
	})

	cfg = loaded
	return nil
}

// certDir returns the configured signing material source with the
// passphrase resolved from flags, file, or config.
func certDir() (internal.CertDir, error) {
	pwd, err := internal.ResolvePassphrase(passphrase, passphraseFile, cfg.CertificatePassphrase)
	if err != nil {
		return internal.CertDir{}, err
	}
	return internal.CertDir{Dir: cfg.CertificatesDir, Passphrase: pwd}, nil
}
