package internal

import (
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sensiblebit/cardkit"
)

// ImportOptions holds the parameters for ImportPKCS12.
type ImportOptions struct {
	P12Path  string // pass type certificate exported from Keychain Access
	Password string // .p12 export password
	WWDRPath string // optional WWDR certificate (DER, PEM, or PKCS#7)
	OutDir   string // certificates directory to populate
	Force    bool   // overwrite existing files
}

// ImportResult lists the files written by ImportPKCS12.
type ImportResult struct {
	Files       []string
	Signer      string
	Fingerprint string
}

// ImportPKCS12 splits a .p12 into the three PEM files CertDir expects. The
// WWDR certificate is taken from WWDRPath when given, otherwise from the
// CA certificates inside the .p12. The key is written unencrypted as
// PKCS#8 with 0600 permissions.
func ImportPKCS12(opts ImportOptions) (*ImportResult, error) {
	data, err := os.ReadFile(opts.P12Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", opts.P12Path, err)
	}
	key, leaf, caCerts, err := cardkit.DecodePKCS12(data, opts.Password)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, fmt.Errorf("%s contains no certificate", opts.P12Path)
	}
	if match, err := cardkit.KeyMatchesCert(key, leaf); err != nil {
		return nil, err
	} else if !match {
		return nil, cardkit.ErrKeyMismatch
	}

	wwdr, err := selectWWDR(opts.WWDRPath, caCerts)
	if err != nil {
		return nil, err
	}

	keyPEM, err := cardkit.MarshalPrivateKeyToPEM(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutDir, 0700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", opts.OutDir, err)
	}

	outputs := []struct {
		name string
		data string
		perm os.FileMode
	}{
		{WWDRFile, cardkit.CertToPEM(wwdr), 0644},
		{SignerCertFile, cardkit.CertToPEM(leaf), 0644},
		{SignerKeyFile, keyPEM, 0600},
	}
	if !opts.Force {
		for _, out := range outputs {
			path := filepath.Join(opts.OutDir, out.name)
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}
	}

	result := &ImportResult{
		Signer:      leaf.Subject.String(),
		Fingerprint: cardkit.CertFingerprint(leaf),
	}
	for _, out := range outputs {
		path := filepath.Join(opts.OutDir, out.name)
		if err := os.WriteFile(path, []byte(out.data), out.perm); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		result.Files = append(result.Files, path)
	}
	slog.Info("imported signing material", "dir", opts.OutDir, "signer", result.Signer)
	return result, nil
}

func selectWWDR(path string, caCerts []*x509.Certificate) (*x509.Certificate, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		certs, err := cardkit.ParseCertificatesAny(data)
		if err != nil {
			return nil, fmt.Errorf("parsing WWDR certificate %s: %w", path, err)
		}
		return certs[0], nil
	}
	if len(caCerts) > 0 {
		return caCerts[0], nil
	}
	return nil, errors.New("no WWDR certificate in the .p12; pass one with --wwdr")
}
