package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sensiblebit/cardkit"
)

// Signing material file names inside the certificates directory.
const (
	WWDRFile       = "wwdr.pem"
	SignerCertFile = "signerCert.pem"
	SignerKeyFile  = "signerKey.pem"
)

// SigningFiles lists the signing material files in load order.
var SigningFiles = []string{WWDRFile, SignerCertFile, SignerKeyFile}

// CertDir loads signing material from a directory holding WWDRFile,
// SignerCertFile and SignerKeyFile. It reads the files on every call and
// keeps no state, so it is safe for concurrent use.
type CertDir struct {
	Dir        string
	Passphrase string
}

// LoadSigningMaterial implements cardkit.SigningMaterialSource. It returns
// (nil, nil) when any of the three files does not exist. Other read errors
// and unparsable contents are returned as errors.
func (d CertDir) LoadSigningMaterial() (*cardkit.SigningMaterial, error) {
	contents := make([][]byte, 0, len(SigningFiles))
	for _, name := range SigningFiles {
		path := filepath.Join(d.Dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("signing material file not found", "path", path)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		contents = append(contents, data)
	}

	m, err := cardkit.ParseSigningMaterial(contents[0], contents[1], contents[2], d.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("loading signing material from %s: %w", d.Dir, err)
	}
	slog.Debug("loaded signing material", "dir", d.Dir,
		"signer", m.Certificate.Subject.CommonName,
		"fingerprint", cardkit.CertFingerprint(m.Certificate))
	return m, nil
}

// SigningStatus describes the state of a certificates directory.
type SigningStatus struct {
	Dir         string   `json:"dir"`
	Installed   bool     `json:"installed"`
	Missing     []string `json:"missing,omitempty"`
	Signer      string   `json:"signer,omitempty"`
	Fingerprint string   `json:"sha256_fingerprint,omitempty"`
	NotAfter    string   `json:"not_after,omitempty"`
	WWDR        string   `json:"wwdr,omitempty"`
}

// CheckCertDir reports which signing files are present and, when all are,
// whether they load. Load failures are returned as errors.
func CheckCertDir(d CertDir) (*SigningStatus, error) {
	status := &SigningStatus{Dir: d.Dir}
	for _, name := range SigningFiles {
		_, err := os.Stat(filepath.Join(d.Dir, name))
		if errors.Is(err, os.ErrNotExist) {
			status.Missing = append(status.Missing, name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("checking %s: %w", name, err)
		}
	}
	if len(status.Missing) > 0 {
		return status, nil
	}

	m, err := d.LoadSigningMaterial()
	if err != nil {
		return nil, err
	}
	if m == nil {
		// a file disappeared between Stat and ReadFile
		return status, nil
	}
	status.Installed = true
	status.Signer = m.Certificate.Subject.String()
	status.Fingerprint = cardkit.CertFingerprint(m.Certificate)
	status.NotAfter = m.Certificate.NotAfter.UTC().Format("2006-01-02")
	status.WWDR = m.WWDR.Subject.String()
	return status, nil
}
